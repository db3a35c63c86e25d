package history

import (
	"context"
	"fmt"
	"sync"

	domain "github.com/bryanwahyu/contract-shield/internal/domain/contracts"
	"github.com/bryanwahyu/contract-shield/internal/logger"
)

// MaxStoredAnalyses caps the number of full analysis bodies kept. Older
// analyses stay listed in the history but their detail is dropped.
const MaxStoredAnalyses = 50

const recentLimit = 5

// State is a copy of the store contents handed to listeners.
type State struct {
	Analyses  []domain.ContractAnalysis
	History   []domain.StoredContract
	Current   *domain.ContractAnalysis
	Analyzing bool
	Progress  string
}

// Listener is called after every change, outside the store lock.
type Listener func(State)

// Stats aggregates the history for the dashboard.
type Stats struct {
	TotalAnalyses int                     `json:"totalAnalyses"`
	HighRiskCount int                     `json:"highRiskCount"`
	TotalRedFlags int                     `json:"totalRedFlags"`
	Favorites     int                     `json:"favorites"`
	Recent        []domain.StoredContract `json:"recent"`
}

// Store is the local index of past analyses plus a bounded cache of their
// full bodies. Every mutation is written through to the repository before
// it becomes visible; a failed write leaves the store unchanged.
//
// Store is safe for concurrent use.
type Store struct {
	repo domain.HistoryRepository
	log  *logger.Logger

	mu        sync.Mutex
	analyses  []domain.ContractAnalysis
	history   []domain.StoredContract
	current   *domain.ContractAnalysis
	analyzing bool
	progress  string

	listeners    map[int]Listener
	nextListener int
}

// NewStore returns an empty store. repo may be nil for a memory-only store.
func NewStore(repo domain.HistoryRepository, log *logger.Logger) *Store {
	if log == nil {
		log = logger.Nop()
	}
	return &Store{
		repo:      repo,
		log:       log,
		analyses:  []domain.ContractAnalysis{},
		history:   []domain.StoredContract{},
		listeners: make(map[int]Listener),
	}
}

// Load builds a store from the last saved snapshot.
func Load(ctx context.Context, repo domain.HistoryRepository, log *logger.Logger) (*Store, error) {
	s := NewStore(repo, log)
	if repo == nil {
		return s, nil
	}
	snap, err := repo.LoadHistory(ctx)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	if snap == nil {
		return s, nil
	}
	if snap.History != nil {
		s.history = snap.History
	}
	if snap.Analyses != nil {
		s.analyses = truncate(snap.Analyses)
	}
	s.log.Debug().
		Int("history", len(s.history)).
		Int("analyses", len(s.analyses)).
		Msg("history loaded")
	return s, nil
}

// Add records a new analysis at the head of both lists and makes it the
// current analysis.
func (s *Store) Add(ctx context.Context, a *domain.ContractAnalysis) error {
	s.mu.Lock()

	analyses := make([]domain.ContractAnalysis, 0, len(s.analyses)+1)
	analyses = append(analyses, *a)
	analyses = truncate(append(analyses, s.analyses...))

	history := make([]domain.StoredContract, 0, len(s.history)+1)
	history = append(history, domain.Summarize(a))
	history = append(history, s.history...)

	if err := s.persist(ctx, analyses, history); err != nil {
		s.mu.Unlock()
		return err
	}
	s.analyses = analyses
	s.history = history
	current := *a
	s.current = &current

	state, listeners := s.stateLocked()
	s.mu.Unlock()

	s.log.Debug().
		Str("func", "Store.Add").
		Str("id", string(a.ID)).
		Int("history", len(history)).
		Int("analyses", len(analyses)).
		Msg("analysis added")
	notify(listeners, state)
	return nil
}

// ToggleFavorite flips the favorite flag of the entry with id. An unknown id
// is a no-op.
func (s *Store) ToggleFavorite(ctx context.Context, id domain.AnalysisID) error {
	s.mu.Lock()

	idx := s.historyIndex(id)
	if idx < 0 {
		s.mu.Unlock()
		return nil
	}
	history := make([]domain.StoredContract, len(s.history))
	copy(history, s.history)
	history[idx].IsFavorite = !history[idx].IsFavorite

	if err := s.persist(ctx, s.analyses, history); err != nil {
		s.mu.Unlock()
		return err
	}
	s.history = history

	state, listeners := s.stateLocked()
	s.mu.Unlock()

	notify(listeners, state)
	return nil
}

// Delete removes id from the history and the analysis cache and clears the
// current analysis if it was the one deleted. An unknown id is a no-op.
func (s *Store) Delete(ctx context.Context, id domain.AnalysisID) error {
	s.mu.Lock()

	history := make([]domain.StoredContract, 0, len(s.history))
	for _, h := range s.history {
		if h.ID != id {
			history = append(history, h)
		}
	}
	analyses := make([]domain.ContractAnalysis, 0, len(s.analyses))
	for _, a := range s.analyses {
		if a.ID != id {
			analyses = append(analyses, a)
		}
	}
	if len(history) == len(s.history) && len(analyses) == len(s.analyses) {
		s.mu.Unlock()
		return nil
	}

	if err := s.persist(ctx, analyses, history); err != nil {
		s.mu.Unlock()
		return err
	}
	s.history = history
	s.analyses = analyses
	if s.current != nil && s.current.ID == id {
		s.current = nil
	}

	state, listeners := s.stateLocked()
	s.mu.Unlock()

	s.log.Debug().Str("func", "Store.Delete").Str("id", string(id)).Msg("analysis deleted")
	notify(listeners, state)
	return nil
}

// Find looks id up in the bounded analysis cache. An evicted analysis and one
// that never existed are both reported as not found.
func (s *Store) Find(id domain.AnalysisID) (*domain.ContractAnalysis, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findLocked(id)
}

func (s *Store) findLocked(id domain.AnalysisID) (*domain.ContractAnalysis, bool) {
	for i := range s.analyses {
		if s.analyses[i].ID == id {
			a := s.analyses[i]
			return &a, true
		}
	}
	return nil, false
}

// SetCurrent makes the cached analysis id the one currently viewed.
func (s *Store) SetCurrent(id domain.AnalysisID) bool {
	s.mu.Lock()
	a, ok := s.findLocked(id)
	if !ok {
		s.mu.Unlock()
		return false
	}
	s.current = a
	state, listeners := s.stateLocked()
	s.mu.Unlock()

	notify(listeners, state)
	return true
}

// Current returns the analysis currently viewed, if any.
func (s *Store) Current() (*domain.ContractAnalysis, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil, false
	}
	a := *s.current
	return &a, true
}

// SetAnalyzing updates the transient progress status. It is never persisted.
func (s *Store) SetAnalyzing(analyzing bool, progress string) {
	s.mu.Lock()
	s.analyzing = analyzing
	s.progress = progress
	state, listeners := s.stateLocked()
	s.mu.Unlock()

	notify(listeners, state)
}

// Status returns the transient progress status.
func (s *Store) Status() (bool, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.analyzing, s.progress
}

// History returns the entries matching filter, newest first.
func (s *Store) History(filter domain.HistoryFilter) []domain.StoredContract {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.StoredContract, 0, len(s.history))
	for _, h := range s.history {
		if filter.Match(h) {
			out = append(out, h)
		}
	}
	return out
}

// Stats summarizes the whole history.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{TotalAnalyses: len(s.history)}
	for _, h := range s.history {
		if h.OverallRisk == domain.RiskHigh {
			st.HighRiskCount++
		}
		if h.IsFavorite {
			st.Favorites++
		}
		st.TotalRedFlags += h.RedFlagCount
	}
	n := min(recentLimit, len(s.history))
	st.Recent = make([]domain.StoredContract, n)
	copy(st.Recent, s.history[:n])
	return st
}

// Snapshot returns the persistable part of the store.
func (s *Store) Snapshot() domain.HistorySnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.HistorySnapshot{
		Analyses: cloneSlice(s.analyses),
		History:  cloneSlice(s.history),
	}
}

// Subscribe registers l for change notifications and returns a function
// that unregisters it.
func (s *Store) Subscribe(l Listener) func() {
	s.mu.Lock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = l
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Store) historyIndex(id domain.AnalysisID) int {
	for i := range s.history {
		if s.history[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) persist(ctx context.Context, analyses []domain.ContractAnalysis, history []domain.StoredContract) error {
	if s.repo == nil {
		return nil
	}
	err := s.repo.SaveHistory(ctx, domain.HistorySnapshot{Analyses: analyses, History: history})
	if err != nil {
		s.log.Err(err).Str("func", "Store.persist").Msg("failed to save history snapshot")
		return fmt.Errorf("save history: %w", err)
	}
	return nil
}

// stateLocked copies the state and listeners; s.mu must be held.
func (s *Store) stateLocked() (State, []Listener) {
	if len(s.listeners) == 0 {
		return State{}, nil
	}
	state := State{
		Analyses:  cloneSlice(s.analyses),
		History:   cloneSlice(s.history),
		Analyzing: s.analyzing,
		Progress:  s.progress,
	}
	if s.current != nil {
		c := *s.current
		state.Current = &c
	}
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	return state, listeners
}

func notify(listeners []Listener, state State) {
	for _, l := range listeners {
		l(state)
	}
}

// cloneSlice copies v into a non-nil slice so empty lists encode as [].
func cloneSlice[T any](v []T) []T {
	out := make([]T, len(v))
	copy(out, v)
	return out
}

func truncate(analyses []domain.ContractAnalysis) []domain.ContractAnalysis {
	if len(analyses) > MaxStoredAnalyses {
		return analyses[:MaxStoredAnalyses]
	}
	return analyses
}
