package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/bryanwahyu/contract-shield/internal/application"
	"github.com/bryanwahyu/contract-shield/internal/application/history"
	"github.com/bryanwahyu/contract-shield/internal/application/quota"
	"github.com/bryanwahyu/contract-shield/internal/domain/ai"
	domain "github.com/bryanwahyu/contract-shield/internal/domain/contracts"
	"github.com/bryanwahyu/contract-shield/internal/infra/ai/prompt"
	"github.com/bryanwahyu/contract-shield/internal/logger"
)

// Progress messages shown while an analysis runs.
const (
	ProgressSending  = "Sending contract to the model..."
	ProgressParsing  = "Parsing analysis results..."
	ProgressBuilding = "Building your report..."
)

// Recorder receives the outcome of every Analyze call.
type Recorder interface {
	ObserveAnalysis(outcome string, elapsed time.Duration)
}

// Service runs the upload flow: preflight checks, model call, normalization,
// commit to history, then count against the quota.
//
// Analyses from one Service run one at a time; a second caller waits for the
// first to finish or for its own context to end.
type Service struct {
	AI         ai.Client
	History    *history.Store
	Quota      *quota.Tracker
	Normalizer *Normalizer
	Reports    domain.ReportStore
	Clock      application.Clock
	Metrics    Recorder

	// ModelTimeout bounds each model call; zero means no limit.
	ModelTimeout time.Duration

	once sync.Once
	gate *semaphore.Weighted
}

// AnalyzeCommand is one contract submission.
type AnalyzeCommand struct {
	Text        string
	InputMethod domain.InputMethod
	FileName    string
}

// Dashboard aggregates history and quota figures.
type Dashboard struct {
	history.Stats
	TotalReviews int    `json:"totalReviews"`
	Remaining    int    `json:"remainingReviews"`
	Tier         string `json:"tier"`
}

// Analyze runs one analysis. Errors are ErrEmptyInput, ErrMissingCredential,
// ErrQuotaExceeded, *ai.ServiceError or *ParseError; none are retried here.
func (s *Service) Analyze(ctx context.Context, cmd AnalyzeCommand) (*domain.ContractAnalysis, error) {
	start := s.now()
	a, err := s.analyze(ctx, cmd)
	if s.Metrics != nil {
		s.Metrics.ObserveAnalysis(Outcome(err), s.now().Sub(start))
	}
	return a, err
}

func (s *Service) analyze(ctx context.Context, cmd AnalyzeCommand) (*domain.ContractAnalysis, error) {
	log := logger.FromContext(ctx)

	if strings.TrimSpace(cmd.Text) == "" {
		return nil, domain.ErrEmptyInput
	}

	if err := s.acquire(ctx); err != nil {
		return nil, &ai.ServiceError{Status: ai.StatusOther, Err: err}
	}
	defer s.gate.Release(1)

	credential := s.Quota.Credential()
	if strings.TrimSpace(credential) == "" {
		return nil, domain.ErrMissingCredential
	}
	if !s.Quota.CanReview() {
		return nil, domain.ErrQuotaExceeded
	}

	s.History.SetAnalyzing(true, ProgressSending)
	defer s.History.SetAnalyzing(false, "")

	callCtx := ctx
	if s.ModelTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.ModelTimeout)
		defer cancel()
	}
	raw, err := s.AI.Invoke(callCtx, prompt.GetSystemPrompt(), prompt.GetUserPrompt(cmd.Text), credential)
	if err != nil {
		se := ai.AsServiceError(err)
		log.Warn().
			Str("func", "Service.Analyze").
			Str("status", string(se.Status)).
			Int("http_status", se.StatusCode).
			Err(se.Err).
			Msg("model invocation failed")
		return nil, se
	}

	s.History.SetAnalyzing(true, ProgressParsing)
	a, err := s.normalizer().Normalize(raw, NormalizeRequest{
		RawText:     cmd.Text,
		InputMethod: cmd.InputMethod,
		FileName:    cmd.FileName,
	})
	if err != nil {
		log.Warn().Str("func", "Service.Analyze").Err(err).Int("raw_len", len(raw)).Msg("model response rejected")
		return nil, err
	}

	s.History.SetAnalyzing(true, ProgressBuilding)
	if err := s.History.Add(ctx, a); err != nil {
		return nil, err
	}
	if err := s.Quota.IncrementReviews(ctx); err != nil {
		log.Err(err).Str("func", "Service.Analyze").Str("id", string(a.ID)).Msg("analysis saved but review count not updated")
		return a, fmt.Errorf("analysis saved but review count not updated: %w", err)
	}

	log.Info().
		Str("id", string(a.ID)).
		Str("overall_risk", string(a.OverallRisk)).
		Int("clauses", len(a.Clauses)).
		Int("red_flags", len(a.RedFlags)).
		Msg("analysis completed")
	return a, nil
}

// Demo adds the sample analysis to the history without touching the quota.
func (s *Service) Demo(ctx context.Context) (*domain.ContractAnalysis, error) {
	now := s.now()
	a := DemoAnalysis(s.normalizer().newID(now), now)
	if err := s.History.Add(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Get returns a cached analysis or ErrAnalysisNotFound.
func (s *Service) Get(id domain.AnalysisID) (*domain.ContractAnalysis, error) {
	a, ok := s.History.Find(id)
	if !ok {
		return nil, domain.ErrAnalysisNotFound
	}
	return a, nil
}

// Export uploads the analysis as a JSON report and returns its URL.
func (s *Service) Export(ctx context.Context, id domain.AnalysisID) (string, error) {
	if s.Reports == nil {
		return "", domain.ErrExportDisabled
	}
	a, err := s.Get(id)
	if err != nil {
		return "", err
	}
	body, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}
	key := fmt.Sprintf("reports/%s/%s.json", a.CreatedAt.UTC().Format("2006/01"), a.ID)
	url, err := s.Reports.Put(ctx, key, body, "application/json")
	if err != nil {
		return "", fmt.Errorf("upload report: %w", err)
	}
	return url, nil
}

// Dashboard returns the home screen figures.
func (s *Service) Dashboard() Dashboard {
	p := s.Quota.Profile()
	return Dashboard{
		Stats:        s.History.Stats(),
		TotalReviews: p.TotalReviews,
		Remaining:    s.Quota.Remaining(),
		Tier:         string(p.Subscription.Tier),
	}
}

// Outcome labels err for metrics.
func Outcome(err error) string {
	var pe *domain.ParseError
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrEmptyInput):
		return "empty_input"
	case errors.Is(err, domain.ErrMissingCredential):
		return "missing_credential"
	case errors.Is(err, domain.ErrQuotaExceeded):
		return "quota_exceeded"
	case errors.Is(err, ai.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ai.ErrRateLimited):
		return "rate_limited"
	case errors.As(err, &pe):
		return "parse_error"
	}
	var se *ai.ServiceError
	if errors.As(err, &se) {
		return "service_error"
	}
	return "error"
}

func (s *Service) acquire(ctx context.Context) error {
	s.once.Do(func() { s.gate = semaphore.NewWeighted(1) })
	return s.gate.Acquire(ctx, 1)
}

func (s *Service) normalizer() *Normalizer {
	if s.Normalizer != nil {
		return s.Normalizer
	}
	return NewNormalizer(s.clock())
}

func (s *Service) clock() application.Clock {
	if s.Clock == nil {
		return application.SystemClock{}
	}
	return s.Clock
}

func (s *Service) now() time.Time { return s.clock().Now() }
