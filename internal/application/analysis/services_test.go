package analysis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/bryanwahyu/contract-shield/internal/application"
	"github.com/bryanwahyu/contract-shield/internal/application/history"
	"github.com/bryanwahyu/contract-shield/internal/application/quota"
	"github.com/bryanwahyu/contract-shield/internal/domain/ai"
	domain "github.com/bryanwahyu/contract-shield/internal/domain/contracts"
	"github.com/bryanwahyu/contract-shield/internal/domain/subscription"
	"github.com/bryanwahyu/contract-shield/internal/mock"
)

const testCredential = "sk-ant-REDACTED"

const e2eResponse = "```json\n" + `{
	"title": "Net 60 Services Agreement",
	"contractType": "Service Agreement",
	"overallRisk": "high",
	"overallSummary": "Payment terms are unfavorable.",
	"clauses": [
		{"title": "Payment", "originalText": "Payment due Net 60", "plainEnglish": "Paid in 60 days",
		 "riskLevel": "high", "riskExplanation": "Slow", "category": "payment"},
		{"title": "Misc", "originalText": "...", "plainEnglish": "...", "riskLevel": "bogus", "category": "other"}
	],
	"redFlags": ["Net 60 payment terms", "No late fee", "Unlimited revisions"],
	"missingClauses": [],
	"negotiationSummary": "Ask for Net 15."
}` + "\n```"

type recorder struct {
	mu       sync.Mutex
	outcomes []string
}

func (r *recorder) ObserveAnalysis(outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

type fixture struct {
	svc     *Service
	client  *mock.MockClient
	store   *history.Store
	tracker *quota.Tracker
	rec     *recorder
}

func newFixture(t *testing.T, credential string) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	clock := application.ClockFunc(func() time.Time { return normalizeNow })

	client := mock.NewMockClient(ctrl)
	store := history.NewStore(nil, nil)
	tracker := quota.NewTracker(nil, clock, nil)
	if credential != "" {
		require.NoError(t, tracker.SetCredential(context.Background(), credential))
	}
	rec := &recorder{}

	return &fixture{
		svc: &Service{
			AI:         client,
			History:    store,
			Quota:      tracker,
			Normalizer: NewNormalizer(clock),
			Clock:      clock,
			Metrics:    rec,
		},
		client:  client,
		store:   store,
		tracker: tracker,
		rec:     rec,
	}
}

func TestAnalyze_EndToEnd(t *testing.T) {
	f := newFixture(t, testCredential)
	ctx := context.Background()

	f.client.EXPECT().
		Invoke(gomock.Any(), gomock.Any(), gomock.Any(), testCredential).
		DoAndReturn(func(_ context.Context, system, user, _ string) (string, error) {
			assert.NotEmpty(t, system)
			assert.Contains(t, user, "Payment due Net 60...")
			return e2eResponse, nil
		})

	a, err := f.svc.Analyze(ctx, AnalyzeCommand{Text: "Payment due Net 60...", InputMethod: domain.InputPaste})
	require.NoError(t, err)

	require.Len(t, a.Clauses, 2)
	assert.Equal(t, domain.RiskHigh, a.OverallRisk)
	assert.Equal(t, domain.RiskHigh, a.Clauses[0].RiskLevel)
	assert.Equal(t, domain.CategoryPayment, a.Clauses[0].Category)
	assert.Equal(t, domain.RiskInfo, a.Clauses[1].RiskLevel)

	found, ok := f.store.Find(a.ID)
	require.True(t, ok)
	assert.Equal(t, a.ID, found.ID)

	entries := f.store.History(domain.FilterAll)
	require.Len(t, entries, 1)
	assert.Equal(t, 3, entries[0].RedFlagCount)
	assert.Equal(t, 2, entries[0].ClauseCount)

	cur, ok := f.store.Current()
	require.True(t, ok)
	assert.Equal(t, a.ID, cur.ID)

	analyzing, progress := f.store.Status()
	assert.False(t, analyzing)
	assert.Empty(t, progress)

	assert.Equal(t, 1, f.tracker.EffectiveUsed())
	assert.Equal(t, 1, f.tracker.Profile().TotalReviews)
	assert.Equal(t, []string{"success"}, f.rec.outcomes)
}

func TestAnalyze_Preflight(t *testing.T) {
	tests := []struct {
		name       string
		credential string
		text       string
		prepare    func(f *fixture)
		want       error
		outcome    string
	}{
		{name: "empty text", credential: testCredential, text: "", want: domain.ErrEmptyInput, outcome: "empty_input"},
		{name: "whitespace text", credential: testCredential, text: " \n\t ", want: domain.ErrEmptyInput, outcome: "empty_input"},
		{name: "empty text checked before credential", credential: "", text: "  ", want: domain.ErrEmptyInput, outcome: "empty_input"},
		{name: "no credential", credential: "", text: "contract", want: domain.ErrMissingCredential, outcome: "missing_credential"},
		{
			name: "quota exhausted", credential: testCredential, text: "contract",
			prepare: func(f *fixture) {
				for range subscription.FreeReviewsPerMonth {
					require.NoError(t, f.tracker.IncrementReviews(context.Background()))
				}
			},
			want: domain.ErrQuotaExceeded, outcome: "quota_exceeded",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.credential)
			if tt.prepare != nil {
				tt.prepare(f)
			}
			// no Invoke expectation: any model call fails the test

			a, err := f.svc.Analyze(context.Background(), AnalyzeCommand{Text: tt.text})
			assert.Nil(t, a)
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, f.store.History(domain.FilterAll))
			assert.Equal(t, []string{tt.outcome}, f.rec.outcomes)
		})
	}
}

func TestAnalyze_ProIgnoresQuota(t *testing.T) {
	f := newFixture(t, testCredential)
	ctx := context.Background()
	require.NoError(t, f.tracker.UpgradeToPro(ctx))

	f.client.EXPECT().Invoke(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(`{"title":"x"}`, nil).Times(5)

	for range 5 {
		_, err := f.svc.Analyze(ctx, AnalyzeCommand{Text: "contract"})
		require.NoError(t, err)
	}
	assert.Len(t, f.store.History(domain.FilterAll), 5)
	assert.Equal(t, subscription.Unlimited, f.tracker.Remaining())
}

func TestAnalyze_ServiceErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  ai.Status
		is      error
		outcome string
	}{
		{"unauthorized", ai.NewHTTPError(401, "invalid x-api-key"), ai.StatusUnauthorized, ai.ErrUnauthorized, "unauthorized"},
		{"forbidden", ai.NewHTTPError(403, ""), ai.StatusUnauthorized, ai.ErrUnauthorized, "unauthorized"},
		{"rate limited", ai.NewHTTPError(429, "slow down"), ai.StatusRateLimited, ai.ErrRateLimited, "rate_limited"},
		{"server error", ai.NewHTTPError(529, "overloaded"), ai.StatusOther, nil, "service_error"},
		{"transport", errors.New("dial tcp: connection refused"), ai.StatusOther, nil, "service_error"},
		{"timeout", context.DeadlineExceeded, ai.StatusOther, context.DeadlineExceeded, "service_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, testCredential)
			f.client.EXPECT().Invoke(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return("", tt.err)

			a, err := f.svc.Analyze(context.Background(), AnalyzeCommand{Text: "contract"})
			assert.Nil(t, a)

			var se *ai.ServiceError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.status, se.Status)
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
			assert.Empty(t, f.store.History(domain.FilterAll))
			assert.Equal(t, 0, f.tracker.EffectiveUsed())
			assert.Equal(t, []string{tt.outcome}, f.rec.outcomes)

			analyzing, _ := f.store.Status()
			assert.False(t, analyzing)
		})
	}
}

func TestAnalyze_ParseErrorCommitsNothing(t *testing.T) {
	f := newFixture(t, testCredential)
	f.client.EXPECT().Invoke(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return("Sorry, I can't help with that.", nil)

	a, err := f.svc.Analyze(context.Background(), AnalyzeCommand{Text: "contract"})
	assert.Nil(t, a)
	var pe *domain.ParseError
	require.ErrorAs(t, err, &pe)

	assert.Empty(t, f.store.History(domain.FilterAll))
	assert.Equal(t, 0, f.tracker.EffectiveUsed())
	assert.Equal(t, []string{"parse_error"}, f.rec.outcomes)
}

func TestAnalyze_HistoryWriteFailureSkipsCount(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mock.NewMockHistoryRepository(ctrl)
	repo.EXPECT().SaveHistory(gomock.Any(), gomock.Any()).Return(errors.New("disk full"))

	f := newFixture(t, testCredential)
	f.svc.History = history.NewStore(repo, nil)
	f.client.EXPECT().Invoke(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(`{"title":"x"}`, nil)

	a, err := f.svc.Analyze(context.Background(), AnalyzeCommand{Text: "contract"})
	assert.Nil(t, a)
	require.Error(t, err)
	assert.Equal(t, 0, f.tracker.EffectiveUsed())
}

func TestAnalyze_CountFailureKeepsCommittedAnalysis(t *testing.T) {
	ctrl := gomock.NewController(t)
	profiles := mock.NewMockProfileRepository(ctrl)
	clock := application.ClockFunc(func() time.Time { return normalizeNow })

	f := newFixture(t, "")
	gomock.InOrder(
		profiles.EXPECT().SaveProfile(gomock.Any(), gomock.Any()).Return(nil),
		profiles.EXPECT().SaveProfile(gomock.Any(), gomock.Any()).Return(errors.New("read-only file system")),
	)
	f.svc.Quota = quota.NewTracker(profiles, clock, nil)
	require.NoError(t, f.svc.Quota.SetCredential(context.Background(), testCredential))
	f.client.EXPECT().Invoke(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(`{"title":"x"}`, nil)

	a, err := f.svc.Analyze(context.Background(), AnalyzeCommand{Text: "contract"})
	require.Error(t, err)
	require.NotNil(t, a)

	_, ok := f.store.Find(a.ID)
	assert.True(t, ok)
	assert.Equal(t, 0, f.svc.Quota.EffectiveUsed())
}

func TestAnalyze_ProgressReported(t *testing.T) {
	f := newFixture(t, testCredential)

	var mu sync.Mutex
	var seen []string
	unsubscribe := f.store.Subscribe(func(s history.State) {
		mu.Lock()
		defer mu.Unlock()
		if s.Analyzing && (len(seen) == 0 || seen[len(seen)-1] != s.Progress) {
			seen = append(seen, s.Progress)
		}
	})
	defer unsubscribe()

	f.client.EXPECT().Invoke(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(`{}`, nil)

	_, err := f.svc.Analyze(context.Background(), AnalyzeCommand{Text: "contract"})
	require.NoError(t, err)

	assert.Equal(t, []string{ProgressSending, ProgressParsing, ProgressBuilding}, seen)
}

func TestAnalyze_Serialized(t *testing.T) {
	f := newFixture(t, testCredential)
	require.NoError(t, f.tracker.UpgradeToPro(context.Background()))

	var mu sync.Mutex
	inFlight, maxInFlight := 0, 0
	f.client.EXPECT().Invoke(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, string, string, string) (string, error) {
			mu.Lock()
			inFlight++
			maxInFlight = max(maxInFlight, inFlight)
			mu.Unlock()
			time.Sleep(5 * time.Millisecond)
			mu.Lock()
			inFlight--
			mu.Unlock()
			return `{}`, nil
		}).Times(4)

	var wg sync.WaitGroup
	for range 4 {
		wg.Go(func() {
			_, err := f.svc.Analyze(context.Background(), AnalyzeCommand{Text: "contract"})
			assert.NoError(t, err)
		})
	}
	wg.Wait()

	assert.Equal(t, 1, maxInFlight)
	assert.Len(t, f.store.History(domain.FilterAll), 4)
}

func TestAnalyze_CancelledWhileWaiting(t *testing.T) {
	f := newFixture(t, testCredential)
	f.svc.acquire(context.Background())
	defer f.svc.gate.Release(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a, err := f.svc.Analyze(ctx, AnalyzeCommand{Text: "contract"})
	assert.Nil(t, a)
	var se *ai.ServiceError
	require.ErrorAs(t, err, &se)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDemo_DoesNotCount(t *testing.T) {
	f := newFixture(t, "")

	a, err := f.svc.Demo(context.Background())
	require.NoError(t, err)

	_, ok := f.store.Find(a.ID)
	assert.True(t, ok)
	assert.Equal(t, 0, f.tracker.EffectiveUsed())
	assert.Equal(t, 0, f.tracker.Profile().TotalReviews)
}

func TestGet_NotFound(t *testing.T) {
	f := newFixture(t, "")
	_, err := f.svc.Get("cs_missing")
	assert.ErrorIs(t, err, domain.ErrAnalysisNotFound)
}

func TestExport(t *testing.T) {
	ctrl := gomock.NewController(t)
	reports := mock.NewMockReportStore(ctrl)

	f := newFixture(t, "")
	f.svc.Reports = reports
	a, err := f.svc.Demo(context.Background())
	require.NoError(t, err)

	reports.EXPECT().
		Put(gomock.Any(), "reports/2026/05/"+string(a.ID)+".json", gomock.Any(), "application/json").
		DoAndReturn(func(_ context.Context, _ string, body []byte, _ string) (string, error) {
			assert.Contains(t, string(body), string(a.ID))
			return "https://minio.local/reports/x.json", nil
		})

	url, err := f.svc.Export(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://minio.local/reports/x.json", url)
}

func TestExport_Disabled(t *testing.T) {
	f := newFixture(t, "")
	_, err := f.svc.Export(context.Background(), "cs_any")
	assert.ErrorIs(t, err, domain.ErrExportDisabled)
}

func TestDashboard(t *testing.T) {
	f := newFixture(t, testCredential)
	f.client.EXPECT().Invoke(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(`{"overallRisk":"high","redFlags":["a","b"]}`, nil)

	_, err := f.svc.Analyze(context.Background(), AnalyzeCommand{Text: "contract"})
	require.NoError(t, err)
	_, err = f.svc.Demo(context.Background())
	require.NoError(t, err)

	d := f.svc.Dashboard()
	assert.Equal(t, 2, d.TotalAnalyses)
	assert.Equal(t, 1, d.HighRiskCount)
	assert.Equal(t, 7, d.TotalRedFlags)
	assert.Equal(t, 1, d.TotalReviews)
	assert.Equal(t, 2, d.Remaining)
	assert.Equal(t, "free", d.Tier)
	assert.Len(t, d.Recent, 2)
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "success", Outcome(nil))
	assert.Equal(t, "error", Outcome(errors.New("boom")))
	assert.Equal(t, "service_error", Outcome(&ai.ServiceError{Status: ai.StatusOther, Err: errors.New("x")}))
}

func TestAnalyze_ModelTimeout(t *testing.T) {
	f := newFixture(t, testCredential)
	f.svc.ModelTimeout = 50 * time.Millisecond

	f.client.EXPECT().Invoke(gomock.Any(), gomock.Any(), gomock.Any(), testCredential).
		DoAndReturn(func(ctx context.Context, _, _, _ string) (string, error) {
			_, ok := ctx.Deadline()
			assert.True(t, ok)
			<-ctx.Done()
			return "", ctx.Err()
		})

	start := time.Now()
	a, err := f.svc.Analyze(context.Background(), AnalyzeCommand{Text: "contract"})
	assert.Nil(t, a)
	var se *ai.ServiceError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, ai.StatusOther, se.Status)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)

	// the slot is released for the next caller
	f.client.EXPECT().Invoke(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(e2eResponse, nil)
	_, err = f.svc.Analyze(context.Background(), AnalyzeCommand{Text: "contract"})
	require.NoError(t, err)
}
