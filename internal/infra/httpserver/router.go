package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	appanalysis "github.com/bryanwahyu/contract-shield/internal/application/analysis"
	domai "github.com/bryanwahyu/contract-shield/internal/domain/ai"
	domain "github.com/bryanwahyu/contract-shield/internal/domain/contracts"
	"github.com/bryanwahyu/contract-shield/internal/domain/subscription"
	"github.com/bryanwahyu/contract-shield/internal/logger"
	mw "github.com/bryanwahyu/contract-shield/internal/middleware"
)

// Options configures NewRouter. Only Service is required.
type Options struct {
	Service          *appanalysis.Service
	Provider         string
	MaxContractBytes int
	Logger           *logger.Logger
	Metrics          interface {
		mw.RequestObserver
		Handler() http.Handler
	}
	HealthCheckers map[string]mw.HealthChecker
	AccessTokens   []string
	CORSOrigins    []string
	RateLimiter    *mw.RateLimiter
}

type Router struct {
	svc      *appanalysis.Service
	provider string
	maxBytes int
}

func NewRouter(opts Options) http.Handler {
	r := &Router{svc: opts.Service, provider: opts.Provider, maxBytes: opts.MaxContractBytes}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}

	mux := chi.NewRouter()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.RealIP)
	mux.Use(mw.Logging(log))
	if opts.Metrics != nil {
		mux.Use(mw.Metrics(opts.Metrics))
	}
	mux.Use(middleware.Recoverer)
	if len(opts.CORSOrigins) > 0 {
		mux.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
			ExposedHeaders: []string{"Retry-After"},
			MaxAge:         300,
		}))
	}

	mux.Get("/health", mw.HealthHandler(opts.HealthCheckers))
	mux.Get("/livez", mw.LivenessHandler)
	if opts.Metrics != nil {
		mux.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}

	mux.Route("/v1", func(rt chi.Router) {
		rt.Use(mw.AccessToken(opts.AccessTokens))
		if opts.RateLimiter != nil {
			rt.Use(mw.RateLimit(opts.RateLimiter))
		}

		rt.Post("/analyses", r.wrap(r.handleAnalyze))
		rt.Post("/analyses/demo", r.wrap(r.handleDemo))
		rt.Get("/analyses/{id}", r.wrap(r.handleGet))
		rt.Post("/analyses/{id}/export", r.wrap(r.handleExport))

		rt.Get("/history", r.wrap(r.handleHistory))
		rt.Post("/history/{id}/favorite", r.wrap(r.handleToggleFavorite))
		rt.Delete("/history/{id}", r.wrap(r.handleDelete))

		rt.Get("/current", r.wrap(r.handleCurrent))
		rt.Get("/status", r.wrap(r.handleStatus))
		rt.Get("/dashboard", r.wrap(r.handleDashboard))

		rt.Get("/profile", r.wrap(r.handleProfile))
		rt.Put("/profile", r.wrap(r.handleUpdateProfile))
		rt.Put("/profile/credential", r.wrap(r.handleSetCredential))

		rt.Post("/subscription/upgrade", r.wrap(r.handleUpgrade))
		rt.Post("/subscription/reset", r.wrap(r.handleResetMonth))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// badRequest marks client input errors raised by the handlers themselves.
type badRequest struct{ msg string }

func (e badRequest) Error() string { return e.msg }

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			status, code, msg := classify(err)
			if status >= http.StatusInternalServerError {
				logger.FromRequest(req).Err(err).Str("path", req.URL.Path).Msg("request failed")
			}
			mw.WriteError(w, status, code, msg)
		}
	}
}

func classify(err error) (int, string, string) {
	var br badRequest
	var pe *domain.ParseError
	var se *domai.ServiceError
	switch {
	case errors.As(err, &br):
		return http.StatusBadRequest, "bad_request", br.msg
	case errors.Is(err, domain.ErrEmptyInput):
		return http.StatusBadRequest, "empty_input", "contract text is empty"
	case errors.Is(err, domain.ErrMissingCredential):
		return http.StatusPreconditionFailed, "missing_credential", "add your model credential in the profile first"
	case errors.Is(err, domain.ErrQuotaExceeded):
		return http.StatusPaymentRequired, "quota_exceeded", "monthly review limit reached; upgrade to pro for unlimited reviews"
	case errors.Is(err, domain.ErrAnalysisNotFound):
		return http.StatusNotFound, "not_found", "analysis not found"
	case errors.Is(err, domain.ErrExportDisabled):
		return http.StatusServiceUnavailable, "export_disabled", "report export is not configured"
	case errors.Is(err, domai.ErrUnauthorized):
		return http.StatusBadGateway, "unauthorized", "the model service rejected your credential; check it in your profile"
	case errors.Is(err, domai.ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited", "the model service is rate limiting requests; wait a moment and retry"
	case errors.As(err, &pe):
		return http.StatusUnprocessableEntity, "parse_error", "the model response could not be read; please try again"
	case errors.As(err, &se):
		return http.StatusBadGateway, "service_error", "the model service failed; please try again"
	}
	return http.StatusInternalServerError, "internal", "internal error"
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func decode(req *http.Request, v any) error {
	if err := json.NewDecoder(req.Body).Decode(v); err != nil {
		return badRequest{msg: "invalid JSON body"}
	}
	return nil
}

func pathID(req *http.Request) (domain.AnalysisID, error) {
	id := chi.URLParam(req, "id")
	if err := mw.ValidateAnalysisID(id); err != nil {
		return "", badRequest{msg: err.Error()}
	}
	return domain.AnalysisID(id), nil
}

// POST /v1/analyses
// Body: {"text": "...", "inputMethod": "paste", "fileName": "nda.pdf"}
func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Text        string `json:"text"`
		InputMethod string `json:"inputMethod"`
		FileName    string `json:"fileName"`
	}
	if err := decode(req, &body); err != nil {
		return err
	}
	if err := mw.ValidateContractText(body.Text, r.maxBytes); err != nil {
		return badRequest{msg: err.Error()}
	}

	a, err := r.svc.Analyze(req.Context(), appanalysis.AnalyzeCommand{
		Text:        body.Text,
		InputMethod: domain.InputMethod(body.InputMethod),
		FileName:    mw.SanitizeString(body.FileName),
	})
	if err != nil && a == nil {
		return err
	}
	// a committed analysis is returned even if the review count failed to save
	return writeJSON(w, http.StatusCreated, a)
}

// POST /v1/analyses/demo
func (r *Router) handleDemo(w http.ResponseWriter, req *http.Request) error {
	a, err := r.svc.Demo(req.Context())
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, a)
}

// GET /v1/analyses/{id}
func (r *Router) handleGet(w http.ResponseWriter, req *http.Request) error {
	id, err := pathID(req)
	if err != nil {
		return err
	}
	a, err := r.svc.Get(id)
	if err != nil {
		return err
	}
	r.svc.History.SetCurrent(id)
	return writeJSON(w, http.StatusOK, a)
}

// POST /v1/analyses/{id}/export
func (r *Router) handleExport(w http.ResponseWriter, req *http.Request) error {
	id, err := pathID(req)
	if err != nil {
		return err
	}
	url, err := r.svc.Export(req.Context(), id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// GET /v1/history?filter=favorites
func (r *Router) handleHistory(w http.ResponseWriter, req *http.Request) error {
	filter, err := mw.ParseHistoryFilter(req.URL.Query().Get("filter"))
	if err != nil {
		return badRequest{msg: err.Error()}
	}
	return writeJSON(w, http.StatusOK, r.svc.History.History(filter))
}

// POST /v1/history/{id}/favorite
func (r *Router) handleToggleFavorite(w http.ResponseWriter, req *http.Request) error {
	id, err := pathID(req)
	if err != nil {
		return err
	}
	if err := r.svc.History.ToggleFavorite(req.Context(), id); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// DELETE /v1/history/{id}
func (r *Router) handleDelete(w http.ResponseWriter, req *http.Request) error {
	id, err := pathID(req)
	if err != nil {
		return err
	}
	if err := r.svc.History.Delete(req.Context(), id); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// GET /v1/current
func (r *Router) handleCurrent(w http.ResponseWriter, req *http.Request) error {
	a, ok := r.svc.History.Current()
	if !ok {
		return domain.ErrAnalysisNotFound
	}
	return writeJSON(w, http.StatusOK, a)
}

type statusView struct {
	Analyzing        bool   `json:"analyzing"`
	Progress         string `json:"progress"`
	CanReview        bool   `json:"canReview"`
	HasCredential    bool   `json:"hasCredential"`
	RemainingReviews int    `json:"remainingReviews"`
}

// GET /v1/status
func (r *Router) handleStatus(w http.ResponseWriter, req *http.Request) error {
	analyzing, progress := r.svc.History.Status()
	return writeJSON(w, http.StatusOK, statusView{
		Analyzing:        analyzing,
		Progress:         progress,
		CanReview:        r.svc.Quota.CanReview(),
		HasCredential:    r.svc.Quota.HasCredential(),
		RemainingReviews: r.svc.Quota.Remaining(),
	})
}

// GET /v1/dashboard
func (r *Router) handleDashboard(w http.ResponseWriter, req *http.Request) error {
	return writeJSON(w, http.StatusOK, r.svc.Dashboard())
}

type profileView struct {
	Name             string                    `json:"name"`
	Email            string                    `json:"email"`
	JoinedAt         time.Time                 `json:"joinedAt"`
	TotalReviews     int                       `json:"totalReviews"`
	Subscription     subscription.Subscription `json:"subscription"`
	ReviewsThisMonth int                       `json:"reviewsThisMonth"`
	RemainingReviews int                       `json:"remainingReviews"`
	HasCredential    bool                      `json:"hasCredential"`
	Credential       string                    `json:"credential,omitempty"`
}

func (r *Router) profileView() profileView {
	p := r.svc.Quota.Profile()
	return profileView{
		Name:             p.Name,
		Email:            p.Email,
		JoinedAt:         p.JoinedAt,
		TotalReviews:     p.TotalReviews,
		Subscription:     p.Subscription,
		ReviewsThisMonth: r.svc.Quota.EffectiveUsed(),
		RemainingReviews: r.svc.Quota.Remaining(),
		HasCredential:    strings.TrimSpace(p.Credential) != "",
		Credential:       mw.MaskCredential(p.Credential),
	}
}

// GET /v1/profile
func (r *Router) handleProfile(w http.ResponseWriter, req *http.Request) error {
	return writeJSON(w, http.StatusOK, r.profileView())
}

// PUT /v1/profile
// Body: {"name": "...", "email": "..."}
func (r *Router) handleUpdateProfile(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := decode(req, &body); err != nil {
		return err
	}
	if err := r.svc.Quota.SetProfile(req.Context(), mw.SanitizeString(body.Name), mw.SanitizeString(body.Email)); err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, r.profileView())
}

// PUT /v1/profile/credential
// Body: {"credential": "sk-ant-..."}; an empty credential clears it.
func (r *Router) handleSetCredential(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Credential string `json:"credential"`
	}
	if err := decode(req, &body); err != nil {
		return err
	}
	cred := strings.TrimSpace(body.Credential)
	if err := mw.ValidateCredential(r.provider, cred); err != nil {
		return badRequest{msg: err.Error()}
	}
	if err := r.svc.Quota.SetCredential(req.Context(), cred); err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, r.profileView())
}

// POST /v1/subscription/upgrade
func (r *Router) handleUpgrade(w http.ResponseWriter, req *http.Request) error {
	if err := r.svc.Quota.UpgradeToPro(req.Context()); err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, r.profileView())
}

// POST /v1/subscription/reset
func (r *Router) handleResetMonth(w http.ResponseWriter, req *http.Request) error {
	if err := r.svc.Quota.ResetMonthlyCount(req.Context()); err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, r.profileView())
}
