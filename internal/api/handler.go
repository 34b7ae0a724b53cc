package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/opensource-finance/loanrisk/internal/domain"
	"github.com/opensource-finance/loanrisk/internal/scoring"
)

// Listing bounds for GET /api/applications.
const (
	DefaultListLimit = 50
	MaxListLimit     = 1000
)

// retryAfterSeconds is sent with 503 responses for storage failures.
const retryAfterSeconds = "5"

const maxBodyBytes = 1 << 20

// Handler holds dependencies for API handlers.
type Handler struct {
	orch    *scoring.Orchestrator
	repo    domain.Repository
	cache   domain.Cache
	bus     domain.EventBus
	version string

	decisionTTL time.Duration
	async       bool
}

// NewHandler creates a new API handler.
func NewHandler(orch *scoring.Orchestrator, repo domain.Repository, cache domain.Cache, bus domain.EventBus, version string) *Handler {
	return &Handler{
		orch:        orch,
		repo:        repo,
		cache:       cache,
		bus:         bus,
		version:     version,
		decisionTTL: 10 * time.Minute,
	}
}

// PredictResponse is the response for POST /api/predict.
type PredictResponse struct {
	Approved              bool                `json:"approved"`
	ApprovalProbability   float64             `json:"approval_probability"`
	RiskScore             float64             `json:"risk_score"`
	SuggestedInterestRate float64             `json:"suggested_interest_rate"`
	FraudFlag             bool                `json:"fraud_flag"`
	Explanation           string              `json:"explanation"`
	ApplicationID         string              `json:"application_id"`
	Diagnostics           scoring.Diagnostics `json:"diagnostics"`
}

// SubmitResponse is the response for POST /api/applications.
type SubmitResponse struct {
	RequestID string `json:"request_id"`
	TraceID   string `json:"trace_id"`
	Status    string `json:"status"`
}

// ModelResponse describes the loaded artifact set.
type ModelResponse struct {
	Version     string     `json:"version"`
	Model       string     `json:"model"`
	ArtifactDir string     `json:"artifact_dir"`
	Classes     []string   `json:"classes"`
	Features    []string   `json:"features"`
	FraudRules  []string   `json:"fraud_rules"`
	TrainedAt   *time.Time `json:"trained_at,omitempty"`
	LoadedAt    time.Time  `json:"loaded_at"`
}

// Root returns the service banner.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "AI Loan Risk API",
		"status":  "active",
	})
}

// Predict handles POST /api/predict requests.
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	app, ok := decodeApplication(w, r)
	if !ok {
		return
	}

	ctx := scoring.WithTraceID(r.Context(), GetTraceID(r.Context()))
	result, err := h.orch.Score(ctx, app)
	if err != nil {
		writeScoreError(w, err)
		return
	}

	d := result.Decision
	if h.cache != nil {
		if err := h.cache.SetDecision(ctx, d, h.decisionTTL); err != nil {
			slog.Warn("failed to cache decision", "decision_id", d.ID, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, PredictResponse{
		Approved:              d.Approved,
		ApprovalProbability:   d.ApprovalProbability,
		RiskScore:             d.RiskScore,
		SuggestedInterestRate: d.SuggestedInterestRate,
		FraudFlag:             d.FraudFlag,
		Explanation:           d.Explanation,
		ApplicationID:         d.ID,
		Diagnostics:           result.Diagnostics,
	})
}

// SubmitApplication queues an application for the async worker. The
// outcome is published on the decision topics.
func (h *Handler) SubmitApplication(w http.ResponseWriter, r *http.Request) {
	if !h.async {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "async scoring is not enabled",
		})
		return
	}

	app, ok := decodeApplication(w, r)
	if !ok {
		return
	}

	msg := domain.ApplicationMessage{
		RequestID:   uuid.New().String(),
		TraceID:     GetTraceID(r.Context()),
		Application: app,
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to encode application",
		})
		return
	}

	if err := h.bus.Publish(r.Context(), domain.TopicApplicationSubmitted, payload); err != nil {
		slog.Error("failed to queue application", "request_id", msg.RequestID, "error", err)
		w.Header().Set("Retry-After", retryAfterSeconds)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "failed to queue application",
		})
		return
	}

	writeJSON(w, http.StatusAccepted, SubmitResponse{
		RequestID: msg.RequestID,
		TraceID:   msg.TraceID,
		Status:    "queued",
	})
}

// ListApplications returns the newest decision records first.
func (h *Handler) ListApplications(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeRepositoryUnavailable(w)
		return
	}

	limit := DefaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "limit must be a positive integer",
			})
			return
		}
		limit = min(n, MaxListLimit)
	}

	decisions, err := h.repo.ListDecisions(r.Context(), limit)
	if err != nil {
		slog.Error("failed to list decisions", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list applications",
		})
		return
	}

	writeJSON(w, http.StatusOK, decisions)
}

// GetApplication retrieves one decision record by ID.
func (h *Handler) GetApplication(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	// Records are immutable, so a cached copy is never stale.
	if h.cache != nil {
		d, err := h.cache.GetDecision(ctx, id)
		if err != nil {
			slog.Warn("decision cache read failed", "decision_id", id, "error", err)
		} else if d != nil {
			writeJSON(w, http.StatusOK, d)
			return
		}
	}

	if h.repo == nil {
		writeRepositoryUnavailable(w)
		return
	}

	d, err := h.repo.GetDecision(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "application not found",
		})
		return
	}
	if err != nil {
		slog.Error("failed to get decision", "decision_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get application",
		})
		return
	}

	if h.cache != nil {
		if err := h.cache.SetDecision(ctx, d, h.decisionTTL); err != nil {
			slog.Warn("failed to cache decision", "decision_id", id, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, d)
}

// Stats returns aggregate figures over all decisions.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeRepositoryUnavailable(w)
		return
	}

	stats, err := h.repo.DecisionStats(r.Context())
	if err != nil {
		slog.Error("failed to compute stats", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to compute stats",
		})
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// ModelInfo describes the loaded artifacts.
func (h *Handler) ModelInfo(w http.ResponseWriter, r *http.Request) {
	sc, err := h.orch.Holder().Current()
	if err != nil {
		writeScoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, modelResponse(sc))
}

// ReloadModel re-reads the artifact directory. The previous artifacts stay
// active when the reload fails.
func (h *Handler) ReloadModel(w http.ResponseWriter, r *http.Request) {
	sc, err := h.orch.Reload(r.Context())
	if err != nil {
		slog.Error("model reload failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":  "failed to reload model artifacts",
			"detail": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "model artifacts reloaded",
		"model":   modelResponse(sc),
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status := "healthy"
	checks := map[string]string{}

	check := func(name string, ping func() error) {
		if err := ping(); err != nil {
			checks[name] = "down"
			status = "degraded"
			return
		}
		checks[name] = "up"
	}

	if h.repo != nil {
		check("repository", func() error { return h.repo.Ping(ctx) })
	}
	if h.cache != nil {
		check("cache", func() error { return h.cache.Ping(ctx) })
	}
	if h.bus != nil {
		check("eventBus", func() error { return h.bus.Ping(ctx) })
	}
	check("model", func() error {
		_, err := h.orch.Holder().Current()
		return err
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  status,
		"version": h.version,
		"checks":  checks,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if _, err := h.orch.Holder().Current(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"ready":  "false",
			"reason": "model not loaded",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

func decodeApplication(w http.ResponseWriter, r *http.Request) (domain.Application, bool) {
	var req domain.ApplicationRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":  "invalid JSON request body",
			"detail": err.Error(),
		})
		return domain.Application{}, false
	}

	app, err := req.ToApplication()
	if err != nil {
		writeScoreError(w, err)
		return domain.Application{}, false
	}
	return app, true
}

// writeScoreError maps pipeline errors to status codes.
func writeScoreError(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "invalid application",
			"fields": verr.Fields,
		})
	case errors.Is(err, domain.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
	case errors.Is(err, domain.ErrModelUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "model not loaded",
		})
	case errors.Is(err, domain.ErrPersistence):
		w.Header().Set("Retry-After", retryAfterSeconds)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "decision could not be stored, retry later",
		})
	default:
		slog.Error("scoring failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "scoring failed",
		})
	}
}

func writeRepositoryUnavailable(w http.ResponseWriter) {
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{
		"error": "repository not available",
	})
}

func modelResponse(sc *scoring.Context) ModelResponse {
	rules := sc.Fraud.Rules()
	ids := make([]string, len(rules))
	for i, rule := range rules {
		ids[i] = rule.ID
	}
	resp := ModelResponse{
		Version:     sc.Version,
		Model:       sc.Classifier.ModelName(),
		ArtifactDir: sc.ArtifactDir,
		Classes:     sc.Classifier.Classes(),
		Features:    sc.Encoder.FeatureNames(),
		FraudRules:  ids,
		LoadedAt:    sc.LoadedAt,
	}
	if !sc.TrainedAt.IsZero() {
		t := sc.TrainedAt
		resp.TrainedAt = &t
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
