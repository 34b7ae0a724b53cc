package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensource-finance/loanrisk/internal/artifact"
	"github.com/opensource-finance/loanrisk/internal/artifact/artifacttest"
	"github.com/opensource-finance/loanrisk/internal/bus"
	"github.com/opensource-finance/loanrisk/internal/cache"
	"github.com/opensource-finance/loanrisk/internal/domain"
	"github.com/opensource-finance/loanrisk/internal/metrics"
	"github.com/opensource-finance/loanrisk/internal/scoring"
)

// memRepo is an in-memory domain.Repository with switchable failures.
type memRepo struct {
	mu        sync.Mutex
	decisions []*domain.Decision
	recordErr error
	readErr   error
	gets      int
}

func (r *memRepo) RecordDecision(ctx context.Context, d domain.Decision) (*domain.Decision, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recordErr != nil {
		return nil, r.recordErr
	}
	d.ID = fmt.Sprintf("dec-%03d", len(r.decisions)+1)
	d.CreatedAt = time.Now().UTC().Add(time.Duration(len(r.decisions)) * time.Millisecond)
	r.decisions = append(r.decisions, &d)
	return &d, nil
}

func (r *memRepo) GetDecision(ctx context.Context, id string) (*domain.Decision, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gets++
	if r.readErr != nil {
		return nil, r.readErr
	}
	for _, d := range r.decisions {
		if d.ID == id {
			return d, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memRepo) ListDecisions(ctx context.Context, limit int) ([]*domain.Decision, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.readErr != nil {
		return nil, r.readErr
	}
	out := make([]*domain.Decision, len(r.decisions))
	copy(out, r.decisions)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memRepo) DecisionStats(ctx context.Context) (domain.Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.readErr != nil {
		return domain.Stats{}, r.readErr
	}
	var approved int64
	var risk float64
	for _, d := range r.decisions {
		if d.Approved {
			approved++
		}
		risk += d.RiskScore
	}
	avg := 0.0
	if len(r.decisions) > 0 {
		avg = risk / float64(len(r.decisions))
	}
	return domain.NewStats(int64(len(r.decisions)), approved, avg), nil
}

func (r *memRepo) Ping(ctx context.Context) error { return nil }
func (r *memRepo) Close() error                   { return nil }

type testEnv struct {
	server *Server
	repo   *memRepo
	cache  *cache.LRUCache
	dir    string
}

// createTestServer creates a server scoring with the artifacttest bundle.
func createTestServer(t *testing.T, mutate ...func(*domain.Config)) *testEnv {
	t.Helper()

	cfg := domain.DefaultConfig()
	cfg.Model.ArtifactDir = artifacttest.WriteDir(t)
	for _, m := range mutate {
		m(cfg)
	}

	loader := scoring.Loader{Dir: cfg.Model.ArtifactDir, Options: scoring.OptionsFromConfig(cfg)}
	sc, err := loader.Load(context.Background())
	require.NoError(t, err, "load artifacts")

	repo := &memRepo{}
	lru := cache.NewLRUCache(100)
	orch := scoring.NewOrchestrator(scoring.NewHolder(sc), repo, scoring.WithLoader(loader))

	return &testEnv{
		server: NewServer(cfg, orch, repo, lru, nil, metrics.New(), "test-v1"),
		repo:   repo,
		cache:  lru,
		dir:    cfg.Model.ArtifactDir,
	}
}

func applicationBody(overrides map[string]any) []byte {
	body := map[string]any{
		"gender":             "Male",
		"married":            "Yes",
		"dependents":         "0",
		"education":          "Graduate",
		"self_employed":      "No",
		"applicant_income":   5000,
		"coapplicant_income": 0,
		"loan_amount":        100,
		"loan_amount_term":   360,
		"credit_history":     1,
		"property_area":      "Urban",
	}
	for k, v := range overrides {
		if v == nil {
			delete(body, k)
			continue
		}
		body[k] = v
	}
	data, _ := json.Marshal(body)
	return data
}

func do(t *testing.T, s *Server, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), v), "body: %s", rr.Body.String())
}

func TestRootEndpoint(t *testing.T) {
	env := createTestServer(t)

	rr := do(t, env.server, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp map[string]string
	decode(t, rr, &resp)
	assert.Equal(t, "AI Loan Risk API", resp["message"])
	assert.Equal(t, "active", resp["status"])
}

func TestPredictEndpoint(t *testing.T) {
	env := createTestServer(t)

	t.Run("Approved", func(t *testing.T) {
		rr := do(t, env.server, http.MethodPost, "/api/predict", applicationBody(nil))
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		var resp PredictResponse
		decode(t, rr, &resp)

		assert.True(t, resp.Approved)
		assert.InDelta(t, 0.9, resp.ApprovalProbability, 1e-9)
		assert.InDelta(t, 10, resp.RiskScore, 1e-9)
		assert.Equal(t, 8.5, resp.SuggestedInterestRate, "base rate")
		assert.False(t, resp.FraudFlag)
		assert.Contains(t, resp.Explanation, "approved with low risk")
		assert.NotEmpty(t, resp.ApplicationID)
		assert.Equal(t, artifacttest.Version, resp.Diagnostics.ModelVersion)
		assert.NotEmpty(t, rr.Header().Get(TraceIDHeader))
	})

	t.Run("Rejected", func(t *testing.T) {
		rr := do(t, env.server, http.MethodPost, "/api/predict", applicationBody(map[string]any{
			"credit_history":   0,
			"applicant_income": 2000,
			"loan_amount":      600,
		}))
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		var resp PredictResponse
		decode(t, rr, &resp)
		assert.False(t, resp.Approved)
		assert.Zero(t, resp.SuggestedInterestRate, "no rate for a rejection")
		assert.Equal(t, 100.0, resp.RiskScore, "risk clamps to 100")
		assert.Contains(t, resp.Explanation, "poor credit history, high loan-to-income ratio, low total income")
	})

	t.Run("StringNumbers", func(t *testing.T) {
		rr := do(t, env.server, http.MethodPost, "/api/predict", applicationBody(map[string]any{
			"applicant_income": "5000",
			"loan_amount":      "100",
			"credit_history":   "1",
		}))
		assert.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	})

	t.Run("UnknownCategoryFallsBack", func(t *testing.T) {
		rr := do(t, env.server, http.MethodPost, "/api/predict", applicationBody(map[string]any{
			"property_area": "Lunar",
		}))
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		var resp PredictResponse
		decode(t, rr, &resp)
		assert.Equal(t, []string{domain.ColumnPropertyArea}, resp.Diagnostics.FallbackFields)
	})

	t.Run("FraudFlag", func(t *testing.T) {
		rr := do(t, env.server, http.MethodPost, "/api/predict", applicationBody(map[string]any{
			"applicant_income": 60000,
		}))
		var resp PredictResponse
		decode(t, rr, &resp)
		assert.True(t, resp.FraudFlag, "high income is flagged")
		assert.NotEmpty(t, resp.Diagnostics.FraudRules)
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		rr := do(t, env.server, http.MethodPost, "/api/predict", []byte("not-json"))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("MissingField", func(t *testing.T) {
		rr := do(t, env.server, http.MethodPost, "/api/predict", applicationBody(map[string]any{
			"gender": nil,
		}))
		require.Equal(t, http.StatusBadRequest, rr.Code)

		var resp struct {
			Fields []domain.FieldError `json:"fields"`
		}
		decode(t, rr, &resp)
		require.Len(t, resp.Fields, 1)
		assert.Equal(t, "gender", resp.Fields[0].Field)
	})

	t.Run("InvalidRanges", func(t *testing.T) {
		rr := do(t, env.server, http.MethodPost, "/api/predict", applicationBody(map[string]any{
			"applicant_income": 0,
			"credit_history":   2,
		}))
		require.Equal(t, http.StatusBadRequest, rr.Code)

		var resp struct {
			Fields []domain.FieldError `json:"fields"`
		}
		decode(t, rr, &resp)
		assert.Len(t, resp.Fields, 2)
	})

	t.Run("NonNumericString", func(t *testing.T) {
		rr := do(t, env.server, http.MethodPost, "/api/predict", applicationBody(map[string]any{
			"loan_amount": "lots",
		}))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("PersistenceFailure", func(t *testing.T) {
		failing := createTestServer(t)
		failing.repo.recordErr = errors.New("disk full")

		rr := do(t, failing.server, http.MethodPost, "/api/predict", applicationBody(nil))
		require.Equal(t, http.StatusServiceUnavailable, rr.Code)
		assert.NotEmpty(t, rr.Header().Get("Retry-After"))
		assert.NotContains(t, rr.Body.String(), "application_id", "no decision may be returned when it was not stored")
	})
}

func TestPredictWithoutModel(t *testing.T) {
	cfg := domain.DefaultConfig()
	orch := scoring.NewOrchestrator(scoring.NewHolder(nil), &memRepo{})
	server := NewServer(cfg, orch, &memRepo{}, nil, nil, nil, "test-v1")

	rr := do(t, server, http.MethodPost, "/api/predict", applicationBody(nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	// Malformed input is still reported as such.
	rr = do(t, server, http.MethodPost, "/api/predict", applicationBody(map[string]any{"gender": nil}))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, server, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code, "ready")

	rr = do(t, server, http.MethodGet, "/api/model", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code, "model info")
}

func TestPredictScoringFailure(t *testing.T) {
	modelServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer modelServer.Close()

	b := artifacttest.Bundle()
	b.Model = artifact.ModelSpec{
		Type: "rpc",
		Raw:  []byte(fmt.Sprintf(`{"type":"rpc","endpoint":%q}`, modelServer.URL)),
	}
	sc, err := scoring.NewContext(b, scoring.Options{})
	require.NoError(t, err)

	repo := &memRepo{}
	orch := scoring.NewOrchestrator(scoring.NewHolder(sc), repo)
	server := NewServer(domain.DefaultConfig(), orch, repo, nil, nil, nil, "test-v1")

	rr := do(t, server, http.MethodPost, "/api/predict", applicationBody(nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Empty(t, repo.decisions, "nothing stored")
}

func TestApplicationsEndpoints(t *testing.T) {
	env := createTestServer(t)

	for i := 0; i < 3; i++ {
		rr := do(t, env.server, http.MethodPost, "/api/predict", applicationBody(map[string]any{
			"loan_amount": 100 + i,
		}))
		require.Equal(t, http.StatusOK, rr.Code, "predict %d", i)
	}

	t.Run("ListNewestFirst", func(t *testing.T) {
		rr := do(t, env.server, http.MethodGet, "/api/applications?limit=2", nil)
		require.Equal(t, http.StatusOK, rr.Code)

		var decisions []domain.Decision
		decode(t, rr, &decisions)
		require.Len(t, decisions, 2)
		assert.Equal(t, 102.0, decisions[0].LoanAmount, "newest first")
		assert.Equal(t, 101.0, decisions[1].LoanAmount)
	})

	t.Run("DefaultLimit", func(t *testing.T) {
		rr := do(t, env.server, http.MethodGet, "/api/applications", nil)
		var decisions []domain.Decision
		decode(t, rr, &decisions)
		assert.Len(t, decisions, 3)
	})

	t.Run("InvalidLimit", func(t *testing.T) {
		for _, q := range []string{"0", "-1", "abc"} {
			rr := do(t, env.server, http.MethodGet, "/api/applications?limit="+q, nil)
			assert.Equal(t, http.StatusBadRequest, rr.Code, "limit=%s", q)
		}
	})

	t.Run("GetByIDUsesCache", func(t *testing.T) {
		id := env.repo.decisions[0].ID
		env.repo.mu.Lock()
		env.repo.gets = 0
		env.repo.mu.Unlock()

		rr := do(t, env.server, http.MethodGet, "/api/applications/"+id, nil)
		require.Equal(t, http.StatusOK, rr.Code)

		var d domain.Decision
		decode(t, rr, &d)
		assert.Equal(t, id, d.ID)
		assert.Zero(t, env.repo.gets, "predict should have warmed the cache")
	})

	t.Run("GetByIDFallsBackToRepository", func(t *testing.T) {
		id := env.repo.decisions[1].ID
		require.NoError(t, env.cache.Delete(context.Background(), "decision:"+id))

		rr := do(t, env.server, http.MethodGet, "/api/applications/"+id, nil)
		require.Equal(t, http.StatusOK, rr.Code)

		cached, err := env.cache.GetDecision(context.Background(), id)
		require.NoError(t, err)
		assert.NotNil(t, cached, "repository read should populate the cache")
	})

	t.Run("GetByIDNotFound", func(t *testing.T) {
		rr := do(t, env.server, http.MethodGet, "/api/applications/unknown", nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("Stats", func(t *testing.T) {
		rr := do(t, env.server, http.MethodGet, "/api/stats", nil)
		require.Equal(t, http.StatusOK, rr.Code)

		var stats domain.Stats
		decode(t, rr, &stats)
		assert.Equal(t, int64(3), stats.TotalApplications)
		assert.Equal(t, int64(3), stats.Approved)
		assert.Zero(t, stats.Rejected)
		assert.Equal(t, 100.0, stats.ApprovalRate)
	})

	t.Run("StoreFailures", func(t *testing.T) {
		env.repo.mu.Lock()
		env.repo.readErr = errors.New("connection reset")
		env.repo.mu.Unlock()
		defer func() {
			env.repo.mu.Lock()
			env.repo.readErr = nil
			env.repo.mu.Unlock()
		}()

		for _, path := range []string{"/api/applications", "/api/stats"} {
			rr := do(t, env.server, http.MethodGet, path, nil)
			assert.Equal(t, http.StatusInternalServerError, rr.Code, path)
		}
	})
}

func TestStatsEmptyStore(t *testing.T) {
	env := createTestServer(t)

	rr := do(t, env.server, http.MethodGet, "/api/stats", nil)
	var stats domain.Stats
	decode(t, rr, &stats)
	assert.Equal(t, domain.Stats{}, stats)

	rr = do(t, env.server, http.MethodGet, "/api/applications", nil)
	assert.Equal(t, "[]", strings.TrimSpace(rr.Body.String()), "empty JSON array")
}

func TestModelEndpoints(t *testing.T) {
	env := createTestServer(t)

	t.Run("Info", func(t *testing.T) {
		rr := do(t, env.server, http.MethodGet, "/api/model", nil)
		require.Equal(t, http.StatusOK, rr.Code)

		var resp ModelResponse
		decode(t, rr, &resp)
		assert.Equal(t, artifacttest.Version, resp.Version)
		assert.Equal(t, "random_forest", resp.Model)
		assert.Len(t, resp.Features, 11)
		assert.Len(t, resp.FraudRules, 3, "builtin fraud rules")
	})

	t.Run("Reload", func(t *testing.T) {
		b := artifacttest.Bundle()
		b.Metadata.Version = "test-v2"
		require.NoError(t, artifact.Save(env.dir, b))

		rr := do(t, env.server, http.MethodPost, "/api/model/reload", nil)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		rr = do(t, env.server, http.MethodPost, "/api/predict", applicationBody(nil))
		var resp PredictResponse
		decode(t, rr, &resp)
		assert.Equal(t, "test-v2", resp.Diagnostics.ModelVersion)
	})

	t.Run("ReloadFailureKeepsModel", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(env.dir, artifact.ModelFile), []byte("{broken"), 0o644))

		rr := do(t, env.server, http.MethodPost, "/api/model/reload", nil)
		assert.Equal(t, http.StatusInternalServerError, rr.Code)

		rr = do(t, env.server, http.MethodPost, "/api/predict", applicationBody(nil))
		assert.Equal(t, http.StatusOK, rr.Code, "previous model keeps serving")
	})
}

func TestHealthEndpoints(t *testing.T) {
	env := createTestServer(t)

	t.Run("Health", func(t *testing.T) {
		rr := do(t, env.server, http.MethodGet, "/health", nil)
		assert.Equal(t, http.StatusOK, rr.Code)

		var resp struct {
			Status  string            `json:"status"`
			Version string            `json:"version"`
			Checks  map[string]string `json:"checks"`
		}
		decode(t, rr, &resp)
		assert.Equal(t, "healthy", resp.Status)
		assert.Equal(t, "test-v1", resp.Version)
		assert.Equal(t, "up", resp.Checks["model"])
		assert.Equal(t, "up", resp.Checks["repository"])
	})

	t.Run("Ready", func(t *testing.T) {
		rr := do(t, env.server, http.MethodGet, "/ready", nil)
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("Metrics", func(t *testing.T) {
		do(t, env.server, http.MethodPost, "/api/predict", applicationBody(nil))

		rr := do(t, env.server, http.MethodGet, "/metrics", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "loanrisk_decisions_total")
	})
}

func TestCORSHeaders(t *testing.T) {
	preflight := func(env *testEnv, origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, "/api/model/reload", nil)
		req.Header.Set("Origin", origin)
		rr := httptest.NewRecorder()
		env.server.Router().ServeHTTP(rr, req)
		return rr
	}

	t.Run("WildcardWithoutCredentials", func(t *testing.T) {
		env := createTestServer(t)
		rr := preflight(env, "http://evil.example")

		assert.Equal(t, http.StatusNoContent, rr.Code)
		assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
		assert.Empty(t, rr.Header().Get("Access-Control-Allow-Credentials"), "wildcard never allows credentials")
	})

	t.Run("ListedOriginEchoed", func(t *testing.T) {
		env := createTestServer(t, func(cfg *domain.Config) {
			cfg.Server.CORSOrigins = []string{"http://localhost:3000/"}
		})
		rr := preflight(env, "http://localhost:3000")

		assert.Equal(t, "http://localhost:3000", rr.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", rr.Header().Get("Access-Control-Allow-Credentials"))
		assert.Contains(t, rr.Header().Get("Vary"), "Origin")
	})

	t.Run("UnlistedOriginRefused", func(t *testing.T) {
		env := createTestServer(t, func(cfg *domain.Config) {
			cfg.Server.CORSOrigins = []string{"http://localhost:3000"}
		})
		rr := preflight(env, "http://evil.example")

		assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
		assert.Empty(t, rr.Header().Get("Access-Control-Allow-Methods"))
	})
}

func TestRequestIDs(t *testing.T) {
	for _, tracing := range []bool{false, true} {
		t.Run(fmt.Sprintf("tracing=%v", tracing), func(t *testing.T) {
			env := createTestServer(t, func(cfg *domain.Config) {
				cfg.Tracing.Enabled = tracing
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set(RequestIDHeader, "req-123")
			rr := httptest.NewRecorder()
			env.server.Router().ServeHTTP(rr, req)

			assert.Equal(t, "req-123", rr.Header().Get(RequestIDHeader), "request id echoed")
			// Without an installed tracer provider the request ID is the trace ID.
			assert.Equal(t, "req-123", rr.Header().Get(TraceIDHeader))
		})
	}
}

func TestRateLimit(t *testing.T) {
	env := createTestServer(t, func(cfg *domain.Config) {
		cfg.RateLimit.Requests = 2
		cfg.RateLimit.Window = time.Minute
	})

	for i := 0; i < 2; i++ {
		rr := do(t, env.server, http.MethodPost, "/api/predict", applicationBody(nil))
		require.Equal(t, http.StatusOK, rr.Code, "request %d", i+1)
	}

	rr := do(t, env.server, http.MethodPost, "/api/predict", applicationBody(nil))
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))

	// Reads are not limited.
	rr = do(t, env.server, http.MethodGet, "/api/stats", nil)
	assert.Equal(t, http.StatusOK, rr.Code, "stats stay available")
}

func TestSubmitApplication(t *testing.T) {
	t.Run("Disabled", func(t *testing.T) {
		env := createTestServer(t)
		rr := do(t, env.server, http.MethodPost, "/api/applications", applicationBody(nil))
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	})

	t.Run("Queued", func(t *testing.T) {
		eventBus := bus.NewChannelBus(10)
		defer eventBus.Close()

		received := make(chan *domain.Message, 1)
		_, err := eventBus.Subscribe(context.Background(), domain.TopicApplicationSubmitted, func(ctx context.Context, msg *domain.Message) error {
			received <- msg
			return nil
		})
		require.NoError(t, err)

		cfg := domain.DefaultConfig()
		cfg.Worker.Enabled = true
		orch := scoring.NewOrchestrator(scoring.NewHolder(nil), &memRepo{})
		server := NewServer(cfg, orch, &memRepo{}, nil, eventBus, nil, "test-v1")

		rr := do(t, server, http.MethodPost, "/api/applications", applicationBody(nil))
		require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())

		var resp SubmitResponse
		decode(t, rr, &resp)
		assert.NotEmpty(t, resp.RequestID)
		assert.Equal(t, "queued", resp.Status)

		select {
		case msg := <-received:
			var appMsg domain.ApplicationMessage
			require.NoError(t, json.Unmarshal(msg.Payload, &appMsg))
			assert.Equal(t, resp.RequestID, appMsg.RequestID)
			assert.Equal(t, 5000.0, appMsg.Application.ApplicantIncome)
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for queued application")
		}
	})

	t.Run("InvalidIsNotQueued", func(t *testing.T) {
		eventBus := bus.NewChannelBus(10)
		defer eventBus.Close()

		cfg := domain.DefaultConfig()
		cfg.Worker.Enabled = true
		orch := scoring.NewOrchestrator(scoring.NewHolder(nil), &memRepo{})
		server := NewServer(cfg, orch, &memRepo{}, nil, eventBus, nil, "test-v1")

		rr := do(t, server, http.MethodPost, "/api/applications", applicationBody(map[string]any{"credit_history": 5}))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}
