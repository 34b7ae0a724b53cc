package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensource-finance/loanrisk/internal/artifact/artifacttest"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(strings.NewReader(stdin), &stdout, &stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func applicationJSON(t *testing.T) string {
	t.Helper()
	raw, err := json.Marshal(artifacttest.Application())
	require.NoError(t, err)
	return string(raw)
}

func TestVersion(t *testing.T) {
	out, err := run(t, "", "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "loanrisk-cli "), "unexpected output: %q", out)
}

func TestPredict(t *testing.T) {
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/predict" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		gotBody, _ = io.ReadAll(r.Body)
		_, _ = w.Write([]byte(`{"approved":true,"approval_probability":0.9,"risk_score":10,` +
			`"suggested_interest_rate":8.5,"fraud_flag":false,"explanation":"looks good",` +
			`"application_id":"app-1","diagnostics":{"fallback_fields":["Gender"],"fraud_rules":null,"model_version":"v1"}}`))
	}))
	defer server.Close()

	t.Run("Summary", func(t *testing.T) {
		body := applicationJSON(t)
		out, err := run(t, body, "predict", "--addr", server.URL)
		require.NoError(t, err)
		for _, want := range []string{"APPROVED", "app-1", "8.50%", "Unseen values: Gender", "looks good"} {
			assert.Contains(t, out, want)
		}
		assert.Equal(t, body, string(gotBody), "request body forwarded unchanged")
	})

	t.Run("JSONOutput", func(t *testing.T) {
		out, err := run(t, applicationJSON(t), "predict", "--addr", server.URL, "--json")
		require.NoError(t, err)
		assert.Contains(t, out, `"application_id":"app-1"`)
	})

	t.Run("InvalidApplicationNotSent", func(t *testing.T) {
		gotBody = nil
		_, err := run(t, `{"gender":"Male"}`, "predict", "--addr", server.URL)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "married: is required")
		assert.Nil(t, gotBody, "invalid application must not reach the server")
	})

	t.Run("EmptyInput", func(t *testing.T) {
		_, err := run(t, "  ", "predict", "--addr", server.URL)
		assert.Error(t, err)
	})
}

func TestPredictServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"model unavailable"}`))
	}))
	defer server.Close()

	_, err := run(t, applicationJSON(t), "predict", "--addr", server.URL)
	var apiErr *apiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.Status)
}

func TestList(t *testing.T) {
	var gotLimit string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLimit = r.URL.Query().Get("limit")
		_, _ = w.Write([]byte(`[{"id":"d-2","approved":false,"risk_score":80,"timestamp":"2025-01-02T10:00:00Z"},` +
			`{"id":"d-1","approved":true,"risk_score":10,"timestamp":"2025-01-01T10:00:00Z"}]`))
	}))
	defer server.Close()

	out, err := run(t, "", "list", "--addr", server.URL, "-n", "2")
	require.NoError(t, err)
	assert.Equal(t, "2", gotLimit)
	assert.Less(t, strings.Index(out, "d-2"), strings.Index(out, "d-1"), "server order kept: %s", out)
}

func TestListEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	out, err := run(t, "", "list", "--addr", server.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "no decisions recorded")
}

func TestStats(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/stats" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"total_applications":4,"approved":3,"rejected":1,"approval_rate":75,"average_risk_score":22.5}`))
	}))
	defer server.Close()

	out, err := run(t, "", "stats", "--addr", server.URL)
	require.NoError(t, err)
	for _, want := range []string{"Total:", "4", "75.0%", "22.50"} {
		assert.Contains(t, out, want)
	}
}

func TestModelReload(t *testing.T) {
	var gotMethod, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		_, _ = w.Write([]byte(`{"version":"v2","model":"random_forest","classes":["N","Y"],` +
			`"features":["Gender"],"fraud_rules":["high_income"],"loaded_at":"2025-01-01T00:00:00Z"}`))
	}))
	defer server.Close()

	out, err := run(t, "", "model", "--addr", server.URL, "--reload")
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/api/model/reload", gotPath)
	assert.Contains(t, out, "v2")
	assert.Contains(t, out, "random_forest")
}

func TestEncodeOffline(t *testing.T) {
	dir := artifacttest.WriteDir(t)

	t.Run("Table", func(t *testing.T) {
		out, err := run(t, `{"gender":"Robot","married":"Yes","dependents":"0","education":"Graduate",`+
			`"self_employed":"No","property_area":"Urban","applicant_income":5000,"coapplicant_income":0,`+
			`"loan_amount":100,"loan_amount_term":360,"credit_history":1}`,
			"encode", "--artifacts", dir)
		require.NoError(t, err)
		assert.Contains(t, out, "unseen value, neutral code")
		assert.Contains(t, out, artifacttest.Version)
	})

	t.Run("EvaluateJSON", func(t *testing.T) {
		out, err := run(t, applicationJSON(t), "encode", "--artifacts", dir, "--evaluate", "--json")
		require.NoError(t, err)

		var got encodeOutput
		require.NoError(t, json.Unmarshal([]byte(out), &got), "invalid JSON output")
		assert.Len(t, got.Vector, 11)
		require.NotNil(t, got.Result)
		assert.True(t, got.Result.Approved)
		assert.Empty(t, got.Diag.FallbackFields)
	})

	t.Run("MissingArtifacts", func(t *testing.T) {
		_, err := run(t, applicationJSON(t), "encode", "--artifacts", t.TempDir())
		assert.Error(t, err, "empty artifact dir")
	})
}
