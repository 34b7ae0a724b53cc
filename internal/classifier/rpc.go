package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RPC calls a remote model server over HTTP.
//
// Request:
//
//	{"instances": [[1, 0, 5000, ...]]}
//
// Response:
//
//	{"probabilities": [[0.1, 0.9]]}
type RPC struct {
	Endpoint string
	Client   *http.Client
	classes  int
}

// NewRPC creates a remote model client. A zero timeout defaults to 5s.
func NewRPC(endpoint string, timeout time.Duration, nClasses int) *RPC {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &RPC{
		Endpoint: endpoint,
		Client:   &http.Client{Timeout: timeout},
		classes:  nClasses,
	}
}

// Name implements Model.
func (m *RPC) Name() string { return TypeRPC }

// PredictProba implements Model.
func (m *RPC) PredictProba(ctx context.Context, x []float64) ([]float64, error) {
	body, err := json.Marshal(map[string]any{"instances": [][]float64{x}})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rpc call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("rpc error: status=%d, body=%s", resp.StatusCode, string(msg))
	}

	var result struct {
		Probabilities [][]float64 `json:"probabilities"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(result.Probabilities) != 1 {
		return nil, fmt.Errorf("rpc response has %d rows, expected 1", len(result.Probabilities))
	}
	if m.classes > 0 && len(result.Probabilities[0]) != m.classes {
		return nil, fmt.Errorf("rpc response has %d classes, expected %d", len(result.Probabilities[0]), m.classes)
	}
	return result.Probabilities[0], nil
}
