package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	. "github.com/roelfdiedericks/waclaw/internal/logging"
)

// httpTimeout is generous: the backend may itself run a long agent turn.
const httpTimeout = 120 * time.Second

// HTTPInvoker talks to the bridge API: POST {base}/bridge.
// Session continuity is carried purely by echoing the last session id
// and trusting the backend to return a (possibly new) one.
type HTTPInvoker struct {
	base   string
	client *http.Client
}

// NewHTTPInvoker creates an HTTP-backed invoker for the given base URL.
func NewHTTPInvoker(base string) *HTTPInvoker {
	return &HTTPInvoker{
		base:   strings.TrimRight(base, "/"),
		client: &http.Client{Timeout: httpTimeout},
	}
}

// Name implements Invoker.
func (h *HTTPInvoker) Name() string { return "http" }

type bridgeRequest struct {
	Identity  string `json:"identity"`
	Name      string `json:"name"`
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

type bridgeResponse struct {
	Response  string `json:"response"`
	SessionID string `json:"session_id"`
}

// Invoke implements Invoker.
func (h *HTTPInvoker) Invoke(ctx context.Context, req Request) (*Result, error) {
	body := bridgeRequest{
		Identity: req.Identity,
		Name:     req.Name,
		Message:  req.Text,
	}
	if req.Session.Initialized {
		body.SessionID = req.Session.ID
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal bridge request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.base+"/bridge", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build bridge request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := h.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("bridge request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read bridge response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		L_warn("agent: bridge returned error status", "status", resp.StatusCode, "identity", req.Identity)
		return &Result{Text: string(raw), IsError: true}, nil
	}

	var parsed bridgeResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		L_warn("agent: bridge response unparseable", "error", err)
		return &Result{Text: string(raw), IsError: true}, nil
	}

	L_elapsed(start, "agent: http invocation complete", "identity", req.Identity)
	return &Result{
		Text:        parsed.Response,
		SessionID:   parsed.SessionID,
		Initialized: true,
	}, nil
}
