// Package agent defines the agent-invocation capability and its two
// backends: a stateless HTTP API and a per-turn subprocess.
package agent

import (
	"context"

	"github.com/roelfdiedericks/waclaw/internal/session"
)

// Request is one turn's input to the agent backend.
type Request struct {
	Identity string           // Stable conversant identity (normalized phone)
	Name     string           // Display name for context injection
	Text     string           // Message body, including any recognized image text
	Session  *session.Session // Current session state; never nil
}

// Result is the normalized outcome of an invocation, regardless of
// which backend produced it.
type Result struct {
	Text        string  // Response text (or error text when IsError)
	SessionID   string  // Session id to adopt, empty to keep the current one
	CostUSD     float64 // Reported cost, 0 when unknown
	IsError     bool    // Backend-level failure; session state is left untouched
	Initialized bool    // Backend accepted the session (create or resume succeeded)
}

// Invoker is the agent capability the orchestrator is written against.
type Invoker interface {
	// Invoke runs one turn. A non-nil error means the invocation could
	// not be attempted; backend-level failures come back as IsError
	// results so the caller can still reply to the user.
	Invoke(ctx context.Context, req Request) (*Result, error)
	// Name identifies the backend for status output.
	Name() string
}
