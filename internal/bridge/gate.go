package bridge

import "sync"

// Gate enforces at most one in-flight agent invocation per conversant.
// A busy identity gets an immediate "still working" reply and the turn
// is dropped, not queued — a deliberate tradeoff that avoids unbounded
// backlog during long agent calls.
type Gate struct {
	mu   sync.Mutex
	busy map[string]struct{}
}

// NewGate creates an empty gate.
func NewGate() *Gate {
	return &Gate{busy: make(map[string]struct{})}
}

// TryEnter marks the identity busy. Returns false if it already is.
func (g *Gate) TryEnter(identity string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.busy[identity]; ok {
		return false
	}
	g.busy[identity] = struct{}{}
	return true
}

// Leave clears the identity's busy mark.
func (g *Gate) Leave(identity string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.busy, identity)
}

// IsBusy reports whether an invocation is in flight for the identity.
func (g *Gate) IsBusy(identity string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.busy[identity]
	return ok
}
