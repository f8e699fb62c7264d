package bridge

import "sync"

// DefaultGuardCap bounds the outbound loop guard's memory.
const DefaultGuardCap = 500

// Guard is the outbound loop guard: a bounded, insertion-ordered set
// of transport message ids the bridge itself sent. Re-ingested echoes
// of those messages are rejected by the classifier.
//
// Eviction is FIFO by insertion order, not LRU: when the cap is
// exceeded the oldest 40% are dropped in one sweep to keep eviction
// cheap and steady-state memory bounded.
type Guard struct {
	mu    sync.Mutex
	ids   map[string]struct{}
	order []string
	cap   int
}

// NewGuard creates a guard with the given capacity (0 uses the default).
func NewGuard(capacity int) *Guard {
	if capacity <= 0 {
		capacity = DefaultGuardCap
	}
	return &Guard{
		ids: make(map[string]struct{}),
		cap: capacity,
	}
}

// Add records a message id the bridge has sent.
func (g *Guard) Add(id string) {
	if id == "" {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.ids[id]; ok {
		return
	}
	g.ids[id] = struct{}{}
	g.order = append(g.order, id)

	if len(g.order) > g.cap {
		drop := g.cap * 40 / 100
		if drop < 1 {
			drop = 1
		}
		for _, old := range g.order[:drop] {
			delete(g.ids, old)
		}
		g.order = append(g.order[:0], g.order[drop:]...)
	}
}

// Contains reports whether the id was sent by the bridge.
func (g *Guard) Contains(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.ids[id]
	return ok
}

// Len returns the number of tracked ids.
func (g *Guard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.order)
}
