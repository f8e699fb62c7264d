// Package session provides per-conversant agent session state with
// debounced JSON persistence.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/roelfdiedericks/waclaw/internal/config"
	. "github.com/roelfdiedericks/waclaw/internal/logging"
)

// saveDebounce is the quiet period after the last mutation before the
// session map is flushed to disk.
const saveDebounce = 2 * time.Second

// Session is the agent session state for one conversant.
// ID is the opaque session token passed to the agent backend.
// Initialized flips to true only after the backend has accepted the
// session; until then every turn retries with a fresh create.
type Session struct {
	ID          string
	Initialized bool
}

// record is the on-disk form of a session. A bare JSON string is also
// accepted on load for files written by older HTTP-only deployments.
type record struct {
	SessionID   string `json:"session_id"`
	Initialized bool   `json:"initialized"`
}

func (r *record) UnmarshalJSON(data []byte) error {
	// Legacy format: identity -> "session-id"
	var legacy string
	if err := json.Unmarshal(data, &legacy); err == nil {
		r.SessionID = legacy
		r.Initialized = true
		return nil
	}

	type plain record
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = record(p)
	return nil
}

// Store holds the identity -> Session map and persists it as a single
// JSON snapshot. All mutations schedule a debounced save.
type Store struct {
	path string

	mu       sync.Mutex
	sessions map[string]*Session
	timer    *time.Timer
	dirty    bool
}

// NewStore loads the session map from path, starting empty if the file
// does not exist. A corrupt file is logged and treated as empty — the
// in-memory state is authoritative from then on.
func NewStore(path string) (*Store, error) {
	s := &Store{
		path:     path,
		sessions: make(map[string]*Session),
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read sessions file: %w", err)
	}

	var records map[string]record
	if err := json.Unmarshal(data, &records); err != nil {
		L_warn("session: sessions file unreadable, starting fresh", "path", path, "error", err)
		return s, nil
	}

	for identity, r := range records {
		s.sessions[identity] = &Session{ID: r.SessionID, Initialized: r.Initialized}
	}
	L_info("session: loaded", "path", path, "count", len(s.sessions))
	return s, nil
}

// GetOrCreate returns the session for an identity, lazily minting a
// fresh session id if none exists.
func (s *Store) GetOrCreate(identity string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[identity]; ok {
		return sess
	}

	sess := &Session{ID: uuid.New().String()}
	s.sessions[identity] = sess
	L_debug("session: created", "identity", identity, "id", sess.ID)
	s.scheduleSaveLocked()
	return sess
}

// Get returns the session for an identity, or nil.
func (s *Store) Get(identity string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[identity]
}

// Reset deletes the session record entirely. The next turn recreates
// it with a new id, so ids are never reused across a reset.
func (s *Store) Reset(identity string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[identity]; !ok {
		return false
	}
	delete(s.sessions, identity)
	L_info("session: reset", "identity", identity)
	s.scheduleSaveLocked()
	return true
}

// Update applies the result of a completed invocation: adopts a rotated
// session id (if any) and marks the session initialized.
func (s *Store) Update(identity, newID string, initialized bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[identity]
	if !ok {
		return
	}
	if newID != "" {
		sess.ID = newID
	}
	if initialized {
		sess.Initialized = true
	}
	s.scheduleSaveLocked()
}

// Regenerate replaces the session id for an uninitialized session so
// the next create attempt uses a fresh token.
func (s *Store) Regenerate(identity string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[identity]
	if !ok || sess.Initialized {
		return
	}
	sess.ID = uuid.New().String()
	s.scheduleSaveLocked()
}

// Count returns the number of tracked sessions.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// scheduleSaveLocked coalesces writes: any pending flush is cancelled
// and a new one is scheduled after the quiet period. Caller holds mu.
func (s *Store) scheduleSaveLocked() {
	s.dirty = true
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(saveDebounce, func() {
		if err := s.Flush(); err != nil {
			L_warn("session: save failed", "error", err)
		}
	})
}

// Flush writes the session map to disk immediately. Called by the
// debounce timer and unconditionally on shutdown. Disk errors leave
// the in-memory state authoritative.
func (s *Store) Flush() error {
	s.mu.Lock()
	if !s.dirty {
		s.mu.Unlock()
		return nil
	}
	records := make(map[string]record, len(s.sessions))
	for identity, sess := range s.sessions {
		records[identity] = record{SessionID: sess.ID, Initialized: sess.Initialized}
	}
	s.dirty = false
	s.mu.Unlock()

	if err := config.AtomicWriteJSON(s.path, records, 0600); err != nil {
		return fmt.Errorf("failed to write sessions file: %w", err)
	}
	L_debug("session: flushed", "path", s.path, "count", len(records))
	return nil
}

// Close cancels any pending debounce and flushes.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()
	return s.Flush()
}
