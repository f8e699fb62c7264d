package bridge

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/roelfdiedericks/waclaw/internal/session"
)

func testSessions(t *testing.T) *session.Store {
	t.Helper()
	store, err := session.NewStore(filepath.Join(t.TempDir(), "sessions.json"))
	if err != nil {
		t.Fatalf("failed to create session store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestInterceptUnknownTextNotHandled(t *testing.T) {
	ic := NewInterceptor(testSessions(t), NewGate(), "subprocess", nil)

	if _, handled := ic.Intercept("hello there", "alice"); handled {
		t.Error("ordinary text must not be intercepted")
	}
	if _, handled := ic.Intercept("!unknown", "alice"); handled {
		t.Error("unknown command must not be intercepted")
	}
	// Commands are exact-match: trailing words disqualify
	if _, handled := ic.Intercept("!reset everything", "alice"); handled {
		t.Error("command with extra text must not be intercepted")
	}
}

func TestInterceptCaseInsensitive(t *testing.T) {
	ic := NewInterceptor(testSessions(t), NewGate(), "subprocess", nil)

	for _, text := range []string{"!help", "!HELP", "!Help", "  !help  "} {
		if _, handled := ic.Intercept(text, "alice"); !handled {
			t.Errorf("%q should be handled", text)
		}
	}
}

func TestInterceptReset(t *testing.T) {
	sessions := testSessions(t)
	ic := NewInterceptor(sessions, NewGate(), "subprocess", nil)

	reply, handled := ic.Intercept("!reset", "alice")
	if !handled {
		t.Fatal("!reset should be handled")
	}
	if !strings.Contains(reply, "No active session") {
		t.Errorf("reset without session should say so, got %q", reply)
	}

	sess := sessions.GetOrCreate("alice")
	oldID := sess.ID

	reply, _ = ic.Intercept("!RESET", "alice")
	if !strings.Contains(reply, "reset") {
		t.Errorf("unexpected reset reply: %q", reply)
	}
	if sessions.Get("alice") != nil {
		t.Error("reset must delete the session record")
	}

	// Recreation mints a different id
	if sessions.GetOrCreate("alice").ID == oldID {
		t.Error("session id reused across a reset")
	}
}

func TestInterceptStatus(t *testing.T) {
	sessions := testSessions(t)
	gate := NewGate()
	ic := NewInterceptor(sessions, gate, "http", nil)

	reply, handled := ic.Intercept("!status", "alice")
	if !handled {
		t.Fatal("!status should be handled")
	}
	if !strings.Contains(reply, "mode: http") {
		t.Errorf("status missing mode: %q", reply)
	}
	if !strings.Contains(reply, "session: none") {
		t.Errorf("status should report no session: %q", reply)
	}

	sess := sessions.GetOrCreate("alice")
	gate.TryEnter("alice")
	reply, _ = ic.Intercept("!status", "alice")
	if !strings.Contains(reply, sess.ID) {
		t.Errorf("status missing session id: %q", reply)
	}
	if !strings.Contains(reply, "busy: true") {
		t.Errorf("status should report busy: %q", reply)
	}
	if strings.Contains(reply, "connected:") {
		t.Errorf("status must omit connectivity without a probe: %q", reply)
	}
}

func TestInterceptStatusReportsConnectivity(t *testing.T) {
	ic := NewInterceptor(testSessions(t), NewGate(), "http", func() bool { return true })

	reply, _ := ic.Intercept("!status", "alice")
	if !strings.Contains(reply, "connected: true") {
		t.Errorf("status missing connectivity: %q", reply)
	}
}

func TestInterceptHelpListsVocabulary(t *testing.T) {
	ic := NewInterceptor(testSessions(t), NewGate(), "subprocess", nil)

	reply, handled := ic.Intercept("!help", "alice")
	if !handled {
		t.Fatal("!help should be handled")
	}
	for _, name := range []string{"!reset", "!status", "!help"} {
		if !strings.Contains(reply, name) {
			t.Errorf("help missing %s: %q", name, reply)
		}
	}
}
