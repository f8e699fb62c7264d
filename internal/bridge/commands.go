package bridge

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/roelfdiedericks/waclaw/internal/session"
)

// command is one control command in the fixed vocabulary.
type command struct {
	name        string
	description string
	handler     func(identity string) string
}

// Interceptor recognizes control commands before they reach the agent.
// Matching is case-insensitive and exact: the whole message must be
// the command.
type Interceptor struct {
	commands map[string]*command

	sessions    *session.Store
	gate        *Gate
	invokerName string
	connected   func() bool
	startedAt   time.Time
}

// NewInterceptor creates the interceptor with the built-in vocabulary.
// connected reports transport connectivity for !status; nil omits it.
func NewInterceptor(sessions *session.Store, gate *Gate, invokerName string, connected func() bool) *Interceptor {
	ic := &Interceptor{
		commands:    make(map[string]*command),
		sessions:    sessions,
		gate:        gate,
		invokerName: invokerName,
		connected:   connected,
		startedAt:   time.Now(),
	}
	ic.register(&command{
		name:        "!reset",
		description: "Forget the current conversation and start fresh",
		handler:     ic.handleReset,
	})
	ic.register(&command{
		name:        "!status",
		description: "Show bridge and session status",
		handler:     ic.handleStatus,
	})
	ic.register(&command{
		name:        "!help",
		description: "List available commands",
		handler:     ic.handleHelp,
	})
	return ic
}

func (ic *Interceptor) register(cmd *command) {
	ic.commands[strings.ToLower(cmd.name)] = cmd
}

// Intercept returns a direct reply and handled=true when the message
// is a control command; the orchestrator then skips the agent.
func (ic *Interceptor) Intercept(text, identity string) (string, bool) {
	cmd, ok := ic.commands[strings.ToLower(strings.TrimSpace(text))]
	if !ok {
		return "", false
	}
	return cmd.handler(identity), true
}

func (ic *Interceptor) handleReset(identity string) string {
	if ic.sessions.Reset(identity) {
		return "Session reset. The next message starts a fresh conversation."
	}
	return "No active session to reset."
}

func (ic *Interceptor) handleStatus(identity string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "mode: %s\n", ic.invokerName)
	fmt.Fprintf(&b, "uptime: %s\n", time.Since(ic.startedAt).Round(time.Second))
	if ic.connected != nil {
		fmt.Fprintf(&b, "connected: %t\n", ic.connected())
	}

	if sess := ic.sessions.Get(identity); sess != nil {
		fmt.Fprintf(&b, "session: %s\n", sess.ID)
		fmt.Fprintf(&b, "initialized: %t\n", sess.Initialized)
	} else {
		b.WriteString("session: none\n")
	}
	fmt.Fprintf(&b, "busy: %t", ic.gate.IsBusy(identity))
	return b.String()
}

func (ic *Interceptor) handleHelp(string) string {
	names := make([]string, 0, len(ic.commands))
	for name := range ic.commands {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("Commands:\n")
	for _, name := range names {
		fmt.Fprintf(&b, "%s — %s\n", name, ic.commands[name].description)
	}
	return strings.TrimRight(b.String(), "\n")
}
