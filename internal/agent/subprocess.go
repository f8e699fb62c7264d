package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	. "github.com/roelfdiedericks/waclaw/internal/logging"
)

const (
	// subprocessTimeout is the hard wall-clock limit per turn. The
	// process is killed when it elapses and the turn is reported failed.
	subprocessTimeout = 10 * time.Minute

	// stdinThreshold: prompts longer than this go via stdin to stay
	// clear of platform argv length limits.
	stdinThreshold = 7000

	// stderrExcerptLen bounds the error text shown in logs and replies.
	stderrExcerptLen = 500
)

// SubprocessInvoker spawns the agent executable once per turn, using
// create-session semantics on the first turn and resume thereafter.
type SubprocessInvoker struct {
	binary     string
	workingDir string
}

// NewSubprocessInvoker creates a subprocess-backed invoker.
func NewSubprocessInvoker(binary, workingDir string) *SubprocessInvoker {
	return &SubprocessInvoker{binary: binary, workingDir: workingDir}
}

// Name implements Invoker.
func (s *SubprocessInvoker) Name() string { return "subprocess" }

// cliOutput is the single JSON record the agent CLI emits on stdout.
type cliOutput struct {
	Result       string  `json:"result"`
	SessionID    string  `json:"session_id"`
	TotalCostUSD float64 `json:"total_cost_usd"`
	IsError      bool    `json:"is_error"`
}

// systemContext builds the per-turn context injection: channel and
// conversant, plus formatting guidance so replies stay chat-friendly.
func systemContext(name string) string {
	return fmt.Sprintf(
		"You are replying over WhatsApp to %s. Keep responses compact and plain-text friendly: no large code blocks, no tables, short paragraphs.",
		name,
	)
}

// buildArgs assembles the CLI invocation for a turn. The prompt is
// passed inline unless it exceeds stdinThreshold, in which case the
// caller pipes it via stdin.
func (s *SubprocessInvoker) buildArgs(req Request) (args []string, viaStdin bool) {
	args = []string{"--print", "--output-format", "json"}

	if req.Session.Initialized {
		args = append(args, "--resume", req.Session.ID)
	} else {
		args = append(args, "--session-id", req.Session.ID)
	}

	args = append(args, "--append-system-prompt", systemContext(req.Name))

	if len(req.Text) > stdinThreshold {
		return args, true
	}
	return append(args, req.Text), false
}

// Invoke implements Invoker.
func (s *SubprocessInvoker) Invoke(ctx context.Context, req Request) (*Result, error) {
	args, viaStdin := s.buildArgs(req)

	runCtx, cancel := context.WithTimeout(ctx, subprocessTimeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, s.binary, args...)
	if s.workingDir != "" {
		cmd.Dir = s.workingDir
	}
	if viaStdin {
		cmd.Stdin = strings.NewReader(req.Text)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	L_debug("agent: spawning subprocess",
		"identity", req.Identity,
		"resume", req.Session.Initialized,
		"session", req.Session.ID,
		"stdin", viaStdin,
	)

	start := time.Now()
	err := cmd.Run()

	if runCtx.Err() == context.DeadlineExceeded {
		L_error("agent: subprocess timed out", "identity", req.Identity, "timeout", subprocessTimeout.String())
		return &Result{Text: "the agent took too long and was stopped", IsError: true}, nil
	}

	if err != nil {
		excerpt := excerptOf(stderr.String(), stderrExcerptLen)
		L_error("agent: subprocess failed", "identity", req.Identity, "error", err, "stderr", excerpt)
		return &Result{Text: excerpt, IsError: true}, nil
	}

	var out cliOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		// Unparseable output still carries whatever the agent printed
		L_warn("agent: subprocess output unparseable", "identity", req.Identity, "error", err)
		return &Result{Text: strings.TrimSpace(stdout.String()), IsError: true}, nil
	}

	L_elapsed(start, "agent: subprocess invocation complete",
		"identity", req.Identity,
		"cost", out.TotalCostUSD,
	)

	return &Result{
		Text:        out.Result,
		SessionID:   out.SessionID,
		CostUSD:     out.TotalCostUSD,
		IsError:     out.IsError,
		Initialized: !out.IsError,
	}, nil
}

func excerptOf(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "agent process failed without output"
	}
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}
