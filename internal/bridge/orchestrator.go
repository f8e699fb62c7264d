package bridge

import (
	"context"
	"strings"
	"time"

	"github.com/roelfdiedericks/waclaw/internal/agent"
	. "github.com/roelfdiedericks/waclaw/internal/logging"
	"github.com/roelfdiedericks/waclaw/internal/media"
	"github.com/roelfdiedericks/waclaw/internal/session"
)

const (
	// chunkDelay paces multi-chunk sends to respect transport rate limits.
	chunkDelay = 500 * time.Millisecond

	busyReply  = "Still working on your previous message — give me a moment."
	errorReply = "Sorry, something went wrong handling that message. Please try again."
	emptyReply = "(no response)"
)

// Orchestrator wires the bridge components into the end-to-end turn:
// classify → intercept → recognize media → gate → invoke → chunk →
// deliver → record outbound ids → persist session.
type Orchestrator struct {
	transport   Transport
	classifier  *Classifier
	interceptor *Interceptor
	gate        *Gate
	guard       *Guard
	sessions    *session.Store
	invoker     agent.Invoker
	mediaStore  *media.Store
	ocr         *media.OCRClient
	maxChunkLen int
}

// Options carries the orchestrator's collaborators. All fields are
// required except OCR and MediaStore, which may be nil to disable
// media recognition.
type Options struct {
	Transport   Transport
	Sessions    *session.Store
	Invoker     agent.Invoker
	MediaStore  *media.Store
	OCR         *media.OCRClient
	Guard       *Guard
	Gate        *Gate
	MaxChunkLen int
	AllowSelf   bool
	// Connected reports transport connectivity for !status; may be nil.
	Connected func() bool
}

// New creates the orchestrator and its owned components.
func New(opts Options) *Orchestrator {
	guard := opts.Guard
	if guard == nil {
		guard = NewGuard(DefaultGuardCap)
	}
	gate := opts.Gate
	if gate == nil {
		gate = NewGate()
	}

	return &Orchestrator{
		transport:   opts.Transport,
		classifier:  NewClassifier(guard, opts.AllowSelf),
		interceptor: NewInterceptor(opts.Sessions, gate, opts.Invoker.Name(), opts.Connected),
		gate:        gate,
		guard:       guard,
		sessions:    opts.Sessions,
		invoker:     opts.Invoker,
		mediaStore:  opts.MediaStore,
		ocr:         opts.OCR,
		maxChunkLen: opts.MaxChunkLen,
	}
}

// Guard exposes the loop guard for transport bindings that send
// messages outside a turn (e.g. pairing notices).
func (o *Orchestrator) Guard() *Guard {
	return o.guard
}

// HandleEvent processes one raw transport event end to end. It is
// meant to run in its own goroutine per event; the gate serializes
// turns per identity while unrelated identities proceed concurrently.
func (o *Orchestrator) HandleEvent(ctx context.Context, ev Event) {
	msg, ok := o.classifier.Classify(ev)
	if !ok {
		return
	}

	if reply, handled := o.interceptor.Intercept(msg.Text, msg.Identity); handled {
		L_info("bridge: command handled", "identity", msg.Identity, "text", msg.Text)
		o.deliver(ctx, msg.ChatID, reply)
		return
	}

	text := o.enrichWithMedia(ctx, msg)
	if strings.TrimSpace(text) == "" {
		L_debug("bridge: empty message after media handling, dropping", "identity", msg.Identity)
		return
	}

	if !o.gate.TryEnter(msg.Identity) {
		L_info("bridge: identity busy, dropping turn", "identity", msg.Identity)
		o.deliver(ctx, msg.ChatID, busyReply)
		return
	}
	defer o.gate.Leave(msg.Identity)

	sess := o.sessions.GetOrCreate(msg.Identity)
	if !sess.Initialized {
		// Fresh id on every create attempt; it only sticks once the
		// backend accepts the session.
		o.sessions.Regenerate(msg.Identity)
	}

	o.transport.Typing(ctx, msg.ChatID, true)
	defer o.transport.Typing(ctx, msg.ChatID, false)

	result, err := o.invoker.Invoke(ctx, agent.Request{
		Identity: msg.Identity,
		Name:     msg.DisplayName,
		Text:     text,
		Session:  sess,
	})
	if err != nil {
		L_error("bridge: invocation error", "identity", msg.Identity, "error", err)
		o.deliver(ctx, msg.ChatID, errorReply)
		return
	}
	if result.IsError {
		L_error("bridge: agent reported failure", "identity", msg.Identity, "detail", result.Text)
		o.deliver(ctx, msg.ChatID, errorReply)
		return
	}

	o.sessions.Update(msg.Identity, result.SessionID, result.Initialized)

	response := result.Text
	if strings.TrimSpace(response) == "" {
		response = emptyReply
	}
	o.deliver(ctx, msg.ChatID, response)
}

// enrichWithMedia persists an image attachment, runs recognition, and
// merges the extracted text into the body. Non-image attachments are
// ignored. Recognition failures degrade to a placeholder; they never
// abort the turn.
func (o *Orchestrator) enrichWithMedia(ctx context.Context, msg *Message) string {
	att := msg.Attachment
	if att == nil || o.mediaStore == nil || o.ocr == nil {
		return msg.Text
	}
	if !strings.HasPrefix(att.MimeType, "image/") {
		L_debug("bridge: ignoring non-image attachment", "mime", att.MimeType)
		return msg.Text
	}

	path, err := o.mediaStore.Save(att.Data, media.MimeToExt(att.MimeType))
	if err != nil {
		L_warn("bridge: failed to store attachment", "error", err)
		return media.AppendRecognized(msg.Text, media.OCRPlaceholder)
	}

	recognized := o.ocr.Recognize(ctx, path)
	return media.AppendRecognized(msg.Text, recognized)
}

// deliver truncates, chunks, and sends a response. Every sent chunk's
// transport id is recorded in the loop guard immediately, before the
// pacing delay, so the next inbound poll cycle already sees it.
func (o *Orchestrator) deliver(ctx context.Context, chatID, text string) {
	chunks := Chunk(Truncate(text), o.maxChunkLen)

	for i, chunk := range chunks {
		id, err := o.transport.Reply(ctx, chatID, chunk)
		if err != nil {
			L_error("bridge: failed to send chunk", "chat", chatID, "chunk", i+1, "error", err)
			return
		}
		o.guard.Add(id)

		if i < len(chunks)-1 {
			time.Sleep(chunkDelay)
		}
	}
}
