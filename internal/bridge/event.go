// Package bridge implements the session-orchestration core: it routes
// classified transport events through command interception, media
// recognition, the per-identity concurrency gate, and the agent
// adapter, then delivers chunked replies back to the transport.
package bridge

import "context"

// Attachment carries raw attachment bytes and their MIME type.
type Attachment struct {
	Data     []byte
	MimeType string
}

// Event is a raw transport event, prior to classification. The
// transport binding fills it from the platform's own event type.
type Event struct {
	MessageID   string // Transport message id
	SenderID    string // Canonical sender address (normalized phone)
	SenderAlt   string // Alternate addressing form, if the platform has one
	ChatID      string // Conversation peer address
	OwnID       string // Our own address on the transport
	DisplayName string
	Text        string
	IsGroup     bool
	IsBroadcast bool // Platform status broadcast
	IsFromMe    bool // Platform marked this as sent by our account
	Attachment  *Attachment
}

// Message is a classified inbound message. Immutable once produced.
type Message struct {
	Identity    string // Conversant identity, the sole session/gate key
	DisplayName string
	Text        string
	MessageID   string
	ChatID      string
	IsSelfChat  bool
	Attachment  *Attachment
}

// Transport is the reply capability the orchestrator is written
// against. The transport binding implements it.
type Transport interface {
	// Reply sends text to a conversation and returns the transport
	// message id of the sent message.
	Reply(ctx context.Context, chatID, text string) (string, error)
	// Typing toggles the typing indicator for a conversation.
	// Best-effort; failures are ignored.
	Typing(ctx context.Context, chatID string, active bool)
}
