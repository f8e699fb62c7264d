package bridge

import (
	. "github.com/roelfdiedericks/waclaw/internal/logging"
)

// Classifier turns raw transport events into classified messages, or
// discards them. Discarding is silent: no reply, no error.
type Classifier struct {
	guard     *Guard
	allowSelf bool
}

// NewClassifier creates a classifier backed by the outbound loop guard.
func NewClassifier(guard *Guard, allowSelf bool) *Classifier {
	return &Classifier{guard: guard, allowSelf: allowSelf}
}

// Classify applies the discard rules in order and returns the
// classified message, or ok=false when the event must be dropped.
//
// Self-chat (the conversation with our own address) is the one case
// where "sent by us" events are legitimate user input, so the fromMe
// heuristic is suspended there and loop prevention falls entirely to
// the guard and the gate.
func (c *Classifier) Classify(ev Event) (*Message, bool) {
	if ev.IsGroup {
		L_debug("bridge: discarding group message", "chat", ev.ChatID)
		return nil, false
	}

	if ev.IsBroadcast {
		L_debug("bridge: discarding broadcast", "chat", ev.ChatID)
		return nil, false
	}

	if c.guard.Contains(ev.MessageID) {
		L_debug("bridge: discarding own echo", "id", ev.MessageID)
		return nil, false
	}

	selfChat := ev.ChatID == ev.OwnID

	if ev.IsFromMe && !selfChat {
		L_debug("bridge: discarding fromMe reply echo", "chat", ev.ChatID)
		return nil, false
	}

	if selfChat && !c.allowSelf {
		L_debug("bridge: self-chat disabled, discarding", "id", ev.MessageID)
		return nil, false
	}

	// The conversation peer address is the conversant identity; in a
	// self-chat that is our own address.
	return &Message{
		Identity:    ev.ChatID,
		DisplayName: ev.DisplayName,
		Text:        ev.Text,
		MessageID:   ev.MessageID,
		ChatID:      ev.ChatID,
		IsSelfChat:  selfChat,
		Attachment:  ev.Attachment,
	}, true
}
