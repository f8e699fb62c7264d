// Package whatsapp binds the bridge to WhatsApp via whatsmeow.
package whatsapp

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"

	"github.com/roelfdiedericks/waclaw/internal/bridge"
	. "github.com/roelfdiedericks/waclaw/internal/logging"
	"github.com/roelfdiedericks/waclaw/internal/paths"
)

// reconnectDelay is the fixed backoff before a reconnect attempt after
// an unexpected disconnect.
const reconnectDelay = 5 * time.Second

// Bot owns the whatsmeow client and feeds inbound events to the bridge.
type Bot struct {
	client *whatsmeow.Client
	store  *sqlstore.Container

	handler func(context.Context, bridge.Event)

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.RWMutex
	running   bool
	startedAt time.Time
	lastError error
}

// waclawLogger bridges whatsmeow's waLog.Logger to our L_* functions
type waclawLogger struct {
	module string
}

func (l *waclawLogger) Debugf(msg string, args ...interface{}) {
	L_debug(fmt.Sprintf("whatsmeow/%s: %s", l.module, fmt.Sprintf(msg, args...)))
}

func (l *waclawLogger) Infof(msg string, args ...interface{}) {
	L_info(fmt.Sprintf("whatsmeow/%s: %s", l.module, fmt.Sprintf(msg, args...)))
}

func (l *waclawLogger) Warnf(msg string, args ...interface{}) {
	L_warn(fmt.Sprintf("whatsmeow/%s: %s", l.module, fmt.Sprintf(msg, args...)))
}

func (l *waclawLogger) Errorf(msg string, args ...interface{}) {
	L_error(fmt.Sprintf("whatsmeow/%s: %s", l.module, fmt.Sprintf(msg, args...)))
}

func (l *waclawLogger) Sub(module string) waLog.Logger {
	return &waclawLogger{module: l.module + "/" + module}
}

// New opens the device store and prepares the client. The device must
// already be paired; run 'waclaw link' otherwise.
func New() (*Bot, error) {
	dbPath, err := paths.DataPath("whatsapp.db")
	if err != nil {
		return nil, fmt.Errorf("failed to resolve whatsapp db path: %w", err)
	}
	if err := paths.EnsureParentDir(dbPath); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open whatsapp db: %w", err)
	}

	storeLog := &waclawLogger{module: "store"}
	container := sqlstore.NewWithDB(db, "sqlite3", storeLog)

	if err := container.Upgrade(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to upgrade whatsapp store: %w", err)
	}

	device, err := container.GetFirstDevice(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to get whatsapp device: %w", err)
	}
	if device == nil {
		return nil, fmt.Errorf("no whatsapp device paired — run 'waclaw link' first")
	}

	clientLog := &waclawLogger{module: "client"}
	client := whatsmeow.NewClient(device, clientLog)

	ctx, cancel := context.WithCancel(context.Background())

	return &Bot{
		client: client,
		store:  container,
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// SetHandler installs the inbound event handler. Must be called before
// Start; the orchestrator's HandleEvent goes here.
func (b *Bot) SetHandler(handler func(context.Context, bridge.Event)) {
	b.handler = handler
}

// Start connects to WhatsApp and begins delivering events.
func (b *Bot) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.running {
		return nil
	}
	if b.handler == nil {
		return fmt.Errorf("whatsapp: no event handler installed")
	}

	b.client.AddEventHandler(b.handleEvent)

	if err := b.client.Connect(); err != nil {
		b.lastError = err
		return fmt.Errorf("whatsapp: failed to connect: %w", err)
	}

	b.running = true
	b.startedAt = time.Now()
	b.lastError = nil

	L_info("whatsapp: connected", "jid", b.client.Store.ID)
	return nil
}

// Stop disconnects from WhatsApp.
func (b *Bot) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.running {
		return
	}

	L_info("whatsapp: disconnecting")
	b.cancel()
	b.client.Disconnect()
	b.running = false
}

// Connected reports whether the client currently has a server connection.
func (b *Bot) Connected() bool {
	return b.client.IsConnected()
}

// ownID returns our own normalized address, or "" before login.
func (b *Bot) ownID() string {
	if b.client.Store.ID == nil {
		return ""
	}
	return b.client.Store.ID.User
}

// handleEvent is the whatsmeow event handler
func (b *Bot) handleEvent(evt interface{}) {
	switch v := evt.(type) {
	case *events.Message:
		b.handleMessage(v)
	case *events.Connected:
		L_info("whatsapp: connected to server")
	case *events.Disconnected:
		L_warn("whatsapp: disconnected from server")
		b.scheduleReconnect()
	case *events.LoggedOut:
		L_error("whatsapp: logged out — re-pair with 'waclaw link'", "reason", v.Reason)
		b.mu.Lock()
		b.lastError = fmt.Errorf("logged out: %v", v.Reason)
		b.mu.Unlock()
	}
}

// scheduleReconnect retries the connection after a fixed backoff.
// In-flight invocations for the gap are abandoned, not retried.
func (b *Bot) scheduleReconnect() {
	time.AfterFunc(reconnectDelay, func() {
		b.mu.RLock()
		running := b.running
		b.mu.RUnlock()

		if !running || b.client.IsConnected() || IsShuttingDown() {
			return
		}
		L_info("whatsapp: reconnecting")
		if err := b.client.Connect(); err != nil {
			L_error("whatsapp: reconnect failed", "error", err)
			b.scheduleReconnect()
		}
	})
}

// canonicalUser resolves LID/phone alternate addressing to the phone
// form. WhatsApp may deliver messages with LID addressing, where the
// primary JID is a LID (e.g. 249786758348836@lid) and the alternate
// has the phone number, or vice versa. Sessions are keyed on the phone
// form, so the same person maps to one identity in either mode.
func canonicalUser(primary, alt types.JID) string {
	if primary.Server == types.DefaultUserServer {
		return primary.User
	}
	if alt.Server == types.DefaultUserServer {
		return alt.User
	}
	return primary.User
}

// handleMessage converts an inbound WhatsApp message into a bridge
// event and hands it off. Each event runs in its own goroutine; the
// bridge's gate serializes per conversant.
func (b *Bot) handleMessage(evt *events.Message) {
	ev := bridge.Event{
		MessageID:   string(evt.Info.ID),
		SenderID:    canonicalUser(evt.Info.Sender, evt.Info.SenderAlt),
		SenderAlt:   evt.Info.SenderAlt.User,
		ChatID:      canonicalUser(evt.Info.Chat, evt.Info.RecipientAlt),
		OwnID:       b.ownID(),
		DisplayName: evt.Info.PushName,
		IsGroup:     evt.Info.IsGroup,
		IsBroadcast: evt.Info.Chat.Server == types.BroadcastServer,
		IsFromMe:    evt.Info.IsFromMe,
	}

	msg := evt.Message
	switch {
	case msg.GetConversation() != "":
		ev.Text = msg.GetConversation()
	case msg.GetExtendedTextMessage() != nil:
		ev.Text = msg.GetExtendedTextMessage().GetText()
	case msg.GetImageMessage() != nil:
		imageMsg := msg.GetImageMessage()
		data, err := b.client.Download(b.ctx, imageMsg)
		if err != nil {
			L_error("whatsapp: failed to download image", "error", err)
			return
		}
		ev.Attachment = &bridge.Attachment{
			Data:     data,
			MimeType: imageMsg.GetMimetype(),
		}
		ev.Text = imageMsg.GetCaption()
	case msg.GetAudioMessage() != nil && msg.GetAudioMessage().GetPTT():
		// Voice notes are acknowledged, not transcribed
		ev.Text = "[voice note received, transcription is not supported]"
	default:
		L_debug("whatsapp: unsupported message type, ignoring")
		return
	}

	L_debug("whatsapp: message received",
		"sender", ev.SenderID,
		"senderAlt", ev.SenderAlt,
		"chat", ev.ChatID,
		"fromMe", ev.IsFromMe,
		"addressingMode", evt.Info.AddressingMode,
	)

	go b.handler(b.ctx, ev)
}

// Reply implements bridge.Transport. Markdown is converted to
// WhatsApp formatting before sending.
func (b *Bot) Reply(ctx context.Context, chatID, text string) (string, error) {
	jid := phoneToJID(chatID)
	formatted := FormatMessage(text)

	resp, err := b.client.SendMessage(ctx, jid, &waE2E.Message{
		Conversation: proto.String(formatted),
	})
	if err != nil {
		return "", fmt.Errorf("whatsapp: send failed: %w", err)
	}
	return string(resp.ID), nil
}

// Typing implements bridge.Transport.
func (b *Bot) Typing(ctx context.Context, chatID string, active bool) {
	jid := phoneToJID(chatID)
	state := types.ChatPresencePaused
	if active {
		state = types.ChatPresenceComposing
	}
	_ = b.client.SendChatPresence(ctx, jid, state, types.ChatPresenceMediaText)
}

// phoneToJID converts a phone number string to a WhatsApp JID
func phoneToJID(phone string) types.JID {
	return types.NewJID(phone, types.DefaultUserServer)
}
