package session

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/wasla-delivery/orderchat/internal/auth"
	"github.com/wasla-delivery/orderchat/internal/blob"
	"github.com/wasla-delivery/orderchat/internal/config"
	"github.com/wasla-delivery/orderchat/internal/domain"
	"github.com/wasla-delivery/orderchat/internal/notify"
	"github.com/wasla-delivery/orderchat/internal/store"
)

// Deps contains everything a Controller needs. Store, Uploader and Sink are
// required; Device may be nil when the runtime has no microphone, and OnEvent
// may be nil when no presentation layer is attached yet.
type Deps struct {
	Store    store.Store
	Uploader blob.Uploader
	Sink     notify.Sink
	Device   Device
	OnEvent  EventFunc
	User     *auth.Identity
}

// Controller binds one active conversation at a time: it owns the live
// subscription, the rendered message list, the send pipelines and the audio
// recorder. All failures are reported through the status sink; no method
// panics past its own boundary.
type Controller struct {
	store    store.Store
	uploader blob.Uploader
	sink     notify.Sink
	onEvent  EventFunc
	recorder *Recorder
	now      func() time.Time

	mu             sync.Mutex
	user           *auth.Identity
	conversationID string
	generation     int64
	unsubscribe    store.UnsubscribeFunc
	view           view
	degraded       bool
}

func New(deps Deps) *Controller {
	sink := deps.Sink
	if sink == nil {
		sink = notify.NewLogSink(nil)
	}
	c := &Controller{
		store:    deps.Store,
		uploader: deps.Uploader,
		sink:     sink,
		onEvent:  deps.OnEvent,
		user:     deps.User,
		now:      time.Now,
	}
	c.view = newView()
	c.recorder = NewRecorder(deps.Device, sink, func(data []byte, seconds int) {
		ctx, cancel := context.WithTimeout(context.Background(), config.UploadTimeout)
		defer cancel()
		c.SendAudio(ctx, data, "audio/webm", seconds)
	})
	return c
}

// Recorder exposes the audio capture state machine, mainly for tests and for
// presentation layers that show the elapsed-time display.
func (c *Controller) Recorder() *Recorder { return c.recorder }

// Initialize binds the controller to an order's conversation: it tears down
// any prior session, attaches the live subscription, replaces the rendered
// log with the bounded history window and scrolls to the latest message.
// Returns false after reporting through the sink on any failure.
func (c *Controller) Initialize(ctx context.Context, orderID string) (ok bool) {
	defer c.recovered(&ok)

	c.mu.Lock()
	user := c.user
	c.mu.Unlock()

	if user == nil {
		c.sink.Notify(notify.KindError, sendErrorMessage(domain.ErrAuthenticationRequired))
		return false
	}
	if strings.TrimSpace(orderID) == "" {
		c.sink.Notify(notify.KindError, sendErrorMessage(domain.ErrInvalidConversation))
		return false
	}

	c.Cleanup()

	c.mu.Lock()
	c.conversationID = orderID
	c.generation++
	gen := c.generation
	c.mu.Unlock()

	unsubscribe, err := c.store.Subscribe(ctx, orderID,
		func(msg domain.Message) { c.handleAdd(gen, msg) },
		func(err error) { c.handleStreamError(gen, err) },
	)
	if err != nil {
		slog.Error("subscription setup failed", "conversation_id", orderID, "error", err)
		c.sink.Notify(notify.KindError, "could not open chat")
		c.resetConversation(gen)
		return false
	}

	c.mu.Lock()
	if c.generation != gen {
		// Torn down while subscribing.
		c.mu.Unlock()
		unsubscribe()
		return false
	}
	c.unsubscribe = unsubscribe
	c.mu.Unlock()

	history, err := c.store.History(ctx, orderID, config.HistoryLimit)
	if err != nil {
		slog.Error("history load failed", "conversation_id", orderID, "error", err)
		c.sink.Notify(notify.KindError, "could not load messages")
		c.Cleanup()
		return false
	}

	c.mu.Lock()
	if c.generation != gen {
		// Stale response: a newer Initialize or Cleanup won the race.
		c.mu.Unlock()
		return false
	}
	c.view.replace(history)
	c.view.scrollToBottom()
	c.mu.Unlock()

	c.sink.Notify(notify.KindSuccess, "chat ready")
	return true
}

// Cleanup detaches the live subscription, drops any in-flight recording and
// clears the active conversation. Safe to call repeatedly and before any
// Initialize.
func (c *Controller) Cleanup() {
	c.mu.Lock()
	c.generation++
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	c.conversationID = ""
	c.degraded = false
	c.view.clear()
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	c.recorder.Cleanup()
}

func (c *Controller) handleAdd(gen int64, msg domain.Message) {
	c.mu.Lock()
	if gen != c.generation || c.conversationID == "" {
		c.mu.Unlock()
		return
	}
	wasAtBottom := c.view.atBottom
	if !c.view.append(msg) {
		c.mu.Unlock()
		return
	}
	if wasAtBottom {
		c.view.scrollToBottom()
	}
	onEvent := c.onEvent
	c.mu.Unlock()

	if onEvent != nil {
		onEvent(Event{Message: msg, AutoScroll: wasAtBottom})
	}
}

func (c *Controller) handleStreamError(gen int64, err error) {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return
	}
	c.degraded = true
	conversationID := c.conversationID
	c.mu.Unlock()

	slog.Error("live subscription lost", "conversation_id", conversationID, "error", err)
	// Degraded until the caller initializes again; no automatic retry.
	c.sink.Notify(notify.KindError, sendErrorMessage(domain.ErrSubscriptionLost))
}

// SendText validates and appends a text message. The rendered log is not
// touched here; the subscription echoes the write back.
func (c *Controller) SendText(ctx context.Context, text string) (ok bool) {
	defer c.recovered(&ok)

	user, conversationID, err := c.senderContext()
	if err != nil {
		c.sink.Notify(notify.KindError, sendErrorMessage(err))
		return false
	}
	if err := ValidateText(text); err != nil {
		c.sink.Notify(notify.KindError, sendErrorMessage(err))
		return false
	}

	msg := domain.Message{
		SenderID: user.UserID,
		Type:     domain.MessageText,
		Text:     strings.TrimSpace(text),
	}
	if err := c.store.Append(ctx, conversationID, msg); err != nil {
		slog.Error("text send failed", "conversation_id", conversationID, "error", err)
		c.sink.Notify(notify.KindError, sendErrorMessage(domain.ErrSendFailed))
		return false
	}
	return true
}

// SendImage uploads the image and appends a message referencing its URL. A
// failed upload leaves no message record behind.
func (c *Controller) SendImage(ctx context.Context, file *domain.File) (ok bool) {
	defer c.recovered(&ok)

	user, conversationID, err := c.senderContext()
	if err != nil {
		c.sink.Notify(notify.KindError, sendErrorMessage(err))
		return false
	}
	if err := ValidateFile(file, domain.MessageImage); err != nil {
		c.sink.Notify(notify.KindError, sendErrorMessage(err))
		return false
	}

	c.sink.Notify(notify.KindInfo, "uploading image...")

	key := blob.ObjectKey(conversationID, domain.MessageImage, c.now(), file.Name)
	result, err := c.uploader.Upload(ctx, key, file.Data, file.ContentType, nil)
	if err != nil {
		slog.Error("image upload failed", "conversation_id", conversationID, "error", err)
		c.sink.Notify(notify.KindError, "image upload failed")
		return false
	}

	msg := domain.Message{
		SenderID: user.UserID,
		Type:     domain.MessageImage,
		ImageURL: result.URL,
	}
	if err := c.store.Append(ctx, conversationID, msg); err != nil {
		slog.Error("image send failed", "conversation_id", conversationID, "error", err)
		c.sink.Notify(notify.KindError, "could not send image")
		return false
	}

	c.sink.Notify(notify.KindSuccess, "image sent")
	return true
}

// SendAudio uploads a recorded blob and appends an audio message carrying
// its duration in whole seconds.
func (c *Controller) SendAudio(ctx context.Context, data []byte, contentType string, durationSeconds int) (ok bool) {
	defer c.recovered(&ok)

	user, conversationID, err := c.senderContext()
	if err != nil {
		c.sink.Notify(notify.KindError, sendErrorMessage(err))
		return false
	}
	file := &domain.File{
		Name:        "recording.webm",
		Size:        int64(len(data)),
		ContentType: contentType,
		Data:        data,
	}
	if err := ValidateFile(file, domain.MessageAudio); err != nil {
		c.sink.Notify(notify.KindError, sendErrorMessage(err))
		return false
	}

	c.sink.Notify(notify.KindInfo, "processing voice message...")

	key := blob.ObjectKey(conversationID, domain.MessageAudio, c.now(), file.Name)
	result, err := c.uploader.Upload(ctx, key, file.Data, file.ContentType, nil)
	if err != nil {
		slog.Error("audio upload failed", "conversation_id", conversationID, "error", err)
		c.sink.Notify(notify.KindError, "voice message upload failed")
		return false
	}

	msg := domain.Message{
		SenderID:        user.UserID,
		Type:            domain.MessageAudio,
		AudioURL:        result.URL,
		DurationSeconds: durationSeconds,
	}
	if err := c.store.Append(ctx, conversationID, msg); err != nil {
		slog.Error("audio send failed", "conversation_id", conversationID, "error", err)
		c.sink.Notify(notify.KindError, "could not send voice message")
		return false
	}

	c.sink.Notify(notify.KindSuccess, "voice message sent")
	return true
}

// StartAudioRecording toggles the recorder: it starts from idle and stops an
// active recording.
func (c *Controller) StartAudioRecording(ctx context.Context) {
	c.recorder.Start(ctx)
}

func (c *Controller) StopAudioRecording() {
	c.recorder.Stop()
}

// SetViewport records the presentation layer's scroll state for the
// anchoring decision on the next addition.
func (c *Controller) SetViewport(vp Viewport) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.view.setViewport(vp)
}

// Viewport returns the current scroll state, including any auto-scroll the
// controller applied.
func (c *Controller) Viewport() Viewport {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view.viewport
}

// Messages returns a copy of the rendered message list.
func (c *Controller) Messages() []domain.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view.snapshot()
}

// Degraded reports whether the live subscription has been lost since the
// last Initialize.
func (c *Controller) Degraded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.degraded
}

// ConversationID returns the bound order id, or "" when no conversation is
// active.
func (c *Controller) ConversationID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conversationID
}

func (c *Controller) senderContext() (*auth.Identity, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conversationID == "" {
		return nil, "", domain.ErrNoActiveConversation
	}
	if c.user == nil {
		return nil, "", domain.ErrAuthenticationRequired
	}
	return c.user, c.conversationID, nil
}

func (c *Controller) resetConversation(gen int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation == gen {
		c.conversationID = ""
	}
}

func (c *Controller) recovered(ok *bool) {
	if r := recover(); r != nil {
		slog.Error("panic recovered in session controller",
			"panic", r,
			"stack", string(debug.Stack()),
		)
		c.sink.Notify(notify.KindError, "something went wrong")
		*ok = false
	}
}

func sendErrorMessage(err error) string {
	switch err {
	case domain.ErrNoActiveConversation:
		return "no active chat"
	case domain.ErrAuthenticationRequired:
		return "sign in required"
	case domain.ErrInvalidConversation:
		return "invalid conversation"
	case domain.ErrEmptyMessage:
		return "message cannot be empty"
	case domain.ErrMessageTooLong:
		return fmt.Sprintf("message too long (max %d characters)", config.MaxTextLen)
	case domain.ErrNoFileSelected:
		return "no file selected"
	case domain.ErrFileTooLarge:
		return "file too large"
	case domain.ErrWrongFileType:
		return "unsupported file type"
	case domain.ErrMicrophoneUnavailable:
		return "microphone unavailable"
	case domain.ErrRecordingFailed:
		return "recording failed"
	case domain.ErrSubscriptionLost:
		return "chat connection lost"
	case domain.ErrSendFailed:
		return "could not send message"
	default:
		return "could not send message"
	}
}
