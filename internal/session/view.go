package session

import (
	"github.com/wasla-delivery/orderchat/internal/config"
	"github.com/wasla-delivery/orderchat/internal/domain"
)

// Viewport is the scroll state reported by the presentation layer. The core
// never touches a UI; it only decides whether an update should auto-scroll.
type Viewport struct {
	ScrollTop     int
	ClientHeight  int
	ContentHeight int
}

// AtBottom reports whether the view is within threshold pixels of the bottom.
// An unreported viewport counts as at-bottom.
func (v Viewport) AtBottom(threshold int) bool {
	if v.ContentHeight == 0 {
		return true
	}
	position := v.ScrollTop + v.ClientHeight
	return v.ContentHeight-position <= threshold
}

// Event is emitted for each message appended to the rendered log.
type Event struct {
	Message    domain.Message
	AutoScroll bool
}

type EventFunc func(Event)

// view is the client-local projection of the conversation: append-only while
// live, rebuilt wholesale on (re)initialization. Messages arrive in ascending
// timestamp order and are deduplicated by id, so a history load overlapping
// the first live additions cannot double-render.
type view struct {
	messages []domain.Message
	ids      map[string]struct{}
	viewport Viewport
	atBottom bool
}

func newView() view {
	return view{ids: make(map[string]struct{}), atBottom: true}
}

func (v *view) replace(msgs []domain.Message) {
	v.messages = make([]domain.Message, len(msgs))
	copy(v.messages, msgs)
	v.ids = make(map[string]struct{}, len(msgs))
	for _, m := range msgs {
		v.ids[m.ID] = struct{}{}
	}
}

// append adds a message to the log. Returns false for a duplicate.
func (v *view) append(msg domain.Message) bool {
	if _, seen := v.ids[msg.ID]; seen {
		return false
	}
	v.ids[msg.ID] = struct{}{}
	v.messages = append(v.messages, msg)
	return true
}

func (v *view) clear() {
	v.messages = nil
	v.ids = make(map[string]struct{})
	v.viewport = Viewport{}
	v.atBottom = true
}

func (v *view) setViewport(vp Viewport) {
	v.viewport = vp
	v.atBottom = vp.AtBottom(config.BottomThresholdPx)
}

func (v *view) scrollToBottom() {
	v.atBottom = true
	if v.viewport.ContentHeight > 0 {
		v.viewport.ScrollTop = v.viewport.ContentHeight - v.viewport.ClientHeight
	}
}

func (v *view) snapshot() []domain.Message {
	out := make([]domain.Message, len(v.messages))
	copy(out, v.messages)
	return out
}
