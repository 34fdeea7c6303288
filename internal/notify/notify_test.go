package notify_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/wasla-delivery/orderchat/internal/notify"
)

type captureSink struct {
	mu    sync.Mutex
	kinds []notify.Kind
	texts []string
}

func (s *captureSink) Notify(kind notify.Kind, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kinds = append(s.kinds, kind)
	s.texts = append(s.texts, message)
}

func TestMultiFansOut(t *testing.T) {
	a := &captureSink{}
	b := &captureSink{}

	notify.Multi{a, b}.Notify(notify.KindWarning, "chat connection lost")

	assert.Equal(t, []notify.Kind{notify.KindWarning}, a.kinds)
	assert.Equal(t, []notify.Kind{notify.KindWarning}, b.kinds)
	assert.Equal(t, []string{"chat connection lost"}, a.texts)
}

func TestFuncAdapter(t *testing.T) {
	var gotKind notify.Kind
	var gotText string
	sink := notify.Func(func(kind notify.Kind, message string) {
		gotKind = kind
		gotText = message
	})

	sink.Notify(notify.KindSuccess, "chat ready")

	assert.Equal(t, notify.KindSuccess, gotKind)
	assert.Equal(t, "chat ready", gotText)
}

func TestLogSinkDoesNotPanic(t *testing.T) {
	sink := notify.NewLogSink(nil)
	for _, kind := range []notify.Kind{notify.KindInfo, notify.KindSuccess, notify.KindWarning, notify.KindError} {
		sink.Notify(kind, "status")
	}
}
