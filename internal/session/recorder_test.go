package session_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wasla-delivery/orderchat/internal/notify"
	"github.com/wasla-delivery/orderchat/internal/session"
)

type recordedStatus struct {
	kind    notify.Kind
	message string
}

type fakeSink struct {
	mu       sync.Mutex
	statuses []recordedStatus
}

func (s *fakeSink) Notify(kind notify.Kind, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, recordedStatus{kind: kind, message: message})
}

func (s *fakeSink) has(kind notify.Kind, substr string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.statuses {
		if st.kind == kind && strings.Contains(st.message, substr) {
			return true
		}
	}
	return false
}

func (s *fakeSink) count(kind notify.Kind, substr string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, st := range s.statuses {
		if st.kind == kind && strings.Contains(st.message, substr) {
			n++
		}
	}
	return n
}

type fakeCapture struct {
	mu     sync.Mutex
	ch     chan []byte
	err    error
	closed bool
}

func newFakeCapture() *fakeCapture {
	return &fakeCapture{ch: make(chan []byte, 16)}
}

func (c *fakeCapture) Chunks() <-chan []byte { return c.ch }

func (c *fakeCapture) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *fakeCapture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.ch)
	}
	return nil
}

func (c *fakeCapture) emit(data []byte) { c.ch <- data }

func (c *fakeCapture) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
	if !c.closed {
		c.closed = true
		close(c.ch)
	}
}

type fakeDevice struct {
	mu         sync.Mutex
	acquireErr error
	captures   []*fakeCapture
}

func (d *fakeDevice) Acquire(ctx context.Context) (session.Capture, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.acquireErr != nil {
		return nil, d.acquireErr
	}
	capture := newFakeCapture()
	d.captures = append(d.captures, capture)
	return capture, nil
}

func (d *fakeDevice) capture(i int) *fakeCapture {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.captures[i]
}

type manualTicker struct {
	ch chan time.Time
}

func (t *manualTicker) C() <-chan time.Time { return t.ch }
func (t *manualTicker) Stop()               {}

func (t *manualTicker) tick() { t.ch <- time.Time{} }

type finishedRecording struct {
	data    []byte
	seconds int
}

func newTestRecorder(device session.Device) (*session.Recorder, *fakeSink, *manualTicker, chan finishedRecording) {
	sink := &fakeSink{}
	ticker := &manualTicker{ch: make(chan time.Time)}
	finished := make(chan finishedRecording, 1)
	rec := session.NewRecorder(device, sink, func(data []byte, seconds int) {
		finished <- finishedRecording{data: data, seconds: seconds}
	})
	rec.SetTickerFactory(func(time.Duration) session.Ticker { return ticker })
	return rec, sink, ticker, finished
}

func TestRecorderStartStop(t *testing.T) {
	device := &fakeDevice{}
	rec, _, ticker, finished := newTestRecorder(device)

	rec.Start(context.Background())
	require.Equal(t, session.StateRecording, rec.State())

	device.capture(0).emit([]byte("audio-"))
	device.capture(0).emit([]byte("chunk"))
	ticker.tick()
	ticker.tick()
	ticker.tick()
	require.Eventually(t, func() bool {
		return rec.Elapsed() == 3
	}, time.Second, time.Millisecond)

	rec.Stop()

	select {
	case got := <-finished:
		assert.Equal(t, []byte("audio-chunk"), got.data)
		assert.Equal(t, 3, got.seconds)
	case <-time.After(time.Second):
		t.Fatal("recording never finished")
	}

	assert.Eventually(t, func() bool {
		return rec.State() == session.StateIdle
	}, time.Second, 10*time.Millisecond)
}

func TestRecorderStartTogglesToStop(t *testing.T) {
	device := &fakeDevice{}
	rec, _, _, finished := newTestRecorder(device)

	rec.Start(context.Background())
	require.Equal(t, session.StateRecording, rec.State())
	device.capture(0).emit([]byte("data"))

	// Second start while recording behaves as stop.
	rec.Start(context.Background())

	select {
	case got := <-finished:
		assert.Equal(t, []byte("data"), got.data)
	case <-time.After(time.Second):
		t.Fatal("toggle did not stop the recording")
	}
	assert.Eventually(t, func() bool {
		return rec.State() == session.StateIdle
	}, time.Second, 10*time.Millisecond)
}

func TestRecorderDurationCap(t *testing.T) {
	device := &fakeDevice{}
	rec, sink, ticker, finished := newTestRecorder(device)

	var elapsedSeen []int
	var mu sync.Mutex
	rec.SetElapsedFunc(func(seconds int) {
		mu.Lock()
		elapsedSeen = append(elapsedSeen, seconds)
		mu.Unlock()
	})

	rec.Start(context.Background())
	device.capture(0).emit([]byte("long recording"))

	for i := 0; i < 60; i++ {
		ticker.tick()
	}

	select {
	case got := <-finished:
		assert.Equal(t, []byte("long recording"), got.data)
		assert.Equal(t, 60, got.seconds)
	case <-time.After(time.Second):
		t.Fatal("cap did not stop the recording")
	}

	assert.True(t, sink.has(notify.KindInfo, "limit"))
	assert.Eventually(t, func() bool {
		return rec.State() == session.StateIdle
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, elapsedSeen, 60)
	assert.Equal(t, 1, elapsedSeen[0])
	assert.Equal(t, 60, elapsedSeen[59])
}

func TestRecorderDeviceDenied(t *testing.T) {
	device := &fakeDevice{acquireErr: errors.New("permission denied")}
	rec, sink, _, finished := newTestRecorder(device)

	rec.Start(context.Background())

	assert.Equal(t, session.StateIdle, rec.State())
	assert.True(t, sink.has(notify.KindError, "microphone"))
	select {
	case <-finished:
		t.Fatal("nothing should have been sent")
	default:
	}
}

func TestRecorderNoDevice(t *testing.T) {
	rec, sink, _, _ := newTestRecorder(nil)

	rec.Start(context.Background())

	assert.Equal(t, session.StateIdle, rec.State())
	assert.True(t, sink.has(notify.KindError, "microphone"))
}

func TestRecorderDeviceFailureWhileRecording(t *testing.T) {
	device := &fakeDevice{}
	rec, sink, _, finished := newTestRecorder(device)

	rec.Start(context.Background())
	device.capture(0).emit([]byte("partial"))
	device.capture(0).fail(errors.New("device unplugged"))

	assert.Eventually(t, func() bool {
		return rec.State() == session.StateIdle
	}, time.Second, 10*time.Millisecond)
	assert.True(t, sink.has(notify.KindError, "recording failed"))
	select {
	case <-finished:
		t.Fatal("a failed recording must not be sent")
	default:
	}
}

func TestRecorderCleanupDropsBuffers(t *testing.T) {
	device := &fakeDevice{}
	rec, _, _, finished := newTestRecorder(device)

	rec.Start(context.Background())
	device.capture(0).emit([]byte("discard me"))

	rec.Cleanup()
	rec.Cleanup() // second call must be harmless

	assert.Equal(t, session.StateIdle, rec.State())
	assert.Equal(t, 0, rec.Elapsed())
	select {
	case <-finished:
		t.Fatal("cleanup must drop in-flight buffers without sending")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRecorderCleanupFromIdle(t *testing.T) {
	rec, _, _, _ := newTestRecorder(&fakeDevice{})

	// Never started; cleanup must not panic.
	rec.Cleanup()
	rec.Cleanup()
	assert.Equal(t, session.StateIdle, rec.State())
}

func TestRecorderStopWhileIdle(t *testing.T) {
	rec, sink, _, finished := newTestRecorder(&fakeDevice{})

	rec.Stop()

	assert.Equal(t, session.StateIdle, rec.State())
	assert.Equal(t, 0, sink.count(notify.KindError, ""))
	select {
	case <-finished:
		t.Fatal("stop from idle must not send")
	default:
	}
}
