package session

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/wasla-delivery/orderchat/internal/config"
	"github.com/wasla-delivery/orderchat/internal/domain"
	"github.com/wasla-delivery/orderchat/internal/notify"
)

// RecorderState enumerates the audio capture lifecycle.
type RecorderState int

const (
	StateIdle RecorderState = iota
	StateRequesting
	StateRecording
	StateStopping
)

// Device acquires the audio capture hardware. Acquire blocks until the user
// grants or denies access.
type Device interface {
	Acquire(ctx context.Context) (Capture, error)
}

// Capture is an open microphone stream. Chunks is closed when the stream
// ends, either by Close or by a device failure; Err distinguishes the two
// after the close. Close releases the hardware and is safe to call twice.
type Capture interface {
	Chunks() <-chan []byte
	Err() error
	Close() error
}

// Ticker abstracts time.Ticker so tests can drive the elapsed counter.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type TickerFactory func(d time.Duration) Ticker

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

func newRealTicker(d time.Duration) Ticker {
	return realTicker{t: time.NewTicker(d)}
}

// Recorder owns the microphone while recording and enforces the duration
// cap. Start toggles: a second Start while recording behaves as Stop. The
// device is released on every exit path.
type Recorder struct {
	device     Device
	sink       notify.Sink
	newTicker  TickerFactory
	maxSeconds int

	// onFinish receives the accumulated audio when a recording stops with
	// data; the recorder is already Idle when it runs, so the send outcome
	// cannot affect the state machine.
	onFinish  func(data []byte, seconds int)
	onElapsed func(seconds int)

	mu      sync.Mutex
	state   RecorderState
	capture Capture
	chunks  [][]byte
	elapsed int
	done    chan struct{}
}

func NewRecorder(device Device, sink notify.Sink, onFinish func(data []byte, seconds int)) *Recorder {
	return &Recorder{
		device:     device,
		sink:       sink,
		newTicker:  newRealTicker,
		maxSeconds: config.MaxRecordingSeconds,
		onFinish:   onFinish,
	}
}

// SetTickerFactory replaces the tick source. Tests use a manual ticker.
func (r *Recorder) SetTickerFactory(f TickerFactory) { r.newTicker = f }

// SetElapsedFunc installs a duration-display callback invoked each second.
func (r *Recorder) SetElapsedFunc(f func(seconds int)) { r.onElapsed = f }

func (r *Recorder) State() RecorderState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Elapsed returns the recorded duration so far in whole seconds.
func (r *Recorder) Elapsed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.elapsed
}

func (r *Recorder) Start(ctx context.Context) {
	r.mu.Lock()
	switch r.state {
	case StateRecording:
		r.mu.Unlock()
		r.Stop()
		return
	case StateIdle:
	default:
		r.mu.Unlock()
		return
	}
	if r.device == nil {
		r.state = StateIdle
		r.mu.Unlock()
		r.sink.Notify(notify.KindError, sendErrorMessage(domain.ErrMicrophoneUnavailable))
		return
	}
	r.state = StateRequesting
	r.mu.Unlock()

	capture, err := r.device.Acquire(ctx)
	if err != nil {
		r.mu.Lock()
		r.state = StateIdle
		r.mu.Unlock()
		r.sink.Notify(notify.KindError, sendErrorMessage(domain.ErrMicrophoneUnavailable))
		return
	}

	r.mu.Lock()
	if r.state != StateRequesting {
		// Cleanup ran while the permission prompt was open.
		r.mu.Unlock()
		capture.Close()
		return
	}
	r.state = StateRecording
	r.capture = capture
	r.chunks = nil
	r.elapsed = 0
	done := make(chan struct{})
	r.done = done
	r.mu.Unlock()

	r.sink.Notify(notify.KindInfo, "recording...")
	go r.collect(capture)
	go r.tick(done)
}

// collect is the sole reader of the capture stream; the close of Chunks is
// the recording's end signal on both the stop and failure paths. Everything
// here checks that capture is still the current one, so a Cleanup racing the
// collector cannot resurrect dropped buffers.
func (r *Recorder) collect(capture Capture) {
	for chunk := range capture.Chunks() {
		r.mu.Lock()
		if r.capture == capture {
			r.chunks = append(r.chunks, chunk)
		}
		r.mu.Unlock()
	}

	if err := capture.Err(); err != nil {
		r.abort(capture)
		return
	}
	r.finish(capture)
}

func (r *Recorder) tick(done chan struct{}) {
	ticker := r.newTicker(config.RecordingTick)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C():
			r.mu.Lock()
			if r.state != StateRecording {
				r.mu.Unlock()
				return
			}
			r.elapsed++
			elapsed := r.elapsed
			onElapsed := r.onElapsed
			r.mu.Unlock()

			if onElapsed != nil {
				onElapsed(elapsed)
			}
			if elapsed >= r.maxSeconds {
				r.sink.Notify(notify.KindInfo, "recording limit reached")
				r.Stop()
				return
			}
		}
	}
}

// Stop ends an active recording, releases the device and hands any captured
// audio to onFinish. Calling Stop outside Recording is a no-op.
func (r *Recorder) Stop() {
	r.mu.Lock()
	if r.state != StateRecording {
		r.mu.Unlock()
		return
	}
	r.state = StateStopping
	capture := r.capture
	done := r.done
	r.done = nil
	r.mu.Unlock()

	if done != nil {
		close(done)
	}
	capture.Close()
	// collect observes the stream close and completes the transition.
}

func (r *Recorder) finish(capture Capture) {
	r.mu.Lock()
	if r.capture != capture {
		r.mu.Unlock()
		return
	}
	data := bytes.Join(r.chunks, nil)
	seconds := r.elapsed
	r.chunks = nil
	r.capture = nil
	r.elapsed = 0
	r.state = StateIdle
	onFinish := r.onFinish
	r.mu.Unlock()

	if len(data) > 0 && onFinish != nil {
		onFinish(data, seconds)
	}
}

func (r *Recorder) abort(capture Capture) {
	r.mu.Lock()
	if r.capture != capture {
		r.mu.Unlock()
		return
	}
	done := r.done
	r.done = nil
	r.chunks = nil
	r.capture = nil
	r.elapsed = 0
	r.state = StateIdle
	r.mu.Unlock()

	if done != nil {
		close(done)
	}
	if capture != nil {
		capture.Close()
	}
	r.sink.Notify(notify.KindError, sendErrorMessage(domain.ErrRecordingFailed))
}

// Cleanup drops any in-flight recording without sending it. Safe from any
// state and safe to call repeatedly.
func (r *Recorder) Cleanup() {
	r.mu.Lock()
	capture := r.capture
	done := r.done
	r.done = nil
	r.chunks = nil
	r.capture = nil
	r.elapsed = 0
	r.state = StateIdle
	r.mu.Unlock()

	if done != nil {
		close(done)
	}
	if capture != nil {
		capture.Close()
	}
}
