package notify

import "log/slog"

type Kind string

const (
	KindInfo    Kind = "info"
	KindSuccess Kind = "success"
	KindWarning Kind = "warning"
	KindError   Kind = "error"
)

// Sink receives user-facing status events. Every failure path in the chat
// core produces exactly one Notify call; sinks must not block the caller for
// long and must never panic.
type Sink interface {
	Notify(kind Kind, message string)
}

// LogSink reports statuses through slog.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Notify(kind Kind, message string) {
	switch kind {
	case KindError:
		s.logger.Error(message, "kind", kind)
	case KindWarning:
		s.logger.Warn(message, "kind", kind)
	default:
		s.logger.Info(message, "kind", kind)
	}
}

// Multi fans a status out to every sink.
type Multi []Sink

func (m Multi) Notify(kind Kind, message string) {
	for _, s := range m {
		s.Notify(kind, message)
	}
}

// Func adapts a function to the Sink interface.
type Func func(kind Kind, message string)

func (f Func) Notify(kind Kind, message string) {
	f(kind, message)
}
