package engine

import (
	"os"

	"github.com/rs/zerolog"
)

// Logger is the minimal structured-logging surface the processor needs:
// step failures at error level, wait-time measurements at trace level.
// Kept as a small interface, the way the teacher wraps its own logging
// backend, so callers can plug in any backend or silence it entirely in
// tests.
type Logger interface {
	Errorw(msg string, taskID uint64, err error)
	Tracew(msg string, taskID uint64, waited string)
}

// ZerologLogger adapts a zerolog.Logger to the Logger interface. This is
// the default used by NewTaskProcessor when no logger is supplied.
type ZerologLogger struct {
	z zerolog.Logger
}

// NewZerologLogger returns a Logger backed by a zerolog.Logger writing to
// stderr with RFC3339 timestamps, matching the default construction used
// by the pack's izerolog adapter.
func NewZerologLogger() *ZerologLogger {
	z := zerolog.New(os.Stderr).With().Timestamp().Logger()
	return &ZerologLogger{z: z}
}

// Errorw implements Logger.
func (l *ZerologLogger) Errorw(msg string, taskID uint64, err error) {
	l.z.Error().Uint64("task_id", taskID).Err(err).Msg(msg)
}

// Tracew implements Logger.
func (l *ZerologLogger) Tracew(msg string, taskID uint64, waited string) {
	l.z.Trace().Uint64("task_id", taskID).Str("waited", waited).Msg(msg)
}

// NoOpLogger discards everything. Used by tests and by callers who wire
// their own metrics/logging out-of-band.
type NoOpLogger struct{}

// Errorw implements Logger.
func (NoOpLogger) Errorw(string, uint64, error) {}

// Tracew implements Logger.
func (NoOpLogger) Tracew(string, uint64, string) {}
