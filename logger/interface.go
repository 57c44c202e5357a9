// Package logger defines the structured logging contract used by the pipeline
// tools and a zerolog-backed implementation of it.
package logger

import "time"

// Logger creates leveled log events. Implementations must be safe for
// concurrent use.
type Logger interface {
	Debug() LogEvent
	Info() LogEvent
	Warn() LogEvent
	Error() LogEvent
	WithFields(fields map[string]any) Logger
}

// LogEvent is a single structured entry under construction. Nothing is written
// until Msg or Msgf is called.
type LogEvent interface {
	Msg(msg string)
	Msgf(format string, args ...any)
	Err(err error) LogEvent
	Str(key, value string) LogEvent
	Int(key string, value int) LogEvent
	Int64(key string, value int64) LogEvent
	Bool(key string, value bool) LogEvent
	Dur(key string, d time.Duration) LogEvent
	Interface(key string, i any) LogEvent
	Bytes(key string, val []byte) LogEvent
}
