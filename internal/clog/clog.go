// Package clog is the structured logger used throughout the client,
// grounded on the teacher's pkg/engine zerolog-backed logger and its
// narrow Logger interface.
package clog

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
)

// Logger is the logging interface the session core and CLI depend on
// — the same four-level, key/value shape the teacher's hermod.Logger
// exposes, so swapping implementations never touches call sites.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ZerologLogger is the default Logger, writing structured JSON (or,
// if IOTMPIN_LOG_PRETTY is set, human-readable console output) to
// stderr with a timestamp on every event.
type ZerologLogger struct {
	logger zerolog.Logger
}

// New returns a ZerologLogger at the given minimum level ("debug",
// "info", "warn", "error"; unrecognized values default to "info").
func New(level string) *ZerologLogger {
	var w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	if os.Getenv("IOTMPIN_LOG_PRETTY") == "" {
		return &ZerologLogger{logger: zerolog.New(os.Stderr).Level(parseLevel(level)).With().Timestamp().Logger()}
	}
	return &ZerologLogger{logger: zerolog.New(w).Level(parseLevel(level)).With().Timestamp().Logger()}
}

func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func (l *ZerologLogger) log(event *zerolog.Event, msg string, keysAndValues ...interface{}) {
	for i := 0; i < len(keysAndValues); i += 2 {
		key := fmt.Sprintf("%v", keysAndValues[i])
		if i+1 < len(keysAndValues) {
			event.Interface(key, keysAndValues[i+1])
		} else {
			event.Interface(key, nil)
		}
	}
	event.Msg(msg)
}

func (l *ZerologLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.log(l.logger.Debug(), msg, keysAndValues...)
}

func (l *ZerologLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log(l.logger.Info(), msg, keysAndValues...)
}

func (l *ZerologLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.log(l.logger.Warn(), msg, keysAndValues...)
}

func (l *ZerologLogger) Error(msg string, keysAndValues ...interface{}) {
	l.log(l.logger.Error(), msg, keysAndValues...)
}

// NopLogger discards every event; useful for tests and library
// consumers that don't want client-library log output.
type NopLogger struct{}

func (NopLogger) Debug(string, ...interface{}) {}
func (NopLogger) Info(string, ...interface{})  {}
func (NopLogger) Warn(string, ...interface{})  {}
func (NopLogger) Error(string, ...interface{}) {}
