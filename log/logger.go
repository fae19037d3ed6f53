/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package log

import (
	"os"

	"github.com/ssgreg/logf"
)

// CloseFunc flushes buffered entries and stops the writer goroutine.
type CloseFunc logf.ChannelWriterCloseFunc

// FieldLogger writes structured entries. Every component of the cache accepts one
// and falls back to NewDisabledLogger when none is given.
type FieldLogger interface {
	With(...Field) FieldLogger
	WithLevel(level Level) FieldLogger

	Debug(string, ...Field)
	Info(string, ...Field)
	Warn(string, ...Field)
	Error(string, ...Field)
}

// LogfAdapter implements FieldLogger on top of logf.Logger.
type LogfAdapter struct {
	Logger *logf.Logger
}

var _ FieldLogger = (*LogfAdapter)(nil)

// NewDisabledLogger returns a logger that drops every entry.
func NewDisabledLogger() FieldLogger {
	return &LogfAdapter{logf.NewDisabledLogger()}
}

// NewLogger returns a new logger writing to the output selected by cfg.
// The returned CloseFunc flushes buffered entries and must be called before exit.
func NewLogger(cfg *Config) (FieldLogger, CloseFunc) {
	return newLogger(cfg, newAppender(cfg))
}

func newLogger(cfg *Config, appender logf.Appender) (FieldLogger, CloseFunc) {
	channel, closeFunc := logf.NewChannelWriter(logf.ChannelWriterConfig{
		Appender:          appender,
		EnableSyncOnError: true,
	})
	logger := logf.NewLogger(cfg.Level.logfLevel(), channel).With(logf.Int("pid", os.Getpid()))
	if cfg.AddCaller {
		// Skip the adapter's frame.
		logger = logger.WithCaller().WithCallerSkip(1)
	}
	return &LogfAdapter{logger}, CloseFunc(closeFunc)
}

func (l *LogfAdapter) With(fs ...Field) FieldLogger {
	return &LogfAdapter{l.Logger.With(fs...)}
}

// WithLevel returns a logger that additionally drops entries below level.
// The level can only be raised this way.
func (l *LogfAdapter) WithLevel(level Level) FieldLogger {
	return &LogfAdapter{l.Logger.WithLevel(level.logfLevel())}
}

func (l *LogfAdapter) Debug(msg string, fs ...Field) { l.Logger.Debug(msg, fs...) }
func (l *LogfAdapter) Info(msg string, fs ...Field)  { l.Logger.Info(msg, fs...) }
func (l *LogfAdapter) Warn(msg string, fs ...Field)  { l.Logger.Warn(msg, fs...) }
func (l *LogfAdapter) Error(msg string, fs ...Field) { l.Logger.Error(msg, fs...) }

func (lvl Level) logfLevel() logf.Level {
	switch lvl {
	case LevelError:
		return logf.LevelError
	case LevelWarn:
		return logf.LevelWarn
	case LevelDebug:
		return logf.LevelDebug
	default:
		return logf.LevelInfo
	}
}
