// Package clog defines the logging contract shared by every component in
// the streaming core. Components accept a Logger at construction time so
// nothing below cmd/ ever touches a global logger.
package clog

import "github.com/sirupsen/logrus"

// Logger is the structured logging interface every component depends on.
// Args are variadic key-value pairs, e.g. Info("turn started", "turn", 3).
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// NoOpLogger discards everything. Useful for tests and library embedding.
type NoOpLogger struct{}

func (NoOpLogger) Debug(msg string, args ...interface{}) {}
func (NoOpLogger) Info(msg string, args ...interface{})  {}
func (NoOpLogger) Warn(msg string, args ...interface{})  {}
func (NoOpLogger) Error(msg string, args ...interface{}) {}

// LogrusLogger adapts a *logrus.Logger (or Entry) to the Logger interface,
// turning variadic key-value args into structured fields.
type LogrusLogger struct {
	entry *logrus.Entry
}

// NewLogrusLogger builds a LogrusLogger around a fresh text-formatted
// logrus.Logger writing to stderr at the given level.
func NewLogrusLogger(level logrus.Level) *LogrusLogger {
	l := logrus.New()
	l.SetLevel(level)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return &LogrusLogger{entry: logrus.NewEntry(l)}
}

// WithField returns a logger scoped to one additional structured field,
// e.g. NewLogrusLogger(...).WithField("session", id).
func (l *LogrusLogger) WithField(key string, value interface{}) *LogrusLogger {
	return &LogrusLogger{entry: l.entry.WithField(key, value)}
}

func (l *LogrusLogger) fields(args []interface{}) *logrus.Entry {
	if len(args) == 0 {
		return l.entry
	}
	fields := make(logrus.Fields, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		fields[key] = args[i+1]
	}
	return l.entry.WithFields(fields)
}

func (l *LogrusLogger) Debug(msg string, args ...interface{}) { l.fields(args).Debug(msg) }
func (l *LogrusLogger) Info(msg string, args ...interface{})  { l.fields(args).Info(msg) }
func (l *LogrusLogger) Warn(msg string, args ...interface{})  { l.fields(args).Warn(msg) }
func (l *LogrusLogger) Error(msg string, args ...interface{}) { l.fields(args).Error(msg) }
