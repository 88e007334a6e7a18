package logger

import (
	"io"
	"os"

	log "github.com/sirupsen/logrus"
)

// Fields carries structured context attached to every line of a derived Logger.
type Fields = log.Fields

// Logger defines the navstore logging contract.
// Implementations should support standard log levels and be safe for concurrent use.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	Debug(msg string, args ...any)

	// With returns a Logger which adds fields to every line.
	With(fields Fields) Logger
}

// LogrusLogger implements Logger on top of a logrus entry.
type LogrusLogger struct {
	entry *log.Entry
}

// New creates a LogrusLogger writing text lines to w at the given level.
func New(w io.Writer, level log.Level) *LogrusLogger {
	l := log.New()
	l.SetOutput(w)
	l.SetLevel(level)
	l.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	return &LogrusLogger{entry: log.NewEntry(l)}
}

// NewLogrusLogger wraps an existing logrus logger.
func NewLogrusLogger(l *log.Logger) *LogrusLogger {
	return &LogrusLogger{entry: log.NewEntry(l)}
}

func (l *LogrusLogger) Info(msg string, args ...any) {
	l.entry.Infof(msg, args...)
}

func (l *LogrusLogger) Warn(msg string, args ...any) {
	l.entry.Warnf(msg, args...)
}

func (l *LogrusLogger) Error(msg string, args ...any) {
	l.entry.Errorf(msg, args...)
}

func (l *LogrusLogger) Debug(msg string, args ...any) {
	l.entry.Debugf(msg, args...)
}

func (l *LogrusLogger) With(fields Fields) Logger {
	return &LogrusLogger{entry: l.entry.WithFields(fields)}
}

// Discard is a Logger which drops everything. Useful for tests and probes.
var Discard Logger = New(io.Discard, log.PanicLevel)

// Default provides a process-wide default logger writing to stderr at info level.
var Default Logger = New(os.Stderr, log.InfoLevel)
