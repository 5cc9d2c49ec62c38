// internal/utils/logger.go

package utils

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger defines the interface for logging throughout the application.
type Logger interface {
	Debug(msg string)
	Debugf(format string, args ...interface{})
	Info(msg string)
	Infof(format string, args ...interface{})
	Warn(msg string)
	Warnf(format string, args ...interface{})
	Error(msg string)
	Errorf(format string, args ...interface{})
	WithField(key string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
}

// LogLevel represents the severity of a log message.
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l LogLevel) toLogrus() logrus.Level {
	switch l {
	case DebugLevel:
		return logrus.DebugLevel
	case WarnLevel:
		return logrus.WarnLevel
	case ErrorLevel:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// logrusLogger adapts a logrus entry to the Logger interface so packages
// never import logrus directly.
type logrusLogger struct {
	entry *logrus.Entry
}

// NewLogger creates a logger at info level writing to stderr.
func NewLogger() Logger {
	return NewLoggerWithLevel(InfoLevel)
}

// NewLoggerWithLevel creates a logger with the specified log level.
func NewLoggerWithLevel(level LogLevel) Logger {
	base := logrus.New()
	base.SetOutput(os.Stderr)
	base.SetLevel(level.toLogrus())
	base.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	return &logrusLogger{entry: logrus.NewEntry(base)}
}

// NewLoggerFromConfig builds a logger from the logging section of a config
// file: level is one of debug/info/warn/error, format is text or json.
func NewLoggerFromConfig(level, format string) (Logger, error) {
	lv, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	base := logrus.New()
	base.SetOutput(os.Stderr)
	base.SetLevel(lv)

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		base.SetFormatter(&logrus.JSONFormatter{})
	case "", "text":
		base.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	default:
		return nil, fmt.Errorf("invalid log format %q: want text or json", format)
	}

	return &logrusLogger{entry: logrus.NewEntry(base)}, nil
}

// NewLoggerWithOutput creates a text logger writing to w. Tests use this to
// capture output.
func NewLoggerWithOutput(level LogLevel, w io.Writer) Logger {
	base := logrus.New()
	base.SetOutput(w)
	base.SetLevel(level.toLogrus())
	base.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	return &logrusLogger{entry: logrus.NewEntry(base)}
}

func (l *logrusLogger) Debug(msg string) {
	l.entry.Debug(msg)
}

func (l *logrusLogger) Debugf(format string, args ...interface{}) {
	l.entry.Debugf(format, args...)
}

func (l *logrusLogger) Info(msg string) {
	l.entry.Info(msg)
}

func (l *logrusLogger) Infof(format string, args ...interface{}) {
	l.entry.Infof(format, args...)
}

func (l *logrusLogger) Warn(msg string) {
	l.entry.Warn(msg)
}

func (l *logrusLogger) Warnf(format string, args ...interface{}) {
	l.entry.Warnf(format, args...)
}

func (l *logrusLogger) Error(msg string) {
	l.entry.Error(msg)
}

func (l *logrusLogger) Errorf(format string, args ...interface{}) {
	l.entry.Errorf(format, args...)
}

func (l *logrusLogger) WithField(key string, value interface{}) Logger {
	return &logrusLogger{entry: l.entry.WithField(key, value)}
}

func (l *logrusLogger) WithFields(fields map[string]interface{}) Logger {
	return &logrusLogger{entry: l.entry.WithFields(logrus.Fields(fields))}
}
