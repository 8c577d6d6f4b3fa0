package telemetry

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Logger exposes the logging capabilities required by the replay components.
type Logger interface {
	Printf(format string, args ...any)
}

// LoggerFunc adapts functions into the Logger interface.
type LoggerFunc func(format string, args ...any)

// Printf implements Logger for LoggerFunc.
func (f LoggerFunc) Printf(format string, args ...any) {
	if f == nil {
		return
	}
	f(format, args...)
}

// NewLogger builds a logrus-backed Logger writing text lines to w.
func NewLogger(w io.Writer, level string) Logger {
	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if parsed, err := logrus.ParseLevel(level); err == nil {
		logger.SetLevel(parsed)
	}
	return WrapLogrus(logger)
}

// WrapLogrus adapts a logrus logger to the Logger interface.
func WrapLogrus(logger *logrus.Logger) Logger {
	return &logrusAdapter{logger: logger}
}

type logrusAdapter struct {
	logger *logrus.Logger
}

func (l *logrusAdapter) Printf(format string, args ...any) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Infof(format, args...)
}

// Metrics exposes the telemetry methods required by the replay components.
type Metrics interface {
	Add(key string, delta uint64)
	Store(key string, value uint64)
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) Add(string, uint64)   {}
func (NopMetrics) Store(string, uint64) {}
