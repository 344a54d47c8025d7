package logging

import (
	"log/slog"

	"github.com/hashicorp/go-retryablehttp"
)

var _ retryablehttp.LeveledLogger = (*RetryLogger)(nil)

// RetryLogger feeds go-retryablehttp's per-attempt logging into slog.
//
// retryablehttp reports every failed attempt at error level even when a
// later attempt succeeds, so Error is written as a warning. Callers log the
// final outcome of a request themselves.
type RetryLogger struct {
	logger *slog.Logger
}

// NewRetryLogger wraps logger, or slog.Default() when it is nil.
func NewRetryLogger(logger *slog.Logger) *RetryLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &RetryLogger{logger: logger}
}

func (l *RetryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l *RetryLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Info(msg, keysAndValues...)
}

func (l *RetryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn(msg, keysAndValues...)
}

func (l *RetryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Warn(msg, keysAndValues...)
}
