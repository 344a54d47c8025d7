package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestNewRetryLogger_WithNil(t *testing.T) {
	l := NewRetryLogger(nil)
	if l.logger != slog.Default() {
		t.Error("nil logger should fall back to slog.Default()")
	}
}

func TestRetryLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	l := NewRetryLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	tests := []struct {
		log  func(string, ...interface{})
		msg  string
		want string
	}{
		{l.Debug, "performing request", "level=DEBUG"},
		{l.Info, "info", "level=INFO"},
		{l.Warn, "warn", "level=WARN"},
		// A failed attempt is not a failed request.
		{l.Error, "request failed", "level=WARN"},
	}
	for _, tt := range tests {
		buf.Reset()
		tt.log(tt.msg, "attempt", 1)
		out := buf.String()
		if !strings.Contains(out, tt.want) || !strings.Contains(out, "attempt=1") {
			t.Errorf("%s: got %q, want %s with attempt=1", tt.msg, out, tt.want)
		}
	}
}
