package instrumentation

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestToolInvocation_Lifecycle(t *testing.T) {
	ti := NewToolInvocation("notion_get_page").
		WithIdentity("bot-1", "ws-1").
		WithOperation(OperationPagesGet, "page-1")

	if ti.StartTime.IsZero() {
		t.Fatal("StartTime should be set")
	}

	ti.Complete(false, errors.New("not found"))

	if ti.Status() != StatusError {
		t.Errorf("Status() = %q, want %q", ti.Status(), StatusError)
	}
	if ti.Error != "not found" {
		t.Errorf("Error = %q", ti.Error)
	}
}

func TestAuditLogger_HashesIdentifiersByDefault(t *testing.T) {
	var buf bytes.Buffer
	al := NewAuditLogger(slog.New(slog.NewTextHandler(&buf, nil)))

	ti := NewToolInvocation("notion_search").WithIdentity("bot-secret-id", "ws-secret-id")
	al.LogToolInvocation(ti.Complete(true, nil))

	out := buf.String()
	if strings.Contains(out, "bot-secret-id") || strings.Contains(out, "ws-secret-id") {
		t.Errorf("identifiers leaked into log: %s", out)
	}
	if !strings.Contains(out, "tool_executed") {
		t.Errorf("expected tool_executed message, got %s", out)
	}
}

func TestAuditLogger_IncludeIdentifiers(t *testing.T) {
	var buf bytes.Buffer
	al := NewAuditLoggerWithConfig(slog.New(slog.NewTextHandler(&buf, nil)), AuditLoggingConfig{
		Enabled:            true,
		IncludeIdentifiers: true,
	})

	ti := NewToolInvocation("notion_search").WithIdentity("bot-1", "ws-1")
	al.LogToolInvocation(ti.Complete(false, errors.New("boom")))

	out := buf.String()
	if !strings.Contains(out, "bot-1") || !strings.Contains(out, "tool_failed") {
		t.Errorf("unexpected log output: %s", out)
	}
}

func TestAuditLogger_Disabled(t *testing.T) {
	var buf bytes.Buffer
	al := NewAuditLoggerWithConfig(slog.New(slog.NewTextHandler(&buf, nil)), AuditLoggingConfig{Enabled: false})

	al.LogToolInvocation(NewToolInvocation("x").Complete(true, nil))

	if buf.Len() != 0 {
		t.Errorf("expected no output, got %s", buf.String())
	}

	var nilLogger *AuditLogger
	nilLogger.LogToolInvocation(NewToolInvocation("x"))
}
