package instrumentation

import (
	"context"
	"log/slog"
	"time"

	"github.com/nedasvi/notion-mcp-server-remote/internal/logging"
)

// ToolInvocation captures one MCP tool call for audit logging.
//
// UserID and WorkspaceID identify a Notion integration installation. They
// are hashed in operational logs unless the audit logger is configured to
// include identifiers.
type ToolInvocation struct {
	Tool string

	UserID      string
	WorkspaceID string
	Operation   string
	ResourceID  string

	StartTime time.Time
	Duration  time.Duration
	Success   bool
	Error     string

	TraceID string
	SpanID  string
}

// Status returns "success" or "error" based on the Success field.
func (ti *ToolInvocation) Status() string {
	if ti.Success {
		return StatusSuccess
	}
	return StatusError
}

// LogAttrs returns slog attributes with identifiers replaced by fingerprints.
func (ti *ToolInvocation) LogAttrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String("tool", ti.Tool),
		logging.UserHash(ti.UserID),
		slog.Duration("duration", ti.Duration),
		slog.Bool("success", ti.Success),
	}
	if ti.WorkspaceID != "" {
		attrs = append(attrs, slog.String("workspace_hash", logging.HashForLogging(ti.WorkspaceID)))
	}
	return ti.appendCommon(attrs)
}

// LogAuditAttrs returns slog attributes including raw identifiers.
func (ti *ToolInvocation) LogAuditAttrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String("tool", ti.Tool),
		slog.String("user_id", ti.UserID),
		slog.Duration("duration", ti.Duration),
		slog.Bool("success", ti.Success),
	}
	if ti.WorkspaceID != "" {
		attrs = append(attrs, logging.Workspace(ti.WorkspaceID))
	}
	if ti.ResourceID != "" {
		attrs = append(attrs, slog.String("resource_id", ti.ResourceID))
	}
	return ti.appendCommon(attrs)
}

func (ti *ToolInvocation) appendCommon(attrs []slog.Attr) []slog.Attr {
	if ti.Operation != "" {
		attrs = append(attrs, slog.String("operation", ti.Operation))
	}
	if ti.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", ti.TraceID))
	}
	if ti.SpanID != "" {
		attrs = append(attrs, slog.String("span_id", ti.SpanID))
	}
	if ti.Error != "" {
		attrs = append(attrs, slog.String("error", ti.Error))
	}
	return attrs
}

// NewToolInvocation creates a new ToolInvocation with timing started.
// Call Complete() when the tool operation finishes.
func NewToolInvocation(tool string) *ToolInvocation {
	return &ToolInvocation{
		Tool:      tool,
		StartTime: time.Now(),
	}
}

// WithIdentity sets the Notion bot and workspace the call runs as.
func (ti *ToolInvocation) WithIdentity(userID, workspaceID string) *ToolInvocation {
	ti.UserID = userID
	ti.WorkspaceID = workspaceID
	return ti
}

// WithOperation sets the Notion operation and the resource it targets.
func (ti *ToolInvocation) WithOperation(operation, resourceID string) *ToolInvocation {
	ti.Operation = operation
	ti.ResourceID = resourceID
	return ti
}

// WithSpanContext extracts trace context from the current span.
func (ti *ToolInvocation) WithSpanContext(ctx context.Context) *ToolInvocation {
	if traceID, spanID := spanIDs(ctx); traceID != "" {
		ti.TraceID = traceID
		ti.SpanID = spanID
	}
	return ti
}

// Complete marks the invocation as completed and calculates duration.
func (ti *ToolInvocation) Complete(success bool, err error) *ToolInvocation {
	ti.Duration = time.Since(ti.StartTime)
	ti.Success = success
	if err != nil {
		ti.Error = err.Error()
	}
	return ti
}

// AuditLogger provides structured audit logging for tool invocations.
type AuditLogger struct {
	logger             *slog.Logger
	includeIdentifiers bool
	enabled            bool
}

// NewAuditLogger creates an enabled AuditLogger that hashes identifiers.
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return NewAuditLoggerWithConfig(logger, AuditLoggingConfig{Enabled: true})
}

// NewAuditLoggerWithConfig creates a new AuditLogger with the given configuration.
func NewAuditLoggerWithConfig(logger *slog.Logger, config AuditLoggingConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:             logger,
		includeIdentifiers: config.IncludeIdentifiers,
		enabled:            config.Enabled,
	}
}

// LogToolInvocation logs a tool invocation at info on success and warn on failure.
func (al *AuditLogger) LogToolInvocation(ti *ToolInvocation) {
	if al == nil || !al.enabled {
		return
	}

	var attrs []slog.Attr
	if al.includeIdentifiers {
		attrs = ti.LogAuditAttrs()
	} else {
		attrs = ti.LogAttrs()
	}

	args := make([]any, len(attrs))
	for i, attr := range attrs {
		args[i] = attr
	}

	if ti.Success {
		al.logger.Info("tool_executed", args...)
	} else {
		al.logger.Warn("tool_failed", args...)
	}
}
