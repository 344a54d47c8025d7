package common

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/nedasvi/notion-mcp-server-remote/internal/instrumentation"
	"github.com/nedasvi/notion-mcp-server-remote/internal/server"
)

var errToolResult = errors.New("tool returned an error result")

// ToolHandler is the mcp-go tool handler signature.
type ToolHandler = func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)

// InstrumentedToolHandler wraps a tool handler with a span, metrics and
// audit logging. operation is the Notion operation the tool performs.
//
// Usage:
//
//	s.AddTool(tool, common.InstrumentedToolHandler("notion_get_page", instrumentation.OperationPagesGet, sc, handler))
func InstrumentedToolHandler(toolName, operation string, sc *server.ServerContext, handler ToolHandler) ToolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		metrics := sc.Metrics()
		auditLogger := sc.AuditLogger()

		if metrics == nil && auditLogger == nil {
			return handler(ctx, request)
		}

		identity := IdentityFromContext(ctx)
		resourceID := ResourceIDFromArgs(request.GetArguments())

		ctx, span := instrumentation.StartToolSpan(ctx, toolName, instrumentation.NewSpanAttributeBuilder().
			WithOperation(operation).
			WithWorkspace(identity.WorkspaceID).
			WithResource(resourceType(operation), resourceID).
			WithReadOnly(isReadOnly(operation)).
			Build()...)
		defer span.End()

		start := time.Now()
		invocation := instrumentation.NewToolInvocation(toolName).
			WithIdentity(identity.UserID, identity.WorkspaceID).
			WithOperation(operation, resourceID).
			WithSpanContext(ctx)

		result, err := handler(ctx, request)
		duration := time.Since(start)

		status := instrumentation.StatusSuccess
		switch {
		case err != nil:
			status = instrumentation.StatusError
			invocation.Complete(false, err)
			instrumentation.SetSpanError(span, err)
		case result != nil && result.IsError:
			status = instrumentation.StatusError
			invocation.Complete(false, nil)
			instrumentation.SetSpanError(span, errToolResult)
		default:
			invocation.Complete(true, nil)
			instrumentation.SetSpanSuccess(span)
		}

		metrics.RecordToolInvocation(ctx, toolName, status, identity.WorkspaceID, duration)
		auditLogger.LogToolInvocation(invocation)

		return result, err
	}
}

// resourceType is the object kind of a dotted operation name, e.g. "pages".
func resourceType(operation string) string {
	kind, _, _ := strings.Cut(operation, ".")
	return kind
}

func isReadOnly(operation string) bool {
	switch operation {
	case instrumentation.OperationPagesCreate,
		instrumentation.OperationPagesUpdate,
		instrumentation.OperationBlocksAppend,
		instrumentation.OperationBlocksDelete,
		instrumentation.OperationCommentsCreate:
		return false
	}
	return true
}
