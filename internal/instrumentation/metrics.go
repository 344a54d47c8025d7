package instrumentation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	attrMethod    = "method"
	attrPath      = "path"
	attrStatus    = "status"
	attrOperation = "operation"
	attrResult    = "result"
	attrDecision  = "decision"
	attrGrantType = "grant_type"
	attrTool      = "tool"
	attrWorkspace = "workspace_id"
)

// Metrics provides methods for recording observability metrics.
type Metrics struct {
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram

	// Notion API
	notionAPIOperationsTotal   metric.Int64Counter
	notionAPIOperationDuration metric.Float64Histogram

	// Consent and upstream exchange
	consentDecisionsTotal metric.Int64Counter
	tokenExchangeTotal    metric.Int64Counter
	tokenExchangeDuration metric.Float64Histogram

	// MCP authorization server
	oauthTokensIssuedTotal metric.Int64Counter

	toolInvocationsTotal metric.Int64Counter
	toolDuration         metric.Float64Histogram

	detailedLabels bool
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
func NewMetrics(meter metric.Meter, detailedLabels bool) (*Metrics, error) {
	m := &Metrics{detailedLabels: detailedLabels}

	var err error

	m.httpRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_requests_total counter: %w", err)
	}

	m.httpRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_request_duration_seconds histogram: %w", err)
	}

	m.notionAPIOperationsTotal, err = meter.Int64Counter(
		"notion_api_operations_total",
		metric.WithDescription("Total number of Notion API operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create notion_api_operations_total counter: %w", err)
	}

	m.notionAPIOperationDuration, err = meter.Float64Histogram(
		"notion_api_operation_duration_seconds",
		metric.WithDescription("Notion API operation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create notion_api_operation_duration_seconds histogram: %w", err)
	}

	m.consentDecisionsTotal, err = meter.Int64Counter(
		"oauth_consent_decisions_total",
		metric.WithDescription("Total number of consent gate decisions"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth_consent_decisions_total counter: %w", err)
	}

	m.tokenExchangeTotal, err = meter.Int64Counter(
		"oauth_upstream_exchange_total",
		metric.WithDescription("Total number of upstream authorization code exchanges"),
		metric.WithUnit("{exchange}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth_upstream_exchange_total counter: %w", err)
	}

	m.tokenExchangeDuration, err = meter.Float64Histogram(
		"oauth_upstream_exchange_duration_seconds",
		metric.WithDescription("Upstream authorization code exchange duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth_upstream_exchange_duration_seconds histogram: %w", err)
	}

	m.oauthTokensIssuedTotal, err = meter.Int64Counter(
		"oauth_tokens_issued_total",
		metric.WithDescription("Total number of MCP access tokens issued by grant type"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth_tokens_issued_total counter: %w", err)
	}

	m.toolInvocationsTotal, err = meter.Int64Counter(
		"mcp_tool_invocations_total",
		metric.WithDescription("Total number of MCP tool invocations"),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mcp_tool_invocations_total counter: %w", err)
	}

	m.toolDuration, err = meter.Float64Histogram(
		"mcp_tool_duration_seconds",
		metric.WithDescription("MCP tool execution duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mcp_tool_duration_seconds histogram: %w", err)
	}

	return m, nil
}

// RecordHTTPRequest records an HTTP request with method, path, status code, and duration.
// The path is normalized to keep label cardinality bounded.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	if m == nil || m.httpRequestsTotal == nil || m.httpRequestDuration == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(attrMethod, method),
		attribute.String(attrPath, NormalizePath(path)),
		attribute.String(attrStatus, strconv.Itoa(statusCode)),
	)

	m.httpRequestsTotal.Add(ctx, 1, attrs)
	m.httpRequestDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordNotionAPIOperation records a Notion API call.
//
// Parameters:
//   - operation: e.g. "pages.get", "databases.query", "search"
//   - status: "success" or "error"
func (m *Metrics) RecordNotionAPIOperation(ctx context.Context, operation, status string, duration time.Duration) {
	if m == nil || m.notionAPIOperationsTotal == nil || m.notionAPIOperationDuration == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	)

	m.notionAPIOperationsTotal.Add(ctx, 1, attrs)
	m.notionAPIOperationDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordConsentDecision records the outcome of the consent gate or dialog.
// Decision is one of the Consent* constants.
func (m *Metrics) RecordConsentDecision(ctx context.Context, decision string) {
	if m == nil || m.consentDecisionsTotal == nil {
		return
	}
	m.consentDecisionsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrDecision, decision)))
}

// RecordTokenExchange records an upstream code exchange.
// Result is one of the Exchange* constants.
func (m *Metrics) RecordTokenExchange(ctx context.Context, result string, duration time.Duration) {
	if m == nil || m.tokenExchangeTotal == nil || m.tokenExchangeDuration == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String(attrResult, result))
	m.tokenExchangeTotal.Add(ctx, 1, attrs)
	m.tokenExchangeDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordTokenIssued records an access token minted by the MCP token endpoint.
func (m *Metrics) RecordTokenIssued(ctx context.Context, grantType string) {
	if m == nil || m.oauthTokensIssuedTotal == nil {
		return
	}
	m.oauthTokensIssuedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrGrantType, grantType)))
}

// RecordToolInvocation records an MCP tool invocation with tool name, status, and duration.
// The workspace label is only attached when detailed labels are enabled.
func (m *Metrics) RecordToolInvocation(ctx context.Context, toolName, status, workspaceID string, duration time.Duration) {
	if m == nil || m.toolInvocationsTotal == nil || m.toolDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrTool, toolName),
		attribute.String(attrStatus, status),
	}
	if m.detailedLabels && workspaceID != "" {
		attrs = append(attrs, attribute.String(attrWorkspace, workspaceID))
	}

	m.toolInvocationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.toolDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}
