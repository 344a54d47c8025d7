// Package instrumentation provides OpenTelemetry instrumentation for the
// Notion MCP server.
//
// # Metrics
//
// Server/HTTP:
//   - http_requests_total, http_request_duration_seconds
//
// OAuth:
//   - oauth_consent_decisions_total: consent gate outcomes (skipped, shown, approved, denied)
//   - oauth_upstream_exchange_total, oauth_upstream_exchange_duration_seconds
//   - oauth_tokens_issued_total: MCP access tokens by grant type
//
// Notion API:
//   - notion_api_operations_total, notion_api_operation_duration_seconds
//
// MCP tools:
//   - mcp_tool_invocations_total, mcp_tool_duration_seconds
//
// # Configuration
//
//	INSTRUMENTATION_ENABLED=true
//	METRICS_EXPORTER=prometheus      # prometheus, otlp, stdout
//	TRACING_EXPORTER=none            # otlp, stdout, none
//	OTEL_EXPORTER_OTLP_ENDPOINT=localhost:4318
//	OTEL_TRACES_SAMPLER_ARG=0.1
//
// Metrics are served by a dedicated metrics server, never on the public
// MCP port.
package instrumentation
