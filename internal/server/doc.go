// Package server wires the HTTP surface of the Notion MCP server.
//
// # Key Components
//
// ServerContext holds what MCP tools need at call time: the shared Notion
// API transport, the TokenProvider and the instrumentation hooks. Tools ask
// it for a Notion client and get one bound to the caller's installation.
//
// ConsentHandler runs the browser part of the OAuth flow:
//   - GET /authorize checks the signed consent cookie and either renders the
//     approval dialog or redirects to Notion
//   - POST /authorize records approval and redirects to Notion
//   - GET /callback exchanges Notion's code and completes the MCP
//     authorization with the installation's identity
//
// OAuthHTTPServer mounts the MCP authorization server endpoints, the consent
// flow and the streamable HTTP MCP endpoint on a chi router. /mcp requires a
// bearer token issued by the local authorization server.
//
// MetricsServer exposes Prometheus metrics on a separate listener and
// HealthChecker serves /healthz, /readyz and /health.
package server
