// Package resources provides MCP resources describing the Notion installation
// a session is bound to. Resources are read-only data sources that MCP
// clients can fetch alongside tool calls.
package resources
