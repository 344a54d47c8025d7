// Package cmd implements the command-line interface for notion-mcp-server.
//
// This package provides the following commands:
//   - serve: Start the MCP server over stdio or streamable HTTP
//   - version: Display version information
package cmd
