// Package logging provides structured logging utilities for the Notion MCP server.
//
// This package centralizes logging patterns to ensure consistent, structured logging
// throughout the codebase using the standard library's slog package.
//
// # Usage Patterns
//
// Create a logger with standard attributes:
//
//	logger := logging.WithOperation(slog.Default(), "oauth.callback")
//	logger.Info("authorization completed",
//	    logging.Status("success"),
//	    logging.UserHash(botID))
//
// # Security Considerations
//
// Access tokens, client secrets and the cookie signing secret are never
// logged. Use SanitizeToken or HashForLogging when a value must be
// referenced in a log record.
package logging
