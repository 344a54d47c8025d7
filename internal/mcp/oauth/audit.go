package oauth

import (
	"context"
	"log/slog"
	"time"

	"github.com/nedasvi/notion-mcp-server-remote/internal/logging"
)

// AuditEventType represents the type of audit event
type AuditEventType string

const (
	AuditEventAuthorizationCompleted AuditEventType = "authorization_completed"
	AuditEventTokenIssued            AuditEventType = "token_issued"
	AuditEventTokenRefreshed         AuditEventType = "token_refreshed"
	AuditEventTokenRevoked           AuditEventType = "token_revoked"
	AuditEventInvalidToken           AuditEventType = "invalid_token"
	AuditEventInvalidGrant           AuditEventType = "invalid_grant"
	AuditEventClientAuthFailure      AuditEventType = "client_auth_failure"
	AuditEventClientRegistered       AuditEventType = "client_registered"
	AuditEventRateLimitExceeded      AuditEventType = "rate_limit_exceeded"
	AuditEventInvalidPKCE            AuditEventType = "invalid_pkce"
	AuditEventInvalidRedirect        AuditEventType = "invalid_redirect"
)

// AuditEvent represents a security audit event
type AuditEvent struct {
	EventType AuditEventType

	// UserID is hashed before logging
	UserID    string
	ClientID  string
	IPAddress string
	Success   bool

	ErrorMessage string
	Metadata     map[string]string
}

// AuditLogger writes security audit events. A nil or disabled logger drops
// events.
type AuditLogger struct {
	logger  *slog.Logger
	enabled bool
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *slog.Logger, enabled bool) *AuditLogger {
	return &AuditLogger{
		logger:  logging.WithComponent(logger, "oauth_audit"),
		enabled: enabled,
	}
}

// LogEvent logs an audit event. Failures and security events log at warn.
func (a *AuditLogger) LogEvent(event AuditEvent) {
	if a == nil || !a.enabled {
		return
	}

	level := slog.LevelInfo
	switch event.EventType {
	case AuditEventInvalidToken, AuditEventInvalidGrant, AuditEventClientAuthFailure,
		AuditEventRateLimitExceeded, AuditEventInvalidPKCE, AuditEventInvalidRedirect:
		level = slog.LevelWarn
	}
	if !event.Success {
		level = slog.LevelWarn
	}

	attrs := []slog.Attr{
		slog.String("event_type", string(event.EventType)),
		slog.Time("timestamp", time.Now()),
		slog.Bool("success", event.Success),
	}
	if event.UserID != "" {
		attrs = append(attrs, logging.UserHash(event.UserID))
	}
	if event.ClientID != "" {
		attrs = append(attrs, logging.ClientID(event.ClientID))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.ErrorMessage != "" {
		attrs = append(attrs, slog.String("error", event.ErrorMessage))
	}
	for key, value := range event.Metadata {
		attrs = append(attrs, slog.String("meta_"+key, value))
	}

	a.logger.LogAttrs(context.Background(), level, "audit_event", attrs...)
}

func (a *AuditLogger) failure(eventType AuditEventType, clientID, ip, reason string) {
	a.LogEvent(AuditEvent{
		EventType:    eventType,
		ClientID:     clientID,
		IPAddress:    ip,
		ErrorMessage: reason,
	})
}
