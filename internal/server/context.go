package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nedasvi/notion-mcp-server-remote/internal/instrumentation"
	"github.com/nedasvi/notion-mcp-server-remote/internal/mcp/oauth"
	"github.com/nedasvi/notion-mcp-server-remote/internal/notion"
)

// ErrNoCredential means neither the request nor the token provider holds a
// Notion credential for the caller.
var ErrNoCredential = errors.New("no Notion credential available; complete the OAuth flow or set NOTION_TOKEN")

// ServerContext holds the shared dependencies of the MCP tools.
type ServerContext struct {
	ctx    context.Context
	cancel context.CancelFunc

	api    *notion.API
	tokens *TokenProvider
	logger *slog.Logger

	mu          sync.RWMutex
	metrics     *instrumentation.Metrics
	auditLogger *instrumentation.AuditLogger
	shutdown    bool
}

// NewServerContext creates a server context. Both api and tokens are required.
func NewServerContext(ctx context.Context, api *notion.API, tokens *TokenProvider, logger *slog.Logger) (*ServerContext, error) {
	if api == nil {
		return nil, fmt.Errorf("notion API is required")
	}
	if tokens == nil {
		return nil, fmt.Errorf("token provider is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	shutdownCtx, cancel := context.WithCancel(ctx)
	return &ServerContext{
		ctx:    shutdownCtx,
		cancel: cancel,
		api:    api,
		tokens: tokens,
		logger: logger,
	}, nil
}

// Context returns the server context
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Logger returns the server logger.
func (sc *ServerContext) Logger() *slog.Logger {
	return sc.logger
}

// Tokens returns the token provider.
func (sc *ServerContext) Tokens() *TokenProvider {
	return sc.tokens
}

// NotionClient returns a Notion client for the caller of ctx.
//
// Requests authenticated through the MCP authorization server carry the
// upstream token in their grant. Everything else falls back to the token
// provider, keyed by the grant's user id or DefaultAccount.
func (sc *ServerContext) NotionClient(ctx context.Context) (*notion.Client, error) {
	account := DefaultAccount
	if grant, ok := oauth.GrantFromContext(ctx); ok {
		if token := grant.Props[notion.PropAccessToken]; token != "" {
			return sc.api.ClientForToken(token), nil
		}
		account = grant.UserID
	}

	ts, err := sc.tokens.TokenSource(ctx, account)
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return nil, ErrNoCredential
		}
		return nil, err
	}
	return sc.api.Client(ts), nil
}

// SetMetrics sets the metrics instance for tool instrumentation.
func (sc *ServerContext) SetMetrics(m *instrumentation.Metrics) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.metrics = m
}

// Metrics returns the metrics instance, or nil when not configured.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.metrics
}

// SetAuditLogger sets the audit logger for tool invocations.
func (sc *ServerContext) SetAuditLogger(al *instrumentation.AuditLogger) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.auditLogger = al
}

// AuditLogger returns the audit logger, or nil when not configured.
func (sc *ServerContext) AuditLogger() *instrumentation.AuditLogger {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.auditLogger
}

// IsShutdown returns whether the server has been shutdown
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown shuts down the server context
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.cancel()
	return nil
}
