package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/nedasvi/notion-mcp-server-remote/internal/instrumentation"
	"github.com/nedasvi/notion-mcp-server-remote/internal/mcp/oauth"
)

// MCPEndpointPath is where the streamable HTTP transport is served.
const MCPEndpointPath = "/mcp"

// HTTPServerConfig configures the public listener.
type HTTPServerConfig struct {
	// BaseURL is the public URL clients reach this server at. It must be
	// HTTPS unless it points at loopback.
	BaseURL string

	// DisableStreaming answers MCP requests with plain JSON instead of SSE.
	DisableStreaming bool

	// TLSCertFile and TLSKeyFile enable HTTPS when both are set.
	TLSCertFile string
	TLSKeyFile  string

	Logger *slog.Logger
}

// OAuthHTTPServer serves the MCP endpoint behind the local OAuth 2.1
// authorization server, together with the consent flow that delegates
// user authentication to Notion.
type OAuthHTTPServer struct {
	mcpServer    *mcpserver.MCPServer
	oauthHandler *oauth.Handler
	consent      *ConsentHandler
	config       HTTPServerConfig
	logger       *slog.Logger

	mu         sync.Mutex
	health     *HealthChecker
	metrics    *instrumentation.Metrics
	httpServer *http.Server
}

// NewOAuthHTTPServer validates the configuration and wires the handlers.
func NewOAuthHTTPServer(mcpServer *mcpserver.MCPServer, oauthHandler *oauth.Handler, consent *ConsentHandler, config HTTPServerConfig) (*OAuthHTTPServer, error) {
	if mcpServer == nil || oauthHandler == nil || consent == nil {
		return nil, fmt.Errorf("MCP server, OAuth handler and consent handler are required")
	}
	if err := validateHTTPSRequirement(config.BaseURL); err != nil {
		return nil, err
	}
	if (config.TLSCertFile == "") != (config.TLSKeyFile == "") {
		return nil, fmt.Errorf("both TLS certificate and key files must be provided")
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &OAuthHTTPServer{
		mcpServer:    mcpServer,
		oauthHandler: oauthHandler,
		consent:      consent,
		config:       config,
		logger:       config.Logger,
	}, nil
}

// SetHealthChecker enables the health endpoints.
func (s *OAuthHTTPServer) SetHealthChecker(h *HealthChecker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.health = h
}

// SetMetrics enables HTTP request metrics.
func (s *OAuthHTTPServer) SetMetrics(m *instrumentation.Metrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = m
}

// Handler builds the full router. It is rebuilt on every call.
func (s *OAuthHTTPServer) Handler() http.Handler {
	s.mu.Lock()
	health := s.health
	s.mu.Unlock()

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer, s.instrumentationMiddleware)

	if health != nil {
		health.Routes(r)
	}

	r.Group(func(r chi.Router) {
		r.Use(s.oauthHandler.RateLimitMiddleware)

		r.Get(oauth.PathProtectedResourceMeta, s.oauthHandler.ServeProtectedResourceMetadata)
		r.Get(oauth.PathProtectedResourceMeta+MCPEndpointPath, s.oauthHandler.ServeProtectedResourceMetadata)
		r.Get(oauth.PathAuthorizationServerMeta, s.oauthHandler.ServeAuthorizationServerMetadata)
		r.Post(oauth.PathRegister, s.oauthHandler.ServeClientRegistration)
		r.Post(oauth.PathToken, s.oauthHandler.ServeToken)
		r.Post(oauth.PathRevoke, s.oauthHandler.ServeRevoke)

		r.Get(oauth.PathAuthorize, s.consent.ServeAuthorize)
		r.Post(oauth.PathAuthorize, s.consent.ServeApproval)
		r.Get(oauth.PathCallback, s.consent.ServeCallback)

		r.Handle(MCPEndpointPath, s.oauthHandler.ValidateToken(s.mcpHandler()))
	})

	return otelhttp.NewHandler(r, "http.server",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + instrumentation.NormalizePath(r.URL.Path)
		}),
	)
}

func (s *OAuthHTTPServer) mcpHandler() http.Handler {
	opts := []mcpserver.StreamableHTTPOption{
		mcpserver.WithEndpointPath(MCPEndpointPath),
		mcpserver.WithHTTPContextFunc(grantContext),
	}
	if s.config.DisableStreaming {
		opts = append(opts, mcpserver.WithDisableStreaming(true))
	}
	return mcpserver.NewStreamableHTTPServer(s.mcpServer, opts...)
}

// grantContext copies the validated grant into the context tool handlers see.
func grantContext(ctx context.Context, r *http.Request) context.Context {
	if grant, ok := oauth.GrantFromContext(r.Context()); ok {
		return oauth.ContextWithGrant(ctx, grant)
	}
	return ctx
}

// instrumentationMiddleware records request count and latency per route.
func (s *OAuthHTTPServer) instrumentationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		metrics := s.metrics
		s.mu.Unlock()
		if metrics == nil {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.RecordHTTPRequest(r.Context(), r.Method, r.URL.Path, status, time.Since(start))
	})
}

// Start listens on addr and blocks until the server stops.
func (s *OAuthHTTPServer) Start(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// No WriteTimeout: MCP responses may stream for the duration of a tool call.
		IdleTimeout: 120 * time.Second,
	}
	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	if s.config.TLSCertFile != "" {
		s.logger.Info("Starting HTTPS server", "addr", addr)
		return srv.ListenAndServeTLS(s.config.TLSCertFile, s.config.TLSKeyFile)
	}
	s.logger.Info("Starting HTTP server", "addr", addr)
	return srv.ListenAndServe()
}

// Shutdown gracefully shuts down the server and stops the OAuth handler's
// background work.
func (s *OAuthHTTPServer) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()

	defer s.oauthHandler.Stop()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// validateHTTPSRequirement allows plain HTTP only for loopback hosts.
func validateHTTPSRequirement(baseURL string) error {
	if baseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}

	switch u.Scheme {
	case "https":
		return nil
	case "http":
		host := u.Hostname()
		if host != "localhost" && host != "127.0.0.1" && host != "::1" {
			return fmt.Errorf("OAuth 2.1 requires HTTPS for production (got: %s). Use HTTPS or localhost for development", baseURL)
		}
		return nil
	default:
		return fmt.Errorf("invalid URL scheme: %q. Must be http (localhost only) or https", u.Scheme)
	}
}
