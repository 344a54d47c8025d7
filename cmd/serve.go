package cmd

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/giantswarm/mcp-oauth/storage/memory"
	"github.com/joho/godotenv"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/nedasvi/notion-mcp-server-remote/internal/approval"
	"github.com/nedasvi/notion-mcp-server-remote/internal/instrumentation"
	"github.com/nedasvi/notion-mcp-server-remote/internal/logging"
	"github.com/nedasvi/notion-mcp-server-remote/internal/mcp/oauth"
	"github.com/nedasvi/notion-mcp-server-remote/internal/notion"
	"github.com/nedasvi/notion-mcp-server-remote/internal/resources"
	"github.com/nedasvi/notion-mcp-server-remote/internal/server"
	"github.com/nedasvi/notion-mcp-server-remote/internal/tools/notion_tools"
)

const (
	transportStdio          = "stdio"
	transportStreamableHTTP = "streamable-http"

	encryptionKeyLength = 32
)

// OAuthSecurityConfig holds OAuth security settings
type OAuthSecurityConfig struct {
	RegistrationAccessToken       string
	AllowInsecureAuthWithoutState bool
	MaxClientsPerIP               int
	EncryptionKey                 []byte
	SupportedScopes               []string

	// Rate limiting per client IP
	RateLimit      int
	RateLimitBurst int
	TrustProxy     bool

	// TLS/HTTPS support
	TLSCertFile string
	TLSKeyFile  string
}

// NotionOAuthConfig holds the upstream integration settings
type NotionOAuthConfig struct {
	ClientID     string
	ClientSecret string
	AuthorizeURL string
	TokenURL     string

	// CookieSecret signs the approved-clients cookie
	CookieSecret string
}

// MetricsConfig holds configuration for the metrics server
type MetricsConfig struct {
	// Enabled determines whether to start the metrics server
	Enabled bool

	// Addr is the address for the metrics server (e.g., ":9090")
	Addr string
}

type serveConfig struct {
	transport        string
	httpAddr         string
	baseURL          string
	debugMode        bool
	readOnly         bool
	disableStreaming bool
	notionAPIURL     string
	notionToken      string

	notion   NotionOAuthConfig
	security OAuthSecurityConfig
	metrics  MetricsConfig
}

func newServeCmd() *cobra.Command {
	var (
		cfg           serveConfig
		encryptionKey string
		scopes        string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the Model Context Protocol (MCP) server exposing Notion tools to
AI assistants.

Supports multiple transport types:
  - stdio: Standard input/output (default)
  - streamable-http: Streamable HTTP transport

Read-only Mode:
  By default every tool is registered. Use --read-only to drop the tools
  that create, update or delete Notion content.

Configuration:
  Flags fall back to environment variables, and a .env file in the working
  directory is loaded when present.

  STDIO Transport:
    NOTION_TOKEN is the integration token used for every tool call.

  HTTP Transport:
    --base-url OR MCP_BASE_URL (auto-detected for localhost)
    --notion-client-id OR NOTION_OAUTH_CLIENT_ID (required)
    --notion-client-secret OR NOTION_OAUTH_CLIENT_SECRET (required)
    --cookie-secret OR COOKIE_ENCRYPTION_KEY (required)
    --encryption-key OR OAUTH_ENCRYPTION_KEY (base64, 32 bytes)
    --registration-token OR REGISTRATION_ACCESS_TOKEN
      Without a registration token, dynamic client registration is public.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("failed to load .env file: %w", err)
			}

			loadServeEnvVars(cmd, &cfg, &encryptionKey, &scopes)

			if encryptionKey != "" {
				key, err := parseEncryptionKey(encryptionKey)
				if err != nil {
					return err
				}
				cfg.security.EncryptionKey = key
			}
			cfg.security.SupportedScopes = parseCommaSeparatedList(scopes)

			return runServe(cfg)
		},
	}

	cmd.Flags().BoolVar(&cfg.debugMode, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&cfg.transport, "transport", transportStdio, "Transport type: stdio or streamable-http")
	cmd.Flags().StringVar(&cfg.httpAddr, "http-addr", ":8080", "HTTP server address (for streamable-http transport)")
	cmd.Flags().StringVar(&cfg.baseURL, "base-url", "", "Public base URL of the server (can also be set via MCP_BASE_URL)")
	cmd.Flags().BoolVar(&cfg.readOnly, "read-only", false, "Register only tools that do not modify Notion content")
	cmd.Flags().BoolVar(&cfg.disableStreaming, "disable-streaming", false, "Answer MCP requests with JSON instead of SSE (for streamable-http transport)")
	cmd.Flags().StringVar(&cfg.notionAPIURL, "notion-api-url", notion.DefaultBaseURL, "Notion API base URL (can also be set via NOTION_API_URL)")

	// Upstream OAuth
	cmd.Flags().StringVar(&cfg.notion.ClientID, "notion-client-id", "", "Notion OAuth client ID (can also be set via NOTION_OAUTH_CLIENT_ID)")
	cmd.Flags().StringVar(&cfg.notion.ClientSecret, "notion-client-secret", "", "Notion OAuth client secret (can also be set via NOTION_OAUTH_CLIENT_SECRET)")
	cmd.Flags().StringVar(&cfg.notion.AuthorizeURL, "notion-authorize-url", notion.DefaultAuthorizeURL, "Notion authorization endpoint (can also be set via NOTION_AUTHORIZE_URL)")
	cmd.Flags().StringVar(&cfg.notion.TokenURL, "notion-token-url", notion.DefaultTokenURL, "Notion token endpoint (can also be set via NOTION_TOKEN_URL)")
	cmd.Flags().StringVar(&cfg.notion.CookieSecret, "cookie-secret", "", "Secret signing the consent cookie (can also be set via COOKIE_ENCRYPTION_KEY)")

	// OAuth security
	cmd.Flags().StringVar(&cfg.security.RegistrationAccessToken, "registration-token", "", "Access token required for client registration (can also be set via REGISTRATION_ACCESS_TOKEN)")
	cmd.Flags().BoolVar(&cfg.security.AllowInsecureAuthWithoutState, "allow-insecure-auth-without-state", false, "Allow authorization requests without state parameter")
	cmd.Flags().IntVar(&cfg.security.MaxClientsPerIP, "max-clients-per-ip", oauth.DefaultMaxClientsPerIP, "Maximum number of clients that can be registered per IP address")
	cmd.Flags().StringVar(&encryptionKey, "encryption-key", "", "Base64-encoded 32-byte key encrypting grant props at rest (can also be set via OAUTH_ENCRYPTION_KEY)")
	cmd.Flags().StringVar(&scopes, "oauth-scopes", "", "Comma-separated scopes clients may request; empty accepts any (can also be set via OAUTH_SUPPORTED_SCOPES)")
	cmd.Flags().IntVar(&cfg.security.RateLimit, "rate-limit", 10, "Requests per second allowed per client IP (0 disables)")
	cmd.Flags().IntVar(&cfg.security.RateLimitBurst, "rate-limit-burst", 20, "Burst size allowed per client IP")
	cmd.Flags().BoolVar(&cfg.security.TrustProxy, "trust-proxy", false, "Trust X-Forwarded-For and X-Real-IP headers (can also be set via TRUST_PROXY)")

	// TLS/HTTPS support
	cmd.Flags().StringVar(&cfg.security.TLSCertFile, "tls-cert-file", "", "Path to TLS certificate file (PEM format) for HTTPS (can also be set via TLS_CERT_FILE)")
	cmd.Flags().StringVar(&cfg.security.TLSKeyFile, "tls-key-file", "", "Path to TLS private key file (PEM format) for HTTPS (can also be set via TLS_KEY_FILE)")

	// Metrics server
	cmd.Flags().BoolVar(&cfg.metrics.Enabled, "metrics-enabled", true, "Start the Prometheus metrics server (can also be set via METRICS_ENABLED)")
	cmd.Flags().StringVar(&cfg.metrics.Addr, "metrics-addr", server.DefaultMetricsAddr, "Metrics server address (can also be set via METRICS_ADDR)")

	return cmd
}

// loadServeEnvVars applies environment variables to every setting whose
// flag was not explicitly set.
func loadServeEnvVars(cmd *cobra.Command, cfg *serveConfig, encryptionKey, scopes *string) {
	envString(cmd, "base-url", "MCP_BASE_URL", &cfg.baseURL)
	envString(cmd, "notion-api-url", "NOTION_API_URL", &cfg.notionAPIURL)
	envString(cmd, "notion-client-id", "NOTION_OAUTH_CLIENT_ID", &cfg.notion.ClientID)
	envString(cmd, "notion-client-secret", "NOTION_OAUTH_CLIENT_SECRET", &cfg.notion.ClientSecret)
	envString(cmd, "notion-authorize-url", "NOTION_AUTHORIZE_URL", &cfg.notion.AuthorizeURL)
	envString(cmd, "notion-token-url", "NOTION_TOKEN_URL", &cfg.notion.TokenURL)
	envString(cmd, "cookie-secret", "COOKIE_ENCRYPTION_KEY", &cfg.notion.CookieSecret)
	envString(cmd, "registration-token", "REGISTRATION_ACCESS_TOKEN", &cfg.security.RegistrationAccessToken)
	envString(cmd, "encryption-key", "OAUTH_ENCRYPTION_KEY", encryptionKey)
	envString(cmd, "oauth-scopes", "OAUTH_SUPPORTED_SCOPES", scopes)
	envString(cmd, "tls-cert-file", "TLS_CERT_FILE", &cfg.security.TLSCertFile)
	envString(cmd, "tls-key-file", "TLS_KEY_FILE", &cfg.security.TLSKeyFile)
	envString(cmd, "metrics-addr", "METRICS_ADDR", &cfg.metrics.Addr)
	envBool(cmd, "trust-proxy", "TRUST_PROXY", &cfg.security.TrustProxy)
	envBool(cmd, "metrics-enabled", "METRICS_ENABLED", &cfg.metrics.Enabled)

	// The integration token has no flag so it never shows up in process listings.
	cfg.notionToken = os.Getenv("NOTION_TOKEN")
}

func envString(cmd *cobra.Command, flag, key string, dst *string) {
	if cmd.Flags().Changed(flag) {
		return
	}
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envBool(cmd *cobra.Command, flag, key string, dst *bool) {
	if cmd.Flags().Changed(flag) {
		return
	}
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func runServe(cfg serveConfig) error {
	// Setup graceful shutdown
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := newLogger(cfg.debugMode)
	slog.SetDefault(logger)

	// Initialize instrumentation provider
	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		// shutdownCtx is already cancelled when a signal stopped us.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(ctx); err != nil {
			logger.Warn("Error during instrumentation shutdown", logging.Err(err))
		}
	}()
	metrics := provider.Metrics()

	// Start metrics server if enabled and not in stdio mode
	if cfg.transport != transportStdio && cfg.metrics.Enabled && provider.PrometheusEnabled() {
		metricsServer, err := server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    cfg.metrics.Addr,
			InstrumentationProvider: provider,
			Logger:                  logger,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}

		// Use ready channel to confirm metrics server started successfully
		metricsReady := make(chan struct{})
		metricsErr := make(chan error, 1)
		go func() {
			if err := metricsServer.StartWithReadySignal(metricsReady); err != nil && err != http.ErrServerClosed {
				metricsErr <- err
			}
			close(metricsErr)
		}()

		select {
		case <-metricsReady:
		case err := <-metricsErr:
			return fmt.Errorf("metrics server failed to start: %w", err)
		case <-time.After(5 * time.Second):
			return fmt.Errorf("metrics server startup timed out")
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
			defer cancel()
			if err := metricsServer.Shutdown(ctx); err != nil {
				logger.Warn("Error shutting down metrics server", logging.Err(err))
			}
		}()
	}

	store := memory.New()
	defer store.Stop()
	tokens := server.NewTokenProvider(store)

	api := notion.NewAPI(notion.APIConfig{
		BaseURL: cfg.notionAPIURL,
		Logger:  logger,
		Metrics: metrics,
	})

	serverContext, err := server.NewServerContext(shutdownCtx, api, tokens, logger)
	if err != nil {
		return fmt.Errorf("failed to create server context: %w", err)
	}
	defer func() {
		if err := serverContext.Shutdown(); err != nil {
			logger.Warn("Error during server context shutdown", logging.Err(err))
		}
	}()
	serverContext.SetMetrics(metrics)
	serverContext.SetAuditLogger(instrumentation.NewAuditLoggerWithConfig(
		logging.WithComponent(logger, "audit"), instrConfig.AuditLogging))

	mcpSrv := mcpserver.NewMCPServer("notion-mcp-server", version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithResourceCapabilities(false, false),
	)
	if err := notion_tools.RegisterNotionTools(mcpSrv, serverContext, cfg.readOnly); err != nil {
		return fmt.Errorf("failed to register tools: %w", err)
	}
	if err := resources.RegisterWorkspaceResources(mcpSrv, serverContext); err != nil {
		return fmt.Errorf("failed to register resources: %w", err)
	}

	switch cfg.transport {
	case transportStdio:
		if cfg.notionToken == "" {
			logger.Warn("NOTION_TOKEN is not set; tool calls will fail until a credential is available")
		} else if err := tokens.SaveToken(shutdownCtx, server.DefaultAccount, cfg.notionToken); err != nil {
			return fmt.Errorf("failed to store NOTION_TOKEN: %w", err)
		}
		return runStdioServer(mcpSrv)
	case transportStreamableHTTP:
		logger.Info("Starting notion-mcp-server", "transport", cfg.transport, "version", version, "read_only", cfg.readOnly)
		return runStreamableHTTPServer(shutdownCtx, mcpSrv, serverContext, cfg, metrics, logger)
	default:
		return fmt.Errorf("unsupported transport type: %s (supported: stdio, streamable-http)", cfg.transport)
	}
}

// newLogger writes to stderr; stdout carries the stdio transport.
func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func runStdioServer(mcpSrv *mcpserver.MCPServer) error {
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := mcpserver.ServeStdio(mcpSrv); err != nil {
			serverDone <- err
		}
	}()

	err := <-serverDone
	if err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	return nil
}

func runStreamableHTTPServer(ctx context.Context, mcpSrv *mcpserver.MCPServer, sc *server.ServerContext, cfg serveConfig, metrics *instrumentation.Metrics, logger *slog.Logger) error {
	baseURL := cfg.baseURL
	if baseURL == "" {
		baseURL = defaultBaseURL(cfg.httpAddr)
		logger.Warn("No base URL configured, using auto-detected URL (development only)", "base_url", baseURL)
	}
	baseURL = strings.TrimRight(baseURL, "/")

	if cfg.notion.ClientID == "" || cfg.notion.ClientSecret == "" {
		return fmt.Errorf("notion OAuth client credentials are required for %s transport: set NOTION_OAUTH_CLIENT_ID and NOTION_OAUTH_CLIENT_SECRET", transportStreamableHTTP)
	}

	signingKey, err := approval.NewSigningKey(cfg.notion.CookieSecret)
	if err != nil {
		return fmt.Errorf("invalid consent cookie secret: %w", err)
	}

	sec := cfg.security
	oauthHandler, err := oauth.NewHandler(oauth.Config{
		Issuer:          baseURL,
		SupportedScopes: sec.SupportedScopes,
		RateLimit: oauth.RateLimitConfig{
			Rate:       sec.RateLimit,
			Burst:      sec.RateLimitBurst,
			TrustProxy: sec.TrustProxy,
		},
		Security: oauth.SecurityConfig{
			AllowInsecureAuthWithoutState: sec.AllowInsecureAuthWithoutState,
			AllowPublicClientRegistration: sec.RegistrationAccessToken == "",
			RegistrationAccessToken:       sec.RegistrationAccessToken,
			MaxClientsPerIP:               sec.MaxClientsPerIP,
			EncryptionKey:                 sec.EncryptionKey,
			EnableAuditLogging:            true,
		},
		Logger:  logger,
		Metrics: metrics,
	})
	if err != nil {
		return fmt.Errorf("failed to create OAuth handler: %w", err)
	}

	exchanger, err := notion.NewOAuthClient(notion.OAuthConfig{
		ClientID:     cfg.notion.ClientID,
		ClientSecret: cfg.notion.ClientSecret,
		TokenURL:     cfg.notion.TokenURL,
		Logger:       logger,
		Metrics:      metrics,
	})
	if err != nil {
		oauthHandler.Stop()
		return fmt.Errorf("failed to create Notion OAuth client: %w", err)
	}

	consent, err := server.NewConsentHandler(server.ConsentConfig{
		BaseURL:      baseURL,
		AuthorizeURL: cfg.notion.AuthorizeURL,
		SigningKey:   signingKey,
		Server: approval.ServerInfo{
			Name:        "Notion MCP Server",
			Description: "Gives AI assistants access to the Notion pages you share with this integration.",
		},
		AuthServer: oauthHandler,
		Exchanger:  exchanger,
		Tokens:     sc.Tokens(),
		Metrics:    metrics,
		Logger:     logger,
	})
	if err != nil {
		oauthHandler.Stop()
		return fmt.Errorf("failed to create consent handler: %w", err)
	}

	oauthServer, err := server.NewOAuthHTTPServer(mcpSrv, oauthHandler, consent, server.HTTPServerConfig{
		BaseURL:          baseURL,
		DisableStreaming: cfg.disableStreaming,
		TLSCertFile:      sec.TLSCertFile,
		TLSKeyFile:       sec.TLSKeyFile,
		Logger:           logger,
	})
	if err != nil {
		oauthHandler.Stop()
		return fmt.Errorf("failed to create OAuth HTTP server: %w", err)
	}
	health := server.NewHealthChecker(sc, oauthHandler, version)
	oauthServer.SetHealthChecker(health)
	oauthServer.SetMetrics(metrics)

	logger.Info("HTTP endpoints",
		"mcp", baseURL+server.MCPEndpointPath,
		"authorize", baseURL+oauth.PathAuthorize,
		"callback", baseURL+oauth.PathCallback,
		"token", baseURL+oauth.PathToken,
		"register", baseURL+oauth.PathRegister,
		"public_registration", sec.RegistrationAccessToken == "",
	)

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := oauthServer.Start(cfg.httpAddr); err != nil && err != http.ErrServerClosed {
			serverDone <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received, stopping HTTP server")
		health.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		if err := oauthServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("error shutting down HTTP server: %w", err)
		}
	case err := <-serverDone:
		if err != nil {
			oauthHandler.Stop()
			return fmt.Errorf("HTTP server stopped with error: %w", err)
		}
		logger.Info("HTTP server stopped normally")
	}

	logger.Info("HTTP server gracefully stopped")
	return nil
}

// defaultBaseURL derives a loopback URL from a listen address such as ":8080".
func defaultBaseURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "http://localhost" + addr
	}
	return "http://" + addr
}

// parseEncryptionKey decodes a base64 AES-256 key.
func parseEncryptionKey(s string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("invalid encryption key: must be base64 encoded: %w", err)
	}
	if len(key) != encryptionKeyLength {
		return nil, fmt.Errorf("invalid encryption key: must be %d bytes, got %d", encryptionKeyLength, len(key))
	}
	return key, nil
}

// parseCommaSeparatedList parses a comma-separated string into a slice,
// trimming whitespace from each element and filtering out empty strings.
func parseCommaSeparatedList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
