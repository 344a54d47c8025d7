package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/nedasvi/notion-mcp-server-remote/internal/instrumentation"
	"github.com/nedasvi/notion-mcp-server-remote/internal/logging"
)

// maxErrorBodyBytes caps how much of an upstream error body is logged.
const maxErrorBodyBytes = 8 << 10

// ExchangeError is a failed token exchange. Status is the HTTP status the
// callback should answer with and Message is safe to show the client.
type ExchangeError struct {
	Status  int
	Message string
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("token exchange failed (%d): %s", e.Status, e.Message)
}

// OAuthConfig configures the token exchange.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	// TokenURL defaults to DefaultTokenURL
	TokenURL string
	// HTTPClient must not retry.
	HTTPClient *http.Client
	Logger     *slog.Logger
	Metrics    *instrumentation.Metrics
}

// OAuthClient exchanges authorization codes with Notion.
type OAuthClient struct {
	clientID     string
	clientSecret string
	tokenURL     string
	httpClient   *http.Client
	logger       *slog.Logger
	metrics      *instrumentation.Metrics
}

// NewOAuthClient validates cfg and returns a client.
func NewOAuthClient(cfg OAuthConfig) (*OAuthClient, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("notion OAuth client id and secret are required")
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = newHTTPClient()
	}
	return &OAuthClient{
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		tokenURL:     cfg.TokenURL,
		httpClient:   cfg.HTTPClient,
		logger:       logging.WithComponent(cfg.Logger, "notion_oauth"),
		metrics:      cfg.Metrics,
	}, nil
}

// ClientID returns the integration's OAuth client id.
func (c *OAuthClient) ClientID() string {
	return c.clientID
}

type tokenRequest struct {
	GrantType   string `json:"grant_type"`
	Code        string `json:"code"`
	RedirectURI string `json:"redirect_uri"`
}

// Exchange trades an authorization code for a Credential. It makes exactly
// one request, authenticated with HTTP Basic, and is bounded by ctx.
// All failures are *ExchangeError.
func (c *OAuthClient) Exchange(ctx context.Context, code, redirectURI string) (*Credential, error) {
	if code == "" {
		return nil, &ExchangeError{Status: http.StatusBadRequest, Message: "missing authorization code"}
	}

	ctx, span := instrumentation.StartNotionAPISpan(ctx, instrumentation.OperationOAuthExchange)
	defer span.End()
	start := time.Now()

	cred, result, err := c.exchange(ctx, code, redirectURI)
	c.metrics.RecordTokenExchange(ctx, result, time.Since(start))
	if err != nil {
		instrumentation.SetSpanError(span, err)
		return nil, err
	}
	span.SetAttributes(instrumentation.NewSpanAttributeBuilder().WithWorkspace(cred.WorkspaceID).Build()...)
	instrumentation.SetSpanSuccess(span)
	return cred, nil
}

func (c *OAuthClient) exchange(ctx context.Context, code, redirectURI string) (*Credential, string, error) {
	upstreamFailure := &ExchangeError{Status: http.StatusInternalServerError, Message: "failed to fetch access token"}

	body, err := json.Marshal(tokenRequest{
		GrantType:   "authorization_code",
		Code:        code,
		RedirectURI: redirectURI,
	})
	if err != nil {
		return nil, instrumentation.ExchangeInvalid, upstreamFailure
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, bytes.NewReader(body))
	if err != nil {
		c.logger.ErrorContext(ctx, "Failed to build token request", logging.Err(err))
		return nil, instrumentation.ExchangeUpstreamError, upstreamFailure
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.ErrorContext(ctx, "Token exchange request failed", logging.Err(err))
		return nil, instrumentation.ExchangeUpstreamError, upstreamFailure
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		c.logger.ErrorContext(ctx, "Token exchange rejected by Notion",
			slog.Int(logging.KeyStatus, resp.StatusCode),
			slog.String("body", string(detail)))
		return nil, instrumentation.ExchangeUpstreamError, upstreamFailure
	}

	var cred Credential
	if err := json.NewDecoder(resp.Body).Decode(&cred); err != nil {
		c.logger.ErrorContext(ctx, "Failed to decode token response", logging.Err(err))
		return nil, instrumentation.ExchangeUpstreamError, upstreamFailure
	}
	if cred.AccessToken == "" {
		c.logger.WarnContext(ctx, "Token response has no access token")
		return nil, instrumentation.ExchangeInvalid, &ExchangeError{Status: http.StatusBadRequest, Message: "missing access token"}
	}

	c.logger.InfoContext(ctx, "Exchanged authorization code",
		logging.UserHash(cred.UserID()),
		slog.String("owner_type", cred.Owner.Type))
	return &cred, instrumentation.ExchangeSuccess, nil
}
