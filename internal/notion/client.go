package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/oauth2"

	"github.com/nedasvi/notion-mcp-server-remote/internal/instrumentation"
	"github.com/nedasvi/notion-mcp-server-remote/internal/logging"
)

// API defaults.
const (
	DefaultBaseURL = "https://api.notion.com/v1"
	DefaultVersion = "2022-06-28"

	maxResponseBytes = 16 << 20
)

// APIConfig configures the shared API transport.
type APIConfig struct {
	// BaseURL defaults to DefaultBaseURL
	BaseURL string
	// Version is sent as Notion-Version and defaults to DefaultVersion
	Version string
	// Transport overrides the pooled otel transport, mainly for tests
	Transport http.RoundTripper
	Retry     RetryOptions
	Logger    *slog.Logger
	Metrics   *instrumentation.Metrics
}

// API holds the connection pool and retry machinery shared by all Clients.
type API struct {
	http    *retryablehttp.Client
	baseURL string
	version string
	logger  *slog.Logger
	metrics *instrumentation.Metrics
}

// NewAPI builds the shared API transport.
func NewAPI(cfg APIConfig) *API {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Version == "" {
		cfg.Version = DefaultVersion
	}
	logger := logging.WithComponent(cfg.Logger, "notion_api")
	return &API{
		http:    newRetryClient(cfg.Transport, cfg.Retry, logger),
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		version: cfg.Version,
		logger:  logger,
		metrics: cfg.Metrics,
	}
}

// Client returns a client authenticating with tokens from ts.
func (a *API) Client(ts oauth2.TokenSource) *Client {
	return &Client{api: a, tokens: ts}
}

// ClientForToken is Client with a static access token.
func (a *API) ClientForToken(accessToken string) *Client {
	return a.Client(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}))
}

// Client calls the Notion API as one integration installation.
type Client struct {
	api    *API
	tokens oauth2.TokenSource
}

// do sends one API request and decodes a 2xx body into out.
// body may be nil; query may be nil.
func (c *Client) do(ctx context.Context, operation, method, path string, query url.Values, body any) (json.RawMessage, error) {
	ctx, span := instrumentation.StartNotionAPISpan(ctx, operation)
	defer span.End()
	start := time.Now()

	raw, err := c.send(ctx, method, path, query, body)

	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
		instrumentation.SetSpanError(span, err)
	} else {
		instrumentation.SetSpanSuccess(span)
	}
	c.api.metrics.RecordNotionAPIOperation(ctx, operation, status, time.Since(start))
	return raw, err
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, body any) (json.RawMessage, error) {
	if c.tokens == nil {
		return nil, fmt.Errorf("no Notion token available")
	}
	token, err := c.tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to get Notion token: %w", err)
	}

	endpoint := c.api.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reqBody any
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	token.SetAuthHeader(req.Request)
	req.Header.Set("Notion-Version", c.api.version)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.api.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("notion request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := parseAPIError(resp.StatusCode, data)
		c.api.logger.WarnContext(ctx, "Notion API error",
			slog.String("method", method),
			slog.Int(logging.KeyStatus, apiErr.Status),
			slog.String("code", apiErr.Code))
		return nil, apiErr
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("notion returned invalid JSON")
	}
	return json.RawMessage(data), nil
}
