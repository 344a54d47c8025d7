package notion

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/nedasvi/notion-mcp-server-remote/internal/logging"
)

// Retry defaults for API calls.
const (
	DefaultRetryMax     = 3
	DefaultRetryWaitMin = 500 * time.Millisecond
	DefaultRetryWaitMax = 5 * time.Second
	DefaultTimeout      = 30 * time.Second
)

// newTransport is a pooled transport with otel client spans.
func newTransport() http.RoundTripper {
	return otelhttp.NewTransport(cleanhttp.DefaultPooledTransport())
}

// newHTTPClient is the plain client used for the token exchange. It never
// retries; the request deadline comes from the caller's context.
func newHTTPClient() *http.Client {
	return &http.Client{Transport: newTransport()}
}

// RetryOptions tunes the API client's retry behavior.
type RetryOptions struct {
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
}

// newRetryClient builds the retrying client for API calls.
func newRetryClient(transport http.RoundTripper, opts RetryOptions, logger *slog.Logger) *retryablehttp.Client {
	if transport == nil {
		transport = newTransport()
	}
	rc := retryablehttp.NewClient()
	rc.HTTPClient = &http.Client{Transport: transport, Timeout: DefaultTimeout}
	rc.RetryMax = DefaultRetryMax
	rc.RetryWaitMin = DefaultRetryWaitMin
	rc.RetryWaitMax = DefaultRetryWaitMax
	if opts.RetryMax > 0 {
		rc.RetryMax = opts.RetryMax
	}
	if opts.RetryMax < 0 {
		rc.RetryMax = 0
	}
	if opts.RetryWaitMin > 0 {
		rc.RetryWaitMin = opts.RetryWaitMin
	}
	if opts.RetryWaitMax > 0 {
		rc.RetryWaitMax = opts.RetryWaitMax
	}
	rc.Logger = logging.NewRetryLogger(logger)
	rc.CheckRetry = RetryPolicy
	// hand the last response back instead of a generic "giving up" error
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return rc
}

// RetryPolicy wraps retryablehttp.DefaultRetryPolicy. 429 is not retried so
// the caller sees Notion's rate limit, and server errors on writes are not
// retried because the write may have been applied.
func RetryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if err == nil && resp != nil {
		if resp.StatusCode == http.StatusTooManyRequests {
			return false, nil
		}
		if resp.StatusCode >= 500 && resp.Request != nil && !isIdempotent(resp.Request.Method) {
			return false, nil
		}
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

func isIdempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodDelete, http.MethodOptions:
		return true
	}
	return false
}
