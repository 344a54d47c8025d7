package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nedasvi/notion-mcp-server-remote/internal/mcp/oauth"
	"github.com/nedasvi/notion-mcp-server-remote/internal/notion"
)

type fixedStats oauth.Stats

func (s fixedStats) Stats() oauth.Stats { return oauth.Stats(s) }

func serveHealth(t *testing.T, h *HealthChecker, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	r := chi.NewRouter()
	h.Routes(r)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	return w, body
}

func TestHealthChecker_Liveness(t *testing.T) {
	h := NewHealthChecker(nil, nil, "1.0.0")
	h.SetReady(false)

	w, body := serveHealth(t, h, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestHealthChecker_Readiness(t *testing.T) {
	h := NewHealthChecker(nil, nil, "1.0.0")
	assert.True(t, h.IsReady())

	w, body := serveHealth(t, h, "/readyz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])

	h.SetReady(false)
	w, body = serveHealth(t, h, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "not ready", body["checks"].(map[string]any)["ready"])
}

func TestHealthChecker_ReadinessDuringShutdown(t *testing.T) {
	sc, err := NewServerContext(t.Context(), notion.NewAPI(notion.APIConfig{}), newTestTokenProvider(t), nil)
	require.NoError(t, err)
	require.NoError(t, sc.Shutdown())

	h := NewHealthChecker(sc, nil, "1.0.0")
	w, body := serveHealth(t, h, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "shutting down", body["checks"].(map[string]any)["shutdown"])

	w, body = serveHealth(t, h, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "shutting down", body["status"])
}

func TestHealthChecker_Detailed(t *testing.T) {
	h := NewHealthChecker(nil, fixedStats{Clients: 2, AccessTokens: 3}, "1.2.3")

	w, body := serveHealth(t, h, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1.2.3", body["version"])
	assert.NotEmpty(t, body["uptime"])

	stats := body["oauth"].(map[string]any)
	assert.EqualValues(t, 2, stats["clients"])
	assert.EqualValues(t, 3, stats["access_tokens"])
}
