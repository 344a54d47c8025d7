package oauth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

const testIssuer = "http://localhost:8080"

func newTestHandler(t *testing.T, mutate ...func(*Config)) *Handler {
	t.Helper()
	cfg := Config{
		Issuer: testIssuer,
		Security: SecurityConfig{
			AllowPublicClientRegistration: true,
			EnableAuditLogging:            true,
		},
	}
	for _, m := range mutate {
		m(&cfg)
	}
	h, err := NewHandler(cfg)
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	t.Cleanup(h.Stop)
	return h
}

func registerClient(t *testing.T, h *Handler, req ClientRegistrationRequest) ClientRegistrationResponse {
	t.Helper()
	body, _ := json.Marshal(req)
	r := httptest.NewRequest(http.MethodPost, PathRegister, bytes.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeClientRegistration(w, r)
	if w.Code != http.StatusCreated {
		t.Fatalf("registration status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp ClientRegistrationResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode registration: %v", err)
	}
	return resp
}

func registerPublicClient(t *testing.T, h *Handler) ClientRegistrationResponse {
	return registerClient(t, h, ClientRegistrationRequest{
		RedirectURIs:            []string{"http://localhost:3000/callback"},
		TokenEndpointAuthMethod: AuthMethodNone,
		ClientName:              "Test Client",
	})
}

func authorizeQuery(clientID, challenge string) url.Values {
	return url.Values{
		"response_type":         {"code"},
		"client_id":             {clientID},
		"redirect_uri":          {"http://localhost:3000/callback"},
		"scope":                 {"read write"},
		"state":                 {"client-state"},
		"code_challenge":        {challenge},
		"code_challenge_method": {"S256"},
	}
}

func parseAuth(t *testing.T, h *Handler, q url.Values) (*AuthorizationRequest, error) {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, PathAuthorize+"?"+q.Encode(), nil)
	return h.ParseAuthRequest(r)
}

func postForm(h http.HandlerFunc, path string, form url.Values, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, m := range mutate {
		m(r)
	}
	w := httptest.NewRecorder()
	h(w, r)
	return w
}

// authorizeCode runs a full authorization for a public client and returns
// the code, the verifier and the client id.
func authorizeCode(t *testing.T, h *Handler, props map[string]string) (code, verifier, clientID string) {
	t.Helper()
	client := registerPublicClient(t, h)
	verifier, err := GenerateCodeVerifier()
	if err != nil {
		t.Fatal(err)
	}
	req, err := parseAuth(t, h, authorizeQuery(client.ClientID, GenerateCodeChallenge(verifier)))
	if err != nil {
		t.Fatalf("ParseAuthRequest() error = %v", err)
	}
	redirect, err := h.CompleteAuthorization(t.Context(), CompleteRequest{
		Request: req,
		UserID:  "bot-123",
		Label:   "Acme Workspace",
		Scope:   req.Scope,
		Props:   props,
	})
	if err != nil {
		t.Fatalf("CompleteAuthorization() error = %v", err)
	}
	u, err := url.Parse(redirect)
	if err != nil {
		t.Fatal(err)
	}
	return u.Query().Get("code"), verifier, client.ClientID
}

func decodeTokens(t *testing.T, w *httptest.ResponseRecorder) TokenResponse {
	t.Helper()
	if w.Code != http.StatusOK {
		t.Fatalf("token status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp TokenResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode token response: %v", err)
	}
	return resp
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error response: %v (body %s)", err, w.Body.String())
	}
	return resp
}
