package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nedasvi/notion-mcp-server-remote/internal/approval"
	"github.com/nedasvi/notion-mcp-server-remote/internal/instrumentation"
	"github.com/nedasvi/notion-mcp-server-remote/internal/logging"
	"github.com/nedasvi/notion-mcp-server-remote/internal/mcp/oauth"
	"github.com/nedasvi/notion-mcp-server-remote/internal/notion"
)

// AuthorizationServer is the part of the MCP authorization server the
// consent flow depends on.
type AuthorizationServer interface {
	ParseAuthRequest(r *http.Request) (*oauth.AuthorizationRequest, error)
	LookupClient(ctx context.Context, clientID string) (*oauth.Client, error)
	CompleteAuthorization(ctx context.Context, complete oauth.CompleteRequest) (string, error)
}

// CodeExchanger trades an upstream authorization code for a credential.
type CodeExchanger interface {
	ClientID() string
	Exchange(ctx context.Context, code, redirectURI string) (*notion.Credential, error)
}

// ConsentConfig configures the /authorize and /callback handlers.
type ConsentConfig struct {
	// BaseURL is the public URL of this server; the upstream redirect URI
	// is BaseURL + /callback.
	BaseURL string

	// AuthorizeURL defaults to notion.DefaultAuthorizeURL
	AuthorizeURL string

	SigningKey approval.SigningKey
	Server     approval.ServerInfo

	AuthServer AuthorizationServer
	Exchanger  CodeExchanger

	// Tokens optionally receives every exchanged credential.
	Tokens *TokenProvider

	Metrics *instrumentation.Metrics
	Logger  *slog.Logger
}

// ConsentHandler runs the browser side of the authorization flow: the
// consent gate, the approval dialog, the redirect to Notion and the
// callback that completes the MCP authorization.
type ConsentHandler struct {
	authorizeURL   string
	upstreamOrigin string
	redirectURI    string
	key            approval.SigningKey
	serverInfo     approval.ServerInfo
	authServer     AuthorizationServer
	exchanger      CodeExchanger
	tokens         *TokenProvider
	metrics        *instrumentation.Metrics
	logger         *slog.Logger
}

// NewConsentHandler validates cfg. A zero signing key is a configuration
// error.
func NewConsentHandler(cfg ConsentConfig) (*ConsentHandler, error) {
	if cfg.SigningKey.IsZero() {
		return nil, &approval.ConfigurationError{Setting: "COOKIE_ENCRYPTION_KEY", Reason: "cookie signing secret is required"}
	}
	if cfg.BaseURL == "" {
		return nil, &approval.ConfigurationError{Setting: "MCP_BASE_URL", Reason: "base URL is required"}
	}
	if cfg.AuthServer == nil || cfg.Exchanger == nil {
		return nil, &approval.ConfigurationError{Setting: "consent", Reason: "authorization server and code exchanger are required"}
	}
	if cfg.AuthorizeURL == "" {
		cfg.AuthorizeURL = notion.DefaultAuthorizeURL
	}
	upstream, err := url.Parse(cfg.AuthorizeURL)
	if err != nil || upstream.Scheme == "" || upstream.Host == "" {
		return nil, &approval.ConfigurationError{Setting: "NOTION_AUTHORIZE_URL", Reason: "authorize URL must be absolute"}
	}
	if cfg.Server.Name == "" {
		cfg.Server.Name = "Notion MCP Server"
	}

	return &ConsentHandler{
		authorizeURL:   cfg.AuthorizeURL,
		upstreamOrigin: upstream.Scheme + "://" + upstream.Host,
		redirectURI:    strings.TrimRight(cfg.BaseURL, "/") + oauth.PathCallback,
		key:            cfg.SigningKey,
		serverInfo:     cfg.Server,
		authServer:     cfg.AuthServer,
		exchanger:      cfg.Exchanger,
		tokens:         cfg.Tokens,
		metrics:        cfg.Metrics,
		logger:         logging.WithComponent(cfg.Logger, "consent"),
	}, nil
}

// ServeAuthorize handles GET /authorize. Browsers that already approved the
// client go straight to Notion; everyone else gets the approval dialog.
func (h *ConsentHandler) ServeAuthorize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := h.authServer.ParseAuthRequest(r)
	if err != nil {
		h.writeClientError(w, err)
		return
	}
	client, err := h.authServer.LookupClient(ctx, req.ClientID)
	if err != nil {
		h.writeClientError(w, err)
		return
	}

	if approval.IsClientApproved(r, req.ClientID, h.key) {
		h.metrics.RecordConsentDecision(ctx, instrumentation.ConsentSkipped)
		h.redirectUpstream(w, r, req)
		return
	}

	state, err := approval.NewDialogState(req)
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to build dialog state", logging.Err(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	h.metrics.RecordConsentDecision(ctx, instrumentation.ConsentShown)
	err = approval.WriteApprovalDialog(w, approval.DialogOptions{
		Client: approval.ClientInfo{
			ClientID:     client.ClientID,
			ClientName:   client.ClientName,
			ClientURI:    client.ClientURI,
			PolicyURI:    client.PolicyURI,
			TosURI:       client.TosURI,
			RedirectURIs: client.RedirectURIs,
			Contacts:     client.Contacts,
		},
		Server:         h.serverInfo,
		State:          state,
		UpstreamOrigin: h.upstreamOrigin,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to write approval dialog", logging.Err(err))
	}
}

// ServeApproval handles the dialog's POST /authorize. On approval the
// consent cookie is extended and the browser is sent to Notion.
func (h *ConsentHandler) ServeApproval(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sub, err := approval.ParseApprovalSubmission(r, h.key)
	if err != nil {
		h.metrics.RecordConsentDecision(ctx, instrumentation.ConsentDenied)
		h.logger.InfoContext(ctx, "Approval submission rejected", logging.Err(err))
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	var req oauth.AuthorizationRequest
	if err := json.Unmarshal(sub.State.OAuthReqInfo, &req); err != nil || req.ClientID == "" {
		h.metrics.RecordConsentDecision(ctx, instrumentation.ConsentDenied)
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if _, err := h.authServer.LookupClient(ctx, req.ClientID); err != nil {
		h.metrics.RecordConsentDecision(ctx, instrumentation.ConsentDenied)
		h.writeClientError(w, err)
		return
	}

	h.metrics.RecordConsentDecision(ctx, instrumentation.ConsentApproved)
	http.SetCookie(w, sub.Cookie)
	h.redirectUpstream(w, r, &req)
}

// ServeCallback handles GET /callback from Notion.
func (h *ConsentHandler) ServeCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	req, err := notion.DecodeState(q.Get("state"))
	if err != nil {
		h.logger.InfoContext(ctx, "Callback with invalid state", logging.Err(err))
		http.Error(w, notion.ErrInvalidState.Error(), http.StatusBadRequest)
		return
	}
	if upstreamErr := q.Get("error"); upstreamErr != "" {
		h.logger.InfoContext(ctx, "Upstream authorization failed",
			logging.ClientID(req.ClientID), slog.String("upstream_error", upstreamErr))
		http.Error(w, "authorization was not granted", http.StatusBadRequest)
		return
	}

	start := time.Now()
	cred, err := h.exchanger.Exchange(ctx, q.Get("code"), h.redirectURI)
	if err != nil {
		var exErr *notion.ExchangeError
		if errors.As(err, &exErr) {
			http.Error(w, exErr.Message, exErr.Status)
			return
		}
		h.logger.ErrorContext(ctx, "Token exchange failed", logging.Err(err))
		http.Error(w, "failed to fetch access token", http.StatusInternalServerError)
		return
	}

	if h.tokens != nil {
		if err := h.tokens.SaveCredential(ctx, cred); err != nil {
			h.logger.WarnContext(ctx, "Failed to cache Notion token", logging.Err(err))
		}
	}

	redirectTo, err := h.authServer.CompleteAuthorization(ctx, oauth.CompleteRequest{
		Request: req,
		UserID:  cred.UserID(),
		Label:   cred.Label(),
		Scope:   req.Scope,
		Props:   cred.Props(),
	})
	if err != nil {
		h.writeClientError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "Authorization completed",
		logging.ClientID(req.ClientID),
		logging.UserHash(cred.UserID()),
		slog.Duration("exchange_duration", time.Since(start)))
	http.Redirect(w, r, redirectTo, http.StatusFound)
}

func (h *ConsentHandler) redirectUpstream(w http.ResponseWriter, r *http.Request, req *oauth.AuthorizationRequest) {
	state, err := notion.EncodeState(req)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to encode upstream state", logging.Err(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	target, err := notion.AuthorizeURL(notion.AuthorizeParams{
		BaseURL:     h.authorizeURL,
		ClientID:    h.exchanger.ClientID(),
		RedirectURI: h.redirectURI,
		State:       state,
	})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to build upstream authorize URL", logging.Err(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// writeClientError maps an authorization server error to a short plain
// text response. Internal errors never reach the body.
func (h *ConsentHandler) writeClientError(w http.ResponseWriter, err error) {
	oerr := oauth.AsOAuthError(err)
	if oerr.Status >= http.StatusInternalServerError {
		h.logger.Error("Authorization request failed", logging.Err(err))
	}
	http.Error(w, oerr.Description, oerr.Status)
}
