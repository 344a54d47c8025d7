package approval

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
)

// ErrApprovalDenied is returned when the dialog submission does not carry
// an explicit approval and a usable state.
var ErrApprovalDenied = errors.New("approval denied or invalid")

// ClientInfo describes the MCP client asking for access. All fields come
// from dynamic client registration and are untrusted.
type ClientInfo struct {
	ClientID     string
	ClientName   string
	ClientURI    string
	PolicyURI    string
	TosURI       string
	RedirectURIs []string
	Contacts     []string
}

// ServerInfo describes this server on the dialog.
type ServerInfo struct {
	Name        string
	Logo        string
	Description string
}

// DialogState is echoed through the dialog's hidden form field.
// OAuthReqInfo holds the pending authorization request as raw JSON so
// that it round-trips without reinterpretation.
type DialogState struct {
	OAuthReqInfo json.RawMessage `json:"oauthReqInfo"`
}

// NewDialogState wraps a pending authorization request.
func NewDialogState(request any) (DialogState, error) {
	raw, err := json.Marshal(request)
	if err != nil {
		return DialogState{}, fmt.Errorf("failed to encode authorization request: %w", err)
	}
	return DialogState{OAuthReqInfo: raw}, nil
}

// ClientID returns the clientId field of the wrapped request.
func (s DialogState) ClientID() string {
	var req struct {
		ClientID string `json:"clientId"`
	}
	if err := json.Unmarshal(s.OAuthReqInfo, &req); err != nil {
		return ""
	}
	return req.ClientID
}

// DialogOptions parameterizes RenderApprovalDialog.
type DialogOptions struct {
	Client ClientInfo
	Server ServerInfo
	State  DialogState

	// UpstreamOrigin is the scheme://host the approval POST redirects to.
	// It is added to the form-action directive so browsers enforcing CSP
	// on redirects still follow the 302 to the upstream authorize page.
	UpstreamOrigin string
}

type dialogView struct {
	Client       ClientInfo
	Server       ServerInfo
	DisplayName  string
	EncodedState string
}

// RenderApprovalDialog produces the consent page. All interpolated values
// are escaped by html/template.
func RenderApprovalDialog(opts DialogOptions) ([]byte, error) {
	encoded, err := encodeDialogState(opts.State)
	if err != nil {
		return nil, err
	}

	name := opts.Client.ClientName
	if name == "" {
		name = "Unknown MCP Client"
	}

	var buf bytes.Buffer
	if err := dialogTemplate.Execute(&buf, dialogView{
		Client:       opts.Client,
		Server:       opts.Server,
		DisplayName:  name,
		EncodedState: encoded,
	}); err != nil {
		return nil, fmt.Errorf("failed to render approval dialog: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteApprovalDialog renders the consent page to w with status 200.
func WriteApprovalDialog(w http.ResponseWriter, opts DialogOptions) error {
	body, err := RenderApprovalDialog(opts)
	if err != nil {
		return err
	}
	setDialogHeaders(w, opts.UpstreamOrigin)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, err = w.Write(body)
	return err
}

// Submission is the result of a successful dialog post.
type Submission struct {
	State  DialogState
	Cookie *http.Cookie
}

// ParseApprovalSubmission reads the dialog form post. On approval it adds
// the request's client to the browser's consent cookie and returns the
// updated cookie together with the original state.
func ParseApprovalSubmission(r *http.Request, key SigningKey) (*Submission, error) {
	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrApprovalDenied, err)
	}
	if r.PostForm.Get("approved") != "true" {
		return nil, ErrApprovalDenied
	}

	encoded := r.PostForm.Get("state")
	if encoded == "" {
		return nil, fmt.Errorf("%w: missing state", ErrApprovalDenied)
	}
	state, err := decodeDialogState(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrApprovalDenied, err)
	}

	clientID := state.ClientID()
	if clientID == "" {
		return nil, fmt.Errorf("%w: state has no client", ErrApprovalDenied)
	}

	existing := ApprovedClientsFromRequest(r, key)
	value, err := EncodeApprovedClients(appendUnique(existing, clientID), key)
	if err != nil {
		return nil, err
	}

	return &Submission{State: state, Cookie: newConsentCookie(value)}, nil
}

func encodeDialogState(state DialogState) (string, error) {
	raw, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("failed to encode dialog state: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

func decodeDialogState(encoded string) (DialogState, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return DialogState{}, errors.New("state is not base64")
	}
	var state DialogState
	if err := json.Unmarshal(raw, &state); err != nil {
		return DialogState{}, errors.New("state is not valid JSON")
	}
	if len(state.OAuthReqInfo) == 0 || string(state.OAuthReqInfo) == "null" {
		return DialogState{}, errors.New("state has no authorization request")
	}
	return state, nil
}

// setDialogHeaders applies the same hardening as the OAuth endpoints,
// relaxed for inline styles, https images and posting to self or upstream.
func setDialogHeaders(w http.ResponseWriter, upstreamOrigin string) {
	formAction := "form-action 'self'"
	if upstreamOrigin != "" {
		formAction += " " + upstreamOrigin
	}

	h := w.Header()
	h.Set("X-Frame-Options", "DENY")
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("Referrer-Policy", "no-referrer")
	h.Set("Cache-Control", "no-store")
	h.Set("Content-Security-Policy",
		"default-src 'none'; style-src 'unsafe-inline'; img-src https: data:; "+formAction+"; frame-ancestors 'none'")
}

var dialogTemplate = template.Must(template.New("approval").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.DisplayName}} | Authorization Request</title>
<style>
body{font-family:-apple-system,BlinkMacSystemFont,"Segoe UI",Roboto,sans-serif;line-height:1.5;color:#333;background:#f9fafb;margin:0;padding:0}
.container{max-width:600px;margin:2rem auto;padding:1rem}
.header{display:flex;align-items:center;justify-content:center;margin-bottom:2rem}
.logo{width:48px;height:48px;margin-right:1rem;object-fit:contain}
.card{background:#fff;border-radius:8px;box-shadow:0 8px 36px 8px rgba(0,0,0,.1);padding:2rem}
h1{font-size:1.5rem;margin:0}
h2{font-size:1.25rem;text-align:center;margin:0 0 1.5rem}
.description{color:#555;text-align:center}
.client-info{border:1px solid #e5e7eb;border-radius:6px;padding:1rem 1rem .5rem;margin-bottom:1.5rem}
.detail{display:flex;margin-bottom:.5rem}
.label{font-weight:500;min-width:120px}
.value{font-family:SFMono-Regular,Menlo,Monaco,Consolas,monospace;word-break:break-all}
.actions{display:flex;justify-content:flex-end;gap:1rem;margin-top:2rem}
button{padding:.75rem 1.5rem;border-radius:6px;font-weight:500;cursor:pointer;border:none;font-size:1rem}
.primary{background:#0070f3;color:#fff}
.secondary{background:transparent;border:1px solid #e5e7eb;color:#333}
</style>
</head>
<body>
<div class="container">
  <div class="header">
    {{if .Server.Logo}}<img src="{{.Server.Logo}}" alt="{{.Server.Name}} Logo" class="logo">{{end}}
    <h1>{{.Server.Name}}</h1>
  </div>
  {{if .Server.Description}}<p class="description">{{.Server.Description}}</p>{{end}}
  <div class="card">
    <h2><strong>{{.DisplayName}}</strong> is requesting access</h2>
    <div class="client-info">
      <div class="detail"><div class="label">Name:</div><div class="value">{{.DisplayName}}</div></div>
      {{if .Client.ClientURI}}<div class="detail"><div class="label">Website:</div><div class="value"><a href="{{.Client.ClientURI}}" target="_blank" rel="noopener noreferrer">{{.Client.ClientURI}}</a></div></div>{{end}}
      {{if .Client.PolicyURI}}<div class="detail"><div class="label">Privacy Policy:</div><div class="value"><a href="{{.Client.PolicyURI}}" target="_blank" rel="noopener noreferrer">{{.Client.PolicyURI}}</a></div></div>{{end}}
      {{if .Client.TosURI}}<div class="detail"><div class="label">Terms of Service:</div><div class="value"><a href="{{.Client.TosURI}}" target="_blank" rel="noopener noreferrer">{{.Client.TosURI}}</a></div></div>{{end}}
      {{if .Client.RedirectURIs}}<div class="detail"><div class="label">Redirect URIs:</div><div class="value">{{range .Client.RedirectURIs}}<div>{{.}}</div>{{end}}</div></div>{{end}}
      {{if .Client.Contacts}}<div class="detail"><div class="label">Contact:</div><div class="value">{{range .Client.Contacts}}<div>{{.}}</div>{{end}}</div></div>{{end}}
    </div>
    <p>This MCP Client is requesting to be authorized on {{.Server.Name}}. If you approve, you will be redirected to complete authentication.</p>
    <form method="post">
      <input type="hidden" name="state" value="{{.EncodedState}}">
      <div class="actions">
        <button type="submit" name="approved" value="false" class="secondary">Cancel</button>
        <button type="submit" name="approved" value="true" class="primary">Approve</button>
      </div>
    </form>
  </div>
</div>
</body>
</html>
`))
