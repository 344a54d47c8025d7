package oauth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/nedasvi/notion-mcp-server-remote/internal/logging"
)

// ClientStore manages registered OAuth clients
type ClientStore struct {
	mu           sync.RWMutex
	clients      map[string]*Client
	clientsPerIP map[string]int
	logger       *slog.Logger
}

// NewClientStore creates a new client store
func NewClientStore(logger *slog.Logger) *ClientStore {
	return &ClientStore{
		clients:      make(map[string]*Client),
		clientsPerIP: make(map[string]int),
		logger:       logging.WithComponent(logger, "client_store"),
	}
}

// CheckIPLimit returns an error if ip already registered maxClientsPerIP clients.
func (s *ClientStore) CheckIPLimit(ip string, maxClientsPerIP int) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if maxClientsPerIP <= 0 {
		return nil
	}
	if count := s.clientsPerIP[ip]; count >= maxClientsPerIP {
		return fmt.Errorf("client registration limit reached for IP %s (%d/%d)", ip, count, maxClientsPerIP)
	}
	return nil
}

// RegisterClient stores a new client. Confidential clients get a generated
// secret which is returned once and kept only as a bcrypt hash.
func (s *ClientStore) RegisterClient(req *ClientRegistrationRequest, clientIP string) (*ClientRegistrationResponse, error) {
	authMethod := req.TokenEndpointAuthMethod
	if authMethod == "" {
		authMethod = AuthMethodSecretBasic
	}
	grantTypes := req.GrantTypes
	if len(grantTypes) == 0 {
		grantTypes = DefaultGrantTypes
	}
	responseTypes := req.ResponseTypes
	if len(responseTypes) == 0 {
		responseTypes = DefaultResponseTypes
	}

	client := &Client{
		ClientID:                uuid.NewString(),
		ClientName:              req.ClientName,
		ClientURI:               req.ClientURI,
		LogoURI:                 req.LogoURI,
		PolicyURI:               req.PolicyURI,
		TosURI:                  req.TosURI,
		Contacts:                req.Contacts,
		RedirectURIs:            slices.Clone(req.RedirectURIs),
		TokenEndpointAuthMethod: authMethod,
		GrantTypes:              grantTypes,
		ResponseTypes:           responseTypes,
		CreatedAt:               time.Now(),
	}

	var secret string
	if !client.IsPublic() {
		var err error
		secret, err = generateSecureToken(ClientSecretTokenLength)
		if err != nil {
			return nil, fmt.Errorf("failed to generate client secret: %w", err)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash client secret: %w", err)
		}
		client.ClientSecretHash = string(hash)
	}

	s.mu.Lock()
	s.clients[client.ClientID] = client
	s.clientsPerIP[clientIP]++
	s.mu.Unlock()

	s.logger.Info("Registered OAuth client",
		logging.ClientID(client.ClientID),
		slog.String("client_name", client.ClientName),
		slog.String("auth_method", authMethod))

	return &ClientRegistrationResponse{
		Client:                *client,
		ClientSecret:          secret,
		ClientIDIssuedAt:      client.CreatedAt.Unix(),
		ClientSecretExpiresAt: 0,
	}, nil
}

// GetClient returns a copy of the client, or false when it is unknown.
func (s *ClientStore) GetClient(clientID string) (*Client, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	client, ok := s.clients[clientID]
	if !ok {
		return nil, false
	}
	c := *client
	return &c, true
}

// ValidateClientSecret compares secret against the stored hash.
func (s *ClientStore) ValidateClientSecret(clientID, secret string) bool {
	client, ok := s.GetClient(clientID)
	if !ok || client.ClientSecretHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(client.ClientSecretHash), []byte(secret)) == nil
}

// Count returns the number of registered clients.
func (s *ClientStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// HasRedirectURI reports whether uri exactly matches one of the client's
// registered redirect URIs.
func (c *Client) HasRedirectURI(uri string) bool {
	return slices.Contains(c.RedirectURIs, uri)
}

// generateSecureToken returns n random bytes as unpadded base64url.
func generateSecureToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
