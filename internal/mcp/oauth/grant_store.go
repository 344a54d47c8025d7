package oauth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

var errGrantNotFound = errors.New("grant not found or expired")

// grantRecord is the server-side state behind codes and tokens. Props stay
// sealed until a token is validated.
type grantRecord struct {
	ID       string
	ClientID string
	UserID   string
	Label    string
	Scope    []string
	Props    string

	// Binding for the authorization code
	RedirectURI         string
	CodeChallenge       string
	CodeChallengeMethod string

	CreatedAt time.Time

	// hashes of the live tokens, for revocation of the whole grant
	accessKey  string
	refreshKey string
}

// IssuedTokens are the plaintext tokens handed to the client once.
type IssuedTokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
	Scope        []string
}

// GrantStore keeps authorization codes, access tokens and refresh tokens in
// expiring caches. Tokens are indexed by their SHA-256 so plaintext tokens
// are never held in memory after issuance.
type GrantStore struct {
	// consume guards single use of codes and refresh tokens
	consume sync.Mutex

	codes   *cache.Cache
	access  *cache.Cache
	refresh *cache.Cache

	encryption *PropsEncryption
	accessTTL  time.Duration
	refreshTTL time.Duration
	codeTTL    time.Duration
}

// NewGrantStore creates the caches with the configured lifetimes.
func NewGrantStore(encryption *PropsEncryption, sec SecurityConfig, cleanupInterval time.Duration) *GrantStore {
	if encryption == nil {
		encryption = &PropsEncryption{}
	}
	return &GrantStore{
		codes:      cache.New(sec.AuthorizationCodeTTL, cleanupInterval),
		access:     cache.New(sec.AccessTokenTTL, cleanupInterval),
		refresh:    cache.New(sec.RefreshTokenTTL, cleanupInterval),
		encryption: encryption,
		accessTTL:  sec.AccessTokenTTL,
		refreshTTL: sec.RefreshTokenTTL,
		codeTTL:    sec.AuthorizationCodeTTL,
	}
}

// CreateCode stores a new grant and returns its single-use authorization code.
func (s *GrantStore) CreateCode(req *AuthorizationRequest, complete CompleteRequest) (string, error) {
	sealed, err := s.encryption.Seal(complete.Props)
	if err != nil {
		return "", err
	}
	code, err := generateSecureToken(AuthorizationCodeLength)
	if err != nil {
		return "", fmt.Errorf("failed to generate authorization code: %w", err)
	}

	scope := complete.Scope
	if scope == nil {
		scope = req.Scope
	}
	record := &grantRecord{
		ID:                  uuid.NewString(),
		ClientID:            req.ClientID,
		UserID:              complete.UserID,
		Label:               complete.Label,
		Scope:               slices.Clone(scope),
		Props:               sealed,
		RedirectURI:         req.RedirectURI,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: req.CodeChallengeMethod,
		CreatedAt:           time.Now(),
	}
	s.codes.Set(hashToken(code), record, s.codeTTL)
	return code, nil
}

// ConsumeCode removes and returns the grant for code.
func (s *GrantStore) ConsumeCode(code string) (*grantRecord, error) {
	return s.take(s.codes, code)
}

// ConsumeRefreshToken removes a refresh token and returns its grant,
// along with revoking the access token issued beside it.
func (s *GrantStore) ConsumeRefreshToken(token string) (*grantRecord, error) {
	record, err := s.take(s.refresh, token)
	if err != nil {
		return nil, err
	}
	s.access.Delete(record.accessKey)
	return record, nil
}

func (s *GrantStore) take(c *cache.Cache, token string) (*grantRecord, error) {
	if token == "" {
		return nil, errGrantNotFound
	}
	key := hashToken(token)

	s.consume.Lock()
	defer s.consume.Unlock()

	v, ok := c.Get(key)
	if !ok {
		return nil, errGrantNotFound
	}
	c.Delete(key)
	return v.(*grantRecord), nil
}

// IssueTokens mints a fresh access and refresh token pair for record.
func (s *GrantStore) IssueTokens(record *grantRecord) (*IssuedTokens, error) {
	accessToken, err := generateSecureToken(AccessTokenLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}
	refreshToken, err := generateSecureToken(RefreshTokenLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	s.consume.Lock()
	defer s.consume.Unlock()

	record.accessKey = hashToken(accessToken)
	record.refreshKey = hashToken(refreshToken)
	s.access.Set(record.accessKey, record, s.accessTTL)
	s.refresh.Set(record.refreshKey, record, s.refreshTTL)

	return &IssuedTokens{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    s.accessTTL,
		Scope:        record.Scope,
	}, nil
}

// LookupAccessToken resolves an access token to its grant with props opened.
func (s *GrantStore) LookupAccessToken(token string) (*Grant, error) {
	if token == "" {
		return nil, errGrantNotFound
	}
	v, ok := s.access.Get(hashToken(token))
	if !ok {
		return nil, errGrantNotFound
	}
	record := v.(*grantRecord)

	props, err := s.encryption.Open(record.Props)
	if err != nil {
		return nil, fmt.Errorf("failed to open grant props: %w", err)
	}
	return &Grant{
		ID:       record.ID,
		ClientID: record.ClientID,
		UserID:   record.UserID,
		Label:    record.Label,
		Scope:    slices.Clone(record.Scope),
		Props:    props,
	}, nil
}

// Peek returns the client that owns token, if token is a live access or
// refresh token.
func (s *GrantStore) Peek(token string) (clientID string, found bool) {
	key := hashToken(token)
	for _, c := range []*cache.Cache{s.access, s.refresh} {
		if v, ok := c.Get(key); ok {
			return v.(*grantRecord).ClientID, true
		}
	}
	return "", false
}

// Revoke removes token whether it is an access or refresh token. Revoking
// either one removes the whole grant.
func (s *GrantStore) Revoke(token string) bool {
	key := hashToken(token)

	s.consume.Lock()
	defer s.consume.Unlock()

	for _, c := range []*cache.Cache{s.access, s.refresh} {
		if v, ok := c.Get(key); ok {
			record := v.(*grantRecord)
			s.access.Delete(record.accessKey)
			s.refresh.Delete(record.refreshKey)
			return true
		}
	}
	return false
}

// Counts returns the number of live codes, access tokens and refresh tokens.
func (s *GrantStore) Counts() (codes, access, refresh int) {
	return s.codes.ItemCount(), s.access.ItemCount(), s.refresh.ItemCount()
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
