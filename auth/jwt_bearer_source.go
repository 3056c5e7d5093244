package auth

import (
	"context"
	"crypto/rsa"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	GrantTypeJWTBearer = "urn:ietf:params:oauth:grant-type:jwt-bearer"

	defaultAssertionTTL = 300 * time.Second
)

type JWTBearerSourceConfig struct {
	ClientID string
	Username string
	// PrivateKeyPEM is parsed when PrivateKey is nil.
	PrivateKeyPEM string
	PrivateKey    *rsa.PrivateKey
	AssertionTTL  time.Duration
	Endpoint      EndpointConfig
	HTTPClient    HTTPDoer
	Timeout       time.Duration
	Now           func() time.Time
}

// JWTBearerSource signs an RS256 assertion for the connected app and
// exchanges it for an access token.
type JWTBearerSource struct {
	config   JWTBearerSourceConfig
	audience string
	endpoint TokenEndpoint
}

func NewJWTBearerSource(cfg JWTBearerSourceConfig) (*JWTBearerSource, error) {
	ttl := cfg.AssertionTTL
	if ttl <= 0 {
		ttl = defaultAssertionTTL
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	cfg = JWTBearerSourceConfig{
		ClientID:      strings.TrimSpace(cfg.ClientID),
		Username:      strings.TrimSpace(cfg.Username),
		PrivateKeyPEM: strings.TrimSpace(cfg.PrivateKeyPEM),
		PrivateKey:    cfg.PrivateKey,
		AssertionTTL:  ttl,
		Endpoint:      cfg.Endpoint.normalized(),
		HTTPClient:    cfg.HTTPClient,
		Timeout:       cfg.Timeout,
		Now:           now,
	}
	if err := cfg.Endpoint.Validate(); err != nil {
		return nil, err
	}
	keyField := cfg.PrivateKeyPEM
	if cfg.PrivateKey != nil {
		keyField = "set"
	}
	if err := requireFields("jwt bearer grant", map[string]string{
		"client_id":   cfg.ClientID,
		"username":    cfg.Username,
		"private_key": keyField,
	}); err != nil {
		return nil, err
	}
	if cfg.PrivateKey == nil {
		key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(cfg.PrivateKeyPEM))
		if err != nil {
			return nil, fmt.Errorf("auth: parse jwt private key: %w", err)
		}
		cfg.PrivateKey = key
	}
	cfg.PrivateKeyPEM = ""
	return &JWTBearerSource{
		config:   cfg,
		audience: cfg.Endpoint.ResolveIssuerURL(),
		endpoint: newTokenEndpoint(cfg.Endpoint, cfg.HTTPClient, cfg.Timeout),
	}, nil
}

func (*JWTBearerSource) GrantType() string {
	return GrantTypeJWTBearer
}

func (s *JWTBearerSource) TokenURL() string {
	if s == nil {
		return ""
	}
	return s.endpoint.URL
}

func (s *JWTBearerSource) Audience() string {
	if s == nil {
		return ""
	}
	return s.audience
}

// Assertion returns a freshly signed assertion.
func (s *JWTBearerSource) Assertion() (string, error) {
	if s == nil {
		return "", fmt.Errorf("auth: jwt bearer source is nil")
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"iss": s.config.ClientID,
		"sub": s.config.Username,
		"aud": s.audience,
		"exp": s.config.Now().Add(s.config.AssertionTTL).Unix(),
	})
	signed, err := token.SignedString(s.config.PrivateKey)
	if err != nil {
		return "", fmt.Errorf("auth: sign jwt assertion: %w", err)
	}
	return signed, nil
}

func (s *JWTBearerSource) Exchange(ctx context.Context) (TokenExchange, error) {
	assertion, err := s.Assertion()
	if err != nil {
		return TokenExchange{}, err
	}
	return s.endpoint.Post(ctx, url.Values{
		"grant_type": {GrantTypeJWTBearer},
		"assertion":  {assertion},
	})
}

func (s *JWTBearerSource) String() string {
	if s == nil {
		return "JWTBearerSource(<nil>)"
	}
	return fmt.Sprintf("JWTBearerSource(client_id=%q, username=%q, audience=%q, token_url=%q)",
		s.config.ClientID, s.config.Username, s.audience, s.endpoint.URL)
}
