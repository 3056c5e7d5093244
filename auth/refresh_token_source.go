package auth

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
)

const GrantTypeRefreshToken = "refresh_token"

type RefreshTokenSourceConfig struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	Endpoint     EndpointConfig
	HTTPClient   HTTPDoer
	Timeout      time.Duration
}

// RefreshTokenSource exchanges a long lived refresh token for an access
// token.
type RefreshTokenSource struct {
	config   RefreshTokenSourceConfig
	endpoint TokenEndpoint
}

func NewRefreshTokenSource(cfg RefreshTokenSourceConfig) (*RefreshTokenSource, error) {
	cfg = RefreshTokenSourceConfig{
		ClientID:     strings.TrimSpace(cfg.ClientID),
		ClientSecret: strings.TrimSpace(cfg.ClientSecret),
		RefreshToken: strings.TrimSpace(cfg.RefreshToken),
		Endpoint:     cfg.Endpoint.normalized(),
		HTTPClient:   cfg.HTTPClient,
		Timeout:      cfg.Timeout,
	}
	if err := cfg.Endpoint.Validate(); err != nil {
		return nil, err
	}
	if err := requireFields("refresh token grant", map[string]string{
		"client_id":     cfg.ClientID,
		"client_secret": cfg.ClientSecret,
		"refresh_token": cfg.RefreshToken,
	}); err != nil {
		return nil, err
	}
	return &RefreshTokenSource{
		config:   cfg,
		endpoint: newTokenEndpoint(cfg.Endpoint, cfg.HTTPClient, cfg.Timeout),
	}, nil
}

func (*RefreshTokenSource) GrantType() string {
	return GrantTypeRefreshToken
}

func (s *RefreshTokenSource) TokenURL() string {
	if s == nil {
		return ""
	}
	return s.endpoint.URL
}

func (s *RefreshTokenSource) Exchange(ctx context.Context) (TokenExchange, error) {
	if s == nil {
		return TokenExchange{}, fmt.Errorf("auth: refresh token source is nil")
	}
	return s.endpoint.Post(ctx, url.Values{
		"grant_type":    {GrantTypeRefreshToken},
		"client_id":     {s.config.ClientID},
		"client_secret": {s.config.ClientSecret},
		"refresh_token": {s.config.RefreshToken},
	})
}

func (s *RefreshTokenSource) String() string {
	if s == nil {
		return "RefreshTokenSource(<nil>)"
	}
	return fmt.Sprintf("RefreshTokenSource(client_id=%q, client_secret=%q, refresh_token=%q, token_url=%q)",
		s.config.ClientID, redact(s.config.ClientSecret), redact(s.config.RefreshToken), s.endpoint.URL)
}
