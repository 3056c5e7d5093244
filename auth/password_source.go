package auth

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
)

const GrantTypePassword = "password"

type PasswordSourceConfig struct {
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
	Endpoint     EndpointConfig
	HTTPClient   HTTPDoer
	Timeout      time.Duration
}

// PasswordSource exchanges a username and password for an access token.
type PasswordSource struct {
	config   PasswordSourceConfig
	endpoint TokenEndpoint
}

func NewPasswordSource(cfg PasswordSourceConfig) (*PasswordSource, error) {
	cfg = PasswordSourceConfig{
		ClientID:     strings.TrimSpace(cfg.ClientID),
		ClientSecret: strings.TrimSpace(cfg.ClientSecret),
		Username:     strings.TrimSpace(cfg.Username),
		Password:     cfg.Password,
		Endpoint:     cfg.Endpoint.normalized(),
		HTTPClient:   cfg.HTTPClient,
		Timeout:      cfg.Timeout,
	}
	if err := cfg.Endpoint.Validate(); err != nil {
		return nil, err
	}
	if err := requireFields("password grant", map[string]string{
		"client_id":     cfg.ClientID,
		"client_secret": cfg.ClientSecret,
		"username":      cfg.Username,
		"password":      cfg.Password,
	}); err != nil {
		return nil, err
	}
	return &PasswordSource{
		config:   cfg,
		endpoint: newTokenEndpoint(cfg.Endpoint, cfg.HTTPClient, cfg.Timeout),
	}, nil
}

func (*PasswordSource) GrantType() string {
	return GrantTypePassword
}

func (s *PasswordSource) TokenURL() string {
	if s == nil {
		return ""
	}
	return s.endpoint.URL
}

func (s *PasswordSource) Exchange(ctx context.Context) (TokenExchange, error) {
	if s == nil {
		return TokenExchange{}, fmt.Errorf("auth: password source is nil")
	}
	return s.endpoint.Post(ctx, url.Values{
		"grant_type":    {GrantTypePassword},
		"client_id":     {s.config.ClientID},
		"client_secret": {s.config.ClientSecret},
		"username":      {s.config.Username},
		"password":      {s.config.Password},
	})
}

func (s *PasswordSource) String() string {
	if s == nil {
		return "PasswordSource(<nil>)"
	}
	return fmt.Sprintf("PasswordSource(client_id=%q, client_secret=%q, username=%q, password=%q, token_url=%q)",
		s.config.ClientID, redact(s.config.ClientSecret), s.config.Username, redact(s.config.Password), s.endpoint.URL)
}
