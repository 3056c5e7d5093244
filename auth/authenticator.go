package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-sfstream/core"
	"golang.org/x/sync/singleflight"
)

const (
	messageAuthenticationFailed = "Authentication failed"
	messageNetworkFailed        = "Network request failed"
	messageNotAuthenticated     = "Unknown token_type and access_token values. Method called without authenticating first."
)

// CredentialSource performs one token exchange.
type CredentialSource interface {
	GrantType() string
	Exchange(ctx context.Context) (TokenExchange, error)
}

type AuthenticatorOption func(*Authenticator)

func WithLogger(logger core.Logger) AuthenticatorOption {
	return func(a *Authenticator) {
		a.logger = logger
	}
}

// Authenticator holds the current credential and stamps the Authorization
// header on every outgoing request. Any failed exchange clears the
// credential. Concurrent Authenticate calls share one exchange.
type Authenticator struct {
	source CredentialSource
	logger core.Logger
	flight singleflight.Group

	mu         sync.RWMutex
	credential core.Credential
}

func NewAuthenticator(source CredentialSource, opts ...AuthenticatorOption) (*Authenticator, error) {
	if source == nil {
		return nil, fmt.Errorf("auth: credential source is required")
	}
	authenticator := &Authenticator{source: source}
	for _, opt := range opts {
		if opt != nil {
			opt(authenticator)
		}
	}
	authenticator.logger = glog.Ensure(authenticator.logger)
	return authenticator, nil
}

func (a *Authenticator) Source() CredentialSource {
	if a == nil {
		return nil
	}
	return a.source
}

func (a *Authenticator) Authenticate(ctx context.Context) error {
	if a == nil || a.source == nil {
		return core.NewAuthenticationError("auth: authenticator is not configured", nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	// The shared exchange outlives any single caller; each caller waits on
	// its own context.
	results := a.flight.DoChan("authenticate", func() (any, error) {
		return nil, a.authenticate(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case result := <-results:
		return result.Err
	}
}

func (a *Authenticator) authenticate(ctx context.Context) error {
	result, err := a.source.Exchange(ctx)
	if err != nil {
		a.reset()
		a.logger.Warn("authentication request failed", "grant_type", a.source.GrantType(), "error", err.Error())
		var requestErr *TokenRequestError
		if errors.As(err, &requestErr) {
			return core.WrapAuthenticationError(err, messageNetworkFailed)
		}
		return core.WrapAuthenticationError(err, messageAuthenticationFailed)
	}
	if result.StatusCode != http.StatusOK {
		a.reset()
		a.logger.Warn("authentication rejected", "grant_type", a.source.GrantType(), "status", result.StatusCode)
		return core.NewAuthenticationError(messageAuthenticationFailed, result.Response())
	}

	credential := credentialFromBody(result.Body)
	if !credential.Authorized() {
		a.reset()
		a.logger.Warn("authentication response missing token", "grant_type", a.source.GrantType())
		return core.NewAuthenticationError(messageAuthenticationFailed, result.Response())
	}

	a.mu.Lock()
	a.credential = credential
	a.mu.Unlock()
	a.logger.Debug("authenticated", "grant_type", a.source.GrantType(), "instance_url", credential.InstanceURL)
	return nil
}

func (a *Authenticator) reset() {
	a.mu.Lock()
	a.credential = core.Credential{}
	a.mu.Unlock()
}

func (a *Authenticator) Credential() core.Credential {
	if a == nil {
		return core.Credential{}
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.credential
}

// InstanceURL is empty until the first successful authentication.
func (a *Authenticator) InstanceURL() string {
	return a.Credential().InstanceURL
}

func (a *Authenticator) BeforeSend(_ context.Context, _ []core.Message, headers http.Header) error {
	credential := a.Credential()
	if !credential.Authorized() {
		return core.NewAuthenticationError(messageNotAuthenticated, nil)
	}
	if headers == nil {
		return core.NewBadInputError("auth: outgoing headers are required")
	}
	headers.Set("Authorization", credential.AuthorizationHeader())
	return nil
}

func (a *Authenticator) AfterReceive(context.Context, []core.Message, http.Header) error {
	return nil
}

func (a *Authenticator) String() string {
	if a == nil || a.source == nil {
		return "Authenticator(<nil>)"
	}
	return fmt.Sprintf("Authenticator(%v)", a.source)
}

func credentialFromBody(body map[string]any) core.Credential {
	if len(body) == 0 {
		return core.Credential{}
	}
	return core.Credential{
		TokenType:   readString(body, "token_type"),
		AccessToken: readString(body, "access_token"),
		InstanceURL: readString(body, "instance_url"),
		IdentityURL: readString(body, "id"),
		Signature:   readString(body, "signature"),
		IssuedAt:    readString(body, "issued_at"),
	}
}

var (
	_ core.Authenticator = (*Authenticator)(nil)
	_ CredentialSource   = (*PasswordSource)(nil)
	_ CredentialSource   = (*RefreshTokenSource)(nil)
	_ CredentialSource   = (*JWTBearerSource)(nil)
)
