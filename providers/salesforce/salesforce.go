// Package salesforce wires the streaming client with the Salesforce
// defaults: login endpoints, the CometD endpoint layout and credential
// selection from configuration.
package salesforce

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"

	sfstream "github.com/goliatone/go-sfstream"
	"github.com/goliatone/go-sfstream/auth"
	"github.com/goliatone/go-sfstream/core"
)

const (
	ProviderID         = "salesforce"
	ProductionTokenURL = "https://login.salesforce.com/services/oauth2/token"
	SandboxTokenURL    = "https://test.salesforce.com/services/oauth2/token"
)

// Config can be populated from the environment with LoadEnvConfig. The
// credential flow is chosen by the fields that are set: a private key
// selects the JWT bearer flow, a refresh token the refresh token flow, and
// otherwise the password flow is used.
type Config struct {
	ConsumerKey    string `env:"SFSTREAM_CONSUMER_KEY"`
	ConsumerSecret string `env:"SFSTREAM_CONSUMER_SECRET"`
	Username       string `env:"SFSTREAM_USERNAME"`
	Password       string `env:"SFSTREAM_PASSWORD"`
	RefreshToken   string `env:"SFSTREAM_REFRESH_TOKEN"`
	PrivateKeyPEM  string `env:"SFSTREAM_PRIVATE_KEY"`
	PrivateKeyFile string `env:"SFSTREAM_PRIVATE_KEY_FILE"`

	Sandbox  bool   `env:"SFSTREAM_SANDBOX,default=false"`
	Domain   string `env:"SFSTREAM_DOMAIN"`
	TokenURL string `env:"SFSTREAM_TOKEN_URL"`

	APIVersion        string        `env:"SFSTREAM_API_VERSION,default=45.0"`
	ReplayFallback    string        `env:"SFSTREAM_REPLAY_FALLBACK"`
	StoragePolicy     string        `env:"SFSTREAM_STORAGE_POLICY,default=automatic"`
	ConnectionTimeout time.Duration `env:"SFSTREAM_CONNECTION_TIMEOUT,default=10s"`
	MaxPendingCount   int           `env:"SFSTREAM_MAX_PENDING_COUNT,default=100"`
	TokenTimeout      time.Duration `env:"SFSTREAM_TOKEN_TIMEOUT,default=30s"`
	// TransportKind names the registered transport the client streams on.
	TransportKind string `env:"SFSTREAM_TRANSPORT_KIND"`

	HTTPClient auth.HTTPDoer
	Logger     core.Logger
}

func LoadEnvConfig() (Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("providers/salesforce: decode env: %w", err)
	}
	return cfg, nil
}

func (c Config) Endpoint() auth.EndpointConfig {
	return auth.EndpointConfig{
		Sandbox:  c.Sandbox,
		Domain:   c.Domain,
		TokenURL: c.TokenURL,
	}
}

// CredentialSource builds the token exchange selected by the config.
func (c Config) CredentialSource() (auth.CredentialSource, error) {
	switch {
	case strings.TrimSpace(c.PrivateKeyPEM) != "" || strings.TrimSpace(c.PrivateKeyFile) != "":
		keyPEM := c.PrivateKeyPEM
		if strings.TrimSpace(keyPEM) == "" {
			raw, err := os.ReadFile(strings.TrimSpace(c.PrivateKeyFile))
			if err != nil {
				return nil, fmt.Errorf("providers/salesforce: read private key: %w", err)
			}
			keyPEM = string(raw)
		}
		return auth.NewJWTBearerSource(auth.JWTBearerSourceConfig{
			ClientID:      c.ConsumerKey,
			Username:      c.Username,
			PrivateKeyPEM: keyPEM,
			Endpoint:      c.Endpoint(),
			HTTPClient:    c.HTTPClient,
			Timeout:       c.TokenTimeout,
		})
	case strings.TrimSpace(c.RefreshToken) != "":
		return auth.NewRefreshTokenSource(auth.RefreshTokenSourceConfig{
			ClientID:     c.ConsumerKey,
			ClientSecret: c.ConsumerSecret,
			RefreshToken: c.RefreshToken,
			Endpoint:     c.Endpoint(),
			HTTPClient:   c.HTTPClient,
			Timeout:      c.TokenTimeout,
		})
	default:
		return auth.NewPasswordSource(auth.PasswordSourceConfig{
			ClientID:     c.ConsumerKey,
			ClientSecret: c.ConsumerSecret,
			Username:     c.Username,
			Password:     c.Password,
			Endpoint:     c.Endpoint(),
			HTTPClient:   c.HTTPClient,
			Timeout:      c.TokenTimeout,
		})
	}
}

func (c Config) Authenticator() (*auth.Authenticator, error) {
	source, err := c.CredentialSource()
	if err != nil {
		return nil, core.NewBadInputError(err.Error())
	}
	return auth.NewAuthenticator(source, auth.WithLogger(c.Logger))
}

// Options translates the client settings of the config into client options.
func (c Config) Options() ([]sfstream.Option, error) {
	opts := []sfstream.Option{}
	if version := strings.TrimSpace(c.APIVersion); version != "" {
		opts = append(opts, sfstream.WithAPIVersion(version))
	}
	if fallback := strings.TrimSpace(c.ReplayFallback); fallback != "" {
		option, err := core.ParseReplayOption(fallback)
		if err != nil {
			return nil, core.NewBadInputError(err.Error())
		}
		opts = append(opts, sfstream.WithReplayFallback(option))
	}
	if policy := strings.TrimSpace(c.StoragePolicy); policy != "" {
		parsed, err := core.ParseStoragePolicy(policy)
		if err != nil {
			return nil, core.NewBadInputError(err.Error())
		}
		opts = append(opts, sfstream.WithStoragePolicy(parsed))
	}
	if c.ConnectionTimeout > 0 {
		opts = append(opts, sfstream.WithConnectionTimeout(c.ConnectionTimeout))
	}
	if c.MaxPendingCount != 0 {
		opts = append(opts, sfstream.WithMaxPendingCount(c.MaxPendingCount))
	}
	if kind := strings.TrimSpace(c.TransportKind); kind != "" {
		opts = append(opts, sfstream.WithTransportKind(kind))
	}
	if c.Logger != nil {
		opts = append(opts, sfstream.WithLogger(c.Logger))
	}
	return opts, nil
}

// NewStreamingClient builds a client authenticating with the credentials in
// cfg. replayParam accepts the values documented on sfstream.ReplayStoreFor.
// Options in opts are applied after the ones derived from cfg.
func NewStreamingClient(cfg Config, replayParam any, opts ...sfstream.Option) (*sfstream.Client, error) {
	authenticator, err := cfg.Authenticator()
	if err != nil {
		return nil, err
	}
	derived, err := cfg.Options()
	if err != nil {
		return nil, err
	}
	return sfstream.New(authenticator, replayParam, append(derived, opts...)...)
}

// StreamingEndpoint returns the CometD endpoint of an org instance.
func StreamingEndpoint(instanceURL string, apiVersion string) string {
	cfg := core.DefaultConfig()
	if version := strings.TrimSpace(apiVersion); version != "" {
		cfg.APIVersion = version
	}
	return cfg.EndpointURL(instanceURL)
}
