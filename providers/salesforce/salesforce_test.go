package salesforce

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goliatone/go-sfstream/auth"
	"github.com/goliatone/go-sfstream/core"
	"github.com/goliatone/go-sfstream/transport"
)

func TestLoadEnvConfig_AppliesDefaultsAndOverrides(t *testing.T) {
	t.Setenv("SFSTREAM_CONSUMER_KEY", "key")
	t.Setenv("SFSTREAM_USERNAME", "user@example.com")
	t.Setenv("SFSTREAM_SANDBOX", "true")
	t.Setenv("SFSTREAM_REPLAY_FALLBACK", "ALL_EVENTS")
	t.Setenv("SFSTREAM_CONNECTION_TIMEOUT", "25s")

	cfg, err := LoadEnvConfig()
	if err != nil {
		t.Fatalf("load env config: %v", err)
	}
	if cfg.ConsumerKey != "key" || cfg.Username != "user@example.com" || !cfg.Sandbox {
		t.Fatalf("unexpected decoded config %+v", cfg)
	}
	if cfg.APIVersion != "45.0" || cfg.MaxPendingCount != 100 || cfg.StoragePolicy != "automatic" {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
	if cfg.ConnectionTimeout != 25*time.Second {
		t.Fatalf("expected 25s timeout, got %v", cfg.ConnectionTimeout)
	}
	if got := cfg.Endpoint().ResolveTokenURL(); got != SandboxTokenURL {
		t.Fatalf("expected sandbox token url, got %q", got)
	}
}

func TestConfig_CredentialSourceSelection(t *testing.T) {
	base := Config{ConsumerKey: "key", ConsumerSecret: "secret", Username: "user", Password: "pass"}

	source, err := base.CredentialSource()
	if err != nil {
		t.Fatalf("password source: %v", err)
	}
	if source.GrantType() != auth.GrantTypePassword {
		t.Fatalf("expected password grant, got %q", source.GrantType())
	}

	withRefresh := base
	withRefresh.RefreshToken = "refresh"
	source, err = withRefresh.CredentialSource()
	if err != nil {
		t.Fatalf("refresh source: %v", err)
	}
	if source.GrantType() != auth.GrantTypeRefreshToken {
		t.Fatalf("expected refresh token grant, got %q", source.GrantType())
	}

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	withKey := withRefresh
	withKey.PrivateKeyPEM = string(keyPEM)
	source, err = withKey.CredentialSource()
	if err != nil {
		t.Fatalf("jwt source: %v", err)
	}
	if source.GrantType() != auth.GrantTypeJWTBearer {
		t.Fatalf("expected jwt bearer grant, got %q", source.GrantType())
	}

	invalid := base
	invalid.Sandbox = true
	invalid.Domain = "mydomain.my"
	if _, err := invalid.Authenticator(); err == nil {
		t.Fatalf("expected sandbox and domain conflict")
	}
}

func TestConfig_OptionsRejectsUnknownFallback(t *testing.T) {
	if _, err := (Config{ReplayFallback: "sometimes"}).Options(); err == nil {
		t.Fatalf("expected invalid fallback error")
	}
	if _, err := (Config{StoragePolicy: "never"}).Options(); err == nil {
		t.Fatalf("expected invalid storage policy error")
	}
}

func TestStreamingEndpoint(t *testing.T) {
	if got := StreamingEndpoint("https://na1.example.com/", ""); got != "https://na1.example.com/cometd/45.0" {
		t.Fatalf("unexpected default endpoint %q", got)
	}
	if got := StreamingEndpoint("https://na1.example.com", "58.0"); got != "https://na1.example.com/cometd/58.0" {
		t.Fatalf("unexpected versioned endpoint %q", got)
	}
}

func TestNewStreamingClient_AuthenticatesWithPasswordFlow(t *testing.T) {
	var grantType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		grantType = r.PostForm.Get("grant_type")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"token_type":   "Bearer",
			"access_token": "00Dxx!token",
			"instance_url": "https://na1.example.com",
		})
	}))
	defer server.Close()

	client, err := NewStreamingClient(Config{
		ConsumerKey:     "key",
		ConsumerSecret:  "secret",
		Username:        "user",
		Password:        "pass",
		TokenURL:        server.URL + "/services/oauth2/token",
		APIVersion:      "58.0",
		ReplayFallback:  "ALL_EVENTS",
		StoragePolicy:   "manual",
		MaxPendingCount: 10,
		TransportKind:   transport.KindMemory,
	}, core.ReplayNewEvents)
	if err != nil {
		t.Fatalf("new streaming client: %v", err)
	}
	ctx := context.Background()
	if err := client.Open(ctx); err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = client.Close(ctx) }()

	if grantType != auth.GrantTypePassword {
		t.Fatalf("expected password grant, got %q", grantType)
	}
	if client.URL() != "https://na1.example.com/cometd/58.0" {
		t.Fatalf("unexpected client url %q", client.URL())
	}
	cfg := client.Config()
	if fallback, ok := cfg.Fallback(); !ok || fallback != core.ReplayAllEvents {
		t.Fatalf("expected ALL_EVENTS fallback, got %v", fallback)
	}
	if cfg.Policy() != core.StoragePolicyManual || cfg.MaxPendingCount != 10 {
		t.Fatalf("unexpected client config %+v", cfg)
	}
}

func TestNewStreamingClient_RequiresTransportKind(t *testing.T) {
	_, err := NewStreamingClient(Config{
		ConsumerKey:    "key",
		ConsumerSecret: "secret",
		Username:       "user",
		Password:       "pass",
	}, nil)
	if !core.IsBadInputError(err) {
		t.Fatalf("expected bad input without transport kind, got %v", err)
	}
}
