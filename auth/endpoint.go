package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	ProductionDomain = "login"
	SandboxDomain    = "test"

	tokenURLTemplate  = "https://%s.salesforce.com/services/oauth2/token"
	issuerURLTemplate = "https://%s.salesforce.com"

	defaultTokenRequestTimeout = 30 * time.Second
	maxTokenResponseBodyBytes  = 1 << 20
)

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// EndpointConfig selects the token endpoint. Sandbox and Domain are mutually
// exclusive. TokenURL, when set, overrides both.
type EndpointConfig struct {
	Sandbox  bool
	Domain   string
	TokenURL string
}

func (c EndpointConfig) normalized() EndpointConfig {
	return EndpointConfig{
		Sandbox:  c.Sandbox,
		Domain:   strings.TrimSpace(c.Domain),
		TokenURL: strings.TrimSpace(c.TokenURL),
	}
}

func (c EndpointConfig) Validate() error {
	c = c.normalized()
	if c.Sandbox && c.Domain != "" {
		return fmt.Errorf("auth: cannot specify a value for sandbox and domain")
	}
	if c.TokenURL != "" {
		parsed, err := url.Parse(c.TokenURL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("auth: invalid token url %q", c.TokenURL)
		}
	}
	return nil
}

func (c EndpointConfig) domain() string {
	c = c.normalized()
	switch {
	case c.Domain != "":
		return c.Domain
	case c.Sandbox:
		return SandboxDomain
	default:
		return ProductionDomain
	}
}

// ResolveTokenURL returns the token endpoint address.
func (c EndpointConfig) ResolveTokenURL() string {
	c = c.normalized()
	if c.TokenURL != "" {
		return c.TokenURL
	}
	return fmt.Sprintf(tokenURLTemplate, c.domain())
}

// ResolveIssuerURL returns the base URL of the token issuer, used as the
// audience of JWT bearer assertions.
func (c EndpointConfig) ResolveIssuerURL() string {
	c = c.normalized()
	if c.TokenURL != "" {
		if parsed, err := url.Parse(c.TokenURL); err == nil && parsed.Host != "" {
			return parsed.Scheme + "://" + parsed.Host
		}
	}
	return fmt.Sprintf(issuerURLTemplate, c.domain())
}

// TokenExchange is the outcome of a token request that reached the server.
// Body holds the decoded JSON object; Raw holds the body text when it was
// not a JSON object.
type TokenExchange struct {
	StatusCode int
	Body       map[string]any
	Raw        string
}

// Response returns the body in the form reported by authentication errors.
func (e TokenExchange) Response() any {
	if e.Body != nil {
		return cloneMetadata(e.Body)
	}
	if e.Raw != "" {
		return e.Raw
	}
	return nil
}

// TokenRequestError reports a token request that never got a response.
type TokenRequestError struct {
	Err error
}

func (e *TokenRequestError) Error() string {
	if e == nil || e.Err == nil {
		return "auth: token request failed"
	}
	return "auth: token request failed: " + e.Err.Error()
}

func (e *TokenRequestError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

type TokenEndpoint struct {
	URL        string
	HTTPClient HTTPDoer
	Timeout    time.Duration
}

func newTokenEndpoint(cfg EndpointConfig, client HTTPDoer, timeout time.Duration) TokenEndpoint {
	if timeout <= 0 {
		timeout = defaultTokenRequestTimeout
	}
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return TokenEndpoint{
		URL:        cfg.ResolveTokenURL(),
		HTTPClient: client,
		Timeout:    timeout,
	}
}

// Post sends form to the token endpoint. An error means the request never
// produced a response; any HTTP status is reported through TokenExchange.
func (e TokenEndpoint) Post(ctx context.Context, form url.Values) (TokenExchange, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(e.URL) == "" {
		return TokenExchange{}, fmt.Errorf("auth: token url is required")
	}
	client := e.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	requestCtx := ctx
	cancel := func() {}
	if e.Timeout > 0 {
		requestCtx, cancel = context.WithTimeout(ctx, e.Timeout)
	}
	defer cancel()

	httpReq, err := http.NewRequestWithContext(
		requestCtx,
		http.MethodPost,
		e.URL,
		strings.NewReader(form.Encode()),
	)
	if err != nil {
		return TokenExchange{}, err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/json")

	response, err := client.Do(httpReq)
	if err != nil {
		return TokenExchange{}, &TokenRequestError{Err: err}
	}
	defer response.Body.Close()

	body, err := io.ReadAll(io.LimitReader(response.Body, maxTokenResponseBodyBytes+1))
	if err != nil {
		return TokenExchange{}, &TokenRequestError{Err: fmt.Errorf("read token response: %w", err)}
	}
	if int64(len(body)) > maxTokenResponseBodyBytes {
		return TokenExchange{}, fmt.Errorf("auth: token response exceeds %d bytes", maxTokenResponseBodyBytes)
	}

	result := TokenExchange{StatusCode: response.StatusCode}
	decoded := map[string]any{}
	if err := json.Unmarshal(body, &decoded); err == nil {
		result.Body = decoded
	} else {
		result.Raw = strings.TrimSpace(string(body))
	}
	return result, nil
}
