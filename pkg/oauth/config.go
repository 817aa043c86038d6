package oauth

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultScopeSeparator is the RFC 6749 scope delimiter.
	DefaultScopeSeparator = " "

	// DefaultTimeout bounds every request made to the provider.
	DefaultTimeout = 30 * time.Second

	// DefaultStateTTL is how long an issued state parameter stays valid.
	DefaultStateTTL = 10 * time.Minute
)

// Config contains the OAuth 2.0 client configuration for the
// authorization code flow.
type Config struct {
	// ClientID is the OAuth client identifier.
	ClientID string

	// ClientSecret is the OAuth client secret.
	ClientSecret string

	// AuthorizationURL is the provider's authorization endpoint.
	AuthorizationURL string

	// TokenURL is the provider's token endpoint.
	TokenURL string

	// CallbackURL is the redirect_uri sent to the provider. Relative values
	// are resolved against the incoming request.
	CallbackURL string

	// Scope lists the scopes requested when no per-request scope is given.
	Scope []string

	// ScopeSeparator joins scopes into the scope parameter.
	ScopeSeparator string

	// StateSecret enables signed state parameters when non-empty.
	StateSecret []byte

	// StateTTL is the lifetime of an issued state parameter.
	StateTTL time.Duration

	// SkipUserProfile disables the profile fetch after token exchange.
	SkipUserProfile bool

	// HTTPClient overrides the default retrying client.
	HTTPClient *http.Client

	// Timeout is the HTTP client timeout for provider requests.
	Timeout time.Duration

	// TLSConfig allows custom TLS configuration.
	TLSConfig *tls.Config

	// InsecureSkipVerify disables TLS certificate verification (not recommended).
	InsecureSkipVerify bool

	// Logger receives flow diagnostics. Defaults to slog.Default().
	Logger *slog.Logger

	// TracerProvider creates the spans around provider calls. Defaults to
	// the global provider.
	TracerProvider trace.TracerProvider
}

// Validate checks the configuration and fills in defaults.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalidConfiguration)
	}

	if strings.TrimSpace(c.ClientID) == "" {
		return fmt.Errorf("%w: client_id is required", ErrInvalidConfiguration)
	}

	if strings.TrimSpace(c.ClientSecret) == "" {
		return fmt.Errorf("%w: client_secret is required", ErrInvalidConfiguration)
	}

	if err := validateEndpoint("authorization_url", c.AuthorizationURL); err != nil {
		return err
	}

	if err := validateEndpoint("token_url", c.TokenURL); err != nil {
		return err
	}

	if c.ScopeSeparator == "" {
		c.ScopeSeparator = DefaultScopeSeparator
	}

	if c.StateTTL <= 0 {
		c.StateTTL = DefaultStateTTL
	}

	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}

	if c.Logger == nil {
		c.Logger = slog.Default()
	}

	if c.TracerProvider == nil {
		c.TracerProvider = otel.GetTracerProvider()
	}

	return nil
}

func validateEndpoint(name, raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidConfiguration, name)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidConfiguration, name, err)
	}
	if !u.IsAbs() {
		return fmt.Errorf("%w: %s must be absolute", ErrInvalidConfiguration, name)
	}
	return nil
}
