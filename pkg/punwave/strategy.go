package punwave

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/jeremyhahn/go-punwave/pkg/oauth"
	"go.opentelemetry.io/otel/trace"
)

// ProviderName identifies the Punwave strategy.
const ProviderName = "punwave"

const (
	// DefaultAuthorizationURL is Punwave's authorization endpoint.
	DefaultAuthorizationURL = "https://api.punwave.com/oauth2/authorize"

	// DefaultTokenURL is Punwave's token endpoint.
	DefaultTokenURL = "https://api.punwave.com/oauth2/token"

	// DefaultProfileURL returns the user owning the access token.
	DefaultProfileURL = "https://api.punwave.com/oauth2/users/me"

	// DefaultScopeSeparator is the delimiter Punwave expects between scopes.
	DefaultScopeSeparator = ","
)

// ErrProfileParse indicates the profile endpoint returned a body that is not
// a JSON object.
var ErrProfileParse = oauth.ErrProfileParse

// Options configures a Strategy.
type Options struct {
	// ClientID is your Punwave application's App ID.
	ClientID string

	// ClientSecret is your Punwave application's App Secret.
	ClientSecret string

	// CallbackURL is where Punwave redirects the user after authorization.
	CallbackURL string

	AuthorizationURL string
	TokenURL         string
	ProfileURL       string
	ScopeSeparator   string

	// Scope lists the scopes requested by default.
	Scope []string

	// ProfileFields is reserved for field selection and currently unused.
	ProfileFields []string

	// StateSecret enables signed state parameters.
	StateSecret []byte

	// SkipUserProfile disables the profile fetch; verify then receives a nil profile.
	SkipUserProfile bool

	HTTPClient     *http.Client
	Timeout        time.Duration
	Logger         *slog.Logger
	TracerProvider trace.TracerProvider
}

// VerifyFunc maps a successful Punwave login to an application user.
// Returning a nil user fails authentication with info.
type VerifyFunc func(ctx context.Context, accessToken, refreshToken string, profile *Profile) (user any, info *oauth.Info, err error)

// Strategy authenticates requests by delegating to Punwave using OAuth 2.0.
type Strategy struct {
	client        *oauth.Client
	auth          *oauth.Authenticator[*Profile]
	profileURL    string
	profileFields []string
	logger        *slog.Logger
}

// New creates a Punwave strategy. opts supplies the client credentials;
// endpoints default to the public Punwave API.
func New(opts *Options, verify VerifyFunc) (*Strategy, error) {
	if opts == nil {
		return nil, fmt.Errorf("%w: options are required", oauth.ErrInvalidConfiguration)
	}

	if verify == nil {
		return nil, fmt.Errorf("%w: verify callback is required", oauth.ErrInvalidConfiguration)
	}

	profileURL, err := normalizeURL(withDefault(opts.ProfileURL, DefaultProfileURL))
	if err != nil {
		return nil, fmt.Errorf("%w: profile_url: %v", oauth.ErrInvalidConfiguration, err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("provider", ProviderName)

	client, err := oauth.NewClient(&oauth.Config{
		ClientID:         opts.ClientID,
		ClientSecret:     opts.ClientSecret,
		AuthorizationURL: withDefault(opts.AuthorizationURL, DefaultAuthorizationURL),
		TokenURL:         withDefault(opts.TokenURL, DefaultTokenURL),
		CallbackURL:      opts.CallbackURL,
		Scope:            opts.Scope,
		ScopeSeparator:   withDefault(opts.ScopeSeparator, DefaultScopeSeparator),
		StateSecret:      opts.StateSecret,
		SkipUserProfile:  opts.SkipUserProfile,
		HTTPClient:       opts.HTTPClient,
		Timeout:          opts.Timeout,
		Logger:           logger,
		TracerProvider:   opts.TracerProvider,
	})
	if err != nil {
		return nil, err
	}

	s := &Strategy{
		client:        client,
		profileURL:    profileURL,
		profileFields: opts.ProfileFields,
		logger:        logger,
	}

	s.auth, err = oauth.NewAuthenticator(client, oauth.Hooks[*Profile]{
		UserProfile: s.UserProfile,
		Verify: func(ctx context.Context, token *oauth.Token, profile *Profile) (any, *oauth.Info, error) {
			return verify(ctx, token.AccessToken, token.RefreshToken, profile)
		},
		ParseErrorResponse: s.ParseErrorResponse,
	})
	if err != nil {
		return nil, err
	}

	return s, nil
}

// Name returns "punwave".
func (s *Strategy) Name() string {
	return ProviderName
}

// ProfileURL returns the normalized profile endpoint.
func (s *Strategy) ProfileURL() string {
	return s.profileURL
}

// ProfileFields returns the configured profile field selection.
func (s *Strategy) ProfileFields() []string {
	return append([]string(nil), s.profileFields...)
}

// Authenticate handles the login redirect and the Punwave callback.
func (s *Strategy) Authenticate(r *http.Request, opts *oauth.AuthenticateOptions) *oauth.Result {
	return s.auth.Authenticate(r, opts)
}

// UserProfile fetches and normalizes the profile of the user owning
// accessToken. The returned profile has Provider, Raw and JSON set.
func (s *Strategy) UserProfile(ctx context.Context, accessToken string) (*Profile, error) {
	body, _, err := s.client.Get(ctx, s.profileURL, accessToken)
	if err != nil {
		s.logger.WarnContext(ctx, "punwave profile fetch failed", "error", err)
		return nil, oauth.NewInternalOAuthError("Failed to fetch user profile", err, s.ParseErrorResponse)
	}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProfileParse, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: body is not a JSON object", ErrProfileParse)
	}

	profile, err := Parse(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProfileParse, err)
	}

	profile.Provider = ProviderName
	profile.Raw = string(body)
	profile.JSON = raw

	return profile, nil
}

// ParseErrorResponse interprets an error body from a Punwave endpoint.
func (s *Strategy) ParseErrorResponse(body []byte, status int) error {
	return s.client.ParseErrorResponse(body, status)
}

func withDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func normalizeURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if !u.IsAbs() {
		return "", fmt.Errorf("%q is not absolute", raw)
	}
	return u.String(), nil
}
