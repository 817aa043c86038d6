package oauth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/jeremyhahn/go-punwave/pkg/oauth"

// Outcome classifies the result of an authentication attempt.
type Outcome int

const (
	// OutcomeRedirect sends the user agent to the provider.
	OutcomeRedirect Outcome = iota + 1

	// OutcomeFail is a non-fatal authentication failure, such as the user
	// denying the request.
	OutcomeFail

	// OutcomeError is an internal or provider side error.
	OutcomeError

	// OutcomeSuccess carries an authenticated user.
	OutcomeSuccess
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRedirect:
		return "redirect"
	case OutcomeFail:
		return "fail"
	case OutcomeError:
		return "error"
	case OutcomeSuccess:
		return "success"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Info is a human readable explanation attached to fail and success outcomes.
type Info struct {
	Message string
}

// Result is the single completion of an Authenticate call.
type Result struct {
	Outcome Outcome

	// Location and Status describe a redirect.
	Location string
	Status   int

	// User is set on success.
	User any

	// Info accompanies fail and success outcomes (optional).
	Info *Info

	// Err is set on error.
	Err error

	// Token is the exchanged token on success.
	Token *Token
}

// AuthenticateOptions are per-request overrides.
type AuthenticateOptions struct {
	// CallbackURL overrides Config.CallbackURL.
	CallbackURL string

	// Scope overrides Config.Scope.
	Scope []string

	// State is sent as-is when no state secret is configured.
	State string

	// Params are extra authorization request parameters.
	Params url.Values
}

// Hooks are the provider specific pieces an Authenticator calls into.
type Hooks[P any] struct {
	// UserProfile loads the provider profile for an access token. Required
	// unless Config.SkipUserProfile is set.
	UserProfile func(ctx context.Context, accessToken string) (P, error)

	// Verify maps the token and profile to an application user. A nil user
	// fails authentication with the returned info.
	Verify func(ctx context.Context, token *Token, profile P) (user any, info *Info, err error)

	// ParseErrorResponse interprets token endpoint error bodies. Defaults to
	// Client.ParseErrorResponse.
	ParseErrorResponse ErrorParser
}

// Authenticator drives the authorization code flow for one provider. It
// dispatches an incoming request on its query parameters and completes
// exactly once with a Result.
type Authenticator[P any] struct {
	client *Client
	hooks  Hooks[P]
	state  StateStore
	logger *slog.Logger
	tracer trace.Tracer
}

// NewAuthenticator binds provider hooks to client.
func NewAuthenticator[P any](client *Client, hooks Hooks[P]) (*Authenticator[P], error) {
	if client == nil {
		return nil, fmt.Errorf("%w: client is nil", ErrInvalidConfiguration)
	}

	if hooks.Verify == nil {
		return nil, fmt.Errorf("%w: verify callback is required", ErrInvalidConfiguration)
	}

	if hooks.UserProfile == nil && !client.config.SkipUserProfile {
		return nil, fmt.Errorf("%w: user profile loader is required", ErrInvalidConfiguration)
	}

	if hooks.ParseErrorResponse == nil {
		hooks.ParseErrorResponse = client.ParseErrorResponse
	}

	return &Authenticator[P]{
		client: client,
		hooks:  hooks,
		state:  newStateStore(client.config),
		logger: client.logger,
		tracer: client.config.TracerProvider.Tracer(tracerName),
	}, nil
}

// Authenticate handles r, which is either the start of a login or the
// provider's redirect back to the callback URL.
func (a *Authenticator[P]) Authenticate(r *http.Request, opts *AuthenticateOptions) *Result {
	if opts == nil {
		opts = &AuthenticateOptions{}
	}

	ctx := r.Context()
	query := r.URL.Query()

	if code := query.Get("error"); code != "" {
		if code == "access_denied" {
			a.logger.InfoContext(ctx, "oauth authorization denied",
				"error_code", query.Get("error_code"),
				"error_reason", query.Get("error_reason"))
			return &Result{Outcome: OutcomeFail, Info: &Info{Message: query.Get("error_description")}}
		}
		return errorResult(&AuthorizationError{
			Code:        code,
			Description: query.Get("error_description"),
			URI:         query.Get("error_uri"),
			Reason:      query.Get("error_reason"),
		})
	}

	callbackURL := opts.CallbackURL
	if callbackURL == "" {
		callbackURL = a.client.config.CallbackURL
	}
	callbackURL = resolveCallbackURL(r, callbackURL)

	if code := query.Get("code"); code != "" {
		return a.callback(ctx, code, query.Get("state"), callbackURL)
	}

	state := opts.State
	if _, ok := a.state.(nullStateStore); !ok {
		issued, err := a.state.Issue()
		if err != nil {
			return errorResult(err)
		}
		state = issued
	}

	scope := opts.Scope
	if scope == nil {
		scope = a.client.config.Scope
	}

	location := a.client.AuthCodeURL(state, callbackURL, scope, opts.Params)
	a.logger.DebugContext(ctx, "oauth redirecting to provider", "callback_url", callbackURL)

	return &Result{Outcome: OutcomeRedirect, Location: location, Status: http.StatusFound}
}

func (a *Authenticator[P]) callback(ctx context.Context, code, state, callbackURL string) *Result {
	ctx, span := a.tracer.Start(ctx, "oauth.callback",
		trace.WithAttributes(attribute.String("oauth.client_id", a.client.ClientID())))
	defer span.End()

	result := a.completeCallback(ctx, code, state, callbackURL)

	span.SetAttributes(attribute.String("oauth.outcome", result.Outcome.String()))
	if result.Err != nil {
		span.RecordError(result.Err)
		span.SetStatus(codes.Error, result.Err.Error())
	}

	return result
}

func (a *Authenticator[P]) completeCallback(ctx context.Context, code, state, callbackURL string) *Result {
	if err := a.state.Verify(state); err != nil {
		a.logger.WarnContext(ctx, "oauth state verification failed", "error", err)
		return &Result{Outcome: OutcomeFail, Info: &Info{Message: "Invalid authorization request state."}}
	}

	token, err := a.exchange(ctx, code, callbackURL)
	if err != nil {
		a.logger.WarnContext(ctx, "oauth token exchange failed", "error", err)
		return errorResult(NewInternalOAuthError("Failed to obtain access token", err, a.hooks.ParseErrorResponse))
	}

	if token.Expired() {
		a.logger.WarnContext(ctx, "oauth provider issued an expired token", "expiry", token.Expiry)
		return errorResult(NewInternalOAuthError("Failed to obtain access token", ErrTokenExpired, nil))
	}
	a.logger.DebugContext(ctx, "oauth token obtained", "expires_in", token.ExpiresIn())

	var profile P
	if !a.client.config.SkipUserProfile {
		profile, err = a.userProfile(ctx, token.AccessToken)
		if err != nil {
			return errorResult(err)
		}
	}

	user, info, err := a.hooks.Verify(ctx, token, profile)
	if err != nil {
		return errorResult(err)
	}

	if user == nil {
		return &Result{Outcome: OutcomeFail, Info: info}
	}

	return &Result{Outcome: OutcomeSuccess, User: user, Info: info, Token: token}
}

func (a *Authenticator[P]) exchange(ctx context.Context, code, callbackURL string) (*Token, error) {
	ctx, span := a.tracer.Start(ctx, "oauth.exchange")
	defer span.End()

	token, err := a.client.Exchange(ctx, code, callbackURL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "token exchange failed")
	}
	return token, err
}

func (a *Authenticator[P]) userProfile(ctx context.Context, accessToken string) (P, error) {
	ctx, span := a.tracer.Start(ctx, "oauth.user_profile")
	defer span.End()

	profile, err := a.hooks.UserProfile(ctx, accessToken)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "user profile failed")
	}
	return profile, err
}

func errorResult(err error) *Result {
	return &Result{Outcome: OutcomeError, Err: err}
}

// resolveCallbackURL makes a relative callback absolute using the host and
// scheme of the incoming request.
func resolveCallbackURL(r *http.Request, callback string) string {
	if callback == "" {
		return ""
	}

	u, err := url.Parse(callback)
	if err != nil || u.IsAbs() {
		return callback
	}

	base := &url.URL{Scheme: "http", Host: r.Host, Path: r.URL.Path}
	if r.TLS != nil {
		base.Scheme = "https"
	}

	return base.ResolveReference(u).String()
}
