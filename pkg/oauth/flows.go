package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
)

// AuthCodeURL builds the provider authorization URL. scope is joined with
// the configured separator; extra carries provider specific parameters.
func (c *Client) AuthCodeURL(state, callbackURL string, scope []string, extra url.Values) string {
	cfg := *c.oauthCfg
	cfg.RedirectURL = callbackURL

	var opts []oauth2.AuthCodeOption
	if len(scope) > 0 {
		opts = append(opts, oauth2.SetAuthURLParam("scope", joinScopes(scope, c.config.ScopeSeparator)))
	}
	for key := range extra {
		opts = append(opts, oauth2.SetAuthURLParam(key, extra.Get(key)))
	}

	return cfg.AuthCodeURL(state, opts...)
}

// Exchange trades an authorization code for a token. callbackURL must
// match the redirect_uri used for the authorization request.
func (c *Client) Exchange(ctx context.Context, code, callbackURL string) (*Token, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	if strings.TrimSpace(code) == "" {
		return nil, fmt.Errorf("%w: authorization code is required", ErrTokenExchangeFailed)
	}

	cfg := *c.oauthCfg
	cfg.RedirectURL = callbackURL

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenExchangeFailed, err)
	}

	if tok.AccessToken == "" {
		return nil, fmt.Errorf("%w: no access token in response", ErrTokenExchangeFailed)
	}

	return tokenFromOAuth2(tok, c.config.ScopeSeparator), nil
}

// ErrorParser turns a provider error body into a typed error, or nil when
// the body is not recognized.
type ErrorParser func(body []byte, status int) error

// NewInternalOAuthError wraps a provider failure in an InternalOAuthError.
// When the provider answered with an error document that parse recognizes,
// the parsed error is joined into the cause.
func NewInternalOAuthError(message string, err error, parse ErrorParser) error {
	cause := err

	var retrieveErr *oauth2.RetrieveError
	var httpErr *HTTPError
	switch {
	case errors.As(err, &retrieveErr) && parse != nil:
		status := 0
		if retrieveErr.Response != nil {
			status = retrieveErr.Response.StatusCode
		}
		if tokenErr := parse(retrieveErr.Body, status); tokenErr != nil {
			cause = errors.Join(err, tokenErr)
		}
	case errors.As(err, &httpErr) && parse != nil:
		if tokenErr := parse(httpErr.Body, httpErr.StatusCode); tokenErr != nil {
			cause = errors.Join(err, tokenErr)
		}
	}

	return &InternalOAuthError{Message: message, Err: cause}
}
