package oauth

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingToken indicates no access token was provided.
	ErrMissingToken = errors.New("oauth: missing token")

	// ErrInvalidConfiguration indicates the client or strategy configuration is invalid.
	ErrInvalidConfiguration = errors.New("oauth: invalid configuration")

	// ErrTokenExchangeFailed indicates the authorization code could not be exchanged.
	ErrTokenExchangeFailed = errors.New("oauth: token exchange failed")

	// ErrTokenExpired indicates the provider issued an access token that had already expired.
	ErrTokenExpired = errors.New("oauth: access token expired")

	// ErrResponseTooLarge indicates a provider response exceeded the read limit.
	ErrResponseTooLarge = errors.New("oauth: response body too large")

	// ErrProfileParse indicates a profile endpoint answered with a body that
	// could not be parsed.
	ErrProfileParse = errors.New("oauth: failed to parse user profile")

	// ErrInvalidState indicates the state parameter returned by the provider did not verify.
	ErrInvalidState = errors.New("oauth: invalid state")
)

// InternalOAuthError wraps a failure that occurred while talking to the
// provider (token exchange, protected resource fetch). It marks the failure
// as provider side rather than a user decision.
type InternalOAuthError struct {
	Message string
	Err     error
}

func (e *InternalOAuthError) Error() string {
	if e.Err == nil {
		return "oauth: " + e.Message
	}
	return fmt.Sprintf("oauth: %s: %v", e.Message, e.Err)
}

func (e *InternalOAuthError) Unwrap() error { return e.Err }

// TokenError is an OAuth 2.0 error document returned by a token or resource
// endpoint (RFC 6749 section 5.2).
type TokenError struct {
	Code        string
	Description string
	URI         string
	Status      int
}

func (e *TokenError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("oauth: %s: %s", e.Code, e.Description)
	}
	return "oauth: " + e.Code
}

// AuthorizationError is returned when the provider redirects back with an
// error other than access_denied.
type AuthorizationError struct {
	Code        string
	Description string
	URI         string
	Reason      string
}

func (e *AuthorizationError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("oauth: authorization failed: %s: %s", e.Code, e.Description)
	}
	return "oauth: authorization failed: " + e.Code
}

// HTTPError reports a non-2xx response from a provider endpoint.
type HTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("oauth: unexpected status %d", e.StatusCode)
}
