package oauth

import (
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// Token represents an OAuth 2.0 access token and associated metadata.
type Token struct {
	// AccessToken is the OAuth access token.
	AccessToken string

	// TokenType is the type of token (usually "Bearer").
	TokenType string

	// RefreshToken is used to obtain new access tokens (optional).
	RefreshToken string

	// Expiry is when the access token expires.
	Expiry time.Time

	// Scopes are the scopes granted to this token.
	Scopes []string
}

// Expired reports whether the token carries an expiry in the past.
func (t *Token) Expired() bool {
	if t.Expiry.IsZero() {
		return false
	}
	return time.Now().After(t.Expiry)
}

// ExpiresIn is the remaining lifetime, or 0 for expired tokens and tokens
// without an expiry.
func (t *Token) ExpiresIn() time.Duration {
	if t.Expiry.IsZero() {
		return 0
	}
	d := time.Until(t.Expiry)
	if d < 0 {
		return 0
	}
	return d
}

// tokenFromOAuth2 converts an x/oauth2 token, splitting the granted scope
// string on sep as well as whitespace.
func tokenFromOAuth2(t *oauth2.Token, sep string) *Token {
	token := &Token{
		AccessToken:  t.AccessToken,
		TokenType:    t.TokenType,
		RefreshToken: t.RefreshToken,
		Expiry:       t.Expiry,
	}

	if token.TokenType == "" {
		token.TokenType = "Bearer"
	}

	if scope, ok := t.Extra("scope").(string); ok {
		token.Scopes = splitScopes(scope, sep)
	}

	return token
}

// splitScopes splits a scope string on sep and whitespace.
func splitScopes(scope, sep string) []string {
	if scope == "" {
		return nil
	}
	if sep != "" && sep != " " {
		scope = strings.ReplaceAll(scope, sep, " ")
	}
	return strings.Fields(scope)
}

// joinScopes renders scopes as a single parameter value.
func joinScopes(scopes []string, sep string) string {
	return strings.Join(scopes, sep)
}
