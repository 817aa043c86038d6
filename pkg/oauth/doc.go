// Package oauth provides a generic OAuth 2.0 authorization code client for
// provider strategies.
//
// The protocol primitives (authorization URL construction, code exchange,
// token decoding) come from golang.org/x/oauth2. This package adds the
// request dispatch a login strategy needs on top of them:
//
//   - Redirect the user agent to the provider's authorization endpoint
//   - Map a provider error redirect to a failure (access_denied) or an
//     *AuthorizationError
//   - Exchange the returned code, load the provider profile, and hand both
//     to an application verify callback
//
// Provider packages supply endpoints and hooks:
//
//	client, err := oauth.NewClient(&oauth.Config{
//	    ClientID:         "client-id",
//	    ClientSecret:     "client-secret",
//	    AuthorizationURL: "https://provider.example.com/oauth2/authorize",
//	    TokenURL:         "https://provider.example.com/oauth2/token",
//	    CallbackURL:      "/auth/provider/callback",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	auth, err := oauth.NewAuthenticator(client, oauth.Hooks[*Profile]{
//	    UserProfile: loadProfile,
//	    Verify:      verifyUser,
//	})
//
//	result := auth.Authenticate(r, nil)
//	switch result.Outcome {
//	case oauth.OutcomeRedirect:
//	    http.Redirect(w, r, result.Location, result.Status)
//	case oauth.OutcomeSuccess:
//	    // result.User is the verified application user
//	}
//
// # Errors
//
// Configuration problems are reported synchronously by NewClient and
// NewAuthenticator and wrap ErrInvalidConfiguration. Failures talking to the
// provider are returned as *InternalOAuthError; when the provider answered
// with an OAuth error document the parsed *TokenError is reachable through
// errors.As.
//
// # State
//
// Setting Config.StateSecret enables a signed, expiring state parameter
// (HS256 JWT) that is verified on the callback.
//
// # Tracing
//
// The callback leg is traced with OpenTelemetry spans (oauth.callback,
// oauth.exchange, oauth.user_profile) from Config.TracerProvider, which
// defaults to the global provider.
//
// # Thread Safety
//
// Client and Authenticator are immutable after construction and safe to
// share across goroutines.
package oauth
