// Package punwave authenticates users with Punwave using OAuth 2.0.
//
// The Strategy supplies Punwave's endpoints and profile normalization to the
// generic authorization code flow in package oauth:
//
//	strategy, err := punwave.New(&punwave.Options{
//	    ClientID:     "123-456-789",
//	    ClientSecret: "shhh-its-a-secret",
//	    CallbackURL:  "https://www.example.net/auth/punwave/callback",
//	}, func(ctx context.Context, accessToken, refreshToken string, profile *punwave.Profile) (any, *oauth.Info, error) {
//	    return users.FindOrCreate(ctx, profile.ID)
//	})
//
// Fetched profiles are normalized into Profile:
//
//   - Provider is always "punwave"
//   - DisplayName falls back to the nested profile.name of older accounts
//   - Emails is set only when Punwave returned an address
//   - Raw and JSON keep the original response for inspection
//
// Punwave delimits scopes with a comma.
package punwave
