package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type testProfile struct {
	ID string
}

type testUser struct {
	ID string
}

// newTokenServer returns a token endpoint that accepts "good-code" and
// rejects everything else with invalid_grant.
func newTokenServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		w.Header().Set("Content-Type", "application/json")
		if r.FormValue("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"invalid_grant","error_description":"Invalid authorization code"}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  "access-token",
			"refresh_token": "refresh-token",
			"token_type":    "Bearer",
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestAuthenticator(t *testing.T, config *Config, hooks Hooks[*testProfile]) *Authenticator[*testProfile] {
	t.Helper()
	auth, err := NewAuthenticator(newTestClient(t, config), hooks)
	if err != nil {
		t.Fatalf("NewAuthenticator() failed: %v", err)
	}
	return auth
}

func defaultHooks() Hooks[*testProfile] {
	return Hooks[*testProfile]{
		UserProfile: func(ctx context.Context, accessToken string) (*testProfile, error) {
			return &testProfile{ID: "user-" + accessToken}, nil
		},
		Verify: func(ctx context.Context, token *Token, profile *testProfile) (any, *Info, error) {
			return &testUser{ID: profile.ID}, nil, nil
		},
	}
}

func TestNewAuthenticator_Validation(t *testing.T) {
	client := newTestClient(t, validConfig())

	if _, err := NewAuthenticator[*testProfile](nil, defaultHooks()); !errors.Is(err, ErrInvalidConfiguration) {
		t.Errorf("Expected ErrInvalidConfiguration for nil client, got %v", err)
	}

	hooks := defaultHooks()
	hooks.Verify = nil
	if _, err := NewAuthenticator(client, hooks); !errors.Is(err, ErrInvalidConfiguration) {
		t.Errorf("Expected ErrInvalidConfiguration without verify, got %v", err)
	}

	hooks = defaultHooks()
	hooks.UserProfile = nil
	if _, err := NewAuthenticator(client, hooks); !errors.Is(err, ErrInvalidConfiguration) {
		t.Errorf("Expected ErrInvalidConfiguration without profile loader, got %v", err)
	}

	config := validConfig()
	config.SkipUserProfile = true
	if _, err := NewAuthenticator(newTestClient(t, config), hooks); err != nil {
		t.Errorf("Expected profile loader to be optional when skipped, got %v", err)
	}
}

func TestAuthenticate_Redirect(t *testing.T) {
	config := validConfig()
	config.ClientID = "ABC123"
	auth := newTestAuthenticator(t, config, defaultHooks())

	req := httptest.NewRequest(http.MethodGet, "/auth/provider", nil)
	result := auth.Authenticate(req, nil)

	if result.Outcome != OutcomeRedirect {
		t.Fatalf("Expected redirect, got %s (%v)", result.Outcome, result.Err)
	}

	want := "https://provider.example.com/oauth2/authorize?client_id=ABC123&response_type=code"
	if result.Location != want {
		t.Errorf("Expected %s, got %s", want, result.Location)
	}

	if result.Status != http.StatusFound {
		t.Errorf("Expected status 302, got %d", result.Status)
	}
}

func TestAuthenticate_RedirectWithOptions(t *testing.T) {
	config := validConfig()
	config.Scope = []string{"default"}
	config.ScopeSeparator = ","
	config.CallbackURL = "/auth/provider/callback"
	auth := newTestAuthenticator(t, config, defaultHooks())

	req := httptest.NewRequest(http.MethodGet, "http://app.example.com/auth/provider", nil)
	result := auth.Authenticate(req, &AuthenticateOptions{
		Scope: []string{"profile", "email"},
		State: "opaque",
	})

	u, err := url.Parse(result.Location)
	if err != nil {
		t.Fatalf("Failed to parse location: %v", err)
	}

	query := u.Query()
	if got := query.Get("redirect_uri"); got != "http://app.example.com/auth/provider/callback" {
		t.Errorf("Expected resolved redirect_uri, got %q", got)
	}
	if got := query.Get("scope"); got != "profile,email" {
		t.Errorf("Expected scope 'profile,email', got %q", got)
	}
	if got := query.Get("state"); got != "opaque" {
		t.Errorf("Expected state 'opaque', got %q", got)
	}
}

func TestAuthenticate_RedirectIssuesSignedState(t *testing.T) {
	config := validConfig()
	config.StateSecret = []byte("state-secret")
	auth := newTestAuthenticator(t, config, defaultHooks())

	req := httptest.NewRequest(http.MethodGet, "/auth/provider", nil)
	result := auth.Authenticate(req, &AuthenticateOptions{State: "ignored"})

	u, _ := url.Parse(result.Location)
	state := u.Query().Get("state")
	if state == "" || state == "ignored" {
		t.Fatalf("Expected issued state, got %q", state)
	}

	if err := auth.state.Verify(state); err != nil {
		t.Errorf("Issued state did not verify: %v", err)
	}
}

func TestAuthenticate_AccessDenied(t *testing.T) {
	auth := newTestAuthenticator(t, validConfig(), defaultHooks())

	query := url.Values{
		"error":             {"access_denied"},
		"error_code":        {"200"},
		"error_description": {"Permissions error"},
		"error_reason":      {"user_denied"},
	}
	req := httptest.NewRequest(http.MethodGet, "/auth/provider/callback?"+query.Encode(), nil)

	result := auth.Authenticate(req, nil)

	if result.Outcome != OutcomeFail {
		t.Fatalf("Expected fail, got %s", result.Outcome)
	}

	if result.Info == nil || result.Info.Message != "Permissions error" {
		t.Errorf("Expected info message 'Permissions error', got %+v", result.Info)
	}
}

func TestAuthenticate_AuthorizationError(t *testing.T) {
	auth := newTestAuthenticator(t, validConfig(), defaultHooks())

	query := url.Values{
		"error":             {"server_error"},
		"error_description": {"Something broke"},
		"error_uri":         {"https://provider.example.com/errors"},
	}
	req := httptest.NewRequest(http.MethodGet, "/cb?"+query.Encode(), nil)

	result := auth.Authenticate(req, nil)

	if result.Outcome != OutcomeError {
		t.Fatalf("Expected error, got %s", result.Outcome)
	}

	var authErr *AuthorizationError
	if !errors.As(result.Err, &authErr) {
		t.Fatalf("Expected *AuthorizationError, got %v", result.Err)
	}

	if authErr.Code != "server_error" || authErr.Description != "Something broke" || authErr.URI != "https://provider.example.com/errors" {
		t.Errorf("Unexpected authorization error: %+v", authErr)
	}
}

func TestAuthenticate_CallbackSuccess(t *testing.T) {
	server := newTokenServer(t)

	config := validConfig()
	config.TokenURL = server.URL + "/token"

	var gotToken *Token
	hooks := defaultHooks()
	hooks.Verify = func(ctx context.Context, token *Token, profile *testProfile) (any, *Info, error) {
		gotToken = token
		return &testUser{ID: profile.ID}, &Info{Message: "welcome"}, nil
	}
	auth := newTestAuthenticator(t, config, hooks)

	req := httptest.NewRequest(http.MethodGet, "/cb?code=good-code", nil)
	result := auth.Authenticate(req, nil)

	if result.Outcome != OutcomeSuccess {
		t.Fatalf("Expected success, got %s (%v)", result.Outcome, result.Err)
	}

	user, ok := result.User.(*testUser)
	if !ok || user.ID != "user-access-token" {
		t.Errorf("Unexpected user: %#v", result.User)
	}

	if gotToken == nil || gotToken.RefreshToken != "refresh-token" {
		t.Errorf("Expected verify to receive the exchanged token, got %+v", gotToken)
	}

	if result.Info == nil || result.Info.Message != "welcome" {
		t.Errorf("Expected success info to be passed through, got %+v", result.Info)
	}
}

func TestAuthenticate_InvalidCode(t *testing.T) {
	server := newTokenServer(t)

	config := validConfig()
	config.TokenURL = server.URL + "/token"
	auth := newTestAuthenticator(t, config, defaultHooks())

	req := httptest.NewRequest(http.MethodGet, "/cb?code=SplxlOBeZQQYbYS6WxSbIA%2BALT1", nil)
	result := auth.Authenticate(req, nil)

	if result.Outcome != OutcomeError {
		t.Fatalf("Expected error, got %s", result.Outcome)
	}

	var internal *InternalOAuthError
	if !errors.As(result.Err, &internal) {
		t.Fatalf("Expected *InternalOAuthError, got %T: %v", result.Err, result.Err)
	}

	if internal.Message != "Failed to obtain access token" {
		t.Errorf("Unexpected message %q", internal.Message)
	}

	var tokenErr *TokenError
	if !errors.As(result.Err, &tokenErr) || tokenErr.Code != "invalid_grant" {
		t.Errorf("Expected invalid_grant token error in cause, got %v", result.Err)
	}
}

func TestAuthenticate_ExpiredToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"stale","token_type":"Bearer","expires_in":-60}`))
	}))
	defer server.Close()

	config := validConfig()
	config.TokenURL = server.URL + "/token"

	hooks := defaultHooks()
	hooks.UserProfile = func(ctx context.Context, accessToken string) (*testProfile, error) {
		t.Error("Profile should not be loaded with an expired token")
		return nil, nil
	}
	auth := newTestAuthenticator(t, config, hooks)

	result := auth.Authenticate(httptest.NewRequest(http.MethodGet, "/cb?code=good-code", nil), nil)

	if result.Outcome != OutcomeError {
		t.Fatalf("Expected error, got %s", result.Outcome)
	}

	var internal *InternalOAuthError
	if !errors.As(result.Err, &internal) || internal.Message != "Failed to obtain access token" {
		t.Errorf("Expected InternalOAuthError, got %v", result.Err)
	}
	if !errors.Is(result.Err, ErrTokenExpired) {
		t.Errorf("Expected ErrTokenExpired in cause, got %v", result.Err)
	}
}

func TestAuthenticate_CustomErrorParser(t *testing.T) {
	server := newTokenServer(t)

	config := validConfig()
	config.TokenURL = server.URL + "/token"

	sentinel := errors.New("custom parse")
	hooks := defaultHooks()
	hooks.ParseErrorResponse = func(body []byte, status int) error { return sentinel }
	auth := newTestAuthenticator(t, config, hooks)

	result := auth.Authenticate(httptest.NewRequest(http.MethodGet, "/cb?code=bad", nil), nil)

	if !errors.Is(result.Err, sentinel) {
		t.Errorf("Expected custom parser result in cause, got %v", result.Err)
	}
}

func TestAuthenticate_InvalidState(t *testing.T) {
	config := validConfig()
	config.StateSecret = []byte("state-secret")

	hooks := defaultHooks()
	hooks.UserProfile = func(ctx context.Context, accessToken string) (*testProfile, error) {
		t.Error("Profile should not be loaded when state is invalid")
		return nil, nil
	}
	auth := newTestAuthenticator(t, config, hooks)

	req := httptest.NewRequest(http.MethodGet, "/cb?code=good-code&state=forged", nil)
	result := auth.Authenticate(req, nil)

	if result.Outcome != OutcomeFail {
		t.Fatalf("Expected fail, got %s", result.Outcome)
	}

	if result.Info == nil || result.Info.Message != "Invalid authorization request state." {
		t.Errorf("Unexpected info: %+v", result.Info)
	}
}

func TestAuthenticate_ValidStateRoundTrip(t *testing.T) {
	server := newTokenServer(t)

	config := validConfig()
	config.TokenURL = server.URL + "/token"
	config.StateSecret = []byte("state-secret")
	auth := newTestAuthenticator(t, config, defaultHooks())

	redirect := auth.Authenticate(httptest.NewRequest(http.MethodGet, "/login", nil), nil)
	u, _ := url.Parse(redirect.Location)
	state := u.Query().Get("state")

	callback := url.Values{"code": {"good-code"}, "state": {state}}
	result := auth.Authenticate(httptest.NewRequest(http.MethodGet, "/cb?"+callback.Encode(), nil), nil)

	if result.Outcome != OutcomeSuccess {
		t.Fatalf("Expected success, got %s (%v, %+v)", result.Outcome, result.Err, result.Info)
	}
}

func TestAuthenticate_ProfileError(t *testing.T) {
	server := newTokenServer(t)

	config := validConfig()
	config.TokenURL = server.URL + "/token"

	profileErr := errors.New("profile unavailable")
	hooks := defaultHooks()
	hooks.UserProfile = func(ctx context.Context, accessToken string) (*testProfile, error) {
		return nil, profileErr
	}
	auth := newTestAuthenticator(t, config, hooks)

	result := auth.Authenticate(httptest.NewRequest(http.MethodGet, "/cb?code=good-code", nil), nil)

	if result.Outcome != OutcomeError || !errors.Is(result.Err, profileErr) {
		t.Errorf("Expected profile error, got %s (%v)", result.Outcome, result.Err)
	}
}

func TestAuthenticate_VerifyOutcomes(t *testing.T) {
	server := newTokenServer(t)
	verifyErr := errors.New("database down")

	tests := []struct {
		name    string
		verify  func(ctx context.Context, token *Token, profile *testProfile) (any, *Info, error)
		outcome Outcome
	}{
		{
			name: "no user",
			verify: func(ctx context.Context, token *Token, profile *testProfile) (any, *Info, error) {
				return nil, &Info{Message: "unknown user"}, nil
			},
			outcome: OutcomeFail,
		},
		{
			name: "verify error",
			verify: func(ctx context.Context, token *Token, profile *testProfile) (any, *Info, error) {
				return nil, nil, verifyErr
			},
			outcome: OutcomeError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := validConfig()
			config.TokenURL = server.URL + "/token"
			hooks := defaultHooks()
			hooks.Verify = tt.verify
			auth := newTestAuthenticator(t, config, hooks)

			result := auth.Authenticate(httptest.NewRequest(http.MethodGet, "/cb?code=good-code", nil), nil)

			if result.Outcome != tt.outcome {
				t.Fatalf("Expected %s, got %s", tt.outcome, result.Outcome)
			}
			if tt.outcome == OutcomeFail && (result.Info == nil || result.Info.Message != "unknown user") {
				t.Errorf("Expected verify info, got %+v", result.Info)
			}
			if tt.outcome == OutcomeError && !errors.Is(result.Err, verifyErr) {
				t.Errorf("Expected verify error, got %v", result.Err)
			}
		})
	}
}

func TestAuthenticate_SkipUserProfile(t *testing.T) {
	server := newTokenServer(t)

	config := validConfig()
	config.TokenURL = server.URL + "/token"
	config.SkipUserProfile = true

	auth := newTestAuthenticator(t, config, Hooks[*testProfile]{
		Verify: func(ctx context.Context, token *Token, profile *testProfile) (any, *Info, error) {
			if profile != nil {
				t.Errorf("Expected nil profile, got %+v", profile)
			}
			return &testUser{ID: token.AccessToken}, nil, nil
		},
	})

	result := auth.Authenticate(httptest.NewRequest(http.MethodGet, "/cb?code=good-code", nil), nil)
	if result.Outcome != OutcomeSuccess {
		t.Fatalf("Expected success, got %s (%v)", result.Outcome, result.Err)
	}
}

func TestAuthenticate_CallbackSpans(t *testing.T) {
	server := newTokenServer(t)

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer provider.Shutdown(context.Background())

	config := validConfig()
	config.TokenURL = server.URL + "/token"
	config.TracerProvider = provider
	auth := newTestAuthenticator(t, config, defaultHooks())

	auth.Authenticate(httptest.NewRequest(http.MethodGet, "/cb?code=bad-code", nil), nil)

	spans := map[string]sdktrace.ReadOnlySpan{}
	for _, span := range recorder.Ended() {
		spans[span.Name()] = span
	}

	exchange, ok := spans["oauth.exchange"]
	if !ok {
		t.Fatalf("Expected oauth.exchange span, got %v", spans)
	}
	if exchange.Status().Code != codes.Error {
		t.Errorf("Expected exchange span status error, got %v", exchange.Status().Code)
	}

	callback, ok := spans["oauth.callback"]
	if !ok {
		t.Fatal("Expected oauth.callback span")
	}
	if exchange.Parent().SpanID() != callback.SpanContext().SpanID() {
		t.Error("Expected exchange span to be a child of the callback span")
	}

	var outcome string
	for _, attr := range callback.Attributes() {
		if attr.Key == "oauth.outcome" {
			outcome = attr.Value.AsString()
		}
	}
	if outcome != "error" {
		t.Errorf("Expected oauth.outcome 'error', got %q", outcome)
	}

	if _, ok := spans["oauth.user_profile"]; ok {
		t.Error("Did not expect a profile span after a failed exchange")
	}
}

func TestResolveCallbackURL(t *testing.T) {
	tests := []struct {
		name     string
		target   string
		tls      bool
		callback string
		want     string
	}{
		{"empty", "http://app.example.com/login", false, "", ""},
		{"absolute", "http://app.example.com/login", false, "https://other.example.com/cb", "https://other.example.com/cb"},
		{"root relative", "http://app.example.com/auth/login", false, "/auth/callback", "http://app.example.com/auth/callback"},
		{"path relative", "http://app.example.com/auth/login", false, "callback", "http://app.example.com/auth/callback"},
		{"tls", "https://app.example.com/login", true, "/cb", "https://app.example.com/cb"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if !tt.tls {
				req.TLS = nil
			}
			if got := resolveCallbackURL(req, tt.callback); got != tt.want {
				t.Errorf("resolveCallbackURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOutcome_String(t *testing.T) {
	tests := map[Outcome]string{
		OutcomeRedirect: "redirect",
		OutcomeFail:     "fail",
		OutcomeError:    "error",
		OutcomeSuccess:  "success",
		Outcome(42):     "outcome(42)",
	}

	for outcome, want := range tests {
		if got := outcome.String(); got != want {
			t.Errorf("Outcome(%d).String() = %q, want %q", int(outcome), got, want)
		}
	}
}
