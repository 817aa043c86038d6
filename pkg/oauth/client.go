package oauth

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// maxBodySize caps how much of a provider response is read into memory.
const maxBodySize = 1 << 20

// Client is a generic OAuth 2.0 authorization code client. Provider
// strategies configure it with their endpoints and call Get to reach
// protected resources. It is immutable after construction and safe for
// concurrent use.
type Client struct {
	config     *Config
	oauthCfg   *oauth2.Config
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient validates config and returns a Client.
func NewClient(config *Config) (*Client, error) {
	if config == nil {
		return nil, fmt.Errorf("%w: config is nil", ErrInvalidConfiguration)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = newDefaultHTTPClient(config.Timeout, config.TLSConfig, config.InsecureSkipVerify)
	}

	// Scopes are left empty here; AuthCodeURL joins them with the
	// configured separator instead of x/oauth2's fixed space.
	oauthCfg := &oauth2.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:  config.AuthorizationURL,
			TokenURL: config.TokenURL,
			// Client credentials travel in the form body.
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}

	return &Client{
		config:     config,
		oauthCfg:   oauthCfg,
		httpClient: httpClient,
		logger:     config.Logger,
	}, nil
}

// ClientID returns the configured client identifier.
func (c *Client) ClientID() string {
	return c.config.ClientID
}

// Get fetches a protected resource using accessToken as a Bearer
// credential. A non-2xx response is returned as *HTTPError together with
// the response body.
func (c *Client) Get(ctx context.Context, rawURL, accessToken string) ([]byte, *http.Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	if strings.TrimSpace(accessToken) == "" {
		return nil, nil, ErrMissingToken
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		return nil, resp, fmt.Errorf("failed to read response: %w", err)
	}
	if len(body) > maxBodySize {
		return nil, resp, fmt.Errorf("%w: exceeds %d bytes", ErrResponseTooLarge, maxBodySize)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return body, resp, &HTTPError{StatusCode: resp.StatusCode, Body: body}
	}

	return body, resp, nil
}

// ParseErrorResponse interprets body as an OAuth 2.0 error document.
// It returns a *TokenError when body carries an "error" member and nil
// otherwise, letting the caller fall back to a generic error.
func (c *Client) ParseErrorResponse(body []byte, status int) error {
	var doc struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
		ErrorURI         string `json:"error_uri"`
	}

	if err := json.Unmarshal(body, &doc); err != nil || doc.Error == "" {
		return nil
	}

	return &TokenError{
		Code:        doc.Error,
		Description: doc.ErrorDescription,
		URI:         doc.ErrorURI,
		Status:      status,
	}
}

// newDefaultHTTPClient creates an HTTP client tuned for provider calls.
func newDefaultHTTPClient(timeout time.Duration, tlsConfig *tls.Config, insecureSkipVerify bool) *http.Client {
	customTLS := tlsConfig
	if customTLS == nil {
		customTLS = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	} else {
		// Clone to avoid modifying the original
		customTLS = tlsConfig.Clone()
	}

	if insecureSkipVerify {
		customTLS.InsecureSkipVerify = true
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSClientConfig:       customTLS,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: timeout,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: &retryTransport{base: transport},
	}
}

// retryTransport wraps an http.RoundTripper with retry logic for transient
// failures. Only GET and HEAD are retried; a token request carries a
// single-use authorization code and is sent once.
type retryTransport struct {
	base http.RoundTripper
}

// RoundTrip implements http.RoundTripper with retry logic.
func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	const maxRetries = 3
	const initialBackoff = 100 * time.Millisecond

	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		return t.base.RoundTrip(req)
	}

	backoff := initialBackoff
	for attempt := 0; ; attempt++ {
		resp, err := t.base.RoundTrip(req)

		// Stop unless the failure is transient and attempts remain
		if attempt == maxRetries-1 || (err == nil && !shouldRetry(resp)) {
			return resp, err
		}

		if resp != nil {
			resp.Body.Close()
		}

		select {
		case <-req.Context().Done():
			return nil, req.Context().Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

// shouldRetry determines if an HTTP response indicates a transient failure.
func shouldRetry(resp *http.Response) bool {
	if resp == nil {
		return true
	}

	// Retry on server errors (5xx) and rate limiting (429)
	return resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
}
