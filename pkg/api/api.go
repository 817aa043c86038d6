package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jeremyhahn/go-punwave/pkg/oauth"
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultMetricsNamespace prefixes the service metrics.
const DefaultMetricsNamespace = "punwave"

// Strategy is a login strategy that can be mounted on a Service.
type Strategy interface {
	Name() string
	Authenticate(r *http.Request, opts *oauth.AuthenticateOptions) *oauth.Result
}

// Config contains the strategies the service dispatches to.
type Config struct {
	Strategies []Strategy

	// Logger receives outcome logs. Defaults to slog.Default().
	Logger *slog.Logger

	// Registerer receives the outcome metrics. Metrics are still collected
	// but not exported when nil.
	Registerer prometheus.Registerer

	// MetricsNamespace defaults to DefaultMetricsNamespace.
	MetricsNamespace string
}

// Service dispatches authentication requests to named strategies.
type Service struct {
	strategies map[string]Strategy
	logger     *slog.Logger
	metrics    *metrics
}

var (
	// ErrNoStrategies indicates the service was initialised without any strategies.
	ErrNoStrategies = errors.New("api: no authentication strategies configured")
	// ErrStrategyNotFound indicates a requested strategy name does not exist.
	ErrStrategyNotFound = errors.New("api: requested strategy not configured")
)

// NewService builds a Service from the supplied configuration.
func NewService(cfg Config) (*Service, error) {
	if len(cfg.Strategies) == 0 {
		return nil, ErrNoStrategies
	}

	strategies := make(map[string]Strategy, len(cfg.Strategies))
	for i, s := range cfg.Strategies {
		if s == nil {
			return nil, fmt.Errorf("api: strategy at index %d is nil", i)
		}
		if _, ok := strategies[s.Name()]; ok {
			return nil, fmt.Errorf("api: duplicate strategy name %q", s.Name())
		}
		strategies[s.Name()] = s
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	namespace := cfg.MetricsNamespace
	if namespace == "" {
		namespace = DefaultMetricsNamespace
	}

	return &Service{
		strategies: strategies,
		logger:     logger,
		metrics:    newMetrics(cfg.Registerer, namespace),
	}, nil
}

// Authenticate runs the named strategy against r.
func (s *Service) Authenticate(name string, r *http.Request, opts *oauth.AuthenticateOptions) (*oauth.Result, error) {
	if s == nil || len(s.strategies) == 0 {
		return nil, ErrNoStrategies
	}

	strategy, ok := s.strategies[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrStrategyNotFound, name)
	}

	if err := r.Context().Err(); err != nil {
		return nil, err
	}

	started := time.Now()
	result := strategy.Authenticate(r, opts)
	if result == nil {
		return nil, fmt.Errorf("api: strategy %q returned no result", name)
	}
	s.metrics.observe(name, result.Outcome.String(), started)

	return result, nil
}

// Callbacks receive the terminal outcomes rendered by Handler.
type Callbacks struct {
	// OnSuccess is called with the verified user. Required.
	OnSuccess func(w http.ResponseWriter, r *http.Request, result *oauth.Result)

	// OnFailure renders a non-fatal failure. Defaults to 401 with the info message.
	OnFailure func(w http.ResponseWriter, r *http.Request, info *oauth.Info)

	// OnError renders an internal error. Defaults to 500.
	OnError func(w http.ResponseWriter, r *http.Request, err error)
}

// Handler returns an http.Handler that runs the named strategy and renders
// its outcome. Mount it on both the login and the callback route.
func (s *Service) Handler(name string, opts *oauth.AuthenticateOptions, cb Callbacks) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		result, err := s.Authenticate(name, r, opts)
		if err != nil {
			s.logError(r, name, err)
			s.renderError(w, r, cb, err)
			return
		}

		switch result.Outcome {
		case oauth.OutcomeRedirect:
			http.Redirect(w, r, result.Location, result.Status)
		case oauth.OutcomeFail:
			s.logger.InfoContext(r.Context(), "authentication failed", "strategy", name, "message", infoMessage(result.Info))
			if cb.OnFailure != nil {
				cb.OnFailure(w, r, result.Info)
				return
			}
			http.Error(w, failureMessage(result.Info), http.StatusUnauthorized)
		case oauth.OutcomeSuccess:
			s.logger.InfoContext(r.Context(), "authentication succeeded", "strategy", name)
			if cb.OnSuccess == nil {
				s.renderError(w, r, cb, errors.New("api: no success callback configured"))
				return
			}
			cb.OnSuccess(w, r, result)
		default:
			s.logError(r, name, result.Err)
			s.renderError(w, r, cb, result.Err)
		}
	})
}

func (s *Service) renderError(w http.ResponseWriter, r *http.Request, cb Callbacks, err error) {
	if cb.OnError != nil {
		cb.OnError(w, r, err)
		return
	}
	status := http.StatusInternalServerError
	if errors.Is(err, ErrStrategyNotFound) {
		status = http.StatusNotFound
	}
	http.Error(w, http.StatusText(status), status)
}

func (s *Service) logError(r *http.Request, name string, err error) {
	attrs := []any{"strategy", name, "error", err}

	var internal *oauth.InternalOAuthError
	var tokenErr *oauth.TokenError
	switch {
	case errors.As(err, &tokenErr):
		attrs = append(attrs, "kind", "provider", "oauth_error", tokenErr.Code)
	case errors.As(err, &internal):
		attrs = append(attrs, "kind", "provider")
	case errors.Is(err, oauth.ErrProfileParse):
		attrs = append(attrs, "kind", "profile_parse")
	}

	s.logger.ErrorContext(r.Context(), "authentication error", attrs...)
}

func infoMessage(info *oauth.Info) string {
	if info == nil {
		return ""
	}
	return info.Message
}

func failureMessage(info *oauth.Info) string {
	if msg := infoMessage(info); msg != "" {
		return msg
	}
	return http.StatusText(http.StatusUnauthorized)
}
