package oauth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// StateStore issues and verifies the state parameter of the authorization
// code flow.
type StateStore interface {
	// Issue returns the state value to attach to an authorization request.
	// An empty string means no state is sent.
	Issue() (string, error)

	// Verify checks the state value returned on the callback.
	Verify(state string) error
}

// nullStateStore sends no state and accepts any callback.
type nullStateStore struct{}

func (nullStateStore) Issue() (string, error)   { return "", nil }
func (nullStateStore) Verify(state string) error { return nil }

// jwtStateStore issues HS256 signed, short lived state tokens so the
// callback can be verified without server side storage.
type jwtStateStore struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func newStateStore(config *Config) StateStore {
	if len(config.StateSecret) == 0 {
		return nullStateStore{}
	}
	return &jwtStateStore{
		secret: config.StateSecret,
		issuer: config.ClientID,
		ttl:    config.StateTTL,
		now:    time.Now,
	}
}

func (s *jwtStateStore) Issue() (string, error) {
	nonce, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate state nonce: %w", err)
	}

	now := s.now()
	claims := jwt.RegisteredClaims{
		ID:        nonce.String(),
		Issuer:    s.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *jwtStateStore) Verify(state string) error {
	if state == "" {
		return fmt.Errorf("%w: state is missing", ErrInvalidState)
	}

	_, err := jwt.ParseWithClaims(state, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidState, err)
	}

	return nil
}
