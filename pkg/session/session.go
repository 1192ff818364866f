package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/rs/zerolog"
)

// ErrEmptyToken is returned by SignIn when the token is blank.
var ErrEmptyToken = errors.New("session: empty token")

// Session is the member's authentication context. It is passed
// explicitly to the request client instead of living in global state.
//
// Reads go straight to the store. Writes are serialized so a sign-out
// racing a token refresh leaves the store in one of the two outcomes.
type Session struct {
	store  Store
	logger zerolog.Logger

	mu sync.Mutex
}

// New creates a session over store.
func New(store Store, logger zerolog.Logger) *Session {
	if store == nil {
		panic("session store cannot be nil")
	}
	return &Session{
		store:  store,
		logger: logger.With().Str("component", "session").Logger(),
	}
}

// Token returns the stored bearer token or ErrNotFound.
func (s *Session) Token(ctx context.Context) (string, error) {
	return s.store.Get(ctx, KeyToken)
}

// IsSignedIn reports whether a token is present. The token is not
// checked for expiry; only the server decides whether it is valid.
func (s *Session) IsSignedIn(ctx context.Context) (bool, error) {
	_, err := s.Token(ctx)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("read token: %w", err)
	}
}

// AuthHeaders returns a copy of base. When signed in, the copy carries
// "Authorization: Bearer <token>", replacing any value base had.
// base itself is never modified.
func (s *Session) AuthHeaders(ctx context.Context, base http.Header) (http.Header, error) {
	headers := base.Clone()
	if headers == nil {
		headers = make(http.Header)
	}

	token, err := s.Token(ctx)
	if errors.Is(err, ErrNotFound) {
		return headers, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read token: %w", err)
	}

	headers.Set("Authorization", "Bearer "+token)
	return headers, nil
}

// SignIn stores token, replacing any previous one.
func (s *Session) SignIn(ctx context.Context, token string) error {
	if token == "" {
		return ErrEmptyToken
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Set(ctx, KeyToken, token); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	s.logger.Debug().Msg("Token stored")
	return nil
}

// SignOut removes the token and the cached member name.
func (s *Session) SignOut(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Remove(ctx, KeyToken); err != nil {
		return fmt.Errorf("remove token: %w", err)
	}
	if err := s.store.Remove(ctx, KeyName); err != nil {
		return fmt.Errorf("remove name: %w", err)
	}
	s.logger.Info().Msg("Signed out")
	return nil
}

// SetName caches the member's display name.
func (s *Session) SetName(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Set(ctx, KeyName, name); err != nil {
		return fmt.Errorf("store name: %w", err)
	}
	return nil
}

// Name returns the cached member name or ErrNotFound.
func (s *Session) Name(ctx context.Context) (string, error) {
	return s.store.Get(ctx, KeyName)
}
