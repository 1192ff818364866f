// Package kopkar exposes the cooperative backend's endpoints as typed
// operations on top of the retrying request client.
package kopkar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/kopkar/kopkar-client/pkg/client"
	"github.com/kopkar/kopkar-client/pkg/session"
)

// Endpoints relative to the API base URL.
const (
	EndpointSignIn    = "auth/sign-in"
	EndpointVerify    = "auth/verify"
	EndpointProfile   = "user/my-profile"
	EndpointTotal     = "trx/total"
	EndpointHistories = "trx/histories"
	EndpointLoan      = "trx/loan"
	EndpointDeposit   = "trx/deposit"
)

// Requester is the part of client.Client the service needs.
type Requester interface {
	Do(ctx context.Context, endpoint string, opts client.RequestOptions) (*client.Result, error)
	PostJSON(ctx context.Context, endpoint string, v any) (*client.Result, error)
}

// Service performs member operations against the backend.
type Service struct {
	requester Requester
	session   *session.Session
	validate  *validator.Validate
	logger    zerolog.Logger
}

// NewService creates a service. sess must be the session the requester
// authenticates with.
func NewService(requester Requester, sess *session.Session) *Service {
	if requester == nil || sess == nil {
		panic("kopkar: requester and session are required")
	}
	return &Service{
		requester: requester,
		session:   sess,
		validate:  validator.New(),
		logger:    log.With().Str("component", "kopkar").Logger(),
	}
}

// Session returns the service's session.
func (s *Service) Session() *session.Session {
	return s.session
}

// SignIn exchanges credentials for a token and stores it. Surrounding
// whitespace is trimmed from both values.
func (s *Service) SignIn(ctx context.Context, username, password string) error {
	creds := credentials{
		Username: strings.TrimSpace(username),
		Password: strings.TrimSpace(password),
	}
	if err := s.validate.Struct(creds); err != nil {
		return fmt.Errorf("invalid credentials: %w", err)
	}

	result, err := s.requester.PostJSON(ctx, EndpointSignIn, creds)
	if err != nil {
		return err
	}
	if err := checkResult(result); err != nil {
		return err
	}

	var token string
	if found, err := result.Field("token", &token); err != nil || !found || token == "" {
		return ErrNoToken
	}
	if err := s.session.SignIn(ctx, token); err != nil {
		return err
	}

	var name string
	if found, _ := result.Field("name", &name); found && name != "" {
		if err := s.session.SetName(ctx, name); err != nil {
			return err
		}
	}

	s.logger.Info().Msg("Signed in")
	return nil
}

// SignOut forgets the stored token.
func (s *Service) SignOut(ctx context.Context) error {
	return s.session.SignOut(ctx)
}

// Verify asks the backend to validate and refresh the stored token.
// When the backend rejects it the session is signed out and
// ErrSessionExpired is returned. Timeouts and transport failures leave
// the session untouched.
func (s *Service) Verify(ctx context.Context) error {
	result, err := s.requester.Do(ctx, EndpointVerify, client.RequestOptions{Method: http.MethodPost})
	if err != nil {
		return err
	}
	if err := s.expireOnRejection(ctx, result); err != nil {
		return err
	}

	var token string
	if found, err := result.Field("token", &token); err == nil && found && token != "" {
		if err := s.session.SignIn(ctx, token); err != nil {
			return err
		}
		s.logger.Debug().Msg("Token refreshed")
	}
	return nil
}

// Profile returns the signed-in member and caches the member name.
// A rejected token signs the session out like Verify.
func (s *Service) Profile(ctx context.Context) (*Profile, error) {
	result, err := s.requester.Do(ctx, EndpointProfile, client.RequestOptions{Method: http.MethodPost})
	if err != nil {
		return nil, err
	}
	if err := s.expireOnRejection(ctx, result); err != nil {
		return nil, err
	}

	var profile Profile
	if _, err := result.Field("data", &profile); err != nil {
		return nil, err
	}
	if profile.Nama != "" {
		if err := s.session.SetName(ctx, profile.Nama); err != nil {
			return nil, err
		}
	}
	return &profile, nil
}

// expireOnRejection converts a non-OK result into an error, signing the
// session out when the backend itself rejected the request.
func (s *Service) expireOnRejection(ctx context.Context, result *client.Result) error {
	err := checkResult(result)
	if err == nil {
		return nil
	}
	if !result.FromServer() {
		return err
	}

	s.logger.Warn().
		Int("status_code", result.StatusCode).
		Msg("Token rejected, signing out")
	if signOutErr := s.session.SignOut(ctx); signOutErr != nil {
		return errors.Join(fmt.Errorf("%w: %w", ErrSessionExpired, err), signOutErr)
	}
	return fmt.Errorf("%w: %w", ErrSessionExpired, err)
}

// checkResult returns an *APIError for any result other than OK,
// including 2xx replies whose body carries no statusCode.
func checkResult(result *client.Result) error {
	if result.OK() {
		return nil
	}
	message := result.Message
	if message == "" {
		message = client.DefaultErrorMessage
	}
	code := result.StatusCode
	if code == 0 {
		// 2xx reply without a statusCode in the body
		code = result.HTTPStatus
	}
	return &APIError{
		StatusCode: code,
		Message:    message,
		Err:        result.Err,
	}
}
