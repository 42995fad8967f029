// Package application contains use-case orchestration services.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ericfisherdev/runpanel/internal/domain/model"
	"github.com/ericfisherdev/runpanel/internal/domain/port/driven"
)

var (
	// ErrSessionNotFound is returned when a valid credential names a user with no stored session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrInvalidOAuthGrant is returned when a code exchange does not yield a usable identity.
	ErrInvalidOAuthGrant = errors.New("oauth grant did not yield an identity")
)

// RefreshHorizon is how far ahead of access token expiry a resumed session
// refreshes its upstream token.
const RefreshHorizon = time.Hour

// SessionService resolves a browser session from either an OAuth authorization
// code or a previously issued credential, refreshing the upstream token when it
// is close to expiry.
type SessionService struct {
	codec     driven.CredentialCodec
	store     driven.SessionStore
	exchanger driven.TokenExchanger
	github    driven.GitHubClientFactory
	now       func() time.Time
}

// NewSessionService creates a SessionService. now may be nil, in which case
// time.Now is used.
func NewSessionService(
	codec driven.CredentialCodec,
	store driven.SessionStore,
	exchanger driven.TokenExchanger,
	github driven.GitHubClientFactory,
	now func() time.Time,
) *SessionService {
	if now == nil {
		now = time.Now
	}
	return &SessionService{
		codec:     codec,
		store:     store,
		exchanger: exchanger,
		github:    github,
		now:       now,
	}
}

// Login exchanges an authorization code, resolves the viewer's login with the
// new token, and stores the resulting session.
func (s *SessionService) Login(ctx context.Context, code string) (session *model.Session, err error) {
	defer func() { metricLogins.WithLabelValues(outcome(err)).Inc() }()

	token, err := s.exchanger.ExchangeCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	client, err := s.github.ForToken(token)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	login, err := client.FetchViewerLogin(ctx)
	if err != nil {
		return nil, fmt.Errorf("login: %w: %w", driven.ErrUpstreamAPI, err)
	}
	if login == "" {
		return nil, ErrInvalidOAuthGrant
	}

	session = &model.Session{Identity: login, Token: token}
	if err := s.store.Put(ctx, *session); err != nil {
		return nil, fmt.Errorf("login: storing session for %q: %w", login, err)
	}

	slog.Info("user logged in", "user", login, "expires_at", token.AccessTokenExpiresAt)
	return session, nil
}

// Resume verifies a credential and returns the stored session. When the access
// token expires within RefreshHorizon it is refreshed first and the whole token
// bundle is replaced in the store.
func (s *SessionService) Resume(ctx context.Context, credential string) (*model.Session, error) {
	identity, err := s.codec.Verify(credential)
	if err != nil {
		return nil, err
	}

	session, err := s.store.Get(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("loading session for %q: %w", identity, err)
	}
	if session == nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, identity)
	}

	if !session.Token.ExpiresWithin(s.now(), RefreshHorizon) {
		return session, nil
	}

	token, err := s.exchanger.ExchangeRefreshToken(ctx, session.Token.RefreshToken)
	metricSessionRefreshes.WithLabelValues(outcome(err)).Inc()
	if err != nil {
		return nil, fmt.Errorf("refreshing session for %q: %w", identity, err)
	}

	session.Token = token
	if err := s.store.Put(ctx, *session); err != nil {
		return nil, fmt.Errorf("storing refreshed session for %q: %w", identity, err)
	}

	slog.Info("upstream token refreshed", "user", identity, "expires_at", token.AccessTokenExpiresAt)
	return session, nil
}

// IssueCredential signs a new credential for identity.
func (s *SessionService) IssueCredential(identity string) (string, error) {
	return s.codec.Issue(identity)
}

// AuthorizeURL returns the provider URL that starts an OAuth login and
// redirects back to callbackURL.
func (s *SessionService) AuthorizeURL(callbackURL string) string {
	return s.exchanger.AuthCodeURL(callbackURL)
}

// Logout verifies a credential and deletes its stored session. The GitHub
// token itself is not revoked.
func (s *SessionService) Logout(ctx context.Context, credential string) error {
	identity, err := s.codec.Verify(credential)
	if err != nil {
		return err
	}

	if err := s.store.Delete(ctx, identity); err != nil {
		return fmt.Errorf("deleting session for %q: %w", identity, err)
	}

	slog.Info("user logged out", "user", identity)
	return nil
}
