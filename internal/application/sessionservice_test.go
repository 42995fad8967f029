package application_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/runpanel/internal/application"
	"github.com/ericfisherdev/runpanel/internal/domain/model"
	"github.com/ericfisherdev/runpanel/internal/domain/port/driven"
)

var fixedNow = time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func storedSession(expiresAt time.Time) model.Session {
	return model.Session{
		Identity: "alice",
		Token: model.UpstreamToken{
			AccessToken:           "T1",
			AccessTokenExpiresAt:  expiresAt,
			RefreshToken:          "R1",
			RefreshTokenExpiresAt: fixedNow.Add(180 * 24 * time.Hour),
			TokenType:             "bearer",
		},
	}
}

func newSessionService(store *mockSessionStore, exchanger *mockExchanger, client *mockGitHubClient) *application.SessionService {
	codec := &mockCodec{identities: map[string]string{"cred-alice": "alice", "cred-ghost": "ghost"}}
	return application.NewSessionService(codec, store, exchanger, &mockClientFactory{client: client}, clock)
}

func TestLogin_StoresSession(t *testing.T) {
	token := model.UpstreamToken{AccessToken: "T1", AccessTokenExpiresAt: fixedNow.Add(time.Hour), RefreshToken: "R1", TokenType: "bearer"}
	store := newMockSessionStore()
	exchanger := &mockExchanger{codeToken: token}
	factory := &mockClientFactory{client: &mockGitHubClient{login: "alice"}}
	svc := application.NewSessionService(&mockCodec{}, store, exchanger, factory, clock)

	session, err := svc.Login(context.Background(), "abc123")
	require.NoError(t, err)

	assert.Equal(t, "alice", session.Identity)
	assert.Equal(t, token, session.Token)
	assert.Equal(t, []string{"abc123"}, exchanger.codes)
	require.Len(t, factory.tokens, 1)
	assert.Equal(t, "T1", factory.tokens[0].AccessToken, "viewer lookup must use the new token")

	require.Len(t, store.puts, 1)
	assert.Equal(t, *session, store.puts[0])
}

func TestLogin_ExchangeRejected(t *testing.T) {
	store := newMockSessionStore()
	exchanger := &mockExchanger{codeErr: driven.ErrUpstreamAuth}
	svc := newSessionService(store, exchanger, &mockGitHubClient{login: "alice"})

	_, err := svc.Login(context.Background(), "expired")
	require.ErrorIs(t, err, driven.ErrUpstreamAuth)
	assert.Empty(t, store.puts)
}

func TestLogin_EmptyViewerLogin(t *testing.T) {
	store := newMockSessionStore()
	exchanger := &mockExchanger{codeToken: model.UpstreamToken{AccessToken: "T1"}}
	svc := newSessionService(store, exchanger, &mockGitHubClient{login: ""})

	_, err := svc.Login(context.Background(), "abc123")
	require.ErrorIs(t, err, application.ErrInvalidOAuthGrant)
	assert.Empty(t, store.puts)
}

func TestLogin_ViewerLookupFails(t *testing.T) {
	store := newMockSessionStore()
	exchanger := &mockExchanger{codeToken: model.UpstreamToken{AccessToken: "T1"}}
	svc := newSessionService(store, exchanger, &mockGitHubClient{loginErr: errors.New("boom")})

	_, err := svc.Login(context.Background(), "abc123")
	require.ErrorIs(t, err, driven.ErrUpstreamAPI)
	assert.Empty(t, store.puts)
}

func TestResume_NoRefreshBeyondHorizon(t *testing.T) {
	tests := []struct {
		name      string
		expiresAt time.Time
	}{
		{name: "two hours left", expiresAt: fixedNow.Add(2 * time.Hour)},
		{name: "exactly one hour left", expiresAt: fixedNow.Add(time.Hour)},
		{name: "non-expiring token", expiresAt: time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stored := storedSession(tt.expiresAt)
			store := newMockSessionStore(stored)
			exchanger := &mockExchanger{}
			svc := newSessionService(store, exchanger, &mockGitHubClient{})

			session, err := svc.Resume(context.Background(), "cred-alice")
			require.NoError(t, err)

			assert.Equal(t, stored, *session)
			assert.Empty(t, exchanger.refreshTokens, "no refresh expected")
			assert.Empty(t, store.puts, "store must not be written")
		})
	}
}

func TestResume_RefreshWithinHorizon(t *testing.T) {
	stored := storedSession(fixedNow.Add(30 * time.Minute))
	refreshed := model.UpstreamToken{
		AccessToken:           "T2",
		AccessTokenExpiresAt:  fixedNow.Add(8 * time.Hour),
		RefreshToken:          "R2",
		RefreshTokenExpiresAt: fixedNow.Add(183 * 24 * time.Hour),
		TokenType:             "bearer",
	}
	store := newMockSessionStore(stored)
	exchanger := &mockExchanger{refreshToken: refreshed}
	svc := newSessionService(store, exchanger, &mockGitHubClient{})

	session, err := svc.Resume(context.Background(), "cred-alice")
	require.NoError(t, err)

	assert.Equal(t, []string{"R1"}, exchanger.refreshTokens, "exactly one refresh with the stored refresh token")
	assert.Equal(t, "alice", session.Identity)
	assert.Equal(t, refreshed, session.Token)

	require.Len(t, store.puts, 1)
	assert.Equal(t, model.Session{Identity: "alice", Token: refreshed}, store.puts[0])
}

func TestResume_RefreshAlreadyExpired(t *testing.T) {
	store := newMockSessionStore(storedSession(fixedNow.Add(-time.Minute)))
	exchanger := &mockExchanger{refreshToken: model.UpstreamToken{AccessToken: "T2", AccessTokenExpiresAt: fixedNow.Add(8 * time.Hour)}}
	svc := newSessionService(store, exchanger, &mockGitHubClient{})

	session, err := svc.Resume(context.Background(), "cred-alice")
	require.NoError(t, err)
	assert.Equal(t, "T2", session.Token.AccessToken)
	assert.Len(t, exchanger.refreshTokens, 1)
}

func TestResume_RefreshRejected(t *testing.T) {
	stored := storedSession(fixedNow.Add(10 * time.Minute))
	store := newMockSessionStore(stored)
	exchanger := &mockExchanger{refreshErr: driven.ErrUpstreamAuth}
	svc := newSessionService(store, exchanger, &mockGitHubClient{})

	_, err := svc.Resume(context.Background(), "cred-alice")
	require.ErrorIs(t, err, driven.ErrUpstreamAuth)
	assert.Empty(t, store.puts)
}

func TestResume_InvalidCredential(t *testing.T) {
	svc := newSessionService(newMockSessionStore(), &mockExchanger{}, &mockGitHubClient{})

	_, err := svc.Resume(context.Background(), "forged")
	require.ErrorIs(t, err, driven.ErrInvalidCredential)
}

func TestResume_SessionNotFound(t *testing.T) {
	svc := newSessionService(newMockSessionStore(storedSession(fixedNow.Add(2*time.Hour))), &mockExchanger{}, &mockGitHubClient{})

	_, err := svc.Resume(context.Background(), "cred-ghost")
	require.ErrorIs(t, err, application.ErrSessionNotFound)
}

func TestResume_StoreError(t *testing.T) {
	store := newMockSessionStore()
	store.getErr = errors.New("disk on fire")
	svc := newSessionService(store, &mockExchanger{}, &mockGitHubClient{})

	_, err := svc.Resume(context.Background(), "cred-alice")
	require.Error(t, err)
	assert.NotErrorIs(t, err, application.ErrSessionNotFound)
	assert.NotErrorIs(t, err, driven.ErrInvalidCredential)
}

func TestLogout_DeletesSession(t *testing.T) {
	store := newMockSessionStore(storedSession(fixedNow.Add(2 * time.Hour)))
	svc := newSessionService(store, &mockExchanger{}, &mockGitHubClient{})

	require.NoError(t, svc.Logout(context.Background(), "cred-alice"))
	assert.Equal(t, []string{"alice"}, store.deletes)

	_, err := svc.Resume(context.Background(), "cred-alice")
	require.ErrorIs(t, err, application.ErrSessionNotFound)
}

func TestLogout_InvalidCredential(t *testing.T) {
	store := newMockSessionStore()
	svc := newSessionService(store, &mockExchanger{}, &mockGitHubClient{})

	require.ErrorIs(t, svc.Logout(context.Background(), "forged"), driven.ErrInvalidCredential)
	assert.Empty(t, store.deletes)
}

func TestIssueCredentialAndAuthorizeURL(t *testing.T) {
	svc := newSessionService(newMockSessionStore(), &mockExchanger{}, &mockGitHubClient{})

	cred, err := svc.IssueCredential("alice")
	require.NoError(t, err)
	assert.Equal(t, "cred-alice", cred)

	assert.Contains(t, svc.AuthorizeURL("https://panel.example.com/api/login"), "redirect_uri=https://panel.example.com/api/login")
}
