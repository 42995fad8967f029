package application_test

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/ericfisherdev/runpanel/internal/domain/model"
	"github.com/ericfisherdev/runpanel/internal/domain/port/driven"
)

// --- Mock implementations ---

type mockCodec struct {
	identities map[string]string // credential -> identity
}

func (m *mockCodec) Issue(identity string) (string, error) {
	return "cred-" + identity, nil
}

func (m *mockCodec) Verify(credential string) (string, error) {
	identity, ok := m.identities[credential]
	if !ok {
		return "", driven.ErrInvalidCredential
	}
	return identity, nil
}

type mockSessionStore struct {
	mu       sync.Mutex
	sessions map[string]model.Session
	puts     []model.Session
	deletes  []string
	getErr   error
}

func newMockSessionStore(sessions ...model.Session) *mockSessionStore {
	m := &mockSessionStore{sessions: map[string]model.Session{}}
	for _, s := range sessions {
		m.sessions[s.Identity] = s
	}
	return m
}

func (m *mockSessionStore) Get(_ context.Context, identity string) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	s, ok := m.sessions[identity]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *mockSessionStore) Put(_ context.Context, session model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.Identity] = session
	m.puts = append(m.puts, session)
	return nil
}

func (m *mockSessionStore) Delete(_ context.Context, identity string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, identity)
	m.deletes = append(m.deletes, identity)
	return nil
}

type mockExchanger struct {
	codeToken     model.UpstreamToken
	codeErr       error
	refreshToken  model.UpstreamToken
	refreshErr    error
	codes         []string
	refreshTokens []string
}

func (m *mockExchanger) ExchangeCode(_ context.Context, code string) (model.UpstreamToken, error) {
	m.codes = append(m.codes, code)
	return m.codeToken, m.codeErr
}

func (m *mockExchanger) ExchangeRefreshToken(_ context.Context, refreshToken string) (model.UpstreamToken, error) {
	m.refreshTokens = append(m.refreshTokens, refreshToken)
	return m.refreshToken, m.refreshErr
}

func (m *mockExchanger) AuthCodeURL(callbackURL string) string {
	return "https://github.com/login/oauth/authorize?redirect_uri=" + callbackURL
}

// repoFixture describes one repository served by mockGitHubClient.
type repoFixture struct {
	repo      model.Repository
	workflows []model.Workflow
	runs      map[int64][]model.WorkflowRun // runs inside the history window
	latest    map[int64]*model.WorkflowRun  // fallback single run
}

type mockGitHubClient struct {
	login       string
	loginErr    error
	repos       []repoFixture
	reposErr    error
	workflowErr map[string]error // keyed by repo name
	jitter      bool

	mu             sync.Mutex
	createdAfter   []time.Time
	latestRequests []int64
}

func (m *mockGitHubClient) delay(ctx context.Context) error {
	if !m.jitter {
		return ctx.Err()
	}
	select {
	case <-time.After(time.Duration(rand.IntN(5)) * time.Millisecond):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *mockGitHubClient) fixture(owner, repo string) (repoFixture, error) {
	for _, f := range m.repos {
		if f.repo.Owner == owner && f.repo.Name == repo {
			return f, nil
		}
	}
	return repoFixture{}, errors.New("unknown repository " + owner + "/" + repo)
}

func (m *mockGitHubClient) FetchViewerLogin(_ context.Context) (string, error) {
	return m.login, m.loginErr
}

func (m *mockGitHubClient) FetchRepositories(_ context.Context) ([]model.Repository, error) {
	if m.reposErr != nil {
		return nil, m.reposErr
	}
	repos := make([]model.Repository, 0, len(m.repos))
	for _, f := range m.repos {
		repos = append(repos, f.repo)
	}
	return repos, nil
}

func (m *mockGitHubClient) FetchWorkflows(ctx context.Context, owner, repo string) ([]model.Workflow, error) {
	if err := m.delay(ctx); err != nil {
		return nil, err
	}
	if err := m.workflowErr[repo]; err != nil {
		return nil, err
	}
	f, err := m.fixture(owner, repo)
	if err != nil {
		return nil, err
	}
	return f.workflows, nil
}

func (m *mockGitHubClient) FetchWorkflowRuns(ctx context.Context, owner, repo string, workflowID int64, createdAfter time.Time) ([]model.WorkflowRun, error) {
	if err := m.delay(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.createdAfter = append(m.createdAfter, createdAfter)
	m.mu.Unlock()

	f, err := m.fixture(owner, repo)
	if err != nil {
		return nil, err
	}
	return f.runs[workflowID], nil
}

func (m *mockGitHubClient) FetchLatestWorkflowRun(ctx context.Context, owner, repo string, workflowID int64) (*model.WorkflowRun, error) {
	if err := m.delay(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.latestRequests = append(m.latestRequests, workflowID)
	m.mu.Unlock()

	f, err := m.fixture(owner, repo)
	if err != nil {
		return nil, err
	}
	return f.latest[workflowID], nil
}

type mockClientFactory struct {
	client *mockGitHubClient
	tokens []model.UpstreamToken
	mu     sync.Mutex
}

func (m *mockClientFactory) ForToken(token model.UpstreamToken) (driven.GitHubClient, error) {
	m.mu.Lock()
	m.tokens = append(m.tokens, token)
	m.mu.Unlock()
	return m.client, nil
}
