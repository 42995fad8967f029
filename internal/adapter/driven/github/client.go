// Package github implements the GitHubClient port using the go-github library.
package github

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"

	"github.com/ericfisherdev/runpanel/internal/domain/model"
	"github.com/ericfisherdev/runpanel/internal/domain/port/driven"
)

// Compile-time interface satisfaction checks.
var (
	_ driven.GitHubClient        = (*Client)(nil)
	_ driven.GitHubClientFactory = (*ClientFactory)(nil)
)

// webBaseURL is the origin of the GitHub web UI used to build workflow links.
const webBaseURL = "https://github.com"

// Client implements the driven.GitHubClient port for a single user token.
type Client struct {
	gh            *gh.Client
	authorization string       // Authorization header value for GraphQL requests.
	graphqlURL    string       // "https://api.github.com/graphql" in production; derived from baseURL in tests.
	graphqlClient *http.Client // graphqlHTTPClient in production.
}

// NewClient creates a new GitHub API client with the following transport stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  3. go-github (GitHub REST API client authenticated with the user token)
func NewClient(token model.UpstreamToken) *Client {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimitClient := github_ratelimit.NewClient(cacheTransport)
	client := gh.NewClient(rateLimitClient).WithAuthToken(token.AccessToken)

	return &Client{
		gh:            client,
		authorization: authorizationHeader(token),
		graphqlURL:    "https://api.github.com/graphql",
		graphqlClient: graphqlHTTPClient,
	}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base URL.
// This constructor is intended for testing, allowing injection of an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string, token model.UpstreamToken) (*Client, error) {
	client := gh.NewClient(httpClient).WithAuthToken(token.AccessToken)

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	client.BaseURL = u

	// Derive graphqlURL from baseURL so httptest servers can intercept GraphQL requests.
	graphqlU := *u
	graphqlU.Path = "/graphql"

	return &Client{
		gh:            client,
		authorization: authorizationHeader(token),
		graphqlURL:    graphqlU.String(),
		graphqlClient: httpClient,
	}, nil
}

// ClientFactory builds a Client per upstream token. Each Client gets its own
// cache transport so cached responses never cross users.
type ClientFactory struct {
	httpClient *http.Client // nil selects the production transport stack.
	baseURL    string
}

// NewClientFactory creates a ClientFactory for api.github.com.
func NewClientFactory() *ClientFactory {
	return &ClientFactory{}
}

// NewClientFactoryWithHTTPClient creates a ClientFactory whose clients talk to
// baseURL through httpClient. This constructor is intended for testing.
func NewClientFactoryWithHTTPClient(httpClient *http.Client, baseURL string) *ClientFactory {
	return &ClientFactory{httpClient: httpClient, baseURL: baseURL}
}

// ForToken returns a GitHubClient authenticated with token.
func (f *ClientFactory) ForToken(token model.UpstreamToken) (driven.GitHubClient, error) {
	if token.AccessToken == "" {
		return nil, fmt.Errorf("github client: empty access token")
	}
	if f.httpClient == nil {
		return NewClient(token), nil
	}
	return NewClientWithHTTPClient(f.httpClient, f.baseURL, token)
}

// FetchViewerLogin returns the login of the authenticated user.
func (c *Client) FetchViewerLogin(ctx context.Context) (string, error) {
	user, resp, err := c.gh.Users.Get(ctx, "")
	if err != nil {
		return "", fmt.Errorf("fetching authenticated user: %w", err)
	}

	logRateLimit(resp, "user", 0, 1)

	return user.GetLogin(), nil
}

// FetchWorkflows retrieves all workflows of a repository.
// It handles pagination automatically and maps go-github types to domain model types.
func (c *Client) FetchWorkflows(ctx context.Context, owner, repo string) ([]model.Workflow, error) {
	opts := &gh.ListOptions{PerPage: 100}
	endpoint := fmt.Sprintf("listing workflows for %s/%s", owner, repo)

	all := []model.Workflow{}
	for page, err := range pages(ctx, endpoint, opts, func(ctx context.Context) ([]*gh.Workflow, *gh.Response, error) {
		list, resp, err := c.gh.Actions.ListWorkflows(ctx, owner, repo, opts)
		if err != nil {
			return nil, resp, err
		}
		return list.Workflows, resp, nil
	}) {
		if err != nil {
			return nil, err
		}
		for _, w := range page {
			all = append(all, mapWorkflow(w, owner, repo))
		}
	}

	return all, nil
}

// FetchWorkflowRuns retrieves all runs of a workflow created strictly after createdAfter.
// It handles pagination automatically and maps go-github types to domain model types.
func (c *Client) FetchWorkflowRuns(ctx context.Context, owner, repo string, workflowID int64, createdAfter time.Time) ([]model.WorkflowRun, error) {
	opts := &gh.ListWorkflowRunsOptions{
		Created:     ">" + createdAfter.UTC().Format(time.RFC3339),
		ListOptions: gh.ListOptions{PerPage: 100},
	}
	endpoint := fmt.Sprintf("listing runs for %s/%s workflow %d", owner, repo, workflowID)

	all := []model.WorkflowRun{}
	for page, err := range pages(ctx, endpoint, &opts.ListOptions, func(ctx context.Context) ([]*gh.WorkflowRun, *gh.Response, error) {
		list, resp, err := c.gh.Actions.ListWorkflowRunsByID(ctx, owner, repo, workflowID, opts)
		if err != nil {
			return nil, resp, err
		}
		return list.WorkflowRuns, resp, nil
	}) {
		if err != nil {
			return nil, err
		}
		for _, r := range page {
			all = append(all, mapWorkflowRun(r))
		}
	}

	return all, nil
}

// FetchLatestWorkflowRun retrieves the single most recent run of a workflow.
// Returns nil, nil if the workflow has never run.
func (c *Client) FetchLatestWorkflowRun(ctx context.Context, owner, repo string, workflowID int64) (*model.WorkflowRun, error) {
	opts := &gh.ListWorkflowRunsOptions{
		ListOptions: gh.ListOptions{PerPage: 1, Page: 1},
	}

	list, resp, err := c.gh.Actions.ListWorkflowRunsByID(ctx, owner, repo, workflowID, opts)
	if err != nil {
		return nil, fmt.Errorf("fetching latest run for %s/%s workflow %d: %w", owner, repo, workflowID, err)
	}

	logRateLimit(resp, fmt.Sprintf("latest run %s/%s", owner, repo), 1, len(list.WorkflowRuns))

	if len(list.WorkflowRuns) == 0 {
		return nil, nil
	}
	run := mapWorkflowRun(list.WorkflowRuns[0])
	return &run, nil
}

// logRateLimit logs rate limit information from a GitHub API response.
// It warns when remaining requests drop below 100.
func logRateLimit(resp *gh.Response, endpoint string, page, count int) {
	if resp == nil {
		return
	}

	slog.Debug("github api call",
		"endpoint", endpoint,
		"page", page,
		"count", count,
		"rate_remaining", resp.Rate.Remaining,
		"rate_limit", resp.Rate.Limit,
	)

	if resp.Rate.Remaining < 100 {
		slog.Warn("github rate limit low",
			"remaining", resp.Rate.Remaining,
			"reset_in", time.Until(resp.Rate.Reset.Time).Round(time.Second),
		)
	}
}

// mapWorkflow converts a go-github Workflow to a domain model Workflow. The
// detail link points at the workflow's page in the repository Actions tab.
func mapWorkflow(w *gh.Workflow, owner, repo string) model.Workflow {
	return model.Workflow{
		ID:        w.GetID(),
		Name:      w.GetName(),
		Path:      w.GetPath(),
		State:     model.WorkflowState(w.GetState()),
		DetailURL: workflowURL(owner, repo, w.GetPath()),
	}
}

// mapWorkflowRun converts a go-github WorkflowRun to a domain model WorkflowRun.
func mapWorkflowRun(r *gh.WorkflowRun) model.WorkflowRun {
	var createdAt, startedAt time.Time
	if r.CreatedAt != nil {
		createdAt = r.GetCreatedAt().Time
	}
	if r.RunStartedAt != nil {
		startedAt = r.GetRunStartedAt().Time
	}

	return model.WorkflowRun{
		ID:              r.GetID(),
		CreatedAt:       createdAt,
		StartedAt:       startedAt,
		Attempt:         r.GetRunAttempt(),
		Status:          model.RunStatus(r.GetStatus()),
		Conclusion:      model.RunConclusion(r.GetConclusion()),
		TriggeringActor: r.GetTriggeringActor().GetLogin(),
		DetailURL:       r.GetHTMLURL(),
	}
}

func workflowURL(owner, repo, workflowPath string) string {
	return fmt.Sprintf("%s/%s/%s/actions/workflows/%s", webBaseURL, owner, repo, path.Base(workflowPath))
}

// authorizationHeader renders "<token_type> <access_token>", defaulting the
// type to bearer when the provider omitted it.
func authorizationHeader(token model.UpstreamToken) string {
	tokenType := strings.TrimSpace(token.TokenType)
	if tokenType == "" {
		tokenType = "bearer"
	}
	return tokenType + " " + token.AccessToken
}
