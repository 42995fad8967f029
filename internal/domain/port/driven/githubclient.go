package driven

import (
	"context"
	"errors"
	"time"

	"github.com/ericfisherdev/runpanel/internal/domain/model"
)

// ErrUpstreamAPI wraps any failure of a GitHub API call made while
// aggregating workflow runs.
var ErrUpstreamAPI = errors.New("upstream api call failed")

// GitHubClient defines the driven port for reading from the GitHub API on
// behalf of a single user token.
type GitHubClient interface {
	// FetchViewerLogin returns the login of the token's owner.
	FetchViewerLogin(ctx context.Context) (string, error)

	// FetchRepositories returns all non-archived repositories visible to the
	// viewer, most recently pushed first.
	FetchRepositories(ctx context.Context) ([]model.Repository, error)

	// FetchWorkflows returns all workflows of a repository in listing order.
	FetchWorkflows(ctx context.Context, owner, repo string) ([]model.Workflow, error)

	// FetchWorkflowRuns returns all runs of a workflow created after the given instant.
	FetchWorkflowRuns(ctx context.Context, owner, repo string, workflowID int64, createdAfter time.Time) ([]model.WorkflowRun, error)

	// FetchLatestWorkflowRun returns the most recent run of a workflow regardless
	// of age, or nil if the workflow never ran.
	FetchLatestWorkflowRun(ctx context.Context, owner, repo string, workflowID int64) (*model.WorkflowRun, error)
}

// GitHubClientFactory creates a GitHubClient authenticated with a user's upstream token.
type GitHubClientFactory interface {
	ForToken(token model.UpstreamToken) (GitHubClient, error)
}
