package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ericfisherdev/runpanel/internal/domain/model"
)

// graphqlHTTPClient is the HTTP client used for GraphQL requests.
// It enforces a 30-second timeout as a safety net alongside context cancellation.
var graphqlHTTPClient = &http.Client{Timeout: 30 * time.Second}

// repositoriesPageSize is the GraphQL page size for viewer.repositories; 100 is GitHub's maximum.
const repositoriesPageSize = 100

const viewerRepositoriesQuery = `query($first: Int!, $after: String) {
	viewer {
		repositories(isArchived: false, first: $first, after: $after, orderBy: {field: PUSHED_AT, direction: DESC}) {
			pageInfo {
				endCursor
				hasNextPage
			}
			nodes {
				nameWithOwner
				pushedAt
			}
		}
	}
}`

// graphqlRequest is the JSON body sent to the GitHub GraphQL API.
type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

// repositoriesResponse represents the expected shape of a GitHub GraphQL response
// for one page of the viewer's repositories.
type repositoriesResponse struct {
	Data struct {
		Viewer struct {
			Repositories struct {
				PageInfo struct {
					EndCursor   string `json:"endCursor"`
					HasNextPage bool   `json:"hasNextPage"`
				} `json:"pageInfo"`
				Nodes []struct {
					NameWithOwner string     `json:"nameWithOwner"`
					PushedAt      *time.Time `json:"pushedAt"`
				} `json:"nodes"`
			} `json:"repositories"`
		} `json:"viewer"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// FetchRepositories queries the GitHub GraphQL API for every non-archived
// repository visible to the viewer, most recently pushed first. It follows the
// cursor until GitHub reports no further page, and fails if a next page is
// reported without an advancing cursor.
func (c *Client) FetchRepositories(ctx context.Context) ([]model.Repository, error) {
	repos := []model.Repository{}

	var after *string
	for page := 1; ; page++ {
		gqlResp, err := c.queryRepositories(ctx, after)
		if err != nil {
			return nil, fmt.Errorf("listing repositories (page %d): %w", page, err)
		}

		conn := gqlResp.Data.Viewer.Repositories
		for _, node := range conn.Nodes {
			owner, name, err := splitRepo(node.NameWithOwner)
			if err != nil {
				slog.Warn("graphql: skipping repository", "error", err)
				continue
			}

			repo := model.Repository{Owner: owner, Name: name}
			if node.PushedAt != nil {
				repo.LastPushedAt = *node.PushedAt
			}
			repos = append(repos, repo)
		}

		slog.Debug("github graphql call", "endpoint", "viewer.repositories", "page", page, "count", len(conn.Nodes))

		if !conn.PageInfo.HasNextPage {
			break
		}
		cursor := conn.PageInfo.EndCursor
		if cursor == "" || (after != nil && *after == cursor) {
			return nil, fmt.Errorf("listing repositories (page %d): next page reported without a new cursor", page)
		}
		after = &cursor
	}

	return repos, nil
}

func (c *Client) queryRepositories(ctx context.Context, after *string) (*repositoriesResponse, error) {
	reqBody := graphqlRequest{
		Query: viewerRepositoriesQuery,
		Variables: map[string]any{
			"first": repositoriesPageSize,
			"after": after,
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling repositories query: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.graphqlURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("creating repositories request: %w", err)
	}
	httpReq.Header.Set("Authorization", c.authorization)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.graphqlClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("repositories query: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("repositories query: HTTP %d", resp.StatusCode)
	}

	var gqlResp repositoriesResponse
	if err := json.NewDecoder(resp.Body).Decode(&gqlResp); err != nil {
		return nil, fmt.Errorf("decoding repositories response: %w", err)
	}

	if len(gqlResp.Errors) > 0 {
		return nil, fmt.Errorf("repositories query: %s", gqlResp.Errors[0].Message)
	}

	return &gqlResp, nil
}

// splitRepo splits a "owner/repo" string into its two components.
func splitRepo(fullName string) (string, string, error) {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repo name %q: expected owner/repo", fullName)
	}
	return parts[0], parts[1], nil
}
