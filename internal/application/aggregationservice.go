package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ericfisherdev/runpanel/internal/domain/model"
	"github.com/ericfisherdev/runpanel/internal/domain/port/driven"
)

// RunHistoryWindow bounds how far back workflow runs are collected.
const RunHistoryWindow = 7 * 24 * time.Hour

// AggregationService collects the recent run history of every workflow in
// every repository visible to a user.
type AggregationService struct {
	github         driven.GitHubClientFactory
	maxConcurrency int // 0 means unbounded.
	now            func() time.Time
}

// NewAggregationService creates an AggregationService. A positive
// maxConcurrency caps the in-flight calls of each fan-out stage. now may be
// nil, in which case time.Now is used.
func NewAggregationService(github driven.GitHubClientFactory, maxConcurrency int, now func() time.Time) *AggregationService {
	if now == nil {
		now = time.Now
	}
	return &AggregationService{
		github:         github,
		maxConcurrency: maxConcurrency,
		now:            now,
	}
}

// Aggregate returns one summary per non-deleted workflow that has at least one
// run, ordered by repository and then by workflow listing order. Runs are those
// created within RunHistoryWindow; a workflow with none there contributes its
// single most recent run instead. Any upstream failure aborts the whole call
// with an error wrapping driven.ErrUpstreamAPI.
func (s *AggregationService) Aggregate(ctx context.Context, token model.UpstreamToken) ([]model.WorkflowSummary, error) {
	start := time.Now()

	summaries, err := s.aggregate(ctx, token)

	metricAggregations.WithLabelValues(outcome(err)).Inc()
	metricAggregationDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		return nil, fmt.Errorf("%w: %w", driven.ErrUpstreamAPI, err)
	}

	slog.Debug("workflow runs aggregated", "workflows", len(summaries), "duration", time.Since(start).Round(time.Millisecond))
	return summaries, nil
}

func (s *AggregationService) aggregate(ctx context.Context, token model.UpstreamToken) ([]model.WorkflowSummary, error) {
	client, err := s.github.ForToken(token)
	if err != nil {
		return nil, err
	}

	repos, err := client.FetchRepositories(ctx)
	if err != nil {
		return nil, err
	}

	createdAfter := s.now().Add(-RunHistoryWindow)

	// Each goroutine owns one slot, so results keep enumeration order.
	perRepo := make([][]model.WorkflowSummary, len(repos))

	g, gctx := s.group(ctx)
	for i, repo := range repos {
		g.Go(func() error {
			summaries, err := s.repoSummaries(gctx, client, repo, createdAfter)
			if err != nil {
				return fmt.Errorf("collecting workflows for %s: %w", repo.FullName(), err)
			}
			perRepo[i] = summaries
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := []model.WorkflowSummary{}
	for _, summaries := range perRepo {
		result = append(result, summaries...)
	}
	return result, nil
}

// repoSummaries lists a repository's workflows and collects the runs of each
// non-deleted one concurrently. Workflows without runs are dropped.
func (s *AggregationService) repoSummaries(ctx context.Context, client driven.GitHubClient, repo model.Repository, createdAfter time.Time) ([]model.WorkflowSummary, error) {
	workflows, err := client.FetchWorkflows(ctx, repo.Owner, repo.Name)
	if err != nil {
		return nil, err
	}

	active := make([]model.Workflow, 0, len(workflows))
	for _, wf := range workflows {
		if wf.State == model.WorkflowStateDeleted {
			continue
		}
		active = append(active, wf)
	}

	slots := make([]*model.WorkflowSummary, len(active))

	g, gctx := s.group(ctx)
	for i, wf := range active {
		g.Go(func() error {
			runs, err := s.recentRuns(gctx, client, repo, wf.ID, createdAfter)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				return nil
			}
			slots[i] = &model.WorkflowSummary{
				ID:        wf.ID,
				Owner:     repo.Owner,
				Repo:      repo.Name,
				Name:      wf.Name,
				State:     wf.State,
				DetailURL: wf.DetailURL,
				Runs:      runs,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summaries := make([]model.WorkflowSummary, 0, len(slots))
	for _, summary := range slots {
		if summary != nil {
			summaries = append(summaries, *summary)
		}
	}
	return summaries, nil
}

// recentRuns returns the runs created after createdAfter, or the single most
// recent run when the window is empty.
func (s *AggregationService) recentRuns(ctx context.Context, client driven.GitHubClient, repo model.Repository, workflowID int64, createdAfter time.Time) ([]model.WorkflowRun, error) {
	runs, err := client.FetchWorkflowRuns(ctx, repo.Owner, repo.Name, workflowID, createdAfter)
	if err != nil {
		return nil, err
	}
	if len(runs) > 0 {
		return runs, nil
	}

	latest, err := client.FetchLatestWorkflowRun(ctx, repo.Owner, repo.Name, workflowID)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, nil
	}
	return []model.WorkflowRun{*latest}, nil
}

func (s *AggregationService) group(ctx context.Context) (*errgroup.Group, context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	if s.maxConcurrency > 0 {
		g.SetLimit(s.maxConcurrency)
	}
	return g, gctx
}
