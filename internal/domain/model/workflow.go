package model

import "time"

// Workflow is a GitHub Actions workflow definition in a repository.
type Workflow struct {
	ID        int64
	Name      string
	Path      string
	State     WorkflowState
	DetailURL string
}

// WorkflowRun is a single execution of a workflow.
type WorkflowRun struct {
	ID              int64
	CreatedAt       time.Time
	StartedAt       time.Time
	Attempt         int
	Status          RunStatus
	Conclusion      RunConclusion
	TriggeringActor string
	DetailURL       string
}

// WorkflowSummary is one entry of the aggregated run history: a workflow
// together with the repository it belongs to and its recent runs.
type WorkflowSummary struct {
	ID        int64
	Owner     string
	Repo      string
	Name      string
	State     WorkflowState
	DetailURL string
	Runs      []WorkflowRun
}
