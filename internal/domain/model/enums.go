package model

// WorkflowState represents the state of a GitHub Actions workflow.
type WorkflowState string

const (
	WorkflowStateActive             WorkflowState = "active"
	WorkflowStateDeleted            WorkflowState = "deleted"
	WorkflowStateDisabledFork       WorkflowState = "disabled_fork"
	WorkflowStateDisabledInactivity WorkflowState = "disabled_inactivity"
	WorkflowStateDisabledManually   WorkflowState = "disabled_manually"
)

// RunStatus represents the lifecycle status of a workflow run.
type RunStatus string

const (
	RunStatusQueued     RunStatus = "queued"
	RunStatusInProgress RunStatus = "in_progress"
	RunStatusCompleted  RunStatus = "completed"
)

// RunConclusion represents the outcome of a completed workflow run.
// The zero value means the run has no conclusion yet.
type RunConclusion string

const (
	RunConclusionNone           RunConclusion = ""
	RunConclusionSuccess        RunConclusion = "success"
	RunConclusionFailure        RunConclusion = "failure"
	RunConclusionNeutral        RunConclusion = "neutral"
	RunConclusionCancelled      RunConclusion = "cancelled" //nolint:misspell // GitHub API spelling
	RunConclusionSkipped        RunConclusion = "skipped"
	RunConclusionTimedOut       RunConclusion = "timed_out"
	RunConclusionActionRequired RunConclusion = "action_required"
)
