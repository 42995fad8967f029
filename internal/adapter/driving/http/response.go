package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/runpanel/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Internal Server Error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeStatus writes a JSON error response whose message is the status text.
// Internal error detail never reaches the client.
func writeStatus(w http.ResponseWriter, status int) {
	writeError(w, status, http.StatusText(status))
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// StatusResponse is the JSON representation of the logged-in user.
type StatusResponse struct {
	User string `json:"user"`
}

// HealthResponse is the JSON representation of the health check.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// WorkflowResponse is the JSON representation of a workflow with its recent runs.
type WorkflowResponse struct {
	Owner   string        `json:"owner"`
	Repo    string        `json:"repo"`
	ID      int64         `json:"id"`
	Name    string        `json:"name"`
	State   string        `json:"state"`
	HTMLURL string        `json:"html_url"`
	Runs    []RunResponse `json:"runs"`
}

// RunResponse is the JSON representation of a workflow run. Conclusion is null
// while the run has not completed.
type RunResponse struct {
	ID              int64   `json:"id"`
	CreatedAt       string  `json:"created_at"`
	RunStartedAt    *string `json:"run_started_at"`
	RunAttempt      int     `json:"run_attempt"`
	Status          string  `json:"status"`
	Conclusion      *string `json:"conclusion"`
	TriggeringActor string  `json:"triggering_actor"`
	HTMLURL         string  `json:"html_url"`
}

func toWorkflowResponse(s model.WorkflowSummary) WorkflowResponse {
	runs := make([]RunResponse, 0, len(s.Runs))
	for _, r := range s.Runs {
		runs = append(runs, toRunResponse(r))
	}

	return WorkflowResponse{
		Owner:   s.Owner,
		Repo:    s.Repo,
		ID:      s.ID,
		Name:    s.Name,
		State:   string(s.State),
		HTMLURL: s.DetailURL,
		Runs:    runs,
	}
}

func toRunResponse(r model.WorkflowRun) RunResponse {
	resp := RunResponse{
		ID:              r.ID,
		CreatedAt:       formatTime(r.CreatedAt),
		RunAttempt:      r.Attempt,
		Status:          string(r.Status),
		TriggeringActor: r.TriggeringActor,
		HTMLURL:         r.DetailURL,
	}

	if !r.StartedAt.IsZero() {
		started := formatTime(r.StartedAt)
		resp.RunStartedAt = &started
	}

	if r.Conclusion != model.RunConclusionNone {
		conclusion := string(r.Conclusion)
		resp.Conclusion = &conclusion
	}

	return resp
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
