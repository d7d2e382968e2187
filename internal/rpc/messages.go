package rpc

import "github.com/Personaz1/openclaw-council/internal/council"

// Event types emitted while a council run progresses.
const (
	EventStage = "stage"
	EventDone  = "done"
	EventError = "error"
)

// RunCouncilRequest starts one council run.
type RunCouncilRequest struct {
	Query         string `json:"query"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// RunEvent streams back progress from the daemon: one stage event per
// completed stage, then a done event carrying the run document and report.
type RunEvent struct {
	Type          string               `json:"type"` // stage|done|error
	CorrelationID string               `json:"correlation_id,omitempty"`
	Stage         string               `json:"stage,omitempty"`
	Results       []council.RoleResult `json:"results,omitempty"`
	Run           *council.Run         `json:"run,omitempty"`
	Report        string               `json:"report,omitempty"`
	Error         string               `json:"error,omitempty"`
}
