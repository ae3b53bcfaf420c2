package engine

import "time"

// Status is the lifecycle state of a run. Completed and Failed are terminal.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// LogEntry records one node dispatch: the state on either side of it, as
// non-aliasing snapshots, plus a digest of each snapshot for cheap equality
// checks and audit.
type LogEntry struct {
	NodeName     string         `json:"node_name"`
	Iteration    int            `json:"iteration"`
	StateBefore  map[string]any `json:"state_before"`
	StateAfter   map[string]any `json:"state_after"`
	BeforeDigest string         `json:"state_before_digest,omitempty"`
	AfterDigest  string         `json:"state_after_digest,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
}

// Failure describes why a run failed. Kind distinguishes designed safety
// outcomes (loop limit) from graph defects (dead end) and tool or condition
// errors.
type Failure struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Run is the record of one graph execution. It is created when the run
// starts, mutated only by the engine, and frozen once Status is terminal.
type Run struct {
	ID          string         `json:"run_id"`
	GraphID     string         `json:"graph_id"`
	Status      Status         `json:"status"`
	State       map[string]any `json:"current_state"`
	CurrentNode string         `json:"current_node,omitempty"`
	Logs        []LogEntry     `json:"execution_logs"`
	Failure     *Failure       `json:"error,omitempty"`
	StartedAt   time.Time      `json:"started_at"`
	FinishedAt  *time.Time     `json:"finished_at,omitempty"`
}

// Clone deep-copies the run record, including every logged snapshot.
// Registries hand out clones so readers can never observe or disturb the
// engine's live record.
func (r *Run) Clone() *Run {
	if r == nil {
		return nil
	}
	out := *r
	out.State = CloneState(r.State)
	out.Logs = make([]LogEntry, len(r.Logs))
	for i, le := range r.Logs {
		le.StateBefore = CloneState(le.StateBefore)
		le.StateAfter = CloneState(le.StateAfter)
		out.Logs[i] = le
	}
	if r.Failure != nil {
		f := *r.Failure
		out.Failure = &f
	}
	if r.FinishedAt != nil {
		t := *r.FinishedAt
		out.FinishedAt = &t
	}
	return &out
}
