package server

import (
	"github.com/nvoss/stepflow/internal/workflow"
)

// CreateGraphResponse is the POST /graphs response body.
type CreateGraphResponse struct {
	GraphID     string `json:"graph_id"`
	Name        string `json:"name,omitempty"`
	Fingerprint string `json:"fingerprint"`
	NodeCount   int    `json:"node_count"`

	// Warnings carries non-fatal diagnostics from validation.
	Warnings []workflow.Diagnostic `json:"warnings,omitempty"`
}

// StartRunRequest is the POST /graphs/{id}/runs request body. All fields are
// optional; the zero value starts a run with an empty state.
type StartRunRequest struct {
	// InitialState seeds the run's mutable state.
	InitialState map[string]any `json:"initial_state,omitempty"`

	// RunID names the run; a ULID is generated when empty. Supplying one lets
	// a client subscribe to the events stream before starting the run.
	RunID string `json:"run_id,omitempty"`

	// MaxIterations overrides the global dispatch cap for this run.
	MaxIterations int `json:"max_iterations,omitempty"`
}

// GraphDetail is the GET /graphs/{id} response body.
type GraphDetail struct {
	GraphID     string              `json:"graph_id"`
	Fingerprint string              `json:"fingerprint"`
	Definition  workflow.Definition `json:"definition"`
}

// ToolInfo is a listing row for GET /tools.
type ToolInfo struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema,omitempty"`
}

// ErrorResponse is the standard error envelope. Diagnostics is populated for
// graph validation failures, one entry per broken rule.
type ErrorResponse struct {
	Error       string                `json:"error"`
	Diagnostics []workflow.Diagnostic `json:"diagnostics,omitempty"`
}
