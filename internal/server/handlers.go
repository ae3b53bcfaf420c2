package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/nvoss/stepflow/internal/engine"
	"github.com/nvoss/stepflow/internal/store"
	"github.com/nvoss/stepflow/internal/workflow"
)

// validRunID matches ULIDs, UUIDs, and other safe identifiers.
// Only alphanumeric, dashes, and underscores are allowed.
var validRunID = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]{0,127}$`)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"graphs": len(s.graphs.List()),
		"runs":   s.streams.count(),
	})
}

func (s *Server) handleCreateGraph(w http.ResponseWriter, r *http.Request) {
	var def workflow.Definition
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&def); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	g, err := workflow.Compile(def)
	if err != nil {
		var verr *workflow.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{
				Error:       "graph validation failed",
				Diagnostics: verr.Diagnostics,
			})
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var warnings []workflow.Diagnostic
	for _, d := range workflow.Validate(def) {
		if d.Severity == workflow.SeverityWarning {
			warnings = append(warnings, d)
		}
	}

	id := s.graphs.Put(g)
	s.logger.Info("graph registered", "graph_id", id, "name", g.Name, "nodes", len(g.Nodes))
	writeJSON(w, http.StatusCreated, CreateGraphResponse{
		GraphID:     id,
		Name:        g.Name,
		Fingerprint: g.Fingerprint,
		NodeCount:   len(g.Nodes),
		Warnings:    warnings,
	})
}

func (s *Server) handleListGraphs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"graphs": s.graphs.List()})
}

func (s *Server) handleGetGraph(w http.ResponseWriter, r *http.Request) {
	g, err := s.graphs.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, GraphDetail{
		GraphID:     r.PathValue("id"),
		Fingerprint: g.Fingerprint,
		Definition:  g.Definition(),
	})
}

// handleStartRun executes a run to completion and returns the full record.
// Every run is bounded by the global dispatch cap, so blocking the request
// is safe. Failures inside the run never map to HTTP errors: the record
// comes back 200 with status "failed" and the error on it.
func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	graphID := r.PathValue("id")
	g, err := s.graphs.Get(graphID)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	req := StartRunRequest{}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
	}

	runID := strings.TrimSpace(req.RunID)
	if runID == "" {
		runID = ulid.Make().String()
	} else if !validRunID.MatchString(runID) {
		writeError(w, http.StatusBadRequest, "run_id must be alphanumeric with dashes/underscores, 1-128 chars")
		return
	}

	maxIter := req.MaxIterations
	if maxIter <= 0 {
		maxIter = s.config.MaxIterations
	}

	b, err := s.streams.open(runID)
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	defer b.Close()

	run := engine.Execute(r.Context(), g, s.tools, req.InitialState, engine.Options{
		RunID:         runID,
		GraphID:       graphID,
		MaxIterations: maxIter,
		Logger:        s.logger,
		Progress:      b.Send,
		Store:         s.runs,
	})
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.runs.Get(r.PathValue("id"))
	if err != nil {
		var nf *store.RunNotFoundError
		if errors.As(err, &nf) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleRunEvents(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")
	b, ok := s.streams.get(runID)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("run %q not found", runID))
		return
	}
	WriteSSE(w, r, b)
}

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	infos := make([]ToolInfo, 0)
	for _, t := range s.tools.List() {
		infos = append(infos, ToolInfo{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": infos})
}

// handleExample registers the built-in code review workflow and returns it
// together with a ready-to-run initial state.
func (s *Server) handleExample(w http.ResponseWriter, r *http.Request) {
	def := workflow.CodeReview()
	g, err := workflow.Compile(def)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("compile example: %v", err))
		return
	}
	id := s.graphs.Put(g)
	writeJSON(w, http.StatusOK, map[string]any{
		"graph_id":             id,
		"definition":           def,
		"sample_initial_state": workflow.CodeReviewSampleState(),
		"run_endpoint":         fmt.Sprintf("/graphs/%s/runs", id),
	})
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
