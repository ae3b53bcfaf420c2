// Package engine executes validated workflow graphs: it walks nodes from the
// start node, dispatches each through the tool registry, resolves branches
// and loops against live state, enforces the global iteration cap, and
// produces the run record with its ordered audit trail.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/nvoss/stepflow/internal/tool"
	"github.com/nvoss/stepflow/internal/workflow"
)

// DefaultMaxIterations is the global safety cap on node dispatches per run.
// It bounds every run independent of any loop node's own max_iterations.
const DefaultMaxIterations = 100

// RunSaver persists run records. The engine saves after every dispatch and
// at termination, so readers polling a registry see fresh snapshots.
type RunSaver interface {
	Save(run *Run) error
}

// Options tune one execution. The zero value is usable: a generated ULID run
// ID, the default iteration cap, the default logger, no progress sink, no
// saver.
type Options struct {
	RunID         string
	GraphID       string
	MaxIterations int
	Logger        *slog.Logger

	// Progress receives one event map per engine step (run_started,
	// node_started, node_finished, edge_selected, run_finished). Maps are
	// never retained or mutated by the engine after the call.
	Progress func(event map[string]any)

	Store RunSaver
}

type engine struct {
	graph      *workflow.Graph
	tools      *tool.Registry
	opts       Options
	logger     *slog.Logger
	run        *Run
	state      map[string]any
	loopCounts map[string]int
	iterations int
}

// Execute runs the graph to a terminal status and returns the run record.
// Run-time failures never escape as errors: they are recorded on the run,
// which always comes back with Status Completed or Failed and every log
// entry accumulated up to that point. Within a run, execution is strictly
// sequential; the call blocks until the run terminates.
func Execute(ctx context.Context, g *workflow.Graph, tools *tool.Registry, initial map[string]any, opts Options) *Run {
	if opts.RunID == "" {
		opts.RunID = ulid.Make().String()
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultMaxIterations
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("run_id", opts.RunID, "graph", g.Name)

	e := &engine{
		graph:  g,
		tools:  tools,
		opts:   opts,
		logger: logger,
		run: &Run{
			ID:        opts.RunID,
			GraphID:   opts.GraphID,
			Status:    StatusRunning,
			StartedAt: time.Now().UTC(),
		},
		state:      CloneState(initial),
		loopCounts: map[string]int{},
	}
	e.emit(map[string]any{"event": "run_started", "start_node": g.Start})
	e.runLoop(ctx)
	return e.run
}

func (e *engine) runLoop(ctx context.Context) {
	current := e.graph.Start
	for {
		if e.graph.IsEnd(current) {
			e.logger.Info("run completed", "end_node", current, "dispatches", e.iterations)
			e.finish(StatusCompleted, nil)
			return
		}
		if e.iterations >= e.opts.MaxIterations {
			err := &LoopLimitError{Cap: e.opts.MaxIterations, Node: current}
			e.logger.Warn("run hit global iteration cap", "node", current, "cap", e.opts.MaxIterations)
			e.finish(StatusFailed, err)
			return
		}

		node, ok := e.graph.Nodes[current]
		if !ok {
			// Unreachable for compiled graphs; validation pins every edge
			// target to a declared node.
			e.finish(StatusFailed, &DeadEndError{Node: current})
			return
		}

		e.run.CurrentNode = current
		e.emit(map[string]any{"event": "node_started", "node": current, "kind": string(node.Kind), "iteration": e.iterations})
		e.logger.Debug("dispatching node", "node", current, "kind", string(node.Kind))

		before := CloneState(e.state)
		after, err := dispatch(ctx, e.tools, node, e.state)
		if err != nil {
			e.logger.Warn("node dispatch failed", "node", current, "err", err)
			e.finish(StatusFailed, err)
			return
		}
		e.appendLog(node.Name, before, after)
		e.state = after
		e.run.State = CloneState(after)
		e.iterations++
		if node.Kind == workflow.KindLoop {
			e.loopCounts[node.Name]++
		}
		e.emit(map[string]any{"event": "node_finished", "node": current, "iteration": e.iterations - 1})
		e.save()

		next, err := resolveNextHop(e.graph, node, e.state, e.loopCounts)
		if err != nil {
			e.logger.Warn("next-hop resolution failed", "node", current, "err", err)
			e.finish(StatusFailed, err)
			return
		}
		e.emit(map[string]any{"event": "edge_selected", "from_node": next.From, "to_node": next.To, "label": next.Label})
		current = next.To
	}
}

// appendLog records one dispatch. Entries are append-only and never reorder;
// both snapshots are already non-aliasing copies of the live state.
func (e *engine) appendLog(nodeName string, before, after map[string]any) {
	afterCopy := CloneState(after)
	entry := LogEntry{
		NodeName:    nodeName,
		Iteration:   e.iterations,
		StateBefore: before,
		StateAfter:  afterCopy,
		Timestamp:   time.Now().UTC(),
	}
	if d, err := StateDigest(before); err == nil {
		entry.BeforeDigest = d
	} else {
		e.logger.Warn("state digest failed", "node", nodeName, "err", err)
	}
	if d, err := StateDigest(afterCopy); err == nil {
		entry.AfterDigest = d
	}
	e.run.Logs = append(e.run.Logs, entry)
}

func (e *engine) finish(status Status, err error) {
	e.run.Status = status
	e.run.State = CloneState(e.state)
	e.run.CurrentNode = ""
	now := time.Now().UTC()
	e.run.FinishedAt = &now
	ev := map[string]any{"event": "run_finished", "status": string(status)}
	if err != nil {
		e.run.Failure = classifyFailure(err)
		ev["error_kind"] = e.run.Failure.Kind
		ev["error"] = e.run.Failure.Message
	}
	e.save()
	e.emit(ev)
}

func (e *engine) save() {
	if e.opts.Store == nil {
		return
	}
	if err := e.opts.Store.Save(e.run); err != nil {
		e.logger.Warn("save run record", "err", err)
	}
}

func (e *engine) emit(ev map[string]any) {
	if e.opts.Progress == nil {
		return
	}
	ev["run_id"] = e.run.ID
	ev["ts"] = time.Now().UTC().Format(time.RFC3339Nano)
	e.opts.Progress(ev)
}
