package engine

import (
	"errors"
	"fmt"

	"github.com/nvoss/stepflow/internal/cond"
	"github.com/nvoss/stepflow/internal/tool"
)

// Failure kinds recorded on a failed run.
const (
	FailureToolNotFound  = "tool_not_found"
	FailureToolExecution = "tool_execution"
	FailureCondition     = "condition_evaluation"
	FailureLoopLimit     = "loop_limit_exceeded"
	FailureDeadEnd       = "dead_end"
)

// LoopLimitError is the designed safety outcome for graphs whose cycles
// never converge: the run is stopped once the global dispatch cap is hit.
type LoopLimitError struct {
	Cap  int
	Node string
}

func (e *LoopLimitError) Error() string {
	return fmt.Sprintf("global iteration cap of %d reached at node %q", e.Cap, e.Node)
}

// DeadEndError reports next-hop resolution selecting a label with no
// matching outgoing edge.
type DeadEndError struct {
	Node  string
	Label string
}

func (e *DeadEndError) Error() string {
	if e.Label == "" {
		return fmt.Sprintf("node %q has no outgoing edge", e.Node)
	}
	return fmt.Sprintf("node %q has no outgoing edge labeled %q", e.Node, e.Label)
}

// classifyFailure maps a run error to its failure kind.
func classifyFailure(err error) *Failure {
	var (
		notFound  *tool.NotFoundError
		execErr   *tool.ExecError
		evalErr   *cond.EvalError
		loopLimit *LoopLimitError
		deadEnd   *DeadEndError
	)
	kind := FailureToolExecution
	switch {
	case errors.As(err, &loopLimit):
		kind = FailureLoopLimit
	case errors.As(err, &deadEnd):
		kind = FailureDeadEnd
	case errors.As(err, &notFound):
		kind = FailureToolNotFound
	case errors.As(err, &evalErr):
		kind = FailureCondition
	case errors.As(err, &execErr):
		kind = FailureToolExecution
	}
	return &Failure{Kind: kind, Message: err.Error()}
}
