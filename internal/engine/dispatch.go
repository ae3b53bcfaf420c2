package engine

import (
	"context"
	"fmt"

	"github.com/nvoss/stepflow/internal/tool"
	"github.com/nvoss/stepflow/internal/workflow"
)

// dispatch executes one node. Nodes with a tool name resolve it through the
// registry and invoke it on a private copy of state; nodes without one are
// pure routers and pass state through untouched. Branching is not decided
// here — that belongs to next-hop resolution.
func dispatch(ctx context.Context, tools *tool.Registry, node workflow.Node, state map[string]any) (map[string]any, error) {
	if node.ToolName == "" {
		return state, nil
	}
	reg, err := tools.Get(node.ToolName)
	if err != nil {
		return nil, err
	}
	if err := reg.CheckInput(state); err != nil {
		return nil, &tool.ExecError{Tool: node.ToolName, Err: err}
	}
	out, err := runTool(ctx, reg, CloneState(state))
	if err != nil {
		return nil, &tool.ExecError{Tool: node.ToolName, Err: err}
	}
	if out == nil {
		return nil, &tool.ExecError{Tool: node.ToolName, Err: fmt.Errorf("tool returned nil state")}
	}
	return out, nil
}

// runTool invokes the tool, converting a panic into an error so a broken
// tool fails its run instead of the process.
func runTool(ctx context.Context, reg tool.Registered, state map[string]any) (out map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return reg.Tool.Execute(ctx, state)
}
