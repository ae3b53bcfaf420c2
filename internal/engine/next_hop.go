package engine

import (
	"github.com/nvoss/stepflow/internal/cond"
	"github.com/nvoss/stepflow/internal/workflow"
)

// resolveNextHop selects the outgoing edge to follow after node was
// dispatched, switching on the node kind. This is the single place where
// control-flow decisions are made.
//
// Loop nodes: loopCounts tracks dispatches of each loop node for its current
// visit sequence (the count already includes the dispatch that just ran).
// The node-local ceiling is checked before the condition, so max_iterations
// is a hard cap regardless of what the condition would do — including a
// condition that would itself fail to evaluate. Taking the exit edge resets
// the count, so a later re-entry to the loop starts fresh.
func resolveNextHop(g *workflow.Graph, node workflow.Node, state map[string]any, loopCounts map[string]int) (workflow.Edge, error) {
	switch node.Kind {
	case workflow.KindConditional:
		ok, err := cond.Evaluate(node.Condition, state)
		if err != nil {
			return workflow.Edge{}, err
		}
		label := workflow.LabelFalse
		if ok {
			label = workflow.LabelTrue
		}
		return labeledEdge(g, node.Name, label)

	case workflow.KindLoop:
		if loopCounts[node.Name] >= node.MaxIterations {
			delete(loopCounts, node.Name)
			return labeledEdge(g, node.Name, workflow.LabelExit)
		}
		exit, err := cond.Evaluate(node.Condition, state)
		if err != nil {
			return workflow.Edge{}, err
		}
		if exit {
			delete(loopCounts, node.Name)
			return labeledEdge(g, node.Name, workflow.LabelExit)
		}
		return labeledEdge(g, node.Name, workflow.LabelContinue)

	default:
		edges := g.Outgoing(node.Name)
		if len(edges) == 0 {
			return workflow.Edge{}, &DeadEndError{Node: node.Name}
		}
		return edges[0], nil
	}
}

func labeledEdge(g *workflow.Graph, from, label string) (workflow.Edge, error) {
	e, ok := g.OutgoingLabeled(from, label)
	if !ok {
		return workflow.Edge{}, &DeadEndError{Node: from, Label: label}
	}
	return e, nil
}
