package workflow

import (
	"fmt"
	"strings"

	"github.com/nvoss/stepflow/internal/cond"
)

type Severity string

const (
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
)

// Diagnostic is one validation finding, tagged with the rule that produced it.
type Diagnostic struct {
	Rule     string   `json:"rule"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	NodeName string   `json:"node_name,omitempty"`
	EdgeFrom string   `json:"edge_from,omitempty"`
	EdgeTo   string   `json:"edge_to,omitempty"`
}

// ValidationError aggregates the error-severity diagnostics of a rejected
// definition. Warnings never fail validation.
type ValidationError struct {
	Diagnostics []Diagnostic
}

func (e *ValidationError) Error() string {
	var parts []string
	for _, d := range e.Diagnostics {
		if d.Severity == SeverityError {
			parts = append(parts, d.Rule+": "+d.Message)
		}
	}
	return "graph validation failed: " + strings.Join(parts, "; ")
}

// Validate runs every rule against def and returns all diagnostics.
// Validation happens once at graph creation; the engine never re-checks
// structure mid-run.
func Validate(def Definition) []Diagnostic {
	var diags []Diagnostic
	diags = append(diags, ruleNodeNamesUnique(def)...)
	diags = append(diags, ruleEdgeEndpointsExist(def)...)
	diags = append(diags, ruleStartNodeExists(def)...)
	diags = append(diags, ruleEndNodesExist(def)...)
	diags = append(diags, ruleNodeKinds(def)...)
	diags = append(diags, ruleConditions(def)...)
	diags = append(diags, ruleLoopMaxIterations(def)...)
	diags = append(diags, ruleEdgeCardinality(def)...)
	return diags
}

// ValidateOrError returns a *ValidationError when any rule reports an error.
func ValidateOrError(def Definition) error {
	diags := Validate(def)
	var errs []Diagnostic
	for _, d := range diags {
		if d.Severity == SeverityError {
			errs = append(errs, d)
		}
	}
	if len(errs) > 0 {
		return &ValidationError{Diagnostics: errs}
	}
	return nil
}

func ruleNodeNamesUnique(def Definition) []Diagnostic {
	var diags []Diagnostic
	seen := map[string]bool{}
	for _, n := range def.Nodes {
		name := strings.TrimSpace(n.Name)
		if name == "" {
			diags = append(diags, Diagnostic{
				Rule:     "node_name_required",
				Severity: SeverityError,
				Message:  "node with empty name",
			})
			continue
		}
		if seen[name] {
			diags = append(diags, Diagnostic{
				Rule:     "node_names_unique",
				Severity: SeverityError,
				Message:  fmt.Sprintf("duplicate node name %q", name),
				NodeName: name,
			})
		}
		seen[name] = true
	}
	return diags
}

func ruleEdgeEndpointsExist(def Definition) []Diagnostic {
	names := nodeNames(def)
	var diags []Diagnostic
	for _, e := range def.Edges {
		for _, endpoint := range []string{e.From, e.To} {
			if !names[endpoint] {
				diags = append(diags, Diagnostic{
					Rule:     "edge_endpoints_exist",
					Severity: SeverityError,
					Message:  fmt.Sprintf("edge %s -> %s references unknown node %q", e.From, e.To, endpoint),
					EdgeFrom: e.From,
					EdgeTo:   e.To,
				})
			}
		}
	}
	return diags
}

func ruleStartNodeExists(def Definition) []Diagnostic {
	if strings.TrimSpace(def.StartNode) == "" {
		return []Diagnostic{{
			Rule:     "start_node",
			Severity: SeverityError,
			Message:  "start_node is required",
		}}
	}
	if !nodeNames(def)[def.StartNode] {
		return []Diagnostic{{
			Rule:     "start_node",
			Severity: SeverityError,
			Message:  fmt.Sprintf("start_node %q is not a declared node", def.StartNode),
		}}
	}
	return nil
}

func ruleEndNodesExist(def Definition) []Diagnostic {
	names := nodeNames(def)
	var diags []Diagnostic
	if len(def.EndNodes) == 0 {
		diags = append(diags, Diagnostic{
			Rule:     "end_nodes",
			Severity: SeverityError,
			Message:  "at least one end node is required",
		})
	}
	for _, name := range def.EndNodes {
		if !names[name] {
			diags = append(diags, Diagnostic{
				Rule:     "end_nodes",
				Severity: SeverityError,
				Message:  fmt.Sprintf("end node %q is not a declared node", name),
				NodeName: name,
			})
		}
	}
	return diags
}

func ruleNodeKinds(def Definition) []Diagnostic {
	var diags []Diagnostic
	for _, n := range def.Nodes {
		if !n.Kind.Valid() {
			diags = append(diags, Diagnostic{
				Rule:     "node_kind",
				Severity: SeverityError,
				Message:  fmt.Sprintf("node %q has unknown kind %q", n.Name, n.Kind),
				NodeName: n.Name,
			})
		}
	}
	return diags
}

// ruleConditions requires a condition on conditional/loop nodes and rejects
// conditions that do not parse. Catching syntax errors here keeps them out
// of running graphs entirely.
func ruleConditions(def Definition) []Diagnostic {
	var diags []Diagnostic
	for _, n := range def.Nodes {
		switch n.Kind {
		case KindConditional, KindLoop:
			if strings.TrimSpace(n.Condition) == "" {
				diags = append(diags, Diagnostic{
					Rule:     "condition_required",
					Severity: SeverityError,
					Message:  fmt.Sprintf("%s node %q has no condition", n.Kind, n.Name),
					NodeName: n.Name,
				})
				continue
			}
			if _, err := cond.Parse(n.Condition); err != nil {
				diags = append(diags, Diagnostic{
					Rule:     "condition_syntax",
					Severity: SeverityError,
					Message:  fmt.Sprintf("node %q: %v", n.Name, err),
					NodeName: n.Name,
				})
			}
		default:
			if strings.TrimSpace(n.Condition) != "" {
				diags = append(diags, Diagnostic{
					Rule:     "condition_unused",
					Severity: SeverityWarning,
					Message:  fmt.Sprintf("simple node %q has a condition; it is never evaluated", n.Name),
					NodeName: n.Name,
				})
			}
		}
	}
	return diags
}

func ruleLoopMaxIterations(def Definition) []Diagnostic {
	var diags []Diagnostic
	for _, n := range def.Nodes {
		if n.Kind != KindLoop {
			continue
		}
		if n.MaxIterations < 1 {
			diags = append(diags, Diagnostic{
				Rule:     "loop_max_iterations",
				Severity: SeverityError,
				Message:  fmt.Sprintf("loop node %q requires max_iterations >= 1 (got %d)", n.Name, n.MaxIterations),
				NodeName: n.Name,
			})
		}
	}
	return diags
}

// ruleEdgeCardinality enforces outgoing-edge shape per node kind: simple
// nodes have exactly one outgoing edge, conditional nodes a true/false pair,
// loop nodes a continue/exit pair. End nodes are exempt; they are never
// resolved for a next hop.
func ruleEdgeCardinality(def Definition) []Diagnostic {
	ends := map[string]bool{}
	for _, name := range def.EndNodes {
		ends[name] = true
	}
	outgoing := map[string][]Edge{}
	for _, e := range def.Edges {
		outgoing[e.From] = append(outgoing[e.From], e)
	}

	var diags []Diagnostic
	for _, n := range def.Nodes {
		edges := outgoing[n.Name]
		if ends[n.Name] {
			if len(edges) > 0 {
				diags = append(diags, Diagnostic{
					Rule:     "end_node_outgoing",
					Severity: SeverityWarning,
					Message:  fmt.Sprintf("end node %q has outgoing edges; they are never followed", n.Name),
					NodeName: n.Name,
				})
			}
			continue
		}
		switch n.Kind {
		case KindSimple:
			if len(edges) != 1 {
				diags = append(diags, Diagnostic{
					Rule:     "edge_cardinality",
					Severity: SeverityError,
					Message:  fmt.Sprintf("simple node %q must have exactly one outgoing edge (got %d)", n.Name, len(edges)),
					NodeName: n.Name,
				})
			}
		case KindConditional:
			diags = append(diags, requireLabelPair(n.Name, "conditional", edges, LabelTrue, LabelFalse)...)
		case KindLoop:
			diags = append(diags, requireLabelPair(n.Name, "loop", edges, LabelContinue, LabelExit)...)
		}
	}
	return diags
}

func requireLabelPair(name, kind string, edges []Edge, a, b string) []Diagnostic {
	if len(edges) != 2 {
		return []Diagnostic{{
			Rule:     "edge_cardinality",
			Severity: SeverityError,
			Message:  fmt.Sprintf("%s node %q must have exactly two outgoing edges (got %d)", kind, name, len(edges)),
			NodeName: name,
		}}
	}
	var diags []Diagnostic
	for _, want := range []string{a, b} {
		found := false
		for _, e := range edges {
			if NormalizeLabel(e.Label) == want {
				found = true
				break
			}
		}
		if !found {
			diags = append(diags, Diagnostic{
				Rule:     "edge_labels",
				Severity: SeverityError,
				Message:  fmt.Sprintf("%s node %q is missing an outgoing edge labeled %q", kind, name, want),
				NodeName: name,
			})
		}
	}
	return diags
}

func nodeNames(def Definition) map[string]bool {
	names := make(map[string]bool, len(def.Nodes))
	for _, n := range def.Nodes {
		names[n.Name] = true
	}
	return names
}
