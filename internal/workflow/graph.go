// Package workflow defines the graph model: node and edge specs, the
// validated immutable Graph, and loading of definition documents.
package workflow

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/zeebo/blake3"
)

// NodeKind is the closed set of node variants. All control-flow decisions
// switch on this tag in the engine's next-hop resolution.
type NodeKind string

const (
	KindSimple      NodeKind = "simple"
	KindConditional NodeKind = "conditional"
	KindLoop        NodeKind = "loop"
)

func (k NodeKind) Valid() bool {
	switch k {
	case KindSimple, KindConditional, KindLoop:
		return true
	default:
		return false
	}
}

// Edge labels recognized during next-hop resolution. Matching is
// case-insensitive; these are the canonical forms.
const (
	LabelTrue     = "true"
	LabelFalse    = "false"
	LabelContinue = "continue"
	LabelExit     = "exit"
)

// Node is one unit of work in a graph definition.
type Node struct {
	Name string   `json:"name" yaml:"name"`
	Kind NodeKind `json:"kind" yaml:"kind"`

	// ToolName resolves through the tool registry at dispatch time. Empty
	// means a pure routing node: state passes through unchanged.
	ToolName string `json:"tool_name,omitempty" yaml:"tool_name,omitempty"`

	// Condition is the boolean expression for conditional branching or the
	// loop-exit predicate. Required for conditional and loop nodes.
	Condition string `json:"condition,omitempty" yaml:"condition,omitempty"`

	// MaxIterations bounds dispatches of a loop node independent of the
	// engine's global cap. Required (>= 1) for loop nodes.
	MaxIterations int `json:"max_iterations,omitempty" yaml:"max_iterations,omitempty"`
}

// Edge is a directed, optionally labeled connection between two nodes.
type Edge struct {
	From  string `json:"from_node" yaml:"from_node"`
	To    string `json:"to_node" yaml:"to_node"`
	Label string `json:"label,omitempty" yaml:"label,omitempty"`
}

// NormalizeLabel canonicalizes an edge label for matching.
func NormalizeLabel(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Definition is the document form of a graph, as submitted over the API or
// loaded from a YAML file. It is validated and compiled into a Graph before
// any run can use it.
type Definition struct {
	Name      string   `json:"name,omitempty" yaml:"name,omitempty"`
	Nodes     []Node   `json:"nodes" yaml:"nodes"`
	Edges     []Edge   `json:"edges" yaml:"edges"`
	StartNode string   `json:"start_node" yaml:"start_node"`
	EndNodes  []string `json:"end_nodes" yaml:"end_nodes"`
}

// Graph is a validated, immutable graph. Nodes are keyed by name; edge order
// from the definition is preserved. A Graph is created once and read by any
// number of concurrent runs.
type Graph struct {
	Name        string
	Nodes       map[string]Node
	Edges       []Edge
	Start       string
	Fingerprint string

	ends     map[string]struct{}
	outgoing map[string][]Edge
	def      Definition
}

// Definition returns the definition the graph was built from, with node and
// edge order preserved.
func (g *Graph) Definition() Definition {
	return g.def
}

// Compile validates def and builds the immutable Graph. Validation failures
// return a *ValidationError; no partially built graph is ever returned.
func Compile(def Definition) (*Graph, error) {
	if err := ValidateOrError(def); err != nil {
		return nil, err
	}
	return NewGraph(def)
}

// NewGraph builds a Graph from def without validating it. Callers outside
// tests should use Compile; a graph that skipped validation can dead-end or
// reference unknown nodes at run time.
func NewGraph(def Definition) (*Graph, error) {
	g := &Graph{
		Name:     def.Name,
		Nodes:    make(map[string]Node, len(def.Nodes)),
		Edges:    append([]Edge(nil), def.Edges...),
		Start:    def.StartNode,
		ends:     make(map[string]struct{}, len(def.EndNodes)),
		outgoing: make(map[string][]Edge),
		def:      def,
	}
	for _, n := range def.Nodes {
		g.Nodes[n.Name] = n
	}
	for _, name := range def.EndNodes {
		g.ends[name] = struct{}{}
	}
	for _, e := range def.Edges {
		g.outgoing[e.From] = append(g.outgoing[e.From], e)
	}

	fp, err := fingerprint(def)
	if err != nil {
		return nil, fmt.Errorf("fingerprint graph %q: %w", def.Name, err)
	}
	g.Fingerprint = fp
	return g, nil
}

// Outgoing returns the outgoing edges of a node in definition order.
func (g *Graph) Outgoing(from string) []Edge {
	return g.outgoing[from]
}

// OutgoingLabeled returns the first outgoing edge whose label matches
// (case-insensitive).
func (g *Graph) OutgoingLabeled(from, label string) (Edge, bool) {
	want := NormalizeLabel(label)
	for _, e := range g.outgoing[from] {
		if NormalizeLabel(e.Label) == want {
			return e, true
		}
	}
	return Edge{}, false
}

// IsEnd reports whether name is a terminal node.
func (g *Graph) IsEnd(name string) bool {
	_, ok := g.ends[name]
	return ok
}

// EndNodes returns the terminal node names.
func (g *Graph) EndNodes() []string {
	out := make([]string, 0, len(g.ends))
	for name := range g.ends {
		out = append(out, name)
	}
	return out
}

// fingerprint hashes the canonical JSON encoding of the definition. Two
// submissions of the same document always produce the same fingerprint.
func fingerprint(def Definition) (string, error) {
	b, err := json.Marshal(def)
	if err != nil {
		return "", err
	}
	h := blake3.New()
	if _, err := h.Write(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
