package workflow

import (
	"errors"
	"strings"
	"testing"
)

func linearDef() Definition {
	return Definition{
		Name: "linear",
		Nodes: []Node{
			{Name: "a", Kind: KindSimple, ToolName: "noop"},
			{Name: "b", Kind: KindSimple, ToolName: "noop"},
			{Name: "end", Kind: KindSimple},
		},
		Edges: []Edge{
			{From: "a", To: "b"},
			{From: "b", To: "end"},
		},
		StartNode: "a",
		EndNodes:  []string{"end"},
	}
}

func TestValidate_OK(t *testing.T) {
	if err := ValidateOrError(linearDef()); err != nil {
		t.Fatalf("linear graph should validate: %v", err)
	}
	if err := ValidateOrError(CodeReview()); err != nil {
		t.Fatalf("code review graph should validate: %v", err)
	}
}

func TestValidate_Rules(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Definition)
		rule   string
	}{
		{
			name:   "duplicate node name",
			mutate: func(d *Definition) { d.Nodes = append(d.Nodes, Node{Name: "a", Kind: KindSimple}) },
			rule:   "node_names_unique",
		},
		{
			name:   "edge to unknown node",
			mutate: func(d *Definition) { d.Edges[0].To = "ghost" },
			rule:   "edge_endpoints_exist",
		},
		{
			name:   "missing start node",
			mutate: func(d *Definition) { d.StartNode = "ghost" },
			rule:   "start_node",
		},
		{
			name:   "empty start node",
			mutate: func(d *Definition) { d.StartNode = "" },
			rule:   "start_node",
		},
		{
			name:   "unknown end node",
			mutate: func(d *Definition) { d.EndNodes = []string{"ghost"} },
			rule:   "end_nodes",
		},
		{
			name:   "no end nodes",
			mutate: func(d *Definition) { d.EndNodes = nil },
			rule:   "end_nodes",
		},
		{
			name:   "bad kind",
			mutate: func(d *Definition) { d.Nodes[0].Kind = "parallel" },
			rule:   "node_kind",
		},
		{
			name: "conditional without condition",
			mutate: func(d *Definition) {
				d.Nodes[0].Kind = KindConditional
				d.Edges = []Edge{
					{From: "a", To: "b", Label: "true"},
					{From: "a", To: "end", Label: "false"},
					{From: "b", To: "end"},
				}
			},
			rule: "condition_required",
		},
		{
			name: "condition syntax error",
			mutate: func(d *Definition) {
				d.Nodes[0].Kind = KindConditional
				d.Nodes[0].Condition = "score >="
				d.Edges = []Edge{
					{From: "a", To: "b", Label: "true"},
					{From: "a", To: "end", Label: "false"},
					{From: "b", To: "end"},
				}
			},
			rule: "condition_syntax",
		},
		{
			name: "loop without max_iterations",
			mutate: func(d *Definition) {
				d.Nodes[0].Kind = KindLoop
				d.Nodes[0].Condition = "done"
				d.Edges = []Edge{
					{From: "a", To: "a", Label: "continue"},
					{From: "a", To: "b", Label: "exit"},
					{From: "b", To: "end"},
				}
			},
			rule: "loop_max_iterations",
		},
		{
			name:   "simple node with two outgoing edges",
			mutate: func(d *Definition) { d.Edges = append(d.Edges, Edge{From: "a", To: "end"}) },
			rule:   "edge_cardinality",
		},
		{
			name: "conditional missing false edge",
			mutate: func(d *Definition) {
				d.Nodes[0].Kind = KindConditional
				d.Nodes[0].Condition = "true"
				d.Edges = []Edge{
					{From: "a", To: "b", Label: "true"},
					{From: "a", To: "end", Label: "yes"},
					{From: "b", To: "end"},
				}
			},
			rule: "edge_labels",
		},
		{
			name: "loop missing exit edge",
			mutate: func(d *Definition) {
				d.Nodes[0].Kind = KindLoop
				d.Nodes[0].Condition = "done"
				d.Nodes[0].MaxIterations = 2
				d.Edges = []Edge{
					{From: "a", To: "a", Label: "continue"},
					{From: "a", To: "b", Label: "loop"},
					{From: "b", To: "end"},
				}
			},
			rule: "edge_labels",
		},
	}

	for _, tc := range cases {
		def := linearDef()
		tc.mutate(&def)
		err := ValidateOrError(def)
		if err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("%s: error %v is not *ValidationError", tc.name, err)
		}
		found := false
		for _, d := range verr.Diagnostics {
			if d.Rule == tc.rule {
				found = true
			}
		}
		if !found {
			t.Fatalf("%s: rule %q not among diagnostics: %+v", tc.name, tc.rule, verr.Diagnostics)
		}
	}
}

func TestValidate_Warnings(t *testing.T) {
	def := linearDef()
	def.Nodes[0].Condition = "unused > 0"
	def.Edges = append(def.Edges, Edge{From: "end", To: "a"})

	// Warnings alone must not reject the graph.
	if err := ValidateOrError(def); err != nil {
		t.Fatalf("warnings should not fail validation: %v", err)
	}
	var rules []string
	for _, d := range Validate(def) {
		if d.Severity == SeverityWarning {
			rules = append(rules, d.Rule)
		}
	}
	joined := strings.Join(rules, ",")
	for _, want := range []string{"condition_unused", "end_node_outgoing"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("expected warning %q, got %v", want, rules)
		}
	}
}

func TestCompile(t *testing.T) {
	g, err := Compile(CodeReview())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if g.Start != "extract" {
		t.Fatalf("start = %q", g.Start)
	}
	if !g.IsEnd("end") || g.IsEnd("extract") {
		t.Fatal("end-node classification wrong")
	}
	if got := len(g.Outgoing("quality_check")); got != 2 {
		t.Fatalf("quality_check outgoing = %d, want 2", got)
	}
	if _, ok := g.OutgoingLabeled("quality_check", "EXIT"); !ok {
		t.Fatal("label matching should be case-insensitive")
	}
	if g.Fingerprint == "" {
		t.Fatal("missing fingerprint")
	}

	g2, err := Compile(CodeReview())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if g2.Fingerprint != g.Fingerprint {
		t.Fatal("fingerprint not deterministic")
	}

	def := CodeReview()
	def.Nodes[4].MaxIterations = 5
	g3, err := Compile(def)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if g3.Fingerprint == g.Fingerprint {
		t.Fatal("fingerprint should change with the definition")
	}
}

func TestCompile_RejectsInvalid(t *testing.T) {
	def := linearDef()
	def.StartNode = "ghost"
	if _, err := Compile(def); err == nil {
		t.Fatal("expected compile failure")
	}
}
