package workflow

import (
	"os"
	"path/filepath"
	"testing"
)

const yamlDef = `
name: approval
nodes:
  - name: score
    kind: simple
    tool_name: scorer
  - name: gate
    kind: conditional
    condition: score >= 50
  - name: approved
    kind: simple
  - name: rejected
    kind: simple
edges:
  - from_node: score
    to_node: gate
  - from_node: gate
    to_node: approved
    label: "true"
  - from_node: gate
    to_node: rejected
    label: "false"
start_node: score
end_nodes: [approved, rejected]
`

func TestDecodeDefinition_YAML(t *testing.T) {
	def, err := DecodeDefinition([]byte(yamlDef))
	if err != nil {
		t.Fatalf("DecodeDefinition: %v", err)
	}
	if def.Name != "approval" || len(def.Nodes) != 4 || len(def.Edges) != 3 {
		t.Fatalf("unexpected decode: %+v", def)
	}
	if def.Nodes[1].Kind != KindConditional || def.Nodes[1].Condition != "score >= 50" {
		t.Fatalf("gate node decoded wrong: %+v", def.Nodes[1])
	}
	if _, err := Compile(def); err != nil {
		t.Fatalf("decoded definition should compile: %v", err)
	}
}

func TestDecodeDefinition_JSON(t *testing.T) {
	src := `{"name":"tiny","nodes":[{"name":"a","kind":"simple"},{"name":"end","kind":"simple"}],` +
		`"edges":[{"from_node":"a","to_node":"end"}],"start_node":"a","end_nodes":["end"]}`
	def, err := DecodeDefinition([]byte(src))
	if err != nil {
		t.Fatalf("DecodeDefinition: %v", err)
	}
	if def.Name != "tiny" || def.Edges[0].To != "end" {
		t.Fatalf("unexpected decode: %+v", def)
	}
}

func TestDecodeDefinition_Rejects(t *testing.T) {
	for _, src := range []string{
		"",
		"nodes: [{name: a, kind: simple, bogus_field: 1}]",
		"{not yaml",
	} {
		if _, err := DecodeDefinition([]byte(src)); err == nil {
			t.Fatalf("DecodeDefinition(%q): expected error", src)
		}
	}
}

func TestLoadGlob(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "nested")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	write := func(path, body string) {
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write(filepath.Join(dir, "b.yaml"), yamlDef)
	write(filepath.Join(sub, "a.yaml"), yamlDef)
	write(filepath.Join(dir, "ignored.txt"), "not a workflow")

	defs, err := LoadGlob(filepath.Join(dir, "**", "*.yaml"))
	if err != nil {
		t.Fatalf("LoadGlob: %v", err)
	}
	if len(defs) != 2 {
		t.Fatalf("LoadGlob matched %d files, want 2", len(defs))
	}

	// No matches is not an error.
	defs, err = LoadGlob(filepath.Join(dir, "**", "*.json"))
	if err != nil || len(defs) != 0 {
		t.Fatalf("empty glob: defs=%v err=%v", defs, err)
	}
}
