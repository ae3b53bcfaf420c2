package store

import (
	"errors"
	"testing"

	"github.com/nvoss/stepflow/internal/engine"
	"github.com/nvoss/stepflow/internal/workflow"
)

func testGraph(t *testing.T) *workflow.Graph {
	t.Helper()
	g, err := workflow.Compile(workflow.Definition{
		Name: "two-step",
		Nodes: []workflow.Node{
			{Name: "a", Kind: workflow.KindSimple},
			{Name: "end", Kind: workflow.KindSimple},
		},
		Edges:     []workflow.Edge{{From: "a", To: "end"}},
		StartNode: "a",
		EndNodes:  []string{"end"},
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return g
}

func TestGraphStore(t *testing.T) {
	s := NewGraphStore()
	g := testGraph(t)

	id1 := s.Put(g)
	id2 := s.Put(g)
	if id1 == "" || id1 == id2 {
		t.Fatalf("ids not unique: %q %q", id1, id2)
	}

	got, err := s.Get(id1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != g {
		t.Fatal("Get returned a different graph")
	}

	_, err = s.Get("no-such-id")
	var nf *GraphNotFoundError
	if !errors.As(err, &nf) || nf.ID != "no-such-id" {
		t.Fatalf("err = %v, want GraphNotFoundError", err)
	}

	infos := s.List()
	if len(infos) != 2 {
		t.Fatalf("List returned %d rows", len(infos))
	}
	for i, info := range infos {
		if info.Name != "two-step" || info.NodeCount != 2 || info.Fingerprint != g.Fingerprint {
			t.Fatalf("row %d = %+v", i, info)
		}
		if i > 0 && infos[i-1].ID >= info.ID {
			t.Fatal("List not sorted by ID")
		}
	}
}

func TestRunRegistry(t *testing.T) {
	r := NewRunRegistry()
	run := &engine.Run{
		ID:     "r1",
		Status: engine.StatusRunning,
		State:  map[string]any{"score": 40},
	}
	if err := r.Save(run); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Mutating the live record after Save must not reach stored copies.
	run.State["score"] = 999
	got, err := r.Get("r1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.State["score"] != 40 {
		t.Fatalf("stored record aliased live state: score = %v", got.State["score"])
	}

	// Mutating a fetched copy must not reach the store either.
	got.State["score"] = -1
	again, _ := r.Get("r1")
	if again.State["score"] != 40 {
		t.Fatal("Get returned an aliased record")
	}

	// Later saves overwrite.
	run.Status = engine.StatusCompleted
	if err := r.Save(run); err != nil {
		t.Fatal(err)
	}
	final, _ := r.Get("r1")
	if final.Status != engine.StatusCompleted {
		t.Fatalf("status = %s after resave", final.Status)
	}

	_, err = r.Get("missing")
	var nf *RunNotFoundError
	if !errors.As(err, &nf) || nf.ID != "missing" {
		t.Fatalf("err = %v, want RunNotFoundError", err)
	}
}

func TestRunRegistry_RejectsEmptyID(t *testing.T) {
	r := NewRunRegistry()
	if err := r.Save(&engine.Run{}); err == nil {
		t.Fatal("Save accepted a record with no id")
	}
	if err := r.Save(nil); err == nil {
		t.Fatal("Save accepted nil")
	}
}

func TestRunRegistry_List(t *testing.T) {
	r := NewRunRegistry()
	for _, id := range []string{"c", "a", "b"} {
		if err := r.Save(&engine.Run{ID: id}); err != nil {
			t.Fatal(err)
		}
	}
	ids := r.List()
	if len(ids) != 3 || ids[0] != "a" || ids[2] != "c" {
		t.Fatalf("List = %v", ids)
	}
}
