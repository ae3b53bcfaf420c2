package tool

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	err := r.Register(Registered{
		Name: "echo",
		Tool: Func(func(_ context.Context, s map[string]any) (map[string]any, error) {
			s["seen"] = true
			return s, nil
		}),
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	got, err := r.Get("echo")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	out, err := got.Tool.Execute(context.Background(), map[string]any{})
	if err != nil || out["seen"] != true {
		t.Fatalf("Execute: out=%v err=%v", out, err)
	}

	_, err = r.Get("missing")
	var nf *NotFoundError
	if !errors.As(err, &nf) || nf.Name != "missing" {
		t.Fatalf("Get(missing) = %v, want *NotFoundError", err)
	}
}

func TestRegistry_RejectsBadRegistrations(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(Registered{Name: "", Tool: Func(nil)}); err == nil {
		t.Fatal("empty name should be rejected")
	}
	if err := r.Register(Registered{Name: "x"}); err == nil {
		t.Fatal("nil tool should be rejected")
	}
	if err := r.Register(Registered{
		Name:        "x",
		Tool:        Func(func(context.Context, map[string]any) (map[string]any, error) { return nil, nil }),
		InputSchema: map[string]any{"type": 42},
	}); err == nil {
		t.Fatal("invalid schema should be rejected")
	}
}

func TestRegistry_SchemaValidation(t *testing.T) {
	r := NewRegistry()
	err := r.Register(Registered{
		Name: "needs_code",
		InputSchema: map[string]any{
			"type":     "object",
			"required": []any{"code"},
		},
		Tool: Func(func(_ context.Context, s map[string]any) (map[string]any, error) { return s, nil }),
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	reg, err := r.Get("needs_code")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if err := reg.CheckInput(map[string]any{"code": "x"}); err != nil {
		t.Fatalf("CheckInput with code: %v", err)
	}
	if err := reg.CheckInput(map[string]any{"other": 1}); err == nil {
		t.Fatal("CheckInput without code should fail")
	}
}

func TestRegistry_Names(t *testing.T) {
	r := NewRegistry()
	if err := RegisterBuiltins(r); err != nil {
		t.Fatalf("RegisterBuiltins: %v", err)
	}
	want := []string{
		"calculate_quality_score",
		"check_complexity",
		"detect_issues",
		"extract_functions",
		"suggest_improvements",
	}
	if got := r.Names(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Names() = %v, want %v", got, want)
	}
}
