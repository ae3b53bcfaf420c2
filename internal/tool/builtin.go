package tool

import (
	"context"
	"strings"
)

// RegisterBuiltins installs the code-review analysis tools used by the
// bundled workflow.
func RegisterBuiltins(r *Registry) error {
	codeSchema := map[string]any{
		"type":       "object",
		"properties": map[string]any{"code": map[string]any{"type": "string"}},
		"required":   []any{"code"},
	}
	builtins := []Registered{
		{
			Name:        "extract_functions",
			Description: "Extract function definitions from code",
			InputSchema: codeSchema,
			Tool:        Func(extractFunctions),
		},
		{
			Name:        "check_complexity",
			Description: "Measure control-flow complexity",
			InputSchema: codeSchema,
			Tool:        Func(checkComplexity),
		},
		{
			Name:        "detect_issues",
			Description: "Detect style issues (long lines, missing docstrings)",
			InputSchema: codeSchema,
			Tool:        Func(detectIssues),
		},
		{
			Name:        "suggest_improvements",
			Description: "Suggest improvements from collected metrics",
			Tool:        Func(suggestImprovements),
		},
		{
			Name:        "calculate_quality_score",
			Description: "Compute the overall quality score",
			Tool:        Func(calculateQualityScore),
		},
	}
	for _, t := range builtins {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}

func extractFunctions(_ context.Context, state map[string]any) (map[string]any, error) {
	code := stateString(state, "code")
	var functions []any
	for i, line := range strings.Split(code, "\n") {
		if !strings.Contains(line, "def ") {
			continue
		}
		rest := line[strings.Index(line, "def ")+len("def "):]
		name := rest
		if idx := strings.Index(rest, "("); idx >= 0 {
			name = rest[:idx]
		}
		functions = append(functions, map[string]any{
			"name": strings.TrimSpace(name),
			"line": i + 1,
		})
	}
	state["functions"] = functions
	state["function_count"] = len(functions)
	return state, nil
}

func checkComplexity(_ context.Context, state map[string]any) (map[string]any, error) {
	code := stateString(state, "code")
	score := 0
	for _, line := range strings.Split(code, "\n") {
		for _, kw := range []string{"if", "for", "while", "elif"} {
			if strings.Contains(line, kw) {
				score++
				break
			}
		}
	}
	level := "low"
	switch {
	case score > 10:
		level = "high"
	case score > 5:
		level = "medium"
	}
	state["complexity_score"] = score
	state["complexity_level"] = level
	return state, nil
}

func detectIssues(_ context.Context, state map[string]any) (map[string]any, error) {
	code := stateString(state, "code")
	lines := strings.Split(code, "\n")
	var issues []any
	for i, line := range lines {
		if len(line) > 100 {
			issues = append(issues, map[string]any{
				"line":    i + 1,
				"type":    "long_line",
				"message": "Line exceeds 100 characters",
			})
		}
		if strings.Contains(line, "def ") && i+1 < len(lines) {
			next := strings.TrimSpace(lines[i+1])
			if !strings.HasPrefix(next, `"""`) && !strings.HasPrefix(next, "'''") {
				issues = append(issues, map[string]any{
					"line":    i + 1,
					"type":    "missing_docstring",
					"message": "Function missing docstring",
				})
			}
		}
	}
	state["issues"] = issues
	state["issue_count"] = len(issues)
	return state, nil
}

func suggestImprovements(_ context.Context, state map[string]any) (map[string]any, error) {
	var suggestions []any
	if stateString(state, "complexity_level") == "high" {
		suggestions = append(suggestions, "Consider breaking down complex functions into smaller ones")
	}
	if stateInt(state, "issue_count") > 5 {
		suggestions = append(suggestions, "Address code style issues for better readability")
	}
	if stateInt(state, "function_count") > 10 {
		suggestions = append(suggestions, "Consider organizing code into multiple modules")
	}
	state["suggestions"] = suggestions
	return state, nil
}

func calculateQualityScore(_ context.Context, state map[string]any) (map[string]any, error) {
	score := 100
	score -= stateInt(state, "issue_count") * 5
	complexity := stateInt(state, "complexity_score")
	switch {
	case complexity > 15:
		score -= 20
	case complexity > 10:
		score -= 10
	}
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	state["quality_score"] = score
	state["iteration"] = stateInt(state, "iteration") + 1
	return state, nil
}

func stateString(state map[string]any, key string) string {
	if v, ok := state[key].(string); ok {
		return v
	}
	return ""
}

// stateInt reads a numeric state value regardless of how it was encoded:
// tools write int, JSON round-trips produce float64.
func stateInt(state map[string]any, key string) int {
	switch v := state[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
