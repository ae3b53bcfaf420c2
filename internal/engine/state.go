package engine

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/zeebo/blake3"
)

// CloneState deep-copies a state map. Snapshots recorded in the run log and
// the copies handed to tools must never alias the live state; a tool mutating
// its input cannot retroactively change an earlier log entry.
func CloneState(state map[string]any) map[string]any {
	if state == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(state))
	for k, v := range state {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, el := range x {
			out[k] = cloneValue(el)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, el := range x {
			out[i] = cloneValue(el)
		}
		return out
	default:
		// Scalars (and anything else) are treated as immutable values.
		return x
	}
}

// StateDigest returns the blake3 hex digest of the canonical JSON encoding
// of state. Map keys are sorted by the JSON encoder, so equal states always
// digest equally.
func StateDigest(state map[string]any) (string, error) {
	b, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("encode state: %w", err)
	}
	h := blake3.New()
	if _, err := h.Write(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
