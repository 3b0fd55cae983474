package facts

import "github.com/agentforge/fixloop/pkg/state"

// Active returns facts not present in superseded, preserving order.
func Active(all []state.Fact, superseded map[string]bool) []state.Fact {
	out := make([]state.Fact, 0, len(all))
	for _, f := range all {
		if superseded[f.ID] {
			continue
		}
		out = append(out, f)
	}
	return out
}

// ByCategory filters active facts to one category.
func ByCategory(active []state.Fact, category state.FactCategory) []state.Fact {
	out := make([]state.Fact, 0, len(active))
	for _, f := range active {
		if f.Category == category {
			out = append(out, f)
		}
	}
	return out
}

// Recent returns the last n facts by step (assumes all is already in
// append order, which Txn.AppendFacts preserves).
func Recent(active []state.Fact, n int) []state.Fact {
	if n <= 0 || len(active) <= n {
		return active
	}
	return active[len(active)-n:]
}

// HighConfidence filters active facts at or above a confidence threshold.
func HighConfidence(active []state.Fact, threshold float64) []state.Fact {
	out := make([]state.Fact, 0, len(active))
	for _, f := range active {
		if f.Confidence >= threshold {
			out = append(out, f)
		}
	}
	return out
}
