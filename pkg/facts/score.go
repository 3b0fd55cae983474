package facts

import (
	"sort"

	"github.com/agentforge/fixloop/pkg/state"
)

// ScoringWeights parameterizes compaction scoring. Defaults are an Open
// Question decision recorded in SPEC_FULL.md §9 / DESIGN.md, exposed here
// so operators can retune without recompiling.
type ScoringWeights struct {
	ConfidenceWeight float64
	CategoryBonus    float64
	RecencyWeight    float64
	RecencyWindow    int
}

// DefaultWeights is the decided default scoring policy.
var DefaultWeights = ScoringWeights{
	ConfidenceWeight: 1.0,
	CategoryBonus:    0.3,
	RecencyWeight:    0.05,
	RecencyWindow:    20,
}

// Score computes a compaction score for a fact at a given current step.
func Score(f state.Fact, currentStep int, w ScoringWeights) float64 {
	score := f.Confidence * w.ConfidenceWeight
	if f.Category == state.CategoryVerification || f.Category == state.CategoryError {
		score += w.CategoryBonus
	}
	if w.RecencyWindow > 0 {
		age := currentStep - f.Step
		if age < 0 {
			age = 0
		}
		recency := 1.0 - float64(age)/float64(w.RecencyWindow)
		if recency < 0 {
			recency = 0
		}
		bonus := w.RecencyWeight * recency
		if bonus > 0.2 {
			bonus = 0.2
		}
		score += bonus
	}
	return score
}

// DefaultMaxActiveFacts is the compaction trigger threshold (spec.md
// §4.2's "e.g., 15").
const DefaultMaxActiveFacts = 15

// Compact keeps the top maxActive active facts by score when the active
// set exceeds maxActive. Superseded facts are always kept (they remain in
// the store per spec.md §3's invariant) and the superseded id set is
// returned unchanged; the only facts removed from the returned slice are
// active facts that fall outside the scored top set. Nothing prunes
// superseded facts.
func Compact(all []state.Fact, superseded map[string]bool, currentStep, maxActive int, w ScoringWeights) ([]state.Fact, map[string]bool) {
	active := Active(all, superseded)
	if len(active) <= maxActive {
		return all, superseded
	}

	type scored struct {
		fact  state.Fact
		score float64
	}
	ranked := make([]scored, len(active))
	for i, f := range active {
		ranked[i] = scored{fact: f, score: Score(f, currentStep, w)}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	keep := make(map[string]bool, maxActive)
	for i := 0; i < maxActive && i < len(ranked); i++ {
		keep[ranked[i].fact.ID] = true
	}

	out := make([]state.Fact, 0, len(all))
	for _, f := range all {
		if superseded[f.ID] {
			// Superseded facts are retained verbatim; they are the audit
			// trail, not subject to the active-set score cut.
			out = append(out, f)
			continue
		}
		if keep[f.ID] {
			out = append(out, f)
		}
	}
	return out, superseded
}
