package facts

import (
	"fmt"
	"strings"

	"github.com/agentforge/fixloop/pkg/state"
)

// ModelExtractor is the optional tier-3 fallback: a model-based
// extraction hook for tools with no matching rule, capped at 0.8
// confidence (spec.md §4.2 point 3). Closed function-value dispatch, not
// dynamic lookup by name, per spec.md §9's "actions are a closed set"
// guidance applied equally to extraction hooks.
type ModelExtractor func(tool, output string) (statement string, category state.FactCategory, ok bool)

// Extractor converts raw tool output into Fact records.
type Extractor struct {
	idSeq   int
	model   ModelExtractor
}

// NewExtractor returns an Extractor. model may be nil, in which case tier
// 3 is skipped and unmatched tools always fall back to tier 2.
func NewExtractor(model ModelExtractor) *Extractor {
	return &Extractor{model: model}
}

const modelExtractionConfidenceCap = 0.8
const fallbackConfidence = 0.7

// Extract builds facts for one tool invocation's raw output. active is
// the current active-fact view, consulted to compute supersession for
// matching subjects.
func (e *Extractor) Extract(tool, output string, success bool, step int, active []state.Fact) []state.Fact {
	if rules, ok := ruleset[tool]; ok {
		for _, r := range rules {
			m := r.Pattern.FindStringSubmatch(output)
			if m == nil {
				continue
			}
			subject := r.Subject(m)
			f := state.Fact{
				ID:         e.nextID(tool),
				Category:   r.Category,
				Statement:  r.Statement(m),
				Confidence: r.Confidence,
				Source:     tool + ":rule",
				Step:       step,
				Subject:    subject,
			}
			if prior := findActiveBySubject(active, r.Category, subject); prior != "" {
				f.Supersedes = prior
			}
			return []state.Fact{f}
		}
	}

	if e.model != nil {
		if statement, category, ok := e.model(tool, output); ok {
			return []state.Fact{{
				ID:         e.nextID(tool),
				Category:   category,
				Statement:  statement,
				Confidence: modelExtractionConfidenceCap,
				Source:     tool + ":model",
				Step:       step,
			}}
		}
	}

	// Tier 2: generic fallback fact.
	statement := fmt.Sprintf("%s succeeded", tool)
	category := state.CategoryInference
	if !success {
		statement = fmt.Sprintf("%s failed", tool)
		category = state.CategoryError
	}
	return []state.Fact{{
		ID:         e.nextID(tool),
		Category:   category,
		Statement:  statement,
		Confidence: fallbackConfidence,
		Source:     tool + ":fallback",
		Step:       step,
	}}
}

func (e *Extractor) nextID(tool string) string {
	e.idSeq++
	return fmt.Sprintf("f-%s-%d", strings.ReplaceAll(tool, "_", "-"), e.idSeq)
}

// findActiveBySubject returns the most recent active fact sharing
// category and the exact canonical subject spec.md §4.2 describes
// ("a newer 'Check passed' supersedes any prior verification fact about
// the same check") — e.g. run_check's "check:complexity:Foo" and
// "check:complexity:Bar" subjects are distinct and never supersede each other,
// even though both come from the same tool and category.
func findActiveBySubject(active []state.Fact, category state.FactCategory, subject string) string {
	var latestID string
	latestStep := -1
	for _, f := range active {
		if f.Category != category || f.Subject != subject {
			continue
		}
		if f.Step > latestStep {
			latestStep = f.Step
			latestID = f.ID
		}
	}
	return latestID
}
