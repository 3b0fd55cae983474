package loopdetect

import "github.com/agentforge/fixloop/pkg/state"

// Budget tracks the hard absolute step cap and the no-progress counter
// reset policy on top of the stateless Detect function.
type Budget struct {
	thresholds       Thresholds
	noProgressStreak int
	lastVerification string
}

// NewBudget returns a Budget using the given thresholds.
func NewBudget(t Thresholds) *Budget {
	return &Budget{thresholds: t}
}

// Observe updates the no-progress streak from the latest verification
// state; a step that improves verification resets the counter
// (spec.md §4.4's progress-extension policy).
func (b *Budget) Observe(verificationSummary string) {
	if verificationSummary != b.lastVerification {
		b.noProgressStreak = 0
		b.lastVerification = verificationSummary
		return
	}
	b.noProgressStreak++
}

// HardCapExceeded reports whether the absolute step count has exceeded
// the configured hard cap.
func (b *Budget) HardCapExceeded(totalSteps int) bool {
	return totalSteps > b.thresholds.HardCap
}

// Check runs Detect plus the hard cap; the hard cap is reported as a
// no_progress detection with maximum confidence so callers don't need a
// separate code path for it.
func (b *Budget) Check(recent []state.ActionRecord, activeFacts []state.Fact, totalSteps int) *Detection {
	if b.HardCapExceeded(totalSteps) {
		return &Detection{
			LoopType:    LoopNoProgress,
			Confidence:  1.0,
			Description: "absolute step cap exceeded",
			Suggestions: []string{"escalate: task has exceeded its hard step budget"},
		}
	}
	return Detect(recent, activeFacts, b.thresholds)
}
