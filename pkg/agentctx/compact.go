package agentctx

import "strings"

const truncationMarker = "\n... [truncated] ...\n"

// compact enforces the token budget in three stages, stopping as soon as
// the rendered payload fits: (1) keep only the five most recent facts of
// each category, (2) truncate the precomputed source excerpt to head N
// lines, (3) truncate analysis detail fields. Stage (1) selects by
// position in ctx.Understanding (append order), not by facts.Score; it
// only trims the per-step rendered view, not the persisted store.
func compact(ctx *StepContext, budget Budget) {
	if renderedTokens(ctx) <= budget.MaxTokens {
		return
	}

	dropOldestFactsBeyondTop5(ctx)
	if renderedTokens(ctx) <= budget.MaxTokens {
		return
	}

	truncateSourceExcerpt(ctx, budget.SourceHeadLines)
	if renderedTokens(ctx) <= budget.MaxTokens {
		return
	}

	truncateAnalysisDetail(ctx)
}

func renderedTokens(ctx *StepContext) int {
	var b strings.Builder
	for _, views := range ctx.Understanding {
		for _, v := range views {
			b.WriteString(v.Rendered)
		}
	}
	b.WriteString(ctx.Analysis.SourceExcerpt)
	for _, s := range ctx.Analysis.ExtractionSuggestions {
		b.WriteString(s.Tag)
	}
	for _, r := range ctx.Recent {
		b.WriteString(r.Summary)
	}
	return CountTokens(b.String())
}

func dropOldestFactsBeyondTop5(ctx *StepContext) {
	for cat, views := range ctx.Understanding {
		if len(views) <= 5 {
			continue
		}
		ctx.Understanding[cat] = views[len(views)-5:]
	}
}

func truncateSourceExcerpt(ctx *StepContext, headLines int) {
	if headLines <= 0 {
		headLines = 40
	}
	lines := strings.Split(ctx.Analysis.SourceExcerpt, "\n")
	if len(lines) <= headLines {
		return
	}
	ctx.Analysis.SourceExcerpt = strings.Join(lines[:headLines], "\n") + truncationMarker
	ctx.Analysis.Truncated = true
}

func truncateAnalysisDetail(ctx *StepContext) {
	if len(ctx.Analysis.ExtractionSuggestions) > 3 {
		ctx.Analysis.ExtractionSuggestions = ctx.Analysis.ExtractionSuggestions[:3]
	}
}
