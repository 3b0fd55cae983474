package executor

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/agentforge/fixloop/pkg/agentctx"
	"github.com/agentforge/fixloop/pkg/facts"
	"github.com/agentforge/fixloop/pkg/llm"
	"github.com/agentforge/fixloop/pkg/logger"
	"github.com/agentforge/fixloop/pkg/loopdetect"
	"github.com/agentforge/fixloop/pkg/phase"
	"github.com/agentforge/fixloop/pkg/state"
	"github.com/agentforge/fixloop/pkg/tool"
)

// DefaultMaxActiveFacts bounds the fact store before compaction runs.
// spec.md leaves the exact number to the implementation (§9 Open
// Questions); 40 keeps a full phase's worth of tool observations in
// context without the Context Builder's own truncation pass doing all
// the work.
const DefaultMaxActiveFacts = 40

// recentActionWindow is how many trailing ActionRecords the Loop
// Detector and Context Builder each see; spec.md §4.4's thresholds
// (identical=3, cycle=2, semantic=4, no_progress=4) all fit comfortably
// inside it.
const recentActionWindow = 10

// Config wires the Executor to its collaborators. All fields are
// required except Metrics, which defaults to a private registry.
type Config struct {
	ProjectRoot    string
	SystemPrompt   string
	Tools          *tool.Registry
	Driver         llm.Driver
	Extractor      *facts.Extractor
	ContextBudget  agentctx.Budget
	LoopThresholds loopdetect.Thresholds
	MaxActiveFacts int
	ScoringWeights facts.ScoringWeights
	Metrics        *Metrics
}

// Executor runs the single-step orchestration algorithm of spec.md §4.8.
type Executor struct {
	cfg Config
}

// New returns an Executor, filling in defaults for zero-valued Config
// fields.
func New(cfg Config) *Executor {
	if cfg.MaxActiveFacts == 0 {
		cfg.MaxActiveFacts = DefaultMaxActiveFacts
	}
	if cfg.LoopThresholds == (loopdetect.Thresholds{}) {
		cfg.LoopThresholds = loopdetect.DefaultThresholds
	}
	if cfg.ScoringWeights == (facts.ScoringWeights{}) {
		cfg.ScoringWeights = facts.DefaultWeights
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NewMetrics()
	}
	return &Executor{cfg: cfg}
}

// Step runs exactly one iteration of the fifteen-step algorithm against
// an already-begun transaction and finishes that transaction itself: on
// a nil error all of this step's writes have been committed (including
// an early return at a terminal phase), and a context-build failure
// rolls the transaction back before returning its error.
func (e *Executor) Step(ctx context.Context, txn *state.Txn) (StepOutcome, error) {
	start := time.Now()

	// 1. Load task state, facts, actions, precomputed.
	ts, allFacts, actions, precomputed := txn.Load()
	superseded := txn.Superseded()
	active := facts.Active(allFacts, superseded)
	recent := tail(actions, recentActionWindow)

	// Whether the precomputation pass (pkg/fixworkflow) already knows
	// which function and lines the violation points at. Every task is
	// precomputed before creation, so this is normally true from step 1 —
	// that is how the happy-path scenario skips straight from init to
	// implement.
	codeStructureFacts := precomputed.ViolatingFunction.Name != ""

	// 2. Ask Phase Machine if an auto-transition should fire; if yes,
	// apply it; if terminal, commit and return.
	preCtx := e.phaseContext(ts, recent, codeStructureFacts)
	if d := phase.AutoTransition(preCtx); d.Transition {
		ts.Phase = phase.Apply(ts.Phase, ts.Step, d)
		txn.Save(ts)
	}
	if ts.Phase.CurrentPhase.Terminal() {
		if err := txn.Commit(); err != nil {
			return StepOutcome{}, err
		}
		e.cfg.Metrics.observeStep("terminal", time.Since(start).Seconds())
		logger.Step(ts.Task.TaskID, string(ts.Phase.CurrentPhase), ts.Step).Info("phase machine reached a terminal phase")
		return StepOutcome{Continue: false, Reason: "phase machine reached a terminal phase", TerminalPhase: ts.Phase.CurrentPhase}, nil
	}

	// 3. Build context (Context Builder); validate.
	stepCtx, err := agentctx.Build(agentctx.BuildInput{
		Task:         ts.Task,
		PhaseState:   ts.Phase,
		Verification: ts.Verification,
		ActiveFacts:  active,
		Precomputed:  precomputed,
		ActionDefs:   e.cfg.Tools.ActionDefs(),
		Recent:       recent,
		Step:         ts.Step,
		Budget:       e.cfg.ContextBudget,
	})
	if err != nil {
		txn.Rollback()
		e.cfg.Metrics.observeStep("context_invalid", time.Since(start).Seconds())
		return StepOutcome{}, fmt.Errorf("executor: build context: %w", err)
	}

	// 4. Invoke LLM; parse action.
	nextStep := ts.Step + 1
	resp, invokeErr := e.cfg.Driver.Invoke(ctx, e.cfg.SystemPrompt, stepCtx)
	modelText := renderModelResponse(resp, invokeErr)

	var (
		actionName string
		params     map[string]string
		output     string
		result     state.ActionResult
		reverted   bool
	)

	if invokeErr != nil {
		actionName = ""
		output = "ERROR: malformed_response"
		result = state.ResultFailure
	} else {
		actionName = resp.Action
		params = resp.Parameters
		reg, ok := e.cfg.Tools.Lookup(actionName)
		legal := ok && phaseLegal(reg.Phases, ts.Phase.CurrentPhase)
		switch {
		case !ok:
			output = "ERROR: unknown_action"
			result = state.ResultFailure
		case !legal:
			output = fmt.Sprintf("ERROR: action %q not legal in phase %s", actionName, ts.Phase.CurrentPhase)
			result = state.ResultFailure
		default:
			output, result, reverted = e.execute(ctx, reg, ts, params)
		}
	}

	// 9. Extract facts from output and result; append to fact store;
	// compact if needed.
	success := result == state.ResultSuccess || result == state.ResultPartial
	newFacts := e.cfg.Extractor.Extract(actionName, output, success, nextStep, active)
	if reverted {
		newFacts = append(newFacts, state.Fact{
			ID:         fmt.Sprintf("f-revert-%d", nextStep),
			Category:   state.CategoryVerification,
			Statement:  "Edit reverted due to test regression",
			Confidence: 1.0,
			Source:     actionName + ":revert",
			Step:       nextStep,
		})
	}
	txn.AppendFacts(newFacts)
	factIDs := make([]string, 0, len(newFacts))
	for _, f := range newFacts {
		factIDs = append(factIDs, f.ID)
	}
	// 10. Append ActionRecord with result, summary, fact IDs.
	durationMs := time.Since(start).Milliseconds()
	record := state.ActionRecord{
		Step:          nextStep,
		Action:        actionName,
		Target:        params["path"],
		Parameters:    toAnyMap(params),
		Result:        result,
		Summary:       summarize(output),
		FactsProduced: factIDs,
		DurationMs:    durationMs,
	}
	if strings.HasPrefix(output, "ERROR:") {
		record.Error = output
	}
	txn.AppendAction(record)
	logger.Step(ts.Task.TaskID, string(ts.Phase.CurrentPhase), nextStep).Debug("action executed",
		"action", actionName, "result", string(result), "duration_ms", durationMs)

	// 11. Write outputs/step_<n>.yaml (raw model response + tool output).
	txn.WriteOutput(state.StepOutput{
		Step:          nextStep,
		ModelResponse: modelText,
		Action:        actionName,
		Parameters:    toAnyMap(params),
		ToolOutput:    output,
		Timestamp:     time.Now().UTC(),
	})

	// Refresh state after this step's mutation (verification, files
	// examined) before the post-action phase/loop checks.
	ts2, allFacts2, actions2, _ := txn.Load()
	superseded2 := txn.Superseded()

	// Compact the fact store now that this step's facts are committed,
	// if the active set has grown past the configured cap.
	active2 := facts.Active(allFacts2, superseded2)
	if len(active2) > e.cfg.MaxActiveFacts {
		compacted, supersededOut := facts.Compact(allFacts2, superseded2, nextStep, e.cfg.MaxActiveFacts, e.cfg.ScoringWeights)
		txn.SetFacts(compacted, supersededOut)
		allFacts2 = compacted
		superseded2 = supersededOut
	}
	active2 = facts.Active(allFacts2, superseded2)

	// 12. Run Loop Detector against the updated history + facts; if
	// detected, record detection fact.
	recent2 := tail(actions2, recentActionWindow)
	budget := loopdetect.NewBudget(e.cfg.LoopThresholds)
	if det := budget.Check(recent2, active2, nextStep); det != nil {
		e.cfg.Metrics.observeLoopDetection(string(det.LoopType))
		txn.AppendFacts([]state.Fact{{
			ID:         fmt.Sprintf("loopdetect-%d", nextStep),
			Category:   state.CategoryPattern,
			Statement:  det.Description,
			Confidence: det.Confidence,
			Source:     "loopdetect:" + string(det.LoopType),
			Step:       nextStep,
		}})
		ts2.Phase = phase.Apply(ts2.Phase, nextStep, phase.Decision{
			Transition: true,
			To:         state.PhaseEscalated,
			Why:        "loop detected: " + string(det.LoopType),
		})
	}

	// 13. Ask Phase Machine to advance (advance_step) and possibly
	// auto-transition, based on this step's actual outcome.
	if !ts2.Phase.CurrentPhase.Terminal() {
		ts2.Phase = phase.AdvanceStep(ts2.Phase)
		postCtx := e.phaseContext(ts2, recent2, codeStructureFacts)
		if d := phase.AutoTransition(postCtx); d.Transition {
			ts2.Phase = phase.Apply(ts2.Phase, nextStep, d)
		}
	}
	ts2.Step = nextStep
	ts2.Verification = e.nextVerification(ts2.Verification, actionName, output, result)
	txn.Save(ts2)

	// 14. Commit transaction.
	if err := txn.Commit(); err != nil {
		return StepOutcome{}, err
	}

	// 15. Return StepOutcome{continue, reason, terminal_phase?}.
	elapsed := time.Since(start).Seconds()
	if ts2.Phase.CurrentPhase.Terminal() {
		e.cfg.Metrics.observeStep("terminal", elapsed)
		return StepOutcome{Continue: false, Reason: "reached terminal phase " + string(ts2.Phase.CurrentPhase), TerminalPhase: ts2.Phase.CurrentPhase}, nil
	}
	e.cfg.Metrics.observeStep(string(result), elapsed)
	return StepOutcome{Continue: true, Reason: "step executed", TerminalPhase: ""}, nil
}

// execute runs steps 6-8: snapshot, execute, and auto-revert-on-regression.
func (e *Executor) execute(ctx context.Context, reg tool.Registration, ts state.TaskState, params map[string]string) (output string, result state.ActionResult, reverted bool) {
	sc := tool.StepContext{
		TaskID:      ts.Task.TaskID,
		ViolationID: ts.Task.Violation.ID,
		ProjectRoot: e.cfg.ProjectRoot,
		Phase:       ts.Phase.CurrentPhase,
	}

	// 6. Snapshot any files the handler will touch.
	var snap snapshot
	mutating := bool(reg.Mutates)
	if mutating {
		snap = snapshotFile(e.cfg.ProjectRoot, params["path"])
	}

	// 7. Execute handler; capture output + timing.
	output = reg.Handler(ctx, sc, params)
	// Every handler signals failure with an "ERROR:"-prefixed string
	// (pkg/tool's documented contract); most also prefix success with
	// "SUCCESS:", but checktool's run_check/run_tests pass the external
	// runner's own stdout through unprefixed (spec.md §8's "Check PASSED"/
	// "25 passed"), so the inverse test is the one that holds for every
	// registered handler.
	success := !strings.HasPrefix(output, "ERROR:")
	result = state.ResultFailure
	if success {
		result = state.ResultSuccess
	}

	// 8. If mutating, run tests; if regression, revert and mark partial.
	if mutating && success {
		wasPassing := ts.Verification.TestsPassing
		testReg, ok := e.cfg.Tools.Lookup("run_tests")
		if ok {
			testOutput := testReg.Handler(ctx, sc, nil)
			nowPassing := TestsPassing(testOutput)
			if wasPassing && !nowPassing {
				if revertErr := snap.revert(e.cfg.ProjectRoot); revertErr == nil {
					e.cfg.Metrics.observeRevert()
					result = state.ResultPartial
					reverted = true
					output = fmt.Sprintf("%s\nERROR: test regression detected, change reverted: %s", output, summarize(testOutput))
				}
			}
		}
	}

	return output, result, reverted
}

// nextVerification folds one action's outcome into the verification
// summary the Phase Machine and Context Builder both read. run_check and
// run_tests are the only actions whose output updates it.
func (e *Executor) nextVerification(v state.VerificationState, action, output string, result state.ActionResult) state.VerificationState {
	switch action {
	case "run_check":
		if ChecksPassing(output) {
			v.ChecksPassing++
			v.ChecksFailing = 0
		} else {
			v.ChecksFailing++
		}
		v.LastCheckTime = time.Now().UTC()
	case "run_tests":
		v.TestsPassing = TestsPassing(output)
	}
	if result == state.ResultPartial {
		// A reverted mutation restores the prior known-good file, so the
		// verification state it left behind (before the regression) holds.
		v.TestsPassing = true
	}
	v.ReadyForCompletion = v.ChecksPassing > 0 && v.ChecksFailing == 0 && v.TestsPassing
	return v
}

// phaseContext builds a phase.Context from committed state and the most
// recent action record, the shared shape both the pre-action (step 2)
// and post-action (step 13) auto-transition checks consult.
func (e *Executor) phaseContext(ts state.TaskState, recent []state.ActionRecord, codeStructureFacts bool) phase.Context {
	var lastAction, lastResult string
	if len(recent) > 0 {
		last := recent[len(recent)-1]
		lastAction = last.Action
		lastResult = string(last.Result)
	}
	filesModified := false
	for _, a := range recent {
		if a.Result == state.ResultSuccess && e.cfg.Tools.IsMutating(a.Action) {
			filesModified = true
			break
		}
	}
	return phase.Context{
		Phase:               ts.Phase.CurrentPhase,
		StepsInPhase:        ts.Phase.StepsInPhase,
		CodeStructureFacts:  codeStructureFacts,
		FilesModified:       filesModified,
		VerificationPassing: ts.Verification.ChecksPassing > 0 && ts.Verification.ChecksFailing == 0,
		VerificationFailing: ts.Verification.ChecksFailing > 0,
		TestsPassing:        ts.Verification.TestsPassing,
		LastActionResult:    lastResult,
		LastAction:          lastAction,
	}
}

func phaseLegal(phases []state.Phase, p state.Phase) bool {
	for _, ph := range phases {
		if ph == p {
			return true
		}
	}
	return false
}

func tail(recs []state.ActionRecord, n int) []state.ActionRecord {
	if len(recs) <= n {
		return recs
	}
	return recs[len(recs)-n:]
}

func toAnyMap(m map[string]string) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func summarize(output string) string {
	line := output
	if idx := strings.IndexByte(output, '\n'); idx >= 0 {
		line = output[:idx]
	}
	if len(line) > 200 {
		line = line[:200] + "…"
	}
	return line
}

// renderModelResponse reconstructs an audit-log rendering of the
// model's action for outputs/step_<n>.yaml. llm.Driver returns only the
// parsed AgentResponse, not the model's raw text, so this is a faithful
// re-serialization of what was parsed rather than the literal bytes the
// model emitted.
func renderModelResponse(resp llm.AgentResponse, err error) string {
	if err != nil {
		return "ERROR: malformed_response: " + err.Error()
	}
	var b strings.Builder
	b.WriteString("```action\n")
	b.WriteString("action: " + resp.Action + "\n")
	if len(resp.Parameters) > 0 {
		b.WriteString("parameters:\n")
		for k, v := range resp.Parameters {
			b.WriteString("  " + k + ": " + strconv.Quote(v) + "\n")
		}
	}
	if resp.Reasoning != "" {
		b.WriteString("reasoning: " + strconv.Quote(resp.Reasoning) + "\n")
	}
	b.WriteString("```\n")
	return b.String()
}
