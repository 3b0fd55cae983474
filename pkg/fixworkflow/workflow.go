package fixworkflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/agentforge/fixloop/pkg/agentctx"
	"github.com/agentforge/fixloop/pkg/executor"
	"github.com/agentforge/fixloop/pkg/facts"
	"github.com/agentforge/fixloop/pkg/fixerr"
	"github.com/agentforge/fixloop/pkg/llm"
	"github.com/agentforge/fixloop/pkg/logger"
	"github.com/agentforge/fixloop/pkg/loopdetect"
	"github.com/agentforge/fixloop/pkg/phase"
	"github.com/agentforge/fixloop/pkg/state"
	"github.com/agentforge/fixloop/pkg/tool"
	"github.com/agentforge/fixloop/pkg/tool/checktool"
	"github.com/agentforge/fixloop/pkg/tool/searchtool"
	"github.com/agentforge/fixloop/pkg/violation"
	"gopkg.in/yaml.v3"
)

// SystemPrompt is the fixed instruction every step's model call is
// grounded against; spec.md §4.7 leaves its exact wording to the
// implementation, naming only the contract it must establish (one
// action per step, emitted inside a single fenced action block).
const SystemPrompt = `You are AgentForge's fix-loop agent. You resolve exactly one ` +
	`codebase conformance violation per task. Each turn you see a bounded ` +
	`context object describing the task, your current understanding, and ` +
	`the legal actions for this phase. Respond with exactly one action.`

// Config wires a Workflow to its collaborators. StepCap is the
// absolute ceiling on steps run by one RunToCompletion call, the
// outermost backstop behind the Phase Machine's own per-phase caps and
// the Loop Detector's hard cap.
type Config struct {
	ProjectRoot string
	CheckCmd    []string
	TestCmd     []string
	Retriever   searchtool.Retriever
	Driver      llm.Driver
	StepCap     int
	LockTimeout time.Duration
}

// Workflow drives one task from a violation to a terminal outcome.
type Workflow struct {
	cfg   Config
	store *state.Store
}

// New returns a Workflow rooted at cfg.ProjectRoot.
func New(cfg Config) *Workflow {
	if cfg.StepCap == 0 {
		cfg.StepCap = 50
	}
	return &Workflow{
		cfg:   cfg,
		store: state.NewStore(cfg.ProjectRoot, cfg.LockTimeout),
	}
}

// Outcome is the terminal result RunToCompletion/Resume return: one of
// a ResolutionRecord or an EscalationRecord is always set.
type Outcome struct {
	TerminalPhase state.Phase
	Resolution    *state.ResolutionRecord
	Escalation    *state.EscalationRecord
}

// StartTask runs precomputation and creates a task for v; it does not
// run any steps. Splitting this from RunToCompletion is what lets
// resume reattach to an already-created task without recomputing.
func (w *Workflow) StartTask(taskID string, v violation.Violation) error {
	if err := v.Validate(); err != nil {
		return fixerr.New(fixerr.KindUserInput, "fixworkflow.StartTask", err)
	}
	pre, err := Precompute(w.cfg.ProjectRoot, toStateViolation(v))
	if err != nil {
		return fixerr.New(fixerr.KindToolFailure, "fixworkflow.StartTask", err)
	}
	task := state.Task{
		TaskID:          taskID,
		TaskType:        "fix_violation",
		Goal:            fmt.Sprintf("Resolve %s violation %s in %s", v.CheckID, v.ID, v.FilePath),
		SuccessCriteria: []string{"checks_passing", "tests_passing"},
		CreatedAt:       time.Now().UTC(),
		Violation:       toStateViolation(v),
	}
	return w.store.CreateTask(task, pre)
}

// RunToCompletion creates a task for v and drives it to a terminal
// phase. Use Resume instead for a task StartTask already created.
func (w *Workflow) RunToCompletion(ctx context.Context, taskID string, v violation.Violation) (Outcome, error) {
	if !w.store.Exists(taskID) {
		if err := w.StartTask(taskID, v); err != nil {
			return Outcome{}, err
		}
	}
	return w.Resume(ctx, taskID)
}

// Resume drives an already-created task from wherever its committed
// state left off, one Executor.Step per loop iteration, until a
// terminal phase is reached or StepCap is exhausted. Because the
// Executor commits at every step boundary, calling Resume again after
// a crash mid-loop picks back up from the last committed step with no
// special-cased recovery path.
func (w *Workflow) Resume(ctx context.Context, taskID string) (Outcome, error) {
	exec, err := w.buildExecutor(taskID)
	if err != nil {
		return Outcome{}, err
	}

	start := time.Now()
	var last executor.StepOutcome
	for i := 0; i < w.cfg.StepCap; i++ {
		txn, err := w.store.Begin(taskID)
		if err != nil {
			return Outcome{}, fixerr.New(fixerr.KindLockBusy, "fixworkflow.Resume", err)
		}
		out, err := exec.Step(ctx, txn)
		if err != nil {
			return Outcome{}, fixerr.New(fixerr.KindToolFailure, "fixworkflow.Resume", err)
		}
		last = out
		if !out.Continue {
			break
		}
	}

	if last.TerminalPhase == "" {
		// StepCap exhausted without the phase machine reaching a
		// terminal phase on its own; treat it the same as a hard
		// loop-detector cap, since an unbounded task is exactly what
		// the Fix Workflow must never produce (spec.md §4.4's hard
		// cap, enforced here as the outermost backstop).
		return w.escalate(taskID, "step cap exhausted", "", time.Since(start))
	}

	switch last.TerminalPhase {
	case state.PhaseComplete:
		return w.resolve(ctx, taskID, time.Since(start))
	default:
		return w.escalate(taskID, last.Reason, "", time.Since(start))
	}
}

func (w *Workflow) buildExecutor(taskID string) (*executor.Executor, error) {
	if !w.store.Exists(taskID) {
		return nil, fixerr.New(fixerr.KindUserInput, "fixworkflow.buildExecutor", fmt.Errorf("task %s not found", taskID))
	}
	ready := func() bool {
		s, err := w.store.ReadSnapshot(taskID)
		return err == nil && s.State.Verification.ReadyForCompletion
	}
	reg := tool.Build(tool.BuildConfig{
		ProjectRoot:        w.cfg.ProjectRoot,
		CheckCmd:           w.cfg.CheckCmd,
		TestCmd:            w.cfg.TestCmd,
		Retriever:          w.cfg.Retriever,
		ReadyForCompletion: ready,
	})
	return executor.New(executor.Config{
		ProjectRoot:    w.cfg.ProjectRoot,
		SystemPrompt:   SystemPrompt,
		Tools:          reg,
		Driver:         w.cfg.Driver,
		Extractor:      facts.NewExtractor(nil),
		ContextBudget:  agentctx.DefaultBudget,
		LoopThresholds: loopdetect.DefaultThresholds,
	}), nil
}

// resolve emits the ResolutionRecord for a task the phase machine has
// already driven to complete. spec.md §4.9 requires a final run_check
// and run_tests pass before the record is emitted: the committed
// Verification counters can't be trusted alone, since a reverted
// mutation forces TestsPassing back to true (executor.go's auto-revert
// path) off the pre-regression state rather than a fresh run. Re-running
// both here against the real working tree is what actually verifies
// "complete" means complete.
func (w *Workflow) resolve(ctx context.Context, taskID string, elapsed time.Duration) (Outcome, error) {
	snap, err := w.store.ReadSnapshot(taskID)
	if err != nil {
		return Outcome{}, fixerr.New(fixerr.KindStateCorrupt, "fixworkflow.resolve", err)
	}

	sc := tool.StepContext{
		TaskID:      taskID,
		ViolationID: snap.State.Task.Violation.ID,
		ProjectRoot: w.cfg.ProjectRoot,
		Phase:       state.PhaseComplete,
	}
	checkCfg := checktool.Config{WorkDir: w.cfg.ProjectRoot, CheckCmd: w.cfg.CheckCmd, TestCmd: w.cfg.TestCmd}
	checkParams := map[string]string{"path": snap.State.Task.Violation.FilePath}
	checkOutput := checktool.RunCheck(checkCfg)(ctx, sc, checkParams)
	testOutput := checktool.RunTests(checkCfg)(ctx, sc, nil)
	checksPassing := executor.ChecksPassing(checkOutput)
	testsPassing := executor.TestsPassing(testOutput)

	if !checksPassing || !testsPassing {
		reason := fmt.Sprintf("final verification failed: checks_passing=%v tests_passing=%v", checksPassing, testsPassing)
		// The phase machine already committed this task's phase as
		// "complete" — a terminal phase — before resolve ever runs.
		// escalate() only overrides CurrentPhase when it finds a
		// non-terminal phase, so without forcing a real transition here
		// first it would hand back TerminalPhase=complete alongside an
		// Escalation record, and a stale on-disk state.yaml would still
		// read "complete" forever after. Persist the demotion to
		// Escalated before delegating to escalate()'s shared bundling
		// logic, so both the returned Outcome and state.yaml agree.
		if err := w.forceEscalatedPhase(taskID, reason); err != nil {
			return Outcome{}, err
		}
		return w.escalate(taskID, reason, "", elapsed)
	}

	rec := state.ResolutionRecord{
		TaskID:        taskID,
		ViolationID:   snap.State.Task.Violation.ID,
		FilesChanged:  filesChanged(snap.Actions),
		TestsPassing:  testsPassing,
		ChecksPassing: checksPassing,
		DurationMs:    elapsed.Milliseconds(),
		Steps:         snap.State.Step,
	}
	logger.Step(taskID, string(state.PhaseComplete), snap.State.Step).Info("task resolved",
		"files_changed", len(rec.FilesChanged), "duration_ms", rec.DurationMs)
	return Outcome{TerminalPhase: state.PhaseComplete, Resolution: &rec}, nil
}

// forceEscalatedPhase persists a real phase transition to Escalated via
// the usual Txn/phase.Apply path, for the one case where a task must be
// knocked out of a terminal phase it already reached: resolve's final
// re-check failing after the phase machine had already committed
// "complete".
func (w *Workflow) forceEscalatedPhase(taskID, why string) error {
	txn, err := w.store.Begin(taskID)
	if err != nil {
		return fixerr.New(fixerr.KindStateCorrupt, "fixworkflow.forceEscalatedPhase", err)
	}
	ts, _, _, _ := txn.Load()
	ts.Phase = phase.Apply(ts.Phase, ts.Step, phase.Decision{Transition: true, To: state.PhaseEscalated, Why: why})
	txn.Save(ts)
	if err := txn.Commit(); err != nil {
		return fixerr.New(fixerr.KindStateCorrupt, "fixworkflow.forceEscalatedPhase", err)
	}
	return nil
}

func (w *Workflow) escalate(taskID, reason, loopType string, elapsed time.Duration) (Outcome, error) {
	snap, err := w.store.ReadSnapshot(taskID)
	if err != nil {
		return Outcome{}, fixerr.New(fixerr.KindStateCorrupt, "fixworkflow.escalate", err)
	}
	bundlePath, bundleErr := writeDiagnosticBundle(w.store.TaskDir(taskID), snap)
	if bundleErr != nil {
		bundlePath = ""
	}
	rec := state.EscalationRecord{
		TaskID:               taskID,
		Reason:               reason,
		LoopDetectionType:    loopType,
		LastActions:          tail(snap.Actions, 10),
		ActiveFacts:          facts.Active(snap.Facts, snap.Superseded),
		DiagnosticBundlePath: bundlePath,
	}
	logger.Step(taskID, string(snap.State.Phase.CurrentPhase), snap.State.Step).Warn("task escalated",
		"reason", reason, "loop_detection_type", loopType)
	phase := snap.State.Phase.CurrentPhase
	if !phase.Terminal() {
		phase = state.PhaseEscalated
	}
	return Outcome{TerminalPhase: phase, Escalation: &rec}, nil
}

// writeDiagnosticBundle dumps the full task state to a single YAML
// file under the task directory, the bundle EscalationRecord points
// operators at for post-mortem triage.
func writeDiagnosticBundle(taskDir string, snap state.Snapshot) (string, error) {
	path := filepath.Join(taskDir, "diagnostic_bundle.yaml")
	data, err := yaml.Marshal(snap)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", err
	}
	return path, nil
}

func filesChanged(actions []state.ActionRecord) []string {
	seen := map[string]bool{}
	var out []string
	for _, a := range actions {
		if a.Result != state.ResultSuccess || a.Target == "" {
			continue
		}
		if !seen[a.Target] {
			seen[a.Target] = true
			out = append(out, a.Target)
		}
	}
	return out
}

func tail(recs []state.ActionRecord, n int) []state.ActionRecord {
	if len(recs) <= n {
		return recs
	}
	return recs[len(recs)-n:]
}

func toStateViolation(v violation.Violation) state.Violation {
	return state.Violation{
		ID:         v.ID,
		CheckID:    v.CheckID,
		Severity:   v.Severity,
		FilePath:   v.FilePath,
		LineNumber: v.LineNumber,
		Message:    v.Message,
		FixHint:    v.FixHint,
		TestPath:   v.TestPath,
	}
}
