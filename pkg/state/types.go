// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package state holds the durable data model of a fix task — the shapes
// that live on disk under .agentforge/tasks/<task_id>/ — and the Store
// that reads and writes them atomically under an exclusive file lock.
package state

import "time"

// SchemaVersion is bumped whenever the on-disk shape of any persisted
// file changes incompatibly. Load fails closed on a version mismatch.
const SchemaVersion = 1

// Phase is a coarse state in the fix lifecycle.
type Phase string

const (
	PhaseInit       Phase = "init"
	PhaseAnalyze    Phase = "analyze"
	PhasePlan       Phase = "plan"
	PhaseImplement  Phase = "implement"
	PhaseVerify     Phase = "verify"
	PhaseComplete   Phase = "complete"
	PhaseFailed     Phase = "failed"
	PhaseEscalated  Phase = "escalated"
)

// Terminal reports whether p is one of the three terminal phases.
func (p Phase) Terminal() bool {
	return p == PhaseComplete || p == PhaseFailed || p == PhaseEscalated
}

// Violation is the inbound conformance-collaborator record that seeds a task.
type Violation struct {
	ID          string `yaml:"id" json:"id"`
	CheckID     string `yaml:"check_id" json:"check_id"`
	Severity    string `yaml:"severity" json:"severity"`
	FilePath    string `yaml:"file_path" json:"file_path"`
	LineNumber  int    `yaml:"line_number,omitempty" json:"line_number,omitempty"`
	Message     string `yaml:"message" json:"message"`
	FixHint     string `yaml:"fix_hint,omitempty" json:"fix_hint,omitempty"`
	TestPath    string `yaml:"test_path,omitempty" json:"test_path,omitempty"`
}

// Task is the immutable identity of a fix attempt plus mutable state.
type Task struct {
	TaskID          string    `yaml:"task_id"`
	TaskType        string    `yaml:"task_type"`
	Goal            string    `yaml:"goal"`
	SuccessCriteria []string  `yaml:"success_criteria"`
	Constraints     []string  `yaml:"constraints,omitempty"`
	CreatedAt       time.Time `yaml:"created_at"`
	Violation       Violation `yaml:"violation"`
}

// PhaseState tracks the task's position in the phase machine.
type PhaseState struct {
	CurrentPhase Phase             `yaml:"current_phase"`
	StepsInPhase int               `yaml:"steps_in_phase"`
	PhaseHistory []PhaseTransition `yaml:"phase_history"`
}

// PhaseTransition is one recorded move in the bounded phase history.
type PhaseTransition struct {
	From Phase  `yaml:"from"`
	To   Phase  `yaml:"to"`
	Step int    `yaml:"step"`
	Why  string `yaml:"why,omitempty"`
}

// MaxPhaseHistory bounds PhaseState.PhaseHistory.
const MaxPhaseHistory = 50

// VerificationState tracks the task's conformance/test status.
type VerificationState struct {
	ChecksPassing       int       `yaml:"checks_passing"`
	ChecksFailing       int       `yaml:"checks_failing"`
	TestsPassing        bool      `yaml:"tests_passing"`
	ReadyForCompletion  bool      `yaml:"ready_for_completion"`
	LastCheckTime       time.Time `yaml:"last_check_time,omitempty"`
}

// FactCategory classifies a Fact.
type FactCategory string

const (
	CategoryCodeStructure FactCategory = "code_structure"
	CategoryVerification  FactCategory = "verification"
	CategoryInference     FactCategory = "inference"
	CategoryPattern       FactCategory = "pattern"
	CategoryError         FactCategory = "error"
)

// Fact is an immutable, confidence-scored conclusion derived from tool
// output or inference.
type Fact struct {
	ID         string       `yaml:"id"`
	Category   FactCategory `yaml:"category"`
	Statement  string       `yaml:"statement"`
	Confidence float64      `yaml:"confidence"`
	Source     string       `yaml:"source"`
	Step       int          `yaml:"step"`
	Supersedes string       `yaml:"supersedes,omitempty"`
	// Subject is the canonical supersession key spec.md §4.2 describes
	// ("the same canonical subject", e.g. "check:complexity:Foo"); two
	// facts supersede each other only when category and Subject both
	// match, never on category alone.
	Subject string `yaml:"subject,omitempty"`
}

// ActionResult is the outcome of one executed action.
type ActionResult string

const (
	ResultSuccess ActionResult = "success"
	ResultFailure ActionResult = "failure"
	ResultPartial ActionResult = "partial"
	ResultSkipped ActionResult = "skipped"
)

// ActionRecord is the audit trail entry for one executed step's action.
type ActionRecord struct {
	Step          int            `yaml:"step"`
	Action        string         `yaml:"action"`
	Target        string         `yaml:"target,omitempty"`
	Parameters    map[string]any `yaml:"parameters,omitempty"`
	Result        ActionResult   `yaml:"result"`
	Summary       string         `yaml:"summary"`
	FactsProduced []string       `yaml:"facts_produced,omitempty"`
	DurationMs    int64          `yaml:"duration_ms"`
	Error         string         `yaml:"error,omitempty"`
}

// ActionDef is a static, closed-set description of one available action.
type ActionDef struct {
	Name           string            `yaml:"name" json:"name"`
	Description    string            `yaml:"description" json:"description"`
	Parameters     map[string]string `yaml:"parameters" json:"parameters"`
	Preconditions  []string          `yaml:"preconditions,omitempty" json:"preconditions,omitempty"`
	Postconditions []string          `yaml:"postconditions,omitempty" json:"postconditions,omitempty"`
	Phases         []Phase           `yaml:"phases" json:"phases"`
	Priority       int               `yaml:"priority" json:"priority"`
}

// ExtractionSuggestion is one candidate line range a precomputation pass
// flags as a plausible refactor target.
type ExtractionSuggestion struct {
	StartLine int    `yaml:"start_line"`
	EndLine   int    `yaml:"end_line"`
	Tag       string `yaml:"tag"`
}

// ViolatingFunction names and bounds the function the violation points at.
type ViolatingFunction struct {
	Name      string `yaml:"name"`
	Source    string `yaml:"source"`
	StartLine int    `yaml:"start_line"`
	EndLine   int    `yaml:"end_line"`
}

// PrecomputedContext is produced once at task start by the Fix Workflow's
// precomputation pass and never mutated after.
type PrecomputedContext struct {
	ViolatingFunction    ViolatingFunction       `yaml:"violating_function"`
	Neighborhood         string                  `yaml:"neighborhood"`
	Imports              []string                `yaml:"imports"`
	ComplexityMetrics    map[string]float64      `yaml:"complexity_metrics"`
	ExtractionSuggestions []ExtractionSuggestion `yaml:"extraction_suggestions"`
}

// TaskState is the full in-memory view of everything persisted for a task
// except the full action history and full fact store, which are loaded
// separately (actions.yaml / understanding.yaml) to keep state.yaml small.
type TaskState struct {
	SchemaVersion int                `yaml:"schema_version"`
	Task          Task               `yaml:"task"`
	Phase         PhaseState         `yaml:"phase"`
	Verification  VerificationState  `yaml:"verification"`
	Step          int                `yaml:"step"`
}

// FactStoreFile is the on-disk shape of understanding.yaml.
type FactStoreFile struct {
	SchemaVersion int    `yaml:"schema_version"`
	Facts         []Fact `yaml:"facts"`
	Superseded    map[string]bool `yaml:"superseded"`
}

// ActionsFile is the on-disk shape of actions.yaml.
type ActionsFile struct {
	SchemaVersion int            `yaml:"schema_version"`
	Actions       []ActionRecord `yaml:"actions"`
}

// PrecomputedFile is the on-disk shape of precomputed.yaml.
type PrecomputedFile struct {
	SchemaVersion int                `yaml:"schema_version"`
	Precomputed   PrecomputedContext `yaml:"precomputed"`
}

// StepOutput is the on-disk shape of outputs/step_<n>.yaml.
type StepOutput struct {
	Step           int    `yaml:"step"`
	ModelResponse  string `yaml:"model_response"`
	Action         string `yaml:"action,omitempty"`
	Parameters     map[string]any `yaml:"parameters,omitempty"`
	ToolOutput     string `yaml:"tool_output,omitempty"`
	Timestamp      time.Time `yaml:"timestamp"`
}

// ResolutionRecord is the machine-readable terminal output on complete.
type ResolutionRecord struct {
	TaskID        string   `json:"task_id" yaml:"task_id"`
	ViolationID   string   `json:"violation_id" yaml:"violation_id"`
	FilesChanged  []string `json:"files_changed" yaml:"files_changed"`
	TestsPassing  bool     `json:"tests_passing" yaml:"tests_passing"`
	ChecksPassing bool     `json:"checks_passing" yaml:"checks_passing"`
	DurationMs    int64    `json:"duration_ms" yaml:"duration_ms"`
	Steps         int      `json:"steps" yaml:"steps"`
}

// EscalationRecord is the machine-readable terminal output on
// escalated/failed.
type EscalationRecord struct {
	TaskID             string         `json:"task_id" yaml:"task_id"`
	Reason             string         `json:"reason" yaml:"reason"`
	LoopDetectionType  string         `json:"loop_detection,omitempty" yaml:"loop_detection,omitempty"`
	LastActions        []ActionRecord `json:"last_actions" yaml:"last_actions"`
	ActiveFacts        []Fact         `json:"active_facts" yaml:"active_facts"`
	DiagnosticBundlePath string       `json:"diagnostic_bundle_path" yaml:"diagnostic_bundle_path"`
}
