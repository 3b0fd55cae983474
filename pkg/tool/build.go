package tool

import (
	"github.com/agentforge/fixloop/pkg/state"
	"github.com/agentforge/fixloop/pkg/tool/checktool"
	"github.com/agentforge/fixloop/pkg/tool/controltool"
	"github.com/agentforge/fixloop/pkg/tool/filetool"
	"github.com/agentforge/fixloop/pkg/tool/pyedit"
	"github.com/agentforge/fixloop/pkg/tool/searchtool"
)

// BuildConfig bundles everything Build needs to wire every P0 handler
// (spec.md §4.6) into one Registry.
type BuildConfig struct {
	ProjectRoot        string
	CheckCmd           []string
	TestCmd            []string
	Retriever          searchtool.Retriever
	ReadyForCompletion func() bool
}

// Build assembles the full handler registry: read/write/edit/
// replace_lines/insert_lines, extract_function/simplify_conditional,
// run_check/run_tests, search_code/load_context, complete/escalate/
// cannot_fix, each legal in the phases spec.md's control flow implies.
func Build(cfg BuildConfig) *Registry {
	reg := NewRegistry()

	// filetool.Register binds all five file handlers to PhasesEdit;
	// read_file alone is then widened to every non-terminal phase,
	// since reading is safe (and useful) outside implement too.
	filetool.Register(reg, cfg.ProjectRoot, PhasesEdit)
	reg.Register(Registration{Name: "read_file", Handler: filetool.ReadFile(cfg.ProjectRoot), Phases: PhasesRead, Mutates: ReadOnly, Priority: 5})

	pyedit.Register(reg, cfg.ProjectRoot, PhasesEdit)

	checktool.Register(reg, checktool.Config{WorkDir: cfg.ProjectRoot, CheckCmd: cfg.CheckCmd, TestCmd: cfg.TestCmd}, PhasesCheck)

	searchtool.Register(reg, cfg.ProjectRoot, cfg.Retriever, PhasesRead)

	// escalate/cannot_fix are legal in every non-terminal phase;
	// complete is narrowed to verify, where the Context Builder also
	// gates it on verification.ready_for_completion.
	controltool.Register(reg, cfg.ReadyForCompletion, PhasesTerminal)
	reg.Register(Registration{Name: "complete", Handler: controltool.Complete(cfg.ReadyForCompletion), Phases: PhasesComplete, Mutates: ReadOnly, Priority: 20})

	return reg
}
