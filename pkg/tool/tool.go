// Package tool defines the common Tool Handler contract (C6): every
// handler is a function from a parameter map to a result string,
// parseable by the Fact Extractor's rule set without any richer return
// type. Failures begin with "ERROR:"; most successes begin with
// "SUCCESS:", but run_check and run_tests return the external runner's
// output unprefixed.
package tool

import (
	"context"

	"github.com/agentforge/fixloop/pkg/state"
)

// StepContext is injected by the Executor as params["_context"] fields
// are not passed this way; instead the executor passes it as a typed
// sidecar so handlers can read task/violation metadata without parsing
// it back out of strings.
type StepContext struct {
	TaskID        string
	ViolationID   string
	ProjectRoot   string
	Phase         state.Phase
	FilesExamined []string
}

// Handler is the common signature every registered tool handler
// implements. Params holds the action's string-valued arguments as
// the model supplied them; numeric/bool fields are handler-parsed.
type Handler func(ctx context.Context, sc StepContext, params map[string]string) string

// Mutating reports whether a handler can modify files on disk, which
// the Executor uses to decide whether to snapshot and auto-revert
// (spec.md §4.6 "Auto-revert").
type Mutating bool

const (
	ReadOnly  Mutating = false
	Mutates   Mutating = true
)

// Registration binds a handler to its name, the phases in which it is
// a legal action, and whether it mutates files.
type Registration struct {
	Name     string
	Handler  Handler
	Phases   []state.Phase
	Mutates  Mutating
	Priority int
}

// Registry is the central, keyed-by-action-name handler table spec.md
// §4.6 requires ("All handlers live in a central registry keyed by
// action name").
type Registry struct {
	entries map[string]Registration
}

func NewRegistry() *Registry {
	return &Registry{entries: map[string]Registration{}}
}

func (r *Registry) Register(reg Registration) {
	r.entries[reg.Name] = reg
}

// Lookup returns the handler registered under name, or ok=false if
// the executor should report ERROR: unknown_action (spec.md §4.8 step 5).
func (r *Registry) Lookup(name string) (Registration, bool) {
	reg, ok := r.entries[name]
	return reg, ok
}

// ActionDefs renders the registry as state.ActionDef values for the
// Context Builder's "actions.available" section, one per registered
// handler; it does not filter by phase, and each def carries its Phases.
func (r *Registry) ActionDefs() []state.ActionDef {
	defs := make([]state.ActionDef, 0, len(r.entries))
	for _, reg := range r.entries {
		defs = append(defs, state.ActionDef{
			Name:     reg.Name,
			Phases:   reg.Phases,
			Priority: reg.Priority,
		})
	}
	return defs
}

// IsMutating reports whether the named action mutates files, used by
// the Executor to decide whether to snapshot before executing it.
func (r *Registry) IsMutating(name string) bool {
	reg, ok := r.entries[name]
	return ok && bool(reg.Mutates)
}
