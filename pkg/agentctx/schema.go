package agentctx

import (
	"fmt"
	"sync"

	"github.com/invopop/jsonschema"
)

// schema is generated once from the StepContext Go struct via
// invopop/jsonschema, the same struct-tag-driven generation the teacher
// uses for tool-parameter schemas (pkg/tool/functiontool/schema.go) and
// for cmd/hector's config schema command, reused here to validate the
// context payload before every model call.
var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
)

func getSchema() *jsonschema.Schema {
	schemaOnce.Do(func() {
		r := &jsonschema.Reflector{ExpandedStruct: true}
		schema = r.Reflect(&StepContext{})
	})
	return schema
}

// Validate checks that the schema could be generated and that ctx sets
// task.task_id and task.current_phase. The remaining fields are not
// checked against the schema. Per spec.md §4.5, any failure here is fatal
// (FailsWith=ContextInvalid) and must not reach the LLM Driver.
func Validate(ctx StepContext) error {
	s := getSchema()
	if s == nil {
		return fmt.Errorf("context schema unavailable")
	}
	if ctx.Task.TaskID == "" {
		return fmt.Errorf("task.task_id is required")
	}
	if ctx.Task.CurrentPhase == "" {
		return fmt.Errorf("task.current_phase is required")
	}
	return nil
}
