// Package fixloop provides AgentForge's minimal-context autonomous fix
// loop: a bounded, resumable, auditable agent that resolves exactly one
// codebase conformance violation per task while preserving test health.
//
// # Quick Start
//
// Install the CLI:
//
//	go install github.com/agentforge/fixloop/cmd/fixloop@latest
//
// Hand it a violation record produced by a conformance runner:
//
//	yaml
//	id: complexity-042
//	check_id: max_function_complexity
//	severity: warning
//	file_path: pkg/billing/invoice.py
//	line_number: 118
//	message: "function exceeds the cyclomatic complexity budget"
//	fix_hint: "extract the discount-calculation branch into its own function"
//	test_path: tests/test_invoice.py
//
// Run it:
//
//	fixloop fix-violation violation.yaml
//
// # Architecture
//
// A task moves through a fixed phase machine (init, analyze, plan,
// implement, verify, complete, failed, escalated) one step at a time. Each step:
// the Context Builder assembles a token-bounded view of the task, its
// active facts, and the legal actions for the current phase; the LLM
// Driver gets exactly one action back; the Executor dispatches it to a
// Tool Handler, extracts facts from the result, and commits the new
// state transactionally before the next step begins. The Loop Detector
// watches for repetition and forces escalation rather than spinning
// forever, and a crash at any point leaves the task resumable from its
// last committed step — nothing is lost, nothing is redone.
//
// Using as a Go library:
//
//	import (
//	    "github.com/agentforge/fixloop/pkg/fixworkflow"
//	    "github.com/agentforge/fixloop/pkg/violation"
//	)
//
// # Status
//
// fixloop is in early development. APIs may change.
package fixloop
