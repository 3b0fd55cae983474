// Package checktool implements the external-process P0 handlers from
// spec.md §4.6: run_check (the conformance runner) and run_tests (the
// test runner). Grounded on the teacher's v2/tool/commandtool secure
// execution pattern (allow/deny command lists, denied regex patterns,
// context-bounded timeout, exit-code capture) — generalized here to
// two fixed, pre-approved commands rather than an arbitrary
// model-supplied shell string, since spec.md §4.6 defines run_check
// and run_tests as invoking a specific external runner, not a
// general-purpose command tool.
package checktool

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"time"

	"github.com/agentforge/fixloop/pkg/state"
	"github.com/agentforge/fixloop/pkg/tool"
)

const defaultTimeout = 120 * time.Second

// Config configures the commands checktool invokes. CheckCmd is run
// against the violation's file/check and is expected to print a
// parseable "Check PASSED" or "Function 'X' has complexity N" style
// line; TestCmd is expected to print a "K passed, M failed" style
// summary, optionally followed by failing test identifiers.
type Config struct {
	WorkDir  string
	CheckCmd []string
	TestCmd  []string
	Timeout  time.Duration
}

// Register adds run_check and run_tests to reg.
func Register(reg *tool.Registry, cfg Config, phases []state.Phase) {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	reg.Register(tool.Registration{Name: "run_check", Handler: RunCheck(cfg), Phases: phases, Mutates: tool.ReadOnly, Priority: 7})
	reg.Register(tool.Registration{Name: "run_tests", Handler: RunTests(cfg), Phases: phases, Mutates: tool.ReadOnly, Priority: 6})
}

// RunCheck invokes cfg.CheckCmd and returns its trimmed stdout,
// expecting the conformance runner's own output to already be in the
// "Check PASSED" / "Function 'X' has complexity N" shape the Fact
// Extractor's rules (pkg/facts/rules.go) parse.
func RunCheck(cfg Config) tool.Handler {
	return func(ctx context.Context, sc tool.StepContext, params map[string]string) string {
		args := substituteFilePath(cfg.CheckCmd, sc, params)
		return runCommand(ctx, cfg, args)
	}
}

// RunTests invokes cfg.TestCmd, optionally scoped to params["path"].
func RunTests(cfg Config) tool.Handler {
	return func(ctx context.Context, sc tool.StepContext, params map[string]string) string {
		args := append([]string{}, cfg.TestCmd...)
		if p, ok := params["path"]; ok && p != "" {
			args = append(args, p)
		}
		return runCommand(ctx, cfg, args)
	}
}

func substituteFilePath(cmd []string, sc tool.StepContext, params map[string]string) []string {
	args := append([]string{}, cmd...)
	file := params["path"]
	if file == "" {
		for _, f := range sc.FilesExamined {
			file = f
			break
		}
	}
	if file != "" {
		args = append(args, file)
	}
	return args
}

// deniedPattern guards against a misconfigured Config accidentally
// wiring a destructive command, mirroring the teacher's
// DefaultDeniedPatterns (v2/tool/commandtool/command.go).
var deniedPattern = regexp.MustCompile(`rm\s+(-rf|-fr)|:\(\)\s*\{`)

func runCommand(ctx context.Context, cfg Config, args []string) string {
	if len(args) == 0 {
		return "ERROR: no command configured"
	}
	joined := fmt.Sprintf("%v", args)
	if deniedPattern.MatchString(joined) {
		return "ERROR: command rejected by security policy"
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(timeoutCtx, args[0], args[1:]...)
	if cfg.WorkDir != "" {
		cmd.Dir = cfg.WorkDir
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if timeoutCtx.Err() == context.DeadlineExceeded {
		return "ERROR: timeout"
	}

	out := stdout.String()
	if err != nil {
		if _, isExit := err.(*exec.ExitError); isExit {
			// A non-zero exit from the conformance/test runner is a
			// normal "violation found" or "tests failed" outcome, not
			// a handler failure: its own stdout already carries the
			// result text the rules in pkg/facts/rules.go parse.
			if out != "" {
				return trimTrailingNewline(out)
			}
			return trimTrailingNewline(stderr.String())
		}
		return "ERROR: " + err.Error()
	}
	return trimTrailingNewline(out)
}

func trimTrailingNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
