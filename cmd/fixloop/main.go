// Command fixloop is AgentForge's minimal-context autonomous fix-loop
// CLI: a conformance runner hands it one violation, it drives the Fix
// Workflow to a terminal outcome and exits with a code a CI pipeline
// can branch on.
//
// Usage:
//
//	fixloop fix-violation violation.yaml --task-id t-123
//	fixloop resume t-123
//	fixloop status t-123
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/agentforge/fixloop/pkg/config"
	"github.com/agentforge/fixloop/pkg/fixerr"
	"github.com/agentforge/fixloop/pkg/fixworkflow"
	"github.com/agentforge/fixloop/pkg/index"
	"github.com/agentforge/fixloop/pkg/llm"
	"github.com/agentforge/fixloop/pkg/logger"
	"github.com/agentforge/fixloop/pkg/tool/mcptoolset"
	"github.com/agentforge/fixloop/pkg/tool/searchtool"
	"github.com/agentforge/fixloop/pkg/violation"
)

// Exit codes per spec.md §6: 0 complete, 1 escalated/failed, 2 lock
// busy, 3 state corrupt.
const (
	exitComplete     = 0
	exitEscalated    = 1
	exitLockBusy     = 2
	exitStateCorrupt = 3
)

// CLI defines the command-line interface.
type CLI struct {
	FixViolation FixViolationCmd `cmd:"" name:"fix-violation" help:"Resolve one conformance violation from a wire-format record."`
	Resume       ResumeCmd       `cmd:"" help:"Continue an incomplete task from committed state."`
	Status       StatusCmd       `cmd:"" help:"Print a task's indexed violation, phase, and terminal outcome (no step, action, or fact detail)."`

	Config   string `short:"c" help:"Path to fixloop.yaml." type:"path"`
	LogLevel string `help:"Log level (debug, info, warn, error)." default:"info"`
}

// FixViolationCmd loads a violation record and drives it to completion.
type FixViolationCmd struct {
	ViolationFile string `arg:"" name:"violation-file" help:"Path to the violation YAML/JSON record." type:"path"`
	TaskID        string `name:"task-id" help:"Task identifier; defaults to the violation's id."`
}

func (c *FixViolationCmd) Run(cli *CLI) error {
	cfg, err := loadConfig(cli)
	if err != nil {
		return err
	}
	v, err := violation.Load(c.ViolationFile)
	if err != nil {
		return err
	}
	taskID := c.TaskID
	if taskID == "" {
		taskID = v.ID
	}

	wf, err := buildWorkflow(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	out, err := wf.RunToCompletion(ctx, taskID, v)
	return report(cfg, taskID, out, err)
}

// ResumeCmd continues an existing task.
type ResumeCmd struct {
	TaskID string `arg:"" name:"task-id" help:"Task identifier to resume."`
}

func (c *ResumeCmd) Run(cli *CLI) error {
	cfg, err := loadConfig(cli)
	if err != nil {
		return err
	}
	wf, err := buildWorkflow(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	out, err := wf.Resume(ctx, c.TaskID)
	return report(cfg, c.TaskID, out, err)
}

// StatusCmd prints a task's current state without driving it further.
type StatusCmd struct {
	TaskID string `arg:"" name:"task-id" help:"Task identifier to inspect."`
}

func (c *StatusCmd) Run(cli *CLI) error {
	cfg, err := loadConfig(cli)
	if err != nil {
		return err
	}
	idx, err := index.Open(filepath.Join(cfg.ProjectRoot, ".agentforge", "index.db"))
	if err != nil {
		return fixerr.New(fixerr.KindStateCorrupt, "status", err)
	}
	defer idx.Close()

	row, ok, err := idx.Get(c.TaskID)
	if err != nil {
		return fixerr.New(fixerr.KindStateCorrupt, "status", err)
	}
	if !ok {
		fmt.Printf("task %s: not found in index\n", c.TaskID)
		return nil
	}
	fmt.Printf("task:      %s\n", row.TaskID)
	fmt.Printf("violation: %s\n", row.ViolationID)
	fmt.Printf("phase:     %s\n", row.Phase)
	if row.TerminalPhase != "" {
		fmt.Printf("terminal:  %s (%dms)\n", row.TerminalPhase, row.DurationMs)
	}
	return nil
}

func loadConfig(cli *CLI) (config.Config, error) {
	_ = config.LoadEnvFiles()
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return config.Config{}, fixerr.New(fixerr.KindUserInput, "config.Load", err)
	}
	cfg.ApplyPhaseCaps()

	level, err := logger.ParseLevel(cli.LogLevel)
	if err != nil {
		return config.Config{}, fixerr.New(fixerr.KindUserInput, "logger.ParseLevel", err)
	}
	logger.Init(level, os.Stderr, "simple")
	return cfg, nil
}

func buildWorkflow(cfg config.Config) (*fixworkflow.Workflow, error) {
	driver, err := llm.NewDriver(llm.ProviderConfig{
		Type:   cfg.ModelProvider,
		APIKey: config.ProviderAPIKey(cfg.ModelProvider),
		Model:  cfg.ModelName,
		Host:   cfg.ModelHost,
	})
	if err != nil {
		return nil, fixerr.New(fixerr.KindUserInput, "llm.NewDriver", err)
	}
	return fixworkflow.New(fixworkflow.Config{
		ProjectRoot: cfg.ProjectRoot,
		CheckCmd:    cfg.CheckCmd,
		TestCmd:     cfg.TestCmd,
		Retriever:   mcpRetriever(cfg),
		Driver:      driver,
		StepCap:     cfg.StepCap,
		LockTimeout: 30 * time.Second,
	}), nil
}

// mcpRetriever builds an MCP-backed search_code collaborator when the
// config names one; a nil interface (not a nil *Retriever boxed in a
// non-nil interface) means search_code degrades to regex-only.
func mcpRetriever(cfg config.Config) searchtool.Retriever {
	if cfg.MCPCommand == "" {
		return nil
	}
	return mcptoolset.New(mcptoolset.Config{
		Command:  cfg.MCPCommand,
		Args:     cfg.MCPArgs,
		ToolName: cfg.MCPToolName,
	})
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()
	return ctx, cancel
}

// report records the outcome to the sqlite index and translates it (or
// a driving error) into the process exit code spec.md §6 names.
func report(cfg config.Config, taskID string, out fixworkflow.Outcome, err error) error {
	if err != nil {
		switch {
		case fixerr.Is(err, fixerr.KindLockBusy):
			fmt.Fprintln(os.Stderr, err)
			os.Exit(exitLockBusy)
		case fixerr.Is(err, fixerr.KindStateCorrupt):
			fmt.Fprintln(os.Stderr, err)
			os.Exit(exitStateCorrupt)
		}
		return err
	}

	if idx, idxErr := index.Open(filepath.Join(cfg.ProjectRoot, ".agentforge", "index.db")); idxErr == nil {
		row := index.Row{TaskID: taskID, Phase: string(out.TerminalPhase), CreatedAt: time.Now().UTC()}
		if out.Resolution != nil {
			row.ViolationID = out.Resolution.ViolationID
			row.TerminalPhase = string(out.TerminalPhase)
			row.DurationMs = out.Resolution.DurationMs
		} else if out.Escalation != nil {
			row.TerminalPhase = string(out.TerminalPhase)
		}
		_ = idx.Upsert(row)
		idx.Close()
	}

	switch out.TerminalPhase {
	case "complete":
		fmt.Printf("task %s: complete\n", taskID)
		os.Exit(exitComplete)
	default:
		if out.Escalation != nil {
			fmt.Fprintf(os.Stderr, "task %s: %s (%s)\n", taskID, out.TerminalPhase, out.Escalation.Reason)
		} else {
			fmt.Fprintf(os.Stderr, "task %s: %s\n", taskID, out.TerminalPhase)
		}
		os.Exit(exitEscalated)
	}
	return nil
}

func main() {
	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("fixloop"),
		kong.Description("AgentForge minimal-context autonomous fix loop"),
		kong.UsageOnError(),
	)
	err := ctx.Run(&cli)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitEscalated)
	}
}
