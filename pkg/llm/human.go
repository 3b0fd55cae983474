package llm

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/agentforge/fixloop/pkg/agentctx"
)

// HumanDriver is the human-in-the-loop variant spec.md §4.7 requires:
// the built prompt is displayed, and the operator pastes back the
// model's (or their own) raw response for parsing.
type HumanDriver struct {
	Out io.Writer
	In  *bufio.Reader
}

// NewHumanDriver wraps the given reader/writer pair; the reader is
// scanned for a line containing only "END" to terminate multi-line
// paste input.
func NewHumanDriver(in io.Reader, out io.Writer) *HumanDriver {
	return &HumanDriver{Out: out, In: bufio.NewReader(in)}
}

func (d *HumanDriver) Invoke(_ context.Context, systemPrompt string, payload agentctx.StepContext) (AgentResponse, error) {
	rendered, err := RenderPrompt(payload)
	if err != nil {
		return AgentResponse{}, err
	}
	fmt.Fprintln(d.Out, "=== SYSTEM ===")
	fmt.Fprintln(d.Out, systemPrompt)
	fmt.Fprintln(d.Out, ActionInstructions)
	fmt.Fprintln(d.Out, "=== CONTEXT ===")
	fmt.Fprintln(d.Out, rendered)
	fmt.Fprintln(d.Out, "Paste the model response, then a line containing only END:")

	var b strings.Builder
	for {
		line, err := d.In.ReadString('\n')
		trimmed := strings.TrimRight(line, "\r\n")
		if trimmed == "END" {
			break
		}
		b.WriteString(line)
		if err == io.EOF {
			break
		}
		if err != nil {
			return AgentResponse{}, err
		}
	}

	return ParseActionBlock(b.String())
}
