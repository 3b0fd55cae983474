package llm

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/agentforge/fixloop/pkg/agentctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHumanDriverInvokeParsesPastedResponse(t *testing.T) {
	pasted := "```action\naction: run_check\nparameters: {}\n```\nEND\n"
	in := strings.NewReader(pasted)
	var out bytes.Buffer
	driver := NewHumanDriver(in, &out)

	resp, err := driver.Invoke(context.Background(), "system prompt", agentctx.StepContext{Task: agentctx.TaskSection{TaskID: "t1"}})
	require.NoError(t, err)
	assert.Equal(t, "run_check", resp.Action)
	assert.Contains(t, out.String(), "SYSTEM")
	assert.Contains(t, out.String(), "t1")
}
