package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseActionBlockHappyPath(t *testing.T) {
	raw := "Here is my plan.\n\n```action\n" +
		"action: edit_file\n" +
		"parameters:\n" +
		"  path: a.py\n" +
		"  old_text: \"x = 1\"\n" +
		"  new_text: \"x = 2\"\n" +
		"reasoning: fixing the bug\n" +
		"```\n"

	resp, err := ParseActionBlock(raw)
	require.NoError(t, err)
	assert.Equal(t, "edit_file", resp.Action)
	assert.Equal(t, "a.py", resp.Parameters["path"])
	assert.Equal(t, "fixing the bug", resp.Reasoning)
}

func TestParseActionBlockNoBlockIsMalformed(t *testing.T) {
	_, err := ParseActionBlock("I think we should edit the file.")
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestParseActionBlockMultipleBlocksIsMalformed(t *testing.T) {
	raw := "```action\naction: read_file\n```\n```action\naction: escalate\n```\n"
	_, err := ParseActionBlock(raw)
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestParseActionBlockMissingActionIsMalformed(t *testing.T) {
	raw := "```action\nparameters:\n  path: a.py\n```\n"
	_, err := ParseActionBlock(raw)
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestParseActionBlockInvalidYAMLIsMalformed(t *testing.T) {
	raw := "```action\naction: [unterminated\n```\n"
	_, err := ParseActionBlock(raw)
	assert.ErrorIs(t, err, ErrMalformedResponse)
}
