package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NicholasJacob1990/iudex0-sub002/internal/logging"
)

func collect(t *testing.T, stream <-chan StreamEvent) (tokens []string, result *EditResult, err error) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case evt, ok := <-stream:
			if !ok {
				return tokens, result, err
			}
			if evt.Token != "" {
				tokens = append(tokens, evt.Token)
			}
			if evt.Result != nil {
				result = evt.Result
			}
			if evt.Err != nil {
				err = evt.Err
			}
		case <-deadline:
			t.Fatal("stream did not close")
		}
	}
}

func TestCommitteeSingleModel(t *testing.T) {
	editor := NewFakeEditor()
	editor.Script("gemini-2.5-pro", EditResult{Original: "bar", Edited: "BAR baz"})
	committee := NewCommittee(editor, logging.Nop())

	stream := committee.Run(context.Background(), EditRequest{Message: "loud", Selection: "bar"})
	tokens, result, err := collect(t, stream)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "BAR baz", result.Edited)
	assert.Equal(t, []string{"gemini-2.5-pro"}, result.Agents)
	assert.Equal(t, "BAR baz", strings.Join(tokens, ""))
}

func TestCommitteeDebateAggregatesAgents(t *testing.T) {
	editor := NewFakeEditor()
	editor.Script("lead", EditResult{Original: "x", Edited: "lead edit"})
	editor.Script("second", EditResult{Original: "x", Edited: "second edit"})
	committee := NewCommittee(editor, logging.Nop())

	stream := committee.Run(context.Background(), EditRequest{
		Selection: "x",
		Models:    []string{"lead", "second"},
		UseDebate: true,
	})
	_, result, err := collect(t, stream)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "lead edit", result.Edited, "the lead model's edit wins")
	assert.ElementsMatch(t, []string{"lead", "second"}, result.Agents)
}

func TestCommitteeWithoutDebateRunsOnlyLead(t *testing.T) {
	editor := NewFakeEditor()
	committee := NewCommittee(editor, logging.Nop())

	stream := committee.Run(context.Background(), EditRequest{
		Selection: "x",
		Models:    []string{"lead", "second", "third"},
	})
	_, result, err := collect(t, stream)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, []string{"lead"}, editor.Calls())
}

func TestCommitteeDebaterFailureIsTolerated(t *testing.T) {
	editor := NewFakeEditor()
	editor.Script("lead", EditResult{Original: "x", Edited: "ok"})
	editor.Fail("flaky", errors.New("quota exceeded"))
	committee := NewCommittee(editor, logging.Nop())

	stream := committee.Run(context.Background(), EditRequest{
		Selection: "x",
		Models:    []string{"lead", "flaky"},
		UseDebate: true,
	})
	_, result, err := collect(t, stream)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, []string{"lead"}, result.Agents)
}

func TestCommitteeLeadFailureIsTerminal(t *testing.T) {
	editor := NewFakeEditor()
	editor.Fail("lead", errors.New("model offline"))
	committee := NewCommittee(editor, logging.Nop())

	stream := committee.Run(context.Background(), EditRequest{Selection: "x", Models: []string{"lead"}})
	_, result, err := collect(t, stream)
	assert.Nil(t, result)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model offline")
}

func TestCommitteeCancelClosesStreamWithoutTerminalEvent(t *testing.T) {
	editor := NewFakeEditor()
	committee := NewCommittee(editor, logging.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stream := committee.Run(ctx, EditRequest{Selection: "abandoned"})
	_, result, err := collect(t, stream)
	assert.Nil(t, result)
	assert.NoError(t, err)
}
