package engine

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NicholasJacob1990/iudex0-sub002/internal/llm"
)

// gatedEditor blocks inside EditDocument until released, so tests can hold
// an edit stream open across other calls.
type gatedEditor struct {
	release chan struct{}
	result  llm.EditResult
}

func newGatedEditor(result llm.EditResult) *gatedEditor {
	return &gatedEditor{release: make(chan struct{}), result: result}
}

func (g *gatedEditor) EditDocument(ctx context.Context, modelID string, req llm.EditRequest, onToken func(string)) (llm.EditResult, error) {
	select {
	case <-g.release:
		return g.result, nil
	case <-ctx.Done():
		return llm.EditResult{}, ctx.Err()
	}
}

func setCanvas(t *testing.T, eng *Engine, chatID, content string) {
	t.Helper()
	_, errInfo := eng.CanvasSetContent(context.Background(), mustJSON(t, map[string]any{
		"chat_id": chatID,
		"content": content,
	}))
	require.Nil(t, errInfo)
}

func TestCanvasStreamLifecycle(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t)
	chatID := createChat(t, eng, "Contract review")

	_, errInfo := eng.CanvasBeginStream(ctx, mustJSON(t, map[string]any{"chat_id": chatID}))
	require.Nil(t, errInfo)
	_, errInfo = eng.CanvasAppendStreamDelta(ctx, mustJSON(t, map[string]any{"chat_id": chatID, "delta": "Foo "}))
	require.Nil(t, errInfo)
	_, errInfo = eng.CanvasAppendStreamDelta(ctx, mustJSON(t, map[string]any{"chat_id": chatID, "delta": "bar"}))
	require.Nil(t, errInfo)

	// Direct writes are refused while the document is still arriving.
	_, errInfo = eng.CanvasSetContent(ctx, mustJSON(t, map[string]any{"chat_id": chatID, "content": "x"}))
	require.NotNil(t, errInfo)
	assert.Equal(t, "DOCUMENT_PENDING", errInfo.ErrorCode)

	_, errInfo = eng.CanvasEndStream(ctx, mustJSON(t, map[string]any{"chat_id": chatID}))
	require.Nil(t, errInfo)

	resp, errInfo := eng.CanvasGetState(ctx, mustJSON(t, map[string]any{"chat_id": chatID}))
	require.Nil(t, errInfo)
	state := resp.(map[string]any)
	assert.Equal(t, "Foo bar", state["content"])
	assert.Equal(t, false, state["streaming"])
}

func TestCanvasEditProposalFlow(t *testing.T) {
	ctx := context.Background()
	editor := llm.NewFakeEditor()
	editor.Script("gemini-2.5-pro", llm.EditResult{
		Original: "bar",
		Edited:   "BAR",
		Agents:   []string{"gemini-2.5-pro"},
	})
	rec := &recorder{}
	eng := newTestEngine(t, WithEditor(editor))
	eng.SetNotifier(rec.notify)
	chatID := createChat(t, eng, "Contract review")
	setCanvas(t, eng, chatID, "Foo bar baz")

	resp, errInfo := eng.CanvasRequestEdit(ctx, mustJSON(t, map[string]any{
		"chat_id": chatID,
		"message": "capitalize the middle word",
		"range":   map[string]int{"from": 4, "to": 7},
		"models":  []string{"gemini-2.5-pro"},
	}))
	require.Nil(t, errInfo)
	editID := resp.(map[string]any)["edit_id"].(string)
	require.NotEmpty(t, editID)

	ready := rec.waitFor(t, "CanvasEditProposalReady")
	assert.Equal(t, editID, ready["edit_id"])

	previewResp, errInfo := eng.CanvasGetEditPreview(ctx, mustJSON(t, map[string]any{"chat_id": chatID}))
	require.Nil(t, errInfo)
	data, err := json.Marshal(previewResp)
	require.NoError(t, err)
	var preview struct {
		Agents []string `json:"agents"`
	}
	require.NoError(t, json.Unmarshal(data, &preview))
	assert.Equal(t, []string{"gemini-2.5-pro"}, preview.Agents)

	applyResp, errInfo := eng.CanvasApplyProposal(ctx, mustJSON(t, map[string]any{"chat_id": chatID}))
	require.Nil(t, errInfo)
	assert.Equal(t, "Foo BAR baz", applyResp.(map[string]any)["document"])

	_, errInfo = eng.CanvasApplyProposal(ctx, mustJSON(t, map[string]any{"chat_id": chatID}))
	require.NotNil(t, errInfo)
	assert.Equal(t, "NO_PROPOSAL_PENDING", errInfo.ErrorCode)
}

func TestCanvasApplyAmbiguousDriftIsStale(t *testing.T) {
	ctx := context.Background()
	editor := llm.NewFakeEditor()
	editor.Script("gemini-2.5-pro", llm.EditResult{Original: "bar", Edited: "BAR"})
	rec := &recorder{}
	eng := newTestEngine(t, WithEditor(editor))
	eng.SetNotifier(rec.notify)
	chatID := createChat(t, eng, "Contract review")
	setCanvas(t, eng, chatID, "Foo bar baz")

	_, errInfo := eng.CanvasRequestEdit(ctx, mustJSON(t, map[string]any{
		"chat_id": chatID,
		"message": "capitalize",
		"range":   map[string]int{"from": 4, "to": 7},
		"models":  []string{"gemini-2.5-pro"},
	}))
	require.Nil(t, errInfo)
	rec.waitFor(t, "CanvasEditProposalReady")

	// The document moved under the proposal and now matches in two places.
	setCanvas(t, eng, chatID, "bar Foo bar baz")
	_, errInfo = eng.CanvasApplyProposal(ctx, mustJSON(t, map[string]any{"chat_id": chatID}))
	require.NotNil(t, errInfo)
	assert.Equal(t, "EDIT_TARGET_STALE", errInfo.ErrorCode)

	setCanvas(t, eng, chatID, "nothing matches here")
	_, errInfo = eng.CanvasApplyProposal(ctx, mustJSON(t, map[string]any{"chat_id": chatID}))
	require.NotNil(t, errInfo)
	assert.Equal(t, "EDIT_TARGET_NOT_FOUND", errInfo.ErrorCode)
}

func TestCanvasApplyWhileStreamingIsPending(t *testing.T) {
	ctx := context.Background()
	editor := llm.NewFakeEditor()
	editor.Script("gemini-2.5-pro", llm.EditResult{Original: "bar", Edited: "BAR"})
	rec := &recorder{}
	eng := newTestEngine(t, WithEditor(editor))
	eng.SetNotifier(rec.notify)
	chatID := createChat(t, eng, "Contract review")
	setCanvas(t, eng, chatID, "Foo bar baz")

	_, errInfo := eng.CanvasRequestEdit(ctx, mustJSON(t, map[string]any{
		"chat_id": chatID,
		"message": "capitalize",
		"range":   map[string]int{"from": 4, "to": 7},
		"models":  []string{"gemini-2.5-pro"},
	}))
	require.Nil(t, errInfo)
	rec.waitFor(t, "CanvasEditProposalReady")

	_, errInfo = eng.CanvasBeginStream(ctx, mustJSON(t, map[string]any{"chat_id": chatID}))
	require.Nil(t, errInfo)
	_, errInfo = eng.CanvasApplyProposal(ctx, mustJSON(t, map[string]any{"chat_id": chatID}))
	require.NotNil(t, errInfo)
	assert.Equal(t, "DOCUMENT_PENDING", errInfo.ErrorCode)
	assert.True(t, errInfo.Retryable)
}

func TestCanvasRequestEditValidation(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t, WithEditor(llm.NewFakeEditor()))
	chatID := createChat(t, eng, "Contract review")
	setCanvas(t, eng, chatID, "short")

	_, errInfo := eng.CanvasRequestEdit(ctx, mustJSON(t, map[string]any{
		"chat_id": chatID,
		"message": "  ",
	}))
	require.NotNil(t, errInfo)
	assert.Equal(t, "VALIDATION_FAILED", errInfo.ErrorCode)

	_, errInfo = eng.CanvasRequestEdit(ctx, mustJSON(t, map[string]any{
		"chat_id": chatID,
		"message": "edit",
		"range":   map[string]int{"from": 2, "to": 99},
	}))
	require.NotNil(t, errInfo)
	assert.Equal(t, "VALIDATION_FAILED", errInfo.ErrorCode)
}

func TestCanvasEditFailureIsNotified(t *testing.T) {
	ctx := context.Background()
	editor := llm.NewFakeEditor()
	editor.Fail("gemini-2.5-pro", errors.New("backend exploded"))
	rec := &recorder{}
	eng := newTestEngine(t, WithEditor(editor))
	eng.SetNotifier(rec.notify)
	chatID := createChat(t, eng, "Contract review")
	setCanvas(t, eng, chatID, "Foo bar baz")

	_, errInfo := eng.CanvasRequestEdit(ctx, mustJSON(t, map[string]any{
		"chat_id": chatID,
		"message": "edit",
		"models":  []string{"gemini-2.5-pro"},
	}))
	require.Nil(t, errInfo)

	failed := rec.waitFor(t, "CanvasEditFailed")
	assert.Contains(t, failed["error"], "backend exploded")

	resp, errInfo := eng.CanvasGetState(ctx, mustJSON(t, map[string]any{"chat_id": chatID}))
	require.Nil(t, errInfo)
	assert.Equal(t, false, resp.(map[string]any)["has_proposal"])
}

func TestChatSwitchCancelsEditStream(t *testing.T) {
	ctx := context.Background()
	editor := newGatedEditor(llm.EditResult{Original: "bar", Edited: "BAR"})
	eng := newTestEngine(t, WithEditor(editor))
	first := createChat(t, eng, "Contract review")
	setCanvas(t, eng, first, "Foo bar baz")

	_, errInfo := eng.CanvasRequestEdit(ctx, mustJSON(t, map[string]any{
		"chat_id": first,
		"message": "edit",
		"range":   map[string]int{"from": 4, "to": 7},
		"models":  []string{"gemini-2.5-pro"},
	}))
	require.Nil(t, errInfo)

	// Switching away cancels the stream before the editor ever finishes.
	second := createChat(t, eng, "Appeal brief")
	_, errInfo = eng.ChatActivate(ctx, mustJSON(t, map[string]any{"chat_id": second}))
	require.Nil(t, errInfo)

	_, errInfo = eng.ChatActivate(ctx, mustJSON(t, map[string]any{"chat_id": first}))
	require.Nil(t, errInfo)
	resp, errInfo := eng.CanvasGetState(ctx, mustJSON(t, map[string]any{"chat_id": first}))
	require.Nil(t, errInfo)
	assert.Equal(t, false, resp.(map[string]any)["has_proposal"])
}

func TestCanvasExport(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t)
	chatID := createChat(t, eng, "Lease dispute")
	setCanvas(t, eng, chatID, "body text")

	resp, errInfo := eng.CanvasExport(ctx, mustJSON(t, map[string]any{
		"chat_id": chatID,
		"format":  "markdown",
	}))
	require.Nil(t, errInfo)
	path := resp.(map[string]any)["path"].(string)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# Lease dispute")
	assert.Contains(t, string(data), "body text")

	_, errInfo = eng.CanvasExport(ctx, mustJSON(t, map[string]any{
		"chat_id": chatID,
		"format":  "docx",
	}))
	require.NotNil(t, errInfo)
	assert.Equal(t, "EXPORT_FAILED", errInfo.ErrorCode)
}
