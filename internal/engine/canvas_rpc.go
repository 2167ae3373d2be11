package engine

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"github.com/NicholasJacob1990/iudex0-sub002/internal/appdirs"
	"github.com/NicholasJacob1990/iudex0-sub002/internal/errinfo"
	"github.com/NicholasJacob1990/iudex0-sub002/internal/export"
	"github.com/NicholasJacob1990/iudex0-sub002/internal/llm"
	"github.com/NicholasJacob1990/iudex0-sub002/internal/reconcile"
)

// selectionContextChars is how much surrounding text travels with a
// selection so the model can match tone across the seam.
const selectionContextChars = 240

func (e *Engine) CanvasGetState(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	var req struct {
		ChatID string `json:"chat_id"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, errinfo.ValidationFailed(errinfo.PhaseCanvas, "invalid params")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	sess, errInfo := e.sessionFor(req.ChatID)
	if errInfo != nil {
		return nil, errInfo
	}
	result := map[string]any{
		"content":      sess.canvasText,
		"streaming":    sess.canvasStreaming,
		"has_proposal": sess.proposal != nil,
	}
	if sess.proposal != nil {
		result["proposal"] = sess.proposal
	}
	return result, nil
}

func (e *Engine) CanvasSetContent(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	var req struct {
		ChatID  string `json:"chat_id"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, errinfo.ValidationFailed(errinfo.PhaseCanvas, "invalid params")
	}
	e.mu.Lock()
	sess, errInfo := e.activeSession(req.ChatID)
	if errInfo != nil {
		e.mu.Unlock()
		return nil, errInfo
	}
	if sess.canvasStreaming {
		e.mu.Unlock()
		return nil, errinfo.DocumentPending(e.activeChatID)
	}
	chatID := sess.meta.ChatID
	sess.canvasText = req.Content
	e.mu.Unlock()

	e.emit("CanvasContentChanged", map[string]any{"chat_id": chatID})
	return map[string]any{"ok": true}, nil
}

// CanvasBeginStream marks the canvas as receiving a fresh document from the
// pipeline. While streaming the document is a moving target: proposals are
// held off with a pending failure rather than applied to it.
func (e *Engine) CanvasBeginStream(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	var req struct {
		ChatID string `json:"chat_id"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, errinfo.ValidationFailed(errinfo.PhaseCanvas, "invalid params")
	}
	e.mu.Lock()
	sess, errInfo := e.activeSession(req.ChatID)
	if errInfo != nil {
		e.mu.Unlock()
		return nil, errInfo
	}
	sess.canvasStreaming = true
	sess.canvasText = ""
	e.mu.Unlock()
	return map[string]any{"ok": true}, nil
}

func (e *Engine) CanvasAppendStreamDelta(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	var req struct {
		ChatID string `json:"chat_id"`
		Delta  string `json:"delta"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, errinfo.ValidationFailed(errinfo.PhaseCanvas, "invalid params")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	sess, errInfo := e.activeSession(req.ChatID)
	if errInfo != nil {
		return nil, errInfo
	}
	if !sess.canvasStreaming {
		return nil, errinfo.ValidationFailed(errinfo.PhaseCanvas, "canvas is not streaming")
	}
	sess.canvasText += req.Delta
	return map[string]any{"length": len(sess.canvasText)}, nil
}

func (e *Engine) CanvasEndStream(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	var req struct {
		ChatID string `json:"chat_id"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, errinfo.ValidationFailed(errinfo.PhaseCanvas, "invalid params")
	}
	e.mu.Lock()
	sess, errInfo := e.activeSession(req.ChatID)
	if errInfo != nil {
		e.mu.Unlock()
		return nil, errInfo
	}
	chatID := sess.meta.ChatID
	sess.canvasStreaming = false
	length := len(sess.canvasText)
	e.mu.Unlock()

	e.emit("CanvasContentChanged", map[string]any{"chat_id": chatID})
	return map[string]any{"length": length}, nil
}

// CanvasRequestEdit captures the current selection and fans the edit out to
// the model committee asynchronously. Tokens stream back as notifications;
// the finished rewrite arrives as a proposal, never as a direct canvas
// write. Returns immediately with the edit id.
func (e *Engine) CanvasRequestEdit(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	var req struct {
		ChatID    string           `json:"chat_id"`
		Message   string           `json:"message"`
		Range     *reconcile.Range `json:"range"`
		Models    []string         `json:"models"`
		UseDebate *bool            `json:"use_debate"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, errinfo.ValidationFailed(errinfo.PhaseCanvas, "invalid params")
	}
	if strings.TrimSpace(req.Message) == "" {
		return nil, errinfo.ValidationFailed(errinfo.PhaseCanvas, "message is required")
	}
	if e.editor == nil {
		return nil, errinfo.ProviderUnavailable(errinfo.PhaseCanvas, "no document editor configured")
	}

	e.mu.Lock()
	sess, errInfo := e.activeSession(req.ChatID)
	if errInfo != nil {
		e.mu.Unlock()
		return nil, errInfo
	}
	chatID := sess.meta.ChatID
	content := sess.canvasText
	e.mu.Unlock()

	editReq := llm.EditRequest{
		Message:  req.Message,
		Document: content,
	}
	var captured *reconcile.Range
	if req.Range != nil {
		r := *req.Range
		if r.From < 0 || r.To < r.From || r.To > len(content) {
			return nil, errinfo.ValidationFailed(errinfo.PhaseCanvas, "selection range out of bounds")
		}
		captured = &r
		editReq.Selection = content[r.From:r.To]
		editReq.SelectionContextBefore = content[max(0, r.From-selectionContextChars):r.From]
		editReq.SelectionContextAfter = content[r.To:min(len(content), r.To+selectionContextChars)]
	}

	loaded, err := e.settings.Load()
	if err != nil {
		return nil, errinfo.FileReadFailed(errinfo.PhaseSettings, err.Error())
	}
	editReq.Models = req.Models
	if len(editReq.Models) == 0 {
		editReq.Models = loaded.Edit.DefaultModels
	}
	editReq.UseDebate = loaded.Edit.UseDebate
	if req.UseDebate != nil {
		editReq.UseDebate = *req.UseDebate
	}

	runCtx, runID, errInfo := e.beginEditRun(context.Background(), chatID)
	if errInfo != nil {
		return nil, errInfo
	}
	editID := uuid.NewString()
	e.logger.Debug("canvas.request_edit", "chat_id", chatID, "edit_id", editID, "models", editReq.Models, "debate", editReq.UseDebate)

	go func() {
		defer e.endEditRun(chatID, runID)
		committee := llm.NewCommittee(e.editor, e.logger)
		for evt := range committee.Run(runCtx, editReq) {
			switch {
			case evt.Token != "":
				e.emit("CanvasEditStreamDelta", map[string]any{
					"chat_id":     chatID,
					"edit_id":     editID,
					"token_delta": evt.Token,
				})
			case evt.Err != nil:
				e.emit("CanvasEditFailed", map[string]any{
					"chat_id": chatID,
					"edit_id": editID,
					"error":   truncateDetail(evt.Err.Error()),
				})
			case evt.Result != nil:
				e.installProposal(chatID, editID, captured, *evt.Result)
			}
		}
	}()

	return map[string]any{"edit_id": editID}, nil
}

// installProposal stores a finished committee rewrite as the chat's pending
// proposal. The active-chat guard runs again here: the user may have
// switched chats while the models were working, and a proposal for a chat
// they left is dropped, not installed.
func (e *Engine) installProposal(chatID, editID string, captured *reconcile.Range, result llm.EditResult) {
	proposal := reconcile.Proposal{
		Original: result.Original,
		Edited:   result.Edited,
		Range:    captured,
		Agents:   result.Agents,
	}

	e.mu.Lock()
	if chatID != e.activeChatID {
		e.mu.Unlock()
		e.logger.Debug("canvas.proposal_dropped", "chat_id", chatID, "edit_id", editID)
		return
	}
	sess, errInfo := e.sessionFor(chatID)
	if errInfo != nil {
		e.mu.Unlock()
		return
	}
	sess.proposal = &proposal
	e.mu.Unlock()

	e.emit("CanvasEditProposalReady", map[string]any{
		"chat_id":  chatID,
		"edit_id":  editID,
		"proposal": proposal,
	})
}

func (e *Engine) CanvasGetEditPreview(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	var req struct {
		ChatID string `json:"chat_id"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, errinfo.ValidationFailed(errinfo.PhaseCanvas, "invalid params")
	}
	e.mu.Lock()
	sess, errInfo := e.sessionFor(req.ChatID)
	if errInfo != nil {
		e.mu.Unlock()
		return nil, errInfo
	}
	if sess.proposal == nil {
		chatID := sess.meta.ChatID
		e.mu.Unlock()
		return nil, errinfo.NoProposalPending(chatID)
	}
	proposal := *sess.proposal
	e.mu.Unlock()

	hunks, truncated := reconcile.PreviewWithLimit(proposal, reconcile.MaxPreviewLines)
	return map[string]any{
		"hunks":     hunks,
		"truncated": truncated,
		"agents":    proposal.Agents,
	}, nil
}

// CanvasApplyProposal re-reads the canvas at apply time and reconciles the
// pending proposal into it. Stale and not-found outcomes keep the proposal
// so the user can still preview what was offered before reselecting.
func (e *Engine) CanvasApplyProposal(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	var req struct {
		ChatID string `json:"chat_id"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, errinfo.ValidationFailed(errinfo.PhaseCanvas, "invalid params")
	}
	e.mu.Lock()
	sess, errInfo := e.activeSession(req.ChatID)
	if errInfo != nil {
		e.mu.Unlock()
		return nil, errInfo
	}
	chatID := sess.meta.ChatID
	if sess.proposal == nil {
		e.mu.Unlock()
		return nil, errinfo.NoProposalPending(chatID)
	}
	doc := reconcile.Document{Text: sess.canvasText, Ready: !sess.canvasStreaming}
	result := reconcile.Apply(doc, *sess.proposal)
	if result.Success {
		sess.canvasText = result.Document
		sess.proposal = nil
	}
	e.mu.Unlock()

	switch result.Reason {
	case reconcile.ReasonOK:
		e.logger.Debug("canvas.proposal_applied", "chat_id", chatID)
		e.emit("CanvasContentChanged", map[string]any{"chat_id": chatID})
		return map[string]any{"document": result.Document}, nil
	case reconcile.ReasonPending:
		return nil, errinfo.DocumentPending(chatID)
	case reconcile.ReasonStale:
		return nil, errinfo.EditTargetStale(chatID, "selection no longer matches the document")
	default:
		return nil, errinfo.EditTargetNotFound(chatID, "selection not present in the document")
	}
}

func (e *Engine) CanvasDismissProposal(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	var req struct {
		ChatID string `json:"chat_id"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, errinfo.ValidationFailed(errinfo.PhaseCanvas, "invalid params")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	sess, errInfo := e.activeSession(req.ChatID)
	if errInfo != nil {
		return nil, errInfo
	}
	dismissed := sess.proposal != nil
	sess.proposal = nil
	return map[string]any{"dismissed": dismissed}, nil
}

func (e *Engine) CanvasExport(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	var req struct {
		ChatID string `json:"chat_id"`
		Title  string `json:"title"`
		Format string `json:"format"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, errinfo.ValidationFailed(errinfo.PhaseExport, "invalid params")
	}
	e.mu.Lock()
	sess, errInfo := e.sessionFor(req.ChatID)
	if errInfo != nil {
		e.mu.Unlock()
		return nil, errInfo
	}
	if sess.canvasStreaming {
		chatID := sess.meta.ChatID
		e.mu.Unlock()
		return nil, errinfo.DocumentPending(chatID)
	}
	content := sess.canvasText
	title := req.Title
	if title == "" {
		title = sess.meta.Title
	}
	e.mu.Unlock()

	format := export.Format(req.Format)
	if req.Format == "" {
		loaded, err := e.settings.Load()
		if err != nil {
			return nil, errinfo.FileReadFailed(errinfo.PhaseSettings, err.Error())
		}
		format = export.Format(loaded.DefaultExportFormat)
	}
	path, err := export.Write(appdirs.ExportsDir(e.dataDir), export.Request{
		Title:   title,
		Content: content,
		Format:  format,
	})
	if err != nil {
		return nil, errinfo.ExportFailed(truncateDetail(err.Error()))
	}
	e.logger.Debug("canvas.export", "chat_id", req.ChatID, "path", path, "format", string(format))
	return map[string]any{"path": path}, nil
}
