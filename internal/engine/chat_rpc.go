package engine

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/NicholasJacob1990/iudex0-sub002/internal/chat"
	"github.com/NicholasJacob1990/iudex0-sub002/internal/checkpoint"
	"github.com/NicholasJacob1990/iudex0-sub002/internal/errinfo"
)

func (e *Engine) ChatCreate(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	var req struct {
		Title string `json:"title"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, errinfo.ValidationFailed(errinfo.PhaseChat, "invalid params")
	}
	meta, err := e.chats.Create(req.Title)
	if err != nil {
		return nil, errinfo.FileWriteFailed(errinfo.PhaseChat, err.Error())
	}
	e.mu.Lock()
	e.sessions[meta.ChatID] = &session{
		meta:        meta,
		checkpoints: checkpoint.NewMachine(),
	}
	previous := e.activeChatID
	e.activeChatID = meta.ChatID
	e.mu.Unlock()

	// A new chat becomes active immediately, same as ChatActivate.
	if previous != "" && e.cancelEditRun(previous) {
		e.logger.Debug("chat.create_canceled_edit", "chat_id", previous)
	}
	e.logger.Debug("chat.create", "chat_id", meta.ChatID, "title", meta.Title)
	return meta, nil
}

func (e *Engine) ChatList(ctx context.Context, _ json.RawMessage) (any, *errinfo.ErrorInfo) {
	metas, err := e.chats.List()
	if err != nil {
		return nil, errinfo.FileReadFailed(errinfo.PhaseChat, err.Error())
	}
	e.mu.Lock()
	active := e.activeChatID
	e.mu.Unlock()
	return map[string]any{
		"chats":          metas,
		"active_chat_id": active,
	}, nil
}

// ChatActivate switches the active chat. The in-flight edit stream of the
// previously active chat is canceled: its proposal would land on a canvas
// the user is no longer looking at.
func (e *Engine) ChatActivate(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	var req struct {
		ChatID string `json:"chat_id"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, errinfo.ValidationFailed(errinfo.PhaseChat, "invalid params")
	}
	if strings.TrimSpace(req.ChatID) == "" {
		return nil, errinfo.ValidationFailed(errinfo.PhaseChat, "chat_id is required")
	}

	e.mu.Lock()
	if req.ChatID == e.activeChatID {
		e.mu.Unlock()
		return map[string]any{"chat_id": req.ChatID}, nil
	}
	if _, errInfo := e.sessionFor(req.ChatID); errInfo != nil {
		e.mu.Unlock()
		return nil, errInfo
	}
	previous := e.activeChatID
	e.activeChatID = req.ChatID
	e.mu.Unlock()

	if previous != "" && e.cancelEditRun(previous) {
		e.logger.Debug("chat.activate_canceled_edit", "chat_id", previous)
	}
	e.logger.Debug("chat.activate", "chat_id", req.ChatID, "previous", previous)
	return map[string]any{"chat_id": req.ChatID}, nil
}

func (e *Engine) ChatGetTranscript(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	var req struct {
		ChatID string `json:"chat_id"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, errinfo.ValidationFailed(errinfo.PhaseChat, "invalid params")
	}
	if !e.chats.Exists(req.ChatID) {
		return nil, errinfo.ChatNotFound(errinfo.PhaseChat, req.ChatID)
	}
	messages, err := e.chats.Transcript(req.ChatID)
	if err != nil {
		return nil, errinfo.FileReadFailed(errinfo.PhaseChat, err.Error())
	}
	return map[string]any{"messages": messages}, nil
}

func (e *Engine) ChatSendUserMessage(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	var req struct {
		ChatID string `json:"chat_id"`
		Text   string `json:"text"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, errinfo.ValidationFailed(errinfo.PhaseChat, "invalid params")
	}
	if strings.TrimSpace(req.Text) == "" {
		return nil, errinfo.ValidationFailed(errinfo.PhaseChat, "empty message")
	}

	e.mu.Lock()
	_, errInfo := e.activeSession(req.ChatID)
	chatID := e.activeChatID
	e.mu.Unlock()
	if errInfo != nil {
		return nil, errInfo
	}

	entry, err := e.chats.Append(chatID, chat.Message{Role: "user", Text: req.Text})
	if err != nil {
		return nil, errinfo.FileWriteFailed(errinfo.PhaseChat, err.Error())
	}
	e.logger.Debug("chat.send_user_message", "chat_id", chatID, "message_id", entry.MessageID)
	return map[string]any{"message_id": entry.MessageID}, nil
}

// appendSystemMessage records a pipeline milestone in the transcript so a
// reopened chat can explain what happened. Transcript write failures are
// logged, not surfaced: the milestone already took effect.
func (e *Engine) appendSystemMessage(chatID string, entry chat.Message) {
	entry.Role = "system"
	if _, err := e.chats.Append(chatID, entry); err != nil {
		e.logger.Warn("chat.append_system_failed", "chat_id", chatID, "error", err.Error())
	}
}
