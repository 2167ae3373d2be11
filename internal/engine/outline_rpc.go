package engine

import (
	"context"
	"encoding/json"

	"github.com/NicholasJacob1990/iudex0-sub002/internal/errinfo"
	"github.com/NicholasJacob1990/iudex0-sub002/internal/outline"
)

// withOutline runs fn against the active chat's outline model and returns
// the refreshed outline view. All outline mutations funnel through here so
// the race guard and the "no outline yet" case live in one place.
func (e *Engine) withOutline(chatID string, fn func(*outline.Model) *errinfo.ErrorInfo) (any, *errinfo.ErrorInfo) {
	e.mu.Lock()
	defer e.mu.Unlock()
	sess, errInfo := e.activeSession(chatID)
	if errInfo != nil {
		return nil, errInfo
	}
	if sess.outline == nil {
		return nil, errinfo.ValidationFailed(errinfo.PhaseOutline, "no outline available")
	}
	if fn != nil {
		if errInfo := fn(sess.outline); errInfo != nil {
			return nil, errInfo
		}
	}
	return outlineView(sess.outline), nil
}

func outlineView(m *outline.Model) map[string]any {
	return map[string]any{
		"titles":      m.Titles(),
		"original":    m.Original(),
		"hil_targets": m.HILTargets(),
		"serialized":  m.Serialize(),
	}
}

func (e *Engine) OutlineGet(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	var req struct {
		ChatID string `json:"chat_id"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, errinfo.ValidationFailed(errinfo.PhaseOutline, "invalid params")
	}
	return e.withOutline(req.ChatID, nil)
}

func (e *Engine) OutlineAddTitle(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	var req struct {
		ChatID string `json:"chat_id"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, errinfo.ValidationFailed(errinfo.PhaseOutline, "invalid params")
	}
	return e.withOutline(req.ChatID, func(m *outline.Model) *errinfo.ErrorInfo {
		m.Add()
		return nil
	})
}

func (e *Engine) OutlineUpdateTitle(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	var req struct {
		ChatID string `json:"chat_id"`
		Index  int    `json:"index"`
		Text   string `json:"text"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, errinfo.ValidationFailed(errinfo.PhaseOutline, "invalid params")
	}
	return e.withOutline(req.ChatID, func(m *outline.Model) *errinfo.ErrorInfo {
		m.Update(req.Index, req.Text)
		return nil
	})
}

func (e *Engine) OutlineRemoveTitle(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	var req struct {
		ChatID string `json:"chat_id"`
		Index  int    `json:"index"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, errinfo.ValidationFailed(errinfo.PhaseOutline, "invalid params")
	}
	return e.withOutline(req.ChatID, func(m *outline.Model) *errinfo.ErrorInfo {
		m.Remove(req.Index)
		return nil
	})
}

func (e *Engine) OutlineReorder(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	var req struct {
		ChatID string   `json:"chat_id"`
		Titles []string `json:"titles"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, errinfo.ValidationFailed(errinfo.PhaseOutline, "invalid params")
	}
	return e.withOutline(req.ChatID, func(m *outline.Model) *errinfo.ErrorInfo {
		m.Reorder(req.Titles)
		return nil
	})
}

func (e *Engine) OutlineReset(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	var req struct {
		ChatID string `json:"chat_id"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, errinfo.ValidationFailed(errinfo.PhaseOutline, "invalid params")
	}
	return e.withOutline(req.ChatID, func(m *outline.Model) *errinfo.ErrorInfo {
		m.Reset()
		return nil
	})
}

func (e *Engine) OutlineToggleHILTarget(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	var req struct {
		ChatID string `json:"chat_id"`
		Title  string `json:"title"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, errinfo.ValidationFailed(errinfo.PhaseOutline, "invalid params")
	}
	return e.withOutline(req.ChatID, func(m *outline.Model) *errinfo.ErrorInfo {
		m.ToggleHILTarget(req.Title)
		return nil
	})
}
