package engine

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/NicholasJacob1990/iudex0-sub002/internal/chat"
	"github.com/NicholasJacob1990/iudex0-sub002/internal/checkpoint"
	"github.com/NicholasJacob1990/iudex0-sub002/internal/errinfo"
	"github.com/NicholasJacob1990/iudex0-sub002/internal/outline"
	"github.com/NicholasJacob1990/iudex0-sub002/internal/stream"
)

// PipelineStart begins a new pipeline job for a chat. The previous job's
// derived state (event log, snapshot, checkpoints, outline) dies with it;
// only the canvas carries over. One run per chat at a time.
func (e *Engine) PipelineStart(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	var req struct {
		ChatID string `json:"chat_id"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, errinfo.ValidationFailed(errinfo.PhasePipeline, "invalid params")
	}

	jobID := uuid.NewString()

	e.mu.Lock()
	sess, errInfo := e.activeSession(req.ChatID)
	if errInfo != nil {
		e.mu.Unlock()
		return nil, errInfo
	}
	chatID := sess.meta.ChatID
	e.mu.Unlock()

	runCtx, runID, errInfo := e.beginRun(context.Background(), chatID)
	if errInfo != nil {
		return nil, errInfo
	}

	e.mu.Lock()
	sess.jobID = jobID
	sess.events = nil
	sess.snapshot = stream.Reduce(jobID, nil)
	sess.checkpoints.Clear()
	sess.outline = nil
	sess.proposal = nil
	snapshot := sess.snapshot
	e.mu.Unlock()

	e.logger.Debug("pipeline.start", "chat_id", chatID, "job_id", jobID, "run_id", runID)
	e.emit("PipelineSnapshotUpdated", map[string]any{
		"chat_id":  chatID,
		"job_id":   jobID,
		"snapshot": snapshot,
	})

	if e.pipeline == nil {
		// Host-driven mode: events arrive via PipelineIngestEvents and the
		// run handle lives until PipelineCancelRun fires its context.
		go func() {
			<-runCtx.Done()
			e.endRun(chatID, runID)
		}()
		return map[string]any{"job_id": jobID, "run_id": runID}, nil
	}

	go func() {
		defer e.endRun(chatID, runID)
		err := e.pipeline.Run(runCtx, jobID, func(evt stream.Event) {
			if errInfo := e.ingestEvents(chatID, jobID, []stream.Event{evt}); errInfo != nil {
				e.logger.Warn("pipeline.emit_refused", "chat_id", chatID, "job_id", jobID, "code", errInfo.ErrorCode)
			}
		})
		result := map[string]any{"chat_id": chatID, "job_id": jobID}
		switch {
		case err == nil:
		case errors.Is(err, context.Canceled):
			result["canceled"] = true
		default:
			detail := truncateDetail(err.Error())
			result["error"] = detail
			e.logger.Warn("pipeline.run_failed", "chat_id", chatID, "job_id", jobID, "error", detail)
			e.appendSystemMessage(chatID, chat.Message{
				Text:      "Pipeline run failed: " + detail,
				EventKind: "pipeline_failed",
				JobID:     jobID,
			})
		}
		e.emit("PipelineRunFinished", result)
	}()

	return map[string]any{"job_id": jobID, "run_id": runID}, nil
}

func (e *Engine) PipelineCancelRun(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	var req struct {
		ChatID string `json:"chat_id"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, errinfo.ValidationFailed(errinfo.PhasePipeline, "invalid params")
	}
	if strings.TrimSpace(req.ChatID) == "" {
		return nil, errinfo.ValidationFailed(errinfo.PhasePipeline, "chat_id is required")
	}
	cancelRequested := e.cancelRun(req.ChatID)
	if cancelRequested {
		e.emit("PipelineRunCancelRequested", map[string]any{"chat_id": req.ChatID})
	}
	return map[string]any{"cancel_requested": cancelRequested}, nil
}

// PipelineIngestEvents appends a batch of raw pipeline events to the job's
// log. Malformed lines are skipped by the parser; the snapshot is recomputed
// from the full log, never patched.
func (e *Engine) PipelineIngestEvents(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	var req struct {
		ChatID string          `json:"chat_id"`
		JobID  string          `json:"job_id"`
		Events json.RawMessage `json:"events"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, errinfo.ValidationFailed(errinfo.PhasePipeline, "invalid params")
	}
	events := stream.ParseBatch(req.Events)
	if errInfo := e.ingestEvents(req.ChatID, req.JobID, events); errInfo != nil {
		return nil, errInfo
	}
	return map[string]any{"accepted": len(events)}, nil
}

// ingestEvents is the single path events take into a session, whether they
// arrive over RPC or from the pipeline collaborator. Events for a job that
// is no longer the session's current one are refused: they belong to a
// superseded run and must not leak into the new snapshot.
func (e *Engine) ingestEvents(chatID, jobID string, events []stream.Event) *errinfo.ErrorInfo {
	e.mu.Lock()
	sess, errInfo := e.sessionFor(chatID)
	if errInfo != nil {
		e.mu.Unlock()
		return errInfo
	}
	if sess.jobID == "" {
		e.mu.Unlock()
		return errinfo.NoRunActive(chatID)
	}
	if jobID != sess.jobID {
		e.mu.Unlock()
		err := errinfo.NoRunActive(chatID)
		err.JobID = jobID
		err.Detail = "job superseded"
		return err
	}
	sess.events = append(sess.events, events...)
	sess.snapshot = stream.Reduce(sess.jobID, sess.events)
	snapshot := sess.snapshot
	total := len(sess.events)
	e.mu.Unlock()

	e.emit("PipelineEventAppended", map[string]any{
		"chat_id":  chatID,
		"job_id":   jobID,
		"appended": len(events),
		"total":    total,
	})
	e.emit("PipelineSnapshotUpdated", map[string]any{
		"chat_id":  chatID,
		"job_id":   jobID,
		"snapshot": snapshot,
	})
	return nil
}

func (e *Engine) PipelineGetSnapshot(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	var req struct {
		ChatID string `json:"chat_id"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, errinfo.ValidationFailed(errinfo.PhasePipeline, "invalid params")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	sess, errInfo := e.sessionFor(req.ChatID)
	if errInfo != nil {
		return nil, errInfo
	}
	return map[string]any{
		"job_id":   sess.jobID,
		"snapshot": sess.snapshot,
	}, nil
}

// PipelineRaiseCheckpoint installs a pending human gate for the current
// job. A gate already pending is superseded, not queued; an outline gate
// additionally seeds the outline editor model from the proposed titles.
func (e *Engine) PipelineRaiseCheckpoint(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	var req struct {
		ChatID string `json:"chat_id"`
		checkpoint.Request
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, errinfo.ValidationFailed(errinfo.PhaseCheckpoint, "invalid params")
	}
	if !req.Kind.Valid() {
		return nil, errinfo.ValidationFailed(errinfo.PhaseCheckpoint, "unknown checkpoint kind")
	}

	e.mu.Lock()
	sess, errInfo := e.sessionFor(req.ChatID)
	if errInfo != nil {
		e.mu.Unlock()
		return nil, errInfo
	}
	if sess.jobID == "" || (req.JobID != "" && req.JobID != sess.jobID) {
		e.mu.Unlock()
		err := errinfo.NoRunActive(req.ChatID)
		err.JobID = req.JobID
		return nil, err
	}
	req.Request.JobID = sess.jobID
	superseded := sess.checkpoints.Raise(req.Request)
	pending := sess.checkpoints.Pending()
	if pending.Kind == checkpoint.KindOutline {
		sess.outline = outline.New(pending.Outline)
	}
	e.mu.Unlock()

	e.appendSystemMessage(req.ChatID, chat.Message{
		Text:       "Checkpoint raised: " + string(pending.Kind),
		EventKind:  "checkpoint_raised",
		Checkpoint: string(pending.Kind),
		JobID:      pending.JobID,
	})
	payload := map[string]any{
		"chat_id": req.ChatID,
		"request": pending,
	}
	if superseded != nil {
		payload["superseded_request_id"] = superseded.RequestID
	}
	e.emit("CheckpointPending", payload)

	if e.autoApproved(pending.Kind) {
		return e.resolveCheckpoint(ctx, req.ChatID, pending.RequestID, checkpoint.Decision{Approved: true}, true)
	}
	return map[string]any{"request_id": pending.RequestID}, nil
}

func (e *Engine) autoApproved(kind checkpoint.Kind) bool {
	loaded, err := e.settings.Load()
	if err != nil {
		e.logger.Warn("settings.load_failed", "error", err.Error())
		return false
	}
	return loaded.HIL.AutoApprove[string(kind)]
}

func (e *Engine) CheckpointGetPending(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	var req struct {
		ChatID string `json:"chat_id"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, errinfo.ValidationFailed(errinfo.PhaseCheckpoint, "invalid params")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	sess, errInfo := e.sessionFor(req.ChatID)
	if errInfo != nil {
		return nil, errInfo
	}
	return map[string]any{"request": sess.checkpoints.Pending()}, nil
}

func (e *Engine) CheckpointApprove(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	var req struct {
		ChatID    string `json:"chat_id"`
		RequestID string `json:"request_id"`
		Edits     string `json:"edits"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, errinfo.ValidationFailed(errinfo.PhaseCheckpoint, "invalid params")
	}
	return e.resolveCheckpoint(ctx, req.ChatID, req.RequestID, checkpoint.Decision{
		Approved: true,
		Edits:    req.Edits,
	}, false)
}

func (e *Engine) CheckpointReject(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	var req struct {
		ChatID       string `json:"chat_id"`
		RequestID    string `json:"request_id"`
		Instructions string `json:"instructions"`
		Proposal     string `json:"proposal"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, errinfo.ValidationFailed(errinfo.PhaseCheckpoint, "invalid params")
	}
	return e.resolveCheckpoint(ctx, req.ChatID, req.RequestID, checkpoint.Decision{
		Approved:     false,
		Instructions: req.Instructions,
		Proposal:     req.Proposal,
	}, false)
}

// resolveCheckpoint consumes the pending gate and hands the decision back
// to the pipeline. An approved outline gate serializes the live outline
// model and carries the HIL target sections with it; whatever the UI put in
// the edits field is superseded by what the user actually built.
func (e *Engine) resolveCheckpoint(ctx context.Context, chatID, requestID string, d checkpoint.Decision, auto bool) (any, *errinfo.ErrorInfo) {
	e.mu.Lock()
	sess, errInfo := e.activeSession(chatID)
	if errInfo != nil {
		e.mu.Unlock()
		return nil, errInfo
	}
	if chatID == "" {
		chatID = e.activeChatID
	}
	pending := sess.checkpoints.Pending()
	if d.Approved && pending != nil && pending.Kind == checkpoint.KindOutline && sess.outline != nil {
		d.Edits = sess.outline.Serialize()
		d.HILTargetSections = sess.outline.HILTargets()
	}
	var (
		decision checkpoint.Decision
		err      error
	)
	if d.Approved {
		decision, err = sess.checkpoints.Approve(requestID, d.Edits, d.HILTargetSections)
	} else {
		decision, err = sess.checkpoints.Reject(requestID, d.Instructions, d.Proposal)
	}
	jobID := sess.jobID
	e.mu.Unlock()

	switch {
	case errors.Is(err, checkpoint.ErrNonePending):
		return nil, errinfo.CheckpointNonePending(chatID)
	case errors.Is(err, checkpoint.ErrStaleRequest):
		return nil, errinfo.CheckpointStale(chatID, requestID)
	case err != nil:
		return nil, errinfo.ValidationFailed(errinfo.PhaseCheckpoint, err.Error())
	}

	if e.pipeline != nil {
		if err := e.pipeline.SubmitDecision(ctx, jobID, decision); err != nil {
			detail := truncateDetail(err.Error())
			e.logger.Warn("checkpoint.submit_failed", "chat_id", chatID, "job_id", jobID, "error", detail)
			return nil, errinfo.ProviderUnavailable(errinfo.PhaseCheckpoint, detail)
		}
	}

	verdict := "rejected"
	if decision.Approved {
		verdict = "approved"
	}
	if auto {
		verdict += " (auto)"
	}
	e.appendSystemMessage(chatID, chat.Message{
		Text:       "Checkpoint " + string(decision.Checkpoint) + " " + verdict,
		EventKind:  "checkpoint_resolved",
		Checkpoint: string(decision.Checkpoint),
		JobID:      jobID,
	})
	e.emit("CheckpointResolved", map[string]any{
		"chat_id":  chatID,
		"decision": decision,
		"auto":     auto,
	})
	e.logger.Debug("checkpoint.resolved", "chat_id", chatID, "checkpoint", string(decision.Checkpoint), "approved", decision.Approved, "auto", auto)
	return map[string]any{"decision": decision}, nil
}
