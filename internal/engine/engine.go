// Package engine is the orchestration boundary of the drafting engine: it
// owns per-chat sessions, the pipeline run lifecycle, and the RPC methods
// the UI host calls. Core semantics live in the leaf packages (stream,
// checkpoint, reconcile, outline); this package wires them to transport,
// persistence, and the model backends.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/NicholasJacob1990/iudex0-sub002/internal/appdirs"
	"github.com/NicholasJacob1990/iudex0-sub002/internal/chat"
	"github.com/NicholasJacob1990/iudex0-sub002/internal/checkpoint"
	"github.com/NicholasJacob1990/iudex0-sub002/internal/errinfo"
	"github.com/NicholasJacob1990/iudex0-sub002/internal/llm"
	"github.com/NicholasJacob1990/iudex0-sub002/internal/logging"
	"github.com/NicholasJacob1990/iudex0-sub002/internal/outline"
	"github.com/NicholasJacob1990/iudex0-sub002/internal/reconcile"
	"github.com/NicholasJacob1990/iudex0-sub002/internal/settings"
	"github.com/NicholasJacob1990/iudex0-sub002/internal/stream"
)

const (
	EngineVersion = "0.1.0"
	APIVersion    = "1"
)

// maxErrorDetailBytes caps collaborator error text before it is surfaced to
// the UI; backends can produce multi-kilobyte failures.
const maxErrorDetailBytes = 300

type Notifier func(method string, params any)

// PipelineClient is the document pipeline collaborator. Run drives one
// pipeline job, emitting progress events until the job completes or ctx is
// canceled; SubmitDecision hands a human checkpoint decision back to the
// paused job. The engine only folds the emitted events; the pipeline's own
// state lives on the other side of this boundary.
type PipelineClient interface {
	Run(ctx context.Context, jobID string, emit func(stream.Event)) error
	SubmitDecision(ctx context.Context, jobID string, decision checkpoint.Decision) error
}

// session is all engine-side state for one chat. A new pipeline job replaces
// the event log, snapshot, checkpoint machine, and outline wholesale; the
// canvas survives across jobs.
type session struct {
	meta            chat.Meta
	jobID           string
	events          []stream.Event
	snapshot        stream.Snapshot
	checkpoints     *checkpoint.Machine
	outline         *outline.Model
	canvasText      string
	canvasStreaming bool
	proposal        *reconcile.Proposal
}

type runHandle struct {
	runID  string
	cancel context.CancelFunc
}

type Engine struct {
	dataDir  string
	settings *settings.Store
	chats    *chat.Store
	editor   llm.DocumentEditor
	pipeline PipelineClient
	notify   Notifier
	logger   *slog.Logger

	mu           sync.Mutex
	sessions     map[string]*session
	activeChatID string

	runMu    sync.Mutex
	runs     map[string]runHandle
	editRuns map[string]runHandle
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithEditor installs the model backend used for canvas edit requests.
func WithEditor(editor llm.DocumentEditor) Option {
	return func(e *Engine) {
		if editor != nil {
			e.editor = editor
		}
	}
}

// WithPipeline installs the document pipeline collaborator. Without one the
// engine still accepts events via PipelineIngestEvents and returns decisions
// to the host for forwarding.
func WithPipeline(client PipelineClient) Option {
	return func(e *Engine) {
		if client != nil {
			e.pipeline = client
		}
	}
}

func New(opts ...Option) (*Engine, error) {
	engine := &Engine{logger: logging.Nop()}
	for _, opt := range opts {
		opt(engine)
	}
	dataDir, err := appdirs.DataDir()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, err
	}
	engine.dataDir = dataDir
	engine.settings = settings.NewStore(filepath.Join(dataDir, "settings.json"))
	engine.chats = chat.NewStore(appdirs.ChatsDir(dataDir))
	engine.sessions = make(map[string]*session)
	engine.runs = make(map[string]runHandle)
	engine.editRuns = make(map[string]runHandle)
	engine.logger.Debug("engine.init", "data_dir", dataDir)
	return engine, nil
}

func (e *Engine) SetNotifier(notify Notifier) {
	e.notify = notify
}

func (e *Engine) EngineGetInfo(ctx context.Context, _ json.RawMessage) (any, *errinfo.ErrorInfo) {
	return map[string]any{
		"engine_version": EngineVersion,
		"api_version":    APIVersion,
	}, nil
}

func (e *Engine) SettingsGet(ctx context.Context, _ json.RawMessage) (any, *errinfo.ErrorInfo) {
	loaded, err := e.settings.Load()
	if err != nil {
		return nil, errinfo.FileReadFailed(errinfo.PhaseSettings, err.Error())
	}
	return loaded, nil
}

func (e *Engine) SettingsUpdate(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	var req struct {
		AutoApprove         map[string]bool `json:"auto_approve"`
		DefaultModels       []string        `json:"default_models"`
		UseDebate           *bool           `json:"use_debate"`
		DefaultExportFormat string          `json:"default_export_format"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, errinfo.ValidationFailed(errinfo.PhaseSettings, "invalid params")
	}
	for kind := range req.AutoApprove {
		switch checkpoint.Kind(kind) {
		case checkpoint.KindSection, checkpoint.KindDivergence,
			checkpoint.KindCorrection, checkpoint.KindStyleCheck:
		default:
			return nil, errinfo.ValidationFailed(errinfo.PhaseSettings, fmt.Sprintf("checkpoint %q cannot be auto-approved", kind))
		}
	}
	updated, err := e.settings.Update(func(s *settings.Settings) {
		for kind, enabled := range req.AutoApprove {
			s.HIL.AutoApprove[kind] = enabled
		}
		if req.DefaultModels != nil {
			s.Edit.DefaultModels = req.DefaultModels
		}
		if req.UseDebate != nil {
			s.Edit.UseDebate = *req.UseDebate
		}
		if req.DefaultExportFormat != "" {
			s.DefaultExportFormat = req.DefaultExportFormat
		}
	})
	if err != nil {
		return nil, errinfo.FileWriteFailed(errinfo.PhaseSettings, err.Error())
	}
	return updated, nil
}

// sessionFor returns the session for chatID, faulting it in from the chat
// store when the engine restarted since the chat was created.
//
// Callers must hold e.mu.
func (e *Engine) sessionFor(chatID string) (*session, *errinfo.ErrorInfo) {
	if sess, ok := e.sessions[chatID]; ok {
		return sess, nil
	}
	if !e.chats.Exists(chatID) {
		return nil, errinfo.ChatNotFound(errinfo.PhaseChat, chatID)
	}
	sess := &session{
		meta:        chat.Meta{ChatID: chatID},
		checkpoints: checkpoint.NewMachine(),
	}
	e.sessions[chatID] = sess
	return sess, nil
}

// activeSession resolves chatID ("" means the active chat) and enforces the
// race guard: effectful calls targeting a chat that is no longer active are
// refused rather than applied to the wrong conversation.
//
// Callers must hold e.mu.
func (e *Engine) activeSession(chatID string) (*session, *errinfo.ErrorInfo) {
	if chatID == "" {
		chatID = e.activeChatID
	}
	if chatID == "" {
		return nil, errinfo.ChatNotActive(errinfo.PhaseChat, "")
	}
	if chatID != e.activeChatID {
		return nil, errinfo.ChatNotActive(errinfo.PhaseChat, chatID)
	}
	return e.sessionFor(chatID)
}

func (e *Engine) beginRun(parent context.Context, chatID string) (context.Context, string, *errinfo.ErrorInfo) {
	runCtx, cancel := context.WithCancel(parent)
	runID := fmt.Sprintf("run-%d", time.Now().UnixNano())

	e.runMu.Lock()
	defer e.runMu.Unlock()
	if _, exists := e.runs[chatID]; exists {
		cancel()
		return nil, "", errinfo.RunInProgress(chatID)
	}
	e.runs[chatID] = runHandle{runID: runID, cancel: cancel}
	return runCtx, runID, nil
}

func (e *Engine) endRun(chatID, runID string) {
	var cancel context.CancelFunc

	e.runMu.Lock()
	handle, ok := e.runs[chatID]
	if ok && handle.runID == runID {
		cancel = handle.cancel
		delete(e.runs, chatID)
	}
	e.runMu.Unlock()

	if cancel != nil {
		cancel()
	}
}

func (e *Engine) cancelRun(chatID string) bool {
	e.runMu.Lock()
	handle, ok := e.runs[chatID]
	e.runMu.Unlock()
	if !ok || handle.cancel == nil {
		return false
	}
	handle.cancel()
	return true
}

func (e *Engine) beginEditRun(parent context.Context, chatID string) (context.Context, string, *errinfo.ErrorInfo) {
	runCtx, cancel := context.WithCancel(parent)
	runID := fmt.Sprintf("edit-%d", time.Now().UnixNano())

	e.runMu.Lock()
	defer e.runMu.Unlock()
	if _, exists := e.editRuns[chatID]; exists {
		cancel()
		return nil, "", errinfo.EditInProgress(chatID)
	}
	e.editRuns[chatID] = runHandle{runID: runID, cancel: cancel}
	return runCtx, runID, nil
}

func (e *Engine) endEditRun(chatID, runID string) {
	var cancel context.CancelFunc

	e.runMu.Lock()
	handle, ok := e.editRuns[chatID]
	if ok && handle.runID == runID {
		cancel = handle.cancel
		delete(e.editRuns, chatID)
	}
	e.runMu.Unlock()

	if cancel != nil {
		cancel()
	}
}

func (e *Engine) cancelEditRun(chatID string) bool {
	e.runMu.Lock()
	handle, ok := e.editRuns[chatID]
	e.runMu.Unlock()
	if !ok || handle.cancel == nil {
		return false
	}
	handle.cancel()
	return true
}

func (e *Engine) emit(method string, params any) {
	if e.notify != nil {
		e.notify(method, params)
	}
}

func truncateDetail(detail string) string {
	if len(detail) <= maxErrorDetailBytes {
		return detail
	}
	return detail[:maxErrorDetailBytes] + "..."
}
