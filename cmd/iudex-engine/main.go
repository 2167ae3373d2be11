package main

import (
	"context"
	"log"
	"os"

	"github.com/NicholasJacob1990/iudex0-sub002/internal/appdirs"
	"github.com/NicholasJacob1990/iudex0-sub002/internal/engine"
	"github.com/NicholasJacob1990/iudex0-sub002/internal/envfile"
	"github.com/NicholasJacob1990/iudex0-sub002/internal/envutil"
	"github.com/NicholasJacob1990/iudex0-sub002/internal/logging"
	"github.com/NicholasJacob1990/iudex0-sub002/internal/rpc"
)

func main() {
	envResult := envfile.Load()
	debug := envutil.Bool("IUDEX_DEBUG")
	dataDir, err := appdirs.DataDir()
	if err != nil {
		log.Fatalf("engine init failed: %v", err)
	}
	logSetup, logErr := logging.NewFileLogger(dataDir, debug)
	logger := logSetup.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	logger = logger.With("component", "engine")
	if logSetup.Enabled {
		logger.Info("engine.logging_enabled", "path", logSetup.Path)
	}
	if envResult.Loaded {
		logger.Debug("engine.env_loaded", "path", envResult.Path, "keys", envResult.Keys)
	}
	if envResult.Err != nil {
		logger.Warn("engine.env_load_failed", "path", envResult.Path, "error", envResult.Err.Error())
	}
	if logErr != nil {
		logger.Warn("engine.log_setup_failed", "error", logErr.Error())
	}
	if logSetup.Close != nil {
		defer logSetup.Close()
	}

	eng, err := engine.New(engine.WithLogger(logger))
	if err != nil {
		logger.Error("engine.init_failed", "error", err.Error())
		log.Fatalf("engine init failed: %v", err)
	}
	server := rpc.NewServer(engine.APIVersion, os.Stdin, os.Stdout, logger)
	eng.SetNotifier(server.Notify)

	server.Register("EngineGetInfo", eng.EngineGetInfo)
	server.Register("SettingsGet", eng.SettingsGet)
	server.Register("SettingsUpdate", eng.SettingsUpdate)

	server.Register("ChatCreate", eng.ChatCreate)
	server.Register("ChatList", eng.ChatList)
	server.Register("ChatActivate", eng.ChatActivate)
	server.Register("ChatGetTranscript", eng.ChatGetTranscript)
	server.Register("ChatSendUserMessage", eng.ChatSendUserMessage)

	server.Register("PipelineStart", eng.PipelineStart)
	server.Register("PipelineCancelRun", eng.PipelineCancelRun)
	server.Register("PipelineIngestEvents", eng.PipelineIngestEvents)
	server.Register("PipelineGetSnapshot", eng.PipelineGetSnapshot)
	server.Register("PipelineRaiseCheckpoint", eng.PipelineRaiseCheckpoint)
	server.Register("CheckpointGetPending", eng.CheckpointGetPending)
	server.Register("CheckpointApprove", eng.CheckpointApprove)
	server.Register("CheckpointReject", eng.CheckpointReject)

	server.Register("OutlineGet", eng.OutlineGet)
	server.Register("OutlineAddTitle", eng.OutlineAddTitle)
	server.Register("OutlineUpdateTitle", eng.OutlineUpdateTitle)
	server.Register("OutlineRemoveTitle", eng.OutlineRemoveTitle)
	server.Register("OutlineReorder", eng.OutlineReorder)
	server.Register("OutlineReset", eng.OutlineReset)
	server.Register("OutlineToggleHILTarget", eng.OutlineToggleHILTarget)

	server.Register("CanvasGetState", eng.CanvasGetState)
	server.Register("CanvasSetContent", eng.CanvasSetContent)
	server.Register("CanvasBeginStream", eng.CanvasBeginStream)
	server.Register("CanvasAppendStreamDelta", eng.CanvasAppendStreamDelta)
	server.Register("CanvasEndStream", eng.CanvasEndStream)
	server.Register("CanvasRequestEdit", eng.CanvasRequestEdit)
	server.Register("CanvasGetEditPreview", eng.CanvasGetEditPreview)
	server.Register("CanvasApplyProposal", eng.CanvasApplyProposal)
	server.Register("CanvasDismissProposal", eng.CanvasDismissProposal)
	server.Register("CanvasExport", eng.CanvasExport)

	if err := server.Serve(context.Background()); err != nil {
		logger.Error("rpc.server_error", "error", err.Error())
		log.Fatalf("rpc server error: %v", err)
	}
}
