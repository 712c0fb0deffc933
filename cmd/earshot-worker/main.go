// Command earshot-worker runs the isolated extraction service. It exposes
// the signed extract endpoint plus health and metrics, and holds no state
// beyond per-request scratch directories.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"earshot/internal/config"
	"earshot/internal/logging"
	"earshot/internal/stt"
	"earshot/internal/worker"
)

func main() {
	configPath := flag.String("config", "", "configuration file path")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("ensure directories: %v", err)
	}

	logger, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		LogDir: cfg.Paths.LogDir,
	})
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	backend, err := stt.NewGoogleBackend(ctx, cfg.STT.AlternativeLanguages)
	if err != nil {
		log.Fatalf("speech backend: %v", err)
	}
	defer backend.Close()

	toolTimeout := time.Duration(cfg.Worker.ToolTimeout) * time.Second
	extractor := worker.NewExtractor(
		worker.NewYtDlpFetcher(cfg.Worker.YtDlpPath, toolTimeout),
		worker.NewFFmpegTranscoder(cfg.Worker.FFmpegPath, toolTimeout),
		backend,
		"",
		logger,
	)

	server, err := worker.NewServer(cfg.Worker.Bind, cfg.Dispatch.SharedSecret, extractor, worker.NewMetrics(), logger)
	if err != nil {
		log.Fatalf("create server: %v", err)
	}
	if err := server.Start(ctx); err != nil {
		log.Fatalf("start server: %v", err)
	}

	<-ctx.Done()
	server.Stop()
	logger.Info("earshot-worker shutting down")
}
