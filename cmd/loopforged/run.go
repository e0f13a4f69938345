package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"loopforge/internal/config"
	"loopforge/internal/daemon"
	"loopforge/internal/logging"
	"loopforge/internal/notifications"
	"loopforge/internal/queue"
	"loopforge/internal/render"
	"loopforge/internal/services/ffmpeg"
	"loopforge/internal/services/youtube"
	"loopforge/internal/upload"
	"loopforge/internal/workflow"
)

func run(configPath string) error {
	signalCtx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, resolvedPath, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("prepare directories: %w", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger.Info("loopforge daemon starting", logging.String("config", resolvedPath))

	store, err := queue.Open(cfg)
	if err != nil {
		return fmt.Errorf("open job store: %w", err)
	}

	encoder, err := ffmpeg.New(cfg.Render.FFmpegBinary)
	if err != nil {
		store.Close()
		return fmt.Errorf("configure encoder: %w", err)
	}
	auth := youtube.NewAuthenticator(cfg.Upload.ClientSecretsFile, cfg.Upload.TokenFile)
	uploader, err := youtube.New(auth, cfg.Upload.ChunkSizeMiB)
	if err != nil {
		store.Close()
		return fmt.Errorf("configure uploader: %w", err)
	}

	notifier := notifications.NewService(cfg)
	renderWorker := render.NewWorker(store, cfg, encoder, logger)
	uploadWorker := upload.NewWorker(store, cfg, uploader, logger)
	manager := workflow.NewManager(cfg, store, renderWorker, uploadWorker, notifier, logger)

	d, err := daemon.New(cfg, store, logger, manager)
	if err != nil {
		store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return err
	}

	<-signalCtx.Done()
	logger.Info("loopforge daemon shutting down")
	return nil
}
