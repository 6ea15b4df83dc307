package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"ragchat/internal/app"
	"ragchat/internal/config"
	"ragchat/internal/logger"
)

func main() {
	base := slog.NewJSONHandler(os.Stdout, nil)
	slog.SetDefault(slog.New(logger.NewContextHandler(base)))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer deps.DB.Close()
	defer deps.Gemini.Close()

	var taskPub app.TaskPublisher
	if deps.NSQProducer != nil {
		taskPub = deps.NSQProducer
	}

	a, err := app.New(cfg, deps.DB, deps.Gemini, taskPub)
	if err != nil {
		slog.Error("failed to build app", "error", err)
		os.Exit(1)
	}

	if cfg.IngestMode == config.IngestModeQueued {
		consumer, err := app.StartIngestConsumer(cfg, a)
		if err != nil {
			slog.Error("failed to start ingest consumer", "error", err)
			os.Exit(1)
		}
		defer consumer.Stop()
		slog.Info("ingest consumer connected", "topic", config.TopicIngest)
	}

	if err := a.Run(ctx); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
