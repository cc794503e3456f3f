package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/kirillkom/book-qa/internal/adapters/http"
	"github.com/kirillkom/book-qa/internal/bootstrap"
	"github.com/kirillkom/book-qa/internal/config"
	"github.com/kirillkom/book-qa/internal/observability/logging"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", "error", err.Error())
		return 1
	}
	logger := logging.Install(logging.New(os.Stdout, logging.Options{
		Service: "book-qa-api",
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err.Error())
		return 1
	}
	defer app.Close()

	err = httpadapter.Serve(ctx, cfg, httpadapter.Services{
		Converter: app.ConvertUC,
		Indexer:   app.IndexUC,
		Answerer:  app.QueryUC,
		Resetter:  app.ResetUC,
		Index:     app.Store,
	})
	if err != nil {
		logger.Error("api_server_failed", "error", err.Error())
		return 1
	}
	return 0
}
