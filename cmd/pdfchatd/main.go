package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/csheth/pdfchat/internal/answer"
	"github.com/csheth/pdfchat/internal/api"
	"github.com/csheth/pdfchat/internal/config"
	"github.com/csheth/pdfchat/internal/docs"
	"github.com/csheth/pdfchat/internal/llm"
	"github.com/csheth/pdfchat/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Println("config error:", err)
		os.Exit(1)
	}
	addr := flag.String("addr", cfg.ListenAddr, "listen address")
	dbPath := flag.String("db", cfg.DatabasePath, "sqlite database path")
	flag.Parse()
	cfg.ListenAddr = *addr
	cfg.DatabasePath = *dbPath
	if err := cfg.Validate(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	logger, err := logging.New(logging.Options{File: cfg.LogFile, Level: cfg.LogLevel, Console: true})
	if err != nil {
		fmt.Println("logger error:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Error("pdfchatd stopped", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := docs.NewSQLiteStore(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	llmCfg := llm.Config{Model: cfg.OllamaModel, Endpoint: cfg.OllamaHost}
	if cfg.OpenAIKey != "" {
		llmCfg = llm.Config{APIKey: cfg.OpenAIKey, Model: cfg.OpenAIModel, Endpoint: cfg.OpenAIBaseURL}
	}
	client, err := llm.NewFromEnv(llmCfg)
	if err != nil {
		return fmt.Errorf("llm setup: %w", err)
	}

	hub := api.NewHub(logger)
	worker := answer.NewWorker(store, client, answer.WithLogger(logger))
	messages := answer.NewDispatcher(store, worker, hub.Publish)
	go func() {
		if err := worker.Run(ctx, messages); err != nil && ctx.Err() == nil {
			logger.Error("answer worker stopped", zap.Error(err))
		}
	}()

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.NewServer(store, messages, hub, logger).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("pdfchatd listening",
			zap.String("addr", cfg.ListenAddr),
			zap.String("db", cfg.DatabasePath),
			zap.String("llm", client.Name()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
