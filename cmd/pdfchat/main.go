package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/csheth/pdfchat/internal/answer"
	"github.com/csheth/pdfchat/internal/api"
	"github.com/csheth/pdfchat/internal/chat"
	"github.com/csheth/pdfchat/internal/config"
	"github.com/csheth/pdfchat/internal/docs"
	"github.com/csheth/pdfchat/internal/llm"
	"github.com/csheth/pdfchat/internal/logging"
	"github.com/csheth/pdfchat/internal/tui"
	"github.com/csheth/pdfchat/internal/viewer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Println("config error:", err)
		os.Exit(1)
	}

	serverURL := flag.String("server", cfg.ServerURL, "pdfchatd base URL; empty runs the stores in-process")
	dbPath := flag.String("db", cfg.DatabasePath, "sqlite database used in embedded mode")
	documentID := flag.String("document", "", "resume the chat for an existing document id")
	noAltScreen := flag.Bool("no-alt-screen", false, "disable the alternate screen buffer")
	push := flag.Bool("push", cfg.Push, "use the server change feed instead of polling")
	pollInterval := flag.Duration("poll", cfg.PollInterval, "message refresh interval")
	flag.Parse()

	cfg.ServerURL = *serverURL
	cfg.DatabasePath = *dbPath
	cfg.Push = *push
	cfg.PollInterval = *pollInterval
	if err := cfg.Validate(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	logger, err := logging.New(logging.Options{File: cfg.LogFile, Level: cfg.LogLevel})
	if err != nil {
		fmt.Println("logging disabled:", err)
		logger = logging.Nop()
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend, err := openStores(ctx, cfg, logger)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer backend.close()

	cache, err := viewer.NewCache(cfg.CacheDir, backend.documents)
	if err != nil {
		logger.Warn("pdf cache unavailable", zap.Error(err))
		cache = nil
	}

	opts := []tea.ProgramOption{tea.WithMouseCellMotion()}
	if !*noAltScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	program := tea.NewProgram(
		tui.New(tui.Config{
			Documents:          backend.documents,
			Messages:           backend.messages,
			Cache:              cache,
			Trigger:            backend.trigger,
			PollInterval:       cfg.PollInterval,
			ReplyTimeoutCycles: cfg.ReplyTimeoutCycles,
			RecentFile:         cfg.RecentFile,
			DocumentID:         *documentID,
			Logger:             logger,
		}),
		opts...,
	)

	if _, err := program.Run(); err != nil {
		logger.Error("program error", zap.Error(err))
		fmt.Println("program error:", err)
		os.Exit(1)
	}
}

type stores struct {
	documents docs.DocumentStore
	messages  docs.MessageStore
	trigger   tui.TriggerFunc
	close     func()
}

// openStores connects to a daemon when one is configured, otherwise it opens the
// sqlite store and runs the answering worker in-process.
func openStores(ctx context.Context, cfg config.Config, logger *zap.Logger) (*stores, error) {
	if !cfg.Embedded() {
		client := api.NewClient(cfg.ServerURL, nil)
		if err := client.Health(ctx); err != nil {
			return nil, fmt.Errorf("pdfchatd unreachable at %s: %w", cfg.ServerURL, err)
		}
		s := &stores{documents: client, messages: client, close: func() {}}
		if cfg.Push {
			s.trigger = func(ctx context.Context, documentID string) (chat.Trigger, error) {
				feed, err := client.Subscribe(ctx, documentID, cfg.PollInterval)
				if err != nil {
					return nil, err
				}
				return feed, nil
			}
		}
		logger.Info("using remote stores", zap.String("server", cfg.ServerURL), zap.Bool("push", cfg.Push))
		return s, nil
	}

	store, err := docs.NewSQLiteStore(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	client, err := llm.NewFromEnv(llmConfig(cfg))
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("llm setup: %w", err)
	}
	worker := answer.NewWorker(store, client, answer.WithLogger(logger))
	messages := answer.NewDispatcher(store, worker)
	go func() {
		if err := worker.Run(ctx, messages); err != nil && ctx.Err() == nil {
			logger.Error("answer worker stopped", zap.Error(err))
		}
	}()
	logger.Info("using embedded stores", zap.String("db", cfg.DatabasePath), zap.String("llm", client.Name()))
	return &stores{
		documents: store,
		messages:  messages,
		close:     func() { store.Close() },
	}, nil
}

func llmConfig(cfg config.Config) llm.Config {
	if cfg.OpenAIKey != "" {
		return llm.Config{APIKey: cfg.OpenAIKey, Model: cfg.OpenAIModel, Endpoint: cfg.OpenAIBaseURL}
	}
	return llm.Config{Model: cfg.OllamaModel, Endpoint: cfg.OllamaHost}
}
