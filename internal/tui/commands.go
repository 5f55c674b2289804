package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/csheth/pdfchat/internal/chat"
	"github.com/csheth/pdfchat/internal/docs"
	"github.com/csheth/pdfchat/internal/recent"
	"github.com/csheth/pdfchat/internal/upload"
	"github.com/csheth/pdfchat/internal/viewer"
)

// startUploadCmd validates the file at path and starts a transfer. Validation errors
// come back synchronously from Inspect/Start so no store call happens for them.
func startUploadCmd(ctx context.Context, generation int, uploads *upload.Controller, file upload.File) tea.Cmd {
	return func() tea.Msg {
		attempt, err := uploads.Start(ctx, file)
		if err != nil {
			return uploadEventMsg{generation: generation, event: upload.Event{Err: err}}
		}
		return uploadStartedMsg{generation: generation, attempt: attempt}
	}
}

// nextUploadEventCmd pumps one event off the attempt. The model re-issues it until the
// final event or until the channel closes.
func nextUploadEventCmd(generation int, attempt *upload.Attempt) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-attempt.Events()
		if !ok {
			return uploadEventMsg{generation: generation, closed: true}
		}
		return uploadEventMsg{generation: generation, event: event}
	}
}

func resumeJob(store docs.DocumentStore, id string, generation int) jobRunner {
	return func(parent context.Context) (tea.Msg, error) {
		ctx, cancel := context.WithTimeout(parent, 30*time.Second)
		defer cancel()
		doc, err := store.GetDocument(ctx, id)
		return resumeResultMsg{generation: generation, document: doc, err: err}, err
	}
}

func sendJob(channel *chat.Channel, content string, generation int) jobRunner {
	return func(parent context.Context) (tea.Msg, error) {
		ctx, cancel := context.WithTimeout(parent, 30*time.Second)
		defer cancel()
		msg, err := channel.Post(ctx, content)
		return sendResultMsg{generation: generation, message: msg, err: err}, err
	}
}

// waitRefreshCmd blocks on the trigger. A cancelled session ends the loop there.
func waitRefreshCmd(ctx context.Context, trigger chat.Trigger, generation int) tea.Cmd {
	return func() tea.Msg {
		err := trigger.Wait(ctx)
		return refreshDueMsg{generation: generation, err: err}
	}
}

func refreshJob(channel *chat.Channel, generation int) jobRunner {
	return func(parent context.Context) (tea.Msg, error) {
		ctx, cancel := context.WithTimeout(parent, 15*time.Second)
		defer cancel()
		changed, err := channel.Refresh(ctx)
		return refreshResultMsg{generation: generation, changed: changed, err: err}, err
	}
}

func loadPDFJob(cache *viewer.Cache, doc docs.Document, generation int) jobRunner {
	return func(parent context.Context) (tea.Msg, error) {
		ctx, cancel := context.WithTimeout(parent, 2*time.Minute)
		defer cancel()
		msg := pdfLoadedMsg{generation: generation, documentID: doc.ID}
		path, err := cache.Fetch(ctx, doc)
		if err != nil {
			msg.err = err
			return msg, err
		}
		msg.path = path
		pages, err := viewer.Load(path)
		if err != nil {
			// The cached file still backs the fallback actions.
			msg.err = err
			return msg, err
		}
		msg.pages = pages
		return msg, nil
	}
}

func openExternallyJob(path string, generation int) jobRunner {
	return func(context.Context) (tea.Msg, error) {
		if err := viewer.OpenExternally(path); err != nil {
			return fallbackResultMsg{generation: generation, err: err}, err
		}
		return fallbackResultMsg{generation: generation, notice: "Opened " + filepath.Base(path) + " in the system viewer."}, nil
	}
}

func downloadJob(path, dir, name string, generation int) jobRunner {
	return func(context.Context) (tea.Msg, error) {
		written, err := viewer.Download(path, dir, name)
		if err != nil {
			return fallbackResultMsg{generation: generation, err: err}, err
		}
		return fallbackResultMsg{generation: generation, notice: "Saved a copy to " + written}, nil
	}
}

func touchRecentJob(path string, doc docs.Document) jobRunner {
	return func(context.Context) (tea.Msg, error) {
		entries, err := recent.Touch(path, doc, time.Now())
		return recentResultMsg{entries: entries, err: err}, err
	}
}

// rememberAbandoned puts documents committed after a cancelled upload on the recent
// list so they can still be resumed.
func rememberAbandoned(path string, logger *zap.Logger) upload.AbandonedFunc {
	return func(doc docs.Document) {
		if _, err := recent.Touch(path, doc, time.Now()); err != nil {
			logger.Warn("abandoned upload not recorded", zap.String("document_id", doc.ID), zap.Error(err))
		}
	}
}

// expandPath resolves a leading ~ and surrounding quotes left by terminal drag and drop.
func expandPath(value string) string {
	value = strings.TrimSpace(value)
	value = strings.Trim(value, `"'`)
	if value == "~" || strings.HasPrefix(value, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			value = filepath.Join(home, strings.TrimPrefix(value, "~"))
		}
	}
	return value
}

func trimmedName(value string) string {
	value = strings.TrimSpace(value)
	runes := []rune(value)
	if len(runes) <= maxFileNameWidth {
		return value
	}
	return fmt.Sprintf("%s…", strings.TrimSpace(string(runes[:maxFileNameWidth-3])))
}

func humanSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGT"[exp])
}
