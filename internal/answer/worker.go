package answer

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/csheth/pdfchat/internal/docs"
	"github.com/csheth/pdfchat/internal/llm"
	"github.com/csheth/pdfchat/internal/pdftext"
)

// Apology is persisted when the model cannot produce an answer, so the asker's pending
// indicator resolves.
const Apology = "Sorry, I couldn't generate an answer right now. Please try again."

const (
	defaultQueueSize     = 64
	defaultAnswerTimeout = 3 * time.Minute
)

// ErrQueueFull is returned by Enqueue when the worker is saturated.
var ErrQueueFull = errors.New("answer queue is full")

// Worker answers user messages one at a time.
type Worker struct {
	documents docs.DocumentStore
	client    llm.Client
	builder   *Builder
	logger    *zap.Logger
	timeout   time.Duration
	queue     chan docs.Message

	mu    sync.Mutex
	pages map[string][]string
}

// WorkerOption customizes a Worker.
type WorkerOption func(*Worker)

func WithLogger(logger *zap.Logger) WorkerOption {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

func WithBuilder(builder *Builder) WorkerOption {
	return func(w *Worker) {
		if builder != nil {
			w.builder = builder
		}
	}
}

func WithTimeout(timeout time.Duration) WorkerOption {
	return func(w *Worker) {
		if timeout > 0 {
			w.timeout = timeout
		}
	}
}

func WithQueueSize(size int) WorkerOption {
	return func(w *Worker) {
		if size > 0 {
			w.queue = make(chan docs.Message, size)
		}
	}
}

func NewWorker(documents docs.DocumentStore, client llm.Client, opts ...WorkerOption) *Worker {
	w := &Worker{
		documents: documents,
		client:    client,
		builder:   NewBuilder(0),
		logger:    zap.NewNop(),
		timeout:   defaultAnswerTimeout,
		queue:     make(chan docs.Message, defaultQueueSize),
		pages:     map[string][]string{},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Enqueue schedules msg for an answer without blocking.
func (w *Worker) Enqueue(msg docs.Message) error {
	select {
	case w.queue <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run answers queued messages until ctx is done, writing replies to sink.
func (w *Worker) Run(ctx context.Context, sink docs.MessageStore) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-w.queue:
			if _, err := w.Reply(ctx, sink, msg); err != nil && ctx.Err() == nil {
				w.logger.Error("answer failed",
					zap.String("document_id", msg.DocumentID),
					zap.String("message_id", msg.ID),
					zap.Error(err),
				)
			}
		}
	}
}

// Reply produces and stores the assistant message for question.
func (w *Worker) Reply(ctx context.Context, sink docs.MessageStore, question docs.Message) (docs.Message, error) {
	started := time.Now()
	doc, err := w.documents.GetDocument(ctx, question.DocumentID)
	if err != nil {
		return docs.Message{}, err
	}

	content, citations := w.answer(ctx, doc, question.Content)
	reply, err := sink.CreateMessage(ctx, doc.ID, docs.RoleAssistant, content, citations)
	if err != nil {
		return docs.Message{}, err
	}
	w.logger.Info("answered",
		zap.String("document_id", doc.ID),
		zap.String("message_id", question.ID),
		zap.Int("citations", len(citations)),
		zap.Duration("duration", time.Since(started)),
	)
	return reply, nil
}

func (w *Worker) answer(ctx context.Context, doc docs.Document, question string) (string, []docs.Citation) {
	pages, err := w.pagesFor(ctx, doc.ID)
	if err != nil {
		w.logger.Warn("document text unavailable", zap.String("document_id", doc.ID), zap.Error(err))
		return Apology, nil
	}
	prompt := w.builder.Build(pages, question)

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	text, err := w.client.Answer(ctx, doc.OriginalName, question, prompt)
	if err != nil {
		w.logger.Warn("model call failed",
			zap.String("document_id", doc.ID),
			zap.String("model", w.client.Name()),
			zap.Error(err),
		)
		return Apology, nil
	}
	pageCount := doc.PageCount
	if pageCount == 0 {
		pageCount = len(pages)
	}
	return text, ExtractCitations(text, pageCount)
}

func (w *Worker) pagesFor(ctx context.Context, documentID string) ([]string, error) {
	w.mu.Lock()
	pages, ok := w.pages[documentID]
	w.mu.Unlock()
	if ok {
		return pages, nil
	}

	body, err := w.documents.GetDocumentBytes(ctx, documentID)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	parsed, err := pdftext.New(data)
	if err != nil {
		return nil, err
	}
	pages = parsed.Pages()

	w.mu.Lock()
	w.pages[documentID] = pages
	w.mu.Unlock()
	return pages, nil
}
