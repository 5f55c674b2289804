package upload

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/csheth/pdfchat/internal/docs"
)

const (
	PDFContentType = "application/pdf"
	MaxFileSize    = docs.MaxDocumentBytes

	DefaultTickInterval = 200 * time.Millisecond
	DefaultSettleDelay  = 500 * time.Millisecond

	// transferTimeout bounds a store call that outlives its cancelled attempt.
	transferTimeout = 5 * time.Minute
)

// File describes a local file selected for upload.
type File struct {
	Name        string
	Path        string
	Size        int64
	ContentType string
}

// Inspect stats path and sniffs its content type.
func Inspect(path string) (File, error) {
	path = filepath.Clean(path)
	info, err := os.Stat(path)
	if err != nil {
		return File{}, &docs.ValidationError{Field: "file", Reason: fmt.Sprintf("cannot read %s", path)}
	}
	if info.IsDir() {
		return File{}, &docs.ValidationError{Field: "file", Reason: fmt.Sprintf("%s is a directory", path)}
	}
	contentType := ""
	if info.Size() > 0 {
		mtype, err := mimetype.DetectFile(path)
		if err != nil {
			return File{}, &docs.ValidationError{Field: "file", Reason: fmt.Sprintf("cannot detect type of %s", path)}
		}
		contentType = mtype.String()
		if mtype.Is(PDFContentType) {
			contentType = PDFContentType
		}
	}
	return File{
		Name:        filepath.Base(path),
		Path:        path,
		Size:        info.Size(),
		ContentType: contentType,
	}, nil
}

// Validate enforces the upload constraints without touching the network.
func Validate(f File) error {
	if f.ContentType != PDFContentType {
		declared := f.ContentType
		if declared == "" {
			declared = "unknown"
		}
		return &docs.ValidationError{Field: "file", Reason: fmt.Sprintf("only PDF files are supported (got %s)", declared)}
	}
	if f.Size <= 0 {
		return &docs.ValidationError{Field: "file", Reason: "file is empty"}
	}
	if f.Size > MaxFileSize {
		return &docs.ValidationError{Field: "file", Reason: "file exceeds the 50MB limit"}
	}
	return nil
}

// Event is one update from a running attempt. The attempt's final event carries either
// Document or Err.
type Event struct {
	Progress int
	Document *docs.Document
	Err      error
}

// Final reports whether the event ends the attempt.
func (e Event) Final() bool {
	return e.Document != nil || e.Err != nil
}

// AbandonedFunc receives a document the store committed after its attempt was
// cancelled. It runs on the transfer goroutine.
type AbandonedFunc func(docs.Document)

// Controller starts uploads against a document store.
type Controller struct {
	store     docs.DocumentStore
	tick      time.Duration
	settle    time.Duration
	step      func() float64
	abandoned AbandonedFunc
	logger    *zap.Logger
}

// Option customizes a Controller.
type Option func(*Controller)

// WithTiming overrides the progress tick interval and the post-completion settle delay.
func WithTiming(tick, settle time.Duration) Option {
	return func(c *Controller) {
		if tick > 0 {
			c.tick = tick
		}
		if settle >= 0 {
			c.settle = settle
		}
	}
}

// WithStep replaces the random progress increment.
func WithStep(step func() float64) Option {
	return func(c *Controller) {
		if step != nil {
			c.step = step
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithAbandoned registers fn for documents committed after a cancel.
func WithAbandoned(fn AbandonedFunc) Option {
	return func(c *Controller) {
		c.abandoned = fn
	}
}

// NewController returns a controller using the default synthetic progress timing.
func NewController(store docs.DocumentStore, opts ...Option) *Controller {
	c := &Controller{
		store:  store,
		tick:   DefaultTickInterval,
		settle: DefaultSettleDelay,
		step:   func() float64 { return rand.Float64() * MaxStep },
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start validates f and begins the transfer. Validation failures return immediately and
// never reach the store.
func (c *Controller) Start(ctx context.Context, f File) (*Attempt, error) {
	if err := Validate(f); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(ctx)
	attempt := &Attempt{
		File:   f,
		events: make(chan Event, 8),
		cancel: cancel,
	}
	go c.run(ctx, attempt)
	return attempt, nil
}

func (c *Controller) run(ctx context.Context, a *Attempt) {
	defer close(a.events)
	defer a.cancel()
	started := time.Now()

	// The store call is not cancelled with the attempt: a server that already accepted
	// the bytes may still commit, and that document is reported to the abandoned hook.
	done := make(chan transferResult, 1)
	go func() {
		storeCtx, stop := context.WithTimeout(context.WithoutCancel(ctx), transferTimeout)
		defer stop()
		file, err := os.Open(a.File.Path)
		if err != nil {
			done <- transferResult{err: err}
			return
		}
		defer file.Close()
		doc, err := c.store.CreateDocument(storeCtx, a.File.Name, file)
		done <- transferResult{doc: doc, err: err}
	}()

	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()

	progress := 0.0
	if !a.emit(ctx, Event{Progress: 0}) {
		go c.drain(a, done)
		return
	}
	for {
		select {
		case <-ctx.Done():
			go c.drain(a, done)
			return
		case <-ticker.C:
			next := Estimate(progress, c.step())
			if int(next) != int(progress) {
				if !a.emit(ctx, Event{Progress: int(next)}) {
					go c.drain(a, done)
					return
				}
			}
			progress = next
		case res := <-done:
			if res.err != nil {
				c.logger.Warn("upload failed",
					zap.String("file", a.File.Name),
					zap.Duration("duration", time.Since(started)),
					zap.Error(res.err),
				)
				a.emit(ctx, Event{Progress: 0, Err: &docs.TransferError{Filename: a.File.Name, Err: res.err}})
				return
			}
			c.logger.Info("upload complete",
				zap.String("file", a.File.Name),
				zap.String("document_id", res.doc.ID),
				zap.Duration("duration", time.Since(started)),
			)
			if !a.emit(ctx, Event{Progress: 100}) {
				c.abandon(a, res.doc)
				return
			}
			if c.settle > 0 {
				timer := time.NewTimer(c.settle)
				select {
				case <-ctx.Done():
					timer.Stop()
					c.abandon(a, res.doc)
					return
				case <-timer.C:
				}
			}
			doc := res.doc
			if !a.emit(ctx, Event{Progress: 100, Document: &doc}) {
				c.abandon(a, doc)
			}
			return
		}
	}
}

type transferResult struct {
	doc docs.Document
	err error
}

// drain waits out a store call whose attempt was cancelled.
func (c *Controller) drain(a *Attempt, done <-chan transferResult) {
	res := <-done
	if res.err != nil {
		c.logger.Debug("cancelled upload did not commit", zap.String("file", a.File.Name), zap.Error(res.err))
		return
	}
	c.abandon(a, res.doc)
}

func (c *Controller) abandon(a *Attempt, doc docs.Document) {
	c.logger.Warn("upload committed after cancel",
		zap.String("file", a.File.Name),
		zap.String("document_id", doc.ID),
	)
	if c.abandoned != nil {
		c.abandoned(doc)
	}
}

// Attempt is one in-flight upload.
type Attempt struct {
	File   File
	events chan Event
	cancel context.CancelFunc
}

// Events streams progress updates; the channel closes after the final event or when
// the attempt is cancelled.
func (a *Attempt) Events() <-chan Event {
	return a.events
}

// Cancel stops the progress ticker and ends the event stream. A store call already in
// progress runs to completion; see WithAbandoned.
func (a *Attempt) Cancel() {
	a.cancel()
}

func (a *Attempt) emit(ctx context.Context, event Event) bool {
	select {
	case a.events <- event:
		return true
	case <-ctx.Done():
		return false
	}
}
