package upload

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/csheth/pdfchat/internal/docs"
	"github.com/csheth/pdfchat/internal/pdftext/pdftest"
)

type fakeStore struct {
	mu    sync.Mutex
	calls int
	gate  chan struct{}
	err   error
	doc   docs.Document
}

func (f *fakeStore) CreateDocument(ctx context.Context, filename string, content io.Reader) (docs.Document, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if _, err := io.ReadAll(content); err != nil {
		return docs.Document{}, err
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return docs.Document{}, ctx.Err()
		}
	}
	if f.err != nil {
		return docs.Document{}, f.err
	}
	doc := f.doc
	doc.OriginalName = filename
	return doc, nil
}

func (f *fakeStore) GetDocument(context.Context, string) (docs.Document, error) {
	return docs.Document{}, docs.ErrNotFound
}

func (f *fakeStore) GetDocumentBytes(context.Context, string) (io.ReadCloser, error) {
	return nil, docs.ErrNotFound
}

func (f *fakeStore) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func writeFixture(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func collect(t *testing.T, attempt *Attempt) []Event {
	t.Helper()
	var events []Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-attempt.Events():
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatal("timed out waiting for upload events")
		}
	}
}

func TestInspectDetectsPDF(t *testing.T) {
	t.Parallel()

	path := writeFixture(t, "paper.pdf", pdftest.Build("hello"))
	f, err := Inspect(path)
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}
	if f.Name != "paper.pdf" || f.ContentType != PDFContentType || f.Size == 0 {
		t.Fatalf("unexpected file: %+v", f)
	}
	if err := Validate(f); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestInspectMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Inspect(filepath.Join(t.TempDir(), "nope.pdf")); !docs.IsValidation(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		file File
	}{
		{name: "wrong type", file: File{Name: "a.txt", Size: 10, ContentType: "text/plain"}},
		{name: "unknown type", file: File{Name: "a", Size: 10}},
		{name: "empty", file: File{Name: "a.pdf", Size: 0, ContentType: PDFContentType}},
		{name: "too large", file: File{Name: "a.pdf", Size: MaxFileSize + 1, ContentType: PDFContentType}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := Validate(tc.file); !docs.IsValidation(err) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
		})
	}
	if err := Validate(File{Name: "a.pdf", Size: MaxFileSize, ContentType: PDFContentType}); err != nil {
		t.Fatalf("file at the limit should pass: %v", err)
	}
}

func TestEstimateNeverPassesCeiling(t *testing.T) {
	t.Parallel()

	progress := 0.0
	for i := 0; i < 50; i++ {
		next := Estimate(progress, MaxStep)
		if next < progress {
			t.Fatalf("estimate went backwards: %v -> %v", progress, next)
		}
		progress = next
	}
	if progress != Ceiling {
		t.Fatalf("expected estimate to settle at %v, got %v", Ceiling, progress)
	}
	if got := Estimate(10, 100); got != 10+MaxStep {
		t.Fatalf("step should be clamped to MaxStep, got %v", got)
	}
	if got := Estimate(10, -5); got != 10 {
		t.Fatalf("negative step should be ignored, got %v", got)
	}
}

func TestStartRejectsInvalidFileWithoutNetwork(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	controller := NewController(store)
	path := writeFixture(t, "notes.txt", []byte("plain text"))
	f, err := Inspect(path)
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}
	if _, err := controller.Start(context.Background(), f); !docs.IsValidation(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if store.callCount() != 0 {
		t.Fatal("store must not be called for invalid files")
	}
}

func TestStartSuccessReportsMonotonicProgress(t *testing.T) {
	t.Parallel()

	gate := make(chan struct{})
	store := &fakeStore{gate: gate, doc: docs.Document{ID: "doc-1", Status: docs.StatusReady, PageCount: 1}}
	controller := NewController(store,
		WithTiming(time.Millisecond, time.Millisecond),
		WithStep(func() float64 { return MaxStep }),
	)
	f, err := Inspect(writeFixture(t, "paper.pdf", pdftest.Build("hello")))
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}
	attempt, err := controller.Start(context.Background(), f)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	go func() {
		time.Sleep(30 * time.Millisecond)
		close(gate)
	}()

	events := collect(t, attempt)
	if len(events) < 3 {
		t.Fatalf("expected several events, got %+v", events)
	}
	last := events[len(events)-1]
	if last.Document == nil || last.Document.ID != "doc-1" || last.Progress != 100 {
		t.Fatalf("unexpected final event: %+v", last)
	}
	if penultimate := events[len(events)-2]; penultimate.Progress != 100 || penultimate.Final() {
		t.Fatalf("expected 100%% before the settle delay, got %+v", penultimate)
	}
	prev := -1
	for _, ev := range events {
		if ev.Progress < prev {
			t.Fatalf("progress went backwards: %+v", events)
		}
		if ev.Progress > int(Ceiling) && ev.Progress != 100 {
			t.Fatalf("progress %d exceeded ceiling before completion", ev.Progress)
		}
		prev = ev.Progress
	}
}

func TestStartFailureResetsProgress(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection refused")
	store := &fakeStore{err: cause}
	controller := NewController(store, WithTiming(time.Millisecond, 0))
	f, err := Inspect(writeFixture(t, "paper.pdf", pdftest.Build("hello")))
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}
	attempt, err := controller.Start(context.Background(), f)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	events := collect(t, attempt)
	last := events[len(events)-1]
	var transfer *docs.TransferError
	if !errors.As(last.Err, &transfer) || !errors.Is(last.Err, cause) {
		t.Fatalf("expected TransferError wrapping cause, got %v", last.Err)
	}
	if last.Progress != 0 || last.Document != nil {
		t.Fatalf("failure should reset progress: %+v", last)
	}
}

func TestCancelClosesEvents(t *testing.T) {
	t.Parallel()

	store := &fakeStore{gate: make(chan struct{})}
	controller := NewController(store, WithTiming(time.Millisecond, 0))
	f, err := Inspect(writeFixture(t, "paper.pdf", pdftest.Build("hello")))
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}
	attempt, err := controller.Start(context.Background(), f)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	attempt.Cancel()
	for ev := range attempt.Events() {
		if ev.Document != nil {
			t.Fatalf("cancelled attempt produced a document: %+v", ev)
		}
	}
}

func TestCancelledUploadThatCommitsIsReported(t *testing.T) {
	t.Parallel()

	store := &fakeStore{gate: make(chan struct{}), doc: docs.Document{ID: "late", Status: docs.StatusReady}}
	abandoned := make(chan docs.Document, 1)
	controller := NewController(store,
		WithTiming(time.Millisecond, 0),
		WithAbandoned(func(doc docs.Document) { abandoned <- doc }),
	)
	f, err := Inspect(writeFixture(t, "paper.pdf", pdftest.Build("hello")))
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}
	attempt, err := controller.Start(context.Background(), f)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for store.callCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("store call never started")
		}
		time.Sleep(time.Millisecond)
	}
	attempt.Cancel()
	for ev := range attempt.Events() {
		if ev.Document != nil {
			t.Fatalf("cancelled attempt produced a document event: %+v", ev)
		}
	}

	close(store.gate)
	select {
	case doc := <-abandoned:
		if doc.ID != "late" || doc.OriginalName != "paper.pdf" {
			t.Fatalf("unexpected abandoned document: %+v", doc)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("committed document was not reported after cancel")
	}
}
