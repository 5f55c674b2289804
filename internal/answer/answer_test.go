package answer

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/csheth/pdfchat/internal/docs"
	"github.com/csheth/pdfchat/internal/pdftext/pdftest"
)

func TestBuilderTagsPagesAndDedupes(t *testing.T) {
	builder := NewBuilder(0)
	pages := []string{
		"Gophers live in burrows.\n\n12\n\nCopyright 2024 Example Corp",
		"Gophers live in burrows.\n\nThe method counts burrows per hectare.",
	}
	chunks := builder.Chunks(pages)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 unique chunks, got %d: %+v", len(chunks), chunks)
	}
	out := builder.Build(pages, "What method is used?")
	if !strings.HasPrefix(out, "[Page 1]\nGophers live in burrows.") {
		t.Fatalf("context should start with page 1: %q", out)
	}
	if !strings.Contains(out, "[Page 2]\nThe method counts burrows") {
		t.Fatalf("context missing page 2 block: %q", out)
	}
	if strings.Contains(out, "Copyright") {
		t.Fatalf("boilerplate leaked: %q", out)
	}
}

func TestBuilderKeepsRelevantChunksWithinBudget(t *testing.T) {
	builder := NewBuilder(80)
	pages := []string{
		strings.Repeat("Filler text about unrelated topics. ", 4),
		"Results show the conclusions hold.",
	}
	out := builder.Build(pages, "What are the conclusions?")
	if !strings.Contains(out, "conclusions hold") {
		t.Fatalf("relevant chunk should win the budget: %q", out)
	}
	if len([]rune(out)) > 80 {
		t.Fatalf("context exceeded budget: %d", len([]rune(out)))
	}
}

func TestExtractCitations(t *testing.T) {
	cases := []struct {
		text      string
		pageCount int
		want      string
	}{
		{"Section 2 covers it [p. 4] and more [p. 5].", 10, "4,5"},
		{"See (page 3) and [p. 3] again.", 10, "3"},
		{"Ranges work [pp. 4-6].", 10, "4,5,6"},
		{"Lists work [pages 2, 7].", 10, "2,7"},
		{"Out of range [p. 40].", 10, ""},
		{"No markers here, page 4 alone does not count.", 10, ""},
		{"Unknown page count [p. 40].", 0, "40"},
	}
	for _, tc := range cases {
		got := ExtractCitations(tc.text, tc.pageCount)
		parts := make([]string, 0, len(got))
		for _, c := range got {
			parts = append(parts, string(c))
		}
		if joined := strings.Join(parts, ","); joined != tc.want {
			t.Fatalf("ExtractCitations(%q) = %q, want %q", tc.text, joined, tc.want)
		}
	}
}

type fakeLLM struct {
	answer   string
	err      error
	question string
	context  string
}

func (f *fakeLLM) Answer(ctx context.Context, title, question, content string) (string, error) {
	f.question = question
	f.context = content
	return f.answer, f.err
}

func (f *fakeLLM) Name() string { return "fake" }

func newStoreWithDocument(t *testing.T, pages ...string) (*docs.SQLiteStore, docs.Document) {
	t.Helper()
	store, err := docs.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	doc, err := store.CreateDocument(context.Background(), "report.pdf", bytes.NewReader(pdftest.Build(pages...)))
	if err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}
	return store, doc
}

func TestWorkerReplyPersistsCitations(t *testing.T) {
	store, doc := newStoreWithDocument(t, "Introduction to burrows", "Section two describes tunnels", "Appendix")
	client := &fakeLLM{answer: "Section 2 describes tunnels [p. 2] [p. 9]."}
	worker := NewWorker(store, client)
	ctx := context.Background()

	question, err := store.CreateMessage(ctx, doc.ID, docs.RoleUser, "Summarize section 2", nil)
	if err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	reply, err := worker.Reply(ctx, store, question)
	if err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if reply.Role != docs.RoleAssistant || len(reply.Citations) != 1 || reply.Citations[0] != "2" {
		t.Fatalf("unexpected reply: %+v", reply)
	}
	if client.question != "Summarize section 2" || !strings.Contains(client.context, "[Page 2]") {
		t.Fatalf("model received unexpected input: %q / %q", client.question, client.context)
	}
}

func TestWorkerApologisesOnModelFailure(t *testing.T) {
	store, doc := newStoreWithDocument(t, "Only page")
	worker := NewWorker(store, &fakeLLM{err: errors.New("model offline")})
	ctx := context.Background()
	question, _ := store.CreateMessage(ctx, doc.ID, docs.RoleUser, "Anything?", nil)

	reply, err := worker.Reply(ctx, store, question)
	if err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if reply.Content != Apology || reply.Citations != nil {
		t.Fatalf("expected apology without citations, got %+v", reply)
	}
}

func TestDispatcherQueuesUserMessages(t *testing.T) {
	store, doc := newStoreWithDocument(t, "Gophers dig [p. 1]")
	client := &fakeLLM{answer: "They dig [p. 1]."}
	worker := NewWorker(store, client)

	var observed []docs.Role
	dispatcher := NewDispatcher(store, worker, func(m docs.Message) { observed = append(observed, m.Role) })
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := dispatcher.CreateMessage(ctx, doc.ID, docs.RoleUser, "What do gophers do?", nil); err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx, dispatcher) }()

	deadline := time.Now().Add(5 * time.Second)
	for {
		messages, err := store.ListMessages(context.Background(), doc.ID)
		if err != nil {
			t.Fatalf("ListMessages: %v", err)
		}
		if len(messages) == 2 {
			if messages[1].Role != docs.RoleAssistant {
				t.Fatalf("expected assistant reply, got %+v", messages[1])
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for the assistant reply")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v", err)
	}
	if len(observed) != 2 || observed[0] != docs.RoleUser || observed[1] != docs.RoleAssistant {
		t.Fatalf("observer saw %v", observed)
	}
}

func TestEnqueueReportsFullQueue(t *testing.T) {
	worker := NewWorker(nil, &fakeLLM{}, WithQueueSize(1))
	if err := worker.Enqueue(docs.Message{ID: "a"}); err != nil {
		t.Fatalf("first Enqueue: %v", err)
	}
	if err := worker.Enqueue(docs.Message{ID: "b"}); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
}

func TestDispatcherLogsFullQueue(t *testing.T) {
	store, doc := newStoreWithDocument(t, "Gophers dig [p. 1]")
	core, logs := observer.New(zap.WarnLevel)
	worker := NewWorker(store, &fakeLLM{answer: "ok"}, WithQueueSize(1), WithLogger(zap.New(core)))
	dispatcher := NewDispatcher(store, worker)
	ctx := context.Background()

	for _, question := range []string{"first?", "second?"} {
		if _, err := dispatcher.CreateMessage(ctx, doc.ID, docs.RoleUser, question, nil); err != nil {
			t.Fatalf("CreateMessage(%q) should not fail on a full queue: %v", question, err)
		}
	}
	entries := logs.FilterMessage("user message not queued for an answer").All()
	if len(entries) != 1 {
		t.Fatalf("expected one queue-full warning, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["document_id"] != doc.ID || fields["error"] != ErrQueueFull.Error() {
		t.Fatalf("warning fields = %v", fields)
	}
	messages, err := store.ListMessages(ctx, doc.ID)
	if err != nil || len(messages) != 2 {
		t.Fatalf("both user messages should be stored, got %d err=%v", len(messages), err)
	}
}
