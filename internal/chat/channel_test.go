package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/csheth/pdfchat/internal/docs"
)

type fakeMessages struct {
	mu       sync.Mutex
	messages []docs.Message
	creates  int
	listErr  error
	failNext error
	block    chan struct{}
}

func (f *fakeMessages) ListMessages(ctx context.Context, documentID string) ([]docs.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]docs.Message, len(f.messages))
	copy(out, f.messages)
	return out, nil
}

func (f *fakeMessages) CreateMessage(ctx context.Context, documentID string, role docs.Role, content string, citations []docs.Citation) (docs.Message, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return docs.Message{}, err
	}
	msg := docs.Message{
		ID:         fmt.Sprintf("m%d", len(f.messages)+1),
		DocumentID: documentID,
		Role:       role,
		Content:    content,
		Citations:  citations,
	}
	f.messages = append(f.messages, msg)
	return msg, nil
}

func (f *fakeMessages) reply(content string, citations ...docs.Citation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, docs.Message{
		ID:        fmt.Sprintf("m%d", len(f.messages)+1),
		Role:      docs.RoleAssistant,
		Content:   content,
		Citations: citations,
	})
}

func (f *fakeMessages) createCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.creates
}

// send runs one user send the way the terminal client does.
func send(ctx context.Context, ch *Channel, content string) (docs.Message, error) {
	text, err := ch.BeginSend(content)
	if err != nil {
		return docs.Message{}, err
	}
	msg, err := ch.Post(ctx, text)
	if err := ch.FinishSend(msg, err); err != nil {
		return docs.Message{}, err
	}
	return msg, nil
}

func TestSendRejectsBlankContentLocally(t *testing.T) {
	store := &fakeMessages{}
	ch := New(store, "d1", Options{})
	for _, content := range []string{"", "   ", "\n\t"} {
		if _, err := send(context.Background(), ch, content); !errors.Is(err, ErrEmptyMessage) {
			t.Fatalf("Send(%q) error = %v, want ErrEmptyMessage", content, err)
		}
	}
	if store.createCount() != 0 {
		t.Fatal("blank sends must not reach the store")
	}
}

func TestSecondSendRejectedWhileInFlight(t *testing.T) {
	store := &fakeMessages{block: make(chan struct{})}
	ch := New(store, "d1", Options{})

	done := make(chan error, 1)
	go func() {
		_, err := send(context.Background(), ch, "first")
		done <- err
	}()
	deadline := time.Now().Add(2 * time.Second)
	for !ch.InFlight() {
		if time.Now().After(deadline) {
			t.Fatal("first send never started")
		}
		time.Sleep(time.Millisecond)
	}
	if _, err := send(context.Background(), ch, "second"); !errors.Is(err, ErrSendInFlight) {
		t.Fatalf("second send error = %v, want ErrSendInFlight", err)
	}
	close(store.block)
	if err := <-done; err != nil {
		t.Fatalf("first send failed: %v", err)
	}
	if store.createCount() != 1 {
		t.Fatalf("expected exactly one create, got %d", store.createCount())
	}
}

func TestSendFailureWrapsSendError(t *testing.T) {
	cause := errors.New("server unavailable")
	store := &fakeMessages{failNext: cause}
	ch := New(store, "d1", Options{})

	_, err := send(context.Background(), ch, "hello")
	var sendErr *docs.SendError
	if !errors.As(err, &sendErr) || !errors.Is(err, cause) {
		t.Fatalf("expected SendError wrapping cause, got %v", err)
	}
	if ch.Pending() || ch.InFlight() {
		t.Fatal("failed send must clear the pending indicator")
	}
	if len(ch.Messages()) != 0 {
		t.Fatal("failed send must not append a message")
	}
}

func TestSummarizeScenarioWithinTwoCycles(t *testing.T) {
	ctx := context.Background()
	store := &fakeMessages{}
	ch := New(store, "d1", Options{})

	msg, err := send(ctx, ch, "  Summarize section 2 ")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if msg.Content != "Summarize section 2" || msg.Role != docs.RoleUser {
		t.Fatalf("unexpected user message: %+v", msg)
	}
	if got := ch.Messages(); len(got) != 1 || got[0].ID != msg.ID {
		t.Fatalf("user message should be appended immediately: %+v", got)
	}
	if !ch.Pending() {
		t.Fatal("pending indicator should be visible while awaiting a reply")
	}

	if _, err := ch.Refresh(ctx); err != nil {
		t.Fatalf("Refresh 1: %v", err)
	}
	store.reply("Section 2 covers the method.", "4", "5")
	changed, err := ch.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh 2: %v", err)
	}
	if !changed {
		t.Fatal("expected the reply to change the list")
	}
	messages := ch.Messages()
	if len(messages) != 2 || messages[1].Role != docs.RoleAssistant {
		t.Fatalf("unexpected history: %+v", messages)
	}
	if c := messages[1].Citations; len(c) != 2 || c[0] != "4" || c[1] != "5" {
		t.Fatalf("citations mismatch: %#v", c)
	}
	if ch.Pending() {
		t.Fatal("pending indicator should clear once the reply arrives")
	}
}

func TestRefreshIsMonotonic(t *testing.T) {
	ctx := context.Background()
	store := &fakeMessages{}
	ch := New(store, "d1", Options{})
	store.reply("a")
	store.reply("b")
	if _, err := ch.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	store.mu.Lock()
	stale := store.messages[:1]
	store.messages = stale
	store.mu.Unlock()
	changed, err := ch.Refresh(ctx)
	if err != nil || changed {
		t.Fatalf("stale prefix should be ignored, got changed=%v err=%v", changed, err)
	}
	if len(ch.Messages()) != 2 {
		t.Fatal("stale refresh must not drop messages")
	}

	store.mu.Lock()
	store.messages = []docs.Message{{ID: "other"}, {ID: "m1"}, {ID: "m2"}}
	store.mu.Unlock()
	changed, err = ch.Refresh(ctx)
	if !errors.Is(err, ErrHistoryRewritten) || !changed {
		t.Fatalf("expected ErrHistoryRewritten with a change, got changed=%v err=%v", changed, err)
	}
	if got := ch.Messages(); len(got) != 3 || got[0].ID != "other" {
		t.Fatalf("rewritten history should replace the list: %+v", got)
	}
	if _, err := ch.Refresh(ctx); err != nil {
		t.Fatalf("refresh after a rewrite should settle, got %v", err)
	}
}

func TestFollowUpBeforeReplyIsListedInStoreOrder(t *testing.T) {
	ctx := context.Background()
	store := &fakeMessages{}
	ch := New(store, "d1", Options{ReplyTimeoutCycles: 5})

	if _, err := send(ctx, ch, "first"); err != nil {
		t.Fatalf("Send first: %v", err)
	}
	if _, err := ch.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	store.reply("answer one", "4")
	second, err := send(ctx, ch, "second")
	if err != nil {
		t.Fatalf("Send second: %v", err)
	}
	if got := ch.Messages(); len(got) != 2 || got[1].ID != second.ID {
		t.Fatalf("acknowledged follow-up should be visible before the next refresh: %+v", got)
	}

	changed, err := ch.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh after follow-up: %v", err)
	}
	if !changed {
		t.Fatal("the first reply should change the list")
	}
	got := ch.Messages()
	if len(got) != 3 {
		t.Fatalf("expected the store's three messages, got %+v", got)
	}
	if got[1].Role != docs.RoleAssistant || got[1].Content != "answer one" || got[2].ID != second.ID {
		t.Fatalf("history should follow store order: %+v", got)
	}
	if len(got[1].Citations) != 1 || got[1].Citations[0] != "4" {
		t.Fatalf("reply citations lost: %#v", got[1].Citations)
	}
	if !ch.Pending() {
		t.Fatal("the follow-up is still waiting for its reply")
	}

	store.reply("answer two")
	if _, err := ch.Refresh(ctx); err != nil {
		t.Fatalf("Refresh after second reply: %v", err)
	}
	if len(ch.Messages()) != 4 || ch.Pending() {
		t.Fatalf("second reply should clear pending, history=%+v", ch.Messages())
	}
}

func TestRefreshPropagatesStoreErrors(t *testing.T) {
	store := &fakeMessages{listErr: docs.ErrNotFound}
	ch := New(store, "missing", Options{})
	if _, err := ch.Refresh(context.Background()); !errors.Is(err, docs.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPendingExpiresAfterTimeoutCycles(t *testing.T) {
	ctx := context.Background()
	store := &fakeMessages{}
	ch := New(store, "d1", Options{ReplyTimeoutCycles: 3})
	if _, err := send(ctx, ch, "hello?"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := ch.Refresh(ctx); err != nil {
			t.Fatalf("Refresh %d: %v", i, err)
		}
	}
	_, err := ch.Refresh(ctx)
	var sendErr *docs.SendError
	if !errors.As(err, &sendErr) || !errors.Is(err, ErrReplyTimeout) {
		t.Fatalf("expected reply timeout SendError, got %v", err)
	}
	if ch.Pending() {
		t.Fatal("pending indicator should expire")
	}

	store.reply("late answer")
	if changed, err := ch.Refresh(ctx); err != nil || !changed {
		t.Fatalf("late reply should still appear, changed=%v err=%v", changed, err)
	}
}

func TestIntervalTriggerHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Every(time.Hour).Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if err := Every(time.Millisecond).Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if Every(0).Period != DefaultPollInterval {
		t.Fatal("zero period should use the default")
	}
}
