package chat

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/csheth/pdfchat/internal/docs"
)

var (
	ErrEmptyMessage     = errors.New("message is empty")
	ErrSendInFlight     = errors.New("a message is already being sent")
	ErrReplyTimeout     = errors.New("no reply from the assistant")
	ErrHistoryRewritten = errors.New("message history was reordered")
)

// DefaultReplyTimeoutCycles is how many refreshes the pending indicator survives
// without an assistant reply.
const DefaultReplyTimeoutCycles = 30

// Options tunes a Channel.
type Options struct {
	ReplyTimeoutCycles int
	Logger             *zap.Logger
}

// Channel holds the ordered conversation for one document.
type Channel struct {
	mu            sync.Mutex
	store         docs.MessageStore
	documentID    string
	server        []docs.Message
	acked         []docs.Message
	inFlight      bool
	awaiting      string
	cycles        int
	timeoutCycles int
	logger        *zap.Logger
}

// New returns an empty channel for documentID. Call Refresh to load history.
func New(store docs.MessageStore, documentID string, opts Options) *Channel {
	if opts.ReplyTimeoutCycles <= 0 {
		opts.ReplyTimeoutCycles = DefaultReplyTimeoutCycles
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Channel{
		store:         store,
		documentID:    documentID,
		timeoutCycles: opts.ReplyTimeoutCycles,
		logger:        opts.Logger,
	}
}

func (c *Channel) DocumentID() string {
	return c.documentID
}

// Messages returns the last listed history followed by acknowledged user messages the
// store has not listed yet.
func (c *Channel) Messages() []docs.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]docs.Message, 0, len(c.server)+len(c.acked))
	out = append(out, c.server...)
	return append(out, c.acked...)
}

// Pending reports whether the placeholder for an outstanding reply should be shown.
func (c *Channel) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight || c.awaiting != ""
}

// InFlight reports whether a send is waiting for the store to acknowledge it.
func (c *Channel) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

// Refresh fetches the history and replaces the listed messages with it. It reports
// whether the visible list changed. A response that is a strict prefix of the last one
// is treated as stale and ignored. A response that reorders or drops earlier messages
// still replaces the list and is reported with ErrHistoryRewritten.
func (c *Channel) Refresh(ctx context.Context) (bool, error) {
	list, err := c.store.ListMessages(ctx, c.documentID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		return false, err
	}
	before := len(c.server) + len(c.acked)
	var rewritten error
	switch {
	case isPrefix(list, c.server):
		c.server = list
	case isPrefix(c.server, list):
	default:
		c.logger.Warn("message history rewritten",
			zap.String("document_id", c.documentID),
			zap.Int("local", len(c.server)),
			zap.Int("remote", len(list)),
		)
		c.server = list
		rewritten = ErrHistoryRewritten
	}
	c.acked = unlisted(c.acked, c.server)
	changed := rewritten != nil || len(c.server)+len(c.acked) != before

	if err := c.checkReply(); err != nil {
		return changed, err
	}
	return changed, rewritten
}

// checkReply clears the awaited message once an assistant reply follows it, or expires
// it after timeoutCycles refreshes.
func (c *Channel) checkReply() error {
	if c.awaiting == "" {
		return nil
	}
	if hasReplyAfter(c.server, c.awaiting) {
		c.awaiting = ""
		c.cycles = 0
		return nil
	}
	c.cycles++
	if c.cycles < c.timeoutCycles {
		return nil
	}
	c.logger.Warn("assistant reply timed out",
		zap.String("document_id", c.documentID),
		zap.String("message_id", c.awaiting),
		zap.Int("cycles", c.cycles),
	)
	c.awaiting = ""
	c.cycles = 0
	return &docs.SendError{DocumentID: c.documentID, Err: ErrReplyTimeout}
}

// BeginSend claims the single send slot and returns the trimmed content.
func (c *Channel) BeginSend(content string) (string, error) {
	text := strings.TrimSpace(content)
	if text == "" {
		return "", ErrEmptyMessage
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inFlight {
		return "", ErrSendInFlight
	}
	c.inFlight = true
	return text, nil
}

// FinishSend releases the send slot. On success the acknowledged user message is shown
// after the listed history until a refresh lists it, and the channel starts waiting
// for its reply. On failure the error is returned as a SendError.
func (c *Channel) FinishSend(msg docs.Message, err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight = false
	if err != nil {
		return &docs.SendError{DocumentID: c.documentID, Err: err}
	}
	if !containsID(c.server, msg.ID) {
		c.acked = append(c.acked, msg)
	}
	c.awaiting = msg.ID
	c.cycles = 0
	return nil
}

// Post writes text, already claimed with BeginSend, as a user message. It does not
// touch channel state; pass its result to FinishSend.
func (c *Channel) Post(ctx context.Context, text string) (docs.Message, error) {
	return c.store.CreateMessage(ctx, c.documentID, docs.RoleUser, text, nil)
}

// isPrefix reports whether prefix matches the head of list by id.
func isPrefix(list, prefix []docs.Message) bool {
	if len(prefix) > len(list) {
		return false
	}
	for i := range prefix {
		if list[i].ID != prefix[i].ID {
			return false
		}
	}
	return true
}

func hasReplyAfter(list []docs.Message, userID string) bool {
	seen := false
	for _, msg := range list {
		if seen && msg.Role == docs.RoleAssistant {
			return true
		}
		if msg.ID == userID {
			seen = true
		}
	}
	return false
}

// unlisted drops the acknowledged messages that list already carries.
func unlisted(acked, list []docs.Message) []docs.Message {
	var out []docs.Message
	for _, msg := range acked {
		if !containsID(list, msg.ID) {
			out = append(out, msg)
		}
	}
	return out
}

func containsID(list []docs.Message, id string) bool {
	for _, msg := range list {
		if msg.ID == id {
			return true
		}
	}
	return false
}
