package answer

import (
	"context"

	"go.uber.org/zap"

	"github.com/csheth/pdfchat/internal/docs"
)

// Observer is told about every message the dispatcher stores.
type Observer func(docs.Message)

// Dispatcher is a MessageStore that hands each new user message to the worker.
type Dispatcher struct {
	docs.MessageStore
	worker    *Worker
	observers []Observer
}

var _ docs.MessageStore = (*Dispatcher)(nil)

func NewDispatcher(inner docs.MessageStore, worker *Worker, observers ...Observer) *Dispatcher {
	return &Dispatcher{MessageStore: inner, worker: worker, observers: observers}
}

// CreateMessage stores the message, notifies observers and queues user messages for an
// answer. A full queue does not fail the write: it is logged here and the asker's
// reply timeout surfaces it.
func (d *Dispatcher) CreateMessage(ctx context.Context, documentID string, role docs.Role, content string, citations []docs.Citation) (docs.Message, error) {
	msg, err := d.MessageStore.CreateMessage(ctx, documentID, role, content, citations)
	if err != nil {
		return docs.Message{}, err
	}
	for _, observe := range d.observers {
		observe(msg)
	}
	if msg.Role == docs.RoleUser && d.worker != nil {
		if err := d.worker.Enqueue(msg); err != nil {
			d.worker.logger.Warn("user message not queued for an answer",
				zap.String("document_id", msg.DocumentID),
				zap.String("message_id", msg.ID),
				zap.Error(err),
			)
		}
	}
	return msg, nil
}
