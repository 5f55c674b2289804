package docs

import (
	"errors"
	"fmt"
)

// ErrNotFound reports a missing document or message.
var ErrNotFound = errors.New("not found")

// ValidationError rejects input before any side effect happens.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// TransferError wraps an upload failure from the document store.
type TransferError struct {
	Filename string
	Err      error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("upload %s failed: %v", e.Filename, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

// SendError wraps a failure to post a message or to receive its reply.
type SendError struct {
	DocumentID string
	Err        error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send message: %v", e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}
