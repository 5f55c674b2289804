package session

import (
	"errors"
	"fmt"

	"github.com/csheth/pdfchat/internal/docs"
)

// State is the panel set currently shown.
type State string

const (
	StateUpload    State = "upload"
	StateUploading State = "uploading"
	StateReady     State = "ready"
	StateChat      State = "chat"
)

// ErrInvalidTransition is returned when an event is not accepted in the current state.
var ErrInvalidTransition = errors.New("invalid session transition")

// Session owns the view state and its auxiliary fields. It is not safe for concurrent
// use; the program loop is its only writer.
type Session struct {
	state    State
	progress int
	document *docs.Document
	page     docs.Citation
	hasPage  bool
	draft    string
}

// Snapshot is a read-only copy handed to panels.
type Snapshot struct {
	State    State
	Progress int
	Document *docs.Document
	Page     docs.Citation
	HasPage  bool
}

func New() *Session {
	return &Session{state: StateUpload}
}

func (s *Session) State() State {
	return s.state
}

func (s *Session) Progress() int {
	return s.progress
}

// Document returns the selected document, if any.
func (s *Session) Document() (docs.Document, bool) {
	if s.document == nil {
		return docs.Document{}, false
	}
	return *s.document, true
}

// Page returns the navigated page reference, if any.
func (s *Session) Page() (docs.Citation, bool) {
	return s.page, s.hasPage
}

func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		State:    s.state,
		Progress: s.progress,
		Page:     s.page,
		HasPage:  s.hasPage,
	}
	if s.document != nil {
		doc := *s.document
		snap.Document = &doc
	}
	return snap
}

// StartUpload moves upload -> uploading with progress reset to zero.
func (s *Session) StartUpload() error {
	if err := s.expect("start upload", StateUpload); err != nil {
		return err
	}
	s.state = StateUploading
	s.progress = 0
	return nil
}

// SetProgress records an upload progress report. Values are clamped to [0, 100] and
// never move backwards within an attempt.
func (s *Session) SetProgress(percent int) error {
	if err := s.expect("report progress", StateUploading); err != nil {
		return err
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	if percent > s.progress {
		s.progress = percent
	}
	return nil
}

// CompleteUpload moves uploading -> ready with doc selected.
func (s *Session) CompleteUpload(doc docs.Document) error {
	if err := s.expect("complete upload", StateUploading); err != nil {
		return err
	}
	if doc.ID == "" {
		return fmt.Errorf("complete upload: document has no id: %w", ErrInvalidTransition)
	}
	s.state = StateReady
	s.progress = 100
	s.document = &doc
	return nil
}

// FailUpload moves uploading -> upload and resets progress.
func (s *Session) FailUpload() error {
	if err := s.expect("fail upload", StateUploading); err != nil {
		return err
	}
	s.state = StateUpload
	s.progress = 0
	return nil
}

// StartChat moves ready -> chat.
func (s *Session) StartChat() error {
	if err := s.expect("start chat", StateReady); err != nil {
		return err
	}
	s.state = StateChat
	return nil
}

// ChooseStarter moves ready -> chat and keeps question as the composer draft. The
// question is not sent.
func (s *Session) ChooseStarter(question string) error {
	if err := s.StartChat(); err != nil {
		return err
	}
	s.draft = question
	return nil
}

// TakeDraft returns the pending composer draft once.
func (s *Session) TakeDraft() string {
	draft := s.draft
	s.draft = ""
	return draft
}

// Resume jumps from upload straight to chat for a document fetched out of band.
func (s *Session) Resume(doc docs.Document) error {
	if err := s.expect("resume", StateUpload); err != nil {
		return err
	}
	if doc.ID == "" {
		return fmt.Errorf("resume: document has no id: %w", ErrInvalidTransition)
	}
	s.state = StateChat
	s.progress = 0
	s.document = &doc
	return nil
}

// Navigate sets the shared navigated page. Only meaningful while chatting.
func (s *Session) Navigate(page docs.Citation) error {
	if err := s.expect("navigate", StateChat); err != nil {
		return err
	}
	s.page = page
	s.hasPage = true
	return nil
}

func (s *Session) expect(action string, want State) error {
	if s.state != want {
		return fmt.Errorf("%s from %s: %w", action, s.state, ErrInvalidTransition)
	}
	return nil
}
