package tui

import (
	"github.com/csheth/pdfchat/internal/docs"
	"github.com/csheth/pdfchat/internal/recent"
	"github.com/csheth/pdfchat/internal/upload"
	"github.com/csheth/pdfchat/internal/viewer"
)

const heroTagline = "Ask your PDF. Follow the citations."

const (
	minPanelWidth          = 32
	panelHorizontalPadding = 4
	columnGap              = 2
	maxFileNameWidth       = 48
)

type interactionMode int

const (
	modeNormal interactionMode = iota
	modeInsert
)

const (
	composerPathPlaceholder    = "Path to a PDF, e.g. ~/Documents/report.pdf"
	composerMessagePlaceholder = "Ask about the document…"
	composerSendingPlaceholder = "Sending…"
)

const (
	pendingLabel  = "Thinking…"
	uploadingNote = "Uploading"
)

// citationRef locates one activatable citation in the transcript.
type citationRef struct {
	messageIndex int
	citation     docs.Citation
}

type uploadStartedMsg struct {
	generation int
	attempt    *upload.Attempt
}

type uploadEventMsg struct {
	generation int
	event      upload.Event
	closed     bool
}

type resumeResultMsg struct {
	generation int
	document   docs.Document
	err        error
}

type sendResultMsg struct {
	generation int
	message    docs.Message
	err        error
}

type refreshDueMsg struct {
	generation int
	err        error
}

type refreshResultMsg struct {
	generation int
	changed    bool
	err        error
}

type pdfLoadedMsg struct {
	generation int
	documentID string
	path       string
	pages      *viewer.Pages
	err        error
}

type fallbackResultMsg struct {
	generation int
	notice     string
	err        error
}

type recentResultMsg struct {
	entries []recent.Entry
	err     error
}
