package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/csheth/pdfchat/internal/chat"
	"github.com/csheth/pdfchat/internal/docs"
	"github.com/csheth/pdfchat/internal/guide"
	"github.com/csheth/pdfchat/internal/recent"
	"github.com/csheth/pdfchat/internal/session"
	"github.com/csheth/pdfchat/internal/upload"
	"github.com/csheth/pdfchat/internal/viewer"
)

// TriggerFunc opens the refresh trigger for a document entering chat.
type TriggerFunc func(ctx context.Context, documentID string) (chat.Trigger, error)

// Config wires runtime options into the TUI program.
type Config struct {
	Documents docs.DocumentStore
	Messages  docs.MessageStore
	// Uploads defaults to a controller over Documents.
	Uploads *upload.Controller
	// Cache backs the viewer panel. Without it the viewer only tracks page and zoom.
	Cache *viewer.Cache
	// Trigger defaults to polling every PollInterval.
	Trigger            TriggerFunc
	PollInterval       time.Duration
	ReplyTimeoutCycles int
	RecentFile         string
	DownloadDir        string
	// DocumentID resumes straight into chat for an existing document.
	DocumentID string
	Logger     *zap.Logger
}

// New returns a tea.Model ready to be mounted into a Program.
func New(config Config) tea.Model {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.Uploads == nil && config.Documents != nil {
		config.Uploads = upload.NewController(config.Documents,
			upload.WithLogger(config.Logger),
			upload.WithAbandoned(rememberAbandoned(config.RecentFile, config.Logger)),
		)
	}
	if config.DownloadDir == "" {
		config.DownloadDir = "."
	}

	composer := textinput.New()
	composer.Prompt = "› "
	composer.Width = 70

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	bar := progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage())
	bar.Width = 50

	chatView := viewport.New(60, 15)
	chatView.MouseWheelEnabled = true
	pageView := viewport.New(40, 15)

	m := &model{
		config:       config,
		logger:       config.Logger,
		jobs:         newJobBus(config.Logger),
		composer:     composer,
		spinner:      spin,
		progress:     bar,
		chatViewport: chatView,
		pageViewport: pageView,
		layout:       newPageLayout(),
		runningJobs:  map[jobKind]int{},
	}
	m.resetSession()
	return m
}

type model struct {
	config Config
	logger *zap.Logger
	jobs   *jobBus

	session    *session.Session
	generation int
	ctx        context.Context
	cancel     context.CancelFunc

	mode         interactionMode
	composer     textinput.Model
	spinner      spinner.Model
	progress     progress.Model
	chatViewport viewport.Model
	pageViewport viewport.Model
	layout       pageLayout

	attempt       *upload.Attempt
	uploadName    string
	recentEntries []recent.Entry
	recentCursor  int

	channel        *chat.Channel
	trigger        chat.Trigger
	citations      []citationRef
	citationCursor int
	messageCount   int

	viewer     *viewer.Viewer
	bridge     viewer.Bridge
	pages      *viewer.Pages
	pdfPath    string
	pdfErr     error
	pdfLoading bool

	infoMessage  string
	errorMessage string
	helpVisible  bool
	runningJobs  map[jobKind]int
}

func (m *model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink}
	if id := strings.TrimSpace(m.config.DocumentID); id != "" {
		cmds = append(cmds, m.startResume(id))
	}
	return tea.Batch(cmds...)
}

// resetSession tears down whatever the current session owns and starts a fresh one in
// the upload state. Results from the old generation are dropped on arrival.
func (m *model) resetSession() {
	m.teardown()
	m.generation++
	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.session = session.New()
	m.mode = modeInsert
	m.attempt = nil
	m.uploadName = ""
	m.channel = nil
	m.trigger = nil
	m.citations = nil
	m.citationCursor = 0
	m.messageCount = 0
	m.viewer = nil
	m.bridge = viewer.Bridge{}
	m.pages = nil
	m.pdfPath = ""
	m.pdfErr = nil
	m.pdfLoading = false
	m.recentCursor = -1

	m.composer.Reset()
	m.composer.CharLimit = 4096
	m.composer.Placeholder = composerPathPlaceholder
	m.composer.Focus()

	entries, err := recent.Load(m.config.RecentFile)
	if err != nil {
		m.logger.Warn("recent documents unreadable", zap.String("path", m.config.RecentFile), zap.Error(err))
		m.errorMessage = "Could not read recent documents: " + err.Error()
	}
	m.recentEntries = entries
	m.infoMessage = "Enter the path of a PDF to upload."
}

// teardown stops the refresh loop, the upload ticker and any outstanding jobs.
func (m *model) teardown() {
	if m.cancel != nil {
		m.cancel()
	}
	if m.attempt != nil {
		m.attempt.Cancel()
	}
	if closer, ok := m.trigger.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			m.logger.Debug("trigger close", zap.Error(err))
		}
	}
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout.Update(msg.Width, msg.Height)
		m.applyLayout()
		return m, nil
	case spinner.TickMsg:
		if m.busy() {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			m.refreshTranscript(false)
			return m, cmd
		}
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.teardown()
			return m, tea.Quit
		}
		return m.handleKey(msg)
	case tea.MouseMsg:
		if m.session.State() == session.StateChat {
			var cmd tea.Cmd
			m.chatViewport, cmd = m.chatViewport.Update(msg)
			return m, cmd
		}
		return m, nil
	case jobSignalMsg:
		m.runningJobs[msg.Snapshot.Kind]++
		return m, nil
	case jobResultEnvelope:
		if m.runningJobs[msg.Snapshot.Kind] > 0 {
			m.runningJobs[msg.Snapshot.Kind]--
		}
		if msg.Payload == nil {
			return m, nil
		}
		return m.Update(msg.Payload)
	case uploadStartedMsg:
		if msg.generation != m.generation {
			msg.attempt.Cancel()
			return m, nil
		}
		m.attempt = msg.attempt
		return m, nextUploadEventCmd(msg.generation, msg.attempt)
	case uploadEventMsg:
		if msg.generation != m.generation {
			return m, nil
		}
		return m.handleUploadEvent(msg)
	case resumeResultMsg:
		if msg.generation != m.generation {
			return m, nil
		}
		return m.handleResume(msg)
	case triggerReadyMsg:
		if msg.generation != m.generation {
			if closer, ok := msg.trigger.(io.Closer); ok {
				closer.Close()
			}
			return m, nil
		}
		return m.handleTriggerReady(msg)
	case sendResultMsg:
		if msg.generation != m.generation || m.channel == nil {
			return m, nil
		}
		return m.handleSendResult(msg)
	case refreshDueMsg:
		if msg.generation != m.generation || m.channel == nil || msg.err != nil {
			return m, nil
		}
		return m, m.jobs.Start(m.ctx, jobKindRefresh, refreshJob(m.channel, m.generation))
	case refreshResultMsg:
		if msg.generation != m.generation || m.channel == nil {
			return m, nil
		}
		return m.handleRefreshResult(msg)
	case pdfLoadedMsg:
		if msg.generation != m.generation {
			return m, nil
		}
		m.handlePDFLoaded(msg)
		return m, nil
	case fallbackResultMsg:
		if msg.generation != m.generation {
			return m, nil
		}
		if msg.err != nil {
			m.errorMessage = msg.err.Error()
			return m, nil
		}
		m.errorMessage = ""
		m.infoMessage = msg.notice
		return m, nil
	case recentResultMsg:
		if msg.err != nil {
			m.logger.Warn("recent documents not updated", zap.Error(msg.err))
			m.errorMessage = "Could not update recent documents: " + msg.err.Error()
			return m, nil
		}
		m.recentEntries = msg.entries
		return m, nil
	}
	return m, nil
}

func (m *model) busy() bool {
	switch m.session.State() {
	case session.StateUploading:
		return true
	case session.StateChat:
		return m.channel != nil && m.channel.Pending()
	}
	return m.runningJobs[jobKindResume] > 0
}

func (m *model) handleKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.String() == "ctrl+n" {
		m.resetSession()
		m.errorMessage = ""
		m.infoMessage = "Started a new session."
		return m, textinput.Blink
	}
	switch m.session.State() {
	case session.StateUpload:
		return m.handleUploadKey(key)
	case session.StateUploading:
		if key.Type == tea.KeyEsc && m.attempt != nil {
			m.attempt.Cancel()
			m.infoMessage = "Canceling upload…"
		}
		return m, nil
	case session.StateReady:
		return m.handleReadyKey(key)
	case session.StateChat:
		if m.mode == modeInsert {
			return m.handleComposerKey(key)
		}
		return m.handleChatKey(key)
	}
	return m, nil
}

func (m *model) handleUploadKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.Type {
	case tea.KeyEsc:
		if m.recentCursor >= 0 {
			m.recentCursor = -1
			return m, nil
		}
		if strings.TrimSpace(m.composer.Value()) != "" {
			m.composer.Reset()
			return m, nil
		}
		m.teardown()
		return m, tea.Quit
	case tea.KeyUp:
		m.moveRecentCursor(-1)
		return m, nil
	case tea.KeyDown:
		m.moveRecentCursor(1)
		return m, nil
	case tea.KeyEnter:
		if m.recentCursor >= 0 && m.recentCursor < len(m.recentEntries) {
			entry := m.recentEntries[m.recentCursor]
			return m, m.startResume(entry.DocumentID)
		}
		return m, m.submitPath(m.composer.Value())
	}
	m.recentCursor = -1
	var cmd tea.Cmd
	m.composer, cmd = m.composer.Update(key)
	return m, cmd
}

func (m *model) moveRecentCursor(delta int) {
	if len(m.recentEntries) == 0 {
		m.recentCursor = -1
		return
	}
	next := m.recentCursor + delta
	if next < -1 {
		next = len(m.recentEntries) - 1
	}
	if next >= len(m.recentEntries) {
		next = -1
	}
	m.recentCursor = next
}

// submitPath validates the selected file locally; only a valid file moves the session
// to uploading.
func (m *model) submitPath(value string) tea.Cmd {
	path := expandPath(value)
	if path == "" {
		m.errorMessage = "Enter the path of a PDF first."
		return nil
	}
	if m.config.Uploads == nil {
		m.errorMessage = "No document store is configured."
		return nil
	}
	file, err := upload.Inspect(path)
	if err == nil {
		err = upload.Validate(file)
	}
	if err != nil {
		m.errorMessage = err.Error()
		return nil
	}
	if err := m.session.StartUpload(); err != nil {
		m.errorMessage = err.Error()
		return nil
	}
	m.errorMessage = ""
	m.infoMessage = ""
	m.uploadName = file.Name
	m.composer.Blur()
	m.mode = modeNormal
	return tea.Batch(startUploadCmd(m.ctx, m.generation, m.config.Uploads, file), m.spinner.Tick)
}

func (m *model) handleUploadEvent(msg uploadEventMsg) (tea.Model, tea.Cmd) {
	if m.session.State() != session.StateUploading {
		return m, nil
	}
	switch {
	case msg.closed:
		m.attempt = nil
		m.session.FailUpload()
		m.composer.Focus()
		m.mode = modeInsert
		m.infoMessage = "Upload canceled."
		return m, textinput.Blink
	case msg.event.Err != nil:
		m.attempt = nil
		m.session.FailUpload()
		m.composer.Focus()
		m.mode = modeInsert
		m.infoMessage = ""
		m.errorMessage = msg.event.Err.Error()
		return m, textinput.Blink
	case msg.event.Document != nil:
		m.attempt = nil
		if err := m.session.CompleteUpload(*msg.event.Document); err != nil {
			m.session.FailUpload()
			m.composer.Focus()
			m.mode = modeInsert
			m.errorMessage = err.Error()
			return m, nil
		}
		m.errorMessage = ""
		m.infoMessage = guide.Intro(*msg.event.Document)
		m.composer.Reset()
		return m, nil
	}
	m.session.SetProgress(msg.event.Progress)
	if m.attempt == nil {
		return m, nil
	}
	return m, nextUploadEventCmd(msg.generation, m.attempt)
}

func (m *model) startResume(id string) tea.Cmd {
	if m.config.Documents == nil {
		m.errorMessage = "No document store is configured."
		return nil
	}
	m.errorMessage = ""
	m.infoMessage = "Opening document…"
	m.composer.Blur()
	return tea.Batch(
		m.jobs.Start(m.ctx, jobKindResume, resumeJob(m.config.Documents, id, m.generation)),
		m.spinner.Tick,
	)
}

func (m *model) handleResume(msg resumeResultMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.composer.Focus()
		m.infoMessage = ""
		if errors.Is(msg.err, docs.ErrNotFound) {
			m.errorMessage = "That document no longer exists."
		} else {
			m.errorMessage = "Could not open document: " + msg.err.Error()
		}
		return m, nil
	}
	if err := m.session.Resume(msg.document); err != nil {
		m.errorMessage = err.Error()
		return m, nil
	}
	m.errorMessage = ""
	return m, m.enterChat(msg.document)
}

func (m *model) handleReadyKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	doc, _ := m.session.Document()
	switch key.String() {
	case "esc", "q":
		m.teardown()
		return m, tea.Quit
	case "enter", "c":
		if err := m.session.StartChat(); err != nil {
			m.errorMessage = err.Error()
			return m, nil
		}
		return m, m.enterChat(doc)
	case "1", "2", "3":
		starters := guide.Starters()
		idx := int(key.Runes[0] - '1')
		if idx >= len(starters) {
			return m, nil
		}
		if err := m.session.ChooseStarter(starters[idx].Question); err != nil {
			m.errorMessage = err.Error()
			return m, nil
		}
		return m, m.enterChat(doc)
	case "?":
		m.helpVisible = !m.helpVisible
	}
	return m, nil
}

// enterChat builds the chat panel set for doc: channel, viewer, citation bridge and
// refresh trigger.
func (m *model) enterChat(doc docs.Document) tea.Cmd {
	m.channel = chat.New(m.config.Messages, doc.ID, chat.Options{
		ReplyTimeoutCycles: m.config.ReplyTimeoutCycles,
		Logger:             m.logger,
	})
	m.viewer = viewer.New(doc.PageCount)
	m.bridge = viewer.Bridge{Navigate: m.navigate}
	m.citations = nil
	m.citationCursor = 0
	m.messageCount = 0

	m.composer.Reset()
	m.composer.CharLimit = 2000
	m.composer.Placeholder = composerMessagePlaceholder
	m.composer.SetValue(m.session.TakeDraft())
	m.composer.CursorEnd()
	m.composer.Focus()
	m.mode = modeInsert
	m.infoMessage = fmt.Sprintf("Chatting about %s.", trimmedName(doc.OriginalName))
	m.applyLayout()

	cmds := []tea.Cmd{textinput.Blink, m.openTrigger(doc.ID)}
	if m.config.Cache != nil {
		m.pdfLoading = true
		cmds = append(cmds, m.jobs.Start(m.ctx, jobKindPDF, loadPDFJob(m.config.Cache, doc, m.generation)))
	}
	if m.config.RecentFile != "" {
		cmds = append(cmds, m.jobs.Start(m.ctx, jobKindRecent, touchRecentJob(m.config.RecentFile, doc)))
	}
	return tea.Batch(cmds...)
}

type triggerReadyMsg struct {
	generation int
	trigger    chat.Trigger
	err        error
}

func (m *model) openTrigger(documentID string) tea.Cmd {
	ctx, generation, factory := m.ctx, m.generation, m.config.Trigger
	interval := chat.Every(m.config.PollInterval)
	if factory == nil {
		return func() tea.Msg {
			return triggerReadyMsg{generation: generation, trigger: interval}
		}
	}
	return func() tea.Msg {
		trigger, err := factory(ctx, documentID)
		if err != nil {
			return triggerReadyMsg{generation: generation, trigger: interval, err: err}
		}
		return triggerReadyMsg{generation: generation, trigger: trigger}
	}
}

// handleTriggerReady starts the refresh loop with an immediate fetch. The loop is a
// single chain: refresh, wait on the trigger, refresh again.
func (m *model) handleTriggerReady(msg triggerReadyMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.logger.Warn("live updates unavailable", zap.Error(msg.err))
		m.errorMessage = "Live updates unavailable, polling instead."
	}
	m.trigger = msg.trigger
	return m, m.jobs.Start(m.ctx, jobKindRefresh, refreshJob(m.channel, m.generation))
}

func (m *model) handleComposerKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.Type {
	case tea.KeyEsc:
		m.composer.Blur()
		m.mode = modeNormal
		return m, nil
	case tea.KeyEnter:
		return m, m.submitMessage()
	case tea.KeyUp, tea.KeyDown, tea.KeyPgUp, tea.KeyPgDown:
		var cmd tea.Cmd
		m.chatViewport, cmd = m.chatViewport.Update(key)
		return m, cmd
	}
	if m.channel != nil && m.channel.InFlight() {
		return m, nil
	}
	var cmd tea.Cmd
	m.composer, cmd = m.composer.Update(key)
	return m, cmd
}

// submitMessage claims the channel's send slot before any store call and keeps the
// composer text until the store acknowledges the message.
func (m *model) submitMessage() tea.Cmd {
	if m.channel == nil {
		return nil
	}
	content, err := m.channel.BeginSend(m.composer.Value())
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrEmptyMessage):
			m.errorMessage = "Type a question first."
		case errors.Is(err, chat.ErrSendInFlight):
			m.errorMessage = "Wait for the current message to send."
		default:
			m.errorMessage = err.Error()
		}
		return nil
	}
	m.errorMessage = ""
	m.composer.Placeholder = composerSendingPlaceholder
	m.refreshTranscript(true)
	return tea.Batch(
		m.jobs.Start(m.ctx, jobKindSend, sendJob(m.channel, content, m.generation)),
		m.spinner.Tick,
	)
}

func (m *model) handleSendResult(msg sendResultMsg) (tea.Model, tea.Cmd) {
	m.composer.Placeholder = composerMessagePlaceholder
	if err := m.channel.FinishSend(msg.message, msg.err); err != nil {
		m.errorMessage = "Message not sent: " + errors.Unwrap(err).Error()
		m.refreshTranscript(false)
		return m, nil
	}
	m.errorMessage = ""
	m.composer.Reset()
	m.refreshTranscript(true)
	return m, m.spinner.Tick
}

func (m *model) handleRefreshResult(msg refreshResultMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		switch {
		case errors.Is(msg.err, chat.ErrReplyTimeout):
			m.errorMessage = "No reply from the assistant yet. Try asking again."
		case errors.Is(msg.err, chat.ErrHistoryRewritten):
			m.errorMessage = "The server reordered the conversation; showing its latest version."
		case errors.Is(msg.err, docs.ErrNotFound):
			m.errorMessage = "This document no longer exists."
			m.refreshTranscript(false)
			return m, nil
		case errors.Is(msg.err, context.Canceled):
			return m, nil
		default:
			m.errorMessage = "Refresh failed: " + msg.err.Error()
		}
	}
	if msg.changed {
		m.refreshTranscript(true)
	} else {
		m.refreshTranscript(false)
	}
	if m.trigger == nil {
		return m, nil
	}
	return m, waitRefreshCmd(m.ctx, m.trigger, m.generation)
}

func (m *model) handleChatKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.String() {
	case "esc", "q":
		m.teardown()
		return m, tea.Quit
	case "i", "/":
		m.mode = modeInsert
		m.composer.Focus()
		return m, textinput.Blink
	case "?":
		m.helpVisible = !m.helpVisible
		return m, nil
	case "tab":
		m.moveCitationCursor(1)
		return m, nil
	case "shift+tab":
		m.moveCitationCursor(-1)
		return m, nil
	case "enter":
		m.activateSelectedCitation()
		return m, nil
	case "+", "=":
		m.viewer.ZoomIn()
		m.renderPage()
		return m, nil
	case "-", "_":
		m.viewer.ZoomOut()
		m.renderPage()
		return m, nil
	case "n", "right":
		m.viewer.NextPage()
		m.renderPage()
		m.pageViewport.GotoTop()
		return m, nil
	case "p", "left":
		m.viewer.PrevPage()
		m.renderPage()
		m.pageViewport.GotoTop()
		return m, nil
	case "pgdown", "J":
		m.pageViewport.HalfViewDown()
		return m, nil
	case "pgup", "K":
		m.pageViewport.HalfViewUp()
		return m, nil
	case "o":
		if m.pdfPath == "" {
			m.errorMessage = "The PDF is not cached yet."
			return m, nil
		}
		return m, m.jobs.Start(m.ctx, jobKindOpen, openExternallyJob(m.pdfPath, m.generation))
	case "d":
		if m.pdfPath == "" {
			m.errorMessage = "The PDF is not cached yet."
			return m, nil
		}
		doc, _ := m.session.Document()
		return m, m.jobs.Start(m.ctx, jobKindSave, downloadJob(m.pdfPath, m.config.DownloadDir, doc.OriginalName, m.generation))
	case "g":
		m.chatViewport.GotoTop()
		return m, nil
	case "G":
		m.chatViewport.GotoBottom()
		return m, nil
	}
	var cmd tea.Cmd
	m.chatViewport, cmd = m.chatViewport.Update(key)
	return m, cmd
}

func (m *model) moveCitationCursor(delta int) {
	if len(m.citations) == 0 {
		m.infoMessage = "No citations yet."
		return
	}
	m.citationCursor = (m.citationCursor + delta + len(m.citations)) % len(m.citations)
	m.refreshTranscript(false)
}

func (m *model) activateSelectedCitation() {
	if m.citationCursor < 0 || m.citationCursor >= len(m.citations) {
		return
	}
	notice, ok := m.bridge.Activate(m.citations[m.citationCursor].citation)
	if !ok {
		return
	}
	m.errorMessage = ""
	m.infoMessage = notice
}

// navigate is the bridge callback: it records the shared page and moves the viewer.
// Zoom is never touched here.
func (m *model) navigate(c docs.Citation) {
	if err := m.session.Navigate(c); err != nil {
		m.logger.Debug("navigate ignored", zap.Error(err))
		return
	}
	if m.viewer != nil && m.viewer.Sync(c) {
		m.renderPage()
		m.pageViewport.GotoTop()
	}
}

func (m *model) handlePDFLoaded(msg pdfLoadedMsg) {
	m.pdfLoading = false
	m.pdfPath = msg.path
	m.pdfErr = msg.err
	m.pages = msg.pages
	if m.pages != nil && m.viewer != nil && m.viewer.PageCount() == 0 {
		next := viewer.New(m.pages.Count())
		if page, ok := m.session.Page(); ok {
			next.Sync(page)
		}
		m.viewer = next
	}
	m.renderPage()
}

// refreshTranscript rebuilds the chat panel and the citation list. Growing histories
// scroll to the newest message and select its first citation.
func (m *model) refreshTranscript(grew bool) {
	if m.channel == nil {
		return
	}
	messages := m.channel.Messages()
	previous := len(m.citations)
	m.citations = collectCitations(messages)
	if len(messages) > m.messageCount {
		grew = true
		if len(m.citations) > previous {
			m.citationCursor = previous
		}
	}
	m.messageCount = len(messages)
	if m.citationCursor >= len(m.citations) {
		m.citationCursor = 0
	}
	m.chatViewport.SetContent(m.renderTranscript(messages))
	if grew {
		m.chatViewport.GotoBottom()
	}
}

func collectCitations(messages []docs.Message) []citationRef {
	var refs []citationRef
	for idx, msg := range messages {
		if msg.Role != docs.RoleAssistant {
			continue
		}
		for _, c := range msg.Citations {
			refs = append(refs, citationRef{messageIndex: idx, citation: c})
		}
	}
	return refs
}

func (m *model) applyLayout() {
	m.chatViewport.Width = m.layout.chatWidth
	m.chatViewport.Height = m.layout.transcriptHeight
	m.pageViewport.Width = m.layout.viewerWidth
	m.pageViewport.Height = m.layout.pageHeight
	m.composer.Width = m.layout.chatWidth - 4
	if m.composer.Width < minPanelWidth-4 {
		m.composer.Width = minPanelWidth - 4
	}
	m.progress.Width = m.layout.chatWidth
	m.refreshTranscript(false)
	m.renderPage()
}

var (
	sectionHeaderStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("81"))
	errorStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	helperStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	userLabelStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("147"))
	assistantLabelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#a3be8c"))

	heroAccentColor        = lipgloss.Color("#ff8c00")
	heroEmberColor         = lipgloss.Color("#2b1400")
	heroTextColor          = lipgloss.Color("#fff4d0")
	heroSecondaryTextColor = lipgloss.Color("#ffb347")

	heroTitleStyle     = lipgloss.NewStyle().Bold(true).Foreground(heroAccentColor)
	heroBoxStyle       = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(heroAccentColor).Foreground(heroTextColor).Background(heroEmberColor).Padding(0, 2)
	taglineStyle       = lipgloss.NewStyle().Foreground(heroSecondaryTextColor).Italic(true)
	statusBarStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#0f0f0f")).Background(lipgloss.Color("#8ecae6")).Padding(0, 1)
	keyStyle           = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#0f0f0f")).Background(lipgloss.Color("#ffd166")).Padding(0, 1)
	keyDescStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#e0def4"))
	legendBoxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#56526e")).Padding(1, 2)
	panelStyle         = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#56526e")).Padding(0, 1)
	currentLineStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#0f0f0f")).Background(lipgloss.Color("#8ecae6"))
	citationStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffd166"))
	citedBannerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#0f0f0f")).Background(lipgloss.Color("#ffb347")).Padding(0, 1)
	pendingStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Italic(true)
	recentCurrentStyle = currentLineStyle
)
