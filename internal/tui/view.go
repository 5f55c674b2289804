package tui

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/csheth/pdfchat/internal/docs"
	"github.com/csheth/pdfchat/internal/guide"
	"github.com/csheth/pdfchat/internal/session"
	"github.com/csheth/pdfchat/internal/upload"
	"github.com/csheth/pdfchat/internal/viewer"
)

// View renders from one session snapshot; panels never touch the session itself.
func (m *model) View() string {
	snap := m.session.Snapshot()
	var body string
	switch snap.State {
	case session.StateUpload:
		body = m.viewUpload()
	case session.StateUploading:
		body = m.viewUploading(snap)
	case session.StateReady:
		body = m.viewReady(snap)
	case session.StateChat:
		body = m.viewChat(snap)
	}
	parts := []string{m.heroView(snap), body, m.noticeView()}
	if m.helpVisible {
		parts = append(parts, m.keyLegendView())
	}
	parts = append(parts, m.sessionMeterView(snap))
	return joinNonEmpty(parts)
}

func (m *model) heroView(snap session.Snapshot) string {
	title := heroTitleStyle.Render("pdfchat")
	doc := snap.Document
	if doc == nil {
		return lipgloss.JoinHorizontal(lipgloss.Center, heroBoxStyle.Render(title), "  ", taglineStyle.Render(heroTagline))
	}
	meta := fmt.Sprintf("%s  •  %s", trimmedName(doc.OriginalName), humanSize(doc.Size))
	if doc.PageCount > 0 {
		meta += fmt.Sprintf("  •  %d pages", doc.PageCount)
	}
	return lipgloss.JoinHorizontal(lipgloss.Center, heroBoxStyle.Render(title), "  ", taglineStyle.Render(meta))
}

func (m *model) viewUpload() string {
	var b strings.Builder
	b.WriteString(sectionHeaderStyle.Render("Upload a PDF"))
	b.WriteRune('\n')
	b.WriteString(m.composer.View())
	b.WriteRune('\n')
	b.WriteString(helperStyle.Render(fmt.Sprintf("Enter to upload. PDF files up to %dMB.", upload.MaxFileSize>>20)))
	if m.runningJobs[jobKindResume] > 0 {
		b.WriteRune('\n')
		b.WriteString(helperStyle.Render(m.spinner.View() + " Opening document…"))
	}
	if len(m.recentEntries) > 0 {
		b.WriteString("\n\n")
		b.WriteString(sectionHeaderStyle.Render("Recent documents"))
		b.WriteRune('\n')
		for idx, entry := range m.recentEntries {
			line := fmt.Sprintf("  %s", trimmedName(entry.OriginalName))
			if entry.PageCount > 0 {
				line += helperStyle.Render(fmt.Sprintf("  %d pages", entry.PageCount))
			}
			if !entry.OpenedAt.IsZero() {
				line += helperStyle.Render("  " + entry.OpenedAt.Local().Format("Jan 2 15:04"))
			}
			if idx == m.recentCursor {
				line = recentCurrentStyle.Render("▸ " + strings.TrimPrefix(line, "  "))
			}
			b.WriteString(line)
			b.WriteRune('\n')
		}
		b.WriteString(helperStyle.Render("↑/↓ to pick a recent document, Enter to resume it."))
	}
	return b.String()
}

func (m *model) viewUploading(snap session.Snapshot) string {
	percent := snap.Progress
	var b strings.Builder
	b.WriteString(sectionHeaderStyle.Render(fmt.Sprintf("%s %s", uploadingNote, trimmedName(m.uploadName))))
	b.WriteString("\n\n")
	b.WriteString(m.progress.ViewAs(float64(percent) / 100))
	b.WriteRune('\n')
	b.WriteString(helperStyle.Render(fmt.Sprintf("%s %d%%", m.spinner.View(), percent)))
	b.WriteRune('\n')
	b.WriteString(helperStyle.Render("Esc to cancel."))
	return b.String()
}

func (m *model) viewReady(snap session.Snapshot) string {
	var doc docs.Document
	if snap.Document != nil {
		doc = *snap.Document
	}
	var b strings.Builder
	b.WriteString(sectionHeaderStyle.Render("Document ready"))
	b.WriteRune('\n')
	b.WriteString(guide.Intro(doc))
	b.WriteString("\n\n")
	for idx, starter := range guide.Starters() {
		key := keyStyle.Render(fmt.Sprintf("%d", idx+1))
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, key, keyDescStyle.Render(" "+starter.Question)))
		b.WriteRune('\n')
	}
	b.WriteRune('\n')
	b.WriteString(helperStyle.Render("Enter: start chatting • 1-3: use a starter question"))
	return b.String()
}

func (m *model) viewChat(snap session.Snapshot) string {
	chatPanel := joinNonEmpty([]string{
		sectionHeaderStyle.Render("Conversation"),
		m.chatViewport.View(),
		m.composerView(),
	})
	viewerPanel := joinNonEmpty([]string{
		m.viewerHeader(snap),
		m.pageViewport.View(),
	})
	chatBox := panelStyle.Width(m.layout.chatWidth).Render(chatPanel)
	viewerBox := panelStyle.Width(m.layout.viewerWidth).Render(viewerPanel)
	if m.layout.stacked {
		return lipgloss.JoinVertical(lipgloss.Left, viewerBox, chatBox)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, chatBox, strings.Repeat(" ", columnGap), viewerBox)
}

func (m *model) composerView() string {
	help := "Enter: send • Esc: browse citations"
	if m.mode == modeNormal {
		help = "i: write • Tab: next citation • Enter: open citation • ?: keys"
	}
	if m.channel != nil && m.channel.InFlight() {
		help = m.spinner.View() + " Sending…"
	}
	return joinLines(m.composer.View(), helperStyle.Render(help))
}

func (m *model) renderTranscript(messages []docs.Message) string {
	width := m.layout.chatWidth - panelHorizontalPadding
	if width < minPanelWidth-panelHorizontalPadding {
		width = minPanelWidth - panelHorizontalPadding
	}
	if len(messages) == 0 && !m.channel.Pending() {
		return helperStyle.Render("No messages yet. Ask anything about the document.")
	}
	selected := -1
	if m.citationCursor >= 0 && m.citationCursor < len(m.citations) {
		selected = m.citationCursor
	}
	cb := &contentBuilder{}
	ref := 0
	for idx, msg := range messages {
		if idx > 0 {
			cb.WriteRune('\n')
		}
		if msg.Role == docs.RoleAssistant {
			cb.WriteString(assistantLabelStyle.Render("Assistant"))
		} else {
			cb.WriteString(userLabelStyle.Render("You"))
		}
		cb.WriteRune('\n')
		cb.WriteString(indentMultiline(wrapText(msg.Content, width-2), "  "))
		cb.WriteRune('\n')
		if msg.Role != docs.RoleAssistant || len(msg.Citations) == 0 {
			continue
		}
		chips := make([]string, 0, len(msg.Citations))
		for _, c := range msg.Citations {
			label := citationLabel(c)
			if ref == selected {
				chips = append(chips, currentLineStyle.Render(label))
			} else {
				chips = append(chips, citationStyle.Render(label))
			}
			ref++
		}
		cb.WriteString("  " + strings.Join(chips, " "))
		cb.WriteRune('\n')
	}
	if m.channel.Pending() {
		cb.WriteRune('\n')
		cb.WriteString(assistantLabelStyle.Render("Assistant"))
		cb.WriteRune('\n')
		cb.WriteString("  " + pendingStyle.Render(m.spinner.View()+" "+pendingLabel))
		cb.WriteRune('\n')
	}
	return strings.TrimRight(cb.String(), "\n")
}

func citationLabel(c docs.Citation) string {
	if n, ok := c.Page(); ok {
		return fmt.Sprintf("[p. %d]", n)
	}
	return "[" + strings.TrimSpace(string(c)) + "]"
}

func (m *model) viewerHeader(snap session.Snapshot) string {
	if m.viewer == nil {
		return sectionHeaderStyle.Render("Viewer")
	}
	position := fmt.Sprintf("Page %d", m.viewer.Page())
	if count := m.viewer.PageCount(); count > 0 {
		position = fmt.Sprintf("Page %d / %d", m.viewer.Page(), count)
	}
	header := sectionHeaderStyle.Render(position) + helperStyle.Render(fmt.Sprintf("  Zoom %d%%", m.viewer.Zoom()))
	if snap.HasPage && m.viewer.Cited() {
		header = joinLines(header, citedBannerStyle.Render(viewer.Banner(snap.Page)))
	}
	return header
}

// renderPage draws the current page into the viewer panel, or the fallback actions when
// the page cannot be shown inline.
func (m *model) renderPage() {
	if m.viewer == nil {
		return
	}
	width := m.viewer.WrapWidth(m.layout.viewerWidth - panelHorizontalPadding)
	switch {
	case m.config.Cache == nil:
		m.pageViewport.SetContent(helperStyle.Render("No viewer is attached; citations still update the page above."))
		return
	case m.pdfLoading:
		m.pageViewport.SetContent(helperStyle.Render("Loading PDF…"))
		return
	case m.pages == nil:
		m.pageViewport.SetContent(m.fallbackView(m.pdfErr))
		return
	}
	text, err := m.pages.Render(m.viewer.Page(), width)
	if err != nil {
		m.pageViewport.SetContent(m.fallbackView(err))
		return
	}
	m.pageViewport.SetContent(text)
}

func (m *model) fallbackView(err error) string {
	lines := []string{}
	switch {
	case errors.Is(err, viewer.ErrNoText):
		lines = append(lines, helperStyle.Render("This page has no text to show here."))
	case err != nil:
		lines = append(lines, errorStyle.Render("The PDF cannot be shown inline: "+err.Error()))
	}
	if m.pdfPath == "" {
		return joinLines(lines...)
	}
	lines = append(lines,
		helperStyle.Render("Cached at "+m.pdfPath),
		lipgloss.JoinHorizontal(lipgloss.Top, keyStyle.Render("o"), keyDescStyle.Render(" open externally  "), keyStyle.Render("d"), keyDescStyle.Render(" download")),
	)
	return joinLines(lines...)
}

func (m *model) noticeView() string {
	var lines []string
	if m.errorMessage != "" {
		lines = append(lines, errorStyle.Render(m.errorMessage))
	}
	if m.infoMessage != "" {
		lines = append(lines, helperStyle.Render(m.infoMessage))
	}
	return joinLines(lines...)
}

func (m *model) modeLabel() string {
	if m.mode == modeInsert {
		return "INSERT"
	}
	return "NORMAL"
}

func (m *model) sessionMeterView(snap session.Snapshot) string {
	stats := []string{
		fmt.Sprintf("Mode %s", m.modeLabel()),
		strings.ToUpper(string(snap.State)),
	}
	if snap.State == session.StateChat && m.channel != nil {
		stats = append(stats, fmt.Sprintf("Messages %d", m.messageCount))
		if len(m.citations) > 0 {
			stats = append(stats, fmt.Sprintf("Citations %d", len(m.citations)))
		}
		if m.channel.Pending() {
			stats = append(stats, "Awaiting reply")
		}
	}
	if badges := m.jobStatusBadges(); len(badges) > 0 {
		stats = append(stats, badges...)
	}
	return statusBarStyle.Render(strings.Join(stats, "  •  "))
}

func (m *model) jobStatusBadges() []string {
	var badges []string
	for kind, count := range m.runningJobs {
		if count <= 0 || kind == jobKindRefresh {
			continue
		}
		badges = append(badges, fmt.Sprintf("%s…", kind))
	}
	sort.Strings(badges)
	return badges
}

type keyHint struct {
	Key         string
	Description string
}

func (m *model) keyLegendView() string {
	hints := []keyHint{
		{"i", "Write"},
		{"Esc", "Browse"},
		{"Tab", "Next citation"},
		{"Enter", "Open citation"},
		{"+/-", "Zoom"},
		{"n/p", "Next/prev page"},
		{"o", "Open externally"},
		{"d", "Download"},
		{"Ctrl+N", "New document"},
	}
	rows := []string{sectionHeaderStyle.Render("Keys")}
	const columns = 3
	for i := 0; i < len(hints); i += columns {
		end := i + columns
		if end > len(hints) {
			end = len(hints)
		}
		var cells []string
		for _, hint := range hints[i:end] {
			key := keyStyle.Render(hint.Key)
			desc := keyDescStyle.Render(" " + hint.Description + "  ")
			cells = append(cells, lipgloss.JoinHorizontal(lipgloss.Top, key, desc))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}
	return legendBoxStyle.Render(strings.Join(rows, "\n"))
}

func joinNonEmpty(parts []string) string {
	filtered := make([]string, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		filtered = append(filtered, part)
	}
	return strings.Join(filtered, "\n\n")
}

func joinLines(parts ...string) string {
	filtered := make([]string, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			continue
		}
		filtered = append(filtered, part)
	}
	return strings.Join(filtered, "\n")
}
