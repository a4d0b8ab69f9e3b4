// Package viewer is the terminal "videos view": job progress, the paced info
// panel, the video list and the chat box.
package viewer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"paperreel/internal/chat"
	"paperreel/internal/models"
	"paperreel/internal/session"
	"paperreel/internal/watch"

	pbar "github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	EmptyTitle = "No Videos Yet"
	EmptyHint  = "Upload a PDF to generate video clips. Your converted videos will appear here."

	pollTimeout = 30 * time.Second
	chatTimeout = 60 * time.Second
)

type Deps struct {
	Watcher        *watch.Watcher
	Chat           chat.Sender
	Session        *session.Store // optional; supplies cached document info
	PollInterval   time.Duration
	RevealInterval time.Duration
	Logger         *slog.Logger
}

type snapshotMsg struct {
	jobID string
	snap  watch.Snapshot
}

type pollTickMsg struct{ jobID string }

type revealTickMsg struct{ jobID string }

type chatReplyMsg struct {
	req   models.ChatRequest
	reply models.ChatReply
	err   error
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	panelStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	selStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("62")).Bold(true)
	userStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	botStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("141")).Bold(true)
	headerTitle = "The BoardBook: Turn a scientific literature into explanatory video"
)

type Model struct {
	deps  Deps
	jobID string
	log   *slog.Logger

	snap     watch.Snapshot
	pinned   models.PinnedMeta
	doc      *models.PDFInfo
	blocks   []models.InfoBlock
	videos   []models.VideoClip
	selected int

	conv      *chat.Conversation
	input     textinput.Model
	bar       pbar.Model
	focusChat bool

	width  int
	height int
}

func New(jobID string, deps Deps) Model {
	if deps.PollInterval <= 0 {
		deps.PollInterval = 3 * time.Second
	}
	if deps.RevealInterval <= 0 {
		deps.RevealInterval = 3 * time.Second
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	jobID = strings.TrimSpace(jobID)

	input := textinput.New()
	input.Placeholder = "Ask about the videos or the PDF..."
	input.Prompt = "> "
	input.CharLimit = 1000
	input.Width = 60

	m := Model{
		deps:  deps,
		jobID: jobID,
		log:   deps.Logger,
		conv:  chat.NewConversation(),
		input: input,
		bar:   pbar.New(pbar.WithDefaultGradient(), pbar.WithWidth(48)),
	}
	if deps.Session != nil && jobID != "" {
		if info, ok := deps.Session.PDFInfo(jobID); ok {
			m.doc = &info
		}
	}
	if deps.Watcher != nil {
		if deps.Watcher.JobID() != jobID {
			deps.Watcher.SetJob(jobID)
		}
		m.snap = deps.Watcher.Last()
		m.videos = m.snap.Videos
	}
	return m
}

// Init schedules the first poll and the reveal ticker. Without a job id
// nothing is scheduled, so the view stays on the empty state.
func (m Model) Init() tea.Cmd {
	if m.jobID == "" || m.deps.Watcher == nil {
		return nil
	}
	return tea.Batch(m.pollCmd(), m.revealTickCmd())
}

func (m Model) pollCmd() tea.Cmd {
	w, jobID := m.deps.Watcher, m.jobID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), pollTimeout)
		defer cancel()
		return snapshotMsg{jobID: jobID, snap: w.Poll(ctx)}
	}
}

func (m Model) pollTickCmd() tea.Cmd {
	jobID := m.jobID
	return tea.Tick(m.deps.PollInterval, func(time.Time) tea.Msg { return pollTickMsg{jobID: jobID} })
}

func (m Model) revealTickCmd() tea.Cmd {
	jobID := m.jobID
	return tea.Tick(m.deps.RevealInterval, func(time.Time) tea.Msg { return revealTickMsg{jobID: jobID} })
}

func (m Model) chatCmd(req models.ChatRequest) tea.Cmd {
	sender := m.deps.Chat
	return func() tea.Msg {
		if sender == nil {
			return chatReplyMsg{req: req, err: fmt.Errorf("chat is not configured")}
		}
		ctx, cancel := context.WithTimeout(context.Background(), chatTimeout)
		defer cancel()
		reply, err := sender.Chat(ctx, req)
		return chatReplyMsg{req: req, reply: reply, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if w := msg.Width - 8; w > 20 {
			m.bar.Width = min(w, 72)
			m.input.Width = w - 4
		}
		return m, nil
	case snapshotMsg:
		if msg.jobID != m.jobID {
			return m, nil
		}
		m.applySnapshot(msg.snap)
		return m, m.pollTickCmd()
	case pollTickMsg:
		if msg.jobID != m.jobID {
			return m, nil
		}
		return m, m.pollCmd()
	case revealTickMsg:
		if msg.jobID != m.jobID {
			return m, nil
		}
		if q := m.deps.Watcher.Queue(); q.Tick() {
			m.blocks = q.Visible()
		}
		return m, m.revealTickCmd()
	case chatReplyMsg:
		if msg.err != nil {
			m.log.Warn("chat request failed", "err", msg.err)
		}
		m.conv.Finish(msg.req, msg.reply, msg.err)
		return m, nil
	case tea.KeyMsg:
		return m.updateKeys(msg)
	}
	return m, nil
}

func (m *Model) applySnapshot(s watch.Snapshot) {
	m.snap = s
	if s.Videos != nil {
		m.videos = s.Videos
		if m.selected >= len(m.videos) {
			m.selected = 0
		}
	}
	if q := m.deps.Watcher.Queue(); q != nil {
		m.pinned = q.Pinned()
		m.blocks = q.Visible()
	}
}

func (m Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		return m, tea.Quit
	}
	if m.focusChat {
		switch key {
		case "esc", "tab":
			m.focusChat = false
			m.input.Blur()
			return m, nil
		case "enter":
			req, ok := m.conv.Begin(m.input.Value(), m.selectedClip(), 0)
			if !ok {
				return m, nil
			}
			m.input.SetValue("")
			return m, m.chatCmd(req)
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	switch key {
	case "q":
		return m, tea.Quit
	case "tab", "c":
		m.focusChat = true
		return m, m.input.Focus()
	case "]", "right", "l":
		if len(m.videos) > 0 {
			m.selected = (m.selected + 1) % len(m.videos)
		}
	case "[", "left", "h":
		if len(m.videos) > 0 {
			m.selected = (m.selected - 1 + len(m.videos)) % len(m.videos)
		}
	}
	return m, nil
}

func (m Model) selectedClip() *models.VideoClip {
	if m.selected < 0 || m.selected >= len(m.videos) {
		return nil
	}
	clip := m.videos[m.selected]
	return &clip
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(headerTitle))
	b.WriteString("\n\n")

	if m.jobID == "" {
		b.WriteString(panelStyle.Render(titleStyle.Render(EmptyTitle) + "\n" + mutedStyle.Render(EmptyHint)))
		b.WriteString("\n\n")
		b.WriteString(m.chatView())
		b.WriteString("\n")
		b.WriteString(mutedStyle.Render(m.helpLine()))
		return b.String()
	}

	b.WriteString(mutedStyle.Render("job " + m.jobID))
	b.WriteString("\n")
	b.WriteString(m.progressView())
	b.WriteString("\n\n")
	b.WriteString(m.videoView())
	b.WriteString("\n")
	b.WriteString(m.infoView())
	b.WriteString("\n")
	b.WriteString(m.chatView())
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render(m.helpLine()))
	return b.String()
}

func (m Model) progressView() string {
	p := m.snap.Progress
	lines := []string{m.bar.ViewAs(float64(p.Percent) / 100)}
	label := fmt.Sprintf("%d%%  %s", p.Percent, p.Label)
	switch {
	case p.Percent >= 100:
		lines = append(lines, okStyle.Render(label))
	default:
		lines = append(lines, label)
	}
	if p.Message != "" {
		lines = append(lines, mutedStyle.Render(p.Message))
	}
	if m.snap.RunStatus != "" {
		lines = append(lines, mutedStyle.Render(m.snap.RunStatus))
	}
	if m.snap.Err != nil {
		lines = append(lines, errorStyle.Render("last update failed: "+m.snap.Err.Error()))
	}
	return strings.Join(lines, "\n")
}

func (m Model) videoView() string {
	if len(m.videos) == 0 {
		return panelStyle.Render(mutedStyle.Render("Videos will appear here once the merge completes."))
	}
	lines := make([]string, 0, len(m.videos)+2)
	for i, v := range m.videos {
		row := fmt.Sprintf("%d. %s", i+1, v.Title)
		if v.Duration != "" {
			row += "  " + v.Duration
		}
		if i == m.selected {
			row = selStyle.Render(row)
		}
		lines = append(lines, row)
	}
	if clip := m.selectedClip(); clip != nil {
		lines = append(lines, "", mutedStyle.Render(clip.URL))
	}
	return panelStyle.Render(strings.Join(lines, "\n"))
}

func (m Model) infoView() string {
	lines := []string{titleStyle.Render("Additional Info") + "  " + mutedStyle.Render("From your PDF")}
	if m.pinned.Title != "" {
		lines = append(lines, "Title: "+m.pinned.Title)
	}
	if m.pinned.PageCount > 0 {
		lines = append(lines, fmt.Sprintf("Pages: %d", m.pinned.PageCount))
	}
	lines = append(lines, m.documentLines()...)
	if m.snap.StatusText != "" {
		lines = append(lines, "Live status: "+m.snap.StatusText)
	} else if len(m.blocks) == 0 {
		lines = append(lines, mutedStyle.Render("Waiting for pipeline updates..."))
	}
	for _, blk := range m.blocks {
		title, body := renderBlock(blk)
		lines = append(lines, "", lipgloss.NewStyle().Bold(true).Render(title))
		lines = append(lines, body...)
	}
	return panelStyle.Render(strings.Join(lines, "\n"))
}

// documentLines renders the cached document info saved at upload time.
func (m Model) documentLines() []string {
	if m.doc == nil {
		return nil
	}
	d := m.doc
	var lines []string
	if d.Title != "" && d.Title != m.pinned.Title {
		lines = append(lines, "Document: "+d.Title)
	}
	if d.Summary != "" {
		lines = append(lines, mutedStyle.Render(d.Summary))
	}
	if len(d.KeyTopics) > 0 {
		lines = append(lines, "Key topics: "+strings.Join(d.KeyTopics, ", "))
	}
	if len(d.Chapters) > 0 {
		lines = append(lines, "Chapters:")
		for _, c := range d.Chapters {
			lines = append(lines, fmt.Sprintf("  %s  p.%d", c.Title, c.Page))
		}
	}
	if len(d.Metadata) > 0 {
		items := make([]string, 0, len(d.Metadata))
		for _, it := range d.Metadata {
			items = append(items, strings.ToUpper(it.Label)+" "+it.Value)
		}
		lines = append(lines, mutedStyle.Render(strings.Join(items, " • ")))
	}
	return lines
}

func (m Model) chatView() string {
	msgs := m.conv.Messages()
	if len(msgs) > 6 {
		msgs = msgs[len(msgs)-6:]
	}
	lines := make([]string, 0, len(msgs)+2)
	for _, cm := range msgs {
		who := botStyle.Render("assistant")
		if cm.Role == models.RoleUser {
			who = userStyle.Render("you")
		}
		lines = append(lines, who+": "+cm.Content)
	}
	if m.conv.Busy() {
		lines = append(lines, mutedStyle.Render("assistant is typing..."))
	}
	lines = append(lines, m.input.View())
	return panelStyle.Render(strings.Join(lines, "\n"))
}

func (m Model) helpLine() string {
	if m.focusChat {
		return "enter send • esc/tab leave chat • ctrl+c quit"
	}
	return "tab chat • [ ] select video • q quit"
}
