package viewer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/facebookgo/clock"
	"github.com/stretchr/testify/require"

	"paperreel/internal/chat"
	"paperreel/internal/logging"
	"paperreel/internal/models"
	"paperreel/internal/reveal"
	"paperreel/internal/session"
	"paperreel/internal/watch"
)

type countingSource struct {
	mu    sync.Mutex
	calls int
	doc   models.JobDocument
}

func (s *countingSource) hit() {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
}

func (s *countingSource) Run(ctx context.Context, req models.RunRequest) error {
	s.hit()
	return nil
}

func (s *countingSource) Job(ctx context.Context, jobID string) (models.JobDocument, error) {
	s.hit()
	return s.doc, nil
}

func (s *countingSource) StepPreview(ctx context.Context, jobID, step string) (models.StepPreview, error) {
	s.hit()
	return models.StepPreview{Step: step, Data: map[string]any{"abstract_summary": "We study " + step + "."}}, nil
}

func (s *countingSource) SignedURL(ctx context.Context, jobID, key string, expiresSeconds int) (string, error) {
	s.hit()
	return "https://cdn.example/" + key, nil
}

func (s *countingSource) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type chatSender struct {
	reply models.ChatReply
	err   error
	got   models.ChatRequest
}

func (c *chatSender) Chat(ctx context.Context, req models.ChatRequest) (models.ChatReply, error) {
	c.got = req
	return c.reply, c.err
}

func newTestModel(jobID string, src watch.Source, sender chat.Sender) (Model, *clock.Mock) {
	mc := clock.NewMock()
	q := reveal.New(reveal.Options{Clock: mc, Warmup: 10 * time.Second, Interval: time.Second, Logger: logging.Discard()})
	w := watch.New(watch.Options{Source: src, Queue: q, Clock: mc, Logger: logging.Discard()})
	return New(jobID, Deps{Watcher: w, Chat: sender, Logger: logging.Discard()}), mc
}

func runCmd(t *testing.T, cmd tea.Cmd) tea.Msg {
	t.Helper()
	require.NotNil(t, cmd)
	return cmd()
}

func TestEmptyJobShowsEmptyStateWithoutRequests(t *testing.T) {
	src := &countingSource{}
	m, _ := newTestModel("", src, &chatSender{})

	require.Nil(t, m.Init())
	view := m.View()
	require.Contains(t, view, EmptyTitle)
	require.Contains(t, view, EmptyHint)
	require.Zero(t, src.count())
}

func TestSnapshotUpdatesProgressAndBlocks(t *testing.T) {
	src := &countingSource{doc: models.JobDocument{Status: "RUNNING", CurrentStep: "world", StepsDone: []string{"doc_ir", "sketch"}}}
	m, _ := newTestModel("job-1", src, &chatSender{})
	require.NotNil(t, m.Init())

	msg := runCmd(t, m.pollCmd())
	next, cmd := m.Update(msg)
	require.NotNil(t, cmd)
	m = next.(Model)

	require.Equal(t, 5, m.snap.Progress.Percent)
	require.Len(t, m.blocks, 2)
	view := m.View()
	require.Contains(t, view, "5%")
	require.Contains(t, view, "Abstract summary")
	require.Contains(t, view, "Building world")
}

func TestStaleSnapshotIsIgnored(t *testing.T) {
	src := &countingSource{doc: models.JobDocument{Status: "RUNNING", StepsDone: []string{"doc_ir"}}}
	m, _ := newTestModel("job-1", src, &chatSender{})

	next, cmd := m.Update(snapshotMsg{jobID: "job-0", snap: watch.Snapshot{JobID: "job-0"}})
	require.Nil(t, cmd)
	require.Equal(t, "job-1", next.(Model).snap.JobID)
}

func TestRevealTickDrainsQueueAfterWarmup(t *testing.T) {
	src := &countingSource{doc: models.JobDocument{Status: "RUNNING", StepsDone: []string{"sketch"}}}
	m, mc := newTestModel("job-1", src, &chatSender{})
	mc.Add(11 * time.Second)

	next, _ := m.Update(runCmd(t, m.pollCmd()))
	m = next.(Model)
	require.Empty(t, m.blocks)

	next, cmd := m.Update(revealTickMsg{jobID: "job-1"})
	require.NotNil(t, cmd)
	m = next.(Model)
	require.Len(t, m.blocks, 1)
}

func TestVideoSelectionWraps(t *testing.T) {
	m, _ := newTestModel("job-1", &countingSource{}, &chatSender{})
	m.videos = []models.VideoClip{{ID: "a", Title: "A"}, {ID: "b", Title: "B"}}

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{']'}})
	m = next.(Model)
	require.Equal(t, 1, m.selected)
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{']'}})
	m = next.(Model)
	require.Equal(t, 0, m.selected)
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'['}})
	m = next.(Model)
	require.Equal(t, 1, m.selected)
}

func TestChatSendAndReply(t *testing.T) {
	sender := &chatSender{reply: models.ChatReply{Message: "It is the attention map."}}
	m, _ := newTestModel("job-1", &countingSource{}, sender)
	m.videos = []models.VideoClip{{ID: "merged", Title: "Merged Video"}}

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = next.(Model)
	require.True(t, m.focusChat)
	m.input.SetValue("what is figure 3?")

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	require.True(t, m.conv.Busy())
	require.Empty(t, m.input.Value())

	next, _ = m.Update(runCmd(t, cmd))
	m = next.(Model)
	require.Equal(t, "merged", sender.got.VideoID)
	msgs := m.conv.Messages()
	require.Len(t, msgs, 3)
	require.Equal(t, "It is the attention map.", msgs[2].Content)
	require.True(t, strings.Contains(m.View(), "It is the attention map."))
}

func TestChatFailureShowsPlaceholder(t *testing.T) {
	sender := &chatSender{err: errors.New("gateway down")}
	m, _ := newTestModel("job-1", &countingSource{}, sender)
	m.focusChat = true
	m.input.SetValue("hello")

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	next, _ = m.Update(runCmd(t, cmd))
	m = next.(Model)

	msgs := m.conv.Messages()
	require.Equal(t, chat.PlaceholderReply("hello"), msgs[len(msgs)-1].Content)
}

func TestBlankChatInputIsIgnored(t *testing.T) {
	m, _ := newTestModel("job-1", &countingSource{}, &chatSender{})
	m.focusChat = true
	m.input.SetValue("   ")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.Nil(t, cmd)
	require.Len(t, m.conv.Messages(), 1)
}

func TestInfoPanelShowsCachedDocumentInfoForThisJob(t *testing.T) {
	store := session.NewStore(t.TempDir())
	require.NoError(t, store.SavePDFInfo("job-1", models.PDFInfo{
		Title:     "Sparse Attention",
		Summary:   "A cheaper attention kernel.",
		KeyTopics: []string{"attention", "sparsity"},
		Chapters:  []models.Chapter{{Title: "Method", Page: 3}},
		Metadata:  []models.MetadataItem{{Label: "Pages", Value: "12"}},
	}))

	mc := clock.NewMock()
	w := watch.New(watch.Options{Source: &countingSource{}, Clock: mc, Logger: logging.Discard()})
	m := New("job-1", Deps{Watcher: w, Session: store, Logger: logging.Discard()})
	view := m.View()
	require.Contains(t, view, "Document: Sparse Attention")
	require.Contains(t, view, "A cheaper attention kernel.")
	require.Contains(t, view, "Key topics: attention, sparsity")
	require.Contains(t, view, "Method  p.3")
	require.Contains(t, view, "PAGES 12")

	other := New("job-2", Deps{Watcher: w, Session: store, Logger: logging.Discard()})
	require.NotContains(t, other.View(), "Sparse Attention")
}
