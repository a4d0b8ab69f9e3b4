// Package watch follows one job: it triggers the pipeline run, polls the job
// document, feeds step previews into the reveal queue and resolves the merged
// video once the backend reports it.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"paperreel/internal/backend"
	"paperreel/internal/models"
	"paperreel/internal/progress"
	"paperreel/internal/reveal"
	"paperreel/internal/session"
	"paperreel/internal/steps"

	"github.com/facebookgo/clock"
	"golang.org/x/sync/errgroup"
)

const (
	RunStarting = "Starting pipeline..."
	RunStarted  = "Pipeline running (listening for updates)..."

	MergedVideoID    = "merged"
	MergedVideoTitle = "Merged Video"

	previewFetchLimit = 4
)

// Source is everything the watcher reads from. Both the backend client and
// the gateway client satisfy it.
type Source interface {
	Run(ctx context.Context, req models.RunRequest) error
	Job(ctx context.Context, jobID string) (models.JobDocument, error)
	StepPreview(ctx context.Context, jobID, step string) (models.StepPreview, error)
	SignedURL(ctx context.Context, jobID, key string, expiresSeconds int) (string, error)
}

type Options struct {
	Source           Source
	Queue            *reveal.Queue
	Session          *session.Store
	Weights          progress.Weights
	Clock            clock.Clock
	PollInterval     time.Duration
	SignedURLExpires int
	Logger           *slog.Logger
}

// Snapshot is the watcher's view after a poll.
type Snapshot struct {
	JobID      string
	Doc        *models.JobDocument
	Progress   progress.Result
	StatusText string
	RunStatus  string
	Videos     []models.VideoClip
	Err        error
}

type Watcher struct {
	src      Source
	queue    *reveal.Queue
	store    *session.Store
	tracker  *progress.Tracker
	clock    clock.Clock
	interval time.Duration
	expires  int
	log      *slog.Logger

	mu         sync.Mutex
	jobID      string
	gen        uint64
	triggered  bool
	lastStatus models.JobStatus
	seen       map[string]bool
	mergedKey  string
	videos     []models.VideoClip
	last       Snapshot
}

func New(opts Options) *Watcher {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 3 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Weights.Steps == nil {
		opts.Weights = progress.DefaultWeights()
	}
	if opts.Queue == nil {
		opts.Queue = reveal.New(reveal.Options{Clock: opts.Clock, Warmup: reveal.DefaultWarmup, Logger: opts.Logger})
	}
	w := &Watcher{
		src:      opts.Source,
		queue:    opts.Queue,
		store:    opts.Session,
		tracker:  progress.NewTracker(opts.Weights),
		clock:    opts.Clock,
		interval: opts.PollInterval,
		expires:  opts.SignedURLExpires,
		log:      opts.Logger,
		seen:     map[string]bool{},
	}
	w.last = Snapshot{Progress: progress.Estimate(nil, opts.Weights)}
	return w
}

func (w *Watcher) Queue() *reveal.Queue { return w.queue }

func (w *Watcher) JobID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.jobID
}

// SetJob switches the watcher to jobID and drops everything tied to the
// previous job. Results of polls still in flight for the old job are ignored.
func (w *Watcher) SetJob(jobID string) {
	jobID = strings.TrimSpace(jobID)
	w.mu.Lock()
	defer w.mu.Unlock()
	w.jobID = jobID
	w.gen++
	w.triggered = false
	w.lastStatus = ""
	w.seen = map[string]bool{}
	w.mergedKey = ""
	w.videos = nil
	if jobID != "" && w.store != nil {
		w.videos = w.store.Videos(jobID)
	}
	w.tracker.Reset(jobID)
	w.queue.Reset(jobID)
	w.last = Snapshot{JobID: jobID, Progress: w.tracker.Observe(jobID, nil), Videos: cloneVideos(w.videos)}
	if jobID != "" && w.store != nil {
		if err := w.store.SaveLastJobID(jobID); err != nil {
			w.log.Warn("session write failed", "key", session.KeyLastJobID, "err", err)
		}
	}
}

// Last returns the most recent snapshot without polling.
func (w *Watcher) Last() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}

// Poll performs one round of work for the current job. With no job set it
// returns the empty snapshot and touches nothing.
func (w *Watcher) Poll(ctx context.Context) Snapshot {
	w.mu.Lock()
	jobID, gen := w.jobID, w.gen
	if jobID == "" {
		snap := w.last
		w.mu.Unlock()
		return snap
	}
	needTrigger := !w.triggered
	w.triggered = true
	w.mu.Unlock()

	if needTrigger {
		w.trigger(ctx, jobID, gen)
	}

	doc, err := w.src.Job(ctx, jobID)
	if err != nil {
		w.log.Warn("job fetch failed", "job_id", jobID, "err", err)
		w.mu.Lock()
		defer w.mu.Unlock()
		if w.gen != gen {
			return w.last
		}
		w.last.Err = err
		return w.last
	}

	w.mu.Lock()
	if w.gen != gen {
		snap := w.last
		w.mu.Unlock()
		return snap
	}
	est := w.tracker.Observe(jobID, &doc)
	status := doc.JobStatus()
	retrigger := status == models.StatusFailed && w.lastStatus != models.StatusFailed && w.lastStatus != ""
	w.lastStatus = status
	fresh := w.newStepsLocked(doc.StepsDone)
	mergeKey, mergeReady := doc.MergedOutput()
	needURL := mergeReady && mergeKey != w.mergedKey
	if needURL {
		w.mergedKey = mergeKey
	}
	w.last.Doc = &doc
	w.last.Progress = est
	w.last.StatusText = doc.StatusText()
	w.last.Err = nil
	w.mu.Unlock()

	if retrigger {
		w.log.Info("job failed, re-issuing run", "job_id", jobID)
		w.trigger(ctx, jobID, gen)
	}
	if len(fresh) > 0 {
		w.fetchPreviews(ctx, jobID, gen, fresh)
	}
	if needURL {
		w.resolveMerged(ctx, jobID, gen, mergeKey)
	}
	return w.Last()
}

// Run polls immediately and then on every interval until ctx is done.
func (w *Watcher) Run(ctx context.Context, onSnapshot func(Snapshot)) {
	emit := func(s Snapshot) {
		if onSnapshot != nil {
			onSnapshot(s)
		}
	}
	emit(w.Poll(ctx))
	t := w.clock.Ticker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			emit(w.Poll(ctx))
		}
	}
}

func (w *Watcher) trigger(ctx context.Context, jobID string, gen uint64) {
	w.setRunStatus(gen, RunStarting)
	if err := w.src.Run(ctx, models.NewRunRequest(jobID)); err != nil {
		w.log.Warn("run trigger failed", "job_id", jobID, "err", err)
		w.setRunStatus(gen, fmt.Sprintf("Error starting run: %v", err))
		return
	}
	w.setRunStatus(gen, RunStarted)
}

func (w *Watcher) setRunStatus(gen uint64, s string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.gen == gen {
		w.last.RunStatus = s
	}
}

func (w *Watcher) newStepsLocked(done []string) []string {
	var out []string
	for _, raw := range done {
		name := strings.TrimSpace(raw)
		if name == "" || w.seen[name] {
			continue
		}
		w.seen[name] = true
		if st, ok := steps.Parse(name); ok && st.IsVideo() {
			continue
		}
		out = append(out, name)
	}
	return out
}

// fetchPreviews loads previews concurrently but pushes them in the order the
// steps were reported done, so a replayed backlog keeps pipeline order.
func (w *Watcher) fetchPreviews(ctx context.Context, jobID string, gen uint64, names []string) {
	results := make([]*models.StepPreview, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(previewFetchLimit)
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			p, err := w.src.StepPreview(gctx, jobID, name)
			if err != nil {
				if errors.Is(err, backend.ErrNotFound) {
					w.log.Debug("step preview not ready", "job_id", jobID, "step", name)
				} else {
					w.log.Warn("step preview failed", "job_id", jobID, "step", name, "err", err)
				}
				return nil
			}
			results[i] = &p
			return nil
		})
	}
	_ = g.Wait()
	for i, p := range results {
		if p != nil {
			w.pushPreview(gen, names[i], *p)
		}
	}
}

// pushPreview holds w.mu across the push so a concurrent SetJob cannot reset
// the queue between the generation check and the push.
func (w *Watcher) pushPreview(gen uint64, name string, p models.StepPreview) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.gen != gen {
		return
	}
	step := p.Step
	if step == "" {
		step = name
	}
	ts := p.UpdatedAt
	if ts.IsZero() {
		ts = w.clock.Now()
	}
	w.queue.Push(models.InfoBlock{Step: step, Timestamp: ts, Payload: p.Data, SourceURI: p.URI})
}

func (w *Watcher) resolveMerged(ctx context.Context, jobID string, gen uint64, key string) {
	u, err := w.src.SignedURL(ctx, jobID, key, w.expires)
	if err != nil {
		w.log.Warn("signed-url failed for merged video", "job_id", jobID, "key", key, "err", err)
		return
	}
	videos := []models.VideoClip{{ID: MergedVideoID, Title: MergedVideoTitle, URL: u}}
	w.mu.Lock()
	if w.gen != gen {
		w.mu.Unlock()
		return
	}
	w.videos = videos
	w.last.Videos = cloneVideos(videos)
	w.mu.Unlock()
	if w.store != nil {
		if err := w.store.SaveVideos(jobID, videos); err != nil {
			w.log.Warn("session write failed", "key", session.KeyVideos, "err", err)
		}
	}
}

func cloneVideos(v []models.VideoClip) []models.VideoClip {
	if v == nil {
		return nil
	}
	out := make([]models.VideoClip, len(v))
	copy(out, v)
	return out
}
