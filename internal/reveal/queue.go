// Package reveal paces step previews into the info panel.
//
// Right after a job is opened every block is shown at once, since those are
// replays of steps that finished before the viewer arrived. Once the warm-up
// window has passed, blocks go through a pending queue that Tick drains one
// block at a time. Only the latest pending update per block is kept.
package reveal

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"paperreel/internal/models"
	"paperreel/internal/steps"

	"github.com/facebookgo/clock"
)

const (
	DefaultWarmup   = 10 * time.Second
	DefaultInterval = 3 * time.Second
)

type Options struct {
	Clock    clock.Clock
	Warmup   time.Duration
	Interval time.Duration
	Logger   *slog.Logger
}

type Queue struct {
	clock    clock.Clock
	warmup   time.Duration
	interval time.Duration
	log      *slog.Logger

	mu        sync.Mutex
	jobID     string
	startedAt time.Time
	pinned    models.PinnedMeta
	visible   []models.InfoBlock
	pending   []models.InfoBlock
}

func New(opts Options) *Queue {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Warmup < 0 {
		opts.Warmup = 0
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Queue{
		clock:     opts.Clock,
		warmup:    opts.Warmup,
		interval:  opts.Interval,
		log:       opts.Logger,
		startedAt: opts.Clock.Now(),
	}
}

// Reset clears pinned metadata, visible and pending blocks and restarts the
// warm-up window for jobID.
func (q *Queue) Reset(jobID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobID = jobID
	q.startedAt = q.clock.Now()
	q.pinned = models.PinnedMeta{}
	q.visible = nil
	q.pending = nil
}

func (q *Queue) JobID() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.jobID
}

func (q *Queue) InWarmup() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.inWarmupLocked()
}

func (q *Queue) inWarmupLocked() bool {
	return q.clock.Now().Sub(q.startedAt) < q.warmup
}

// Push accepts one block from a step preview.
func (q *Queue) Push(b models.InfoBlock) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if b.Step == string(steps.DocIR) {
		q.pinLocked(b.Payload)
	}

	blocks := []models.InfoBlock{b}
	if b.Step == string(steps.Glossary) {
		if chunks := ExpandGlossary(b); len(chunks) > 0 {
			blocks = chunks
		}
	}

	if q.inWarmupLocked() {
		for _, c := range blocks {
			q.visible = upsert(q.visible, c)
		}
		return
	}
	for _, c := range blocks {
		q.pending = upsert(q.pending, c)
	}
	q.log.Debug("info block queued", "job_id", q.jobID, "step", b.Step, "pending", len(q.pending))
}

// Tick moves the oldest pending block into the visible list. It reports
// whether anything changed.
func (q *Queue) Tick() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return false
	}
	next := q.pending[0]
	q.pending = q.pending[1:]
	q.visible = upsert(q.visible, next)
	return true
}

// Run drains the queue on the configured interval until ctx is done.
// onChange is called after every tick that revealed a block.
func (q *Queue) Run(ctx context.Context, onChange func()) {
	t := q.clock.Ticker(q.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if q.Tick() && onChange != nil {
				onChange()
			}
		}
	}
}

func (q *Queue) Interval() time.Duration {
	return q.interval
}

func (q *Queue) Visible() []models.InfoBlock {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]models.InfoBlock(nil), q.visible...)
}

func (q *Queue) Pending() []models.InfoBlock {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]models.InfoBlock(nil), q.pending...)
}

func (q *Queue) Pinned() models.PinnedMeta {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pinned
}

// pinLocked fills pinned metadata once; fields already set are kept.
func (q *Queue) pinLocked(data map[string]any) {
	if q.pinned.Title == "" {
		if title, ok := data["title"].(string); ok {
			q.pinned.Title = title
		}
	}
	if q.pinned.PageCount == 0 {
		switch n := data["page_count"].(type) {
		case float64:
			q.pinned.PageCount = int(n)
		case int:
			q.pinned.PageCount = n
		}
	}
}

// upsert replaces the block with the same key in place or appends it.
func upsert(list []models.InfoBlock, b models.InfoBlock) []models.InfoBlock {
	key := b.Key()
	for i := range list {
		if list[i].Key() == key {
			list[i] = b
			return list
		}
	}
	return append(list, b)
}
