package progress

import (
	"sync"

	"paperreel/internal/models"
)

// Tracker keeps the displayed percentage monotonic for one job at a time.
type Tracker struct {
	weights Weights

	mu    sync.Mutex
	jobID string
	max   int
}

func NewTracker(w Weights) *Tracker {
	return &Tracker{weights: w}
}

// Observe estimates doc and returns the display value: never lower than any
// value previously returned for the same job. A different job id starts over.
func (t *Tracker) Observe(jobID string, doc *models.JobDocument) Result {
	t.mu.Lock()
	defer t.mu.Unlock()
	if jobID != t.jobID {
		t.jobID = jobID
		t.max = 0
	}
	r := Estimate(doc, t.weights)
	if !r.Known {
		return r
	}
	if r.Percent < t.max {
		r.Percent = t.max
	} else {
		t.max = r.Percent
	}
	return r
}

func (t *Tracker) Reset(jobID string) {
	t.mu.Lock()
	t.jobID = jobID
	t.max = 0
	t.mu.Unlock()
}
