package progress

import (
	"fmt"

	"paperreel/internal/config"
	"paperreel/internal/models"
	"paperreel/internal/steps"
)

// FallbackLabel is shown before the first job document arrives.
const FallbackLabel = "Ready in ~5 minutes"

const maxBeforeSuccess = 99

// Weights maps pipeline steps to their share of the bar. Video is the block
// reserved for clip generation; video steps are never looked up in Steps.
type Weights struct {
	Steps map[steps.Step]int
	Video int
}

func DefaultWeights() Weights {
	return Weights{
		Steps: map[steps.Step]int{
			steps.DocIR:        1,
			steps.Sketch:       4,
			steps.World:        5,
			steps.Glossary:     5,
			steps.Claim:        16,
			steps.VisualAssets: 5,
			steps.Storyboard:   12,
		},
		Video: 50,
	}
}

// WeightsFromConfig applies the optional YAML overlay on top of DefaultWeights.
// Unknown step names in the overlay are ignored.
func WeightsFromConfig(pc config.ProgressConfig) Weights {
	w := DefaultWeights()
	for raw, n := range pc.StepWeights {
		s, ok := steps.Parse(raw)
		if !ok || s.IsVideo() || n < 0 {
			continue
		}
		w.Steps[s] = n
	}
	if pc.VideoWeight > 0 {
		w.Video = pc.VideoWeight
	}
	return w
}

type Result struct {
	Percent int    `json:"pct"`
	Label   string `json:"label"`
	Message string `json:"message,omitempty"`
	// Known is false until a job document has been read.
	Known bool `json:"known"`
}

// Estimate turns a job snapshot into a percentage and label. It is pure; the
// monotonic display value is kept by Tracker.
func Estimate(doc *models.JobDocument, w Weights) Result {
	if doc == nil {
		return Result{Label: FallbackLabel}
	}

	pct := 0
	videoStepDone := false
	seen := make(map[steps.Step]struct{}, len(doc.StepsDone))
	for _, raw := range doc.StepsDone {
		s, ok := steps.Parse(raw)
		if !ok {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		if s.IsVideo() {
			videoStepDone = true
			continue
		}
		pct += w.Steps[s]
	}

	done, total := doc.ClipCounts()
	switch {
	case total > 0:
		pct += clamp(w.Video*done/total, 0, w.Video)
	case videoStepDone:
		pct += w.Video
	}

	status := doc.JobStatus()
	if status == models.StatusSucceeded {
		pct = 100
	} else {
		pct = clamp(pct, 0, maxBeforeSuccess)
	}

	return Result{
		Percent: pct,
		Label:   label(doc, status, done, total),
		Message: doc.StatusText(),
		Known:   true,
	}
}

func label(doc *models.JobDocument, status models.JobStatus, done, total int) string {
	switch status {
	case models.StatusSucceeded:
		return "Done"
	case models.StatusFailed:
		return "Failed"
	}
	base := "Waiting for pipeline"
	if s, ok := steps.Parse(doc.CurrentStep); ok {
		base = steps.Label(s)
	}
	if done <= 0 {
		return base
	}
	if total > 0 {
		return fmt.Sprintf("%s • Clips %d/%d", base, done, total)
	}
	return fmt.Sprintf("%s • Clips %d", base, done)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
