package workflows

import "paperreel/internal/config"

type JobWatchInput struct {
	JobID       string                `json:"job_id"`
	Target      string                `json:"target,omitempty"`
	Force       bool                  `json:"force"`
	PollSeconds int                   `json:"poll_seconds"`
	MaxRetries  int                   `json:"max_retries"`
	MaxPolls    int                   `json:"max_polls"`
	Progress    config.ProgressConfig `json:"progress"`
}

// JobProgress is what GetJobProgress answers. Percent never decreases for
// the lifetime of one watch.
type JobProgress struct {
	JobID       string `json:"job_id"`
	Status      string `json:"status"`
	CurrentStep string `json:"current_step,omitempty"`
	Percent     int    `json:"pct"`
	Label       string `json:"label"`
	Message     string `json:"message,omitempty"`
	Known       bool   `json:"known"`
	Polls       int    `json:"polls"`
	Triggers    int    `json:"triggers"`
	Retries     int    `json:"retries"`
	FetchErrors int    `json:"fetch_errors"`
	Outcome     string `json:"outcome,omitempty"`
}

const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeTimeout   = "timeout"
)
