package activities

import (
	"time"

	"paperreel/internal/models"
)

type TriggerRunInput struct {
	JobID  string `json:"job_id"`
	Target string `json:"target"`
	Force  bool   `json:"force"`
}

type FetchJobInput struct {
	JobID string `json:"job_id"`
}

type FetchJobOutput struct {
	Doc models.JobDocument `json:"doc"`
}

// WatchSample is one poll of a job watch, kept for the report.
type WatchSample struct {
	At       time.Time `json:"at"`
	Status   string    `json:"status"`
	Step     string    `json:"step,omitempty"`
	Percent  int       `json:"pct"`
	Triggers int       `json:"triggers"`
}

type WriteWatchReportInput struct {
	JobID   string        `json:"job_id"`
	Outcome string        `json:"outcome"`
	Percent int           `json:"pct"`
	Retries int           `json:"retries"`
	History []WatchSample `json:"history"`
}
