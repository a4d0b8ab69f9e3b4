package models

import (
	"strings"
	"time"
)

type JobStatus string

const (
	StatusReceived  JobStatus = "RECEIVED"
	StatusRunning   JobStatus = "RUNNING"
	StatusFailed    JobStatus = "FAILED"
	StatusSucceeded JobStatus = "SUCCEEDED"
)

// ParseJobStatus normalizes a raw backend status. Older backend revisions
// report success as COMPLETED; it is folded into SUCCEEDED here.
func ParseJobStatus(raw string) JobStatus {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "COMPLETED" {
		return StatusSucceeded
	}
	return JobStatus(s)
}

func (s JobStatus) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

const MergeStatusCompleted = "completed"

// JobDocument is the backend-owned job record. It is only ever read here.
type JobDocument struct {
	JobID         string   `json:"job_id,omitempty"`
	Status        string   `json:"status"`
	CurrentStep   string   `json:"current_step,omitempty"`
	StepsDone     []string `json:"steps_done,omitempty"`
	VideoDone     *int     `json:"video_done,omitempty"`
	VideoTotal    *int     `json:"video_total,omitempty"`
	Message       string   `json:"message,omitempty"`
	MergeStatus   string   `json:"merge_status,omitempty"`
	OutputGCSPath string   `json:"output_gcs_path,omitempty"`
	Clips         []Clip   `json:"clips,omitempty"`
}

type Clip struct {
	ClipID string `json:"clip_id"`
	Status string `json:"status"`
	Total  int    `json:"total,omitempty"`
}

func (d JobDocument) JobStatus() JobStatus {
	return ParseJobStatus(d.Status)
}

// ClipCounts prefers the explicit counters and falls back to the clip list,
// where a READY clip counts as done.
func (d JobDocument) ClipCounts() (done, total int) {
	if d.VideoDone != nil || d.VideoTotal != nil {
		if d.VideoDone != nil {
			done = *d.VideoDone
		}
		if d.VideoTotal != nil {
			total = *d.VideoTotal
		}
		return done, total
	}
	for _, c := range d.Clips {
		if strings.EqualFold(strings.TrimSpace(c.Status), "READY") {
			done++
		}
		if c.Total > total {
			total = c.Total
		}
	}
	return done, total
}

// MergedOutput returns the storage key of the merged video once the backend
// reports the merge as completed.
func (d JobDocument) MergedOutput() (string, bool) {
	if strings.ToLower(strings.TrimSpace(d.MergeStatus)) != MergeStatusCompleted {
		return "", false
	}
	key := strings.TrimSpace(d.OutputGCSPath)
	return key, key != ""
}

func (d JobDocument) StatusText() string {
	parts := make([]string, 0, 3)
	if s := strings.TrimSpace(d.Status); s != "" {
		parts = append(parts, "Status: "+s)
	}
	if s := strings.TrimSpace(d.CurrentStep); s != "" {
		parts = append(parts, "Step: "+s)
	}
	if s := strings.TrimSpace(d.Message); s != "" {
		parts = append(parts, s)
	}
	return strings.Join(parts, " | ")
}

// InfoBlock is one display unit derived from a step preview.
type InfoBlock struct {
	ID        string         `json:"id,omitempty"`
	Step      string         `json:"step"`
	Timestamp time.Time      `json:"ts"`
	Payload   map[string]any `json:"data"`
	SourceURI string         `json:"uri,omitempty"`
}

// Key identifies the block for replacement: the explicit id when set, else the step.
func (b InfoBlock) Key() string {
	if b.ID != "" {
		return "id:" + b.ID
	}
	return "step:" + b.Step
}

type PinnedMeta struct {
	Title     string `json:"title,omitempty"`
	PageCount int    `json:"page_count,omitempty"`
}

type StepPreview struct {
	Step      string         `json:"step"`
	Data      map[string]any `json:"data"`
	URI       string         `json:"uri,omitempty"`
	UpdatedAt time.Time      `json:"updated_at,omitempty"`
}

type VideoClip struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	URL      string `json:"url"`
	Duration string `json:"duration,omitempty"`
}

type ChatRole string

const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

type ChatMessage struct {
	ID        string    `json:"id"`
	Role      ChatRole  `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type ChatRequest struct {
	Message     string  `json:"message"`
	VideoID     string  `json:"videoId,omitempty"`
	VideoTitle  string  `json:"videoTitle,omitempty"`
	CurrentTime float64 `json:"currentTime,omitempty"`
}

type ChatReply struct {
	Message string `json:"message"`
}

type VideoRequest struct {
	SceneIDs    []string `json:"scene_ids"`
	DryRun      bool     `json:"dry_run"`
	SavePrompts bool     `json:"save_prompts"`
}

type RunRequest struct {
	JobID        string       `json:"job_id"`
	Target       string       `json:"target"`
	Force        bool         `json:"force"`
	VideoRequest VideoRequest `json:"video_request"`
}

// NewRunRequest is the request the client issues on first view of a job.
func NewRunRequest(jobID string) RunRequest {
	return RunRequest{
		JobID:  jobID,
		Target: "merge",
		VideoRequest: VideoRequest{
			SceneIDs:    []string{},
			SavePrompts: true,
		},
	}
}

type Chapter struct {
	Title string `json:"title"`
	Page  int    `json:"page"`
}

type MetadataItem struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// PDFInfo is the cached document summary kept in session storage.
type PDFInfo struct {
	Title     string         `json:"title,omitempty"`
	Summary   string         `json:"summary,omitempty"`
	KeyTopics []string       `json:"keyTopics,omitempty"`
	Chapters  []Chapter      `json:"chapters,omitempty"`
	Metadata  []MetadataItem `json:"metadata,omitempty"`
}
