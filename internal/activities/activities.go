package activities

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"paperreel/internal/backend"
	"paperreel/internal/config"
	"paperreel/internal/models"
	"paperreel/internal/util"

	"go.temporal.io/sdk/temporal"
)

// JobBackend is the part of the backend client the job watch needs.
type JobBackend interface {
	Run(ctx context.Context, req models.RunRequest) error
	Job(ctx context.Context, jobID string) (models.JobDocument, error)
}

type Activities struct {
	backend   JobBackend
	reportDir string
}

func New(cfg config.Config) (*Activities, error) {
	if cfg.BackendBaseURL == "" {
		return nil, errors.New("BACKEND_BASE_URL not set")
	}
	return NewWithBackend(backend.NewClient(cfg.BackendBaseURL), cfg.ReportDir), nil
}

func NewWithBackend(b JobBackend, reportDir string) *Activities {
	return &Activities{backend: b, reportDir: reportDir}
}

func (a *Activities) TriggerRunActivity(ctx context.Context, in TriggerRunInput) error {
	req := models.NewRunRequest(in.JobID)
	if in.Target != "" {
		req.Target = in.Target
	}
	req.Force = in.Force
	if err := a.backend.Run(ctx, req); err != nil {
		return classify(fmt.Errorf("trigger run %s: %w", in.JobID, err))
	}
	return nil
}

func (a *Activities) FetchJobActivity(ctx context.Context, in FetchJobInput) (FetchJobOutput, error) {
	doc, err := a.backend.Job(ctx, in.JobID)
	if err != nil {
		return FetchJobOutput{}, classify(fmt.Errorf("fetch job %s: %w", in.JobID, err))
	}
	return FetchJobOutput{Doc: doc}, nil
}

func (a *Activities) WriteWatchReportActivity(ctx context.Context, in WriteWatchReportInput) error {
	_ = ctx
	if a.reportDir == "" {
		return nil
	}
	dir := util.SafeJoin(a.reportDir, safeName(in.JobID))
	if err := util.WriteJSONAtomic(filepath.Join(dir, "watch_summary.json"), map[string]any{
		"job_id":  in.JobID,
		"outcome": in.Outcome,
		"pct":     in.Percent,
		"retries": in.Retries,
		"polls":   len(in.History),
	}); err != nil {
		return err
	}
	rows := make([]any, 0, len(in.History))
	for _, s := range in.History {
		rows = append(rows, s)
	}
	return util.WriteJSONLinesAtomic(filepath.Join(dir, "watch_history.jsonl"), rows)
}

// classify marks client errors from the backend as non-retryable; a 404 job
// or a rejected run request will not fix itself.
func classify(err error) error {
	var se *backend.StatusError
	if errors.As(err, &se) && se.Code >= 400 && se.Code < 500 && se.Code != 429 {
		return temporal.NewNonRetryableApplicationError(err.Error(), "BackendClientError", err)
	}
	return err
}

func safeName(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, id)
}
