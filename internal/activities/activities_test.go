package activities

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"

	"paperreel/internal/backend"
	"paperreel/internal/models"
)

type backendMock struct{ mock.Mock }

func (b *backendMock) Run(ctx context.Context, req models.RunRequest) error {
	return b.Called(ctx, req).Error(0)
}

func (b *backendMock) Job(ctx context.Context, jobID string) (models.JobDocument, error) {
	args := b.Called(ctx, jobID)
	return args.Get(0).(models.JobDocument), args.Error(1)
}

func TestTriggerRunActivityBuildsMergeRequest(t *testing.T) {
	b := &backendMock{}
	b.On("Run", mock.Anything, mock.MatchedBy(func(r models.RunRequest) bool {
		return r.JobID == "job-1" && r.Target == "merge" && r.Force && r.VideoRequest.SavePrompts
	})).Return(nil).Once()

	a := NewWithBackend(b, "")
	require.NoError(t, a.TriggerRunActivity(context.Background(), TriggerRunInput{JobID: "job-1", Force: true}))
	b.AssertExpectations(t)
}

func TestFetchJobActivityNotFoundIsNonRetryable(t *testing.T) {
	b := &backendMock{}
	b.On("Job", mock.Anything, "missing").Return(models.JobDocument{}, &backend.StatusError{Code: 404, Body: "no such job"})

	_, err := NewWithBackend(b, "").FetchJobActivity(context.Background(), FetchJobInput{JobID: "missing"})
	require.Error(t, err)
	var appErr *temporal.ApplicationError
	require.ErrorAs(t, err, &appErr)
	require.True(t, appErr.NonRetryable())
}

func TestFetchJobActivityServerErrorStaysRetryable(t *testing.T) {
	b := &backendMock{}
	b.On("Job", mock.Anything, "job-1").Return(models.JobDocument{}, &backend.StatusError{Code: 503, Body: "busy"})

	_, err := NewWithBackend(b, "").FetchJobActivity(context.Background(), FetchJobInput{JobID: "job-1"})
	require.Error(t, err)
	var appErr *temporal.ApplicationError
	require.False(t, errors.As(err, &appErr))
}

func TestWriteWatchReportActivity(t *testing.T) {
	dir := t.TempDir()
	a := NewWithBackend(&backendMock{}, dir)
	err := a.WriteWatchReportActivity(context.Background(), WriteWatchReportInput{
		JobID:   "job/1",
		Outcome: "succeeded",
		Percent: 100,
		History: []WatchSample{
			{At: time.Unix(0, 0).UTC(), Status: "RUNNING", Step: "sketch", Percent: 5, Triggers: 1},
			{At: time.Unix(3, 0).UTC(), Status: "SUCCEEDED", Percent: 100, Triggers: 1},
		},
	})
	require.NoError(t, err)

	summary, err := os.ReadFile(filepath.Join(dir, "job_1", "watch_summary.json"))
	require.NoError(t, err)
	require.Contains(t, string(summary), `"outcome": "succeeded"`)

	history, err := os.ReadFile(filepath.Join(dir, "job_1", "watch_history.jsonl"))
	require.NoError(t, err)
	require.Len(t, strings.Split(strings.TrimSpace(string(history)), "\n"), 2)
}
