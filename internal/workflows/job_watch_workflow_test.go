package workflows

import (
	"context"
	"testing"

	"paperreel/internal/activities"
	"paperreel/internal/models"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"
)

func registerActivityName[T any](env *testsuite.TestWorkflowEnvironment, name string, fn T) {
	env.RegisterActivityWithOptions(fn, activity.RegisterOptions{Name: name})
}

func newWatchEnv(t *testing.T) *testsuite.TestWorkflowEnvironment {
	t.Helper()
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(JobWatchWorkflow)
	registerActivityName(env, "TriggerRunActivity", func(context.Context, activities.TriggerRunInput) error { return nil })
	registerActivityName(env, "FetchJobActivity", func(context.Context, activities.FetchJobInput) (activities.FetchJobOutput, error) {
		return activities.FetchJobOutput{}, nil
	})
	registerActivityName(env, "WriteWatchReportActivity", func(context.Context, activities.WriteWatchReportInput) error { return nil })
	return env
}

func doc(status string, done ...string) activities.FetchJobOutput {
	return activities.FetchJobOutput{Doc: models.JobDocument{JobID: "job-1", Status: status, StepsDone: done}}
}

func TestJobWatchWorkflowSucceeds(t *testing.T) {
	env := newWatchEnv(t)
	env.OnActivity("TriggerRunActivity", mock.Anything, activities.TriggerRunInput{JobID: "job-1"}).Return(nil).Once()
	env.OnActivity("FetchJobActivity", mock.Anything, activities.FetchJobInput{JobID: "job-1"}).Return(doc("RUNNING", "doc_ir", "sketch"), nil).Once()
	env.OnActivity("FetchJobActivity", mock.Anything, activities.FetchJobInput{JobID: "job-1"}).Return(doc("COMPLETED", "doc_ir", "sketch", "world"), nil).Once()
	env.OnActivity("WriteWatchReportActivity", mock.Anything, mock.MatchedBy(func(in activities.WriteWatchReportInput) bool {
		return in.Outcome == OutcomeSucceeded && in.Percent == 100 && len(in.History) == 2
	})).Return(nil).Once()

	env.ExecuteWorkflow(JobWatchWorkflow, JobWatchInput{JobID: "job-1", PollSeconds: 1, MaxRetries: 1})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out string
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, OutcomeSucceeded, out)

	val, err := env.QueryWorkflow(QueryGetJobProgress)
	require.NoError(t, err)
	var prog JobProgress
	require.NoError(t, val.Get(&prog))
	require.Equal(t, 100, prog.Percent)
	require.Equal(t, "SUCCEEDED", prog.Status)
	require.Equal(t, 1, prog.Triggers)
	env.AssertExpectations(t)
}

func TestJobWatchWorkflowRetriggersOnFailureTransition(t *testing.T) {
	env := newWatchEnv(t)
	env.OnActivity("TriggerRunActivity", mock.Anything, mock.Anything).Return(nil).Times(2)
	env.OnActivity("FetchJobActivity", mock.Anything, mock.Anything).Return(doc("RUNNING", "doc_ir"), nil).Once()
	env.OnActivity("FetchJobActivity", mock.Anything, mock.Anything).Return(doc("FAILED", "doc_ir"), nil).Once()
	env.OnActivity("FetchJobActivity", mock.Anything, mock.Anything).Return(doc("FAILED", "doc_ir"), nil).Once()
	env.OnActivity("FetchJobActivity", mock.Anything, mock.Anything).Return(doc("RUNNING", "doc_ir", "sketch"), nil).Once()
	env.OnActivity("FetchJobActivity", mock.Anything, mock.Anything).Return(doc("FAILED", "doc_ir", "sketch"), nil).Once()
	env.OnActivity("WriteWatchReportActivity", mock.Anything, mock.Anything).Return(nil).Once()

	env.ExecuteWorkflow(JobWatchWorkflow, JobWatchInput{JobID: "job-1", PollSeconds: 1, MaxRetries: 1})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out string
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, OutcomeFailed, out)

	val, err := env.QueryWorkflow(QueryGetJobProgress)
	require.NoError(t, err)
	var prog JobProgress
	require.NoError(t, val.Get(&prog))
	require.Equal(t, 1, prog.Retries)
	require.Equal(t, 2, prog.Triggers)
	require.Equal(t, 5, prog.Percent)
	env.AssertExpectations(t)
}

func TestJobWatchWorkflowFirstFailedObservationDoesNotRetrigger(t *testing.T) {
	env := newWatchEnv(t)
	env.OnActivity("TriggerRunActivity", mock.Anything, mock.Anything).Return(nil).Once()
	env.OnActivity("FetchJobActivity", mock.Anything, mock.Anything).Return(doc("FAILED"), nil).Once()
	env.OnActivity("FetchJobActivity", mock.Anything, mock.Anything).Return(doc("SUCCEEDED", "doc_ir"), nil).Once()
	env.OnActivity("WriteWatchReportActivity", mock.Anything, mock.Anything).Return(nil).Once()

	env.ExecuteWorkflow(JobWatchWorkflow, JobWatchInput{JobID: "job-1", PollSeconds: 1, MaxRetries: 2})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out string
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, OutcomeSucceeded, out)

	val, err := env.QueryWorkflow(QueryGetJobProgress)
	require.NoError(t, err)
	var prog JobProgress
	require.NoError(t, val.Get(&prog))
	require.Equal(t, 1, prog.Triggers)
	require.Equal(t, 0, prog.Retries)
	env.AssertExpectations(t)
}

func TestJobWatchWorkflowMissingJobFails(t *testing.T) {
	env := newWatchEnv(t)
	env.OnActivity("TriggerRunActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("FetchJobActivity", mock.Anything, mock.Anything).
		Return(activities.FetchJobOutput{}, temporal.NewNonRetryableApplicationError("fetch job job-1: backend status 404", "BackendClientError", nil))
	env.OnActivity("WriteWatchReportActivity", mock.Anything, mock.Anything).Return(nil)

	env.ExecuteWorkflow(JobWatchWorkflow, JobWatchInput{JobID: "job-1", PollSeconds: 1})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out string
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, OutcomeFailed, out)
}

func TestJobWatchWorkflowTimesOut(t *testing.T) {
	env := newWatchEnv(t)
	env.OnActivity("TriggerRunActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("FetchJobActivity", mock.Anything, mock.Anything).Return(doc("RUNNING", "doc_ir"), nil)
	env.OnActivity("WriteWatchReportActivity", mock.Anything, mock.Anything).Return(nil)

	env.ExecuteWorkflow(JobWatchWorkflow, JobWatchInput{JobID: "job-1", PollSeconds: 1, MaxPolls: 3})
	require.True(t, env.IsWorkflowCompleted())

	var out string
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, OutcomeTimeout, out)
}
