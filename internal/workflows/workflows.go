package workflows

import (
	"errors"
	"time"

	"paperreel/internal/activities"
	"paperreel/internal/models"
	"paperreel/internal/progress"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const QueryGetJobProgress = "GetJobProgress"

const (
	defaultPollSeconds = 3
	defaultMaxPolls    = 1200
)

// WatchWorkflowID is the workflow id used for a job's watch, so the gateway
// can start and query it by job id alone.
func WatchWorkflowID(jobID string) string {
	return "job-watch-" + jobID
}

// JobWatchWorkflow triggers the pipeline run for a job, then polls the job
// document until it settles, re-triggering when the job newly enters FAILED.
func JobWatchWorkflow(ctx workflow.Context, input JobWatchInput) (string, error) {
	logger := workflow.GetLogger(ctx)
	prog := JobProgress{
		JobID:  input.JobID,
		Status: string(models.StatusReceived),
		Label:  progress.FallbackLabel,
	}
	if err := workflow.SetQueryHandler(ctx, QueryGetJobProgress, func() (JobProgress, error) {
		return prog, nil
	}); err != nil {
		return "", err
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    20 * time.Second,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	pollEvery := time.Duration(input.PollSeconds) * time.Second
	if input.PollSeconds <= 0 {
		pollEvery = defaultPollSeconds * time.Second
	}
	maxPolls := input.MaxPolls
	if maxPolls <= 0 {
		maxPolls = defaultMaxPolls
	}
	tracker := progress.NewTracker(progress.WeightsFromConfig(input.Progress))
	history := make([]activities.WatchSample, 0, 32)

	trigger := func() error {
		err := workflow.ExecuteActivity(ctx, "TriggerRunActivity", activities.TriggerRunInput{
			JobID:  input.JobID,
			Target: input.Target,
			Force:  input.Force,
		}).Get(ctx, nil)
		if err == nil {
			prog.Triggers++
		}
		return err
	}
	finish := func(outcome string) (string, error) {
		prog.Outcome = outcome
		if err := workflow.ExecuteActivity(ctx, "WriteWatchReportActivity", activities.WriteWatchReportInput{
			JobID:   input.JobID,
			Outcome: outcome,
			Percent: prog.Percent,
			Retries: prog.Retries,
			History: history,
		}).Get(ctx, nil); err != nil {
			logger.Warn("watch report not written", "job_id", input.JobID, "error", err)
		}
		return outcome, nil
	}

	if err := trigger(); err != nil {
		logger.Error("run trigger failed", "job_id", input.JobID, "error", err)
		prog.Message = err.Error()
		return finish(OutcomeFailed)
	}

	prevStatus := models.JobStatus("")
	for prog.Polls < maxPolls {
		prog.Polls++
		var out activities.FetchJobOutput
		if err := workflow.ExecuteActivity(ctx, "FetchJobActivity", activities.FetchJobInput{JobID: input.JobID}).Get(ctx, &out); err != nil {
			prog.FetchErrors++
			var appErr *temporal.ApplicationError
			if errors.As(err, &appErr) && appErr.NonRetryable() {
				prog.Message = err.Error()
				return finish(OutcomeFailed)
			}
			logger.Warn("job fetch failed", "job_id", input.JobID, "error", err)
			_ = workflow.Sleep(ctx, pollEvery)
			continue
		}

		doc := out.Doc
		est := tracker.Observe(input.JobID, &doc)
		status := doc.JobStatus()
		prog.Status = string(status)
		prog.CurrentStep = doc.CurrentStep
		prog.Percent = est.Percent
		prog.Label = est.Label
		prog.Message = est.Message
		prog.Known = est.Known
		history = append(history, activities.WatchSample{
			At:       workflow.Now(ctx),
			Status:   prog.Status,
			Step:     doc.CurrentStep,
			Percent:  est.Percent,
			Triggers: prog.Triggers,
		})

		switch {
		case status == models.StatusSucceeded:
			return finish(OutcomeSucceeded)
		// A FAILED first observation belongs to the run requested above.
		case status == models.StatusFailed && prevStatus != "" && prevStatus != models.StatusFailed:
			if prog.Retries >= input.MaxRetries {
				return finish(OutcomeFailed)
			}
			prog.Retries++
			if err := trigger(); err != nil {
				logger.Error("run re-trigger failed", "job_id", input.JobID, "error", err)
				return finish(OutcomeFailed)
			}
		}
		prevStatus = status
		_ = workflow.Sleep(ctx, pollEvery)
	}
	return finish(OutcomeTimeout)
}
