package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"paperreel/internal/logging"
	"paperreel/internal/progress"
	"paperreel/internal/reveal"
	"paperreel/internal/watch"
)

func runStatus(args []string) error {
	fs, e := newFlagSet("status")
	job := fs.String("job", "", "job id")
	last := fs.Bool("last", false, "use the last uploaded job")
	timeout := fs.Duration("timeout", 30*time.Second, "request timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	jobID, err := e.resolveJob(*job, *last)
	if err != nil {
		return err
	}
	if jobID == "" {
		return errors.New("--job or --last is required")
	}

	log := logging.Discard()
	w := watch.New(watch.Options{
		Source:           e.client(),
		Queue:            reveal.New(reveal.Options{Logger: log}),
		Weights:          progress.WeightsFromConfig(e.cfg.Progress),
		SignedURLExpires: e.cfg.SignedURLExpiresSecs,
		Logger:           log,
	})
	w.SetJob(jobID)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	snap := w.Poll(ctx)
	if snap.Err != nil {
		return fmt.Errorf("job %s: %w", jobID, snap.Err)
	}

	if *e.jsonOut {
		out := map[string]any{
			"job_id":  jobID,
			"pct":     snap.Progress.Percent,
			"label":   snap.Progress.Label,
			"message": snap.Progress.Message,
		}
		if snap.Doc != nil {
			out["status"] = snap.Doc.Status
			out["finished"] = snap.Doc.JobStatus().Terminal()
		}
		if len(snap.Videos) > 0 {
			out["videos"] = snap.Videos
		}
		return printJSON(out)
	}
	fmt.Fprintf(stdout, "%s [%d%%] %s\n", jobID, snap.Progress.Percent, snap.Progress.Label)
	if snap.Progress.Message != "" {
		fmt.Fprintf(stdout, "  %s\n", snap.Progress.Message)
	}
	if snap.Doc != nil && snap.Doc.JobStatus().Terminal() {
		fmt.Fprintf(stdout, "  finished: %s\n", snap.Doc.JobStatus())
	}
	for _, v := range snap.Videos {
		fmt.Fprintf(stdout, "  video: %s %s\n", v.Title, v.URL)
	}
	return nil
}
