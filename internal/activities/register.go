package activities

import "go.temporal.io/sdk/worker"

func Register(w worker.Worker, a *Activities) {
	w.RegisterActivity(a.TriggerRunActivity)
	w.RegisterActivity(a.FetchJobActivity)
	w.RegisterActivity(a.WriteWatchReportActivity)
}
