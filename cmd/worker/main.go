package main

import (
	"os"

	"paperreel/internal/activities"
	"paperreel/internal/config"
	"paperreel/internal/logging"
	"paperreel/internal/workflows"

	"github.com/joho/godotenv"
	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"
	"go.temporal.io/sdk/worker"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	log := logging.New(cfg.LogLevel)

	if cfg.TemporalAddress == "" {
		log.Error("PAPERREEL_TEMPORAL_ADDRESS is required for the worker")
		os.Exit(1)
	}
	c, err := client.Dial(client.Options{HostPort: cfg.TemporalAddress, Logger: tlog.NewStructuredLogger(log)})
	if err != nil {
		log.Error("dial temporal failed", "err", err)
		os.Exit(1)
	}
	defer c.Close()

	a, err := activities.New(cfg)
	if err != nil {
		log.Error("activities setup failed", "err", err)
		os.Exit(1)
	}

	w := worker.New(c, cfg.TemporalTaskQueue, worker.Options{})
	workflows.Register(w)
	activities.Register(w, a)

	log.Info("paperreel worker listening", "temporal", cfg.TemporalAddress, "queue", cfg.TemporalTaskQueue, "backend", cfg.BackendBaseURL, "reports", cfg.ReportDir)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Error("worker stopped", "err", err)
		os.Exit(1)
	}
}
