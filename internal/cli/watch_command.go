package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"paperreel/internal/logging"
	"paperreel/internal/progress"
	"paperreel/internal/reveal"
	"paperreel/internal/util"
	"paperreel/internal/viewer"
	"paperreel/internal/watch"

	tea "github.com/charmbracelet/bubbletea"
)

func runWatch(args []string) error {
	fs, e := newFlagSet("watch")
	job := fs.String("job", "", "job id")
	last := fs.Bool("last", false, "reopen the last uploaded job")
	logFile := fs.String("log-file", "", "write logs here (default <session-dir>/paperreel.log)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !stdinIsTTY() {
		return errors.New("watch requires an interactive terminal (TTY); use status instead")
	}
	jobID, err := e.resolveJob(*job, *last)
	if err != nil {
		return err
	}

	sessionDir := strings.TrimSpace(*e.session)
	if err := util.EnsureDir(sessionDir); err != nil {
		return err
	}
	path := strings.TrimSpace(*logFile)
	if path == "" {
		path = filepath.Join(sessionDir, "paperreel.log")
	}
	f, err := tea.LogToFile(path, "paperreel")
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	log := logging.NewWriter(e.cfg.LogLevel, f)

	cfg := e.cfg
	client := e.client()
	store := e.store()
	queue := reveal.New(reveal.Options{
		Warmup:   time.Duration(cfg.RevealWarmupSeconds) * time.Second,
		Interval: time.Duration(cfg.RevealIntervalSeconds) * time.Second,
		Logger:   log,
	})
	w := watch.New(watch.Options{
		Source:           client,
		Queue:            queue,
		Session:          store,
		Weights:          progress.WeightsFromConfig(cfg.Progress),
		PollInterval:     time.Duration(cfg.PollSeconds) * time.Second,
		SignedURLExpires: cfg.SignedURLExpiresSecs,
		Logger:           log,
	})
	m := viewer.New(jobID, viewer.Deps{
		Watcher:        w,
		Chat:           client,
		Session:        store,
		PollInterval:   time.Duration(cfg.PollSeconds) * time.Second,
		RevealInterval: queue.Interval(),
		Logger:         log,
	})

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "tty") {
			return errors.New("watch requires an interactive terminal (TTY)")
		}
		return err
	}
	if jobID != "" {
		fmt.Fprintf(os.Stderr, "reopen with: paperreel watch --job %s\n", jobID)
	}
	return nil
}
