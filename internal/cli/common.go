package cli

import (
	"encoding/json"
	"errors"
	"flag"
	"os"
	"strings"

	"paperreel/internal/backend"
	"paperreel/internal/config"
	"paperreel/internal/session"
)

// env is what every command needs: config plus the flags shared by all of them.
type env struct {
	cfg     config.Config
	gateway *string
	session *string
	jsonOut *bool
}

func newFlagSet(name string) (*flag.FlagSet, *env) {
	cfg := config.Load()
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(flag.CommandLine.Output())
	e := &env{cfg: cfg}
	e.gateway = fs.String("gateway", cfg.GatewayURL, "gateway base URL")
	e.session = fs.String("session-dir", cfg.SessionDir, "session cache directory")
	e.jsonOut = fs.Bool("json", false, "print JSON output")
	return fs, e
}

func (e *env) client() *backend.Client {
	return backend.NewGatewayClient(strings.TrimRight(strings.TrimSpace(*e.gateway), "/"))
}

func (e *env) store() *session.Store {
	return session.NewStore(strings.TrimSpace(*e.session))
}

// resolveJob picks --job, then the remembered job when last is set.
func (e *env) resolveJob(job string, last bool) (string, error) {
	if id := strings.TrimSpace(job); id != "" {
		return id, nil
	}
	if last {
		if id := e.store().LastJobID(); id != "" {
			return id, nil
		}
		return "", errors.New("no remembered job; run upload first or pass --job")
	}
	return "", nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func stdinIsTTY() bool {
	info, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
