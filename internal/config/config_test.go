package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("BACKEND_BASE_URL", "")
	t.Setenv("PAPERREEL_POLL_SECONDS", "")
	t.Setenv(configPathEnv, "")
	cfg := Load()
	require.Equal(t, ":8080", cfg.APIAddr)
	require.Empty(t, cfg.BackendBaseURL)
	require.Equal(t, 3, cfg.PollSeconds)
	require.Equal(t, 10, cfg.RevealWarmupSeconds)
	require.Equal(t, "mock", cfg.ChatProviders)
}

func TestLoadTrimsBackendURLAndIgnoresBadInts(t *testing.T) {
	t.Setenv("BACKEND_BASE_URL", "http://backend:9000/")
	t.Setenv("PAPERREEL_POLL_SECONDS", "soon")
	cfg := Load()
	require.Equal(t, "http://backend:9000", cfg.BackendBaseURL)
	require.Equal(t, 3, cfg.PollSeconds)
}

func TestLoadProgressOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "paperreel.yaml")
	require.NoError(t, os.WriteFile(path, []byte("progress:\n  video_weight: 40\n  step_weights:\n    claim: 20\n"), 0o644))
	t.Setenv(configPathEnv, path)
	cfg := Load()
	require.Equal(t, 40, cfg.Progress.VideoWeight)
	require.Equal(t, 20, cfg.Progress.StepWeights["claim"])
}

func TestLoadProgressOverlayUnreadableFallsBack(t *testing.T) {
	t.Setenv(configPathEnv, filepath.Join(t.TempDir(), "missing.yaml"))
	cfg := Load()
	require.Zero(t, cfg.Progress.VideoWeight)
	require.Nil(t, cfg.Progress.StepWeights)
}
