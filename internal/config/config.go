package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const configPathEnv = "PAPERREEL_CONFIG"

type Config struct {
	APIAddr               string
	BackendBaseURL        string
	GatewayURL            string
	TemporalAddress       string
	TemporalTaskQueue     string
	ChatProviders         string
	ChatBackendURL        string
	SessionDir            string
	ReportDir             string
	PollSeconds           int
	RevealWarmupSeconds   int
	RevealIntervalSeconds int
	SignedURLExpiresSecs  int
	UploadMaxMB           int
	LogLevel              string
	WatchMaxRetries       int
	Progress              ProgressConfig
}

// ProgressConfig overrides the progress weight table. Zero values keep the defaults.
type ProgressConfig struct {
	StepWeights map[string]int `yaml:"step_weights"`
	VideoWeight int            `yaml:"video_weight"`
}

type fileConfig struct {
	Progress ProgressConfig `yaml:"progress"`
}

func Load() Config {
	cfg := Config{
		APIAddr:               getenv("PAPERREEL_API_ADDR", ":8080"),
		BackendBaseURL:        strings.TrimRight(os.Getenv("BACKEND_BASE_URL"), "/"),
		GatewayURL:            strings.TrimRight(getenv("PAPERREEL_GATEWAY_URL", "http://localhost:8080"), "/"),
		TemporalAddress:       os.Getenv("PAPERREEL_TEMPORAL_ADDRESS"),
		TemporalTaskQueue:     getenv("PAPERREEL_TEMPORAL_TASK_QUEUE", "paperreel"),
		ChatProviders:         getenv("PAPERREEL_CHAT_PROVIDERS", "mock"),
		ChatBackendURL:        os.Getenv("PAPERREEL_CHAT_BACKEND_URL"),
		SessionDir:            getenv("PAPERREEL_SESSION_DIR", "./.paperreel/session"),
		ReportDir:             getenv("PAPERREEL_REPORT_DIR", "./.paperreel/reports"),
		PollSeconds:           getenvInt("PAPERREEL_POLL_SECONDS", 3),
		RevealWarmupSeconds:   getenvInt("PAPERREEL_REVEAL_WARMUP_SECONDS", 10),
		RevealIntervalSeconds: getenvInt("PAPERREEL_REVEAL_INTERVAL_SECONDS", 3),
		SignedURLExpiresSecs:  getenvInt("PAPERREEL_SIGNED_URL_EXPIRES_SECONDS", 0),
		UploadMaxMB:           getenvInt("PAPERREEL_UPLOAD_MAX_MB", 128),
		LogLevel:              getenv("PAPERREEL_LOG_LEVEL", "info"),
		WatchMaxRetries:       getenvInt("PAPERREEL_WATCH_MAX_RETRIES", 2),
	}
	if path := os.Getenv(configPathEnv); path != "" {
		cfg.Progress = loadProgressFile(path)
	}
	return cfg
}

func loadProgressFile(path string) ProgressConfig {
	raw, err := os.ReadFile(path)
	if err != nil {
		log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		return ProgressConfig{}
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
		return ProgressConfig{}
	}
	return fc.Progress
}

func getenv(k, fallback string) string {
	v := os.Getenv(k)
	if v == "" {
		return fallback
	}
	return v
}

func getenvInt(k string, fallback int) int {
	v := os.Getenv(k)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
