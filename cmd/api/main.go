package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"paperreel/internal/api"
	"paperreel/internal/config"
	"paperreel/internal/logging"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	log := logging.New(cfg.LogLevel)

	h, err := api.NewServer(cfg, log)
	if err != nil {
		log.Error("gateway setup failed", "err", err)
		os.Exit(1)
	}
	defer h.Close()

	srv := &http.Server{
		Addr:              cfg.APIAddr,
		Handler:           h.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("paperreel gateway listening",
		"addr", cfg.APIAddr,
		"backend", cfg.BackendBaseURL,
		"chat_providers", cfg.ChatProviders,
		"temporal", cfg.TemporalAddress != "",
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("gateway stopped", "err", err)
		os.Exit(1)
	}
}
