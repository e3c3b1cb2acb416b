package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"video-transcript-go/internal/api"
	"video-transcript-go/internal/app"
	"video-transcript-go/internal/config"
	"video-transcript-go/internal/jobs"
	"video-transcript-go/internal/logger"
	"video-transcript-go/internal/store"
)

func main() {
	_ = godotenv.Load() // loads .env

	log := logger.New()
	log.WithField("service", "video-transcript-go").Info("starting service")

	cfg, err := config.FromEnv()
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}
	if cfg.APIToken == "" && !cfg.MockTranscribe {
		log.Warn("HF_API_TOKEN is empty, inference requests will be unauthenticated")
	}

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		log.WithError(err).WithField("db_path", cfg.DBPath).Fatal("failed to open job history")
	}
	defer db.Close()
	if n, err := db.MarkInterrupted(); err != nil {
		log.WithError(err).Warn("failed to mark interrupted jobs")
	} else if n > 0 {
		log.WithField("jobs", n).Warn("jobs left running by a previous process marked failed")
	}

	manager := jobs.NewManager(app.NewOrchestrator(cfg, log), db, log)

	router := api.NewRouter(manager, api.Options{
		CORSOrigins:    cfg.CORSOrigins,
		JWTSecret:      cfg.JWTSecret,
		MaxUploadBytes: cfg.MaxUploadMB << 20,
		UploadDir:      filepath.Join(cfg.WorkDir, "uploads"),
	}, log)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Minute, // video uploads
		WriteTimeout: 10 * time.Minute, // audio downloads
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.WithField("addr", addr).
			WithField("workers", cfg.Workers).
			WithField("chunk_seconds", cfg.ChunkSeconds).
			Info("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server terminated")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown incomplete")
	}
	if err := manager.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("jobs did not stop in time")
	}
	log.Info("stopped")
}
