package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vytor/recall/internal/api"
	"github.com/vytor/recall/internal/config"
	"github.com/vytor/recall/internal/db"
	"github.com/vytor/recall/internal/logger"
	"github.com/vytor/recall/internal/repository/sqlite"
	"github.com/vytor/recall/internal/services"
	"github.com/vytor/recall/internal/srs"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		logger.Error("failed to load configuration: %v", err)
		os.Exit(1)
	}

	log := logger.New(
		logger.WithLevel(logger.ParseLevel(cfg.Log.Level)),
		logger.WithColors(cfg.Log.Color),
	)
	logger.SetDefault(log)

	log.Info("recall server starting")
	log.WithFields(map[string]any{
		"addr":              cfg.Addr,
		"db_path":           cfg.DB.Path,
		"timezone":          cfg.Timezone,
		"desired_retention": cfg.Scheduler.DesiredRetention,
		"maximum_interval":  cfg.Scheduler.MaximumInterval,
		"learning_steps":    cfg.Scheduler.LearningSteps,
		"relearning_steps":  cfg.Scheduler.RelearningSteps,
		"enable_fuzz":       cfg.Scheduler.EnableFuzz,
		"streak_grace":      cfg.Stats.StreakGrace,
	}).Debug("configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.Open(ctx, cfg.DB.Path)
	if err != nil {
		log.Error("failed to open database: %v", err)
		os.Exit(1)
	}
	defer func() {
		log.Debug("closing database connection")
		database.Close()
	}()

	scheduler, err := srs.New(cfg.Scheduler.SRS())
	if err != nil {
		log.Error("invalid scheduler configuration: %v", err)
		os.Exit(1)
	}

	opts := []services.Option{
		services.WithLocation(cfg.Location()),
		services.WithStreakGrace(cfg.Stats.StreakGrace),
	}
	srv := api.NewServer(
		services.NewCardService(sqlite.NewCardRepository(database), opts...),
		services.NewReviewService(sqlite.NewReviewRepository(database), scheduler, opts...),
		services.NewStatsService(sqlite.NewStatsRepository(database), scheduler, opts...),
		database,
	)

	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      srv.Routes(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening on %s", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			log.Error("HTTP server error: %v", err)
		}
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	log.Debug("shutting down HTTP server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error: %v", err)
	}

	log.Info("recall server stopped")
}
