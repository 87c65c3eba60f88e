package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"inmodossier/server/config"
	"inmodossier/server/internal/api"
	"inmodossier/server/internal/database"
	"inmodossier/server/internal/ingest"
	"inmodossier/server/internal/scheduler"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0o755); err != nil {
		logger.WithError(err).Fatal("Failed to create database directory")
	}
	logger.Infof("Using database at: %s", cfg.DatabasePath)

	store, err := database.NewStore(cfg.DatabasePath, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize database")
	}
	defer store.Close()

	logger.Info("Running database migrations...")
	if err := store.EnsureSchema(); err != nil {
		logger.WithError(err).Fatal("Failed to run database migrations")
	}

	snapshotter := database.NewSnapshotter(store, logger)
	runner := ingest.NewRunner(store, snapshotter, cfg, logger)

	// Periodic ingestion runs, starting with an immediate pass over the
	// dossier directory.
	sched := scheduler.NewScheduler(runner, logger, time.Duration(cfg.Ingestion.IntervalMinutes)*time.Minute)
	sched.Start()
	defer sched.Stop()

	handler := api.NewHandler(store, snapshotter, logger)
	router := gin.Default()
	api.RegisterRoutes(router, handler)

	addr := fmt.Sprintf(":%d", cfg.ServerPort)
	logger.Infof("Starting server on port %d", cfg.ServerPort)
	if err := router.Run(addr); err != nil {
		logger.WithError(err).Fatal("Server failed to start")
	}
}
