package main

import (
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sirupsen/logrus"

	"inmodossier/server/config"
	"inmodossier/server/internal/database"
	"inmodossier/server/internal/ingest"
	"inmodossier/server/internal/watcher"
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

	store, err := database.NewStore(cfg.DatabasePath, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize database")
	}
	defer store.Close()

	if err := store.EnsureSchema(); err != nil {
		logger.WithError(err).Fatal("Failed to run database migrations")
	}

	snapshotter := database.NewSnapshotter(store, logger)
	runner := ingest.NewRunner(store, snapshotter, cfg, logger)

	report, err := runner.Run()
	if err != nil {
		switch {
		case errors.Is(err, ingest.ErrNoDocuments):
			logger.WithField("directory", cfg.DossierDir).Error("No dossiers found")
		case errors.Is(err, ingest.ErrAllFailed):
			logger.Error("Every dossier in the batch failed")
		default:
			logger.WithError(err).Error("Ingestion run failed")
		}
		os.Exit(1)
	}

	logger.WithFields(logrus.Fields{
		"created":   report.Created,
		"updated":   report.Updated,
		"unchanged": report.Unchanged,
		"failed":    report.Failed,
	}).Info("Ingestion run completed")

	if !cfg.Ingestion.Watch {
		return
	}

	// Watch mode: keep ingesting dossiers as they land in the directory.
	w := watcher.NewWatcher(cfg.DossierDir, func(path string) {
		result, err := runner.IngestFile(path)
		if err != nil {
			logger.WithError(err).WithField("file", path).Error("Failed to ingest dossier")
			return
		}
		logger.WithFields(logrus.Fields{
			"file":    result.SourceFile,
			"outcome": result.Outcome.String(),
		}).Info("Ingested dossier")
	}, logger)

	if err := w.Start(); err != nil {
		logger.WithError(err).Fatal("Failed to watch dossier directory")
	}
	defer w.Stop()

	logger.WithField("directory", cfg.DossierDir).Info("Watching for new dossiers")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down")
}
