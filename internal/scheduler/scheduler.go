package scheduler

import (
	"errors"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"inmodossier/server/internal/ingest"
	"inmodossier/server/internal/models"
)

// IngestRunner runs one ingestion pass over the dossier directory.
type IngestRunner interface {
	Run() (models.IngestReport, error)
}

// Scheduler manages periodic ingestion runs. A startup run fires
// immediately; subsequent runs happen at the configured interval.
// Runs never overlap.
type Scheduler struct {
	runner       IngestRunner
	logger       *logrus.Logger
	interval     time.Duration
	stopChan     chan struct{}
	wg           sync.WaitGroup
	jobMutex     sync.Mutex // Ensures sequential run execution
	isStartupRun bool       // Tracks whether we're in startup run
}

// NewScheduler creates a new scheduler
func NewScheduler(runner IngestRunner, logger *logrus.Logger, interval time.Duration) *Scheduler {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
		logger.SetLevel(logrus.InfoLevel)
	}

	return &Scheduler{
		runner:       runner,
		logger:       logger,
		interval:     interval,
		stopChan:     make(chan struct{}),
		isStartupRun: true, // Initialize as true for startup
	}
}

// Start begins the scheduled runs
func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.runScheduler()
}

// runScheduler handles all scheduled runs
func (s *Scheduler) runScheduler() {
	defer s.wg.Done()

	// Run the startup ingestion in a separate goroutine
	go func() {
		s.jobMutex.Lock()
		defer s.jobMutex.Unlock()
		s.logger.Info("Running startup ingestion")
		s.runIngestion()
		s.isStartupRun = false // Mark startup as complete
		s.logger.Info("Startup ingestion completed")
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case t := <-ticker.C:
			s.executeScheduledRun(t)
		}
	}
}

// executeScheduledRun runs the ingestion pass scheduled for the given time
func (s *Scheduler) executeScheduledRun(t time.Time) {
	// Skip if we're still running the startup pass
	if s.isStartupRun {
		s.logger.Debug("Skipping scheduled run while startup is in progress")
		return
	}

	s.jobMutex.Lock()
	defer s.jobMutex.Unlock()

	s.logger.WithFields(logrus.Fields{
		"hour":   t.Hour(),
		"minute": t.Minute(),
	}).Info("Starting scheduled ingestion")
	s.runIngestion()
	s.logger.Info("Completed scheduled ingestion")
}

// runIngestion performs one ingestion pass. An empty dossier directory is
// a normal outcome between deliveries, not a failure.
func (s *Scheduler) runIngestion() {
	report, err := s.runner.Run()
	if err != nil {
		if errors.Is(err, ingest.ErrNoDocuments) {
			s.logger.Info("No dossiers found, nothing to ingest")
			return
		}
		s.logger.WithError(err).Error("Ingestion run failed")
		return
	}

	s.logger.WithFields(logrus.Fields{
		"created":   report.Created,
		"updated":   report.Updated,
		"unchanged": report.Unchanged,
		"failed":    report.Failed,
	}).Info("Ingestion run completed successfully")
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	close(s.stopChan)
	s.wg.Wait()
}
