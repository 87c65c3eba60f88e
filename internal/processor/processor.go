package processor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"inmodossier/server/config"
	"inmodossier/server/internal/database"
	"inmodossier/server/internal/models"
	"inmodossier/server/internal/queue"
)

// UpsertProcessor drains the document queue through a bounded set of
// workers and upserts each dossier into the store. Every document yields
// exactly one DocumentResult on the results channel, failed or not.
type UpsertProcessor struct {
	store     *database.Store
	logger    *logrus.Logger
	config    *config.Config
	queue     *queue.DocumentQueue
	results   chan<- models.DocumentResult
	jobs      chan database.Document
	fatal     chan error
	waitGroup sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewUpsertProcessor creates a new processor instance
func NewUpsertProcessor(store *database.Store, q *queue.DocumentQueue, cfg *config.Config, logger *logrus.Logger, results chan<- models.DocumentResult) *UpsertProcessor {
	ctx, cancel := context.WithCancel(context.Background())
	return &UpsertProcessor{
		store:   store,
		queue:   q,
		config:  cfg,
		logger:  logger,
		results: results,
		jobs:    make(chan database.Document),
		fatal:   make(chan error, 1),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the workers and subscribes to the queue.
func (p *UpsertProcessor) Start() {
	for i := 0; i < p.config.Ingestion.WorkerCount; i++ {
		p.waitGroup.Add(1)
		go p.worker()
	}

	p.queue.Subscribe(func(doc database.Document) error {
		select {
		case p.jobs <- doc:
			return nil
		case <-p.ctx.Done():
			return p.ctx.Err()
		}
	})
}

// Stop gracefully shuts down the processor
func (p *UpsertProcessor) Stop() {
	p.cancel()
	p.waitGroup.Wait()
}

// Fatal reports a store-unavailable error, which aborts the batch.
func (p *UpsertProcessor) Fatal() <-chan error {
	return p.fatal
}

func (p *UpsertProcessor) worker() {
	defer p.waitGroup.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case doc := <-p.jobs:
			p.handle(doc)
		}
	}
}

// handle upserts a single document with retry on store conflicts. The
// store already retries transient locks internally; this outer loop
// covers the case where contention outlives those bounded attempts.
func (p *UpsertProcessor) handle(doc database.Document) {
	var outcome models.UpsertOutcome
	var err error

	for attempt := 0; attempt <= p.config.Ingestion.MaxRetries; attempt++ {
		if attempt > 0 {
			p.logger.Infof("Retrying document upsert, attempt %d of %d", attempt, p.config.Ingestion.MaxRetries)
			time.Sleep(time.Duration(p.config.Ingestion.RetryDelay) * time.Second)
		}

		outcome, err = p.store.Upsert(doc)
		if err == nil || !errors.Is(err, database.ErrConflict) {
			break
		}
	}

	result := models.DocumentResult{SourceFile: doc.SourceFile, Fields: doc.Fields}
	if err != nil {
		result.Err = err.Error()
		p.logger.WithError(err).WithField("archivo", doc.SourceFile).Error("Document upsert failed")
		if errors.Is(err, database.ErrUnavailable) {
			select {
			case p.fatal <- err:
			default:
			}
		}
	} else {
		result.Outcome = outcome
		p.logger.WithFields(logrus.Fields{
			"archivo": doc.SourceFile,
			"outcome": outcome.String(),
		}).Info("Document processed")
	}

	select {
	case p.results <- result:
	case <-p.ctx.Done():
	}
}
