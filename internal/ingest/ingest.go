// Package ingest drives the extraction pipeline: it scans the dossier
// directory, turns each PDF into an extracted document, feeds the
// document queue and collects per-document outcomes into a batch report.
package ingest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"inmodossier/server/config"
	"inmodossier/server/internal/database"
	"inmodossier/server/internal/extractor"
	"inmodossier/server/internal/models"
	"inmodossier/server/internal/pdftext"
	"inmodossier/server/internal/processor"
	"inmodossier/server/internal/queue"
)

var (
	// ErrNoDocuments means the dossier directory held no PDFs at all.
	ErrNoDocuments = errors.New("no dossier documents found")

	// ErrAllFailed means every document in the batch failed.
	ErrAllFailed = errors.New("no documents could be processed")
)

const pushRetryDelay = 10 * time.Millisecond

// Runner orchestrates one ingestion batch end to end.
type Runner struct {
	store       *database.Store
	snapshotter *database.Snapshotter
	config      *config.Config
	logger      *logrus.Logger
	extractText func(content []byte) (string, error)
}

func NewRunner(store *database.Store, snapshotter *database.Snapshotter, cfg *config.Config, logger *logrus.Logger) *Runner {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return &Runner{
		store:       store,
		snapshotter: snapshotter,
		config:      cfg,
		logger:      logger,
		extractText: pdftext.Extract,
	}
}

// Run ingests every PDF in the dossier directory, takes one statistics
// snapshot at the end of the batch and writes the Excel results file.
// One bad document never aborts the batch; an unavailable store aborts
// the remainder and surfaces the error alongside the partial report.
func (r *Runner) Run() (models.IngestReport, error) {
	files, err := r.listDossiers()
	if err != nil {
		return models.IngestReport{}, err
	}
	if len(files) == 0 {
		r.logger.WithField("dir", r.config.DossierDir).Warn("No PDF dossiers found")
		return models.IngestReport{}, ErrNoDocuments
	}
	r.logger.WithField("count", len(files)).Info("Starting ingestion batch")

	var report models.IngestReport
	var docs []database.Document
	for _, path := range files {
		doc, failure := r.prepare(path)
		if failure != nil {
			report.Documents = append(report.Documents, *failure)
			report.Failed++
			continue
		}
		docs = append(docs, doc)
	}

	results := make(chan models.DocumentResult, len(docs))
	q := queue.NewDocumentQueue(r.config.Ingestion.QueueSize, r.logger)
	proc := processor.NewUpsertProcessor(r.store, q, r.config, r.logger, results)
	proc.Start()
	q.Start()
	defer q.Close()
	defer proc.Stop()

	var fatal error
	pending := 0
push:
	for _, doc := range docs {
		for {
			select {
			case fatal = <-proc.Fatal():
				break push
			default:
			}
			err := q.Push(doc)
			if err == nil {
				pending++
				break
			}
			if err == queue.ErrQueueFull {
				time.Sleep(pushRetryDelay)
				continue
			}
			return report, fmt.Errorf("failed to enqueue document: %w", err)
		}
	}

	for i := 0; i < pending; i++ {
		result := <-results
		report.Documents = append(report.Documents, result)
		if result.Err != "" {
			report.Failed++
			continue
		}
		switch result.Outcome {
		case models.OutcomeCreated:
			report.Created++
		case models.OutcomeUpdated:
			report.Updated++
		case models.OutcomeUnchanged:
			report.Unchanged++
		}
	}

	if fatal != nil {
		r.logger.WithError(fatal).Error("Store unavailable, aborting batch")
		return report, fatal
	}

	// Batch end: one snapshot over the resulting active set.
	if _, err := r.snapshotter.TakeSnapshot(); err != nil {
		r.logger.WithError(err).Error("Failed to take statistics snapshot")
	}

	if r.config.ReportPath != "" {
		if err := WriteExcel(r.config.ReportPath, report.Documents); err != nil {
			r.logger.WithError(err).Error("Failed to write Excel report")
		} else {
			r.logger.WithField("path", r.config.ReportPath).Info("Excel report written")
		}
	}

	r.logger.WithFields(logrus.Fields{
		"created":   report.Created,
		"updated":   report.Updated,
		"unchanged": report.Unchanged,
		"failed":    report.Failed,
	}).Info("Ingestion batch completed")

	if report.Processed() == 0 {
		return report, ErrAllFailed
	}
	return report, nil
}

// IngestFile runs the pipeline for a single dossier, used by watch mode.
func (r *Runner) IngestFile(path string) (models.DocumentResult, error) {
	doc, failure := r.prepare(path)
	if failure != nil {
		return *failure, errors.New(failure.Err)
	}

	outcome, err := r.store.Upsert(doc)
	result := models.DocumentResult{SourceFile: doc.SourceFile, Fields: doc.Fields}
	if err != nil {
		result.Err = err.Error()
		return result, err
	}
	result.Outcome = outcome

	if outcome != models.OutcomeUnchanged {
		if _, err := r.snapshotter.TakeSnapshot(); err != nil {
			r.logger.WithError(err).Error("Failed to take statistics snapshot")
		}
	}
	return result, nil
}

// prepare reads one dossier from disk and extracts its fields. A nil
// document with a non-nil failure marks a per-document error that the
// batch skips over.
func (r *Runner) prepare(path string) (database.Document, *models.DocumentResult) {
	name := filepath.Base(path)

	content, err := os.ReadFile(path)
	if err != nil {
		r.logger.WithError(err).WithField("archivo", name).Error("Failed to read dossier")
		return database.Document{}, &models.DocumentResult{
			SourceFile: name,
			Err:        fmt.Sprintf("unreadable source: %v", err),
		}
	}

	text, err := r.extractText(content)
	if err != nil {
		r.logger.WithError(err).WithField("archivo", name).Error("Failed to extract text")
		return database.Document{}, &models.DocumentResult{
			SourceFile: name,
			Err:        fmt.Sprintf("text extraction: %v", err),
		}
	}

	// Empty text is not an error: every field comes back as the
	// not-found sentinel.
	fields := extractor.ExtractAll(text)
	r.logger.WithFields(logrus.Fields{
		"archivo": name,
		"precio":  fields.Price,
		"zona":    fields.Zone,
	}).Debug("Fields extracted")

	return database.Document{SourceFile: name, Fields: fields, Content: content}, nil
}

func (r *Runner) listDossiers() ([]string, error) {
	entries, err := os.ReadDir(r.config.DossierDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read dossier directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), ".pdf") {
			files = append(files, filepath.Join(r.config.DossierDir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}
