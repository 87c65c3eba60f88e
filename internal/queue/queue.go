package queue

import (
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"inmodossier/server/internal/database"
)

var (
	ErrQueueFull   = errors.New("queue is full")
	ErrQueueClosed = errors.New("queue is closed")
)

// DocumentQueue is an in-memory queue of extracted dossiers waiting to
// be upserted.
type DocumentQueue struct {
	items    chan database.Document
	done     chan struct{}
	maxSize  int
	closed   bool
	mu       sync.RWMutex
	logger   *logrus.Logger
	handlers []func(database.Document) error
}

// NewDocumentQueue creates a new document queue with the specified buffer size
func NewDocumentQueue(bufferSize int, logger *logrus.Logger) *DocumentQueue {
	return &DocumentQueue{
		items:    make(chan database.Document, bufferSize),
		done:     make(chan struct{}),
		maxSize:  bufferSize,
		logger:   logger,
		handlers: make([]func(database.Document) error, 0),
	}
}

// Push adds a document to the queue
func (q *DocumentQueue) Push(doc database.Document) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return ErrQueueClosed
	}
	q.mu.RUnlock()

	// Non-blocking send to prevent deadlocks
	select {
	case q.items <- doc:
		q.logger.WithField("archivo", doc.SourceFile).Debug("Pushed document to queue")
		return nil
	default:
		return ErrQueueFull
	}
}

// Subscribe adds a handler function that will be called for each document
func (q *DocumentQueue) Subscribe(handler func(database.Document) error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers = append(q.handlers, handler)
}

// Start begins processing items in the queue
func (q *DocumentQueue) Start() {
	go q.process()
}

// process handles the queue processing loop
func (q *DocumentQueue) process() {
	for {
		select {
		case <-q.done:
			return
		case doc, ok := <-q.items:
			if !ok {
				return
			}
			q.processDocument(doc)
		}
	}
}

// processDocument sends the document to all subscribed handlers
func (q *DocumentQueue) processDocument(doc database.Document) {
	q.mu.RLock()
	handlers := q.handlers
	q.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(doc); err != nil {
			q.logger.WithError(err).WithField("archivo", doc.SourceFile).Error("Handler failed to process document")
		}
	}
}

// Close stops the queue and prevents new items from being added
func (q *DocumentQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}

	q.closed = true
	close(q.done)
	close(q.items)
	return nil
}

// Len returns the current number of documents in the queue
func (q *DocumentQueue) Len() int {
	return len(q.items)
}

// IsClosed returns whether the queue has been closed
func (q *DocumentQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
