// Package watcher observes the dossier directory and reports new or
// rewritten PDFs after a debounce window, so half-copied files are not
// ingested mid-write.
package watcher

import (
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

const defaultDebounce = 400 * time.Millisecond

// Watcher watches one directory and invokes the callback for each
// settled PDF change.
type Watcher struct {
	dir         string
	onDossier   func(path string)
	debounce    time.Duration
	watcher     *fsnotify.Watcher
	mu          sync.Mutex
	debounceMap map[string]*time.Timer
	done        chan struct{}
	stopOnce    sync.Once
	logger      *logrus.Logger
}

// NewWatcher creates a watcher over dir. onDossier is called with the
// full path of every PDF that was created or written to.
func NewWatcher(dir string, onDossier func(path string), logger *logrus.Logger) *Watcher {
	return &Watcher{
		dir:         dir,
		onDossier:   onDossier,
		debounce:    defaultDebounce,
		debounceMap: make(map[string]*time.Timer),
		done:        make(chan struct{}),
		logger:      logger,
	}
}

// Start begins watching. It returns once the watch is installed; events
// are handled on a background goroutine until Stop.
func (w *Watcher) Start() error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(w.dir); err != nil {
		fsw.Close()
		return err
	}
	w.watcher = fsw

	w.logger.WithField("dir", w.dir).Info("Watching dossier directory")
	go w.loop()
	return nil
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.WithError(err).Error("Watcher error")
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	if !strings.EqualFold(filepath.Ext(event.Name), ".pdf") {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, exists := w.debounceMap[event.Name]; exists {
		timer.Stop()
	}
	path := event.Name
	w.debounceMap[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.debounceMap, path)
		w.mu.Unlock()

		select {
		case <-w.done:
			return
		default:
		}
		w.logger.WithField("archivo", filepath.Base(path)).Debug("Dossier settled")
		w.onDossier(path)
	})
}

// Stop ends the watch and cancels pending debounce timers.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		if w.watcher != nil {
			w.watcher.Close()
		}
		w.mu.Lock()
		for _, timer := range w.debounceMap {
			timer.Stop()
		}
		w.debounceMap = make(map[string]*time.Timer)
		w.mu.Unlock()
	})
}
