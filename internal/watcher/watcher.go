package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"filepub/internal/logging"
	"filepub/pkg/models"
)

// this handles live file watching via fsnotify for watch mode

type Watcher struct {
	fsNotifyWatcher *fsnotify.Watcher
	watchedDirs     map[string]bool
	changeChan      chan models.FileEvent
	errorChan       chan error
	ctx             context.Context
	cancel          context.CancelFunc
	mu              sync.RWMutex
	debouncer       map[string]*time.Timer
	debounceMu      sync.Mutex
	log             *logging.Logger
}

/*
Watcher:
1. Recursive directory watching - every directory under the root is
   registered, and directories created later are registered on the fly.
2. Debouncing - a 500ms per-path debounce collapses bursts of events
   (an editor saving a file several times in a row) into one.

Event types: CREATE, MODIFY, DELETE.
*/

func NewWatcher(log *logging.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Watcher{
		fsNotifyWatcher: fsWatcher,
		watchedDirs:     make(map[string]bool),
		changeChan:      make(chan models.FileEvent),
		errorChan:       make(chan error, 10),
		ctx:             ctx,
		cancel:          cancel,
		debouncer:       make(map[string]*time.Timer),
		log:             log,
	}, nil
}

func (w *Watcher) AddWatch(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	return filepath.Walk(path, func(walkPath string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			if err := w.fsNotifyWatcher.Add(walkPath); err != nil {
				return err
			}
			w.watchedDirs[walkPath] = true
			w.log.Debugf("watching directory: %s", walkPath)
		}
		return nil
	})
}

func (w *Watcher) Start() {
	go w.handleEvents()
}

func (w *Watcher) handleEvents() {
	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.fsNotifyWatcher.Events:
			if !ok {
				return
			}
			w.processEvent(event)
		case err, ok := <-w.fsNotifyWatcher.Errors:
			if !ok {
				return
			}
			w.errorChan <- err
		}
	}
}

func (w *Watcher) processEvent(event fsnotify.Event) {
	// A freshly created directory needs its own watch before anything
	// inside it can be seen.
	if event.Op&fsnotify.Create == fsnotify.Create {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.AddWatch(event.Name); err != nil {
				w.errorChan <- err
			}
			return
		}
	}

	w.debouncedSend(event.Name, func() {
		var operation string
		switch {
		case event.Op&fsnotify.Create == fsnotify.Create:
			operation = "CREATE"
		case event.Op&fsnotify.Write == fsnotify.Write:
			operation = "MODIFY"
		case event.Op&fsnotify.Remove == fsnotify.Remove:
			operation = "DELETE"
		default:
			return
		}
		select {
		case w.changeChan <- models.FileEvent{
			Path:      event.Name,
			Operation: operation,
			Timestamp: time.Now(),
		}:
		case <-w.ctx.Done():
			return
		}
	})
}
