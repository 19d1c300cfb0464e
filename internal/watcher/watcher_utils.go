package watcher

import (
	"time"

	"filepub/pkg/models"
)

/*
Debouncer:
  - reset the timer if another event for the path arrives within 500ms
  - only fire after 500ms of silence for that path
*/
func (w *Watcher) debouncedSend(path string, fn func()) {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if timer, exists := w.debouncer[path]; exists {
		timer.Stop()
	}

	w.debouncer[path] = time.AfterFunc(500*time.Millisecond, func() {
		fn()
		w.debounceMu.Lock()
		delete(w.debouncer, path)
		w.debounceMu.Unlock()
	})
}

func (w *Watcher) Changes() <-chan models.FileEvent {
	return w.changeChan
}

func (w *Watcher) Errors() <-chan error {
	return w.errorChan
}

func (w *Watcher) Close() error {
	w.cancel()
	return w.fsNotifyWatcher.Close()
}
