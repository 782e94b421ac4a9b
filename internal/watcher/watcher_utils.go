package watcher

import (
	"time"

	"artipart/pkg/models"
)

/*
Debouncer:
  - every event for a path restarts that path's timer
  - fn runs once the path has been quiet for the debounce interval
*/
func (w *Watcher) debouncedSend(path string, fn func()) {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if timer, exists := w.debouncer[path]; exists {
		timer.Stop()
	}

	var timer *time.Timer
	timer = time.AfterFunc(w.debounce, func() {
		fn()
		w.debounceMu.Lock()
		if w.debouncer[path] == timer {
			delete(w.debouncer, path)
		}
		w.debounceMu.Unlock()
	})
	w.debouncer[path] = timer
}

func (w *Watcher) Changes() <-chan models.FileEvent {
	return w.changeChan
}

func (w *Watcher) Errors() <-chan error {
	return w.errorChan
}

func (w *Watcher) Close() error {
	w.cancel()

	w.debounceMu.Lock()
	for path, timer := range w.debouncer {
		timer.Stop()
		delete(w.debouncer, path)
	}
	w.debounceMu.Unlock()

	return w.fsNotifyWatcher.Close()
}
