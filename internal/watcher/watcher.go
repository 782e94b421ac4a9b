package watcher

import (
	"context"
	"io/fs"
	"path/filepath"
	"sync"
	"time"

	"artipart/internal/logging"
	"artipart/pkg/models"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const DefaultDebounce = 500 * time.Millisecond

// SkipFunc reports whether a directory must not be watched.
type SkipFunc func(path string, name string) bool

/*
Watcher reports changes anywhere under a directory tree.

Directories are watched recursively, and directories created later are
added as they appear. Events are debounced per path: a burst of writes to
the same file yields a single event once the file has been quiet.
*/
type Watcher struct {
	fsNotifyWatcher *fsnotify.Watcher
	watchedDirs     map[string]bool
	skip            SkipFunc
	changeChan      chan models.FileEvent
	errorChan       chan error
	ctx             context.Context
	cancel          context.CancelFunc
	mu              sync.RWMutex
	debounce        time.Duration
	debouncer       map[string]*time.Timer
	debounceMu      sync.Mutex
	logger          *zap.Logger
}

type Option func(*Watcher)

func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounce = d
	}
}

func WithSkip(skip SkipFunc) Option {
	return func(w *Watcher) {
		w.skip = skip
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) {
		w.logger = l
	}
}

func NewWatcher(opts ...Option) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "creating fsnotify watcher")
	}
	ctx, cancel := context.WithCancel(context.Background())

	w := &Watcher{
		fsNotifyWatcher: fsWatcher,
		watchedDirs:     make(map[string]bool),
		changeChan:      make(chan models.FileEvent),
		errorChan:       make(chan error, 10),
		ctx:             ctx,
		cancel:          cancel,
		debounce:        DefaultDebounce,
		debouncer:       make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = logging.OrNop(w.logger)
	return w, nil
}

// AddWatch watches root and every directory below it that is not skipped.
func (w *Watcher) AddWatch(root string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	return filepath.WalkDir(root, func(walkPath string, d fs.DirEntry, err error) error {
		if err != nil {
			if walkPath != root && errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if walkPath != root && w.skip != nil && w.skip(walkPath, d.Name()) {
			return filepath.SkipDir
		}
		if w.watchedDirs[walkPath] {
			return nil
		}
		if err := w.fsNotifyWatcher.Add(walkPath); err != nil {
			return errors.Wrapf(err, "watching %s", walkPath)
		}
		w.watchedDirs[walkPath] = true
		w.logger.Debug("watching directory", zap.String("path", walkPath))
		return nil
	})
}

func (w *Watcher) WatchedDirs() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	dirs := make([]string, 0, len(w.watchedDirs))
	for dir := range w.watchedDirs {
		dirs = append(dirs, dir)
	}
	return dirs
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
			select {
			case w.errorChan <- err:
			default:
				w.logger.Warn("dropping watcher error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) processEvent(event fsnotify.Event) {
	operation := operationOf(event.Op)
	if operation == "" {
		return
	}
	if w.skip != nil && w.skip(event.Name, filepath.Base(event.Name)) {
		return
	}

	// New directories must be watched before files land in them.
	if operation == "CREATE" {
		if err := w.AddWatch(event.Name); err != nil && !errors.Is(err, fs.ErrNotExist) {
			w.logger.Debug("not watching new entry", zap.String("path", event.Name), zap.Error(err))
		}
	}
	if operation == "DELETE" || operation == "RENAME" {
		w.forget(event.Name)
	}

	w.debouncedSend(event.Name, func() {
		select {
		case w.changeChan <- models.FileEvent{
			Path:      event.Name,
			Operation: operation,
			Timestamp: time.Now(),
		}:
		case <-w.ctx.Done():
		}
	})
}

func (w *Watcher) forget(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.watchedDirs, path)
}

func operationOf(op fsnotify.Op) string {
	switch {
	case op.Has(fsnotify.Create):
		return "CREATE"
	case op.Has(fsnotify.Write):
		return "MODIFY"
	case op.Has(fsnotify.Remove):
		return "DELETE"
	case op.Has(fsnotify.Rename):
		return "RENAME"
	default:
		return ""
	}
}
