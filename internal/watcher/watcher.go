package watcher

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// ChangeHandler is called with the followed files that grew or went away
type ChangeHandler func(changed, removed []string)

// Watcher monitors a fixed set of files using fsnotify. It watches their
// parent directories so that truncation, rotation and removal are seen.
type Watcher struct {
	watcher   *fsnotify.Watcher
	paths     map[string]struct{}
	handler   ChangeHandler
	debouncer *Debouncer
	done      chan struct{}
	closeOnce sync.Once
}

// New creates a watcher for paths. Changes are batched over debounce.
func New(paths []string, debounce time.Duration, handler ChangeHandler) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		watcher:   fsw,
		paths:     make(map[string]struct{}, len(paths)),
		handler:   handler,
		debouncer: NewDebouncer(debounce),
		done:      make(chan struct{}),
	}
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			fsw.Close()
			return nil, err
		}
		w.paths[abs] = struct{}{}
	}

	return w, nil
}

// Start begins watching
func (w *Watcher) Start() error {
	dirs := make(map[string]struct{})
	for p := range w.paths {
		dirs[filepath.Dir(p)] = struct{}{}
	}
	for dir := range dirs {
		if err := w.watcher.Add(dir); err != nil {
			return err
		}
	}

	go w.eventLoop()

	log.WithFields(log.Fields{"files": len(w.paths)}).Debug("file watcher started")
	return nil
}

func (w *Watcher) eventLoop() {
	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.WithError(err).Warn("watcher error")
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := filepath.Clean(event.Name)
	if _, ok := w.paths[path]; !ok {
		return
	}

	w.debouncer.Add(path, event.Op)
	w.debouncer.Flush(func(changed, removed []string) {
		log.WithFields(log.Fields{
			"changed": len(changed),
			"removed": len(removed),
		}).Debug("file changes")
		w.handler(changed, removed)
	})
}

// Close stops the watcher. It is safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		w.debouncer.Stop()
		err = w.watcher.Close()
	})
	return err
}
