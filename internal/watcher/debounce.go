package watcher

import (
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// pendingChange tracks a file change event
type pendingChange struct {
	op        fsnotify.Op
	timestamp time.Time
}

// Debouncer batches file change events so a burst of writes is handled once
type Debouncer struct {
	mu       sync.Mutex
	pending  map[string]*pendingChange
	interval time.Duration
	timer    *time.Timer
}

// NewDebouncer creates a debouncer that waits interval after the last event
func NewDebouncer(interval time.Duration) *Debouncer {
	return &Debouncer{
		pending:  make(map[string]*pendingChange),
		interval: interval,
	}
}

// Add records a file change event
func (d *Debouncer) Add(path string, op fsnotify.Op) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if existing, ok := d.pending[path]; ok {
		existing.op |= op
		existing.timestamp = time.Now()
	} else {
		d.pending[path] = &pendingChange{
			op:        op,
			timestamp: time.Now(),
		}
	}
}

// Flush hands the pending changes to callback once interval passes without
// another Flush. A removal wins over writes to the same path.
func (d *Debouncer) Flush(callback func(changed, removed []string)) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}

	d.timer = time.AfterFunc(d.interval, func() {
		d.mu.Lock()
		var changed, removed []string
		for path, change := range d.pending {
			if change.op.Has(fsnotify.Remove) || change.op.Has(fsnotify.Rename) {
				removed = append(removed, path)
			} else if change.op.Has(fsnotify.Write) || change.op.Has(fsnotify.Create) {
				changed = append(changed, path)
			}
		}
		d.pending = make(map[string]*pendingChange)
		d.mu.Unlock()

		if len(changed) > 0 || len(removed) > 0 {
			callback(changed, removed)
		}
	})
}

// Stop cancels a scheduled flush
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
}
