package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type batch struct {
	changed []string
	removed []string
}

func TestDebouncer(t *testing.T) {
	tests := []struct {
		name    string
		ops     []fsnotify.Op
		changed int
		removed int
	}{
		{"write", []fsnotify.Op{fsnotify.Write}, 1, 0},
		{"burst of writes", []fsnotify.Op{fsnotify.Write, fsnotify.Write, fsnotify.Write}, 1, 0},
		{"create", []fsnotify.Op{fsnotify.Create}, 1, 0},
		{"write then remove", []fsnotify.Op{fsnotify.Write, fsnotify.Remove}, 0, 1},
		{"rename", []fsnotify.Op{fsnotify.Rename}, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDebouncer(10 * time.Millisecond)
			got := make(chan batch, 4)

			for _, op := range tt.ops {
				d.Add("/tmp/app.log", op)
				d.Flush(func(changed, removed []string) {
					got <- batch{changed, removed}
				})
			}

			select {
			case b := <-got:
				assert.Len(t, b.changed, tt.changed)
				assert.Len(t, b.removed, tt.removed)
			case <-time.After(time.Second):
				t.Fatal("no flush")
			}

			select {
			case b := <-got:
				t.Errorf("unexpected second flush %+v", b)
			case <-time.After(50 * time.Millisecond):
			}
		})
	}
}

func TestDebouncerChmodOnly(t *testing.T) {
	d := NewDebouncer(5 * time.Millisecond)
	called := make(chan struct{}, 1)

	d.Add("/tmp/app.log", fsnotify.Chmod)
	d.Flush(func(changed, removed []string) { called <- struct{}{} })

	select {
	case <-called:
		t.Error("chmod alone should not be reported")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWatcherReportsWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	other := filepath.Join(dir, "other.log")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	got := make(chan batch, 8)
	w, err := New([]string{path}, 10*time.Millisecond, func(changed, removed []string) {
		got <- batch{changed, removed}
	})
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Close()

	require.NoError(t, os.WriteFile(other, []byte("ignored\n"), 0644))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString("CREATE TABLE x (\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	select {
	case b := <-got:
		assert.Equal(t, []string{path}, b.changed)
		assert.Empty(t, b.removed)
	case <-time.After(2 * time.Second):
		t.Fatal("no change reported")
	}
}

func TestWatcherCloseTwice(t *testing.T) {
	w, err := New([]string{filepath.Join(t.TempDir(), "x.log")}, time.Millisecond, func(_, _ []string) {})
	require.NoError(t, err)
	require.NoError(t, w.Start())

	assert.NoError(t, w.Close())
	assert.NoError(t, w.Close())
}
