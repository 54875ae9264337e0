package stream

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/jarredhawkins/textcatcher/internal/watcher"
)

// Follow feeds the existing contents of path and then every line appended to
// it, like tail -f. It returns when ctx is cancelled or the file is removed.
// A truncated file is read again from the start.
func (d *Driver) Follow(ctx context.Context, path string, debounce time.Duration) error {
	defer d.finish()

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	wake := make(chan struct{}, 1)
	gone := make(chan struct{})
	var goneOnce sync.Once

	w, err := watcher.New([]string{path}, debounce, func(changed, removed []string) {
		if len(removed) > 0 {
			goneOnce.Do(func() { close(gone) })
			return
		}
		select {
		case wake <- struct{}{}:
		default:
		}
	})
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		w.Close()
		return err
	}
	defer w.Close()

	t := &tail{file: f, reader: bufio.NewReader(f)}
	if err := t.drain(d); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-wake:
			if err := t.drain(d); err != nil {
				return err
			}

		case <-gone:
			if err := t.drain(d); err != nil {
				return err
			}
			if t.partial != "" {
				if err := d.Line(trimEOL(t.partial)); err != nil {
					return err
				}
			}
			log.WithFields(log.Fields{"path": path}).Info("followed file removed")
			return nil
		}
	}
}

// tail reads complete lines from a growing file
type tail struct {
	file    *os.File
	reader  *bufio.Reader
	offset  int64
	partial string
}

func (t *tail) drain(d *Driver) error {
	if info, err := t.file.Stat(); err == nil && info.Size() < t.offset {
		log.WithFields(log.Fields{"path": t.file.Name()}).Info("file truncated, reading from start")
		if _, err := t.file.Seek(0, io.SeekStart); err != nil {
			return err
		}
		t.reader.Reset(t.file)
		t.offset = 0
		t.partial = ""
	}

	for {
		chunk, err := t.reader.ReadString('\n')
		t.offset += int64(len(chunk))
		if errors.Is(err, io.EOF) {
			t.partial += chunk
			return nil
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", t.file.Name(), err)
		}

		line := trimEOL(t.partial + chunk)
		t.partial = ""
		if err := d.Line(line); err != nil {
			return err
		}
	}
}
