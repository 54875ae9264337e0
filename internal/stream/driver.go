// Package stream connects a catcher to line-oriented input and output.
package stream

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/jarredhawkins/textcatcher/internal/catcher"
	"github.com/jarredhawkins/textcatcher/internal/metrics"
)

// maxLineSize bounds a single input line
const maxLineSize = 1024 * 1024

// Driver feeds lines to a catcher and writes whatever it forwards.
// Line, Run and Follow must not be called concurrently; Emit may be called
// from inside the catcher while a line is being fed.
type Driver struct {
	catcher catcher.Catcher
	metrics *metrics.Collector

	mu  sync.Mutex
	out io.Writer
	err error
}

// Option configures a Driver
type Option func(*Driver)

// WithMetrics records line counts in c
func WithMetrics(c *metrics.Collector) Option {
	return func(d *Driver) {
		d.metrics = c
	}
}

// New creates a driver writing to out
func New(c catcher.Catcher, out io.Writer, opts ...Option) *Driver {
	d := &Driver{
		catcher: c,
		out:     out,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Line feeds one line, without its terminator, and writes the result
func (d *Driver) Line(line string) error {
	out, ok := d.catcher.Feed(line)
	d.metrics.ObserveLine(ok)
	if ok {
		d.write(out)
	}
	return d.Err()
}

// Emit writes a block produced outside the normal chain
func (d *Driver) Emit(out string) {
	d.write(out)
}

func (d *Driver) write(s string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.err != nil {
		return
	}
	if _, err := io.WriteString(d.out, s+"\n"); err != nil {
		d.err = fmt.Errorf("write output: %w", err)
	}
}

// Err returns the first write error
func (d *Driver) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

// Run feeds every line of in until EOF or ctx is cancelled, then ends the
// stream. Trailing carriage returns are stripped. Cancellation takes effect
// even while in has no data; the pending read is abandoned.
func (d *Driver) Run(ctx context.Context, in io.Reader) error {
	defer d.finish()

	lines := make(chan string)
	errc := make(chan error, 1)
	stop := make(chan struct{})
	defer close(stop)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-stop:
				return
			}
		}
		errc <- scanner.Err()
	}()

	n := 0
	for {
		if ctx.Err() != nil {
			return nil
		}

		select {
		case <-ctx.Done():
			return nil

		case line, ok := <-lines:
			if !ok {
				if err := <-errc; err != nil {
					return fmt.Errorf("read input: %w", err)
				}
				log.WithFields(log.Fields{"lines": n}).Debug("input exhausted")
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
			if err := d.Line(line); err != nil {
				return err
			}
			n++
		}
	}
}

// finish signals end of stream to the catcher
func (d *Driver) finish() {
	if c, ok := d.catcher.(interface{ Done() }); ok {
		c.Done()
	}
}

// trimEOL removes one line terminator
func trimEOL(s string) string {
	return strings.TrimSuffix(strings.TrimSuffix(s, "\n"), "\r")
}
