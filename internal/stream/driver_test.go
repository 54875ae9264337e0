package stream

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jarredhawkins/textcatcher/internal/catcher"
	"github.com/jarredhawkins/textcatcher/internal/metrics"
)

// lockedBuffer is a bytes.Buffer safe to read while a follower writes
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

const dump = "-- dump\r\nCREATE TABLE `users` (\n  `id` int NOT NULL,\n  PRIMARY KEY (`id`)\n) ENGINE=InnoDB;\ndone\n"

func TestRunPassThrough(t *testing.T) {
	var out bytes.Buffer
	d := New(catcher.NewQueue(), &out)

	require.NoError(t, d.Run(context.Background(), strings.NewReader("a\r\nb\n\nc")))
	assert.Equal(t, "a\nb\n\nc\n", out.String())
}

func TestRunSummarizesTables(t *testing.T) {
	table, err := catcher.NewTable(catcher.Options{Parse: catcher.TableSummary})
	require.NoError(t, err)

	q := catcher.NewQueue()
	q.Add(table)

	var out bytes.Buffer
	collector := metrics.NewCollector()
	d := New(q, &out, WithMetrics(collector))

	require.NoError(t, d.Run(context.Background(), strings.NewReader(dump)))
	assert.Equal(t, "-- dump\ntable users: 1 columns, 1 keys\ndone\n", out.String())

	expected := `
# HELP textcatcher_lines_emitted_total Lines written to the output stream
# TYPE textcatcher_lines_emitted_total counter
textcatcher_lines_emitted_total 3
# HELP textcatcher_lines_suppressed_total Input lines consumed by a catcher
# TYPE textcatcher_lines_suppressed_total counter
textcatcher_lines_suppressed_total 3
`
	assert.NoError(t, testutil.GatherAndCompare(collector.Registry(), strings.NewReader(expected),
		"textcatcher_lines_emitted_total", "textcatcher_lines_suppressed_total"))
}

func TestRunEmitsWhileMuffling(t *testing.T) {
	var out bytes.Buffer
	q := catcher.NewQueue()
	d := New(q, &out)

	table, err := catcher.NewTable(catcher.Options{Emit: d.Emit})
	require.NoError(t, err)
	rest, err := catcher.NewText("", catcher.Options{Muffle: true})
	require.NoError(t, err)
	q.Add(table)
	q.Add(rest)

	require.NoError(t, d.Run(context.Background(), strings.NewReader(dump)))
	assert.Equal(t, "CREATE TABLE `users` (\n  `id` int NOT NULL,\n  PRIMARY KEY (`id`)\n) ENGINE=InnoDB;\n", out.String())
}

func TestRunEndsStream(t *testing.T) {
	m, err := catcher.NewRegex(`^BEGIN`, `^END`, catcher.Options{})
	require.NoError(t, err)
	q := catcher.NewQueue()
	q.Add(m)

	var out bytes.Buffer
	d := New(q, &out)
	require.NoError(t, d.Run(context.Background(), strings.NewReader("x\nBEGIN\nunclosed\n")))

	assert.Equal(t, "x\n", out.String())
	assert.False(t, m.Capturing())
	assert.Equal(t, 0, q.Len())
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	d := New(catcher.NewQueue(), &out)
	require.NoError(t, d.Run(ctx, strings.NewReader("a\nb\n")))
	assert.Empty(t, out.String())
}

func TestRunCancelWhileIdle(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	var out bytes.Buffer
	d := New(catcher.NewQueue(), &out)

	errc := make(chan error, 1)
	go func() {
		errc <- d.Run(ctx, pr)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel with no input pending")
	}
	assert.Empty(t, out.String())
}

func TestRunWriteError(t *testing.T) {
	d := New(catcher.NewQueue(), failingWriter{})

	err := d.Run(context.Background(), strings.NewReader("a\nb\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestTrimEOL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"a\n", "a"},
		{"a\r\n", "a"},
		{"a", "a"},
		{"a\n\n", "a\n"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, trimEOL(tt.in), "trimEOL(%q)", tt.in)
	}
}
