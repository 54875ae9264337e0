// Package rpc serves a catch queue over JSON-RPC 2.0 on a byte stream.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"

	log "github.com/sirupsen/logrus"
	"go.lsp.dev/jsonrpc2"

	"github.com/jarredhawkins/textcatcher/internal/catcher"
	"github.com/jarredhawkins/textcatcher/internal/metrics"
)

// Server feeds lines received over JSON-RPC to a queue. Requests are
// handled one at a time.
type Server struct {
	queue   *catcher.Queue
	metrics *metrics.Collector
	version string

	mu       sync.Mutex
	blocks   []string
	read     int
	emitted  int
	shutdown bool

	exit     chan struct{}
	exitOnce sync.Once
}

// Option configures a Server
type Option func(*Server)

// WithMetrics records line counts in c
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Server) {
		s.metrics = c
	}
}

// WithVersion sets the version reported by initialize
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// NewServer creates a server for q
func NewServer(q *catcher.Queue, opts ...Option) *Server {
	s := &Server{
		queue: q,
		exit:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Emit collects a printed block for the current request. Catchers built with
// print enabled should be given this as their Emit hook. It does not take the
// server lock: it must only be called by the queue while a request is being
// handled, which already holds it.
func (s *Server) Emit(out string) {
	s.blocks = append(s.blocks, out)
}

// Serve handles requests on in/out until exit, EOF or ctx is cancelled.
// Reaching EOF is not an error.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	stream := jsonrpc2.NewStream(&readWriteCloser{in, out})
	conn := jsonrpc2.NewConn(stream)

	conn.Go(ctx, s.handler)

	select {
	case <-ctx.Done():
		conn.Close()
		return ctx.Err()
	case <-s.exit:
		return conn.Close()
	case <-conn.Done():
		if err := conn.Err(); err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		return nil
	}
}

func (s *Server) handler(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	log.WithFields(log.Fields{"method": req.Method()}).Debug("rpc request")

	s.mu.Lock()
	defer s.mu.Unlock()

	switch req.Method() {
	case MethodInitialize:
		return reply(ctx, InitializeResult{
			ServerInfo: ServerInfo{Name: "textcatcher", Version: s.version},
			Methods:    []string{MethodLine, MethodLines, MethodReset, MethodRemoveTag, MethodDone, MethodStats},
		}, nil)
	case MethodShutdown:
		s.shutdown = true
		return reply(ctx, nil, nil)
	case MethodExit:
		s.exitOnce.Do(func() { close(s.exit) })
		return nil
	}

	if s.shutdown {
		return reply(ctx, nil, jsonrpc2.NewError(jsonrpc2.InvalidRequest, "server is shutting down"))
	}

	switch req.Method() {
	case MethodLine:
		return s.handleLine(ctx, reply, req)
	case MethodLines:
		return s.handleLines(ctx, reply, req)
	case MethodReset:
		s.queue.Reset()
		return reply(ctx, nil, nil)
	case MethodRemoveTag:
		return s.handleRemoveTag(ctx, reply, req)
	case MethodDone:
		s.queue.Done()
		return reply(ctx, nil, nil)
	case MethodStats:
		return reply(ctx, s.stats(), nil)
	default:
		return reply(ctx, nil, &jsonrpc2.Error{
			Code:    jsonrpc2.MethodNotFound,
			Message: "method not supported: " + req.Method(),
		})
	}
}

func (s *Server) handleLine(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params LineParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return reply(ctx, nil, &jsonrpc2.Error{
			Code:    jsonrpc2.InvalidParams,
			Message: err.Error(),
		})
	}

	s.blocks = nil
	out, ok := s.feed(params.Line)
	result := LineResult{Emitted: ok, Blocks: s.blocks}
	if ok {
		result.Output = out
	}
	return reply(ctx, result, nil)
}

func (s *Server) handleLines(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params LinesParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return reply(ctx, nil, &jsonrpc2.Error{
			Code:    jsonrpc2.InvalidParams,
			Message: err.Error(),
		})
	}

	s.blocks = nil
	result := LinesResult{Output: make([]string, 0, len(params.Lines))}
	for _, line := range params.Lines {
		if out, ok := s.feed(line); ok {
			result.Output = append(result.Output, out)
		}
	}
	result.Blocks = s.blocks
	return reply(ctx, result, nil)
}

func (s *Server) handleRemoveTag(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params RemoveTagParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return reply(ctx, nil, &jsonrpc2.Error{
			Code:    jsonrpc2.InvalidParams,
			Message: err.Error(),
		})
	}

	n := s.queue.RemoveTag(params.Tag)
	log.WithFields(log.Fields{"tag": params.Tag, "removed": n}).Debug("removed catchers by tag")
	return reply(ctx, RemoveTagResult{Removed: n}, nil)
}

func (s *Server) feed(line string) (string, bool) {
	out, ok := s.queue.Line(line)
	s.read++
	if ok {
		s.emitted++
	}
	s.metrics.ObserveLine(ok)
	return out, ok
}

func (s *Server) stats() StatsResult {
	result := StatsResult{
		LinesRead:    s.read,
		LinesEmitted: s.emitted,
		Members:      s.queue.Len(),
		Catchers:     make([]CatcherStats, 0),
	}
	for _, member := range s.queue.Members() {
		m, ok := member.(*catcher.Machine)
		if !ok {
			continue
		}
		result.Catchers = append(result.Catchers, CatcherStats{
			Name:      m.Name(),
			Completed: m.Completed(),
			Capturing: m.Capturing(),
			Tags:      m.Tags(),
		})
	}
	return result
}

// readWriteCloser wraps reader and writer into a ReadWriteCloser
type readWriteCloser struct {
	io.Reader
	io.Writer
}

func (rwc *readWriteCloser) Close() error {
	if c, ok := rwc.Reader.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
