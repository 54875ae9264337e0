package catcher

import (
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"
	"time"

	funk "github.com/thoas/go-funk"
)

// historySize is how many completion times a Machine remembers
const historySize = 10

// Catcher is the capability every queue member shares: accept one line and
// return the text to forward downstream. ok is false when the line was
// consumed and nothing should be forwarded.
type Catcher interface {
	Feed(line string) (out string, ok bool)
}

// Expirer is optionally implemented by catchers that retire after a number of blocks
type Expirer interface {
	Expired() bool
}

// Resetter is optionally implemented by catchers that can drop an open block
type Resetter interface {
	Reset()
}

// Tagger is optionally implemented by catchers that carry removal tags
type Tagger interface {
	HasTag(tag string) bool
}

// ParseFunc turns the lines of a completed block into its output
type ParseFunc func(lines []string) string

// JoinLines rebuilds the block text with newline separators
func JoinLines(lines []string) string {
	return strings.Join(lines, "\n")
}

// Options configures a Machine
type Options struct {
	Name string

	// Listen forwards every line unchanged, matched or not
	Listen bool
	// Muffle swallows open and completed blocks
	Muffle bool

	// Expects closes the block once it holds this many lines (0 disables)
	Expects int
	// Finished closes the block when it returns true (nil disables)
	Finished func(lines []string) bool

	// Count retires the catcher after this many blocks (0 never retires)
	Count int

	// Parse builds the block output; JoinLines when nil
	Parse ParseFunc
	// Emit receives the output of every completed block whatever the policy,
	// letting a detector print blocks while its queue muffles the stream
	Emit func(out string)

	Tags []string
}

// Event names the points in a block's life where callbacks run
type Event int

const (
	EventStart Event = iota // block opened
	EventParse              // block complete, before Parse
	EventEnd                // after Parse, before the buffer is cleared
)

func (e Event) String() string {
	switch e {
	case EventStart:
		return "start"
	case EventParse:
		return "parse"
	case EventEnd:
		return "end"
	default:
		return "unknown"
	}
}

// Callback is invoked with the machine that fired it. It may call Abort.
type Callback func(m *Machine)

type callback struct {
	id       int
	priority int
	event    Event
	fn       Callback
}

// Machine is the capture state machine shared by every catcher variant.
// It cycles IDLE -> CAPTURING -> IDLE once per block for the life of the stream.
// A Machine is not safe for concurrent use.
type Machine struct {
	start Predicate
	end   Predicate
	opts  Options
	parse ParseFunc

	lines     []string
	capturing bool
	aborted   bool
	remaining int
	completed int

	callbacks []callback
	nextID    int

	history []time.Time
	tags    []string
	data    map[string]any
	now     func() time.Time
}

// New builds a Machine from its predicates. end may be nil when Expects or
// Finished provides another way to close a block.
func New(start, end Predicate, opts Options) (*Machine, error) {
	if start == nil {
		return nil, ErrNoStart
	}
	if end == nil && opts.Expects <= 0 && opts.Finished == nil {
		return nil, ErrNoEndRule
	}
	if opts.Listen && opts.Muffle {
		return nil, ErrConflictingPolicy
	}

	parse := opts.Parse
	if parse == nil {
		parse = JoinLines
	}

	return &Machine{
		start:     start,
		end:       end,
		opts:      opts,
		parse:     parse,
		remaining: opts.Count,
		tags:      funk.UniqString(opts.Tags),
		data:      make(map[string]any),
		now:       time.Now,
	}, nil
}

// Feed advances the state machine by one line
func (m *Machine) Feed(line string) (string, bool) {
	if !m.capturing {
		if !m.start.Match(line) {
			return line, true
		}
		m.capturing = true
		m.lines = append(m.lines, line)
		if m.fire(EventStart) {
			return m.abort(line)
		}
	} else {
		m.lines = append(m.lines, line)
	}

	if !m.complete(line) {
		return m.hold(line)
	}

	if m.fire(EventParse) {
		return m.abort(line)
	}
	out := m.parse(m.Lines())
	m.record()
	if m.fire(EventEnd) {
		return m.abort(line)
	}

	m.Reset()
	m.completed++
	if m.remaining > 0 {
		m.remaining--
	}
	if m.opts.Emit != nil {
		m.opts.Emit(out)
	}

	switch {
	case m.opts.Muffle:
		return "", false
	case m.opts.Listen:
		return line, true
	}
	return out, true
}

// complete checks the ending rules in order: line count, end predicate, finished func
func (m *Machine) complete(line string) bool {
	if m.opts.Expects > 0 && len(m.lines) >= m.opts.Expects {
		return true
	}
	if m.end != nil && m.end.Match(line) {
		return true
	}
	if m.opts.Finished != nil && m.opts.Finished(m.Lines()) {
		return true
	}
	return false
}

// hold reports a line that belongs to a block that is still open
func (m *Machine) hold(line string) (string, bool) {
	if m.opts.Listen {
		return line, true
	}
	return "", false
}

func (m *Machine) abort(line string) (string, bool) {
	m.Reset()
	return m.hold(line)
}

// fire runs the callbacks registered for ev and reports whether one aborted
func (m *Machine) fire(ev Event) bool {
	m.aborted = false
	for _, cb := range m.callbacks {
		if cb.event != ev {
			continue
		}
		cb.fn(m)
		if m.aborted {
			return true
		}
	}
	return false
}

func (m *Machine) record() {
	m.history = append([]time.Time{m.now()}, m.history...)
	if len(m.history) > historySize {
		m.history = m.history[:historySize]
	}
}

// Abort drops the open block. Only meaningful from inside a callback.
func (m *Machine) Abort() {
	m.aborted = true
}

// Reset discards the open block and returns to IDLE
func (m *Machine) Reset() {
	m.lines = nil
	m.capturing = false
}

// Done is called at end of stream. An unclosed block is discarded, not flushed.
func (m *Machine) Done() {
	m.Reset()
}

// AddCallback registers fn for ev. Lower priorities run first; equal
// priorities run in registration order. The returned id removes it again.
func (m *Machine) AddCallback(ev Event, priority int, fn Callback) int {
	m.nextID++
	cbs := append(slices.Clone(m.callbacks), callback{
		id:       m.nextID,
		priority: priority,
		event:    ev,
		fn:       fn,
	})
	sort.SliceStable(cbs, func(i, j int) bool {
		return cbs[i].priority < cbs[j].priority
	})
	m.callbacks = cbs
	return m.nextID
}

// RemoveCallback unregisters a callback. Unknown ids are ignored.
func (m *Machine) RemoveCallback(id int) bool {
	n := len(m.callbacks)
	m.callbacks = slices.DeleteFunc(slices.Clone(m.callbacks), func(cb callback) bool {
		return cb.id == id
	})
	return len(m.callbacks) != n
}

// ClearCallbacks unregisters every callback
func (m *Machine) ClearCallbacks() {
	m.callbacks = nil
}

// Name returns the configured name
func (m *Machine) Name() string { return m.opts.Name }

// Capturing reports whether a block is open
func (m *Machine) Capturing() bool { return m.capturing }

// Lines returns a copy of the open block's lines
func (m *Machine) Lines() []string { return slices.Clone(m.lines) }

// Completed returns how many blocks have closed normally
func (m *Machine) Completed() int { return m.completed }

// Expired reports whether a configured Count has been used up
func (m *Machine) Expired() bool {
	return m.opts.Count > 0 && m.remaining == 0
}

// History returns the completion times of the most recent blocks, newest first
func (m *Machine) History() []time.Time { return slices.Clone(m.history) }

// Tags returns the removal tags
func (m *Machine) Tags() []string { return slices.Clone(m.tags) }

// HasTag reports whether tag was set on this catcher
func (m *Machine) HasTag(tag string) bool {
	return funk.ContainsString(m.tags, tag)
}

// AddTag adds a removal tag
func (m *Machine) AddTag(tag string) {
	if !m.HasTag(tag) {
		m.tags = append(m.tags, tag)
	}
}

// Set stores a value for callbacks and parse funcs to share
func (m *Machine) Set(key string, value any) {
	m.data[key] = value
}

// Get returns a stored value
func (m *Machine) Get(key string) (any, bool) {
	v, ok := m.data[key]
	return v, ok
}

func (m *Machine) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s:%d|%d", m.opts.Name, m.completed, len(m.lines))
	for _, k := range slices.Sorted(maps.Keys(m.data)) {
		fmt.Fprintf(&sb, "|%s:%v", k, m.data[k])
	}
	return sb.String()
}
