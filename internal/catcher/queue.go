package catcher

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"
)

// DefaultPriority is the priority used by Queue.Add
const DefaultPriority = 100

// entry is a queue member with its ordering priority
type entry struct {
	priority int
	member   Catcher
}

// Queue feeds each line through its members in order, chaining the output
// of one member into the next. A Queue is itself a Catcher, so queues nest.
//
// Members are compared by identity for removal, so they should be pointers.
// Add and Remove must not be called while a line is being dispatched.
type Queue struct {
	entries []entry
}

// NewQueue creates an empty queue
func NewQueue() *Queue {
	return &Queue{
		entries: make([]entry, 0),
	}
}

// Add appends a member at DefaultPriority
func (q *Queue) Add(c Catcher) {
	q.AddWithPriority(c, DefaultPriority)
}

// AddWithPriority inserts a member. Lower priorities run first; members with
// equal priority run in the order they were added.
func (q *Queue) AddWithPriority(c Catcher, priority int) {
	q.entries = append(q.entries, entry{priority: priority, member: c})
	sort.SliceStable(q.entries, func(i, j int) bool {
		return q.entries[i].priority < q.entries[j].priority
	})
}

// Remove drops a member. Removing a member that is not queued does nothing.
func (q *Queue) Remove(c Catcher) bool {
	return q.removeWhere(func(e entry) bool { return e.member == c })
}

// RemoveTag drops every member carrying tag and returns how many were removed
func (q *Queue) RemoveTag(tag string) int {
	n := len(q.entries)
	q.removeWhere(func(e entry) bool {
		t, ok := e.member.(Tagger)
		return ok && t.HasTag(tag)
	})
	return n - len(q.entries)
}

func (q *Queue) removeWhere(fn func(e entry) bool) bool {
	n := len(q.entries)
	q.entries = slices.DeleteFunc(q.entries, fn)
	return len(q.entries) != n
}

// Line dispatches one line. Each member receives the previous member's
// output; the first member that consumes the line stops the chain and the
// queue reports the line as consumed. Members that expired while handling
// the line are removed afterwards.
func (q *Queue) Line(text string) (string, bool) {
	out, ok := text, true
	for _, e := range slices.Clone(q.entries) {
		if out, ok = e.member.Feed(out); !ok {
			break
		}
	}
	q.expire()
	if !ok {
		return "", false
	}
	return out, true
}

// Feed is Line under the Catcher name, so a Queue can be a member of another Queue
func (q *Queue) Feed(text string) (string, bool) {
	return q.Line(text)
}

func (q *Queue) expire() {
	q.removeWhere(func(e entry) bool {
		x, ok := e.member.(Expirer)
		if ok && x.Expired() {
			log.WithFields(log.Fields{
				"member": fmt.Sprint(e.member),
			}).Debug("removing expired catcher")
			return true
		}
		return false
	})
}

// InputMany feeds every line and discards the output
func (q *Queue) InputMany(lines []string) {
	for _, line := range lines {
		q.Line(line)
	}
}

// Len returns the number of members
func (q *Queue) Len() int {
	return len(q.entries)
}

// Members returns the members in dispatch order
func (q *Queue) Members() []Catcher {
	members := make([]Catcher, len(q.entries))
	for i, e := range q.entries {
		members[i] = e.member
	}
	return members
}

// Reset drops the open block of every member that supports it
func (q *Queue) Reset() {
	for _, e := range q.entries {
		if r, ok := e.member.(Resetter); ok {
			r.Reset()
		}
	}
}

// Done ends the stream: open blocks are discarded and the queue is emptied
func (q *Queue) Done() {
	for _, e := range q.entries {
		if d, ok := e.member.(interface{ Done() }); ok {
			d.Done()
		}
	}
	q.entries = q.entries[:0]
}

func (q *Queue) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Queue:%d\n", len(q.entries))
	for _, e := range q.entries {
		fmt.Fprintf(&sb, "   %d %v\n", e.priority, e.member)
	}
	return sb.String()
}
