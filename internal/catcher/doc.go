// Package catcher recognizes single- and multi-line blocks in a stream of
// text lines.
//
// A [Machine] watches one line at a time. A line matching its start
// predicate opens a block; lines are collected until an ending rule fires
// (end predicate, line count, or a finished func), then the block's lines go
// through the parse func and the result is forwarded. [NewRegex], [NewLine],
// [NewText] and [NewTable] build the common variants.
//
// A [Queue] chains catchers: each member receives the previous member's
// output, and a member that consumes a line stops the chain.
//
//	q := catcher.NewQueue()
//	tables, _ := catcher.NewTable(catcher.Options{})
//	rest, _ := catcher.NewText("", catcher.Options{Muffle: true})
//	q.Add(tables)
//	q.Add(rest)
//	out, ok := q.Line(line)
//
// Lines are passed without their trailing newline. A block still open when
// the stream ends is discarded, never flushed.
package catcher
