package catcher

import (
	"fmt"
	"regexp"
	"strings"
)

// Predicate decides whether a single line opens or closes a block
type Predicate interface {
	Match(line string) bool
}

// PredicateFunc adapts a plain function to a Predicate
type PredicateFunc func(line string) bool

func (f PredicateFunc) Match(line string) bool { return f(line) }

// Strategy tests a configured pattern against a line. Exact, Substring and
// compiled regular expressions all reduce to this shape.
type Strategy func(pattern, line string) bool

var (
	// Exact matches when the whole line equals the pattern
	Exact Strategy = func(pattern, line string) bool { return line == pattern }

	// Substring matches when the pattern appears anywhere in the line.
	// An empty pattern matches every line.
	Substring Strategy = func(pattern, line string) bool { return strings.Contains(line, pattern) }
)

// boundPredicate is a Strategy with its pattern fixed at construction
type boundPredicate struct {
	strategy Strategy
	pattern  string
	kind     string
}

func (p *boundPredicate) Match(line string) bool { return p.strategy(p.pattern, line) }

func (p *boundPredicate) String() string { return fmt.Sprintf("%s(%q)", p.kind, p.pattern) }

// Bind fixes the pattern of a Strategy, producing a Predicate
func Bind(strategy Strategy, pattern string) Predicate {
	return &boundPredicate{strategy: strategy, pattern: pattern, kind: "bind"}
}

// Text matches if s appears anywhere in the line
func Text(s string) Predicate {
	return &boundPredicate{strategy: Substring, pattern: s, kind: "text"}
}

// Line matches if the line is exactly s
func Line(s string) Predicate {
	return &boundPredicate{strategy: Exact, pattern: s, kind: "line"}
}

// regexpPredicate searches anywhere in the line unless the pattern anchors itself
type regexpPredicate struct {
	re *regexp.Regexp
}

func (p *regexpPredicate) Match(line string) bool { return p.re.MatchString(line) }

func (p *regexpPredicate) String() string { return fmt.Sprintf("regexp(%q)", p.re.String()) }

// Regexp compiles pattern into a Predicate.
// A pattern that does not compile returns an error wrapping ErrInvalidPattern.
func Regexp(pattern string) (Predicate, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidPattern, pattern, err)
	}
	return &regexpPredicate{re: re}, nil
}

// MustRegexp is like Regexp but panics on an invalid pattern.
// Meant for package-level predicates built from constant patterns.
func MustRegexp(pattern string) Predicate {
	p, err := Regexp(pattern)
	if err != nil {
		panic(err)
	}
	return p
}

// Always matches every line
func Always() Predicate {
	return PredicateFunc(func(string) bool { return true })
}

// Never matches no line
func Never() Predicate {
	return PredicateFunc(func(string) bool { return false })
}

// Not inverts a predicate
func Not(p Predicate) Predicate {
	return PredicateFunc(func(line string) bool { return !p.Match(line) })
}

// Any matches when at least one of the predicates matches
func Any(preds ...Predicate) Predicate {
	return PredicateFunc(func(line string) bool {
		for _, p := range preds {
			if p.Match(line) {
				return true
			}
		}
		return false
	})
}

// All matches when every predicate matches
func All(preds ...Predicate) Predicate {
	return PredicateFunc(func(line string) bool {
		for _, p := range preds {
			if !p.Match(line) {
				return false
			}
		}
		return true
	})
}
