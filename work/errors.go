package work

import (
	"errors"
	"fmt"
	"strings"
)

// ErrRetriesExhausted is returned by Retry when every attempt failed without
// producing a concrete error to re-raise.
var ErrRetriesExhausted = errors.New("retries exhausted")

// ErrNotAttempted marks items that were never dispatched because a fatal
// failure stopped the run first.
var ErrNotAttempted = errors.New("not attempted after fatal failure")

// Failure is one failed item inside a PartialFailure.
type Failure struct {
	Item string
	Err  error
}

// PartialFailure aggregates every per-item failure of a fan-out so an
// operator sees the full blast radius at once, not just the first casualty.
type PartialFailure struct {
	Failures []Failure
}

func (e *PartialFailure) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d of the items failed:", len(e.Failures))
	for _, f := range e.Failures {
		fmt.Fprintf(&b, "\n  %s: %v", f.Item, f.Err)
	}
	return b.String()
}

// Unwrap exposes the individual causes to errors.Is / errors.As.
func (e *PartialFailure) Unwrap() []error {
	out := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		out[i] = f.Err
	}
	return out
}

// Items returns the labels of every failed item.
func (e *PartialFailure) Items() []string {
	out := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		out[i] = f.Item
	}
	return out
}

// fatalError marks an error as invalidating the whole run.
type fatalError struct {
	err error
}

func (e *fatalError) Error() string { return e.err.Error() }
func (e *fatalError) Unwrap() error { return e.err }

// Fatal marks err as whole-run-invalidating: RunAll stops dispatching new
// items once it observes a fatal failure. Typical use is an authentication
// failure detected on the first item, where attempting the rest is pointless.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &fatalError{err: err}
}

// IsFatal reports whether err carries the Fatal marker.
func IsFatal(err error) bool {
	var fe *fatalError
	return errors.As(err, &fe)
}

// itemLabel renders an item for failure reporting. Stringer items name
// themselves; everything else falls back to fmt.
func itemLabel(item any) string {
	if s, ok := item.(fmt.Stringer); ok {
		return s.String()
	}
	if s, ok := item.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", item)
}
