package engine

import (
	"errors"
	"fmt"
)

// ErrCursorStalled is returned when upstream hands back a page that does not
// move past the cursor, which would otherwise loop forever.
var ErrCursorStalled = errors.New("upstream page did not advance past cursor")

// ErrUnseekableEvent is returned when a page holds an event without an event
// key or timestamp. Such an event has no place in the seek order.
var ErrUnseekableEvent = errors.New("upstream event has no seek position")

// ErrCircuitOpen is returned when the upstream circuit breaker refuses a run.
var ErrCircuitOpen = errors.New("upstream circuit breaker is open")

// FetchError is a failure reading a page from upstream. The cursor is
// unchanged and the run can be retried as a whole.
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching upstream page: %v", e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Write stages.
const (
	StageStaging = "staging"
	StageUniques = "uniques"
	StageCursor  = "cursor"
)

// WriteError is a failure writing downstream. The batch that failed has not
// advanced the cursor.
type WriteError struct {
	Stage string
	Err   error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("writing %s: %v", e.Stage, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
