package executor

import (
	"errors"
	"fmt"
)

// ErrTimeout is returned when a step exceeds its confirmation or polling
// deadline.
var ErrTimeout = errors.New("step timed out")

// AssertionMismatchError reports one failed field expectation. Expected and
// Actual hold the compared values rendered as JSON.
type AssertionMismatchError struct {
	Field    string
	Expected string
	Actual   string
}

func (e *AssertionMismatchError) Error() string {
	return fmt.Sprintf("assertion on field %q failed: expected %s, got %s", e.Field, e.Expected, e.Actual)
}
