package retry

import "fmt"

// GiveupError is returned when a run stops retrying. It unwraps to the last failure.
type GiveupError struct {
	First    error
	Last     error
	Attempts int
}

func (e *GiveupError) Error() string {
	return fmt.Sprintf("retry: gave up after %d attempt(s): %v", e.Attempts, e.Last)
}

func (e *GiveupError) Unwrap() error { return e.Last }

// InterruptedError is returned when the context ends while waiting for an attempt.
// The context stays cancelled so callers further up observe the same state.
type InterruptedError struct {
	Err      error
	Attempts int
}

func (e *InterruptedError) Error() string {
	return fmt.Sprintf("retry: interrupted after %d retry(ies): %v", e.Attempts, e.Err)
}

func (e *InterruptedError) Unwrap() error { return e.Err }
