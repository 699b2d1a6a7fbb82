package pacer

import (
	"errors"
	"fmt"
)

var (
	// ErrTransient marks a retryable failure. It stands in as the last
	// error when a feedback hook reports a transient condition on a
	// result that carried no error of its own.
	ErrTransient = errors.New("transient failure")

	// ErrRateLimited marks a budget-exhaustion signal from the provider.
	ErrRateLimited = errors.New("rate limited")

	// ErrCredentialsExhausted is surfaced when a rate-limit signal
	// arrives and no backup credentials remain.
	ErrCredentialsExhausted = errors.New("all credentials exhausted")

	// ErrAttemptsExhausted is surfaced when transient retries hit the
	// configured attempt ceiling.
	ErrAttemptsExhausted = errors.New("retry attempts exhausted")

	// ErrCancelled is surfaced when the caller's context ends during a
	// throttle or backoff wait. The operation is abandoned before
	// dispatch; no partial side effect has occurred.
	ErrCancelled = errors.New("run cancelled")
)

// AttemptsError wraps the last observed failure once the attempt
// ceiling is reached.
type AttemptsError struct {
	Attempts int
	Last     error
}

func (e *AttemptsError) Error() string {
	return fmt.Sprintf("%v after %d attempts: %v", ErrAttemptsExhausted, e.Attempts, e.Last)
}

func (e *AttemptsError) Unwrap() []error {
	return []error{ErrAttemptsExhausted, e.Last}
}
