package quiz

import (
	"errors"
	"fmt"
)

var (
	// ErrGenerationInFlight rejects a duplicate generation request while
	// one is still pending. Callers wait for the first to resolve.
	ErrGenerationInFlight = errors.New("quiz: question generation already in flight")

	// ErrInvalidState rejects an operation that lost a legitimate race
	// (e.g. a second Submit after a timeout already graded the round).
	ErrInvalidState = errors.New("quiz: operation not valid in current state")

	// ErrClosed reports that the session was torn down while an
	// asynchronous result was outstanding; the result is discarded.
	ErrClosed = errors.New("quiz: session closed")
)

// ValidationError reports a Submit with unanswered slots. The session
// stays Active; the user may keep answering.
type ValidationError struct {
	Unanswered int
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("quiz: answer all questions before submitting (%d unanswered)", e.Unanswered)
}

// GenerationError wraps a failure of the question-generation
// collaborator. Retryable by the caller; never retried automatically.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("quiz: question generation failed: %v", e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }
