package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is returned when a submission cannot be accepted for judging.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidTransition is returned when the submission state machine is misused.
	ErrInvalidTransition = errors.New("invalid submission state transition")

	// ErrUnsupportedLanguage is returned at judging time when the question has no metadata for the language.
	ErrUnsupportedLanguage = errors.New("language is not supported for this question")

	// ErrNoReferenceSolution is returned when a question has no oracle to judge against.
	ErrNoReferenceSolution = errors.New("question has no reference solution")

	// ErrInfrastructure marks failures of the execution engine or oracle invocation itself.
	ErrInfrastructure = errors.New("judging infrastructure failure")

	// ErrOracleFailed is returned when the reference solution does not produce an output.
	ErrOracleFailed = errors.New("reference solution failed to produce output")

	// ErrSubmissionNotFound is returned when a submission cannot be found by ID.
	ErrSubmissionNotFound = errors.New("submission not found")

	// ErrQuestionNotFound is returned when a question cannot be found by ID.
	ErrQuestionNotFound = errors.New("question not found")

	// ErrEmptySourceCode is returned when source code is empty.
	ErrEmptySourceCode = errors.New("source code cannot be empty")

	// ErrPayloadTooLarge is returned when the source code exceeds the size limit.
	ErrPayloadTooLarge = errors.New("source code payload exceeds maximum size (1MB)")

	// ErrSubmissionBusy is returned when a delivery finds another worker's live lock
	// on a submission that is not yet judged. The delivery should be retried later.
	ErrSubmissionBusy = errors.New("submission is locked by another worker")

	// ErrPublishFailed is returned when the message broker publish fails.
	ErrPublishFailed = errors.New("failed to publish submission to message queue")
)

// GenericFailureMessage is what users see when judging fails for reasons outside their code.
const GenericFailureMessage = "Judging failed due to an internal error. Please try again later."

// ValidationError describes why a submission was rejected at enqueue time.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// InvalidTransitionError reports a forbidden state change.
type InvalidTransitionError struct {
	SubmissionID string
	From         SubmissionStatus
	To           SubmissionStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("submission %s: cannot move from %s to %s", e.SubmissionID, e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// InfrastructureError wraps a failure of the execution engine or oracle invocation.
type InfrastructureError struct {
	Op  string
	Err error
}

func (e *InfrastructureError) Error() string {
	return fmt.Sprintf("infrastructure: %s: %v", e.Op, e.Err)
}

// Unwrap exposes both the marker and the cause to errors.Is.
func (e *InfrastructureError) Unwrap() []error { return []error{ErrInfrastructure, e.Err} }
