package domain

import "github.com/google/uuid"

// SubmissionMessage wraps a delivered queue message with its acknowledgement callbacks.
// Only the external id travels over the broker; the worker reloads everything else.
type SubmissionMessage struct {
	SubmissionID uuid.UUID
	Ack          func() error
	Nack         func(requeue bool) error
}

// StatusEvent is pushed on every status transition so live clients can refresh.
type StatusEvent struct {
	SubmissionID uuid.UUID        `json:"submission_id"`
	Status       SubmissionStatus `json:"status"`
	Verdict      *Verdict         `json:"verdict,omitempty"`
}

// EventFor builds the status event describing the submission's current state.
func EventFor(s *Submission) StatusEvent {
	return StatusEvent{SubmissionID: s.SubmissionID, Status: s.Status, Verdict: s.Verdict}
}

// SubmissionTask is the broker message body.
type SubmissionTask struct {
	SubmissionID uuid.UUID `json:"submission_id"`
}
