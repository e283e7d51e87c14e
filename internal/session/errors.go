package session

import "errors"

// Engine error taxonomy. Handlers map these onto HTTP responses carrying
// the reason and the session's current status so clients can resynchronize.
var (
	// ErrInvalidTransition means the operation is not legal from the
	// session's current state.
	ErrInvalidTransition = errors.New("invalid session state transition")

	// ErrSessionNotActive means the operation needs a live session but the
	// session has reached a terminal state.
	ErrSessionNotActive = errors.New("session is not active")

	// ErrDuplicateSession means a live session already exists for the same
	// (user, assessment) pair.
	ErrDuplicateSession = errors.New("an active session already exists for this user and assessment")

	// ErrInvalidQuestion means the question id is not part of the session's
	// assessment snapshot.
	ErrInvalidQuestion = errors.New("question does not exist in this assessment")

	// ErrUnknownAssessment means no assessment definition is loaded for
	// the requested id.
	ErrUnknownAssessment = errors.New("unknown assessment")
)
