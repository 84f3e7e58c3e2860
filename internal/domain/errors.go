package domain

import "errors"

// Sentinel errors shared across aggregates and services. Repositories translate
// storage-level "no rows" into ErrNotFound so services never see sql errors.
var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("not authorized")

	// ErrInvalidTransition is wrapped by aggregate methods when a state
	// transition is not legal from the current status.
	ErrInvalidTransition = errors.New("invalid state transition")

	ErrAlreadyRegistered  = errors.New("already registered for this event")
	ErrAlreadyConfirmed   = errors.New("registration already confirmed")
	ErrNotWaitlisted      = errors.New("registration is not on the waitlist")
	ErrInvalidPosition    = errors.New("waitlist position must be positive")
	ErrRegistrationClosed = errors.New("event is not currently accepting registrations")
	ErrEventStarted       = errors.New("event has already started")
)
