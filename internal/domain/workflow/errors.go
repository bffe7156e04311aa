package workflow

import "errors"

// The error kinds callers classify with errors.Is. Every operation failure
// wraps exactly one of these.
var (
	// ErrUnauthenticated is returned when the role or identity assertion is missing
	ErrUnauthenticated = errors.New("caller identity not asserted")

	// ErrForbidden is returned when the caller's role is not authorized, or
	// the caller is not the owner where ownership is required
	ErrForbidden = errors.New("caller not authorized for this action")

	// ErrNotFound is returned when a referenced request or offer does not exist
	ErrNotFound = errors.New("not found")

	// ErrInvalidState is returned when a transition is not legal from the current status
	ErrInvalidState = errors.New("operation not allowed in current state")

	// ErrValidation is returned when a payload fails structural requirements
	ErrValidation = errors.New("validation failed")

	// ErrConflict is returned when a conditional update loses a race on the
	// status precondition; callers should re-fetch and retry
	ErrConflict = errors.New("concurrent update conflict")

	// ErrUnavailable is returned for persistence I/O failures
	ErrUnavailable = errors.New("storage unavailable")
)
