package drc

import "errors"

// Sentinel errors for DRC session and workflow operations.
//
// These errors can be checked using errors.Is() for specific handling:
//
//	if errors.Is(err, drc.ErrPrecondition) {
//	    // Surface to the operator; not retried automatically
//	}
var (
	// ErrPrecondition indicates a guard failed, e.g. entering DRC mode
	// without all three prerequisites. Surfaced to the operator.
	ErrPrecondition = errors.New("drc: preconditions not met")

	// ErrInvalidState indicates an operation that is illegal in the
	// current session status. State is left unchanged.
	ErrInvalidState = errors.New("drc: invalid state for operation")

	// ErrInvalidTransition indicates a workflow transition outside the
	// allowed set. The step is left unchanged.
	ErrInvalidTransition = errors.New("drc: transition not allowed")

	// ErrConfigInvalid indicates the broker relay config is incomplete.
	// Blocks entering DRC mode until corrected.
	ErrConfigInvalid = errors.New("drc: broker config invalid")

	// ErrAuthFailed indicates the gateway rejected the authorization
	// request (non-zero result code). The code is in the wrapped message.
	ErrAuthFailed = errors.New("drc: authorization failed")

	// ErrNoPendingAuth indicates ConfirmAuthorization was called with no
	// authorization awaiting confirmation.
	ErrNoPendingAuth = errors.New("drc: no pending authorization")
)
