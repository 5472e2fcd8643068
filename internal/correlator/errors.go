package correlator

import "errors"

// Sentinel errors for correlation operations.
//
// These errors can be checked using errors.Is() for specific handling:
//
//	if errors.Is(err, correlator.ErrTimeout) {
//	    // No reply within the bound - safe to retry with a fresh tid
//	}
var (
	// ErrTimeout indicates no reply with a matching tid arrived in time.
	// Retryable: re-issue the request, which generates a fresh tid.
	ErrTimeout = errors.New("correlator: request timed out")

	// ErrPublishFailed indicates the outbound service call could not be sent.
	ErrPublishFailed = errors.New("correlator: publish failed")

	// ErrClosed indicates the correlator has been shut down.
	ErrClosed = errors.New("correlator: closed")
)
