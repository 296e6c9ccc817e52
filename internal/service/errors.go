package service

import "errors"

// Error kinds surfaced at the engine boundary. Handlers map these onto
// transport status codes.
var (
	// ErrGroupNotFound covers an unknown group, an installment that does
	// not belong to the group, and a gateway order ID that does not match
	// the one on file.
	ErrGroupNotFound = errors.New("split group not found")

	// ErrAccessDenied is returned when the caller is not the group's payer.
	ErrAccessDenied = errors.New("caller is not the payer of this group")

	// ErrSequenceViolation is returned when the caller attempts to pay an
	// installment out of order. Retryable by requesting the correct
	// sequence.
	ErrSequenceViolation = errors.New("installments must be paid in sequence order")

	// ErrAlreadyProcessed is returned when the installment is already
	// completed. Idempotent: callers treat it as success.
	ErrAlreadyProcessed = errors.New("installment already processed")

	// ErrGroupCancelled is returned when the group was cancelled and
	// accepts no further payments.
	ErrGroupCancelled = errors.New("split group is cancelled")

	// ErrSignatureVerificationFailed is returned when a client-submitted
	// confirmation fails the signature check. The installment is marked
	// failed; a fresh order for the same sequence may be requested.
	ErrSignatureVerificationFailed = errors.New("payment signature verification failed")
)
