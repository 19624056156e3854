package domain

import "errors"

// Rejection reasons. All are expected outcomes of a booking attempt, not
// faults; handlers map them to status codes and callers may retry or not.
var (
	ErrInvalidIdentity       = errors.New("invalid user credentials")
	ErrSuspiciousActivity    = errors.New("suspicious activity detected")
	ErrRateLimitExceeded     = errors.New("rate limit exceeded")
	ErrInvalidQuantity       = errors.New("invalid ticket quantity")
	ErrQuotaExceeded         = errors.New("exceeds maximum tickets per user")
	ErrInsufficientInventory = errors.New("not enough tickets available")
	ErrPassengerMismatch     = errors.New("passenger names do not match quantity")
	ErrPaymentFailed         = errors.New("payment failed")
	ErrInternal              = errors.New("internal error")
)

// Outcome is the structured pass/fail result of a booking attempt.
type Outcome struct {
	Accepted bool
	Reason   string
}

// OutcomeFromError folds a rejection error into an Outcome. A nil error is
// an accepted outcome with an empty reason.
func OutcomeFromError(err error) Outcome {
	if err == nil {
		return Outcome{Accepted: true}
	}
	return Outcome{Accepted: false, Reason: err.Error()}
}
