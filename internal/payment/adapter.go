package payment

import (
	"context"
	"errors"
)

var (
	// ErrTimeout: the gateway did not answer in time. Transient; the caller
	// may retry or abort.
	ErrTimeout = errors.New("payment authorization timed out")

	// ErrDeclined: the gateway answered and said no. Fatal for this attempt.
	ErrDeclined = errors.New("payment declined")
)

// Result is a successful authorization.
type Result struct {
	TransactionID string
}

// Adapter authorizes payment for a pending booking. Implementations must
// distinguish a genuine decline (ErrDeclined) from a transport timeout
// (ErrTimeout), even when a sandbox gateway conflates them upstream.
type Adapter interface {
	Authorize(ctx context.Context, amountCents int64, orderID string) (Result, error)
}
