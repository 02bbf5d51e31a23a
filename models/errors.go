package models

import "errors"

// Failure kinds surfaced by the purchase and verification flows. Handlers and
// the classifier switch on these instead of raw transport errors.
var (
	ErrMalformedCode         = errors.New("no ticket identifier found in code")
	ErrInsufficientInventory = errors.New("not enough tickets available")
	ErrTicketNotFound        = errors.New("ticket not found")
	ErrEventNotFound         = errors.New("event not found")
	ErrInvalidQuantity       = errors.New("invalid ticket quantity")
	ErrQuantityCapExceeded   = errors.New("quantity exceeds per-transaction cap")
	ErrDuplicateSubmission   = errors.New("purchase already in progress")
	ErrWalletNotConnected    = errors.New("wallet not connected")
	ErrPaymentFailed         = errors.New("payment confirmation failed")
	ErrInvalidRecord         = errors.New("invalid stored record")
)

// Retryable reports whether re-invoking the same operation with the same
// input can succeed. Everything else needs new user input.
func Retryable(err error) bool {
	return errors.Is(err, ErrPaymentFailed)
}
