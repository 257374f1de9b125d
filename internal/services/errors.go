package services

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Sentinel errors, for use with errors.Is().
var (
	ErrClientNotFound   = errors.New("client not found")
	ErrDocumentNotFound = errors.New("document not found")
	ErrPaymentNotFound  = errors.New("payment not found")
	ErrEmptyDocument    = errors.New("document has no line items")
	// ErrAmountExceedsBalance is returned when a payment would overshoot the
	// document's remaining balance.
	ErrAmountExceedsBalance = errors.New("amount exceeds remaining balance")
	ErrInvalidAmount        = errors.New("amount must be positive")
	// ErrDocumentCancelled rejects operations that would pull a cancelled
	// document back into the live set or compensate it twice.
	ErrDocumentCancelled = errors.New("document is cancelled")
	// ErrFiscalContinuity blocks client deletion when an official document of
	// the client is followed by a more recent one elsewhere.
	ErrFiscalContinuity = errors.New("fiscal continuity violation")
	ErrOpenFolder       = errors.New("client has a folder in progress")
)

// AmountExceedsBalanceError carries the rejected amount and what was left.
type AmountExceedsBalanceError struct {
	Requested decimal.Decimal
	Remaining decimal.Decimal
}

func (e *AmountExceedsBalanceError) Error() string {
	return fmt.Sprintf("payment of %s exceeds remaining balance %s", e.Requested, e.Remaining)
}

func (e *AmountExceedsBalanceError) Unwrap() error { return ErrAmountExceedsBalance }

// FiscalContinuityError names the conflicting document so the caller can show
// a human-readable reason.
type FiscalContinuityError struct {
	ClientID          uint
	ConflictingNumber string
}

func (e *FiscalContinuityError) Error() string {
	return fmt.Sprintf("client %d cannot be deleted: document %s is more recent than one of the client's official documents",
		e.ClientID, e.ConflictingNumber)
}

func (e *FiscalContinuityError) Unwrap() error { return ErrFiscalContinuity }

// IsNotFound reports whether err indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrClientNotFound) ||
		errors.Is(err, ErrDocumentNotFound) ||
		errors.Is(err, ErrPaymentNotFound)
}

// IsClientError reports whether err is correctable by the caller.
func IsClientError(err error) bool {
	return errors.Is(err, ErrEmptyDocument) ||
		errors.Is(err, ErrAmountExceedsBalance) ||
		errors.Is(err, ErrInvalidAmount)
}

// IsConflict reports whether err is a continuity or state-machine violation.
func IsConflict(err error) bool {
	return errors.Is(err, ErrFiscalContinuity) ||
		errors.Is(err, ErrOpenFolder) ||
		errors.Is(err, ErrDocumentCancelled)
}
