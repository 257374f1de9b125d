package services

import (
	"github.com/shopspring/decimal"

	"github.com/optisaas25/fiscal-engine/internal/models"
)

// BalanceLedger derives paid amounts, remaining balances, and the resulting
// document status from a payment set. It is pure computation; persistence is
// the caller's job.
type BalanceLedger struct{}

func NewBalanceLedger() *BalanceLedger { return &BalanceLedger{} }

// ComputeStatus maps a paid sum against the total for an already-validated
// document: fully paid is PAID, a strict partial is PARTIAL, untouched is VALID.
func (BalanceLedger) ComputeStatus(total, paid decimal.Decimal) models.DocumentStatus {
	switch {
	case paid.Equal(total):
		return models.StatusPaid
	case paid.IsZero():
		return models.StatusValid
	default:
		return models.StatusPartial
	}
}

// Remaining returns total minus paid. Never clamped; callers validate amounts
// before they are applied.
func (BalanceLedger) Remaining(total, paid decimal.Decimal) decimal.Decimal {
	return total.Sub(paid)
}

// PaidSum adds up the active (pending or cleared) payments of a document.
func (BalanceLedger) PaidSum(payments []models.Payment) decimal.Decimal {
	sum := decimal.Zero
	for _, p := range payments {
		if p.IsActive() {
			sum = sum.Add(p.Amount)
		}
	}
	return sum
}

// ValidatePaymentAmount rejects non-positive amounts and amounts exceeding the
// remaining balance.
func (BalanceLedger) ValidatePaymentAmount(amount, remaining decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if amount.GreaterThan(remaining) {
		return &AmountExceedsBalanceError{Requested: amount, Remaining: remaining}
	}
	return nil
}
