package services

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/optisaas25/fiscal-engine/internal/models"
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestComputeStatus(t *testing.T) {
	ledger := NewBalanceLedger()
	require.Equal(t, models.StatusValid, ledger.ComputeStatus(d(100), d(0)))
	require.Equal(t, models.StatusPartial, ledger.ComputeStatus(d(100), d(40)))
	require.Equal(t, models.StatusPaid, ledger.ComputeStatus(d(100), d(100)))
}

func TestRemainingIsNeverClamped(t *testing.T) {
	ledger := NewBalanceLedger()
	require.True(t, ledger.Remaining(d(100), d(40)).Equal(d(60)))
	// drifted state stays visible, the ledger does not hide it
	require.True(t, ledger.Remaining(d(100), d(120)).Equal(d(-20)))
}

func TestPaidSumSkipsCancelledPayments(t *testing.T) {
	ledger := NewBalanceLedger()
	payments := []models.Payment{
		{Amount: d(40), Status: models.PaymentCleared},
		{Amount: d(30), Status: models.PaymentPending},
		{Amount: d(25), Status: models.PaymentCancelled},
	}
	require.True(t, ledger.PaidSum(payments).Equal(d(70)))
}

func TestValidatePaymentAmount(t *testing.T) {
	ledger := NewBalanceLedger()
	require.NoError(t, ledger.ValidatePaymentAmount(d(100), d(100)))
	require.ErrorIs(t, ledger.ValidatePaymentAmount(d(0), d(100)), ErrInvalidAmount)
	require.ErrorIs(t, ledger.ValidatePaymentAmount(d(-5), d(100)), ErrInvalidAmount)

	err := ledger.ValidatePaymentAmount(d(150), d(100))
	require.ErrorIs(t, err, ErrAmountExceedsBalance)
	var aeb *AmountExceedsBalanceError
	require.ErrorAs(t, err, &aeb)
	require.True(t, aeb.Requested.Equal(d(150)))
	require.True(t, aeb.Remaining.Equal(d(100)))
}
