package services

import (
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/optisaas25/fiscal-engine/internal/models"
	"github.com/optisaas25/fiscal-engine/internal/store"
)

// PaymentReconciler applies, edits, and removes payments against a document,
// keeping its remaining balance and status consistent with the payment set.
// Payment application never touches stock: the historical stock decrement on
// payment is disabled for good.
type PaymentReconciler struct {
	store  *store.DocumentStore
	ledger *BalanceLedger
	log    zerolog.Logger
}

func NewPaymentReconciler(s *store.DocumentStore, ledger *BalanceLedger, log zerolog.Logger) *PaymentReconciler {
	return &PaymentReconciler{store: s, ledger: ledger, log: log}
}

// ApplyPaymentInput describes a new payment. Status may be omitted: cash and
// card default to CLEARED, everything else to PENDING.
type ApplyPaymentInput struct {
	Amount  decimal.Decimal      `json:"amount"`
	Mode    models.PaymentMode   `json:"mode"`
	Status  models.PaymentStatus `json:"status,omitempty"`
	Date    time.Time            `json:"date"`
	Comment string               `json:"comment,omitempty"`
}

// Apply validates the amount against the document's remaining balance,
// persists the payment, and moves the document's balance and status.
func (r *PaymentReconciler) Apply(docID uint, in ApplyPaymentInput) (*models.Payment, error) {
	var payment *models.Payment
	err := r.store.WithTx(func(tx *store.DocumentStore) error {
		doc, err := tx.GetDocument(docID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrDocumentNotFound
		}
		if err != nil {
			return err
		}
		// Payments only exist against live documents; a cancelled one must not
		// re-enter the PARTIAL/PAID set through a late settlement.
		if doc.Status == models.StatusCancelled {
			return ErrDocumentCancelled
		}
		if err := r.ledger.ValidatePaymentAmount(in.Amount, doc.RemainingBalance); err != nil {
			return err
		}

		status := in.Status
		if status == "" {
			status = models.DefaultStatusFor(in.Mode)
		}
		date := in.Date
		if date.IsZero() {
			date = time.Now()
		}
		p := &models.Payment{
			DocumentID: doc.ID,
			Amount:     in.Amount,
			Mode:       in.Mode,
			Status:     status,
			Date:       date,
			Comment:    in.Comment,
		}
		if status == models.PaymentCleared {
			now := time.Now()
			p.ClearedDate = &now
		}
		if err := tx.CreatePayment(p); err != nil {
			return err
		}

		remaining := doc.RemainingBalance.Sub(in.Amount)
		fields := map[string]any{"remaining_balance": remaining}
		// A draft keeps its status: draftness is tracked by status and must
		// survive an early deposit until promotion.
		if !doc.IsDraft() {
			if remaining.IsZero() {
				fields["status"] = models.StatusPaid
			} else {
				fields["status"] = models.StatusPartial
			}
		}
		if err := tx.UpdateDocumentFields(doc.ID, fields); err != nil {
			return err
		}
		payment = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	r.log.Info().Uint("document_id", docID).Str("amount", payment.Amount.String()).Msg("payment applied")
	return payment, nil
}

// UpdatePaymentInput carries the editable payment fields. Nil means unchanged.
type UpdatePaymentInput struct {
	Amount      *decimal.Decimal      `json:"amount,omitempty"`
	Status      *models.PaymentStatus `json:"status,omitempty"`
	ClearedDate *time.Time            `json:"cleared_date,omitempty"`
}

// Update edits a payment. An amount change recomputes the owning document's
// balance from the full active payment set rather than applying a delta, so
// the balance converges even if prior state drifted.
func (r *PaymentReconciler) Update(paymentID uint, in UpdatePaymentInput) (*models.Payment, error) {
	var updated *models.Payment
	err := r.store.WithTx(func(tx *store.DocumentStore) error {
		p, err := tx.GetPayment(paymentID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrPaymentNotFound
		}
		if err != nil {
			return err
		}
		doc, err := tx.GetDocument(p.DocumentID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrDocumentNotFound
		}
		if err != nil {
			return err
		}

		amountChanged := in.Amount != nil && !in.Amount.Equal(p.Amount)
		if amountChanged {
			// Validate against the balance excluding the edited payment.
			others := decimal.Zero
			for _, other := range doc.Payments {
				if other.ID != p.ID && other.IsActive() {
					others = others.Add(other.Amount)
				}
			}
			if err := r.ledger.ValidatePaymentAmount(*in.Amount, r.ledger.Remaining(doc.TotalTTC, others)); err != nil {
				return err
			}
			p.Amount = *in.Amount
		}
		if in.Status != nil && *in.Status != p.Status {
			if *in.Status == models.PaymentCleared && p.ClearedDate == nil && in.ClearedDate == nil {
				now := time.Now()
				p.ClearedDate = &now
			}
			p.Status = *in.Status
		}
		if in.ClearedDate != nil {
			p.ClearedDate = in.ClearedDate
		}
		if err := tx.SavePayment(p); err != nil {
			return err
		}
		if err := r.reconcile(tx, doc.ID); err != nil {
			return err
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Remove deletes a payment and recomputes its former owner's balance from the
// surviving payment set.
func (r *PaymentReconciler) Remove(paymentID uint) error {
	return r.store.WithTx(func(tx *store.DocumentStore) error {
		p, err := tx.GetPayment(paymentID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrPaymentNotFound
		}
		if err != nil {
			return err
		}
		docID := p.DocumentID
		if err := tx.DeletePayment(p.ID); err != nil {
			return err
		}
		if err := r.reconcile(tx, docID); err != nil {
			return err
		}
		r.log.Info().Uint("payment_id", paymentID).Uint("document_id", docID).Msg("payment removed")
		return nil
	})
}

// reconcile recomputes balance and status of a document from its current
// payment set. Status falls back to VALID only when the balance equals the
// full total again.
func (r *PaymentReconciler) reconcile(tx *store.DocumentStore, docID uint) error {
	doc, err := tx.GetDocument(docID)
	if err != nil {
		return err
	}
	paid := r.ledger.PaidSum(doc.Payments)
	remaining := r.ledger.Remaining(doc.TotalTTC, paid)
	fields := map[string]any{"remaining_balance": remaining}
	if !doc.IsDraft() && doc.Status != models.StatusCancelled {
		fields["status"] = r.ledger.ComputeStatus(doc.TotalTTC, paid)
	}
	return tx.UpdateDocumentFields(doc.ID, fields)
}
