package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMode identifies the settlement instrument.
type PaymentMode string

const (
	ModeCash     PaymentMode = "ESPECES"
	ModeCard     PaymentMode = "CB"
	ModeCheck    PaymentMode = "CHEQUE"
	ModeTransfer PaymentMode = "VIREMENT"
)

// PaymentStatus tracks whether funds have actually cleared.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentCleared   PaymentStatus = "CLEARED"
	PaymentCancelled PaymentStatus = "CANCELLED"
)

// Payment is a settlement attached to a document. Its DocumentID is rewritten
// in bulk when a draft is promoted.
type Payment struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	DocumentID  uint            `gorm:"not null;index" json:"document_id"`
	Amount      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Mode        PaymentMode     `gorm:"not null" json:"mode"`
	Status      PaymentStatus   `gorm:"not null;index" json:"status"`
	Date        time.Time       `gorm:"not null" json:"date"`
	ClearedDate *time.Time      `json:"cleared_date,omitempty"`
	Comment     string          `json:"comment,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// IsActive reports whether the payment counts toward the owning document's
// paid sum.
func (p *Payment) IsActive() bool {
	return p.Status == PaymentPending || p.Status == PaymentCleared
}

// DefaultStatusFor picks the initial status when the caller omits one: cash
// and card clear immediately, everything else starts pending.
func DefaultStatusFor(mode PaymentMode) PaymentStatus {
	switch mode {
	case ModeCash, ModeCard:
		return PaymentCleared
	default:
		return PaymentPending
	}
}
