package models

import (
	"fmt"
	"regexp"
	"time"

	"github.com/shopspring/decimal"
)

// DocumentType discriminates the fiscal record families sharing the Document lifecycle.
type DocumentType string

const (
	TypeInvoice      DocumentType = "FACTURE"
	TypeQuote        DocumentType = "DEVIS"
	TypeCreditNote   DocumentType = "AVOIR"
	TypeDeliveryNote DocumentType = "BL"
)

// DocumentStatus is the lifecycle state of a fiscal document.
type DocumentStatus string

const (
	StatusDraft     DocumentStatus = "DRAFT"
	StatusValid     DocumentStatus = "VALID"
	StatusPartial   DocumentStatus = "PARTIAL"
	StatusPaid      DocumentStatus = "PAID"
	StatusCancelled DocumentStatus = "CANCELLED"
)

// Document is the canonical fiscal record (facture, devis, avoir, bon de livraison).
// Official documents carry a FAC/DEV/AVR/BL number; drafts carry a DRAFT-<ts> token
// until promotion.
type Document struct {
	ID       uint           `gorm:"primaryKey" json:"id"`
	CenterID uint           `gorm:"not null;index" json:"center_id"`
	Type     DocumentType   `gorm:"not null;index" json:"type"`
	Number   string         `gorm:"not null;uniqueIndex" json:"number"`
	Status   DocumentStatus `gorm:"not null;index" json:"status"`
	ClientID uint           `gorm:"not null;index" json:"client_id"`
	Client   Client         `gorm:"foreignKey:ClientID" json:"-"`
	// FolderID links the originating client folder; a folder holds at most one
	// live document, hence the unique index.
	FolderID *uint          `gorm:"uniqueIndex" json:"folder_id,omitempty"`
	Lines    []DocumentLine `gorm:"foreignKey:DocumentID" json:"lines"`

	TotalHT          decimal.Decimal `gorm:"type:decimal(12,2)" json:"total_ht"`
	TotalTVA         decimal.Decimal `gorm:"type:decimal(12,2)" json:"total_tva"`
	TotalTTC         decimal.Decimal `gorm:"type:decimal(12,2)" json:"total_ttc"`
	RemainingBalance decimal.Decimal `gorm:"type:decimal(12,2)" json:"remaining_balance"`

	Payments []Payment `gorm:"foreignKey:DocumentID" json:"payments,omitempty"`

	Audit AuditTrail `gorm:"embedded;embeddedPrefix:audit_" json:"audit"`

	EmissionDate time.Time `json:"emission_date"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// DocumentLine is a single billed line. Amounts are TTC; credit notes carry
// negated amounts.
type DocumentLine struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	DocumentID  uint            `gorm:"not null;index" json:"document_id"`
	Description string          `gorm:"not null" json:"description"`
	Quantity    int             `gorm:"not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(12,2)" json:"unit_price"` // TTC
	Discount    decimal.Decimal `gorm:"type:decimal(12,2)" json:"discount"`
	TotalTTC    decimal.Decimal `gorm:"type:decimal(12,2)" json:"total_ttc"`
}

// AuditTrail records provenance carried across lifecycle transformations. It
// replaces the free-form properties bag of the historical schema with typed
// columns (prefixed audit_ on the documents table).
type AuditTrail struct {
	PreviousNumber string     `json:"previous_number,omitempty"`
	SupersededBy   string     `json:"superseded_by,omitempty"`
	SourceFolderID *uint      `json:"source_folder_id,omitempty"`
	Reason         string     `json:"reason,omitempty"`
	RecordedAt     *time.Time `json:"recorded_at,omitempty"`
}

var (
	officialNumberRe = regexp.MustCompile(`^(FAC|DEV|AVR|BL|DOC)-\d{4}-\d{3}$`)
	draftNumberRe    = regexp.MustCompile(`^DRAFT-\d+$`)
)

// IsOfficialNumber reports whether n matches the legal numbering format.
func IsOfficialNumber(n string) bool { return officialNumberRe.MatchString(n) }

// IsDraftNumber reports whether n is a temporary draft token.
func IsDraftNumber(n string) bool { return draftNumberRe.MatchString(n) }

// NewDraftNumber mints a collision-free temporary token for a draft.
func NewDraftNumber() string {
	return fmt.Sprintf("DRAFT-%d", time.Now().UnixNano())
}

// Prefix returns the legal numbering prefix for a document type.
func (t DocumentType) Prefix() string {
	switch t {
	case TypeInvoice:
		return "FAC"
	case TypeQuote:
		return "DEV"
	case TypeCreditNote:
		return "AVR"
	case TypeDeliveryNote:
		return "BL"
	default:
		return "DOC"
	}
}

// IsDraft reports whether the document is in draft state. Status is the
// canonical signal; draft-shaped numbers in legacy rows are normalized at
// migration time, not checked here.
func (d *Document) IsDraft() bool { return d.Status == StatusDraft }

// IsOfficial reports whether the document carries a legal number and is
// therefore subject to the numbering-continuity rule.
func (d *Document) IsOfficial() bool { return !IsDraftNumber(d.Number) }
