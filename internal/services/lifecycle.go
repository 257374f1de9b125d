package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/optisaas25/fiscal-engine/internal/models"
	"github.com/optisaas25/fiscal-engine/internal/store"
)

// DraftRetention is how long a payment-free draft survives before the expiry
// sweep cancels it.
const DraftRetention = 2 // months

// LifecycleEngine owns document state transitions: creation, promotion of a
// draft into an official invoice, the deletion-safety decision, the stale
// draft sweep, and the client deletion guard. Every multi-document protocol
// runs in a single transaction through the store.
type LifecycleEngine struct {
	store  *store.DocumentStore
	alloc  *SequenceAllocator
	ledger *BalanceLedger
	log    zerolog.Logger
}

func NewLifecycleEngine(s *store.DocumentStore, alloc *SequenceAllocator, ledger *BalanceLedger, log zerolog.Logger) *LifecycleEngine {
	return &LifecycleEngine{store: s, alloc: alloc, ledger: ledger, log: log}
}

// LineInput is a billed line as submitted by the caller. Amounts are TTC.
type LineInput struct {
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Discount    decimal.Decimal `json:"discount"`
	VATRate     decimal.Decimal `json:"vat_rate"` // 0..1, defaults to 0.20
}

// CreateDocumentInput describes a document creation request.
type CreateDocumentInput struct {
	CenterID     uint                `json:"center_id"`
	ClientID     uint                `json:"client_id"`
	FolderID     *uint               `json:"folder_id,omitempty"`
	Type         models.DocumentType `json:"type"`
	Draft        bool                `json:"draft"`
	EmissionDate time.Time           `json:"emission_date"`
	Lines        []LineInput         `json:"lines"`
}

var defaultVATRate = decimal.NewFromFloat(0.20)

// CreateDocument validates and persists a new document. Drafts receive a
// temporary token instead of a legal number and are stored as quotes.
func (e *LifecycleEngine) CreateDocument(in CreateDocumentInput) (*models.Document, error) {
	return e.create(in, false)
}

func (e *LifecycleEngine) create(in CreateDocumentInput, system bool) (*models.Document, error) {
	exists, err := e.store.ClientExists(in.ClientID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrClientNotFound
	}
	// System-generated documents (credit notes, promotion siblings) carry
	// pre-validated content and skip the emptiness check.
	if len(in.Lines) == 0 && !system {
		return nil, ErrEmptyDocument
	}

	doc := &models.Document{
		CenterID: in.CenterID,
		ClientID: in.ClientID,
		FolderID: in.FolderID,
		Type:     in.Type,
	}
	if doc.Type == "" {
		doc.Type = models.TypeInvoice
	}
	doc.EmissionDate = in.EmissionDate
	if doc.EmissionDate.IsZero() {
		doc.EmissionDate = time.Now()
	}

	for _, l := range in.Lines {
		doc.Lines = append(doc.Lines, buildLine(l))
	}
	totalTTC, totalHT, totalTVA := sumLines(in.Lines)
	doc.TotalTTC = totalTTC
	doc.TotalHT = totalHT
	doc.TotalTVA = totalTVA
	doc.RemainingBalance = totalTTC

	err = e.store.WithTx(func(tx *store.DocumentStore) error {
		if in.Draft {
			// Entering draft state re-files the record on the quote track.
			doc.Type = models.TypeQuote
			doc.Status = models.StatusDraft
			doc.Number = models.NewDraftNumber()
		} else {
			doc.Status = models.StatusValid
			number, allocErr := e.alloc.Allocate(tx.DB(), doc.Type, doc.EmissionDate.Year())
			if allocErr != nil {
				return allocErr
			}
			doc.Number = number
		}
		return tx.CreateDocument(doc)
	})
	if err != nil {
		return nil, err
	}
	e.log.Info().Str("number", doc.Number).Str("type", string(doc.Type)).Msg("document created")
	return doc, nil
}

func buildLine(l LineInput) models.DocumentLine {
	total := l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))).Sub(l.Discount)
	return models.DocumentLine{
		Description: l.Description,
		Quantity:    l.Quantity,
		UnitPrice:   l.UnitPrice,
		Discount:    l.Discount,
		TotalTTC:    total,
	}
}

func sumLines(lines []LineInput) (ttc, ht, tva decimal.Decimal) {
	ttc, ht, tva = decimal.Zero, decimal.Zero, decimal.Zero
	for _, l := range lines {
		lineTTC := l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))).Sub(l.Discount)
		rate := l.VATRate
		if rate.IsZero() {
			rate = defaultVATRate
		}
		lineHT := lineTTC.Div(decimal.NewFromInt(1).Add(rate)).Round(2)
		ttc = ttc.Add(lineTTC)
		ht = ht.Add(lineHT)
		tva = tva.Add(lineTTC.Sub(lineHT))
	}
	return ttc, ht, tva
}

// signFlip negates a monetary amount while preserving magnitude, so a line
// that is already negative (a correction) is not negated twice.
func signFlip(d decimal.Decimal) decimal.Decimal {
	return d.Abs().Neg()
}

// UpdateStatus applies a status change. Targeting VALID on a draft triggers
// promotion and returns the new official document; other changes are plain
// field updates on the same document.
func (e *LifecycleEngine) UpdateStatus(docID uint, target models.DocumentStatus) (*models.Document, error) {
	doc, err := e.store.GetDocument(docID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, err
	}
	if doc.IsDraft() && target == models.StatusValid {
		return e.Promote(docID)
	}
	if err := e.store.UpdateDocumentFields(docID, map[string]any{"status": target}); err != nil {
		return nil, err
	}
	doc.Status = target
	return doc, nil
}

// Promote turns a draft into a cancelled draft plus a new officially numbered
// invoice, carrying the payments across. The whole protocol is one
// transaction: a failure at any step leaves no payment double-owned and no
// folder linked to two live documents.
func (e *LifecycleEngine) Promote(docID uint) (*models.Document, error) {
	var promoted *models.Document
	err := e.store.WithTx(func(tx *store.DocumentStore) error {
		draft, err := tx.GetDocument(docID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrDocumentNotFound
		}
		if err != nil {
			return err
		}
		if !draft.IsDraft() {
			return fmt.Errorf("document %s is not a draft", draft.Number)
		}

		now := time.Now()
		sourceFolder := draft.FolderID

		// 1. Credit note cancelling the draft's fiscal effect. Never linked to
		// the folder: the folder slot belongs to the replacement invoice.
		creditNote, err := e.issueCreditNote(tx, draft, fmt.Sprintf("annulation du brouillon %s", draft.Number))
		if err != nil {
			return err
		}

		// 2. New official invoice with the draft's content, folder attached
		// only after the draft has released it.
		number, err := e.alloc.Allocate(tx.DB(), models.TypeInvoice, now.Year())
		if err != nil {
			return err
		}
		newDoc := &models.Document{
			CenterID:         draft.CenterID,
			Type:             models.TypeInvoice,
			Number:           number,
			Status:           models.StatusValid,
			ClientID:         draft.ClientID,
			TotalHT:          draft.TotalHT,
			TotalTVA:         draft.TotalTVA,
			TotalTTC:         draft.TotalTTC,
			RemainingBalance: draft.TotalTTC,
			EmissionDate:     now,
			Audit: models.AuditTrail{
				PreviousNumber: draft.Number,
				SourceFolderID: sourceFolder,
				RecordedAt:     &now,
			},
		}
		for _, l := range draft.Lines {
			newDoc.Lines = append(newDoc.Lines, models.DocumentLine{
				Description: l.Description,
				Quantity:    l.Quantity,
				UnitPrice:   l.UnitPrice,
				Discount:    l.Discount,
				TotalTTC:    l.TotalTTC,
			})
		}
		if err := tx.CreateDocument(newDoc); err != nil {
			return err
		}

		// 3. Re-point the draft's payments to the new document.
		if err := tx.RelocatePayments(draft.ID, newDoc.ID); err != nil {
			return err
		}

		// 4. Cancel the draft and release its folder slot.
		if err := tx.UpdateDocumentFields(draft.ID, map[string]any{
			"status":              models.StatusCancelled,
			"folder_id":           nil,
			"audit_superseded_by": newDoc.Number,
			"audit_recorded_at":   now,
		}); err != nil {
			return err
		}

		// 5. Reconcile the new document against its now-owned payments and
		// re-attach the folder.
		payments, err := tx.PaymentsForDocument(newDoc.ID)
		if err != nil {
			return err
		}
		paid := e.ledger.PaidSum(payments)
		newDoc.RemainingBalance = e.ledger.Remaining(newDoc.TotalTTC, paid)
		newDoc.Status = e.ledger.ComputeStatus(newDoc.TotalTTC, paid)
		newDoc.FolderID = sourceFolder
		if err := tx.SaveDocument(newDoc); err != nil {
			return err
		}
		newDoc.Payments = payments

		e.log.Info().
			Str("draft", draft.Number).
			Str("invoice", newDoc.Number).
			Str("credit_note", creditNote.Number).
			Msg("draft promoted")
		promoted = newDoc
		return nil
	})
	if err != nil {
		return nil, err
	}
	// 6. The new document is the object of record from here on.
	return promoted, nil
}

// issueCreditNote creates the sign-inverted sibling of src inside the current
// transaction. Remaining balance is zero: a credit note is never paid against.
func (e *LifecycleEngine) issueCreditNote(tx *store.DocumentStore, src *models.Document, reason string) (*models.Document, error) {
	now := time.Now()
	number, err := e.alloc.Allocate(tx.DB(), models.TypeCreditNote, now.Year())
	if err != nil {
		return nil, err
	}
	cn := &models.Document{
		CenterID:         src.CenterID,
		Type:             models.TypeCreditNote,
		Number:           number,
		Status:           models.StatusValid,
		ClientID:         src.ClientID,
		TotalHT:          signFlip(src.TotalHT),
		TotalTVA:         signFlip(src.TotalTVA),
		TotalTTC:         signFlip(src.TotalTTC),
		RemainingBalance: decimal.Zero,
		EmissionDate:     now,
		Audit: models.AuditTrail{
			PreviousNumber: src.Number,
			SourceFolderID: src.FolderID,
			Reason:         reason,
			RecordedAt:     &now,
		},
	}
	for _, l := range src.Lines {
		cn.Lines = append(cn.Lines, models.DocumentLine{
			Description: l.Description,
			Quantity:    l.Quantity,
			UnitPrice:   signFlip(l.UnitPrice),
			Discount:    l.Discount,
			TotalTTC:    signFlip(l.TotalTTC),
		})
	}
	if err := tx.CreateDocument(cn); err != nil {
		return nil, err
	}
	return cn, nil
}

// DeleteAction discriminates the two deletion outcomes.
type DeleteAction string

const (
	ActionDeleted           DeleteAction = "DELETED"
	ActionCreditNoteCreated DeleteAction = "CREDIT_NOTE_CREATED"
)

// DeleteOutcome is the tagged result of Delete. Callers must branch on
// Action: a non-last official document is never removed, it is cancelled and
// compensated by CreditNote.
type DeleteOutcome struct {
	Action     DeleteAction     `json:"action"`
	CreditNote *models.Document `json:"credit_note,omitempty"`
}

// Delete removes a document when that cannot break numbering continuity
// (drafts, and the most recent official document of a type, payments
// included), and otherwise cancels it behind a freshly issued credit note.
func (e *LifecycleEngine) Delete(docID uint) (DeleteOutcome, error) {
	var outcome DeleteOutcome
	err := e.store.WithTx(func(tx *store.DocumentStore) error {
		doc, err := tx.GetDocument(docID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrDocumentNotFound
		}
		if err != nil {
			return err
		}

		isLast := true
		if doc.IsOfficial() {
			newer, err := tx.HasNewerDocument(doc.Type, doc.Number)
			if err != nil {
				return err
			}
			isLast = !newer
		}

		if isLast {
			// Removing payment history is accepted for drafts and the most
			// recent document only.
			if err := tx.HardDeleteDocument(doc.ID); err != nil {
				return err
			}
			outcome = DeleteOutcome{Action: ActionDeleted}
			e.log.Info().Str("number", doc.Number).Msg("document deleted")
			return nil
		}

		// Already cancelled means already compensated: a second credit note
		// would double the correction.
		if doc.Status == models.StatusCancelled {
			return ErrDocumentCancelled
		}

		// Deleting would leave a gap in the fiscal sequence: cancel and
		// compensate instead.
		cn, err := e.issueCreditNote(tx, doc, fmt.Sprintf("annulation de %s", doc.Number))
		if err != nil {
			return err
		}
		now := time.Now()
		if err := tx.UpdateDocumentFields(doc.ID, map[string]any{
			"status":              models.StatusCancelled,
			"folder_id":           nil,
			"audit_superseded_by": cn.Number,
			"audit_reason":        fmt.Sprintf("annulé par %s", cn.Number),
			"audit_recorded_at":   now,
		}); err != nil {
			return err
		}
		outcome = DeleteOutcome{Action: ActionCreditNoteCreated, CreditNote: cn}
		e.log.Info().Str("number", doc.Number).Str("credit_note", cn.Number).Msg("document cancelled by credit note")
		return nil
	})
	if err != nil {
		return DeleteOutcome{}, err
	}
	return outcome, nil
}

// SweepStaleDrafts cancels payment-free drafts older than the retention
// window. Idempotent: cancelled drafts no longer match the sweep filter.
func (e *LifecycleEngine) SweepStaleDrafts() (int, error) {
	cutoff := time.Now().AddDate(0, -DraftRetention, 0)
	swept := 0
	err := e.store.WithTx(func(tx *store.DocumentStore) error {
		drafts, err := tx.FindStaleDrafts(cutoff)
		if err != nil {
			return err
		}
		now := time.Now()
		for _, d := range drafts {
			if err := tx.UpdateDocumentFields(d.ID, map[string]any{
				"status":            models.StatusCancelled,
				"audit_reason":      "brouillon expiré (balayage automatique)",
				"audit_recorded_at": now,
			}); err != nil {
				return err
			}
			swept++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if swept > 0 {
		e.log.Info().Int("count", swept).Msg("stale drafts cancelled")
	}
	return swept, nil
}

var guardStatuses = []models.DocumentStatus{models.StatusValid, models.StatusPartial, models.StatusPaid}

// DeleteClient enforces the fiscal continuity guard, then cascades: payments
// of the client's documents, the documents, the folders, and finally the
// client row, all in one transaction. The client may only go if none of their
// official documents is followed by a more recent one system-wide.
func (e *LifecycleEngine) DeleteClient(clientID uint) error {
	return e.store.WithTx(func(tx *store.DocumentStore) error {
		exists, err := tx.ClientExists(clientID)
		if err != nil {
			return err
		}
		if !exists {
			return ErrClientNotFound
		}

		docs, err := tx.ClientDocumentsByStatus(clientID, guardStatuses)
		if err != nil {
			return err
		}
		if len(docs) > 0 {
			tail, err := tx.MostRecentDocuments(guardStatuses, len(docs))
			if err != nil {
				return err
			}
			tailIDs := make(map[uint]bool, len(tail))
			var conflicting string
			for _, d := range tail {
				tailIDs[d.ID] = true
				if d.ClientID != clientID && conflicting == "" {
					conflicting = d.Number
				}
			}
			for _, d := range docs {
				if !tailIDs[d.ID] {
					return &FiscalContinuityError{ClientID: clientID, ConflictingNumber: conflicting}
				}
			}
		}

		open, err := tx.HasOpenFolder(clientID)
		if err != nil {
			return err
		}
		if open {
			return ErrOpenFolder
		}

		if err := tx.CascadeDeleteClient(clientID); err != nil {
			return err
		}
		e.log.Info().Uint("client_id", clientID).Msg("client deleted with fiscal cascade")
		return nil
	})
}
