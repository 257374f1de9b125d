package store

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/optisaas25/fiscal-engine/internal/db"
	"github.com/optisaas25/fiscal-engine/internal/models"
)

func newStore(t *testing.T) *DocumentStore {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(conn))
	return New(conn)
}

func seed(t *testing.T, s *DocumentStore, centerID uint, docType models.DocumentType, number string, status models.DocumentStatus) *models.Document {
	t.Helper()
	c := models.Client{CenterID: centerID, Nom: "Test"}
	require.NoError(t, s.DB().Create(&c).Error)
	doc := &models.Document{
		CenterID: centerID, ClientID: c.ID, Type: docType, Number: number, Status: status,
		TotalTTC: decimal.NewFromInt(100), RemainingBalance: decimal.NewFromInt(100),
	}
	require.NoError(t, s.CreateDocument(doc))
	return doc
}

func TestListDocumentsFailClosedWithoutCenter(t *testing.T) {
	s := newStore(t)
	seed(t, s, 1, models.TypeInvoice, "FAC-2025-001", models.StatusValid)

	docs, total, err := s.ListDocuments(DocumentFilter{CenterID: 0})
	require.NoError(t, err)
	require.Empty(t, docs)
	require.Zero(t, total)
}

func TestListDocumentsScopedByCenter(t *testing.T) {
	s := newStore(t)
	seed(t, s, 1, models.TypeInvoice, "FAC-2025-001", models.StatusValid)
	seed(t, s, 2, models.TypeInvoice, "FAC-2025-002", models.StatusValid)

	docs, total, err := s.ListDocuments(DocumentFilter{CenterID: 1})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.EqualValues(t, 1, total)
	require.Equal(t, "FAC-2025-001", docs[0].Number)

	docs, _, err = s.ListDocuments(DocumentFilter{CenterID: 1, Status: models.StatusPaid})
	require.NoError(t, err)
	require.Empty(t, docs)
}

func TestHasNewerDocument(t *testing.T) {
	s := newStore(t)
	seed(t, s, 1, models.TypeInvoice, "FAC-2025-001", models.StatusValid)
	seed(t, s, 1, models.TypeInvoice, "FAC-2025-002", models.StatusValid)
	seed(t, s, 1, models.TypeCreditNote, "AVR-2025-009", models.StatusValid)

	newer, err := s.HasNewerDocument(models.TypeInvoice, "FAC-2025-001")
	require.NoError(t, err)
	require.True(t, newer)

	// the credit note's number does not count against invoices
	newer, err = s.HasNewerDocument(models.TypeInvoice, "FAC-2025-002")
	require.NoError(t, err)
	require.False(t, newer)
}

func TestHasNewerDocumentIgnoresDraftTokens(t *testing.T) {
	s := newStore(t)
	seed(t, s, 1, models.TypeQuote, "DEV-2025-001", models.StatusValid)
	// drafts share the quote type; their tokens sort after DEV-* but are not
	// part of the numbering chain
	seed(t, s, 1, models.TypeQuote, "DRAFT-1756400000000000000", models.StatusDraft)

	newer, err := s.HasNewerDocument(models.TypeQuote, "DEV-2025-001")
	require.NoError(t, err)
	require.False(t, newer)
}

func TestFindStaleDrafts(t *testing.T) {
	s := newStore(t)
	old := seed(t, s, 1, models.TypeQuote, "DRAFT-1111", models.StatusDraft)
	paid := seed(t, s, 1, models.TypeQuote, "DRAFT-2222", models.StatusDraft)
	seed(t, s, 1, models.TypeQuote, "DRAFT-3333", models.StatusDraft) // fresh

	cutoffBreaker := time.Now().AddDate(0, -3, 0)
	for _, id := range []uint{old.ID, paid.ID} {
		require.NoError(t, s.DB().Model(&models.Document{}).Where("id = ?", id).
			Update("created_at", cutoffBreaker).Error)
	}
	require.NoError(t, s.CreatePayment(&models.Payment{
		DocumentID: paid.ID, Amount: decimal.NewFromInt(10),
		Mode: models.ModeCash, Status: models.PaymentCleared, Date: time.Now(),
	}))

	stale, err := s.FindStaleDrafts(time.Now().AddDate(0, -2, 0))
	require.NoError(t, err)
	require.Len(t, stale, 1)
	require.Equal(t, old.ID, stale[0].ID)
}

func TestRelocatePayments(t *testing.T) {
	s := newStore(t)
	from := seed(t, s, 1, models.TypeQuote, "DRAFT-4444", models.StatusDraft)
	to := seed(t, s, 1, models.TypeInvoice, "FAC-2025-001", models.StatusValid)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.CreatePayment(&models.Payment{
			DocumentID: from.ID, Amount: decimal.NewFromInt(10),
			Mode: models.ModeCard, Status: models.PaymentCleared, Date: time.Now(),
		}))
	}
	require.NoError(t, s.RelocatePayments(from.ID, to.ID))

	orphans, err := s.PaymentsForDocument(from.ID)
	require.NoError(t, err)
	require.Empty(t, orphans)
	moved, err := s.PaymentsForDocument(to.ID)
	require.NoError(t, err)
	require.Len(t, moved, 3)
}

func TestHardDeleteDocumentCascades(t *testing.T) {
	s := newStore(t)
	doc := seed(t, s, 1, models.TypeInvoice, "FAC-2025-001", models.StatusValid)
	require.NoError(t, s.DB().Create(&models.DocumentLine{
		DocumentID: doc.ID, Description: "verres", Quantity: 2,
		UnitPrice: decimal.NewFromInt(50), TotalTTC: decimal.NewFromInt(100),
	}).Error)
	require.NoError(t, s.CreatePayment(&models.Payment{
		DocumentID: doc.ID, Amount: decimal.NewFromInt(10),
		Mode: models.ModeCash, Status: models.PaymentCleared, Date: time.Now(),
	}))

	require.NoError(t, s.HardDeleteDocument(doc.ID))

	_, err := s.GetDocument(doc.ID)
	require.ErrorIs(t, err, ErrNotFound)
	for name, model := range map[string]any{"lines": &models.DocumentLine{}, "payments": &models.Payment{}} {
		var count int64
		require.NoError(t, s.DB().Model(model).Count(&count).Error, name)
		require.Zero(t, count, name)
	}
}

func TestWithTxRollsBack(t *testing.T) {
	s := newStore(t)
	client := models.Client{CenterID: 1, Nom: "Roll"}
	require.NoError(t, s.DB().Create(&client).Error)

	boom := fmt.Errorf("boom")
	err := s.WithTx(func(tx *DocumentStore) error {
		doc := &models.Document{
			CenterID: 1, ClientID: client.ID, Type: models.TypeInvoice,
			Number: "FAC-2025-001", Status: models.StatusValid,
		}
		if err := tx.CreateDocument(doc); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	var count int64
	require.NoError(t, s.DB().Model(&models.Document{}).Count(&count).Error)
	require.Zero(t, count)
}
