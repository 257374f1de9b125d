package store

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/optisaas25/fiscal-engine/internal/models"
)

// ErrNotFound is returned by lookups when no row matches.
var ErrNotFound = errors.New("record not found")

// DocumentStore is the persistence boundary for documents, their lines, and
// their payments. Every multi-document protocol runs through WithTx so a
// failure at any step rolls back the whole call.
type DocumentStore struct {
	db *gorm.DB
}

func New(db *gorm.DB) *DocumentStore { return &DocumentStore{db: db} }

// DB exposes the underlying handle for components that compose SQL inside the
// current transaction (the sequence allocator).
func (s *DocumentStore) DB() *gorm.DB { return s.db }

// WithTx runs fn inside a single transaction. fn receives a store bound to the
// transaction; returning an error rolls everything back.
func (s *DocumentStore) WithTx(fn func(*DocumentStore) error) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return fn(&DocumentStore{db: tx})
	})
}

// --- documents ---

func (s *DocumentStore) CreateDocument(doc *models.Document) error {
	return s.db.Create(doc).Error
}

// GetDocument loads a document with its lines and payments.
func (s *DocumentStore) GetDocument(id uint) (*models.Document, error) {
	var doc models.Document
	err := s.db.Preload("Lines").Preload("Payments").First(&doc, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// SaveDocument persists all scalar fields of doc. Lines and payments are
// managed through their own calls.
func (s *DocumentStore) SaveDocument(doc *models.Document) error {
	return s.db.Omit("Lines", "Payments", "Client").Save(doc).Error
}

// UpdateDocumentFields applies a partial column update.
func (s *DocumentStore) UpdateDocumentFields(id uint, fields map[string]any) error {
	return s.db.Model(&models.Document{}).Where("id = ?", id).Updates(fields).Error
}

// HardDeleteDocument removes the document with its lines and payments.
// Reserved for drafts and the most recent official document of a type.
func (s *DocumentStore) HardDeleteDocument(id uint) error {
	if err := s.db.Where("document_id = ?", id).Delete(&models.Payment{}).Error; err != nil {
		return err
	}
	if err := s.db.Where("document_id = ?", id).Delete(&models.DocumentLine{}).Error; err != nil {
		return err
	}
	return s.db.Delete(&models.Document{}, id).Error
}

// DocumentFilter scopes a listing. CenterID is mandatory: a zero center yields
// an empty result, never an unscoped query.
type DocumentFilter struct {
	CenterID uint
	Type     models.DocumentType
	Status   models.DocumentStatus
	ClientID uint
	Limit    int
	Offset   int
}

// ListDocuments returns center-scoped documents, newest first.
func (s *DocumentStore) ListDocuments(f DocumentFilter) ([]models.Document, int64, error) {
	if f.CenterID == 0 {
		return []models.Document{}, 0, nil
	}
	q := s.db.Model(&models.Document{}).Where("center_id = ?", f.CenterID)
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.ClientID != 0 {
		q = q.Where("client_id = ?", f.ClientID)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var docs []models.Document
	err := q.Preload("Lines").Order("id desc").Limit(limit).Offset(f.Offset).Find(&docs).Error
	return docs, total, err
}

// HasNewerDocument reports whether any document of the same type carries a
// strictly greater legal number. Draft tokens are excluded: drafts share the
// quote type but never take part in the numbering chain. Zero-padded sequences
// make the lexicographic comparison the numeric one up to 999 per year.
func (s *DocumentStore) HasNewerDocument(docType models.DocumentType, number string) (bool, error) {
	var count int64
	err := s.db.Model(&models.Document{}).
		Where("type = ? AND number > ? AND number NOT LIKE 'DRAFT-%'", docType, number).
		Count(&count).Error
	return count > 0, err
}

// FindStaleDrafts returns drafts created before olderThan that own no payment.
func (s *DocumentStore) FindStaleDrafts(olderThan time.Time) ([]models.Document, error) {
	var docs []models.Document
	err := s.db.
		Where("status = ? AND created_at < ?", models.StatusDraft, olderThan).
		Where("NOT EXISTS (SELECT 1 FROM payments WHERE payments.document_id = documents.id)").
		Find(&docs).Error
	return docs, err
}

// --- payments ---

func (s *DocumentStore) CreatePayment(p *models.Payment) error {
	return s.db.Create(p).Error
}

func (s *DocumentStore) GetPayment(id uint) (*models.Payment, error) {
	var p models.Payment
	err := s.db.First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *DocumentStore) SavePayment(p *models.Payment) error {
	return s.db.Save(p).Error
}

func (s *DocumentStore) DeletePayment(id uint) error {
	return s.db.Delete(&models.Payment{}, id).Error
}

// PaymentsForDocument returns every payment owned by the document.
func (s *DocumentStore) PaymentsForDocument(docID uint) ([]models.Payment, error) {
	var payments []models.Payment
	err := s.db.Where("document_id = ?", docID).Order("date asc, id asc").Find(&payments).Error
	return payments, err
}

// RelocatePayments re-points every payment of fromDoc to toDoc in one bulk
// update. Used during draft promotion.
func (s *DocumentStore) RelocatePayments(fromDoc, toDoc uint) error {
	return s.db.Model(&models.Payment{}).
		Where("document_id = ?", fromDoc).
		Update("document_id", toDoc).Error
}

// --- clients & folders (read side of the collaborators, plus the cascade) ---

func (s *DocumentStore) ClientExists(id uint) (bool, error) {
	var count int64
	err := s.db.Model(&models.Client{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

func (s *DocumentStore) GetClient(id uint) (*models.Client, error) {
	var c models.Client
	err := s.db.First(&c, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ClientDocumentsByStatus returns the client's documents restricted to the
// given statuses.
func (s *DocumentStore) ClientDocumentsByStatus(clientID uint, statuses []models.DocumentStatus) ([]models.Document, error) {
	var docs []models.Document
	err := s.db.Where("client_id = ? AND status IN ?", clientID, statuses).Find(&docs).Error
	return docs, err
}

// MostRecentDocuments returns the globally newest documents among the given
// statuses, newest first.
func (s *DocumentStore) MostRecentDocuments(statuses []models.DocumentStatus, limit int) ([]models.Document, error) {
	var docs []models.Document
	err := s.db.Where("status IN ?", statuses).
		Order("created_at desc, id desc").
		Limit(limit).
		Find(&docs).Error
	return docs, err
}

// HasOpenFolder reports whether the client still has a fiche in progress.
func (s *DocumentStore) HasOpenFolder(clientID uint) (bool, error) {
	var count int64
	err := s.db.Model(&models.Folder{}).
		Where("client_id = ? AND status = ?", clientID, models.FolderInProgress).
		Count(&count).Error
	return count > 0, err
}

// CascadeDeleteClient removes payments of the client's documents, then the
// documents with their lines, then the folders, then the client. Callers run
// this inside WithTx after the deletion guard has passed.
func (s *DocumentStore) CascadeDeleteClient(clientID uint) error {
	var docIDs []uint
	if err := s.db.Model(&models.Document{}).
		Where("client_id = ?", clientID).
		Pluck("id", &docIDs).Error; err != nil {
		return err
	}
	if len(docIDs) > 0 {
		if err := s.db.Where("document_id IN ?", docIDs).Delete(&models.Payment{}).Error; err != nil {
			return err
		}
		if err := s.db.Where("document_id IN ?", docIDs).Delete(&models.DocumentLine{}).Error; err != nil {
			return err
		}
		if err := s.db.Where("id IN ?", docIDs).Delete(&models.Document{}).Error; err != nil {
			return err
		}
	}
	if err := s.db.Where("client_id = ?", clientID).Delete(&models.Folder{}).Error; err != nil {
		return err
	}
	return s.db.Delete(&models.Client{}, clientID).Error
}
