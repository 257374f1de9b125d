package models

import "time"

// SequenceCounter is the monotonic numbering source for a (type, year) pair.
// LastValue is only ever moved by an atomic in-database increment; the legacy
// max-of-table scan is used once, to seed the row for pre-existing data.
type SequenceCounter struct {
	ID        uint         `gorm:"primaryKey"`
	DocType   DocumentType `gorm:"not null;uniqueIndex:idx_seq_type_year"`
	Year      int          `gorm:"not null;uniqueIndex:idx_seq_type_year"`
	LastValue int64        `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
