package models

import "time"

// Client is the document-owning party. The engine only reads clients and runs
// the deletion guard; the rest of the client module (addresses, contact
// history, marketing fields) lives with the client collaborator.
type Client struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CenterID  uint      `gorm:"not null;index" json:"center_id"`
	Nom       string    `gorm:"not null;index" json:"nom"`
	Prenom    string    `json:"prenom"`
	Email     string    `gorm:"index" json:"email"`
	Telephone string    `json:"telephone"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FolderStatus mirrors the fiche states the deletion guard cares about.
type FolderStatus string

const (
	FolderInProgress FolderStatus = "EN_COURS"
	FolderDelivered  FolderStatus = "LIVREE"
	FolderClosed     FolderStatus = "CLOTUREE"
)

// Folder is the client fiche a document may originate from (one live document
// per folder). Folder state is owned by the folder collaborator; the engine
// reads it for linkage and the deletion guard.
type Folder struct {
	ID        uint         `gorm:"primaryKey" json:"id"`
	CenterID  uint         `gorm:"not null;index" json:"center_id"`
	ClientID  uint         `gorm:"not null;index" json:"client_id"`
	Status    FolderStatus `gorm:"not null" json:"status"`
	Label     string       `json:"label"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}
