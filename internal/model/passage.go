package model

import "time"

// Passage is the relational mirror of a search.Document that the
// ingestion worker indexes into the SearchStore. The worker writes
// these rows and then embeds the same chunk text it still holds in
// memory; it does not read the rows back. Indexed is set once the
// file's documents are indexed. Deleting a file
// (UploadService.DeleteFile) does not remove its Passage rows.
type Passage struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Fingerprint string    `gorm:"size:64;not null;index" json:"fingerprint"`
	ChunkID     int       `gorm:"not null" json:"chunk_id"`
	Content     string    `gorm:"type:text;not null" json:"content"`
	UserID      uint      `gorm:"not null;index" json:"user_id"`
	ScopeTag    string    `gorm:"size:128;index" json:"scope_tag"`
	IsPublic    bool      `gorm:"not null;default:false" json:"is_public"`
	Indexed     bool      `gorm:"not null;default:false" json:"indexed"`
	CreatedAt   time.Time `json:"created_at"`
}
