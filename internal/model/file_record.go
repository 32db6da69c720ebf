package model

import "time"

// FileStatusUploading and FileStatusMerged are the only two states a
// FileRecord ever holds. There is no backward transition and no third
// state: parse/embed/index outcome is tracked on the Passage rows the
// ingestion worker produces (Passage.Indexed), not here.
const (
	FileStatusUploading = "UPLOADING"
	FileStatusMerged    = "MERGED"
)

// FileRecord tracks one logical upload identified by its content
// fingerprint (md5) and owner, across the chunk-upload and merge
// lifecycle. Grounded on manshu's FileUpload entity.
type FileRecord struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Fingerprint string     `gorm:"size:64;not null;uniqueIndex:idx_fp_user" json:"fingerprint"`
	UserID      uint       `gorm:"not null;uniqueIndex:idx_fp_user;index" json:"user_id"`
	FileName    string     `gorm:"size:512;not null" json:"file_name"`
	TotalSize   int64      `gorm:"not null" json:"total_size"`
	TotalChunks int        `gorm:"not null" json:"total_chunks"`
	Status      string     `gorm:"size:16;not null;index" json:"status"`
	ScopeTag    string     `gorm:"size:128;index" json:"scope_tag"`
	IsPublic    bool       `gorm:"not null;default:false" json:"is_public"`
	MergedPath  string     `gorm:"size:512" json:"merged_path,omitempty"`
	MergedAt    *time.Time `json:"merged_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
