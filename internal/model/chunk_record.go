package model

import "time"

// ChunkRecord is the metadata row for one uploaded byte-range chunk of
// a FileRecord. The bit ledger that tracks which indices have arrived
// lives in Redis (see internal/cache.UploadLedger); this table is the
// durable record used to drive the merge step. Grounded on manshu's
// ChunkInfo entity.
type ChunkRecord struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	Fingerprint      string    `gorm:"size:64;not null;uniqueIndex:idx_fp_index" json:"fingerprint"`
	ChunkIndex       int       `gorm:"not null;uniqueIndex:idx_fp_index" json:"chunk_index"`
	ChunkFingerprint string    `gorm:"size:64" json:"chunk_fingerprint"`
	StoragePath      string    `gorm:"size:512;not null" json:"storage_path"`
	Size             int64     `gorm:"not null" json:"size"`
	CreatedAt        time.Time `json:"created_at"`
}
