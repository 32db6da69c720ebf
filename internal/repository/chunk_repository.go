package repository

import (
	"fmt"

	"gorm.io/gorm"

	"knowledgehub/internal/model"
)

type ChunkRepository struct {
	db *gorm.DB
}

func NewChunkRepository(db *gorm.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

func (r *ChunkRepository) Upsert(chunk *model.ChunkRecord) error {
	if err := r.db.Where("fingerprint = ? AND chunk_index = ?", chunk.Fingerprint, chunk.ChunkIndex).
		Assign(chunk).
		FirstOrCreate(chunk).Error; err != nil {
		return fmt.Errorf("upsert chunk record failed: %w", err)
	}
	return nil
}

func (r *ChunkRepository) ListByFingerprint(fingerprint string) ([]model.ChunkRecord, error) {
	var chunks []model.ChunkRecord
	if err := r.db.Where("fingerprint = ?", fingerprint).Order("chunk_index").Find(&chunks).Error; err != nil {
		return nil, fmt.Errorf("list chunk records failed: %w", err)
	}
	return chunks, nil
}

func (r *ChunkRepository) DeleteByFingerprint(fingerprint string) error {
	if err := r.db.Where("fingerprint = ?", fingerprint).Delete(&model.ChunkRecord{}).Error; err != nil {
		return fmt.Errorf("delete chunk records failed: %w", err)
	}
	return nil
}
