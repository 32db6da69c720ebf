package repository

import (
	"fmt"

	"gorm.io/gorm"

	"knowledgehub/internal/model"
)

type PassageRepository struct {
	db *gorm.DB
}

func NewPassageRepository(db *gorm.DB) *PassageRepository {
	return &PassageRepository{db: db}
}

func (r *PassageRepository) CreateBatch(passages []model.Passage) error {
	if len(passages) == 0 {
		return nil
	}
	if err := r.db.Create(&passages).Error; err != nil {
		return fmt.Errorf("create passages batch failed: %w", err)
	}
	return nil
}

func (r *PassageRepository) ListByFingerprint(fingerprint string) ([]model.Passage, error) {
	var passages []model.Passage
	if err := r.db.Where("fingerprint = ?", fingerprint).Order("chunk_id").Find(&passages).Error; err != nil {
		return nil, fmt.Errorf("list passages failed: %w", err)
	}
	return passages, nil
}

func (r *PassageRepository) MarkIndexed(fingerprint string) error {
	if err := r.db.Model(&model.Passage{}).Where("fingerprint = ?", fingerprint).
		Update("indexed", true).Error; err != nil {
		return fmt.Errorf("mark passages indexed failed: %w", err)
	}
	return nil
}

func (r *PassageRepository) DeleteByFingerprint(fingerprint string) error {
	if err := r.db.Where("fingerprint = ?", fingerprint).Delete(&model.Passage{}).Error; err != nil {
		return fmt.Errorf("delete passages failed: %w", err)
	}
	return nil
}
