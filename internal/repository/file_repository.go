package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"knowledgehub/internal/model"
)

type FileRepository struct {
	db *gorm.DB
}

func NewFileRepository(db *gorm.DB) *FileRepository {
	return &FileRepository{db: db}
}

func (r *FileRepository) Create(file *model.FileRecord) error {
	if err := r.db.Create(file).Error; err != nil {
		return fmt.Errorf("create file record failed: %w", err)
	}
	return nil
}

func (r *FileRepository) Update(file *model.FileRecord) error {
	if err := r.db.Save(file).Error; err != nil {
		return fmt.Errorf("update file record failed: %w", err)
	}
	return nil
}

func (r *FileRepository) GetByFingerprintAndUser(fingerprint string, userID uint) (*model.FileRecord, error) {
	var file model.FileRecord
	if err := r.db.Where("fingerprint = ? AND user_id = ?", fingerprint, userID).First(&file).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query file record failed: %w", err)
	}
	return &file, nil
}

func (r *FileRepository) GetByFingerprint(fingerprint string) (*model.FileRecord, error) {
	var file model.FileRecord
	if err := r.db.Where("fingerprint = ?", fingerprint).First(&file).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query file record failed: %w", err)
	}
	return &file, nil
}

func (r *FileRepository) ListByUser(userID uint) ([]model.FileRecord, error) {
	var files []model.FileRecord
	if err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&files).Error; err != nil {
		return nil, fmt.Errorf("list file records failed: %w", err)
	}
	return files, nil
}

func (r *FileRepository) DeleteByFingerprintAndUser(fingerprint string, userID uint) error {
	if err := r.db.Where("fingerprint = ? AND user_id = ?", fingerprint, userID).
		Delete(&model.FileRecord{}).Error; err != nil {
		return fmt.Errorf("delete file record failed: %w", err)
	}
	return nil
}

// DeleteByFingerprint deletes a file record by fingerprint alone, for
// callers (admin, or an authorized non-owner) that have already run
// their own ownership/visibility decision rather than relying on the
// user_id match DeleteByFingerprintAndUser enforces.
func (r *FileRepository) DeleteByFingerprint(fingerprint string) error {
	if err := r.db.Where("fingerprint = ?", fingerprint).
		Delete(&model.FileRecord{}).Error; err != nil {
		return fmt.Errorf("delete file record failed: %w", err)
	}
	return nil
}

// GetByFingerprints loads every file record matching any of
// fingerprints in one query, for batch lookups like
// HybridSearchService.attachFileNames that would otherwise issue one
// round trip per distinct fingerprint.
func (r *FileRepository) GetByFingerprints(fingerprints []string) ([]model.FileRecord, error) {
	if len(fingerprints) == 0 {
		return nil, nil
	}
	var files []model.FileRecord
	if err := r.db.Where("fingerprint IN ?", fingerprints).Find(&files).Error; err != nil {
		return nil, fmt.Errorf("query file records failed: %w", err)
	}
	return files, nil
}

// ListAccessible returns every merged file the caller can see: their
// own uploads, anything public, and anything scoped to one of tags.
// An empty tags slice still matches own/public files — GORM's IN ()
// is invalid on some backends, so the tag branch is dropped from the
// query instead of passed an empty slice.
func (r *FileRepository) ListAccessible(userID uint, tags []string) ([]model.FileRecord, error) {
	query := r.db.Where("status = ?", model.FileStatusMerged)
	if len(tags) > 0 {
		query = query.Where("user_id = ? OR is_public = ? OR scope_tag IN ?", userID, true, tags)
	} else {
		query = query.Where("user_id = ? OR is_public = ?", userID, true)
	}
	var files []model.FileRecord
	if err := query.Order("created_at DESC").Find(&files).Error; err != nil {
		return nil, fmt.Errorf("list accessible file records failed: %w", err)
	}
	return files, nil
}

// GetAccessibleByFileName resolves a file by its (non-unique) display
// name, restricted the same way ListAccessible is. Used by the
// download endpoint, which spec.md has address by file name rather
// than by fingerprint.
func (r *FileRepository) GetAccessibleByFileName(fileName string, userID uint, tags []string) (*model.FileRecord, error) {
	query := r.db.Where("file_name = ? AND status = ?", fileName, model.FileStatusMerged)
	if len(tags) > 0 {
		query = query.Where("user_id = ? OR is_public = ? OR scope_tag IN ?", userID, true, tags)
	} else {
		query = query.Where("user_id = ? OR is_public = ?", userID, true)
	}
	var file model.FileRecord
	if err := query.Order("created_at DESC").First(&file).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query accessible file record failed: %w", err)
	}
	return &file, nil
}
