package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"knowledgehub/internal/model"
)

type OrgTagRepository struct {
	db *gorm.DB
}

func NewOrgTagRepository(db *gorm.DB) *OrgTagRepository {
	return &OrgTagRepository{db: db}
}

func (r *OrgTagRepository) Create(tag *model.OrganizationTag) error {
	if err := r.db.Create(tag).Error; err != nil {
		return fmt.Errorf("create org tag failed: %w", err)
	}
	return nil
}

func (r *OrgTagRepository) GetByID(id string) (*model.OrganizationTag, error) {
	var tag model.OrganizationTag
	if err := r.db.Where("id = ?", id).First(&tag).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query org tag failed: %w", err)
	}
	return &tag, nil
}

func (r *OrgTagRepository) List() ([]model.OrganizationTag, error) {
	var tags []model.OrganizationTag
	if err := r.db.Order("id").Find(&tags).Error; err != nil {
		return nil, fmt.Errorf("list org tags failed: %w", err)
	}
	return tags, nil
}

func (r *OrgTagRepository) Update(tag *model.OrganizationTag) error {
	if err := r.db.Save(tag).Error; err != nil {
		return fmt.Errorf("update org tag failed: %w", err)
	}
	return nil
}

func (r *OrgTagRepository) Delete(id string) error {
	if err := r.db.Where("id = ?", id).Delete(&model.OrganizationTag{}).Error; err != nil {
		return fmt.Errorf("delete org tag failed: %w", err)
	}
	return nil
}

// CountChildren counts tags whose parent_id is id, used to refuse
// deleting a tag that still has descendants.
func (r *OrgTagRepository) CountChildren(id string) (int64, error) {
	var count int64
	if err := r.db.Model(&model.OrganizationTag{}).Where("parent_id = ?", id).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count org tag children failed: %w", err)
	}
	return count, nil
}
