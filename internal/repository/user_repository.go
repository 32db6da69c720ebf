package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"knowledgehub/internal/model"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(user *model.User) error {
	if err := r.db.Create(user).Error; err != nil {
		return fmt.Errorf("create user failed: %w", err)
	}
	return nil
}

func (r *UserRepository) Update(user *model.User) error {
	if err := r.db.Save(user).Error; err != nil {
		return fmt.Errorf("update user failed: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByUsername(username string) (*model.User, error) {
	var user model.User
	if err := r.db.Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query user by username failed: %w", err)
	}
	return &user, nil
}

func (r *UserRepository) GetByID(id uint) (*model.User, error) {
	var user model.User
	if err := r.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query user by id failed: %w", err)
	}
	return &user, nil
}

func (r *UserRepository) ListByRole(role string) ([]model.User, error) {
	var users []model.User
	if err := r.db.Where("role = ?", role).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list users by role failed: %w", err)
	}
	return users, nil
}

func (r *UserRepository) CountByRole(role string) (int64, error) {
	var count int64
	if err := r.db.Model(&model.User{}).Where("role = ?", role).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count users by role failed: %w", err)
	}
	return count, nil
}

// CountAssignedTag counts users referencing tagID, either as their
// primary tag or anywhere in their comma-joined assigned_tags column.
// Used to refuse deleting a tag still in use. AssignedTags has no
// normalized join table (see model.User), so membership is matched
// with the same exact/prefix/suffix/infix LIKE combination
// AssignedTagList's comma-joined convention implies.
func (r *UserRepository) CountAssignedTag(tagID string) (int64, error) {
	var count int64
	err := r.db.Model(&model.User{}).
		Where(
			"primary_tag = ? OR assigned_tags = ? OR assigned_tags LIKE ? OR assigned_tags LIKE ? OR assigned_tags LIKE ?",
			tagID,
			tagID,
			tagID+",%",
			"%,"+tagID,
			"%,"+tagID+",%",
		).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count users assigned tag failed: %w", err)
	}
	return count, nil
}
