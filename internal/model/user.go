package model

import (
	"strings"
	"time"
)

const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// User is an account in the system. AssignedTags is stored as a
// comma-joined string of organization tag ids, mirroring the
// relational column the original Java service kept for the same
// purpose; callers use AssignedTagList/SetAssignedTagList to convert.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"size:64;not null;uniqueIndex" json:"username"`
	Email        string    `gorm:"size:128;uniqueIndex" json:"email"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	Role         string    `gorm:"size:16;not null;default:USER" json:"role"`
	AssignedTags string    `gorm:"type:text" json:"-"`
	PrimaryTag   string    `gorm:"size:128" json:"primary_tag"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (u *User) AssignedTagList() []string {
	if strings.TrimSpace(u.AssignedTags) == "" {
		return nil
	}
	parts := strings.Split(u.AssignedTags, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (u *User) SetAssignedTagList(tags []string) {
	u.AssignedTags = strings.Join(tags, ",")
}

func (u *User) HasAssignedTag(tagID string) bool {
	for _, t := range u.AssignedTagList() {
		if t == tagID {
			return true
		}
	}
	return false
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
