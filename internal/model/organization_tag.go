package model

import "time"

// DefaultTagID is the tag every user implicitly belongs to, and the
// tag public documents fall back to when no other scope applies.
const DefaultTagID = "DEFAULT"

// PrivateTagPrefix marks a user's private, single-member tag
// (PRIVATE_<username>); the authorization guard refuses to let one
// user's documents under this prefix be read by anyone other than
// their owner and admins.
const PrivateTagPrefix = "PRIVATE_"

// OrganizationTag is a node in the tag forest used for access scoping.
// ParentID is empty for a root tag. Comparisons against tag ids are
// byte-exact string comparisons throughout the codebase (see
// DESIGN.md, Open Question 1).
type OrganizationTag struct {
	ID          string    `gorm:"primaryKey;size:128" json:"id"`
	Name        string    `gorm:"size:128;not null" json:"name"`
	Description string    `gorm:"size:255" json:"description"`
	ParentID    string    `gorm:"size:128;index" json:"parent_id"`
	CreatedBy   uint      `gorm:"index" json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
