package models

import "time"

// Category is an operator-assigned classification users can be placed in.
// It behaves like a group but lives in its own namespace.
type Category struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description,omitempty"`
	CreatedBy   string    `db:"created_by" json:"created_by"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// CategoryWithCounts is the listing projection including how many files are
// scoped to the category and how many users belong to it.
type CategoryWithCounts struct {
	Category
	FileCount int `db:"file_count" json:"file_count"`
	UserCount int `db:"user_count" json:"user_count"`
}

// CategoryMembership maps a user into a category.
type CategoryMembership struct {
	ID         string    `db:"id" json:"id"`
	UserID     string    `db:"user_id" json:"user_id"`
	CategoryID string    `db:"category_id" json:"category_id"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
