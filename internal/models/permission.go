package models

import (
	"time"

	appErrors "github.com/arquivoshare/portal-api/pkg/errors"
)

// GrantScope identifies which principal dimension a permission row targets.
type GrantScope string

const (
	GrantScopeUser     GrantScope = "user"
	GrantScopeGroup    GrantScope = "group"
	GrantScopeCategory GrantScope = "category"
)

// Permission is a grant row scoping a file to exactly one of a user, a
// group, or a category. A file with no permission rows is unrestricted.
type Permission struct {
	ID         string    `db:"id" json:"id"`
	FileID     string    `db:"file_id" json:"file_id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	GroupID    *string   `db:"group_id" json:"group_id,omitempty"`
	CategoryID *string   `db:"category_id" json:"category_id,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Scope resolves the row into its single (scope, subject) pair. Rows with
// zero or multiple scope columns set violate the storage invariant and are
// rejected rather than interpreted: guessing would either over-expose the
// file (treating it as unrestricted) or hide it from its intended audience.
func (p Permission) Scope() (GrantScope, string, error) {
	set := 0
	var scope GrantScope
	var subject string
	if p.UserID != nil && *p.UserID != "" {
		set++
		scope, subject = GrantScopeUser, *p.UserID
	}
	if p.GroupID != nil && *p.GroupID != "" {
		set++
		scope, subject = GrantScopeGroup, *p.GroupID
	}
	if p.CategoryID != nil && *p.CategoryID != "" {
		set++
		scope, subject = GrantScopeCategory, *p.CategoryID
	}
	if set != 1 {
		return "", "", appErrors.Clone(appErrors.ErrMalformedGrant,
			"permission "+p.ID+" must set exactly one of user_id, group_id, category_id")
	}
	return scope, subject, nil
}
