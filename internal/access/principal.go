// Package access is the portal's visibility and permission core: pure
// decision logic over snapshots of the entity store. Nothing in this
// package performs I/O or mutates state; callers load the rows, the
// package answers who may see what.
package access

import "github.com/arquivoshare/portal-api/internal/models"

// Principal is the requesting user together with its role and derived
// group/category memberships.
type Principal struct {
	UserID      string
	Role        models.UserRole
	GroupIDs    []string
	CategoryIDs []string
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
