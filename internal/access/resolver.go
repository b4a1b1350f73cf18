package access

import "github.com/arquivoshare/portal-api/internal/models"

// CanAccess decides whether the principal may see a file given that file's
// grant rows. A file with no grants is unrestricted and visible to every
// principal. Otherwise at least one grant must match the principal's user
// id, one of its groups, or one of its categories. Grants only ever allow;
// there is no deny semantics.
//
// Every row is scope-checked even after a match is found: a malformed row
// (zero or multiple scope columns) always surfaces as an error instead of
// being skipped, so broken authorization state cannot hide behind a
// healthy grant.
func CanAccess(grants []models.Permission, p Principal) (bool, error) {
	if len(grants) == 0 {
		return true, nil
	}

	groups := toSet(p.GroupIDs)
	categories := toSet(p.CategoryIDs)

	allowed := false
	for _, grant := range grants {
		scope, subject, err := grant.Scope()
		if err != nil {
			return false, err
		}
		switch scope {
		case models.GrantScopeUser:
			if subject == p.UserID {
				allowed = true
			}
		case models.GrantScopeGroup:
			if _, ok := groups[subject]; ok {
				allowed = true
			}
		case models.GrantScopeCategory:
			if _, ok := categories[subject]; ok {
				allowed = true
			}
		}
	}
	return allowed, nil
}
