package access

import (
	"sort"
	"time"

	"github.com/arquivoshare/portal-api/internal/models"
)

// Planner composes the visibility evaluator and permission resolver over a
// snapshot of the file set. It is a read-only projection: identical inputs
// produce identical ordered output.
type Planner struct {
	eval *Evaluator
}

// NewPlanner builds a planner around the given evaluator.
func NewPlanner(eval *Evaluator) *Planner {
	return &Planner{eval: eval}
}

// VisibleFiles returns the files the principal may see at the given
// instant.
//
// Admins receive the raw entity set: deleted, inactive and archived rows
// included. Operators and users see only files that are not soft-deleted,
// are inside their publication window, and carry a matching grant (or none
// at all). Both branches order by created_at descending with id ascending
// as the tie-break.
//
// Resolver errors propagate unchanged; the planner never substitutes a
// default visibility decision for ambiguous grant rows.
func (pl *Planner) VisibleFiles(files []models.File, grantsByFile map[string][]models.Permission, p Principal, now time.Time) ([]models.File, error) {
	out := make([]models.File, 0, len(files))

	if p.Role == models.RoleAdmin {
		out = append(out, files...)
	} else {
		for _, f := range files {
			if f.DeletedAt != nil {
				continue
			}
			if !pl.eval.IsPublished(f, now) {
				continue
			}
			ok, err := CanAccess(grantsByFile[f.ID], p)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			out = append(out, f)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	return out, nil
}

// CanView answers the single-file variant of VisibleFiles for detail and
// download endpoints: same checks, same admin bypass.
func (pl *Planner) CanView(f models.File, grants []models.Permission, p Principal, now time.Time) (bool, error) {
	if p.Role == models.RoleAdmin {
		return true, nil
	}
	if f.DeletedAt != nil {
		return false, nil
	}
	if !pl.eval.IsPublished(f, now) {
		return false, nil
	}
	return CanAccess(grants, p)
}
