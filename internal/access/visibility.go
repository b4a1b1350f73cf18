package access

import (
	"time"

	"github.com/arquivoshare/portal-api/internal/models"
)

// Evaluator decides whether a file sits inside its publication window.
// All date arithmetic happens in one fixed reference location chosen at
// deployment time; evaluating the same window in mixed zones would break
// the inclusive end-of-day rule.
type Evaluator struct {
	loc *time.Location
}

// NewEvaluator returns an evaluator pinned to the given location. A nil
// location falls back to UTC.
func NewEvaluator(loc *time.Location) *Evaluator {
	if loc == nil {
		loc = time.UTC
	}
	return &Evaluator{loc: loc}
}

// IsPublished reports whether the file is visible to a non-privileged
// viewer at the given instant.
//
// It fails closed: soft-deleted rows and any status other than active are
// never published. Permanent files are always published, status permitting.
// Otherwise the instant must fall inside [start_date, end_date], with the
// end date counting through 23:59:59.999 of its calendar day. A window
// whose start lies after its end is simply never satisfied; that is a
// valid (if user-erroneous) terminal state, not an error.
//
// Admin listings skip this check entirely; that bypass belongs to the
// caller's role handling, not to this function.
func (e *Evaluator) IsPublished(f models.File, now time.Time) bool {
	if f.DeletedAt != nil {
		return false
	}
	if f.Status != "" && f.Status != models.FileStatusActive {
		return false
	}
	if f.IsPermanent {
		return true
	}

	startOk := f.StartDate == nil || !now.Before(e.startOfDay(*f.StartDate))
	endOk := f.EndDate == nil || !now.After(e.endOfDay(*f.EndDate))
	return startOk && endOk
}

// startOfDay and endOfDay rebuild the bounds of d's calendar day in the
// reference location. The stored value's own zone is ignored: dates arrive
// from DATE columns as UTC midnight, and converting first would shift the
// day for any reference zone west of UTC.

func (e *Evaluator) startOfDay(d time.Time) time.Time {
	year, month, day := d.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, e.loc)
}

func (e *Evaluator) endOfDay(d time.Time) time.Time {
	year, month, day := d.Date()
	return time.Date(year, month, day, 23, 59, 59, int(999*time.Millisecond), e.loc)
}
