package service

import (
	"time"

	"github.com/sakif/biblioteca/internal/model"
)

// Clock supplies "now". Overdue is decided against the clock's calendar date,
// so tests pin the clock instead of sleeping across midnight.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in the local time zone.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns the same instant.
type FixedClock time.Time

func (c FixedClock) Now() time.Time { return time.Time(c) }

// today truncates t to midnight of its own calendar day in its own location.
func today(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DeriveStatus computes the status of a book from its latest loan.
//
//	no loan                      → ""        (neutral)
//	returned                     → "Yes"     (neutral)
//	unreturned, due before today → "Overdue" (flagged)
//	unreturned otherwise         → "No"      (neutral)
//
// A due date that is not ISO 8601 yields "No": one bad row must not break
// the listing. The second return value reports that fallback so the caller
// can log it.
func DeriveStatus(dueDate *string, returned *bool, now time.Time) (model.Status, bool) {
	if dueDate == nil || returned == nil {
		return model.Status{Label: model.StatusNone}, false
	}
	if *returned {
		return model.Status{Label: model.StatusReturned}, false
	}

	day := today(now)
	due, err := time.ParseInLocation(model.DateLayout, *dueDate, day.Location())
	if err != nil {
		return model.Status{Label: model.StatusOut}, true
	}
	if due.Before(day) {
		return model.Status{Label: model.StatusOverdue, Flagged: true}, false
	}
	return model.Status{Label: model.StatusOut}, false
}
