package businessday

import (
	"fmt"
	"time"
)

// Period is an inclusive [Start, End] billing period at day granularity. Both
// bounds are midnight-normalized in the location they were computed for.
type Period struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether the day containing t falls inside the period.
func (p Period) Contains(t time.Time) bool {
	y, m, d := t.In(p.Start.Location()).Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, p.Start.Location())
	return !day.Before(p.Start) && !day.After(p.End)
}

// Days returns every day in the period, ascending.
func (p Period) Days() []time.Time {
	var days []time.Time
	for d := p.Start; !d.After(p.End); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

func (p Period) String() string {
	return fmt.Sprintf("[%s, %s]", p.Start.Format(KeyLayout), p.End.Format(KeyLayout))
}

// TimestampWindow converts the period into the half-open timestamp range
// [from, to) that covers its business days under the given start-of-business
// hour. A record belongs to the period iff its timestamp falls in the window.
func (p Period) TimestampWindow(startHour int) (from, to time.Time) {
	from = p.Start.Add(time.Duration(startHour) * time.Hour)
	to = p.End.AddDate(0, 0, 1).Add(time.Duration(startHour) * time.Hour)
	return from, to
}

// PeriodFor computes the billing period containing ref.
//
// shimebiDay 0 means the period is ref's calendar month. Otherwise the period
// closes on day shimebiDay of the current month when ref's day-of-month is at
// or before it, and of the next month when ref is past it; the start is the
// day after the previous closing day. Closing days past the end of their month
// clamp to the month's last day, so the returned End never needs adjusting.
//
// The function is total for any shimebiDay >= 0; restricting configured
// values to {0} ∪ [1,28] is the config layer's job.
func PeriodFor(ref time.Time, shimebiDay int, loc *time.Location) Period {
	if loc == nil {
		loc = time.Local
	}
	ref = ref.In(loc)
	y, m, _ := ref.Date()

	if shimebiDay == 0 {
		return Period{
			Start: time.Date(y, m, 1, 0, 0, 0, 0, loc),
			End:   time.Date(y, m+1, 0, 0, 0, 0, 0, loc),
		}
	}

	var end time.Time
	if ref.Day() <= shimebiDay {
		end = closingDay(y, m, shimebiDay, loc)
	} else {
		end = closingDay(y, m+1, shimebiDay, loc)
	}
	prevClose := closingDay(end.Year(), end.Month()-1, shimebiDay, loc)
	return Period{Start: prevClose.AddDate(0, 0, 1), End: end}
}

// closingDay returns day k of the given month, clamped to the month's last
// day. time.Date normalizes out-of-range months, so callers may pass m+1 or
// m-1 across year boundaries.
func closingDay(y int, m time.Month, k int, loc *time.Location) time.Time {
	lastDay := time.Date(y, m+1, 0, 0, 0, 0, 0, loc).Day()
	if k > lastDay {
		k = lastDay
	}
	return time.Date(y, m, k, 0, 0, 0, 0, loc)
}
