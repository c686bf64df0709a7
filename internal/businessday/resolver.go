// Package businessday implements the business calendar: resolving timestamps
// to business dates and computing billing period bounds. Everything here is
// pure and deterministic; callers pass reference times explicitly.
package businessday

import "time"

// KeyLayout is the canonical rendering of a business-date label.
const KeyLayout = "2006/01/02"

// Resolver maps timestamps to business dates. A business day runs from
// StartHour:00 on calendar day D until just before StartHour:00 the next day,
// so a 2 AM ride with StartHour 9 belongs to the previous calendar day.
type Resolver struct {
	Loc       *time.Location
	StartHour int
}

// NewResolver returns a resolver for the given start-of-business hour. A nil
// location defaults to time.Local; the same location must be used everywhere
// a timestamp is interpreted.
func NewResolver(startHour int, loc *time.Location) Resolver {
	if loc == nil {
		loc = time.Local
	}
	return Resolver{StartHour: startHour, Loc: loc}
}

// Resolve returns the business date containing ts, normalized to midnight in
// the resolver's location.
func (r Resolver) Resolve(ts time.Time) time.Time {
	ts = ts.In(r.Loc)
	y, m, d := ts.Date()
	date := time.Date(y, m, d, 0, 0, 0, 0, r.Loc)
	if ts.Hour() < r.StartHour {
		date = date.AddDate(0, 0, -1)
	}
	return date
}

// Key returns the business-date label for ts, e.g. "2025/03/09".
func (r Resolver) Key(ts time.Time) string {
	return r.Resolve(ts).Format(KeyLayout)
}
