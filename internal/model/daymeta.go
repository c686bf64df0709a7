package model

import "time"

// DayMetadata holds per-business-date state that lives independently of the
// date's revenue records: a free-form memo, an optional month override for
// goal attribution, accumulated rest minutes, and odometer readings. It is
// written when a shift finalizes or when the user edits it directly.
type DayMetadata struct {
	UpdatedAt       time.Time
	Date            string // business-date key, "2006/01/02"
	Memo            string
	AttributedMonth string // "2006/01" override; empty means the natural period
	RestMinutes     int
	StartOdometer   int
	EndOdometer     int
}
