// Package reconcile decides which records are canonical for a business date.
// A date is held by exactly one recording mode: either a single SimpleSummary
// entry, or any number of Detailed entries. When both coexist in storage the
// SimpleSummary wins for counting purposes; switching a populated date from
// one mode to the other is a destructive operation that callers must confirm.
package reconcile

import (
	"fmt"
	"sort"

	"github.com/hamaji/taxikko/internal/businessday"
	"github.com/hamaji/taxikko/internal/common"
	"github.com/hamaji/taxikko/internal/model"
)

// Conflict reports an attempted write of one mode onto a business date
// canonically held by the other mode. It carries both sides' totals so a
// caller can present the decision to the user. It is never auto-resolved.
type Conflict struct {
	Date          string
	ExistingMode  model.RecordMode
	IncomingMode  model.RecordMode
	ExistingSales int
	ExistingRides int
	IncomingSales int
	IncomingRides int
}

func (c *Conflict) Error() string {
	return fmt.Sprintf("reconciliation conflict on %s: %s records (%d sales, %d rides) would be replaced by %s (%d sales, %d rides)",
		c.Date, c.ExistingMode, c.ExistingSales, c.ExistingRides, c.IncomingMode, c.IncomingSales, c.IncomingRides)
}

func (c *Conflict) Unwrap() error {
	return common.ErrReconciliationConflict
}

// Merge combines finalized history with an open session's live records,
// deduplicating by ID. The live copy wins: an unfinalized "today" appears in
// both sources and must be counted exactly once.
func Merge(history, live []model.Record) []model.Record {
	merged := make([]model.Record, 0, len(history)+len(live))
	seen := make(map[string]int, len(history))

	for _, rec := range history {
		seen[rec.ID] = len(merged)
		merged = append(merged, rec)
	}
	for _, rec := range live {
		if i, ok := seen[rec.ID]; ok {
			merged[i] = rec
			continue
		}
		seen[rec.ID] = len(merged)
		merged = append(merged, rec)
	}
	return merged
}

// Canonical returns the deduplicated-by-ID counting records for the input,
// sorted by timestamp ascending. Per business date, a SimpleSummary record
// (the newest, if several linger) is the sole contributor; otherwise all
// Detailed records count. Excluded records are not deleted here.
func Canonical(records []model.Record, res businessday.Resolver) []model.Record {
	records = Merge(nil, records)

	byDate := make(map[string][]model.Record)
	for _, rec := range records {
		key := res.Key(rec.Timestamp)
		byDate[key] = append(byDate[key], rec)
	}

	var out []model.Record
	for _, recs := range byDate {
		if simple := newestSimple(recs); simple != nil {
			out = append(out, *simple)
			continue
		}
		out = append(out, recs...)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

// CheckWrite decides whether writing incoming onto its business date requires
// a confirmed mode switch. existing holds the date's current records (any
// order, may include records the incoming write would replace by ID). A nil
// return means the write is safe.
func CheckWrite(existing []model.Record, incoming model.Record, res businessday.Resolver) *Conflict {
	date := res.Key(incoming.Timestamp)

	others := make([]model.Record, 0, len(existing))
	for _, rec := range existing {
		if rec.ID == incoming.ID {
			continue // edit-in-place, not a mode switch
		}
		if res.Key(rec.Timestamp) != date {
			continue
		}
		others = append(others, rec)
	}
	if len(others) == 0 {
		return nil
	}

	existingMode := model.ModeDetailed
	if newestSimple(others) != nil {
		existingMode = model.ModeSimpleSummary
	}
	if existingMode == incoming.Mode {
		// Same mode: detailed records accumulate, a second summary is a
		// straight replacement of the first.
		return nil
	}

	sales, rides := 0, 0
	for i := range others {
		if existingMode == model.ModeSimpleSummary && !others[i].IsSimple() {
			continue // stale detailed records already excluded from totals
		}
		sales += others[i].Sales()
		rides += others[i].Rides()
	}

	return &Conflict{
		Date:          date,
		ExistingMode:  existingMode,
		IncomingMode:  incoming.Mode,
		ExistingSales: sales,
		ExistingRides: rides,
		IncomingSales: incoming.Sales(),
		IncomingRides: incoming.Rides(),
	}
}

// Superseded returns the IDs a confirmed mode switch must permanently delete:
// every record on incoming's business date whose mode differs from incoming's.
func Superseded(existing []model.Record, incoming model.Record, res businessday.Resolver) []string {
	date := res.Key(incoming.Timestamp)
	var ids []string
	for _, rec := range existing {
		if rec.ID == incoming.ID || res.Key(rec.Timestamp) != date {
			continue
		}
		if rec.Mode != incoming.Mode {
			ids = append(ids, rec.ID)
		}
	}
	return ids
}

// PriorSummaries returns the IDs of SimpleSummary records already sitting on
// incoming's business date, other than incoming itself. At most one summary
// may exist per date, so writing a new one replaces these outright; no
// confirmation is involved.
func PriorSummaries(existing []model.Record, incoming model.Record, res businessday.Resolver) []string {
	date := res.Key(incoming.Timestamp)
	var ids []string
	for _, rec := range existing {
		if rec.ID == incoming.ID || !rec.IsSimple() {
			continue
		}
		if res.Key(rec.Timestamp) == date {
			ids = append(ids, rec.ID)
		}
	}
	return ids
}

// newestSimple returns the latest-timestamped SimpleSummary in recs, or nil.
func newestSimple(recs []model.Record) *model.Record {
	var newest *model.Record
	for i := range recs {
		if !recs[i].IsSimple() {
			continue
		}
		if newest == nil || recs[i].Timestamp.After(newest.Timestamp) {
			newest = &recs[i]
		}
	}
	return newest
}
