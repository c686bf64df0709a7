// Package stats computes period revenue statistics over a record snapshot.
// Aggregation is a pure recomputation: run it again on the same snapshot and
// the numbers are identical. Volumes per period are small, so there is no
// incremental bookkeeping to get wrong.
package stats

import (
	"strconv"
	"strings"

	"github.com/hamaji/taxikko/internal/businessday"
	"github.com/hamaji/taxikko/internal/model"
	"github.com/hamaji/taxikko/internal/reconcile"
)

// HourBuckets is the number of 3-hour sales buckets in a day.
const HourBuckets = 8

// DayTotal is one business date's canonical sales and ride count.
type DayTotal struct {
	Sales int
	Rides int
}

// GenderSplit counts passengers by recorded gender across Detailed records.
type GenderSplit struct {
	Male   int
	Female int
}

// PeriodStats is the aggregate output consumed by dashboards and rankings.
// All monetary values are integers in the smallest currency unit.
type PeriodStats struct {
	PerPaymentMethod map[model.PaymentMethod]int
	PerDate          map[string]DayTotal
	PerHourBucket    [HourBuckets]int
	PerWeekday       [7]int
	GenderSplit      GenderSplit
	TotalSales       int
	TotalRides       int
}

// Aggregate computes stats for the records whose business dates fall inside
// the period. The snapshot may mix an open shift session's records with
// finalized history; dedup-by-ID and the mode-priority rule are applied before
// anything is summed.
func Aggregate(p businessday.Period, records []model.Record, res businessday.Resolver) *PeriodStats {
	out := &PeriodStats{
		PerPaymentMethod: make(map[model.PaymentMethod]int),
		PerDate:          make(map[string]DayTotal),
	}

	for _, rec := range reconcile.Canonical(records, res) {
		date := res.Resolve(rec.Timestamp)
		if !p.Contains(date) {
			continue
		}

		sales, rides := rec.Sales(), rec.Rides()
		out.TotalSales += sales
		out.TotalRides += rides

		key := date.Format(businessday.KeyLayout)
		day := out.PerDate[key]
		day.Sales += sales
		day.Rides += rides
		out.PerDate[key] = day

		method := rec.PaymentMethod
		if method == "" {
			method = model.PaymentUnknown
		}
		out.PerPaymentMethod[method] += sales

		out.PerHourBucket[hourBucket(rec, res)] += sales
		out.PerWeekday[int(date.Weekday())] += sales

		if !rec.IsSimple() {
			out.GenderSplit.Male += rec.PassengersMale
			out.GenderSplit.Female += rec.PassengersFemale
		}
	}

	return out
}

// AverageSalesPerDay returns total sales divided by the number of dates with
// any canonical record, zero when there are none.
func (s *PeriodStats) AverageSalesPerDay() int {
	if len(s.PerDate) == 0 {
		return 0
	}
	return s.TotalSales / len(s.PerDate)
}

// Percent returns part as a whole-number percentage of total, rounded to
// nearest, and 0 when total is 0.
func Percent(part, total int) int {
	if total == 0 {
		return 0
	}
	return (part*100 + total/2) / total
}

// hourBucket places a record's sales in one of eight 3-hour buckets. Detailed
// records bucket by their local timestamp hour; a SimpleSummary covers the
// whole day, so it buckets by its recorded start clock when one is set.
func hourBucket(rec model.Record, res businessday.Resolver) int {
	hour := rec.Timestamp.In(res.Loc).Hour()
	if rec.IsSimple() && rec.StartClock != "" {
		if h, ok := parseClockHour(rec.StartClock); ok {
			hour = h
		}
	}
	return hour / 3
}

// parseClockHour extracts the hour from an "HH:MM" clock string.
func parseClockHour(clock string) (int, bool) {
	head, _, found := strings.Cut(clock, ":")
	if !found {
		return 0, false
	}
	h, err := strconv.Atoi(head)
	if err != nil || h < 0 || h > 23 {
		return 0, false
	}
	return h, true
}
