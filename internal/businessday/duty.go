package businessday

import (
	"math/rand"
	"sort"
	"time"
)

// DefaultDutyDays is the size of the candidate duty-day sample seeded when the
// closing day changes.
const DefaultDutyDays = 20

// weekday weights bias the sample toward working days.
var dutyWeights = map[time.Weekday]int{
	time.Sunday:    1,
	time.Monday:    3,
	time.Tuesday:   3,
	time.Wednesday: 3,
	time.Thursday:  3,
	time.Friday:    3,
	time.Saturday:  2,
}

// SampleDutyDays draws n distinct days from the period, biased toward
// weekdays, sorted ascending. Deterministic for a given rand source. If the
// period holds fewer than n days, every day is returned.
func SampleDutyDays(p Period, n int, r *rand.Rand) []time.Time {
	days := p.Days()
	if n >= len(days) {
		return days
	}

	weights := make([]int, len(days))
	total := 0
	for i, d := range days {
		weights[i] = dutyWeights[d.Weekday()]
		total += weights[i]
	}

	picked := make([]time.Time, 0, n)
	for len(picked) < n {
		target := r.Intn(total)
		for i, w := range weights {
			if w == 0 {
				continue
			}
			target -= w
			if target < 0 {
				picked = append(picked, days[i])
				total -= w
				weights[i] = 0
				break
			}
		}
	}

	sort.Slice(picked, func(i, j int) bool { return picked[i].Before(picked[j]) })
	return picked
}
