package mapping

import (
	"sort"
	"strings"
	"time"

	"pitchsheet/pkg/core/edgar"
	"pitchsheet/pkg/models"
)

const dateLayout = "2006-01-02"

// Duration windows in days. Anything outside is a stub, a restated range or a
// year-to-date cumulative figure.
const (
	annualMinDays    = 350
	annualMaxDays    = 380
	quarterlyMinDays = 80
	quarterlyMaxDays = 100
)

// extractPeriods returns the eligible observations of one concept, most recent
// first, truncated to numPeriods.
//
// Instant entries (no start date) skip the duration check. Source entries are
// chronological, so a later entry for an already-seen period end replaces the value.
func extractPeriods(concept edgar.FactConcept, unit string, periodType models.PeriodType, numPeriods int) []Observation {
	unitKey, ok := resolveUnitKey(concept, unit)
	if !ok {
		return nil
	}

	minDays, maxDays := durationWindow(periodType)

	results := make([]Observation, 0)
	index := make(map[string]int)

	for _, entry := range concept.Units[unitKey] {
		if !formAccepted(entry.Form, periodType) {
			continue
		}
		if entry.Val == nil || entry.End == "" {
			continue
		}
		if entry.IsDuration() {
			days, err := elapsedDays(entry.Start, entry.End)
			if err != nil || days < minDays || days > maxDays {
				continue
			}
		}

		if i, seen := index[entry.End]; seen {
			results[i].Value = *entry.Val
			continue
		}
		index[entry.End] = len(results)
		results = append(results, Observation{
			PeriodEnd: entry.End,
			Value:     *entry.Val,
			Form:      entry.Form,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].PeriodEnd > results[j].PeriodEnd
	})
	return results[:clampCount(numPeriods, len(results))]
}

// resolveUnitKey picks the unit bucket to read. Filers occasionally tag
// currency or share counts under variant keys, so USD and shares fall back to
// the first (sorted) key that looks like them. Per-share amounts have no fallback.
func resolveUnitKey(concept edgar.FactConcept, unit string) (string, bool) {
	if _, ok := concept.Units[unit]; ok {
		return unit, true
	}
	switch unit {
	case edgar.UnitUSD:
		for _, k := range concept.UnitKeys() {
			if strings.Contains(strings.ToUpper(k), "USD") {
				return k, true
			}
		}
	case edgar.UnitShares:
		for _, k := range concept.UnitKeys() {
			if strings.Contains(strings.ToLower(k), "share") {
				return k, true
			}
		}
	}
	return "", false
}

// formAccepted applies the report-type filter. Quarterly requests also take
// 10-K entries: the fiscal Q4 balance sheet is only ever filed on the 10-K, and
// annual-length durations are rejected by the quarterly window anyway.
func formAccepted(form string, periodType models.PeriodType) bool {
	if form == string(periodType) {
		return true
	}
	return periodType == models.PeriodQuarterly && form == string(models.PeriodAnnual)
}

func durationWindow(periodType models.PeriodType) (int, int) {
	if periodType == models.PeriodQuarterly {
		return quarterlyMinDays, quarterlyMaxDays
	}
	return annualMinDays, annualMaxDays
}

// elapsedDays returns end - start in whole days.
func elapsedDays(start, end string) (int, error) {
	s, err := time.Parse(dateLayout, start)
	if err != nil {
		return 0, err
	}
	e, err := time.Parse(dateLayout, end)
	if err != nil {
		return 0, err
	}
	return int(e.Sub(s).Hours() / 24), nil
}

func clampCount(n, available int) int {
	if n < 0 {
		return 0
	}
	if n > available {
		return available
	}
	return n
}
