package mapping

import "sort"

// NormalizePeriods aligns every line item onto one period axis.
//
// The axis is the union of all observed period ends, keeping the numPeriods
// most recent, returned oldest first. Each line becomes a slice of the same
// length with nil where that line has no observation for the period.
func NormalizePeriods(mapped *MappedStatements, numPeriods int) ([]string, *NormalizedStatements) {
	seen := make(map[string]struct{})
	if mapped != nil {
		for _, s := range mapped.Statements {
			for _, l := range s.Lines {
				for _, o := range l.Observations {
					seen[o.PeriodEnd] = struct{}{}
				}
			}
		}
	}

	dates := make([]string, 0, len(seen))
	for d := range seen {
		dates = append(dates, d)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))
	dates = dates[:clampCount(numPeriods, len(dates))]
	for i, j := 0, len(dates)-1; i < j; i, j = i+1, j-1 {
		dates[i], dates[j] = dates[j], dates[i]
	}

	normalized := &NormalizedStatements{Statements: []NormalizedStatement{}}
	if mapped == nil {
		return dates, normalized
	}

	for _, s := range mapped.Statements {
		ns := NormalizedStatement{Name: s.Name, Lines: make([]NormalizedLine, 0, len(s.Lines))}
		for _, l := range s.Lines {
			byEnd := make(map[string]float64, len(l.Observations))
			for _, o := range l.Observations {
				byEnd[o.PeriodEnd] = o.Value
			}

			values := make([]*float64, len(dates))
			for i, d := range dates {
				if v, ok := byEnd[d]; ok {
					values[i] = &v
				}
			}
			ns.Lines = append(ns.Lines, NormalizedLine{Name: l.Name, Values: values})
		}
		normalized.Statements = append(normalized.Statements, ns)
	}
	return dates, normalized
}
