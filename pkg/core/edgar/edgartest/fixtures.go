// Package edgartest provides canned SEC documents for tests.
package edgartest

import "pitchsheet/pkg/core/edgar"

// Apple fiscal years: period end and the start of the matching duration.
var aaplYears = []struct{ start, end string }{
	{"2019-09-29", "2020-09-26"},
	{"2020-09-27", "2021-09-25"},
	{"2021-09-26", "2022-09-24"},
	{"2022-09-25", "2023-09-30"},
	{"2023-10-01", "2024-09-28"},
}

// AAPLCIK is Apple's zero-padded CIK.
const AAPLCIK = "0000320193"

// AAPLCompanyFacts returns five fiscal years of Apple 10-K facts.
// Research and SG&A tags are deliberately absent.
func AAPLCompanyFacts() *edgar.CompanyFacts {
	usd := func(vals ...float64) edgar.FactConcept { return durationConcept(edgar.UnitUSD, vals) }

	return &edgar.CompanyFacts{
		CIK:        320193,
		EntityName: "Apple Inc.",
		Facts: map[string]map[string]edgar.FactConcept{
			edgar.TaxonomyUSGAAP: {
				"Revenues":                   usd(274515e6, 365817e6, 394328e6, 383285e6, 391035e6),
				"CostOfGoodsAndServicesSold": usd(169559e6, 212981e6, 223546e6, 214137e6, 210352e6),
				"GrossProfit":                usd(104956e6, 152836e6, 170782e6, 169148e6, 180683e6),
				"OperatingIncomeLoss":        usd(66288e6, 108949e6, 119437e6, 114301e6, 123216e6),
				"NetIncomeLoss":              usd(57411e6, 94680e6, 99803e6, 96995e6, 93736e6),
				"Assets":                     instantConcept(edgar.UnitUSD, []float64{323888e6, 351002e6, 352755e6, 352583e6, 364980e6}),
				"StockholdersEquity":         instantConcept(edgar.UnitUSD, []float64{65339e6, 63090e6, 50672e6, 62146e6, 56950e6}),
				"NetCashProvidedByUsedInOperatingActivities": usd(80674e6, 104038e6, 122151e6, 110543e6, 118254e6),
				"PaymentsToAcquirePropertyPlantAndEquipment": usd(7309e6, 11085e6, 10708e6, 10959e6, 9959e6),
				"WeightedAverageNumberOfDilutedSharesOutstanding": durationConcept(edgar.UnitShares,
					[]float64{17528214000, 16864919000, 16325819000, 15812547000, 15408095000}),
				"EarningsPerShareDiluted": durationConcept(edgar.UnitUSDPerShares,
					[]float64{3.28, 5.61, 6.11, 6.13, 6.08}),
			},
		},
	}
}

// AAPLSubmissions returns a small submissions document for Apple.
func AAPLSubmissions() *edgar.Submissions {
	return &edgar.Submissions{
		CIK:     "320193",
		Name:    "Apple Inc.",
		Tickers: []string{"AAPL"},
		Filings: edgar.Filings{Recent: edgar.RecentFilings{
			AccessionNumber: []string{"0000320193-24-000123", "0000320193-23-000106"},
			FilingDate:      []string{"2024-11-01", "2023-11-03"},
			ReportDate:      []string{"2024-09-28", "2023-09-30"},
			Form:            []string{"10-K", "10-K"},
			PrimaryDocument: []string{"aapl-20240928.htm", "aapl-20230930.htm"},
		}},
	}
}

// F returns a pointer to v.
func F(v float64) *float64 { return &v }

// Duration builds a duration entry.
func Duration(start, end, form string, val float64) edgar.FactEntry {
	return edgar.FactEntry{Start: start, End: end, Form: form, Val: F(val)}
}

// Instant builds an instant entry.
func Instant(end, form string, val float64) edgar.FactEntry {
	return edgar.FactEntry{End: end, Form: form, Val: F(val)}
}

func durationConcept(unit string, vals []float64) edgar.FactConcept {
	entries := make([]edgar.FactEntry, len(vals))
	for i, v := range vals {
		entries[i] = Duration(aaplYears[i].start, aaplYears[i].end, "10-K", v)
	}
	return edgar.FactConcept{Units: map[string][]edgar.FactEntry{unit: entries}}
}

func instantConcept(unit string, vals []float64) edgar.FactConcept {
	entries := make([]edgar.FactEntry, len(vals))
	for i, v := range vals {
		entries[i] = Instant(aaplYears[i].end, "10-K", v)
	}
	return edgar.FactConcept{Units: map[string][]edgar.FactEntry{unit: entries}}
}
