package mapping

import (
	"strings"
	"testing"

	"pitchsheet/pkg/core/edgar"
	"pitchsheet/pkg/core/edgar/edgartest"
	"pitchsheet/pkg/models"
)

func TestMapAnnualRevenue(t *testing.T) {
	mapped, _ := MapFactsToStatements(edgartest.AAPLCompanyFacts(), models.PeriodAnnual, 5)

	rev := mapped.Statement(IncomeStatementName).Observations(LineRevenue)
	if len(rev) != 5 {
		t.Fatalf("Expected 5 revenue observations, got %d", len(rev))
	}
	if rev[0].PeriodEnd != "2024-09-28" {
		t.Errorf("Expected most recent period 2024-09-28, got %s", rev[0].PeriodEnd)
	}
	if rev[0].Value != 391035000000 {
		t.Errorf("Expected revenue 391035000000, got %f", rev[0].Value)
	}
	if tag := mapped.Statement(IncomeStatementName).Line(LineRevenue).Tag; tag != "Revenues" {
		t.Errorf("Expected winning tag Revenues, got %s", tag)
	}
}

func TestMapAllStatementItems(t *testing.T) {
	mapped, _ := MapFactsToStatements(edgartest.AAPLCompanyFacts(), models.PeriodAnnual, 5)

	cases := []struct {
		statement string
		line      string
	}{
		{IncomeStatementName, LineRevenue},
		{IncomeStatementName, LineGrossProfit},
		{IncomeStatementName, LineOperatingIncome},
		{IncomeStatementName, LineNetIncome},
		{IncomeStatementName, LineDilutedShares},
		{IncomeStatementName, LineDilutedEPS},
		{BalanceSheetName, "Total Assets"},
		{BalanceSheetName, LineTotalEquity},
		{CashFlowName, LineOperatingCF},
		{CashFlowName, LineCapex},
		{CashFlowName, LineFreeCashFlow},
	}

	for _, tc := range cases {
		got := len(mapped.Statement(tc.statement).Observations(tc.line))
		if got != 5 {
			t.Errorf("%s.%s: expected 5 observations, got %d", tc.statement, tc.line, got)
		}
	}
}

func TestFreeCashFlowDerivation(t *testing.T) {
	mapped, _ := MapFactsToStatements(edgartest.AAPLCompanyFacts(), models.PeriodAnnual, 5)

	fcf := mapped.Statement(CashFlowName).Observations(LineFreeCashFlow)
	if len(fcf) == 0 {
		t.Fatal("Expected free cash flow observations")
	}
	// 118254e6 - 9959e6
	if fcf[0].Value != 108295000000 {
		t.Errorf("Expected FCF 108295000000, got %f", fcf[0].Value)
	}
}

func TestFreeCashFlowUsesAbsoluteCapex(t *testing.T) {
	facts := &edgar.CompanyFacts{Facts: map[string]map[string]edgar.FactConcept{
		edgar.TaxonomyUSGAAP: {
			"NetCashProvidedByUsedInOperatingActivities": {Units: map[string][]edgar.FactEntry{
				edgar.UnitUSD: {edgartest.Duration("2023-01-01", "2023-12-31", "10-K", 100)},
			}},
			"PaymentsToAcquirePropertyPlantAndEquipment": {Units: map[string][]edgar.FactEntry{
				edgar.UnitUSD: {edgartest.Duration("2023-01-01", "2023-12-31", "10-K", -30)},
			}},
		},
	}}

	mapped, _ := MapFactsToStatements(facts, models.PeriodAnnual, 5)
	fcf := mapped.Statement(CashFlowName).Observations(LineFreeCashFlow)
	if len(fcf) != 1 || fcf[0].Value != 70 {
		t.Errorf("Expected single FCF of 70, got %+v", fcf)
	}
}

func TestFreeCashFlowMissingCapexPeriod(t *testing.T) {
	facts := &edgar.CompanyFacts{Facts: map[string]map[string]edgar.FactConcept{
		edgar.TaxonomyUSGAAP: {
			"NetCashProvidedByUsedInOperatingActivities": {Units: map[string][]edgar.FactEntry{
				edgar.UnitUSD: {
					edgartest.Duration("2022-01-01", "2022-12-31", "10-K", 80),
					edgartest.Duration("2023-01-01", "2023-12-31", "10-K", 100),
				},
			}},
			"PaymentsToAcquirePropertyPlantAndEquipment": {Units: map[string][]edgar.FactEntry{
				edgar.UnitUSD: {edgartest.Duration("2023-01-01", "2023-12-31", "10-K", 30)},
			}},
		},
	}}

	mapped, _ := MapFactsToStatements(facts, models.PeriodAnnual, 5)
	fcf := mapped.Statement(CashFlowName).Observations(LineFreeCashFlow)
	if len(fcf) != 2 {
		t.Fatalf("Expected FCF for every CFO period, got %+v", fcf)
	}
	if fcf[0].Value != 70 || fcf[1].Value != 80 {
		t.Errorf("Expected [70 80], got %+v", fcf)
	}
}

func TestFreeCashFlowWarnings(t *testing.T) {
	facts := &edgar.CompanyFacts{Facts: map[string]map[string]edgar.FactConcept{
		edgar.TaxonomyUSGAAP: {
			"NetCashProvidedByUsedInOperatingActivities": {Units: map[string][]edgar.FactEntry{
				edgar.UnitUSD: {edgartest.Duration("2023-01-01", "2023-12-31", "10-K", 100)},
			}},
		},
	}}

	_, warnings := MapFactsToStatements(facts, models.PeriodAnnual, 5)
	if !containsWarning(warnings, "Cash_Flow.Free Cash Flow: cannot compute, no Capex data") {
		t.Errorf("Expected Capex warning, got %v", warnings)
	}

	_, warnings = MapFactsToStatements(&edgar.CompanyFacts{}, models.PeriodAnnual, 5)
	if !containsWarning(warnings, "Cash_Flow.Free Cash Flow: cannot compute, no CFO data") {
		t.Errorf("Expected CFO warning, got %v", warnings)
	}
}

func TestMissingTagWarnings(t *testing.T) {
	_, warnings := MapFactsToStatements(edgartest.AAPLCompanyFacts(), models.PeriodAnnual, 5)

	missing := 0
	for _, w := range warnings {
		if strings.Contains(w, "Research") || strings.Contains(w, "Selling") {
			missing++
		}
	}
	if missing < 2 {
		t.Errorf("Expected warnings for R&D and SG&A, got %v", warnings)
	}

	want := "Income_Statement.Selling, General & Administrative: no data found (tried tags: " +
		"SellingGeneralAndAdministrativeExpense, SellingAndMarketingExpense, GeneralAndAdministrativeExpense)"
	if !containsWarning(warnings, want) {
		t.Errorf("Expected exact SG&A warning, got %v", warnings)
	}

	// More than three aliases are elided.
	for _, w := range warnings {
		if strings.HasPrefix(w, "Balance_Sheet.Cash & Equivalents") && !strings.HasSuffix(w, "...)") {
			t.Errorf("Expected elided tag list, got %q", w)
		}
	}
}

func TestEmptyFactsProduceEmptyStatements(t *testing.T) {
	mapped, warnings := MapFactsToStatements(&edgar.CompanyFacts{}, models.PeriodAnnual, 5)

	if len(mapped.Statements) != 3 {
		t.Fatalf("Expected 3 statements, got %d", len(mapped.Statements))
	}
	filled, total := mapped.Populated()
	if filled != 0 {
		t.Errorf("Expected no populated items, got %d", filled)
	}
	if total == 0 {
		t.Error("Expected template items to be present")
	}
	// Every non-derived item warns, plus the CFO and Capex FCF warnings.
	if len(warnings) != total+1 {
		t.Errorf("Expected %d warnings, got %d", total+1, len(warnings))
	}
}

func TestCandidateSelectionPrefersMostRecent(t *testing.T) {
	facts := &edgar.CompanyFacts{Facts: map[string]map[string]edgar.FactConcept{
		edgar.TaxonomyUSGAAP: {
			// First alias stops in 2021.
			"Revenues": {Units: map[string][]edgar.FactEntry{
				edgar.UnitUSD: {
					edgartest.Duration("2019-01-01", "2019-12-31", "10-K", 1),
					edgartest.Duration("2020-01-01", "2020-12-31", "10-K", 2),
					edgartest.Duration("2021-01-01", "2021-12-31", "10-K", 3),
				},
			}},
			"RevenueFromContractWithCustomerExcludingAssessedTax": {Units: map[string][]edgar.FactEntry{
				edgar.UnitUSD: {
					edgartest.Duration("2022-01-01", "2022-12-31", "10-K", 40),
					edgartest.Duration("2023-01-01", "2023-12-31", "10-K", 50),
				},
			}},
		},
	}}

	mapped, _ := MapFactsToStatements(facts, models.PeriodAnnual, 5)
	line := mapped.Statement(IncomeStatementName).Line(LineRevenue)
	if line.Tag != "RevenueFromContractWithCustomerExcludingAssessedTax" {
		t.Errorf("Expected the more recent alias to win, got %s", line.Tag)
	}
	if len(line.Observations) != 2 || line.Observations[0].Value != 50 {
		t.Errorf("Unexpected observations %+v", line.Observations)
	}
}

func TestCandidateSelectionTieBreaksOnCount(t *testing.T) {
	facts := &edgar.CompanyFacts{Facts: map[string]map[string]edgar.FactConcept{
		edgar.TaxonomyUSGAAP: {
			"Revenues": {Units: map[string][]edgar.FactEntry{
				edgar.UnitUSD: {edgartest.Duration("2023-01-01", "2023-12-31", "10-K", 1)},
			}},
			"SalesRevenueNet": {Units: map[string][]edgar.FactEntry{
				edgar.UnitUSD: {
					edgartest.Duration("2022-01-01", "2022-12-31", "10-K", 2),
					edgartest.Duration("2023-01-01", "2023-12-31", "10-K", 3),
				},
			}},
		},
	}}

	mapped, _ := MapFactsToStatements(facts, models.PeriodAnnual, 5)
	if tag := mapped.Statement(IncomeStatementName).Line(LineRevenue).Tag; tag != "SalesRevenueNet" {
		t.Errorf("Expected SalesRevenueNet on tie, got %s", tag)
	}
}

// =============================================================================
// PERIOD EXTRACTION
// =============================================================================

func TestExtractPeriodsDurationFilter(t *testing.T) {
	concept := edgar.FactConcept{Units: map[string][]edgar.FactEntry{
		edgar.UnitUSD: {
			edgartest.Duration("2023-01-01", "2023-12-31", "10-K", 100), // 364 days
			edgartest.Duration("2023-07-01", "2023-12-31", "10-K", 50),  // half year
			edgartest.Duration("2022-01-01", "2023-12-30", "10-K", 200), // two years
			edgartest.Duration("bad", "2021-12-31", "10-K", 1),
		},
	}}

	obs := extractPeriods(concept, edgar.UnitUSD, models.PeriodAnnual, 5)
	if len(obs) != 1 || obs[0].Value != 100 {
		t.Errorf("Expected only the full-year entry, got %+v", obs)
	}
}

func TestExtractPeriodsQuarterly(t *testing.T) {
	concept := edgar.FactConcept{Units: map[string][]edgar.FactEntry{
		edgar.UnitUSD: {
			edgartest.Duration("2023-01-01", "2023-03-31", "10-Q", 10),
			edgartest.Duration("2023-01-01", "2023-06-30", "10-Q", 20), // YTD, rejected
			edgartest.Duration("2023-04-01", "2023-06-30", "10-Q", 11),
			edgartest.Duration("2023-01-01", "2023-12-31", "10-K", 40), // annual length, rejected
			edgartest.Instant("2023-12-31", "10-K", 99),                // Q4 balance from the 10-K
			edgartest.Duration("2023-04-01", "2023-06-30", "8-K", 12),
		},
	}}

	obs := extractPeriods(concept, edgar.UnitUSD, models.PeriodQuarterly, 10)
	if len(obs) != 3 {
		t.Fatalf("Expected 3 observations, got %+v", obs)
	}
	if obs[0].PeriodEnd != "2023-12-31" || obs[0].Value != 99 {
		t.Errorf("Expected 10-K instant first, got %+v", obs[0])
	}
	if obs[1].Value != 11 || obs[2].Value != 10 {
		t.Errorf("Unexpected quarterly values %+v", obs)
	}
}

func TestExtractPeriodsAnnualRejectsQuarterlyForms(t *testing.T) {
	concept := edgar.FactConcept{Units: map[string][]edgar.FactEntry{
		edgar.UnitUSD: {edgartest.Instant("2023-03-31", "10-Q", 5)},
	}}
	if obs := extractPeriods(concept, edgar.UnitUSD, models.PeriodAnnual, 5); len(obs) != 0 {
		t.Errorf("Expected no annual observations from a 10-Q, got %+v", obs)
	}
}

func TestExtractPeriodsDedupeLastWins(t *testing.T) {
	concept := edgar.FactConcept{Units: map[string][]edgar.FactEntry{
		edgar.UnitUSD: {
			edgartest.Duration("2023-01-01", "2023-12-31", "10-K", 100),
			{Start: "2023-01-01", End: "2023-12-31", Form: "10-K"}, // nil value skipped
			edgartest.Duration("2023-01-01", "2023-12-31", "10-K", 105),
		},
	}}

	obs := extractPeriods(concept, edgar.UnitUSD, models.PeriodAnnual, 5)
	if len(obs) != 1 || obs[0].Value != 105 {
		t.Errorf("Expected restated value 105, got %+v", obs)
	}
}

func TestExtractPeriodsTruncates(t *testing.T) {
	concept := edgartest.AAPLCompanyFacts().Facts[edgar.TaxonomyUSGAAP]["Revenues"]

	obs := extractPeriods(concept, edgar.UnitUSD, models.PeriodAnnual, 2)
	if len(obs) != 2 {
		t.Fatalf("Expected 2 observations, got %d", len(obs))
	}
	if obs[0].PeriodEnd != "2024-09-28" || obs[1].PeriodEnd != "2023-09-30" {
		t.Errorf("Expected the two most recent years, got %+v", obs)
	}
	if obs := extractPeriods(concept, edgar.UnitUSD, models.PeriodAnnual, 0); len(obs) != 0 {
		t.Errorf("Expected nothing for zero periods, got %+v", obs)
	}
}

func TestResolveUnitKey(t *testing.T) {
	cases := []struct {
		name  string
		units []string
		unit  string
		want  string
		ok    bool
	}{
		{"exact", []string{"USD", "EUR"}, edgar.UnitUSD, "USD", true},
		{"usd fallback", []string{"EUR", "usd-thousands"}, edgar.UnitUSD, "usd-thousands", true},
		{"usd fallback sorted", []string{"xUSD", "aUSD"}, edgar.UnitUSD, "aUSD", true},
		{"shares fallback", []string{"Shares"}, edgar.UnitShares, "Shares", true},
		{"no per-share fallback", []string{"USD"}, edgar.UnitUSDPerShares, "", false},
		{"no match", []string{"EUR"}, edgar.UnitUSD, "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			concept := edgar.FactConcept{Units: map[string][]edgar.FactEntry{}}
			for _, u := range tc.units {
				concept.Units[u] = nil
			}
			got, ok := resolveUnitKey(concept, tc.unit)
			if got != tc.want || ok != tc.ok {
				t.Errorf("resolveUnitKey(%v, %s) = %q, %v; want %q, %v", tc.units, tc.unit, got, ok, tc.want, tc.ok)
			}
		})
	}
}

func TestMapUnitFallbackIsStable(t *testing.T) {
	// Neither key is exactly USD; the sorted-first match must win on every run.
	facts := &edgar.CompanyFacts{Facts: map[string]map[string]edgar.FactConcept{
		edgar.TaxonomyUSGAAP: {
			"Revenues": {Units: map[string][]edgar.FactEntry{
				"USD-thousands": {edgartest.Duration("2023-01-01", "2023-12-31", "10-K", 2)},
				"USD-millions":  {edgartest.Duration("2023-01-01", "2023-12-31", "10-K", 1)},
				"iso4217:USD":   {edgartest.Duration("2023-01-01", "2023-12-31", "10-K", 3)},
			}},
		},
	}}

	for i := 0; i < 20; i++ {
		mapped, _ := MapFactsToStatements(facts, models.PeriodAnnual, 5)
		rev := mapped.Statement(IncomeStatementName).Observations(LineRevenue)
		if len(rev) != 1 || rev[0].Value != 1 {
			t.Fatalf("run %d: expected value from USD-millions, got %+v", i, rev)
		}
	}
}

func containsWarning(warnings []string, want string) bool {
	for _, w := range warnings {
		if w == want {
			return true
		}
	}
	return false
}
