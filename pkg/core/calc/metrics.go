// Package calc derives ratio, growth and quality-flag series from
// period-aligned statements.
package calc

import (
	"fmt"
	"math"
	"strings"

	"pitchsheet/pkg/core/mapping"
)

// Metric names, in output order.
const (
	RevenueGrowthYoY = "Revenue Growth YoY"
	RevenueCAGR3Y    = "Revenue CAGR 3Y"
	RevenueCAGR5Y    = "Revenue CAGR 5Y"
	GrossMargin      = "Gross Margin"
	OperatingMargin  = "Operating Margin"
	NetMargin        = "Net Margin"
	FCFMargin        = "FCF Margin"
	DebtToEquity     = "Debt / Equity"
	SharesChangeYoY  = "Shares Change YoY"
	QualityFlags     = "Quality Flags"
)

// Quality flag thresholds on absolute period-over-period change.
const (
	revenueFlagThreshold   = 0.5
	netIncomeFlagThreshold = 1.0
)

// Kind tells consumers how to format a metric.
type Kind string

const (
	KindPercent Kind = "percent"
	KindRatio   Kind = "ratio"
	KindText    Kind = "text"
)

// Metric is one derived series aligned to the period axis.
// Numeric kinds fill Values; KindText fills Text.
type Metric struct {
	Name   string     `json:"name"`
	Kind   Kind       `json:"kind"`
	Values []*float64 `json:"values,omitempty"`
	Text   []*string  `json:"text,omitempty"`
}

// Metrics is the ordered metric set.
type Metrics []Metric

// Get returns the named metric, or nil.
func (m Metrics) Get(name string) *Metric {
	for i := range m {
		if m[i].Name == name {
			return &m[i]
		}
	}
	return nil
}

// Names returns metric names in output order.
func (m Metrics) Names() []string {
	names := make([]string, len(m))
	for i, metric := range m {
		names[i] = metric.Name
	}
	return names
}

// Computed counts metrics with at least one non-nil value.
func (m Metrics) Computed() int {
	count := 0
	for _, metric := range m {
		if metric.Kind == KindText {
			for _, t := range metric.Text {
				if t != nil {
					count++
					break
				}
			}
			continue
		}
		if !allNil(metric.Values) {
			count++
		}
	}
	return count
}

// metricInputs lists the statement rows each metric reads, for warnings.
var metricInputs = []struct {
	metric string
	rows   []string
}{
	{RevenueGrowthYoY, []string{mapping.LineRevenue}},
	{RevenueCAGR3Y, []string{mapping.LineRevenue}},
	{RevenueCAGR5Y, []string{mapping.LineRevenue}},
	{GrossMargin, []string{mapping.LineGrossProfit, mapping.LineRevenue}},
	{OperatingMargin, []string{mapping.LineOperatingIncome, mapping.LineRevenue}},
	{NetMargin, []string{mapping.LineNetIncome, mapping.LineRevenue}},
	{FCFMargin, []string{mapping.LineFreeCashFlow, mapping.LineRevenue}},
	{DebtToEquity, []string{mapping.LineLongTermDebt, mapping.LineTotalEquity}},
	{SharesChangeYoY, []string{mapping.LineDilutedShares}},
	{QualityFlags, []string{mapping.LineRevenue, mapping.LineNetIncome}},
}

// ComputeMetrics derives the fixed metric set. Every metric is always present
// and has exactly len(periodDates) slots. A metric whose source row is absent
// or entirely nil produces one warning and stays nil.
func ComputeMetrics(periodDates []string, normalized *mapping.NormalizedStatements) (Metrics, []string) {
	n := len(periodDates)

	rows := map[string][]*float64{
		mapping.LineRevenue:         normalized.Series(mapping.IncomeStatementName, mapping.LineRevenue),
		mapping.LineGrossProfit:     normalized.Series(mapping.IncomeStatementName, mapping.LineGrossProfit),
		mapping.LineOperatingIncome: normalized.Series(mapping.IncomeStatementName, mapping.LineOperatingIncome),
		mapping.LineNetIncome:       normalized.Series(mapping.IncomeStatementName, mapping.LineNetIncome),
		mapping.LineDilutedShares:   normalized.Series(mapping.IncomeStatementName, mapping.LineDilutedShares),
		mapping.LineFreeCashFlow:    normalized.Series(mapping.CashFlowName, mapping.LineFreeCashFlow),
		mapping.LineTotalEquity:     normalized.Series(mapping.BalanceSheetName, mapping.LineTotalEquity),
		mapping.LineLongTermDebt:    normalized.Series(mapping.BalanceSheetName, mapping.LineLongTermDebt),
	}
	revenue := rows[mapping.LineRevenue]
	netIncome := rows[mapping.LineNetIncome]

	ratioOf := func(num, den []*float64) []*float64 {
		out := make([]*float64, n)
		for i := range out {
			out[i] = SafeDiv(at(num, i), at(den, i))
		}
		return out
	}
	changeOf := func(series []*float64) []*float64 {
		out := make([]*float64, n)
		for i := 1; i < n; i++ {
			out[i] = PctChange(at(series, i), at(series, i-1))
		}
		return out
	}
	cagrOf := func(series []*float64, years int) []*float64 {
		out := make([]*float64, n)
		for i := years; i < n; i++ {
			out[i] = CAGR(at(series, i-years), at(series, i), years)
		}
		return out
	}

	metrics := Metrics{
		{Name: RevenueGrowthYoY, Kind: KindPercent, Values: changeOf(revenue)},
		{Name: RevenueCAGR3Y, Kind: KindPercent, Values: cagrOf(revenue, 3)},
		{Name: RevenueCAGR5Y, Kind: KindPercent, Values: cagrOf(revenue, 5)},
		{Name: GrossMargin, Kind: KindPercent, Values: ratioOf(rows[mapping.LineGrossProfit], revenue)},
		{Name: OperatingMargin, Kind: KindPercent, Values: ratioOf(rows[mapping.LineOperatingIncome], revenue)},
		{Name: NetMargin, Kind: KindPercent, Values: ratioOf(netIncome, revenue)},
		{Name: FCFMargin, Kind: KindPercent, Values: ratioOf(rows[mapping.LineFreeCashFlow], revenue)},
		{Name: DebtToEquity, Kind: KindRatio, Values: ratioOf(rows[mapping.LineLongTermDebt], rows[mapping.LineTotalEquity])},
		{Name: SharesChangeYoY, Kind: KindPercent, Values: changeOf(rows[mapping.LineDilutedShares])},
		{Name: QualityFlags, Kind: KindText, Text: qualityFlags(n, revenue, netIncome)},
	}

	warnings := make([]string, 0)
	for _, in := range metricInputs {
		for _, row := range in.rows {
			if allNil(rows[row]) {
				warnings = append(warnings, fmt.Sprintf("%s: no %s data", in.metric, row))
				break
			}
		}
	}

	return metrics, warnings
}

// qualityFlags annotates periods with outsized revenue or net income swings.
func qualityFlags(n int, revenue, netIncome []*float64) []*string {
	out := make([]*string, n)
	for i := 1; i < n; i++ {
		var flags []string
		if chg := PctChange(at(revenue, i), at(revenue, i-1)); chg != nil && math.Abs(*chg) > revenueFlagThreshold {
			flags = append(flags, describeChange("Revenue", *chg))
		}
		if chg := PctChange(at(netIncome, i), at(netIncome, i-1)); chg != nil && math.Abs(*chg) > netIncomeFlagThreshold {
			flags = append(flags, describeChange("Net Income", *chg))
		}
		if len(flags) > 0 {
			joined := strings.Join(flags, "; ")
			out[i] = &joined
		}
	}
	return out
}

func describeChange(label string, chg float64) string {
	direction := "jumped"
	if chg <= 0 {
		direction = "dropped"
	}
	return fmt.Sprintf("%s %s %.0f%%", label, direction, math.Abs(chg)*100)
}
