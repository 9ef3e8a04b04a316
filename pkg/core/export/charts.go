package export

import (
	"fmt"
	"strconv"
	"strings"

	"pitchsheet/pkg/core/calc"
	"pitchsheet/pkg/core/mapping"
	"pitchsheet/pkg/models"
)

// ChartKind selects the excelize chart type.
type ChartKind string

const (
	ChartBar  ChartKind = "bar"
	ChartLine ChartKind = "line"
)

// ValueFormat controls the axis and data-cell number format of a chart series.
type ValueFormat string

const (
	FormatCurrency ValueFormat = "currency"
	FormatPercent  ValueFormat = "percent"
	FormatCount    ValueFormat = "count"
)

// ChartSpec is one planned chart. Values is aligned to Labels; nil is a gap.
type ChartSpec struct {
	Name   string      `json:"name"`
	Title  string      `json:"title"`
	Series string      `json:"series"`
	Kind   ChartKind   `json:"kind"`
	Format ValueFormat `json:"format"`
	Color  string      `json:"color"`
	Labels []string    `json:"labels"`
	Values []*float64  `json:"values"`
}

type chartSource struct {
	name, title, series string
	kind                ChartKind
	format              ValueFormat
	color               string
	values              func() []*float64
}

// PlanCharts decides which charts the workbook carries. A chart is planned
// only when its series has at least one value.
func PlanCharts(periodType models.PeriodType, periodDates []string, normalized *mapping.NormalizedStatements, metrics calc.Metrics) []ChartSpec {
	metricValues := func(name string) func() []*float64 {
		return func() []*float64 {
			if m := metrics.Get(name); m != nil {
				return m.Values
			}
			return nil
		}
	}
	lineValues := func(statement, line string) func() []*float64 {
		return func() []*float64 { return normalized.Series(statement, line) }
	}

	sources := []chartSource{
		{"revenue", "Revenue Over Time", "Revenue", ChartBar, FormatCurrency, "2563EB",
			lineValues(mapping.IncomeStatementName, mapping.LineRevenue)},
		{"gross_margin", "Gross Margin Trend", "Gross Margin", ChartLine, FormatPercent, "16A34A",
			metricValues(calc.GrossMargin)},
		{"operating_margin", "Operating Margin Trend", "Operating Margin", ChartLine, FormatPercent, "9333EA",
			metricValues(calc.OperatingMargin)},
		{"fcf", "Free Cash Flow Over Time", "Free Cash Flow", ChartBar, FormatCurrency, "0891B2",
			lineValues(mapping.CashFlowName, mapping.LineFreeCashFlow)},
		{"shares", "Shares Outstanding Trend", "Diluted Shares Outstanding", ChartBar, FormatCount, "F59E0B",
			lineValues(mapping.IncomeStatementName, mapping.LineDilutedShares)},
	}

	labels := AxisLabels(periodType, periodDates)

	charts := make([]ChartSpec, 0, len(sources))
	for _, src := range sources {
		values := src.values()
		if !hasValue(values) {
			continue
		}
		aligned := make([]*float64, len(periodDates))
		copy(aligned, values)
		charts = append(charts, ChartSpec{
			Name:   src.name,
			Title:  src.title,
			Series: src.series,
			Kind:   src.kind,
			Format: src.format,
			Color:  src.color,
			Labels: labels,
			Values: aligned,
		})
	}
	return charts
}

// ShortLabel renders a period end as an axis label: FY24 for annual periods,
// Q3'24 (calendar quarter of the period end) for quarterly ones.
func ShortLabel(periodType models.PeriodType, date string) string {
	parts := strings.Split(date, "-")
	if len(parts) < 2 || len(parts[0]) != 4 {
		return date
	}
	yy := parts[0][2:]
	if periodType == models.PeriodQuarterly {
		month, err := strconv.Atoi(parts[1])
		if err != nil || month < 1 || month > 12 {
			return date
		}
		return fmt.Sprintf("Q%d'%s", (month-1)/3+1, yy)
	}
	return "FY" + yy
}

// AxisLabels renders the period axis with ShortLabel. Periods whose short
// labels collide (two fiscal year ends in one calendar year) keep their full date.
func AxisLabels(periodType models.PeriodType, periodDates []string) []string {
	labels := make([]string, len(periodDates))
	seen := make(map[string]int, len(periodDates))
	for i, d := range periodDates {
		labels[i] = ShortLabel(periodType, d)
		seen[labels[i]]++
	}
	for i, d := range periodDates {
		if seen[labels[i]] > 1 {
			labels[i] = d
		}
	}
	return labels
}

func hasValue(values []*float64) bool {
	for _, v := range values {
		if v != nil {
			return true
		}
	}
	return false
}
