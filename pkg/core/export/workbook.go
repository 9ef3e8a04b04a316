// Package export renders a run's statements, metrics and charts into an
// .xlsx workbook.
package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"pitchsheet/pkg/core/calc"
	"pitchsheet/pkg/core/mapping"
	"pitchsheet/pkg/models"
)

// ErrNoPeriods is returned when there is nothing to put on the period axis.
var ErrNoPeriods = errors.New("no periods to export")

// Sheet names other than the three statements.
const (
	SheetKeyRatios = "Key_Ratios"
	SheetCharts    = "Charts"
	SheetMetadata  = "Run_Metadata"
)

const (
	headerRow    = 3
	firstDataRow = headerRow + 1
	chartRows    = 20
)

// WorkbookInput is everything the exporter needs.
type WorkbookInput struct {
	Ticker      string
	PeriodDates []string
	Normalized  *mapping.NormalizedStatements
	Metrics     calc.Metrics
	Charts      []ChartSpec
	Config      models.RunConfig
	Warnings    []string
	DataURLs    []string
	OutputDir   string
	// GeneratedAt defaults to the current UTC time.
	GeneratedAt time.Time
}

// FileName returns <TICKER>_<10K|10Q>_<YYYYMMDD>.xlsx
func FileName(ticker string, periodType models.PeriodType, at time.Time) string {
	form := strings.ReplaceAll(string(periodType), "-", "")
	return fmt.Sprintf("%s_%s_%s.xlsx", strings.ToUpper(ticker), form, at.UTC().Format("20060102"))
}

// ExportWorkbook writes the workbook into in.OutputDir and returns its path.
//
// Chart rendering failures do not fail the export; they are added to the
// warnings listed on the Run_Metadata sheet.
func ExportWorkbook(in WorkbookInput) (string, error) {
	if len(in.PeriodDates) == 0 {
		return "", ErrNoPeriods
	}
	if in.GeneratedAt.IsZero() {
		in.GeneratedAt = time.Now().UTC()
	}

	f := excelize.NewFile()
	defer f.Close()

	st, err := newStyles(f)
	if err != nil {
		return "", err
	}

	for _, name := range mapping.StatementNames() {
		stmt := in.Normalized.Statement(name)
		if stmt == nil {
			continue
		}
		rows := make([]tableRow, 0, len(stmt.Lines))
		for _, l := range stmt.Lines {
			rows = append(rows, tableRow{label: l.Name, format: lineItemFormat(l.Name), values: l.Values})
		}
		title := fmt.Sprintf("%s — %s", in.Ticker, strings.ReplaceAll(name, "_", " "))
		if err := writeTableSheet(f, st, name, title, "Line Item", 32, in.PeriodDates, rows); err != nil {
			return "", err
		}
	}

	metricRows := make([]tableRow, 0, len(in.Metrics))
	for _, m := range in.Metrics {
		metricRows = append(metricRows, tableRow{label: m.Name, format: metricFormat(m.Kind), values: m.Values, text: m.Text})
	}
	title := fmt.Sprintf("%s — Key Ratios & Metrics", in.Ticker)
	if err := writeTableSheet(f, st, SheetKeyRatios, title, "Metric", 28, in.PeriodDates, metricRows); err != nil {
		return "", err
	}

	warnings := append([]string{}, in.Warnings...)
	if len(in.Charts) > 0 {
		chartWarnings, err := writeChartsSheet(f, st, in.Ticker, in.Charts)
		if err != nil {
			return "", err
		}
		warnings = append(warnings, chartWarnings...)
	}

	if err := writeMetadataSheet(f, st, in, warnings); err != nil {
		return "", err
	}

	if err := f.DeleteSheet("Sheet1"); err != nil {
		return "", fmt.Errorf("failed to remove default sheet: %w", err)
	}
	if idx, err := f.GetSheetIndex(mapping.IncomeStatementName); err == nil && idx >= 0 {
		f.SetActiveSheet(idx)
	}

	if err := os.MkdirAll(in.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output dir: %w", err)
	}
	path := filepath.Join(in.OutputDir, FileName(in.Ticker, in.Config.PeriodType, in.GeneratedAt))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("failed to save workbook: %w", err)
	}
	return path, nil
}

// =============================================================================
// SHEET WRITERS
// =============================================================================

// sheetWriter keeps the first error so cell writes can be chained.
type sheetWriter struct {
	f     *excelize.File
	sheet string
	err   error
}

func newSheet(f *excelize.File, name string) (*sheetWriter, error) {
	if _, err := f.NewSheet(name); err != nil {
		return nil, fmt.Errorf("failed to create sheet %s: %w", name, err)
	}
	return &sheetWriter{f: f, sheet: name}, nil
}

func (w *sheetWriter) set(col, row int, value any, style int) {
	if w.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		w.err = err
		return
	}
	if err := w.f.SetCellValue(w.sheet, cell, value); err != nil {
		w.err = err
		return
	}
	if style != 0 {
		w.err = w.f.SetCellStyle(w.sheet, cell, cell, style)
	}
}

func (w *sheetWriter) merge(fromCol, toCol, row int) {
	if w.err != nil || toCol <= fromCol {
		return
	}
	from, _ := excelize.CoordinatesToCellName(fromCol, row)
	to, _ := excelize.CoordinatesToCellName(toCol, row)
	w.err = w.f.MergeCell(w.sheet, from, to)
}

func (w *sheetWriter) width(col int, width float64) {
	if w.err != nil {
		return
	}
	name, err := excelize.ColumnNumberToName(col)
	if err != nil {
		w.err = err
		return
	}
	w.err = w.f.SetColWidth(w.sheet, name, name, width)
}

func (w *sheetWriter) freezeBelowHeader() {
	if w.err != nil {
		return
	}
	w.err = w.f.SetPanes(w.sheet, &excelize.Panes{
		Freeze:      true,
		XSplit:      1,
		YSplit:      headerRow,
		TopLeftCell: "B4",
		ActivePane:  "bottomRight",
	})
}

func (w *sheetWriter) done() error {
	if w.err != nil {
		return fmt.Errorf("failed to write sheet %s: %w", w.sheet, w.err)
	}
	return nil
}

type tableRow struct {
	label  string
	format string
	values []*float64
	text   []*string
}

func (r tableRow) cell(i int) (any, bool) {
	if r.text != nil {
		if i < len(r.text) && r.text[i] != nil {
			return *r.text[i], true
		}
		return nil, false
	}
	if i < len(r.values) && r.values[i] != nil {
		return *r.values[i], true
	}
	return nil, false
}

// writeTableSheet writes a title row, a header of period dates on row 3 and
// one row per series below it. Missing values render as an em dash.
func writeTableSheet(f *excelize.File, st *styles, name, title, corner string, labelWidth float64, dates []string, rows []tableRow) error {
	w, err := newSheet(f, name)
	if err != nil {
		return err
	}

	w.set(1, 1, title, st.title)
	w.merge(1, len(dates)+1, 1)

	w.set(1, headerRow, corner, st.header)
	for j, d := range dates {
		w.set(j+2, headerRow, d, st.header)
	}

	for i, r := range rows {
		row := firstDataRow + i
		w.set(1, row, r.label, st.label)
		for j := range dates {
			if v, ok := r.cell(j); ok {
				w.set(j+2, row, v, st.formats[r.format])
			} else {
				w.set(j+2, row, missingMark, st.missing)
			}
		}
	}

	w.width(1, labelWidth)
	for j := range dates {
		w.width(j+2, 18)
	}
	w.freezeBelowHeader()
	return w.done()
}

// writeChartsSheet lays out a data block (one row per chart) and anchors a
// native chart for each below it. Charts that excelize rejects become warnings.
func writeChartsSheet(f *excelize.File, st *styles, ticker string, charts []ChartSpec) ([]string, error) {
	w, err := newSheet(f, SheetCharts)
	if err != nil {
		return nil, err
	}

	labels := charts[0].Labels
	w.set(1, 1, fmt.Sprintf("%s — Charts", ticker), st.title)
	w.set(1, headerRow, "Series", st.header)
	for j, l := range labels {
		w.set(j+2, headerRow, l, st.header)
	}
	for i, c := range charts {
		row := firstDataRow + i
		w.set(1, row, c.Series, st.label)
		for j := range labels {
			if j < len(c.Values) && c.Values[j] != nil {
				w.set(j+2, row, *c.Values[j], st.formats[chartNumFmt(c.Format)])
			}
		}
	}
	w.width(1, 30)
	for j := range labels {
		w.width(j+2, 16)
	}
	if err := w.done(); err != nil {
		return nil, err
	}

	lastCol, err := excelize.ColumnNumberToName(len(labels) + 1)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve chart range: %w", err)
	}
	categories := fmt.Sprintf("%s!$B$%d:$%s$%d", SheetCharts, headerRow, lastCol, headerRow)

	var warnings []string
	anchorRow := firstDataRow + len(charts) + 2
	for i, c := range charts {
		dataRow := firstDataRow + i
		chart := buildChart(c, categories,
			fmt.Sprintf("%s!$A$%d", SheetCharts, dataRow),
			fmt.Sprintf("%s!$B$%d:$%s$%d", SheetCharts, dataRow, lastCol, dataRow))

		if err := f.AddChart(SheetCharts, fmt.Sprintf("A%d", anchorRow), chart); err != nil {
			warnings = append(warnings, fmt.Sprintf("Chart %s: %v", c.Name, err))
			continue
		}
		anchorRow += chartRows
	}
	return warnings, nil
}

func buildChart(c ChartSpec, categories, name, values string) *excelize.Chart {
	series := excelize.ChartSeries{Name: name, Categories: categories, Values: values}
	chartType := excelize.Col
	if c.Kind == ChartLine {
		chartType = excelize.Line
		series.Line = excelize.ChartLine{Width: 2.5}
		series.Marker = excelize.ChartMarker{Symbol: "circle", Size: 6}
	} else {
		series.Fill = excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{c.Color}}
	}

	return &excelize.Chart{
		Type:         chartType,
		Series:       []excelize.ChartSeries{series},
		Title:        []excelize.RichTextRun{{Text: c.Title}},
		Legend:       excelize.ChartLegend{Position: "none"},
		Dimension:    excelize.ChartDimension{Width: 720, Height: 360},
		ShowBlanksAs: "gap",
		YAxis: excelize.ChartAxis{
			MajorGridLines: true,
			NumFmt:         excelize.ChartNumFmt{CustomNumFmt: chartNumFmt(c.Format)},
		},
	}
}

func writeMetadataSheet(f *excelize.File, st *styles, in WorkbookInput, warnings []string) error {
	w, err := newSheet(f, SheetMetadata)
	if err != nil {
		return err
	}

	w.set(1, 1, fmt.Sprintf("%s — Run Metadata", in.Ticker), st.title)

	row := headerRow
	meta := []struct{ label, value string }{
		{"Ticker", in.Config.Ticker},
		{"Period Type", string(in.Config.PeriodType)},
		{"Number of Periods", fmt.Sprintf("%d", in.Config.NumPeriods)},
		{"Mapping Version", in.Config.MappingVersion},
		{"Generated At", in.GeneratedAt.UTC().Format(time.RFC3339)},
	}
	for _, m := range meta {
		w.set(1, row, m.label, st.label)
		w.set(2, row, m.value, st.plain)
		row++
	}

	row++
	w.set(1, row, "Data Sources", st.section)
	row++
	for _, u := range in.DataURLs {
		w.set(1, row, u, st.plain)
		row++
	}

	row++
	w.set(1, row, "Warnings", st.section)
	row++
	if len(warnings) == 0 {
		w.set(1, row, "None", st.plain)
	}
	for _, msg := range warnings {
		w.set(1, row, msg, st.warning)
		row++
	}

	w.width(1, 30)
	w.width(2, 60)
	return w.done()
}
