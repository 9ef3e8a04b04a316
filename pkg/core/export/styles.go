package export

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"pitchsheet/pkg/core/calc"
)

// Number formats.
const (
	fmtUSD   = `#,##0;(#,##0);"-"`
	fmtPct   = `0.0%;(0.0%);"-"`
	fmtEPS   = `#,##0.00;(#,##0.00);"-"`
	fmtRatio = `0.00x;(0.00x);"-"`
	fmtText  = "@"
)

const (
	brandColor  = "1F4E79"
	borderColor = "D0D0D0"
	warnColor   = "CC6600"
	missingMark = "—"
)

// styles holds the style ids registered on one workbook.
type styles struct {
	title   int
	header  int
	label   int
	missing int
	section int
	warning int
	plain   int
	formats map[string]int
}

func newStyles(f *excelize.File) (*styles, error) {
	bottom := []excelize.Border{{Type: "bottom", Color: borderColor, Style: 1}}

	s := &styles{formats: make(map[string]int)}
	defs := []struct {
		dst   *int
		style *excelize.Style
	}{
		{&s.title, &excelize.Style{Font: &excelize.Font{Family: "Calibri", Bold: true, Size: 13, Color: brandColor}}},
		{&s.header, &excelize.Style{
			Font:      &excelize.Font{Family: "Calibri", Bold: true, Size: 11, Color: "FFFFFF"},
			Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{brandColor}},
			Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
			Border:    bottom,
		}},
		{&s.label, &excelize.Style{Font: &excelize.Font{Family: "Calibri", Bold: true, Size: 10}, Border: bottom}},
		{&s.missing, &excelize.Style{
			Font:      &excelize.Font{Family: "Calibri", Size: 10},
			Alignment: &excelize.Alignment{Horizontal: "center"},
			Border:    bottom,
		}},
		{&s.section, &excelize.Style{Font: &excelize.Font{Family: "Calibri", Bold: true, Size: 11}}},
		{&s.warning, &excelize.Style{Font: &excelize.Font{Family: "Calibri", Size: 9, Color: warnColor}}},
		{&s.plain, &excelize.Style{Font: &excelize.Font{Family: "Calibri", Size: 10}}},
	}
	for _, d := range defs {
		id, err := f.NewStyle(d.style)
		if err != nil {
			return nil, fmt.Errorf("failed to register style: %w", err)
		}
		*d.dst = id
	}

	for _, numFmt := range []string{fmtUSD, fmtPct, fmtEPS, fmtRatio, fmtText} {
		id, err := f.NewStyle(&excelize.Style{
			Font:         &excelize.Font{Family: "Calibri", Size: 10},
			Alignment:    &excelize.Alignment{Horizontal: "right"},
			Border:       bottom,
			CustomNumFmt: &numFmt,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to register number format %q: %w", numFmt, err)
		}
		s.formats[numFmt] = id
	}
	return s, nil
}

// lineItemFormat picks a number format from a statement row name.
func lineItemFormat(name string) string {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "eps"):
		return fmtEPS
	case strings.Contains(lower, "share"):
		return fmtUSD
	case strings.Contains(lower, "margin"), strings.Contains(lower, "growth"),
		strings.Contains(lower, "cagr"), strings.Contains(lower, "change"):
		return fmtPct
	default:
		return fmtUSD
	}
}

func metricFormat(kind calc.Kind) string {
	switch kind {
	case calc.KindPercent:
		return fmtPct
	case calc.KindRatio:
		return fmtRatio
	case calc.KindText:
		return fmtText
	default:
		return fmtUSD
	}
}

func chartNumFmt(format ValueFormat) string {
	switch format {
	case FormatPercent:
		return fmtPct
	default:
		return fmtUSD
	}
}
