// Package edgar provides functionality for fetching SEC EDGAR XBRL company facts
// and filing submissions.
package edgar

import "sort"

// TaxonomyUSGAAP is the companyfacts namespace every template tag lives in.
const TaxonomyUSGAAP = "us-gaap"

// Unit categories for fact observations.
const (
	UnitUSD          = "USD"
	UnitShares       = "shares"
	UnitUSDPerShares = "USD/shares"
)

// =============================================================================
// COMPANY FACTS (https://data.sec.gov/api/xbrl/companyfacts/CIK##########.json)
// =============================================================================

// CompanyFacts is the top-level companyfacts response.
// Facts is keyed by taxonomy ("us-gaap", "dei", ...) then by tag.
type CompanyFacts struct {
	CIK        int64                             `json:"cik"`
	EntityName string                            `json:"entityName"`
	Facts      map[string]map[string]FactConcept `json:"facts"`
}

// FactConcept holds every reported observation of one tag, grouped by unit.
type FactConcept struct {
	Label       string                 `json:"label"`
	Description string                 `json:"description,omitempty"`
	Units       map[string][]FactEntry `json:"units"`
}

// FactEntry is a single reported value.
// Start is set only for duration items; instant items carry End alone.
type FactEntry struct {
	End   string   `json:"end"`
	Start string   `json:"start,omitempty"`
	Val   *float64 `json:"val"`
	Accn  string   `json:"accn,omitempty"`
	FY    int      `json:"fy,omitempty"`
	FP    string   `json:"fp,omitempty"`
	Form  string   `json:"form"`
	Filed string   `json:"filed,omitempty"`
	Frame string   `json:"frame,omitempty"`
}

// IsDuration reports whether the entry spans a period.
func (e FactEntry) IsDuration() bool {
	return e.Start != ""
}

// Concept looks up a tag within a taxonomy.
func (f *CompanyFacts) Concept(taxonomy, tag string) (FactConcept, bool) {
	if f == nil || f.Facts == nil {
		return FactConcept{}, false
	}
	concepts, ok := f.Facts[taxonomy]
	if !ok {
		return FactConcept{}, false
	}
	c, ok := concepts[tag]
	return c, ok
}

// Tags returns the sorted tag names available under a taxonomy.
func (f *CompanyFacts) Tags(taxonomy string) []string {
	if f == nil || f.Facts == nil {
		return nil
	}
	tags := make([]string, 0, len(f.Facts[taxonomy]))
	for tag := range f.Facts[taxonomy] {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// UnitKeys returns the concept's unit keys in sorted order so that fallback
// unit resolution is deterministic.
func (c FactConcept) UnitKeys() []string {
	keys := make([]string, 0, len(c.Units))
	for k := range c.Units {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// =============================================================================
// SUBMISSIONS (https://data.sec.gov/submissions/CIK##########.json)
// =============================================================================

// Submissions from SEC API
type Submissions struct {
	CIK            string   `json:"cik"`
	Name           string   `json:"name"`
	SIC            string   `json:"sic,omitempty"`
	SICDescription string   `json:"sicDescription,omitempty"`
	Tickers        []string `json:"tickers"`
	Filings        Filings  `json:"filings"`
}

// Filings contains filing information
type Filings struct {
	Recent RecentFilings `json:"recent"`
}

// RecentFilings holds arrays of filing attributes (parallel arrays).
type RecentFilings struct {
	AccessionNumber []string `json:"accessionNumber"`
	FilingDate      []string `json:"filingDate"`
	ReportDate      []string `json:"reportDate"`
	Form            []string `json:"form"`
	PrimaryDocument []string `json:"primaryDocument"`
}

// RecentCount is the number of filings in the recent window.
func (s *Submissions) RecentCount() int {
	if s == nil {
		return 0
	}
	return len(s.Filings.Recent.AccessionNumber)
}

// CompanyInfo is one row of company_tickers.json, CIK zero-padded to 10 digits.
type CompanyInfo struct {
	CIK    string `json:"cik_str"`
	Title  string `json:"title"`
	Ticker string `json:"ticker"`
}
