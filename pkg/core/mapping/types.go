// Package mapping resolves raw XBRL company facts into the canonical
// Income_Statement / Balance_Sheet / Cash_Flow templates and aligns them onto a
// single period axis.
//
// Everything in this package is a pure function of its inputs: no I/O, no
// logging, no shared state. Gaps in the source data surface as warnings and
// nil values, never as errors.
package mapping

// Observation is one resolved value for a canonical line item.
type Observation struct {
	PeriodEnd string  `json:"period_end"`
	Value     float64 `json:"value"`
	Form      string  `json:"form"`
}

// MappedLine is a canonical line item with its observations, most recent first.
// Tag is the alias that won candidate selection (empty for derived or missing items).
type MappedLine struct {
	Name         string        `json:"name"`
	Tag          string        `json:"tag,omitempty"`
	Observations []Observation `json:"observations"`
}

// MappedStatement holds one template's lines in template order.
type MappedStatement struct {
	Name  string       `json:"name"`
	Lines []MappedLine `json:"lines"`
}

// Line returns the named line, or nil.
func (s *MappedStatement) Line(name string) *MappedLine {
	if s == nil {
		return nil
	}
	for i := range s.Lines {
		if s.Lines[i].Name == name {
			return &s.Lines[i]
		}
	}
	return nil
}

// Observations returns the named line's observations (nil if absent).
func (s *MappedStatement) Observations(name string) []Observation {
	if l := s.Line(name); l != nil {
		return l.Observations
	}
	return nil
}

// MappedStatements is the mapper output: one statement per template, in sheet order.
type MappedStatements struct {
	Statements []MappedStatement `json:"statements"`
}

// Statement returns the named statement, or nil.
func (m *MappedStatements) Statement(name string) *MappedStatement {
	if m == nil {
		return nil
	}
	for i := range m.Statements {
		if m.Statements[i].Name == name {
			return &m.Statements[i]
		}
	}
	return nil
}

// Populated counts line items with at least one observation, and all line items.
func (m *MappedStatements) Populated() (filled, total int) {
	if m == nil {
		return 0, 0
	}
	for _, s := range m.Statements {
		for _, l := range s.Lines {
			total++
			if len(l.Observations) > 0 {
				filled++
			}
		}
	}
	return filled, total
}

// =============================================================================
// PERIOD-ALIGNED OUTPUT
// =============================================================================

// NormalizedLine holds one value slot per period on the aligned axis.
// A nil slot means "no data", which is distinct from zero.
type NormalizedLine struct {
	Name   string     `json:"name"`
	Values []*float64 `json:"values"`
}

// NormalizedStatement is a statement projected onto the period axis.
type NormalizedStatement struct {
	Name  string           `json:"name"`
	Lines []NormalizedLine `json:"lines"`
}

// Values returns the named line's slots, or nil when the line is absent.
func (s *NormalizedStatement) Values(name string) []*float64 {
	if s == nil {
		return nil
	}
	for i := range s.Lines {
		if s.Lines[i].Name == name {
			return s.Lines[i].Values
		}
	}
	return nil
}

// NormalizedStatements is the NormalizePeriods output, in sheet order.
type NormalizedStatements struct {
	Statements []NormalizedStatement `json:"statements"`
}

// Statement returns the named statement, or nil.
func (n *NormalizedStatements) Statement(name string) *NormalizedStatement {
	if n == nil {
		return nil
	}
	for i := range n.Statements {
		if n.Statements[i].Name == name {
			return &n.Statements[i]
		}
	}
	return nil
}

// Series is shorthand for Statement(statement).Values(line).
func (n *NormalizedStatements) Series(statement, line string) []*float64 {
	return n.Statement(statement).Values(line)
}
