package mapping

import (
	"fmt"
	"math"
	"strings"

	"pitchsheet/pkg/core/edgar"
	"pitchsheet/pkg/models"
)

// maxTagsInWarning bounds how many aliases a missing-item warning lists.
const maxTagsInWarning = 3

// MapFactsToStatements resolves every template line item against the US-GAAP
// facts of one company.
//
// For each non-derived item, every alias tag present in the facts is a
// candidate. The candidate with the most recent period end wins; ties go to
// the one with more observations, then to the earlier alias. Items with no
// candidate get an empty observation list and a warning. Derived items are
// computed after all templates are mapped.
func MapFactsToStatements(facts *edgar.CompanyFacts, periodType models.PeriodType, numPeriods int) (*MappedStatements, []string) {
	mapped := &MappedStatements{Statements: make([]MappedStatement, 0, len(allTemplates))}
	warnings := make([]string, 0)

	for _, tmpl := range allTemplates {
		stmt := MappedStatement{Name: tmpl.Name, Lines: make([]MappedLine, 0, len(tmpl.Items))}

		for _, item := range tmpl.Items {
			line := MappedLine{Name: item.Name, Observations: []Observation{}}
			if item.Derived {
				stmt.Lines = append(stmt.Lines, line)
				continue
			}

			if best, ok := selectCandidate(facts, item, periodType, numPeriods); ok {
				line.Tag = best.tag
				line.Observations = best.observations
			} else {
				warnings = append(warnings, missingItemWarning(tmpl.Name, item))
			}
			stmt.Lines = append(stmt.Lines, line)
		}

		mapped.Statements = append(mapped.Statements, stmt)
	}

	warnings = append(warnings, computeDerived(mapped)...)
	return mapped, warnings
}

type candidate struct {
	tag          string
	observations []Observation
}

func (c candidate) maxEnd() string {
	if len(c.observations) == 0 {
		return ""
	}
	return c.observations[0].PeriodEnd
}

func selectCandidate(facts *edgar.CompanyFacts, item LineItem, periodType models.PeriodType, numPeriods int) (candidate, bool) {
	var best candidate
	found := false

	for _, tag := range item.Tags {
		concept, ok := facts.Concept(edgar.TaxonomyUSGAAP, tag)
		if !ok {
			continue
		}
		obs := extractPeriods(concept, item.Unit, periodType, numPeriods)
		if len(obs) == 0 {
			continue
		}

		c := candidate{tag: tag, observations: obs}
		if !found ||
			c.maxEnd() > best.maxEnd() ||
			(c.maxEnd() == best.maxEnd() && len(c.observations) > len(best.observations)) {
			best = c
			found = true
		}
	}
	return best, found
}

func missingItemWarning(statement string, item LineItem) string {
	shown := item.Tags
	suffix := ""
	if len(shown) > maxTagsInWarning {
		shown = shown[:maxTagsInWarning]
		suffix = "..."
	}
	return fmt.Sprintf("%s.%s: no data found (tried tags: %s%s)",
		statement, item.Name, strings.Join(shown, ", "), suffix)
}

// =============================================================================
// DERIVED ITEMS
// =============================================================================

// computeDerived fills Free Cash Flow = CFO - |Capex| for every CFO period end.
func computeDerived(mapped *MappedStatements) []string {
	cf := mapped.Statement(CashFlowName)
	if cf == nil {
		return nil
	}
	fcf := cf.Line(LineFreeCashFlow)
	if fcf == nil {
		return nil
	}

	cfo := cf.Observations(LineOperatingCF)
	capex := cf.Observations(LineCapex)

	if len(cfo) == 0 || len(capex) == 0 {
		var warnings []string
		if len(cfo) == 0 {
			warnings = append(warnings, fmt.Sprintf("%s.%s: cannot compute, no CFO data", CashFlowName, LineFreeCashFlow))
		}
		if len(capex) == 0 {
			warnings = append(warnings, fmt.Sprintf("%s.%s: cannot compute, no Capex data", CashFlowName, LineFreeCashFlow))
		}
		return warnings
	}

	capexByEnd := make(map[string]float64, len(capex))
	for _, o := range capex {
		capexByEnd[o.PeriodEnd] = o.Value
	}

	// A CFO period without a matching capex figure counts capex as zero.
	derived := make([]Observation, 0, len(cfo))
	for _, o := range cfo {
		derived = append(derived, Observation{
			PeriodEnd: o.PeriodEnd,
			Value:     o.Value - math.Abs(capexByEnd[o.PeriodEnd]),
			Form:      o.Form,
		})
	}
	fcf.Observations = derived
	return nil
}
