// Package report turns the samples of a commune into the view served by the
// API and the CLI, and exports raw samples as CSV or JSON.
package report

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/giygas/qualite-eau-api/hubeau/entities"
	"github.com/giygas/qualite-eau-api/quality"
)

const belowDetection = "< Seuil de détection"

// SampleView is one measurement ready for display.
type SampleView struct {
	Date      string   `json:"date"`
	Value     string   `json:"value"`
	Numeric   *float64 `json:"numeric,omitempty"`
	Unit      string   `json:"unit,omitempty"`
	Reference string   `json:"reference,omitempty"`
	Compliant bool     `json:"compliant"`
}

// ParameterReport is the latest measurement of a parameter and its history,
// most recent first.
type ParameterReport struct {
	Name         string       `json:"name"`
	Definition   string       `json:"definition,omitempty"`
	HasReference bool         `json:"has_reference"`
	Latest       SampleView   `json:"latest"`
	History      []SampleView `json:"history"`
}

type CategoryReport struct {
	Name       quality.Category  `json:"name"`
	Parameters []ParameterReport `json:"parameters"`
}

// Summary is the compliance synthesis of the latest measurements.
type Summary struct {
	GlobalCompliant   bool `json:"global_compliant"`
	ParameterCount    int  `json:"parameter_count"`
	SampleCount       int  `json:"sample_count"`
	NonCompliantCount int  `json:"non_compliant_count"`
}

type CommuneReport struct {
	CommuneName string           `json:"commune_name"`
	Insee       string           `json:"insee"`
	Categories  []CategoryReport `json:"categories"`
	Risk        quality.Risk     `json:"risk"`
	RiskMessage string           `json:"risk_message"`
	Summary     Summary          `json:"summary"`
}

// PostalReport holds the reports of every commune sharing a postal code.
type PostalReport struct {
	PostalCode string          `json:"postal_code"`
	Results    []CommuneReport `json:"results"`
}

// Build computes the report of a commune. Categories come in display order,
// the Non Conformes category last when a latest measurement fails.
func Build(commune entities.Commune, samples []entities.Sample) CommuneReport {
	grouped := quality.CategorizeAndGroup(samples)
	latest := quality.Latest(grouped)
	risk := quality.ComputeRisk(latest)

	r := CommuneReport{
		CommuneName: commune.Nom,
		Insee:       commune.Insee,
		Categories:  make([]CategoryReport, 0, len(grouped)+1),
		Risk:        risk,
		RiskMessage: RiskMessage(risk),
	}

	var failing []ParameterReport
	for _, category := range quality.OrderedCategories(grouped.Keys()) {
		groups := grouped[category]
		cr := CategoryReport{Name: category}

		for _, head := range latest[category] {
			pr := buildParameter(groups[head.LibelleParametre])
			cr.Parameters = append(cr.Parameters, pr)
			if !pr.Latest.Compliant {
				failing = append(failing, pr)
			}
			r.Summary.SampleCount += len(pr.History)
		}
		r.Summary.ParameterCount += len(cr.Parameters)
		r.Categories = append(r.Categories, cr)
	}

	if len(failing) > 0 {
		r.Categories = append(r.Categories, CategoryReport{Name: quality.CategoryNonConformes, Parameters: failing})
	}

	r.Summary.NonCompliantCount = len(failing)
	r.Summary.GlobalCompliant = len(failing) == 0
	return r
}

func buildParameter(group []entities.Sample) ParameterReport {
	history := make([]SampleView, 0, len(group))
	for _, s := range group {
		history = append(history, View(s))
	}

	head := group[0]
	definition, _ := Definition(head.LibelleParametre)
	return ParameterReport{
		Name:         head.LibelleParametre,
		Definition:   definition,
		HasReference: strings.TrimSpace(head.ReferenceText()) != "",
		Latest:       history[0],
		History:      history,
	}
}

// View converts a sample for display.
func View(s entities.Sample) SampleView {
	v := SampleView{
		Date:      s.DatePrelevement,
		Value:     FormatResult(s),
		Unit:      s.LibelleUnite,
		Reference: s.ReferenceText(),
		Compliant: quality.IsCompliant(s),
	}
	if n := quality.ParseResult(s.ResultatAlphanumerique, s.ResultatNumerique); !math.IsNaN(n) && !math.IsInf(n, 0) {
		v.Numeric = &n
	}
	return v
}

// FormatResult returns the display text of a result. Detection-limit
// markers read "< Seuil de détection".
func FormatResult(s entities.Sample) string {
	alpha := strings.TrimSpace(s.ResultatAlphanumerique)
	switch {
	case alpha != "" && quality.IsBelowDetection(alpha):
		return belowDetection
	case alpha != "":
		return alpha
	case s.ResultatNumerique != nil:
		return strconv.FormatFloat(*s.ResultatNumerique, 'f', -1, 64)
	}
	return "N/A"
}

// RiskMessage is the one-line risk banner, e.g. "Risque Faible (1/20 non conformes)".
func RiskMessage(r quality.Risk) string {
	if r.Level == quality.RiskUnknown {
		return r.Level.Label()
	}
	return fmt.Sprintf("%s (%d/%d non conformes)", r.Level.Label(), r.NonCompliantCount, r.TotalCount)
}
