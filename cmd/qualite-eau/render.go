package main

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/giygas/qualite-eau-api/quality"
	"github.com/giygas/qualite-eau-api/report"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true)
	categoryStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#06B6D4"))
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086"))
	okStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#A6E3A1"))
	warnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#F9E2AF"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F38BA8"))
)

func riskStyle(level quality.RiskLevel) lipgloss.Style {
	switch level {
	case quality.RiskLow:
		return okStyle.Bold(true)
	case quality.RiskMedium:
		return warnStyle.Bold(true)
	case quality.RiskHigh:
		return errorStyle.Bold(true)
	default:
		return mutedStyle
	}
}

func renderPostalReport(w io.Writer, r report.PostalReport) {
	if r.PostalCode != "" {
		fmt.Fprintln(w, titleStyle.Render("Code postal "+r.PostalCode))
		fmt.Fprintln(w)
	}
	for i, commune := range r.Results {
		if i > 0 {
			fmt.Fprintln(w)
		}
		renderCommuneReport(w, commune)
	}
}

func renderCommuneReport(w io.Writer, c report.CommuneReport) {
	name := c.CommuneName
	if c.Insee != "" {
		name += " (" + c.Insee + ")"
	}
	fmt.Fprintln(w, titleStyle.Render(name))
	fmt.Fprintln(w, "  "+riskStyle(c.Risk.Level).Render(c.RiskMessage))

	conformity := okStyle.Render("conforme")
	if !c.Summary.GlobalCompliant {
		conformity = errorStyle.Render("non conforme")
	}
	fmt.Fprintf(w, "  %d paramètres, %d mesures, eau %s\n",
		c.Summary.ParameterCount, c.Summary.SampleCount, conformity)

	for _, category := range c.Categories {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "  "+categoryStyle.Render(string(category.Name)))
		for _, p := range category.Parameters {
			mark := okStyle.Render("✓")
			if !p.Latest.Compliant {
				mark = errorStyle.Render("✗")
			}
			value := p.Latest.Value
			if p.Latest.Unit != "" {
				value += " " + p.Latest.Unit
			}
			fmt.Fprintf(w, "    %s %s: %s %s\n", mark, p.Name, value, mutedStyle.Render(p.Latest.Date))
		}
	}
}

func formatRange(r quality.Range) string {
	format := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	switch {
	case math.IsInf(r.Min, -1) && math.IsInf(r.Max, 1):
		return "aucun"
	case math.IsInf(r.Min, -1):
		return "≤ " + format(r.Max)
	case math.IsInf(r.Max, 1):
		return "≥ " + format(r.Min)
	}
	return format(r.Min) + " à " + format(r.Max)
}
