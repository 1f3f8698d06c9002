// Package validation validates user input and the quality of loaded data.
package validation

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/giygas/qualite-eau-api/hubeau/entities"
	"github.com/giygas/qualite-eau-api/interfaces"
	"github.com/giygas/qualite-eau-api/logging"
)

var (
	postalCodeRegex = regexp.MustCompile(`^\d{5}$`)

	// INSEE commune codes: 5 digits, or 2A/2B followed by 3 digits in Corsica.
	inseeRegex = regexp.MustCompile(`^(?:\d{5}|2[AB]\d{3})$`)

	// Free text: letters, digits, French accents and safe punctuation.
	inputRegex = regexp.MustCompile(`^[a-zA-Z0-9\s\-\.\+'(),/°µàâäéèêëïîôöùûüÿçÀÂÄÉÈÊËÏÎÔÖÙÛÜŸÇ]+$`)

	dangerousPatterns = []string{
		"<script", "</script>", "javascript:", "vbscript:", "onload=", "onerror=",
		"onclick=", "onmouseover=", "eval(", "expression(", "@import",
		// SQL injection
		"' or ", "\" or ", "union select", "drop table", "delete from", "insert into",
		"--", "/*", "*/", "exec(",
		// Command injection
		"; ", "| ", "& ", "`", "$(", "${",
		// Path traversal
		"../", "..\\", "%2e%2e", "file://",
	}

	exportFormats = []string{"csv", "json"}
)

// maxReportedCodes bounds the example lists of a quality report.
const maxReportedCodes = 10

// ValidatePostalCode accepts exactly five ASCII digits.
func ValidatePostalCode(code string) error {
	if code == "" {
		return fmt.Errorf("postal code cannot be empty")
	}
	if !postalCodeRegex.MatchString(code) {
		return fmt.Errorf("invalid postal code %q: expected 5 digits", code)
	}
	return nil
}

// ValidateInsee accepts a commune INSEE code.
func ValidateInsee(code string) error {
	if code == "" {
		return fmt.Errorf("INSEE code cannot be empty")
	}
	if !inseeRegex.MatchString(code) {
		return fmt.Errorf("invalid INSEE code %q: expected 5 digits or 2A/2B followed by 3 digits", code)
	}
	return nil
}

// ValidateExportFormat accepts csv and json.
func ValidateExportFormat(format string) error {
	if !slices.Contains(exportFormats, format) {
		return fmt.Errorf("unsupported export format %q: expected one of %v", format, exportFormats)
	}
	return nil
}

// DataValidatorImpl implements the interfaces.DataValidator interface
type DataValidatorImpl struct{}

// NewDataValidator creates a new data validator
func NewDataValidator() interfaces.DataValidator {
	return &DataValidatorImpl{}
}

func (v *DataValidatorImpl) ValidatePostalCode(code string) error {
	return ValidatePostalCode(code)
}

func (v *DataValidatorImpl) ValidateInsee(code string) error {
	return ValidateInsee(code)
}

func (v *DataValidatorImpl) ValidateExportFormat(format string) error {
	return ValidateExportFormat(format)
}

// ValidateInput validates free text such as a parameter label.
func (v *DataValidatorImpl) ValidateInput(input string) error {
	if strings.TrimSpace(input) == "" {
		return fmt.Errorf("input cannot be empty")
	}

	if len(input) < 2 {
		return fmt.Errorf("input too short: minimum 2 characters")
	}

	if len(input) > 100 {
		return fmt.Errorf("input too long: maximum 100 characters")
	}

	if words := strings.Fields(input); len(words) > 10 {
		return fmt.Errorf("input too complex: maximum 10 words allowed")
	}

	lowerInput := strings.ToLower(input)
	for _, pattern := range dangerousPatterns {
		if strings.Contains(lowerInput, pattern) {
			return fmt.Errorf("input contains potentially dangerous content")
		}
	}

	if !inputRegex.MatchString(input) {
		return fmt.Errorf("input contains invalid characters")
	}

	if hasExcessiveRepetition(input) {
		return fmt.Errorf("input contains excessive character repetition")
	}

	return nil
}

// hasExcessiveRepetition reports the same byte repeated more than 10 times in a row.
func hasExcessiveRepetition(input string) bool {
	run := 1
	for i := 1; i < len(input); i++ {
		if input[i] == input[i-1] {
			run++
			if run > 10 {
				return true
			}
		} else {
			run = 1
		}
	}
	return false
}

// ValidateMapping rejects a mapping that cannot serve requests.
func (v *DataValidatorImpl) ValidateMapping(mapping map[string][]entities.Commune) error {
	if len(mapping) == 0 {
		return fmt.Errorf("postal mapping is empty")
	}

	report := v.ReportDataQuality(mapping)
	usable := report.PostalCodes - report.InvalidPostalCodeCount - report.EmptyPostalCodeCount
	if usable <= 0 {
		return fmt.Errorf("postal mapping has no usable postal code out of %d", report.PostalCodes)
	}
	return nil
}

// ReportDataQuality lists the defects of a postal mapping. Example lists are
// sorted and capped at 10 entries.
func (v *DataValidatorImpl) ReportDataQuality(mapping map[string][]entities.Commune) *interfaces.DataQualityReport {
	report := &interfaces.DataQualityReport{
		PostalCodes:        len(mapping),
		InvalidPostalCodes: []string{},
		InvalidInsee:       []string{},
		EmptyPostalCodes:   []string{},
		DuplicateInsee:     []string{},
	}

	codes := make([]string, 0, len(mapping))
	for code := range mapping {
		codes = append(codes, code)
	}
	slices.Sort(codes)

	for _, code := range codes {
		communes := mapping[code]
		report.Communes += len(communes)

		if ValidatePostalCode(code) != nil {
			report.InvalidPostalCodeCount++
			report.InvalidPostalCodes = appendCapped(report.InvalidPostalCodes, code)
		}
		if len(communes) == 0 {
			report.EmptyPostalCodeCount++
			report.EmptyPostalCodes = appendCapped(report.EmptyPostalCodes, code)
		}

		seen := make(map[string]bool, len(communes))
		for _, c := range communes {
			if ValidateInsee(c.Insee) != nil {
				report.InvalidInseeCount++
				report.InvalidInsee = appendCapped(report.InvalidInsee, code+"/"+c.Insee)
			}
			if seen[c.Insee] {
				report.DuplicateInseeCount++
				report.DuplicateInsee = appendCapped(report.DuplicateInsee, code+"/"+c.Insee)
			}
			seen[c.Insee] = true
		}
	}

	if report.InvalidPostalCodeCount > 0 || report.InvalidInseeCount > 0 || report.DuplicateInseeCount > 0 {
		logging.Warn("Postal mapping quality issues",
			"invalid_postal_codes", report.InvalidPostalCodeCount,
			"invalid_insee", report.InvalidInseeCount,
			"duplicate_insee", report.DuplicateInseeCount,
			"empty_postal_codes", report.EmptyPostalCodeCount,
		)
	}

	return report
}

// ReportSampleQuality counts the samples that cannot be categorized or dated.
func (v *DataValidatorImpl) ReportSampleQuality(samples []entities.Sample) *interfaces.SampleQualityReport {
	report := &interfaces.SampleQualityReport{
		Total:            len(samples),
		UnparseableDates: []string{},
	}

	for _, s := range samples {
		if strings.TrimSpace(s.LibelleParametre) == "" {
			report.WithoutLabel++
		}
		switch {
		case strings.TrimSpace(s.DatePrelevement) == "":
			report.WithoutDate++
		case s.Date().IsZero():
			report.UnparseableDateCount++
			if !slices.Contains(report.UnparseableDates, s.DatePrelevement) {
				report.UnparseableDates = appendCapped(report.UnparseableDates, s.DatePrelevement)
			}
		}
	}

	return report
}

func appendCapped(list []string, value string) []string {
	if len(list) >= maxReportedCodes {
		return list
	}
	return append(list, value)
}
