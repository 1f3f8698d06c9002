package validation

import (
	"strings"
	"testing"

	"github.com/giygas/qualite-eau-api/hubeau/entities"
)

func TestNewDataValidator(t *testing.T) {
	validator := NewDataValidator()

	if validator == nil {
		t.Fatal("NewDataValidator returned nil")
	}

	if _, ok := validator.(*DataValidatorImpl); !ok {
		t.Error("NewDataValidator should return *DataValidatorImpl")
	}
}

func TestValidatePostalCode(t *testing.T) {
	testCases := []struct {
		name    string
		code    string
		wantErr bool
	}{
		{"Bordeaux", "33000", false},
		{"Leading zero", "01000", false},
		{"Corsica", "20000", false},
		{"Empty", "", true},
		{"Too short", "3300", true},
		{"Too long", "330000", true},
		{"Letters", "33A00", true},
		{"Spaces", " 33000", true},
		{"Arabic-Indic digits", "٣٣٠٠٠", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePostalCode(tc.code)
			if (err != nil) != tc.wantErr {
				t.Errorf("ValidatePostalCode(%q) error = %v, wantErr %v", tc.code, err, tc.wantErr)
			}
		})
	}
}

func TestValidateInsee(t *testing.T) {
	testCases := []struct {
		name    string
		code    string
		wantErr bool
	}{
		{"Bordeaux", "33063", false},
		{"Paris arrondissement", "75101", false},
		{"Corse-du-Sud", "2A004", false},
		{"Haute-Corse", "2B033", false},
		{"Lowercase Corsica", "2a004", true},
		{"Other letter", "2C004", true},
		{"Empty", "", true},
		{"Too short", "3306", true},
		{"Path traversal", "../33", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateInsee(tc.code)
			if (err != nil) != tc.wantErr {
				t.Errorf("ValidateInsee(%q) error = %v, wantErr %v", tc.code, err, tc.wantErr)
			}
		})
	}
}

func TestValidateExportFormat(t *testing.T) {
	validator := NewDataValidator()

	for _, format := range []string{"csv", "json"} {
		if err := validator.ValidateExportFormat(format); err != nil {
			t.Errorf("Expected %s to be accepted, got: %v", format, err)
		}
	}

	for _, format := range []string{"", "CSV", "pdf", "xml"} {
		if err := validator.ValidateExportFormat(format); err == nil {
			t.Errorf("Expected %q to be rejected", format)
		}
	}
}

func TestValidateInput_Valid(t *testing.T) {
	validator := NewDataValidator()

	validInputs := []string{
		"Nitrates",
		"pH",
		"Nitrates (en NO3)",
		"Escherichia coli /100ml",
		"Bact. aér. revivifiables à 22°-68h",
		"Température de l'eau",
		"Chlore libre",
	}

	for _, input := range validInputs {
		t.Run(input, func(t *testing.T) {
			if err := validator.ValidateInput(input); err != nil {
				t.Errorf("Expected no error for %q, got: %v", input, err)
			}
		})
	}
}

func TestValidateInput_Rejected(t *testing.T) {
	validator := NewDataValidator()

	testCases := []struct {
		name          string
		input         string
		expectedError string
	}{
		{"Empty", "", "cannot be empty"},
		{"Whitespace", "   ", "cannot be empty"},
		{"Too short", "a", "too short"},
		{"Too long", strings.Repeat("ab ", 40), "too long"},
		{"Too many words", "a b c d e f g h i j k", "too complex"},
		{"Script tag", "<script>alert(1)</script>", "dangerous"},
		{"SQL union", "x union select password", "dangerous"},
		{"SQL comment", "Nitrates--", "dangerous"},
		{"Command chain", "pH; rm -rf", "dangerous"},
		{"Path traversal", "../etc/passwd", "dangerous"},
		{"Invalid characters", "Nitrates<>", "invalid characters"},
		{"Repetition", "aaaaaaaaaaaa", "repetition"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := validator.ValidateInput(tc.input)
			if err == nil {
				t.Fatalf("Expected error for %q", tc.input)
			}
			if !strings.Contains(err.Error(), tc.expectedError) {
				t.Errorf("Expected error containing '%s', got '%s'", tc.expectedError, err.Error())
			}
		})
	}
}

func TestHasExcessiveRepetition(t *testing.T) {
	testCases := []struct {
		input    string
		expected bool
	}{
		{"", false},
		{"abc", false},
		{"aaaaaaaaaa", false}, // 10
		{"aaaaaaaaaaa", true}, // 11
		{"xaaaaaaaaaaax", true},
		{"aaaaabbbbbaaaaa", false},
	}

	for _, tc := range testCases {
		if got := hasExcessiveRepetition(tc.input); got != tc.expected {
			t.Errorf("hasExcessiveRepetition(%q) = %v, want %v", tc.input, got, tc.expected)
		}
	}
}

func TestReportDataQuality(t *testing.T) {
	validator := NewDataValidator()

	mapping := map[string][]entities.Commune{
		"33000": {{Insee: "33063", Nom: "Bordeaux"}},
		"33700": {{Insee: "33281", Nom: "Mérignac"}, {Insee: "33281", Nom: "Merignac"}},
		"20000": {{Insee: "2A004", Nom: "Ajaccio"}},
		"9999":  {{Insee: "99999", Nom: "Nulle part"}},
		"44000": {{Insee: "44X09", Nom: "Nantes"}},
		"59000": {},
	}

	report := validator.ReportDataQuality(mapping)

	if report.PostalCodes != 6 {
		t.Errorf("Expected 6 postal codes, got %d", report.PostalCodes)
	}
	if report.Communes != 6 {
		t.Errorf("Expected 6 communes, got %d", report.Communes)
	}
	if report.InvalidPostalCodeCount != 1 || report.InvalidPostalCodes[0] != "9999" {
		t.Errorf("Expected invalid postal code 9999, got %v", report.InvalidPostalCodes)
	}
	if report.InvalidInseeCount != 1 || report.InvalidInsee[0] != "44000/44X09" {
		t.Errorf("Expected invalid INSEE 44000/44X09, got %v", report.InvalidInsee)
	}
	if report.EmptyPostalCodeCount != 1 || report.EmptyPostalCodes[0] != "59000" {
		t.Errorf("Expected empty postal code 59000, got %v", report.EmptyPostalCodes)
	}
	if report.DuplicateInseeCount != 1 || report.DuplicateInsee[0] != "33700/33281" {
		t.Errorf("Expected duplicate 33700/33281, got %v", report.DuplicateInsee)
	}
}

func TestReportDataQuality_CapsExamples(t *testing.T) {
	validator := NewDataValidator()

	mapping := make(map[string][]entities.Commune)
	for i := 0; i < 25; i++ {
		mapping[strings.Repeat("x", i+1)] = []entities.Commune{{Insee: "33063"}}
	}

	report := validator.ReportDataQuality(mapping)
	if report.InvalidPostalCodeCount != 25 {
		t.Errorf("Expected 25 invalid postal codes, got %d", report.InvalidPostalCodeCount)
	}
	if len(report.InvalidPostalCodes) != maxReportedCodes {
		t.Errorf("Expected %d examples, got %d", maxReportedCodes, len(report.InvalidPostalCodes))
	}
}

func TestValidateMapping(t *testing.T) {
	validator := NewDataValidator()

	if err := validator.ValidateMapping(nil); err == nil {
		t.Error("Expected error for empty mapping")
	}

	unusable := map[string][]entities.Commune{
		"abc":   {{Insee: "33063"}},
		"33000": {},
	}
	if err := validator.ValidateMapping(unusable); err == nil {
		t.Error("Expected error for mapping without usable postal code")
	}

	usable := map[string][]entities.Commune{
		"abc":   {{Insee: "33063"}},
		"33000": {{Insee: "33063", Nom: "Bordeaux"}},
	}
	if err := validator.ValidateMapping(usable); err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}
}

func TestReportSampleQuality(t *testing.T) {
	validator := NewDataValidator()

	samples := []entities.Sample{
		{LibelleParametre: "Nitrates", DatePrelevement: "2024-01-15T10:00:00Z"},
		{LibelleParametre: "", DatePrelevement: "2024-01-15"},
		{LibelleParametre: "pH", DatePrelevement: ""},
		{LibelleParametre: "pH", DatePrelevement: "hier"},
		{LibelleParametre: "Chlore", DatePrelevement: "hier"},
	}

	report := validator.ReportSampleQuality(samples)

	if report.Total != 5 {
		t.Errorf("Expected 5 samples, got %d", report.Total)
	}
	if report.WithoutLabel != 1 {
		t.Errorf("Expected 1 sample without label, got %d", report.WithoutLabel)
	}
	if report.WithoutDate != 1 {
		t.Errorf("Expected 1 sample without date, got %d", report.WithoutDate)
	}
	if report.UnparseableDateCount != 2 {
		t.Errorf("Expected 2 unparseable dates, got %d", report.UnparseableDateCount)
	}
	if len(report.UnparseableDates) != 1 || report.UnparseableDates[0] != "hier" {
		t.Errorf("Expected distinct unparseable dates [hier], got %v", report.UnparseableDates)
	}
}

func BenchmarkValidateInput(b *testing.B) {
	validator := NewDataValidator()
	for i := 0; i < b.N; i++ {
		_ = validator.ValidateInput("Bact. aér. revivifiables à 22°-68h")
	}
}
