package entities

import (
	"strings"
	"time"
)

// Sample is one analysis result of the Hub'Eau resultats_dis endpoint: a single
// parameter measured at a single date for one commune.
type Sample struct {
	CodeDepartement        string   `json:"code_departement,omitempty"`
	NomDepartement         string   `json:"nom_departement,omitempty"`
	CodePrelevement        string   `json:"code_prelevement,omitempty"`
	CodeParametre          string   `json:"code_parametre,omitempty"`
	LibelleParametre       string   `json:"libelle_parametre"`
	ResultatAlphanumerique string   `json:"resultat_alphanumerique,omitempty"`
	ResultatNumerique      *float64 `json:"resultat_numerique,omitempty"`
	LibelleUnite           string   `json:"libelle_unite,omitempty"`
	LimiteQualite          string   `json:"limite_qualite_parametre,omitempty"`
	ReferenceQualite       string   `json:"reference_qualite_parametre,omitempty"`
	CodeCommune            string   `json:"code_commune,omitempty"`
	NomCommune             string   `json:"nom_commune,omitempty"`
	DatePrelevement        string   `json:"date_prelevement,omitempty"`
	ConclusionConformite   string   `json:"conclusion_conformite_prelevement,omitempty"`
	ConformiteLimitesBact  string   `json:"conformite_limites_bact_prelevement,omitempty"`
	ConformiteLimitesPC    string   `json:"conformite_limites_pc_prelevement,omitempty"`
	ConformiteRefsBact     string   `json:"conformite_references_bact_prelevement,omitempty"`
	ConformiteRefsPC       string   `json:"conformite_references_pc_prelevement,omitempty"`
	Longitude              *float64 `json:"longitude,omitempty"`
	Latitude               *float64 `json:"latitude,omitempty"`
}

// Layouts accepted for date_prelevement, most specific first.
var sampleDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006",
}

// Date parses DatePrelevement. The zero time is returned when the field is
// empty or in an unknown layout.
func (s Sample) Date() time.Time {
	raw := strings.TrimSpace(s.DatePrelevement)
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range sampleDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}

// ReferenceText returns the reference applicable to the sample: the quality
// reference when present, the quality limit otherwise.
func (s Sample) ReferenceText() string {
	if strings.TrimSpace(s.ReferenceQualite) != "" {
		return s.ReferenceQualite
	}
	return s.LimiteQualite
}
