package report

import "strings"

var glossary = map[string]string{
	"Escherichia coli":     "Bactérie intestinale dont la présence indique une contamination fécale récente. Elle ne doit pas être présente dans l'eau potable.",
	"Entérocoques":         "Bactéries intestinales plus résistantes que E. coli. Leur présence indique une contamination fécale ancienne ou intermittente.",
	"Nitrates":             "Composés provenant souvent des engrais agricoles. En excès (> 50 mg/L), ils peuvent être dangereux, notamment pour les nourrissons (méthémoglobinémie).",
	"Plomb":                "Métal lourd toxique (saturnisme) provenant souvent des anciennes canalisations. La limite est de 10 µg/L.",
	"Pesticides":           "Substances chimiques utilisées pour protéger les cultures. Leur présence est surveillée car elles peuvent être toxiques à long terme.",
	"pH":                   "Mesure de l'acidité de l'eau. L'eau potable doit être équilibrée (entre 6,5 et 8,5) pour ne pas être corrosive ni entartrante.",
	"Chlore":               "Utilisé pour désinfecter l'eau et éliminer les bactéries. Un léger goût est normal et garantit l'absence de microbes.",
	"Dureté":               "Teneur en calcaire (Calcium + Magnésium). Une eau dure entartre les appareils mais n'est pas dangereuse pour la santé.",
	"Conductivité":         "Capacité de l'eau à conduire l'électricité, liée à sa teneur en minéraux dissous.",
	"Turbidité":            "Trouble de l'eau dû à des particules en suspension. Une eau trouble peut protéger les bactéries de la désinfection.",
	"Aluminium":            "Utilisé parfois pour clarifier l'eau. À forte dose, il est surveillé pour ses effets potentiels sur la santé.",
	"Fluor":                "Oligo-élément bénéfique pour les dents à faible dose, mais toxique en excès (fluorose).",
	"Bactéries coliformes": "Indicateurs de la qualité microbiologique globale. Leur présence impose des investigations.",
	"Ammonium":             "Indicateur de pollution organique ou de mauvais fonctionnement du traitement.",

	"Tétrachloroéthylèn+Trichloroéthylène": "Solvants chlorés volatils, souvent issus de l'industrie ou de pressings. Classés comme cancérogènes probables.",
}

// Definition returns the glossary entry of a parameter label. The lookup is
// exact first, then case-insensitive.
func Definition(label string) (string, bool) {
	if def, ok := glossary[label]; ok {
		return def, true
	}
	for term, def := range glossary {
		if strings.EqualFold(term, label) {
			return def, true
		}
	}
	return "", false
}

// Glossary returns a copy of the glossary.
func Glossary() map[string]string {
	out := make(map[string]string, len(glossary))
	for term, def := range glossary {
		out[term] = def
	}
	return out
}
