// Package quality implements the drinking-water compliance engine: parameter
// categorization, result and reference parsing, compliance evaluation,
// grouping of repeated measurements and the global risk indicator.
//
// Every function of the package is pure and safe for concurrent use.
package quality

import (
	"strings"

	"golang.org/x/text/cases"
)

// Category is the semantic family of a water-quality parameter.
type Category string

const (
	CategoryBacteriologie   Category = "Bactériologie"
	CategoryMineraux        Category = "Minéraux"
	CategoryMetauxLourds    Category = "Métaux Lourds"
	CategorySubstances      Category = "Substances Indésirables"
	CategoryPhysicoChimique Category = "Paramètres Physico-Chimiques"
	CategoryRadioactivite   Category = "Radioactivité"
	CategoryOrganiques      Category = "Composés Organiques"
	CategoryNutritifs       Category = "Éléments Nutritifs"
	CategoryContaminants    Category = "Autres Contaminants"
	CategoryAutres          Category = "Autres"

	// CategoryNonConformes is a derived bucket listing non-compliant samples.
	// It is never assigned by Categorize.
	CategoryNonConformes Category = "Non Conformes"
)

// CategoryRule binds a category to the keywords that select it.
type CategoryRule struct {
	Category Category `json:"category"`
	Keywords []string `json:"keywords"`
}

// categoryRules is evaluated top to bottom, first match wins.
var categoryRules = []CategoryRule{
	{CategoryBacteriologie, []string{
		"Escherichia coli", "Entérocoques", "Bactéries coliformes",
		"Germes", "Microorganismes", "Spores", "Coliformes", "Bact.",
	}},
	{CategoryMineraux, []string{
		"Nitrates", "Fluor", "Sodium", "Potassium", "Calcium", "Magnésium",
		"Chlorures", "Sulfates", "Phosphates", "Bicarbonates", "Carbonates",
	}},
	{CategoryMetauxLourds, []string{
		"Plomb", "Cuivre", "Aluminium", "Fer", "Zinc", "Chrome",
		"Cadmium", "Mercure", "Arsenic", "Nickel", "Manganèse",
	}},
	{CategorySubstances, []string{
		"Pesticides", "Hydrocarbures", "Solvants chlorés", "Détergents",
		"Hydrocarbures aromatiques", "PCB", "Phtalates", "Composés organiques",
	}},
	{CategoryPhysicoChimique, []string{
		"pH", "Turbidité", "Conductivité", "Oxygène dissous", "Température",
		"Dureté", "Alcalinité", "Salinité", "Potentiel redox",
	}},
	{CategoryRadioactivite, []string{
		"Radioactivité", "Uranium", "Radium", "Tritium", "Rayonnements",
		"Activité alpha", "Activité beta",
	}},
	{CategoryOrganiques, []string{
		"COV", "HAP", "Benzène", "Toluène", "Éthylbenzène", "Xylènes",
		"Chloroforme", "Trichloréthylène", "Perchloréthylène",
	}},
	{CategoryNutritifs, []string{
		"Azote", "Phosphore", "Ammonium", "Nitrites", "Matières organiques",
		"Carbone organique total",
	}},
	{CategoryContaminants, []string{
		"Cyanures", "Bore", "Sélénium", "Baryum", "Antimoine",
		"Substances médicamenteuses", "Perturbateurs endocriniens",
	}},
}

// foldedRules holds the keywords of categoryRules case-folded once.
var foldedRules = func() [][]string {
	fold := cases.Fold()
	folded := make([][]string, len(categoryRules))
	for i, rule := range categoryRules {
		folded[i] = make([]string, len(rule.Keywords))
		for j, keyword := range rule.Keywords {
			folded[i][j] = fold.String(keyword)
		}
	}
	return folded
}()

// Categorize returns the first category having a keyword contained in label,
// ignoring case. Empty labels and labels matching nothing are CategoryAutres.
func Categorize(label string) Category {
	if strings.TrimSpace(label) == "" {
		return CategoryAutres
	}

	// A Caser is stateful and must not be shared between goroutines.
	folded := cases.Fold().String(label)
	for i, keywords := range foldedRules {
		for _, keyword := range keywords {
			if strings.Contains(folded, keyword) {
				return categoryRules[i].Category
			}
		}
	}
	return CategoryAutres
}

// Categories returns a copy of the ordered keyword table, CategoryAutres last.
func Categories() []CategoryRule {
	rules := make([]CategoryRule, 0, len(categoryRules)+1)
	for _, rule := range categoryRules {
		rules = append(rules, CategoryRule{
			Category: rule.Category,
			Keywords: append([]string(nil), rule.Keywords...),
		})
	}
	return append(rules, CategoryRule{Category: CategoryAutres, Keywords: []string{}})
}
