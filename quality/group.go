package quality

import (
	"slices"
	"sort"
	"strings"

	"github.com/giygas/qualite-eau-api/hubeau/entities"
)

// Categorized maps a category to its samples.
type Categorized map[Category][]entities.Sample

// Grouped maps a category to its parameter groups. Each group is ordered by
// sample date, most recent first.
type Grouped map[Category]map[string][]entities.Sample

// Count returns the number of samples, the Non Conformes bucket excluded.
func (c Categorized) Count() int {
	total := 0
	for category, samples := range c {
		if category == CategoryNonConformes {
			continue
		}
		total += len(samples)
	}
	return total
}

// IsPlaceholder reports whether a sample is a "not applicable" entry rather
// than a measurement.
func IsPlaceholder(s entities.Sample) bool {
	result := strings.ToUpper(s.ResultatAlphanumerique)
	name := strings.ToUpper(s.LibelleParametre)

	return strings.Contains(result, "SANS OBJET") ||
		strings.Contains(result, "AUCUN CHANGEMENT ANORMAL") ||
		strings.Contains(name, "SANS OBJET")
}

// FilterPlaceholders returns the samples that are actual measurements.
func FilterPlaceholders(samples []entities.Sample) []entities.Sample {
	kept := make([]entities.Sample, 0, len(samples))
	for _, s := range samples {
		if !IsPlaceholder(s) {
			kept = append(kept, s)
		}
	}
	return kept
}

// CategorizeSamples drops placeholders and assigns each remaining sample to
// its category, preserving input order. Empty categories are absent.
func CategorizeSamples(samples []entities.Sample) Categorized {
	categorized := make(Categorized)
	for _, s := range samples {
		if IsPlaceholder(s) {
			continue
		}
		category := Categorize(s.LibelleParametre)
		categorized[category] = append(categorized[category], s)
	}
	return categorized
}

// GroupByParameter groups samples by parameter label and sorts each group by
// date descending. Samples with equal or unreadable dates keep input order,
// unreadable dates last.
func GroupByParameter(samples []entities.Sample) map[string][]entities.Sample {
	grouped := make(map[string][]entities.Sample)
	for _, s := range samples {
		grouped[s.LibelleParametre] = append(grouped[s.LibelleParametre], s)
	}

	for _, group := range grouped {
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Date().After(group[j].Date())
		})
	}
	return grouped
}

// CategorizeAndGroup is the canonical pipeline: filter, categorize, then
// group each category by parameter with the latest sample first.
func CategorizeAndGroup(samples []entities.Sample) Grouped {
	categorized := CategorizeSamples(samples)
	grouped := make(Grouped, len(categorized))
	for category, members := range categorized {
		grouped[category] = GroupByParameter(members)
	}
	return grouped
}

// Latest keeps the most recent sample of every parameter group. Categories
// list their parameters in label order.
func Latest(grouped Grouped) Categorized {
	latest := make(Categorized, len(grouped))
	for category, groups := range grouped {
		names := make([]string, 0, len(groups))
		for name, group := range groups {
			if len(group) > 0 {
				names = append(names, name)
			}
		}
		if len(names) == 0 {
			continue
		}
		slices.Sort(names)

		heads := make([]entities.Sample, 0, len(names))
		for _, name := range names {
			heads = append(heads, groups[name][0])
		}
		latest[category] = heads
	}
	return latest
}

// DeduplicateFirstSeen keeps only the first occurrence of every
// (label, category) pair in input order, placeholders excluded.
func DeduplicateFirstSeen(samples []entities.Sample) Categorized {
	type key struct {
		label    string
		category Category
	}

	seen := make(map[key]struct{})
	categorized := make(Categorized)
	for _, s := range samples {
		if IsPlaceholder(s) {
			continue
		}
		category := Categorize(s.LibelleParametre)
		k := key{s.LibelleParametre, category}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		categorized[category] = append(categorized[category], s)
	}
	return categorized
}

// WithNonCompliant returns a copy of categorized with the Non Conformes bucket
// listing every non-compliant sample. The bucket is absent when empty.
func WithNonCompliant(categorized Categorized) Categorized {
	out := make(Categorized, len(categorized)+1)
	var failing []entities.Sample

	for _, category := range OrderedCategories(categorized.keys()) {
		if category == CategoryNonConformes {
			continue
		}
		out[category] = categorized[category]
		for _, s := range categorized[category] {
			if !IsCompliant(s) {
				failing = append(failing, s)
			}
		}
	}

	if len(failing) > 0 {
		out[CategoryNonConformes] = failing
	}
	return out
}

func (c Categorized) keys() []Category {
	keys := make([]Category, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}

// Keys returns the categories of grouped.
func (g Grouped) Keys() []Category {
	keys := make([]Category, 0, len(g))
	for k := range g {
		keys = append(keys, k)
	}
	return keys
}

// OrderedCategories sorts categories for display: alphabetical, then Autres,
// then Non Conformes.
func OrderedCategories(categories []Category) []Category {
	ordered := make([]Category, 0, len(categories))
	var hasAutres, hasNonConformes bool

	for _, c := range categories {
		switch c {
		case CategoryAutres:
			hasAutres = true
		case CategoryNonConformes:
			hasNonConformes = true
		default:
			ordered = append(ordered, c)
		}
	}
	slices.Sort(ordered)

	if hasAutres {
		ordered = append(ordered, CategoryAutres)
	}
	if hasNonConformes {
		ordered = append(ordered, CategoryNonConformes)
	}
	return ordered
}
