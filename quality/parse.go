package quality

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// Range is a closed numeric interval. Open bounds are infinite.
// Min <= Max is not guaranteed for malformed references.
type Range struct {
	Min float64
	Max float64
}

// Unrestricted accepts every value.
var Unrestricted = Range{Min: math.Inf(-1), Max: math.Inf(1)}

// Contains reports whether min <= v <= max.
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// IsUnrestricted reports whether both bounds are open.
func (r Range) IsUnrestricted() bool {
	return math.IsInf(r.Min, -1) && math.IsInf(r.Max, 1)
}

// MarshalJSON writes open bounds as null, JSON has no infinity.
func (r Range) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Min *float64 `json:"min"`
		Max *float64 `json:"max"`
	}{finite(r.Min), finite(r.Max)})
}

func finite(v float64) *float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return &v
}

var (
	// decimalComma matches a comma used as decimal separator.
	decimalComma = regexp.MustCompile(`(\d),(\d)`)

	// leadingNumber mirrors a lenient float parse: the longest numeric prefix.
	leadingNumber = regexp.MustCompile(`^[+-]?(?:\d+(?:\.\d*)?|\.\d+)(?:[eE][+-]?\d+)?`)

	// intervalReference matches ">=180et<=1000". Each bound is optional.
	intervalReference = regexp.MustCompile(`(?i)(?:>=?(\d+(?:\.\d+)?))?(?:et|and|to|-|,)(?:<=?(\d+(?:\.\d+)?))?`)

	// boundReference matches a single "<=10" or ">5".
	boundReference = regexp.MustCompile(`(>=?|<=?)(\d+(?:\.\d+)?)`)
)

func normalizeDecimal(s string) string {
	return decimalComma.ReplaceAllString(s, "$1.$2")
}

// parseLeadingFloat parses the numeric prefix of s, ignoring any trailing unit.
func parseLeadingFloat(s string) (float64, bool) {
	match := leadingNumber.FindString(strings.TrimSpace(s))
	if match == "" {
		return math.NaN(), false
	}
	v, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return math.NaN(), false
	}
	return v, true
}

// IsBelowDetection reports whether a result text is a detection-limit marker.
func IsBelowDetection(text string) bool {
	upper := strings.ToUpper(text)
	return strings.Contains(upper, "SEUIL") || strings.Contains(upper, "DETECT")
}

// ParseResult converts an analysis result to a number. The alphanumeric form
// wins over the numeric one when it is not blank. The returned value is NaN
// for free text such as "SANS OBJET".
func ParseResult(alphanumeric string, numeric *float64) float64 {
	if strings.TrimSpace(alphanumeric) == "" {
		if numeric != nil {
			return *numeric
		}
		return math.NaN()
	}

	if IsBelowDetection(alphanumeric) {
		return 0
	}

	cleaned := normalizeDecimal(strings.TrimSpace(alphanumeric))

	switch {
	case strings.HasPrefix(cleaned, "<"):
		if v, ok := parseLeadingFloat(cleaned[1:]); ok {
			return v
		}
		return 0
	case strings.HasPrefix(cleaned, ">"):
		if v, ok := parseLeadingFloat(cleaned[1:]); ok {
			return v
		}
		return math.Inf(1)
	}

	v, _ := parseLeadingFloat(cleaned)
	return v
}

// ParseReference converts a reference or limit text ("<=10 µg/L",
// ">=180 et <=1000") to a Range. Text that cannot be read is Unrestricted.
func ParseReference(text string) Range {
	if strings.TrimSpace(text) == "" {
		return Unrestricted
	}

	compact := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, text)
	compact = normalizeDecimal(compact)

	if m := intervalReference.FindStringSubmatch(compact); m != nil {
		r := Unrestricted
		if m[1] != "" {
			r.Min, _ = strconv.ParseFloat(m[1], 64)
		}
		if m[2] != "" {
			r.Max, _ = strconv.ParseFloat(m[2], 64)
		}
		return r
	}

	if m := boundReference.FindStringSubmatch(compact); m != nil {
		v, _ := strconv.ParseFloat(m[2], 64)
		if strings.HasPrefix(m[1], ">") {
			return Range{Min: v, Max: math.Inf(1)}
		}
		return Range{Min: math.Inf(-1), Max: v}
	}

	return Unrestricted
}
