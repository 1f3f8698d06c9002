package quality

import (
	"math"

	"github.com/giygas/qualite-eau-api/hubeau/entities"
)

// RangeSource tells which rule produced the verdict of an Evaluation.
type RangeSource string

const (
	SourceThreshold RangeSource = "threshold" // fixed regulatory threshold
	SourceReference RangeSource = "reference" // parsed reference or limit text
	SourceUnparsed  RangeSource = "unparsed"  // result is not a number
)

// Regulatory thresholds applied whatever the reference text says.
// Keys are exact Hub'Eau labels.
var thresholds = map[string]Range{
	"pH":       {Min: 6.5, Max: 8.5},
	"Nitrates": {Min: math.Inf(-1), Max: 50},
	"Plomb":    {Min: math.Inf(-1), Max: 10},
}

// Threshold returns the fixed regulatory range of a parameter label, if any.
func Threshold(label string) (Range, bool) {
	r, ok := thresholds[label]
	return r, ok
}

// Thresholds returns a copy of the fixed regulatory ranges.
func Thresholds() map[string]Range {
	out := make(map[string]Range, len(thresholds))
	for label, r := range thresholds {
		out[label] = r
	}
	return out
}

// Evaluation is the detailed compliance verdict of one sample.
type Evaluation struct {
	Compliant bool
	Value     float64
	Range     Range
	Source    RangeSource
}

// Evaluate computes the compliance verdict of a sample. Results that cannot
// be read as a number are presumed compliant.
func Evaluate(s entities.Sample) Evaluation {
	value := ParseResult(s.ResultatAlphanumerique, s.ResultatNumerique)
	reference := ParseReference(s.ReferenceText())

	if math.IsNaN(value) {
		return Evaluation{Compliant: true, Value: value, Range: reference, Source: SourceUnparsed}
	}

	if r, ok := thresholds[s.LibelleParametre]; ok {
		return Evaluation{Compliant: r.Contains(value), Value: value, Range: r, Source: SourceThreshold}
	}

	return Evaluation{Compliant: reference.Contains(value), Value: value, Range: reference, Source: SourceReference}
}

// IsCompliant reports whether a sample satisfies its applicable limit.
func IsCompliant(s entities.Sample) bool {
	return Evaluate(s).Compliant
}
