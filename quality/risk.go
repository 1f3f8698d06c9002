package quality

// RiskLevel is the global risk label of a result set.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"

	// RiskUnknown is returned when there is no sample to rate.
	RiskUnknown RiskLevel = "unknown"
)

// Upper bounds of the non-compliance rate, in percent, for each level.
const (
	lowRiskMaxRate    = 10
	mediumRiskMaxRate = 30
)

// Risk is the aggregated compliance of a result set.
type Risk struct {
	Level             RiskLevel `json:"level"`
	NonCompliantCount int       `json:"non_compliant_count"`
	TotalCount        int       `json:"total_count"`
	Rate              float64   `json:"rate"`
}

// ComputeRisk rates the share of non-compliant samples in categorized. The
// Non Conformes bucket is derived data and is not counted.
func ComputeRisk(categorized Categorized) Risk {
	var risk Risk
	for category, samples := range categorized {
		if category == CategoryNonConformes {
			continue
		}
		for _, s := range samples {
			risk.TotalCount++
			if !IsCompliant(s) {
				risk.NonCompliantCount++
			}
		}
	}

	if risk.TotalCount == 0 {
		risk.Level = RiskUnknown
		return risk
	}

	risk.Rate = float64(risk.NonCompliantCount*100) / float64(risk.TotalCount)
	risk.Level = riskLevel(risk.NonCompliantCount, risk.TotalCount)
	return risk
}

// riskLevel compares nonCompliant/total*100 against the bounds without
// floating point rounding, so 2 of 20 is exactly 10%.
func riskLevel(nonCompliant, total int) RiskLevel {
	scaled := nonCompliant * 100
	switch {
	case scaled <= lowRiskMaxRate*total:
		return RiskLow
	case scaled <= mediumRiskMaxRate*total:
		return RiskMedium
	default:
		return RiskHigh
	}
}

// Label is the French display label of a risk level.
func (l RiskLevel) Label() string {
	switch l {
	case RiskLow:
		return "Risque Faible"
	case RiskMedium:
		return "Risque Modéré"
	case RiskHigh:
		return "Risque Élevé"
	default:
		return "Données insuffisantes"
	}
}
