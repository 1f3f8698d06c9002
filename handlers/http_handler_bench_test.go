package handlers

import (
	"fmt"
	"testing"

	"github.com/giygas/qualite-eau-api/hubeau/entities"
)

// ============================================================================
// BENCHMARKS
// ============================================================================

// largeSampleSet returns a year of measurements for a few parameters.
func largeSampleSet(insee string) []entities.Sample {
	labels := []string{"Nitrates", "pH", "Escherichia coli /100ml - MF", "Chlore libre", "Turbidité néphélométrique NFU"}
	samples := make([]entities.Sample, 0, len(labels)*365)
	for day := 0; day < 365; day++ {
		date := fmt.Sprintf("2024-%02d-%02dT08:00:00Z", day%12+1, day%28+1)
		for _, label := range labels {
			samples = append(samples, entities.Sample{
				CodeCommune:            insee,
				LibelleParametre:       label,
				ResultatAlphanumerique: fmt.Sprintf("%d,%d", day%60, day%10),
				DatePrelevement:        date,
				LimiteQualite:          "<=50 mg/L",
			})
		}
	}
	return samples
}

func BenchmarkServeQuality(b *testing.B) {
	fetcher := newStubFetcher().with("33063", largeSampleSet("33063"))
	router := newTestRouter(newTestHandler(fetcher))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		doRequest(b, router, "/v1/quality/33000")
	}
}

func BenchmarkExportQualityCSV(b *testing.B) {
	fetcher := newStubFetcher().with("33063", largeSampleSet("33063"))
	router := newTestRouter(newTestHandler(fetcher))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		doRequest(b, router, "/v1/quality/33000/export?format=csv")
	}
}

func BenchmarkServeCategories(b *testing.B) {
	router := newTestRouter(newTestHandler(newStubFetcher()))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		doRequest(b, router, "/v1/categories")
	}
}
