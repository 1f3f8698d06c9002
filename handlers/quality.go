package handlers

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/giygas/qualite-eau-api/hubeau"
	"github.com/giygas/qualite-eau-api/hubeau/entities"
	"github.com/giygas/qualite-eau-api/logging"
	"github.com/giygas/qualite-eau-api/metrics"
	"github.com/giygas/qualite-eau-api/report"
)

// Messages returned to API clients.
const (
	msgPostalCodeNotFound = "Code postal non trouvé"
	msgNoData             = "Aucune donnée disponible pour ce code postal"
	msgCommuneNotFound    = "Commune non trouvée pour ce code postal"
	msgCommuneNoData      = "Aucune donnée disponible pour cette commune"
	msgUpstreamFailed     = "Le service Hub'Eau est indisponible"
	msgUpstreamThrottled  = "Le service Hub'Eau limite les requêtes, réessayez plus tard"
)

// maxConcurrentFetches bounds the Hub'Eau calls of one request.
const maxConcurrentFetches = 4

// apiError is a failure to build a response, with the status to answer.
type apiError struct {
	code    int
	message string
}

// resolveCommunes validates the postal code and returns its communes,
// restricted to insee when it is not empty.
func (h *HTTPHandlerImpl) resolveCommunes(postalCode, insee string) ([]entities.Commune, *apiError) {
	if err := h.validator.ValidatePostalCode(postalCode); err != nil {
		logging.Warn("Unusual user input", "postal_code", postalCode)
		return nil, &apiError{http.StatusBadRequest, err.Error()}
	}

	communes, ok := h.dataStore.GetCommunes(postalCode)
	if !ok || len(communes) == 0 {
		return nil, &apiError{http.StatusNotFound, msgPostalCodeNotFound}
	}

	if insee == "" {
		return communes, nil
	}
	if err := h.validator.ValidateInsee(insee); err != nil {
		return nil, &apiError{http.StatusBadRequest, err.Error()}
	}
	for _, c := range communes {
		if c.Insee == insee {
			return []entities.Commune{c}, nil
		}
	}
	return nil, &apiError{http.StatusNotFound, msgCommuneNotFound}
}

// fetchAll fetches the samples of every commune concurrently. Results keep
// the order of communes.
func (h *HTTPHandlerImpl) fetchAll(ctx context.Context, communes []entities.Commune) ([][]entities.Sample, []error) {
	samples := make([][]entities.Sample, len(communes))
	errs := make([]error, len(communes))

	var wg sync.WaitGroup
	sem := make(chan struct{}, maxConcurrentFetches)
	for i, c := range communes {
		wg.Add(1)
		go func(i int, c entities.Commune) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			samples[i], errs[i] = h.fetcher.FetchSamples(ctx, c.Insee)
			if errs[i] != nil {
				logging.Warn("Failed to fetch commune samples", "insee", c.Insee, "commune", c.Nom, "error", errs[i])
			}
		}(i, c)
	}
	wg.Wait()

	return samples, errs
}

// upstreamError maps fetch errors to a response when no commune has data.
func upstreamError(errs []error) *apiError {
	failed := 0
	throttled := false
	for _, err := range errs {
		if err != nil {
			failed++
			throttled = throttled || errors.Is(err, hubeau.ErrRateLimited)
		}
	}
	switch {
	case failed < len(errs) || failed == 0:
		return nil
	case throttled:
		return &apiError{http.StatusServiceUnavailable, msgUpstreamThrottled}
	default:
		return &apiError{http.StatusBadGateway, msgUpstreamFailed}
	}
}

// postalReport builds the reports of the communes of a postal code. Communes
// without samples are left out.
func (h *HTTPHandlerImpl) postalReport(ctx context.Context, postalCode, insee string) (report.PostalReport, *apiError) {
	communes, apiErr := h.resolveCommunes(postalCode, insee)
	if apiErr != nil {
		return report.PostalReport{}, apiErr
	}

	samples, errs := h.fetchAll(ctx, communes)

	result := report.PostalReport{PostalCode: postalCode, Results: []report.CommuneReport{}}
	for i, c := range communes {
		if len(samples[i]) == 0 {
			continue
		}
		if q := h.validator.ReportSampleQuality(samples[i]); q.WithoutLabel > 0 || q.UnparseableDateCount > 0 {
			logging.Debug("Hub'Eau samples with missing fields",
				"insee", c.Insee,
				"without_label", q.WithoutLabel,
				"unparseable_dates", q.UnparseableDateCount,
			)
		}

		commune := report.Build(c, samples[i])
		metrics.QualityReportsTotal.WithLabelValues(string(commune.Risk.Level)).Inc()
		result.Results = append(result.Results, commune)
	}

	if len(result.Results) == 0 {
		if apiErr := upstreamError(errs); apiErr != nil {
			return report.PostalReport{}, apiErr
		}
		return report.PostalReport{}, &apiError{http.StatusNotFound, msgNoData}
	}
	return result, nil
}
