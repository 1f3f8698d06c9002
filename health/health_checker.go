// Package health provides health checking functionality for the water quality API.
package health

import (
	"math"
	"net/http"
	"time"

	"github.com/giygas/qualite-eau-api/interfaces"
	"github.com/jonboulle/clockwork"
)

// Update slots of the mapping reload, as hours of the day.
var updateHours = []int{6, 18}

// HealthCheckerImpl implements the interfaces.HealthChecker interface
type HealthCheckerImpl struct {
	dataStore interfaces.DataStore
	clock     clockwork.Clock
}

// NewHealthChecker creates a new health checker with injected dependencies
func NewHealthChecker(dataStore interfaces.DataStore) interfaces.HealthChecker {
	return NewHealthCheckerWithClock(dataStore, clockwork.NewRealClock())
}

// NewHealthCheckerWithClock creates a health checker reading time from clock.
func NewHealthCheckerWithClock(dataStore interfaces.DataStore, clock clockwork.Clock) *HealthCheckerImpl {
	return &HealthCheckerImpl{
		dataStore: dataStore,
		clock:     clock,
	}
}

// HealthCheck returns HTTP-specific health data.
// Used by /health HTTP endpoint
func (h *HealthCheckerImpl) HealthCheck() (status string, data map[string]any, httpStatus int) {
	postalCodes := h.dataStore.GetPostalCodeCount()
	lastUpdate := h.dataStore.GetLastUpdated()
	isUpdating := h.dataStore.IsUpdating()

	dataAge := h.clock.Since(lastUpdate)

	switch {
	case postalCodes == 0:
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable

	case dataAge > 48*time.Hour:
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable

	case dataAge > 24*time.Hour:
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable

	default:
		status = "healthy"
		httpStatus = http.StatusOK
	}

	data = map[string]any{
		"last_update":    lastUpdate.Format(time.RFC3339),
		"data_age_hours": math.Round(dataAge.Hours()*10) / 10,
		"postal_codes":   postalCodes,
		"communes":       h.dataStore.GetCommuneCount(),
		"is_updating":    isUpdating,
		"next_update":    h.CalculateNextUpdate().Format(time.RFC3339),
	}
	if report := h.dataStore.GetDataQualityReport(); report != nil {
		data["invalid_postal_codes"] = report.InvalidPostalCodeCount
		data["invalid_insee"] = report.InvalidInseeCount
	}

	return status, data, httpStatus
}

// CalculateNextUpdate returns the next scheduled mapping reload
func (h *HealthCheckerImpl) CalculateNextUpdate() time.Time {
	return NextUpdate(h.clock.Now())
}

// NextUpdate returns the first reload slot strictly after now.
func NextUpdate(now time.Time) time.Time {
	for _, hour := range updateHours {
		slot := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
		if now.Before(slot) {
			return slot
		}
	}
	first := time.Date(now.Year(), now.Month(), now.Day(), updateHours[0], 0, 0, 0, now.Location())
	return first.AddDate(0, 0, 1)
}
