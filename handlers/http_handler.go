// Package handlers provides HTTP request handlers for the water quality API endpoints.
// This file implements the HTTPHandler interface with dependency injection.
package handlers

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/giygas/qualite-eau-api/hubeau/entities"
	"github.com/giygas/qualite-eau-api/interfaces"
	"github.com/giygas/qualite-eau-api/logging"
	"github.com/giygas/qualite-eau-api/quality"
	"github.com/giygas/qualite-eau-api/report"
	"github.com/go-chi/chi/v5"
)

// DefaultFetchTimeout bounds the Hub'Eau calls made for one request.
const DefaultFetchTimeout = 45 * time.Second

// HTTPHandlerImpl implements the interfaces.HTTPHandler interface
type HTTPHandlerImpl struct {
	dataStore    interfaces.DataStore
	fetcher      interfaces.SampleFetcher
	validator    interfaces.DataValidator
	health       interfaces.HealthChecker
	fetchTimeout time.Duration
}

var _ interfaces.HTTPHandler = (*HTTPHandlerImpl)(nil)

// NewHTTPHandler creates a new HTTP handler with injected dependencies
func NewHTTPHandler(dataStore interfaces.DataStore, fetcher interfaces.SampleFetcher,
	validator interfaces.DataValidator, health interfaces.HealthChecker) *HTTPHandlerImpl {
	return &HTTPHandlerImpl{
		dataStore:    dataStore,
		fetcher:      fetcher,
		validator:    validator,
		health:       health,
		fetchTimeout: DefaultFetchTimeout,
	}
}

// HealthResponse defines the structure for consistent JSON ordering
type HealthResponse struct {
	Status        string         `json:"status"`
	Uptime        string         `json:"uptime"`
	UptimeSeconds float64        `json:"uptime_seconds"`
	Data          map[string]any `json:"data"`
	System        map[string]any `json:"system"`
}

// RespondWithJSON writes a JSON response
func (h *HTTPHandlerImpl) RespondWithJSON(w http.ResponseWriter, code int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		logging.Error("Failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	w.Write(data)
}

// RespondWithCachedJSON writes a cacheable JSON response with an ETag, or
// 304 when the client already holds the same body.
func (h *HTTPHandlerImpl) RespondWithCachedJSON(w http.ResponseWriter, r *http.Request, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		logging.Error("Failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	etag := computeETag(data)
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "public, max-age=3600")

	if match := r.Header.Get("If-None-Match"); match != "" && matchesETag(match, etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func computeETag(data []byte) string {
	sum := sha256.Sum256(data)
	return `"` + hex.EncodeToString(sum[:16]) + `"`
}

func matchesETag(header, etag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimPrefix(strings.TrimSpace(candidate), "W/")
		if candidate == "*" || candidate == etag {
			return true
		}
	}
	return false
}

// RespondWithError writes a JSON error response
func (h *HTTPHandlerImpl) RespondWithError(w http.ResponseWriter, code int, message string) {
	errorResponse := map[string]any{
		"error":   http.StatusText(code),
		"message": message,
		"code":    code,
	}
	h.RespondWithJSON(w, code, errorResponse)
}

func (h *HTTPHandlerImpl) respondWithAPIError(w http.ResponseWriter, err *apiError) {
	if err.code == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "60")
	}
	h.RespondWithError(w, err.code, err.message)
}

func (h *HTTPHandlerImpl) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), h.fetchTimeout)
}

// ServeQuality returns the quality report of every commune of a postal code
func (h *HTTPHandlerImpl) ServeQuality(w http.ResponseWriter, r *http.Request) {
	postalCode := chi.URLParam(r, "postalCode")
	insee := r.URL.Query().Get("insee")

	ctx, cancel := h.requestContext(r)
	defer cancel()

	result, apiErr := h.postalReport(ctx, postalCode, insee)
	if apiErr != nil {
		h.respondWithAPIError(w, apiErr)
		return
	}

	h.RespondWithCachedJSON(w, r, result)
}

// ExportQuality returns the raw samples of one commune as a CSV or JSON attachment
func (h *HTTPHandlerImpl) ExportQuality(w http.ResponseWriter, r *http.Request) {
	postalCode := chi.URLParam(r, "postalCode")
	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = report.FormatCSV
	}
	if err := h.validator.ValidateExportFormat(format); err != nil {
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	communes, apiErr := h.resolveCommunes(postalCode, r.URL.Query().Get("insee"))
	if apiErr != nil {
		h.respondWithAPIError(w, apiErr)
		return
	}
	commune := communes[0]

	ctx, cancel := h.requestContext(r)
	defer cancel()

	samples, errs := h.fetchAll(ctx, []entities.Commune{commune})
	if apiErr := upstreamError(errs); apiErr != nil {
		h.respondWithAPIError(w, apiErr)
		return
	}
	if len(samples[0]) == 0 {
		h.RespondWithError(w, http.StatusNotFound, msgCommuneNoData)
		return
	}

	var buf bytes.Buffer
	if err := report.Write(&buf, format, samples[0]); err != nil {
		logging.Error("Failed to write export", "insee", commune.Insee, "format", format, "error", err)
		h.RespondWithError(w, http.StatusInternalServerError, "Export failed")
		return
	}

	w.Header().Set("Content-Type", report.ContentType(format))
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, report.Filename(commune.Insee, format)))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// CompareResponse holds the reports of two postal codes side by side.
type CompareResponse struct {
	Comparison []report.PostalReport `json:"comparison"`
}

// CompareQuality returns the reports of two postal codes: ?codes=33000,75001
func (h *HTTPHandlerImpl) CompareQuality(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("codes")
	codes := strings.Split(raw, ",")
	if raw == "" || len(codes) != 2 {
		h.RespondWithError(w, http.StatusBadRequest, "Exactly two postal codes are required: codes=XXXXX,YYYYY")
		return
	}
	for i := range codes {
		codes[i] = strings.TrimSpace(codes[i])
	}
	if codes[0] == codes[1] {
		h.RespondWithError(w, http.StatusBadRequest, "The two postal codes must differ")
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	response := CompareResponse{Comparison: make([]report.PostalReport, 0, len(codes))}
	for _, code := range codes {
		result, apiErr := h.postalReport(ctx, code, "")
		if apiErr != nil {
			h.respondWithAPIError(w, &apiError{apiErr.code, fmt.Sprintf("%s: %s", code, apiErr.message)})
			return
		}
		response.Comparison = append(response.Comparison, result)
	}

	h.RespondWithCachedJSON(w, r, response)
}

// ServeCommunes returns the communes served by a postal code
func (h *HTTPHandlerImpl) ServeCommunes(w http.ResponseWriter, r *http.Request) {
	postalCode := chi.URLParam(r, "postalCode")

	communes, apiErr := h.resolveCommunes(postalCode, "")
	if apiErr != nil {
		h.respondWithAPIError(w, apiErr)
		return
	}

	h.RespondWithCachedJSON(w, r, map[string]any{
		"postal_code": postalCode,
		"communes":    communes,
	})
}

// ServeCategories returns the ordered categorization table and the regulatory thresholds
func (h *HTTPHandlerImpl) ServeCategories(w http.ResponseWriter, r *http.Request) {
	h.RespondWithCachedJSON(w, r, map[string]any{
		"categories": quality.Categories(),
		"thresholds": quality.Thresholds(),
	})
}

// ServeGlossary returns the parameter glossary
func (h *HTTPHandlerImpl) ServeGlossary(w http.ResponseWriter, r *http.Request) {
	h.RespondWithCachedJSON(w, r, report.Glossary())
}

// formatUptimeHuman formats duration into a human-readable string
func formatUptimeHuman(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	var parts []string
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 || days > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 || hours > 0 || days > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	parts = append(parts, fmt.Sprintf("%ds", seconds))

	return strings.Join(parts, " ")
}

// HealthCheck returns server health information
func (h *HTTPHandlerImpl) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status, data, httpStatus := h.health.HealthCheck()

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	var uptime time.Duration
	if start := h.dataStore.GetServerStartTime(); !start.IsZero() {
		uptime = time.Since(start)
	}

	h.RespondWithJSON(w, httpStatus, HealthResponse{
		Status:        status,
		Uptime:        formatUptimeHuman(uptime),
		UptimeSeconds: uptime.Seconds(),
		Data:          data,
		System: map[string]any{
			"goroutines": runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb": int(m.Alloc / 1024 / 1024),
				"sys_mb":   int(m.Sys / 1024 / 1024),
				"num_gc":   m.NumGC,
			},
		},
	})
}
