package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/giygas/qualite-eau-api/data"
	"github.com/giygas/qualite-eau-api/hubeau/entities"
	"github.com/giygas/qualite-eau-api/interfaces"
	"github.com/giygas/qualite-eau-api/validation"
	"github.com/go-chi/chi/v5"
)

// ============================================================================
// TEST DATA FACTORY
// ============================================================================

func num(v float64) *float64 {
	return &v
}

// compliantSamples returns a small, fully compliant result set for a commune.
func compliantSamples(insee string) []entities.Sample {
	return []entities.Sample{
		{CodeCommune: insee, LibelleParametre: "Nitrates", ResultatAlphanumerique: "12", LibelleUnite: "mg/L", DatePrelevement: "2024-03-10T08:00:00Z", LimiteQualite: "<=50 mg/L"},
		{CodeCommune: insee, LibelleParametre: "pH", ResultatNumerique: num(7.6), LibelleUnite: "unité pH", DatePrelevement: "2024-03-10T08:00:00Z"},
		{CodeCommune: insee, LibelleParametre: "Escherichia coli /100ml - MF", ResultatAlphanumerique: "0", DatePrelevement: "2024-03-10T08:00:00Z", LimiteQualite: "<=0 n/(100mL)"},
	}
}

// pollutedSamples returns a result set whose latest nitrates measurement fails.
func pollutedSamples(insee string) []entities.Sample {
	return []entities.Sample{
		{CodeCommune: insee, LibelleParametre: "Nitrates", ResultatAlphanumerique: "72", LibelleUnite: "mg/L", DatePrelevement: "2024-03-10T08:00:00Z", LimiteQualite: "<=50 mg/L"},
		{CodeCommune: insee, LibelleParametre: "pH", ResultatNumerique: num(7.4), DatePrelevement: "2024-03-10T08:00:00Z"},
	}
}

func testMapping() map[string][]entities.Commune {
	return map[string][]entities.Commune{
		"33000": {{Insee: "33063", Nom: "Bordeaux"}},
		"33160": {
			{Insee: "33434", Nom: "Saint-Aubin-de-Médoc"},
			{Insee: "33449", Nom: "Saint-Médard-en-Jalles"},
		},
		"75001": {{Insee: "75101", Nom: "Paris 1er Arrondissement"}},
		"59000": {},
	}
}

// newTestStore returns a data container loaded with testMapping.
func newTestStore() *data.DataContainer {
	store := data.NewDataContainer()
	store.UpdateData(testMapping(), &interfaces.DataQualityReport{PostalCodes: 4, Communes: 4})
	store.SetServerStartTime(time.Now().Add(-90 * time.Minute))
	return store
}

// ============================================================================
// FAKES
// ============================================================================

// stubFetcher serves canned samples or errors per INSEE code.
type stubFetcher struct {
	mu      sync.Mutex
	samples map[string][]entities.Sample
	errs    map[string]error
	calls   []string
}

func newStubFetcher() *stubFetcher {
	return &stubFetcher{
		samples: make(map[string][]entities.Sample),
		errs:    make(map[string]error),
	}
}

func (f *stubFetcher) with(insee string, samples []entities.Sample) *stubFetcher {
	f.samples[insee] = samples
	return f
}

func (f *stubFetcher) failing(insee string, err error) *stubFetcher {
	f.errs[insee] = err
	return f
}

func (f *stubFetcher) FetchSamples(ctx context.Context, insee string) ([]entities.Sample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, insee)
	if err := f.errs[insee]; err != nil {
		return nil, err
	}
	return f.samples[insee], nil
}

func (f *stubFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// stubHealth returns a fixed health status.
type stubHealth struct {
	status     string
	data       map[string]any
	httpStatus int
}

func (s *stubHealth) HealthCheck() (string, map[string]any, int) {
	return s.status, s.data, s.httpStatus
}

func (s *stubHealth) CalculateNextUpdate() time.Time {
	return time.Date(2024, 3, 10, 18, 0, 0, 0, time.UTC)
}

var (
	_ interfaces.SampleFetcher = (*stubFetcher)(nil)
	_ interfaces.HealthChecker = (*stubHealth)(nil)
)

func healthyStub() *stubHealth {
	return &stubHealth{
		status:     "healthy",
		data:       map[string]any{"postal_codes": 4, "communes": 4},
		httpStatus: http.StatusOK,
	}
}

// ============================================================================
// HELPERS
// ============================================================================

func newTestHandler(fetcher interfaces.SampleFetcher) *HTTPHandlerImpl {
	return NewHTTPHandler(newTestStore(), fetcher, validation.NewDataValidator(), healthyStub())
}

// newTestRouter mounts the handler on the production route patterns.
func newTestRouter(h *HTTPHandlerImpl) http.Handler {
	r := chi.NewRouter()
	r.Get("/v1/quality/{postalCode}", h.ServeQuality)
	r.Get("/v1/quality/{postalCode}/export", h.ExportQuality)
	r.Get("/v1/compare", h.CompareQuality)
	r.Get("/v1/communes/{postalCode}", h.ServeCommunes)
	r.Get("/v1/categories", h.ServeCategories)
	r.Get("/v1/glossary", h.ServeGlossary)
	r.Get("/health", h.HealthCheck)
	return r
}

func doRequest(t testing.TB, handler http.Handler, target string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("Failed to decode response %q: %v", rr.Body.String(), err)
	}
}

func assertStatus(t *testing.T, rr *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if rr.Code != expected {
		t.Fatalf("Expected status %d, got %d: %s", expected, rr.Code, rr.Body.String())
	}
}

// errorBody is the JSON shape of RespondWithError.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}
