// Package interfaces defines core abstractions for the water quality API
// to improve testability, maintainability, and separation of concerns.
package interfaces

import (
	"context"
	"net/http"
	"time"

	"github.com/giygas/qualite-eau-api/hubeau/entities"
)

// DataQualityReport summarizes the defects of a postal code mapping.
// Example lists are capped, the counts are not.
type DataQualityReport struct {
	PostalCodes            int      `json:"postal_codes"`
	Communes               int      `json:"communes"`
	InvalidPostalCodeCount int      `json:"invalid_postal_code_count"`
	InvalidPostalCodes     []string `json:"invalid_postal_codes"`
	InvalidInseeCount      int      `json:"invalid_insee_count"`
	InvalidInsee           []string `json:"invalid_insee"` // postal/insee pairs
	EmptyPostalCodeCount   int      `json:"empty_postal_code_count"`
	EmptyPostalCodes       []string `json:"empty_postal_codes"`
	DuplicateInseeCount    int      `json:"duplicate_insee_count"`
	DuplicateInsee         []string `json:"duplicate_insee"` // postal/insee pairs
}

// SampleQualityReport summarizes the samples of a Hub'Eau response that
// cannot be categorized or dated.
type SampleQualityReport struct {
	Total                int      `json:"total"`
	WithoutLabel         int      `json:"without_label"`
	WithoutDate          int      `json:"without_date"`
	UnparseableDateCount int      `json:"unparseable_date_count"`
	UnparseableDates     []string `json:"unparseable_dates"`
}

// DataStore defines the contract for the postal code mapping storage.
// It provides thread-safe access with atomic operations for zero-downtime reloads.
type DataStore interface {
	// Data retrieval methods
	GetCommunes(postalCode string) ([]entities.Commune, bool)
	GetMapping() map[string][]entities.Commune
	GetPostalCodeCount() int
	GetCommuneCount() int
	GetDataQualityReport() *DataQualityReport
	GetLastUpdated() time.Time
	IsUpdating() bool
	GetServerStartTime() time.Time

	// Data update methods
	UpdateData(mapping map[string][]entities.Commune, report *DataQualityReport)
	BeginUpdate() bool
	EndUpdate()
}

// MappingLoader reads the postal code to commune mapping from its source.
type MappingLoader interface {
	Load() (map[string][]entities.Commune, error)
}

// SampleFetcher returns the analysis results of a commune.
// Implemented by the Hub'Eau client and its disk cache.
type SampleFetcher interface {
	FetchSamples(ctx context.Context, insee string) ([]entities.Sample, error)
}

// CachePurger removes cached responses older than maxAge.
type CachePurger interface {
	Purge(maxAge time.Duration) (int, error)
}

// Scheduler defines the contract for job scheduling and health monitoring.
// It manages automated mapping reloads and cache maintenance.
type Scheduler interface {
	// Lifecycle management
	Start() error
	Stop()
}

// HTTPHandler defines the contract for HTTP request handlers.
// It provides a consistent interface for all API endpoints.
type HTTPHandler interface {
	ServeQuality(w http.ResponseWriter, r *http.Request)
	ExportQuality(w http.ResponseWriter, r *http.Request)
	CompareQuality(w http.ResponseWriter, r *http.Request)
	ServeCommunes(w http.ResponseWriter, r *http.Request)
	ServeCategories(w http.ResponseWriter, r *http.Request)
	ServeGlossary(w http.ResponseWriter, r *http.Request)
	// This will stay in all versions
	HealthCheck(w http.ResponseWriter, r *http.Request)
}

// HealthChecker defines the contract for health check functionality.
type HealthChecker interface {
	// HealthCheck returns the current status, its details and the HTTP status to answer with
	HealthCheck() (status string, details map[string]any, httpStatus int)

	// CalculateNextUpdate returns the next scheduled mapping reload
	CalculateNextUpdate() time.Time
}

// DataValidator defines the contract for data validation operations.
type DataValidator interface {
	// ValidatePostalCode checks a 5-digit postal code
	ValidatePostalCode(code string) error

	// ValidateInsee checks a commune INSEE code
	ValidateInsee(code string) error

	// ValidateExportFormat checks an export format name
	ValidateExportFormat(format string) error

	// ValidateInput validates user input strings
	ValidateInput(input string) error

	// ValidateMapping rejects a mapping that cannot serve any request
	ValidateMapping(mapping map[string][]entities.Commune) error

	// ReportDataQuality generates a mapping quality report with all issues found
	ReportDataQuality(mapping map[string][]entities.Commune) *DataQualityReport

	// ReportSampleQuality counts unusable samples of a Hub'Eau response
	ReportSampleQuality(samples []entities.Sample) *SampleQualityReport
}
