// Package data provides thread-safe storage of the postal code mapping.
// The DataContainer swaps the whole mapping atomically so readers never
// observe a half-loaded reload.
package data

import (
	"sync/atomic"
	"time"

	"github.com/giygas/qualite-eau-api/hubeau/entities"
	"github.com/giygas/qualite-eau-api/interfaces"
	"github.com/giygas/qualite-eau-api/logging"
	"github.com/giygas/qualite-eau-api/metrics"
)

// Compile-time check to ensure DataContainer implements DataStore
var _ interfaces.DataStore = (*DataContainer)(nil)

// snapshot is one loaded mapping with its derived counts.
type snapshot struct {
	mapping  map[string][]entities.Commune
	communes int
	report   *interfaces.DataQualityReport
}

// DataContainer holds the mapping with atomic pointers for zero-downtime updates
type DataContainer struct {
	current         atomic.Pointer[snapshot]
	lastUpdated     atomic.Value // time.Time
	updating        atomic.Bool
	serverStartTime atomic.Value // time.Time
}

// NewDataContainer creates a new DataContainer with an empty mapping
func NewDataContainer() *DataContainer {
	dc := &DataContainer{}
	dc.current.Store(&snapshot{
		mapping: make(map[string][]entities.Commune),
		report:  &interfaces.DataQualityReport{},
	})
	dc.lastUpdated.Store(time.Time{})
	dc.serverStartTime.Store(time.Time{})
	return dc
}

func (dc *DataContainer) load() *snapshot {
	if s := dc.current.Load(); s != nil {
		return s
	}
	logging.Warn("Postal mapping is empty or invalid")
	return &snapshot{mapping: map[string][]entities.Commune{}, report: &interfaces.DataQualityReport{}}
}

// GetCommunes returns the communes served by a postal code
func (dc *DataContainer) GetCommunes(postalCode string) ([]entities.Commune, bool) {
	communes, ok := dc.load().mapping[postalCode]
	return communes, ok
}

// GetMapping returns the whole mapping. Callers must not modify it.
func (dc *DataContainer) GetMapping() map[string][]entities.Commune {
	return dc.load().mapping
}

// GetPostalCodeCount returns the number of postal codes
func (dc *DataContainer) GetPostalCodeCount() int {
	return len(dc.load().mapping)
}

// GetCommuneCount returns the number of (postal code, commune) pairs
func (dc *DataContainer) GetCommuneCount() int {
	return dc.load().communes
}

// GetDataQualityReport returns the quality report of the current mapping
func (dc *DataContainer) GetDataQualityReport() *interfaces.DataQualityReport {
	return dc.load().report
}

// GetLastUpdated returns the timestamp of the last mapping update
func (dc *DataContainer) GetLastUpdated() time.Time {
	if v := dc.lastUpdated.Load(); v != nil {
		if lastUpdated, ok := v.(time.Time); ok {
			return lastUpdated
		}
	}

	logging.Warn("Could not get the last updated value")
	return time.Time{}
}

// IsUpdating returns true if a mapping reload is currently in progress
func (dc *DataContainer) IsUpdating() bool {
	return dc.updating.Load()
}

// SetServerStartTime sets the server start time
func (dc *DataContainer) SetServerStartTime(startTime time.Time) {
	dc.serverStartTime.Store(startTime)
}

// GetServerStartTime returns the server start time
func (dc *DataContainer) GetServerStartTime() time.Time {
	if v := dc.serverStartTime.Load(); v != nil {
		if startTime, ok := v.(time.Time); ok {
			return startTime
		}
	}

	logging.Warn("Could not get the server start time value")
	return time.Time{}
}

// UpdateData atomically replaces the mapping. A nil mapping is stored as empty.
func (dc *DataContainer) UpdateData(mapping map[string][]entities.Commune, report *interfaces.DataQualityReport) {
	if mapping == nil {
		mapping = make(map[string][]entities.Commune)
	}
	if report == nil {
		report = &interfaces.DataQualityReport{}
	}

	communes := 0
	for _, c := range mapping {
		communes += len(c)
	}

	// Atomic swap (zero downtime replacement)
	dc.current.Store(&snapshot{mapping: mapping, communes: communes, report: report})
	dc.lastUpdated.Store(time.Now())
	metrics.SetMappingSize(len(mapping), communes)
}

// BeginUpdate marks the start of a data update operation
// Returns true if update can proceed, false if another update is in progress
func (dc *DataContainer) BeginUpdate() bool {
	return dc.updating.CompareAndSwap(false, true)
}

// EndUpdate marks the end of a data update operation
func (dc *DataContainer) EndUpdate() {
	dc.updating.Store(false)
}
