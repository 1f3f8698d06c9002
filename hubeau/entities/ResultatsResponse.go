package entities

import "time"

// ResultatsResponse is the envelope returned by the resultats_dis endpoint.
type ResultatsResponse struct {
	Count      int      `json:"count"`
	First      string   `json:"first,omitempty"`
	Last       string   `json:"last,omitempty"`
	Prev       string   `json:"prev,omitempty"`
	Next       string   `json:"next,omitempty"`
	APIVersion string   `json:"api_version,omitempty"`
	Data       []Sample `json:"data"`
}

// CachedResultats is the on-disk layout of a cached response: the API
// envelope wrapped in a "data" property. FetchedAt is absent from files
// written by older tools, the file modification time is used instead.
type CachedResultats struct {
	FetchedAt *time.Time        `json:"fetched_at,omitempty"`
	Data      ResultatsResponse `json:"data"`
}
