package hubeau

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/giygas/qualite-eau-api/hubeau/entities"
)

// DecodeSamples reads samples saved to disk. It accepts a plain JSON array,
// a resultats_dis response or a cache entry wrapping one.
func DecodeSamples(r io.Reader) ([]entities.Sample, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read samples: %w", err)
	}
	content = bytes.TrimSpace(content)
	if len(content) == 0 {
		return nil, fmt.Errorf("empty samples file")
	}

	if content[0] == '[' {
		var samples []entities.Sample
		if err := json.Unmarshal(content, &samples); err != nil {
			return nil, fmt.Errorf("invalid samples array: %w", err)
		}
		return samples, nil
	}

	var probe struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(content, &probe); err != nil {
		return nil, fmt.Errorf("invalid samples document: %w", err)
	}
	probe.Data = bytes.TrimSpace(probe.Data)

	switch {
	case len(probe.Data) == 0 || string(probe.Data) == "null":
		return []entities.Sample{}, nil
	case probe.Data[0] == '{':
		var cached entities.CachedResultats
		if err := json.Unmarshal(content, &cached); err != nil {
			return nil, fmt.Errorf("invalid cache entry: %w", err)
		}
		return cached.Data.Data, nil
	default:
		var resp entities.ResultatsResponse
		if err := json.Unmarshal(content, &resp); err != nil {
			return nil, fmt.Errorf("invalid Hub'Eau response: %w", err)
		}
		return resp.Data, nil
	}
}
