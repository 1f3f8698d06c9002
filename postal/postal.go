// Package postal loads the postal code to commune mapping and watches its
// file for changes.
package postal

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/giygas/qualite-eau-api/hubeau/entities"
	"github.com/giygas/qualite-eau-api/interfaces"
	"github.com/giygas/qualite-eau-api/logging"
	"github.com/giygas/qualite-eau-api/validation"
	"golang.org/x/text/encoding/charmap"
)

// ErrUnsupportedFormat is returned for mapping files that are neither .json nor .csv.
var ErrUnsupportedFormat = errors.New("unsupported mapping format")

// Mapping associates a postal code with the communes it serves.
type Mapping map[string][]entities.Commune

// CommuneCount returns the number of (postal code, commune) pairs.
func (m Mapping) CommuneCount() int {
	n := 0
	for _, communes := range m {
		n += len(communes)
	}
	return n
}

// FileLoader implements interfaces.MappingLoader for a file on disk.
type FileLoader struct {
	Path string
}

var _ interfaces.MappingLoader = (*FileLoader)(nil)

// NewFileLoader creates a loader for path.
func NewFileLoader(path string) *FileLoader {
	return &FileLoader{Path: path}
}

func (l *FileLoader) Load() (map[string][]entities.Commune, error) {
	return LoadFile(l.Path)
}

// LoadFile reads a mapping file, choosing the parser from the extension.
func LoadFile(path string) (Mapping, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read mapping file: %w", err)
	}

	var mapping Mapping
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		mapping, err = ParseJSON(bytes.NewReader(content))
	case ".csv":
		mapping, err = ParseCSV(bytes.NewReader(content))
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	logging.Info("Postal mapping loaded", "path", path, "postal_codes", len(mapping), "communes", mapping.CommuneCount())
	return mapping, nil
}

// ParseJSON reads {"33000":[{"insee":"33063","nom":"Bordeaux"}], ...}.
func ParseJSON(r io.Reader) (Mapping, error) {
	var raw map[string][]entities.Commune
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("invalid JSON mapping: %w", err)
	}

	mapping := make(Mapping, len(raw))
	for code, communes := range raw {
		code = strings.TrimSpace(code)
		for _, c := range communes {
			mapping.add(code, c)
		}
		if _, ok := mapping[code]; !ok {
			mapping[code] = []entities.Commune{}
		}
	}
	return mapping, nil
}

// csvColumns are the La Poste header names, lowercased without the leading '#'.
var csvColumns = struct {
	insee, nom, postal string
}{
	insee:  "code_commune_insee",
	nom:    "nom_de_la_commune",
	postal: "code_postal",
}

// ParseCSV reads the La Poste "base officielle des codes postaux" export:
// semicolon separated, UTF-8 or ISO-8859-1, one line per commune and postal code.
func ParseCSV(r io.Reader) (Mapping, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	content = bytes.TrimPrefix(content, []byte("\uFEFF"))

	var src io.Reader = bytes.NewReader(content)
	if !utf8.Valid(content) {
		src = charmap.ISO8859_1.NewDecoder().Reader(src)
	}

	reader := csv.NewReader(src)
	reader.Comma = ';'
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("missing CSV header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimLeft(strings.TrimSpace(name), "#"))] = i
	}
	inseeCol, okInsee := index[csvColumns.insee]
	nomCol, okNom := index[csvColumns.nom]
	postalCol, okPostal := index[csvColumns.postal]
	if !okInsee || !okNom || !okPostal {
		return nil, fmt.Errorf("CSV header must contain %s, %s and %s", csvColumns.insee, csvColumns.nom, csvColumns.postal)
	}

	mapping := make(Mapping)
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(record) <= max(inseeCol, nomCol, postalCol) {
			logging.Debug("Skipping short mapping line", "line", line)
			continue
		}

		code := strings.TrimSpace(record[postalCol])
		// Some exports drop the leading zero of departments 01 to 09.
		if len(code) == 4 && validation.ValidatePostalCode("0"+code) == nil {
			code = "0" + code
		}
		insee := strings.TrimSpace(record[inseeCol])
		if len(insee) == 4 {
			insee = "0" + insee
		}

		mapping.add(code, entities.Commune{Insee: insee, Nom: strings.TrimSpace(record[nomCol])})
	}

	for code := range mapping {
		sort.SliceStable(mapping[code], func(i, j int) bool {
			return mapping[code][i].Nom < mapping[code][j].Nom
		})
	}
	return mapping, nil
}

// add appends c to code unless a commune with the same INSEE code is present.
func (m Mapping) add(code string, c entities.Commune) {
	c.Insee = strings.TrimSpace(c.Insee)
	c.Nom = strings.TrimSpace(c.Nom)
	if code == "" || c.Insee == "" {
		return
	}
	for _, existing := range m[code] {
		if existing.Insee == c.Insee {
			return
		}
	}
	m[code] = append(m[code], c)
}
