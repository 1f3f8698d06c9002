package report

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/giygas/qualite-eau-api/hubeau/entities"
	"github.com/giygas/qualite-eau-api/quality"
)

// Export formats.
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
)

// utf8BOM lets spreadsheet software detect the encoding.
const utf8BOM = "\uFEFF"

var csvHeader = []string{"Paramètre", "Résultat", "Unité", "Date", "Conformité"}

// ContentType returns the MIME type of an export format.
func ContentType(format string) string {
	if format == FormatCSV {
		return "text/csv; charset=utf-8"
	}
	return "application/json"
}

// Filename returns the attachment name of a commune export.
func Filename(insee, format string) string {
	return fmt.Sprintf("hubeau_data_%s.%s", insee, format)
}

// Write exports samples in the given format.
func Write(w io.Writer, format string, samples []entities.Sample) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, samples)
	case FormatJSON:
		return WriteJSON(w, samples)
	}
	return fmt.Errorf("unsupported export format %q", format)
}

// WriteCSV writes one row per measurement. Every cell is quoted.
func WriteCSV(w io.Writer, samples []entities.Sample) error {
	bw := bufio.NewWriter(w)
	bw.WriteString(utf8BOM)
	writeCSVRow(bw, csvHeader, false)

	for _, s := range quality.FilterPlaceholders(samples) {
		conformity := "Conforme"
		if !quality.IsCompliant(s) {
			conformity = "Non conforme"
		}
		bw.WriteByte('\n')
		writeCSVRow(bw, []string{
			s.LibelleParametre,
			rawResult(s),
			s.LibelleUnite,
			s.DatePrelevement,
			conformity,
		}, true)
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write csv export: %w", err)
	}
	return nil
}

func writeCSVRow(bw *bufio.Writer, cells []string, quoted bool) {
	for i, cell := range cells {
		if i > 0 {
			bw.WriteByte(',')
		}
		if quoted {
			cell = `"` + strings.ReplaceAll(cell, `"`, `""`) + `"`
		}
		bw.WriteString(cell)
	}
}

func rawResult(s entities.Sample) string {
	if alpha := strings.TrimSpace(s.ResultatAlphanumerique); alpha != "" {
		return alpha
	}
	if s.ResultatNumerique != nil {
		return strconv.FormatFloat(*s.ResultatNumerique, 'f', -1, 64)
	}
	return ""
}

type exportedSample struct {
	entities.Sample
	Conforme bool `json:"conforme"`
}

// WriteJSON writes the raw samples, indented, each with its compliance flag.
func WriteJSON(w io.Writer, samples []entities.Sample) error {
	out := make([]exportedSample, 0, len(samples))
	for _, s := range samples {
		out = append(out, exportedSample{Sample: s, Conforme: quality.IsCompliant(s)})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("failed to write json export: %w", err)
	}
	return nil
}
