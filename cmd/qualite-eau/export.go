package main

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/giygas/qualite-eau-api/app"
	"github.com/giygas/qualite-eau-api/report"
	"github.com/giygas/qualite-eau-api/validation"
	"github.com/spf13/cobra"
)

var (
	exportFormat string
	exportInsee  string
	exportOutput string
)

var exportCmd = &cobra.Command{
	Use:   "export <postal-code>",
	Short: "Export the raw Hub'Eau results of a commune",
	Long: `Writes the analyses of one commune as CSV or JSON. The first commune of
the postal code is used unless --insee is given.`,
	Example: `  qualite-eau export 33000 --format json
  qualite-eau export 33160 --insee 33449 -o saint-medard.csv`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", report.FormatCSV, "csv or json")
	exportCmd.Flags().StringVar(&exportInsee, "insee", "", "commune to export")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "write to a file instead of stdout")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	format := strings.ToLower(exportFormat)
	if err := validation.ValidateExportFormat(format); err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	communes, err := resolveCommunes(cfg.PostalMappingFile, args[0], exportInsee)
	if err != nil {
		return err
	}
	commune := communes[0]

	samples, err := app.NewFetcher(cfg).FetchSamples(cmd.Context(), commune.Insee)
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", commune.Insee, err)
	}
	if len(samples) == 0 {
		return fmt.Errorf("no data for commune %s (%s)", commune.Nom, commune.Insee)
	}

	var buf bytes.Buffer
	if err := report.Write(&buf, format, samples); err != nil {
		return err
	}

	if exportOutput == "" {
		_, err := cmd.OutOrStdout().Write(buf.Bytes())
		return err
	}
	if err := os.WriteFile(exportOutput, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", exportOutput, err)
	}
	cmd.PrintErrf("%d samples of %s written to %s\n", len(samples), commune.Nom, exportOutput)
	return nil
}
