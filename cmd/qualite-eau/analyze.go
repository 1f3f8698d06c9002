package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/giygas/qualite-eau-api/app"
	"github.com/giygas/qualite-eau-api/hubeau"
	"github.com/giygas/qualite-eau-api/hubeau/entities"
	"github.com/giygas/qualite-eau-api/logging"
	"github.com/giygas/qualite-eau-api/postal"
	"github.com/giygas/qualite-eau-api/report"
	"github.com/giygas/qualite-eau-api/validation"
	"github.com/spf13/cobra"
)

var (
	analyzeJSON  bool
	analyzeInsee string
	analyzeFile  string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [postal-code]",
	Short: "Print the water quality report of a postal code",
	Long: `Fetches the Hub'Eau analyses of every commune of a postal code and prints
their quality report. With --file, samples saved to disk are analyzed offline.`,
	Example: `  qualite-eau analyze 33000
  qualite-eau analyze 33160 --insee 33449 --json
  qualite-eau analyze --file resultats.json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "output the report as JSON")
	analyzeCmd.Flags().StringVar(&analyzeInsee, "insee", "", "restrict the report to one commune")
	analyzeCmd.Flags().StringVarP(&analyzeFile, "file", "f", "", "analyze a saved Hub'Eau response or samples array")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	var (
		result report.PostalReport
		err    error
	)

	switch {
	case analyzeFile != "":
		postalCode := ""
		if len(args) == 1 {
			postalCode = args[0]
		}
		result, err = analyzeSavedSamples(analyzeFile, postalCode, analyzeInsee)
	case len(args) == 1:
		result, err = analyzePostalCode(cmd.Context(), args[0], analyzeInsee)
	default:
		return errors.New("a postal code or --file is required")
	}
	if err != nil {
		return err
	}

	if analyzeJSON {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal report: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	renderPostalReport(cmd.OutOrStdout(), result)
	return nil
}

func analyzeSavedSamples(path, postalCode, insee string) (report.PostalReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return report.PostalReport{}, err
	}
	defer f.Close()

	samples, err := hubeau.DecodeSamples(f)
	if err != nil {
		return report.PostalReport{}, fmt.Errorf("%s: %w", path, err)
	}

	commune := entities.Commune{Insee: insee, Nom: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))}
	if len(samples) > 0 {
		if commune.Insee == "" {
			commune.Insee = samples[0].CodeCommune
		}
		if samples[0].NomCommune != "" {
			commune.Nom = samples[0].NomCommune
		}
	}

	return report.PostalReport{
		PostalCode: postalCode,
		Results:    []report.CommuneReport{report.Build(commune, samples)},
	}, nil
}

// resolveCommunes looks the postal code up in the mapping file.
func resolveCommunes(mappingFile, postalCode, insee string) ([]entities.Commune, error) {
	if err := validation.ValidatePostalCode(postalCode); err != nil {
		return nil, err
	}
	if insee != "" {
		if err := validation.ValidateInsee(insee); err != nil {
			return nil, err
		}
	}

	mapping, err := postal.LoadFile(mappingFile)
	if err != nil {
		return nil, err
	}
	communes := mapping[postalCode]
	if len(communes) == 0 {
		return nil, fmt.Errorf("postal code %s not found in %s", postalCode, mappingFile)
	}
	if insee == "" {
		return communes, nil
	}
	for _, c := range communes {
		if c.Insee == insee {
			return []entities.Commune{c}, nil
		}
	}
	return nil, fmt.Errorf("commune %s is not served by postal code %s", insee, postalCode)
}

func analyzePostalCode(ctx context.Context, postalCode, insee string) (report.PostalReport, error) {
	cfg, err := loadConfig()
	if err != nil {
		return report.PostalReport{}, err
	}
	communes, err := resolveCommunes(cfg.PostalMappingFile, postalCode, insee)
	if err != nil {
		return report.PostalReport{}, err
	}

	fetcher := app.NewFetcher(cfg)
	result := report.PostalReport{PostalCode: postalCode, Results: []report.CommuneReport{}}
	var lastErr error
	for _, c := range communes {
		samples, err := fetcher.FetchSamples(ctx, c.Insee)
		if err != nil {
			logging.Warn("Failed to fetch commune samples", "insee", c.Insee, "error", err)
			lastErr = err
			continue
		}
		if len(samples) == 0 {
			continue
		}
		result.Results = append(result.Results, report.Build(c, samples))
	}

	if len(result.Results) == 0 {
		if lastErr != nil {
			return report.PostalReport{}, fmt.Errorf("no data for postal code %s: %w", postalCode, lastErr)
		}
		return report.PostalReport{}, fmt.Errorf("no data for postal code %s", postalCode)
	}
	return result, nil
}
