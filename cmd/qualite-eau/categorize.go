package main

import (
	"fmt"

	"github.com/giygas/qualite-eau-api/quality"
	"github.com/spf13/cobra"
)

var categorizeCmd = &cobra.Command{
	Use:     "categorize <label>...",
	Short:   "Show the category of Hub'Eau parameter labels",
	Example: `  qualite-eau categorize "Nitrates (en NO3)" "Escherichia coli /100ml - MF"`,
	Args:    cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		for _, label := range args {
			line := label + " → " + string(quality.Categorize(label))
			if r, ok := quality.Threshold(label); ok {
				line += " " + mutedStyle.Render("(seuil "+formatRange(r)+")")
			}
			fmt.Fprintln(cmd.OutOrStdout(), line)
		}
	},
}

func init() {
	rootCmd.AddCommand(categorizeCmd)
}
