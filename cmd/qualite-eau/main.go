// Command qualite-eau serves the water quality API and analyzes Hub'Eau
// results from the command line.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
