// Command photopipe runs the venue photo enrichment pipeline as independent
// batch stages: match, scrape, score, and import.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/pawmap/photopipe"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		var extractErr *photopipe.ExtractionError
		var configErr *photopipe.ConfigurationError
		switch {
		case errors.As(err, &extractErr):
			fmt.Fprintln(os.Stderr, "fatal (extraction):", err)
		case errors.As(err, &configErr):
			fmt.Fprintln(os.Stderr, "fatal (configuration):", err)
		default:
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}
