package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/pawmap/photopipe"
)

var (
	matchVenues   string
	matchOut      string
	matchOverpass string
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Link venues to POI features from a geospatial extract",
	Long: `Fetches a geospatial extract for the bounding box of all venues and links
each venue to its best-matching POI feature by fuzzy name plus proximity.
Venues without a qualifying POI produce no output row.`,
	RunE: runMatch,
}

func init() {
	matchCmd.Flags().StringVar(&matchVenues, "venues", "", "venue input file (required)")
	matchCmd.Flags().StringVar(&matchOut, "out", "", "match output file (required)")
	matchCmd.Flags().StringVar(&matchOverpass, "overpass-url", photopipe.DefaultOverpassURL, "extract endpoint")
	_ = matchCmd.MarkFlagRequired("venues")
	_ = matchCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(matchCmd)
}

func runMatch(cmd *cobra.Command, _ []string) error {
	venues, err := photopipe.ReadVenues(matchVenues)
	if err != nil {
		return err
	}

	cfg := &photopipe.Config{Tuning: tuning}

	features, err := cfg.FetchPOIFeatures(context.Background(), matchOverpass, venues)
	if err != nil {
		return err
	}
	cmd.Printf("extract: %d POI features for %d venues\n", len(features), len(venues))

	matches := cfg.MatchVenues(venues, features)
	if err := photopipe.WriteMatches(matchOut, matches); err != nil {
		return err
	}

	cmd.Printf("matched %d/%d venues -> %s\n", len(matches), len(venues), matchOut)
	if len(matches) < len(venues) {
		cmd.Printf("%d venues had no qualifying POI\n", len(venues)-len(matches))
	}
	return nil
}
