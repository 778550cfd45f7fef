package main

import (
	"github.com/spf13/cobra"

	"github.com/pawmap/photopipe"
)

var (
	scoreVenues string
	scoreIndex  string
	scoreOut    string
	scoreTopN   int
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Rank bulk media-index records against each venue",
	Long: `Scores every record of a bulk creative-commons media index against each
venue by name, city, country, and category keywords. Records with
disallowed licenses are discarded before scoring. Writes the top-N
records per venue as import candidates.`,
	RunE: runScore,
}

func init() {
	scoreCmd.Flags().StringVar(&scoreVenues, "venues", "", "venue input file (required)")
	scoreCmd.Flags().StringVar(&scoreIndex, "index", "", "bulk media index file (required)")
	scoreCmd.Flags().StringVar(&scoreOut, "out", "", "candidate output file (required)")
	scoreCmd.Flags().IntVar(&scoreTopN, "top", 0, "records kept per venue (default from tuning)")
	_ = scoreCmd.MarkFlagRequired("venues")
	_ = scoreCmd.MarkFlagRequired("index")
	_ = scoreCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, _ []string) error {
	venues, err := photopipe.ReadVenues(scoreVenues)
	if err != nil {
		return err
	}
	index, err := photopipe.ReadMediaIndex(scoreIndex)
	if err != nil {
		return err
	}

	t := tuning
	if scoreTopN > 0 {
		t.BulkTopN = scoreTopN
	}
	cfg := &photopipe.Config{Tuning: t}

	var rows []photopipe.CandidateRow
	for _, v := range venues {
		scored := cfg.ScoreMediaIndex(v, index)
		cands := photopipe.BulkCandidates(scored)
		for i, c := range cands {
			rows = append(rows, photopipe.CandidateRow{
				Slug:      v.Slug,
				SourceID:  scored[i].Record.ID,
				ThumbURL:  scored[i].Record.ThumbURL,
				Score:     scored[i].Score,
				Candidate: c,
			})
		}
	}

	if err := photopipe.WriteCandidates(scoreOut, rows); err != nil {
		return err
	}
	cmd.Printf("scored %d venues against %d index records: %d candidates -> %s\n",
		len(venues), len(index), len(rows), scoreOut)
	return nil
}
