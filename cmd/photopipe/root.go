package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/pawmap/photopipe"
)

var (
	flagVerbose bool
	flagTuning  string

	tuning = photopipe.DefaultTuning()
)

var rootCmd = &cobra.Command{
	Use:   "photopipe",
	Short: "Venue photo enrichment pipeline",
	Long: `photopipe enriches a venue catalog with license-compliant photographs.
Each subcommand is one independent batch stage; stages communicate through
delimited tabular files.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelInfo
		if flagVerbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

		if flagTuning != "" {
			t, err := photopipe.LoadTuning(flagTuning)
			if err != nil {
				return err
			}
			tuning = t
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&flagTuning, "tuning", "", "TOML file overriding thresholds and scoring weights")
}
