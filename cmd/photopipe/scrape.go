package main

import (
	"context"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/pawmap/photopipe"
)

var (
	scrapeVenues      string
	scrapeMatches     string
	scrapeOut         string
	scrapeConcurrency int
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Extract image candidates from venue websites and social pages",
	Long: `Scrapes each venue's website (social pages as fallback) for embeddable
image candidates. With --matches, image URLs carried by matched POI
features are added as candidates too. Fetch failures yield zero
candidates for that venue, never an error.`,
	RunE: runScrape,
}

func init() {
	scrapeCmd.Flags().StringVar(&scrapeVenues, "venues", "", "venue input file (required)")
	scrapeCmd.Flags().StringVar(&scrapeMatches, "matches", "", "match output file to seed POI image candidates")
	scrapeCmd.Flags().StringVar(&scrapeOut, "out", "", "candidate output file (required)")
	scrapeCmd.Flags().IntVar(&scrapeConcurrency, "concurrency", 5, "venues scraped in parallel")
	_ = scrapeCmd.MarkFlagRequired("venues")
	_ = scrapeCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(scrapeCmd)
}

func runScrape(cmd *cobra.Command, _ []string) error {
	venues, err := photopipe.ReadVenues(scrapeVenues)
	if err != nil {
		return err
	}

	poiImages := make(map[string]photopipe.MatchResult)
	if scrapeMatches != "" {
		matches, err := photopipe.ReadMatches(scrapeMatches)
		if err != nil {
			return err
		}
		for _, m := range matches {
			if m.ImageURL != "" {
				poiImages[m.VenueSlug] = m
			}
		}
	}

	cfg := &photopipe.Config{
		Tuning:      tuning,
		Cache:       photopipe.NewTTLCache(15*time.Minute, nil),
		Concurrency: scrapeConcurrency,
	}

	ctx := context.Background()
	sem := make(chan struct{}, scrapeConcurrency)
	var mu sync.Mutex
	rowsBySlug := make(map[string][]photopipe.CandidateRow)

	var wg sync.WaitGroup
	for _, v := range venues {
		wg.Add(1)
		go func(v photopipe.Venue) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			var rows []photopipe.CandidateRow
			if m, ok := poiImages[v.Slug]; ok {
				rows = append(rows, photopipe.CandidateRow{
					Slug: v.Slug,
					Candidate: photopipe.Candidate{
						URL:    m.ImageURL,
						Source: photopipe.SourceGeoExtract,
						Rank:   photopipe.Rank{Priority: photopipe.PriorityGeoTag},
						Title:  m.POIName,
					},
				})
			}
			for _, c := range cfg.ExtractWebCandidates(ctx, v) {
				rows = append(rows, photopipe.CandidateRow{Slug: v.Slug, Candidate: c})
			}

			mu.Lock()
			rowsBySlug[v.Slug] = rows
			mu.Unlock()
		}(v)
	}
	wg.Wait()

	// Stable output: venue input order, rank order within each venue.
	var rows []photopipe.CandidateRow
	withCandidates := 0
	for _, v := range venues {
		vr := rowsBySlug[v.Slug]
		if len(vr) > 0 {
			withCandidates++
		}
		rows = append(rows, vr...)
	}

	if err := photopipe.WriteCandidates(scrapeOut, rows); err != nil {
		return err
	}
	cmd.Printf("scraped %d venues: %d with candidates, %d rows -> %s\n",
		len(venues), withCandidates, len(rows), scrapeOut)
	return nil
}
