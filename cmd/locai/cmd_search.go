package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/locaidev/locai/internal/models"
)

func searchCmd() *cobra.Command {
	var (
		mode      string
		memType   string
		limit     int
		threshold float64
		tags      []string
		matchAll  bool
	)

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search memories (intelligent, bm25, fuzzy, or tags mode)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			eng, err := newEngine(ctx, logger)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			defer func() { _ = eng.Close(ctx) }()

			var query string
			if len(args) > 0 {
				query = args[0]
			}

			var f *models.MemoryFilter
			if memType != "" {
				mt := models.MemoryType(memType)
				f = &models.MemoryFilter{MemoryType: &mt}
			}

			var results []models.SearchResult
			switch mode {
			case "intelligent":
				results, err = eng.Search(ctx, query, nil, f, limit)
			case "bm25":
				results, err = eng.SearchBM25(ctx, query, f, limit)
			case "fuzzy":
				results, err = eng.SearchFuzzy(ctx, query, threshold, limit)
			case "tags":
				results, err = eng.SearchTags(ctx, tags, matchAll, limit)
			default:
				return fmt.Errorf("search: unknown mode %q", mode)
			}
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}

			for i := range results {
				r := &results[i]
				fmt.Printf("[%d] (%.4f) [%s|%s] %s\n", i+1, r.Score, r.Memory.MemoryType, r.MatchMethod, truncate(r.Memory.Content, 100))
				fmt.Printf("    ID: %s\n", r.Memory.ID)
				if r.Highlight != nil {
					fmt.Printf("    %s\n", r.Highlight.Snippet)
				}
			}
			if len(results) == 0 {
				fmt.Println("No results found.")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&mode, "mode", "m", "intelligent", "search mode: intelligent, bm25, fuzzy, tags")
	cmd.Flags().StringVarP(&memType, "type", "t", "", "filter by memory type")
	cmd.Flags().IntVar(&limit, "limit", 10, "maximum results")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "fuzzy similarity threshold (0 = configured default)")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "tag for tags mode (repeatable)")
	cmd.Flags().BoolVar(&matchAll, "all", false, "tags mode: require every tag")
	return cmd
}
