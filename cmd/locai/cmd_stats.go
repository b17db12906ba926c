package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func statsCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show store and enforcement statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			eng, err := newEngine(ctx, logger)
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}
			defer func() { _ = eng.Close(ctx) }()

			stats, err := eng.Stats(ctx)
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}
			enforcement := eng.EnforcementMetrics()

			if jsonOut {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{
					"store":       stats,
					"enforcement": enforcement,
				})
			}

			fmt.Printf("Memories:      %d\n", stats.TotalMemories)
			fmt.Printf("Entities:      %d\n", stats.TotalEntities)
			fmt.Printf("Relationships: %d\n", stats.TotalRelationships)
			fmt.Printf("Versions:      %d\n", stats.TotalVersions)
			if len(stats.ByMemoryType) > 0 {
				fmt.Println("By type:")
				for typ, n := range stats.ByMemoryType {
					fmt.Printf("  %-12s %d\n", typ, n)
				}
			}
			fmt.Printf("Symmetric mirrors created:  %d\n", enforcement.SymmetricCreated)
			fmt.Printf("Transitive links created:   %d\n", enforcement.TransitiveCreated)
			fmt.Printf("Manual inverse pairs seen:  %d\n", enforcement.ManualInversePairs)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "output as JSON")
	return cmd
}
