package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/locaidev/locai/internal/models"
)

func relateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "relate [source-id] [type] [target-id]",
		Short: "Create a typed relationship between two nodes",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			eng, err := newEngine(ctx, logger)
			if err != nil {
				return fmt.Errorf("relate: %w", err)
			}
			defer func() { _ = eng.Close(ctx) }()

			res, err := eng.CreateRelationship(ctx, models.Relationship{
				SourceID:         args[0],
				RelationshipType: args[1],
				TargetID:         args[2],
			})
			if err != nil {
				return fmt.Errorf("relate: %w", err)
			}

			fmt.Printf("Created %s\n", res.Primary.ID)
			for _, extra := range res.Additional {
				fmt.Printf("Mirror  %s (%s -> %s)\n", extra.ID, extra.SourceID, extra.TargetID)
			}
			return nil
		},
	}
	return cmd
}

func graphCmd() *cobra.Command {
	var (
		depth   int
		relType string
	)

	cmd := &cobra.Command{
		Use:   "graph [node-id]",
		Short: "Show the subgraph around a node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			eng, err := newEngine(ctx, logger)
			if err != nil {
				return fmt.Errorf("graph: %w", err)
			}
			defer func() { _ = eng.Close(ctx) }()

			sub, err := eng.GetSubgraph(ctx, args[0], relType, depth)
			if err != nil {
				return fmt.Errorf("graph: %w", err)
			}

			fmt.Printf("Center: %s\n", sub.CenterID)
			fmt.Printf("Nodes:  %s\n", strings.Join(sub.NodeIDs, ", "))
			for _, r := range sub.Relationships {
				fmt.Printf("  %s -[%s]-> %s\n", r.SourceID, r.RelationshipType, r.TargetID)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&depth, "depth", 0, "maximum hops (0 = default)")
	cmd.Flags().StringVarP(&relType, "type", "t", "", "restrict to one relationship type")
	return cmd
}
