package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/locaidev/locai/internal/models"
)

func storeCmd() *cobra.Command {
	var (
		memType  string
		priority string
		tags     []string
		source   string
	)

	cmd := &cobra.Command{
		Use:   "store [content]",
		Short: "Store a new memory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			eng, err := newEngine(ctx, logger)
			if err != nil {
				return fmt.Errorf("store: %w", err)
			}
			defer func() { _ = eng.Close(ctx) }()

			mem, err := eng.StoreMemory(ctx, models.Memory{
				Content:    args[0],
				MemoryType: models.MemoryType(memType),
				Priority:   models.ParsePriority(priority),
				Tags:       tags,
				Source:     source,
			})
			if err != nil {
				return fmt.Errorf("store: %w", err)
			}

			fmt.Printf("Stored %s [%s/%s]\n", mem.ID, mem.MemoryType, mem.Priority)
			if len(mem.Tags) > 0 {
				fmt.Printf("Tags: %s\n", strings.Join(mem.Tags, ", "))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&memType, "type", "t", "fact", "memory type")
	cmd.Flags().StringVarP(&priority, "priority", "p", "normal", "priority: low, normal, high, critical")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "tag (repeatable)")
	cmd.Flags().StringVar(&source, "source", "cli", "memory source")
	return cmd
}

func forgetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "forget [memory-id]",
		Short: "Delete a memory with its versions and relationships",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			eng, err := newEngine(ctx, logger)
			if err != nil {
				return fmt.Errorf("forget: %w", err)
			}
			defer func() { _ = eng.Close(ctx) }()

			deleted, err := eng.DeleteMemory(ctx, args[0])
			if err != nil {
				return fmt.Errorf("forget: %w", err)
			}
			if !deleted {
				fmt.Println("Memory not found; nothing deleted.")
				return nil
			}
			fmt.Println("Deleted.")
			return nil
		},
	}
}
