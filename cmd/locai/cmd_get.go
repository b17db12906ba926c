package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/locaidev/locai/internal/models"
)

func getCmd() *cobra.Command {
	var (
		outputJSON bool
		peek       bool
	)

	cmd := &cobra.Command{
		Use:   "get [memory-id]",
		Short: "Retrieve a single memory by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			eng, err := newEngine(ctx, logger)
			if err != nil {
				return fmt.Errorf("get: %w", err)
			}
			defer func() { _ = eng.Close(ctx) }()

			var mem *models.Memory
			if peek {
				mem, err = eng.PeekMemory(ctx, args[0])
			} else {
				mem, err = eng.GetMemory(ctx, args[0])
			}
			if err != nil {
				return fmt.Errorf("get: %w", err)
			}

			if outputJSON {
				out, err := json.MarshalIndent(mem, "", "  ")
				if err != nil {
					return fmt.Errorf("get: marshaling JSON: %w", err)
				}
				fmt.Println(string(out))
				return nil
			}

			fmt.Printf("ID:       %s\n", mem.ID)
			fmt.Printf("Type:     %s\n", mem.MemoryType)
			fmt.Printf("Priority: %s\n", mem.Priority)
			fmt.Printf("Tags:     %s\n", strings.Join(mem.Tags, ", "))
			fmt.Printf("Created:  %s\n", mem.CreatedAt.Format("2006-01-02 15:04:05"))
			fmt.Printf("Accesses: %d\n", mem.AccessCount)
			if mem.ExpiresAt != nil {
				fmt.Printf("Expires:  %s\n", mem.ExpiresAt.Format("2006-01-02 15:04:05"))
			}
			fmt.Printf("\nContent:\n%s\n", mem.Content)
			return nil
		},
	}

	cmd.Flags().BoolVar(&outputJSON, "json", false, "output as JSON")
	cmd.Flags().BoolVar(&peek, "peek", false, "do not record the access")
	return cmd
}

func listCmd() *cobra.Command {
	var (
		memType string
		tag     string
		limit   int
		offset  int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List memories",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			eng, err := newEngine(ctx, logger)
			if err != nil {
				return fmt.Errorf("list: %w", err)
			}
			defer func() { _ = eng.Close(ctx) }()

			var f *models.MemoryFilter
			if memType != "" || tag != "" {
				f = &models.MemoryFilter{}
				if memType != "" {
					mt := models.MemoryType(memType)
					f.MemoryType = &mt
				}
				if tag != "" {
					f.Tags = []string{tag}
				}
			}

			memories, err := eng.ListMemories(ctx, f, limit, offset)
			if err != nil {
				return fmt.Errorf("list: %w", err)
			}

			for i := range memories {
				m := &memories[i]
				fmt.Printf("[%s] %s  %s\n", m.MemoryType, m.ID, truncate(m.Content, 80))
			}
			if len(memories) == 0 {
				fmt.Println("No memories found.")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&memType, "type", "t", "", "filter by memory type")
	cmd.Flags().StringVar(&tag, "tag", "", "filter by tag")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum results")
	cmd.Flags().IntVar(&offset, "offset", 0, "results to skip")
	return cmd
}
