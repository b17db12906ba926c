package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/locaidev/locai/internal/version"
)

func snapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Create, list, restore, and search point-in-time snapshots",
	}
	cmd.AddCommand(
		snapshotCreateCmd(),
		snapshotListCmd(),
		snapshotRestoreCmd(),
		snapshotSearchCmd(),
		snapshotDeleteCmd(),
	)
	return cmd
}

func snapshotCreateCmd() *cobra.Command {
	var (
		description string
		memoryIDs   []string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Snapshot the current version of every memory (or a chosen set)",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			eng, err := newEngine(ctx, logger)
			if err != nil {
				return fmt.Errorf("snapshot create: %w", err)
			}
			defer func() { _ = eng.Close(ctx) }()

			snap, err := eng.Versions().CreateSnapshot(ctx, memoryIDs, description)
			if err != nil {
				return fmt.Errorf("snapshot create: %w", err)
			}
			fmt.Printf("Created snapshot %s covering %d memories.\n", snap.SnapshotID, snap.MemoryCount)
			return nil
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "snapshot description")
	cmd.Flags().StringSliceVar(&memoryIDs, "memory", nil, "memory id to include (repeatable; default all)")
	return cmd
}

func snapshotListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List snapshots",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			eng, err := newEngine(ctx, logger)
			if err != nil {
				return fmt.Errorf("snapshot list: %w", err)
			}
			defer func() { _ = eng.Close(ctx) }()

			snaps, err := eng.Versions().ListSnapshots(ctx)
			if err != nil {
				return fmt.Errorf("snapshot list: %w", err)
			}
			for i := range snaps {
				s := &snaps[i]
				fmt.Printf("%s  %s  %d memories  %s\n",
					s.SnapshotID, s.CreatedAt.Format("2006-01-02 15:04:05"), s.MemoryCount, s.Description)
			}
			if len(snaps) == 0 {
				fmt.Println("No snapshots found.")
			}
			return nil
		},
	}
}

func snapshotRestoreCmd() *cobra.Command {
	var asNewVersions bool

	cmd := &cobra.Command{
		Use:   "restore [snapshot-id]",
		Short: "Restore memories to their snapshotted state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			eng, err := newEngine(ctx, logger)
			if err != nil {
				return fmt.Errorf("snapshot restore: %w", err)
			}
			defer func() { _ = eng.Close(ctx) }()

			mode := version.RestoreOverwrite
			if asNewVersions {
				mode = version.RestoreNewVersion
			}
			if err := eng.Versions().RestoreSnapshot(ctx, args[0], mode); err != nil {
				return fmt.Errorf("snapshot restore: %w", err)
			}
			fmt.Println("Restored.")
			return nil
		},
	}

	cmd.Flags().BoolVar(&asNewVersions, "as-new-versions", false,
		"append restored states as new versions instead of overwriting live records")
	return cmd
}

func snapshotSearchCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search [snapshot-id] [query]",
		Short: "Keyword search within a snapshot's contents",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			eng, err := newEngine(ctx, logger)
			if err != nil {
				return fmt.Errorf("snapshot search: %w", err)
			}
			defer func() { _ = eng.Close(ctx) }()

			matches, err := eng.Versions().SearchSnapshot(ctx, args[0], args[1], limit)
			if err != nil {
				return fmt.Errorf("snapshot search: %w", err)
			}
			for i, m := range matches {
				fmt.Printf("[%d] (%.4f) memory %s\n    %s\n", i+1, m.Score, m.MemoryID, truncate(m.Preview, 100))
			}
			if len(matches) == 0 {
				fmt.Println("No matches found.")
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "maximum results")
	return cmd
}

func snapshotDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [snapshot-id]",
		Short: "Delete a snapshot (version chains are untouched)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			eng, err := newEngine(ctx, logger)
			if err != nil {
				return fmt.Errorf("snapshot delete: %w", err)
			}
			defer func() { _ = eng.Close(ctx) }()

			if err := eng.Versions().DeleteSnapshot(ctx, args[0]); err != nil {
				return fmt.Errorf("snapshot delete: %w", err)
			}
			fmt.Println("Deleted.")
			return nil
		},
	}
}
