package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/locaidev/locai/internal/version"
)

func versionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "versions",
		Short: "Inspect and maintain memory version history",
	}
	cmd.AddCommand(
		versionsListCmd(),
		versionsDiffCmd(),
		versionsRollbackCmd(),
		versionsCompactCmd(),
		versionsCheckCmd(),
	)
	return cmd
}

func versionsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list [memory-id]",
		Short: "List a memory's versions, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			eng, err := newEngine(ctx, logger)
			if err != nil {
				return fmt.Errorf("versions list: %w", err)
			}
			defer func() { _ = eng.Close(ctx) }()

			chain, err := eng.Versions().ListVersions(ctx, args[0])
			if err != nil {
				return fmt.Errorf("versions list: %w", err)
			}

			for i := range chain {
				v := &chain[i]
				fmt.Printf("[%d] %s  %-9s %s  %s\n",
					i+1, v.ID, v.StorageForm, v.CreatedAt.Format("2006-01-02 15:04:05"), v.Description)
			}
			if len(chain) == 0 {
				fmt.Println("No versions found.")
			}
			return nil
		},
	}
}

func versionsDiffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diff [memory-id] [old-version-id] [new-version-id]",
		Short: "Show the changes between two versions",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			eng, err := newEngine(ctx, logger)
			if err != nil {
				return fmt.Errorf("versions diff: %w", err)
			}
			defer func() { _ = eng.Close(ctx) }()

			changes, err := eng.Versions().DiffVersions(ctx, args[0], args[1], args[2])
			if err != nil {
				return fmt.Errorf("versions diff: %w", err)
			}

			for _, c := range changes {
				switch c.Kind {
				case version.ChangeContent:
					fmt.Printf("%s: %d hunk(s)\n", c.Kind, len(c.Hunks))
				case version.ChangeTagAdded, version.ChangeTagRemoved:
					fmt.Printf("%s: %s\n", c.Kind, c.Tag)
				case version.ChangePriority:
					fmt.Printf("%s: %s -> %s\n", c.Kind, c.OldPriority, c.NewPriority)
				case version.ChangeProperty:
					fmt.Printf("%s: %s: %v -> %v\n", c.Kind, c.Key, c.OldValue, c.NewValue)
				default:
					fmt.Println(c.Kind)
				}
			}
			if len(changes) == 0 {
				fmt.Println("No differences.")
			}
			return nil
		},
	}
}

func versionsRollbackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rollback [memory-id] [version-id]",
		Short: "Restore a memory's live state from an earlier version",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			eng, err := newEngine(ctx, logger)
			if err != nil {
				return fmt.Errorf("versions rollback: %w", err)
			}
			defer func() { _ = eng.Close(ctx) }()

			mem, err := eng.RollbackMemory(ctx, args[0], args[1])
			if err != nil {
				return fmt.Errorf("versions rollback: %w", err)
			}
			fmt.Printf("Rolled back %s\n%s\n", mem.ID, truncate(mem.Content, 200))
			return nil
		},
	}
}

func versionsCompactCmd() *cobra.Command {
	var keepLast int

	cmd := &cobra.Command{
		Use:   "compact [memory-id]",
		Short: "Remove intermediate versions from a chain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			eng, err := newEngine(ctx, logger)
			if err != nil {
				return fmt.Errorf("versions compact: %w", err)
			}
			defer func() { _ = eng.Close(ctx) }()

			removed, err := eng.Versions().CompactVersions(ctx, args[0], version.CompactOptions{KeepLast: keepLast})
			if err != nil {
				return fmt.Errorf("versions compact: %w", err)
			}
			fmt.Printf("Removed %d version(s).\n", removed)
			return nil
		},
	}

	cmd.Flags().IntVar(&keepLast, "keep-last", 5, "versions to keep at the end of the chain")
	return cmd
}

func versionsCheckCmd() *cobra.Command {
	var repair bool

	cmd := &cobra.Command{
		Use:   "check [memory-id]",
		Short: "Validate version chain integrity (all memories when no id given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			eng, err := newEngine(ctx, logger)
			if err != nil {
				return fmt.Errorf("versions check: %w", err)
			}
			defer func() { _ = eng.Close(ctx) }()

			var memoryID string
			if len(args) > 0 {
				memoryID = args[0]
			}

			issues, err := eng.Versions().ValidateVersions(ctx, memoryID)
			if err != nil {
				return fmt.Errorf("versions check: %w", err)
			}
			for _, issue := range issues {
				fmt.Printf("%s: memory %s version %s: %s\n", issue.Kind, issue.MemoryID, issue.VersionID, issue.Detail)
			}
			if len(issues) == 0 {
				fmt.Println("All version chains are intact.")
				return nil
			}

			if repair {
				report, err := eng.Versions().RepairVersions(ctx, memoryID)
				if err != nil {
					return fmt.Errorf("versions check: repairing: %w", err)
				}
				fmt.Printf("Repaired %d, failed %d.\n", report.Repaired, report.Failed)
				for _, d := range report.Details {
					fmt.Printf("  %s\n", d)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&repair, "repair", false, "attempt to repair recoverable issues")
	return cmd
}
