package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func expireCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "expire",
		Short: "Sweep and delete memories past their expiry time",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			eng, err := newEngine(ctx, logger)
			if err != nil {
				return fmt.Errorf("expire: %w", err)
			}
			defer func() { _ = eng.Close(ctx) }()

			report, err := eng.SweepExpired(ctx, dryRun)
			if err != nil {
				return fmt.Errorf("expire: %w", err)
			}

			verb := "Expired"
			if report.DryRun {
				verb = "Would expire"
			}
			fmt.Printf("%s %d memories.\n", verb, len(report.Expired))
			for _, id := range report.Expired {
				fmt.Printf("  %s\n", id)
			}
			if len(report.Vetoed) > 0 {
				fmt.Printf("Vetoed by hooks: %d\n", len(report.Vetoed))
				for _, id := range report.Vetoed {
					fmt.Printf("  %s\n", id)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report expired memories without deleting them")
	return cmd
}
