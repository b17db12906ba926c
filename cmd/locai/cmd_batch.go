package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/locaidev/locai/internal/batch"
)

func batchCmd() *cobra.Command {
	var (
		file            string
		transactional   bool
		continueOnError bool
	)

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Execute a batch of operations from a JSON file or stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			var r io.Reader = os.Stdin
			if file != "" && file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return fmt.Errorf("batch: %w", err)
				}
				defer f.Close()
				r = f
			}

			var ops []batch.Operation
			if err := json.NewDecoder(r).Decode(&ops); err != nil {
				return fmt.Errorf("batch: decode operations: %w", err)
			}

			eng, err := newEngine(ctx, logger)
			if err != nil {
				return fmt.Errorf("batch: %w", err)
			}
			defer func() { _ = eng.Close(ctx) }()

			resp, err := eng.ExecuteBatch(ctx, ops, batch.Options{
				Transactional:   transactional,
				ContinueOnError: continueOnError,
			})
			if err != nil {
				return fmt.Errorf("batch: %w", err)
			}

			for _, res := range resp.Results {
				line := fmt.Sprintf("[%d] %-20s %s", res.Index, res.Kind, res.Status)
				if res.CreatedID != "" {
					line += " " + res.CreatedID
				}
				if res.Error != "" {
					line += " (" + res.Error + ")"
				}
				fmt.Println(line)
			}
			fmt.Printf("Completed: %d  Failed: %d\n", resp.Completed, resp.Failed)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "operations file (defaults to stdin)")
	cmd.Flags().BoolVar(&transactional, "transactional", false, "apply all operations atomically")
	cmd.Flags().BoolVar(&continueOnError, "continue-on-error", false, "keep going past failed operations")
	return cmd
}
