package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check connectivity to required services",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()
			allOK := true

			// Check the graph store
			st, err := newStore(logger)
			if err != nil {
				fmt.Printf("Store: FAIL (%v)\n", err)
				allOK = false
			} else {
				defer func() { _ = st.Close(ctx) }()
				if err := st.Init(ctx); err != nil {
					fmt.Printf("Store: FAIL (%v)\n", err)
					allOK = false
				} else {
					fmt.Println("Store: OK")
				}
			}

			// Check Claude API key (optional; only search suggestions need it)
			if cfg.Claude.APIKey == "" {
				fmt.Println("Claude API: not configured (search reasoning disabled)")
			} else {
				fmt.Println("Claude API: OK")
			}

			if !allOK {
				return fmt.Errorf("one or more health checks failed")
			}
			return nil
		},
	}
}
