package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/locaidev/locai/internal/models"
)

func typesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "types",
		Short: "Manage the relationship type registry",
	}
	cmd.AddCommand(typesListCmd(), typesRegisterCmd(), typesDeleteCmd())
	return cmd
}

func typesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered relationship types",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			eng, err := newEngine(ctx, logger)
			if err != nil {
				return fmt.Errorf("types list: %w", err)
			}
			defer func() { _ = eng.Close(ctx) }()

			for _, def := range eng.RelationshipTypes().List() {
				flags := ""
				if def.Symmetric {
					flags += " symmetric"
				}
				if def.Transitive {
					flags += " transitive"
				}
				if def.Inverse != "" {
					flags += " inverse=" + def.Inverse
				}
				fmt.Printf("%-16s v%d%s\n", def.Name, def.Version, flags)
			}
			return nil
		},
	}
}

func typesRegisterCmd() *cobra.Command {
	var (
		inverse    string
		symmetric  bool
		transitive bool
	)

	cmd := &cobra.Command{
		Use:   "register [name]",
		Short: "Register a new relationship type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			eng, err := newEngine(ctx, logger)
			if err != nil {
				return fmt.Errorf("types register: %w", err)
			}
			defer func() { _ = eng.Close(ctx) }()

			def := models.RelationshipTypeDef{
				Name:       args[0],
				Inverse:    inverse,
				Symmetric:  symmetric,
				Transitive: transitive,
			}
			if err := eng.RelationshipTypes().Register(ctx, def); err != nil {
				return fmt.Errorf("types register: %w", err)
			}
			fmt.Printf("Registered %s.\n", def.Name)
			return nil
		},
	}

	cmd.Flags().StringVar(&inverse, "inverse", "", "inverse type name")
	cmd.Flags().BoolVar(&symmetric, "symmetric", false, "relationship holds in both directions")
	cmd.Flags().BoolVar(&transitive, "transitive", false, "relationship chains imply a relationship")
	return cmd
}

func typesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [name]",
		Short: "Remove a relationship type from the registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			eng, err := newEngine(ctx, logger)
			if err != nil {
				return fmt.Errorf("types delete: %w", err)
			}
			defer func() { _ = eng.Close(ctx) }()

			if err := eng.RelationshipTypes().Delete(ctx, args[0]); err != nil {
				return fmt.Errorf("types delete: %w", err)
			}
			fmt.Println("Deleted.")
			return nil
		},
	}
}
