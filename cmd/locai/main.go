package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/locaidev/locai/internal/config"
	"github.com/locaidev/locai/internal/engine"
	"github.com/locaidev/locai/internal/store"
)

var (
	cfg      *config.Config
	inMemory bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	rootCmd := &cobra.Command{
		Use:   "locai",
		Short: "Locai — graph-structured memory engine for AI agents",
		Long:  "Locai stores agent memories as a graph of memories, entities, and typed relationships, with hybrid search, delta-compressed version history, and live change feeds.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().BoolVar(&inMemory, "in-memory", false,
		"use the embedded in-memory store instead of Neo4j")

	rootCmd.AddCommand(
		storeCmd(),
		getCmd(),
		listCmd(),
		forgetCmd(),
		searchCmd(),
		relateCmd(),
		graphCmd(),
		versionsCmd(),
		snapshotCmd(),
		typesCmd(),
		batchCmd(),
		expireCmd(),
		statsCmd(),
		healthCmd(),
		serveCmd(),
		mcpCmd(),
	)

	rootCmd.SetContext(ctx)

	err := rootCmd.Execute()
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if cfg != nil && cfg.Logging.Level == "debug" {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg != nil && cfg.Logging.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func newStore(logger *slog.Logger) (store.Store, error) {
	if inMemory {
		return store.NewMemStore(), nil
	}
	return store.NewNeo4jStore(
		cfg.Neo4j.URI,
		cfg.Neo4j.Username,
		cfg.Neo4j.Password,
		cfg.Neo4j.Database,
		logger,
	)
}

// newEngine builds and initializes the engine over the configured store.
func newEngine(ctx context.Context, logger *slog.Logger) (*engine.Engine, error) {
	st, err := newStore(logger)
	if err != nil {
		return nil, fmt.Errorf("connecting to store: %w", err)
	}
	eng, err := engine.New(cfg, st, logger)
	if err != nil {
		_ = st.Close(ctx)
		return nil, err
	}
	if err := eng.Init(ctx); err != nil {
		_ = st.Close(ctx)
		return nil, fmt.Errorf("initializing engine: %w", err)
	}
	return eng, nil
}

func truncate(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen]) + "..."
	}
	return s
}
