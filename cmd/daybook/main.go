// cmd/daybook is the command-line companion to the MCP server: it builds
// timeline skeletons and manages stored event records directly against the
// configured storage backend.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/daybook-ai/daybook/internal/config"
	"github.com/daybook-ai/daybook/internal/storage"
	"github.com/daybook-ai/daybook/internal/storage/postgres"
	"github.com/daybook-ai/daybook/internal/storage/sqlite"
)

// cfg is populated in PersistentPreRunE before any subcommand runs.
var cfg *config.Config

// owner is the account all subcommands operate on.
var owner string

// store is the combined backend contract both engines satisfy.
type store interface {
	storage.EventStore
	storage.SessionStore
	storage.OwnerResolver
	EnsureOwner(ctx context.Context, owner, displayName string) error
}

var rootCmd = &cobra.Command{
	Use:   "daybook",
	Short: "Build daily timeline skeletons and manage stored events",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()

		var err error
		cfg, err = config.LoadConfig()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		if owner == "" {
			owner = os.Getenv("DAYBOOK_OWNER")
		}
		if owner == "" {
			return fmt.Errorf("no owner: pass --owner or set DAYBOOK_OWNER")
		}
		return nil
	},
}

func openStore() (store, error) {
	switch cfg.Storage.StorageEngine {
	case "postgres":
		if cfg.Storage.PostgresDSN == "" {
			return nil, fmt.Errorf("postgres engine requires DAYBOOK_POSTGRES_DSN")
		}
		return postgres.NewStore(cfg.Storage.PostgresDSN)
	case "", "sqlite":
		if err := os.MkdirAll(cfg.Storage.DataPath, 0o700); err != nil {
			return nil, fmt.Errorf("creating data directory %q: %w", cfg.Storage.DataPath, err)
		}
		return sqlite.NewStore(fmt.Sprintf("%s/daybook.db", cfg.Storage.DataPath))
	default:
		return nil, fmt.Errorf("unknown storage engine %q", cfg.Storage.StorageEngine)
	}
}

func parseDateArg(s string) (time.Time, error) {
	if s == "today" || s == "" {
		return time.Now(), nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD or \"today\"", s)
	}
	return t, nil
}

func main() {
	rootCmd.PersistentFlags().StringVar(&owner, "owner", "", "owner account (defaults to DAYBOOK_OWNER)")
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "daybook:", err)
		os.Exit(1)
	}
}
