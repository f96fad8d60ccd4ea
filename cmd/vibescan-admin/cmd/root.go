// Package cmd implements the vibescan-admin CLI commands.
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vibescan/api/internal/config"
	"github.com/vibescan/api/internal/infra/postgres"
	"github.com/vibescan/api/internal/infra/redis"
	"github.com/vibescan/api/pkg/logger"
)

var version string

var rootCmd = &cobra.Command{
	Use:   "vibescan-admin",
	Short: "VibeScan platform administration CLI",
	Long: `vibescan-admin manages the VibeScan backend directly against its
database: false-positive patterns, scan credits, and schema migrations.

Connection settings come from the same environment variables the API
server reads (DB_HOST, DB_PORT, REDIS_HOST, ...).`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the CLI version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the CLI version from build flags.
func SetVersion(v string) {
	version = v
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(patternCmd)
	rootCmd.AddCommand(creditsCmd)
	rootCmd.AddCommand(migrateCmd)
}

// openDB loads configuration and connects to postgres. The caller owns
// the returned handle.
func openDB() (*postgres.DB, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load configuration: %w", err)
	}
	db, err := postgres.New(&cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	return db, cfg, nil
}

// invalidatePatternCache drops the cached pattern list so the API picks
// up pattern changes without waiting for the TTL. Missing Redis is not
// an error; the API then reads straight from postgres.
func invalidatePatternCache(ctx context.Context, cfg *config.Config) {
	if !cfg.Redis.Enabled() {
		return
	}
	client, err := redis.New(&cfg.Redis, logger.NewNop())
	if err != nil {
		fmt.Printf("warning: could not reach redis to invalidate pattern cache: %v\n", err)
		return
	}
	defer client.Close()

	cache := redis.NewPatternCache(client, nil, cfg.Redis.PatternTTL, logger.NewNop())
	if err := cache.Invalidate(ctx); err != nil {
		fmt.Printf("warning: pattern cache invalidation failed: %v\n", err)
	}
}
