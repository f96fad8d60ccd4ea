package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vibescan/api/pkg/migrations"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, _, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		runner := migrations.NewRunner(db.DB)
		pending, err := pendingAfterEnsure(cmd, runner)
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			fmt.Println("No pending migrations")
			return nil
		}

		if err := runner.Up(cmd.Context()); err != nil {
			return err
		}
		fmt.Printf("Applied %d migrations\n", len(pending))
		return nil
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, _, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := migrations.NewRunner(db.DB).Down(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("Rolled back one migration")
		return nil
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show migration status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, _, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		runner := migrations.NewRunner(db.DB)
		if err := runner.EnsureMigrationTable(cmd.Context()); err != nil {
			return err
		}

		applied, err := runner.Applied(cmd.Context())
		if err != nil {
			return err
		}
		appliedSet := make(map[string]string, len(applied))
		for _, rec := range applied {
			appliedSet[rec.Version] = rec.AppliedAt.Format("2006-01-02")
		}

		available, err := migrations.Available()
		if err != nil {
			return err
		}
		for _, m := range available {
			status := "pending"
			if at, ok := appliedSet[m.Version]; ok {
				status = fmt.Sprintf("applied (%s)", at)
			}
			fmt.Printf("  %s_%s: %s\n", m.Version, m.Name, status)
		}
		return nil
	},
}

func pendingAfterEnsure(cmd *cobra.Command, runner *migrations.Runner) ([]migrations.Migration, error) {
	if err := runner.EnsureMigrationTable(cmd.Context()); err != nil {
		return nil, err
	}
	return runner.Pending(cmd.Context())
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
}
