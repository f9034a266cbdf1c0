package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/solatis/listingkeeper/internal/core/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage database schema migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDatabase(cmd.Context())
		if err != nil {
			return err
		}
		defer database.Close()

		applied, err := db.MigrateUp(cmd.Context(), database)
		for _, id := range applied {
			fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", id)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d migration(s) applied\n", len(applied))
		return nil
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show applied and pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDatabase(cmd.Context())
		if err != nil {
			return err
		}
		defer database.Close()

		statuses, err := db.MigrateStatus(cmd.Context(), database)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "MIGRATION\tSTATUS\tAPPLIED AT\tDURATION")
		for _, s := range statuses {
			if !s.Applied {
				fmt.Fprintf(w, "%s\tpending\t-\t-\n", s.ID)
				continue
			}
			appliedAt := "-"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.UTC().Format(time.RFC3339)
			}
			fmt.Fprintf(w, "%s\tapplied\t%s\t%dms\n", s.ID, appliedAt, s.ExecutionMs)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd, migrateStatusCmd)
}

// openDatabase opens the configured database without checking migrations.
func openDatabase(ctx context.Context) (*sqlx.DB, error) {
	url, err := databaseURL()
	if err != nil {
		return nil, err
	}
	database, err := db.Open(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return database, nil
}

