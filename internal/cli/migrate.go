package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/alem-hub/guild-leveling/config"
	"github.com/alem-hub/guild-leveling/internal/infrastructure/persistence"
	"github.com/alem-hub/guild-leveling/internal/infrastructure/persistence/postgres"
)

// MigrateCmd manages the PostgreSQL schema.
func MigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL schema",
		Long: `Apply, roll back or list schema migrations for the postgres driver.
Other drivers create their schema on open and need no migrations.`,
	}

	cmd.AddCommand(
		migrateSubcommand("up", "Apply pending migrations", func(ctx context.Context, cmd *cobra.Command, m *postgres.Migrator) error {
			if err := m.Migrate(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		}),
		migrateSubcommand("down", "Roll back the latest migration", func(ctx context.Context, cmd *cobra.Command, m *postgres.Migrator) error {
			if err := m.Rollback(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "rolled back one migration")
			return nil
		}),
		migrateSubcommand("status", "List migrations", func(ctx context.Context, cmd *cobra.Command, m *postgres.Migrator) error {
			status, err := m.Status(ctx)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "VERSION\tNAME\tAPPLIED")
			for _, mig := range status {
				applied := "-"
				if mig.IsApplied {
					applied = mig.AppliedAt.Format("2006-01-02 15:04:05")
				}
				fmt.Fprintf(w, "%d\t%s\t%s\n", mig.Version, mig.Name, applied)
			}
			return w.Flush()
		}),
	)
	return cmd
}

type migrateFunc func(ctx context.Context, cmd *cobra.Command, m *postgres.Migrator) error

func migrateSubcommand(use, short string, fn migrateFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.Store.Driver != config.DriverPostgres {
				return fmt.Errorf("migrate needs the postgres driver, configured driver is %q", cfg.Store.Driver)
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			conn, err := postgres.NewConnection(ctx, persistence.PostgresConfig(cfg.Store.Postgres))
			if err != nil {
				return err
			}
			defer conn.Close()

			return fn(ctx, cmd, postgres.NewMigrator(conn))
		},
	}
}
