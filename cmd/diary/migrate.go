// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StudentDiary Contributors

package main

import (
	"context"
	"strconv"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/studentdiary/diary/pkg/errutil"
)

// newMigrateCmd creates the migrate command. Without a subcommand it
// applies all pending migrations.
func newMigrateCmd(app *cliApp) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
		Long:  `Apply, roll back or inspect the embedded PostgreSQL migrations.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrateUp(cmd, app)
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrateUp(cmd, app)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back all migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.withMigrator(cmd, func(m Migrator) error {
				cmd.Println("Rolling back all migrations...")
				if err := m.Down(); err != nil {
					return err
				}
				cmd.Println("Rollback completed successfully")
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "steps N",
		Short: "Apply N migrations, or roll back -N",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := parseVersionArg(args[0])
			if err != nil {
				return err
			}
			return app.withMigrator(cmd, func(m Migrator) error {
				if err := m.Steps(n); err != nil {
					return err
				}
				cmd.Printf("Migrated %d step(s)\n", n)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "force VERSION",
		Short: "Set the schema version without running migrations",
		Long: `Set the recorded schema version and clear the dirty flag. Use this
only after repairing a failed migration by hand.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := parseVersionArg(args[0])
			if err != nil {
				return err
			}
			return app.withMigrator(cmd, func(m Migrator) error {
				if err := m.Force(v); err != nil {
					return err
				}
				cmd.Printf("Forced schema version to %d\n", v)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.withMigrator(cmd, func(m Migrator) error {
				st, err := m.Status()
				if err != nil {
					return err
				}
				dirty := ""
				if st.Dirty {
					dirty = " (dirty)"
				}
				cmd.Printf("Schema version: %d%s\n", st.Version, dirty)
				for _, mig := range st.Applied {
					cmd.Printf("  [applied] %06d %s\n", mig.Version, mig.Name)
				}
				for _, mig := range st.Pending {
					cmd.Printf("  [pending] %06d %s\n", mig.Version, mig.Name)
				}
				return nil
			})
		},
	})

	return cmd
}

func runMigrateUp(cmd *cobra.Command, app *cliApp) error {
	return app.withMigrator(cmd, func(m Migrator) error {
		cmd.Println("Running migrations...")
		if err := m.Up(); err != nil {
			return err
		}
		cmd.Println("Migrations completed successfully")
		return nil
	})
}

// withMigrator runs fn with a migrator for the configured database.
func (a *cliApp) withMigrator(cmd *cobra.Command, fn func(Migrator) error) error {
	cfg, logger, err := a.setup(cmd)
	if err != nil {
		return err
	}
	m, err := a.deps.MigratorFactory(cfg.Database.URL)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			errutil.LogError(ctx, logger, "close migrator", closeErr)
		}
	}()
	return fn(m)
}

func parseVersionArg(s string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, oops.Code("INVALID_VERSION").With("input", s).Errorf("%q is not an integer", s)
	}
	return v, nil
}
