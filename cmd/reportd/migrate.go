package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vnmchuo/tenant-reports/internal/migrations"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back the tenant_metrics schema",
	}
	cmd.AddCommand(
		migrateStep("up", "Apply all pending migrations", (*migrations.Migrator).Up),
		migrateStep("down", "Roll back all migrations", (*migrations.Migrator).Down),
		&cobra.Command{
			Use:   "version",
			Short: "Print the applied schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(func(m *migrations.Migrator) error {
					version, dirty, err := m.Version()
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %t)\n", version, dirty)
					return nil
				})
			},
		},
	)
	return cmd
}

func migrateStep(use, short string, run func(*migrations.Migrator) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return withMigrator(run)
		},
	}
}

func withMigrator(run func(*migrations.Migrator) error) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	m, err := migrations.New(rt.cfg.PostgresDSN, rt.logger)
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()

	return run(m)
}
