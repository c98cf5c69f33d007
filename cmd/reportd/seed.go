package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vnmchuo/tenant-reports/internal/seeder"
)

func newSeedCmd() *cobra.Command {
	var (
		tenantID string
		days     int
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Write demo snapshot history for a tenant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := rt.connectPostgres(ctx); err != nil {
				return err
			}

			n, err := seeder.SeedDemoTenant(ctx, rt.store, rt.model, tenantID, days, time.Now(), rt.logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d snapshots for %s\n", n, tenantID)
			return nil
		},
	}
	cmd.Flags().StringVar(&tenantID, "tenant", seeder.DemoTenantID, "tenant to seed")
	cmd.Flags().IntVar(&days, "days", 30, "number of daily snapshots to write")
	return cmd
}
