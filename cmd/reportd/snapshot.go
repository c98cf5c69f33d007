package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vnmchuo/tenant-reports/internal/job"
)

func newSnapshotCmd() *cobra.Command {
	var tenants []string

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Run the daily snapshot once and exit",
		Long: "Creates a fresh snapshot for every tenant in SNAPSHOT_TENANTS and every tenant already in the store, " +
			"or only for the tenants given with --tenant.",
		Args: cobra.NoArgs,
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

			if err := rt.initTracer(); err != nil {
				return err
			}
			if err := rt.connectPostgres(ctx); err != nil {
				return err
			}
			if err := rt.connectRedis(ctx); err != nil {
				return err
			}
			if err := rt.buildEngine(); err != nil {
				return err
			}

			lister := job.NewLister(rt.cfg.SnapshotTenants, rt.store)
			if len(tenants) > 0 {
				lister = job.NewLister(tenants, nil)
			}

			summary, err := job.NewDailySnapshot(rt.engine, lister, rt.cfg.SnapshotTenantTimeout, rt.logger).Run(ctx)
			fmt.Fprintf(cmd.OutOrStdout(), "snapshots: %d tenants, %d succeeded, %d failed\n",
				summary.Tenants, summary.Succeeded, len(summary.Failed))
			return err
		},
	}
	cmd.Flags().StringSliceVar(&tenants, "tenant", nil, "snapshot only these tenants (repeatable or comma separated)")
	return cmd
}
