package main

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newBatchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Run every problem listed in the config file",
		Long: `Batch runs the problems under batch.problems of the config file
concurrently, at most batch.parallel at a time. Problems share nothing but
the metrics endpoint. The first failing problem cancels the rest.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			problems := a.cfg.Batch.Problems
			if len(problems) == 0 {
				return errors.New("no problems configured under batch.problems")
			}
			jobs := make([]*job, len(problems))
			for i, pc := range problems {
				j, err := a.buildJob(pc)
				if err != nil {
					return fmt.Errorf("problem %s: %w", pc.Label(), err)
				}
				jobs[i] = j
			}

			addr, _ := cmd.Flags().GetString("metrics-addr")
			if addr == "" {
				addr = a.cfg.Metrics.Addr
			}
			ms, err := startMetrics(addr, a.logger)
			if err != nil {
				return err
			}
			defer ms.stop()

			limit := a.cfg.Batch.Parallel
			if limit == 0 {
				limit = runtime.NumCPU()
			}
			a.logger.Info("batch started", slog.Int("problems", len(jobs)), slog.Int("parallel", limit))

			outs := make([]*outcome, len(jobs))
			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(limit)
			for i, j := range jobs {
				g.Go(func() error {
					out, _, err := a.runJob(ctx, j, ms.registerer())
					outs[i] = out
					return err
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}
			return a.report(cmd.OutOrStdout(), outs, jobs)
		},
	}
	cmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address while running")
	return cmd
}
