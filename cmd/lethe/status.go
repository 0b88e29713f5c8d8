package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"mercator-hq/lethe/pkg/cli"
	"mercator-hq/lethe/pkg/retention"
)

// statusRunsScanned bounds how many recent runs status inspects to find
// the latest run of each kind.
const statusRunsScanned = 200

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show engine configuration and the latest run of each job",
	Args:  cobra.NoArgs,
	RunE:  showStatus,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show stored and eligible record counts per category",
	Long: `Show, for every category, the number of stored rows, soft-deleted rows,
rows currently due for deletion and rows currently due for a notice.`,
	Args: cobra.NoArgs,
	RunE: showStats,
}

func init() {
	rootCmd.AddCommand(statusCmd, statsCmd)
}

func showStatus(cmd *cobra.Command, args []string) error {
	formatter, err := outputFormatter()
	if err != nil {
		return err
	}
	a, err := newApp(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := buildStatus(cmd.Context(), a, time.Now().UTC())
	if err != nil {
		return cli.NewCommandError("status", err)
	}
	return formatter.FormatTo(cmd.OutOrStdout(), report)
}

func buildStatus(ctx context.Context, a *app, now time.Time) (cli.StatusReport, error) {
	ec := a.engine.Config()
	report := cli.StatusReport{
		GeneratedAt:   now,
		Enabled:       ec.Enabled,
		DryRun:        ec.DryRun,
		BatchSize:     ec.BatchSize,
		MaxRecords:    ec.MaxRecords,
		Concurrency:   ec.Concurrency,
		Storage:       storageLabel(a.cfg.Storage),
		Notifications: a.cfg.Notifications.Sink,
		Schedules: map[string]string{
			string(retention.JobDailyCheck):        a.cfg.Schedule.DailyCheck,
			string(retention.JobNotificationCheck): a.cfg.Schedule.NotificationCheck,
			string(retention.JobWeeklyCleanup):     a.cfg.Schedule.WeeklyCleanup,
		},
		LastRuns: []retention.JobRun{},
	}

	runs, err := a.store.ListJobRuns(ctx, statusRunsScanned)
	if err != nil {
		return report, err
	}
	seen := make(map[retention.JobKind]bool)
	for _, r := range runs {
		if seen[r.Kind] {
			continue
		}
		seen[r.Kind] = true
		report.LastRuns = append(report.LastRuns, r)
	}
	return report, nil
}

func showStats(cmd *cobra.Command, args []string) error {
	formatter, err := outputFormatter()
	if err != nil {
		return err
	}
	a, err := newApp(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer a.Close()

	stats, err := collectStats(cmd.Context(), a, time.Now().UTC())
	if err != nil {
		return cli.NewCommandError("stats", err)
	}
	if err := formatter.FormatTo(cmd.OutOrStdout(), stats); err != nil {
		return err
	}
	for _, s := range stats {
		if s.Error != "" {
			return cli.NewCommandError("stats", cli.ErrJobFailed)
		}
	}
	return nil
}

// collectStats gathers per-category counts concurrently. A failing
// category is reported in its row and does not affect the others.
func collectStats(ctx context.Context, a *app, now time.Time) (cli.StatsTable, error) {
	policies := a.catalog.Policies()
	stats := make(cli.StatsTable, len(policies))
	scan := a.engine.Scanner()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(a.engine.Config().Concurrency, 1))
	for i, p := range policies {
		table := a.catalog.Target(p.Category).Table
		g.Go(func() error {
			row := cli.CategoryStats{Category: p.Category, Table: table}
			defer func() { stats[i] = row }()

			ts, err := a.store.TableStats(gctx, table, now)
			if err != nil {
				row.Error = err.Error()
				return nil
			}
			row.Total, row.Deleted, row.FutureDated = ts.Total, ts.Deleted, ts.FutureDated
			if ts.FutureDated > 0 {
				a.logger.WarnContext(gctx, "records dated in the future are never eligible",
					"category", p.Category,
					"count", ts.FutureDated,
				)
			}

			if row.EligibleForDeletion, err = scan.CountForDeletion(gctx, p.Category, now); err != nil {
				row.Error = err.Error()
				return nil
			}
			if row.EligibleForNotification, err = scan.CountForNotification(gctx, p.Category, now); err != nil {
				row.Error = err.Error()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return stats, ctx.Err()
}
