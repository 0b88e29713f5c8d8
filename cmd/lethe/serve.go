package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"mercator-hq/lethe/pkg/cli"
	"mercator-hq/lethe/pkg/retention/scheduler"
	"mercator-hq/lethe/pkg/server"
	"mercator-hq/lethe/pkg/telemetry/health"
)

var serveFlags struct {
	listenAddress string
	noScheduler   bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the cron scheduler and the HTTP API",
	Long: `Run the recurring jobs on their cron schedules (UTC) and serve the HTTP
API until SIGINT or SIGTERM.

Endpoints:
  GET  /health, /ready, /version, /metrics
  GET  /v1/policies
  GET  /v1/jobs?limit=N
  POST /v1/jobs/{kind}?dry_run=true[&category=<category>]

Examples:
  lethe serve --config /etc/lethe/config.yaml
  lethe serve --listen 0.0.0.0:8090 --no-scheduler`,
	Args: cobra.NoArgs,
	RunE: serve,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveFlags.listenAddress, "listen", "l", "", "override listen address")
	serveCmd.Flags().BoolVar(&serveFlags.noScheduler, "no-scheduler", false, "serve the API without running scheduled jobs")
}

func serve(cmd *cobra.Command, args []string) error {
	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()

	a, err := newApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	if serveFlags.listenAddress != "" {
		a.cfg.Server.ListenAddress = serveFlags.listenAddress
	}

	checker := health.New(5 * time.Second)
	checker.RegisterCheck("store", health.StoreCheck(a.store))

	g, gctx := errgroup.WithContext(ctx)

	sched := scheduler.NewScheduler(a.engine, schedules(a.cfg.Schedule))
	if !serveFlags.noScheduler {
		if err := sched.Start(gctx); err != nil {
			return cli.NewConfigError("schedule", err.Error())
		}
		defer sched.Stop()
		if sched.IsRunning() {
			checker.RegisterCheck("scheduler", health.SchedulerCheck(sched))
			if next := sched.NextRun(); next != nil {
				a.logger.Info("scheduler started", "next_run", next.Format(time.RFC3339))
			}
		}
	}

	deps := server.Deps{
		Engine:      a.engine,
		History:     a.store,
		Health:      checker,
		MetricsPath: a.cfg.Telemetry.Metrics.Path,
		Version:     health.VersionInfo{Version: Version, Commit: GitCommit, BuildTime: BuildDate},
	}
	if a.cfg.Telemetry.Metrics.Enabled {
		deps.Metrics = a.metrics.Handler()
	}
	srv, err := server.New(a.cfg.Server, deps)
	if err != nil {
		return err
	}

	g.Go(func() error {
		return srv.Start(gctx)
	})
	if err := g.Wait(); err != nil {
		return cli.NewCommandError("serve", fmt.Errorf("server: %w", err))
	}
	return nil
}
