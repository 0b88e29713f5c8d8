package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"mercator-hq/lethe/pkg/cli"
	"mercator-hq/lethe/pkg/retention"
)

var dailyCheckCmd = &cobra.Command{
	Use:   "daily_check",
	Short: "Delete or anonymize every record past its retention period",
	Long: `Scan every data category for records whose retention period has elapsed
and apply the category operation (anonymize, soft delete or hard delete).

Exits non-zero when any category reports an error.

Examples:
  lethe daily_check
  lethe daily_check --dry-run --format json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runJob(cmd, retention.JobDailyCheck, "")
	},
}

var notificationCheckCmd = &cobra.Command{
	Use:   "notification_check",
	Short: "Send notices for records approaching deletion",
	Long: `Dispatch "will be deleted soon" notices for records of notifying
categories whose deletion date falls within the notification lead time.
Retention state is not changed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runJob(cmd, retention.JobNotificationCheck, "")
	},
}

var weeklyCleanupCmd = &cobra.Command{
	Use:   "weekly_cleanup",
	Short: "Run the daily check and purge auxiliary tables",
	Long: `Run the daily retention check, then purge expired sessions, password
reset tokens, old job history and old queued notices.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runJob(cmd, retention.JobWeeklyCleanup, "")
	},
}

var processCategoryCmd = &cobra.Command{
	Use:   "process_data_type <category>",
	Short: "Run the retention check for a single category",
	Long: `Run the deletion path for one data category.

Categories: user_profile, cv_document, job_posting, generated_content,
contact_message, newsletter_subscription, notification, feature_usage_event,
billing_record, security_log, audit_log, failed_login_attempt.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 {
			return cli.NewConfigError("category", fmt.Sprintf("expected exactly one category argument, got %d", len(args)))
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runJob(cmd, retention.JobProcessCategory, args[0])
	},
}

func init() {
	rootCmd.AddCommand(dailyCheckCmd, notificationCheckCmd, weeklyCleanupCmd, processCategoryCmd)
}

// runJob runs one job and prints its result. A job that ran with errors
// returns a CommandError wrapping cli.ErrJobFailed.
func runJob(cmd *cobra.Command, kind retention.JobKind, categoryArg string) error {
	formatter, err := outputFormatter()
	if err != nil {
		return err
	}

	var category retention.Category
	if kind == retention.JobProcessCategory {
		category, err = retention.ParseCategory(categoryArg)
		if err != nil {
			return cli.NewConfigError("category", err.Error())
		}
	}

	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()

	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	if timeout := jobTimeout(a.cfg); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var result retention.ScheduledJobResult
	if kind == retention.JobProcessCategory {
		result, err = a.engine.ProcessCategory(ctx, category)
	} else {
		result, err = a.engine.Run(ctx, kind)
	}
	if err != nil {
		return cli.NewCommandError(string(kind), err)
	}

	if err := formatter.FormatTo(cmd.OutOrStdout(), result); err != nil {
		return err
	}
	if !result.Success {
		return cli.NewCommandError(string(kind), fmt.Errorf("%w: %d error(s)", cli.ErrJobFailed, len(result.Errors)))
	}
	return nil
}
