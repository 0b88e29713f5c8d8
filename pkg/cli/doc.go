/*
Package cli provides output formatting, exit codes and signal handling for
the lethe command.

Job results, status reports and tables (policies, stats, job runs) render
as text, JSON or CSV:

	formatter := cli.NewFormatter(cli.FormatJSON)
	if err := formatter.FormatTo(os.Stdout, result); err != nil {
		return err
	}

Commands return a *CommandError wrapping ErrJobFailed when a job ran with
errors and a *ConfigError for invalid arguments; ExitCode maps them to the
process exit status.
*/
package cli
