// Package logging builds the process logger.
//
// New returns a *slog.Logger writing JSON or text. The main package installs
// it with slog.SetDefault and every component derives its own logger with
// slog.Default().With("component", ...).
//
//	logger, err := logging.New(logging.Config{Level: "info", Format: "json", RedactPII: true})
//	slog.SetDefault(logger)
//
// Job and request identifiers travel in the context:
//
//	ctx = logging.WithJob(ctx, jobID, "daily_check")
//	logger.InfoContext(ctx, "batch completed") // includes job_id and job_kind
//
// With RedactPII, values under sensitive keys (password, token, dsn, email)
// are masked and e-mail addresses, bearer tokens and DSN passwords inside
// other string values are redacted.
package logging
