/*
Package log provides structured logging for the hosting service using zerolog.

The log package wraps the zerolog library to provide JSON-structured logging
with component-specific loggers, configurable log levels, and helper functions
for common logging patterns. All logs include timestamps and support filtering
by severity level for production debugging.

# Usage

Initializing the Logger:

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

Component Loggers:

	supLog := log.WithComponent("supervisor")
	supLog.Info().Int64("project_id", 42).Msg("Project started")

Context Logger Helpers:

	projLog := log.WithProjectID(42)
	projLog.Warn().Msg("Decryption failed for env var")

# Integration Points

This package integrates with:

  - pkg/supervisor: Logs lifecycle transitions and crash restarts
  - pkg/watchdog: Logs resource sweeps and kills
  - pkg/ingest: Logs upload commits and staging sweeps
  - pkg/sandbox: Logs venv provisioning and installs
  - pkg/store: Logs stale-run repair, audit write failures and env
    decryption failures
  - pkg/facade: Logs user bans

Never log secrets or decrypted environment values.
*/
package log
