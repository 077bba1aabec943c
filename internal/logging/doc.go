// Package logging builds the slog loggers used across the pipeline: a
// console handler with compact key=value output, an optional JSON handler,
// and a fanout handler that tees records into the per-run log file inside
// the working directory.
package logging
