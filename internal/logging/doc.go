// Package logging provides a small leveled logger for petscan.
//
// Levels, from most to least verbose:
//   - DEBUG: per-item pipeline decisions, loader fallbacks
//   - INFO: scan and index lifecycle
//   - WARN: recoverable problems (skipped files, failed loads)
//   - ERROR: failures that end an operation
//   - FATAL: startup failures that terminate the process
//
// The level is read once from DEBUG or LOG_LEVEL and can be overridden
// with SetLevel (the CLI does this for its --log-level flag).
package logging
