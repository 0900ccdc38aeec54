// Package logging assembles the structured slog loggers used across the
// tubeshelf daemon and CLI.
//
// It owns the console/JSON handlers, centralizes level and output plumbing,
// and exposes attribute helpers plus standardized field keys so task code
// tags log lines consistently. A no-op logger is provided for tests and
// wiring code that cannot fail.
package logging
