// Package logging assembles structured slog loggers and formatting helpers used
// across recipebot.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so pipeline code can tag log
// lines with requester IDs, stages, and request IDs without threading them
// through every call. The package also provides a no-op logger for tests.
package logging
