// Package daemon coordinates the long-running bot process.
//
// BuildPipeline assembles the request pipeline from configuration; Build
// adds the Telegram transport, the worker pool and metrics on top. The
// Daemon owns the lifecycle: a flock-based single-instance lock, a stale
// scratch sweep at startup, the worker pool, the update poller and a small
// HTTP server for /health, /metrics and /status.
//
// Keep orchestration logic here: request handling belongs to the pipeline
// package while the daemon focuses on startup, shutdown and wiring.
package daemon
