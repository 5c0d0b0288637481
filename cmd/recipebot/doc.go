// Package main hosts the recipebot CLI entrypoint and command graph.
//
// The Cobra command tree runs the Telegram daemon, processes single URLs
// locally, manages the quota ledger and reports startup checks. Wiring lives
// in the internal packages; commands here only resolve configuration and
// present results.
package main
