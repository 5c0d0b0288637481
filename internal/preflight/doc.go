// Package preflight provides readiness checks for the binaries, directories
// and remote services the bot depends on.
//
// The daemon runs RunAll once at startup and refuses to start while a
// required check fails. The CLI "recipebot status" command renders the same
// results as a table. Checks for remote services are skipped when their
// credentials are not configured.
package preflight
