// Package quota tracks per-user usage: free-tier requests consumed, paid
// balance and an optional subscription expiry date.
//
// Ledger holds the policy (free limit, unlimited identities, lazy expiry)
// and delegates persistence to a Store. Two stores exist: SQLite for a
// single-host deployment and Postgres when several bot processes share one
// ledger. Every mutation runs as a single-row read-modify-write inside a
// transaction so concurrent requests from one user cannot overspend.
//
// Records are created lazily on first use and never deleted. An expired
// subscription leaves the stored balance untouched; reads report zero until
// a new credit replaces it.
package quota
