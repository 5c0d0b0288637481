// Package acquire downloads a short video from a supported platform with
// yt-dlp.
//
// Engine walks an ordered format ladder and stops at the first success. Each
// attempt writes into its own directory under the request's scratch space,
// which is removed when the attempt fails. When a cookie jar is configured
// for the URL's platform it is written into the scratch space for the
// duration of the fetch and removed afterwards.
//
// Failures are classified into a small set of kinds (private, removed,
// geo-blocked, copyright-blocked, auth-required) from the downloader's
// message so callers can pick a user-facing reply.
package acquire
