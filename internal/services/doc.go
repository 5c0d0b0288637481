// Package services defines shared utilities consumed by the pipeline stages
// and their external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp requester IDs, stage names, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper so failures from yt-dlp,
//     ffmpeg and the HTTP APIs can be classified uniformly.
//
// Subpackages hold the HTTP clients for the language model and the
// speech-to-text service.
package services
