// Package ffprobe reads container and stream metadata from ffprobe's JSON
// output. The pipeline uses it to fill in a duration when the downloader did
// not report one, and to check for an audio track before extraction.
package ffprobe
