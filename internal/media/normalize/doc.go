// Package normalize re-encodes downloaded videos to a fixed profile and
// extracts the mono 16 kHz PCM track used for transcription. Both operations
// shell out to ffmpeg; only the exit code decides success.
package normalize
