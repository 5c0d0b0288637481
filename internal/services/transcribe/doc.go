// Package transcribe sends extracted mono 16 kHz audio to a speech-to-text
// service and returns plain text. Transcripts are best effort: the pipeline
// falls back to caption-only synthesis whenever Transcribe fails.
package transcribe
