// Package pipeline turns one chat Request into a delivered video plus a
// recipe message.
//
// The Orchestrator owns the request lifecycle: it takes the requester's
// guard lease, checks the quota ledger, allocates a private scratch
// directory and then runs the stages strictly in order (fetch, normalize,
// transcribe, synthesize, parse, render). Every exit path releases the
// lease and removes the scratch directory.
//
// Structural failures (download, duration, transcode, upload size, quota,
// busy) abort the request with exactly one user notice. Transcription and
// synthesis failures degrade: the video is still delivered and the user is
// told the recipe could not be produced. The quota is charged only once the
// video has reached the user.
package pipeline
