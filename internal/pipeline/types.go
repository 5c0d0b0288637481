package pipeline

import (
	"context"
	"time"

	"recipebot/internal/acquire"
	"recipebot/internal/config"
	"recipebot/internal/quota"
	"recipebot/internal/recipe"
)

// Request is one inbound message carrying a supported URL.
type Request struct {
	RequesterID int64
	ChatID      int64
	MessageID   int64
	URL         string
	ReceivedAt  time.Time
}

// Outcome summarizes a processed request.
type Outcome struct {
	RequestID string
	Kind      Kind
	Blocks    recipe.Blocks
	// Warnings lists degraded stages (transcription, synthesis).
	Warnings []Kind
	Cached   bool
	Charged  bool
	Duration float64
	Elapsed  time.Duration
}

// Sink delivers results back to the requester.
type Sink interface {
	// Notify sends a plain-text message.
	Notify(ctx context.Context, req Request, text string) error
	// SendVideo uploads the video and returns the message id it was sent as.
	SendVideo(ctx context.Context, req Request, videoPath string) (int64, error)
	// SendRecipe sends MarkdownV2 text as a reply to replyTo.
	SendRecipe(ctx context.Context, req Request, replyTo int64, markdown string) error
}

// Fetcher is the acquisition engine.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL, scratchDir string) (acquire.Result, error)
	Probe(ctx context.Context, rawURL, scratchDir string) (acquire.Metadata, bool, error)
}

// Normalizer re-encodes video and extracts audio.
type Normalizer interface {
	Normalize(ctx context.Context, assetPath string) (string, error)
	ExtractAudio(ctx context.Context, assetPath string) (string, error)
}

// DurationProber reads a duration from a local file.
type DurationProber interface {
	Duration(ctx context.Context, path string) (float64, error)
}

// Transcriber converts audio to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// Synthesizer produces raw recipe text from caption and transcript.
type Synthesizer interface {
	Synthesize(ctx context.Context, caption, transcript string) (string, error)
}

// Ledger is the quota surface the orchestrator needs.
type Ledger interface {
	Check(ctx context.Context, userID int64) (bool, error)
	Consume(ctx context.Context, userID int64) (quota.Status, error)
}

// Recorder receives per-stage and per-request measurements.
type Recorder interface {
	ObserveStage(stage string, elapsed time.Duration, err error)
	ObserveOutcome(kind Kind, warnings []Kind)
}

type nopRecorder struct{}

func (nopRecorder) ObserveStage(string, time.Duration, error) {}
func (nopRecorder) ObserveOutcome(Kind, []Kind) {}

// Settings are the tunables the orchestrator reads from configuration.
type Settings struct {
	ScratchDir           string
	MaxDuration          time.Duration
	DurationPolicy       string
	MaxUploadBytes       int64
	FreeLimit            int
	TranscriptionEnabled bool
	MaxMessageRunes      int
	Timeouts             config.StageTimeouts
}

// SettingsFromConfig extracts Settings from cfg.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		ScratchDir:           cfg.Paths.ScratchDir,
		MaxDuration:          cfg.MaxDuration(),
		DurationPolicy:       cfg.Download.DurationPolicy,
		MaxUploadBytes:       cfg.MaxUploadBytes(),
		FreeLimit:            cfg.Quota.FreeLimit,
		TranscriptionEnabled: cfg.Transcription.Enabled,
		MaxMessageRunes:      cfg.Telegram.MaxMessageRunes,
		Timeouts:             cfg.Timeouts(),
	}
}
