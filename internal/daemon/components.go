package daemon

import (
	"context"
	"fmt"
	"log/slog"

	"recipebot/internal/acquire"
	"recipebot/internal/config"
	"recipebot/internal/credentials"
	"recipebot/internal/guard"
	"recipebot/internal/media/ffprobe"
	"recipebot/internal/media/normalize"
	"recipebot/internal/metrics"
	"recipebot/internal/pipeline"
	"recipebot/internal/quota"
	"recipebot/internal/recipe"
	"recipebot/internal/services/llm"
	"recipebot/internal/services/transcribe"
)

// Components is an assembled request pipeline and the shared state behind it.
type Components struct {
	Ledger       *quota.Ledger
	Guard        *guard.Table
	Cache        *recipe.Cache
	Orchestrator *pipeline.Orchestrator
}

// Close releases the quota store.
func (c *Components) Close() error {
	if c == nil || c.Ledger == nil {
		return nil
	}
	return c.Ledger.Close()
}

// BuildPipeline wires every pipeline collaborator from cfg. m may be nil.
func BuildPipeline(ctx context.Context, cfg *config.Config, sink pipeline.Sink, m *metrics.Metrics, logger *slog.Logger) (*Components, error) {
	if cfg == nil {
		return nil, fmt.Errorf("build pipeline: config required")
	}
	ledger, err := quota.Open(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open quota ledger: %w", err)
	}

	engineOpts := []acquire.Option{
		acquire.WithLogger(logger),
		acquire.WithMergeFormat(cfg.Download.MergeOutputFormat),
	}
	guardOpts := []guard.Option{guard.WithLogger(logger)}
	if m != nil {
		engineOpts = append(engineOpts, acquire.WithObserver(m.ObserveFetchAttempt))
		guardOpts = append(guardOpts, guard.WithObserver(m.ObserveLock))
	}
	engine := acquire.NewEngine(
		acquire.NewYTDLP(cfg.Download.Binary),
		credentials.FromConfig(cfg.Cookies),
		cfg.Download.Formats,
		engineOpts...,
	)

	llmClient := llm.NewClient(llm.Config{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		Temperature:    cfg.LLM.Temperature,
		TimeoutSeconds: cfg.LLM.TimeoutSeconds,
	}, llm.WithRateLimiter(llm.PerMinute(cfg.LLM.RequestsPerMinute)))

	var transcriber pipeline.Transcriber
	if cfg.Transcription.Enabled {
		transcriber = transcribe.NewClient(transcribe.Config{
			APIKey:         cfg.Transcription.APIKey,
			BaseURL:        cfg.Transcription.BaseURL,
			Model:          cfg.Transcription.Model,
			Language:       cfg.Transcription.Language,
			TimeoutSeconds: cfg.Transcription.TimeoutSeconds,
		}, transcribe.WithRateLimiter(llm.PerMinute(cfg.Transcription.RequestsPerMinute)))
	}

	var cache *recipe.Cache
	if cfg.Cache.Enabled {
		if cache, err = recipe.NewCache(cfg.Cache.Size); err != nil {
			_ = ledger.Close()
			return nil, fmt.Errorf("recipe cache: %w", err)
		}
	}

	table := guard.NewTable(cfg.LockTimeout(), guardOpts...)
	deps := pipeline.Dependencies{
		Settings:    pipeline.SettingsFromConfig(cfg),
		Guard:       table,
		Ledger:      ledger,
		Fetcher:     engine,
		Normalizer:  normalize.New(cfg.Normalize.FFmpegBinary, normalize.ProfileFromConfig(cfg.Normalize)),
		Prober:      ffprobe.New(cfg.Normalize.FFprobeBinary),
		Transcriber: transcriber,
		Synthesizer: recipe.NewSynthesizer(llmClient, logger),
		Cache:       cache,
		Renderer:    recipe.NewRenderer(cfg.Telegram.MaxMessageRunes),
		Sink:        sink,
		Logger:      logger,
	}
	if m != nil {
		deps.Recorder = m
	}
	orchestrator, err := pipeline.New(deps)
	if err != nil {
		_ = ledger.Close()
		return nil, err
	}
	return &Components{
		Ledger:       ledger,
		Guard:        table,
		Cache:        cache,
		Orchestrator: orchestrator,
	}, nil
}
