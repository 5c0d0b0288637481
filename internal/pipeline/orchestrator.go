package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"recipebot/internal/acquire"
	"recipebot/internal/config"
	"recipebot/internal/guard"
	"recipebot/internal/logging"
	"recipebot/internal/platform"
	"recipebot/internal/quota"
	"recipebot/internal/recipe"
	"recipebot/internal/services"
	"recipebot/internal/staging"
)

// Stage names used in logs and metrics.
const (
	StageProbe      = "probe"
	StageFetch      = "fetch"
	StageDuration   = "duration"
	StageNormalize  = "normalize"
	StageAudio      = "audio"
	StageTranscribe = "transcribe"
	StageSynthesize = "synthesize"
	StageDeliver    = "deliver"
)

// Dependencies is everything a request touches. Shared state lives only in
// Guard and Ledger; the rest is stateless or request-scoped.
type Dependencies struct {
	Settings   Settings
	Guard      *guard.Table
	Ledger     Ledger
	Fetcher    Fetcher
	Normalizer Normalizer
	// Prober fills in a duration the fetcher did not report. Optional.
	Prober DurationProber
	// Transcriber is optional; without it synthesis uses the caption only.
	Transcriber Transcriber
	Synthesizer Synthesizer
	// Cache is optional.
	Cache    *recipe.Cache
	Renderer recipe.Renderer
	Sink     Sink
	Recorder Recorder
	Logger   *slog.Logger
}

// Orchestrator runs requests end to end.
type Orchestrator struct {
	deps   Dependencies
	logger *slog.Logger
}

// New validates deps and returns an Orchestrator.
func New(deps Dependencies) (*Orchestrator, error) {
	var missing []string
	if deps.Guard == nil {
		missing = append(missing, "guard")
	}
	if deps.Ledger == nil {
		missing = append(missing, "ledger")
	}
	if deps.Fetcher == nil {
		missing = append(missing, "fetcher")
	}
	if deps.Normalizer == nil {
		missing = append(missing, "normalizer")
	}
	if deps.Synthesizer == nil {
		missing = append(missing, "synthesizer")
	}
	if deps.Sink == nil {
		missing = append(missing, "sink")
	}
	if strings.TrimSpace(deps.Settings.ScratchDir) == "" {
		missing = append(missing, "scratch dir")
	}
	if len(missing) > 0 {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "init",
			"missing dependencies: "+strings.Join(missing, ", "), nil)
	}
	if deps.Recorder == nil {
		deps.Recorder = nopRecorder{}
	}
	return &Orchestrator{
		deps:   deps,
		logger: logging.NewComponentLogger(deps.Logger, "pipeline"),
	}, nil
}

// Settings returns the active settings.
func (o *Orchestrator) Settings() Settings { return o.deps.Settings }

// run carries one request's state between stages.
type run struct {
	req       Request
	logger    *slog.Logger
	scratch   staging.RequestDir
	fetched   acquire.Result
	duration  float64
	video     string
	blocks    recipe.Blocks
	synthFail bool
	outcome   *Outcome
}

// Process runs req to completion. The returned error is a *Failure for
// aborted requests and nil for delivered ones, including deliveries that
// carry no recipe. Exactly one notice is sent for every abort.
func (o *Orchestrator) Process(ctx context.Context, req Request) (Outcome, error) {
	started := time.Now()
	requestID := uuid.NewString()
	ctx = services.WithRequestID(services.WithRequesterID(ctx, req.RequesterID), requestID)
	logger := logging.WithContext(ctx, o.logger)

	outcome := Outcome{RequestID: requestID}
	r := &run{req: req, logger: logger, outcome: &outcome}

	logger.Info("request received",
		logging.String(logging.FieldEventType, "request_start"),
		logging.SourceURL(req.URL),
	)

	kind, err := o.process(ctx, r)
	outcome.Elapsed = time.Since(started)
	if err != nil {
		failure := asFailure(err)
		outcome.Kind = failure.Kind
		o.notify(ctx, r, Notice(failure, o.deps.Settings))
		o.deps.Recorder.ObserveOutcome(failure.Kind, outcome.Warnings)
		attrs := []logging.Attr{
			logging.String(logging.FieldEventType, "request_failed"),
			logging.String("kind", string(failure.Kind)),
			logging.Duration("elapsed", outcome.Elapsed),
			logging.Error(err),
		}
		if failure.Kind == KindDownloadFailed {
			attrs = append(attrs, logging.String("download_kind", failure.Download.String()))
		}
		if failure.Kind == KindInternal {
			logging.ErrorWithContext(logger, "request failed", "request_failed", attrs...)
		} else {
			logger.Info("request rejected", logging.Args(attrs...)...)
		}
		return outcome, failure
	}

	outcome.Kind = kind
	o.deps.Recorder.ObserveOutcome(kind, outcome.Warnings)
	logger.Info("request completed",
		logging.String(logging.FieldEventType, "request_complete"),
		logging.String("kind", string(kind)),
		logging.Bool("cached", outcome.Cached),
		logging.Bool("charged", outcome.Charged),
		logging.Duration("elapsed", outcome.Elapsed),
	)
	return outcome, nil
}

func (o *Orchestrator) process(ctx context.Context, r *run) (Kind, error) {
	lease, err := o.deps.Guard.Acquire(r.req.RequesterID)
	if err != nil {
		if errors.Is(err, guard.ErrBusy) {
			return "", fail(KindConcurrentBusy, "guard", err)
		}
		return "", fail(KindInternal, "guard", err)
	}
	defer lease.Release()

	if _, err := platform.Classify(r.req.URL); err != nil {
		return "", fail(KindUnsupportedURL, "classify", err)
	}

	allowed, err := o.deps.Ledger.Check(ctx, r.req.RequesterID)
	if err != nil {
		return "", fail(KindInternal, "quota", err)
	}
	if !allowed {
		r.logger.Info("quota exhausted", logging.String(logging.FieldEventType, "quota_exhausted"))
		return "", fail(KindQuotaExhausted, "quota", quota.ErrExhausted)
	}

	r.scratch, err = staging.NewRequestDir(o.deps.Settings.ScratchDir, r.outcome.RequestID)
	if err != nil {
		return "", fail(KindInternal, "scratch", err)
	}
	defer func() {
		if err := r.scratch.Remove(); err != nil {
			logging.WarnWithContext(r.logger, "scratch cleanup failed", "scratch_cleanup_failed",
				logging.Error(err),
				logging.String("path", r.scratch.Path),
				logging.String(logging.FieldErrorHint, "the stale-scratch sweep will retry"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
		}
	}()

	o.notify(ctx, r, NoticeDownloading)

	if err := o.acquire(ctx, r); err != nil {
		return "", err
	}
	if err := o.normalize(ctx, r); err != nil {
		return "", err
	}
	o.extractRecipe(ctx, r)
	return o.deliver(ctx, r)
}

// acquire fetches the video and enforces the duration ceiling.
func (o *Orchestrator) acquire(ctx context.Context, r *run) error {
	settings := o.deps.Settings
	limit := settings.MaxDuration.Seconds()

	if settings.DurationPolicy == config.DurationPolicyProbeFirst {
		var meta acquire.Metadata
		var supported bool
		err := o.runStage(ctx, StageProbe, settings.Timeouts.Probe, func(stageCtx context.Context) error {
			var probeErr error
			meta, supported, probeErr = o.deps.Fetcher.Probe(stageCtx, r.req.URL, r.scratch.Path)
			return probeErr
		})
		switch {
		case err != nil:
			r.logger.Debug("metadata probe failed; continuing with download",
				logging.String(logging.FieldEventType, "probe_failed"),
				logging.Error(err),
			)
		case supported && limit > 0 && meta.DurationSeconds > limit:
			return &Failure{
				Kind:   KindDurationExceeded,
				Stage:  StageProbe,
				Detail: fmt.Sprintf("%.0fs exceeds %.0fs", meta.DurationSeconds, limit),
			}
		}
	}

	err := o.runStage(ctx, StageFetch, settings.Timeouts.Fetch, func(stageCtx context.Context) error {
		var fetchErr error
		r.fetched, fetchErr = o.deps.Fetcher.Fetch(stageCtx, r.req.URL, r.scratch.Path)
		return fetchErr
	})
	if err != nil {
		return fetchFailure(StageFetch, err)
	}

	r.duration = r.fetched.DurationSeconds
	if r.duration <= 0 && o.deps.Prober != nil {
		err := o.runStage(ctx, StageDuration, settings.Timeouts.Probe, func(stageCtx context.Context) error {
			var probeErr error
			r.duration, probeErr = o.deps.Prober.Duration(stageCtx, r.fetched.AssetPath)
			return probeErr
		})
		if err != nil {
			logging.WarnWithContext(r.logger, "duration unknown", "duration_unknown",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check ffprobe installation"),
				logging.String(logging.FieldImpact, "duration ceiling not enforced for this request"),
			)
		}
	}
	r.outcome.Duration = r.duration
	if limit > 0 && r.duration > limit {
		return &Failure{
			Kind:   KindDurationExceeded,
			Stage:  StageFetch,
			Detail: fmt.Sprintf("%.0fs exceeds %.0fs", r.duration, limit),
		}
	}
	return nil
}

func (o *Orchestrator) normalize(ctx context.Context, r *run) error {
	err := o.runStage(ctx, StageNormalize, o.deps.Settings.Timeouts.Transcode, func(stageCtx context.Context) error {
		var normErr error
		r.video, normErr = o.deps.Normalizer.Normalize(stageCtx, r.fetched.AssetPath)
		return normErr
	})
	if err != nil {
		return fail(KindTranscodeFailed, StageNormalize, err)
	}

	info, err := os.Stat(r.video)
	if err != nil {
		return fail(KindTranscodeFailed, StageNormalize, err)
	}
	if ceiling := o.deps.Settings.MaxUploadBytes; ceiling > 0 && info.Size() > ceiling {
		return &Failure{
			Kind:   KindVideoTooLarge,
			Stage:  StageNormalize,
			Detail: fmt.Sprintf("%d bytes exceeds %d", info.Size(), ceiling),
		}
	}
	return nil
}

// extractRecipe never aborts: every failure here degrades to a delivery
// without a recipe.
func (o *Orchestrator) extractRecipe(ctx context.Context, r *run) {
	if blocks, ok := o.deps.Cache.Get(r.req.URL); ok {
		r.blocks = blocks
		r.outcome.Cached = true
		r.logger.Info("recipe cache hit", logging.String(logging.FieldEventType, "recipe_cache_hit"))
		return
	}

	transcript := o.transcript(ctx, r)
	caption := strings.TrimSpace(r.fetched.Description)
	if caption == "" {
		caption = strings.TrimSpace(r.fetched.Title)
	}

	var raw string
	err := o.runStage(ctx, StageSynthesize, o.deps.Settings.Timeouts.Synthesize, func(stageCtx context.Context) error {
		var synthErr error
		raw, synthErr = o.deps.Synthesizer.Synthesize(stageCtx, caption, transcript)
		return synthErr
	})
	if err != nil {
		r.synthFail = true
		r.outcome.Warnings = append(r.outcome.Warnings, KindSynthesisFailed)
		logging.WarnWithContext(r.logger, "recipe synthesis failed", "synthesis_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check [llm] settings and provider status"),
			logging.String(logging.FieldImpact, "video delivered without a recipe"),
		)
		return
	}

	r.blocks = recipe.Parse(raw)
	r.logger.Debug("recipe parsed",
		logging.String(logging.FieldEventType, "recipe_parsed"),
		logging.Int("ingredients", len(r.blocks.Ingredients)),
		logging.Int("steps", len(r.blocks.Steps)),
		logging.Bool("empty", r.blocks.IsEmpty()),
	)
	if !r.blocks.IsEmpty() {
		o.deps.Cache.Add(r.req.URL, r.blocks)
	}
}

// transcript is best effort; a failure is recorded as a warning only.
func (o *Orchestrator) transcript(ctx context.Context, r *run) string {
	if !o.deps.Settings.TranscriptionEnabled || o.deps.Transcriber == nil {
		return ""
	}
	degrade := func(msg string, err error) string {
		r.outcome.Warnings = append(r.outcome.Warnings, KindTranscriptionFailed)
		logging.WarnWithContext(r.logger, msg, "transcription_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "recipe built from the caption only"),
		)
		return ""
	}

	var audio string
	err := o.runStage(ctx, StageAudio, o.deps.Settings.Timeouts.Audio, func(stageCtx context.Context) error {
		var audioErr error
		audio, audioErr = o.deps.Normalizer.ExtractAudio(stageCtx, r.video)
		return audioErr
	})
	if err != nil {
		return degrade("audio extraction failed", err)
	}

	var text string
	err = o.runStage(ctx, StageTranscribe, o.deps.Settings.Timeouts.Transcribe, func(stageCtx context.Context) error {
		var transcribeErr error
		text, transcribeErr = o.deps.Transcriber.Transcribe(stageCtx, audio)
		return transcribeErr
	})
	if err != nil {
		return degrade("transcription failed", err)
	}
	return text
}

// deliver sends the video, charges the quota, then sends the recipe or the
// matching notice.
func (o *Orchestrator) deliver(ctx context.Context, r *run) (Kind, error) {
	var videoMessageID int64
	err := o.runStage(ctx, StageDeliver, 0, func(stageCtx context.Context) error {
		var sendErr error
		videoMessageID, sendErr = o.deps.Sink.SendVideo(stageCtx, r.req, r.video)
		return sendErr
	})
	if err != nil {
		return "", fail(KindDeliveryFailed, StageDeliver, err)
	}

	o.charge(ctx, r)

	switch {
	case r.synthFail:
		o.notify(ctx, r, Notice(&Failure{Kind: KindSynthesisFailed}, o.deps.Settings))
		return KindSynthesisFailed, nil
	case r.blocks.IsEmpty():
		o.notify(ctx, r, Notice(&Failure{Kind: KindNoRecipeExtracted}, o.deps.Settings))
		return KindNoRecipeExtracted, nil
	}
	r.outcome.Blocks = r.blocks

	renderer := o.deps.Renderer
	label := recipe.DurationLabel(r.duration)
	markdown := renderer.RenderMarkdown(r.blocks, r.fetched.SourceURL, label)
	if err := o.deps.Sink.SendRecipe(ctx, r.req, videoMessageID, markdown); err != nil {
		logging.WarnWithContext(r.logger, "markdown recipe rejected; sending plain text", "recipe_send_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "recipe sent without formatting"),
		)
		o.notify(ctx, r, truncateRunes(recipe.RenderPlain(r.blocks), o.deps.Settings.MaxMessageRunes))
	}
	return KindDelivered, nil
}

func (o *Orchestrator) charge(ctx context.Context, r *run) {
	status, err := o.deps.Ledger.Consume(ctx, r.req.RequesterID)
	if err != nil {
		logging.WarnWithContext(r.logger, "quota charge failed after delivery", "quota_charge_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "inspect the ledger with recipebot quota show"),
			logging.String(logging.FieldImpact, "request delivered free of charge"),
		)
		return
	}
	r.outcome.Charged = true
	r.logger.Debug("quota charged",
		logging.String(logging.FieldEventType, "quota_charged"),
		logging.String("source", string(status.Source)),
	)
}

func (o *Orchestrator) notify(ctx context.Context, r *run, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	if err := o.deps.Sink.Notify(ctx, r.req, text); err != nil {
		r.logger.Warn("notice delivery failed",
			logging.String(logging.FieldEventType, "notice_failed"),
			logging.Error(err),
		)
	}
}

// runStage applies the stage deadline, logs and records the stage.
func (o *Orchestrator) runStage(ctx context.Context, name string, timeout time.Duration, fn func(context.Context) error) error {
	stageCtx := services.WithStage(ctx, name)
	if timeout > 0 {
		var cancel context.CancelFunc
		stageCtx, cancel = context.WithTimeout(stageCtx, timeout)
		defer cancel()
	}
	logger := logging.WithContext(stageCtx, o.logger)
	logger.Debug("stage started", logging.String(logging.FieldEventType, "stage_start"))

	started := time.Now()
	err := fn(stageCtx)
	elapsed := time.Since(started)
	if err != nil && errors.Is(stageCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, services.ErrTimeout) {
		err = services.Wrap(services.ErrTimeout, name, "deadline", timeout.String(), err)
	}
	o.deps.Recorder.ObserveStage(name, elapsed, err)

	if err != nil {
		logger.Debug("stage failed",
			logging.String(logging.FieldEventType, "stage_failure"),
			logging.String("reason", services.Reason(err)),
			logging.Duration("elapsed", elapsed),
			logging.Error(err),
		)
		return err
	}
	logger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Duration("elapsed", elapsed),
	)
	return nil
}

func asFailure(err error) *Failure {
	var failure *Failure
	if errors.As(err, &failure) {
		return failure
	}
	return fail(KindInternal, "", err)
}

func truncateRunes(text string, limit int) string {
	if limit <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit-1]) + "…"
}
