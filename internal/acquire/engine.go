package acquire

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"recipebot/internal/credentials"
	"recipebot/internal/logging"
	"recipebot/internal/platform"
	"recipebot/internal/services"
)

// Attempt describes one rung of the fallback ladder.
type Attempt struct {
	URL         string
	Format      string
	MergeFormat string
	OutputDir   string
	CookiesPath string
}

// Metadata is what the downloader reports about a video.
type Metadata struct {
	ID              string
	Title           string
	Description     string
	DurationSeconds float64
	WebpageURL      string
	FilePath        string
}

// Fetcher performs a single download attempt and writes one media file into
// Attempt.OutputDir.
type Fetcher interface {
	Fetch(ctx context.Context, attempt Attempt) (Metadata, error)
}

// Prober reads metadata without downloading.
type Prober interface {
	Probe(ctx context.Context, attempt Attempt) (Metadata, error)
}

// Result is a successful download. The asset belongs to the caller.
type Result struct {
	AssetPath       string
	DurationSeconds float64
	Title           string
	Description     string
	SourceURL       string
	Platform        platform.Target
	Format          string
	Attempts        int
}

// AttemptObserver is notified after every attempt.
type AttemptObserver func(target platform.Target, format string, err error)

// Engine walks the fallback ladder until a format succeeds.
type Engine struct {
	fetcher     Fetcher
	creds       credentials.Store
	formats     []string
	mergeFormat string
	logger      *slog.Logger
	observer    AttemptObserver
}

// Option customizes the engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logging.NewComponentLogger(logger, "acquire") }
}

// WithObserver registers an attempt observer (metrics).
func WithObserver(observer AttemptObserver) Option {
	return func(e *Engine) { e.observer = observer }
}

// WithMergeFormat sets the container yt-dlp merges separate streams into.
func WithMergeFormat(format string) Option {
	return func(e *Engine) { e.mergeFormat = format }
}

// NewEngine constructs an engine. formats is ordered most preferred first;
// creds may be nil for anonymous fetching.
func NewEngine(fetcher Fetcher, creds credentials.Store, formats []string, opts ...Option) *Engine {
	engine := &Engine{
		fetcher:     fetcher,
		creds:       creds,
		formats:     append([]string(nil), formats...),
		mergeFormat: "mp4",
		logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine
}

// Fetch downloads rawURL into scratchDir. On failure it returns *Error
// carrying the classification of the last attempt's failure.
func (e *Engine) Fetch(ctx context.Context, rawURL, scratchDir string) (Result, error) {
	target, err := platform.Classify(rawURL)
	if err != nil {
		return Result{}, &Error{Kind: KindUnsupportedURL, Detail: rawURL, Err: err}
	}
	if len(e.formats) == 0 {
		return Result{}, services.Wrap(services.ErrConfiguration, "fetch", "ladder", "no formats configured", nil)
	}
	logger := logging.WithContext(ctx, e.logger).With(logging.Platform(target.String()))

	cookiesPath, release, err := e.cookies(ctx, target, scratchDir)
	if err != nil {
		logging.WarnWithContext(logger, "cookie jar unavailable; fetching anonymously", "cookies_unavailable",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the [cookies] section or *_COOKIES_CONTENT"),
			logging.String(logging.FieldImpact, "restricted videos may fail to download"),
		)
	}
	defer release()

	var lastErr error
	for i, format := range e.formats {
		attemptDir := filepath.Join(scratchDir, fmt.Sprintf("attempt-%d", i+1))
		if err := os.MkdirAll(attemptDir, 0o755); err != nil {
			return Result{}, services.Wrap(services.ErrTransient, "fetch", "prepare", "create attempt dir", err)
		}
		started := time.Now()
		meta, err := e.fetcher.Fetch(ctx, Attempt{
			URL:         rawURL,
			Format:      format,
			MergeFormat: e.mergeFormat,
			OutputDir:   attemptDir,
			CookiesPath: cookiesPath,
		})
		if e.observer != nil {
			e.observer(target, format, err)
		}
		if err == nil {
			logger.Info("video fetched",
				logging.String(logging.FieldEventType, "fetch_complete"),
				logging.String("format", format),
				logging.Int("attempt", i+1),
				logging.Duration("elapsed", time.Since(started)),
			)
			return Result{
				AssetPath:       meta.FilePath,
				DurationSeconds: meta.DurationSeconds,
				Title:           meta.Title,
				Description:     meta.Description,
				SourceURL:       firstNonEmpty(meta.WebpageURL, rawURL),
				Platform:        target,
				Format:          format,
				Attempts:        i + 1,
			}, nil
		}

		lastErr = err
		_ = os.RemoveAll(attemptDir)
		logger.Debug("fetch attempt failed",
			logging.String(logging.FieldEventType, "fetch_attempt_failed"),
			logging.String("format", format),
			logging.Int("attempt", i+1),
			logging.Error(err),
		)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, services.WrapCall(ctx, services.ErrTimeout, "fetch", "download", "aborted", ctxErr)
		}
	}

	detail := lastErr.Error()
	return Result{}, &Error{
		Kind:     ClassifyMessage(detail),
		Detail:   detail,
		Attempts: len(e.formats),
		Err:      lastErr,
	}
}

// Probe reads metadata for rawURL without downloading, when the fetcher
// supports it. ok is false when probing is unsupported.
func (e *Engine) Probe(ctx context.Context, rawURL, scratchDir string) (Metadata, bool, error) {
	prober, ok := e.fetcher.(Prober)
	if !ok {
		return Metadata{}, false, nil
	}
	target, err := platform.Classify(rawURL)
	if err != nil {
		return Metadata{}, true, &Error{Kind: KindUnsupportedURL, Detail: rawURL, Err: err}
	}
	cookiesPath, release, _ := e.cookies(ctx, target, scratchDir)
	defer release()
	meta, err := prober.Probe(ctx, Attempt{URL: rawURL, CookiesPath: cookiesPath, OutputDir: scratchDir})
	if err != nil {
		return Metadata{}, true, &Error{Kind: ClassifyMessage(err.Error()), Detail: err.Error(), Attempts: 1, Err: err}
	}
	return meta, true, nil
}

func (e *Engine) cookies(ctx context.Context, target platform.Target, scratchDir string) (string, func(), error) {
	noop := func() {}
	if e.creds == nil {
		return "", noop, nil
	}
	jar, ok, err := e.creds.Cookies(ctx, target)
	if err != nil {
		return "", noop, err
	}
	if !ok {
		return "", noop, nil
	}
	path, cleanup, err := jar.Materialize(scratchDir)
	if err != nil {
		return "", noop, err
	}
	return path, cleanup, nil
}

// IsKind reports whether err is an acquisition failure of the given kind.
func IsKind(err error, kind Kind) bool {
	var acqErr *Error
	return errors.As(err, &acqErr) && acqErr.Kind == kind
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
