package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"recipebot/internal/config"
	"recipebot/internal/deps"
	"recipebot/internal/logging"
	"recipebot/internal/metrics"
	"recipebot/internal/preflight"
	"recipebot/internal/staging"
	"recipebot/internal/telegram"
	"recipebot/internal/workflow"
)

// Poller delivers inbound requests until its context ends.
type Poller interface {
	Run(ctx context.Context) error
}

// Daemon coordinates the background services and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	workflow *workflow.Manager
	poller   Poller
	metrics  *metrics.Metrics
	closers  []io.Closer
	server   *apiServer

	lockPath string
	lock     *flock.Flock

	mu       sync.Mutex
	running  atomic.Bool
	cancel   context.CancelFunc
	pollDone chan struct{}
	started  atomic.Int64
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	StartedAt    time.Time
	Workflow     workflow.StatusSummary
	QuotaBackend string
	QuotaDBPath  string
	LockFilePath string
	ScratchDir   string
	Scratch      ScratchUsage
	Dependencies []deps.Status
}

// ScratchUsage counts request directories left under the scratch root.
type ScratchUsage struct {
	Directories int
	Bytes       int64
}

// Option customizes a Daemon.
type Option func(*Daemon)

// WithMetrics exposes m on /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Daemon) { d.metrics = m }
}

// WithCloser registers a resource released by Close, in registration order.
func WithCloser(c io.Closer) Option {
	return func(d *Daemon) {
		if c != nil {
			d.closers = append(d.closers, c)
		}
	}
}

// New constructs a daemon. poller may be nil for a daemon that only serves
// the worker pool (tests, local runs).
func New(cfg *config.Config, wf *workflow.Manager, poller Poller, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil || wf == nil {
		return nil, errors.New("daemon requires config and workflow manager")
	}
	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		workflow: wf,
		poller:   poller,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.server = newAPIServer(cfg, d, d.logger)
	return d, nil
}

// Build assembles the full Telegram-backed daemon from cfg.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if err := cfg.RequireTelegram(); err != nil {
		return nil, err
	}
	if err := cfg.RequireLLM(); err != nil {
		return nil, err
	}
	m := metrics.New()
	client := telegram.NewClient(telegram.Config{Token: cfg.Telegram.Token, BaseURL: cfg.Telegram.APIBaseURL})
	components, err := BuildPipeline(ctx, cfg, telegram.NewSink(client), m, logger)
	if err != nil {
		return nil, err
	}
	manager := workflow.NewManager(components.Orchestrator, cfg.Pipeline.Workers, cfg.Pipeline.QueueSize, logger,
		workflow.WithQueueMetrics(m))
	poller := telegram.NewPoller(client, manager, components.Ledger, cfg, logger)
	d, err := New(cfg, manager, poller, logger, WithMetrics(m), WithCloser(components))
	if err != nil {
		_ = components.Close()
		return nil, err
	}
	return d, nil
}

// Start acquires the daemon lock, sweeps stale scratch directories and
// launches the worker pool, the poller and the HTTP server.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := d.cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another recipebot daemon instance is already running")
	}

	sweep := staging.CleanStale(ctx, d.cfg.Paths.ScratchDir, d.cfg.ScratchMaxAge(), d.logger)
	if len(sweep.Removed) > 0 || len(sweep.Errors) > 0 {
		d.logger.Info("stale scratch sweep finished",
			logging.String(logging.FieldEventType, "scratch_sweep"),
			logging.Int("removed", len(sweep.Removed)),
			logging.Int("errors", len(sweep.Errors)),
		)
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.workflow.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start workflow: %w", err)
	}
	if err := d.server.start(runCtx); err != nil {
		cancel()
		d.workflow.Stop()
		_ = d.lock.Unlock()
		return err
	}

	d.pollDone = make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		if d.poller == nil {
			return
		}
		if err := d.poller.Run(runCtx); err != nil {
			logging.ErrorWithContext(d.logger, "poller stopped", "poller_stopped", logging.Error(err))
		}
	}(d.pollDone)

	d.cancel = cancel
	d.started.Store(time.Now().UnixNano())
	d.running.Store(true)
	d.logger.Info("recipebot daemon started",
		logging.String(logging.FieldEventType, "daemon_start"),
		logging.String("lock", d.lockPath),
		logging.Int("workers", d.cfg.Pipeline.Workers),
	)
	return nil
}

// Stop stops the poller first so no new requests arrive, then drains the
// worker pool and releases the lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.pollDone != nil {
		<-d.pollDone
		d.pollDone = nil
	}
	d.workflow.Stop()
	d.server.stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock",
			logging.String(logging.FieldEventType, "lock_release_failed"),
			logging.Error(err),
		)
	}
	d.running.Store(false)
	d.logger.Info("recipebot daemon stopped", logging.String(logging.FieldEventType, "daemon_stop"))
}

// Close stops the daemon and releases registered resources.
func (d *Daemon) Close() error {
	d.Stop()
	var errs []error
	for _, c := range d.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}

// Addr returns the HTTP listener address, or "" when the server is off.
func (d *Daemon) Addr() string {
	return d.server.addr()
}

// Status returns the current daemon status. It never blocks on Start/Stop.
func (d *Daemon) Status() Status {
	var startedAt time.Time
	if nanos := d.started.Load(); nanos > 0 {
		startedAt = time.Unix(0, nanos)
	}
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		StartedAt:    startedAt,
		Workflow:     d.workflow.Status(),
		QuotaBackend: d.cfg.Quota.Backend,
		QuotaDBPath:  d.cfg.QuotaDBPath(),
		LockFilePath: d.lockPath,
		ScratchDir:   d.cfg.Paths.ScratchDir,
		Scratch:      d.scratchUsage(),
		Dependencies: preflight.CheckSystemDeps(d.cfg),
	}
}

func (d *Daemon) scratchUsage() ScratchUsage {
	dirs, err := staging.ListDirectories(d.cfg.Paths.ScratchDir)
	if err != nil {
		d.logger.Debug("scratch listing failed", logging.Error(err))
		return ScratchUsage{}
	}
	usage := ScratchUsage{Directories: len(dirs)}
	for _, dir := range dirs {
		usage.Bytes += dir.Size
	}
	return usage
}
