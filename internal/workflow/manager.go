package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"recipebot/internal/logging"
	"recipebot/internal/pipeline"
)

var (
	// ErrQueueFull is returned by Submit when every queue slot is taken.
	ErrQueueFull = errors.New("request queue full")
	// ErrNotRunning is returned by Submit before Start or after Stop.
	ErrNotRunning = errors.New("workflow not running")
)

// Processor runs a single request.
type Processor interface {
	Process(ctx context.Context, req pipeline.Request) (pipeline.Outcome, error)
}

// QueueMetrics receives queue measurements. Optional.
type QueueMetrics interface {
	SetQueueDepth(depth int)
	IncQueueRejected()
}

// Manager owns the request queue and its workers.
type Manager struct {
	processor Processor
	workers   int
	queue     chan pipeline.Request
	logger    *slog.Logger
	metrics   QueueMetrics

	mu        sync.RWMutex
	running   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	lastErr   error
	lastKind  pipeline.Kind
	processed int64
	failed    int64
	startedAt time.Time
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithQueueMetrics reports queue depth and rejections.
func WithQueueMetrics(metrics QueueMetrics) ManagerOption {
	return func(m *Manager) { m.metrics = metrics }
}

// NewManager constructs a manager with the given pool and queue sizes.
func NewManager(processor Processor, workers, queueSize int, logger *slog.Logger, opts ...ManagerOption) *Manager {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	m := &Manager{
		processor: processor,
		workers:   workers,
		queue:     make(chan pipeline.Request, queueSize),
		logger:    logging.NewComponentLogger(logger, "workflow"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start launches the workers.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if m.processor == nil {
		m.mu.Unlock()
		return errors.New("workflow processor not configured")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.startedAt = time.Now()
	m.wg.Add(m.workers)
	m.mu.Unlock()

	for i := range m.workers {
		go m.runWorker(runCtx, i+1)
	}
	m.logger.Info("workflow started",
		logging.String(logging.FieldEventType, "workflow_start"),
		logging.Int("workers", m.workers),
		logging.Int("queue_size", cap(m.queue)),
	)
	return nil
}

// Stop cancels in-flight requests and waits for the workers to exit.
// Requests still waiting in the queue are dropped.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()

	dropped := 0
drain:
	for {
		select {
		case <-m.queue:
			dropped++
		default:
			break drain
		}
	}
	m.reportDepth()
	m.logger.Info("workflow stopped",
		logging.String(logging.FieldEventType, "workflow_stop"),
		logging.Int("dropped", dropped),
	)
}

// Submit enqueues req without blocking.
func (m *Manager) Submit(req pipeline.Request) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.running {
		return ErrNotRunning
	}
	select {
	case m.queue <- req:
		m.reportDepth()
		return nil
	default:
		if m.metrics != nil {
			m.metrics.IncQueueRejected()
		}
		m.logger.Warn("request rejected; queue full",
			logging.String(logging.FieldEventType, "queue_full"),
			logging.Requester(req.RequesterID),
			logging.Int("queue_size", cap(m.queue)),
			logging.String(logging.FieldErrorHint, "raise pipeline.queue_size or pipeline.workers"),
		)
		return ErrQueueFull
	}
}

func (m *Manager) runWorker(ctx context.Context, id int) {
	defer m.wg.Done()
	logger := m.logger.With(logging.Int("worker", id))
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-m.queue:
			m.reportDepth()
			m.process(ctx, logger, req)
		}
	}
}

func (m *Manager) process(ctx context.Context, logger *slog.Logger, req pipeline.Request) {
	defer func() {
		if recovered := recover(); recovered != nil {
			logger.Error("request panicked",
				logging.String(logging.FieldEventType, "request_panic"),
				logging.Requester(req.RequesterID),
				logging.Any("panic", recovered),
			)
			m.record(pipeline.KindInternal, errors.New("request panicked"))
		}
	}()
	outcome, err := m.processor.Process(ctx, req)
	kind := outcome.Kind
	if err != nil {
		kind = pipeline.KindOf(err)
	}
	m.record(kind, err)
}

func (m *Manager) record(kind pipeline.Kind, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processed++
	m.lastKind = kind
	if err != nil && kind.Structural() {
		m.failed++
		m.lastErr = err
	}
}

func (m *Manager) reportDepth() {
	if m.metrics != nil {
		m.metrics.SetQueueDepth(len(m.queue))
	}
}
