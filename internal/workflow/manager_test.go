package workflow

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"recipebot/internal/pipeline"
)

type blockingProcessor struct {
	started chan int64
	release chan struct{}
	calls   atomic.Int32
	err     error
}

func (p *blockingProcessor) Process(ctx context.Context, req pipeline.Request) (pipeline.Outcome, error) {
	p.calls.Add(1)
	if p.started != nil {
		p.started <- req.RequesterID
	}
	if p.release != nil {
		select {
		case <-p.release:
		case <-ctx.Done():
			return pipeline.Outcome{}, &pipeline.Failure{Kind: pipeline.KindInternal, Err: ctx.Err()}
		}
	}
	if p.err != nil {
		return pipeline.Outcome{}, p.err
	}
	return pipeline.Outcome{Kind: pipeline.KindDelivered}, nil
}

type queueGauge struct {
	mu       sync.Mutex
	depth    int
	rejected int
}

func (g *queueGauge) SetQueueDepth(depth int) {
	g.mu.Lock()
	g.depth = depth
	g.mu.Unlock()
}

func (g *queueGauge) IncQueueRejected() {
	g.mu.Lock()
	g.rejected++
	g.mu.Unlock()
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestSubmitBeforeStartFails(t *testing.T) {
	m := NewManager(&blockingProcessor{}, 1, 1, nil)
	if err := m.Submit(pipeline.Request{}); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}
}

func TestManagerProcessesSubmittedRequests(t *testing.T) {
	proc := &blockingProcessor{}
	m := NewManager(proc, 2, 4, nil)
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.Stop()
	if err := m.Start(context.Background()); err == nil {
		t.Fatal("expected second Start to fail")
	}

	for i := range 3 {
		if err := m.Submit(pipeline.Request{RequesterID: int64(i)}); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	waitFor(t, func() bool { return m.Status().Processed == 3 })
	status := m.Status()
	if status.Failed != 0 || status.LastKind != pipeline.KindDelivered || !status.Running {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestSubmitNeverBlocksWhenQueueIsFull(t *testing.T) {
	proc := &blockingProcessor{started: make(chan int64, 4), release: make(chan struct{})}
	gauge := &queueGauge{}
	m := NewManager(proc, 1, 1, nil, WithQueueMetrics(gauge))
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := m.Submit(pipeline.Request{RequesterID: 1}); err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	<-proc.started
	if err := m.Submit(pipeline.Request{RequesterID: 2}); err != nil {
		t.Fatalf("second Submit should fill the queue: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- m.Submit(pipeline.Request{RequesterID: 3}) }()
	select {
	case err := <-done:
		if !errors.Is(err, ErrQueueFull) {
			t.Fatalf("expected ErrQueueFull, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Submit blocked on a full queue")
	}

	gauge.mu.Lock()
	rejected := gauge.rejected
	gauge.mu.Unlock()
	if rejected != 1 {
		t.Fatalf("expected 1 rejection, got %d", rejected)
	}

	m.Stop()
	if status := m.Status(); status.Running || status.QueueDepth != 0 {
		t.Fatalf("expected stopped and drained, got %+v", status)
	}
	if err := m.Submit(pipeline.Request{}); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning after Stop, got %v", err)
	}
}

func TestStopCancelsInFlightRequests(t *testing.T) {
	proc := &blockingProcessor{started: make(chan int64, 1), release: make(chan struct{})}
	m := NewManager(proc, 1, 1, nil)
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := m.Submit(pipeline.Request{RequesterID: 9}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	<-proc.started

	stopped := make(chan struct{})
	go func() {
		m.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not cancel the running request")
	}
	if got := m.Status().Failed; got != 1 {
		t.Fatalf("expected the cancelled request to count as failed, got %d", got)
	}
}

func TestFailuresAreCounted(t *testing.T) {
	proc := &blockingProcessor{err: &pipeline.Failure{Kind: pipeline.KindTranscodeFailed}}
	m := NewManager(proc, 1, 2, nil)
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.Stop()
	if err := m.Submit(pipeline.Request{}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitFor(t, func() bool { return m.Status().Processed == 1 })
	status := m.Status()
	if status.Failed != 1 || status.LastKind != pipeline.KindTranscodeFailed || status.LastError == "" {
		t.Fatalf("unexpected status %+v", status)
	}
}
