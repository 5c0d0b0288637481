package daemon_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"recipebot/internal/config"
	"recipebot/internal/daemon"
	"recipebot/internal/metrics"
	"recipebot/internal/pipeline"
	"recipebot/internal/staging"
	"recipebot/internal/testsupport"
	"recipebot/internal/workflow"
)

type noopProcessor struct{}

func (noopProcessor) Process(context.Context, pipeline.Request) (pipeline.Outcome, error) {
	return pipeline.Outcome{Kind: pipeline.KindDelivered}, nil
}

type blockingPoller struct {
	mu      sync.Mutex
	started bool
}

func (p *blockingPoller) Run(ctx context.Context) error {
	p.mu.Lock()
	p.started = true
	p.mu.Unlock()
	<-ctx.Done()
	return nil
}

func (p *blockingPoller) wasStarted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started
}

type discardSink struct{}

func (discardSink) Notify(context.Context, pipeline.Request, string) error { return nil }
func (discardSink) SendVideo(context.Context, pipeline.Request, string) (int64, error) {
	return 1, nil
}
func (discardSink) SendRecipe(context.Context, pipeline.Request, int64, string) error { return nil }

func newDaemon(t *testing.T, cfg *config.Config, opts ...daemon.Option) (*daemon.Daemon, *blockingPoller) {
	t.Helper()
	mgr := workflow.NewManager(noopProcessor{}, 1, 4, nil)
	poller := &blockingPoller{}
	d, err := daemon.New(cfg, mgr, poller, nil, opts...)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		_ = d.Close()
	})
	return d, poller
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Server.Bind = ""
	d, poller := newDaemon(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	status := d.Status()
	if !status.Running || status.StartedAt.IsZero() {
		t.Fatalf("expected daemon to report running, got %+v", status)
	}
	if !status.Workflow.Running {
		t.Fatal("expected workflow to be running")
	}
	if d.Addr() != "" {
		t.Fatalf("expected no listener without bind, got %q", d.Addr())
	}

	// Second start should fail
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	deadline := time.Now().Add(2 * time.Second)
	for !poller.wasStarted() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if !poller.wasStarted() {
		t.Fatal("expected poller to run")
	}

	d.Stop()
	if status := d.Status(); status.Running || status.Workflow.Running {
		t.Fatalf("expected daemon to be stopped, got %+v", status)
	}
}

func TestSecondInstanceFailsOnLock(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Server.Bind = ""
	first, _ := newDaemon(t, cfg)
	second, _ := newDaemon(t, cfg)

	ctx := context.Background()
	if err := first.Start(ctx); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	err := second.Start(ctx)
	if err == nil || !strings.Contains(err.Error(), "already running") {
		t.Fatalf("expected lock error, got %v", err)
	}

	first.Stop()
	if err := second.Start(ctx); err != nil {
		t.Fatalf("second Start after release: %v", err)
	}
	second.Stop()
}

func TestHTTPEndpoints(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Server.Token = "secret"
	d, _ := newDaemon(t, cfg, daemon.WithMetrics(metrics.New()))

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Stop()
	base := "http://" + d.Addr()

	resp, err := http.Get(base + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != "ok" {
		t.Fatalf("unexpected health response %d %q", resp.StatusCode, body)
	}

	resp, err = http.Get(base + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "recipebot_workflow_queue_depth") {
		t.Fatalf("unexpected metrics response %d", resp.StatusCode)
	}

	resp, err = http.Get(base + "/status")
	if err != nil {
		t.Fatalf("GET /status: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}

	inflight, err := staging.NewRequestDir(cfg.Paths.ScratchDir, "inflight-request")
	if err != nil {
		t.Fatalf("NewRequestDir: %v", err)
	}
	testsupport.WriteMedia(t, inflight.Join("attempt-1", "video.mp4"), 2048)

	req, _ := http.NewRequest(http.MethodGet, base+"/status", nil)
	req.Header.Set("Authorization", "Bearer secret")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /status with token: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", resp.StatusCode)
	}
	var payload struct {
		Running      bool   `json:"running"`
		QuotaBackend string `json:"quota_backend"`
		Workflow     struct {
			Workers       int `json:"workers"`
			QueueCapacity int `json:"queue_capacity"`
		} `json:"workflow"`
		Scratch struct {
			Directories int   `json:"directories"`
			Bytes       int64 `json:"bytes"`
		} `json:"scratch"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !payload.Running || payload.QuotaBackend != config.QuotaBackendSQLite || payload.Workflow.Workers != 1 || payload.Workflow.QueueCapacity != 4 {
		t.Fatalf("unexpected status payload %+v", payload)
	}
	if payload.Scratch.Directories != 1 || payload.Scratch.Bytes != 2048 {
		t.Fatalf("expected one in-flight scratch dir of 2048 bytes, got %+v", payload.Scratch)
	}
}

func TestMetricsNotFoundWithoutRegistry(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, _ := newDaemon(t, cfg)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Stop()

	resp, err := http.Get("http://" + d.Addr() + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestBuildPipelineWiresComponents(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	cfg.Cache.Enabled = true
	cfg.Transcription.Enabled = false

	components, err := daemon.BuildPipeline(context.Background(), cfg, discardSink{}, metrics.New(), nil)
	if err != nil {
		t.Fatalf("BuildPipeline: %v", err)
	}
	defer components.Close()
	if components.Ledger == nil || components.Guard == nil || components.Orchestrator == nil {
		t.Fatalf("expected wired components, got %+v", components)
	}
	if components.Cache == nil {
		t.Fatal("expected recipe cache when enabled")
	}
	if _, err := components.Ledger.Status(context.Background(), 42); err != nil {
		t.Fatalf("ledger status: %v", err)
	}
}

func TestNewRequiresWorkflow(t *testing.T) {
	if _, err := daemon.New(testsupport.NewConfig(t), nil, nil, nil); err == nil {
		t.Fatal("expected error without workflow manager")
	}
}
