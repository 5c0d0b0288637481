package ffprobe

import (
	"context"
	"errors"
	"testing"
)

func TestResultHelpers(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{CodecType: "video", Width: 720, Height: 1280, Duration: "30.1"},
			{CodecType: "audio", Duration: "30.2"},
		},
		Format: Format{Duration: "30.25", Size: "1000"},
	}
	if !result.HasAudio() {
		t.Fatal("expected audio stream")
	}
	if w, h, ok := result.VideoSize(); !ok || w != 720 || h != 1280 {
		t.Fatalf("unexpected video size %dx%d ok=%v", w, h, ok)
	}
	if d, ok := result.DurationSeconds(); !ok || d != 30.25 {
		t.Fatalf("unexpected duration %v ok=%v", d, ok)
	}
	if result.SizeBytes() != 1000 {
		t.Fatalf("unexpected size %d", result.SizeBytes())
	}
}

func TestDurationFallsBackToStreams(t *testing.T) {
	result := Result{
		Streams: []Stream{{CodecType: "video", Duration: "12.5"}, {CodecType: "audio", Duration: "13"}},
		Format:  Format{Duration: "N/A", Size: "-1"},
	}
	if d, ok := result.DurationSeconds(); !ok || d != 13 {
		t.Fatalf("expected stream fallback 13, got %v ok=%v", d, ok)
	}
	if result.SizeBytes() != 0 {
		t.Fatalf("expected size 0, got %d", result.SizeBytes())
	}
	if result.HasAudio() != true {
		t.Fatal("expected audio")
	}
	if _, ok := (Result{}).DurationSeconds(); ok {
		t.Fatal("expected no duration for empty result")
	}
}

func TestProberDuration(t *testing.T) {
	p := New("").WithRunner(func(_ context.Context, name string, args ...string) ([]byte, error) {
		if name != "ffprobe" || args[len(args)-1] != "/tmp/clip.mp4" {
			t.Fatalf("unexpected invocation %s %v", name, args)
		}
		return []byte(`{"streams":[{"codec_type":"video"}],"format":{"duration":"95.0"}}`), nil
	})
	d, err := p.Duration(context.Background(), "/tmp/clip.mp4")
	if err != nil {
		t.Fatalf("Duration: %v", err)
	}
	if d != 95 {
		t.Fatalf("unexpected duration %v", d)
	}

	failing := New("ffprobe").WithRunner(func(context.Context, string, ...string) ([]byte, error) {
		return []byte("moov atom not found"), errors.New("exit status 1")
	})
	if _, err := failing.Duration(context.Background(), "/tmp/clip.mp4"); err == nil {
		t.Fatal("expected error")
	}
	if _, err := p.Inspect(context.Background(), " "); err == nil {
		t.Fatal("expected empty path error")
	}
}
