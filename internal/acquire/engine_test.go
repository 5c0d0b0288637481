package acquire_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"recipebot/internal/acquire"
	"recipebot/internal/credentials"
	"recipebot/internal/platform"
)

var ladder = []string{
	"bestvideo[height<=720]+bestaudio/best[height<=720]",
	"best[height<=720]",
	"best",
}

type scriptedFetcher struct {
	failures map[string]error
	attempts []acquire.Attempt
	onFetch  func(acquire.Attempt)
}

func (f *scriptedFetcher) Fetch(_ context.Context, attempt acquire.Attempt) (acquire.Metadata, error) {
	f.attempts = append(f.attempts, attempt)
	if f.onFetch != nil {
		f.onFetch(attempt)
	}
	path := filepath.Join(attempt.OutputDir, "clip.mp4")
	if err, ok := f.failures[attempt.Format]; ok {
		_ = os.WriteFile(path+".part", []byte("partial"), 0o644)
		return acquire.Metadata{}, err
	}
	if err := os.WriteFile(path, []byte("video"), 0o644); err != nil {
		return acquire.Metadata{}, err
	}
	return acquire.Metadata{ID: "clip", Title: "Паста", DurationSeconds: 42, FilePath: path}, nil
}

func TestFetchFallsBackThroughLadder(t *testing.T) {
	fetcher := &scriptedFetcher{failures: map[string]error{
		ladder[0]: errors.New("Requested format is not available"),
		ladder[1]: errors.New("Requested format is not available"),
	}}
	scratch := t.TempDir()
	var observed []string
	engine := acquire.NewEngine(fetcher, nil, ladder, acquire.WithObserver(func(_ platform.Target, format string, _ error) {
		observed = append(observed, format)
	}))

	result, err := engine.Fetch(context.Background(), "https://www.instagram.com/reel/abc123/", scratch)
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if len(fetcher.attempts) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(fetcher.attempts))
	}
	for i, attempt := range fetcher.attempts {
		if attempt.Format != ladder[i] {
			t.Fatalf("attempt %d used format %q, want %q", i, attempt.Format, ladder[i])
		}
	}
	if result.Format != "best" || result.Attempts != 3 {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.Platform != platform.Instagram || result.DurationSeconds != 42 {
		t.Fatalf("unexpected result metadata %+v", result)
	}
	if result.SourceURL != "https://www.instagram.com/reel/abc123/" {
		t.Fatalf("expected source url fallback, got %q", result.SourceURL)
	}
	if _, err := os.Stat(result.AssetPath); err != nil {
		t.Fatalf("expected asset on disk: %v", err)
	}
	if len(observed) != 3 {
		t.Fatalf("expected observer per attempt, got %v", observed)
	}
	for _, failed := range []string{"attempt-1", "attempt-2"} {
		if _, err := os.Stat(filepath.Join(scratch, failed)); !os.IsNotExist(err) {
			t.Fatalf("expected %s to be removed, stat err=%v", failed, err)
		}
	}
}

func TestFetchStopsAtFirstSuccess(t *testing.T) {
	fetcher := &scriptedFetcher{}
	engine := acquire.NewEngine(fetcher, nil, ladder)
	if _, err := engine.Fetch(context.Background(), "https://youtu.be/abc", t.TempDir()); err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if len(fetcher.attempts) != 1 {
		t.Fatalf("expected a single attempt, got %d", len(fetcher.attempts))
	}
}

func TestFetchSurfacesLastFailure(t *testing.T) {
	fetcher := &scriptedFetcher{failures: map[string]error{
		ladder[0]: errors.New("Private video. Sign in if you've been granted access"),
		ladder[1]: errors.New("HTTP Error 503"),
		ladder[2]: errors.New("Requested content is not available, rate-limit reached or login required"),
	}}
	engine := acquire.NewEngine(fetcher, nil, ladder)
	_, err := engine.Fetch(context.Background(), "https://www.tiktok.com/@chef/video/123", t.TempDir())

	var acqErr *acquire.Error
	if !errors.As(err, &acqErr) {
		t.Fatalf("expected *acquire.Error, got %v", err)
	}
	if acqErr.Kind != acquire.KindAuthRequired {
		t.Fatalf("expected auth_required from last attempt, got %s", acqErr.Kind)
	}
	if acqErr.Attempts != 3 {
		t.Fatalf("expected 3 attempts recorded, got %d", acqErr.Attempts)
	}
	if !acquire.IsKind(err, acquire.KindAuthRequired) {
		t.Fatal("IsKind should match")
	}
}

func TestFetchRejectsUnsupportedURLWithoutIO(t *testing.T) {
	fetcher := &scriptedFetcher{}
	scratch := t.TempDir()
	engine := acquire.NewEngine(fetcher, nil, ladder)

	_, err := engine.Fetch(context.Background(), "https://vimeo.com/12345", scratch)
	if !acquire.IsKind(err, acquire.KindUnsupportedURL) {
		t.Fatalf("expected unsupported url, got %v", err)
	}
	if len(fetcher.attempts) != 0 {
		t.Fatalf("expected no fetch attempts, got %d", len(fetcher.attempts))
	}
	entries, _ := os.ReadDir(scratch)
	if len(entries) != 0 {
		t.Fatalf("expected untouched scratch dir, got %d entries", len(entries))
	}
}

func TestFetchInjectsCookiesOnlyForMatchingPlatform(t *testing.T) {
	store := credentials.NewStaticStore(map[platform.Target]credentials.Jar{
		platform.Instagram: {Content: "# Netscape HTTP Cookie File\n"},
	})
	var cookiePath string
	fetcher := &scriptedFetcher{onFetch: func(attempt acquire.Attempt) {
		cookiePath = attempt.CookiesPath
		if attempt.CookiesPath == "" {
			return
		}
		data, err := os.ReadFile(attempt.CookiesPath)
		if err != nil || len(data) == 0 {
			t.Errorf("cookie file not readable during fetch: %v", err)
		}
	}}
	engine := acquire.NewEngine(fetcher, store, ladder)

	if _, err := engine.Fetch(context.Background(), "https://www.instagram.com/p/xyz/", t.TempDir()); err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if cookiePath == "" {
		t.Fatal("expected cookies for instagram")
	}
	if _, err := os.Stat(cookiePath); !os.IsNotExist(err) {
		t.Fatalf("expected cookie file removed after fetch, stat err=%v", err)
	}

	if _, err := engine.Fetch(context.Background(), "https://youtu.be/abc", t.TempDir()); err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if cookiePath != "" {
		t.Fatalf("expected anonymous fetch for youtube, got %q", cookiePath)
	}
}

func TestClassifyMessage(t *testing.T) {
	cases := map[string]acquire.Kind{
		"ERROR: [youtube] x: Private video. Sign in if you've been granted access":                 acquire.KindPrivate,
		"Video unavailable. This video has been removed by the uploader":                          acquire.KindRemoved,
		"The uploader has not made this video available in your country":                          acquire.KindGeoBlocked,
		"Video unavailable. This video is no longer available due to a copyright claim by Studio": acquire.KindCopyrightBlocked,
		"Sign in to confirm your age":                                                             acquire.KindAuthRequired,
		"Unable to extract webpage video data":                                                    acquire.KindUnknown,
	}
	for message, want := range cases {
		if got := acquire.ClassifyMessage(message); got != want {
			t.Errorf("ClassifyMessage(%q) = %s, want %s", message, got, want)
		}
	}
}
