package pipeline

import (
	"errors"
	"strings"
	"testing"
	"time"

	"recipebot/internal/acquire"
)

func TestNoticeCoversEveryKind(t *testing.T) {
	settings := Settings{MaxDuration: 90 * time.Second, FreeLimit: 6}
	kinds := []Kind{
		KindUnsupportedURL, KindDownloadFailed, KindDurationExceeded, KindTranscodeFailed,
		KindVideoTooLarge, KindDeliveryFailed, KindSynthesisFailed, KindNoRecipeExtracted,
		KindQuotaExhausted, KindConcurrentBusy, KindInternal,
	}
	seen := map[string]Kind{}
	for _, kind := range kinds {
		text := Notice(&Failure{Kind: kind}, settings)
		if strings.TrimSpace(text) == "" {
			t.Fatalf("empty notice for %s", kind)
		}
		if prev, dup := seen[text]; dup && kind != KindInternal && prev != KindInternal {
			t.Fatalf("%s and %s share notice %q", prev, kind, text)
		}
		seen[text] = kind
	}
	if got := Notice(&Failure{Kind: KindDurationExceeded}, settings); !strings.Contains(got, "90 секунд") {
		t.Fatalf("unexpected duration notice %q", got)
	}
	if Notice(nil, settings) != "" {
		t.Fatal("nil failure has no notice")
	}
}

func TestDownloadNoticesDifferByCause(t *testing.T) {
	seen := map[string]bool{}
	for _, kind := range []acquire.Kind{
		acquire.KindUnknown, acquire.KindPrivate, acquire.KindRemoved,
		acquire.KindGeoBlocked, acquire.KindCopyrightBlocked, acquire.KindAuthRequired,
	} {
		text := Notice(&Failure{Kind: KindDownloadFailed, Download: kind}, Settings{})
		if seen[text] {
			t.Fatalf("duplicate notice for %s: %q", kind, text)
		}
		seen[text] = true
	}
}

func TestKindOfAndStructural(t *testing.T) {
	if KindOf(nil) != KindDelivered {
		t.Fatal("nil error is a delivery")
	}
	if KindOf(errors.New("x")) != KindInternal {
		t.Fatal("unclassified errors are internal")
	}
	wrapped := fetchFailure("fetch", &acquire.Error{Kind: acquire.KindUnsupportedURL, Detail: "ftp://x"})
	if KindOf(wrapped) != KindUnsupportedURL {
		t.Fatalf("unexpected kind %s", KindOf(wrapped))
	}
	for _, kind := range []Kind{KindTranscriptionFailed, KindSynthesisFailed, KindNoRecipeExtracted, KindDelivered} {
		if kind.Structural() {
			t.Fatalf("%s must degrade, not abort", kind)
		}
	}
	if !KindQuotaExhausted.Structural() || !KindConcurrentBusy.Structural() {
		t.Fatal("quota and busy abort the request")
	}
	msg := (&Failure{Kind: KindDownloadFailed, Download: acquire.KindPrivate, Stage: "fetch", Detail: "nope"}).Error()
	if msg != "fetch: download_failed(private): nope" {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestMinutesLabel(t *testing.T) {
	cases := map[float64]string{120: "2 минут", 60: "1 минуты", 90: "90 секунд", 1260: "21 минуты", 660: "11 минут"}
	for seconds, want := range cases {
		if got := minutesLabel(seconds); got != want {
			t.Fatalf("minutesLabel(%v) = %q, want %q", seconds, got, want)
		}
	}
}
