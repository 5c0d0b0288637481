package telegram

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"recipebot/internal/config"
	"recipebot/internal/pipeline"
	"recipebot/internal/quota"
	"recipebot/internal/workflow"
)

type fakeSubmitter struct {
	mu       sync.Mutex
	err      error
	requests []pipeline.Request
}

func (f *fakeSubmitter) Submit(req pipeline.Request) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.requests = append(f.requests, req)
	return nil
}

type fakeQuota struct {
	status quota.Status
	err    error
}

func (f fakeQuota) Status(context.Context, int64) (quota.Status, error) {
	return f.status, f.err
}

func textMessage(id int64, userID int64, text string) Update {
	return Update{
		UpdateID: id,
		Message: &Message{
			MessageID: id * 10,
			From:      &User{ID: userID},
			Chat:      Chat{ID: userID, Type: "private"},
			Date:      1700000000,
			Text:      text,
		},
	}
}

func sentTexts(api *fakeAPI) []string {
	var out []string
	for _, call := range api.recorded() {
		if call.Method == "sendMessage" {
			text, _ := call.JSON["text"].(string)
			out = append(out, text)
		}
	}
	return out
}

func newTestPoller(t *testing.T, submitter Submitter, reader QuotaReader) (*fakeAPI, *Poller) {
	t.Helper()
	api, client := newFakeAPI(t, nil)
	cfg := config.Default()
	cfg.Quota.FreeLimit = 6
	return api, NewPoller(client, submitter, reader, &cfg, nil)
}

func TestHandleSubmitsURLRequests(t *testing.T) {
	submitter := &fakeSubmitter{}
	api, poller := newTestPoller(t, submitter, nil)

	poller.Handle(context.Background(), textMessage(1, 42, "глянь https://www.instagram.com/reel/Cxyz123/ вкусно"))

	if len(submitter.requests) != 1 {
		t.Fatalf("expected one request, got %d", len(submitter.requests))
	}
	req := submitter.requests[0]
	if req.RequesterID != 42 || req.ChatID != 42 || req.MessageID != 10 || req.URL != "https://www.instagram.com/reel/Cxyz123/" {
		t.Fatalf("unexpected request %+v", req)
	}
	if !req.ReceivedAt.Equal(time.Unix(1700000000, 0)) {
		t.Fatalf("unexpected received time %s", req.ReceivedAt)
	}
	if texts := sentTexts(api); len(texts) != 0 {
		t.Fatalf("expected no reply for queued request, got %v", texts)
	}
}

func TestHandleRepliesWithoutURL(t *testing.T) {
	submitter := &fakeSubmitter{}
	api, poller := newTestPoller(t, submitter, nil)

	poller.Handle(context.Background(), textMessage(1, 42, "привет"))

	if len(submitter.requests) != 0 {
		t.Fatal("expected nothing submitted")
	}
	if texts := sentTexts(api); len(texts) != 1 || texts[0] != textNoURL {
		t.Fatalf("unexpected replies %v", texts)
	}
}

func TestHandleQueueFullRepliesBusy(t *testing.T) {
	submitter := &fakeSubmitter{err: workflow.ErrQueueFull}
	api, poller := newTestPoller(t, submitter, nil)

	poller.Handle(context.Background(), textMessage(1, 42, "https://youtu.be/abc"))

	if texts := sentTexts(api); len(texts) != 1 || texts[0] != pipeline.NoticeQueueFull {
		t.Fatalf("unexpected replies %v", texts)
	}
}

func TestHandleStartMentionsFreeLimit(t *testing.T) {
	api, poller := newTestPoller(t, &fakeSubmitter{}, nil)

	poller.Handle(context.Background(), textMessage(1, 42, "/start@recipe_bot"))

	texts := sentTexts(api)
	if len(texts) != 1 || !strings.Contains(texts[0], "6 бесплатных") {
		t.Fatalf("unexpected welcome %v", texts)
	}
}

func TestHandleBalance(t *testing.T) {
	paidUntil := time.Date(2099, 1, 31, 0, 0, 0, 0, time.UTC)
	reader := fakeQuota{status: quota.Status{
		Record:           quota.Record{UserID: 42, FreeUsed: 2, Balance: 10, PaidUntil: &paidUntil},
		FreeLimit:        6,
		FreeRemaining:    4,
		EffectiveBalance: 10,
		Source:           quota.SourceBalance,
	}}
	api, poller := newTestPoller(t, &fakeSubmitter{}, reader)

	poller.Handle(context.Background(), textMessage(1, 42, "/balance"))

	texts := sentTexts(api)
	if len(texts) != 1 {
		t.Fatalf("expected one reply, got %v", texts)
	}
	for _, want := range []string{"4 из 6", "Баланс: 10", "2099-01-31"} {
		if !strings.Contains(texts[0], want) {
			t.Fatalf("balance reply %q missing %q", texts[0], want)
		}
	}
}

func TestHandleBalanceError(t *testing.T) {
	api, poller := newTestPoller(t, &fakeSubmitter{}, fakeQuota{err: errors.New("db down")})
	poller.Handle(context.Background(), textMessage(1, 42, "/balance"))
	if texts := sentTexts(api); len(texts) != 1 || texts[0] != textNoStatus {
		t.Fatalf("unexpected replies %v", texts)
	}
}

func TestHandleIgnoresBotsAndEmptyUpdates(t *testing.T) {
	submitter := &fakeSubmitter{}
	api, poller := newTestPoller(t, submitter, nil)

	botMsg := textMessage(1, 42, "https://youtu.be/abc")
	botMsg.Message.From.IsBot = true
	poller.Handle(context.Background(), botMsg)
	poller.Handle(context.Background(), Update{UpdateID: 2})

	if len(submitter.requests) != 0 || len(api.recorded()) != 0 {
		t.Fatalf("expected bot and empty updates to be ignored")
	}
}

func TestFormatBalanceUnlimitedAndExpired(t *testing.T) {
	if got := formatBalance(quota.Status{Unlimited: true}, time.Now()); !strings.Contains(got, "безлимит") {
		t.Fatalf("unexpected unlimited text %q", got)
	}
	expired := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	got := formatBalance(quota.Status{Record: quota.Record{Balance: 5, PaidUntil: &expired}, FreeLimit: 6}, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC))
	if !strings.Contains(got, "закончилась") || !strings.Contains(got, "Баланс: 0") {
		t.Fatalf("unexpected expired text %q", got)
	}
}

func TestParseCommand(t *testing.T) {
	cases := map[string]string{
		"/start":              "start",
		"/Balance extra":      "balance",
		"/start@recipe_bot":   "start",
		"/help@bot something": "help",
	}
	for input, want := range cases {
		got, ok := parseCommand(input)
		if !ok || got != want {
			t.Fatalf("parseCommand(%q) = %q, %v", input, got, ok)
		}
	}
	if _, ok := parseCommand("https://youtu.be/x"); ok {
		t.Fatal("expected url not to parse as command")
	}
}

func TestRunAdvancesOffsetAndStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	submitter := &fakeSubmitter{}
	var polls int
	var mu sync.Mutex
	var offsets []any
	api, client := newFakeAPI(t, func(call apiCall) (int, string) {
		if call.Method != "getUpdates" {
			return http.StatusOK, `{"ok":true,"result":{"message_id":1,"chat":{"id":1}}}`
		}
		mu.Lock()
		defer mu.Unlock()
		polls++
		offsets = append(offsets, call.JSON["offset"])
		switch polls {
		case 1:
			return http.StatusOK, `{"ok":true,"result":[{"update_id":5,"message":{"message_id":1,"from":{"id":7},"chat":{"id":7},"text":"https://vm.tiktok.com/ZM123/"}}]}`
		case 2:
			return http.StatusBadGateway, `{"ok":false,"error_code":502,"description":"Bad Gateway"}`
		default:
			cancel()
			return http.StatusOK, `{"ok":true,"result":[]}`
		}
	})
	cfg := config.Default()
	cfg.Telegram.PollTimeoutSeconds = 1
	poller := NewPoller(client, submitter, nil, &cfg, nil)

	done := make(chan error, 1)
	go func() { done <- poller.Run(ctx) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("poller did not stop")
	}

	if poller.Offset() != 6 {
		t.Fatalf("expected offset 6, got %d", poller.Offset())
	}
	if len(submitter.requests) != 1 || submitter.requests[0].URL != "https://vm.tiktok.com/ZM123/" {
		t.Fatalf("unexpected requests %+v", submitter.requests)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(offsets) < 3 || offsets[1] != float64(6) {
		t.Fatalf("expected second poll to ask for offset 6, got %v (methods %v)", offsets, api.methods())
	}
}
