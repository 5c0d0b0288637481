package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func completionServer(t *testing.T, handler func(call int, w http.ResponseWriter, r *http.Request)) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test" {
			t.Errorf("unexpected auth header %q", got)
		}
		handler(int(n), w, r)
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func writeContent(t *testing.T, w http.ResponseWriter, content string) {
	t.Helper()
	payload := map[string]any{
		"choices": []any{
			map[string]any{
				"finish_reason": "stop",
				"message":       map[string]any{"content": content},
			},
		},
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

func TestClientHealthCheck(t *testing.T) {
	server, _ := completionServer(t, func(_ int, w http.ResponseWriter, _ *http.Request) {
		writeContent(t, w, "```json\n{\"ok\":true}\n```")
	})

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
}

func TestClientHealthCheckFailure(t *testing.T) {
	server, _ := completionServer(t, func(_ int, w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key"}}`))
	})

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	err := client.HealthCheck(context.Background())
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 status error, got %v", err)
	}
}

func TestCompleteJSONSendsPromptsInJSONMode(t *testing.T) {
	server, _ := completionServer(t, func(_ int, w http.ResponseWriter, r *http.Request) {
		var req chatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "gpt-4o-mini" || req.ResponseFormat["type"] != "json_object" {
			t.Errorf("unexpected request %+v", req)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" || !strings.Contains(req.Messages[1].Content, "Подпись") {
			t.Errorf("unexpected messages %+v", req.Messages)
		}
		writeContent(t, w, `{"title":"Оладьи"}`)
	})

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL + "/", Model: "gpt-4o-mini"})
	content, err := client.CompleteJSON(context.Background(), "system", "Подпись: оладьи")
	if err != nil {
		t.Fatalf("CompleteJSON returned error: %v", err)
	}
	if content != `{"title":"Оладьи"}` {
		t.Fatalf("unexpected content %q", content)
	}
}

func TestCompleteJSONRequiresKey(t *testing.T) {
	client := NewClient(Config{Model: "demo"})
	if _, err := client.CompleteJSON(context.Background(), "s", "u"); err == nil {
		t.Fatal("expected api key error")
	}
}

func TestClientRetriesOnHTTP429(t *testing.T) {
	server, calls := completionServer(t, func(call int, w http.ResponseWriter, _ *http.Request) {
		if call == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"rate limited"}`))
			return
		}
		writeContent(t, w, `{"ok":true}`)
	})

	var slept []time.Duration
	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"},
		WithSleeper(func(d time.Duration) { slept = append(slept, d) }),
		WithRetryBackoff(0, 10*time.Second),
		WithRetryMaxAttempts(5),
	)
	if _, err := client.CompleteJSON(context.Background(), "s", "u"); err != nil {
		t.Fatalf("CompleteJSON returned error: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 calls, got %d", calls.Load())
	}
	if len(slept) != 1 || slept[0] != time.Second {
		t.Fatalf("expected single sleep of 1s, got %v", slept)
	}
}

func TestClientRetriesOnEmptyContentThenSucceeds(t *testing.T) {
	server, calls := completionServer(t, func(call int, w http.ResponseWriter, _ *http.Request) {
		content := ""
		if call >= 3 {
			content = `{"steps":["mix"]}`
		}
		writeContent(t, w, content)
	})

	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"},
		WithRetryBackoff(0, 0),
		WithSleeper(func(time.Duration) {}),
		WithRetryMaxAttempts(5),
	)
	content, err := client.CompleteJSON(context.Background(), "s", "u")
	if err != nil {
		t.Fatalf("CompleteJSON returned error: %v", err)
	}
	if content != `{"steps":["mix"]}` || calls.Load() != 3 {
		t.Fatalf("unexpected content %q after %d calls", content, calls.Load())
	}
}

func TestClientReportsPersistentEmptyContent(t *testing.T) {
	server, calls := completionServer(t, func(_ int, w http.ResponseWriter, _ *http.Request) {
		writeContent(t, w, "  ")
	})

	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"},
		WithRetryBackoff(0, 0),
		WithSleeper(func(time.Duration) {}),
		WithRetryMaxAttempts(2),
	)
	_, err := client.CompleteJSON(context.Background(), "s", "u")
	if !IsEmptyContent(err) {
		t.Fatalf("expected empty content error, got %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 calls, got %d", calls.Load())
	}
	if IsEmptyContent(errors.New("other")) {
		t.Fatal("plain errors are not empty content")
	}
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	server, calls := completionServer(t, func(_ int, w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})

	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"},
		WithSleeper(func(time.Duration) {}),
		WithRetryMaxAttempts(5),
	)
	if _, err := client.CompleteJSON(context.Background(), "s", "u"); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single call, got %d", calls.Load())
	}
}

func TestPerMinuteLimiter(t *testing.T) {
	if PerMinute(0) != nil {
		t.Fatal("expected nil limiter when disabled")
	}
	limiter := PerMinute(60)
	if limiter == nil || limiter.Burst() != 6 {
		t.Fatalf("unexpected limiter %+v", limiter)
	}
}

func TestDecodeLLMJSON(t *testing.T) {
	type payload struct {
		Title string   `json:"title"`
		Steps []string `json:"steps"`
	}
	cases := map[string]string{
		"plain":          `{"title":"Суп","steps":["варить"]}`,
		"fenced":         "```json\n{\"title\":\"Суп\",\"steps\":[\"варить\"]}\n```",
		"prose":          "Вот рецепт: {\"title\":\"Суп\",\"steps\":[\"варить\"]} Приятного аппетита!",
		"trailing comma": `{"title":"Суп","steps":["варить",],}`,
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			var got payload
			if err := DecodeLLMJSON(input, &got); err != nil {
				t.Fatalf("DecodeLLMJSON: %v", err)
			}
			if got.Title != "Суп" || len(got.Steps) != 1 || got.Steps[0] != "варить" {
				t.Fatalf("unexpected payload %+v", got)
			}
		})
	}

	var got payload
	if err := DecodeLLMJSON("   ", &got); err == nil {
		t.Fatal("expected error for empty payload")
	}
}

func TestLooksLikeJSON(t *testing.T) {
	if !LooksLikeJSON("```json\n{}\n```") || !LooksLikeJSON(" [1]") {
		t.Fatal("expected json detection")
	}
	if LooksLikeJSON("Ингредиенты:\n- сахар") {
		t.Fatal("expected free text not to look like json")
	}
}
