package transcribe_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"recipebot/internal/services/transcribe"
)

func writeAudio(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audio.wav")
	if err := os.WriteFile(path, []byte("RIFF....WAVE"), 0o644); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	return path
}

func TestTranscribeSendsMultipartForm(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse form: %v", err)
			return
		}
		if r.FormValue("model") != "whisper-1" || r.FormValue("language") != "ru" || r.FormValue("response_format") != "text" {
			t.Errorf("unexpected form values %v", r.MultipartForm.Value)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("missing file: %v", err)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		if header.Filename != "audio.wav" || !strings.HasPrefix(string(data), "RIFF") {
			t.Errorf("unexpected upload %s %q", header.Filename, data)
		}
		_, _ = w.Write([]byte("  Натрите кабачок и смешайте с яйцом.\n"))
	}))
	defer server.Close()

	client := transcribe.NewClient(transcribe.Config{APIKey: "test", BaseURL: server.URL})
	text, err := client.Transcribe(context.Background(), writeAudio(t))
	if err != nil {
		t.Fatalf("Transcribe returned error: %v", err)
	}
	if text != "Натрите кабачок и смешайте с яйцом." {
		t.Fatalf("unexpected transcript %q", text)
	}
}

func TestTranscribeReportsHTTPFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := transcribe.NewClient(transcribe.Config{APIKey: "test", BaseURL: server.URL})
	text, err := client.Transcribe(context.Background(), writeAudio(t))
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("expected http 429 error, got %v", err)
	}
	if text != "" {
		t.Fatalf("expected empty text on failure, got %q", text)
	}
}

func TestTranscribeMissingFile(t *testing.T) {
	client := transcribe.NewClient(transcribe.Config{APIKey: "test", BaseURL: "http://127.0.0.1:1"})
	if _, err := client.Transcribe(context.Background(), filepath.Join(t.TempDir(), "missing.wav")); err == nil {
		t.Fatal("expected error for missing audio")
	}
}
