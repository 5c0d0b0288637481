package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"recipebot/internal/pipeline"
	"recipebot/internal/recipe"
	"recipebot/internal/testsupport"
)

func TestProcessRequiresLLMKey(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, []string{"process", "https://youtu.be/abc", "--out", t.TempDir()}, env.configPath)
	if err == nil {
		t.Fatal("expected missing api key to fail")
	}
}

func TestProcessUnsupportedURLReportsNotice(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithStubbedBinaries())
	writeTestConfig(t, env.configPath, env.cfg, "test-key")

	out, _, err := runCLI(t, []string{"process", "https://example.com/video", "--out", t.TempDir()}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), string(pipeline.KindUnsupportedURL)) {
		t.Fatalf("expected unsupported url failure, got %v", err)
	}
	requireContains(t, out, "Outcome:  "+string(pipeline.KindUnsupportedURL))
}

func TestFileSinkWritesResults(t *testing.T) {
	dir := t.TempDir()
	src := testsupport.WriteMedia(t, filepath.Join(t.TempDir(), "normalized.mp4"), 9)
	var out bytes.Buffer
	sink := newFileSink(dir, &out)
	ctx := context.Background()
	req := pipeline.Request{URL: "https://youtu.be/abc"}

	if err := sink.Notify(ctx, req, "🏃 Скачиваю…"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	id, err := sink.SendVideo(ctx, req, src)
	if err != nil || id != 1 {
		t.Fatalf("SendVideo = %d, %v", id, err)
	}
	if err := sink.SendRecipe(ctx, req, id, "*Борщ*"); err != nil {
		t.Fatalf("SendRecipe: %v", err)
	}

	video, err := os.ReadFile(filepath.Join(dir, "video.mp4"))
	if err != nil || string(video) != "recipebot" {
		t.Fatalf("unexpected exported video %q, %v", video, err)
	}
	if sink.video() != filepath.Join(dir, "video.mp4") {
		t.Fatalf("unexpected video path %q", sink.video())
	}
	md, err := os.ReadFile(filepath.Join(dir, "recipe.md"))
	if err != nil || string(md) != "*Борщ*" {
		t.Fatalf("unexpected recipe.md %q, %v", md, err)
	}
	requireContains(t, out.String(), "Скачиваю")
}

func TestWriteOutcomeStoresBlocks(t *testing.T) {
	dir := t.TempDir()
	outcome := pipeline.Outcome{
		Kind: pipeline.KindDelivered,
		Blocks: recipe.Blocks{
			Title:       "Борщ",
			Ingredients: []string{"свёкла — 2 шт"},
			Steps:       []string{"Сварить"},
		},
	}
	if err := writeOutcome(dir, outcome); err != nil {
		t.Fatalf("writeOutcome: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "recipe.json"))
	if err != nil {
		t.Fatalf("read recipe.json: %v", err)
	}
	var blocks recipe.Blocks
	if err := json.Unmarshal(data, &blocks); err != nil || blocks.Title != "Борщ" {
		t.Fatalf("unexpected recipe.json %s, %v", data, err)
	}
	if _, err := os.Stat(filepath.Join(dir, "recipe.txt")); err != nil {
		t.Fatalf("expected recipe.txt: %v", err)
	}

	empty := t.TempDir()
	if err := writeOutcome(empty, pipeline.Outcome{Kind: pipeline.KindNoRecipeExtracted}); err != nil {
		t.Fatalf("writeOutcome no recipe: %v", err)
	}
	if entries, _ := os.ReadDir(empty); len(entries) != 0 {
		t.Fatalf("expected no files for empty recipe, got %d", len(entries))
	}
}
