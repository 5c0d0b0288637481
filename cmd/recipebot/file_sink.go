package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sync"

	"recipebot/internal/fileutil"
	"recipebot/internal/pipeline"
)

// fileSink delivers pipeline results into a local directory. Notices are
// echoed to out.
type fileSink struct {
	dir string
	out io.Writer

	mu        sync.Mutex
	nextID    int64
	videoPath string
	notices   []string
}

func newFileSink(dir string, out io.Writer) *fileSink {
	return &fileSink{dir: dir, out: out}
}

func (s *fileSink) Notify(_ context.Context, _ pipeline.Request, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notices = append(s.notices, text)
	_, err := fmt.Fprintln(s.out, text)
	return err
}

func (s *fileSink) SendVideo(_ context.Context, _ pipeline.Request, videoPath string) (int64, error) {
	dst, err := fileutil.ExportFile(videoPath, s.dir, "video"+filepath.Ext(videoPath))
	if err != nil {
		return 0, fmt.Errorf("export video: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.videoPath = dst
	s.nextID++
	return s.nextID, nil
}

func (s *fileSink) SendRecipe(_ context.Context, _ pipeline.Request, _ int64, markdown string) error {
	return fileutil.WriteAtomic(filepath.Join(s.dir, "recipe.md"), []byte(markdown), 0o644)
}

func (s *fileSink) video() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.videoPath
}
