// Package credentials resolves per-platform cookie jars for restricted
// content. Stores are pure lookups; materialized jars live in the request's
// scratch directory and are removed by the caller.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"recipebot/internal/config"
	"recipebot/internal/platform"
)

// Store resolves cookie material for a platform. ok is false when nothing is
// configured, which means anonymous fetching.
type Store interface {
	Cookies(ctx context.Context, target platform.Target) (jar Jar, ok bool, err error)
}

// Jar is Netscape-format cookie content, either inline or on disk.
type Jar struct {
	Content string
	Path    string
}

// Materialize writes the jar to dir and returns the file path plus a cleanup
// func. File-backed jars are copied so yt-dlp never rewrites the operator's
// original file.
func (j Jar) Materialize(dir string) (string, func(), error) {
	content := j.Content
	if strings.TrimSpace(content) == "" && j.Path != "" {
		data, err := os.ReadFile(j.Path)
		if err != nil {
			return "", func() {}, fmt.Errorf("read cookie file: %w", err)
		}
		content = string(data)
	}
	if strings.TrimSpace(content) == "" {
		return "", func() {}, errors.New("cookie jar is empty")
	}
	file, err := os.CreateTemp(dir, "cookies-*.txt")
	if err != nil {
		return "", func() {}, fmt.Errorf("create cookie file: %w", err)
	}
	path := file.Name()
	cleanup := func() { _ = os.Remove(path) }
	if _, err := file.WriteString(content); err != nil {
		file.Close()
		cleanup()
		return "", func() {}, fmt.Errorf("write cookie file: %w", err)
	}
	if err := file.Close(); err != nil {
		cleanup()
		return "", func() {}, fmt.Errorf("close cookie file: %w", err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		cleanup()
		return "", func() {}, fmt.Errorf("chmod cookie file: %w", err)
	}
	return filepath.Clean(path), cleanup, nil
}

// StaticStore serves jars fixed at startup.
type StaticStore struct {
	jars map[platform.Target]Jar
}

// NewStaticStore builds a store from explicit jars.
func NewStaticStore(jars map[platform.Target]Jar) *StaticStore {
	copied := make(map[platform.Target]Jar, len(jars))
	for target, jar := range jars {
		if strings.TrimSpace(jar.Content) == "" && strings.TrimSpace(jar.Path) == "" {
			continue
		}
		copied[target] = jar
	}
	return &StaticStore{jars: copied}
}

// FromConfig builds a store from the [cookies] section.
func FromConfig(cfg config.Cookies) *StaticStore {
	return NewStaticStore(map[platform.Target]Jar{
		platform.Instagram: {Content: cfg.InstagramContent, Path: cfg.InstagramFile},
		platform.TikTok:    {Content: cfg.TikTokContent, Path: cfg.TikTokFile},
		platform.YouTube:   {Content: cfg.YouTubeContent, Path: cfg.YouTubeFile},
	})
}

// Cookies implements Store.
func (s *StaticStore) Cookies(_ context.Context, target platform.Target) (Jar, bool, error) {
	if s == nil {
		return Jar{}, false, nil
	}
	jar, ok := s.jars[target]
	return jar, ok, nil
}

// Configured lists targets with a jar, for status output.
func (s *StaticStore) Configured() []platform.Target {
	var out []platform.Target
	for _, target := range platform.All() {
		if _, ok := s.jars[target]; ok {
			out = append(out, target)
		}
	}
	return out
}
