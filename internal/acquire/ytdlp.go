package acquire

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// CommandRunner executes name with args and returns combined output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// YTDLP drives the yt-dlp binary.
type YTDLP struct {
	binary string
	run    CommandRunner
}

// NewYTDLP returns a yt-dlp fetcher. An empty binary means "yt-dlp" on PATH.
func NewYTDLP(binary string) *YTDLP {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "yt-dlp"
	}
	return &YTDLP{binary: binary, run: defaultCommandRunner}
}

// WithCommandRunner overrides command execution (tests).
func (y *YTDLP) WithCommandRunner(run CommandRunner) *YTDLP {
	if run != nil {
		y.run = run
	}
	return y
}

type infoJSON struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Duration    float64 `json:"duration"`
	WebpageURL  string  `json:"webpage_url"`
	Filename    string  `json:"_filename"`
}

func (i infoJSON) metadata() Metadata {
	return Metadata{
		ID:              i.ID,
		Title:           i.Title,
		Description:     i.Description,
		DurationSeconds: i.Duration,
		WebpageURL:      i.WebpageURL,
	}
}

// Fetch implements Fetcher. The info JSON is written next to the media and
// read back after the tool exits so the final post-merge name is used.
func (y *YTDLP) Fetch(ctx context.Context, attempt Attempt) (Metadata, error) {
	args := []string{
		"--no-playlist",
		"--no-progress",
		"--no-warnings",
		"-f", attempt.Format,
		"-o", filepath.Join(attempt.OutputDir, "%(id)s.%(ext)s"),
		"--write-info-json",
	}
	if attempt.MergeFormat != "" {
		args = append(args, "--merge-output-format", attempt.MergeFormat)
	}
	if attempt.CookiesPath != "" {
		args = append(args, "--cookies", attempt.CookiesPath)
	}
	args = append(args, "--", attempt.URL)

	output, err := y.run(ctx, y.binary, args...)
	if err != nil {
		return Metadata{}, toolError(err, output)
	}

	info, mediaPath, err := collectDownload(attempt.OutputDir)
	if err != nil {
		return Metadata{}, err
	}
	meta := info.metadata()
	meta.FilePath = mediaPath
	return meta, nil
}

// Probe implements Prober.
func (y *YTDLP) Probe(ctx context.Context, attempt Attempt) (Metadata, error) {
	args := []string{"--no-playlist", "--no-warnings", "--skip-download", "--dump-single-json"}
	if attempt.CookiesPath != "" {
		args = append(args, "--cookies", attempt.CookiesPath)
	}
	args = append(args, "--", attempt.URL)

	output, err := y.run(ctx, y.binary, args...)
	if err != nil {
		return Metadata{}, toolError(err, output)
	}
	var info infoJSON
	if err := json.Unmarshal(lastJSONLine(output), &info); err != nil {
		return Metadata{}, fmt.Errorf("parse yt-dlp metadata: %w", err)
	}
	return info.metadata(), nil
}

// collectDownload finds the media file and its info JSON in dir.
func collectDownload(dir string) (infoJSON, string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return infoJSON{}, "", fmt.Errorf("read download dir: %w", err)
	}
	var (
		info      infoJSON
		mediaPath string
	)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		path := filepath.Join(dir, name)
		switch {
		case strings.HasSuffix(name, ".info.json"):
			data, err := os.ReadFile(path)
			if err != nil {
				return infoJSON{}, "", fmt.Errorf("read info json: %w", err)
			}
			if err := json.Unmarshal(data, &info); err != nil {
				return infoJSON{}, "", fmt.Errorf("parse info json: %w", err)
			}
		case strings.HasSuffix(name, ".part"), strings.HasSuffix(name, ".ytdl"), strings.HasPrefix(name, "cookies-"):
		default:
			if mediaPath == "" || strings.HasSuffix(name, ".mp4") {
				mediaPath = path
			}
		}
	}
	if mediaPath == "" {
		return infoJSON{}, "", errors.New("yt-dlp reported success but produced no media file")
	}
	return info, mediaPath, nil
}

func toolError(err error, output []byte) error {
	if line := lastErrorLine(string(output)); line != "" {
		return fmt.Errorf("%s: %w", line, err)
	}
	return err
}

func lastJSONLine(output []byte) []byte {
	lines := strings.Split(strings.TrimSpace(string(output)), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if strings.HasPrefix(line, "{") {
			return []byte(line)
		}
	}
	return output
}

func defaultCommandRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	return cmd.CombinedOutput()
}
