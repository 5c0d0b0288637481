package normalize

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"recipebot/internal/config"
	"recipebot/internal/services"
)

// ErrEmptyOutput reports that ffmpeg exited cleanly but wrote nothing.
var ErrEmptyOutput = errors.New("ffmpeg produced empty output")

// Runner executes ffmpeg and returns combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Profile is the canonical output encoding.
type Profile struct {
	TargetEdge   int
	VideoCodec   string
	Preset       string
	CRF          int
	AudioCodec   string
	AudioBitrate string
}

// ProfileFromConfig maps the [normalize] section.
func ProfileFromConfig(cfg config.Normalize) Profile {
	return Profile{
		TargetEdge:   cfg.TargetEdge,
		VideoCodec:   cfg.VideoCodec,
		Preset:       cfg.Preset,
		CRF:          cfg.CRF,
		AudioCodec:   cfg.AudioCodec,
		AudioBitrate: cfg.AudioBitrate,
	}
}

// Normalizer wraps the ffmpeg binary.
type Normalizer struct {
	binary  string
	profile Profile
	run     Runner
}

// New returns a Normalizer. An empty binary means "ffmpeg" on PATH.
func New(binary string, profile Profile) *Normalizer {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	return &Normalizer{binary: binary, profile: profile, run: defaultRunner}
}

// WithRunner overrides command execution (tests).
func (n *Normalizer) WithRunner(run Runner) *Normalizer {
	if run != nil {
		n.run = run
	}
	return n
}

// ScaleFilter scales the longer edge to edge pixels, keeps the aspect ratio
// with an even shorter edge, and resets the sample aspect ratio.
func ScaleFilter(edge int) string {
	e := strconv.Itoa(edge)
	return fmt.Sprintf("scale='if(gt(iw,ih),%s,-2)':'if(gt(iw,ih),-2,%s)',setsar=1", e, e)
}

// VideoArgs builds the transcode argument list.
func (n *Normalizer) VideoArgs(source, dest string) []string {
	return []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", source,
		"-vf", ScaleFilter(n.profile.TargetEdge),
		"-c:v", n.profile.VideoCodec,
		"-preset", n.profile.Preset,
		"-crf", strconv.Itoa(n.profile.CRF),
		"-c:a", n.profile.AudioCodec,
		"-b:a", n.profile.AudioBitrate,
		"-movflags", "+faststart",
		dest,
	}
}

// AudioArgs builds the mono 16 kHz PCM extraction argument list.
func AudioArgs(source, dest string) []string {
	return []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", source,
		"-vn",
		"-sn",
		"-dn",
		"-acodec", "pcm_s16le",
		"-ar", "16000",
		"-ac", "1",
		dest,
	}
}

// Normalize transcodes assetPath next to itself and returns the new path.
// Any failure removes the partial output.
func (n *Normalizer) Normalize(ctx context.Context, assetPath string) (string, error) {
	dest := siblingPath(assetPath, ".normalized.mp4")
	if err := n.exec(ctx, n.VideoArgs(assetPath, dest), dest); err != nil {
		return "", services.WrapCall(ctx, services.ErrExternalTool, "normalize", "transcode", "ffmpeg transcode failed", err)
	}
	return dest, nil
}

// ExtractAudio writes a WAV track next to assetPath. A missing or empty
// output is reported as ErrEmptyOutput; callers treat any error as "no audio".
func (n *Normalizer) ExtractAudio(ctx context.Context, assetPath string) (string, error) {
	dest := siblingPath(assetPath, ".wav")
	if err := n.exec(ctx, AudioArgs(assetPath, dest), dest); err != nil {
		return "", services.WrapCall(ctx, services.ErrExternalTool, "normalize", "extract audio", "ffmpeg audio extraction failed", err)
	}
	return dest, nil
}

func (n *Normalizer) exec(ctx context.Context, args []string, dest string) error {
	output, err := n.run(ctx, n.binary, args...)
	if err != nil {
		_ = os.Remove(dest)
		if detail := strings.TrimSpace(string(output)); detail != "" {
			return fmt.Errorf("%w: %s", err, detail)
		}
		return err
	}
	info, statErr := os.Stat(dest)
	if statErr != nil || info.Size() == 0 {
		_ = os.Remove(dest)
		return ErrEmptyOutput
	}
	return nil
}

func siblingPath(assetPath, suffix string) string {
	base := strings.TrimSuffix(filepath.Base(assetPath), filepath.Ext(assetPath))
	return filepath.Join(filepath.Dir(assetPath), base+suffix)
}

func defaultRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	return cmd.CombinedOutput()
}
