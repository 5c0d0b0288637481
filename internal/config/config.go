package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	ScratchDir         string `toml:"scratch_dir"`
	DataDir            string `toml:"data_dir"`
	LogDir             string `toml:"log_dir"`
	ScratchMaxAgeHours int    `toml:"scratch_max_age_hours"`
}

// Telegram contains Bot API transport settings.
type Telegram struct {
	Token              string `toml:"token"`
	APIBaseURL         string `toml:"api_base_url"`
	PollTimeoutSeconds int    `toml:"poll_timeout_seconds"`
	MaxUploadMB        int    `toml:"max_upload_mb"`
	MaxMessageRunes    int    `toml:"max_message_runes"`
}

// LLM contains chat-completion settings used by the recipe synthesizer.
type LLM struct {
	APIKey            string  `toml:"api_key"`
	BaseURL           string  `toml:"base_url"`
	Model             string  `toml:"model"`
	Temperature       float64 `toml:"temperature"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
	RequestsPerMinute int     `toml:"requests_per_minute"`
}

// Transcription contains speech-to-text settings.
type Transcription struct {
	Enabled           bool   `toml:"enabled"`
	APIKey            string `toml:"api_key"`
	BaseURL           string `toml:"base_url"`
	Model             string `toml:"model"`
	Language          string `toml:"language"`
	TimeoutSeconds    int    `toml:"timeout_seconds"`
	RequestsPerMinute int    `toml:"requests_per_minute"`
}

// Download contains yt-dlp acquisition settings.
type Download struct {
	Binary              string   `toml:"binary"`
	Formats             []string `toml:"formats"`
	MergeOutputFormat   string   `toml:"merge_output_format"`
	TimeoutSeconds      int      `toml:"timeout_seconds"`
	ProbeTimeoutSeconds int      `toml:"probe_timeout_seconds"`
	MaxDurationSeconds  int      `toml:"max_duration_seconds"`
	DurationPolicy      string   `toml:"duration_policy"`
}

// Cookies contains per-platform cookie jars in Netscape format. Content wins
// over a file path when both are set.
type Cookies struct {
	InstagramContent string `toml:"instagram_content"`
	InstagramFile    string `toml:"instagram_file"`
	TikTokContent    string `toml:"tiktok_content"`
	TikTokFile       string `toml:"tiktok_file"`
	YouTubeContent   string `toml:"youtube_content"`
	YouTubeFile      string `toml:"youtube_file"`
}

// Normalize contains ffmpeg transcoding settings.
type Normalize struct {
	FFmpegBinary        string `toml:"ffmpeg_binary"`
	FFprobeBinary       string `toml:"ffprobe_binary"`
	TargetEdge          int    `toml:"target_edge"`
	VideoCodec          string `toml:"video_codec"`
	Preset              string `toml:"preset"`
	CRF                 int    `toml:"crf"`
	AudioCodec          string `toml:"audio_codec"`
	AudioBitrate        string `toml:"audio_bitrate"`
	TimeoutSeconds      int    `toml:"timeout_seconds"`
	AudioTimeoutSeconds int    `toml:"audio_timeout_seconds"`
}

// Quota contains usage ledger settings.
type Quota struct {
	Backend            string  `toml:"backend"`
	PostgresDSN        string  `toml:"postgres_dsn"`
	FreeLimit          int     `toml:"free_limit"`
	UnlimitedIDs       []int64 `toml:"unlimited_ids"`
	PackageAmount      int     `toml:"package_amount"`
	SubscriptionAmount int     `toml:"subscription_amount"`
	SubscriptionDays   int     `toml:"subscription_days"`
}

// Pipeline contains worker pool and guard settings.
type Pipeline struct {
	Workers            int `toml:"workers"`
	QueueSize          int `toml:"queue_size"`
	LockTimeoutSeconds int `toml:"lock_timeout_seconds"`
}

// Cache contains recipe cache settings.
type Cache struct {
	Enabled bool `toml:"enabled"`
	Size    int  `toml:"size"`
}

// Server contains the health/metrics listener settings.
type Server struct {
	Bind string `toml:"bind"`

	// Token, when set, guards /status with a bearer token. /health and
	// /metrics stay open.
	Token string `toml:"token"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for recipebot.
//
// Configuration sections by subsystem:
//   - Paths: scratch, data and log directories
//   - Telegram: Bot API credentials and transport limits
//   - LLM: recipe synthesis model
//   - Transcription: speech-to-text model
//   - Download: yt-dlp format ladder and duration policy
//   - Cookies: per-platform cookie jars
//   - Normalize: ffmpeg output profile
//   - Quota: ledger backend and tariffs
//   - Pipeline: worker pool and per-requester lock
//   - Cache: recipe cache keyed by URL
//   - Server: health and metrics listener
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Telegram      Telegram      `toml:"telegram"`
	LLM           LLM           `toml:"llm"`
	Transcription Transcription `toml:"transcription"`
	Download      Download      `toml:"download"`
	Cookies       Cookies       `toml:"cookies"`
	Normalize     Normalize     `toml:"normalize"`
	Quota         Quota         `toml:"quota"`
	Pipeline      Pipeline      `toml:"pipeline"`
	Cache         Cache         `toml:"cache"`
	Server        Server        `toml:"server"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("recipebot.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.ScratchDir, c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LockPath is the single-instance lock file for the daemon.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "recipebot.lock")
}

// QuotaDBPath is the sqlite ledger location.
func (c *Config) QuotaDBPath() string {
	return filepath.Join(c.Paths.DataDir, "recipebot.db")
}

// IsUnlimited reports whether requesterID bypasses the quota.
func (c *Config) IsUnlimited(requesterID int64) bool {
	return slices.Contains(c.Quota.UnlimitedIDs, requesterID)
}

// MaxDuration is the post-download duration ceiling.
func (c *Config) MaxDuration() time.Duration {
	return seconds(c.Download.MaxDurationSeconds)
}

// LockTimeout is the staleness threshold for per-requester locks.
func (c *Config) LockTimeout() time.Duration {
	return seconds(c.Pipeline.LockTimeoutSeconds)
}

// ScratchMaxAge is the age after which leftover scratch directories are removed.
func (c *Config) ScratchMaxAge() time.Duration {
	return time.Duration(c.Paths.ScratchMaxAgeHours) * time.Hour
}

// MaxUploadBytes is the transport ceiling for a single video attachment.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Telegram.MaxUploadMB) * 1024 * 1024
}

// StageTimeouts groups the independent per-stage deadlines.
type StageTimeouts struct {
	Probe      time.Duration
	Fetch      time.Duration
	Transcode  time.Duration
	Audio      time.Duration
	Transcribe time.Duration
	Synthesize time.Duration
}

// Timeouts returns the per-stage deadlines.
func (c *Config) Timeouts() StageTimeouts {
	return StageTimeouts{
		Probe:      seconds(c.Download.ProbeTimeoutSeconds),
		Fetch:      seconds(c.Download.TimeoutSeconds),
		Transcode:  seconds(c.Normalize.TimeoutSeconds),
		Audio:      seconds(c.Normalize.AudioTimeoutSeconds),
		Transcribe: seconds(c.Transcription.TimeoutSeconds),
		Synthesize: seconds(c.LLM.TimeoutSeconds),
	}
}

// RequireTelegram verifies the settings needed by the polling daemon.
func (c *Config) RequireTelegram() error {
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return fmt.Errorf("telegram.token is required. Set TELEGRAM_TOKEN env var or edit %s (create with 'recipebot config init')", displayConfigPath())
	}
	return nil
}

// RequireLLM verifies the settings needed to synthesize recipes.
func (c *Config) RequireLLM() error {
	if strings.TrimSpace(c.LLM.APIKey) == "" {
		return fmt.Errorf("llm.api_key is required. Set OPENAI_API_KEY env var or edit %s", displayConfigPath())
	}
	return nil
}

func displayConfigPath() string {
	path, err := DefaultConfigPath()
	if err != nil {
		return defaultConfigPath
	}
	return path
}

func seconds(value int) time.Duration {
	return time.Duration(value) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
