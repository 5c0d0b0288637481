package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTelegram()
	c.normalizeLLM()
	c.normalizeTranscription()
	c.normalizeDownload()
	if err := c.normalizeCookies(); err != nil {
		return err
	}
	c.normalizeMedia()
	if err := c.normalizeQuota(); err != nil {
		return err
	}
	c.Server.Bind = strings.TrimSpace(c.Server.Bind)
	c.Server.Token = strings.TrimSpace(c.Server.Token)
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.ScratchDir) == "" {
		c.Paths.ScratchDir = defaultScratchDir
	}
	if c.Paths.ScratchDir, err = expandPath(c.Paths.ScratchDir); err != nil {
		return fmt.Errorf("paths.scratch_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeTelegram() {
	c.Telegram.Token = strings.TrimSpace(c.Telegram.Token)
	if c.Telegram.Token == "" {
		if value, ok := os.LookupEnv("TELEGRAM_TOKEN"); ok {
			c.Telegram.Token = strings.TrimSpace(value)
		}
	}
	c.Telegram.APIBaseURL = strings.TrimRight(strings.TrimSpace(c.Telegram.APIBaseURL), "/")
	if c.Telegram.APIBaseURL == "" {
		c.Telegram.APIBaseURL = defaultTelegramAPIBaseURL
	}
}

func (c *Config) normalizeLLM() {
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		if value, ok := os.LookupEnv("OPENAI_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		}
	}
	c.LLM.BaseURL = strings.TrimRight(strings.TrimSpace(c.LLM.BaseURL), "/")
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultOpenAIBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
}

// Transcription falls back to [llm] credentials since both talk to the same
// provider by default.
func (c *Config) normalizeTranscription() {
	c.Transcription.APIKey = strings.TrimSpace(c.Transcription.APIKey)
	if c.Transcription.APIKey == "" {
		c.Transcription.APIKey = c.LLM.APIKey
	}
	c.Transcription.BaseURL = strings.TrimRight(strings.TrimSpace(c.Transcription.BaseURL), "/")
	if c.Transcription.BaseURL == "" {
		c.Transcription.BaseURL = c.LLM.BaseURL
	}
	c.Transcription.Model = strings.TrimSpace(c.Transcription.Model)
	if c.Transcription.Model == "" {
		c.Transcription.Model = defaultTranscriptionModel
	}
	c.Transcription.Language = strings.ToLower(strings.TrimSpace(c.Transcription.Language))
	if c.Transcription.Language == "" {
		c.Transcription.Language = defaultTranscriptionLanguage
	}
}

func (c *Config) normalizeDownload() {
	c.Download.Binary = strings.TrimSpace(c.Download.Binary)
	if c.Download.Binary == "" {
		c.Download.Binary = defaultDownloadBinary
	}
	formats := make([]string, 0, len(c.Download.Formats))
	for _, format := range c.Download.Formats {
		if trimmed := strings.TrimSpace(format); trimmed != "" {
			formats = append(formats, trimmed)
		}
	}
	if len(formats) == 0 {
		formats = append(formats, DefaultFormats...)
	}
	c.Download.Formats = formats
	c.Download.MergeOutputFormat = strings.TrimSpace(c.Download.MergeOutputFormat)
	if c.Download.MergeOutputFormat == "" {
		c.Download.MergeOutputFormat = defaultMergeOutputFormat
	}
	c.Download.DurationPolicy = strings.ToLower(strings.TrimSpace(c.Download.DurationPolicy))
	if c.Download.DurationPolicy == "" {
		c.Download.DurationPolicy = DurationPolicyPostDownload
	}
}

func (c *Config) normalizeCookies() error {
	lookup := func(field *string, env string) {
		if strings.TrimSpace(*field) != "" {
			return
		}
		if value, ok := os.LookupEnv(env); ok {
			*field = value
		}
	}
	lookup(&c.Cookies.InstagramContent, "IG_COOKIES_CONTENT")
	lookup(&c.Cookies.TikTokContent, "TT_COOKIES_CONTENT")
	lookup(&c.Cookies.YouTubeContent, "YT_COOKIES_CONTENT")

	var err error
	if c.Cookies.InstagramFile, err = expandPath(strings.TrimSpace(c.Cookies.InstagramFile)); err != nil {
		return fmt.Errorf("cookies.instagram_file: %w", err)
	}
	if c.Cookies.TikTokFile, err = expandPath(strings.TrimSpace(c.Cookies.TikTokFile)); err != nil {
		return fmt.Errorf("cookies.tiktok_file: %w", err)
	}
	if c.Cookies.YouTubeFile, err = expandPath(strings.TrimSpace(c.Cookies.YouTubeFile)); err != nil {
		return fmt.Errorf("cookies.youtube_file: %w", err)
	}
	return nil
}

func (c *Config) normalizeMedia() {
	c.Normalize.FFmpegBinary = strings.TrimSpace(c.Normalize.FFmpegBinary)
	if c.Normalize.FFmpegBinary == "" {
		c.Normalize.FFmpegBinary = defaultFFmpegBinary
	}
	c.Normalize.FFprobeBinary = strings.TrimSpace(c.Normalize.FFprobeBinary)
	if c.Normalize.FFprobeBinary == "" {
		c.Normalize.FFprobeBinary = defaultFFprobeBinary
	}
	if strings.TrimSpace(c.Normalize.VideoCodec) == "" {
		c.Normalize.VideoCodec = defaultVideoCodec
	}
	if strings.TrimSpace(c.Normalize.Preset) == "" {
		c.Normalize.Preset = defaultPreset
	}
	if strings.TrimSpace(c.Normalize.AudioCodec) == "" {
		c.Normalize.AudioCodec = defaultAudioCodec
	}
	if strings.TrimSpace(c.Normalize.AudioBitrate) == "" {
		c.Normalize.AudioBitrate = defaultAudioBitrate
	}
}

func (c *Config) normalizeQuota() error {
	c.Quota.Backend = strings.ToLower(strings.TrimSpace(c.Quota.Backend))
	if c.Quota.Backend == "" {
		c.Quota.Backend = QuotaBackendSQLite
	}
	c.Quota.PostgresDSN = strings.TrimSpace(c.Quota.PostgresDSN)
	if c.Quota.PostgresDSN == "" {
		if value, ok := os.LookupEnv("DATABASE_URL"); ok {
			c.Quota.PostgresDSN = strings.TrimSpace(value)
		}
	}
	if value, ok := os.LookupEnv("RECIPEBOT_ADMIN_IDS"); ok {
		for _, part := range strings.Split(value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				return fmt.Errorf("RECIPEBOT_ADMIN_IDS: invalid id %q", part)
			}
			if !slices.Contains(c.Quota.UnlimitedIDs, id) {
				c.Quota.UnlimitedIDs = append(c.Quota.UnlimitedIDs, id)
			}
		}
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
