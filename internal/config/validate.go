package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable. Credentials are checked by
// RequireTelegram and RequireLLM so offline commands work without them.
func (c *Config) Validate() error {
	if err := c.validateDownload(); err != nil {
		return err
	}
	if err := c.validateNormalize(); err != nil {
		return err
	}
	if err := c.validateQuota(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateTimeouts(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateDownload() error {
	switch c.Download.DurationPolicy {
	case DurationPolicyPostDownload, DurationPolicyProbeFirst:
	default:
		return fmt.Errorf("download.duration_policy: unsupported value %q (want %q or %q)", c.Download.DurationPolicy, DurationPolicyPostDownload, DurationPolicyProbeFirst)
	}
	if c.Download.MaxDurationSeconds <= 0 {
		return errors.New("download.max_duration_seconds must be positive")
	}
	return nil
}

func (c *Config) validateNormalize() error {
	if c.Normalize.TargetEdge <= 0 || c.Normalize.TargetEdge%2 != 0 {
		return errors.New("normalize.target_edge must be a positive even number")
	}
	if c.Normalize.CRF < 0 || c.Normalize.CRF > 51 {
		return errors.New("normalize.crf must be between 0 and 51")
	}
	return nil
}

func (c *Config) validateQuota() error {
	switch c.Quota.Backend {
	case QuotaBackendSQLite:
	case QuotaBackendPostgres:
		if c.Quota.PostgresDSN == "" {
			return errors.New("quota.postgres_dsn must be set when quota.backend is postgres (or set DATABASE_URL)")
		}
	default:
		return fmt.Errorf("quota.backend: unsupported value %q", c.Quota.Backend)
	}
	if c.Quota.FreeLimit < 0 {
		return errors.New("quota.free_limit must be non-negative")
	}
	if c.Quota.PackageAmount <= 0 || c.Quota.SubscriptionAmount <= 0 {
		return errors.New("quota package and subscription amounts must be positive")
	}
	if c.Quota.SubscriptionDays <= 0 {
		return errors.New("quota.subscription_days must be positive")
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.Workers <= 0 {
		return errors.New("pipeline.workers must be positive")
	}
	if c.Pipeline.QueueSize <= 0 {
		return errors.New("pipeline.queue_size must be positive")
	}
	if c.Pipeline.LockTimeoutSeconds <= 0 {
		return errors.New("pipeline.lock_timeout_seconds must be positive")
	}
	if c.Cache.Enabled && c.Cache.Size <= 0 {
		return errors.New("cache.size must be positive when cache.enabled is true")
	}
	if c.Telegram.MaxMessageRunes <= 0 || c.Telegram.MaxUploadMB <= 0 {
		return errors.New("telegram message and upload limits must be positive")
	}
	return nil
}

func (c *Config) validateTimeouts() error {
	checks := []struct {
		name  string
		value int
	}{
		{"download.timeout_seconds", c.Download.TimeoutSeconds},
		{"download.probe_timeout_seconds", c.Download.ProbeTimeoutSeconds},
		{"normalize.timeout_seconds", c.Normalize.TimeoutSeconds},
		{"normalize.audio_timeout_seconds", c.Normalize.AudioTimeoutSeconds},
		{"transcription.timeout_seconds", c.Transcription.TimeoutSeconds},
		{"llm.timeout_seconds", c.LLM.TimeoutSeconds},
		{"telegram.poll_timeout_seconds", c.Telegram.PollTimeoutSeconds},
	}
	for _, check := range checks {
		if check.value <= 0 {
			return fmt.Errorf("%s must be positive", check.name)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
