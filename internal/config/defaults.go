package config

const (
	defaultConfigPath               = "~/.config/recipebot/config.toml"
	defaultScratchDir               = "~/.local/share/recipebot/scratch"
	defaultDataDir                  = "~/.local/share/recipebot"
	defaultLogDir                   = "~/.local/share/recipebot/logs"
	defaultScratchMaxAgeHours       = 6
	defaultTelegramAPIBaseURL       = "https://api.telegram.org"
	defaultTelegramPollTimeout      = 30
	defaultTelegramMaxUploadMB      = 50
	defaultTelegramMaxMessageRunes  = 4096
	defaultOpenAIBaseURL            = "https://api.openai.com/v1"
	defaultLLMModel                 = "gpt-4o-mini"
	defaultLLMTimeoutSeconds        = 90
	defaultLLMRequestsPerMinute     = 60
	defaultTranscriptionModel       = "whisper-1"
	defaultTranscriptionLanguage    = "ru"
	defaultTranscriptionTimeout     = 120
	defaultDownloadBinary           = "yt-dlp"
	defaultMergeOutputFormat        = "mp4"
	defaultDownloadTimeoutSeconds   = 180
	defaultProbeTimeoutSeconds      = 30
	defaultMaxDurationSeconds       = 120
	DurationPolicyPostDownload      = "post_download"
	DurationPolicyProbeFirst        = "probe_first"
	defaultFFmpegBinary             = "ffmpeg"
	defaultFFprobeBinary            = "ffprobe"
	defaultTargetEdge               = 720
	defaultVideoCodec               = "libx264"
	defaultPreset                   = "veryfast"
	defaultCRF                      = 23
	defaultAudioCodec               = "aac"
	defaultAudioBitrate             = "128k"
	defaultTranscodeTimeoutSeconds  = 300
	defaultAudioTimeoutSeconds      = 60
	QuotaBackendSQLite              = "sqlite"
	QuotaBackendPostgres            = "postgres"
	defaultFreeLimit                = 6
	defaultPackageAmount            = 100
	defaultSubscriptionAmount       = 200
	defaultSubscriptionDays         = 30
	defaultWorkers                  = 4
	defaultQueueSize                = 64
	defaultLockTimeoutSeconds       = 600
	defaultCacheSize                = 256
	defaultServerBind               = "127.0.0.1:8080"
	defaultLogFormat                = "console"
	defaultLogLevel                 = "info"
)

// DefaultFormats is the acquisition fallback ladder, most preferred first.
var DefaultFormats = []string{
	"bestvideo[height<=720]+bestaudio/best[height<=720]",
	"best[height<=720]",
	"best",
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			ScratchDir:         defaultScratchDir,
			DataDir:            defaultDataDir,
			LogDir:             defaultLogDir,
			ScratchMaxAgeHours: defaultScratchMaxAgeHours,
		},
		Telegram: Telegram{
			APIBaseURL:         defaultTelegramAPIBaseURL,
			PollTimeoutSeconds: defaultTelegramPollTimeout,
			MaxUploadMB:        defaultTelegramMaxUploadMB,
			MaxMessageRunes:    defaultTelegramMaxMessageRunes,
		},
		LLM: LLM{
			BaseURL:           defaultOpenAIBaseURL,
			Model:             defaultLLMModel,
			Temperature:       0.2,
			TimeoutSeconds:    defaultLLMTimeoutSeconds,
			RequestsPerMinute: defaultLLMRequestsPerMinute,
		},
		Transcription: Transcription{
			Enabled:           true,
			BaseURL:           defaultOpenAIBaseURL,
			Model:             defaultTranscriptionModel,
			Language:          defaultTranscriptionLanguage,
			TimeoutSeconds:    defaultTranscriptionTimeout,
			RequestsPerMinute: defaultLLMRequestsPerMinute,
		},
		Download: Download{
			Binary:              defaultDownloadBinary,
			Formats:             append([]string(nil), DefaultFormats...),
			MergeOutputFormat:   defaultMergeOutputFormat,
			TimeoutSeconds:      defaultDownloadTimeoutSeconds,
			ProbeTimeoutSeconds: defaultProbeTimeoutSeconds,
			MaxDurationSeconds:  defaultMaxDurationSeconds,
			DurationPolicy:      DurationPolicyPostDownload,
		},
		Normalize: Normalize{
			FFmpegBinary:        defaultFFmpegBinary,
			FFprobeBinary:       defaultFFprobeBinary,
			TargetEdge:          defaultTargetEdge,
			VideoCodec:          defaultVideoCodec,
			Preset:              defaultPreset,
			CRF:                 defaultCRF,
			AudioCodec:          defaultAudioCodec,
			AudioBitrate:        defaultAudioBitrate,
			TimeoutSeconds:      defaultTranscodeTimeoutSeconds,
			AudioTimeoutSeconds: defaultAudioTimeoutSeconds,
		},
		Quota: Quota{
			Backend:            QuotaBackendSQLite,
			FreeLimit:          defaultFreeLimit,
			PackageAmount:      defaultPackageAmount,
			SubscriptionAmount: defaultSubscriptionAmount,
			SubscriptionDays:   defaultSubscriptionDays,
		},
		Pipeline: Pipeline{
			Workers:            defaultWorkers,
			QueueSize:          defaultQueueSize,
			LockTimeoutSeconds: defaultLockTimeoutSeconds,
		},
		Cache: Cache{
			Enabled: true,
			Size:    defaultCacheSize,
		},
		Server: Server{
			Bind: defaultServerBind,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
