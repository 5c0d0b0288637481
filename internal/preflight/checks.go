package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"recipebot/internal/config"
	"recipebot/internal/deps"
	"recipebot/internal/quota"
	"recipebot/internal/services/llm"
	"recipebot/internal/telegram"
)

// CheckLLM verifies that the chat completion API is reachable and the key is
// valid. It uses a 30-second timeout and a single attempt.
func CheckLLM(ctx context.Context, name string, cfg config.LLM) Result {
	if cfg.APIKey == "" {
		return Result{Name: name, Detail: "API key missing"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client := llm.NewClient(llm.Config{
		APIKey:         cfg.APIKey,
		BaseURL:        cfg.BaseURL,
		Model:          cfg.Model,
		TimeoutSeconds: cfg.TimeoutSeconds,
	}, llm.WithRetryMaxAttempts(1))

	if err := client.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeRemoteError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "API reachable"}
}

// CheckTelegram verifies the bot token with getMe.
func CheckTelegram(ctx context.Context, cfg config.Telegram) Result {
	const name = "Telegram"
	if cfg.Token == "" {
		return Result{Name: name, Detail: "bot token missing"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client := telegram.NewClient(telegram.Config{Token: cfg.Token, BaseURL: cfg.APIBaseURL})
	me, err := client.GetMe(checkCtx)
	if err != nil {
		return Result{Name: name, Detail: summarizeRemoteError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "@" + me.Username}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckFreeSpace reports whether the filesystem holding path has at least
// minBytes available to unprivileged users. A shortfall is a warning.
func CheckFreeSpace(name, path string, minBytes uint64) Result {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Result{Name: name, Optional: true, Detail: fmt.Sprintf("statfs %s: %v", path, err)}
	}
	free := stat.Bavail * uint64(stat.Bsize)
	detail := fmt.Sprintf("%d MiB free", free>>20)
	if free < minBytes {
		return Result{Name: name, Optional: true, Detail: detail + fmt.Sprintf(" (want at least %d MiB)", minBytes>>20)}
	}
	return Result{Name: name, Passed: true, Optional: true, Detail: detail}
}

// CheckQuotaStore opens the configured quota backend and reads one record.
func CheckQuotaStore(ctx context.Context, cfg *config.Config) Result {
	name := "Quota store (" + cfg.Quota.Backend + ")"

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	ledger, err := quota.Open(checkCtx, cfg, nil)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	defer ledger.Close()
	if _, err := ledger.Status(checkCtx, 0); err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	detail := "reachable"
	if cfg.Quota.Backend == config.QuotaBackendSQLite {
		detail = cfg.QuotaDBPath()
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckSystemDeps evaluates the external binaries. Both the daemon and the
// CLI status command use this so the list lives in one place.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "yt-dlp",
			Command:     cfg.Download.Binary,
			Description: "Required for video download",
		},
		{
			Name:        "FFmpeg",
			Command:     cfg.Normalize.FFmpegBinary,
			Description: "Required for transcoding and audio extraction",
		},
		{
			Name:        "FFprobe",
			Command:     cfg.Normalize.FFprobeBinary,
			Description: "Fills in durations missing from download metadata",
			Optional:    true,
		},
	}
	return deps.CheckBinaries(requirements)
}

// summarizeRemoteError produces a human-readable summary for health check failures.
func summarizeRemoteError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (API unreachable)"
	}
	return err.Error()
}
