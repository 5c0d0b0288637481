package preflight

import (
	"context"

	"recipebot/internal/config"
)

// minScratchFreeBytes is the free space below which a transcode is likely
// to fail part way.
const minScratchFreeBytes = 512 << 20

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
	// Optional failures are reported but do not block startup.
	Optional bool
}

// Failed returns the non-optional results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, result := range results {
		if !result.Passed && !result.Optional {
			out = append(out, result)
		}
	}
	return out
}

// RunAll executes every applicable check for cfg.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	for _, status := range CheckSystemDeps(cfg) {
		detail := status.Path
		if !status.Available {
			detail = status.Detail
		}
		results = append(results, Result{
			Name:     status.Name,
			Passed:   status.Available,
			Detail:   detail,
			Optional: status.Optional,
		})
	}

	results = append(results,
		CheckDirectoryAccess("Scratch directory", cfg.Paths.ScratchDir),
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckFreeSpace("Scratch free space", cfg.Paths.ScratchDir, minScratchFreeBytes),
		CheckQuotaStore(ctx, cfg),
	)

	if cfg.Telegram.Token != "" {
		results = append(results, CheckTelegram(ctx, cfg.Telegram))
	}
	if cfg.LLM.APIKey != "" {
		results = append(results, CheckLLM(ctx, "LLM", cfg.LLM))
	}
	return results
}
