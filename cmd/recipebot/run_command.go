package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"recipebot/internal/daemon"
	"recipebot/internal/logging"
	"recipebot/internal/preflight"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var skipChecks bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the Telegram bot in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemonProcess(cmd.Context(), ctx, skipChecks)
		},
	}
	cmd.Flags().BoolVar(&skipChecks, "skip-checks", false, "Start without running startup checks")
	return cmd
}

func runDaemonProcess(cmdCtx context.Context, ctx *commandContext, skipChecks bool) error {
	if ctx == nil {
		return fmt.Errorf("command context is required")
	}
	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if !skipChecks {
		results := preflight.RunAll(signalCtx, cfg)
		for _, result := range results {
			if !result.Passed {
				logging.WarnWithContext(logger, "startup check failed", "preflight_failed",
					logging.String("check", result.Name),
					logging.String("detail", result.Detail),
					logging.Bool("optional", result.Optional),
				)
			}
		}
		if failed := preflight.Failed(results); len(failed) > 0 {
			names := make([]string, 0, len(failed))
			for _, result := range failed {
				names = append(names, result.Name)
			}
			return fmt.Errorf("startup checks failed: %s (run `recipebot status` for details)", strings.Join(names, ", "))
		}
	}

	d, err := daemon.Build(signalCtx, cfg, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	<-signalCtx.Done()
	logger.Info("recipebot shutting down", logging.String(logging.FieldEventType, "shutdown"))
	return nil
}
