package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"recipebot/internal/daemon"
	"recipebot/internal/fileutil"
	"recipebot/internal/pipeline"
	"recipebot/internal/recipe"
)

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var outDir string
	var requester int64

	cmd := &cobra.Command{
		Use:   "process <url>",
		Short: "Run the whole pipeline for one URL and write the results locally",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.RequireLLM(); err != nil {
				return err
			}
			logger, err := ctx.commandLogger(cfg)
			if err != nil {
				return err
			}

			dir := strings.TrimSpace(outDir)
			if dir == "" {
				dir = "."
			}
			if dir, err = filepath.Abs(dir); err != nil {
				return fmt.Errorf("resolve output directory: %w", err)
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create output directory: %w", err)
			}

			out := cmd.OutOrStdout()
			sink := newFileSink(dir, out)
			components, err := daemon.BuildPipeline(cmd.Context(), cfg, sink, nil, logger)
			if err != nil {
				return err
			}
			defer components.Close()

			outcome, procErr := components.Orchestrator.Process(cmd.Context(), pipeline.Request{
				RequesterID: requester,
				ChatID:      requester,
				URL:         strings.TrimSpace(args[0]),
				ReceivedAt:  time.Now(),
			})
			if err := writeOutcome(dir, outcome); err != nil {
				return err
			}
			printOutcome(out, outcome, sink.video())
			if procErr != nil {
				var failure *pipeline.Failure
				if errors.As(procErr, &failure) {
					return fmt.Errorf("request failed: %s", failure.Kind)
				}
				return procErr
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "Directory for video.mp4, recipe.md and recipe.json")
	cmd.Flags().Int64Var(&requester, "requester", 0, "Requester id charged for the request")
	return cmd
}

// writeOutcome stores the parsed recipe blocks next to the rendered message.
func writeOutcome(dir string, outcome pipeline.Outcome) error {
	if outcome.Kind != pipeline.KindDelivered || outcome.Blocks.IsEmpty() {
		return nil
	}
	data, err := json.MarshalIndent(outcome.Blocks, "", "  ")
	if err != nil {
		return fmt.Errorf("encode recipe: %w", err)
	}
	if err := fileutil.WriteAtomic(filepath.Join(dir, "recipe.json"), append(data, '\n'), 0o644); err != nil {
		return err
	}
	return fileutil.WriteAtomic(filepath.Join(dir, "recipe.txt"), []byte(recipe.RenderPlain(outcome.Blocks)), 0o644)
}

func printOutcome(out io.Writer, outcome pipeline.Outcome, video string) {
	fmt.Fprintf(out, "Request:  %s\n", outcome.RequestID)
	fmt.Fprintf(out, "Outcome:  %s\n", outcome.Kind)
	if video != "" {
		fmt.Fprintf(out, "Video:    %s\n", video)
	}
	if title := strings.TrimSpace(outcome.Blocks.Title); title != "" {
		fmt.Fprintf(out, "Recipe:   %s (%d ingredients, %d steps)\n", title, len(outcome.Blocks.Ingredients), len(outcome.Blocks.Steps))
	}
	for _, warning := range outcome.Warnings {
		fmt.Fprintf(out, "Warning:  %s\n", warning)
	}
	fmt.Fprintf(out, "Cached:   %s\n", yesNo(outcome.Cached))
	fmt.Fprintf(out, "Charged:  %s\n", yesNo(outcome.Charged))
	fmt.Fprintf(out, "Elapsed:  %s\n", outcome.Elapsed.Round(time.Millisecond))
}
