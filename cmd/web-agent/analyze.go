package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/kkkkkxiaofei/web-agent/internal/ui"
	"github.com/spf13/cobra"
)

type analyzeOptions struct {
	url    string
	prompt string
	json   bool
}

func newAnalyzeCmd(root *rootOptions) *cobra.Command {
	opts := &analyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Screenshot one URL and print the analysis",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, root, opts)
		},
	}

	cmd.Flags().StringVar(&opts.url, "url", "", "page to analyze (default from config)")
	cmd.Flags().StringVar(&opts.prompt, "prompt", "", "analysis prompt (default from config)")
	cmd.Flags().BoolVar(&opts.json, "json", false, "print the result as JSON")

	return cmd
}

func runAnalyze(cmd *cobra.Command, root *rootOptions, opts *analyzeOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()

	a, err := setup(ctx, root, cmd.ErrOrStderr())
	if err != nil {
		return reportSetupError(out, err)
	}
	defer a.Stop()

	cfg := a.GetConfig()
	url := opts.url
	if url == "" {
		url = cfg.Analysis.DefaultURL
	}
	prompt := opts.prompt
	if prompt == "" {
		prompt = cfg.Analysis.DefaultPrompt
	}

	result := a.Analyze(ctx, url, prompt)

	if opts.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return err
		}
	} else {
		ui.NewRenderer(out).Result(result)
	}

	if !result.Success {
		return errAnalysisFailed
	}
	return nil
}
