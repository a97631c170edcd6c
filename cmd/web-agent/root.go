package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kkkkkxiaofei/web-agent/internal/agent"
	"github.com/kkkkkxiaofei/web-agent/internal/config"
	"github.com/kkkkkxiaofei/web-agent/internal/ui"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// errAnalysisFailed is returned after a failed result has already been printed
var errAnalysisFailed = errors.New("analysis failed")

type rootOptions struct {
	configPath string
	envFile    string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "web-agent",
		Short: "Screenshot web pages and describe them with a vision model",
		Long: "web-agent renders a page with an external screenshot script, sends the image to an " +
			"OpenAI-compatible chat completions endpoint and prints the model's analysis.\n\n" +
			"Without a subcommand it prompts for a URL and an analysis prompt.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInteractive(cmd, opts)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "config/config.yaml", "config file path")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env", ".env", "path to .env file")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(newAnalyzeCmd(opts))
	cmd.AddCommand(newHistoryCmd(opts))

	return cmd
}

// setup loads the environment and configuration, then builds the agent
func setup(ctx context.Context, opts *rootOptions, stderr io.Writer) (*agent.Agent, error) {
	if err := config.LoadEnvFile(opts.envFile); err != nil {
		return nil, err
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}

	logger := newLogger(cfg.Logging, opts.verbose, stderr)
	log.Logger = logger
	mainLogger := logger.With().Str("component", "main").Logger()

	mainLogger.Debug().Str("path", opts.configPath).Msg("Configuration loaded")

	watchPath := opts.configPath
	if _, err := os.Stat(watchPath); err != nil {
		watchPath = ""
	}

	return agent.New(ctx, cfg, watchPath, logger)
}

// newLogger builds the process logger from the logging config
func newLogger(cfg config.LoggingConfig, verbose bool, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	if verbose {
		level = zerolog.DebugLevel
	}

	var logger zerolog.Logger
	if cfg.Format == "json" {
		logger = zerolog.New(out)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: out})
	}

	return logger.Level(level).With().Timestamp().Logger()
}

// reportSetupError prints err the way results print errors
func reportSetupError(out io.Writer, err error) error {
	ui.NewRenderer(out).Error(err.Error())
	return fmt.Errorf("setup: %w", err)
}
