package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/kkkkkxiaofei/web-agent/internal/config"
	"github.com/kkkkkxiaofei/web-agent/internal/scraper"
	"github.com/kkkkkxiaofei/web-agent/internal/ui"
	"github.com/spf13/cobra"
)

// analyzer is the part of the agent the prompt loop needs
type analyzer interface {
	Analyze(ctx context.Context, url, prompt string) scraper.Result
	GetConfig() *config.Config
}

func runInteractive(cmd *cobra.Command, opts *rootOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()

	a, err := setup(ctx, opts, cmd.ErrOrStderr())
	if err != nil {
		return reportSetupError(out, err)
	}
	defer a.Stop()

	a.WatchConfig(ctx)

	err = promptLoop(ctx, a, readLines(cmd.InOrStdin()), out, ui.NewRenderer(out))
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(out, "\nOperation cancelled by user")
		return nil
	}
	return err
}

// promptLoop asks for a URL and prompt, analyzes, and repeats until the
// input ends, the user types quit, or ctx is cancelled
func promptLoop(ctx context.Context, a analyzer, lines <-chan string, out io.Writer, r *ui.Renderer) error {
	for {
		cfg := a.GetConfig()

		url, err := ask(ctx, lines, out, "Enter URL to scrape: ")
		if err != nil {
			return ignoreEOF(err)
		}
		if url == "quit" || url == "exit" {
			return nil
		}
		if url == "" {
			url = cfg.Analysis.DefaultURL
		}

		prompt, err := ask(ctx, lines, out, "Enter analysis prompt (default: describe the page): ")
		if err != nil {
			return ignoreEOF(err)
		}
		if prompt == "" {
			prompt = cfg.Analysis.DefaultPrompt
		}

		r.Info("Scraping and analyzing: %s", url)
		result := a.Analyze(ctx, url, prompt)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.Result(result)
		fmt.Fprintln(out)
	}
}

// ask prints label and waits for the next trimmed line
func ask(ctx context.Context, lines <-chan string, out io.Writer, label string) (string, error) {
	fmt.Fprint(out, label)

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-lines:
		if !ok {
			fmt.Fprintln(out)
			return "", io.EOF
		}
		return strings.TrimSpace(line), nil
	}
}

// readLines feeds lines from in to a channel so reads can be abandoned on interrupt
func readLines(in io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return lines
}

func ignoreEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
