// Package screenshot drives the external page rendering process.
package screenshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Taker captures a page as an image file and returns its path
type Taker interface {
	Take(ctx context.Context, url string, timeout time.Duration) (string, error)
}

// Error reports a failed capture
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("error taking screenshot: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrTimeout is wrapped when the process outlives its deadline
var ErrTimeout = errors.New("screenshot process timed out")

// ProcessTaker runs `<command> [script] <url> <timeoutMillis>` and expects
// the image at OutputPath afterwards
type ProcessTaker struct {
	Command    string
	Script     string
	OutputPath string
	// Grace is added to the page timeout to bound the whole process
	Grace  time.Duration
	Logger zerolog.Logger
}

// Take removes any previous image, runs the process and checks the result
func (p *ProcessTaker) Take(ctx context.Context, url string, timeout time.Duration) (string, error) {
	if err := p.removeStale(); err != nil {
		return "", &Error{Op: "remove previous screenshot", Err: err}
	}

	args := make([]string, 0, 3)
	if p.Script != "" {
		args = append(args, p.Script)
	}
	args = append(args, url, strconv.FormatInt(timeout.Milliseconds(), 10))

	runCtx, cancel := context.WithTimeout(ctx, timeout+p.Grace)
	defer cancel()

	cmd := exec.CommandContext(runCtx, p.Command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	// children of a killed process may hold stderr open
	cmd.WaitDelay = 500 * time.Millisecond

	p.Logger.Info().Str("url", url).Msg("Taking screenshot")
	start := time.Now()

	err := cmd.Run()
	if runCtx.Err() == context.DeadlineExceeded {
		return "", &Error{Op: "run", Err: ErrTimeout}
	}
	if err != nil {
		if ctx.Err() != nil {
			return "", &Error{Op: "run", Err: ctx.Err()}
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", &Error{Op: "run", Err: fmt.Errorf("screenshot script failed: %s", msg)}
	}

	info, err := os.Stat(p.OutputPath)
	if err != nil {
		return "", &Error{Op: "locate output", Err: fmt.Errorf("image file not found: %s", p.OutputPath)}
	}
	if info.Size() == 0 {
		return "", &Error{Op: "locate output", Err: fmt.Errorf("image file is empty: %s", p.OutputPath)}
	}

	p.Logger.Info().
		Str("path", p.OutputPath).
		Dur("took", time.Since(start)).
		Msg("Screenshot taken successfully")

	return p.OutputPath, nil
}

// removeStale deletes the image left by a previous run
func (p *ProcessTaker) removeStale() error {
	err := os.Remove(p.OutputPath)
	switch {
	case err == nil:
		p.Logger.Debug().Str("path", p.OutputPath).Msg("Removed existing screenshot")
		return nil
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}
