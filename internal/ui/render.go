// Package ui renders analysis results for the terminal.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/kkkkkxiaofei/web-agent/internal/scraper"
	"golang.org/x/term"
)

const ruleWidth = 50

// Styles holds the lipgloss styles used for result output
type Styles struct {
	Rule   lipgloss.Style
	Header lipgloss.Style
	Error  lipgloss.Style
	Muted  lipgloss.Style
}

// DefaultStyles returns the colored style set
func DefaultStyles() Styles {
	return Styles{
		Rule:   lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086")),
		Header: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#89B4FA")),
		Error:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F38BA8")),
		Muted:  lipgloss.NewStyle().Faint(true),
	}
}

// Renderer writes results to an output stream.
// Analysis text is always written verbatim.
type Renderer struct {
	out    io.Writer
	styles Styles
	color  bool
}

// NewRenderer styles output only when out is a terminal
func NewRenderer(out io.Writer) *Renderer {
	return &Renderer{out: out, styles: DefaultStyles(), color: isTerminal(out)}
}

// NewPlainRenderer never styles output
func NewPlainRenderer(out io.Writer) *Renderer {
	return &Renderer{out: out, styles: DefaultStyles()}
}

func (r *Renderer) paint(style lipgloss.Style, text string) string {
	if !r.color {
		return text
	}
	return style.Render(text)
}

// Result prints the analysis banner on success or the error line on failure
func (r *Renderer) Result(res scraper.Result) {
	if !res.Success {
		r.Error(res.Error)
		return
	}

	rule := r.paint(r.styles.Rule, strings.Repeat("=", ruleWidth))

	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, rule)
	fmt.Fprintln(r.out, r.paint(r.styles.Header, "ANALYSIS RESULT:"))
	fmt.Fprintln(r.out, rule)
	fmt.Fprintln(r.out, res.Analysis)
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, rule)
}

// Error prints a single error line
func (r *Renderer) Error(msg string) {
	fmt.Fprintln(r.out, r.paint(r.styles.Error, "Error: "+msg))
}

// Info prints a status line
func (r *Renderer) Info(format string, args ...any) {
	fmt.Fprintf(r.out, format+"\n", args...)
}

// History prints one line per stored result, newest first
func (r *Renderer) History(results []scraper.Result) {
	if len(results) == 0 {
		fmt.Fprintln(r.out, r.paint(r.styles.Muted, "No results recorded"))
		return
	}
	for _, res := range results {
		status := "ok"
		detail := summarize(res.Analysis)
		if !res.Success {
			status = "failed"
			detail = res.Error
		}
		ts := res.CreatedAt.Local().Format("2006-01-02 15:04:05")
		line := fmt.Sprintf("%s  %-6s  %s  %s", ts, status, res.URL, detail)
		if !res.Success {
			line = r.paint(r.styles.Error, line)
		}
		fmt.Fprintln(r.out, line)
	}
}

// summarize returns the first line of text, shortened for a listing
func summarize(text string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(text), "\n")
	const limit = 60
	if len([]rune(line)) > limit {
		return string([]rune(line)[:limit-3]) + "..."
	}
	return line
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
