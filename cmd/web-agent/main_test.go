package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/kkkkkxiaofei/web-agent/internal/config"
	"github.com/kkkkkxiaofei/web-agent/internal/scraper"
	"github.com/kkkkkxiaofei/web-agent/internal/ui"
	"github.com/rs/zerolog"
)

type call struct {
	url    string
	prompt string
}

type fakeAnalyzer struct {
	cfg    *config.Config
	calls  []call
	result scraper.Result
	cancel context.CancelFunc
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, url, prompt string) scraper.Result {
	f.calls = append(f.calls, call{url, prompt})
	if f.cancel != nil {
		f.cancel()
	}
	res := f.result
	res.URL = url
	return res
}

func (f *fakeAnalyzer) GetConfig() *config.Config {
	return f.cfg
}

func feed(lines ...string) <-chan string {
	ch := make(chan string, len(lines))
	for _, l := range lines {
		ch <- l
	}
	close(ch)
	return ch
}

func TestPromptLoop_UsesDefaults(t *testing.T) {
	cfg := config.DefaultConfig()
	fa := &fakeAnalyzer{cfg: cfg, result: scraper.Result{Success: true, Analysis: "looks fine"}}

	var out bytes.Buffer
	err := promptLoop(context.Background(), fa, feed("", "  "), &out, ui.NewPlainRenderer(&out))
	if err != nil {
		t.Fatalf("promptLoop() error = %v", err)
	}

	if len(fa.calls) != 1 {
		t.Fatalf("Analyze called %d times, want 1", len(fa.calls))
	}
	if fa.calls[0].url != cfg.Analysis.DefaultURL || fa.calls[0].prompt != cfg.Analysis.DefaultPrompt {
		t.Errorf("Analyze(%q, %q), want defaults", fa.calls[0].url, fa.calls[0].prompt)
	}

	got := out.String()
	for _, want := range []string{
		"Enter URL to scrape: ",
		"Enter analysis prompt (default: describe the page): ",
		"Scraping and analyzing: https://example.com",
		"ANALYSIS RESULT:",
		"looks fine",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestPromptLoop_RepeatsUntilQuit(t *testing.T) {
	fa := &fakeAnalyzer{cfg: config.DefaultConfig(), result: scraper.Result{Error: "boom"}}

	var out bytes.Buffer
	err := promptLoop(context.Background(), fa,
		feed("https://a.example", "first", "https://b.example", "second", "quit", "https://never.example"),
		&out, ui.NewPlainRenderer(&out))
	if err != nil {
		t.Fatalf("promptLoop() error = %v", err)
	}

	want := []call{{"https://a.example", "first"}, {"https://b.example", "second"}}
	if len(fa.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", fa.calls, want)
	}
	for i := range want {
		if fa.calls[i] != want[i] {
			t.Errorf("call %d = %v, want %v", i, fa.calls[i], want[i])
		}
	}
	if strings.Count(out.String(), "Error: boom") != 2 {
		t.Errorf("expected two error lines:\n%s", out.String())
	}
}

func TestPromptLoop_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fa := &fakeAnalyzer{cfg: config.DefaultConfig(), cancel: cancel}

	var out bytes.Buffer
	err := promptLoop(ctx, fa, feed("https://a.example", "p", "https://b.example", "p"), &out, ui.NewPlainRenderer(&out))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("promptLoop() error = %v, want context.Canceled", err)
	}
	if len(fa.calls) != 1 {
		t.Errorf("Analyze called %d times after cancel", len(fa.calls))
	}
	if strings.Contains(out.String(), "ANALYSIS RESULT") || strings.Contains(out.String(), "Error:") {
		t.Errorf("cancelled result should not be printed:\n%s", out.String())
	}
}

func TestAsk_WaitsForContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	if _, err := ask(ctx, make(chan string), &out, "label: "); !errors.Is(err, context.Canceled) {
		t.Errorf("ask() error = %v, want context.Canceled", err)
	}
}

func TestReadLines(t *testing.T) {
	lines := readLines(strings.NewReader("one\ntwo\n"))

	var got []string
	for l := range lines {
		got = append(got, l)
	}
	if strings.Join(got, ",") != "one,two" {
		t.Errorf("readLines() = %v", got)
	}
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.LoggingConfig
		verbose bool
		want    zerolog.Level
	}{
		{"configured level", config.LoggingConfig{Level: "warn"}, false, zerolog.WarnLevel},
		{"upper case", config.LoggingConfig{Level: "ERROR"}, false, zerolog.ErrorLevel},
		{"invalid falls back to info", config.LoggingConfig{Level: "loud"}, false, zerolog.InfoLevel},
		{"empty falls back to info", config.LoggingConfig{}, false, zerolog.InfoLevel},
		{"verbose wins", config.LoggingConfig{Level: "error"}, true, zerolog.DebugLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := newLogger(tt.cfg, tt.verbose, &bytes.Buffer{}).GetLevel(); got != tt.want {
				t.Errorf("level = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(config.LoggingConfig{Level: "info", Format: "json"}, false, &buf)
	logger.Info().Str("url", "https://example.com").Msg("Taking screenshot")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %q", buf.String())
	}
	if entry["message"] != "Taking screenshot" || entry["url"] != "https://example.com" {
		t.Errorf("entry = %v", entry)
	}
}

// writeWorkspace creates a config pointing at server and a shell screenshot script
func writeWorkspace(t *testing.T, serverURL string) string {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported on windows")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	dir := t.TempDir()
	out := filepath.Join(dir, "screenshot.jpg")
	script := filepath.Join(dir, "shot.sh")
	if err := os.WriteFile(script, []byte("#!/bin/sh\nprintf 'image-bytes' > "+out+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	cfgYAML := fmt.Sprintf(`api:
  base_url: %s
  api_key_env: WEB_AGENT_TEST_KEY
analysis:
  model: test-vision
screenshot:
  command: sh
  script: %s
  output_path: %s
  timeout_ms: 2000
  grace_seconds: 2
logging:
  level: error
`, serverURL, script, out)

	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(cfgYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("WEB_AGENT_TEST_KEY=from-dotenv\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestAnalyzeCommand_JSON(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Example Domain"}}]}`))
	}))
	defer server.Close()

	dir := writeWorkspace(t, server.URL)
	os.Unsetenv("WEB_AGENT_TEST_KEY")
	t.Cleanup(func() { os.Unsetenv("WEB_AGENT_TEST_KEY") })

	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs([]string{
		"analyze",
		"--config", filepath.Join(dir, "config.yaml"),
		"--env", filepath.Join(dir, ".env"),
		"--url", "https://example.com",
		"--prompt", "what is on the page",
		"--json",
	})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v\nstdout: %s\nstderr: %s", err, out.String(), errOut.String())
	}

	var result scraper.Result
	if err := json.Unmarshal(out.Bytes(), &result); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out.String())
	}
	if !result.Success || result.Analysis != "Example Domain" || result.Model != "test-vision" {
		t.Errorf("result = %+v", result)
	}
	if gotAuth != "Bearer from-dotenv" {
		t.Errorf("Authorization = %q, want key from the env file", gotAuth)
	}
}

func TestAnalyzeCommand_FailureExitsWithError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer server.Close()

	dir := writeWorkspace(t, server.URL)
	t.Setenv("WEB_AGENT_TEST_KEY", "from-env")

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"analyze", "--config", filepath.Join(dir, "config.yaml"), "--env", ""})

	if err := cmd.Execute(); !errors.Is(err, errAnalysisFailed) {
		t.Fatalf("Execute() error = %v, want errAnalysisFailed", err)
	}
	if !strings.HasPrefix(out.String(), "Error: ") || !strings.Contains(out.String(), "rate limited") {
		t.Errorf("output = %q", out.String())
	}
}

func TestHistoryCommand_Disabled(t *testing.T) {
	dir := writeWorkspace(t, "http://127.0.0.1:1")
	t.Setenv("WEB_AGENT_TEST_KEY", "from-env")

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"history", "--config", filepath.Join(dir, "config.yaml"), "--env", ""})

	if err := cmd.Execute(); err == nil {
		t.Fatal("history without Redis should fail")
	}
	if !strings.Contains(out.String(), "history is disabled") {
		t.Errorf("output = %q", out.String())
	}
}

func TestUsage(t *testing.T) {
	if got := usage(3, 0); got != "3" {
		t.Errorf("usage(3, 0) = %q", got)
	}
	if got := usage(3, 10); got != "3/10" {
		t.Errorf("usage(3, 10) = %q", got)
	}
}
