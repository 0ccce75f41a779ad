package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearRemoteEnv isolates a test from UBERSMITH_* variables of the caller.
func clearRemoteEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{envHost, envPort, envUsername, envPassword} {
		t.Setenv(k, "")
	}
}

func captureExtract(t *testing.T) **ExtractConfig {
	t.Helper()
	var captured *ExtractConfig
	extractRunner = func(ctx context.Context, cfg *ExtractConfig) error {
		captured = cfg
		return nil
	}
	t.Cleanup(func() { extractRunner = runExtract })
	return &captured
}

func TestExtractConfigFromFlags(t *testing.T) {
	clearRemoteEnv(t)
	captured := captureExtract(t)

	root := NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{
		"extract",
		"-H", "billing.example.com",
		"-P", "8443",
		"-u", "api",
		"-p", "secret",
		"--no-verify",
		"-o", "./schemas",
		"-f", "custom.json",
		"--timeout", "5s",
		"--rate-limit", "2.5",
	})
	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	cfg := *captured
	if cfg == nil {
		t.Fatalf("expected config to be captured")
	}
	if cfg.Host != "billing.example.com" || cfg.Port != 8443 {
		t.Errorf("host/port mismatch: got %q %d", cfg.Host, cfg.Port)
	}
	if cfg.Username != "api" || cfg.Password != "secret" {
		t.Errorf("credentials mismatch: got %q %q", cfg.Username, cfg.Password)
	}
	if !cfg.NoVerify || cfg.Insecure {
		t.Errorf("tls flags mismatch: no-verify=%v insecure=%v", cfg.NoVerify, cfg.Insecure)
	}
	if cfg.OutDir != "./schemas" || cfg.Filename != "custom.json" {
		t.Errorf("output mismatch: got %q %q", cfg.OutDir, cfg.Filename)
	}
	if cfg.Timeout != 5*time.Second {
		t.Errorf("timeout mismatch: got %v", cfg.Timeout)
	}
	if cfg.RateLimit != 2.5 {
		t.Errorf("rate limit mismatch: got %v", cfg.RateLimit)
	}

	cc := cfg.clientConfig()
	if cc.VerifyTLS || !cc.Secure {
		t.Errorf("client config mismatch: %+v", cc)
	}
}

func TestExtractConfigPrecedence(t *testing.T) {
	clearRemoteEnv(t)
	dir := t.TempDir()

	configPath := filepath.Join(dir, "ubergen.yaml")
	configContent := strings.TrimSpace(`
remote:
  host: cfg-host
  port: 8443
  username: cfg-user
  password: cfg-pass
  timeout: 30s
  insecure: true
schema:
  dir: cfg-schema
`) + "\n"
	if err := os.WriteFile(configPath, []byte(configContent), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	envFile := filepath.Join(dir, ".env")
	envContent := "UBERSMITH_HOST=dotenv-host\nUBERSMITH_USERNAME=dotenv-user\n"
	if err := os.WriteFile(envFile, []byte(envContent), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv(envHost, "env-host")

	captured := captureExtract(t)
	root := NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{
		"--config", configPath,
		"--env-file", envFile,
		"extract",
		"--password", "flag-pass",
		"--insecure=false",
	})
	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	cfg := *captured

	if cfg.Host != "env-host" {
		t.Errorf("host: process env should beat env file and config, got %q", cfg.Host)
	}
	if cfg.Username != "dotenv-user" {
		t.Errorf("username: env file should beat config, got %q", cfg.Username)
	}
	if cfg.Password != "flag-pass" {
		t.Errorf("password: flag should win, got %q", cfg.Password)
	}
	if cfg.Port != 8443 {
		t.Errorf("port: want 8443 from config, got %d", cfg.Port)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("timeout: want 30s from config, got %v", cfg.Timeout)
	}
	if cfg.Insecure {
		t.Errorf("insecure: flag should override config")
	}
	if cfg.OutDir != "cfg-schema" {
		t.Errorf("out dir: want cfg-schema got %q", cfg.OutDir)
	}
	if cfg.ConfigPath != configPath {
		t.Errorf("config path mismatch: got %q", cfg.ConfigPath)
	}
}

func TestExtractConfigMissingCredentials(t *testing.T) {
	clearRemoteEnv(t)
	captured := captureExtract(t)

	root := NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"extract", "-H", "billing.example.com"})

	err := root.Execute()
	if !errors.Is(err, ErrUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}
	if !strings.Contains(err.Error(), "--username, --password required") {
		t.Fatalf("unexpected error text: %v", err)
	}
	if *captured != nil {
		t.Fatalf("runner must not be called on invalid config")
	}
}

func TestExtractConfigInvalidValues(t *testing.T) {
	cases := []struct {
		name string
		env  string
		args []string
		want string
	}{
		{name: "env port", env: "abc", args: nil, want: envPort},
		{name: "port range", args: []string{"-P", "70000"}, want: "invalid --port"},
		{name: "timeout", args: []string{"--timeout", "0s"}, want: "--timeout"},
		{name: "rate", args: []string{"--rate-limit", "-1"}, want: "--rate-limit"},
		{name: "filename", args: []string{"-f", "a/b.json"}, want: "path separator"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clearRemoteEnv(t)
			if tc.env != "" {
				t.Setenv(envPort, tc.env)
			}
			captureExtract(t)

			root := NewRootCmd()
			root.SetOut(io.Discard)
			root.SetErr(io.Discard)
			root.SetArgs(append([]string{"extract", "-H", "h", "-u", "u", "-p", "p"}, tc.args...))

			err := root.Execute()
			if !errors.Is(err, ErrUsage) {
				t.Fatalf("expected usage error, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q in error, got %v", tc.want, err)
			}
		})
	}
}

func TestExtractAuthFailureHint(t *testing.T) {
	clearRemoteEnv(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}

	root := NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"-q", "extract", "-H", u.Hostname(), "-P", u.Port(), "-k",
		"-u", "api", "-p", "hunter2", "-o", t.TempDir()})

	err = root.Execute()
	if err == nil {
		t.Fatalf("expected an error")
	}
	if errors.Is(err, ErrUsage) {
		t.Fatalf("auth failures are not usage errors: %v", err)
	}
	if !strings.Contains(err.Error(), "Hint:") {
		t.Fatalf("expected hint in error, got %v", err)
	}
	if strings.Contains(err.Error(), "hunter2") {
		t.Fatalf("password leaked into error: %v", err)
	}
}

func TestProgressLine(t *testing.T) {
	var off bytes.Buffer
	p := progressPrinter(&off, false)
	p.step(1, 2, "a")
	p.done()
	if off.Len() != 0 {
		t.Fatalf("disabled progress wrote %q", off.String())
	}
	fmt.Fprint(p, "level=INFO msg=x\n")
	if off.String() != "level=INFO msg=x\n" {
		t.Fatalf("log line altered: %q", off.String())
	}

	var buf bytes.Buffer
	p = progressPrinter(&buf, true)
	logger, err := newLogger(p, LogOptions{})
	if err != nil {
		t.Fatal(err)
	}
	p.step(1, 2, "a")
	logger.Warn("skipped")
	p.done()
	out := buf.String()
	if !strings.HasPrefix(out, "\r\033[KProcessing item 1/2: a\r\033[Ktime=") {
		t.Fatalf("log record must clear the progress line first, got %q", out)
	}
	if !strings.HasSuffix(out, "msg=skipped\n") {
		t.Fatalf("done must not add a newline after a cleared line, got %q", out)
	}

	buf.Reset()
	p.step(2, 2, "b")
	p.done()
	if buf.String() != "\r\033[KProcessing item 2/2: b\n" {
		t.Fatalf("unexpected final progress output %q", buf.String())
	}
}
