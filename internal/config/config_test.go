package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/iiab/tubeshelf/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesFileOverDefaults(t *testing.T) {
	path := writeConfig(t, `
[paths]
state_dir = "/var/lib/tubeshelf"
api_bind = "0.0.0.0:9000"

[tool]
lb_wrapper = "/usr/local/bin/lb-wrapper"
max_videos_per_download = 3

[workflow]
workers = 4
`)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Paths.StateDir != "/var/lib/tubeshelf" {
		t.Fatalf("unexpected state dir %q", cfg.Paths.StateDir)
	}
	if cfg.Paths.APIBind != "0.0.0.0:9000" {
		t.Fatalf("unexpected bind %q", cfg.Paths.APIBind)
	}
	if cfg.Tool.LBWrapper != "/usr/local/bin/lb-wrapper" {
		t.Fatalf("unexpected wrapper %q", cfg.Tool.LBWrapper)
	}
	if cfg.Tool.MaxVideosPerDownload != 3 {
		t.Fatalf("unexpected cap %d", cfg.Tool.MaxVideosPerDownload)
	}
	if cfg.Workflow.Workers != 4 {
		t.Fatalf("unexpected workers %d", cfg.Workflow.Workers)
	}
	// Unset keys keep their defaults.
	if cfg.Tool.TimeoutSeconds != 120 {
		t.Fatalf("unexpected timeout %d", cfg.Tool.TimeoutSeconds)
	}
	if cfg.Logging.Level != "info" {
		t.Fatalf("unexpected level %q", cfg.Logging.Level)
	}
}

func TestLoadEnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, `
[workflow]
workers = 4
`)
	t.Setenv("TUBESHELF_WORKERS", "7")
	t.Setenv("TUBESHELF_LB_WRAPPER", "/opt/lb")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Workflow.Workers != 7 {
		t.Fatalf("env should override file, got %d", cfg.Workflow.Workers)
	}
	if cfg.Tool.LBWrapper != "/opt/lb" {
		t.Fatalf("env should override default, got %q", cfg.Tool.LBWrapper)
	}
}

func TestLoadExplicitMissingFileFails(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.toml")
	if _, err := config.Load(missing); err == nil {
		t.Fatal("expected error for explicit missing file")
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := writeConfig(t, `
[workflow]
workers = 0
`)
	_, err := config.Load(path)
	if err == nil || !strings.Contains(err.Error(), "workflow.workers") {
		t.Fatalf("expected workers validation error, got %v", err)
	}

	path = writeConfig(t, `
[logging]
format = "xml"
`)
	_, err = config.Load(path)
	if err == nil || !strings.Contains(err.Error(), "logging.format") {
		t.Fatalf("expected format validation error, got %v", err)
	}
}

func TestDerivedPaths(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.StateDir = "/tmp/ts-state"
	if cfg.DatabasePath() != "/tmp/ts-state/xklb-metadata.db" {
		t.Fatalf("unexpected db path %q", cfg.DatabasePath())
	}
	if cfg.LockPath() != "/tmp/ts-state/tubeshelfd.lock" {
		t.Fatalf("unexpected lock path %q", cfg.LockPath())
	}
}

func TestWriteSampleRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := config.WriteSample(path); err != nil {
		t.Fatalf("write sample: %v", err)
	}
	if err := config.WriteSample(path); err == nil {
		t.Fatal("expected refusal to overwrite")
	}

	// The sample itself must load cleanly.
	if _, err := config.Load(path); err != nil {
		t.Fatalf("sample config should be valid: %v", err)
	}
}
