package testsupport

import (
	"path/filepath"
	"testing"

	"github.com/iiab/tubeshelf/internal/config"
)

// ConfigOption customizes the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Tool.LBWrapper = "lb-wrapper"
	cfg.Workflow.Workers = 1
	cfg.Workflow.ShutdownGraceSeconds = 1

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithWorkers overrides the worker pool size on the test config.
func WithWorkers(workers int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Workflow.Workers = workers
	}
}
