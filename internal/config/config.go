package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	StateDir string `toml:"state_dir" envconfig:"STATE_DIR"`
	LogDir   string `toml:"log_dir" envconfig:"LOG_DIR"`
	APIBind  string `toml:"api_bind" envconfig:"API_BIND"`
}

// Tool contains configuration for the external media-fetch tool.
type Tool struct {
	// LBWrapper is the binary driven for metadata extraction, downloads,
	// and title search. Its stdout contract is versioned against one
	// specific tool release; see internal/progress.
	LBWrapper            string `toml:"lb_wrapper" envconfig:"LB_WRAPPER"`
	TimeoutSeconds       int    `toml:"timeout_seconds" envconfig:"TIMEOUT_SECONDS"`
	MaxVideosPerDownload int    `toml:"max_videos_per_download" envconfig:"MAX_VIDEOS_PER_DOWNLOAD"`
}

// Workflow contains worker pool sizing and shutdown timing.
type Workflow struct {
	Workers              int `toml:"workers" envconfig:"WORKERS"`
	ShutdownGraceSeconds int `toml:"shutdown_grace_seconds" envconfig:"SHUTDOWN_GRACE_SECONDS"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format" envconfig:"LOG_FORMAT"`
	Level  string `toml:"level" envconfig:"LOG_LEVEL"`
}

// Config centralizes every knob the daemon and CLI need.
type Config struct {
	Paths    Paths    `toml:"paths"`
	Tool     Tool     `toml:"tool"`
	Workflow Workflow `toml:"workflow"`
	Logging  Logging  `toml:"logging"`
}

// envPrefix namespaces environment overrides, e.g. TUBESHELF_LB_WRAPPER.
const envPrefix = "TUBESHELF"

// Load reads configuration from path (or the default location when path is
// empty), layering file values over defaults and environment overrides over
// both. A missing file is not an error; defaults apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	resolved, explicit := resolvePath(path)
	data, err := os.ReadFile(resolved)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", resolved, err)
		}
	case errors.Is(err, fs.ErrNotExist):
		if explicit {
			return nil, fmt.Errorf("config file %s does not exist", resolved)
		}
	default:
		return nil, fmt.Errorf("read config %s: %w", resolved, err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	for _, section := range []struct {
		name  string
		value any
	}{
		{"paths", &cfg.Paths},
		{"tool", &cfg.Tool},
		{"workflow", &cfg.Workflow},
		{"logging", &cfg.Logging},
	} {
		if err := envconfig.Process(envPrefix, section.value); err != nil {
			return fmt.Errorf("apply %s environment overrides: %w", section.name, err)
		}
	}
	return nil
}

// DefaultPath returns the location probed when no explicit config path is set.
func DefaultPath() string {
	return expandUser("~/.config/tubeshelf/config.toml")
}

func resolvePath(path string) (string, bool) {
	trimmed := strings.TrimSpace(path)
	if trimmed != "" {
		return expandUser(trimmed), true
	}
	return DefaultPath(), false
}

// EnsureDirectories creates the state and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the catalog database location under the state dir.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.StateDir, "xklb-metadata.db")
}

// LockPath returns the daemon lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "tubeshelfd.lock")
}

// WriteSample writes the embedded sample configuration to path, refusing to
// overwrite an existing file.
func WriteSample(path string) error {
	path = expandUser(path)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file %s already exists", path)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Sample returns the embedded sample configuration text.
func Sample() string {
	return sampleConfig
}

func (c *Config) normalize() {
	c.Paths.StateDir = expandUser(strings.TrimSpace(c.Paths.StateDir))
	c.Paths.LogDir = expandUser(strings.TrimSpace(c.Paths.LogDir))
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	c.Tool.LBWrapper = strings.TrimSpace(c.Tool.LBWrapper)
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
}

func expandUser(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		if path == "~" {
			return home
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
