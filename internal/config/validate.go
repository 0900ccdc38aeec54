package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks the configuration for values the daemon cannot run with.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Paths.StateDir) == "" {
		problems = append(problems, "paths.state_dir must not be empty")
	}
	if strings.TrimSpace(c.Tool.LBWrapper) == "" {
		problems = append(problems, "tool.lb_wrapper must not be empty")
	}
	if c.Tool.TimeoutSeconds <= 0 {
		problems = append(problems, "tool.timeout_seconds must be positive")
	}
	if c.Tool.MaxVideosPerDownload <= 0 {
		problems = append(problems, "tool.max_videos_per_download must be positive")
	}
	if c.Workflow.Workers <= 0 {
		problems = append(problems, "workflow.workers must be positive")
	}
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format %q is not supported (console, json)", c.Logging.Format))
	}

	if len(problems) == 0 {
		return nil
	}
	return errors.New("invalid configuration: " + strings.Join(problems, "; "))
}
