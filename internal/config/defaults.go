package config

const (
	defaultStateDir             = "~/.local/share/tubeshelf"
	defaultLogDir               = "~/.local/share/tubeshelf/logs"
	defaultAPIBind              = "127.0.0.1:7489"
	defaultLBWrapper            = "lb-wrapper"
	defaultTimeoutSeconds       = 120
	defaultMaxVideosPerDownload = 10
	defaultWorkers              = 2
	defaultShutdownGrace        = 10
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
			APIBind:  defaultAPIBind,
		},
		Tool: Tool{
			LBWrapper:            defaultLBWrapper,
			TimeoutSeconds:       defaultTimeoutSeconds,
			MaxVideosPerDownload: defaultMaxVideosPerDownload,
		},
		Workflow: Workflow{
			Workers:              defaultWorkers,
			ShutdownGraceSeconds: defaultShutdownGrace,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
