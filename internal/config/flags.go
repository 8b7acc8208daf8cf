package config

import "flag"

var (
	flagConfig     = flag.String("config", "", "Path to config file")
	flagDebug      = flag.Bool("debug", false, "Enable debug logging")
	flagRoot       = flag.String("root", "", "Directory asset paths are resolved against")
	flagWorkers    = flag.Int("workers", 0, "Number of background import workers")
	flagSampleRate = flag.Float64("sample-rate", 0, "Animation baking rate in samples per second")
	flagSlerp      = flag.Bool("slerp", false, "Interpolate rotation keys spherically")
	flagLogFile    = flag.String("log-file", "", "Write logs to this file as well")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// Args returns the non-flag arguments left after ParseFlags.
func Args() []string {
	return flag.Args()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagRoot != "" {
		cfg.Assets.Root = *flagRoot
	}
	if *flagWorkers > 0 {
		cfg.Assets.Workers = *flagWorkers
	}
	if *flagSampleRate > 0 {
		cfg.Animation.SampleRate = *flagSampleRate
	}
	if *flagSlerp {
		cfg.Animation.SlerpRotation = true
	}
	if *flagLogFile != "" {
		cfg.Logging.LogFile = *flagLogFile
	}
}
