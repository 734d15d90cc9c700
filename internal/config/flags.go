package config

import "flag"

var (
	flagConfig    = flag.String("config", "", "Path to config file")
	flagDebug     = flag.Bool("debug", false, "Enable debug logging")
	flagEngine    = flag.String("engine", "", "Convex decomposition engine binary")
	flagSolver    = flag.String("solver", "", "Selection backend: minizinc or greedy")
	flagWitnesses = flag.Int("witnesses", 0, "Witness point count")
	flagSeed      = flag.Int64("seed", 0, "Witness sampling seed")
	flagDrop      = flag.Bool("drop-uncoverable", false, "Drop witness points no candidate covers instead of aborting")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
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
	if *flagEngine != "" {
		cfg.Decomposition.EngineBinary = *flagEngine
	}
	if *flagSolver != "" {
		cfg.Solver.Backend = *flagSolver
	}
	if *flagWitnesses > 0 {
		cfg.Witness.Count = *flagWitnesses
	}
	if *flagSeed != 0 {
		cfg.Witness.Seed = *flagSeed
	}
	if *flagDrop {
		cfg.Coverage.UncoverablePolicy = PolicyDrop
	}
}
