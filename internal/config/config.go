// Package config handles pipeline configuration loading and management.
package config

import "time"

// Config holds all pipeline settings.
type Config struct {
	Segmentation  SegmentationConfig  `yaml:"segmentation"`
	Decomposition DecompositionConfig `yaml:"decomposition"`
	Fitting       FittingConfig       `yaml:"fitting"`
	Witness       WitnessConfig       `yaml:"witness"`
	Coverage      CoverageConfig      `yaml:"coverage"`
	Solver        SolverConfig        `yaml:"solver"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// SegmentationConfig holds vertex-to-bone assignment settings.
type SegmentationConfig struct {
	// InfluenceThreshold is the minimum skin weight a dominant bone must
	// carry for its vertex to join a segment.
	InfluenceThreshold float64 `yaml:"influence_threshold"`
}

// DecompositionConfig holds convex decomposition settings.
type DecompositionConfig struct {
	// EngineBinary is the external decomposition executable. Empty means
	// no engine; segments fall back to a single hull.
	EngineBinary string   `yaml:"engine_binary"`
	EngineArgs   []string `yaml:"engine_args"`
	Concavity    float64  `yaml:"concavity"`
	MinVertices  int      `yaml:"min_vertices"`
	// Workers bounds how many segments decompose concurrently; 0 means
	// one per CPU.
	Workers int `yaml:"workers"`
}

// FittingConfig holds capsule fitting settings.
type FittingConfig struct {
	RadiusQuantile float64 `yaml:"radius_quantile"`
	BandFraction   float64 `yaml:"band_fraction"`
	MinLength      float64 `yaml:"min_length"`
}

// WitnessConfig holds witness sampling settings.
type WitnessConfig struct {
	Count int   `yaml:"count"`
	Seed  int64 `yaml:"seed"`
}

// CoverageConfig holds coverage matrix settings.
type CoverageConfig struct {
	// Workers bounds matrix construction concurrency; 0 means one per CPU.
	Workers int `yaml:"workers"`
	// UncoverablePolicy decides what happens when a witness point falls
	// inside no candidate: "abort" fails the run, "drop" discards the
	// point and continues.
	UncoverablePolicy string `yaml:"uncoverable_policy"`
}

// SolverConfig holds capsule selection settings.
type SolverConfig struct {
	// Backend picks the selection strategy: "minizinc" or "greedy".
	Backend string `yaml:"backend"`
	// Binary is the MiniZinc executable name or path.
	Binary string `yaml:"binary"`
	// MiniZincSolver is the value passed to minizinc --solver.
	MiniZincSolver string `yaml:"minizinc_solver"`
	// ModelPath overrides the built-in constraint model.
	ModelPath string        `yaml:"model_path"`
	TimeLimit time.Duration `yaml:"time_limit"`
	// MaxCandidates caps the candidate set handed to the solver; the
	// largest-volume capsules survive. 0 means unlimited.
	MaxCandidates int `yaml:"max_candidates"`
	// OverlapPenalty and ProximityReward are soft objective weights for
	// the greedy backend.
	OverlapPenalty  float64 `yaml:"overlap_penalty"`
	ProximityReward float64 `yaml:"proximity_reward"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Policy values for CoverageConfig.UncoverablePolicy.
const (
	PolicyAbort = "abort"
	PolicyDrop  = "drop"
)

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Segmentation: SegmentationConfig{
			InfluenceThreshold: 0.1,
		},
		Decomposition: DecompositionConfig{
			Concavity:   0.05,
			MinVertices: 4,
		},
		Fitting: FittingConfig{
			RadiusQuantile: 0.9,
			BandFraction:   0.4,
			MinLength:      1e-4,
		},
		Witness: WitnessConfig{
			Count: 5000,
			Seed:  1,
		},
		Coverage: CoverageConfig{
			Workers:           0,
			UncoverablePolicy: PolicyAbort,
		},
		Solver: SolverConfig{
			Backend:        "minizinc",
			Binary:         "minizinc",
			MiniZincSolver: "gecode",
			TimeLimit:      5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}
