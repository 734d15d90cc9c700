// Package pipeline wires the full mesh-to-capsule flow: segment the
// skinned vertices by bone, decompose each segment into convex regions,
// fit a tapered capsule per region, sample witness points, build the
// coverage matrix, and hand the covering problem to a solver.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"

	"github.com/chibifire/tapered-capsule-with-keypoint-detection/internal/config"
	"github.com/chibifire/tapered-capsule-with-keypoint-detection/pkg/capsule"
	"github.com/chibifire/tapered-capsule-with-keypoint-detection/pkg/coverage"
	"github.com/chibifire/tapered-capsule-with-keypoint-detection/pkg/decompose"
	"github.com/chibifire/tapered-capsule-with-keypoint-detection/pkg/mesh"
	"github.com/chibifire/tapered-capsule-with-keypoint-detection/pkg/segment"
	"github.com/chibifire/tapered-capsule-with-keypoint-detection/pkg/solver"
	"github.com/chibifire/tapered-capsule-with-keypoint-detection/pkg/witness"
)

var (
	// ErrNoSegments is returned when no bone attracts enough vertices to
	// form a segment.
	ErrNoSegments = errors.New("segmentation produced no bone segments")
	// ErrUncoverable is returned under the abort policy when witness
	// points exist that no fitted capsule contains.
	ErrUncoverable = errors.New("witness points not covered by any candidate")
)

// Pipeline runs the capsule generation flow for one configuration.
type Pipeline struct {
	cfg    *config.Config
	engine decompose.Engine
	solve  solver.Solver
	log    *zap.Logger
}

// Stats summarizes one run for reporting.
type Stats struct {
	Segments        int
	SkippedSegments int
	FallbackHulls   int
	Regions         int
	Candidates      int
	Witnesses       int
	DroppedWitness  int
	Selected        int
	Proven          bool
}

// Result carries everything a run produced.
type Result struct {
	Candidates []capsule.Candidate
	Solution   solver.Solution
	Records    []solver.Record
	Stats      Stats
}

// New assembles a pipeline from configuration. A nil logger disables
// logging.
func New(cfg *config.Config, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}

	var engine decompose.Engine
	if cfg.Decomposition.EngineBinary != "" {
		engine = &decompose.ExecEngine{
			Binary: cfg.Decomposition.EngineBinary,
			Args:   cfg.Decomposition.EngineArgs,
		}
	}

	var solve solver.Solver
	switch cfg.Solver.Backend {
	case "greedy":
		solve = solver.Greedy{}
	default:
		solve = &solver.MiniZinc{
			Binary:    cfg.Solver.Binary,
			Backend:   cfg.Solver.MiniZincSolver,
			ModelPath: cfg.Solver.ModelPath,
			TimeLimit: cfg.Solver.TimeLimit,
		}
	}

	return &Pipeline{cfg: cfg, engine: engine, solve: solve, log: log}
}

// WithSolver swaps the selection backend. Mainly for tests.
func (p *Pipeline) WithSolver(s solver.Solver) *Pipeline {
	p.solve = s
	return p
}

// WithEngine swaps the decomposition engine. Mainly for tests.
func (p *Pipeline) WithEngine(e decompose.Engine) *Pipeline {
	p.engine = e
	return p
}

// Run executes the full flow against one skinned mesh.
func (p *Pipeline) Run(ctx context.Context, m *mesh.Skinned) (*Result, error) {
	res := &Result{}

	segments := segment.Split(m.Vertices, len(m.Bones), p.cfg.Segmentation.InfluenceThreshold)
	if len(segments) == 0 {
		return nil, ErrNoSegments
	}
	res.Stats.Segments = len(segments)
	p.log.Info("segmented mesh",
		zap.Int("bones", len(m.Bones)),
		zap.Int("segments", len(segments)))

	regions := p.decomposeAll(ctx, segments, res)
	p.log.Info("decomposed segments",
		zap.Int("regions", len(regions)),
		zap.Int("skipped", res.Stats.SkippedSegments),
		zap.Int("fallback", res.Stats.FallbackHulls))

	candidates := p.fitAll(regions, m.Bones)
	if len(candidates) == 0 {
		return nil, solver.ErrNoCandidates
	}
	if limit := p.cfg.Solver.MaxCandidates; limit > 0 && len(candidates) > limit {
		sort.SliceStable(candidates, func(i, j int) bool {
			return solver.Volume(&candidates[i]) > solver.Volume(&candidates[j])
		})
		p.log.Warn("capping candidate set",
			zap.Int("candidates", len(candidates)),
			zap.Int("cap", limit))
		candidates = candidates[:limit]
	}
	res.Candidates = candidates
	res.Stats.Candidates = len(candidates)

	points, err := witness.Sample(m, witness.Options{
		Count: p.cfg.Witness.Count,
		Seed:  p.cfg.Witness.Seed,
	})
	if err != nil {
		return nil, fmt.Errorf("sampling witness points: %w", err)
	}
	res.Stats.Witnesses = len(points)
	p.log.Info("sampled witness points", zap.Int("count", len(points)))

	matrix := coverage.Build(candidates, points, p.cfg.Coverage.Workers)

	if missing := matrix.Uncovered(nil); len(missing) > 0 {
		if p.cfg.Coverage.UncoverablePolicy != config.PolicyDrop {
			return nil, fmt.Errorf("%w: %d of %d", ErrUncoverable, len(missing), len(points))
		}
		p.log.Warn("dropping uncoverable witness points", zap.Int("count", len(missing)))
		matrix = matrix.WithoutColumns(missing)
		points = dropPoints(points, missing)
		res.Stats.DroppedWitness = len(missing)
		res.Stats.Witnesses = len(points)
	}

	problem := solver.Problem{
		Candidates: candidates,
		Points:     points,
		Coverage:   matrix,
		Bones:      m.Bones,
		Weights: solver.Weights{
			OverlapPenalty:  p.cfg.Solver.OverlapPenalty,
			ProximityReward: p.cfg.Solver.ProximityReward,
		},
	}
	sol, err := p.solve.Solve(ctx, problem)
	if err != nil {
		return nil, fmt.Errorf("selecting capsules: %w", err)
	}
	res.Solution = sol
	res.Stats.Selected = len(sol.Selected)
	res.Stats.Proven = sol.Proven
	p.log.Info("selected capsules",
		zap.Int("selected", len(sol.Selected)),
		zap.Int("candidates", len(candidates)),
		zap.Bool("proven", sol.Proven))

	res.Records = solver.Assemble(problem, sol, m.Bones)
	return res, nil
}

// decomposeAll fans segments out over a worker pool; region order follows
// segment order regardless of which worker finished first.
func (p *Pipeline) decomposeAll(ctx context.Context, segments []segment.BoneSegment, res *Result) []decompose.Result {
	opts := decompose.Options{
		Concavity:   p.cfg.Decomposition.Concavity,
		MinVertices: p.cfg.Decomposition.MinVertices,
	}

	workers := p.cfg.Decomposition.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make([]decompose.Result, len(segments))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = decompose.Run(ctx, p.engine, segments[i], opts)
			}
		}()
	}
	for i := range segments {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	var out []decompose.Result
	for _, r := range results {
		switch r.Kind {
		case decompose.Skipped:
			res.Stats.SkippedSegments++
			p.log.Debug("skipped segment",
				zap.Int("bone", r.Bone),
				zap.String("reason", r.Reason))
			continue
		case decompose.Fallback:
			res.Stats.FallbackHulls++
		}
		res.Stats.Regions += len(r.Regions)
		out = append(out, r)
	}
	return out
}

// fitAll turns every region into a capsule candidate; regions the fitter
// rejects are logged and dropped.
func (p *Pipeline) fitAll(results []decompose.Result, bones []mesh.Bone) []capsule.Candidate {
	opts := capsule.FitOptions{
		RadiusQuantile: p.cfg.Fitting.RadiusQuantile,
		BandFraction:   p.cfg.Fitting.BandFraction,
		MinLength:      p.cfg.Fitting.MinLength,
	}

	var candidates []capsule.Candidate
	for _, r := range results {
		var bone mesh.Bone
		if r.Bone >= 0 && r.Bone < len(bones) {
			bone = bones[r.Bone]
		}
		for _, region := range r.Regions {
			c, err := capsule.Fit(region, bone, opts)
			if err != nil {
				p.log.Debug("fit rejected region",
					zap.Int("bone", r.Bone),
					zap.Error(err))
				continue
			}
			candidates = append(candidates, c)
		}
	}
	return candidates
}

func dropPoints(points []mgl64.Vec3, drop []int) []mgl64.Vec3 {
	skip := make(map[int]bool, len(drop))
	for _, i := range drop {
		skip[i] = true
	}
	out := make([]mgl64.Vec3, 0, len(points)-len(drop))
	for i, p := range points {
		if !skip[i] {
			out = append(out, p)
		}
	}
	return out
}
