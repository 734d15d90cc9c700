// Package decompose turns bone segments into convex regions by delegating
// to an external convex-decomposition engine, with a hull fallback when the
// engine cannot handle a segment.
package decompose

import (
	"context"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/chibifire/tapered-capsule-with-keypoint-detection/pkg/hull"
	"github.com/chibifire/tapered-capsule-with-keypoint-detection/pkg/segment"
)

// DefaultMinVertices is the minimum segment size worth decomposing.
const DefaultMinVertices = 4

// DefaultConcavity is the engine concavity threshold used when the
// configuration does not override it.
const DefaultConcavity = 0.05

// Engine is the external convex-decomposition contract: a point set and a
// concavity threshold in, one vertex set per convex hull out, or an error.
// Implementations must be safe to call concurrently for distinct segments.
type Engine interface {
	Decompose(ctx context.Context, points []mgl64.Vec3, concavity float64) ([][]mgl64.Vec3, error)
}

// Kind tags how a segment was resolved.
type Kind int

const (
	// Skipped means the segment produced no region: too few vertices, or
	// the fallback itself was degenerate.
	Skipped Kind = iota
	// Hulls means the engine decomposed the segment.
	Hulls
	// Fallback means the engine failed or returned nothing and a single
	// hull was built from the segment's own vertices.
	Fallback
)

func (k Kind) String() string {
	switch k {
	case Hulls:
		return "hulls"
	case Fallback:
		return "fallback"
	default:
		return "skipped"
	}
}

// Result is the tagged outcome for one bone segment. Run never reports a
// hard failure; a segment either yields regions or a reason it was skipped.
type Result struct {
	Bone    int
	Kind    Kind
	Regions []hull.Region
	Reason  string // set when Kind is Skipped or Fallback
}

// Options tune decomposition per run.
type Options struct {
	Concavity   float64
	MinVertices int
}

func (o Options) withDefaults() Options {
	if o.Concavity <= 0 {
		o.Concavity = DefaultConcavity
	}
	if o.MinVertices < hull.MinPoints {
		o.MinVertices = DefaultMinVertices
	}
	return o
}

// Run decomposes one bone segment. A nil engine goes straight to the
// fallback hull, which is also used when the engine errors or returns zero
// hulls. Degenerate fallbacks skip the bone cleanly.
func Run(ctx context.Context, eng Engine, seg segment.BoneSegment, opts Options) Result {
	opts = opts.withDefaults()

	if len(seg.Positions) < opts.MinVertices {
		return Result{
			Bone:   seg.Bone,
			Kind:   Skipped,
			Reason: fmt.Sprintf("%d vertices, need %d", len(seg.Positions), opts.MinVertices),
		}
	}

	if eng != nil {
		hulls, err := eng.Decompose(ctx, seg.Positions, opts.Concavity)
		switch {
		case err != nil:
			return fallback(seg, fmt.Sprintf("engine: %v", err))
		case len(hulls) == 0:
			return fallback(seg, "engine returned zero hulls")
		default:
			regions := make([]hull.Region, 0, len(hulls))
			for _, points := range hulls {
				if hull.Degenerate(points) {
					continue
				}
				regions = append(regions, hull.Region{Bone: seg.Bone, Points: points})
			}
			if len(regions) == 0 {
				return fallback(seg, "all engine hulls degenerate")
			}
			return Result{Bone: seg.Bone, Kind: Hulls, Regions: regions}
		}
	}
	return fallback(seg, "no engine configured")
}

func fallback(seg segment.BoneSegment, reason string) Result {
	if hull.Degenerate(seg.Positions) {
		return Result{
			Bone:   seg.Bone,
			Kind:   Skipped,
			Reason: reason + "; fallback degenerate",
		}
	}
	points := hull.SupportingPoints(seg.Positions)
	if hull.Degenerate(points) {
		// Supporting set collapsed; the raw cloud is still valid.
		points = seg.Positions
	}
	return Result{
		Bone:    seg.Bone,
		Kind:    Fallback,
		Regions: []hull.Region{{Bone: seg.Bone, Points: points}},
		Reason:  reason,
	}
}
