// Package solver selects a minimal subset of capsule candidates that
// still covers every witness point. The reference backend shells out to
// MiniZinc; a greedy in-process backend serves as fallback and for tests.
package solver

import (
	"context"
	"errors"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/chibifire/tapered-capsule-with-keypoint-detection/pkg/capsule"
	"github.com/chibifire/tapered-capsule-with-keypoint-detection/pkg/coverage"
	"github.com/chibifire/tapered-capsule-with-keypoint-detection/pkg/mesh"
)

var (
	// ErrNoCandidates is returned for a problem with an empty candidate set.
	ErrNoCandidates = errors.New("no capsule candidates to select from")
	// ErrInfeasible is returned when some witness point is covered by no
	// candidate at all, so no selection can cover everything.
	ErrInfeasible = errors.New("witness points exist that no candidate covers")
	// ErrEmptySelection is returned when a backend reports success but
	// selects nothing.
	ErrEmptySelection = errors.New("solver returned an empty selection")
)

// Weights soften the pure count objective. Zero values disable a term.
type Weights struct {
	// OverlapPenalty discourages picking a capsule that overlaps ones
	// already selected.
	OverlapPenalty float64
	// ProximityReward favors capsules whose center sits close to their
	// bone's rest position, keeping proxies anatomically anchored.
	ProximityReward float64
}

// Problem is one set-covering instance.
type Problem struct {
	Candidates []capsule.Candidate
	Points     []mgl64.Vec3
	Coverage   *coverage.Matrix
	Weights    Weights
	// Bones supplies rest positions for the proximity reward and names
	// for assembly. May be nil when neither is wanted.
	Bones []mesh.Bone
}

// Solution is a candidate subset covering all witness points.
type Solution struct {
	// Selected holds candidate indices, ascending.
	Selected []int
	// Objective is the backend's objective value, when it reports one.
	Objective float64
	// Proven is true when the backend proved the solution optimal rather
	// than running out of time.
	Proven bool
}

// Solver picks a covering subset of the problem's candidates.
type Solver interface {
	Solve(ctx context.Context, p Problem) (Solution, error)
}

// Validate rejects problems no backend can solve: empty candidate sets
// and witnesses outside every candidate.
func (p Problem) Validate() error {
	if len(p.Candidates) == 0 {
		return ErrNoCandidates
	}
	if p.Coverage == nil {
		return errors.New("problem has no coverage matrix")
	}
	if len(p.Coverage.Uncovered(nil)) > 0 {
		return ErrInfeasible
	}
	return nil
}

// Volume approximates a tapered capsule's volume: a truncated cone body
// plus two hemispherical caps. Backends use it to break ties toward
// smaller geometry.
func Volume(c *capsule.Candidate) float64 {
	rb, rt := c.RadiusBottom, c.RadiusTop
	body := math.Pi / 3 * c.Length * (rb*rb + rb*rt + rt*rt)
	caps := 2 * math.Pi / 3 * (rb*rb*rb + rt*rt*rt)
	return body + caps
}

// Record is one selected capsule in output form: the swing expanded to a
// row-major 3x3 rotation and the bone resolved to its name.
type Record struct {
	Center       mgl64.Vec3
	Length       float64
	RadiusTop    float64
	RadiusBottom float64
	Rotation     [9]float64
	Twist        float64
	Bone         int
	BoneName     string
}

// Assemble resolves a solution back into concrete capsule records.
func Assemble(p Problem, s Solution, bones []mesh.Bone) []Record {
	records := make([]Record, 0, len(s.Selected))
	for _, i := range s.Selected {
		c := p.Candidates[i]
		r := Record{
			Center:       c.Center,
			Length:       c.Length,
			RadiusTop:    c.RadiusTop,
			RadiusBottom: c.RadiusBottom,
			Rotation:     rotationMatrix(c.Swing),
			Twist:        c.Twist,
			Bone:         c.Bone,
		}
		if c.Bone >= 0 && c.Bone < len(bones) {
			r.BoneName = bones[c.Bone].Name
		}
		records = append(records, r)
	}
	return records
}

// rotationMatrix expands a quaternion to a row-major 3x3 matrix.
func rotationMatrix(q mgl64.Quat) [9]float64 {
	m := q.Mat4()
	// mgl matrices are column-major.
	return [9]float64{
		m[0], m[4], m[8],
		m[1], m[5], m[9],
		m[2], m[6], m[10],
	}
}
