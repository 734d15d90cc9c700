// Package hull provides the convex-region type produced by decomposition
// and the geometric validity checks its consumers rely on.
package hull

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// MinPoints is the smallest point count that can enclose volume.
const MinPoints = 4

// degenerateEpsilon bounds how small an edge, triangle normal or
// out-of-plane offset may be before a cloud counts as degenerate.
const degenerateEpsilon = 1e-9

// Region is one convex vertex set derived from a bone segment, either a
// hull returned by the decomposition engine or the fallback hull built from
// the segment's own points.
type Region struct {
	Bone   int
	Points []mgl64.Vec3
}

// Degenerate reports whether points cannot enclose any volume: fewer than
// four distinct points, or all points collinear or coplanar.
func Degenerate(points []mgl64.Vec3) bool {
	if len(points) < MinPoints {
		return true
	}

	p0 := points[0]

	// A second point away from the first.
	i1 := -1
	for i := 1; i < len(points); i++ {
		if points[i].Sub(p0).Len() > degenerateEpsilon {
			i1 = i
			break
		}
	}
	if i1 < 0 {
		return true
	}
	e1 := points[i1].Sub(p0)

	// A third point off the line through the first two.
	var normal mgl64.Vec3
	found := false
	for i := i1 + 1; i < len(points); i++ {
		n := e1.Cross(points[i].Sub(p0))
		if n.Len() > degenerateEpsilon {
			normal = n.Normalize()
			found = true
			break
		}
	}
	if !found {
		return true
	}

	// A fourth point off the plane of the first three.
	for _, p := range points {
		if math.Abs(normal.Dot(p.Sub(p0))) > degenerateEpsilon {
			return false
		}
	}
	return true
}

// supportDirections is a 13-direction k-DOP basis: axes, face diagonals and
// corner diagonals. Min and max supporting points along each direction are
// convex-hull vertices of the cloud.
var supportDirections = buildSupportDirections()

func buildSupportDirections() []mgl64.Vec3 {
	raw := []mgl64.Vec3{
		{1, 0, 0}, {0, 1, 0}, {0, 0, 1},
		{1, 1, 0}, {1, -1, 0}, {1, 0, 1}, {1, 0, -1}, {0, 1, 1}, {0, 1, -1},
		{1, 1, 1}, {1, 1, -1}, {1, -1, 1}, {1, -1, -1},
	}
	dirs := make([]mgl64.Vec3, len(raw))
	for i, d := range raw {
		dirs[i] = d.Normalize()
	}
	return dirs
}

// SupportingPoints approximates the convex hull of a cloud by its extreme
// (supporting) vertices along a fixed direction basis. Clouds no larger
// than the supporting set itself are returned unchanged. Every returned
// point is a vertex of the true convex hull.
func SupportingPoints(points []mgl64.Vec3) []mgl64.Vec3 {
	if len(points) <= 2*len(supportDirections) {
		return points
	}

	seen := make(map[int]struct{}, 2*len(supportDirections))
	for _, dir := range supportDirections {
		minIdx, maxIdx := 0, 0
		minDot, maxDot := points[0].Dot(dir), points[0].Dot(dir)
		for i := 1; i < len(points); i++ {
			d := points[i].Dot(dir)
			if d < minDot {
				minDot, minIdx = d, i
			}
			if d > maxDot {
				maxDot, maxIdx = d, i
			}
		}
		seen[minIdx] = struct{}{}
		seen[maxIdx] = struct{}{}
	}

	// Keep input order so results are stable across runs.
	out := make([]mgl64.Vec3, 0, len(seen))
	for i, p := range points {
		if _, ok := seen[i]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Bounds returns the axis-aligned bounding box of the region's points.
func (r Region) Bounds() (bmin, bmax mgl64.Vec3) {
	if len(r.Points) == 0 {
		return mgl64.Vec3{}, mgl64.Vec3{}
	}
	bmin, bmax = r.Points[0], r.Points[0]
	for _, p := range r.Points[1:] {
		for i := 0; i < 3; i++ {
			bmin[i] = math.Min(bmin[i], p[i])
			bmax[i] = math.Max(bmax[i], p[i])
		}
	}
	return bmin, bmax
}
