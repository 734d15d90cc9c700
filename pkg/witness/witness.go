// Package witness draws deterministic interior sample points from a
// skinned mesh. The samples act as coverage witnesses: a capsule set is
// judged by which of these points it contains.
package witness

import (
	"errors"
	"math"
	"math/rand"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/chibifire/tapered-capsule-with-keypoint-detection/pkg/mesh"
)

// ErrNoVertices is returned when the mesh has nothing to sample.
var ErrNoVertices = errors.New("mesh has no vertices to sample")

// DefaultCount is the witness budget the pipeline ships with.
const DefaultCount = 5000

// maxPasses bounds how many stratified sweeps run before accepting a
// short sample set. Thin or degenerate interiors would otherwise loop
// forever.
const maxPasses = 12

// Options tune the sampler.
type Options struct {
	// Count is the target number of witness points.
	Count int
	// Seed feeds the jitter source; the same seed over the same mesh
	// yields the same points.
	Seed int64
}

func (o Options) withDefaults() Options {
	if o.Count <= 0 {
		o.Count = DefaultCount
	}
	return o
}

// rayDir is the fixed parity-test direction. Deliberately off-axis so
// rays do not graze axis-aligned triangle edges.
var rayDir = mgl64.Vec3{0.5320871, 0.7396003, 0.4121054}.Normalize()

// Sample draws up to opts.Count interior points from the mesh. Candidate
// points come from a jittered grid stratified over the bounding box; each
// is kept only if a parity ray test places it inside the triangle surface.
// Meshes without triangles fall back to raw bounding-box samples. The
// returned slice may be shorter than requested when the interior is thin;
// it is empty only on error.
func Sample(m *mesh.Skinned, opts Options) ([]mgl64.Vec3, error) {
	if len(m.Vertices) == 0 {
		return nil, ErrNoVertices
	}
	opts = opts.withDefaults()

	min, max := m.Bounds()
	ext := max.Sub(min)
	rng := rand.New(rand.NewSource(opts.Seed))

	if len(m.Triangles) == 0 {
		return boxSamples(rng, min, ext, opts.Count), nil
	}

	nx, ny, nz := gridDims(ext, opts.Count)
	cell := mgl64.Vec3{ext.X() / float64(nx), ext.Y() / float64(ny), ext.Z() / float64(nz)}

	points := make([]mgl64.Vec3, 0, opts.Count)
	for pass := 0; pass < maxPasses && len(points) < opts.Count; pass++ {
		for ix := 0; ix < nx && len(points) < opts.Count; ix++ {
			for iy := 0; iy < ny && len(points) < opts.Count; iy++ {
				for iz := 0; iz < nz && len(points) < opts.Count; iz++ {
					p := mgl64.Vec3{
						min.X() + (float64(ix)+rng.Float64())*cell.X(),
						min.Y() + (float64(iy)+rng.Float64())*cell.Y(),
						min.Z() + (float64(iz)+rng.Float64())*cell.Z(),
					}
					if inside(m, p) {
						points = append(points, p)
					}
				}
			}
		}
	}
	return points, nil
}

// boxSamples fills the bounding box uniformly. Used when no surface
// exists to test against.
func boxSamples(rng *rand.Rand, min, ext mgl64.Vec3, count int) []mgl64.Vec3 {
	points := make([]mgl64.Vec3, count)
	for i := range points {
		points[i] = mgl64.Vec3{
			min.X() + rng.Float64()*ext.X(),
			min.Y() + rng.Float64()*ext.Y(),
			min.Z() + rng.Float64()*ext.Z(),
		}
	}
	return points
}

// gridDims splits a target cell count across the three axes in proportion
// to the box extents, with at least one cell per axis.
func gridDims(ext mgl64.Vec3, count int) (nx, ny, nz int) {
	// Oversample: interior hit rate is well under 100%.
	target := float64(count) * 4
	ex, ey, ez := math.Max(ext.X(), 1e-9), math.Max(ext.Y(), 1e-9), math.Max(ext.Z(), 1e-9)
	scale := math.Cbrt(target / (ex * ey * ez))
	nx = clampDim(ex * scale)
	ny = clampDim(ey * scale)
	nz = clampDim(ez * scale)
	return nx, ny, nz
}

func clampDim(v float64) int {
	n := int(math.Ceil(v))
	if n < 1 {
		return 1
	}
	return n
}

// inside counts ray crossings against every triangle; odd parity means
// the point is interior. Linear in triangle count, which is fine for the
// mesh sizes this pipeline handles.
func inside(m *mesh.Skinned, p mgl64.Vec3) bool {
	crossings := 0
	for _, tri := range m.Triangles {
		a := m.Vertices[tri[0]].Position
		b := m.Vertices[tri[1]].Position
		c := m.Vertices[tri[2]].Position
		if rayHitsTriangle(p, rayDir, a, b, c) {
			crossings++
		}
	}
	return crossings%2 == 1
}

// rayHitsTriangle is the Moller-Trumbore intersection test, hits with
// t > 0 only.
func rayHitsTriangle(orig, dir, a, b, c mgl64.Vec3) bool {
	const eps = 1e-12

	e1 := b.Sub(a)
	e2 := c.Sub(a)
	h := dir.Cross(e2)
	det := e1.Dot(h)
	if math.Abs(det) < eps {
		return false
	}
	inv := 1 / det
	s := orig.Sub(a)
	u := s.Dot(h) * inv
	if u < 0 || u > 1 {
		return false
	}
	q := s.Cross(e1)
	v := dir.Dot(q) * inv
	if v < 0 || u+v > 1 {
		return false
	}
	t := e2.Dot(q) * inv
	return t > eps
}
