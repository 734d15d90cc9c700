package capsule

import (
	"errors"
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/chibifire/tapered-capsule-with-keypoint-detection/pkg/hull"
	"github.com/chibifire/tapered-capsule-with-keypoint-detection/pkg/mesh"
)

// ErrEmptyRegion is returned when a region carries no points to fit.
var ErrEmptyRegion = errors.New("cannot fit capsule to empty region")

// FitOptions tune the capsule fitter.
type FitOptions struct {
	// RadiusQuantile is the perpendicular-distance quantile used as a cap
	// radius. Below the maximum on purpose: outlier vertices must not
	// inflate the fit.
	RadiusQuantile float64
	// BandFraction is the share of the axis extent, measured from each
	// endpoint, whose vertices contribute to that endpoint's radius.
	BandFraction float64
	// MinLength is the floor applied to near-zero axis extents so a flat
	// or spherical region still yields a valid candidate.
	MinLength float64
}

// DefaultFitOptions mirror the tuning the pipeline ships with.
func DefaultFitOptions() FitOptions {
	return FitOptions{
		RadiusQuantile: 0.9,
		BandFraction:   0.4,
		MinLength:      1e-4,
	}
}

func (o FitOptions) withDefaults() FitOptions {
	def := DefaultFitOptions()
	if o.RadiusQuantile <= 0 || o.RadiusQuantile > 1 {
		o.RadiusQuantile = def.RadiusQuantile
	}
	if o.BandFraction <= 0 || o.BandFraction > 1 {
		o.BandFraction = def.BandFraction
	}
	if o.MinLength <= 0 {
		o.MinLength = def.MinLength
	}
	return o
}

// Fit derives one tapered-capsule candidate from a convex region. The
// principal axis comes from the eigendecomposition of the point
// covariance; endpoints are the extreme axis projections; radii are the
// configured quantile of perpendicular distances in a band near each
// endpoint. The bone's rest pose orients the axis and supplies the twist
// reference. Degenerate regions (near-zero extent) produce a near-sphere
// rather than an error.
func Fit(region hull.Region, bone mesh.Bone, opts FitOptions) (Candidate, error) {
	if len(region.Points) == 0 {
		return Candidate{}, ErrEmptyRegion
	}
	opts = opts.withDefaults()

	mean := centroid(region.Points)
	axis := principalAxis(region.Points, mean)
	axis = orientAxis(axis, bone.Direction)

	// Axis-frame decomposition: t along the axis, d perpendicular to it.
	ts := make([]float64, len(region.Points))
	ds := make([]float64, len(region.Points))
	tMin, tMax := math.Inf(1), math.Inf(-1)
	for i, p := range region.Points {
		rel := p.Sub(mean)
		t := rel.Dot(axis)
		ts[i] = t
		ds[i] = rel.Sub(axis.Mul(t)).Len()
		tMin = math.Min(tMin, t)
		tMax = math.Max(tMax, t)
	}

	length := tMax - tMin
	c := Candidate{
		Axis:   axis,
		Center: mean.Add(axis.Mul((tMin + tMax) / 2)),
		Bone:   region.Bone,
	}

	if length < opts.MinLength {
		// Near-spherical region: both caps share the overall
		// perpendicular extent.
		r := radiusQuantile(ds, opts.RadiusQuantile)
		c.Length = opts.MinLength
		c.RadiusTop = r
		c.RadiusBottom = r
	} else {
		band := opts.BandFraction * length
		c.Length = length
		c.RadiusBottom = bandRadius(ts, ds, tMin, tMin+band, opts.RadiusQuantile)
		c.RadiusTop = bandRadius(ts, ds, tMax-band, tMax, opts.RadiusQuantile)
	}

	c.Swing = mgl64.QuatBetweenVectors(mgl64.Vec3{0, 1, 0}, axis).Normalize()
	c.Twist = twistAngle(c.Swing, axis, bone.Rotation)
	return c, nil
}

func centroid(points []mgl64.Vec3) mgl64.Vec3 {
	var sum mgl64.Vec3
	for _, p := range points {
		sum = sum.Add(p)
	}
	return sum.Mul(1 / float64(len(points)))
}

// principalAxis returns the unit eigenvector of the largest eigenvalue of
// the point covariance. Falls back to +Y if the decomposition cannot run
// (a single repeated point, for instance).
func principalAxis(points []mgl64.Vec3, mean mgl64.Vec3) mgl64.Vec3 {
	var cov [9]float64
	for _, p := range points {
		r := p.Sub(mean)
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				cov[i*3+j] += r[i] * r[j]
			}
		}
	}
	n := float64(len(points))
	for i := range cov {
		cov[i] /= n
	}

	var es mat.EigenSym
	if !es.Factorize(mat.NewSymDense(3, cov[:]), true) {
		return mgl64.Vec3{0, 1, 0}
	}
	var vecs mat.Dense
	es.VectorsTo(&vecs)
	// Eigenvalues come back in ascending order; the principal axis is the
	// last column.
	axis := mgl64.Vec3{vecs.At(0, 2), vecs.At(1, 2), vecs.At(2, 2)}
	if axis.Len() < 1e-12 {
		return mgl64.Vec3{0, 1, 0}
	}
	return axis.Normalize()
}

// orientAxis flips the sign-ambiguous PCA axis so it agrees with the
// bone's rest direction, or, without one, points its dominant component
// positive so repeated fits are identical.
func orientAxis(axis, boneDir mgl64.Vec3) mgl64.Vec3 {
	if boneDir.Len() > 0 {
		if axis.Dot(boneDir) < 0 {
			return axis.Mul(-1)
		}
		return axis
	}
	k := 0
	for i := 1; i < 3; i++ {
		if math.Abs(axis[i]) > math.Abs(axis[k]) {
			k = i
		}
	}
	if axis[k] < 0 {
		return axis.Mul(-1)
	}
	return axis
}

// bandRadius takes the quantile of perpendicular distances whose axis
// projection falls in [lo, hi]. Bands with fewer than three vertices widen
// to the whole region rather than trusting a tiny sample.
func bandRadius(ts, ds []float64, lo, hi, quantile float64) float64 {
	band := make([]float64, 0, len(ds))
	for i, t := range ts {
		if t >= lo && t <= hi {
			band = append(band, ds[i])
		}
	}
	if len(band) < 3 {
		band = append(band[:0], ds...)
	}
	return radiusQuantile(band, quantile)
}

func radiusQuantile(ds []float64, quantile float64) float64 {
	sorted := append([]float64(nil), ds...)
	sort.Float64s(sorted)
	r := stat.Quantile(quantile, stat.Empirical, sorted, nil)
	if r < 0 || math.IsNaN(r) {
		return 0
	}
	return r
}

// twistAngle measures how far the bone's rest lateral axis rotates, within
// the plane perpendicular to the capsule axis, away from the swing frame's
// lateral axis. This keeps the in-plane orientation anatomically aligned
// instead of arbitrary.
func twistAngle(swing mgl64.Quat, axis mgl64.Vec3, boneRot mgl64.Quat) float64 {
	ref := swing.Rotate(mgl64.Vec3{1, 0, 0})
	lat := boneRot.Rotate(mgl64.Vec3{1, 0, 0})
	latPerp := lat.Sub(axis.Mul(lat.Dot(axis)))
	if latPerp.Len() < 1e-9 {
		return 0
	}
	latPerp = latPerp.Normalize()
	return math.Atan2(axis.Dot(ref.Cross(latPerp)), ref.Dot(latPerp))
}
