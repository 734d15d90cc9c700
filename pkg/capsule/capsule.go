// Package capsule defines tapered capsules (independently sized end caps)
// and fits them to convex regions by principal-axis analysis.
package capsule

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Candidate is one fitted tapered capsule. RadiusBottom applies at the
// axis origin end (t=0), RadiusTop at the far end (t=Length); the side
// surface interpolates linearly between them and each end closes with a
// hemispherical cap. Candidates are immutable once fitted.
type Candidate struct {
	Center       mgl64.Vec3
	Axis         mgl64.Vec3 // unit vector
	Length       float64
	RadiusTop    float64
	RadiusBottom float64
	Swing        mgl64.Quat // rotates local +Y onto Axis
	Twist        float64    // radians about Axis
	Bone         int
}

// Endpoints returns the bottom (t=0) and top (t=Length) centerline ends.
func (c *Candidate) Endpoints() (bottom, top mgl64.Vec3) {
	half := c.Axis.Mul(c.Length / 2)
	return c.Center.Sub(half), c.Center.Add(half)
}

// MaxRadius returns the larger of the two cap radii.
func (c *Candidate) MaxRadius() float64 {
	return math.Max(c.RadiusTop, c.RadiusBottom)
}

// degenerateLength is the axis extent below which a capsule tests as a
// plain sphere.
const degenerateLength = 1e-8

// Contains reports whether p lies inside the capsule. The point projects
// onto the axis; within the segment the allowed radius interpolates
// between the cap radii, beyond an endpoint the full Euclidean distance to
// that endpoint is tested against its cap radius.
func (c *Candidate) Contains(p mgl64.Vec3) bool {
	bottom, top := c.Endpoints()
	if c.Length < degenerateLength {
		return p.Sub(c.Center).Len() <= c.MaxRadius()
	}

	t := p.Sub(bottom).Dot(c.Axis)
	switch {
	case t < 0:
		return p.Sub(bottom).Len() <= c.RadiusBottom
	case t > c.Length:
		return p.Sub(top).Len() <= c.RadiusTop
	default:
		r := c.RadiusBottom + (t/c.Length)*(c.RadiusTop-c.RadiusBottom)
		perp := p.Sub(bottom).Sub(c.Axis.Mul(t)).Len()
		return perp <= r
	}
}

// Overlaps is a cheap conservative overlap test between two capsules:
// true when their centerline segments come closer than the sum of their
// larger radii. Used only as a soft penalty signal, not for exact contact.
func (c *Candidate) Overlaps(o *Candidate) bool {
	d := segmentDistance(c, o)
	return d <= c.MaxRadius()+o.MaxRadius()
}

func segmentDistance(a, b *Candidate) float64 {
	a0, a1 := a.Endpoints()
	b0, b1 := b.Endpoints()

	// Sample-based segment distance; exact closed form is not needed for
	// a soft penalty.
	const steps = 8
	best := math.Inf(1)
	for i := 0; i <= steps; i++ {
		pa := a0.Add(a1.Sub(a0).Mul(float64(i) / steps))
		for j := 0; j <= steps; j++ {
			pb := b0.Add(b1.Sub(b0).Mul(float64(j) / steps))
			if d := pa.Sub(pb).Len(); d < best {
				best = d
			}
		}
	}
	return best
}
