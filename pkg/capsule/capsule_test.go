package capsule

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func yCapsule(length, rBottom, rTop float64) Candidate {
	return Candidate{
		Center:       mgl64.Vec3{0, length / 2, 0},
		Axis:         mgl64.Vec3{0, 1, 0},
		Length:       length,
		RadiusBottom: rBottom,
		RadiusTop:    rTop,
		Swing:        mgl64.QuatIdent(),
	}
}

func TestContains_CylindricalBody(t *testing.T) {
	c := yCapsule(1.0, 0.2, 0.2)

	tests := []struct {
		name string
		p    mgl64.Vec3
		want bool
	}{
		{"axis midpoint", mgl64.Vec3{0, 0.5, 0}, true},
		{"on side surface", mgl64.Vec3{0.2, 0.5, 0}, true},
		{"just outside side", mgl64.Vec3{0.21, 0.5, 0}, false},
		{"inside bottom cap", mgl64.Vec3{0, -0.1, 0}, true},
		{"outside bottom cap", mgl64.Vec3{0, -0.25, 0}, false},
		{"inside top cap", mgl64.Vec3{0, 1.15, 0}, true},
		{"outside top cap diagonal", mgl64.Vec3{0.15, 1.15, 0}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Contains(tt.p); got != tt.want {
				t.Errorf("Contains(%v) = %v, want %v", tt.p, got, tt.want)
			}
		})
	}
}

func TestContains_TaperInterpolates(t *testing.T) {
	// Radius grows linearly from 0.1 at the bottom to 0.3 at the top.
	c := yCapsule(1.0, 0.1, 0.3)

	// At t=0.5 the allowed radius is 0.2.
	if !c.Contains(mgl64.Vec3{0.19, 0.5, 0}) {
		t.Error("point within interpolated radius rejected")
	}
	if c.Contains(mgl64.Vec3{0.21, 0.5, 0}) {
		t.Error("point beyond interpolated radius accepted")
	}
	// Near the bottom the thin radius applies.
	if c.Contains(mgl64.Vec3{0.15, 0.05, 0}) {
		t.Error("bottom taper not applied")
	}
}

func TestContains_DegenerateActsAsSphere(t *testing.T) {
	c := Candidate{
		Center:       mgl64.Vec3{1, 1, 1},
		Axis:         mgl64.Vec3{0, 1, 0},
		Length:       0,
		RadiusTop:    0.5,
		RadiusBottom: 0.3,
	}
	if !c.Contains(mgl64.Vec3{1, 1.45, 1}) {
		t.Error("point inside max-radius sphere rejected")
	}
	if c.Contains(mgl64.Vec3{1, 1.55, 1}) {
		t.Error("point outside max-radius sphere accepted")
	}
}

func TestEndpoints(t *testing.T) {
	c := yCapsule(2.0, 0.1, 0.1)
	bottom, top := c.Endpoints()
	if bottom != (mgl64.Vec3{0, 0, 0}) || top != (mgl64.Vec3{0, 2, 0}) {
		t.Errorf("Endpoints = %v, %v", bottom, top)
	}
}

func TestOverlaps(t *testing.T) {
	a := yCapsule(1.0, 0.2, 0.2)
	b := yCapsule(1.0, 0.2, 0.2)
	b.Center = mgl64.Vec3{0.3, 0.5, 0}
	if !a.Overlaps(&b) {
		t.Error("touching capsules reported disjoint")
	}

	far := yCapsule(1.0, 0.2, 0.2)
	far.Center = mgl64.Vec3{5, 0, 0}
	if a.Overlaps(&far) {
		t.Error("distant capsules reported overlapping")
	}
}

func TestContains_ArbitraryAxis(t *testing.T) {
	axis := mgl64.Vec3{1, 1, 0}.Normalize()
	c := Candidate{
		Center:       mgl64.Vec3{0, 0, 0},
		Axis:         axis,
		Length:       2,
		RadiusTop:    0.25,
		RadiusBottom: 0.25,
	}
	if !c.Contains(mgl64.Vec3{0, 0, 0.2}) {
		t.Error("point near center rejected")
	}
	along := axis.Mul(0.9)
	if !c.Contains(along) {
		t.Error("point on axis rejected")
	}
	if c.Contains(axis.Mul(1.3)) {
		t.Error("point beyond cap accepted")
	}
	if math.Abs(c.Axis.Len()-1) > 1e-12 {
		t.Error("axis not unit length")
	}
}
