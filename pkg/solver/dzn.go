package solver

import (
	"bufio"
	"fmt"
	"io"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// WriteDZN renders the problem as MiniZinc data. Field names follow the
// constraint model: problem dimensions, per-capsule geometry (center,
// height, cap radii, swing as a rotation vector, twist), witness points,
// and the coverage matrix flattened row-major.
func WriteDZN(w io.Writer, p Problem) error {
	bw := bufio.NewWriter(w)
	n := len(p.Candidates)
	np := len(p.Points)

	fmt.Fprintf(bw, "num_capsules = %d;\n", n)
	fmt.Fprintf(bw, "num_points = %d;\n\n", np)

	fmt.Fprintln(bw, "% Capsule parameters")
	fmt.Fprintf(bw, "capsule_centers = array2d(1..%d, 1..3, [", n)
	for i, c := range p.Candidates {
		writeVec(bw, c.Center, i > 0)
	}
	fmt.Fprint(bw, "]);\n")

	writeFloats(bw, "capsule_heights", n, func(c int) float64 {
		return p.Candidates[c].Length
	})
	writeFloats(bw, "capsule_radii_top", n, func(c int) float64 {
		return p.Candidates[c].RadiusTop
	})
	writeFloats(bw, "capsule_radii_bottom", n, func(c int) float64 {
		return p.Candidates[c].RadiusBottom
	})

	fmt.Fprintf(bw, "capsule_swing_rotations = array2d(1..%d, 1..3, [", n)
	for i, c := range p.Candidates {
		writeVec(bw, rotationVector(c.Swing), i > 0)
	}
	fmt.Fprint(bw, "]);\n")

	writeFloats(bw, "capsule_twist_rotations", n, func(c int) float64 {
		return p.Candidates[c].Twist
	})

	fmt.Fprintln(bw, "\n% Witness points")
	fmt.Fprintf(bw, "witness_points = array2d(1..%d, 1..3, [", np)
	for i, pt := range p.Points {
		writeVec(bw, pt, i > 0)
	}
	fmt.Fprint(bw, "]);\n")

	fmt.Fprintln(bw, "\n% Coverage matrix")
	fmt.Fprintf(bw, "coverage_matrix = array2d(1..%d, 1..%d, [", n, np)
	first := true
	for c := 0; c < n; c++ {
		for pt := 0; pt < np; pt++ {
			if !first {
				fmt.Fprint(bw, ", ")
			}
			first = false
			if p.Coverage.Covers(c, pt) {
				fmt.Fprint(bw, "1")
			} else {
				fmt.Fprint(bw, "0")
			}
		}
	}
	fmt.Fprint(bw, "]);\n")

	return bw.Flush()
}

func writeVec(w io.Writer, v mgl64.Vec3, comma bool) {
	if comma {
		fmt.Fprint(w, ", ")
	}
	fmt.Fprintf(w, "%.6f, %.6f, %.6f", v.X(), v.Y(), v.Z())
}

func writeFloats(w io.Writer, name string, n int, get func(int) float64) {
	fmt.Fprintf(w, "%s = [", name)
	for i := 0; i < n; i++ {
		if i > 0 {
			fmt.Fprint(w, ", ")
		}
		fmt.Fprintf(w, "%.6f", get(i))
	}
	fmt.Fprint(w, "];\n")
}

// rotationVector converts a quaternion to axis-angle form scaled by the
// angle, matching the three-component swing encoding the data file uses.
func rotationVector(q mgl64.Quat) mgl64.Vec3 {
	q = q.Normalize()
	w := math.Max(-1, math.Min(1, q.W))
	angle := 2 * math.Acos(w)
	s := math.Sqrt(1 - w*w)
	if s < 1e-9 {
		return mgl64.Vec3{}
	}
	return q.V.Mul(angle / s)
}
