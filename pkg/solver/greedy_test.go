package solver

import (
	"context"
	"errors"
	"math"
	"math/bits"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/chibifire/tapered-capsule-with-keypoint-detection/pkg/capsule"
	"github.com/chibifire/tapered-capsule-with-keypoint-detection/pkg/coverage"
	"github.com/chibifire/tapered-capsule-with-keypoint-detection/pkg/mesh"
)

func ball(x, r float64) capsule.Candidate {
	return capsule.Candidate{
		Center:       mgl64.Vec3{x, 0, 0},
		Axis:         mgl64.Vec3{0, 1, 0},
		RadiusTop:    r,
		RadiusBottom: r,
	}
}

// chainProblem places five spheres along the x axis and scatters 100
// witness points at the pairwise overlap midpoints, so every point sits
// inside exactly two adjacent spheres. The minimal cover has two spheres.
func chainProblem() Problem {
	candidates := []capsule.Candidate{
		ball(0, 0.6), ball(1, 0.6), ball(2, 0.6), ball(3, 0.6), ball(4, 0.6),
	}
	var points []mgl64.Vec3
	for mid := 0; mid < 4; mid++ {
		for i := 0; i < 25; i++ {
			y := -0.3 + 0.6*float64(i)/24
			points = append(points, mgl64.Vec3{float64(mid) + 0.5, y, 0})
		}
	}
	return Problem{
		Candidates: candidates,
		Points:     points,
		Coverage:   coverage.Build(candidates, points, 2),
	}
}

// bruteForceMin finds the size of the smallest covering subset.
func bruteForceMin(t *testing.T, p Problem) int {
	t.Helper()
	n := len(p.Candidates)
	best := n + 1
	for mask := 1; mask < 1<<n; mask++ {
		var sel []int
		for c := 0; c < n; c++ {
			if mask&(1<<c) != 0 {
				sel = append(sel, c)
			}
		}
		if len(p.Coverage.Uncovered(sel)) == 0 && bits.OnesCount(uint(mask)) < best {
			best = bits.OnesCount(uint(mask))
		}
	}
	if best > n {
		t.Fatal("brute force found no cover")
	}
	return best
}

func TestGreedy_MatchesBruteForceOnChain(t *testing.T) {
	p := chainProblem()
	sol, err := Greedy{}.Solve(context.Background(), p)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if left := p.Coverage.Uncovered(sol.Selected); len(left) != 0 {
		t.Fatalf("selection leaves %d witnesses uncovered", len(left))
	}
	want := bruteForceMin(t, p)
	if len(sol.Selected) != want {
		t.Errorf("selected %d capsules, brute-force minimum is %d", len(sol.Selected), want)
	}
	if sol.Proven {
		t.Error("greedy result must not claim a proven optimum")
	}
}

func TestGreedy_SingleCandidate(t *testing.T) {
	candidates := []capsule.Candidate{ball(0, 1)}
	points := []mgl64.Vec3{{0, 0, 0}, {0.5, 0, 0}}
	p := Problem{
		Candidates: candidates,
		Points:     points,
		Coverage:   coverage.Build(candidates, points, 1),
	}
	sol, err := Greedy{}.Solve(context.Background(), p)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if len(sol.Selected) != 1 || sol.Selected[0] != 0 {
		t.Errorf("Selected = %v, want [0]", sol.Selected)
	}
}

func TestGreedy_PrunesRedundantSelection(t *testing.T) {
	// Sphere 0 has the largest marginal gain so greedy picks it first,
	// but spheres 1 and 2 together cover everything it does plus one
	// outlier each. After pruning only 1 and 2 remain.
	candidates := []capsule.Candidate{
		ball(0.6, 0.7),  // {p0 p1 p2 p3}
		ball(-0.4, 0.7), // {p0 p1 p4}
		ball(1.6, 0.7),  // {p2 p3 p5}
	}
	points := []mgl64.Vec3{
		{0, 0, 0}, {0.2, 0, 0}, {1, 0, 0}, {1.2, 0, 0},
		{-1, 0, 0}, {2.2, 0, 0},
	}
	p := Problem{
		Candidates: candidates,
		Points:     points,
		Coverage:   coverage.Build(candidates, points, 1),
	}
	sol, err := Greedy{}.Solve(context.Background(), p)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if left := p.Coverage.Uncovered(sol.Selected); len(left) != 0 {
		t.Fatalf("selection leaves witnesses uncovered: %v", left)
	}
	if len(sol.Selected) != 2 || sol.Selected[0] != 1 || sol.Selected[1] != 2 {
		t.Errorf("Selected = %v, want [1 2]", sol.Selected)
	}
}

func TestGreedy_Infeasible(t *testing.T) {
	candidates := []capsule.Candidate{ball(0, 0.5)}
	points := []mgl64.Vec3{{10, 0, 0}}
	p := Problem{
		Candidates: candidates,
		Points:     points,
		Coverage:   coverage.Build(candidates, points, 1),
	}
	if _, err := (Greedy{}).Solve(context.Background(), p); !errors.Is(err, ErrInfeasible) {
		t.Errorf("err = %v, want ErrInfeasible", err)
	}
}

func TestGreedy_NoCandidates(t *testing.T) {
	p := Problem{Coverage: coverage.Build(nil, nil, 1)}
	if _, err := (Greedy{}).Solve(context.Background(), p); !errors.Is(err, ErrNoCandidates) {
		t.Errorf("err = %v, want ErrNoCandidates", err)
	}
}

func TestGreedy_ProximityRewardBreaksTies(t *testing.T) {
	// Both balls cover the single witness with equal volume; the reward
	// steers selection to the one anchored at its bone.
	far := ball(0.5, 1)
	far.Bone = 0
	near := ball(0.2, 1)
	near.Bone = 1
	candidates := []capsule.Candidate{far, near}
	points := []mgl64.Vec3{{0, 0, 0}}

	p := Problem{
		Candidates: candidates,
		Points:     points,
		Coverage:   coverage.Build(candidates, points, 1),
		Bones: []mesh.Bone{
			{Name: "a", Position: mgl64.Vec3{5, 0, 0}},
			{Name: "b", Position: mgl64.Vec3{0.2, 0, 0}},
		},
		Weights: Weights{ProximityReward: 0.5},
	}
	sol, err := Greedy{}.Solve(context.Background(), p)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if len(sol.Selected) != 1 || sol.Selected[0] != 1 {
		t.Errorf("Selected = %v, want the bone-anchored ball [1]", sol.Selected)
	}
}

func TestScore_OverlapPenalty(t *testing.T) {
	overlapping := ball(0.3, 0.5)
	distant := ball(5, 0.5)
	candidates := []capsule.Candidate{ball(0, 0.5), overlapping, distant}
	p := Problem{
		Candidates: candidates,
		Weights:    Weights{OverlapPenalty: 0.75},
	}
	selected := []int{0}

	if got := p.score(1, 2, selected); got != 2-0.75 {
		t.Errorf("overlapping score = %v, want 1.25", got)
	}
	if got := p.score(2, 2, selected); got != 2 {
		t.Errorf("distant score = %v, want 2", got)
	}
}

func TestVolume(t *testing.T) {
	// A straight sphere: zero-length capsule with equal radii.
	c := ball(0, 1)
	want := 4 * math.Pi / 3
	if got := Volume(&c); math.Abs(got-want) > 1e-9 {
		t.Errorf("Volume = %v, want %v", got, want)
	}

	// A cylinder body adds pi*r^2*L.
	c.Length = 2
	want += math.Pi * 2
	if got := Volume(&c); math.Abs(got-want) > 1e-9 {
		t.Errorf("Volume = %v, want %v", got, want)
	}
}

func TestAssemble(t *testing.T) {
	p := twoCapsuleProblem()
	p.Candidates[1].Bone = 1
	bones := []mesh.Bone{{Name: "hips"}, {Name: "spine"}}

	records := Assemble(p, Solution{Selected: []int{1}}, bones)
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	r := records[0]
	if r.BoneName != "spine" {
		t.Errorf("BoneName = %q, want spine", r.BoneName)
	}
	if r.Center != (mgl64.Vec3{1, 2, 3}) {
		t.Errorf("Center = %v", r.Center)
	}
	identity := [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}
	if r.Rotation != identity {
		t.Errorf("Rotation = %v, want identity", r.Rotation)
	}
}
