package witness

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/chibifire/tapered-capsule-with-keypoint-detection/pkg/mesh"
)

// unitCube returns a closed triangulated cube spanning [0,1]^3.
func unitCube() *mesh.Skinned {
	corners := []mgl64.Vec3{
		{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0},
		{0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1},
	}
	m := &mesh.Skinned{}
	for _, c := range corners {
		m.Vertices = append(m.Vertices, mesh.Vertex{Position: c})
	}
	m.Triangles = [][3]uint32{
		{0, 1, 2}, {0, 2, 3}, // z=0
		{4, 6, 5}, {4, 7, 6}, // z=1
		{0, 5, 1}, {0, 4, 5}, // y=0
		{3, 2, 6}, {3, 6, 7}, // y=1
		{0, 3, 7}, {0, 7, 4}, // x=0
		{1, 5, 6}, {1, 6, 2}, // x=1
	}
	return m
}

func TestSample_PointsInsideSolid(t *testing.T) {
	m := unitCube()
	points, err := Sample(m, Options{Count: 200, Seed: 7})
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if len(points) != 200 {
		t.Fatalf("got %d points, want 200 from a solid cube", len(points))
	}
	for i, p := range points {
		for axis := 0; axis < 3; axis++ {
			if p[axis] <= 0 || p[axis] >= 1 {
				t.Fatalf("point %d = %v escapes the cube", i, p)
			}
		}
	}
}

func TestSample_Reproducible(t *testing.T) {
	m := unitCube()
	a, err := Sample(m, Options{Count: 100, Seed: 42})
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	b, err := Sample(m, Options{Count: 100, Seed: 42})
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("point %d differs: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestSample_SeedChangesPoints(t *testing.T) {
	m := unitCube()
	a, _ := Sample(m, Options{Count: 50, Seed: 1})
	b, _ := Sample(m, Options{Count: 50, Seed: 2})
	same := len(a) == len(b)
	if same {
		for i := range a {
			if a[i] != b[i] {
				same = false
				break
			}
		}
	}
	if same {
		t.Error("different seeds produced identical samples")
	}
}

func TestSample_NoTrianglesFallsBackToBounds(t *testing.T) {
	m := &mesh.Skinned{Vertices: []mesh.Vertex{
		{Position: mgl64.Vec3{-1, -2, -3}},
		{Position: mgl64.Vec3{1, 2, 3}},
	}}
	points, err := Sample(m, Options{Count: 64, Seed: 3})
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if len(points) != 64 {
		t.Fatalf("got %d points, want 64", len(points))
	}
	for _, p := range points {
		if p.X() < -1 || p.X() > 1 || p.Y() < -2 || p.Y() > 2 || p.Z() < -3 || p.Z() > 3 {
			t.Fatalf("point %v outside bounds", p)
		}
	}
}

func TestSample_EmptyMesh(t *testing.T) {
	if _, err := Sample(&mesh.Skinned{}, Options{}); err != ErrNoVertices {
		t.Errorf("err = %v, want ErrNoVertices", err)
	}
}

func TestSample_DefaultCount(t *testing.T) {
	m := unitCube()
	points, err := Sample(m, Options{Seed: 5})
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if len(points) != DefaultCount {
		t.Errorf("got %d points, want %d", len(points), DefaultCount)
	}
}
