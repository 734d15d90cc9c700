package mesh

import (
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

// skinnedTriangleDoc builds a two-joint skeleton and a single skinned
// triangle hanging off a translated mesh node.
func skinnedTriangleDoc() *gltf.Document {
	doc := gltf.NewDocument()

	pos := modeler.WritePosition(doc, [][3]float32{
		{0, 0, 0}, {1, 0, 0}, {0, 1, 0},
	})
	joints := modeler.WriteJoints(doc, [][4]uint16{
		{0, 0, 0, 0}, {0, 1, 0, 0}, {1, 0, 0, 0},
	})
	weights := modeler.WriteWeights(doc, [][4]float32{
		{1, 0, 0, 0}, {0.6, 0.4, 0, 0}, {1, 0, 0, 0},
	})
	idx := modeler.WriteIndices(doc, []uint32{0, 1, 2})

	doc.Meshes = append(doc.Meshes, &gltf.Mesh{
		Name: "body",
		Primitives: []*gltf.Primitive{{
			Attributes: map[string]uint32{
				"POSITION":  pos,
				"JOINTS_0":  joints,
				"WEIGHTS_0": weights,
			},
			Indices: gltf.Index(idx),
			Mode:    gltf.PrimitiveTriangles,
		}},
	})

	doc.Nodes = []*gltf.Node{
		{Name: "hips", Children: []uint32{1}},
		{Name: "spine", Translation: [3]float32{0, 1, 0}},
		{Name: "body", Mesh: gltf.Index(0), Translation: [3]float32{1, 0, 0}},
	}
	doc.Skins = []*gltf.Skin{{Joints: []uint32{0, 1}}}
	doc.Scenes[0].Nodes = []uint32{0, 2}
	return doc
}

func TestFromDocument_NoSkin(t *testing.T) {
	doc := gltf.NewDocument()
	if _, err := FromDocument(doc); !errors.Is(err, ErrNoSkin) {
		t.Fatalf("err = %v, want ErrNoSkin", err)
	}
}

func TestFromDocument_SkinnedTriangle(t *testing.T) {
	m, err := FromDocument(skinnedTriangleDoc())
	if err != nil {
		t.Fatalf("FromDocument: %v", err)
	}

	if len(m.Vertices) != 3 {
		t.Fatalf("got %d vertices, want 3", len(m.Vertices))
	}
	if len(m.Triangles) != 1 {
		t.Fatalf("got %d triangles, want 1", len(m.Triangles))
	}

	// The mesh node is translated by +1 in x; positions must land in
	// world space.
	if m.Vertices[0].Position != (mgl64.Vec3{1, 0, 0}) {
		t.Errorf("vertex 0 = %v, want {1 0 0}", m.Vertices[0].Position)
	}
	if m.Vertices[2].Position != (mgl64.Vec3{1, 1, 0}) {
		t.Errorf("vertex 2 = %v, want {1 1 0}", m.Vertices[2].Position)
	}

	// Influences come straight from the attribute streams.
	v1 := m.Vertices[1]
	if v1.Influences[0].Bone != 0 || math.Abs(v1.Influences[0].Weight-0.6) > 1e-6 {
		t.Errorf("vertex 1 influence 0 = %+v", v1.Influences[0])
	}
	if v1.Influences[1].Bone != 1 || math.Abs(v1.Influences[1].Weight-0.4) > 1e-6 {
		t.Errorf("vertex 1 influence 1 = %+v", v1.Influences[1])
	}
}

func TestFromDocument_Bones(t *testing.T) {
	m, err := FromDocument(skinnedTriangleDoc())
	if err != nil {
		t.Fatalf("FromDocument: %v", err)
	}
	if len(m.Bones) != 2 {
		t.Fatalf("got %d bones, want 2", len(m.Bones))
	}

	hips, spine := m.Bones[0], m.Bones[1]
	if hips.Name != "hips" || hips.Parent != -1 {
		t.Errorf("hips = %+v", hips)
	}
	if spine.Name != "spine" || spine.Parent != 0 {
		t.Errorf("spine = %+v", spine)
	}
	if spine.Position != (mgl64.Vec3{0, 1, 0}) {
		t.Errorf("spine position = %v, want {0 1 0}", spine.Position)
	}

	// Direction runs parent -> child, and the root inherits it.
	up := mgl64.Vec3{0, 1, 0}
	if spine.Direction != up {
		t.Errorf("spine direction = %v, want %v", spine.Direction, up)
	}
	if hips.Direction != up {
		t.Errorf("hips direction = %v, want %v", hips.Direction, up)
	}
}

func TestFromDocument_JointOrderDefinesBoneIndex(t *testing.T) {
	doc := skinnedTriangleDoc()
	doc.Skins[0].Joints = []uint32{1, 0}

	m, err := FromDocument(doc)
	if err != nil {
		t.Fatalf("FromDocument: %v", err)
	}
	if m.Bones[0].Name != "spine" || m.Bones[1].Name != "hips" {
		t.Errorf("bones = %v, want joint order [spine hips]", m.BoneNames())
	}
	if m.Bones[0].Parent != 1 {
		t.Errorf("spine parent = %d, want 1", m.Bones[0].Parent)
	}
}

func TestFromDocument_MatrixNode(t *testing.T) {
	doc := skinnedTriangleDoc()
	// Replace the mesh node's TRS with an equivalent column-major matrix
	// translating by {0, 0, 2}.
	doc.Nodes[2].Translation = [3]float32{}
	doc.Nodes[2].Matrix = [16]float32{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 2, 1,
	}

	m, err := FromDocument(doc)
	if err != nil {
		t.Fatalf("FromDocument: %v", err)
	}
	if m.Vertices[0].Position != (mgl64.Vec3{0, 0, 2}) {
		t.Errorf("vertex 0 = %v, want {0 0 2}", m.Vertices[0].Position)
	}
}

func TestFromDocument_RotatedJoint(t *testing.T) {
	doc := skinnedTriangleDoc()
	// Quarter turn about Z on the root joint; the child joint's world
	// position rotates with it.
	s, c := float32(math.Sqrt(0.5)), float32(math.Sqrt(0.5))
	doc.Nodes[0].Rotation = [4]float32{0, 0, s, c}

	m, err := FromDocument(doc)
	if err != nil {
		t.Fatalf("FromDocument: %v", err)
	}
	spine := m.Bones[1]
	if spine.Position.Sub(mgl64.Vec3{-1, 0, 0}).Len() > 1e-6 {
		t.Errorf("rotated spine position = %v, want {-1 0 0}", spine.Position)
	}
	// The root's rest rotation must reflect the quarter turn.
	rotated := m.Bones[0].Rotation.Rotate(mgl64.Vec3{1, 0, 0})
	if rotated.Sub(mgl64.Vec3{0, 1, 0}).Len() > 1e-6 {
		t.Errorf("hips rotation maps +X to %v, want {0 1 0}", rotated)
	}
}

func TestLoadGLTF_MissingFile(t *testing.T) {
	if _, err := LoadGLTF("/nonexistent/avatar.glb"); err == nil {
		t.Fatal("expected error for missing file")
	}
}
