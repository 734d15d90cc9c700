// Package mesh defines the skinned-mesh data model consumed by the capsule
// pipeline, plus a glTF/VRM loader for it.
package mesh

import (
	"github.com/go-gl/mathgl/mgl64"
)

// MaxInfluences is the number of (bone, weight) pairs carried per vertex.
// glTF skins expose at most four influences per vertex set (JOINTS_0 /
// WEIGHTS_0), which is all this pipeline consumes.
const MaxInfluences = 4

// Influence is a single bone weight acting on a vertex.
type Influence struct {
	Bone   int
	Weight float64
}

// Vertex is a skinned mesh vertex in world space. Weights sum to at most 1;
// unused influence slots carry zero weight.
type Vertex struct {
	Position   mgl64.Vec3
	Influences [MaxInfluences]Influence
}

// Bone describes one skeleton joint in rest pose.
type Bone struct {
	Name     string
	Parent   int // index into the bone list, -1 for roots
	Position mgl64.Vec3
	Rotation mgl64.Quat // rest orientation, unit quaternion
	// Direction points from this joint towards its first child in rest
	// pose, normalized. Zero for leaf joints with no usable offset.
	Direction mgl64.Vec3
}

// Skinned is a skinned triangle mesh with its skeleton. It is treated as a
// read-only input for the whole pipeline run.
type Skinned struct {
	Vertices  []Vertex
	Triangles [][3]uint32
	Bones     []Bone
}

// Bounds returns the axis-aligned bounding box over all vertex positions.
// A mesh without vertices reports a zero box.
func (m *Skinned) Bounds() (bmin, bmax mgl64.Vec3) {
	if len(m.Vertices) == 0 {
		return mgl64.Vec3{}, mgl64.Vec3{}
	}
	bmin = m.Vertices[0].Position
	bmax = bmin
	for _, v := range m.Vertices[1:] {
		for i := 0; i < 3; i++ {
			if v.Position[i] < bmin[i] {
				bmin[i] = v.Position[i]
			}
			if v.Position[i] > bmax[i] {
				bmax[i] = v.Position[i]
			}
		}
	}
	return bmin, bmax
}

// BoneNames returns the bone names in index order.
func (m *Skinned) BoneNames() []string {
	names := make([]string, len(m.Bones))
	for i, b := range m.Bones {
		names[i] = b.Name
	}
	return names
}
