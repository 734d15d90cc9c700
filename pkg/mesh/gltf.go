package mesh

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

// glTF loader errors.
var (
	ErrNoSkin = errors.New("gltf document has no skin")
	ErrNoMesh = errors.New("gltf document has no triangle geometry")
)

// LoadGLTF reads a skinned mesh and its skeleton from a glTF, GLB or VRM
// file. Vertex positions are transformed into world space using the node
// hierarchy; bone influences are indexed relative to the skin's joint list.
func LoadGLTF(path string) (*Skinned, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening gltf %s: %w", path, err)
	}
	return FromDocument(doc)
}

// FromDocument extracts the skinned mesh from an already-parsed document.
func FromDocument(doc *gltf.Document) (*Skinned, error) {
	if len(doc.Skins) == 0 {
		return nil, ErrNoSkin
	}
	world := worldTransforms(doc)
	skin := doc.Skins[0]

	out := &Skinned{}
	if err := extractBones(doc, skin, world, out); err != nil {
		return nil, err
	}

	for iNode, node := range doc.Nodes {
		if node.Mesh == nil {
			continue
		}
		nodeWorld := world[iNode]
		gm := doc.Meshes[*node.Mesh]
		for _, prim := range gm.Primitives {
			if prim.Mode != gltf.PrimitiveTriangles {
				continue
			}
			if err := extractPrimitive(doc, prim, nodeWorld, out); err != nil {
				return nil, fmt.Errorf("node %d mesh %q: %w", iNode, gm.Name, err)
			}
		}
	}

	if len(out.Triangles) == 0 && len(out.Vertices) == 0 {
		return nil, ErrNoMesh
	}
	return out, nil
}

func extractPrimitive(doc *gltf.Document, prim *gltf.Primitive, nodeWorld mgl64.Mat4, out *Skinned) error {
	posIdx, ok := prim.Attributes["POSITION"]
	if !ok {
		return errors.New("primitive has no POSITION attribute")
	}
	positions, err := modeler.ReadPosition(doc, doc.Accessors[posIdx], nil)
	if err != nil {
		return fmt.Errorf("reading positions: %w", err)
	}

	var joints [][4]uint16
	var weights [][4]float32
	if jIdx, ok := prim.Attributes["JOINTS_0"]; ok {
		if joints, err = modeler.ReadJoints(doc, doc.Accessors[jIdx], nil); err != nil {
			return fmt.Errorf("reading joints: %w", err)
		}
	}
	if wIdx, ok := prim.Attributes["WEIGHTS_0"]; ok {
		if weights, err = modeler.ReadWeights(doc, doc.Accessors[wIdx], nil); err != nil {
			return fmt.Errorf("reading weights: %w", err)
		}
	}

	base := uint32(len(out.Vertices))
	for i, p := range positions {
		local := mgl64.Vec3{float64(p[0]), float64(p[1]), float64(p[2])}
		v := Vertex{Position: mgl64.TransformCoordinate(local, nodeWorld)}
		if joints != nil && weights != nil && i < len(joints) && i < len(weights) {
			for k := 0; k < MaxInfluences; k++ {
				v.Influences[k] = Influence{
					Bone:   int(joints[i][k]),
					Weight: float64(weights[i][k]),
				}
			}
		}
		out.Vertices = append(out.Vertices, v)
	}

	var indices []uint32
	if prim.Indices != nil {
		if indices, err = modeler.ReadIndices(doc, doc.Accessors[*prim.Indices], nil); err != nil {
			return fmt.Errorf("reading indices: %w", err)
		}
	} else {
		indices = make([]uint32, len(positions))
		for i := range indices {
			indices[i] = uint32(i)
		}
	}
	for i := 0; i+2 < len(indices); i += 3 {
		out.Triangles = append(out.Triangles, [3]uint32{
			base + indices[i], base + indices[i+1], base + indices[i+2],
		})
	}
	return nil
}

func extractBones(doc *gltf.Document, skin *gltf.Skin, world []mgl64.Mat4, out *Skinned) error {
	jointOf := make(map[uint32]int, len(skin.Joints))
	for i, n := range skin.Joints {
		if int(n) >= len(doc.Nodes) {
			return fmt.Errorf("skin joint %d references missing node %d", i, n)
		}
		jointOf[n] = i
	}

	parents := parentIndex(doc)
	out.Bones = make([]Bone, len(skin.Joints))
	for i, n := range skin.Joints {
		node := doc.Nodes[n]
		name := node.Name
		if name == "" {
			name = fmt.Sprintf("joint_%d", n)
		}
		parent := -1
		if p := parents[n]; p >= 0 {
			if j, ok := jointOf[uint32(p)]; ok {
				parent = j
			}
		}
		w := world[n]
		out.Bones[i] = Bone{
			Name:     name,
			Parent:   parent,
			Position: mgl64.Vec3{w[12], w[13], w[14]},
			Rotation: rotationOf(w),
		}
	}

	// Rest-pose directions run parent -> child; a parent without one yet
	// inherits the direction towards its first child.
	for i := range out.Bones {
		p := out.Bones[i].Parent
		if p < 0 {
			continue
		}
		dir := out.Bones[i].Position.Sub(out.Bones[p].Position)
		if dir.Len() < 1e-6 {
			continue
		}
		dir = dir.Normalize()
		out.Bones[i].Direction = dir
		if out.Bones[p].Direction.Len() == 0 {
			out.Bones[p].Direction = dir
		}
	}
	return nil
}

// parentIndex maps each node index to its parent node index, -1 for roots.
func parentIndex(doc *gltf.Document) []int {
	parents := make([]int, len(doc.Nodes))
	for i := range parents {
		parents[i] = -1
	}
	for i, node := range doc.Nodes {
		for _, c := range node.Children {
			if int(c) < len(parents) {
				parents[c] = i
			}
		}
	}
	return parents
}

// worldTransforms accumulates node transforms from the roots down.
func worldTransforms(doc *gltf.Document) []mgl64.Mat4 {
	parents := parentIndex(doc)
	world := make([]mgl64.Mat4, len(doc.Nodes))
	done := make([]bool, len(doc.Nodes))

	var resolve func(i int) mgl64.Mat4
	resolve = func(i int) mgl64.Mat4 {
		if done[i] {
			return world[i]
		}
		done[i] = true // set before recursing to break malformed cycles
		local := localTransform(doc.Nodes[i])
		if p := parents[i]; p >= 0 {
			world[i] = resolve(p).Mul4(local)
		} else {
			world[i] = local
		}
		return world[i]
	}
	for i := range doc.Nodes {
		resolve(i)
	}
	return world
}

var identityMatrix = [16]float32{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}

func localTransform(node *gltf.Node) mgl64.Mat4 {
	// Hand-built documents leave Matrix at its zero value; parsed ones
	// default it to identity. Either way TRS applies.
	if node.Matrix != identityMatrix && node.Matrix != ([16]float32{}) {
		var m mgl64.Mat4
		for i, v := range node.Matrix {
			m[i] = float64(v)
		}
		return m
	}
	t := mgl64.Translate3D(
		float64(node.Translation[0]),
		float64(node.Translation[1]),
		float64(node.Translation[2]))
	q := mgl64.Quat{
		W: float64(node.Rotation[3]),
		V: mgl64.Vec3{
			float64(node.Rotation[0]),
			float64(node.Rotation[1]),
			float64(node.Rotation[2]),
		},
	}
	// Hand-built documents may leave Scale at its zero value; glTF's
	// default is unit scale.
	scale := node.Scale
	if scale == [3]float32{} {
		scale = [3]float32{1, 1, 1}
	}
	s := mgl64.Scale3D(float64(scale[0]), float64(scale[1]), float64(scale[2]))
	if q.Len() == 0 {
		q = mgl64.QuatIdent()
	}
	return t.Mul4(q.Normalize().Mat4()).Mul4(s)
}

// rotationOf extracts the pure rotation of a world transform, discarding
// scale by normalizing the basis columns.
func rotationOf(m mgl64.Mat4) mgl64.Quat {
	c0 := mgl64.Vec3{m[0], m[1], m[2]}
	c1 := mgl64.Vec3{m[4], m[5], m[6]}
	c2 := mgl64.Vec3{m[8], m[9], m[10]}
	if c0.Len() == 0 || c1.Len() == 0 || c2.Len() == 0 {
		return mgl64.QuatIdent()
	}
	c0, c1, c2 = c0.Normalize(), c1.Normalize(), c2.Normalize()
	r := mgl64.Mat4{
		c0[0], c0[1], c0[2], 0,
		c1[0], c1[1], c1[2], 0,
		c2[0], c2[1], c2[2], 0,
		0, 0, 0, 1,
	}
	return mgl64.Mat4ToQuat(r).Normalize()
}
