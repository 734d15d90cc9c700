// Package export writes selected capsules out as a glTF document, one
// triangulated tapered-capsule mesh per node.
package export

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/chibifire/tapered-capsule-with-keypoint-detection/pkg/solver"
)

// ErrNoRecords is returned when there is nothing to export.
var ErrNoRecords = errors.New("no capsule records to export")

// Tessellation of the capsule surface.
const (
	radialSegments = 16
	capRings       = 4
)

// Document builds a glTF document with one mesh node per capsule record.
// Geometry is baked in world space (twist, then swing, then translation)
// so node transforms stay identity; nodes take their bone's name.
func Document(records []solver.Record) (*gltf.Document, error) {
	if len(records) == 0 {
		return nil, ErrNoRecords
	}

	doc := gltf.NewDocument()
	for i, rec := range records {
		positions, indices := tessellate(&rec)

		posAccessor := modeler.WritePosition(doc, positions)
		idxAccessor := modeler.WriteIndices(doc, indices)

		name := rec.BoneName
		if name == "" {
			name = fmt.Sprintf("capsule_%d", i)
		}

		doc.Meshes = append(doc.Meshes, &gltf.Mesh{
			Name: name,
			Primitives: []*gltf.Primitive{{
				Attributes: map[string]uint32{"POSITION": posAccessor},
				Indices:    gltf.Index(idxAccessor),
				Mode:       gltf.PrimitiveTriangles,
			}},
		})
		doc.Nodes = append(doc.Nodes, &gltf.Node{
			Name:     name,
			Mesh:     gltf.Index(uint32(len(doc.Meshes) - 1)),
			Rotation: [4]float32{0, 0, 0, 1},
			Scale:    [3]float32{1, 1, 1},
		})
		doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, uint32(len(doc.Nodes)-1))
	}
	return doc, nil
}

// Save writes the records to path; .glb selects the binary container.
func Save(records []solver.Record, path string) error {
	doc, err := Document(records)
	if err != nil {
		return err
	}
	if len(path) > 4 && path[len(path)-4:] == ".glb" {
		return gltf.SaveBinary(doc, path)
	}
	return gltf.Save(doc, path)
}

// tessellate triangulates one tapered capsule: a bottom hemisphere, a
// conical body between the two cap radii, and a top hemisphere. Local
// geometry runs along +Y and is transformed into world space.
func tessellate(rec *solver.Record) ([][3]float32, []uint32) {
	half := rec.Length / 2

	// Profile curve in (radial, y) pairs, bottom to top. Hemisphere rings
	// sweep a quarter circle each.
	type ring struct {
		radius float64
		y      float64
	}
	var profile []ring
	profile = append(profile, ring{0, -half - rec.RadiusBottom})
	for i := 1; i <= capRings; i++ {
		a := math.Pi / 2 * float64(i) / capRings
		profile = append(profile, ring{
			radius: rec.RadiusBottom * math.Sin(a),
			y:      -half - rec.RadiusBottom*math.Cos(a),
		})
	}
	profile = append(profile, ring{rec.RadiusTop, half})
	for i := 1; i <= capRings; i++ {
		a := math.Pi / 2 * float64(i) / capRings
		profile = append(profile, ring{
			radius: rec.RadiusTop * math.Cos(a),
			y:      half + rec.RadiusTop*math.Sin(a),
		})
	}

	var positions [][3]float32
	for _, r := range profile {
		for s := 0; s < radialSegments; s++ {
			theta := 2 * math.Pi * float64(s) / radialSegments
			local := mgl64.Vec3{r.radius * math.Cos(theta), r.y, r.radius * math.Sin(theta)}
			positions = append(positions, toWorld(rec, local))
		}
	}

	var indices []uint32
	for r := 0; r < len(profile)-1; r++ {
		for s := 0; s < radialSegments; s++ {
			next := (s + 1) % radialSegments
			a := uint32(r*radialSegments + s)
			b := uint32(r*radialSegments + next)
			c := uint32((r+1)*radialSegments + s)
			d := uint32((r+1)*radialSegments + next)
			indices = append(indices, a, c, b, b, c, d)
		}
	}
	return positions, indices
}

// toWorld applies twist about the local axis, the swing rotation, and
// the center translation.
func toWorld(rec *solver.Record, local mgl64.Vec3) [3]float32 {
	cosT, sinT := math.Cos(rec.Twist), math.Sin(rec.Twist)
	twisted := mgl64.Vec3{
		local.X()*cosT - local.Z()*sinT,
		local.Y(),
		local.X()*sinT + local.Z()*cosT,
	}
	m := rec.Rotation
	world := mgl64.Vec3{
		m[0]*twisted.X() + m[1]*twisted.Y() + m[2]*twisted.Z(),
		m[3]*twisted.X() + m[4]*twisted.Y() + m[5]*twisted.Z(),
		m[6]*twisted.X() + m[7]*twisted.Y() + m[8]*twisted.Z(),
	}.Add(rec.Center)
	return [3]float32{float32(world.X()), float32(world.Y()), float32(world.Z())}
}
