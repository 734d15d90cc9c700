// Package segment groups mesh vertices by their dominant skinning bone.
package segment

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/chibifire/tapered-capsule-with-keypoint-detection/pkg/mesh"
)

// DefaultInfluenceThreshold is the minimum dominant weight a vertex needs
// to be assigned to a bone segment at all.
const DefaultInfluenceThreshold = 0.1

// BoneSegment is the set of vertex positions dominated by one bone.
type BoneSegment struct {
	Bone      int
	Positions []mgl64.Vec3
}

// Split assigns every vertex to the segment of its dominant bone: the
// influence with the highest weight, ties broken by the lowest bone index.
// Vertices whose dominant weight is below threshold are excluded entirely.
// Segments are returned in ascending bone order; bones that attract no
// vertices do not appear. Split never fails and does not mutate its input.
func Split(vertices []mesh.Vertex, boneCount int, threshold float64) []BoneSegment {
	byBone := make(map[int][]mgl64.Vec3)
	for _, v := range vertices {
		bone, weight := Dominant(v)
		if bone < 0 || weight < threshold || bone >= boneCount {
			continue
		}
		byBone[bone] = append(byBone[bone], v.Position)
	}

	segments := make([]BoneSegment, 0, len(byBone))
	for bone := 0; bone < boneCount; bone++ {
		if positions, ok := byBone[bone]; ok {
			segments = append(segments, BoneSegment{Bone: bone, Positions: positions})
		}
	}
	return segments
}

// Dominant returns the bone index with the maximum weight acting on v and
// that weight. Equal weights resolve to the lowest bone index so repeated
// runs over identical data always agree. Returns (-1, 0) when no influence
// carries positive weight.
func Dominant(v mesh.Vertex) (bone int, weight float64) {
	bone = -1
	for _, inf := range v.Influences {
		if inf.Weight <= 0 {
			continue
		}
		if inf.Weight > weight || (inf.Weight == weight && bone >= 0 && inf.Bone < bone) {
			bone = inf.Bone
			weight = inf.Weight
		}
	}
	return bone, weight
}

// Centroid returns the arithmetic mean of the segment's positions.
func (s BoneSegment) Centroid() mgl64.Vec3 {
	if len(s.Positions) == 0 {
		return mgl64.Vec3{}
	}
	var sum mgl64.Vec3
	for _, p := range s.Positions {
		sum = sum.Add(p)
	}
	return sum.Mul(1 / float64(len(s.Positions)))
}
