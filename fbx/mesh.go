package fbx

import "github.com/modelexport/fbx2glb/geom"

// Face is a window into a mesh's corner index space.
type Face struct {
	Begin int
	Count int
}

// VertexVec3 is an indexed per-corner attribute stream. Indices has one entry
// per mesh corner; Values is the deduplicated attribute table.
type VertexVec3 struct {
	Exists  bool
	Values  []*geom.Vector3
	Indices []int32
}

func (s *VertexVec3) Get(corner int) *geom.Vector3 {
	return s.Values[s.Indices[corner]]
}

type VertexVec2 struct {
	Exists  bool
	Values  []*geom.Vector2
	Indices []int32
}

func (s *VertexVec2) Get(corner int) *geom.Vector2 {
	return s.Values[s.Indices[corner]]
}

type VertexVec4 struct {
	Exists  bool
	Values  []*geom.Vector4
	Indices []int32
}

func (s *VertexVec4) Get(corner int) *geom.Vector4 {
	return s.Values[s.Indices[corner]]
}

// UVSet is one named texture-coordinate stream.
type UVSet struct {
	Name string
	UV   VertexVec2
}

// MaterialPart is the face subset assigned to one material slot.
type MaterialPart struct {
	Slot        int
	FaceIndices []int32
}

// Mesh is a polygonal mesh with independently indexed attribute streams.
// Position always exists; the other streams carry an Exists flag. UVSets[0]
// is the default stream. MaterialParts is nil when the whole mesh uses a
// single implicit material.
type Mesh struct {
	Name            string
	Faces           []Face
	MaxFaceVertices int

	Position VertexVec3
	Normal   VertexVec3
	Color    VertexVec4
	UVSets   []UVSet

	Materials     []*Material
	MaterialParts []*MaterialPart
}

// UVSetByName returns the named set, or the default stream when no set
// matches or name is empty.
func (m *Mesh) UVSetByName(name string) *VertexVec2 {
	if name != "" {
		for i := range m.UVSets {
			if m.UVSets[i].Name == name {
				return &m.UVSets[i].UV
			}
		}
	}
	if len(m.UVSets) > 0 {
		return &m.UVSets[0].UV
	}
	return &VertexVec2{}
}
