package converter

import (
	"math"
	"testing"

	"github.com/modelexport/fbx2glb/fbx"
	"github.com/modelexport/fbx2glb/geom"
)

func quadMesh() *fbx.Mesh {
	return &fbx.Mesh{
		Name:            "quad",
		Faces:           []fbx.Face{{Begin: 0, Count: 4}},
		MaxFaceVertices: 4,
		Position: fbx.VertexVec3{
			Exists:  true,
			Values:  []*geom.Vector3{{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 1, Y: 1, Z: 0}, {X: 0, Y: 1, Z: 0}},
			Indices: []int32{0, 1, 2, 3},
		},
	}
}

func testNode(mesh *fbx.Mesh) *fbx.SceneNode {
	return &fbx.SceneNode{Name: "node", GeometryToWorld: geom.NewMatrix4(), Mesh: mesh}
}

func TestConvertMeshPart_Quad(t *testing.T) {
	const eps = 0.0001

	c := NewFBXToExportConverter(nil)
	part := c.convertMeshPart(testNode(quadMesh()), quadMesh(), nil, nil, 0)

	if part.VertexCount != 6 {
		t.Fatal("vertex count: ", part.VertexCount)
	}
	if part.VertexCount%3 != 0 {
		t.Error("vertex count must be a multiple of 3")
	}
	if part.HasNormals || part.HasUVs || part.HasColors {
		t.Error("no source streams: ", part.HasNormals, part.HasUVs, part.HasColors)
	}
	if len(part.Positions) != 18 || len(part.Normals) != 18 || len(part.UVs) != 12 || len(part.Colors) != 24 {
		t.Error("buffer sizes: ", len(part.Positions), len(part.Normals), len(part.UVs), len(part.Colors))
	}
	// Counter-clockwise quad in the XY plane faces +Z; every synthesized
	// normal is the same flat normal.
	for i := 0; i < part.VertexCount; i++ {
		n := geom.NewVector3(part.Normals[i*3], part.Normals[i*3+1], part.Normals[i*3+2])
		if n.Sub(geom.NewVector3(0, 0, 1)).Len() > eps {
			t.Fatal("flat normal: ", n, " at ", i)
		}
	}
	// Colors default to opaque white.
	for i := 0; i < part.VertexCount*4; i++ {
		if part.Colors[i] != 1 {
			t.Fatal("default color: ", part.Colors)
		}
	}
}

func TestConvertMeshPart_DegenerateFaces(t *testing.T) {
	mesh := quadMesh()
	mesh.Faces = []fbx.Face{{Begin: 0, Count: 2}, {Begin: 2, Count: 2}}
	mesh.MaxFaceVertices = 2

	part := NewFBXToExportConverter(nil).convertMeshPart(testNode(mesh), mesh, nil, nil, 0)
	if part.VertexCount != 0 {
		t.Error("degenerate faces should produce an empty part: ", part.VertexCount)
	}
	if part.Positions != nil || part.Normals != nil || part.UVs != nil || part.Colors != nil {
		t.Error("empty part should have no buffers")
	}
}

func TestConvertMeshPart_FanTriangulation(t *testing.T) {
	mesh := quadMesh()
	// 5-gon and a triangle: (5-2)+(3-2) = 4 triangles.
	mesh.Position.Values = append(mesh.Position.Values,
		&geom.Vector3{X: 0.5, Y: 1.5, Z: 0}, &geom.Vector3{X: 2, Y: 0, Z: 0}, &geom.Vector3{X: 2, Y: 1, Z: 0})
	mesh.Position.Indices = []int32{0, 1, 2, 3, 4, 1, 5, 6}
	mesh.Faces = []fbx.Face{{Begin: 0, Count: 5}, {Begin: 5, Count: 3}}
	mesh.MaxFaceVertices = 5

	part := NewFBXToExportConverter(nil).convertMeshPart(testNode(mesh), mesh, nil, nil, 0)
	if part.VertexCount != 12 {
		t.Error("vertex count: ", part.VertexCount)
	}
}

func TestConvertMeshPart_MirrorWinding(t *testing.T) {
	c := NewFBXToExportConverter(nil)
	mesh := quadMesh()

	plain := c.convertMeshPart(testNode(mesh), mesh, nil, nil, 0)

	mirrored := testNode(mesh)
	mirrored.GeometryToWorld = geom.NewScaleMatrix4(-1, 1, 1)
	swapped := c.convertMeshPart(mirrored, mesh, nil, nil, 0)

	// The 2nd and 3rd vertex of each triangle swap; compare x-negated
	// positions of the first triangle.
	for tri := 0; tri < 2; tri++ {
		p := func(part *MeshPartInfo, v int) [3]float32 {
			i := (tri*3 + v) * 3
			return [3]float32{part.Positions[i], part.Positions[i+1], part.Positions[i+2]}
		}
		negX := func(a [3]float32) [3]float32 { return [3]float32{-a[0], a[1], a[2]} }
		if p(swapped, 0) != negX(p(plain, 0)) {
			t.Error("1st vertex should stay: ", p(swapped, 0))
		}
		if p(swapped, 1) != negX(p(plain, 2)) || p(swapped, 2) != negX(p(plain, 1)) {
			t.Error("2nd and 3rd vertex should swap")
		}
	}
}

func TestConvertMeshPart_NormalTransform(t *testing.T) {
	const eps = 0.0001

	mesh := quadMesh()
	mesh.Normal = fbx.VertexVec3{
		Exists:  true,
		Values:  []*geom.Vector3{{X: 0, Y: 0, Z: 1}},
		Indices: []int32{0, 0, 0, 0},
	}
	node := testNode(mesh)
	// Non-uniform scale; normals must be renormalized to unit length.
	node.GeometryToWorld = geom.NewScaleMatrix4(2, 1, 0.5)

	part := NewFBXToExportConverter(nil).convertMeshPart(node, mesh, nil, nil, 0)
	if !part.HasNormals {
		t.Fatal("has normals")
	}
	for i := 0; i < part.VertexCount; i++ {
		n := geom.NewVector3(part.Normals[i*3], part.Normals[i*3+1], part.Normals[i*3+2])
		if math.Abs(float64(n.Len()-1)) > eps {
			t.Fatal("unit length: ", n)
		}
	}
}

func TestConvertMeshPart_ZeroNormalPassthrough(t *testing.T) {
	mesh := quadMesh()
	mesh.Normal = fbx.VertexVec3{
		Exists:  true,
		Values:  []*geom.Vector3{{}},
		Indices: []int32{0, 0, 0, 0},
	}
	part := NewFBXToExportConverter(nil).convertMeshPart(testNode(mesh), mesh, nil, nil, 0)
	for i := 0; i < 3; i++ {
		if part.Normals[i] != 0 {
			t.Fatal("zero normal should pass through: ", part.Normals[:3])
		}
	}
}

func TestConvertMeshPart_UVFlip(t *testing.T) {
	const eps = 0.0001

	mesh := quadMesh()
	mesh.UVSets = []fbx.UVSet{{Name: "map1", UV: fbx.VertexVec2{
		Exists:  true,
		Values:  []*geom.Vector2{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}},
		Indices: []int32{0, 1, 2, 3},
	}}}

	part := NewFBXToExportConverter(nil).convertMeshPart(testNode(mesh), mesh, nil, nil, 0)
	if !part.HasUVs {
		t.Fatal("has uvs")
	}
	// First corner (0,0) flips to (0,1).
	if math.Abs(float64(part.UVs[1]-1)) > eps {
		t.Error("v flip: ", part.UVs[0], part.UVs[1])
	}

	noFlip := NewFBXToExportConverter(&FBXToExportOption{NoFlipV: true}).convertMeshPart(testNode(mesh), mesh, nil, nil, 0)
	if math.Abs(float64(noFlip.UVs[1])) > eps {
		t.Error("flip disabled: ", noFlip.UVs[1])
	}
}

func TestConvertMeshPart_UVTransformAndSet(t *testing.T) {
	const eps = 0.0001

	mesh := quadMesh()
	mesh.UVSets = []fbx.UVSet{
		{Name: "default", UV: fbx.VertexVec2{
			Exists:  true,
			Values:  []*geom.Vector2{{X: 0.5, Y: 0.5}},
			Indices: []int32{0, 0, 0, 0},
		}},
		{Name: "lightmap", UV: fbx.VertexVec2{
			Exists:  true,
			Values:  []*geom.Vector2{{X: 0.25, Y: 0.25}},
			Indices: []int32{0, 0, 0, 0},
		}},
	}
	material := &fbx.Material{}
	material.PBR.BaseColor.Texture = &fbx.Texture{
		Type:           fbx.FileTexture,
		Filename:       "a.png",
		UVSet:          "lightmap",
		HasUVTransform: true,
		UVToTexture:    geom.NewScaleMatrix4(2, 2, 1),
	}

	part := NewFBXToExportConverter(nil).convertMeshPart(testNode(mesh), mesh, material, nil, 0)
	// (0.25, 0.25) scaled by 2 then v-flipped: (0.5, 0.5).
	if math.Abs(float64(part.UVs[0]-0.5)) > eps || math.Abs(float64(part.UVs[1]-0.5)) > eps {
		t.Error("uv: ", part.UVs[0], part.UVs[1])
	}
}

func TestConvertMeshPart_FaceSubset(t *testing.T) {
	mesh := quadMesh()
	mesh.Faces = []fbx.Face{{Begin: 0, Count: 3}, {Begin: 3, Count: 1}}
	mesh.MaxFaceVertices = 3

	part := NewFBXToExportConverter(nil).convertMeshPart(testNode(mesh), mesh, nil, []int32{0}, 1)
	if part.VertexCount != 3 {
		t.Error("subset vertex count: ", part.VertexCount)
	}
	if part.MaterialIndex != 1 {
		t.Error("material index: ", part.MaterialIndex)
	}
	// Out-of-range face indices are ignored, negative ones included.
	part = NewFBXToExportConverter(nil).convertMeshPart(testNode(mesh), mesh, nil, []int32{5}, 0)
	if part.VertexCount != 0 {
		t.Error("invalid subset should be empty: ", part.VertexCount)
	}
	part = NewFBXToExportConverter(nil).convertMeshPart(testNode(mesh), mesh, nil, []int32{-1, 0}, 0)
	if part.VertexCount != 3 {
		t.Error("negative face index should be skipped: ", part.VertexCount)
	}
}
