package converter

import (
	"github.com/modelexport/fbx2glb/fbx"
)

// TextureRef is a resolved texture slot: embedded content, a path, or neither.
type TextureRef struct {
	Content []byte
	Path    string
}

func (t *TextureRef) Exists() bool {
	return len(t.Content) > 0 || t.Path != ""
}

// MaterialInfo is the single unified shading description handed to exporters.
type MaterialInfo struct {
	Name        string
	BaseColor   [4]float32
	Emissive    [3]float32
	Metallic    float32
	Roughness   float32
	DoubleSided bool

	BaseColorTexture TextureRef
	NormalTexture    TextureRef
	EmissiveTexture  TextureRef
}

// MeshPartInfo is one flat triangle list. VertexCount is always a multiple of
// three. The four arrays are either all allocated or all nil with
// VertexCount zero.
type MeshPartInfo struct {
	Name          string
	MaterialIndex int
	VertexCount   int

	Positions []float32 // 3 per vertex
	Normals   []float32 // 3 per vertex
	UVs       []float32 // 2 per vertex
	Colors    []float32 // 4 per vertex

	HasNormals bool
	HasUVs     bool
	HasColors  bool
}

// ExportScene is the flattened conversion result. Materials always has at
// least one entry and every part's MaterialIndex is a valid index into it.
type ExportScene struct {
	Materials []*MaterialInfo
	Parts     []*MeshPartInfo
	RightAxis fbx.Axis
	UpAxis    fbx.Axis
}

type FBXToExportOption struct {
	// NoFlipV disables the V coordinate flip applied to every sampled UV.
	NoFlipV bool
}

type FBXToExportConverter struct {
	options *FBXToExportOption
}

func NewFBXToExportConverter(options *FBXToExportOption) *FBXToExportConverter {
	if options == nil {
		options = &FBXToExportOption{}
	}
	return &FBXToExportConverter{options: options}
}

// ConvertFile loads the FBX file and flattens it. A load failure returns no
// scene; conversion itself always succeeds, degrading to defaults.
func (c *FBXToExportConverter) ConvertFile(path string) (*ExportScene, error) {
	scene, err := fbx.Load(path, &fbx.LoadOptions{NormalizeNormals: true, TargetUnitMeters: 1})
	if err != nil {
		return nil, err
	}
	return c.Convert(scene), nil
}

// Convert flattens the scene: one MaterialInfo per source material (or one
// default when the scene has none) and one MeshPartInfo per (node, material
// part) pair, in node traversal order.
func (c *FBXToExportConverter) Convert(scene *fbx.Scene) *ExportScene {
	result := &ExportScene{RightAxis: scene.Settings.RightAxis, UpAxis: scene.Settings.UpAxis}

	materialIndex := map[*fbx.Material]int{}
	if len(scene.Materials) == 0 {
		result.Materials = append(result.Materials, c.convertMaterial(nil))
	}
	for i, m := range scene.Materials {
		materialIndex[m] = i
		result.Materials = append(result.Materials, c.convertMaterial(m))
	}

	for _, node := range scene.Nodes {
		mesh := node.Mesh
		if mesh == nil {
			continue
		}
		if len(mesh.MaterialParts) == 0 {
			result.Parts = append(result.Parts, c.convertMeshPart(node, mesh, nil, nil, 0))
			continue
		}
		for _, part := range mesh.MaterialParts {
			material := materialForSlot(node, mesh, part.Slot)
			index := materialIndex[material] // missing material resolves to 0
			result.Parts = append(result.Parts, c.convertMeshPart(node, mesh, material, part.FaceIndices, index))
		}
	}
	return result
}

// materialForSlot resolves a material slot against the node's local list
// first, then the mesh's own list. An unresolvable slot is not an error.
func materialForSlot(node *fbx.SceneNode, mesh *fbx.Mesh, slot int) *fbx.Material {
	if slot >= 0 && slot < len(node.Materials) {
		return node.Materials[slot]
	}
	if slot >= 0 && slot < len(mesh.Materials) {
		return mesh.Materials[slot]
	}
	return nil
}
