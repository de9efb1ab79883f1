package fbx

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/modelexport/fbx2glb/geom"
)

type Axis int

const (
	AxisPosX Axis = iota
	AxisNegX
	AxisPosY
	AxisNegY
	AxisPosZ
	AxisNegZ
)

// SceneSettings records the coordinate convention of the resolved scene.
// Load always converts into +X right, +Y up, +Z front, 1 unit = TargetUnitMeters.
type SceneSettings struct {
	RightAxis  Axis
	UpAxis     Axis
	FrontAxis  Axis
	UnitMeters float32
}

// SceneNode is one flattened scene-graph entry. GeometryToWorld already
// includes the axis and unit conversion of the whole file.
type SceneNode struct {
	Name            string
	GeometryToWorld *geom.Matrix4
	Mesh            *Mesh
	Materials       []*Material
}

// Scene is the resolved, read-only object model. Nodes are in hierarchy
// traversal order.
type Scene struct {
	Nodes     []*SceneNode
	Materials []*Material
	Settings  SceneSettings
}

type LoadOptions struct {
	NormalizeNormals bool
	// TargetUnitMeters is the size of one output unit. Zero means 1 meter.
	TargetUnitMeters float32
}

// Load reads a binary FBX file and resolves it into a Scene. On failure no
// partial scene is returned.
func Load(path string, opts *LoadOptions) (*Scene, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("fbx: open %s: %w", path, err)
	}
	defer f.Close()
	scene, err := Parse(bufio.NewReader(f), opts)
	if err != nil {
		return nil, fmt.Errorf("fbx: load %s: %w", path, err)
	}
	return scene, nil
}

func Parse(r io.Reader, opts *LoadOptions) (*Scene, error) {
	root, err := (&binaryParser{r: &positionReader{r: r}}).Parse()
	if err != nil {
		return nil, err
	}
	doc, err := BuildDocument(root)
	if err != nil {
		return nil, err
	}
	return BuildScene(doc, opts)
}

// BuildScene resolves the document's object graph into the flat scene model.
func BuildScene(doc *Document, opts *LoadOptions) (*Scene, error) {
	if opts == nil {
		opts = &LoadOptions{}
	}
	targetUnit := opts.TargetUnitMeters
	if targetUnit == 0 {
		targetUnit = 1
	}
	scene := &Scene{
		Settings: SceneSettings{RightAxis: AxisPosX, UpAxis: AxisPosY, FrontAxis: AxisPosZ, UnitMeters: targetUnit},
	}

	textures := buildTextures(doc)
	materials := map[int64]*Material{}
	for _, o := range doc.Materials {
		m := buildMaterial(o, textures)
		materials[o.ID()] = m
		scene.Materials = append(scene.Materials, m)
	}
	meshes := map[int64]*Mesh{}

	conv := axisUnitConversion(doc.GlobalSettings, targetUnit)
	var walk func(model *Model)
	walk = func(model *Model) {
		node := &SceneNode{
			Name:            model.Name(),
			GeometryToWorld: conv.Mul(model.GetWorldMatrix()),
		}
		for _, ref := range model.FindRefs("Material") {
			if m := materials[ref.ID()]; m != nil {
				node.Materials = append(node.Materials, m)
			}
		}
		if g := model.GetGeometry(); g != nil {
			mesh := meshes[g.ID()]
			if mesh == nil {
				mesh = buildMesh(g, node.Materials, opts)
				meshes[g.ID()] = mesh
			}
			node.Mesh = mesh
		}
		scene.Nodes = append(scene.Nodes, node)
		for _, child := range model.GetChildModels() {
			walk(child)
		}
	}
	for _, child := range doc.Root.GetChildModels() {
		walk(child)
	}
	return scene, nil
}

// axisUnitConversion maps the file's GlobalSettings axes and unit into the
// target convention. FBX stores UnitScaleFactor in centimeters.
func axisUnitConversion(gs *Obj, targetUnit float32) *geom.Matrix4 {
	unitScale := gs.GetProperty70("UnitScaleFactor").Get(0).ToFloat32(1)
	s := unitScale / 100 / targetUnit
	conv := geom.NewScaleMatrix4(s, s, s)
	upAxis := gs.GetProperty70("UpAxis").Get(0).ToInt(1)
	upSign := gs.GetProperty70("UpAxisSign").Get(0).ToInt(1)
	if upAxis == 2 {
		// Z up: rotate -90 degrees around X.
		rot := geom.NewEulerRotationMatrix4(float32(upSign)*-90*degToRad, 0, 0, 1)
		conv = conv.Mul(rot)
	} else if upAxis == 0 {
		// X up: rotate -90 degrees around Z.
		rot := geom.NewEulerRotationMatrix4(0, 0, float32(upSign)*-90*degToRad, 1)
		conv = conv.Mul(rot)
	}
	return conv
}

func buildTextures(doc *Document) map[int64]*Texture {
	textures := map[int64]*Texture{}
	for _, o := range doc.Textures {
		textures[o.ID()] = &Texture{Name: o.Name()}
	}
	for _, o := range doc.Textures {
		tex := textures[o.ID()]
		switch o.NodeName() {
		case "LayeredTexture":
			tex.Type = LayeredTexture
			for _, ref := range o.FindRefs("Texture") {
				if sub := textures[ref.ID()]; sub != nil {
					tex.Layers = append(tex.Layers, sub)
				}
			}
		default:
			tex.Type = FileTexture
			tex.AbsoluteFilename = o.FindChild("FileName").PropString(0)
			tex.RelativeFilename = o.FindChild("RelativeFilename").PropString(0)
			tex.UVSet = o.GetProperty70("UVSet").Get(0).ToString("")
			for _, ref := range o.FindRefs("Video") {
				if v, ok := ref.(*Obj); ok {
					if content, ok := v.FindChild("Content").PropValue(0).([]byte); ok && len(content) > 0 {
						tex.Content = content
					}
				}
			}
			if o.GetOwnProperty70("Translation") != nil || o.GetOwnProperty70("Rotation") != nil ||
				o.GetOwnProperty70("Scaling") != nil {
				tr := o.GetProperty70("Translation").ToVector3(0, 0, 0)
				rot := o.GetProperty70("Rotation").ToVector3(0, 0, 0).Scale(degToRad)
				sc := o.GetProperty70("Scaling").ToVector3(1, 1, 1)
				tex.HasUVTransform = true
				tex.UVToTexture = geom.NewTranslateMatrix4(tr.X, tr.Y, tr.Z).
					Mul(geom.NewEulerRotationMatrix4(rot.X, rot.Y, rot.Z, 1)).
					Mul(geom.NewScaleMatrix4(sc.X, sc.Y, sc.Z))
			}
		}
	}
	for _, tex := range textures {
		collectFileTextures(tex, tex, map[*Texture]bool{})
	}
	return textures
}

func collectFileTextures(root, tex *Texture, seen map[*Texture]bool) {
	if tex == nil || seen[tex] {
		return
	}
	seen[tex] = true
	if tex.Type == FileTexture {
		if tex != root {
			root.FileTextures = append(root.FileTextures, tex)
		}
		return
	}
	for _, sub := range tex.Layers {
		collectFileTextures(root, sub, seen)
	}
	collectFileTextures(root, tex.MainTexture, seen)
}

var (
	pbrBaseColorProps  = []string{"BaseColor", "Maya|base_color", "Maya|baseColor"}
	pbrBaseColorTex    = []string{"BaseColor", "Maya|TEX_color_map", "Maya|base_color"}
	pbrBaseFactorProps = []string{"BaseColorFactor", "BaseFactor"}
	pbrMetalnessProps  = []string{"Metalness", "Maya|metallic", "Maya|metalness"}
	pbrRoughnessProps  = []string{"Roughness", "Maya|roughness", "Maya|specular_roughness"}
	pbrGlossProps      = []string{"Glossiness", "Maya|glossiness"}
	pbrEmissionProps   = []string{"EmissionColor", "Maya|emission_color", "Maya|emissive"}
	pbrEmissionTex     = []string{"EmissionColor", "Maya|TEX_emissive_map"}
	pbrEmFactorProps   = []string{"EmissionFactor", "Maya|emissive_intensity"}
	pbrNormalTex       = []string{"Maya|TEX_normal_map", "Maya|normal_camera", "NormalMap"}
)

func buildMaterial(o *Obj, textures map[int64]*Texture) *Material {
	m := &Material{Name: o.Name()}

	shading := o.GetProperty70("ShadingModel").Get(0).ToString("")
	switch shading {
	case "", "phong", "Phong", "lambert", "Lambert", "blinn", "Blinn", "unknown":
		m.PBREnabled = o.GetOwnProperty70("Maya|TypeId") != nil
	default:
		m.PBREnabled = true
	}
	m.DoubleSided = o.GetProperty70("DoubleSided").Get(0).ToInt(0) != 0

	m.Classic.DiffuseColor = matChannel(o, textures, []string{"DiffuseColor", "Diffuse"}, []string{"DiffuseColor"})
	m.Classic.DiffuseFactor = matChannel(o, textures, []string{"DiffuseFactor"}, nil)
	m.Classic.SpecularExponent = matChannel(o, textures, []string{"ShininessExponent", "Shininess"}, nil)
	m.Classic.TransparencyFactor = matChannel(o, textures, []string{"TransparencyFactor"}, nil)
	m.Classic.EmissionColor = matChannel(o, textures, []string{"EmissiveColor", "Emissive"}, []string{"EmissiveColor"})
	m.Classic.EmissionFactor = matChannel(o, textures, []string{"EmissiveFactor"}, nil)
	m.Classic.BumpMap = matChannel(o, textures, nil, []string{"Bump"})
	m.Classic.NormalMap = matChannel(o, textures, nil, []string{"NormalMap"})

	m.PBR.BaseColor = matChannel(o, textures, pbrBaseColorProps, pbrBaseColorTex)
	m.PBR.BaseFactor = matChannel(o, textures, pbrBaseFactorProps, nil)
	m.PBR.Metalness = matChannel(o, textures, pbrMetalnessProps, nil)
	m.PBR.Roughness = matChannel(o, textures, pbrRoughnessProps, nil)
	m.PBR.Glossiness = matChannel(o, textures, pbrGlossProps, nil)
	m.PBR.EmissionColor = matChannel(o, textures, pbrEmissionProps, pbrEmissionTex)
	m.PBR.EmissionFactor = matChannel(o, textures, pbrEmFactorProps, nil)
	m.PBR.NormalMap = matChannel(o, textures, nil, pbrNormalTex)
	return m
}

// matChannel reads the first explicitly written property of valueNames and the
// first texture bound to one of texNames.
func matChannel(o *Obj, textures map[int64]*Texture, valueNames, texNames []string) MaterialMap {
	var m MaterialMap
	for _, name := range valueNames {
		if p := o.GetOwnProperty70(name); p != nil && len(p.PropertyList) > 0 {
			m.HasValue = true
			m.Value = *p.ToVector3(0, 0, 0)
			break
		}
	}
	for _, name := range texNames {
		if ref := o.FindPropRef(name); ref != nil {
			if tex := textures[ref.ID()]; tex != nil {
				m.Texture = tex
				break
			}
		}
	}
	return m
}

func buildMesh(g *Geometry, materials []*Material, opts *LoadOptions) *Mesh {
	mesh := &Mesh{Name: g.Name(), Materials: materials}

	// Flatten faces into the shared corner index space.
	corners := 0
	for _, f := range g.Faces {
		corners += len(f)
	}
	posIndices := make([]int32, 0, corners)
	begin := 0
	for _, f := range g.Faces {
		mesh.Faces = append(mesh.Faces, Face{Begin: begin, Count: len(f)})
		if len(f) > mesh.MaxFaceVertices {
			mesh.MaxFaceVertices = len(f)
		}
		for _, v := range f {
			posIndices = append(posIndices, int32(v))
		}
		begin += len(f)
	}
	mesh.Position = VertexVec3{Exists: true, Values: g.Vertices, Indices: posIndices}

	if n := g.FindChild("LayerElementNormal"); n != nil {
		values := n.FindChild("Normals").Prop(0).ToVec3Array()
		if opts.NormalizeNormals {
			for _, v := range values {
				v.Normalize()
			}
		}
		indices := layerIndices(n, "NormalsIndex", len(values), posIndices, mesh.Faces)
		if indices != nil {
			mesh.Normal = VertexVec3{Exists: true, Values: values, Indices: indices}
		}
	}
	if c := g.FindChild("LayerElementColor"); c != nil {
		values := c.FindChild("Colors").Prop(0).ToVec4Array()
		indices := layerIndices(c, "ColorIndex", len(values), posIndices, mesh.Faces)
		if indices != nil {
			mesh.Color = VertexVec4{Exists: true, Values: values, Indices: indices}
		}
	}
	for _, uv := range g.FindChildren("LayerElementUV") {
		values := uv.FindChild("UV").Prop(0).ToVec2Array()
		indices := layerIndices(uv, "UVIndex", len(values), posIndices, mesh.Faces)
		if indices == nil {
			continue
		}
		mesh.UVSets = append(mesh.UVSets, UVSet{
			Name: uv.FindChild("Name").PropString(0),
			UV:   VertexVec2{Exists: true, Values: values, Indices: indices},
		})
	}
	lm := g.FindChild("LayerElementMaterial")
	if lm != nil && lm.FindChild("MappingInformationType").PropString(0) == "ByPolygon" {
		slots := lm.FindChild("Materials").Prop(0).ToInt32Array()
		mesh.MaterialParts = buildMaterialParts(slots, len(g.Faces), len(materials))
	} else if len(materials) > 0 {
		// AllSame or no layer element: one part spanning every face, so the
		// mesh keeps its material binding.
		slot := 0
		if lm != nil {
			if slots := lm.FindChild("Materials").Prop(0).ToInt32Array(); len(slots) > 0 {
				slot = int(slots[0])
			}
		}
		all := make([]int32, len(g.Faces))
		for i := range all {
			all[i] = int32(i)
		}
		mesh.MaterialParts = []*MaterialPart{{Slot: slot, FaceIndices: all}}
	}
	return mesh
}

// buildMaterialParts groups face indices by material slot, one part per slot.
func buildMaterialParts(slots []int32, faceCount, slotCount int) []*MaterialPart {
	for _, s := range slots {
		if int(s)+1 > slotCount {
			slotCount = int(s) + 1
		}
	}
	if slotCount == 0 {
		return nil
	}
	parts := make([]*MaterialPart, slotCount)
	for i := range parts {
		parts[i] = &MaterialPart{Slot: i}
	}
	for face := 0; face < faceCount; face++ {
		slot := 0
		if face < len(slots) {
			slot = int(slots[face])
		}
		if slot < 0 || slot >= slotCount {
			slot = 0
		}
		parts[slot].FaceIndices = append(parts[slot].FaceIndices, int32(face))
	}
	return parts
}

// layerIndices normalizes a layer element's mapping and reference modes into
// one index per corner. Returns nil when the element cannot be resolved.
func layerIndices(element *Node, indexName string, valueCount int, posIndices []int32, faces []Face) []int32 {
	if valueCount == 0 {
		return nil
	}
	mapping := element.FindChild("MappingInformationType").PropString(0)
	reference := element.FindChild("ReferenceInformationType").PropString(0)
	var explicitIdx []int32
	if reference == "IndexToDirect" || reference == "Index" {
		explicitIdx = element.FindChild(indexName).Prop(0).ToInt32Array()
	}
	lookup := func(i int32) int32 {
		if explicitIdx != nil {
			if int(i) >= len(explicitIdx) {
				return 0
			}
			i = explicitIdx[i]
		}
		if i < 0 || int(i) >= valueCount {
			return 0
		}
		return i
	}
	indices := make([]int32, len(posIndices))
	switch mapping {
	case "ByPolygonVertex":
		for i := range indices {
			indices[i] = lookup(int32(i))
		}
	case "ByVertice", "ByVertex", "ByControlPoint":
		for i, p := range posIndices {
			indices[i] = lookup(p)
		}
	case "AllSame":
		v := lookup(0)
		for i := range indices {
			indices[i] = v
		}
	case "ByPolygon":
		for f, face := range faces {
			v := lookup(int32(f))
			for i := 0; i < face.Count; i++ {
				indices[face.Begin+i] = v
			}
		}
	default:
		return nil
	}
	return indices
}
