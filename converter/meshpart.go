package converter

import (
	"github.com/modelexport/fbx2glb/fbx"
	"github.com/modelexport/fbx2glb/geom"
)

// convertMeshPart flattens one (node, mesh, face subset) into a triangle
// list. faceIndices nil means the whole mesh. Faces with fewer than three
// vertices contribute nothing; an all-degenerate part comes back with
// VertexCount zero and nil buffers.
func (c *FBXToExportConverter) convertMeshPart(node *fbx.SceneNode, mesh *fbx.Mesh, material *fbx.Material, faceIndices []int32, materialIndex int) *MeshPartInfo {
	info := &MeshPartInfo{Name: node.Name, MaterialIndex: materialIndex}
	if mesh.MaxFaceVertices < 3 {
		return info
	}

	faces := mesh.Faces
	if faceIndices != nil {
		faces = make([]fbx.Face, 0, len(faceIndices))
		for _, fi := range faceIndices {
			if fi >= 0 && int(fi) < len(mesh.Faces) {
				faces = append(faces, mesh.Faces[fi])
			}
		}
	}
	triangles := 0
	for _, f := range faces {
		if f.Count >= 3 {
			triangles += f.Count - 2
		}
	}
	if triangles == 0 {
		return info
	}

	vertexCount := triangles * 3
	info.VertexCount = vertexCount
	info.Positions = make([]float32, vertexCount*3)
	info.Normals = make([]float32, vertexCount*3)
	info.UVs = make([]float32, vertexCount*2)
	info.Colors = make([]float32, vertexCount*4)
	info.HasNormals = mesh.Normal.Exists
	info.HasColors = mesh.Color.Exists

	// The UV stream follows the material's UV-mapped texture when it names a
	// set on this mesh, else the default stream.
	var uvTransform *geom.Matrix4
	uvName := ""
	if tex := uvBoundTexture(material); tex != nil {
		uvName = tex.UVSet
		if tex.HasUVTransform {
			uvTransform = tex.UVToTexture
		}
	}
	uvStream := mesh.UVSetByName(uvName)
	info.HasUVs = uvStream.Exists

	transform := node.GeometryToWorld
	normalTransform := transform.NormalMatrix()
	mirrored := transform.Det() < 0
	flipV := !c.options.NoFlipV

	vi := 0
	emit := func(corner int, faceNormal *geom.Vector3) {
		p := transform.ApplyTo(mesh.Position.Get(corner))
		info.Positions[vi*3] = p.X
		info.Positions[vi*3+1] = p.Y
		info.Positions[vi*3+2] = p.Z

		n := faceNormal
		if mesh.Normal.Exists {
			n = mesh.Normal.Get(corner)
		}
		n = normalTransform.ApplyToDirection(n).Normalize()
		info.Normals[vi*3] = n.X
		info.Normals[vi*3+1] = n.Y
		info.Normals[vi*3+2] = n.Z

		var u, v float32
		if uvStream.Exists {
			uv := uvStream.Get(corner)
			u, v = uv.X, uv.Y
			if uvTransform != nil {
				t := uvTransform.ApplyTo(&geom.Vector3{X: u, Y: v})
				u, v = t.X, t.Y
			}
			if flipV {
				v = 1 - v
			}
		}
		info.UVs[vi*2] = u
		info.UVs[vi*2+1] = v

		r, g, b, a := float32(1), float32(1), float32(1), float32(1)
		if mesh.Color.Exists {
			col := mesh.Color.Get(corner)
			r, g, b, a = col.X, col.Y, col.Z, col.W
		}
		info.Colors[vi*4] = r
		info.Colors[vi*4+1] = g
		info.Colors[vi*4+2] = b
		info.Colors[vi*4+3] = a
		vi++
	}

	for _, f := range faces {
		if f.Count < 3 {
			continue
		}
		var faceNormal *geom.Vector3
		if !mesh.Normal.Exists {
			faceNormal = areaWeightedNormal(mesh, f)
		}
		for i := 2; i < f.Count; i++ {
			c1, c2 := f.Begin+i-1, f.Begin+i
			if mirrored {
				// A mirrored transform flips handedness; swap the second and
				// third vertex to keep the front face.
				c1, c2 = c2, c1
			}
			emit(f.Begin, faceNormal)
			emit(c1, faceNormal)
			emit(c2, faceNormal)
		}
	}
	return info
}

// uvBoundTexture returns the part's UV-mapped texture, trying base color,
// classic diffuse, PBR emissive, classic emissive in that order.
func uvBoundTexture(m *fbx.Material) *fbx.Texture {
	if m == nil {
		return nil
	}
	candidates := []*fbx.Texture{
		m.PBR.BaseColor.Texture,
		m.Classic.DiffuseColor.Texture,
		m.PBR.EmissionColor.Texture,
		m.Classic.EmissionColor.Texture,
	}
	for _, t := range candidates {
		if resolved := resolveTexture(t); resolved != nil {
			return resolved
		}
	}
	return nil
}

// areaWeightedNormal sums the fan's cross products over untransformed
// positions, so larger triangles dominate the direction.
func areaWeightedNormal(mesh *fbx.Mesh, f fbx.Face) *geom.Vector3 {
	n := &geom.Vector3{}
	p0 := mesh.Position.Get(f.Begin)
	for i := 1; i+1 < f.Count; i++ {
		e1 := mesh.Position.Get(f.Begin + i).Sub(p0)
		e2 := mesh.Position.Get(f.Begin + i + 1).Sub(p0)
		n = n.Add(e1.Cross(e2))
	}
	return n
}
