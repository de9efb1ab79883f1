package fbx

import "github.com/modelexport/fbx2glb/geom"

// MaterialMap is one shading parameter: an optional value and an optional
// bound texture. HasValue means the source file set the value explicitly
// rather than leaving the channel at its default.
type MaterialMap struct {
	HasValue bool
	Value    geom.Vector3
	Texture  *Texture
}

// Real returns the scalar value (X component), or def when unset.
func (m *MaterialMap) Real(def float32) float32 {
	if !m.HasValue {
		return def
	}
	return m.Value.X
}

// Vec3 returns the color value, or def when unset.
func (m *MaterialMap) Vec3(def geom.Vector3) geom.Vector3 {
	if !m.HasValue {
		return def
	}
	return m.Value
}

// ClassicShading is the lambert/phong parameter set.
type ClassicShading struct {
	DiffuseColor       MaterialMap
	DiffuseFactor      MaterialMap
	SpecularExponent   MaterialMap
	TransparencyFactor MaterialMap
	EmissionColor      MaterialMap
	EmissionFactor     MaterialMap
	BumpMap            MaterialMap
	NormalMap          MaterialMap
}

// PBRShading is the metalness/roughness parameter set.
type PBRShading struct {
	BaseColor      MaterialMap
	BaseFactor     MaterialMap
	Metalness      MaterialMap
	Roughness      MaterialMap
	Glossiness     MaterialMap
	EmissionColor  MaterialMap
	EmissionFactor MaterialMap
	NormalMap      MaterialMap
}

// Material carries both shading descriptions as the file stores them.
// Consumers pick exactly one at normalization time.
type Material struct {
	Name        string
	Classic     ClassicShading
	PBR         PBRShading
	PBREnabled  bool
	DoubleSided bool
}
