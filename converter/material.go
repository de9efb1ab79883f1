package converter

import (
	"math"

	"github.com/modelexport/fbx2glb/fbx"
	"github.com/modelexport/fbx2glb/geom"
)

// textureResolveLimit caps the layered/shader unwrap walk so a cyclic texture
// graph degrades to "no texture" instead of looping.
const textureResolveLimit = 32

// convertMaterial collapses the dual classic/PBR description into one
// MaterialInfo. A nil source yields the default white opaque material.
func (c *FBXToExportConverter) convertMaterial(src *fbx.Material) *MaterialInfo {
	info := &MaterialInfo{
		Name:      "default",
		BaseColor: [4]float32{1, 1, 1, 1},
		Metallic:  0,
		Roughness: 1,
	}
	if src == nil {
		return info
	}
	info.Name = src.Name
	info.DoubleSided = src.DoubleSided

	white := geom.Vector3{X: 1, Y: 1, Z: 1}

	// The shading model is picked once, never blended.
	usePBR := src.PBREnabled || src.PBR.BaseColor.HasValue ||
		src.PBR.BaseFactor.HasValue || src.PBR.BaseColor.Texture != nil
	var color geom.Vector3
	var factor float32
	if usePBR {
		color = src.PBR.BaseColor.Vec3(white)
		factor = src.PBR.BaseFactor.Real(1)
	} else {
		color = src.Classic.DiffuseColor.Vec3(white)
		factor = src.Classic.DiffuseFactor.Real(1)
	}
	// Alpha always comes from the classic transparency channel.
	alpha := 1 - src.Classic.TransparencyFactor.Real(0)
	info.BaseColor = [4]float32{
		clamp01(color.X * factor),
		clamp01(color.Y * factor),
		clamp01(color.Z * factor),
		clamp01(alpha),
	}

	info.Metallic = clamp01(src.PBR.Metalness.Real(0))
	info.Roughness = clamp01(c.roughness(src))

	if src.PBR.EmissionColor.HasValue || src.PBR.EmissionFactor.HasValue {
		ec := src.PBR.EmissionColor.Vec3(geom.Vector3{})
		e := ec.Scale(src.PBR.EmissionFactor.Real(1))
		info.Emissive = [3]float32{e.X, e.Y, e.Z}
	} else if src.Classic.EmissionColor.HasValue || src.Classic.EmissionFactor.HasValue {
		ec := src.Classic.EmissionColor.Vec3(geom.Vector3{})
		e := ec.Scale(src.Classic.EmissionFactor.Real(1))
		info.Emissive = [3]float32{e.X, e.Y, e.Z}
	}

	info.BaseColorTexture = textureRef(firstTexture(src.PBR.BaseColor.Texture, src.Classic.DiffuseColor.Texture))
	info.NormalTexture = textureRef(firstTexture(src.PBR.NormalMap.Texture, src.Classic.NormalMap.Texture, src.Classic.BumpMap.Texture))
	info.EmissiveTexture = textureRef(firstTexture(src.PBR.EmissionColor.Texture, src.Classic.EmissionColor.Texture))
	return info
}

func (c *FBXToExportConverter) roughness(src *fbx.Material) float32 {
	if src.PBR.Roughness.HasValue {
		return src.PBR.Roughness.Real(1)
	}
	if src.PBR.Glossiness.HasValue {
		return 1 - src.PBR.Glossiness.Real(0)
	}
	if src.Classic.SpecularExponent.HasValue {
		s := src.Classic.SpecularExponent.Real(0)
		return float32(math.Sqrt(float64(2 / (s + 2))))
	}
	return 1
}

func firstTexture(textures ...*fbx.Texture) *fbx.Texture {
	for _, t := range textures {
		if t != nil {
			return t
		}
	}
	return nil
}

// resolveTexture unwraps layering and shader indirection to a file leaf.
// Layered textures resolve to their last layer, shader textures to their main
// texture. A leaf with neither content nor a path falls back to its first
// referenced file texture.
func resolveTexture(t *fbx.Texture) *fbx.Texture {
	for depth := 0; t != nil && depth < textureResolveLimit; depth++ {
		switch t.Type {
		case fbx.LayeredTexture:
			if len(t.Layers) == 0 {
				return nil
			}
			t = t.Layers[len(t.Layers)-1]
		case fbx.ShaderTexture:
			t = t.MainTexture
		default:
			if len(t.Content) == 0 && t.Filename == "" && t.RelativeFilename == "" &&
				t.AbsoluteFilename == "" && len(t.FileTextures) > 0 {
				return t.FileTextures[0]
			}
			return t
		}
	}
	return nil
}

// textureRef copies the resolved leaf's content and path out of the source
// scene. The path is picked by priority filename, relative, absolute.
func textureRef(t *fbx.Texture) TextureRef {
	t = resolveTexture(t)
	if t == nil {
		return TextureRef{}
	}
	var ref TextureRef
	if len(t.Content) > 0 {
		ref.Content = append([]byte(nil), t.Content...)
	}
	if t.Filename != "" {
		ref.Path = t.Filename
	} else if t.RelativeFilename != "" {
		ref.Path = t.RelativeFilename
	} else if t.AbsoluteFilename != "" {
		ref.Path = t.AbsoluteFilename
	}
	return ref
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
