package converter

import (
	"math"
	"reflect"
	"testing"

	"github.com/modelexport/fbx2glb/fbx"
	"github.com/modelexport/fbx2glb/geom"
)

func value(x, y, z float32) fbx.MaterialMap {
	return fbx.MaterialMap{HasValue: true, Value: geom.Vector3{X: x, Y: y, Z: z}}
}

func scalar(v float32) fbx.MaterialMap {
	return value(v, v, v)
}

func TestConvertMaterial_Default(t *testing.T) {
	info := NewFBXToExportConverter(nil).convertMaterial(nil)
	if info.BaseColor != [4]float32{1, 1, 1, 1} {
		t.Error("base color: ", info.BaseColor)
	}
	if info.Metallic != 0 || info.Roughness != 1 {
		t.Error("metallic/roughness: ", info.Metallic, info.Roughness)
	}
	if info.BaseColorTexture.Exists() || info.NormalTexture.Exists() || info.EmissiveTexture.Exists() {
		t.Error("default material should have no textures")
	}
}

func TestConvertMaterial_ClassicRed(t *testing.T) {
	const eps = 0.0001

	src := &fbx.Material{Name: "red"}
	src.Classic.DiffuseColor = value(1, 0, 0)
	// An unrelated PBR texture must not switch the shading model.
	src.PBR.NormalMap.Texture = &fbx.Texture{Type: fbx.FileTexture, Filename: "n.png"}

	info := NewFBXToExportConverter(nil).convertMaterial(src)
	want := [4]float32{1, 0, 0, 1}
	for i := range want {
		if math.Abs(float64(info.BaseColor[i]-want[i])) > eps {
			t.Fatal("base color: ", info.BaseColor)
		}
	}
	if info.Roughness != 1 || info.Metallic != 0 {
		t.Error("metallic/roughness: ", info.Metallic, info.Roughness)
	}
}

func TestConvertMaterial_PBRSelection(t *testing.T) {
	src := &fbx.Material{Name: "pbr"}
	src.Classic.DiffuseColor = value(1, 0, 0)
	src.PBR.BaseColor = value(0, 1, 0)

	info := NewFBXToExportConverter(nil).convertMaterial(src)
	if info.BaseColor[0] != 0 || info.BaseColor[1] != 1 {
		t.Error("pbr base color should win: ", info.BaseColor)
	}
}

func TestConvertMaterial_Alpha(t *testing.T) {
	const eps = 0.0001

	src := &fbx.Material{Name: "glass"}
	src.PBR.BaseColor = value(0, 0, 1)
	src.Classic.TransparencyFactor = scalar(0.7)

	info := NewFBXToExportConverter(nil).convertMaterial(src)
	if math.Abs(float64(info.BaseColor[3]-0.3)) > eps {
		t.Error("alpha should come from classic transparency: ", info.BaseColor[3])
	}
}

func TestConvertMaterial_RoughnessChain(t *testing.T) {
	const eps = 0.0001
	c := NewFBXToExportConverter(nil)

	src := &fbx.Material{}
	src.PBR.Roughness = scalar(0.25)
	src.PBR.Glossiness = scalar(0.9)
	if r := c.convertMaterial(src).Roughness; math.Abs(float64(r-0.25)) > eps {
		t.Error("roughness: ", r)
	}

	src = &fbx.Material{}
	src.PBR.Glossiness = scalar(0.9)
	if r := c.convertMaterial(src).Roughness; math.Abs(float64(r-0.1)) > eps {
		t.Error("from glossiness: ", r)
	}

	src = &fbx.Material{}
	src.Classic.SpecularExponent = scalar(30)
	want := math.Sqrt(2.0 / 32)
	if r := c.convertMaterial(src).Roughness; math.Abs(float64(r)-want) > eps {
		t.Error("from specular exponent: ", r)
	}

	if r := c.convertMaterial(&fbx.Material{}).Roughness; r != 1 {
		t.Error("default: ", r)
	}
}

func TestConvertMaterial_Emissive(t *testing.T) {
	c := NewFBXToExportConverter(nil)

	src := &fbx.Material{}
	src.PBR.EmissionColor = value(1, 0.5, 0)
	src.Classic.EmissionColor = value(0, 0, 1)
	if e := c.convertMaterial(src).Emissive; e != [3]float32{1, 0.5, 0} {
		t.Error("pbr emissive should win: ", e)
	}

	src = &fbx.Material{}
	src.Classic.EmissionColor = value(0, 0, 1)
	src.Classic.EmissionFactor = scalar(0.5)
	if e := c.convertMaterial(src).Emissive; e != [3]float32{0, 0, 0.5} {
		t.Error("classic emissive: ", e)
	}

	if e := c.convertMaterial(&fbx.Material{}).Emissive; e != [3]float32{0, 0, 0} {
		t.Error("no emissive: ", e)
	}
}

func TestConvertMaterial_Pure(t *testing.T) {
	src := &fbx.Material{Name: "m"}
	src.PBR.BaseColor = value(0.2, 0.4, 0.6)
	src.PBR.Metalness = scalar(0.5)
	src.Classic.TransparencyFactor = scalar(0.1)

	c := NewFBXToExportConverter(nil)
	a := c.convertMaterial(src)
	b := c.convertMaterial(src)
	if !reflect.DeepEqual(a, b) {
		t.Error("conversion should be deterministic")
	}
}

func TestResolveTexture(t *testing.T) {
	leaf := &fbx.Texture{Type: fbx.FileTexture, Filename: "a.png"}
	last := &fbx.Texture{Type: fbx.FileTexture, Filename: "b.png"}
	layered := &fbx.Texture{Type: fbx.LayeredTexture, Layers: []*fbx.Texture{leaf, last}}
	if resolveTexture(layered) != last {
		t.Error("layered should resolve to the last layer")
	}

	shader := &fbx.Texture{Type: fbx.ShaderTexture, MainTexture: leaf}
	if resolveTexture(shader) != leaf {
		t.Error("shader should resolve to the main texture")
	}

	file := &fbx.Texture{Type: fbx.FileTexture, Filename: "c.png"}
	empty := &fbx.Texture{Type: fbx.FileTexture, FileTextures: []*fbx.Texture{file}}
	if resolveTexture(empty) != file {
		t.Error("empty leaf should fall back to its file texture")
	}

	if resolveTexture(nil) != nil {
		t.Error("nil texture")
	}

	// A cyclic graph must terminate with no texture.
	cycle := &fbx.Texture{Type: fbx.ShaderTexture}
	cycle.MainTexture = cycle
	if resolveTexture(cycle) != nil {
		t.Error("cycle should resolve to nil")
	}
}

func TestTextureRef_PathPriority(t *testing.T) {
	tex := &fbx.Texture{
		Type:             fbx.FileTexture,
		Filename:         "a.png",
		RelativeFilename: "tex/a.png",
		AbsoluteFilename: "/abs/a.png",
	}
	if ref := textureRef(tex); ref.Path != "a.png" {
		t.Error("filename should win: ", ref.Path)
	}
	tex.Filename = ""
	if ref := textureRef(tex); ref.Path != "tex/a.png" {
		t.Error("relative should win: ", ref.Path)
	}
	tex.RelativeFilename = ""
	if ref := textureRef(tex); ref.Path != "/abs/a.png" {
		t.Error("absolute: ", ref.Path)
	}
}

func TestTextureRef_ContentCopied(t *testing.T) {
	content := []byte{1, 2, 3}
	tex := &fbx.Texture{Type: fbx.FileTexture, Content: content}
	ref := textureRef(tex)
	content[0] = 9
	if ref.Content[0] != 1 {
		t.Error("content should be copied out of the source scene")
	}
}
