package fbx

import "github.com/modelexport/fbx2glb/geom"

type TextureType int

const (
	FileTexture TextureType = iota
	LayeredTexture
	ShaderTexture
)

// Texture is either a file leaf or an indirection (layered or shader).
// FileTextures lists every file texture reachable from this one, so a leaf
// without direct content still has a fallback.
type Texture struct {
	Name string
	Type TextureType

	// file leaf
	Content          []byte
	Filename         string
	RelativeFilename string
	AbsoluteFilename string

	// indirection
	Layers      []*Texture
	MainTexture *Texture

	FileTextures []*Texture

	UVSet          string
	HasUVTransform bool
	UVToTexture    *geom.Matrix4
}
