package converter

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io/ioutil"
	"log"
	"path/filepath"
	"strings"

	"github.com/modelexport/fbx2glb/geom"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"image"
	"image/color"
	"image/jpeg"
	"image/png"

	_ "image/gif"

	"github.com/blezek/tga"
	_ "github.com/oov/psd"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

type GLTFExportOption struct {
	TextureReCompress      bool
	TextureResolutionLimit int     // 0: unlimited
	TextureScale           float32 // Default: 1.0
}

type exportToGltf struct {
	*GLTFExportOption
	*gltf.Document
}

func NewExportToGLTFConverter(options *GLTFExportOption) *exportToGltf {
	if options == nil {
		options = &GLTFExportOption{}
	}
	if options.TextureScale == 0 {
		options.TextureScale = 1.0
	}
	return &exportToGltf{
		GLTFExportOption: options,
		Document:         gltf.NewDocument(),
	}
}

type textureCache struct {
	srcDir   string
	textures map[string]*textureInfo
}

type textureInfo struct {
	ref  TextureRef
	id   *uint32
	data []byte
	img  image.Image
	err  error
}

// get dedups by embedded content hash, else by path, so a texture shared
// across materials is written once.
func (c *textureCache) get(ref TextureRef) *textureInfo {
	var key string
	if len(ref.Content) > 0 {
		sum := sha256.Sum256(ref.Content)
		key = hex.EncodeToString(sum[:])
	} else {
		key = "path:" + ref.Path
	}
	if t, ok := c.textures[key]; ok {
		return t
	}
	t := &textureInfo{ref: ref}
	c.textures[key] = t
	return t
}

func (c *textureCache) getData(t *textureInfo) ([]byte, error) {
	if t.data != nil || t.err != nil {
		return t.data, t.err
	}
	if len(t.ref.Content) > 0 {
		t.data = t.ref.Content
		return t.data, nil
	}
	path := t.ref.Path
	if !filepath.IsAbs(path) {
		path = filepath.Join(c.srcDir, path)
	}
	t.data, t.err = ioutil.ReadFile(path)
	return t.data, t.err
}

func (c *textureCache) getImage(t *textureInfo) (image.Image, error) {
	if t.img != nil || t.err != nil {
		return t.img, t.err
	}
	data, err := c.getData(t)
	if err != nil {
		return nil, err
	}
	t.img, _, t.err = image.Decode(bytes.NewReader(data))
	if t.err != nil && strings.ToLower(filepath.Ext(t.ref.Path)) == ".tga" {
		// retry
		t.img, t.err = tga.Decode(bytes.NewReader(data))
	}
	return t.img, t.err
}

func hasAlpha(img image.Image) bool {
	switch img.ColorModel() {
	case color.YCbCrModel, color.CMYKModel:
		return false
	case color.RGBAModel:
		return !img.(*image.RGBA).Opaque()
	case color.NRGBAModel:
		return !img.(*image.NRGBA).Opaque()
	}
	return false
}

func (m *exportToGltf) textureHasAlpha(ref TextureRef, textures *textureCache) bool {
	if !ref.Exists() || strings.HasSuffix(ref.Path, ".jpg") || strings.HasSuffix(ref.Path, ".bmp") {
		return false
	}
	img, err := textures.getImage(textures.get(ref))
	if err != nil {
		return false
	}
	return hasAlpha(img)
}

func sniffMime(data []byte, path string) string {
	if bytes.HasPrefix(data, []byte("\x89PNG")) {
		return "image/png"
	}
	if bytes.HasPrefix(data, []byte{0xff, 0xd8}) {
		return "image/jpeg"
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	}
	return ""
}

func (m *exportToGltf) encodeTexture(t *textureInfo, textures *textureCache) ([]byte, string, error) {
	data, err := textures.getData(t)
	if err != nil {
		return nil, "", err
	}
	mimeType := sniffMime(data, t.ref.Path)
	encode := m.TextureReCompress || m.TextureScale != 1 || mimeType == ""
	if m.TextureResolutionLimit > 0 {
		encode = true
	}
	if !encode {
		return data, mimeType, nil
	}

	img, err := textures.getImage(t)
	if err != nil {
		return nil, "", err
	}
	rect := img.Bounds()
	scale := m.TextureScale
	if m.TextureResolutionLimit > 0 {
		sz := int(float32(rect.Dx()) * scale)
		if sz > m.TextureResolutionLimit {
			scale *= float32(m.TextureResolutionLimit) / float32(sz)
		}
	}
	if scale != 1.0 {
		dst := image.NewRGBA(image.Rect(0, 0, int(float32(rect.Dx())*scale), int(float32(rect.Dy())*scale)))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, rect, draw.Over, nil)
		img = dst
	}

	w := new(bytes.Buffer)
	if hasAlpha(img) {
		mimeType = "image/png"
		err = png.Encode(w, img)
	} else {
		mimeType = "image/jpeg"
		err = jpeg.Encode(w, img, nil)
	}
	if err != nil {
		return nil, "", err
	}
	return w.Bytes(), mimeType, nil
}

func (m *exportToGltf) addTexture(ref TextureRef, textures *textureCache) (*uint32, error) {
	t := textures.get(ref)
	if t.id != nil {
		return t.id, nil
	}
	data, mimeType, err := m.encodeTexture(t, textures)
	if err != nil {
		return nil, err
	}
	name := filepath.Base(ref.Path)
	if name == "." {
		name = "texture"
	}
	img, err := modeler.WriteImage(m.Document, name, mimeType, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	m.Buffers[0].ByteLength = uint32(len(m.Buffers[0].Data)) // avoid AddImage bug
	m.Textures = append(m.Textures,
		&gltf.Texture{Sampler: gltf.Index(0), Source: gltf.Index(img)})

	t.id = gltf.Index(uint32(len(m.Textures)) - 1)
	return t.id, nil
}

func (m *exportToGltf) convertMaterial(mat *MaterialInfo, textures *textureCache) *gltf.Material {
	metallic := mat.Metallic
	roughness := mat.Roughness
	mm := &gltf.Material{
		Name: mat.Name,
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
			BaseColorFactor: &[4]float32{mat.BaseColor[0], mat.BaseColor[1], mat.BaseColor[2], mat.BaseColor[3]},
			MetallicFactor:  &metallic,
			RoughnessFactor: &roughness,
		},
		DoubleSided:    mat.DoubleSided,
		EmissiveFactor: mat.Emissive,
	}
	if mat.BaseColor[3] < 0.999 || m.textureHasAlpha(mat.BaseColorTexture, textures) {
		mm.AlphaMode = gltf.AlphaBlend
	}
	if mat.BaseColorTexture.Exists() {
		if tex, err := m.addTexture(mat.BaseColorTexture, textures); err == nil {
			mm.PBRMetallicRoughness.BaseColorTexture = &gltf.TextureInfo{Index: *tex}
		} else {
			log.Print("Texture read error:", err)
		}
	}
	if mat.NormalTexture.Exists() {
		if tex, err := m.addTexture(mat.NormalTexture, textures); err == nil {
			mm.NormalTexture = &gltf.NormalTexture{Index: tex}
		} else {
			log.Print("Texture read error:", err)
		}
	}
	if mat.EmissiveTexture.Exists() {
		if tex, err := m.addTexture(mat.EmissiveTexture, textures); err == nil {
			mm.EmissiveTexture = &gltf.TextureInfo{Index: *tex}
		} else {
			log.Print("Texture read error:", err)
		}
	}
	return mm
}

func (m *exportToGltf) convertPart(part *MeshPartInfo) *gltf.Primitive {
	n := part.VertexCount
	positions := make([][3]float32, n)
	normals := make([][3]float32, n)
	for i := 0; i < n; i++ {
		positions[i] = [3]float32{part.Positions[i*3], part.Positions[i*3+1], part.Positions[i*3+2]}
		normals[i] = [3]float32{part.Normals[i*3], part.Normals[i*3+1], part.Normals[i*3+2]}
	}
	attributes := map[string]uint32{
		"POSITION": modeler.WritePosition(m.Document, positions),
		"NORMAL":   modeler.WriteNormal(m.Document, normals),
	}
	if part.HasUVs {
		uvs := make([][2]float32, n)
		for i := 0; i < n; i++ {
			uvs[i] = [2]float32{part.UVs[i*2], part.UVs[i*2+1]}
		}
		attributes["TEXCOORD_0"] = modeler.WriteTextureCoord(m.Document, uvs)
		attributes["TANGENT"] = modeler.WriteTangent(m.Document, generateTangents(positions, uvs, normals))
	}
	if part.HasColors {
		colors := make([][4]float32, n)
		for i := 0; i < n; i++ {
			colors[i] = [4]float32{part.Colors[i*4], part.Colors[i*4+1], part.Colors[i*4+2], part.Colors[i*4+3]}
		}
		attributes["COLOR_0"] = modeler.WriteColor(m.Document, colors)
	}
	return &gltf.Primitive{
		Attributes: attributes,
		Material:   gltf.Index(uint32(part.MaterialIndex)),
	}
}

// generateTangents computes one tangent per triangle from the UV gradients
// and assigns it to the triangle's three vertices.
func generateTangents(positions [][3]float32, uvs [][2]float32, normals [][3]float32) [][4]float32 {
	tangents := make([][4]float32, len(positions))
	for i := 0; i+2 < len(positions); i += 3 {
		p0 := geom.NewVector3FromArray(positions[i])
		p1 := geom.NewVector3FromArray(positions[i+1])
		p2 := geom.NewVector3FromArray(positions[i+2])
		e1 := p1.Sub(p0)
		e2 := p2.Sub(p0)
		du1 := uvs[i+1][0] - uvs[i][0]
		dv1 := uvs[i+1][1] - uvs[i][1]
		du2 := uvs[i+2][0] - uvs[i][0]
		dv2 := uvs[i+2][1] - uvs[i][1]
		d := du1*dv2 - du2*dv1
		t := [4]float32{1, 0, 0, 1}
		if d != 0 {
			r := 1 / d
			tangent := e1.Scale(dv2 * r).Sub(e2.Scale(dv1 * r))
			bitangent := e2.Scale(du1 * r).Sub(e1.Scale(du2 * r))
			n := geom.NewVector3FromArray(normals[i])
			// Gram-Schmidt against the normal.
			tangent = tangent.Sub(n.Scale(n.Dot(tangent))).Normalize()
			if tangent.LenSqr() > 0 {
				w := float32(1)
				if n.Cross(tangent).Dot(bitangent) < 0 {
					w = -1
				}
				t = [4]float32{tangent.X, tangent.Y, tangent.Z, w}
			}
		}
		tangents[i] = t
		tangents[i+1] = t
		tangents[i+2] = t
	}
	return tangents
}

// Convert builds a glTF document from the flattened scene. srcDir is the
// directory texture paths are resolved against. Empty parts are skipped;
// material indices are preserved as primitive material references.
func (m *exportToGltf) Convert(scene *ExportScene, srcDir string) (*gltf.Document, error) {
	textures := &textureCache{srcDir: srcDir, textures: map[string]*textureInfo{}}
	for _, mat := range scene.Materials {
		m.Document.Materials = append(m.Document.Materials, m.convertMaterial(mat, textures))
	}
	for _, part := range scene.Parts {
		if part.VertexCount == 0 {
			continue
		}
		mesh := &gltf.Mesh{Name: part.Name, Primitives: []*gltf.Primitive{m.convertPart(part)}}
		node := &gltf.Node{Name: part.Name, Mesh: gltf.Index(uint32(len(m.Document.Meshes)))}
		m.Document.Meshes = append(m.Document.Meshes, mesh)
		m.Nodes = append(m.Nodes, node)
		m.Scenes[0].Nodes = append(m.Scenes[0].Nodes, uint32(len(m.Nodes)-1))
	}
	if len(m.Document.Textures) > 0 {
		m.Document.Samplers = []*gltf.Sampler{{}}
	}
	return m.Document, nil
}
