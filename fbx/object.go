package fbx

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"

	"github.com/modelexport/fbx2glb/geom"
)

type Property70 struct {
	PropertyList
	Type  string
	Label string
	Flag  string
}

func (p *Property70) ToVector3(x, y, z float32) *geom.Vector3 {
	return &geom.Vector3{
		X: p.Get(0).ToFloat32(x),
		Y: p.Get(1).ToFloat32(y),
		Z: p.Get(2).ToFloat32(z),
	}
}

type Connection struct {
	Type string
	To   int64
	From int64
	Prop string
}

type Object interface {
	NodeName() string
	ID() int64
	Name() string
	Kind() string
	GetProperty70(name string) *Property70
	FindRefs(name string) []Object
	AddRef(o Object)
	AddPropRef(prop string, o Object)
	FindPropRef(prop string) Object
}

type PropRef struct {
	Prop   string
	Object Object
}

type Obj struct {
	*Node
	Template   *Obj
	Refs       []Object
	PropRefs   []PropRef
	properties map[string]*Property70 // lazy initialize
}

func (o *Obj) NodeName() string {
	return o.Node.Name
}

func (o *Obj) ID() int64 {
	return o.Attr(0).ToInt64(0)
}

// Name strips the "\x00\x01ClassName" suffix. Names from legacy exporters may
// be ShiftJIS; decode them so downstream consumers always see UTF-8.
func (o *Obj) Name() string {
	return decodeName(strings.SplitN(o.Attr(1).ToString(""), "\x00\x01", 2)[0])
}

func (o *Obj) Kind() string {
	return o.Attr(2).ToString("")
}

// Attr returns the i-th record attribute (object id, name, class).
func (o *Obj) Attr(i int) *Property {
	return o.Node.Prop(i)
}

func (o *Obj) GetProperty70(name string) *Property70 {
	if o.properties == nil {
		o.properties = map[string]*Property70{}
		for _, node := range o.FindChild("Properties70").GetChildren() {
			if len(node.Properties) < 4 {
				continue
			}
			o.properties[node.Prop(0).ToString("")] = &Property70{
				PropertyList: node.Properties[4:],
				Type:         node.Prop(1).ToString(""),
				Label:        node.Prop(2).ToString(""),
				Flag:         node.Prop(3).ToString("")}
		}
	}
	if p, ok := o.properties[name]; ok {
		return p
	} else if o.Template != nil {
		return o.Template.GetProperty70(name)
	}
	return &Property70{}
}

func (o *Obj) HasProperty70(name string) bool {
	return len(o.GetProperty70(name).PropertyList) > 0
}

// GetOwnProperty70 ignores the template, so callers can tell an explicitly
// written property from an inherited default.
func (o *Obj) GetOwnProperty70(name string) *Property70 {
	o.GetProperty70(name)
	return o.properties[name]
}

func (o *Obj) FindRefs(typ string) []Object {
	var refs []Object
	for _, ref := range o.Refs {
		if ref.NodeName() == typ {
			refs = append(refs, ref)
		}
	}
	return refs
}

func (o *Obj) AddRef(ref Object) {
	o.Refs = append(o.Refs, ref)
}

func (o *Obj) AddPropRef(prop string, ref Object) {
	o.PropRefs = append(o.PropRefs, PropRef{Prop: prop, Object: ref})
}

func (o *Obj) FindPropRef(prop string) Object {
	for _, r := range o.PropRefs {
		if r.Prop == prop {
			return r.Object
		}
	}
	return nil
}

func decodeName(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	utf8Data, _, err := transform.Bytes(japanese.ShiftJIS.NewDecoder(), bytes.SplitN([]byte(s), []byte{0}, 2)[0])
	if err != nil {
		return s
	}
	return string(utf8Data)
}

// Model is a scene-hierarchy object carrying the local transform.
type Model struct {
	Obj
	Parent      *Model
	Translation geom.Vector3
	Rotation    geom.Vector3 // euler degrees
	Scaling     geom.Vector3
}

func (m *Model) GetMatrix() *geom.Matrix4 {
	prerotEuler := m.GetProperty70("PreRotation").ToVector3(0, 0, 0).Scale(degToRad)
	prerot := geom.NewEulerRotationMatrix4(prerotEuler.X, prerotEuler.Y, prerotEuler.Z, 1)
	rotEuler := m.Rotation.Scale(degToRad)
	tr := geom.NewTranslateMatrix4(m.Translation.X, m.Translation.Y, m.Translation.Z)
	rot := geom.NewEulerRotationMatrix4(rotEuler.X, rotEuler.Y, rotEuler.Z, 1)
	scale := geom.NewScaleMatrix4(m.Scaling.X, m.Scaling.Y, m.Scaling.Z)
	return tr.Mul(prerot).Mul(rot).Mul(scale)
}

func (m *Model) GetWorldMatrix() *geom.Matrix4 {
	if m.Parent == nil {
		return m.GetMatrix()
	}
	return m.Parent.GetWorldMatrix().Mul(m.GetMatrix())
}

func (m *Model) GetChildModels() []*Model {
	var r []*Model
	for _, o := range m.FindRefs("Model") {
		if c, ok := o.(*Model); ok {
			r = append(r, c)
		}
	}
	return r
}

func (m *Model) GetGeometry() *Geometry {
	geometries := m.FindRefs("Geometry")
	if len(geometries) == 0 {
		return nil
	}
	g, _ := geometries[0].(*Geometry)
	return g
}

// Geometry is a raw mesh record. Vertices and Faces are decoded from
// Vertices/PolygonVertexIndex at document build time; layer elements stay in
// the node tree until the scene is resolved.
type Geometry struct {
	Obj
	Vertices []*geom.Vector3
	Faces    [][]int
}

const degToRad = 3.14159265358979323846 / 180
