package fbx

import (
	"fmt"

	"github.com/modelexport/fbx2glb/geom"
)

// Document is the object graph decoded from the raw node tree. Objects are
// linked through the Connections section before the document is returned, so
// lookups like Model.GetGeometry work directly.
type Document struct {
	FileVersion    int
	Creator        string
	CreationTime   string
	GlobalSettings *Obj

	Objects map[int64]Object
	Root    *Model

	Materials []*Obj
	Textures  []*Obj

	RawNode *Node
}

func (doc *Document) FindObject(id int64) Object {
	return doc.Objects[id]
}

// BuildDocument links the parsed node tree into an object graph.
func BuildDocument(root *Node) (*Document, error) {
	doc := &Document{
		RawNode:        root,
		FileVersion:    root.FindChild("FBXHeaderExtension").FindChild("FBXVersion").PropInt(0),
		Creator:        root.FindChild("Creator").PropString(0),
		CreationTime:   root.FindChild("CreationTime").PropString(0),
		GlobalSettings: &Obj{Node: root.FindChild("GlobalSettings")},
		Objects:        map[int64]Object{},
		Root:           &Model{Obj: Obj{Node: &Node{Name: "Model"}}, Scaling: geom.Vector3{X: 1, Y: 1, Z: 1}},
	}
	doc.Objects[0] = doc.Root

	templates := map[string]*Obj{}
	for _, node := range root.FindChild("Definitions").FindChildren("ObjectType") {
		if t := node.FindChild("PropertyTemplate"); t != nil {
			templates[node.PropString(0)] = &Obj{Node: t}
		}
	}

	objects := root.FindChild("Objects")
	if objects == nil {
		return nil, fmt.Errorf("fbx: no Objects section")
	}
	for _, node := range objects.GetChildren() {
		obj := buildObject(node, templates[node.Name])
		doc.Objects[obj.ID()] = obj
		switch o := obj.(type) {
		case *Obj:
			if node.Name == "Material" {
				doc.Materials = append(doc.Materials, o)
			} else if node.Name == "Texture" || node.Name == "LayeredTexture" {
				doc.Textures = append(doc.Textures, o)
			}
		}
	}

	for _, node := range root.FindChild("Connections").FindChildren("C") {
		c := &Connection{
			Type: node.PropString(0),
			From: node.Prop(1).ToInt64(-1),
			To:   node.Prop(2).ToInt64(-1),
			Prop: node.PropString(3),
		}
		from, to := doc.Objects[c.From], doc.Objects[c.To]
		if from == nil || to == nil {
			continue
		}
		switch c.Type {
		case "OO":
			to.AddRef(from)
			if child, ok := from.(*Model); ok {
				if parent, ok := to.(*Model); ok {
					child.Parent = parent
				}
			}
		case "OP":
			to.AddRef(from)
			to.AddPropRef(c.Prop, from)
		}
	}
	doc.Root.Parent = nil
	return doc, nil
}

func buildObject(node *Node, template *Obj) Object {
	base := Obj{Node: node, Template: template}
	switch node.Name {
	case "Model":
		m := &Model{Obj: base}
		m.Translation = *m.GetProperty70("Lcl Translation").ToVector3(0, 0, 0)
		m.Rotation = *m.GetProperty70("Lcl Rotation").ToVector3(0, 0, 0)
		m.Scaling = *m.GetProperty70("Lcl Scaling").ToVector3(1, 1, 1)
		return m
	case "Geometry":
		g := &Geometry{Obj: base}
		g.Vertices = node.FindChild("Vertices").Prop(0).ToVec3Array()
		g.Faces = decodePolygons(node.FindChild("PolygonVertexIndex").Prop(0).ToInt32Array())
		return g
	}
	return &base
}

// decodePolygons splits the shared index array into faces. The last index of
// each polygon is stored bit-inverted.
func decodePolygons(indices []int32) [][]int {
	var faces [][]int
	var face []int
	for _, v := range indices {
		if v < 0 {
			face = append(face, int(^v))
			faces = append(faces, face)
			face = nil
		} else {
			face = append(face, int(v))
		}
	}
	return faces
}
