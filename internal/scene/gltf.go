package scene

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/openanatomy/lab/internal/math3d"
)

// ErrNoGeometry is returned when a decoded asset contains no triangle
// meshes the viewer can work with.
var ErrNoGeometry = errors.New("asset contains no triangle geometry")

// LoadGLB decodes a binary glTF asset and flattens its node hierarchy
// into a scene of baked meshes. The returned scene is not yet
// normalized.
func LoadGLB(data []byte) (*Scene, error) {
	doc := new(gltf.Document)
	if err := gltf.NewDecoder(bytes.NewReader(data)).Decode(doc); err != nil {
		return nil, fmt.Errorf("decoding glb: %w", err)
	}
	return FromDocument(doc)
}

// FromDocument flattens a decoded glTF document into a scene. Node
// transforms are applied to vertex positions so downstream code never
// deals with the hierarchy.
func FromDocument(doc *gltf.Document) (*Scene, error) {
	sceneIdx := 0
	if doc.Scene != nil {
		sceneIdx = *doc.Scene
	}
	if sceneIdx >= len(doc.Scenes) {
		return nil, fmt.Errorf("glb references scene %d of %d", sceneIdx, len(doc.Scenes))
	}

	var meshes []*Mesh
	for _, nodeIdx := range doc.Scenes[sceneIdx].Nodes {
		var err error
		meshes, err = appendNode(doc, nodeIdx, math3d.Identity4(), meshes)
		if err != nil {
			return nil, err
		}
	}
	if len(meshes) == 0 {
		return nil, ErrNoGeometry
	}
	return New(meshes...), nil
}

func appendNode(doc *gltf.Document, nodeIdx int, parent math3d.Matrix4, meshes []*Mesh) ([]*Mesh, error) {
	if nodeIdx >= len(doc.Nodes) {
		return nil, fmt.Errorf("glb references node %d of %d", nodeIdx, len(doc.Nodes))
	}
	node := doc.Nodes[nodeIdx]
	world := parent.Mul(nodeMatrix(node))

	if node.Mesh != nil {
		if *node.Mesh >= len(doc.Meshes) {
			return nil, fmt.Errorf("glb references mesh %d of %d", *node.Mesh, len(doc.Meshes))
		}
		gm := doc.Meshes[*node.Mesh]
		for pi, prim := range gm.Primitives {
			m, err := bakePrimitive(doc, prim, world)
			if err != nil {
				return nil, fmt.Errorf("mesh %q primitive %d: %w", gm.Name, pi, err)
			}
			if m == nil {
				continue
			}
			m.Name = gm.Name
			if node.Name != "" {
				m.Name = node.Name
			}
			meshes = append(meshes, m)
		}
	}

	for _, child := range node.Children {
		var err error
		meshes, err = appendNode(doc, child, world, meshes)
		if err != nil {
			return nil, err
		}
	}
	return meshes, nil
}

// nodeMatrix returns the node's local transform. An explicit matrix wins;
// otherwise the transform is composed from translation, rotation, scale.
func nodeMatrix(node *gltf.Node) math3d.Matrix4 {
	if m := node.MatrixOrDefault(); m != gltf.DefaultMatrix {
		var out math3d.Matrix4
		for i, v := range m {
			out[i] = float32(v)
		}
		return out
	}

	t := node.TranslationOrDefault()
	r := node.RotationOrDefault()
	s := node.ScaleOrDefault()
	return math3d.ComposeTRS(
		math3d.Vec3(float32(t[0]), float32(t[1]), float32(t[2])),
		[4]float32{float32(r[0]), float32(r[1]), float32(r[2]), float32(r[3])},
		math3d.Vec3(float32(s[0]), float32(s[1]), float32(s[2])),
	)
}

// bakePrimitive reads a triangle primitive's positions and indices and
// applies the node's world transform. Non-triangle primitives (lines,
// points) are skipped with a nil mesh.
func bakePrimitive(doc *gltf.Document, prim *gltf.Primitive, world math3d.Matrix4) (*Mesh, error) {
	if prim.Mode != gltf.PrimitiveTriangles {
		return nil, nil
	}
	posIdx, ok := prim.Attributes[gltf.POSITION]
	if !ok {
		return nil, nil
	}

	raw, err := modeler.ReadPosition(doc, doc.Accessors[posIdx], nil)
	if err != nil {
		return nil, fmt.Errorf("reading positions: %w", err)
	}

	positions := make([]math3d.Vector3, len(raw))
	for i, p := range raw {
		positions[i] = world.MulPoint(math3d.Vec3(p[0], p[1], p[2]))
	}

	var indices []uint32
	if prim.Indices != nil {
		indices, err = modeler.ReadIndices(doc, doc.Accessors[*prim.Indices], nil)
		if err != nil {
			return nil, fmt.Errorf("reading indices: %w", err)
		}
	} else {
		indices = make([]uint32, len(positions))
		for i := range indices {
			indices[i] = uint32(i)
		}
	}

	m := &Mesh{Positions: positions, Indices: indices}
	m.ComputeBounds()
	return m, nil
}
