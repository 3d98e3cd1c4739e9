// Package scene holds the loaded model geometry the viewer works on:
// triangle meshes with node transforms baked in, the normalization that
// centers a model at the origin and brings its largest dimension to a
// fixed size, and the camera framing the scene.
package scene

import (
	"github.com/openanatomy/lab/internal/math3d"
)

// NormalizedMaxDim is the size of the largest bounding box dimension
// after normalization. Annotation anchors and saved camera views are
// expressed in this normalized space, so the constant must not change
// once annotations exist.
const NormalizedMaxDim = 5

// Mesh is a triangle mesh in asset space, with any glTF node hierarchy
// transforms already applied to the vertex positions.
type Mesh struct {
	Name      string
	Positions []math3d.Vector3
	// Indices reference Positions in groups of three. Always populated;
	// non-indexed primitives get sequential indices at load.
	Indices []uint32
	Bounds  math3d.Box3
}

// TriangleCount returns the number of triangles in the mesh.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// Triangle returns the i-th triangle's corner positions in asset space.
func (m *Mesh) Triangle(i int) (a, b, c math3d.Vector3) {
	return m.Positions[m.Indices[3*i]],
		m.Positions[m.Indices[3*i+1]],
		m.Positions[m.Indices[3*i+2]]
}

// ComputeBounds recomputes the mesh bounding box from its positions.
func (m *Mesh) ComputeBounds() {
	m.Bounds.SetFromPoints(m.Positions)
}

// Scene is a loaded model: its meshes plus the normalization transform
// mapping asset space into the viewer's normalized space.
type Scene struct {
	Meshes []*Mesh

	// Scale and Translation map asset space to normalized space:
	// world = asset*Scale + Translation.
	Scale       float32
	Translation math3d.Vector3
}

// New creates a scene over the given meshes with an identity transform.
func New(meshes ...*Mesh) *Scene {
	s := &Scene{Meshes: meshes, Scale: 1}
	for _, m := range s.Meshes {
		if m.Bounds.IsEmpty() {
			m.ComputeBounds()
		}
	}
	return s
}

// AssetBounds returns the untransformed bounding box over all meshes.
func (s *Scene) AssetBounds() math3d.Box3 {
	b := math3d.B3Empty()
	for _, m := range s.Meshes {
		b.ExpandByBox(m.Bounds)
	}
	return b
}

// Bounds returns the bounding box over all meshes in normalized space.
func (s *Scene) Bounds() math3d.Box3 {
	return s.AssetBounds().Scaled(s.Scale).Translated(s.Translation)
}

// ToWorld maps an asset-space point into normalized space.
func (s *Scene) ToWorld(p math3d.Vector3) math3d.Vector3 {
	return p.MulScalar(s.Scale).Add(s.Translation)
}

// ToAsset maps a normalized-space point back into asset space.
func (s *Scene) ToAsset(p math3d.Vector3) math3d.Vector3 {
	return p.Sub(s.Translation).DivScalar(s.Scale)
}

// Normalize centers the model at the origin and scales its largest
// bounding box dimension to NormalizedMaxDim units. Degenerate geometry
// (a point, or no meshes) is centered but left unscaled.
func (s *Scene) Normalize() {
	raw := s.AssetBounds()
	if raw.IsEmpty() {
		s.Scale = 1
		s.Translation = math3d.Vector3{}
		return
	}

	center := raw.Center()
	maxDim := raw.MaxDim()

	scale := float32(1)
	if maxDim > math3d.Epsilon {
		scale = NormalizedMaxDim / maxDim
	}

	// Scaling happens about the asset origin, which shifts the center;
	// recenter against the scaled box.
	s.Scale = scale
	s.Translation = center.MulScalar(scale).Negate()
}

// Camera is a perspective camera framing the normalized scene.
type Camera struct {
	Position math3d.Vector3
	Target   math3d.Vector3
	Up       math3d.Vector3
	// FOV is the vertical field of view in degrees.
	FOV    float32
	Aspect float32
}

// NewCamera returns a camera with the viewer defaults, looking at the
// origin down the +Z axis.
func NewCamera() Camera {
	return Camera{
		Position: math3d.Vec3(0, 0, 10),
		Up:       math3d.Vec3(0, 1, 0),
		FOV:      50,
		Aspect:   16.0 / 9.0,
	}
}

// Basis returns the camera's orthonormal view basis: forward towards the
// target, right, and true up.
func (c Camera) Basis() (forward, right, up math3d.Vector3) {
	forward = c.Target.Sub(c.Position).Normal()
	right = forward.Cross(c.Up).Normal()
	up = right.Cross(forward)
	return forward, right, up
}
