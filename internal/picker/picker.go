// Package picker turns viewport clicks into points on the loaded model's
// surface. A click becomes a ray from the camera through the pixel; the
// ray is tested against every mesh, bounding box first, and the nearest
// triangle hit wins.
package picker

import (
	"github.com/openanatomy/lab/internal/math3d"
	"github.com/openanatomy/lab/internal/scene"
)

// Hit is a successful pick: the surface point in normalized model space
// and the mesh it landed on.
type Hit struct {
	Point    math3d.Vector3
	Distance float32
	Mesh     *scene.Mesh
}

// Viewport is the pixel size of the rendering surface.
type Viewport struct {
	Width  float32
	Height float32
}

// RayThroughPixel builds a world-space ray from the camera through the
// given pixel. Pixel origin is the top-left corner, Y growing downward.
func RayThroughPixel(cam scene.Camera, vp Viewport, px, py float32) math3d.Ray {
	// Pixel to normalized device coordinates, -1..1 with Y up.
	ndcX := (px/vp.Width)*2 - 1
	ndcY := -((py/vp.Height)*2 - 1)

	forward, right, up := cam.Basis()
	halfH := math3d.Tan(math3d.DegToRad(cam.FOV) / 2)
	halfW := halfH * cam.Aspect

	dir := forward.
		Add(right.MulScalar(ndcX * halfW)).
		Add(up.MulScalar(ndcY * halfH))
	return math3d.NewRay(cam.Position, dir)
}

// Pick intersects a world-space ray with the scene and returns the
// nearest surface hit. ok is false when the ray misses everything or no
// scene is loaded.
func Pick(s *scene.Scene, ray math3d.Ray) (Hit, bool) {
	if s == nil {
		return Hit{}, false
	}

	// The scene transform is a uniform scale plus translation, so testing
	// in asset space preserves hit ordering.
	assetRay := math3d.NewRay(s.ToAsset(ray.Origin), ray.Dir)

	best := Hit{Distance: math3d.Infinity}
	found := false
	for _, m := range s.Meshes {
		if _, ok := assetRay.IntersectBox(m.Bounds); !ok {
			continue
		}
		for i := 0; i < m.TriangleCount(); i++ {
			a, b, c := m.Triangle(i)
			t, ok := assetRay.IntersectTriangle(a, b, c)
			if !ok || t >= best.Distance {
				continue
			}
			best = Hit{Point: assetRay.At(t), Distance: t, Mesh: m}
			found = true
		}
	}
	if !found {
		return Hit{}, false
	}

	// Asset-space t scales uniformly, so the nearest asset hit is the
	// nearest world hit; report both point and distance in world terms.
	best.Point = s.ToWorld(best.Point)
	best.Distance = best.Distance * s.Scale
	return best, true
}

// PickPixel is the full click path: ray generation plus scene
// intersection.
func PickPixel(s *scene.Scene, cam scene.Camera, vp Viewport, px, py float32) (Hit, bool) {
	return Pick(s, RayThroughPixel(cam, vp, px, py))
}
