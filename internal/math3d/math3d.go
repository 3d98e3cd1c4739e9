// Package math3d provides the small slice of 3D vector math the viewer core
// needs: float32 vectors, axis-aligned bounding boxes, rays, and affine
// transforms for flattening loaded model hierarchies.
package math3d

import (
	"math"

	"github.com/chewxy/math32"
)

// Infinity is positive float32 infinity.
var Infinity = float32(math.Inf(1))

// Epsilon is the tolerance used for degenerate-geometry checks.
const Epsilon = 1e-7

// Sqrt returns the square root of x.
func Sqrt(x float32) float32 {
	return math32.Sqrt(x)
}

// Abs returns the absolute value of x.
func Abs(x float32) float32 {
	return math32.Abs(x)
}

// Tan returns the tangent of the radian argument x.
func Tan(x float32) float32 {
	return math32.Tan(x)
}

// Max returns the larger of x or y.
func Max(x, y float32) float32 {
	return math32.Max(x, y)
}

// Min returns the smaller of x or y.
func Min(x, y float32) float32 {
	return math32.Min(x, y)
}

// DegToRad converts an angle in degrees to radians.
func DegToRad(deg float32) float32 {
	return deg * math32.Pi / 180
}
