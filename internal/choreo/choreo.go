// Package choreo animates the viewer camera between framings: the
// fit-all reset, flights to saved question views, and flights that bring
// an annotation point into view. One animation runs at a time; requests
// made mid-flight are dropped, never queued.
package choreo

import (
	"errors"
	"time"

	"github.com/openanatomy/lab/internal/math3d"
	"github.com/openanatomy/lab/internal/model"
	"github.com/openanatomy/lab/internal/scene"
)

// Duration is how long every camera flight takes.
const Duration = time.Second

// ErrAnimationInFlight is returned when a flight is requested while a
// previous one is still running.
var ErrAnimationInFlight = errors.New("camera animation already in flight")

// Ease is the flight's time curve: quadratic ease-in-out. It maps
// progress 0..1 to eased progress 0..1.
func Ease(p float32) float32 {
	if p < 0.5 {
		return 2 * p * p
	}
	q := -2*p + 2
	return 1 - q*q/2
}

// Animator drives the camera of a single viewer. Not safe for
// concurrent use; the viewer steps it from its frame loop.
type Animator struct {
	cam *scene.Camera
	now func() time.Time

	animating bool
	start     time.Time

	fromPos, toPos math3d.Vector3
	fromTgt, toTgt math3d.Vector3
}

// New creates an animator driving the given camera.
func New(cam *scene.Camera) *Animator {
	return &Animator{cam: cam, now: time.Now}
}

// SetClock replaces the animator's time source. Tests use this to step
// flights deterministically.
func (a *Animator) SetClock(now func() time.Time) {
	a.now = now
}

// Animating reports whether a flight is in progress.
func (a *Animator) Animating() bool {
	return a.animating
}

// begin starts a flight to the given framing, unless one is running.
func (a *Animator) begin(pos, tgt math3d.Vector3) error {
	if a.animating {
		return ErrAnimationInFlight
	}
	a.animating = true
	a.start = a.now()
	a.fromPos, a.toPos = a.cam.Position, pos
	a.fromTgt, a.toTgt = a.cam.Target, tgt
	return nil
}

// FlyTo starts a flight to an explicit camera framing.
func (a *Animator) FlyTo(pos, tgt math3d.Vector3) error {
	return a.begin(pos, tgt)
}

// FlyToView starts a flight to a saved camera view.
func (a *Animator) FlyToView(v model.CameraView) error {
	return a.begin(v.Position.Vector3(), v.Target.Vector3())
}

// ResetToFit starts a flight that frames the whole model: the camera
// backs off to twice the largest bounding box dimension, raised above
// the model, looking at its center.
func (a *Animator) ResetToFit(s *scene.Scene) error {
	pos, tgt := FitFraming(s)
	return a.begin(pos, tgt)
}

// FlyToPoint starts a flight that brings a surface point into view. The
// camera backs away from the point along the current viewing direction
// and aims slightly above it, so the marker is visible without filling
// the frame.
func (a *Animator) FlyToPoint(point math3d.Vector3, center math3d.Vector3) error {
	pos, tgt := PointFraming(a.cam.Position, point, center)
	return a.begin(pos, tgt)
}

// Step advances the running flight to the current time, writing the
// interpolated framing to the camera. It reports whether a flight is
// still in progress after the step.
func (a *Animator) Step() bool {
	if !a.animating {
		return false
	}

	elapsed := a.now().Sub(a.start)
	p := float32(elapsed) / float32(Duration)
	if p >= 1 {
		a.cam.Position = a.toPos
		a.cam.Target = a.toTgt
		a.animating = false
		return false
	}
	if p < 0 {
		p = 0
	}

	eased := Ease(p)
	a.cam.Position = a.fromPos.Lerp(a.toPos, eased)
	a.cam.Target = a.fromTgt.Lerp(a.toTgt, eased)
	return true
}

// FitFraming computes the framing that shows the whole model: eye at
// (d, 0.6d, d) from the center where d is twice the largest bounding
// box dimension, looking at the center.
func FitFraming(s *scene.Scene) (pos, tgt math3d.Vector3) {
	b := s.Bounds()
	center := b.Center()
	d := 2 * b.MaxDim()
	pos = center.Add(math3d.Vec3(d, 0.6*d, d))
	return pos, center
}

// PointFraming computes the framing for a flight to a surface point:
// the eye sits on the line from the point towards the model center, by
// half the point's distance to the center but never closer than the
// normalized model size, raised two units for a slight downward angle,
// looking straight at the point.
func PointFraming(eye, point, center math3d.Vector3) (pos, tgt math3d.Vector3) {
	dir := center.Sub(point).Normal()
	if dir.LengthSquared() < math3d.Epsilon {
		// Point at the very center; back off towards the current eye.
		dir = eye.Sub(point).Normal()
		if dir.LengthSquared() < math3d.Epsilon {
			dir = math3d.Vec3(0, 0, 1)
		}
	}

	dist := math3d.Max(scene.NormalizedMaxDim, 0.5*point.DistanceTo(center))
	pos = point.Add(dir.MulScalar(dist))
	pos.Y += 2
	return pos, point
}
