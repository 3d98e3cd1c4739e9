package math3d

// Box3 is an axis-aligned 3D bounding box defined by its minimum and
// maximum corner points.
type Box3 struct {
	Min Vector3
	Max Vector3
}

// B3Empty returns a new empty [Box3] (min at +Inf, max at -Inf), ready to
// be expanded by points.
func B3Empty() Box3 {
	b := Box3{}
	b.SetEmpty()
	return b
}

// SetEmpty sets this box to empty (min at +Inf, max at -Inf).
func (b *Box3) SetEmpty() {
	b.Min.SetScalar(Infinity)
	b.Max.SetScalar(-Infinity)
}

// IsEmpty returns true if this box is empty (max < min on any axis).
func (b Box3) IsEmpty() bool {
	return b.Max.X < b.Min.X || b.Max.Y < b.Min.Y || b.Max.Z < b.Min.Z
}

// ExpandByPoint expands this box to include the given point.
func (b *Box3) ExpandByPoint(p Vector3) {
	b.Min.SetMin(p)
	b.Max.SetMax(p)
}

// ExpandByBox expands this box to include the given box.
func (b *Box3) ExpandByBox(other Box3) {
	if other.IsEmpty() {
		return
	}
	b.ExpandByPoint(other.Min)
	b.ExpandByPoint(other.Max)
}

// SetFromPoints sets this box to the smallest box containing all points.
func (b *Box3) SetFromPoints(points []Vector3) {
	b.SetEmpty()
	for _, p := range points {
		b.ExpandByPoint(p)
	}
}

// Center returns the center of this box.
func (b Box3) Center() Vector3 {
	return b.Min.Add(b.Max).MulScalar(0.5)
}

// Size returns the vector from the minimum to the maximum corner.
func (b Box3) Size() Vector3 {
	if b.IsEmpty() {
		return Vector3{}
	}
	return b.Max.Sub(b.Min)
}

// MaxDim returns the largest dimension of this box.
func (b Box3) MaxDim() float32 {
	sz := b.Size()
	return Max(sz.X, Max(sz.Y, sz.Z))
}

// ContainsPoint returns whether this box contains the given point.
func (b Box3) ContainsPoint(p Vector3) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// Translated returns this box moved by the given offset.
func (b Box3) Translated(offset Vector3) Box3 {
	if b.IsEmpty() {
		return b
	}
	return Box3{Min: b.Min.Add(offset), Max: b.Max.Add(offset)}
}

// Scaled returns this box with both corners scaled about the origin by the
// given uniform factor. The factor must be non-negative.
func (b Box3) Scaled(s float32) Box3 {
	if b.IsEmpty() {
		return b
	}
	return Box3{Min: b.Min.MulScalar(s), Max: b.Max.MulScalar(s)}
}
