package math3d

// Ray is a half-line in 3D space with an origin and a unit direction.
type Ray struct {
	Origin Vector3
	Dir    Vector3
}

// NewRay returns a ray from origin along dir. dir is normalized.
func NewRay(origin, dir Vector3) Ray {
	return Ray{Origin: origin, Dir: dir.Normal()}
}

// At returns the point at parameter t along this ray.
func (r Ray) At(t float32) Vector3 {
	return r.Origin.Add(r.Dir.MulScalar(t))
}

// IntersectBox returns the parameter of the nearest intersection of this
// ray with the given box, using the slab method. The second return value
// is false if the ray misses the box entirely. A ray starting inside the
// box reports t = 0.
func (r Ray) IntersectBox(b Box3) (float32, bool) {
	if b.IsEmpty() {
		return 0, false
	}

	tmin := float32(-Infinity)
	tmax := Infinity

	origin := [3]float32{r.Origin.X, r.Origin.Y, r.Origin.Z}
	dir := [3]float32{r.Dir.X, r.Dir.Y, r.Dir.Z}
	bmin := [3]float32{b.Min.X, b.Min.Y, b.Min.Z}
	bmax := [3]float32{b.Max.X, b.Max.Y, b.Max.Z}

	for i := 0; i < 3; i++ {
		if Abs(dir[i]) < Epsilon {
			// Ray parallel to this slab: must be within it.
			if origin[i] < bmin[i] || origin[i] > bmax[i] {
				return 0, false
			}
			continue
		}
		inv := 1 / dir[i]
		t0 := (bmin[i] - origin[i]) * inv
		t1 := (bmax[i] - origin[i]) * inv
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		tmin = Max(tmin, t0)
		tmax = Min(tmax, t1)
		if tmin > tmax {
			return 0, false
		}
	}

	if tmax < 0 {
		return 0, false
	}
	if tmin < 0 {
		return 0, true
	}
	return tmin, true
}

// IntersectTriangle returns the parameter of the intersection of this ray
// with the triangle (a, b, c), using the Moller-Trumbore algorithm. The
// triangle is treated as double-sided. The second return value is false
// if the ray misses, is parallel to the triangle plane, or hits behind
// the origin.
func (r Ray) IntersectTriangle(a, b, c Vector3) (float32, bool) {
	edge1 := b.Sub(a)
	edge2 := c.Sub(a)

	p := r.Dir.Cross(edge2)
	det := edge1.Dot(p)
	if Abs(det) < Epsilon {
		return 0, false
	}
	invDet := 1 / det

	tv := r.Origin.Sub(a)
	u := tv.Dot(p) * invDet
	if u < 0 || u > 1 {
		return 0, false
	}

	q := tv.Cross(edge1)
	v := r.Dir.Dot(q) * invDet
	if v < 0 || u+v > 1 {
		return 0, false
	}

	t := edge2.Dot(q) * invDet
	if t < Epsilon {
		return 0, false
	}
	return t, true
}
