package spatial

import "math"

// AABB is an axis-aligned bounding box described by its minimum and maximum
// corners. Degenerate boxes (zero extent on one or more axes) are legal.
//
// All operations assume finite coordinates and Min <= Max per component.
// NaN or infinite inputs are a caller error and lead to unspecified results.
type AABB struct {
	Min Vec3
	Max Vec3
}

func NewAABB(min, max Vec3) AABB {
	return AABB{Min: min, Max: max}
}

// AABBFromPoints returns the tightest box enclosing the given points. An
// empty slice yields the zero box.
func AABBFromPoints(points []Vec3) AABB {
	if len(points) == 0 {
		return AABB{}
	}

	box := AABB{Min: points[0], Max: points[0]}
	for _, p := range points[1:] {
		box.Expand(p)
	}
	return box
}

// Union returns the smallest box containing both a and b.
func Union(a, b AABB) AABB {
	a.ExpandAABB(b)
	return a
}

func (a AABB) Center() Vec3 {
	return Vec3{
		X: (a.Min.X + a.Max.X) / 2,
		Y: (a.Min.Y + a.Max.Y) / 2,
		Z: (a.Min.Z + a.Max.Z) / 2,
	}
}

func (a AABB) Size() Vec3 {
	return a.Max.Sub(a.Min)
}

func (a AABB) Volume() float32 {
	size := a.Size()
	return size.X * size.Y * size.Z
}

// Intersects reports whether a and b overlap. Boxes sharing only a face,
// edge or corner count as overlapping.
func (a AABB) Intersects(b AABB) bool {
	return a.Min.X <= b.Max.X && a.Max.X >= b.Min.X &&
		a.Min.Y <= b.Max.Y && a.Max.Y >= b.Min.Y &&
		a.Min.Z <= b.Max.Z && a.Max.Z >= b.Min.Z
}

func (a AABB) ContainsPoint(p Vec3) bool {
	return p.X >= a.Min.X && p.X <= a.Max.X &&
		p.Y >= a.Min.Y && p.Y <= a.Max.Y &&
		p.Z >= a.Min.Z && p.Z <= a.Max.Z
}

func (a AABB) ContainsAABB(b AABB) bool {
	return a.Min.X <= b.Min.X && a.Max.X >= b.Max.X &&
		a.Min.Y <= b.Min.Y && a.Max.Y >= b.Max.Y &&
		a.Min.Z <= b.Min.Z && a.Max.Z >= b.Max.Z
}

// Expand grows the box in place so it contains p.
func (a *AABB) Expand(p Vec3) {
	a.Min.X = min(a.Min.X, p.X)
	a.Min.Y = min(a.Min.Y, p.Y)
	a.Min.Z = min(a.Min.Z, p.Z)
	a.Max.X = max(a.Max.X, p.X)
	a.Max.Y = max(a.Max.Y, p.Y)
	a.Max.Z = max(a.Max.Z, p.Z)
}

// ExpandAABB grows the box in place so it contains b.
func (a *AABB) ExpandAABB(b AABB) {
	a.Expand(b.Min)
	a.Expand(b.Max)
}

// DistanceToPoint returns the Euclidean distance from p to the closest point
// on the box surface, or 0 when p is inside the box.
func (a AABB) DistanceToPoint(p Vec3) float32 {
	dx := max(a.Min.X-p.X, 0, p.X-a.Max.X)
	dy := max(a.Min.Y-p.Y, 0, p.Y-a.Max.Y)
	dz := max(a.Min.Z-p.Z, 0, p.Z-a.Max.Z)
	return (float32)(math.Sqrt((float64)(dx*dx + dy*dy + dz*dz)))
}
