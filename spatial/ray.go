package spatial

import "math"

// intersectRayAABB clips the parametric ray interval against the three
// axis-aligned slab pairs of box. It returns the first non-negative hit
// parameter and whether the box is hit within maxDistance.
//
// Axes with a zero direction component are resolved up front: the ray runs
// parallel to that slab pair, so it misses outright unless the origin lies
// between the planes. Folding such an axis into the interval instead would
// produce a 0*Inf NaN when the origin sits exactly on a plane.
func intersectRayAABB(origin, direction Vec3, box AABB, maxDistance float32) (float32, bool) {
	tmin := (float32)(math.Inf(-1))
	tmax := (float32)(math.Inf(1))

	for axis := 0; axis < 3; axis++ {
		o := axisValue(origin, axis)
		d := axisValue(direction, axis)
		lo := axisValue(box.Min, axis)
		hi := axisValue(box.Max, axis)

		if d == 0 {
			if o < lo || o > hi {
				return 0, false
			}
			continue
		}

		t1 := (lo - o) / d
		t2 := (hi - o) / d
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tmin = max(tmin, t1)
		tmax = min(tmax, t2)
	}

	if tmax < 0 || tmin > tmax {
		return 0, false
	}

	t := tmin
	if t < 0 {
		// origin is inside the box, the exit parameter is the hit
		t = tmax
	}
	if t > maxDistance {
		return 0, false
	}
	return t, true
}
