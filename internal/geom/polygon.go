package geom

// Polygon is a simple polygon given by its vertices in order. The closing edge
// from the last vertex back to the first is implicit.
type Polygon []Point

// Contains reports whether q lies strictly inside the polygon (even-odd rule).
func (poly Polygon) Contains(q Point) bool {
	inside := false
	n := len(poly)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, b := poly[i], poly[j]
		if (a.Y > q.Y) != (b.Y > q.Y) {
			x := (b.X-a.X)*(q.Y-a.Y)/(b.Y-a.Y) + a.X
			if q.X < x {
				inside = !inside
			}
		}
	}
	return inside
}

// NearVertex reports whether any vertex lies strictly closer to q than r.
func (poly Polygon) NearVertex(q Point, r float64) bool {
	r2 := r * r
	for _, v := range poly {
		if v.DistSq(q) < r2 {
			return true
		}
	}
	return false
}

// Bounds returns the axis-aligned bounding box of the polygon.
func (poly Polygon) Bounds() (lo, hi Point) {
	if len(poly) == 0 {
		return Point{}, Point{}
	}
	lo, hi = poly[0], poly[0]
	for _, v := range poly[1:] {
		lo.X, lo.Y = min(lo.X, v.X), min(lo.Y, v.Y)
		hi.X, hi.Y = max(hi.X, v.X), max(hi.Y, v.Y)
	}
	return lo, hi
}
