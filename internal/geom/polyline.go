package geom

import "sort"

// Polyline is an ordered point list with precomputed cumulative arc lengths,
// so positions can be sampled by distance travelled.
type Polyline struct {
	pts []Point
	cum []float64 // cum[i] = arc length from pts[0] to pts[i]
}

// NewPolyline copies pts and precomputes arc lengths.
func NewPolyline(pts []Point) Polyline {
	p := Polyline{
		pts: append([]Point(nil), pts...),
		cum: make([]float64, len(pts)),
	}
	for i := 1; i < len(pts); i++ {
		p.cum[i] = p.cum[i-1] + pts[i-1].Dist(pts[i])
	}
	return p
}

// Points returns the underlying vertices. Callers must not modify the slice.
func (p Polyline) Points() []Point { return p.pts }

// Len returns the vertex count.
func (p Polyline) Len() int { return len(p.pts) }

// Length returns the total arc length.
func (p Polyline) Length() float64 {
	if len(p.cum) == 0 {
		return 0
	}
	return p.cum[len(p.cum)-1]
}

// First returns the first vertex, or the zero point for an empty polyline.
func (p Polyline) First() Point {
	if len(p.pts) == 0 {
		return Point{}
	}
	return p.pts[0]
}

// Last returns the last vertex, or the zero point for an empty polyline.
func (p Polyline) Last() Point {
	if len(p.pts) == 0 {
		return Point{}
	}
	return p.pts[len(p.pts)-1]
}

// At returns the position at arc length d (clamped to [0, Length]) and the
// heading of the segment containing it.
func (p Polyline) At(d float64) (Point, float64) {
	switch len(p.pts) {
	case 0:
		return Point{}, 0
	case 1:
		return p.pts[0], 0
	}
	if d <= 0 {
		return p.pts[0], p.pts[0].Heading(p.pts[1])
	}
	total := p.Length()
	if d >= total {
		n := len(p.pts)
		return p.pts[n-1], p.lastHeading()
	}
	// First index whose cumulative length exceeds d; the segment is (i-1, i).
	i := sort.Search(len(p.cum), func(i int) bool { return p.cum[i] > d })
	a, b := p.pts[i-1], p.pts[i]
	seg := p.cum[i] - p.cum[i-1]
	if seg == 0 {
		return b, p.lastHeading()
	}
	return Lerp(a, b, (d-p.cum[i-1])/seg), a.Heading(b)
}

// lastHeading returns the heading of the last non-degenerate segment.
func (p Polyline) lastHeading() float64 {
	for i := len(p.pts) - 1; i > 0; i-- {
		if p.cum[i] > p.cum[i-1] {
			return p.pts[i-1].Heading(p.pts[i])
		}
	}
	return 0
}
