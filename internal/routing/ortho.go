package routing

import (
	"math"
	"slices"

	"github.com/inamate/canvas/internal/geometry"
)

// Axis selects the first leg of an orthogonal route when candidates tie.
type Axis int

const (
	AxisNone Axis = iota
	AxisHorizontal
	AxisVertical
)

type Options struct {
	Clearance      float64 // distance to leave each port along its normal
	PreferredAxis  Axis
	MergeThreshold float64 // segments shorter than this are merged out
}

// DefaultOptions returns clearance 8, no preferred axis, 0.5px merging.
func DefaultOptions() Options {
	return Options{Clearance: DefaultClearance, MergeThreshold: 0.5}
}

func (o Options) withDefaults() Options {
	if o.Clearance <= 0 {
		o.Clearance = DefaultClearance
	}
	if o.MergeThreshold <= 0 {
		o.MergeThreshold = 0.5
	}
	return o
}

type candidate struct {
	points []geometry.Point
	first  Axis // axis of the leg leaving the source stub
}

// Orthogonal routes from a to b with horizontal and vertical segments only.
//
// Both anchors are pushed out along their normals by the clearance, then two
// candidates are built through a single corner: horizontal-then-vertical and
// vertical-then-horizontal. The shorter merged polyline wins. Equal lengths
// fall through, in order, to fewer bends, the preferred axis, the axis of
// the source normal, and finally horizontal-first.
func Orthogonal(a, b Anchor, opts Options) []float64 {
	opts = opts.withDefaults()

	na := axisNormal(a.Normal, b.Point.Sub(a.Point))
	nb := axisNormal(b.Normal, a.Point.Sub(b.Point))
	a1 := a.Point.Add(na.Scale(opts.Clearance))
	b1 := b.Point.Add(nb.Scale(opts.Clearance))

	hv := candidate{
		points: Simplify([]geometry.Point{a.Point, a1, {X: b1.X, Y: a1.Y}, b1, b.Point}, opts.MergeThreshold),
		first:  AxisHorizontal,
	}
	vh := candidate{
		points: Simplify([]geometry.Point{a.Point, a1, {X: a1.X, Y: b1.Y}, b1, b.Point}, opts.MergeThreshold),
		first:  AxisVertical,
	}

	best := pick(hv, vh, sourceAxis(na), opts.PreferredAxis)
	return flatten(best.points)
}

func pick(hv, vh candidate, source, preferred Axis) candidate {
	const eps = 1e-9
	lh, lv := PathLength(hv.points), PathLength(vh.points)
	switch {
	case lh < lv-eps:
		return hv
	case lv < lh-eps:
		return vh
	}

	bh, bv := len(hv.points), len(vh.points)
	switch {
	case bh < bv:
		return hv
	case bv < bh:
		return vh
	}

	for _, axis := range []Axis{preferred, source} {
		switch axis {
		case AxisHorizontal:
			return hv
		case AxisVertical:
			return vh
		}
	}
	return hv
}

// axisNormal snaps a diagonal normal onto one axis, choosing the axis along
// which the other endpoint is further away. Axis-aligned and zero normals
// are returned unchanged.
func axisNormal(n geometry.Vector, toward geometry.Vector) geometry.Vector {
	if n.X == 0 || n.Y == 0 {
		return n
	}
	if math.Abs(toward.X) >= math.Abs(toward.Y) {
		return geometry.Vector{X: math.Copysign(1, n.X)}
	}
	return geometry.Vector{Y: math.Copysign(1, n.Y)}
}

func sourceAxis(n geometry.Vector) Axis {
	switch {
	case n.X != 0:
		return AxisHorizontal
	case n.Y != 0:
		return AxisVertical
	default:
		return AxisNone
	}
}

// Simplify merges an axis-aligned polyline. Repeated points and middle
// points on a straight run are dropped, and segments shorter than threshold
// are folded into their neighbours when that keeps every segment horizontal
// or vertical. The first and last points never move, and a run that turns
// back on itself keeps its turning point.
func Simplify(pts []geometry.Point, threshold float64) []geometry.Point {
	if len(pts) < 2 {
		return pts
	}
	out := slices.Clone(pts)
	for changed := true; changed; {
		out = dropStraight(out)
		changed = false
		for i := 0; i+1 < len(out); i++ {
			if geometry.Dist(out[i], out[i+1]) < threshold && fold(out, i) {
				changed = true
				break
			}
		}
	}
	return out
}

// dropStraight removes repeats and middle points that continue in the
// direction of the previous segment.
func dropStraight(pts []geometry.Point) []geometry.Point {
	out := []geometry.Point{pts[0]}
	for i := 1; i < len(pts); i++ {
		p := pts[i]
		if p == out[len(out)-1] {
			continue
		}
		if len(out) >= 2 && sameDirection(out[len(out)-2], out[len(out)-1], p) {
			out[len(out)-1] = p
			continue
		}
		out = append(out, p)
	}
	if len(out) == 1 && len(pts) > 1 {
		out = append(out, pts[len(pts)-1])
	}
	return out
}

// sameDirection reports whether a->b->c runs straight along one axis
// without reversing.
func sameDirection(a, b, c geometry.Point) bool {
	switch {
	case a.Y == b.Y && b.Y == c.Y:
		return (b.X-a.X)*(c.X-b.X) > 0
	case a.X == b.X && b.X == c.X:
		return (b.Y-a.Y)*(c.Y-b.Y) > 0
	}
	return false
}

// fold collapses the segment pts[i]->pts[i+1] by sliding an adjacent
// perpendicular segment along it. The neighbour beyond that segment must be
// parallel to the collapsed one so it only changes length. It reports
// whether anything moved.
func fold(pts []geometry.Point, i int) bool {
	a, b := pts[i], pts[i+1]
	vertical := a.X == b.X
	if !vertical && a.Y != b.Y {
		return false
	}
	// Slide pts[i+1] and pts[i+2] back onto a.
	if i+3 < len(pts) && perpendicular(b, pts[i+2], vertical) && parallel(pts[i+2], pts[i+3], vertical) {
		pts[i+1] = a
		pts[i+2] = shift(pts[i+2], a, vertical)
		return true
	}
	// Slide pts[i] and pts[i-1] forward onto b.
	if i >= 2 && perpendicular(pts[i-1], a, vertical) && parallel(pts[i-2], pts[i-1], vertical) {
		pts[i] = b
		pts[i-1] = shift(pts[i-1], b, vertical)
		return true
	}
	return false
}

// perpendicular reports whether p->q crosses the fold axis.
func perpendicular(p, q geometry.Point, vertical bool) bool {
	if vertical {
		return p.Y == q.Y
	}
	return p.X == q.X
}

// parallel reports whether p->q lies along the fold axis.
func parallel(p, q geometry.Point, vertical bool) bool {
	if vertical {
		return p.X == q.X
	}
	return p.Y == q.Y
}

// shift moves p along the fold axis to line up with to.
func shift(p, to geometry.Point, vertical bool) geometry.Point {
	if vertical {
		p.Y = to.Y
	} else {
		p.X = to.X
	}
	return p
}

// PathLength sums segment lengths.
func PathLength(pts []geometry.Point) float64 {
	var total float64
	for i := 1; i < len(pts); i++ {
		total += geometry.Dist(pts[i-1], pts[i])
	}
	return total
}

// Points unflattens a polyline.
func Points(flat []float64) []geometry.Point {
	out := make([]geometry.Point, 0, len(flat)/2)
	for i := 0; i+1 < len(flat); i += 2 {
		out = append(out, geometry.Point{X: flat[i], Y: flat[i+1]})
	}
	return out
}

func flatten(pts []geometry.Point) []float64 {
	out := make([]float64, 0, len(pts)*2)
	for _, p := range pts {
		out = append(out, p.X, p.Y)
	}
	return out
}
