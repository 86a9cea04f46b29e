package geometry

import "math"

// Point is a position in some coordinate space (world or screen, depending
// on the caller).
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Vector is a direction; port normals are unit vectors or zero.
type Vector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p Point) Add(v Vector) Point      { return Point{p.X + v.X, p.Y + v.Y} }
func (p Point) Sub(q Point) Vector      { return Vector{p.X - q.X, p.Y - q.Y} }
func (v Vector) Scale(k float64) Vector { return Vector{v.X * k, v.Y * k} }
func (v Vector) Len() float64           { return math.Hypot(v.X, v.Y) }
func (v Vector) IsZero() bool           { return v.X == 0 && v.Y == 0 }

// Dist is the euclidean distance between two points.
func Dist(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// ApproxEqual compares points within eps on both axes.
func ApproxEqual(a, b Point, eps float64) bool {
	return math.Abs(a.X-b.X) <= eps && math.Abs(a.Y-b.Y) <= eps
}

// Rect represents an axis-aligned bounding box.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Contains checks if a point is inside the rect.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x <= r.X+r.Width && y >= r.Y && y <= r.Y+r.Height
}

// IsEmpty checks if the rect has zero or negative area.
func (r Rect) IsEmpty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Union returns the smallest rect containing both rects.
func (r Rect) Union(other Rect) Rect {
	if r.IsEmpty() {
		return other
	}
	if other.IsEmpty() {
		return r
	}

	minX := min(r.X, other.X)
	minY := min(r.Y, other.Y)
	maxX := max(r.X+r.Width, other.X+other.Width)
	maxY := max(r.Y+r.Height, other.Y+other.Height)

	return Rect{
		X:      minX,
		Y:      minY,
		Width:  maxX - minX,
		Height: maxY - minY,
	}
}

// Intersects reports whether two rects overlap (touching edges count).
func (r Rect) Intersects(other Rect) bool {
	return r.X <= other.X+other.Width && other.X <= r.X+r.Width &&
		r.Y <= other.Y+other.Height && other.Y <= r.Y+r.Height
}

// Inset shrinks the rect by d on every side (grows it when d < 0).
func (r Rect) Inset(d float64) Rect {
	return Rect{X: r.X + d, Y: r.Y + d, Width: r.Width - 2*d, Height: r.Height - 2*d}
}

// Center returns the center point of the rect.
func (r Rect) Center() Point {
	return Point{r.X + r.Width/2, r.Y + r.Height/2}
}

// BoundingBox returns the axis-aligned box of a flat [x0,y0,x1,y1,...]
// polyline. A single point yields a zero-size box at that point; an empty
// slice yields the zero Rect.
func BoundingBox(points []float64) Rect {
	if len(points) < 2 {
		return Rect{}
	}
	minX, minY := points[0], points[1]
	maxX, maxY := minX, minY
	for i := 2; i+1 < len(points); i += 2 {
		minX = math.Min(minX, points[i])
		maxX = math.Max(maxX, points[i])
		minY = math.Min(minY, points[i+1])
		maxY = math.Max(maxY, points[i+1])
	}
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// ClampSize enforces the 1px minimum used for all rendered geometry.
func ClampSize(w, h float64) (float64, float64) {
	return math.Max(w, 1), math.Max(h, 1)
}
