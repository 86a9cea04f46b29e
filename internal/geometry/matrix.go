package geometry

import "math"

// Matrix2D represents a 2D affine transformation matrix.
// Layout: [a, b, c, d, e, f] representing:
// | a  c  e |
// | b  d  f |
// | 0  0  1 |
//
// Where:
// - a, d = scale
// - b, c = skew/rotation
// - e, f = translation
type Matrix2D [6]float64

// Identity returns the identity matrix.
func Identity() Matrix2D {
	return Matrix2D{1, 0, 0, 1, 0, 0}
}

// Translate returns a translation matrix.
func Translate(tx, ty float64) Matrix2D {
	return Matrix2D{1, 0, 0, 1, tx, ty}
}

// Scale returns a per-axis scale matrix.
func Scale(sx, sy float64) Matrix2D {
	return Matrix2D{sx, 0, 0, sy, 0, 0}
}

// Rotate returns a rotation matrix (angle in radians).
func Rotate(radians float64) Matrix2D {
	cos := math.Cos(radians)
	sin := math.Sin(radians)
	return Matrix2D{cos, sin, -sin, cos, 0, 0}
}

// RotateDegrees returns a rotation matrix (angle in degrees).
func RotateDegrees(degrees float64) Matrix2D {
	if degrees == 0 {
		return Identity()
	}
	return Rotate(degrees * math.Pi / 180.0)
}

// Multiply multiplies this matrix by another: result = m * other
// This applies 'other' first, then 'm'.
func (m Matrix2D) Multiply(other Matrix2D) Matrix2D {
	return Matrix2D{
		m[0]*other[0] + m[2]*other[1],        // a
		m[1]*other[0] + m[3]*other[1],        // b
		m[0]*other[2] + m[2]*other[3],        // c
		m[1]*other[2] + m[3]*other[3],        // d
		m[0]*other[4] + m[2]*other[5] + m[4], // e
		m[1]*other[4] + m[3]*other[5] + m[5], // f
	}
}

// Apply transforms a point.
func (m Matrix2D) Apply(p Point) Point {
	return Point{m[0]*p.X + m[2]*p.Y + m[4], m[1]*p.X + m[3]*p.Y + m[5]}
}

// ApplyVector transforms a direction, ignoring translation.
func (m Matrix2D) ApplyVector(v Vector) Vector {
	return Vector{m[0]*v.X + m[2]*v.Y, m[1]*v.X + m[3]*v.Y}
}

// TransformRect transforms a rectangle and returns its axis-aligned bounding box.
func (m Matrix2D) TransformRect(r Rect) Rect {
	corners := [4]Point{
		m.Apply(Point{r.X, r.Y}),
		m.Apply(Point{r.X + r.Width, r.Y}),
		m.Apply(Point{r.X + r.Width, r.Y + r.Height}),
		m.Apply(Point{r.X, r.Y + r.Height}),
	}
	flat := make([]float64, 0, 8)
	for _, c := range corners {
		flat = append(flat, c.X, c.Y)
	}
	return BoundingBox(flat)
}

// Determinant returns the determinant of the matrix.
func (m Matrix2D) Determinant() float64 {
	return m[0]*m[3] - m[1]*m[2]
}

// Invert returns the inverse of the matrix, or Identity if not invertible.
func (m Matrix2D) Invert() Matrix2D {
	det := m.Determinant()
	if det == 0 {
		return Identity()
	}

	invDet := 1.0 / det
	return Matrix2D{
		m[3] * invDet,
		-m[1] * invDet,
		-m[2] * invDet,
		m[0] * invDet,
		(m[2]*m[5] - m[3]*m[4]) * invDet,
		(m[1]*m[4] - m[0]*m[5]) * invDet,
	}
}

// ToSlice returns the matrix as a float64 slice for JSON serialization.
func (m Matrix2D) ToSlice() []float64 {
	return []float64{m[0], m[1], m[2], m[3], m[4], m[5]}
}

// IsIdentity checks if this is the identity matrix (within epsilon).
func (m Matrix2D) IsIdentity() bool {
	const eps = 1e-10
	return math.Abs(m[0]-1) < eps &&
		math.Abs(m[1]) < eps &&
		math.Abs(m[2]) < eps &&
		math.Abs(m[3]-1) < eps &&
		math.Abs(m[4]) < eps &&
		math.Abs(m[5]) < eps
}
