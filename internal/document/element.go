package document

import "github.com/inamate/canvas/internal/geometry"

// Kind tags the Element union.
type Kind string

const (
	KindShape  Kind = "shape"
	KindText   Kind = "text"
	KindSticky Kind = "sticky"
	KindTable  Kind = "table"
	KindImage  Kind = "image"
)

// Kinds lists every element kind.
var Kinds = []Kind{KindShape, KindText, KindSticky, KindTable, KindImage}

type ShapeType string

const (
	ShapeRect     ShapeType = "rect"
	ShapeEllipse  ShapeType = "ellipse"
	ShapeDiamond  ShapeType = "diamond"
	ShapeTriangle ShapeType = "triangle"
)

type Style struct {
	Fill        string  `json:"fill"`
	Stroke      string  `json:"stroke"`
	StrokeWidth float64 `json:"strokeWidth"`
	Opacity     float64 `json:"opacity"`
}

// Base holds the fields every element kind carries. X/Y is the top-left
// corner in world units; Rotation is in degrees about the centre.
type Base struct {
	ID       string
	X        float64
	Y        float64
	Width    float64
	Height   float64
	Rotation float64
	Style    Style
}

// Rect returns the unrotated world rectangle.
func (b Base) Rect() geometry.Rect {
	return geometry.Rect{X: b.X, Y: b.Y, Width: b.Width, Height: b.Height}
}

// Center returns the world-space centre.
func (b Base) Center() geometry.Point {
	return geometry.Point{X: b.X + b.Width/2, Y: b.Y + b.Height/2}
}

// Frame returns the element-local to world transform: the unit square
// centred on the origin maps onto the element's rotated box.
func (b Base) Frame() geometry.Matrix2D {
	c := b.Center()
	return geometry.Translate(c.X, c.Y).
		Multiply(geometry.RotateDegrees(b.Rotation)).
		Multiply(geometry.Scale(b.Width, b.Height))
}

// Element is the closed union of element kinds. The unexported method keeps
// implementations inside this package.
type Element interface {
	Header() Base
	Kind() Kind
	withBase(Base) Element
}

// WithBase returns a copy of el with its common fields replaced.
func WithBase(el Element, b Base) Element {
	return el.withBase(b)
}

type Shape struct {
	Base
	Shape ShapeType
	Text  string
}

func (e Shape) Header() Base { return e.Base }
func (e Shape) Kind() Kind   { return KindShape }
func (e Shape) withBase(b Base) Element {
	e.Base = b
	return e
}

// Text is a free text block. Circular text lives in a circle that grows to
// fit its content.
type Text struct {
	Base
	Text     string
	FontSize float64
	Circular bool
	Padding  float64
}

func (e Text) Header() Base { return e.Base }
func (e Text) Kind() Kind   { return KindText }
func (e Text) withBase(b Base) Element {
	e.Base = b
	return e
}

type Sticky struct {
	Base
	Text     string
	FontSize float64
}

func (e Sticky) Header() Base { return e.Base }
func (e Sticky) Kind() Kind   { return KindSticky }
func (e Sticky) withBase(b Base) Element {
	e.Base = b
	return e
}

type Table struct {
	Base
	Rows  int
	Cols  int
	Cells [][]string
}

func (e Table) Header() Base { return e.Base }
func (e Table) Kind() Kind   { return KindTable }
func (e Table) withBase(b Base) Element {
	e.Base = b
	return e
}

// Cell returns the text at (row, col), or "" outside the populated range.
func (e Table) Cell(row, col int) string {
	if row < 0 || row >= len(e.Cells) || col < 0 || col >= len(e.Cells[row]) {
		return ""
	}
	return e.Cells[row][col]
}

type Image struct {
	Base
	AssetID       string
	NaturalWidth  float64
	NaturalHeight float64
}

func (e Image) Header() Base { return e.Base }
func (e Image) Kind() Kind   { return KindImage }
func (e Image) withBase(b Base) Element {
	e.Base = b
	return e
}

// IsCircular reports whether ports are placed on an ellipse inscribed in the
// element box rather than on the box itself.
func IsCircular(el Element) bool {
	switch e := el.(type) {
	case Shape:
		return e.Shape == ShapeEllipse
	case Text:
		return e.Circular
	case Sticky, Table, Image:
		return false
	default:
		return false
	}
}

// TextOf returns the editable text carried by el, if its kind has any.
func TextOf(el Element) (string, bool) {
	switch e := el.(type) {
	case Shape:
		return e.Text, true
	case Text:
		return e.Text, true
	case Sticky:
		return e.Text, true
	case Table, Image:
		return "", false
	default:
		return "", false
	}
}

// WithText returns a copy of el carrying text. Kinds without text are
// returned unchanged.
func WithText(el Element, text string) Element {
	switch e := el.(type) {
	case Shape:
		e.Text = text
		return e
	case Text:
		e.Text = text
		return e
	case Sticky:
		e.Text = text
		return e
	default:
		return el
	}
}

// Clone returns a deep copy; only tables hold reference data.
func Clone(el Element) Element {
	if t, ok := el.(Table); ok {
		cells := make([][]string, len(t.Cells))
		for i, row := range t.Cells {
			cells[i] = append([]string(nil), row...)
		}
		t.Cells = cells
		return t
	}
	return el
}
