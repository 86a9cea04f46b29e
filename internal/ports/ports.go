// Package ports computes connector anchor points and their outward normals
// for every element kind.
package ports

import (
	"math"

	"github.com/inamate/canvas/internal/document"
	"github.com/inamate/canvas/internal/geometry"
)

// Port is an anchor in normalized element-local coordinates.
type Port struct {
	Kind document.PortKind
	X    float64
	Y    float64
}

var boxPorts = []Port{
	{document.PortN, 0, -0.5},
	{document.PortNE, 0.5, -0.5},
	{document.PortE, 0.5, 0},
	{document.PortSE, 0.5, 0.5},
	{document.PortS, 0, 0.5},
	{document.PortSW, -0.5, 0.5},
	{document.PortW, -0.5, 0},
	{document.PortNW, -0.5, -0.5},
	{document.PortCenter, 0, 0},
}

// diag is where a 45° ray leaves a circle of diameter 1.
var diag = 0.5 * math.Sqrt2 / 2

var circlePorts = []Port{
	{document.PortN, 0, -0.5},
	{document.PortNE, diag, -diag},
	{document.PortE, 0.5, 0},
	{document.PortSE, diag, diag},
	{document.PortS, 0, 0.5},
	{document.PortSW, -diag, diag},
	{document.PortW, -0.5, 0},
	{document.PortNW, -diag, -diag},
	{document.PortCenter, 0, 0},
}

// DefaultFor returns the eight compass ports plus CENTER. Box-like elements
// get ports on their box; circular elements get diagonals on the inscribed
// ellipse.
func DefaultFor(el document.Element) []Port {
	src := boxPorts
	switch e := el.(type) {
	case document.Shape:
		switch e.Shape {
		case document.ShapeEllipse:
			src = circlePorts
		case document.ShapeDiamond:
			src = diamondPorts
		}
	case document.Text:
		if e.Circular {
			src = circlePorts
		}
	case document.Sticky, document.Table, document.Image:
	}
	out := make([]Port, len(src))
	copy(out, src)
	return out
}

// diamondPorts puts diagonals on the diamond's edges rather than on the
// empty corners of its box.
var diamondPorts = []Port{
	{document.PortN, 0, -0.5},
	{document.PortNE, 0.25, -0.25},
	{document.PortE, 0.5, 0},
	{document.PortSE, 0.25, 0.25},
	{document.PortS, 0, 0.5},
	{document.PortSW, -0.25, 0.25},
	{document.PortW, -0.5, 0},
	{document.PortNW, -0.25, -0.25},
	{document.PortCenter, 0, 0},
}

// Lookup resolves a port kind on el. CUSTOM ports need the endpoint's custom
// coordinate; use Resolve for endpoints.
func Lookup(el document.Element, kind document.PortKind) (Port, bool) {
	for _, p := range DefaultFor(el) {
		if p.Kind == kind {
			return p, true
		}
	}
	return Port{}, false
}

// Resolve returns the port an endpoint refers to. A CUSTOM endpoint with a
// coordinate outside [-0.5, 0.5] is clamped onto the element box.
func Resolve(el document.Element, ep document.Endpoint) (Port, bool) {
	if ep.Port == document.PortCustom {
		if ep.Custom == nil {
			return Port{}, false
		}
		return Port{
			Kind: document.PortCustom,
			X:    clampUnit(ep.Custom.X),
			Y:    clampUnit(ep.Custom.Y),
		}, true
	}
	return Lookup(el, ep.Port)
}

func clampUnit(v float64) float64 {
	return math.Max(-0.5, math.Min(0.5, v))
}

// LocalToWorld maps a port coordinate through the element's position,
// size and rotation. Sizes below 1px are clamped.
func LocalToWorld(el document.Element, p Port) geometry.Point {
	b := el.Header()
	b.Width, b.Height = geometry.ClampSize(b.Width, b.Height)
	return b.Frame().Apply(geometry.Point{X: p.X, Y: p.Y})
}

// WorldPosition returns the world position of a named port, falling back to
// the element centre when the kind is not defined for el.
func WorldPosition(el document.Element, kind document.PortKind) geometry.Point {
	p, ok := Lookup(el, kind)
	if !ok {
		return el.Header().Center()
	}
	return LocalToWorld(el, p)
}

// Normal returns the outward unit vector of a port kind. CENTER and CUSTOM
// have no direction.
func Normal(kind document.PortKind) geometry.Vector {
	switch kind {
	case document.PortN:
		return geometry.Vector{X: 0, Y: -1}
	case document.PortS:
		return geometry.Vector{X: 0, Y: 1}
	case document.PortE:
		return geometry.Vector{X: 1, Y: 0}
	case document.PortW:
		return geometry.Vector{X: -1, Y: 0}
	case document.PortNE:
		return geometry.Vector{X: math.Sqrt2 / 2, Y: -math.Sqrt2 / 2}
	case document.PortNW:
		return geometry.Vector{X: -math.Sqrt2 / 2, Y: -math.Sqrt2 / 2}
	case document.PortSE:
		return geometry.Vector{X: math.Sqrt2 / 2, Y: math.Sqrt2 / 2}
	case document.PortSW:
		return geometry.Vector{X: -math.Sqrt2 / 2, Y: math.Sqrt2 / 2}
	default:
		return geometry.Vector{}
	}
}

// Nearest returns the compass port of el closest to a world point, and its
// distance. CENTER is only chosen when it is strictly closer than every
// boundary port.
func Nearest(el document.Element, world geometry.Point) (document.PortKind, float64) {
	best := document.PortCenter
	bestDist := math.Inf(1)
	for _, p := range DefaultFor(el) {
		d := geometry.Dist(LocalToWorld(el, p), world)
		if d < bestDist {
			best, bestDist = p.Kind, d
		}
	}
	return best, bestDist
}
