package render

import (
	"encoding/json"
	"math"

	"github.com/inamate/canvas/internal/geometry"
)

// NodeKind says which draw op a node compiles to. Group nodes only carry
// children.
type NodeKind string

const (
	NodeGroup    NodeKind = "group"
	NodePath     NodeKind = "path"
	NodePolyline NodeKind = "polyline"
	NodeText     NodeKind = "text"
	NodeImage    NodeKind = "image"
)

// Node is a persistent render-tree node. Modules create a node the first
// time they see an element and mutate it in place afterwards.
type Node struct {
	ID        string
	Owner     string // module that created the node
	ElementID string
	Kind      NodeKind
	Tag       string // owner-defined, e.g. the port kind of a handle

	// Transform maps node-local coordinates into the parent's space (or the
	// layer's space for top-level nodes).
	Transform geometry.Matrix2D

	// Render data
	Path        []PathCommand
	Points      []float64 // polyline points, node-local
	Curved      bool      // Points is [start, control, end] of a quadratic curve
	Closed      bool
	Text        string
	FontSize    float64
	BoxWidth    float64 // text wrap box / image size
	BoxHeight   float64
	AssetID     string
	Fill        string
	Stroke      string
	StrokeWidth float64
	Dash        []float64
	Opacity     float64

	Visible   bool
	Listening bool // participates in hit testing

	// Bounds is the axis-aligned box in layer space used for hit testing.
	Bounds geometry.Rect

	Children []*Node

	layer *Layer
}

// NewNode creates a visible node with an identity transform.
func NewNode(id, owner string, kind NodeKind) *Node {
	return &Node{
		ID:        id,
		Owner:     owner,
		Kind:      kind,
		Transform: geometry.Identity(),
		Opacity:   1,
		Visible:   true,
	}
}

// Layer returns the layer the node is attached to, or nil.
func (n *Node) Layer() *Layer {
	return n.layer
}

// Child returns the first direct child with the given id.
func (n *Node) Child(id string) *Node {
	for _, c := range n.Children {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// Destroy detaches the node from its layer and drops its children.
func (n *Node) Destroy() {
	if n.layer != nil {
		n.layer.Remove(n)
	}
	n.Children = nil
}

// PathCommand is a single path segment. It marshals to the Canvas2D style
// array form: ["M", x, y], ["L", x, y], ["C", x1, y1, x2, y2, x, y], ["Z"].
type PathCommand struct {
	Op   string
	Args []float64
}

func (c PathCommand) MarshalJSON() ([]byte, error) {
	out := make([]any, 0, len(c.Args)+1)
	out = append(out, c.Op)
	for _, a := range c.Args {
		out = append(out, a)
	}
	return json.Marshal(out)
}

func moveTo(x, y float64) PathCommand { return PathCommand{Op: "M", Args: []float64{x, y}} }
func lineTo(x, y float64) PathCommand { return PathCommand{Op: "L", Args: []float64{x, y}} }
func closePath() PathCommand          { return PathCommand{Op: "Z"} }

// RectPath outlines a w×h box with its top-left at the origin.
func RectPath(w, h float64) []PathCommand {
	return []PathCommand{
		moveTo(0, 0),
		lineTo(w, 0),
		lineTo(w, h),
		lineTo(0, h),
		closePath(),
	}
}

// EllipsePath approximates an ellipse inscribed in a w×h box with four
// cubic beziers.
func EllipsePath(w, h float64) []PathCommand {
	rx, ry := w/2, h/2
	cx, cy := rx, ry

	// k = 4 * (sqrt(2) - 1) / 3
	k := 0.5522847498
	kx, ky := rx*k, ry*k

	curve := func(args ...float64) PathCommand { return PathCommand{Op: "C", Args: args} }
	return []PathCommand{
		moveTo(cx+rx, cy),
		curve(cx+rx, cy+ky, cx+kx, cy+ry, cx, cy+ry),
		curve(cx-kx, cy+ry, cx-rx, cy+ky, cx-rx, cy),
		curve(cx-rx, cy-ky, cx-kx, cy-ry, cx, cy-ry),
		curve(cx+kx, cy-ry, cx+rx, cy-ky, cx+rx, cy),
		closePath(),
	}
}

// DiamondPath joins the midpoints of a w×h box.
func DiamondPath(w, h float64) []PathCommand {
	return []PathCommand{
		moveTo(w/2, 0),
		lineTo(w, h/2),
		lineTo(w/2, h),
		lineTo(0, h/2),
		closePath(),
	}
}

// TrianglePath is an isosceles triangle pointing up.
func TrianglePath(w, h float64) []PathCommand {
	return []PathCommand{
		moveTo(w/2, 0),
		lineTo(w, h),
		lineTo(0, h),
		closePath(),
	}
}

// PathBounds computes the bounding box of a path after transform. Curve
// control points are included, so the box may be slightly loose.
func PathBounds(path []PathCommand, m geometry.Matrix2D) geometry.Rect {
	var flat []float64
	for _, cmd := range path {
		for i := 0; i+1 < len(cmd.Args); i += 2 {
			p := m.Apply(geometry.Point{X: cmd.Args[i], Y: cmd.Args[i+1]})
			flat = append(flat, p.X, p.Y)
		}
	}
	return geometry.BoundingBox(flat)
}

// ArrowHead returns a closed triangle path at the end of a polyline,
// pointing along its last segment.
func ArrowHead(points []float64, size float64) []PathCommand {
	n := len(points)
	if n < 4 {
		return nil
	}
	tipX, tipY := points[n-2], points[n-1]
	fromX, fromY := points[n-4], points[n-3]
	angle := math.Atan2(tipY-fromY, tipX-fromX)
	spread := math.Pi / 7
	lx := tipX - size*math.Cos(angle-spread)
	ly := tipY - size*math.Sin(angle-spread)
	rx := tipX - size*math.Cos(angle+spread)
	ry := tipY - size*math.Sin(angle+spread)
	return []PathCommand{moveTo(tipX, tipY), lineTo(lx, ly), lineTo(rx, ry), closePath()}
}
