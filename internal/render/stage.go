package render

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/inamate/canvas/internal/geometry"
)

var ErrNotMounted = errors.New("render target not mounted")

// LayerName identifies one of the four stage layers.
type LayerName string

const (
	LayerBackground LayerName = "background"
	LayerMain       LayerName = "main"
	LayerPreview    LayerName = "preview"
	LayerOverlay    LayerName = "overlay"
)

// LayerOrder is the back-to-front stacking of stage layers.
var LayerOrder = []LayerName{LayerBackground, LayerMain, LayerPreview, LayerOverlay}

// Layer is an ordered list of top-level nodes sharing one transform.
type Layer struct {
	name      LayerName
	stage     *Stage
	nodes     []*Node
	transform geometry.Matrix2D
	follows   bool // pans and zooms with the viewport
	draws     int
}

// Name returns the layer name.
func (l *Layer) Name() LayerName {
	return l.name
}

// Add appends n on top of the layer. A node already on another layer is
// moved.
func (l *Layer) Add(n *Node) {
	if n.layer == l {
		return
	}
	if n.layer != nil {
		n.layer.Remove(n)
	}
	n.layer = l
	l.nodes = append(l.nodes, n)
}

// Remove detaches n, keeping the order of the remaining nodes.
func (l *Layer) Remove(n *Node) bool {
	i := slices.Index(l.nodes, n)
	if i < 0 {
		return false
	}
	l.nodes = slices.Delete(l.nodes, i, i+1)
	n.layer = nil
	return true
}

// Nodes returns the top-level nodes back to front.
func (l *Layer) Nodes() []*Node {
	return slices.Clone(l.nodes)
}

// Len returns the number of top-level nodes.
func (l *Layer) Len() int {
	return len(l.nodes)
}

// Transform is the layer-to-screen matrix.
func (l *Layer) Transform() geometry.Matrix2D {
	return l.transform
}

// FollowsViewport reports whether the layer is transformed by the viewport.
func (l *Layer) FollowsViewport() bool {
	return l.follows
}

// DrawCount returns how many times the layer has been painted.
func (l *Layer) DrawCount() int {
	return l.draws
}

// Draw compiles the layer and hands it to the stage painter.
func (l *Layer) Draw() error {
	l.draws++
	if l.stage == nil || l.stage.painter == nil {
		return nil
	}
	return l.stage.painter.Paint(l.name, Compile(l))
}

// HitTest returns the topmost listening node under p, given in screen
// coordinates.
func (l *Layer) HitTest(p geometry.Point) *Node {
	local := l.transform.Invert().Apply(p)
	for i := len(l.nodes) - 1; i >= 0; i-- {
		if hit := hitNode(l.nodes[i], geometry.Identity(), local); hit != nil {
			return hit
		}
	}
	return nil
}

func hitNode(n *Node, parent geometry.Matrix2D, p geometry.Point) *Node {
	if n == nil || !n.Visible {
		return nil
	}
	world := parent.Multiply(n.Transform)
	for i := len(n.Children) - 1; i >= 0; i-- {
		if hit := hitNode(n.Children[i], world, p); hit != nil {
			return hit
		}
	}
	if !n.Listening {
		return nil
	}
	if n.Kind == NodePolyline {
		tol := math.Max(n.StrokeWidth, 6) / 2
		if nearPolyline(world, n.Points, p, tol) {
			return n
		}
		return nil
	}
	if !n.Bounds.IsEmpty() && n.Bounds.Contains(p.X, p.Y) {
		return n
	}
	return nil
}

func nearPolyline(m geometry.Matrix2D, pts []float64, p geometry.Point, tol float64) bool {
	for i := 0; i+3 < len(pts); i += 2 {
		a := m.Apply(geometry.Point{X: pts[i], Y: pts[i+1]})
		b := m.Apply(geometry.Point{X: pts[i+2], Y: pts[i+3]})
		if segmentDist(a, b, p) <= tol {
			return true
		}
	}
	return false
}

func segmentDist(a, b, p geometry.Point) float64 {
	ab := b.Sub(a)
	l2 := ab.X*ab.X + ab.Y*ab.Y
	if l2 == 0 {
		return geometry.Dist(a, p)
	}
	ap := p.Sub(a)
	t := math.Max(0, math.Min(1, (ap.X*ab.X+ap.Y*ab.Y)/l2))
	return geometry.Dist(a.Add(ab.Scale(t)), p)
}

// Painter receives compiled draw commands for one layer.
type Painter interface {
	Paint(layer LayerName, cmds []DrawCommand) error
}

// Layers is the set of mounted stage layers.
type Layers struct {
	Background *Layer
	Main       *Layer
	Preview    *Layer
	Overlay    *Layer
}

// RenderTarget is what modules draw into.
type RenderTarget interface {
	Stage() *Stage
	Layers() (*Layers, error)
}

// Stage owns the layers and the input event bus.
type Stage struct {
	painter   Painter
	layers    map[LayerName]*Layer
	mounted   bool
	listeners []listener
}

type listener struct {
	typ       EventType
	namespace string
	fn        Listener
}

// Listener handles a stage event. target is the topmost main-layer node
// under the pointer, or nil. Returning true stops propagation.
type Listener func(evt Event, target *Node) bool

// NewStage creates an unmounted stage.
func NewStage(painter Painter) *Stage {
	return &Stage{painter: painter}
}

// Mount creates the layers. Mounting twice is a no-op.
func (s *Stage) Mount() {
	if s.mounted {
		return
	}
	s.layers = make(map[LayerName]*Layer, len(LayerOrder))
	for _, name := range LayerOrder {
		s.layers[name] = &Layer{
			name:      name,
			stage:     s,
			transform: geometry.Identity(),
			follows:   name != LayerOverlay,
		}
	}
	s.mounted = true
}

// Mounted reports whether Mount has been called.
func (s *Stage) Mounted() bool {
	return s.mounted
}

// Stage returns s, so a Stage is its own RenderTarget.
func (s *Stage) Stage() *Stage {
	return s
}

// Layers returns the mounted layers or ErrNotMounted.
func (s *Stage) Layers() (*Layers, error) {
	if !s.mounted {
		return nil, ErrNotMounted
	}
	return &Layers{
		Background: s.layers[LayerBackground],
		Main:       s.layers[LayerMain],
		Preview:    s.layers[LayerPreview],
		Overlay:    s.layers[LayerOverlay],
	}, nil
}

// Layer returns one layer, or nil before mount.
func (s *Stage) Layer(name LayerName) *Layer {
	if !s.mounted {
		return nil
	}
	return s.layers[name]
}

// SetViewportMatrix applies m to every layer that follows the viewport.
func (s *Stage) SetViewportMatrix(m geometry.Matrix2D) {
	for _, l := range s.layers {
		if l.follows {
			l.transform = m
		}
	}
}

// Draw paints one layer immediately.
func (s *Stage) Draw(name LayerName) error {
	l := s.Layer(name)
	if l == nil {
		return fmt.Errorf("draw %s: %w", name, ErrNotMounted)
	}
	return l.Draw()
}

// On binds fn to events of typ under namespace.
func (s *Stage) On(typ EventType, namespace string, fn Listener) {
	s.listeners = append(s.listeners, listener{typ: typ, namespace: namespace, fn: fn})
}

// Off removes every listener bound under namespace.
func (s *Stage) Off(namespace string) {
	s.listeners = slices.DeleteFunc(s.listeners, func(l listener) bool { return l.namespace == namespace })
}

// ListenerCount returns the number of listeners bound under namespace.
func (s *Stage) ListenerCount(namespace string) int {
	n := 0
	for _, l := range s.listeners {
		if l.namespace == namespace {
			n++
		}
	}
	return n
}

// Emit delivers evt to listeners of its type in binding order and reports
// whether one of them handled it.
func (s *Stage) Emit(evt Event) bool {
	var target *Node
	if main := s.Layer(LayerMain); main != nil {
		target = main.HitTest(evt.Screen)
	}
	for _, l := range slices.Clone(s.listeners) {
		if l.typ != evt.Type {
			continue
		}
		if l.fn(evt, target) {
			return true
		}
	}
	return false
}
