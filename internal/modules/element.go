// Package modules holds the renderer modules: one sync module per element
// kind plus the interaction modules (selection, draft, move tool, viewport).
package modules

import (
	"context"
	"errors"
	"log/slog"

	"github.com/inamate/canvas/internal/document"
	"github.com/inamate/canvas/internal/geometry"
	"github.com/inamate/canvas/internal/render"
)

// drawFunc builds the children of an element's group node in element-local
// box space: origin at the top-left, size w×h. It must not touch the node
// so that a failure leaves the previous rendering in place.
type drawFunc func(el document.Element, w, h float64) ([]*render.Node, error)

// elementSync reconciles every element of one kind into the main layer.
// Each element gets one group node positioned by the element's frame.
type elementSync struct {
	name  string
	kind  document.Kind
	draw  drawFunc
	env   *render.Env
	log   *slog.Logger
	nodes *render.NodeMap
}

func newElementSync(name string, kind document.Kind, draw drawFunc) elementSync {
	return elementSync{name: name, kind: kind, draw: draw, nodes: render.NewNodeMap()}
}

func (s *elementSync) Name() string {
	return s.name
}

func (s *elementSync) Init(ctx context.Context, env *render.Env) error {
	s.env = env
	s.log = env.Log.With("module", s.name)
	return nil
}

// Nodes exposes the module's ledger.
func (s *elementSync) Nodes() *render.NodeMap {
	return s.nodes
}

func (s *elementSync) Sync(snap *document.Snapshot) error {
	layers, err := s.env.Target.Layers()
	if errors.Is(err, render.ErrNotMounted) {
		return nil
	}
	if err != nil {
		return err
	}

	var ids []string
	for _, el := range snap.OfKind(s.kind) {
		ids = append(ids, el.Header().ID)
	}

	_, err = s.nodes.Reconcile(ids, render.Hooks{
		Create: func(id string) (*render.Node, error) {
			n := render.NewNode(id, s.name, render.NodeGroup)
			n.ElementID = id
			n.Listening = true
			if err := s.apply(snap.Elements[id], n); err != nil {
				return nil, err
			}
			layers.Main.Add(n)
			return n, nil
		},
		Update: func(id string, n *render.Node) error {
			return s.apply(snap.Elements[id], n)
		},
	})
	scheduleDraw(s.env, render.LayerMain)
	return err
}

// apply positions n on the element's rotated box and replaces its children.
func (s *elementSync) apply(el document.Element, n *render.Node) error {
	b := el.Header()
	w, h := geometry.ClampSize(b.Width, b.Height)
	children, err := s.draw(el, w, h)
	if err != nil {
		return err
	}
	n.Transform = boxTransform(b, w, h)
	n.Bounds = n.Transform.TransformRect(geometry.Rect{Width: w, Height: h})
	n.Opacity = opacity(b.Style)
	n.Children = children
	return nil
}

func (s *elementSync) Destroy() {
	s.nodes.Clear(nil)
	if s.env != nil {
		scheduleDraw(s.env, render.LayerMain)
	}
}

// boxTransform maps a w×h box with its origin at the top-left onto the
// element's rotated frame.
func boxTransform(b document.Base, w, h float64) geometry.Matrix2D {
	c := geometry.Point{X: b.X + w/2, Y: b.Y + h/2}
	return geometry.Translate(c.X, c.Y).
		Multiply(geometry.RotateDegrees(b.Rotation)).
		Multiply(geometry.Translate(-w/2, -h/2))
}

func opacity(s document.Style) float64 {
	if s.Opacity <= 0 || s.Opacity > 1 {
		return 1
	}
	return s.Opacity
}

func scheduleDraw(env *render.Env, layer render.LayerName) {
	if env.Batcher != nil {
		env.Batcher.ScheduleDraw(layer)
	}
}

func bodyNode(id, owner string, path []render.PathCommand, style document.Style) *render.Node {
	n := render.NewNode(id+":body", owner, render.NodePath)
	n.ElementID = id
	n.Path = path
	n.Fill = style.Fill
	n.Stroke = style.Stroke
	n.StrokeWidth = style.StrokeWidth
	return n
}

func labelNode(id, owner, text string, fontSize, w, h float64) *render.Node {
	n := render.NewNode(id+":label", owner, render.NodeText)
	n.ElementID = id
	n.Text = text
	n.FontSize = fontSize
	n.BoxWidth = w
	n.BoxHeight = h
	n.Fill = "#222222"
	return n
}

func orDefault(v, def float64) float64 {
	if v > 0 {
		return v
	}
	return def
}
