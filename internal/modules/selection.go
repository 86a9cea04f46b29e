package modules

import (
	"context"
	"errors"

	"github.com/inamate/canvas/internal/document"
	"github.com/inamate/canvas/internal/geometry"
	"github.com/inamate/canvas/internal/ports"
	"github.com/inamate/canvas/internal/render"
)

// HandleSize is the on-screen size of a port handle.
const HandleSize = 8.0

// Selection draws a box and the compass port handles around every selected
// element on the overlay layer, in screen space. It must be registered
// after the element modules.
type Selection struct {
	env   *render.Env
	nodes *render.NodeMap
}

func NewSelection() *Selection {
	return &Selection{nodes: render.NewNodeMap()}
}

func (m *Selection) Name() string { return "selection" }

func (m *Selection) Nodes() *render.NodeMap { return m.nodes }

func (m *Selection) Init(ctx context.Context, env *render.Env) error {
	m.env = env
	return nil
}

func (m *Selection) Sync(snap *document.Snapshot) error {
	layers, err := m.env.Target.Layers()
	if errors.Is(err, render.ErrNotMounted) {
		return nil
	}
	if err != nil {
		return err
	}

	_, err = m.nodes.Reconcile(snap.SelectedIDs(), render.Hooks{
		Create: func(id string) (*render.Node, error) {
			n := render.NewNode("sel:"+id, m.Name(), render.NodeGroup)
			n.ElementID = id
			m.apply(snap.Elements[id], n)
			layers.Overlay.Add(n)
			return n, nil
		},
		Update: func(id string, n *render.Node) error {
			m.apply(snap.Elements[id], n)
			return nil
		},
	})
	scheduleDraw(m.env, render.LayerOverlay)
	return err
}

func (m *Selection) apply(el document.Element, n *render.Node) {
	vp := m.env.Viewport
	frame := el.Header().Frame()

	var outline []float64
	for _, c := range []geometry.Point{{X: -0.5, Y: -0.5}, {X: 0.5, Y: -0.5}, {X: 0.5, Y: 0.5}, {X: -0.5, Y: 0.5}} {
		p := vp.WorldToScreen(frame.Apply(c))
		outline = append(outline, p.X, p.Y)
	}
	box := render.NewNode(n.ID+":box", m.Name(), render.NodePolyline)
	box.ElementID = n.ElementID
	box.Points = outline
	box.Closed = true
	box.Stroke = "#1e88e5"
	box.StrokeWidth = 1
	box.Dash = []float64{4, 2}

	children := []*render.Node{box}
	for _, kind := range document.CompassPorts {
		p := vp.WorldToScreen(ports.WorldPosition(el, kind))
		h := render.NewNode(n.ID+":port:"+string(kind), m.Name(), render.NodePath)
		h.ElementID = n.ElementID
		h.Tag = string(kind)
		h.Path = render.RectPath(HandleSize, HandleSize)
		h.Transform = geometry.Translate(p.X-HandleSize/2, p.Y-HandleSize/2)
		h.Bounds = geometry.Rect{X: p.X - HandleSize/2, Y: p.Y - HandleSize/2, Width: HandleSize, Height: HandleSize}
		h.Fill = "#ffffff"
		h.Stroke = "#1e88e5"
		h.StrokeWidth = 1
		h.Listening = true
		children = append(children, h)
	}
	n.Bounds = geometry.BoundingBox(outline)
	n.Children = children
}

// PortHandleAt returns the element and port of the handle under a screen
// point.
func (m *Selection) PortHandleAt(screen geometry.Point) (document.Endpoint, bool) {
	layers, err := m.env.Target.Layers()
	if err != nil {
		return document.Endpoint{}, false
	}
	hit := layers.Overlay.HitTest(screen)
	if hit == nil || hit.Owner != m.Name() || hit.Tag == "" {
		return document.Endpoint{}, false
	}
	return document.Endpoint{ElementID: hit.ElementID, Port: document.PortKind(hit.Tag)}, true
}

func (m *Selection) Destroy() {
	m.nodes.Clear(nil)
	if m.env != nil {
		scheduleDraw(m.env, render.LayerOverlay)
	}
}
