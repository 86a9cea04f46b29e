package modules

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/inamate/canvas/internal/document"
	"github.com/inamate/canvas/internal/geometry"
	"github.com/inamate/canvas/internal/render"
	"github.com/inamate/canvas/internal/routing"
)

const arrowSize = 10

// Connectors renders committed edges on the main layer from their stored
// points.
type Connectors struct {
	env   *render.Env
	log   *slog.Logger
	nodes *render.NodeMap
}

func NewConnectors() *Connectors {
	return &Connectors{nodes: render.NewNodeMap()}
}

func (m *Connectors) Name() string { return "connectors" }

func (m *Connectors) Nodes() *render.NodeMap { return m.nodes }

func (m *Connectors) Init(ctx context.Context, env *render.Env) error {
	m.env = env
	m.log = env.Log.With("module", m.Name())
	return nil
}

func (m *Connectors) Sync(snap *document.Snapshot) error {
	layers, err := m.env.Target.Layers()
	if errors.Is(err, render.ErrNotMounted) {
		return nil
	}
	if err != nil {
		return err
	}

	_, err = m.nodes.Reconcile(snap.EdgeIDs, render.Hooks{
		Create: func(id string) (*render.Node, error) {
			n := render.NewNode(id, m.Name(), render.NodePolyline)
			n.Listening = true
			if err := m.apply(snap, snap.Edges[id], n); err != nil {
				return nil, err
			}
			layers.Main.Add(n)
			return n, nil
		},
		Update: func(id string, n *render.Node) error {
			return m.apply(snap, snap.Edges[id], n)
		},
	})
	scheduleDraw(m.env, render.LayerMain)
	return err
}

// points returns the edge's stored polyline, routing it on the fly if the
// store has not done so yet.
func (m *Connectors) points(snap *document.Snapshot, edge document.Edge) ([]float64, error) {
	if len(edge.Points) >= 4 {
		return edge.Points, nil
	}
	router := m.env.Router
	if router == nil {
		router = routing.NewRouter(routing.DefaultOptions(), m.log)
	}
	return router.RouteEdge(edge, snap.Elements[edge.Source.ElementID], snap.Elements[edge.Target.ElementID])
}

func (m *Connectors) apply(snap *document.Snapshot, edge document.Edge, n *render.Node) error {
	pts, err := m.points(snap, edge)
	if err != nil {
		return err
	}
	if len(pts)%2 != 0 || len(pts) < 4 {
		return fmt.Errorf("edge %s: malformed points %v", edge.ID, pts)
	}

	stroke := edge.Style.Stroke
	if stroke == "" {
		stroke = "#333333"
	}
	n.Points = pts
	n.Curved = edge.Mode == document.RoutingCurved && len(pts) == 6
	n.Stroke = stroke
	n.StrokeWidth = orDefault(edge.Style.StrokeWidth, 1)
	n.Dash = edge.Style.Dash
	n.Bounds = geometry.BoundingBox(pts)

	var children []*render.Node
	if edge.Style.Arrowhead {
		head := render.NewNode(edge.ID+":arrow", m.Name(), render.NodePath)
		head.Path = render.ArrowHead(arrowTail(pts, n.Curved), arrowSize)
		head.Fill = stroke
		children = append(children, head)
	}
	if edge.Label != "" {
		mid := labelAnchor(pts)
		label := render.NewNode(edge.ID+":label", m.Name(), render.NodeText)
		label.Text = edge.Label
		label.FontSize = 12
		label.Fill = "#222222"
		label.Transform = geometry.Translate(mid.X, mid.Y)
		children = append(children, label)
	}
	n.Children = children
	return nil
}

// arrowTail returns the last segment the arrowhead should follow. For a
// quadratic curve that is the tangent at the end: control point to end.
func arrowTail(pts []float64, curved bool) []float64 {
	if curved {
		return pts[2:]
	}
	return pts[len(pts)-4:]
}

// labelAnchor is the midpoint of the middle segment.
func labelAnchor(pts []float64) geometry.Point {
	segs := len(pts)/2 - 1
	i := (segs / 2) * 2
	return geometry.Point{X: (pts[i] + pts[i+2]) / 2, Y: (pts[i+1] + pts[i+3]) / 2}
}

func (m *Connectors) Destroy() {
	m.nodes.Clear(nil)
	if m.env != nil {
		scheduleDraw(m.env, render.LayerMain)
	}
}
