package modules

import (
	"context"
	"errors"
	"math"
	"strconv"

	"github.com/inamate/canvas/internal/document"
	"github.com/inamate/canvas/internal/geometry"
	"github.com/inamate/canvas/internal/render"
)

const (
	gridSpacing   = 20.0
	gridMinScreen = 8.0 // minimum on-screen gap between lines
	gridMaxLines  = 400
)

// Grid draws background grid lines over the visible world area.
type Grid struct {
	env  *render.Env
	node *render.Node
	last geometry.Rect
}

func NewGrid() *Grid {
	return &Grid{}
}

func (m *Grid) Name() string { return "grid" }

func (m *Grid) Init(ctx context.Context, env *render.Env) error {
	m.env = env
	return nil
}

func (m *Grid) Sync(snap *document.Snapshot) error {
	layers, err := m.env.Target.Layers()
	if errors.Is(err, render.ErrNotMounted) {
		return nil
	}
	if err != nil {
		return err
	}
	if m.node == nil {
		m.node = render.NewNode("grid", m.Name(), render.NodeGroup)
		layers.Background.Add(m.node)
	}

	visible := m.env.Viewport.VisibleWorldRect()
	if visible == m.last && m.node.Children != nil {
		return nil
	}
	m.last = visible
	m.node.Children = GridLines(visible, m.env.Viewport.Scale())
	scheduleDraw(m.env, render.LayerBackground)
	return nil
}

// GridLines builds the lines covering r, widening the spacing by 5× until
// lines are at least gridMinScreen pixels apart.
func GridLines(r geometry.Rect, scale float64) []*render.Node {
	if r.IsEmpty() || !(scale > 0) {
		return []*render.Node{}
	}
	spacing := gridSpacing
	for spacing*scale < gridMinScreen {
		spacing *= 5
	}

	var out []*render.Node
	line := func(id string, pts ...float64) {
		n := render.NewNode(id, "grid", render.NodePolyline)
		n.Points = pts
		n.Stroke = "#e5e5e5"
		n.StrokeWidth = 1 / scale
		out = append(out, n)
	}
	for x := math.Floor(r.X/spacing) * spacing; x <= r.X+r.Width && len(out) < gridMaxLines; x += spacing {
		line("grid:x:"+strconv.FormatFloat(x, 'f', -1, 64), x, r.Y, x, r.Y+r.Height)
	}
	for y := math.Floor(r.Y/spacing) * spacing; y <= r.Y+r.Height && len(out) < gridMaxLines; y += spacing {
		line("grid:y:"+strconv.FormatFloat(y, 'f', -1, 64), r.X, y, r.X+r.Width, y)
	}
	if out == nil {
		out = []*render.Node{}
	}
	return out
}

func (m *Grid) Destroy() {
	if m.node != nil {
		m.node.Destroy()
		m.node = nil
	}
	m.last = geometry.Rect{}
}
