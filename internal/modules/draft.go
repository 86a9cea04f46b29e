package modules

import (
	"context"
	"errors"
	"log/slog"

	"github.com/inamate/canvas/internal/document"
	"github.com/inamate/canvas/internal/geometry"
	"github.com/inamate/canvas/internal/ports"
	"github.com/inamate/canvas/internal/render"
	"github.com/inamate/canvas/internal/routing"
	"github.com/inamate/canvas/internal/store"
)

const snapIndicatorSize = 12.0

// Draft owns connector drags: press on a port handle, drag, release on an
// element. The in-progress connector is previewed on the preview layer
// and the snap target is marked on the overlay.
type Draft struct {
	env       *render.Env
	log       *slog.Logger
	selection *Selection
	preview   *render.Node
	indicator *render.Node
}

// NewDraft creates the draft module. Port handles are looked up on
// selection's overlay nodes.
func NewDraft(selection *Selection) *Draft {
	return &Draft{selection: selection}
}

func (m *Draft) Name() string { return "draft" }

func (m *Draft) Init(ctx context.Context, env *render.Env) error {
	m.env = env
	m.log = env.Log.With("module", m.Name())
	return nil
}

// Preview returns the preview node, or nil when no draft is shown.
func (m *Draft) Preview() *render.Node {
	return m.preview
}

func (m *Draft) Sync(snap *document.Snapshot) error {
	layers, err := m.env.Target.Layers()
	if errors.Is(err, render.ErrNotMounted) {
		return nil
	}
	if err != nil {
		return err
	}

	d := snap.Draft
	if d == nil {
		m.clear()
		return nil
	}
	src, ok := snap.Elements[d.From.ElementID]
	if !ok {
		m.clear()
		return nil
	}

	a := routing.ResolveAnchor(src, d.From)
	b := routing.Anchor{Point: d.Pointer}
	var target document.Element
	if d.SnapTarget != nil {
		if el, ok := snap.Elements[d.SnapTarget.ElementID]; ok {
			target = el
			b = routing.ResolveAnchor(el, *d.SnapTarget)
		}
	}

	if m.preview == nil {
		m.preview = render.NewNode("draft", m.Name(), render.NodePolyline)
		m.preview.Stroke = "#1e88e5"
		m.preview.StrokeWidth = 2
		m.preview.Dash = []float64{6, 4}
		layers.Preview.Add(m.preview)
	}
	m.preview.Points = m.router().Route(document.RoutingOrthogonal, a, b)
	m.preview.Bounds = geometry.BoundingBox(m.preview.Points)
	scheduleDraw(m.env, render.LayerPreview)

	if target == nil {
		m.removeIndicator()
		return nil
	}
	if m.indicator == nil {
		m.indicator = render.NewNode("draft:snap", m.Name(), render.NodePath)
		m.indicator.Path = render.EllipsePath(snapIndicatorSize, snapIndicatorSize)
		m.indicator.Stroke = "#1e88e5"
		m.indicator.StrokeWidth = 2
		layers.Overlay.Add(m.indicator)
	}
	p := m.env.Viewport.WorldToScreen(b.Point)
	m.indicator.ElementID = target.Header().ID
	m.indicator.Transform = geometry.Translate(p.X-snapIndicatorSize/2, p.Y-snapIndicatorSize/2)
	scheduleDraw(m.env, render.LayerOverlay)
	return nil
}

func (m *Draft) router() *routing.Router {
	if m.env.Router != nil {
		return m.env.Router
	}
	return routing.NewRouter(routing.DefaultOptions(), m.log)
}

// clear removes the preview and indicator nodes.
func (m *Draft) clear() {
	if m.preview != nil {
		m.preview.Destroy()
		m.preview = nil
		scheduleDraw(m.env, render.LayerPreview)
	}
	m.removeIndicator()
}

func (m *Draft) removeIndicator() {
	if m.indicator != nil {
		m.indicator.Destroy()
		m.indicator = nil
		scheduleDraw(m.env, render.LayerOverlay)
	}
}

func (m *Draft) OnEvent(evt render.Event, _ *document.Snapshot) bool {
	snap := m.env.Store.Snapshot()
	switch evt.Type {
	case render.EventPointerDown:
		if evt.Button != 0 || m.selection == nil {
			return false
		}
		from, ok := m.selection.PortHandleAt(evt.Screen)
		if !ok {
			return false
		}
		if err := m.env.Store.StartEdgeDraft(from, evt.World); err != nil {
			m.log.Warn("start connector", "error", err)
			return false
		}
		return true

	case render.EventPointerMove:
		if snap.Draft == nil {
			return false
		}
		if err := m.env.Store.UpdateEdgeDraftPointer(evt.World); err != nil {
			m.log.Warn("update connector", "error", err)
		}
		if err := m.env.Store.UpdateEdgeDraftSnap(m.snapTarget(snap, evt)); err != nil {
			m.log.Warn("update connector snap", "error", err)
		}
		return true

	case render.EventPointerUp:
		if snap.Draft == nil {
			return false
		}
		if t := snap.Draft.SnapTarget; t != nil {
			if _, err := m.env.Store.CommitEdgeDraftTo(*t); err != nil {
				if errors.Is(err, store.ErrSelfConnection) {
					m.log.Info("connector rejected", "error", err)
				} else {
					m.log.Warn("commit connector", "error", err)
				}
			}
			return true
		}
		m.env.Store.CancelEdgeDraft()
		return true

	case render.EventKeyDown:
		if evt.Key == "Escape" && snap.Draft != nil {
			m.env.Store.CancelEdgeDraft()
			return true
		}
	}
	return false
}

// snapTarget picks the port nearest the pointer on the element under it.
func (m *Draft) snapTarget(snap *document.Snapshot, evt render.Event) *document.Endpoint {
	layers, err := m.env.Target.Layers()
	if err != nil {
		return nil
	}
	hit := layers.Main.HitTest(evt.Screen)
	if hit == nil || hit.ElementID == "" {
		return nil
	}
	el, ok := snap.Elements[hit.ElementID]
	if !ok {
		return nil
	}
	kind, _ := ports.Nearest(el, evt.World)
	return &document.Endpoint{ElementID: hit.ElementID, Port: kind}
}

// Cancel drops any in-progress connector, e.g. on tool switch.
func (m *Draft) Cancel() {
	if m.env != nil {
		m.env.Store.CancelEdgeDraft()
	}
}

func (m *Draft) Destroy() {
	if m.env != nil {
		m.clear()
	}
}
