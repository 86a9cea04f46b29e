package modules

import (
	"context"
	"log/slog"

	"github.com/inamate/canvas/internal/document"
	"github.com/inamate/canvas/internal/geometry"
	"github.com/inamate/canvas/internal/render"
)

// Viewport applies the snapshot's pan and zoom to the render viewport and
// the panning layers. It is registered first so every later module sees
// the new transform in the same pass.
type Viewport struct {
	env     *render.Env
	last    document.Viewport
	applied bool
}

func NewViewport() *Viewport {
	return &Viewport{}
}

func (m *Viewport) Name() string { return "viewport" }

func (m *Viewport) Init(ctx context.Context, env *render.Env) error {
	m.env = env
	return nil
}

func (m *Viewport) Sync(snap *document.Snapshot) error {
	v := snap.Viewport
	if m.applied && v == m.last {
		return nil
	}
	m.env.Viewport.Set(v)
	stage := m.env.Target.Stage()
	if !stage.Mounted() {
		return nil
	}
	stage.SetViewportMatrix(m.env.Viewport.Matrix())
	m.last, m.applied = v, true
	for _, name := range render.LayerOrder {
		scheduleDraw(m.env, name)
	}
	return nil
}

func (m *Viewport) Destroy() {
	m.applied = false
}

// ViewportInput turns wheel, pan and resize input into viewport changes.
// It is registered last so tools can claim pointer gestures first.
type ViewportInput struct {
	env     *render.Env
	log     *slog.Logger
	panning bool
	last    geometry.Point
}

func NewViewportInput() *ViewportInput {
	return &ViewportInput{}
}

func (m *ViewportInput) Name() string { return "viewport-input" }

func (m *ViewportInput) Init(ctx context.Context, env *render.Env) error {
	m.env = env
	m.log = env.Log.With("module", m.Name())
	env.Viewport.OnResize(func(w, h float64) { m.commit() })
	return nil
}

func (m *ViewportInput) Sync(*document.Snapshot) error { return nil }

func (m *ViewportInput) Destroy() {
	if m.env != nil {
		m.env.Viewport.OnResize(nil)
	}
	m.panning = false
}

func (m *ViewportInput) OnEvent(evt render.Event, snap *document.Snapshot) bool {
	switch evt.Type {
	case render.EventWheel:
		switch {
		case evt.DeltaY < 0:
			m.env.Viewport.ZoomStep(evt.Screen, 1)
		case evt.DeltaY > 0:
			m.env.Viewport.ZoomStep(evt.Screen, -1)
		default:
			return false
		}
		m.commit()
		return true

	case render.EventPointerDown:
		// Primary drags reach here only on empty canvas.
		m.panning = true
		m.last = evt.Screen
		return true
	case render.EventPointerMove:
		if !m.panning {
			return false
		}
		m.env.Viewport.PanBy(evt.Screen.X-m.last.X, evt.Screen.Y-m.last.Y)
		m.last = evt.Screen
		m.commit()
		return true
	case render.EventPointerUp:
		if !m.panning {
			return false
		}
		m.panning = false
		return true

	case render.EventResize:
		m.env.Viewport.RequestResize(evt.Width, evt.Height)
		return true
	}
	return false
}

func (m *ViewportInput) commit() {
	if err := m.env.Store.SetViewport(m.env.Viewport.State()); err != nil {
		m.log.Warn("set viewport", "error", err)
	}
}
