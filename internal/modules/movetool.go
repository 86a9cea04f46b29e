package modules

import (
	"context"
	"log/slog"

	"github.com/inamate/canvas/internal/document"
	"github.com/inamate/canvas/internal/geometry"
	"github.com/inamate/canvas/internal/render"
)

// MoveTool selects elements on click and drags the selection.
type MoveTool struct {
	env      *render.Env
	log      *slog.Logger
	dragging bool
	last     geometry.Point // world
}

func NewMoveTool() *MoveTool {
	return &MoveTool{}
}

func (m *MoveTool) Name() string { return "move-tool" }

func (m *MoveTool) Init(ctx context.Context, env *render.Env) error {
	m.env = env
	m.log = env.Log.With("module", m.Name())
	return nil
}

func (m *MoveTool) Sync(*document.Snapshot) error { return nil }

func (m *MoveTool) Destroy() {
	m.dragging = false
}

func (m *MoveTool) OnEvent(evt render.Event, _ *document.Snapshot) bool {
	st := m.env.Store
	switch evt.Type {
	case render.EventPointerDown:
		if evt.Button != 0 {
			return false
		}
		id := m.elementAt(evt.Screen)
		if id == "" {
			if !evt.Shift {
				m.check(st.SelectElement("", false))
			}
			return false
		}
		switch {
		case evt.Shift:
			m.check(st.SelectElement(id, true))
		case !st.Snapshot().Selected[id]:
			m.check(st.SelectElement(id, false))
		}
		m.dragging = st.Snapshot().Selected[id]
		m.last = evt.World
		return true

	case render.EventPointerMove:
		if !m.dragging {
			return false
		}
		dx, dy := evt.World.X-m.last.X, evt.World.Y-m.last.Y
		m.last = evt.World
		m.check(st.MoveElements(st.Snapshot().SelectedIDs(), dx, dy))
		return true

	case render.EventPointerUp:
		if !m.dragging {
			return false
		}
		m.dragging = false
		return true

	case render.EventKeyDown:
		if evt.Key != "Delete" && evt.Key != "Backspace" {
			return false
		}
		ids := st.Snapshot().SelectedIDs()
		if len(ids) == 0 {
			return false
		}
		for _, id := range ids {
			m.check(st.DeleteElement(id))
		}
		return true
	}
	return false
}

func (m *MoveTool) elementAt(screen geometry.Point) string {
	layers, err := m.env.Target.Layers()
	if err != nil {
		return ""
	}
	if hit := layers.Main.HitTest(screen); hit != nil {
		return hit.ElementID
	}
	return ""
}

func (m *MoveTool) check(err error) {
	if err != nil {
		m.log.Warn("move tool", "error", err)
	}
}
