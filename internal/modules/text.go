package modules

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/inamate/canvas/internal/document"
	"github.com/inamate/canvas/internal/geometry"
	"github.com/inamate/canvas/internal/render"
)

var (
	ErrNotEditable = errors.New("element has no editable text")
	ErrNoEdit      = errors.New("no text edit in progress")
)

// growEpsilon ignores sub-pixel growth so rounding cannot cause a
// write-back loop.
const growEpsilon = 0.5

type editSession struct {
	id       string
	original string
	current  string
}

// Text renders text blocks and owns the text editing session. Circular
// text grows to fit its content; the new size is written back to the store.
type Text struct {
	elementSync
	last          *document.Snapshot
	edit          *editSession
	growScheduled bool
}

func NewText() *Text {
	m := &Text{}
	m.elementSync = newElementSync("text", document.KindText, m.draw)
	return m
}

func (m *Text) Init(ctx context.Context, env *render.Env) error {
	if err := m.elementSync.Init(ctx, env); err != nil {
		return err
	}
	env.Target.Stage().On(render.EventDoubleClick, m.name, func(evt render.Event, target *render.Node) bool {
		if target == nil || target.ElementID == "" {
			return false
		}
		return m.BeginEdit(target.ElementID) == nil
	})
	return nil
}

func (m *Text) Sync(snap *document.Snapshot) error {
	m.last = snap
	if m.edit != nil {
		if _, ok := snap.Elements[m.edit.id]; !ok {
			m.edit = nil
		}
	}
	err := m.elementSync.Sync(snap)

	grown := make(map[string]bool)
	for _, el := range snap.OfKind(document.KindText) {
		t := el.(document.Text)
		if !t.Circular || grown[t.ID] {
			continue
		}
		grown[t.ID] = true
		m.grow(t)
	}
	return err
}

func (m *Text) Destroy() {
	if m.env != nil {
		m.env.Target.Stage().Off(m.name)
	}
	m.edit = nil
	m.elementSync.Destroy()
}

// OnEvent finishes an active edit on Enter and cancels it on Escape. While
// an edit is open every key belongs to it, so Backspace or Space never
// reach the canvas tools.
func (m *Text) OnEvent(evt render.Event, snap *document.Snapshot) bool {
	if m.edit == nil {
		return false
	}
	switch evt.Type {
	case render.EventKeyDown:
		switch {
		case evt.Key == "Escape":
			m.CancelEdit()
		case evt.Key == "Enter" && !evt.Shift:
			if err := m.CommitEdit(); err != nil {
				m.log.Warn("commit text edit", "error", err)
			}
		}
		return true
	case render.EventKeyUp:
		return true
	}
	return false
}

// BeginEdit starts editing the text of id. An edit already in progress is
// committed first.
func (m *Text) BeginEdit(id string) error {
	el, ok := m.env.Store.Snapshot().Element(id)
	if !ok {
		return fmt.Errorf("edit %s: %w", id, ErrNotEditable)
	}
	text, ok := document.TextOf(el)
	if !ok {
		return fmt.Errorf("edit %s (%s): %w", id, el.Kind(), ErrNotEditable)
	}
	if m.edit != nil {
		if err := m.CommitEdit(); err != nil {
			m.log.Warn("commit previous text edit", "error", err)
		}
	}
	m.edit = &editSession{id: id, original: text, current: text}
	return nil
}

// Editing returns the element and text of the active edit.
func (m *Text) Editing() (id, text string, ok bool) {
	if m.edit == nil {
		return "", "", false
	}
	return m.edit.id, m.edit.current, true
}

// UpdateEdit replaces the in-progress text. The node shows it right away;
// circular growth is checked once on the next frame.
func (m *Text) UpdateEdit(text string) error {
	if m.edit == nil {
		return ErrNoEdit
	}
	m.edit.current = text
	m.rerender(m.edit.id)

	if !m.growScheduled && m.env.Scheduler != nil {
		m.growScheduled = true
		m.env.Scheduler.RequestFrame(func() {
			m.growScheduled = false
			if m.edit == nil {
				return
			}
			if el, ok := m.env.Store.Snapshot().Element(m.edit.id); ok {
				if t, ok := el.(document.Text); ok && t.Circular {
					m.grow(t)
				}
			}
		})
	}
	return nil
}

// CommitEdit writes the edited text to the store and ends the session.
func (m *Text) CommitEdit() error {
	if m.edit == nil {
		return ErrNoEdit
	}
	s := m.edit
	m.edit = nil
	if s.current == s.original {
		m.rerender(s.id)
		return nil
	}
	return m.env.Store.UpdateElement(s.id, document.SetText(s.current))
}

// CancelEdit drops the session and restores the stored text.
func (m *Text) CancelEdit() {
	if m.edit == nil {
		return
	}
	id := m.edit.id
	m.edit = nil
	m.rerender(id)
}

func (m *Text) rerender(id string) {
	n, ok := m.nodes.Get(id)
	if !ok || m.last == nil {
		return
	}
	el, ok := m.last.Elements[id]
	if !ok {
		return
	}
	if err := m.apply(el, n); err != nil {
		m.log.Error("rerender text", "element", id, "error", err)
		return
	}
	scheduleDraw(m.env, render.LayerMain)
}

func (m *Text) displayText(id, stored string) string {
	if m.edit != nil && m.edit.id == id {
		return m.edit.current
	}
	return stored
}

func (m *Text) metrics() geometry.FontMetrics {
	if m.env.Metrics != nil {
		return m.env.Metrics
	}
	return geometry.DefaultApproxMetrics
}

// FitDiameter is the smallest circle diameter that holds t's displayed
// text with its padding and stroke.
func (m *Text) FitDiameter(t document.Text) float64 {
	text := m.displayText(t.ID, t.Text)
	return 2 * geometry.FitCircleRadius(m.metrics(), text, orDefault(t.FontSize, defaultFontSize), t.Padding, t.Style.StrokeWidth)
}

// grow enlarges a circular text element about its centre when its content
// no longer fits. It never shrinks.
func (m *Text) grow(t document.Text) {
	d := m.FitDiameter(t)
	if d <= math.Min(t.Width, t.Height)+growEpsilon {
		return
	}
	w, h := math.Max(t.Width, d), math.Max(t.Height, d)
	c := t.Center()
	x, y := c.X-w/2, c.Y-h/2
	patch := document.Patch{X: &x, Y: &y, Width: &w, Height: &h}
	if err := m.env.Store.UpdateElement(t.ID, patch); err != nil {
		m.log.Error("auto-grow", "element", t.ID, "error", err)
		return
	}
	m.log.Debug("auto-grow", "element", t.ID, "diameter", d)
}

func (m *Text) draw(el document.Element, w, h float64) ([]*render.Node, error) {
	t, ok := el.(document.Text)
	if !ok {
		return nil, fmt.Errorf("text: unexpected %T", el)
	}
	text := m.displayText(t.ID, t.Text)
	fontSize := orDefault(t.FontSize, defaultFontSize)

	var children []*render.Node
	if t.Circular {
		children = append(children, bodyNode(t.ID, m.name, render.EllipsePath(w, h), t.Style))
		// Text lives in the square inscribed in the circle.
		side := math.Min(w, h) / math.Sqrt2
		label := labelNode(t.ID, m.name, text, fontSize, side, side)
		label.Transform = geometry.Translate((w-side)/2, (h-side)/2)
		return append(children, label), nil
	}

	if t.Style.Fill != "" || t.Style.Stroke != "" {
		children = append(children, bodyNode(t.ID, m.name, render.RectPath(w, h), t.Style))
	}
	pad := max(0, min(t.Padding, w/2, h/2))
	label := labelNode(t.ID, m.name, text, fontSize, w-2*pad, h-2*pad)
	label.Transform = geometry.Translate(pad, pad)
	return append(children, label), nil
}
