package modules

import (
	"fmt"
	"math"

	"github.com/inamate/canvas/internal/document"
	"github.com/inamate/canvas/internal/geometry"
	"github.com/inamate/canvas/internal/render"
)

// Sticky renders sticky notes: a filled square with a folded corner.
type Sticky struct {
	elementSync
}

func NewSticky() *Sticky {
	m := &Sticky{}
	m.elementSync = newElementSync("sticky", document.KindSticky, m.draw)
	return m
}

func (m *Sticky) draw(el document.Element, w, h float64) ([]*render.Node, error) {
	note, ok := el.(document.Sticky)
	if !ok {
		return nil, fmt.Errorf("sticky: unexpected %T", el)
	}
	style := note.Style
	if style.Fill == "" {
		style.Fill = "#fdd835"
	}

	fold := math.Min(w, h) * 0.12
	body := bodyNode(note.ID, m.name, []render.PathCommand{
		{Op: "M", Args: []float64{0, 0}},
		{Op: "L", Args: []float64{w, 0}},
		{Op: "L", Args: []float64{w, h - fold}},
		{Op: "L", Args: []float64{w - fold, h}},
		{Op: "L", Args: []float64{0, h}},
		{Op: "Z"},
	}, style)

	corner := render.NewNode(note.ID+":fold", m.name, render.NodePath)
	corner.ElementID = note.ID
	corner.Path = []render.PathCommand{
		{Op: "M", Args: []float64{w, h - fold}},
		{Op: "L", Args: []float64{w - fold, h - fold}},
		{Op: "L", Args: []float64{w - fold, h}},
		{Op: "Z"},
	}
	corner.Fill = "#00000022"

	pad := 8.0
	label := labelNode(note.ID, m.name, note.Text, orDefault(note.FontSize, defaultFontSize), math.Max(1, w-2*pad), math.Max(1, h-2*pad))
	label.Transform = geometry.Translate(pad, pad)
	return []*render.Node{body, corner, label}, nil
}
