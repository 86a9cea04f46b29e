package modules

import (
	"fmt"
	"strconv"

	"github.com/inamate/canvas/internal/document"
	"github.com/inamate/canvas/internal/geometry"
	"github.com/inamate/canvas/internal/render"
)

// Table renders a rows×cols grid with cell text.
type Table struct {
	elementSync
}

func NewTable() *Table {
	m := &Table{}
	m.elementSync = newElementSync("table", document.KindTable, m.draw)
	return m
}

func (m *Table) draw(el document.Element, w, h float64) ([]*render.Node, error) {
	t, ok := el.(document.Table)
	if !ok {
		return nil, fmt.Errorf("table: unexpected %T", el)
	}
	if t.Rows < 1 || t.Cols < 1 {
		return nil, fmt.Errorf("table %s: invalid grid %dx%d", t.ID, t.Rows, t.Cols)
	}

	children := []*render.Node{bodyNode(t.ID, m.name, render.RectPath(w, h), t.Style)}
	cw, ch := w/float64(t.Cols), h/float64(t.Rows)

	stroke := t.Style.Stroke
	if stroke == "" {
		stroke = "#333333"
	}
	rule := func(id string, pts ...float64) *render.Node {
		n := render.NewNode(id, m.name, render.NodePolyline)
		n.ElementID = t.ID
		n.Points = pts
		n.Stroke = stroke
		n.StrokeWidth = 1
		return n
	}
	for r := 1; r < t.Rows; r++ {
		y := ch * float64(r)
		children = append(children, rule(t.ID+":row:"+strconv.Itoa(r), 0, y, w, y))
	}
	for c := 1; c < t.Cols; c++ {
		x := cw * float64(c)
		children = append(children, rule(t.ID+":col:"+strconv.Itoa(c), x, 0, x, h))
	}

	fontSize := min(defaultFontSize, ch*0.6)
	for r := 0; r < t.Rows; r++ {
		for c := 0; c < t.Cols; c++ {
			text := t.Cell(r, c)
			if text == "" {
				continue
			}
			cell := render.NewNode(fmt.Sprintf("%s:cell:%d:%d", t.ID, r, c), m.name, render.NodeText)
			cell.ElementID = t.ID
			cell.Text = text
			cell.FontSize = fontSize
			cell.BoxWidth = cw
			cell.BoxHeight = ch
			cell.Fill = "#222222"
			cell.Transform = geometry.Translate(cw*float64(c), ch*float64(r))
			children = append(children, cell)
		}
	}
	return children, nil
}
