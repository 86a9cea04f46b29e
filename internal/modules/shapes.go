package modules

import (
	"fmt"

	"github.com/inamate/canvas/internal/document"
	"github.com/inamate/canvas/internal/render"
)

const defaultFontSize = 16

// Shapes renders rect, ellipse, diamond and triangle elements.
type Shapes struct {
	elementSync
}

func NewShapes() *Shapes {
	m := &Shapes{}
	m.elementSync = newElementSync("shapes", document.KindShape, m.draw)
	return m
}

func (m *Shapes) draw(el document.Element, w, h float64) ([]*render.Node, error) {
	shape, ok := el.(document.Shape)
	if !ok {
		return nil, fmt.Errorf("shapes: unexpected %T", el)
	}
	var path []render.PathCommand
	switch shape.Shape {
	case document.ShapeRect:
		path = render.RectPath(w, h)
	case document.ShapeEllipse:
		path = render.EllipsePath(w, h)
	case document.ShapeDiamond:
		path = render.DiamondPath(w, h)
	case document.ShapeTriangle:
		path = render.TrianglePath(w, h)
	default:
		return nil, fmt.Errorf("shape %s: unknown shape type %q", shape.ID, shape.Shape)
	}

	children := []*render.Node{bodyNode(shape.ID, m.name, path, shape.Style)}
	if shape.Text != "" {
		children = append(children, labelNode(shape.ID, m.name, shape.Text, defaultFontSize, w, h))
	}
	return children, nil
}
