package modules

import (
	"fmt"

	"github.com/inamate/canvas/internal/document"
	"github.com/inamate/canvas/internal/geometry"
	"github.com/inamate/canvas/internal/render"
)

// Image renders image elements. Decoding is left to the painter, which
// looks the asset up by id; an element without an asset shows a placeholder.
type Image struct {
	elementSync
}

func NewImage() *Image {
	m := &Image{}
	m.elementSync = newElementSync("image", document.KindImage, m.draw)
	return m
}

func (m *Image) draw(el document.Element, w, h float64) ([]*render.Node, error) {
	img, ok := el.(document.Image)
	if !ok {
		return nil, fmt.Errorf("image: unexpected %T", el)
	}
	if img.AssetID == "" {
		placeholder := bodyNode(img.ID, m.name, render.RectPath(w, h), document.Style{
			Fill:        "#eeeeee",
			Stroke:      "#bbbbbb",
			StrokeWidth: 1,
		})
		cross := render.NewNode(img.ID+":cross", m.name, render.NodePolyline)
		cross.ElementID = img.ID
		cross.Points = []float64{0, 0, w, h}
		cross.Stroke = "#bbbbbb"
		cross.StrokeWidth = 1
		return []*render.Node{placeholder, cross}, nil
	}

	n := render.NewNode(img.ID+":image", m.name, render.NodeImage)
	n.ElementID = img.ID
	n.AssetID = img.AssetID
	nw, nh := img.NaturalWidth, img.NaturalHeight
	if nw > 0 && nh > 0 {
		// Draw at natural size, scaled into the element box.
		n.BoxWidth, n.BoxHeight = nw, nh
		n.Transform = geometry.Scale(w/nw, h/nh)
	} else {
		n.BoxWidth, n.BoxHeight = w, h
	}
	return []*render.Node{n}, nil
}
