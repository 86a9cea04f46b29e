package document

import (
	"encoding/json"
	"fmt"
)

// ElementNode is the JSON form of an element: common fields flattened,
// kind-specific fields in Data.
type ElementNode struct {
	ID       string          `json:"id"`
	Kind     Kind            `json:"kind"`
	X        float64         `json:"x"`
	Y        float64         `json:"y"`
	Width    float64         `json:"width"`
	Height   float64         `json:"height"`
	Rotation float64         `json:"rotation"`
	Style    Style           `json:"style"`
	Data     json.RawMessage `json:"data,omitempty"`
}

type shapeData struct {
	Shape ShapeType `json:"shape"`
	Text  string    `json:"text,omitempty"`
}

type textData struct {
	Text     string  `json:"text"`
	FontSize float64 `json:"fontSize"`
	Circular bool    `json:"circular,omitempty"`
	Padding  float64 `json:"padding,omitempty"`
}

type stickyData struct {
	Text     string  `json:"text"`
	FontSize float64 `json:"fontSize"`
}

type tableData struct {
	Rows  int        `json:"rows"`
	Cols  int        `json:"cols"`
	Cells [][]string `json:"cells"`
}

type imageData struct {
	AssetID       string  `json:"assetId"`
	NaturalWidth  float64 `json:"naturalWidth"`
	NaturalHeight float64 `json:"naturalHeight"`
}

// Board is the serialized canvas: elements and edges in z-order plus the
// viewport.
type Board struct {
	Elements []ElementNode `json:"elements"`
	Edges    []Edge        `json:"edges"`
	Viewport Viewport      `json:"viewport"`
}

// Decode converts the wire form into the typed union.
func (n ElementNode) Decode() (Element, error) {
	base := Base{
		ID:       n.ID,
		X:        n.X,
		Y:        n.Y,
		Width:    n.Width,
		Height:   n.Height,
		Rotation: n.Rotation,
		Style:    n.Style,
	}
	data := n.Data
	if len(data) == 0 {
		data = json.RawMessage(`{}`)
	}

	switch n.Kind {
	case KindShape:
		var d shapeData
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("decode shape %s: %w", n.ID, err)
		}
		if d.Shape == "" {
			d.Shape = ShapeRect
		}
		return Shape{Base: base, Shape: d.Shape, Text: d.Text}, nil

	case KindText:
		var d textData
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("decode text %s: %w", n.ID, err)
		}
		return Text{Base: base, Text: d.Text, FontSize: d.FontSize, Circular: d.Circular, Padding: d.Padding}, nil

	case KindSticky:
		var d stickyData
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("decode sticky %s: %w", n.ID, err)
		}
		return Sticky{Base: base, Text: d.Text, FontSize: d.FontSize}, nil

	case KindTable:
		var d tableData
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("decode table %s: %w", n.ID, err)
		}
		return Table{Base: base, Rows: d.Rows, Cols: d.Cols, Cells: d.Cells}, nil

	case KindImage:
		var d imageData
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("decode image %s: %w", n.ID, err)
		}
		return Image{Base: base, AssetID: d.AssetID, NaturalWidth: d.NaturalWidth, NaturalHeight: d.NaturalHeight}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, n.Kind)
	}
}

// Encode converts a typed element into its wire form.
func Encode(el Element) (ElementNode, error) {
	b := el.Header()
	node := ElementNode{
		ID:       b.ID,
		Kind:     el.Kind(),
		X:        b.X,
		Y:        b.Y,
		Width:    b.Width,
		Height:   b.Height,
		Rotation: b.Rotation,
		Style:    b.Style,
	}

	var data any
	switch e := el.(type) {
	case Shape:
		data = shapeData{Shape: e.Shape, Text: e.Text}
	case Text:
		data = textData{Text: e.Text, FontSize: e.FontSize, Circular: e.Circular, Padding: e.Padding}
	case Sticky:
		data = stickyData{Text: e.Text, FontSize: e.FontSize}
	case Table:
		data = tableData{Rows: e.Rows, Cols: e.Cols, Cells: e.Cells}
	case Image:
		data = imageData{AssetID: e.AssetID, NaturalWidth: e.NaturalWidth, NaturalHeight: e.NaturalHeight}
	default:
		return ElementNode{}, fmt.Errorf("%w: %T", ErrUnknownKind, el)
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return ElementNode{}, fmt.Errorf("encode %s: %w", b.ID, err)
	}
	node.Data = raw
	return node, nil
}

// BoardFromSnapshot serializes a snapshot into a Board.
func BoardFromSnapshot(s *Snapshot) (*Board, error) {
	board := &Board{
		Elements: make([]ElementNode, 0, len(s.Order)),
		Edges:    s.EdgeList(),
		Viewport: s.Viewport,
	}
	for _, id := range s.Order {
		el, ok := s.Elements[id]
		if !ok {
			continue
		}
		node, err := Encode(el)
		if err != nil {
			return nil, err
		}
		board.Elements = append(board.Elements, node)
	}
	return board, nil
}

// ParseBoard decodes board JSON.
func ParseBoard(data []byte) (*Board, error) {
	var board Board
	if err := json.Unmarshal(data, &board); err != nil {
		return nil, fmt.Errorf("parse board: %w", err)
	}
	if board.Viewport.Scale <= 0 {
		board.Viewport.Scale = 1
	}
	return &board, nil
}
