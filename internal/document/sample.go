package document

import (
	"github.com/inamate/canvas/internal/typeid"
)

// NewSampleBoard builds a small flowchart used by hosts when no board has
// been loaded yet. Edge points are left empty; the store routes them on load.
func NewSampleBoard() *Board {
	startID := typeid.NewElementID()
	decideID := typeid.NewElementID()
	noteID := typeid.NewElementID()
	bubbleID := typeid.NewElementID()
	tableID := typeid.NewElementID()

	start := Shape{
		Base: Base{
			ID: startID, X: 80, Y: 120, Width: 160, Height: 80,
			Style: Style{Fill: "#4a90d9", Stroke: "#2c5f8a", StrokeWidth: 2, Opacity: 1},
		},
		Shape: ShapeRect,
		Text:  "Start",
	}
	decide := Shape{
		Base: Base{
			ID: decideID, X: 360, Y: 100, Width: 140, Height: 120,
			Style: Style{Fill: "#e74c3c", Stroke: "#a93226", StrokeWidth: 2, Opacity: 1},
		},
		Shape: ShapeDiamond,
		Text:  "Ready?",
	}
	note := Sticky{
		Base: Base{
			ID: noteID, X: 600, Y: 60, Width: 160, Height: 160,
			Style: Style{Fill: "#fdd835", Stroke: "#c6a700", StrokeWidth: 1, Opacity: 1},
		},
		Text:     "Remember to review the flow",
		FontSize: 16,
	}
	bubble := Text{
		Base: Base{
			ID: bubbleID, X: 380, Y: 320, Width: 100, Height: 100,
			Style: Style{Fill: "#ffffff", Stroke: "#555555", StrokeWidth: 2, Opacity: 1},
		},
		Text:     "Ship it",
		FontSize: 18,
		Circular: true,
		Padding:  8,
	}
	table := Table{
		Base: Base{
			ID: tableID, X: 80, Y: 320, Width: 200, Height: 90,
			Style: Style{Fill: "#ffffff", Stroke: "#333333", StrokeWidth: 1, Opacity: 1},
		},
		Rows:  3,
		Cols:  2,
		Cells: [][]string{{"step", "owner"}, {"build", "ci"}, {"deploy", "ops"}},
	}

	var nodes []ElementNode
	for _, el := range []Element{start, decide, note, bubble, table} {
		// Encoding the built-in kinds cannot fail.
		n, _ := Encode(el)
		nodes = append(nodes, n)
	}

	edgeStyle := EdgeStyle{Stroke: "#333333", StrokeWidth: 2, Arrowhead: true}
	return &Board{
		Elements: nodes,
		Edges: []Edge{
			{
				ID:     typeid.NewEdgeID(),
				Source: Endpoint{ElementID: startID, Port: PortE},
				Target: Endpoint{ElementID: decideID, Port: PortW},
				Mode:   RoutingOrthogonal,
				Style:  edgeStyle,
			},
			{
				ID:     typeid.NewEdgeID(),
				Source: Endpoint{ElementID: decideID, Port: PortS},
				Target: Endpoint{ElementID: bubbleID, Port: PortN},
				Mode:   RoutingCurved,
				Style:  edgeStyle,
				Label:  "yes",
			},
			{
				ID:     typeid.NewEdgeID(),
				Source: Endpoint{ElementID: decideID, Port: PortE},
				Target: Endpoint{ElementID: noteID, Port: PortW},
				Mode:   RoutingStraight,
				Style:  EdgeStyle{Stroke: "#999999", StrokeWidth: 1, Dash: []float64{4, 4}},
			},
		},
		Viewport: DefaultViewport(),
	}
}
