package render

import (
	"encoding/json"

	"github.com/inamate/canvas/internal/geometry"
)

// DrawCommand is a single drawing operation for a Canvas2D style painter.
// Transform already includes the layer transform.
type DrawCommand struct {
	Op          string        `json:"op"` // "path", "polyline", "text", "image"
	NodeID      string        `json:"nodeId,omitempty"`
	ElementID   string        `json:"elementId,omitempty"`
	Transform   []float64     `json:"transform,omitempty"` // [a, b, c, d, e, f]
	Path        []PathCommand `json:"path,omitempty"`
	Points      []float64     `json:"points,omitempty"`
	Curved      bool          `json:"curved,omitempty"`
	Closed      bool          `json:"closed,omitempty"`
	Text        string        `json:"text,omitempty"`
	FontSize    float64       `json:"fontSize,omitempty"`
	Width       float64       `json:"width,omitempty"`
	Height      float64       `json:"height,omitempty"`
	AssetID     string        `json:"assetId,omitempty"`
	Fill        string        `json:"fill,omitempty"`
	Stroke      string        `json:"stroke,omitempty"`
	StrokeWidth float64       `json:"strokeWidth,omitempty"`
	Dash        []float64     `json:"dash,omitempty"`
	Opacity     float64       `json:"opacity,omitempty"`
}

// Compile generates the draw commands for a layer in painter's order.
func Compile(l *Layer) []DrawCommand {
	if l == nil {
		return nil
	}
	var commands []DrawCommand
	for _, n := range l.nodes {
		compileNode(n, l.transform, 1, &commands)
	}
	return commands
}

func compileNode(n *Node, parent geometry.Matrix2D, opacity float64, commands *[]DrawCommand) {
	if n == nil || !n.Visible {
		return
	}
	world := parent.Multiply(n.Transform)
	opacity *= n.Opacity

	cmd := DrawCommand{
		NodeID:      n.ID,
		ElementID:   n.ElementID,
		Transform:   world.ToSlice(),
		Fill:        n.Fill,
		Stroke:      n.Stroke,
		StrokeWidth: n.StrokeWidth,
		Dash:        n.Dash,
		Opacity:     opacity,
	}
	switch n.Kind {
	case NodePath:
		if len(n.Path) > 0 {
			cmd.Op = "path"
			cmd.Path = n.Path
			*commands = append(*commands, cmd)
		}
	case NodePolyline:
		if len(n.Points) >= 4 {
			cmd.Op = "polyline"
			cmd.Points = n.Points
			cmd.Curved = n.Curved
			cmd.Closed = n.Closed
			*commands = append(*commands, cmd)
		}
	case NodeText:
		if n.Text != "" {
			cmd.Op = "text"
			cmd.Text = n.Text
			cmd.FontSize = n.FontSize
			cmd.Width = n.BoxWidth
			cmd.Height = n.BoxHeight
			*commands = append(*commands, cmd)
		}
	case NodeImage:
		cmd.Op = "image"
		cmd.AssetID = n.AssetID
		cmd.Width = n.BoxWidth
		cmd.Height = n.BoxHeight
		*commands = append(*commands, cmd)
	}

	for _, child := range n.Children {
		compileNode(child, world, opacity, commands)
	}
}

// DrawCommandsToJSON serializes draw commands to JSON.
func DrawCommandsToJSON(commands []DrawCommand) (string, error) {
	data, err := json.Marshal(commands)
	if err != nil {
		return "[]", err
	}
	return string(data), nil
}

// RecordingPainter keeps the last frame painted for each layer.
type RecordingPainter struct {
	Frames map[LayerName][]DrawCommand
	Paints map[LayerName]int
	// FailOn makes Paint return an error for the named layer.
	FailOn map[LayerName]error
}

func NewRecordingPainter() *RecordingPainter {
	return &RecordingPainter{
		Frames: make(map[LayerName][]DrawCommand),
		Paints: make(map[LayerName]int),
	}
}

func (p *RecordingPainter) Paint(layer LayerName, cmds []DrawCommand) error {
	if err := p.FailOn[layer]; err != nil {
		return err
	}
	p.Frames[layer] = cmds
	p.Paints[layer]++
	return nil
}
