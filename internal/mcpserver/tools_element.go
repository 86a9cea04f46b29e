package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/inamate/canvas/internal/document"
	"github.com/inamate/canvas/internal/engine"
)

func (s *Server) registerElementTools() {
	s.mcp.AddTool(mcp.NewTool("add_element",
		mcp.WithDescription("Add an element to the board and return its id."),
		mcp.WithString("kind",
			mcp.Description("Element kind"),
			mcp.Enum(string(document.KindShape), string(document.KindText), string(document.KindSticky)),
			mcp.Required(),
		),
		mcp.WithNumber("x", mcp.Description("Left edge in world units"), mcp.Required()),
		mcp.WithNumber("y", mcp.Description("Top edge in world units"), mcp.Required()),
		mcp.WithNumber("width", mcp.Description("Width (default 120)")),
		mcp.WithNumber("height", mcp.Description("Height (default 80)")),
		mcp.WithString("text", mcp.Description("Label or body text")),
		mcp.WithString("shape",
			mcp.Description("Outline for shape elements (default rect)"),
			mcp.Enum(string(document.ShapeRect), string(document.ShapeEllipse), string(document.ShapeDiamond), string(document.ShapeTriangle)),
		),
		mcp.WithBoolean("circular", mcp.Description("Text only: place the text in a circle that grows to fit")),
	), s.handleAddElement)

	s.mcp.AddTool(mcp.NewTool("move_element",
		mcp.WithDescription("Move an element by an offset. Attached connectors are rerouted."),
		mcp.WithString("id", mcp.Description("Element id"), mcp.Required()),
		mcp.WithNumber("dx", mcp.Description("Horizontal offset"), mcp.Required()),
		mcp.WithNumber("dy", mcp.Description("Vertical offset"), mcp.Required()),
	), s.handleMoveElement)

	s.mcp.AddTool(mcp.NewTool("delete_element",
		mcp.WithDescription("Delete an element and every connector attached to it."),
		mcp.WithString("id", mcp.Description("Element id"), mcp.Required()),
	), s.handleDeleteElement)

	s.mcp.AddTool(mcp.NewTool("list_elements",
		mcp.WithDescription("List elements back to front with their kind, box and text."),
	), s.handleListElements)
}

func (s *Server) handleAddElement(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind, err := req.RequireString("kind")
	if err != nil {
		return toolError(err)
	}
	x, err := req.RequireFloat("x")
	if err != nil {
		return toolError(err)
	}
	y, err := req.RequireFloat("y")
	if err != nil {
		return toolError(err)
	}
	base := document.Base{
		X:      x,
		Y:      y,
		Width:  req.GetFloat("width", 120),
		Height: req.GetFloat("height", 80),
		Style:  document.Style{Fill: "#ffffff", Stroke: "#1f2937", StrokeWidth: 1, Opacity: 1},
	}
	text := req.GetString("text", "")

	var el document.Element
	switch document.Kind(kind) {
	case document.KindShape:
		el = document.Shape{Base: base, Shape: document.ShapeType(req.GetString("shape", string(document.ShapeRect))), Text: text}
	case document.KindText:
		base.Style.Fill = ""
		el = document.Text{Base: base, Text: text, FontSize: 16, Circular: req.GetBool("circular", false), Padding: 8}
	case document.KindSticky:
		base.Style.Fill = "#fef08a"
		el = document.Sticky{Base: base, Text: text, FontSize: 14}
	default:
		return toolError(fmt.Errorf("cannot add %q elements", kind))
	}

	return s.withEngine(func(e *engine.Engine) (*mcp.CallToolResult, error) {
		id, err := e.Store().AddElement(el)
		if err != nil {
			return toolError(err)
		}
		s.log.Info("element added", "id", id, "kind", kind)
		return mcp.NewToolResultText(id), nil
	})
}

func (s *Server) handleMoveElement(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return toolError(err)
	}
	dx := req.GetFloat("dx", 0)
	dy := req.GetFloat("dy", 0)

	return s.withEngine(func(e *engine.Engine) (*mcp.CallToolResult, error) {
		if _, ok := e.Snapshot().Element(id); !ok {
			return toolError(fmt.Errorf("element %s not found", id))
		}
		if err := e.Store().MoveElements([]string{id}, dx, dy); err != nil {
			return toolError(err)
		}
		b, _ := e.Snapshot().Element(id)
		h := b.Header()
		return mcp.NewToolResultText(fmt.Sprintf("moved %s to (%g, %g)", id, h.X, h.Y)), nil
	})
}

func (s *Server) handleDeleteElement(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return toolError(err)
	}
	return s.withEngine(func(e *engine.Engine) (*mcp.CallToolResult, error) {
		if err := e.Store().DeleteElement(id); err != nil {
			return toolError(err)
		}
		return mcp.NewToolResultText("deleted " + id), nil
	})
}

func (s *Server) handleListElements(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.withEngine(func(e *engine.Engine) (*mcp.CallToolResult, error) {
		snap := e.Snapshot()
		if len(snap.Order) == 0 {
			return mcp.NewToolResultText("No elements."), nil
		}
		var sb strings.Builder
		for _, id := range snap.Order {
			el := snap.Elements[id]
			h := el.Header()
			fmt.Fprintf(&sb, "%s %s at (%g, %g) size %gx%g", id, el.Kind(), h.X, h.Y, h.Width, h.Height)
			if text, ok := document.TextOf(el); ok && text != "" {
				fmt.Fprintf(&sb, " %q", text)
			}
			sb.WriteByte('\n')
		}
		return mcp.NewToolResultText(sb.String()), nil
	})
}
