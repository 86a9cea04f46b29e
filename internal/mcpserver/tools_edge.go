package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/inamate/canvas/internal/document"
	"github.com/inamate/canvas/internal/engine"
	"github.com/inamate/canvas/internal/render"
)

var routingModes = []string{
	string(document.RoutingStraight),
	string(document.RoutingOrthogonal),
	string(document.RoutingCurved),
}

func portNames() []string {
	names := make([]string, 0, len(document.CompassPorts)+1)
	for _, p := range document.CompassPorts {
		names = append(names, string(p))
	}
	return append(names, string(document.PortCenter))
}

func (s *Server) registerEdgeTools() {
	s.mcp.AddTool(mcp.NewTool("connect_elements",
		mcp.WithDescription("Connect two elements with a routed connector and return the connector id."),
		mcp.WithString("source", mcp.Description("Source element id"), mcp.Required()),
		mcp.WithString("target", mcp.Description("Target element id"), mcp.Required()),
		mcp.WithString("source_port", mcp.Description("Port on the source (default E)"), mcp.Enum(portNames()...)),
		mcp.WithString("target_port", mcp.Description("Port on the target (default W)"), mcp.Enum(portNames()...)),
		mcp.WithString("mode", mcp.Description("Routing mode (default orthogonal)"), mcp.Enum(routingModes...)),
		mcp.WithString("label", mcp.Description("Text drawn at the connector midpoint")),
	), s.handleConnect)

	s.mcp.AddTool(mcp.NewTool("set_edge_mode",
		mcp.WithDescription("Change a connector's routing mode. The path is recomputed."),
		mcp.WithString("id", mcp.Description("Connector id"), mcp.Required()),
		mcp.WithString("mode", mcp.Description("Routing mode"), mcp.Enum(routingModes...), mcp.Required()),
	), s.handleSetEdgeMode)
}

func (s *Server) handleConnect(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	source, err := req.RequireString("source")
	if err != nil {
		return toolError(err)
	}
	target, err := req.RequireString("target")
	if err != nil {
		return toolError(err)
	}
	mode, err := parseMode(req.GetString("mode", string(document.RoutingOrthogonal)))
	if err != nil {
		return toolError(err)
	}
	edge := document.Edge{
		Source: document.Endpoint{ElementID: source, Port: document.PortKind(req.GetString("source_port", string(document.PortE)))},
		Target: document.Endpoint{ElementID: target, Port: document.PortKind(req.GetString("target_port", string(document.PortW)))},
		Mode:   mode,
		Style:  document.EdgeStyle{Stroke: "#1f2937", StrokeWidth: 2, Arrowhead: true},
		Label:  req.GetString("label", ""),
	}

	return s.withEngine(func(e *engine.Engine) (*mcp.CallToolResult, error) {
		id, err := e.Store().AddEdge(edge)
		if err != nil {
			return toolError(err)
		}
		s.log.Info("edge added", "id", id, "source", source, "target", target, "mode", mode)
		return mcp.NewToolResultText(id), nil
	})
}

func (s *Server) handleSetEdgeMode(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return toolError(err)
	}
	raw, err := req.RequireString("mode")
	if err != nil {
		return toolError(err)
	}
	mode, err := parseMode(raw)
	if err != nil {
		return toolError(err)
	}

	return s.withEngine(func(e *engine.Engine) (*mcp.CallToolResult, error) {
		if err := e.Store().UpdateEdge(id, document.EdgePatch{Mode: &mode}); err != nil {
			return toolError(err)
		}
		points, _ := json.Marshal(e.Snapshot().Edges[id].Points)
		return mcp.NewToolResultText(fmt.Sprintf("%s is %s: %s", id, mode, points)), nil
	})
}

func parseMode(s string) (document.RoutingMode, error) {
	for _, m := range routingModes {
		if s == m {
			return document.RoutingMode(s), nil
		}
	}
	return "", fmt.Errorf("unknown routing mode %q", s)
}

func (s *Server) registerBoardTools() {
	s.mcp.AddTool(mcp.NewTool("get_board",
		mcp.WithDescription("Return the whole board as JSON."),
	), s.handleGetBoard)

	s.mcp.AddTool(mcp.NewTool("render_layer",
		mcp.WithDescription("Flush pending frames and return one layer's draw commands as JSON."),
		mcp.WithString("layer",
			mcp.Description("Layer name (default main)"),
			mcp.Enum(string(render.LayerBackground), string(render.LayerMain), string(render.LayerPreview), string(render.LayerOverlay)),
		),
	), s.handleRenderLayer)
}

func (s *Server) handleGetBoard(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.withEngine(func(e *engine.Engine) (*mcp.CallToolResult, error) {
		data, err := e.BoardJSON()
		if err != nil {
			return toolError(err)
		}
		return mcp.NewToolResultText(string(data)), nil
	})
}

func (s *Server) handleRenderLayer(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	layer := render.LayerName(req.GetString("layer", string(render.LayerMain)))
	return s.withEngine(func(e *engine.Engine) (*mcp.CallToolResult, error) {
		if e.Stage().Layer(layer) == nil {
			return toolError(fmt.Errorf("unknown layer %q", layer))
		}
		e.Frame()
		return mcp.NewToolResultText(e.DrawCommandsJSON(layer)), nil
	})
}
