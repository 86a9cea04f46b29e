// Package routing derives connector polylines from two anchors.
//
// Every router returns a flat [x0, y0, x1, y1, ...] slice in world space.
package routing

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/inamate/canvas/internal/document"
	"github.com/inamate/canvas/internal/geometry"
	"github.com/inamate/canvas/internal/ports"
)

var ErrMissingEndpoint = errors.New("edge endpoint element missing")

// DefaultClearance is how far orthogonal routes leave a port along its
// normal before turning.
const DefaultClearance = 8.0

// CurveBias is the horizontal position of the curved control point, as a
// fraction of the source→target distance.
const CurveBias = 0.35

// Anchor is a resolved endpoint: a world position and an outward normal.
type Anchor struct {
	Point  geometry.Point
	Normal geometry.Vector
}

// Router applies routing modes with a fixed set of options.
type Router struct {
	opts Options
	log  *slog.Logger
}

// NewRouter creates a router. A nil logger defers to slog.Default().
func NewRouter(opts Options, log *slog.Logger) *Router {
	return &Router{opts: opts.withDefaults(), log: log}
}

func (r *Router) logger() *slog.Logger {
	if r.log == nil {
		return slog.Default()
	}
	return r.log
}

// Options returns the router's effective options.
func (r *Router) Options() Options {
	return r.opts
}

var defaultRouter = NewRouter(DefaultOptions(), nil)

// Straight connects two points directly.
func Straight(a, b geometry.Point) []float64 {
	return []float64{a.X, a.Y, b.X, b.Y}
}

// Curved returns a quadratic curve [a, control, b]. The control point sits
// at the vertical midpoint, biased horizontally towards the source.
func Curved(a, b geometry.Point) []float64 {
	mx := a.X + (b.X-a.X)*CurveBias
	my := (a.Y + b.Y) / 2
	return []float64{a.X, a.Y, mx, my, b.X, b.Y}
}

// ResolveAnchor finds the anchor for one end of an edge. An endpoint whose
// port does not resolve falls back to the element's CENTER port, then to the
// raw element centre.
func ResolveAnchor(el document.Element, ep document.Endpoint) Anchor {
	if p, ok := ports.Resolve(el, ep); ok {
		return Anchor{Point: ports.LocalToWorld(el, p), Normal: ports.Normal(p.Kind)}
	}
	if p, ok := ports.Lookup(el, document.PortCenter); ok {
		return Anchor{Point: ports.LocalToWorld(el, p)}
	}
	return Anchor{Point: el.Header().Center()}
}

// RouteEdge resolves both endpoints and applies the edge's routing mode.
func (r *Router) RouteEdge(edge document.Edge, source, target document.Element) ([]float64, error) {
	if source == nil || target == nil {
		return nil, fmt.Errorf("route %s: %w", edge.ID, ErrMissingEndpoint)
	}
	a := ResolveAnchor(source, edge.Source)
	b := ResolveAnchor(target, edge.Target)
	return r.Route(edge.Mode, a, b), nil
}

// Route applies one routing mode to two anchors. Unknown modes are logged and
// routed straight.
func (r *Router) Route(mode document.RoutingMode, a, b Anchor) []float64 {
	switch mode {
	case document.RoutingStraight, "":
		return Straight(a.Point, b.Point)
	case document.RoutingOrthogonal:
		return Orthogonal(a, b, r.opts)
	case document.RoutingCurved:
		return Curved(a.Point, b.Point)
	default:
		r.logger().Warn("unknown routing mode, using straight", "mode", mode)
		return Straight(a.Point, b.Point)
	}
}

// UpdateEdgeGeometry recomputes an edge's points and bounding box.
func (r *Router) UpdateEdgeGeometry(edge document.Edge, source, target document.Element) (document.Edge, error) {
	pts, err := r.RouteEdge(edge, source, target)
	if err != nil {
		return edge, err
	}
	edge.Points = pts
	edge.Bounds = geometry.BoundingBox(pts)
	return edge, nil
}

// RouteEdge routes with default options.
func RouteEdge(edge document.Edge, source, target document.Element) ([]float64, error) {
	return defaultRouter.RouteEdge(edge, source, target)
}

// UpdateEdgeGeometry recomputes geometry with default options.
func UpdateEdgeGeometry(edge document.Edge, source, target document.Element) (document.Edge, error) {
	return defaultRouter.UpdateEdgeGeometry(edge, source, target)
}
