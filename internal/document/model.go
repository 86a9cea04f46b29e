package document

import (
	"errors"

	"github.com/inamate/canvas/internal/geometry"
)

var ErrUnknownKind = errors.New("unknown element kind")

// PortKind names an anchor point on an element's boundary.
type PortKind string

const (
	PortN      PortKind = "N"
	PortS      PortKind = "S"
	PortE      PortKind = "E"
	PortW      PortKind = "W"
	PortNE     PortKind = "NE"
	PortNW     PortKind = "NW"
	PortSE     PortKind = "SE"
	PortSW     PortKind = "SW"
	PortCenter PortKind = "CENTER"
	PortCustom PortKind = "CUSTOM"
)

// CompassPorts lists the eight boundary ports in clockwise order from north.
var CompassPorts = []PortKind{PortN, PortNE, PortE, PortSE, PortS, PortSW, PortW, PortNW}

// LocalPoint is a normalized element-local coordinate; both axes lie in
// [-0.5, 0.5] with the origin at the element centre.
type LocalPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Endpoint is one end of a connector.
type Endpoint struct {
	ElementID string      `json:"elementId"`
	Port      PortKind    `json:"port"`
	Custom    *LocalPoint `json:"custom,omitempty"` // only read when Port == CUSTOM
}

type RoutingMode string

const (
	RoutingStraight   RoutingMode = "straight"
	RoutingOrthogonal RoutingMode = "orthogonal"
	RoutingCurved     RoutingMode = "curved"
)

type EdgeStyle struct {
	Stroke      string    `json:"stroke"`
	StrokeWidth float64   `json:"strokeWidth"`
	Dash        []float64 `json:"dash,omitempty"`
	Arrowhead   bool      `json:"arrowhead"`
}

// Edge is a connector between two elements. Points is derived from the
// current source/target geometry and is never edited by hand.
type Edge struct {
	ID     string        `json:"id"`
	Source Endpoint      `json:"source"`
	Target Endpoint      `json:"target"`
	Mode   RoutingMode   `json:"mode"`
	Points []float64     `json:"points"`
	Bounds geometry.Rect `json:"bounds"`
	Style  EdgeStyle     `json:"style"`
	Label  string        `json:"label,omitempty"`
}

// Touches reports whether the edge is attached to the element.
func (e Edge) Touches(elementID string) bool {
	return e.Source.ElementID == elementID || e.Target.ElementID == elementID
}

// Draft is an in-progress connector being dragged out of a port.
type Draft struct {
	From       Endpoint       `json:"from"`
	Pointer    geometry.Point `json:"pointer"`
	SnapTarget *Endpoint      `json:"snapTarget,omitempty"`
}

// Viewport is the pan/zoom state. X/Y pan the content layers in screen
// pixels; Width/Height are the stage size when known.
type Viewport struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Scale  float64 `json:"scale"`
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`
}

// DefaultViewport is the identity viewport.
func DefaultViewport() Viewport {
	return Viewport{Scale: 1}
}

// Snapshot is an immutable view of canvas state. Producers build a new
// Snapshot per mutation; consumers must not modify it.
type Snapshot struct {
	Version  uint64
	Elements map[string]Element
	Order    []string // element z-order, back to front
	Selected map[string]bool
	Viewport Viewport
	Edges    map[string]Edge
	EdgeIDs  []string // edge z-order
	Draft    *Draft
}

// EmptySnapshot returns a snapshot with initialised maps.
func EmptySnapshot() *Snapshot {
	return &Snapshot{
		Elements: map[string]Element{},
		Selected: map[string]bool{},
		Viewport: DefaultViewport(),
		Edges:    map[string]Edge{},
	}
}

// Element looks up an element by id.
func (s *Snapshot) Element(id string) (Element, bool) {
	el, ok := s.Elements[id]
	return el, ok
}

// OfKind returns the elements of one kind in z-order.
func (s *Snapshot) OfKind(kind Kind) []Element {
	var out []Element
	for _, id := range s.Order {
		el, ok := s.Elements[id]
		if ok && el.Kind() == kind {
			out = append(out, el)
		}
	}
	return out
}

// SelectedIDs returns the selected ids that still exist, in z-order.
func (s *Snapshot) SelectedIDs() []string {
	if len(s.Selected) == 0 {
		return nil
	}
	var out []string
	for _, id := range s.Order {
		if s.Selected[id] {
			out = append(out, id)
		}
	}
	return out
}

// EdgeList returns edges in z-order.
func (s *Snapshot) EdgeList() []Edge {
	out := make([]Edge, 0, len(s.EdgeIDs))
	for _, id := range s.EdgeIDs {
		if e, ok := s.Edges[id]; ok {
			out = append(out, e)
		}
	}
	return out
}
