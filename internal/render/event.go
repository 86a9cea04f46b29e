package render

import "github.com/inamate/canvas/internal/geometry"

type EventType string

const (
	EventPointerDown EventType = "pointerdown"
	EventPointerMove EventType = "pointermove"
	EventPointerUp   EventType = "pointerup"
	EventDoubleClick EventType = "dblclick"
	EventWheel       EventType = "wheel"
	EventKeyDown     EventType = "keydown"
	EventKeyUp       EventType = "keyup"
	EventResize      EventType = "resize"
)

// Event is a raw input event. Hosts fill Screen; the core fills World from
// the viewport before dispatch.
type Event struct {
	Type   EventType      `json:"type"`
	Screen geometry.Point `json:"screen"`
	World  geometry.Point `json:"-"`
	Button int            `json:"button,omitempty"` // 0 primary, 1 middle, 2 secondary
	DeltaY float64        `json:"deltaY,omitempty"`
	Key    string         `json:"key,omitempty"`
	Shift  bool           `json:"shift,omitempty"`
	Width  float64        `json:"width,omitempty"` // resize only
	Height float64        `json:"height,omitempty"`
}
