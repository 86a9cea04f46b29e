package collab

import (
	"encoding/json"

	"github.com/inamate/canvas/internal/document"
	"github.com/inamate/canvas/internal/render"
)

type Message struct {
	Type     string          `json:"type"`
	BoardID  string          `json:"boardId,omitempty"`
	ClientID string          `json:"clientId,omitempty"`
	UserID   string          `json:"userId,omitempty"`
	Seq      int64           `json:"seq,omitempty"`
	Payload  json.RawMessage `json:"payload"`
}

type PresencePayload struct {
	Cursor      *CursorPos `json:"cursor,omitempty"`
	Selection   []string   `json:"selection,omitempty"`
	DisplayName string     `json:"displayName,omitempty"`
}

type CursorPos struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type PresenceStatePayload struct {
	Presences map[string]*PresencePayload `json:"presences"`
}

type PresenceJoinPayload struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

type PresenceLeavePayload struct {
	UserID string `json:"userId"`
}

type WelcomePayload struct {
	ClientID string `json:"clientId"`
	UserID   string `json:"userId"`
}

type ErrorPayload struct {
	Error string `json:"error"`
}

// BoardSyncPayload carries the whole board, sent on join.
type BoardSyncPayload struct {
	Board     *document.Board `json:"board"`
	ServerSeq int64           `json:"serverSeq"`
}

// FramePayload carries one layer's draw commands after the room's engine
// painted it.
type FramePayload struct {
	Layer    render.LayerName     `json:"layer"`
	Commands []render.DrawCommand `json:"commands"`
}

const (
	TypePresenceUpdate = "presence.update"
	TypePresenceState  = "presence.state"
	TypePresenceJoin   = "presence.join"
	TypePresenceLeave  = "presence.leave"
	TypeError          = "error"

	// Connection
	TypeWelcome = "welcome"

	// Board sync
	TypeBoardSync = "board.sync"
	TypeFrame     = "frame"

	// Operation message types
	TypeOpSubmit    = "op.submit"
	TypeOpAck       = "op.ack"
	TypeOpNack      = "op.nack"
	TypeOpBroadcast = "op.broadcast"
)

// --- Operation Types ---

const (
	OpElementAdd    = "element.add"
	OpElementUpdate = "element.update"
	OpElementMove   = "element.move"
	OpElementDelete = "element.delete"
	OpEdgeAdd       = "edge.add"
	OpEdgeUpdate    = "edge.update"
	OpEdgeDelete    = "edge.delete"
)

// Operation is a board mutation submitted by a client.
type Operation struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
	ClientSeq int64  `json:"clientSeq"`

	// For element.update / element.delete; edge.update / edge.delete use EdgeID.
	ElementID string `json:"elementId,omitempty"`
	EdgeID    string `json:"edgeId,omitempty"`

	// For element.add
	Element *document.ElementNode `json:"element,omitempty"`

	// For element.update
	Patch *document.Patch `json:"patch,omitempty"`

	// For element.move
	ElementIDs []string `json:"elementIds,omitempty"`
	DX         float64  `json:"dx,omitempty"`
	DY         float64  `json:"dy,omitempty"`

	// For edge.add
	Edge *document.Edge `json:"edge,omitempty"`

	// For edge.update
	EdgePatch *document.EdgePatch `json:"edgePatch,omitempty"`
}

// OperationSubmitPayload is the payload for op.submit messages
type OperationSubmitPayload struct {
	Operation Operation `json:"operation"`
}

// OperationAckPayload is the payload for op.ack messages
type OperationAckPayload struct {
	OperationID     string `json:"operationId"`
	ServerSeq       int64  `json:"serverSeq"`
	ServerTimestamp int64  `json:"serverTimestamp"`
	// CreatedID is the id assigned by element.add or edge.add.
	CreatedID string `json:"createdId,omitempty"`
}

// OperationNackPayload is the payload for op.nack messages
type OperationNackPayload struct {
	OperationID string `json:"operationId"`
	Reason      string `json:"reason"`
}

// OperationBroadcastPayload is the payload for op.broadcast messages
type OperationBroadcastPayload struct {
	Operation Operation `json:"operation"`
	UserID    string    `json:"userId"`
	ServerSeq int64     `json:"serverSeq"`
}
