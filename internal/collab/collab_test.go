package collab

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/inamate/canvas/internal/document"
	"github.com/inamate/canvas/internal/render"
	"github.com/inamate/canvas/internal/store"
)

func box(id string, x float64) document.ElementNode {
	n, _ := document.Encode(document.Shape{
		Base:  document.Base{ID: id, X: x, Width: 100, Height: 50},
		Shape: document.ShapeRect,
	})
	return n
}

func ptr[T any](v T) *T { return &v }

func TestApplyOperation(t *testing.T) {
	st := store.NewMemory()
	a := box("a", 0)
	if _, err := ApplyOperation(st, &Operation{Type: OpElementAdd, Element: &a}); err != nil {
		t.Fatal(err)
	}
	b := box("b", 300)
	if _, err := ApplyOperation(st, &Operation{Type: OpElementAdd, Element: &b}); err != nil {
		t.Fatal(err)
	}

	edgeOp := &Operation{Type: OpEdgeAdd, Edge: &document.Edge{
		Source: document.Endpoint{ElementID: "a", Port: document.PortE},
		Target: document.Endpoint{ElementID: "b", Port: document.PortW},
		Mode:   document.RoutingStraight,
	}}
	edgeID, err := ApplyOperation(st, edgeOp)
	if err != nil {
		t.Fatal(err)
	}
	if edgeOp.EdgeID != edgeID || len(edgeOp.Edge.Points) != 4 {
		t.Errorf("op should carry the stored edge, got %+v", edgeOp.Edge)
	}

	tests := []struct {
		name    string
		op      Operation
		wantErr error
	}{
		{"move", Operation{Type: OpElementMove, ElementIDs: []string{"a"}, DX: 5, DY: 5}, nil},
		{"update", Operation{Type: OpElementUpdate, ElementID: "b", Patch: ptr(document.Resize(120, 60))}, nil},
		{"edge mode", Operation{Type: OpEdgeUpdate, EdgeID: edgeID, EdgePatch: &document.EdgePatch{Mode: ptr(document.RoutingOrthogonal)}}, nil},
		{"empty patch", Operation{Type: OpElementUpdate, ElementID: "b", Patch: &document.Patch{}}, ErrInvalidOperation},
		{"missing element", Operation{Type: OpElementDelete, ElementID: "zz"}, store.ErrNotFound},
		{"self edge", Operation{Type: OpEdgeAdd, Edge: &document.Edge{
			Source: document.Endpoint{ElementID: "a"}, Target: document.Endpoint{ElementID: "a"},
		}}, store.ErrSelfConnection},
		{"no elements to move", Operation{Type: OpElementMove}, ErrInvalidOperation},
		{"unknown", Operation{Type: "board.rename"}, ErrInvalidOperation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ApplyOperation(st, &tt.op)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	snap := st.Snapshot()
	if el, _ := snap.Element("a"); el.Header().X != 5 {
		t.Errorf("move not applied: %+v", el.Header())
	}
	if e := snap.Edges[edgeID]; e.Mode != document.RoutingOrthogonal {
		t.Errorf("edge mode not applied: %v", e.Mode)
	}
}

func TestPresence_DropsUnknownSelection(t *testing.T) {
	pm := NewPresenceManager()
	got := pm.Update("c1", PresencePayload{Selection: []string{"a", "gone"}}, func(id string) bool { return id == "a" })
	if len(got.Selection) != 1 || got.Selection[0] != "a" {
		t.Errorf("expected [a], got %v", got.Selection)
	}
	pm.Update("c2", PresencePayload{Cursor: &CursorPos{X: 1, Y: 2}}, nil)
	if len(pm.GetAll()) != 2 {
		t.Error("expected two presences")
	}
	pm.Remove("c1")
	if _, ok := pm.GetAll()["c1"]; ok {
		t.Error("c1 should be removed")
	}
}

func newTestHub(t *testing.T, loader BoardLoader) *Hub {
	t.Helper()
	h := NewHub(Options{
		FrameInterval: 5 * time.Millisecond,
		Loader:        loader,
		Log:           slog.New(slog.DiscardHandler),
	})
	go h.Run()
	t.Cleanup(h.Stop)
	return h
}

func decode(t *testing.T, data []byte) *Message {
	t.Helper()
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatal(err)
	}
	return &msg
}

// waitFor reads c's queues until a message of type typ arrives. Frames are
// read from the coalesced frame slots, everything else from send.
func waitFor(t *testing.T, c *Client, typ string) *Message {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				t.Fatalf("client %s closed while waiting for %s", c.ClientID, typ)
			}
			if msg := decode(t, data); msg.Type == typ {
				return msg
			}
		case <-c.frameReady:
			for _, data := range c.takeFrames() {
				if msg := decode(t, data); msg.Type == typ {
					return msg
				}
			}
		case <-timeout:
			t.Fatalf("client %s: no %s message", c.ClientID, typ)
		}
	}
}

func submit(t *testing.T, h *Hub, c *Client, op Operation) {
	t.Helper()
	payload, err := json.Marshal(OperationSubmitPayload{Operation: op})
	if err != nil {
		t.Fatal(err)
	}
	h.handleMessage(c, &Message{Type: TypeOpSubmit, Payload: payload})
}

func TestHub_JoinSyncAndOps(t *testing.T) {
	h := newTestHub(t, nil)
	a := NewClient(h, nil, "user_a", "Ada", "board_1", "c-a")
	h.Register(a)
	waitFor(t, a, TypeWelcome)

	var sync BoardSyncPayload
	if err := json.Unmarshal(waitFor(t, a, TypeBoardSync).Payload, &sync); err != nil {
		t.Fatal(err)
	}
	if len(sync.Board.Elements) != 0 {
		t.Errorf("new board should be empty, got %d elements", len(sync.Board.Elements))
	}

	b := NewClient(h, nil, "user_b", "Bo", "board_1", "c-b")
	h.Register(b)
	waitFor(t, a, TypePresenceJoin)
	waitFor(t, b, TypeBoardSync)

	el := box("", 10)
	submit(t, h, a, Operation{ID: "op1", Type: OpElementAdd, Element: &el})

	var ack OperationAckPayload
	if err := json.Unmarshal(waitFor(t, a, TypeOpAck).Payload, &ack); err != nil {
		t.Fatal(err)
	}
	if ack.OperationID != "op1" || ack.ServerSeq != 1 || ack.CreatedID == "" {
		t.Errorf("unexpected ack %+v", ack)
	}
	var bc OperationBroadcastPayload
	if err := json.Unmarshal(waitFor(t, b, TypeOpBroadcast).Payload, &bc); err != nil {
		t.Fatal(err)
	}
	if bc.Operation.Element.ID != ack.CreatedID || bc.UserID != "user_a" {
		t.Errorf("broadcast should carry the assigned id, got %+v", bc)
	}
	// The add dirtied the main layer; its frame follows the broadcast.
	waitFor(t, b, TypeFrame)

	submit(t, h, b, Operation{ID: "op2", Type: OpElementDelete, ElementID: "missing"})
	var nack OperationNackPayload
	if err := json.Unmarshal(waitFor(t, b, TypeOpNack).Payload, &nack); err != nil {
		t.Fatal(err)
	}
	if nack.OperationID != "op2" || nack.Reason == "" {
		t.Errorf("unexpected nack %+v", nack)
	}

	board, err := h.Board(context.Background(), "board_1")
	if err != nil {
		t.Fatal(err)
	}
	if len(board.Elements) != 1 {
		t.Errorf("expected 1 element on the live board, got %d", len(board.Elements))
	}
}

func TestHub_LoaderAndRoomLifetime(t *testing.T) {
	h := newTestHub(t, func(id string) (*document.Board, error) {
		return document.NewSampleBoard(), nil
	})
	a := NewClient(h, nil, "user_a", "Ada", "board_s", "c-a")
	h.Register(a)

	var sync BoardSyncPayload
	if err := json.Unmarshal(waitFor(t, a, TypeBoardSync).Payload, &sync); err != nil {
		t.Fatal(err)
	}
	if len(sync.Board.Elements) != 5 || len(sync.Board.Edges) != 3 {
		t.Errorf("expected the sample board, got %d elements %d edges", len(sync.Board.Elements), len(sync.Board.Edges))
	}

	if rooms := h.OpenRooms(); len(rooms) != 1 || rooms[0].BoardID != "board_s" || rooms[0].Clients != 1 {
		t.Errorf("unexpected open rooms %+v", rooms)
	}

	h.Unregister(a)
	deadline := time.Now().Add(2 * time.Second)
	for h.Rooms() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("room should close when the last client leaves")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHub_PresenceRelay(t *testing.T) {
	h := newTestHub(t, nil)
	a := NewClient(h, nil, "user_a", "Ada", "board_p", "c-a")
	b := NewClient(h, nil, "user_b", "Bo", "board_p", "c-b")
	h.Register(a)
	h.Register(b)
	waitFor(t, b, TypeWelcome)

	payload, _ := json.Marshal(PresencePayload{Cursor: &CursorPos{X: 3, Y: 4}, DisplayName: "spoofed"})
	h.handleMessage(a, &Message{Type: TypePresenceUpdate, Payload: payload})

	var got PresencePayload
	if err := json.Unmarshal(waitFor(t, b, TypePresenceUpdate).Payload, &got); err != nil {
		t.Fatal(err)
	}
	if got.DisplayName != "Ada" || got.Cursor == nil || got.Cursor.X != 3 {
		t.Errorf("unexpected presence %+v", got)
	}
}

func TestClient_FramesCoalescePerLayer(t *testing.T) {
	h := NewHub(Options{Log: slog.New(slog.DiscardHandler)})
	c := NewClient(h, nil, "u", "U", "b", "c")

	c.SendFrame(render.LayerOverlay, []byte("overlay-1"))
	c.SendFrame(render.LayerMain, []byte("main-1"))
	c.SendFrame(render.LayerMain, []byte("main-2"))

	select {
	case <-c.frameReady:
	default:
		t.Fatal("expected a frame signal")
	}
	got := c.takeFrames()
	if len(got) != 2 || string(got[0]) != "main-2" || string(got[1]) != "overlay-1" {
		t.Errorf("expected [main-2 overlay-1], got %q", got)
	}
	if len(c.takeFrames()) != 0 {
		t.Error("frames should be taken once")
	}

	c.close()
	c.SendFrame(render.LayerMain, []byte("late"))
	if len(c.takeFrames()) != 0 {
		t.Error("closed clients should drop frames")
	}
}
