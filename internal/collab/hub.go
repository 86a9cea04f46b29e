package collab

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/inamate/canvas/internal/document"
	"github.com/inamate/canvas/internal/engine"
)

// BoardLoader returns the initial board for a new room. A nil board starts
// the room empty.
type BoardLoader func(boardID string) (*document.Board, error)

type Options struct {
	Engine        engine.Options
	FrameInterval time.Duration
	Loader        BoardLoader
	Log           *slog.Logger
}

type Hub struct {
	mu    sync.RWMutex
	rooms map[string]*Room // boardID -> room

	register   chan *Client
	unregister chan *Client
	stopped    chan struct{}
	stopOnce   sync.Once

	opts Options
	log  *slog.Logger
	ctx  context.Context
}

func NewHub(opts Options) *Hub {
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = 16 * time.Millisecond
	}
	return &Hub{
		rooms:      make(map[string]*Room),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stopped:    make(chan struct{}),
		opts:       opts,
		log:        opts.Log,
		ctx:        context.Background(),
	}
}

// Run serializes joins and leaves until Stop is called.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case <-h.stopped:
			return
		}
	}
}

// Stop closes every room. Clients still connected are dropped.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stopped) })

	h.mu.Lock()
	rooms := make([]*Room, 0, len(h.rooms))
	for id, room := range h.rooms {
		rooms = append(rooms, room)
		for _, c := range room.clients {
			c.close()
		}
		delete(h.rooms, id)
	}
	h.mu.Unlock()

	for _, room := range rooms {
		room.stop()
	}
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.stopped:
		client.close()
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.stopped:
	}
}

func (h *Hub) loadBoard(boardID string) (*document.Board, error) {
	if h.opts.Loader == nil {
		return nil, nil
	}
	return h.opts.Loader(boardID)
}

// Board returns the live board of an open room, or the loader's board when
// nobody is connected.
func (h *Hub) Board(ctx context.Context, boardID string) (*document.Board, error) {
	h.mu.RLock()
	room, ok := h.rooms[boardID]
	h.mu.RUnlock()
	if ok {
		return room.board(ctx)
	}

	board, err := h.loadBoard(boardID)
	if err != nil || board != nil {
		return board, err
	}
	return &document.Board{Elements: []document.ElementNode{}, Edges: []document.Edge{}, Viewport: document.DefaultViewport()}, nil
}

// Rooms returns the number of open rooms.
func (h *Hub) Rooms() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// RoomInfo describes one open room.
type RoomInfo struct {
	BoardID string `json:"boardId"`
	Clients int    `json:"clients"`
}

// OpenRooms lists open rooms ordered by board id.
func (h *Hub) OpenRooms() []RoomInfo {
	h.mu.RLock()
	out := make([]RoomInfo, 0, len(h.rooms))
	for id, room := range h.rooms {
		out = append(out, RoomInfo{BoardID: id, Clients: len(room.clients)})
	}
	h.mu.RUnlock()
	slices.SortFunc(out, func(a, b RoomInfo) int { return strings.Compare(a.BoardID, b.BoardID) })
	return out
}

func (h *Hub) addClient(client *Client) {
	if client.ClientID == "" {
		client.ClientID = uuid.NewString()
	}

	h.mu.Lock()
	room, ok := h.rooms[client.BoardID]
	if !ok {
		var err error
		room, err = newRoom(h.ctx, h, client.BoardID)
		if err != nil {
			h.mu.Unlock()
			h.log.Error("open room", "board", client.BoardID, "error", err)
			sendError(client, "board unavailable")
			client.close()
			return
		}
		h.rooms[client.BoardID] = room
	}
	room.clients[client.ClientID] = client
	h.mu.Unlock()

	welcome, _ := json.Marshal(WelcomePayload{ClientID: client.ClientID, UserID: client.UserID})
	client.Send(&Message{Type: TypeWelcome, BoardID: client.BoardID, Payload: welcome})

	if err := room.post(func(e *engine.Engine) { room.sendBoard(e, client) }); err != nil {
		h.log.Warn("send board", "board", client.BoardID, "error", err)
	}

	// Send current presence state to new client
	if stateMsg := room.presence.StateMessage(); stateMsg != nil {
		client.Send(stateMsg)
	}

	// Broadcast join to other clients
	joinPayload, _ := json.Marshal(PresenceJoinPayload{
		UserID:      client.UserID,
		DisplayName: client.DisplayName,
	})
	joinMsg := &Message{
		Type:     TypePresenceJoin,
		UserID:   client.UserID,
		ClientID: client.ClientID,
		Payload:  joinPayload,
	}
	h.broadcastToRoom(client.BoardID, joinMsg, client.ClientID)

	h.log.Info("client joined", "user", client.UserID, "board", client.BoardID)
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	room, ok := h.rooms[client.BoardID]
	if !ok || room.clients[client.ClientID] != client {
		h.mu.Unlock()
		return
	}

	delete(room.clients, client.ClientID)
	client.close()
	room.presence.Remove(client.ClientID)

	empty := len(room.clients) == 0
	if empty {
		delete(h.rooms, client.BoardID)
	}
	h.mu.Unlock()

	if empty {
		room.stop()
		h.log.Info("room closed", "board", client.BoardID)
	} else {
		// Broadcast leave to remaining clients
		leavePayload, _ := json.Marshal(PresenceLeavePayload{
			UserID: client.UserID,
		})
		leaveMsg := &Message{
			Type:     TypePresenceLeave,
			UserID:   client.UserID,
			ClientID: client.ClientID,
			Payload:  leavePayload,
		}
		h.broadcastToRoom(client.BoardID, leaveMsg, "")
	}

	h.log.Info("client left", "user", client.UserID, "board", client.BoardID)
}

func (h *Hub) handleMessage(sender *Client, msg *Message) {
	switch msg.Type {
	case TypePresenceUpdate:
		h.handlePresenceUpdate(sender, msg)
	case TypeOpSubmit:
		h.handleOpSubmit(sender, msg)
	default:
		h.log.Warn("unknown message type", "type", msg.Type, "user", sender.UserID)
		sendError(sender, "unknown message type")
	}
}

func (h *Hub) room(boardID string) (*Room, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	room, ok := h.rooms[boardID]
	return room, ok
}

func (h *Hub) handleOpSubmit(sender *Client, msg *Message) {
	var submit OperationSubmitPayload
	if err := json.Unmarshal(msg.Payload, &submit); err != nil {
		h.log.Warn("invalid op payload", "error", err, "user", sender.UserID)
		sendError(sender, "invalid operation payload")
		return
	}

	room, ok := h.room(sender.BoardID)
	if !ok {
		return
	}
	op := submit.Operation
	if err := room.post(func(e *engine.Engine) { room.applyOp(e, sender, op) }); err != nil {
		h.log.Warn("submit op", "board", sender.BoardID, "error", err)
	}
}

func (h *Hub) handlePresenceUpdate(sender *Client, msg *Message) {
	var presence PresencePayload
	if err := json.Unmarshal(msg.Payload, &presence); err != nil {
		h.log.Warn("invalid presence payload", "error", err)
		return
	}

	presence.DisplayName = sender.DisplayName

	room, ok := h.room(sender.BoardID)
	if !ok {
		return
	}

	snap := room.engine.Snapshot()
	stored := room.presence.Update(sender.ClientID, presence, func(id string) bool {
		_, ok := snap.Elements[id]
		return ok
	})

	// Broadcast to other clients in room
	outPayload, _ := json.Marshal(stored)
	outMsg := &Message{
		Type:     TypePresenceUpdate,
		UserID:   sender.UserID,
		ClientID: sender.ClientID,
		Payload:  outPayload,
	}
	h.broadcastToRoom(sender.BoardID, outMsg, sender.ClientID)
}

// roomClients snapshots a room's clients so sends happen outside the lock.
func (h *Hub) roomClients(boardID, excludeClientID string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	room, ok := h.rooms[boardID]
	if !ok {
		return nil
	}

	clients := make([]*Client, 0, len(room.clients))
	for _, c := range room.clients {
		if c.ClientID != excludeClientID {
			clients = append(clients, c)
		}
	}
	return clients
}

func (h *Hub) broadcastToRoom(boardID string, msg *Message, excludeClientID string) {
	for _, c := range h.roomClients(boardID, excludeClientID) {
		c.Send(msg)
	}
}
