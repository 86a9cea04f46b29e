package collab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/inamate/canvas/internal/document"
	"github.com/inamate/canvas/internal/engine"
	"github.com/inamate/canvas/internal/render"
	"github.com/inamate/canvas/internal/typeid"
)

var ErrRoomClosed = errors.New("room closed")

// Room is one shared board. A single goroutine owns the room's engine:
// every op and frame runs through the inbox, so the engine never sees
// concurrent calls.
type Room struct {
	boardID   string
	hub       *Hub
	log       *slog.Logger
	engine    *engine.Engine
	clients   map[string]*Client // clientID -> client, guarded by hub.mu
	presence  *PresenceManager
	serverSeq int64

	inbox  chan func(*engine.Engine)
	cancel context.CancelFunc
	done   chan struct{}
}

func newRoom(ctx context.Context, h *Hub, boardID string) (*Room, error) {
	r := &Room{
		boardID:  boardID,
		hub:      h,
		log:      h.log.With("board", boardID),
		clients:  make(map[string]*Client),
		presence: NewPresenceManager(),
		inbox:    make(chan func(*engine.Engine), 64),
		done:     make(chan struct{}),
	}

	opts := h.opts.Engine
	opts.Painter = r
	opts.Log = r.log
	e, err := engine.New(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("room %s: %w", boardID, err)
	}
	r.engine = e

	if board, err := h.loadBoard(boardID); err != nil {
		r.log.Warn("load board", "error", err)
	} else if board != nil {
		if err := e.LoadBoard(board); err != nil {
			r.log.Warn("board loaded with errors", "error", err)
		}
	}

	ctx, r.cancel = context.WithCancel(ctx)
	go r.run(ctx, h.opts.FrameInterval)
	return r, nil
}

func (r *Room) run(ctx context.Context, interval time.Duration) {
	defer close(r.done)
	defer r.engine.Close()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case fn := <-r.inbox:
			fn(r.engine)
		case <-ticker.C:
			r.engine.Frame()
		case <-ctx.Done():
			return
		}
	}
}

// post queues fn to run on the room goroutine.
func (r *Room) post(fn func(*engine.Engine)) error {
	select {
	case r.inbox <- fn:
		return nil
	case <-r.done:
		return ErrRoomClosed
	}
}

// call runs fn on the room goroutine and waits for it.
func (r *Room) call(ctx context.Context, fn func(*engine.Engine)) error {
	finished := make(chan struct{})
	if err := r.post(func(e *engine.Engine) {
		defer close(finished)
		fn(e)
	}); err != nil {
		return err
	}
	select {
	case <-finished:
		return nil
	case <-r.done:
		return ErrRoomClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Room) stop() {
	r.cancel()
	<-r.done
}

// Paint sends a layer the engine just drew to every client. The message is
// encoded once and shared.
func (r *Room) Paint(layer render.LayerName, cmds []render.DrawCommand) error {
	payload, err := json.Marshal(FramePayload{Layer: layer, Commands: cmds})
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	data, err := json.Marshal(&Message{Type: TypeFrame, BoardID: r.boardID, Payload: payload})
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	for _, c := range r.hub.roomClients(r.boardID, "") {
		c.SendFrame(layer, data)
	}
	return nil
}

// sendBoard sends the current board to one client. Runs on the room
// goroutine.
func (r *Room) sendBoard(e *engine.Engine, c *Client) {
	board, err := e.Store().Board()
	if err != nil {
		r.log.Error("encode board", "error", err)
		sendError(c, "board unavailable")
		return
	}
	payload, err := json.Marshal(BoardSyncPayload{Board: board, ServerSeq: r.serverSeq})
	if err != nil {
		r.log.Error("marshal board", "error", err)
		return
	}
	c.Send(&Message{Type: TypeBoardSync, BoardID: r.boardID, Seq: r.serverSeq, Payload: payload})
}

// applyOp applies a submitted op, acks or nacks the sender and broadcasts
// it to everyone else. Runs on the room goroutine.
func (r *Room) applyOp(e *engine.Engine, sender *Client, op Operation) {
	if op.ID == "" {
		op.ID = typeid.NewOpID()
	}
	createdID, err := ApplyOperation(e.Store(), &op)
	if err != nil {
		r.log.Info("operation rejected", "op", op.ID, "type", op.Type, "user", sender.UserID, "error", err)
		nack, _ := json.Marshal(OperationNackPayload{OperationID: op.ID, Reason: err.Error()})
		sender.Send(&Message{Type: TypeOpNack, Payload: nack})
		return
	}

	r.serverSeq++
	ack, _ := json.Marshal(OperationAckPayload{
		OperationID:     op.ID,
		ServerSeq:       r.serverSeq,
		ServerTimestamp: GetServerTimestamp(),
		CreatedID:       createdID,
	})
	sender.Send(&Message{Type: TypeOpAck, Seq: r.serverSeq, Payload: ack})

	out, _ := json.Marshal(OperationBroadcastPayload{Operation: op, UserID: sender.UserID, ServerSeq: r.serverSeq})
	r.hub.broadcastToRoom(r.boardID, &Message{
		Type:    TypeOpBroadcast,
		UserID:  sender.UserID,
		Seq:     r.serverSeq,
		Payload: out,
	}, sender.ClientID)
}

func (r *Room) board(ctx context.Context) (*document.Board, error) {
	var (
		board *document.Board
		err   error
	)
	if callErr := r.call(ctx, func(e *engine.Engine) { board, err = e.Store().Board() }); callErr != nil {
		return nil, callErr
	}
	return board, err
}

func sendError(c *Client, msg string) {
	payload, _ := json.Marshal(ErrorPayload{Error: msg})
	c.Send(&Message{Type: TypeError, Payload: payload})
}
