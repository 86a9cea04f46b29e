// Package board serves the REST side of shared boards.
package board

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"regexp"

	"github.com/gorilla/mux"

	"github.com/inamate/canvas/internal/auth"
	"github.com/inamate/canvas/internal/collab"
	"github.com/inamate/canvas/internal/document"
	"github.com/inamate/canvas/internal/typeid"
)

var ErrInvalidBoardID = errors.New("invalid board id")

var boardIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidateID checks that id is usable as a room key and URL segment.
func ValidateID(id string) error {
	if !boardIDPattern.MatchString(id) {
		return ErrInvalidBoardID
	}
	return nil
}

// Source is the live board registry, usually the collaboration hub.
type Source interface {
	Board(ctx context.Context, boardID string) (*document.Board, error)
	OpenRooms() []collab.RoomInfo
}

type Handler struct {
	source Source
	log    *slog.Logger
}

func NewHandler(source Source, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{source: source, log: log.With("module", "board")}
}

// Create allocates a fresh board id. The board itself opens when the first
// client joins its room.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	id := typeid.NewBoardID()
	if u := auth.UserFromContext(r.Context()); u != nil {
		h.log.Info("board created", "board", id, "user", u.ID)
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// List returns the boards that currently have connected clients.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.source.OpenRooms())
}

// Get returns the current board JSON.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	boardID := mux.Vars(r)["boardId"]
	if err := ValidateID(boardID); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	b, err := h.source.Board(r.Context(), boardID)
	if err != nil {
		handleSourceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func handleSourceError(w http.ResponseWriter, log *slog.Logger, err error) {
	switch {
	case errors.Is(err, collab.ErrRoomClosed):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "board is closing, retry"})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "request cancelled"})
	default:
		log.Error("load board failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
