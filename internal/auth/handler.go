package auth

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type guestRequest struct {
	DisplayName string `json:"displayName"`
	Passcode    string `json:"passcode"`
}

// Guest handles POST /auth/guest. An empty body is a nameless guest.
func (h *Handler) Guest(w http.ResponseWriter, r *http.Request) {
	var req guestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	result, err := h.service.Guest(req.DisplayName, req.Passcode)
	if err != nil {
		if errors.Is(err, ErrInvalidPasscode) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid passcode"})
			return
		}
		slog.Error("guest login failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
