// Package notifier is the live push endpoint: it fans a notification out to
// the clients subscribed to a channel. Delivery latency is simulated here;
// consumers reconcile by re-fetching on reconnect, so a dropped push is never
// replayed.
package notifier

import (
	"encoding/json"
	"log/slog"
	"math/rand"
	"net/http"
	"time"
)

type Handler struct {
	logger *slog.Logger
}

func NewHandler(logger *slog.Logger) *Handler {
	return &Handler{
		logger: logger,
	}
}

type notifyRequest struct {
	Channel string `json:"channel"`
	Event   string `json:"event"`
	Title   string `json:"title"`
	Body    string `json:"body"`
}

type notifyResponse struct {
	Status string `json:"status"`
}

func (h *Handler) HandleNotify(w http.ResponseWriter, r *http.Request) {
	var req notifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Channel == "" || req.Event == "" {
		h.writeError(w, http.StatusBadRequest, "channel and event are required")
		return
	}

	delay := time.Duration(20+rand.Intn(81)) * time.Millisecond
	time.Sleep(delay)

	h.logger.Info("notification delivered", "channel", req.Channel, "event", req.Event, "title", req.Title)

	h.writeJSON(w, http.StatusOK, notifyResponse{Status: "delivered"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
