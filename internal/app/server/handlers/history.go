package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"syncroom/internal/core/services"
	"syncroom/pkg/middleware"
)

// HistoryHandler serves persisted chat history over HTTP so a client can
// backfill before its live connection goes up.
type HistoryHandler struct {
	chat  *services.ChatService
	limit int
}

func NewHistoryHandler(chat *services.ChatService, limit int) *HistoryHandler {
	return &HistoryHandler{chat: chat, limit: limit}
}

type historyMessage struct {
	ID         string    `json:"id"`
	AuthorID   string    `json:"authorId"`
	AuthorName string    `json:"authorName"`
	Text       string    `json:"text"`
	Timestamp  time.Time `json:"timestamp"`
}

func (h *HistoryHandler) Messages(w http.ResponseWriter, r *http.Request) {
	log, _ := r.Context().Value(middleware.LoggerKey).(*slog.Logger)
	if log == nil {
		log = slog.Default()
	}
	roomID := r.PathValue("roomID")
	if roomID == "" {
		http.Error(w, "room id required", http.StatusBadRequest)
		return
	}
	msgs, err := h.chat.History(r.Context(), roomID, h.limit)
	if err != nil {
		log.ErrorContext(r.Context(), "history handler - list failed", "room_id", roomID, "err", err)
		http.Error(w, "failed to load messages", http.StatusInternalServerError)
		return
	}
	out := make([]historyMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, historyMessage{
			ID:         m.ID.String(),
			AuthorID:   m.AuthorID,
			AuthorName: m.AuthorName,
			Text:       m.Body,
			Timestamp:  m.CreatedAt,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"messages": out})
}
