package handlers

import (
	"net/http"

	"github.com/toolshed/marketplace/internal/application/services"
)

// MessageHandler handles conversation requests of the signed-in user
type MessageHandler struct {
	conversations *services.ConversationService
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(conversations *services.ConversationService) *MessageHandler {
	return &MessageHandler{conversations: conversations}
}

// Threads handles GET /api/messages
func (h *MessageHandler) Threads(w http.ResponseWriter, r *http.Request) {
	threads, err := h.conversations.ThreadsFor(r.Context(), currentUser(r).ID)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"conversations": threads,
		"count":         len(threads),
	})
}

// Thread handles GET /api/messages/{userId}
func (h *MessageHandler) Thread(w http.ResponseWriter, r *http.Request) {
	messages, err := h.conversations.Thread(r.Context(), currentUser(r).ID, r.PathValue("userId"))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"messages": messages,
		"count":    len(messages),
	})
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

// Send handles POST /api/messages/{userId}
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	message, err := h.conversations.SendMessage(r.Context(), currentUser(r).ID, r.PathValue("userId"), req.Content)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, message)
}
