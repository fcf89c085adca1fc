package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"chat-engine/internal/auth"
	"chat-engine/internal/models"
	"chat-engine/internal/services"
	"chat-engine/pkg/logger"
)

// ChatHandlers is the synchronous surface the CRUD layer and reconnecting
// clients use: direct-chat creation, persisted member lists, and full
// message history backfill.
type ChatHandlers struct {
	members     *services.MembershipService
	messages    *services.MessageService
	authService *auth.Service
}

func NewChatHandlers(members *services.MembershipService, messages *services.MessageService, authService *auth.Service) *ChatHandlers {
	return &ChatHandlers{members: members, messages: messages, authService: authService}
}

func (h *ChatHandlers) CreateDirectChat(w http.ResponseWriter, r *http.Request) {
	user, err := h.getUserFromToken(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req models.CreateDirectChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	chatID, err := h.members.CreateDirectChat(r.Context(), user.ID, req.UserID)
	if err != nil {
		logger.Error("Create direct chat error: %v", err)
		writeServiceError(w, err)
		return
	}

	chat, err := h.members.Chat(r.Context(), chatID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(chat)
}

func (h *ChatHandlers) GetChatMembers(w http.ResponseWriter, r *http.Request) {
	user, err := h.getUserFromToken(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	chatID, err := h.getChatIDFromPath(r)
	if err != nil {
		http.Error(w, "invalid chat ID", http.StatusBadRequest)
		return
	}

	members, err := h.members.MemberDetails(r.Context(), chatID, user.ID)
	if err != nil {
		logger.Error("Get chat members error: %v", err)
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(members)
}

func (h *ChatHandlers) GetChatMessages(w http.ResponseWriter, r *http.Request) {
	user, err := h.getUserFromToken(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	chatID, err := h.getChatIDFromPath(r)
	if err != nil {
		http.Error(w, "invalid chat ID", http.StatusBadRequest)
		return
	}

	messages, err := h.messages.History(r.Context(), chatID, user.ID)
	if err != nil {
		logger.Error("Get chat messages error: %v", err)
		writeServiceError(w, err)
		return
	}
	if messages == nil {
		messages = []*models.Message{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(messages)
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrChatNotFound), errors.Is(err, models.ErrUserNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, models.ErrUnauthorized):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, models.ErrStoreUnavailable):
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
	default:
		http.Error(w, err.Error(), http.StatusBadRequest)
	}
}

func (h *ChatHandlers) getUserFromToken(r *http.Request) (*models.User, error) {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		return nil, fmt.Errorf("missing token")
	}
	return h.authService.GetUserFromToken(r.Context(), tokenStr)
}

func (h *ChatHandlers) getChatIDFromPath(r *http.Request) (int, error) {
	parts := strings.Split(r.URL.Path, "/")
	if len(parts) < 3 {
		return 0, fmt.Errorf("invalid path")
	}
	return strconv.Atoi(parts[2])
}
