package services

import (
	"context"
	"strings"

	"chat-engine/internal/database"
	"chat-engine/internal/models"
)

// MessageService is the persistence gateway: it validates and durably stores
// a message before anything is fanned out. The stored record carries the
// canonical id and timestamp assigned by the store clock at insert time.
type MessageService struct {
	chats    database.ChatStore
	messages database.MessageStore
}

func NewMessageService(chats database.ChatStore, messages database.MessageStore) *MessageService {
	return &MessageService{chats: chats, messages: messages}
}

// Persist stores a message after validating the chat, the text, and the
// sender's membership.
func (s *MessageService) Persist(ctx context.Context, chatID, senderID int, text string) (*models.Message, error) {
	if _, err := s.chats.GetChatByID(ctx, chatID); err != nil {
		return nil, err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, models.ErrEmptyMessage
	}

	isMember, err := s.chats.IsChatMember(ctx, chatID, senderID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, models.ErrUnauthorized
	}

	return s.messages.SaveMessage(ctx, chatID, senderID, text)
}

// History returns a chat's full persisted message history, oldest first.
// Clients use it to backfill state after reconnecting; the fan-out path
// never replays it.
func (s *MessageService) History(ctx context.Context, chatID, requesterID int) ([]*models.Message, error) {
	if _, err := s.chats.GetChatByID(ctx, chatID); err != nil {
		return nil, err
	}
	isMember, err := s.chats.IsChatMember(ctx, chatID, requesterID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, models.ErrUnauthorized
	}
	return s.messages.ChatMessages(ctx, chatID)
}
