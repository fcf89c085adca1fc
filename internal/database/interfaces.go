package database

import (
	"context"

	"chat-engine/internal/models"
)

type UserStore interface {
	CreateUser(ctx context.Context, username, nickname, passwordHash string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByID(ctx context.Context, id int) (*models.User, error)
}

type ChatStore interface {
	GetChatByID(ctx context.Context, id int) (*models.Chat, error)
	// DirectChatBetween returns the earliest-created non-group chat whose
	// members are exactly the given pair.
	DirectChatBetween(ctx context.Context, userA, userB int) (int, bool, error)
	// CreateDirectChat re-checks for an existing pair chat inside the same
	// transaction and returns it instead of inserting a duplicate.
	CreateDirectChat(ctx context.Context, userA, userB int) (int, error)
	CreateGroupChat(ctx context.Context, ownerID int, name string, memberIDs []int) (*models.Chat, error)
	AddChatMember(ctx context.Context, chatID, userID int) error
	RemoveChatMember(ctx context.Context, chatID, userID int) error
	IsChatMember(ctx context.Context, chatID, userID int) (bool, error)
	ChatMemberIDs(ctx context.Context, chatID int) ([]int, error)
	GetChatMembers(ctx context.Context, chatID int) ([]*models.Member, error)
	ListUserGroupChats(ctx context.Context, userID int) ([]models.ChatSummary, error)
	ListGroupChats(ctx context.Context) ([]models.ChatSummary, error)
	DeleteChat(ctx context.Context, chatID int) error
}

type MessageStore interface {
	// SaveMessage assigns the message id and createdAt from the store clock
	// at insert time.
	SaveMessage(ctx context.Context, chatID, senderID int, text string) (*models.Message, error)
	ChatMessages(ctx context.Context, chatID int) ([]*models.Message, error)
}

type Store interface {
	UserStore
	ChatStore
	MessageStore
	Close() error
}
