package services

import (
	"context"
	"testing"

	"chat-engine/internal/database"
	"chat-engine/internal/models"

	"github.com/stretchr/testify/require"
)

func TestPersist_Stores_Message_With_Store_Timestamp(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := database.NewMemoryStore()
	members := NewMembershipService(store, store)
	svc := NewMessageService(store, store)
	ids := seedUsers(t, store, "alice", "bob")

	chatID, err := members.CreateDirectChat(ctx, ids[0], ids[1])
	req.NoError(err)

	msg, err := svc.Persist(ctx, chatID, ids[0], "  hello  ")
	req.NoError(err)
	req.NotZero(msg.ID)
	req.Equal("hello", msg.Text)
	req.Equal(chatID, msg.ChatID)
	req.Equal(ids[0], msg.SenderID)
	req.False(msg.CreatedAt.IsZero())
}

func TestPersist_Rejects_Blank_Text(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := database.NewMemoryStore()
	members := NewMembershipService(store, store)
	svc := NewMessageService(store, store)
	ids := seedUsers(t, store, "alice", "bob")

	chatID, err := members.CreateDirectChat(ctx, ids[0], ids[1])
	req.NoError(err)

	_, err = svc.Persist(ctx, chatID, ids[0], "   \t\n")
	req.ErrorIs(err, models.ErrEmptyMessage)

	history, err := svc.History(ctx, chatID, ids[0])
	req.NoError(err)
	req.Empty(history)
}

func TestPersist_Unknown_Chat(t *testing.T) {
	req := require.New(t)
	store := database.NewMemoryStore()
	svc := NewMessageService(store, store)

	_, err := svc.Persist(context.Background(), 404, 1, "hello")
	req.ErrorIs(err, models.ErrChatNotFound)
}

func TestPersist_NonMember_Is_Unauthorized(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := database.NewMemoryStore()
	members := NewMembershipService(store, store)
	svc := NewMessageService(store, store)
	ids := seedUsers(t, store, "alice", "bob", "mallory")

	chatID, err := members.CreateDirectChat(ctx, ids[0], ids[1])
	req.NoError(err)

	_, err = svc.Persist(ctx, chatID, ids[2], "hello")
	req.ErrorIs(err, models.ErrUnauthorized)
}

func TestHistory_Returns_Messages_Oldest_First(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := database.NewMemoryStore()
	members := NewMembershipService(store, store)
	svc := NewMessageService(store, store)
	ids := seedUsers(t, store, "alice", "bob")

	chatID, err := members.CreateDirectChat(ctx, ids[0], ids[1])
	req.NoError(err)

	for _, text := range []string{"one", "two", "three"} {
		_, err := svc.Persist(ctx, chatID, ids[0], text)
		req.NoError(err)
	}

	history, err := svc.History(ctx, chatID, ids[1])
	req.NoError(err)
	req.Len(history, 3)
	req.Equal("one", history[0].Text)
	req.Equal("three", history[2].Text)

	_, err = svc.History(ctx, chatID, 999)
	req.ErrorIs(err, models.ErrUnauthorized)
}
