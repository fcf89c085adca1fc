package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"chat-engine/internal/database"
	"chat-engine/internal/models"

	"github.com/stretchr/testify/require"
)

func seedUsers(t *testing.T, store *database.MemoryStore, usernames ...string) []int {
	t.Helper()
	ids := make([]int, 0, len(usernames))
	for _, name := range usernames {
		u, err := store.CreateUser(context.Background(), name, name, "hash")
		require.NoError(t, err)
		ids = append(ids, u.ID)
	}
	return ids
}

func TestCreateDirectChat_Deduplicates_Pair(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := database.NewMemoryStore()
	svc := NewMembershipService(store, store)
	ids := seedUsers(t, store, "alice", "bob")

	first, err := svc.CreateDirectChat(ctx, ids[0], ids[1])
	req.NoError(err)

	// Same pair in either order resolves to the same chat.
	second, err := svc.CreateDirectChat(ctx, ids[1], ids[0])
	req.NoError(err)
	req.Equal(first, second)

	chatID, ok, err := svc.DirectChatBetween(ctx, ids[0], ids[1])
	req.NoError(err)
	req.True(ok)
	req.Equal(first, chatID)
}

func TestCreateDirectChat_Rejects_Self_And_Unknown_User(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := database.NewMemoryStore()
	svc := NewMembershipService(store, store)
	ids := seedUsers(t, store, "alice")

	_, err := svc.CreateDirectChat(ctx, ids[0], ids[0])
	req.Error(err)

	_, err = svc.CreateDirectChat(ctx, ids[0], 999)
	req.ErrorIs(err, models.ErrUserNotFound)
}

// slowChatStore widens the race window between lookup and creation.
type slowChatStore struct {
	*database.MemoryStore
}

func (s *slowChatStore) DirectChatBetween(ctx context.Context, userA, userB int) (int, bool, error) {
	time.Sleep(10 * time.Millisecond)
	return s.MemoryStore.DirectChatBetween(ctx, userA, userB)
}

func TestCreateDirectChat_Concurrent_Callers_Share_One_Chat(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := database.NewMemoryStore()
	svc := NewMembershipService(&slowChatStore{store}, store)
	ids := seedUsers(t, store, "alice", "bob")

	const callers = 8
	results := make([]int, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			chatID, err := svc.CreateDirectChat(ctx, ids[0], ids[1])
			require.NoError(t, err)
			results[i] = chatID
		}(i)
	}
	wg.Wait()

	for _, chatID := range results {
		req.Equal(results[0], chatID)
	}
}

func TestCreateGroupChat_Always_Includes_Owner(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := database.NewMemoryStore()
	svc := NewMembershipService(store, store)
	ids := seedUsers(t, store, "alice", "bob", "carol")

	chat, err := svc.CreateGroupChat(ctx, ids[0], "team", []int{ids[1], ids[2]})
	req.NoError(err)
	req.True(chat.IsGroup)
	req.Equal(ids[0], chat.OwnerID)

	members, err := svc.MembersOf(ctx, chat.ID)
	req.NoError(err)
	req.ElementsMatch(ids, members)
}

func TestJoinGroupChat_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := database.NewMemoryStore()
	svc := NewMembershipService(store, store)
	ids := seedUsers(t, store, "alice", "bob")

	chat, err := svc.CreateGroupChat(ctx, ids[0], "team", nil)
	req.NoError(err)

	req.NoError(svc.JoinGroupChat(ctx, ids[1], chat.ID))
	req.NoError(svc.JoinGroupChat(ctx, ids[1], chat.ID))

	members, err := svc.MembersOf(ctx, chat.ID)
	req.NoError(err)
	req.Len(members, 2)
}

func TestJoinGroupChat_Unknown_Chat(t *testing.T) {
	req := require.New(t)
	store := database.NewMemoryStore()
	svc := NewMembershipService(store, store)
	ids := seedUsers(t, store, "alice")

	err := svc.JoinGroupChat(context.Background(), ids[0], 404)
	req.ErrorIs(err, models.ErrChatNotFound)
}

func TestLeaveGroupChat_Member_Leaves(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := database.NewMemoryStore()
	svc := NewMembershipService(store, store)
	ids := seedUsers(t, store, "alice", "bob")

	chat, err := svc.CreateGroupChat(ctx, ids[0], "team", []int{ids[1]})
	req.NoError(err)

	req.NoError(svc.LeaveGroupChat(ctx, ids[1], chat.ID))

	members, err := svc.MembersOf(ctx, chat.ID)
	req.NoError(err)
	req.Equal([]int{ids[0]}, members)
}

func TestLeaveGroupChat_Owner_Signals_OwnerLeft(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := database.NewMemoryStore()
	svc := NewMembershipService(store, store)
	ids := seedUsers(t, store, "alice", "bob")

	chat, err := svc.CreateGroupChat(ctx, ids[0], "team", []int{ids[1]})
	req.NoError(err)

	err = svc.LeaveGroupChat(ctx, ids[0], chat.ID)
	req.ErrorIs(err, models.ErrOwnerLeft)

	// The signal itself mutates nothing; policy is the caller's decision.
	members, err := svc.MembersOf(ctx, chat.ID)
	req.NoError(err)
	req.Len(members, 2)
}

func TestLeaveGroupChat_NonMember_Is_Unauthorized(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := database.NewMemoryStore()
	svc := NewMembershipService(store, store)
	ids := seedUsers(t, store, "alice", "bob")

	chat, err := svc.CreateGroupChat(ctx, ids[0], "team", nil)
	req.NoError(err)

	err = svc.LeaveGroupChat(ctx, ids[1], chat.ID)
	req.ErrorIs(err, models.ErrUnauthorized)
}

func TestMemberDetails_Requires_Membership(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := database.NewMemoryStore()
	svc := NewMembershipService(store, store)
	ids := seedUsers(t, store, "alice", "bob", "mallory")

	chat, err := svc.CreateGroupChat(ctx, ids[0], "team", []int{ids[1]})
	req.NoError(err)

	members, err := svc.MemberDetails(ctx, chat.ID, ids[0])
	req.NoError(err)
	req.Len(members, 2)

	_, err = svc.MemberDetails(ctx, chat.ID, ids[2])
	req.ErrorIs(err, models.ErrUnauthorized)
}
