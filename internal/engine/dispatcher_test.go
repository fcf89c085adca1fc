package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"chat-engine/internal/database"
	"chat-engine/internal/models"

	"github.com/stretchr/testify/require"
)

// callLog records the order of store writes and connection deliveries.
type callLog struct {
	mu      sync.Mutex
	entries []string
}

func (l *callLog) add(entry string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
}

func (l *callLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.entries...)
}

type recordingMessageStore struct {
	*database.MemoryStore
	log *callLog
}

func (s *recordingMessageStore) SaveMessage(ctx context.Context, chatID, senderID int, text string) (*models.Message, error) {
	msg, err := s.MemoryStore.SaveMessage(ctx, chatID, senderID, text)
	if err == nil {
		s.log.add("persist")
	}
	return msg, err
}

type recordingConn struct {
	*fakeConn
	log *callLog
}

func (c *recordingConn) Send(payload []byte) bool {
	c.log.add("deliver")
	return c.fakeConn.Send(payload)
}

func TestSendMessage_Persists_Before_Any_Delivery(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := database.NewMemoryStore()
	log := &callLog{}
	env := newTestEnvWith(store, store, &recordingMessageStore{MemoryStore: store, log: log})

	aliceUser, err := store.CreateUser(ctx, "alice", "alice", "hash")
	req.NoError(err)
	bobUser, err := store.CreateUser(ctx, "bob", "bob", "hash")
	req.NoError(err)

	alice := &recordingConn{fakeConn: newFakeConn(aliceUser.ID, "alice"), log: log}
	bob := &recordingConn{fakeConn: newFakeConn(bobUser.ID, "bob"), log: log}
	req.NoError(env.eng.AnnounceIdentity(ctx, alice, "alice"))
	req.NoError(env.eng.AnnounceIdentity(ctx, bob, "bob"))

	chatID, err := env.members.CreateDirectChat(ctx, aliceUser.ID, bobUser.ID)
	req.NoError(err)

	log.entries = nil
	req.NoError(env.eng.SendMessage(ctx, alice, chatID, "hello"))

	entries := log.snapshot()
	req.NotEmpty(entries)
	req.Equal("persist", entries[0])
	for _, entry := range entries[1:] {
		req.Equal("deliver", entry)
	}
}

func TestSendMessage_Direct_Reaches_Both_Members_With_Sender_Echo(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := database.NewMemoryStore()
	env := newTestEnvWith(store, store, store)

	a, err := store.CreateUser(ctx, "alice", "alice", "hash")
	req.NoError(err)
	b, err := store.CreateUser(ctx, "bob", "bob", "hash")
	req.NoError(err)

	alicePhone := env.connect(t, a.ID, "alice")
	aliceLaptop := env.connect(t, a.ID, "alice")
	bob := env.connect(t, b.ID, "bob")

	chatID, err := env.members.CreateDirectChat(ctx, a.ID, b.ID)
	req.NoError(err)

	req.NoError(env.eng.SendMessage(ctx, alicePhone, chatID, "hi"))

	// Echo keeps the sender's other devices in sync.
	req.Len(alicePhone.messages(t, models.EventDirectMessage), 1)
	req.Len(aliceLaptop.messages(t, models.EventDirectMessage), 1)
	req.Len(bob.messages(t, models.EventDirectMessage), 1)
	req.Empty(bob.messages(t, models.EventGroupMessage))
}

func TestSendMessage_Group_Skips_Offline_Members(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := database.NewMemoryStore()
	env := newTestEnvWith(store, store, store)

	var ids []int
	for _, name := range []string{"a", "b", "c"} {
		u, err := store.CreateUser(ctx, name, name, "hash")
		req.NoError(err)
		ids = append(ids, u.ID)
	}

	// Only A and C are online; B never connects.
	a := env.connect(t, ids[0], "a")
	c := env.connect(t, ids[2], "c")

	chat, err := env.members.CreateGroupChat(ctx, ids[0], "team", ids[1:])
	req.NoError(err)

	req.NoError(env.eng.SendMessage(ctx, a, chat.ID, "hello team"))

	req.Len(a.messages(t, models.EventGroupMessage), 1)
	req.Len(c.messages(t, models.EventGroupMessage), 1)

	// B connects later: nothing was delivered in real time, history has it.
	b := env.connect(t, ids[1], "b")
	req.Empty(b.messages(t, models.EventGroupMessage))
	stored, err := store.ChatMessages(ctx, chat.ID)
	req.NoError(err)
	req.Len(stored, 1)
}

func TestSendMessage_Sequence_Increases_In_Persisted_Order(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := database.NewMemoryStore()
	env := newTestEnvWith(store, store, store)

	a, err := store.CreateUser(ctx, "alice", "alice", "hash")
	req.NoError(err)
	b, err := store.CreateUser(ctx, "bob", "bob", "hash")
	req.NoError(err)

	alice := env.connect(t, a.ID, "alice")
	bob := env.connect(t, b.ID, "bob")

	chatID, err := env.members.CreateDirectChat(ctx, a.ID, b.ID)
	req.NoError(err)

	for i := 1; i <= 5; i++ {
		req.NoError(env.eng.SendMessage(ctx, alice, chatID, fmt.Sprintf("msg %d", i)))
	}

	got := bob.messages(t, models.EventDirectMessage)
	req.Len(got, 5)
	for i, msg := range got {
		req.Equal(uint64(i+1), msg.Seq)
		req.Equal(fmt.Sprintf("msg %d", i+1), msg.Text)
	}
}

func TestSendMessage_Validation_Failures_Reach_Sender_Only(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := database.NewMemoryStore()
	env := newTestEnvWith(store, store, store)

	a, err := store.CreateUser(ctx, "alice", "alice", "hash")
	req.NoError(err)
	b, err := store.CreateUser(ctx, "bob", "bob", "hash")
	req.NoError(err)

	alice := env.connect(t, a.ID, "alice")
	bob := env.connect(t, b.ID, "bob")

	chatID, err := env.members.CreateDirectChat(ctx, a.ID, b.ID)
	req.NoError(err)

	req.ErrorIs(env.eng.SendMessage(ctx, alice, chatID, "   "), models.ErrEmptyMessage)
	req.ErrorIs(env.eng.SendMessage(ctx, alice, 404, "hello"), models.ErrChatNotFound)

	req.Empty(bob.messages(t, models.EventDirectMessage))
	stored, err := store.ChatMessages(ctx, chatID)
	req.NoError(err)
	req.Empty(stored)
}

// failingMessageStore simulates a transient persistence outage.
type failingMessageStore struct {
	*database.MemoryStore
}

func (s *failingMessageStore) SaveMessage(ctx context.Context, chatID, senderID int, text string) (*models.Message, error) {
	return nil, fmt.Errorf("%w: connection reset", models.ErrStoreUnavailable)
}

func TestSendMessage_Store_Failure_Aborts_Fanout_And_Keeps_Presence(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := database.NewMemoryStore()
	env := newTestEnvWith(store, store, &failingMessageStore{store})

	a, err := store.CreateUser(ctx, "alice", "alice", "hash")
	req.NoError(err)
	b, err := store.CreateUser(ctx, "bob", "bob", "hash")
	req.NoError(err)

	alice := env.connect(t, a.ID, "alice")
	bob := env.connect(t, b.ID, "bob")

	chatID, err := env.members.CreateDirectChat(ctx, a.ID, b.ID)
	req.NoError(err)

	err = env.eng.SendMessage(ctx, alice, chatID, "hello")
	req.ErrorIs(err, models.ErrStoreUnavailable)

	req.Empty(bob.messages(t, models.EventDirectMessage))
	req.Len(env.reg.OnlineUsers(), 2)

	// The failure surfaces as an error event on the sender's connection
	// when it arrives through the wire path.
	env.eng.HandleEvent(ctx, alice, []byte(fmt.Sprintf(`{"type":"sendMessage","payload":{"chatId":%d,"text":"hi"}}`, chatID)))
	errs := alice.eventsOfType(models.EventError)
	req.NotEmpty(errs)
	req.Empty(bob.eventsOfType(models.EventError))
}
