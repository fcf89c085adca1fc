package database

import (
	"context"
	"sort"
	"sync"
	"time"

	"chat-engine/internal/models"
)

// MemoryStore is an in-process Store used by tests and local development.
// It mirrors the Postgres semantics: ids are assigned in insertion order and
// message timestamps come from a single clock read at save time.
type MemoryStore struct {
	mu      sync.Mutex
	nextID  int
	users   map[int]*models.User
	chats   map[int]*models.Chat
	members map[int]map[int]struct{} // chatID -> set of userIDs
	msgs    map[int][]*models.Message
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   make(map[int]*models.User),
		chats:   make(map[int]*models.Chat),
		members: make(map[int]map[int]struct{}),
		msgs:    make(map[int][]*models.Message),
	}
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) nextIDLocked() int {
	s.nextID++
	return s.nextID
}

// User store

func (s *MemoryStore) CreateUser(ctx context.Context, username, nickname, passwordHash string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user := &models.User{
		ID:           s.nextIDLocked(),
		Username:     username,
		Nickname:     nickname,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	}
	s.users[user.ID] = user
	return user, nil
}

func (s *MemoryStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, models.ErrUserNotFound
}

func (s *MemoryStore) GetUserByID(ctx context.Context, id int) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

// Chat store

func (s *MemoryStore) GetChatByID(ctx context.Context, id int) (*models.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chat, ok := s.chats[id]
	if !ok {
		return nil, models.ErrChatNotFound
	}
	cp := *chat
	return &cp, nil
}

func (s *MemoryStore) directChatBetweenLocked(userA, userB int) (int, bool) {
	best := 0
	for id, chat := range s.chats {
		if chat.IsGroup {
			continue
		}
		set := s.members[id]
		if len(set) != 2 {
			continue
		}
		if _, okA := set[userA]; !okA {
			continue
		}
		if _, okB := set[userB]; !okB {
			continue
		}
		// Ids are assigned in creation order, so the lowest id is the
		// earliest-created chat.
		if best == 0 || id < best {
			best = id
		}
	}
	return best, best != 0
}

func (s *MemoryStore) DirectChatBetween(ctx context.Context, userA, userB int) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.directChatBetweenLocked(userA, userB)
	return id, ok, nil
}

func (s *MemoryStore) CreateDirectChat(ctx context.Context, userA, userB int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.directChatBetweenLocked(userA, userB); ok {
		return id, nil
	}

	chat := &models.Chat{ID: s.nextIDLocked(), CreatedAt: time.Now()}
	s.chats[chat.ID] = chat
	s.members[chat.ID] = map[int]struct{}{userA: {}, userB: {}}
	return chat.ID, nil
}

func (s *MemoryStore) CreateGroupChat(ctx context.Context, ownerID int, name string, memberIDs []int) (*models.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chat := &models.Chat{
		ID:        s.nextIDLocked(),
		Name:      name,
		IsGroup:   true,
		OwnerID:   ownerID,
		CreatedAt: time.Now(),
	}
	s.chats[chat.ID] = chat

	set := make(map[int]struct{}, len(memberIDs))
	for _, id := range memberIDs {
		set[id] = struct{}{}
	}
	s.members[chat.ID] = set

	cp := *chat
	return &cp, nil
}

func (s *MemoryStore) AddChatMember(ctx context.Context, chatID, userID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if set, ok := s.members[chatID]; ok {
		set[userID] = struct{}{}
	}
	return nil
}

func (s *MemoryStore) RemoveChatMember(ctx context.Context, chatID, userID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if set, ok := s.members[chatID]; ok {
		delete(set, userID)
	}
	return nil
}

func (s *MemoryStore) IsChatMember(ctx context.Context, chatID, userID int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.members[chatID][userID]
	return ok, nil
}

func (s *MemoryStore) ChatMemberIDs(ctx context.Context, chatID int) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []int
	for id := range s.members[chatID] {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids, nil
}

func (s *MemoryStore) GetChatMembers(ctx context.Context, chatID int) ([]*models.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var members []*models.Member
	for id := range s.members[chatID] {
		if u, ok := s.users[id]; ok {
			members = append(members, &models.Member{ID: u.ID, Username: u.Username, Nickname: u.Nickname})
		}
	}
	sort.Slice(members, func(i, j int) bool { return members[i].Username < members[j].Username })
	return members, nil
}

func (s *MemoryStore) ListUserGroupChats(ctx context.Context, userID int) ([]models.ChatSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var chats []models.ChatSummary
	for id, chat := range s.chats {
		if !chat.IsGroup {
			continue
		}
		if _, ok := s.members[id][userID]; ok {
			chats = append(chats, models.ChatSummary{ChatID: id, ChatName: chat.Name})
		}
	}
	sortSummaries(chats)
	return chats, nil
}

func (s *MemoryStore) ListGroupChats(ctx context.Context) ([]models.ChatSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var chats []models.ChatSummary
	for id, chat := range s.chats {
		if chat.IsGroup {
			chats = append(chats, models.ChatSummary{ChatID: id, ChatName: chat.Name})
		}
	}
	sortSummaries(chats)
	return chats, nil
}

func sortSummaries(chats []models.ChatSummary) {
	sort.Slice(chats, func(i, j int) bool {
		if chats[i].ChatName != chats[j].ChatName {
			return chats[i].ChatName < chats[j].ChatName
		}
		return chats[i].ChatID < chats[j].ChatID
	})
}

func (s *MemoryStore) DeleteChat(ctx context.Context, chatID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.chats, chatID)
	delete(s.members, chatID)
	delete(s.msgs, chatID)
	return nil
}

// Message store

func (s *MemoryStore) SaveMessage(ctx context.Context, chatID, senderID int, text string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := &models.Message{
		ID:        s.nextIDLocked(),
		ChatID:    chatID,
		SenderID:  senderID,
		Text:      text,
		CreatedAt: time.Now(),
	}
	s.msgs[chatID] = append(s.msgs[chatID], msg)

	cp := *msg
	return &cp, nil
}

func (s *MemoryStore) ChatMessages(ctx context.Context, chatID int) ([]*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*models.Message, 0, len(s.msgs[chatID]))
	for _, m := range s.msgs[chatID] {
		cp := *m
		out = append(out, &cp)
	}
	return out, nil
}
