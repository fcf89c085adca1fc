package services

import (
	"context"
	"fmt"

	"chat-engine/internal/database"
	"chat-engine/internal/models"

	"github.com/samber/lo"
	"golang.org/x/sync/singleflight"
)

// MembershipService resolves chat membership and owns chat lifecycle
// operations against the persistent store.
type MembershipService struct {
	chats database.ChatStore
	users database.UserStore
	// direct collapses concurrent direct-chat creations for the same pair
	// into one store call, so a creation race yields a single record.
	direct singleflight.Group
}

func NewMembershipService(chats database.ChatStore, users database.UserStore) *MembershipService {
	return &MembershipService{chats: chats, users: users}
}

func (s *MembershipService) Chat(ctx context.Context, chatID int) (*models.Chat, error) {
	return s.chats.GetChatByID(ctx, chatID)
}

// MembersOf returns the user ids that should receive events for a chat.
func (s *MembershipService) MembersOf(ctx context.Context, chatID int) ([]int, error) {
	if _, err := s.chats.GetChatByID(ctx, chatID); err != nil {
		return nil, err
	}
	return s.chats.ChatMemberIDs(ctx, chatID)
}

func (s *MembershipService) DirectChatBetween(ctx context.Context, userA, userB int) (int, bool, error) {
	return s.chats.DirectChatBetween(ctx, userA, userB)
}

// CreateDirectChat returns the chat between the pair, creating it if needed.
// Concurrent callers for the same pair share one result.
func (s *MembershipService) CreateDirectChat(ctx context.Context, userA, userB int) (int, error) {
	if userA == userB {
		return 0, fmt.Errorf("cannot create chat with yourself")
	}
	if _, err := s.users.GetUserByID(ctx, userB); err != nil {
		return 0, err
	}

	key := directChatKey(userA, userB)
	chatID, err, _ := s.direct.Do(key, func() (any, error) {
		if existing, ok, err := s.chats.DirectChatBetween(ctx, userA, userB); err != nil {
			return 0, err
		} else if ok {
			return existing, nil
		}
		return s.chats.CreateDirectChat(ctx, userA, userB)
	})
	if err != nil {
		return 0, err
	}
	return chatID.(int), nil
}

func directChatKey(userA, userB int) string {
	if userA > userB {
		userA, userB = userB, userA
	}
	return fmt.Sprintf("direct:%d:%d", userA, userB)
}

// CreateGroupChat records a group chat. The owner is always a member, even
// when omitted from memberIDs.
func (s *MembershipService) CreateGroupChat(ctx context.Context, ownerID int, name string, memberIDs []int) (*models.Chat, error) {
	if name == "" {
		return nil, fmt.Errorf("chat name is required")
	}
	members := lo.Uniq(append([]int{ownerID}, memberIDs...))
	return s.chats.CreateGroupChat(ctx, ownerID, name, members)
}

// JoinGroupChat is idempotent; joining a chat twice is a no-op.
func (s *MembershipService) JoinGroupChat(ctx context.Context, userID, chatID int) error {
	chat, err := s.chats.GetChatByID(ctx, chatID)
	if err != nil {
		return err
	}
	if !chat.IsGroup {
		return models.ErrChatNotFound
	}
	return s.chats.AddChatMember(ctx, chatID, userID)
}

// LeaveGroupChat removes the user's membership. When the leaving user owns
// the chat it returns ErrOwnerLeft without mutating anything, leaving the
// policy decision to the caller.
func (s *MembershipService) LeaveGroupChat(ctx context.Context, userID, chatID int) error {
	chat, err := s.chats.GetChatByID(ctx, chatID)
	if err != nil {
		return err
	}
	if !chat.IsGroup {
		return models.ErrChatNotFound
	}

	isMember, err := s.chats.IsChatMember(ctx, chatID, userID)
	if err != nil {
		return err
	}
	if !isMember {
		return models.ErrUnauthorized
	}

	if chat.OwnerID == userID {
		return models.ErrOwnerLeft
	}
	return s.chats.RemoveChatMember(ctx, chatID, userID)
}

// DeleteGroupChat removes a chat with its memberships and messages.
func (s *MembershipService) DeleteGroupChat(ctx context.Context, chatID int) error {
	return s.chats.DeleteChat(ctx, chatID)
}

func (s *MembershipService) UserGroupChats(ctx context.Context, userID int) ([]models.ChatSummary, error) {
	return s.chats.ListUserGroupChats(ctx, userID)
}

// GroupChatCatalog lists every group chat for the discovery/join UI.
func (s *MembershipService) GroupChatCatalog(ctx context.Context) ([]models.ChatSummary, error) {
	return s.chats.ListGroupChats(ctx)
}

// MemberDetails is the collaborator-facing member list with user details.
func (s *MembershipService) MemberDetails(ctx context.Context, chatID, requesterID int) ([]*models.Member, error) {
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
	return s.chats.GetChatMembers(ctx, chatID)
}
