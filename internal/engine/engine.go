package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"chat-engine/internal/models"
	"chat-engine/internal/registry"
	"chat-engine/internal/services"
	"chat-engine/pkg/logger"

	"github.com/samber/lo"
)

// Conn is a live connection as the engine sees it: an authenticated user
// behind an outbound sink. The transport adapter implements it.
type Conn interface {
	registry.Sink
	ID() string
	UserID() int
	Nickname() string
}

// Engine routes inbound events to the presence registry, the membership
// resolver, the persistence gateway and the fan-out dispatcher.
type Engine struct {
	reg      *registry.Registry
	members  *services.MembershipService
	messages *services.MessageService
	streams  streamMap
}

func New(reg *registry.Registry, members *services.MembershipService, messages *services.MessageService) *Engine {
	return &Engine{reg: reg, members: members, messages: messages}
}

// HandleEvent decodes one inbound frame and applies it. Failures are
// reported back only to the originating connection; they never touch other
// users' state.
func (e *Engine) HandleEvent(ctx context.Context, conn Conn, raw []byte) {
	var evt models.Event
	if err := json.Unmarshal(raw, &evt); err != nil {
		e.sendError(conn, fmt.Errorf("malformed event: %w", err))
		return
	}

	var err error
	switch evt.Type {
	case models.EventAnnounceIdentity:
		var p models.AnnounceIdentityPayload
		if err = decodePayload(evt.Payload, &p); err == nil {
			err = e.AnnounceIdentity(ctx, conn, p.DisplayName)
		}
	case models.EventSendMessage:
		var p models.SendMessagePayload
		if err = decodePayload(evt.Payload, &p); err == nil {
			err = e.SendMessage(ctx, conn, p.ChatID, p.Text)
		}
	case models.EventCreateGroupChat:
		var p models.CreateGroupChatPayload
		if err = decodePayload(evt.Payload, &p); err == nil {
			err = e.CreateGroupChat(ctx, conn, p.Name, p.MemberIDs)
		}
	case models.EventJoinGroupChat:
		var p models.ChatRefPayload
		if err = decodePayload(evt.Payload, &p); err == nil {
			err = e.JoinGroupChat(ctx, conn, p.ChatID)
		}
	case models.EventLeaveGroupChat:
		var p models.ChatRefPayload
		if err = decodePayload(evt.Payload, &p); err == nil {
			err = e.LeaveGroupChat(ctx, conn, p.ChatID)
		}
	case models.EventRequestOpenChatCatalog:
		err = e.PushCatalogTo(ctx, conn)
	default:
		err = fmt.Errorf("unknown event type %q", evt.Type)
	}

	if err != nil {
		e.sendError(conn, err)
	}
}

func decodePayload(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return fmt.Errorf("missing event payload")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("malformed event payload: %w", err)
	}
	return nil
}

// AnnounceIdentity binds the connection to its user and announces the
// updated presence, then pushes the user's own open chats.
func (e *Engine) AnnounceIdentity(ctx context.Context, conn Conn, displayName string) error {
	name := strings.TrimSpace(displayName)
	if name == "" {
		name = conn.Nickname()
	}

	evicted := e.reg.Bind(conn.ID(), registry.Identity{UserID: conn.UserID(), DisplayName: name}, conn)
	for _, sink := range evicted {
		sink.Close()
	}
	logger.Info("User %d announced identity %q on connection %s", conn.UserID(), name, conn.ID())

	e.BroadcastPresence()
	return e.PushOwnOpenChats(ctx, conn.UserID())
}

// Disconnected unbinds the connection and, if it was bound, re-announces
// presence. Duplicate disconnect signals are no-ops.
func (e *Engine) Disconnected(conn Conn) {
	if e.reg.Unbind(conn.ID()) {
		logger.Info("User %d disconnected (connection %s)", conn.UserID(), conn.ID())
		e.BroadcastPresence()
	}
}

// CreateGroupChat records the chat, then notifies every member's live
// connections with their updated chat list and refreshes the public catalog.
func (e *Engine) CreateGroupChat(ctx context.Context, conn Conn, name string, memberIDs []int) error {
	chat, err := e.members.CreateGroupChat(ctx, conn.UserID(), name, memberIDs)
	if err != nil {
		return err
	}

	for _, userID := range lo.Uniq(append([]int{chat.OwnerID}, memberIDs...)) {
		if err := e.PushOwnOpenChats(ctx, userID); err != nil {
			logger.Error("Failed to push open chats to user %d: %v", userID, err)
		}
	}
	return e.BroadcastCatalog(ctx)
}

func (e *Engine) JoinGroupChat(ctx context.Context, conn Conn, chatID int) error {
	if err := e.members.JoinGroupChat(ctx, conn.UserID(), chatID); err != nil {
		return err
	}
	if err := e.PushOwnOpenChats(ctx, conn.UserID()); err != nil {
		return err
	}
	return e.BroadcastCatalog(ctx)
}

// LeaveGroupChat removes the membership. When the owner leaves, the policy
// here is to delete the chat: remaining members get their updated chat list
// and the catalog is refreshed for everyone.
func (e *Engine) LeaveGroupChat(ctx context.Context, conn Conn, chatID int) error {
	err := e.members.LeaveGroupChat(ctx, conn.UserID(), chatID)
	if errors.Is(err, models.ErrOwnerLeft) {
		memberIDs, mErr := e.members.MembersOf(ctx, chatID)
		if mErr != nil {
			return mErr
		}
		if dErr := e.members.DeleteGroupChat(ctx, chatID); dErr != nil {
			return dErr
		}
		logger.Info("Group chat %d deleted after owner %d left", chatID, conn.UserID())
		for _, userID := range memberIDs {
			if pErr := e.PushOwnOpenChats(ctx, userID); pErr != nil {
				logger.Error("Failed to push open chats to user %d: %v", userID, pErr)
			}
		}
		return e.BroadcastCatalog(ctx)
	}
	if err != nil {
		return err
	}
	return e.PushOwnOpenChats(ctx, conn.UserID())
}

func (e *Engine) sendError(conn Conn, err error) {
	payload := models.ErrorPayload{Code: models.ErrorCode(err), Message: err.Error()}
	data, mErr := models.EncodeEvent(models.EventError, payload)
	if mErr != nil {
		logger.Error("Failed to encode error event: %v", mErr)
		return
	}
	if !conn.Send(data) {
		logger.Debug("Dropped error event for connection %s", conn.ID())
	}
}
