package engine

import (
	"context"

	"chat-engine/internal/models"
	"chat-engine/internal/registry"
	"chat-engine/pkg/logger"

	"github.com/samber/lo"
)

// BroadcastPresence pushes the full online-user list to every live
// connection. The list and the sink set come from one registry snapshot, so
// every connection in the round sees the same state.
func (e *Engine) BroadcastPresence() {
	users, sinks := e.reg.PresenceSnapshot()

	payload := lo.Map(users, func(id registry.Identity, _ int) models.OnlineUser {
		return models.OnlineUser{UserID: id.UserID, DisplayName: id.DisplayName}
	})
	data, err := models.EncodeEvent(models.EventOnlinePresence, payload)
	if err != nil {
		logger.Error("Failed to encode presence event: %v", err)
		return
	}

	for _, sink := range sinks {
		if !sink.Send(data) {
			logger.Debug("Dropped presence update for a connection")
		}
	}
}

// PushOwnOpenChats sends a user's group-chat list to that user's own
// connections only.
func (e *Engine) PushOwnOpenChats(ctx context.Context, userID int) error {
	sinks := e.reg.ConnectionsFor(userID)
	if len(sinks) == 0 {
		return nil
	}

	chats, err := e.members.UserGroupChats(ctx, userID)
	if err != nil {
		return err
	}

	data, err := models.EncodeEvent(models.EventOwnOpenChats, emptyAsList(chats))
	if err != nil {
		return err
	}
	for _, sink := range sinks {
		if !sink.Send(data) {
			logger.Debug("Dropped ownOpenChats for a connection of user %d", userID)
		}
	}
	return nil
}

// PushCatalogTo sends the full group-chat catalog to one connection.
func (e *Engine) PushCatalogTo(ctx context.Context, conn Conn) error {
	data, err := e.catalogEvent(ctx)
	if err != nil {
		return err
	}
	if !conn.Send(data) {
		logger.Debug("Dropped catalog for connection %s", conn.ID())
	}
	return nil
}

// BroadcastCatalog refreshes the group-chat catalog on every connection.
func (e *Engine) BroadcastCatalog(ctx context.Context) error {
	data, err := e.catalogEvent(ctx)
	if err != nil {
		return err
	}
	for _, sink := range e.reg.AllSinks() {
		if !sink.Send(data) {
			logger.Debug("Dropped catalog refresh for a connection")
		}
	}
	return nil
}

func (e *Engine) catalogEvent(ctx context.Context) ([]byte, error) {
	chats, err := e.members.GroupChatCatalog(ctx)
	if err != nil {
		return nil, err
	}
	return models.EncodeEvent(models.EventOpenChatCatalog, emptyAsList(chats))
}

// emptyAsList keeps empty chat lists encoded as [] rather than null.
func emptyAsList(chats []models.ChatSummary) []models.ChatSummary {
	if chats == nil {
		return []models.ChatSummary{}
	}
	return chats
}
