package engine

import (
	"context"
	"sync"

	"chat-engine/internal/models"
	"chat-engine/pkg/logger"
)

// chatStream serializes the persist-then-dispatch path for one chat and
// carries its delivery sequence number. Holding mu across the store write
// and the fan-out guarantees that a connection sees one chat's messages in
// persisted order; it never touches the presence lock.
type chatStream struct {
	mu  sync.Mutex
	seq uint64
}

type streamMap struct {
	m sync.Map // chatID -> *chatStream
}

func (s *streamMap) get(chatID int) *chatStream {
	if st, ok := s.m.Load(chatID); ok {
		return st.(*chatStream)
	}
	st, _ := s.m.LoadOrStore(chatID, &chatStream{})
	return st.(*chatStream)
}

// SendMessage durably persists the message and fans it out to every live
// connection of every chat member. Persistence failures abort the send
// before any delivery; presence state is untouched.
func (e *Engine) SendMessage(ctx context.Context, conn Conn, chatID int, text string) error {
	st := e.streams.get(chatID)
	st.mu.Lock()
	defer st.mu.Unlock()

	chat, err := e.members.Chat(ctx, chatID)
	if err != nil {
		return err
	}

	msg, err := e.messages.Persist(ctx, chatID, conn.UserID(), text)
	if err != nil {
		return err
	}

	memberIDs, err := e.members.MembersOf(ctx, chatID)
	if err != nil {
		return err
	}

	st.seq++
	e.dispatch(msg, chat.IsGroup, st.seq, memberIDs)
	return nil
}

// dispatch delivers one persisted message at most once to each live
// connection of each member. Direct messages reach the other member's
// connections plus an echo on the sender's own, which for a two-member chat
// is every member connection; group messages reach every member connection
// including the sender's. Offline members receive nothing and backfill from
// history on reconnect.
func (e *Engine) dispatch(msg *models.Message, isGroup bool, seq uint64, memberIDs []int) {
	eventType := models.EventDirectMessage
	if isGroup {
		eventType = models.EventGroupMessage
	}

	payload := models.MessagePayload{
		ChatID:    msg.ChatID,
		Seq:       seq,
		SenderID:  msg.SenderID,
		Text:      msg.Text,
		CreatedAt: msg.CreatedAt,
	}
	data, err := models.EncodeEvent(eventType, payload)
	if err != nil {
		logger.Error("Failed to encode %s event: %v", eventType, err)
		return
	}

	for _, userID := range memberIDs {
		for _, sink := range e.reg.ConnectionsFor(userID) {
			if !sink.Send(data) {
				logger.Debug("Dropped message %d for a connection of user %d", msg.ID, userID)
			}
		}
	}
}
