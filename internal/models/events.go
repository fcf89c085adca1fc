package models

import (
	"encoding/json"
	"time"
)

type EventType string

// Inbound event types (client to server).
const (
	EventAnnounceIdentity       EventType = "announceIdentity"
	EventSendMessage            EventType = "sendMessage"
	EventCreateGroupChat        EventType = "createGroupChat"
	EventJoinGroupChat          EventType = "joinGroupChat"
	EventLeaveGroupChat         EventType = "leaveGroupChat"
	EventRequestOpenChatCatalog EventType = "requestOpenChatCatalog"
)

// Outbound event types (server to client).
const (
	EventOnlinePresence  EventType = "onlinePresence"
	EventOwnOpenChats    EventType = "ownOpenChats"
	EventOpenChatCatalog EventType = "openChatCatalog"
	EventDirectMessage   EventType = "directMessage"
	EventGroupMessage    EventType = "groupMessage"
	EventError           EventType = "error"
)

// Event is the wire envelope for every websocket frame in both directions.
type Event struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type AnnounceIdentityPayload struct {
	DisplayName string `json:"displayName"`
}

type SendMessagePayload struct {
	ChatID int    `json:"chatId"`
	Text   string `json:"text"`
}

type CreateGroupChatPayload struct {
	Name      string `json:"name"`
	MemberIDs []int  `json:"memberIds"`
}

// ChatRefPayload covers joinGroupChat and leaveGroupChat.
type ChatRefPayload struct {
	ChatID int `json:"chatId"`
}

type OnlineUser struct {
	UserID      int    `json:"userId"`
	DisplayName string `json:"displayName"`
}

// MessagePayload carries a fanned-out message. Seq is a per-chat sequence
// number; within one chat it increases in the order messages were persisted.
type MessagePayload struct {
	ChatID    int       `json:"chatId"`
	Seq       uint64    `json:"seq"`
	SenderID  int       `json:"senderId"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// EncodeEvent marshals a payload into a framed event ready to write to a
// connection.
func EncodeEvent(t EventType, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Event{Type: t, Payload: raw})
}
