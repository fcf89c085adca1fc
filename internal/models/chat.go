package models

import "time"

// Chat is a conversation record. Direct chats have exactly two members and
// no owner; group chats carry a name and the creating user as owner.
type Chat struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	IsGroup   bool      `json:"is_group"`
	OwnerID   int       `json:"owner_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatSummary is the shape pushed in ownOpenChats and openChatCatalog events.
type ChatSummary struct {
	ChatID   int    `json:"chatId"`
	ChatName string `json:"chatName"`
}

type Member struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Nickname string `json:"nickname"`
}

type Message struct {
	ID        int       `json:"id"`
	ChatID    int       `json:"chatId"`
	SenderID  int       `json:"senderId"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

type CreateDirectChatRequest struct {
	UserID int `json:"userId"`
}
