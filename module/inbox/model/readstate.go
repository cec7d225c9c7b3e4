package model

import "time"

// ConversationReadState is one row of the conversations table,
// unique on (user_id, phone_number).
type ConversationReadState struct {
	UserID      string     `json:"user_id"`
	PhoneNumber string     `json:"phone_number"`
	LastReadAt  *time.Time `json:"last_read_at"` // nil = never read
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ReadReceipt is what a successful mark-as-read returns: the instant the
// server actually persisted, not the client's optimistic guess.
type ReadReceipt struct {
	PhoneNumber string    `json:"phone_number"`
	LastReadAt  time.Time `json:"last_read_at"`
}

// ConversationProjection is derived on every render and never persisted.
type ConversationProjection struct {
	PhoneNumber string    `json:"phone_number"`
	Messages    []Message `json:"messages"`
	LastMessage Message   `json:"last_message"`
	UnreadCount int       `json:"unread_count"`
}
