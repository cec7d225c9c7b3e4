package model

import "time"

type MessageDirection string

const (
	DirectionReceived MessageDirection = "received"
	DirectionSent     MessageDirection = "sent"
)

// Message is owned by the messaging provider; we never write it back.
type Message struct {
	SID        string           `json:"message_sid"`
	From       string           `json:"from"`
	To         string           `json:"to"`
	Direction  MessageDirection `json:"direction"`
	Body       string           `json:"body"`
	MediaCount int              `json:"media_count"`
	Timestamp  time.Time        `json:"date"`
	Status     string           `json:"status"` // provider label, informational only
}
