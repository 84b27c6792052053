package models

import "time"

// Status is the delivery lifecycle of a message. It only ever moves
// forward: sent -> delivered -> seen.
type Status string

const (
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusSeen      Status = "seen"
)

// Rank orders statuses so forward-only transitions can be checked.
func (s Status) Rank() int {
	switch s {
	case StatusSent:
		return 0
	case StatusDelivered:
		return 1
	case StatusSeen:
		return 2
	}
	return -1
}

// Before reports whether s is strictly earlier in the lifecycle than other.
func (s Status) Before(other Status) bool {
	return s.Rank() < other.Rank()
}

type User struct {
	ID          string     `bson:"_id" json:"id"`
	DisplayName string     `bson:"display_name" json:"display_name"`
	Email       string     `bson:"email,omitempty" json:"email,omitempty"`
	PhotoURL    string     `bson:"photo_url,omitempty" json:"photo_url,omitempty"`
	Online      bool       `bson:"is_online" json:"is_online"`
	LastSeen    *time.Time `bson:"last_seen,omitempty" json:"last_seen,omitempty"`
	LastLogin   time.Time  `bson:"last_login" json:"last_login"`
}

// Message belongs to exactly one conversation. Sender name and photo are
// captured at send time and never updated afterwards. Timestamp is assigned
// by the backend and stays nil until the write is confirmed.
type Message struct {
	ID          string     `bson:"_id,omitempty" json:"id"`
	ChatID      string     `bson:"chat_id" json:"chat_id"`
	SenderID    string     `bson:"sender_id" json:"sender_id"`
	SenderName  string     `bson:"sender_name" json:"sender_name"`
	SenderPhoto string     `bson:"sender_photo,omitempty" json:"sender_photo,omitempty"`
	Text        string     `bson:"text" json:"text"`
	Status      Status     `bson:"status" json:"status"`
	Timestamp   *time.Time `bson:"timestamp,omitempty" json:"timestamp,omitempty"`
}

// TypingFlag is the ephemeral per-(chat, user) indicator. Not historical,
// overwritten in place.
type TypingFlag struct {
	ChatID string `bson:"chat_id" json:"chat_id"`
	UserID string `bson:"user_id" json:"user_id"`
	Typing bool   `bson:"typing" json:"typing"`
}
