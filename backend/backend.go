// Package backend defines the contracts this module expects from the hosted
// document store. Implementations push live snapshots: every server-side
// change re-delivers the full current result set of the watched query.
package backend

import (
	"context"
	"errors"
	"time"

	"github.com/realthdat/chat-app/models"
)

var ErrNotFound = errors.New("not found")

// UserStore holds the user directory keyed by identity-provider ID.
type UserStore interface {
	// UpsertUser merges the given record into the users collection. Zero
	// fields are left untouched on an existing record.
	UpsertUser(ctx context.Context, u *models.User) error

	// SetPresence flips the online flag. lastSeen is ignored while online
	// (the field is cleared) and stamped when going offline.
	SetPresence(ctx context.Context, userID string, online bool, lastSeen time.Time) error

	// WatchUsers subscribes to the full user directory.
	WatchUsers(ctx context.Context) (UserSubscription, error)
}

// MessageStore is the append-only ordered message log per conversation.
// Records are immutable once written except for the status field.
type MessageStore interface {
	// AppendMessage appends m to the conversation log and returns the
	// assigned message ID. The backend stamps the creation timestamp; it
	// may still be unresolved in the snapshot immediately after.
	AppendMessage(ctx context.Context, chatID string, m *models.Message) (string, error)

	// AdvanceStatus moves a message from exactly `from` to `to`. The
	// from-match makes the update conditional, so a concurrent further
	// advance is never rolled back. A no-match is not an error.
	AdvanceStatus(ctx context.Context, chatID, messageID string, from, to models.Status) error

	// WatchMessages subscribes to the conversation's message log in
	// creation order.
	WatchMessages(ctx context.Context, chatID string) (MessageSubscription, error)
}

// TypingStore holds the ephemeral per-(chat, user) typing flags.
type TypingStore interface {
	SetTyping(ctx context.Context, chatID, userID string, typing bool) error

	// WatchTyping subscribes to the typing flags of one conversation,
	// delivered as userID -> typing.
	WatchTyping(ctx context.Context, chatID string) (TypingSubscription, error)
}

// Store is the full collaborator surface.
type Store interface {
	UserStore
	MessageStore
	TypingStore
}

type UserSubscription interface {
	Snapshots() <-chan []*models.User
	Close() error
}

type MessageSubscription interface {
	Snapshots() <-chan []*models.Message
	Close() error
}

type TypingSubscription interface {
	Snapshots() <-chan map[string]bool
	Close() error
}
