// Package unread computes the derived aggregates of a conversation snapshot.
// Nothing here is cached or persisted: every value is a full re-scan of the
// latest snapshot, so stored message state can never drift from the counts.
package unread

import "github.com/realthdat/chat-app/models"

// Count returns the number of messages authored by peerID that the local
// user has not seen yet. Order of the snapshot does not matter.
func Count(peerID string, msgs []*models.Message) int {
	n := 0
	for _, m := range msgs {
		if m.SenderID == peerID && m.Status != models.StatusSeen {
			n++
		}
	}
	return n
}

// LastMessage returns the most recent message of the snapshot. Messages with
// an unresolved timestamp are provisionally newer than any stamped one; among
// those, later snapshot position wins.
func LastMessage(msgs []*models.Message) *models.Message {
	var last *models.Message
	for _, m := range msgs {
		if last == nil || !newer(last, m) {
			last = m
		}
	}
	return last
}

// newer reports whether a is strictly more recent than b.
func newer(a, b *models.Message) bool {
	switch {
	case a.Timestamp == nil && b.Timestamp == nil:
		return false // tie, slice position decides
	case a.Timestamp == nil:
		return true
	case b.Timestamp == nil:
		return false
	default:
		return a.Timestamp.After(*b.Timestamp)
	}
}
