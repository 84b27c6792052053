// Package status derives message lifecycle transitions from conversation
// snapshots. It is pure: callers apply the returned advances through the
// message store, whose conditional update keeps transitions forward-only
// under concurrent observers.
package status

import "github.com/realthdat/chat-app/models"

// Advance is one pending forward transition for a message.
type Advance struct {
	MessageID string
	From      models.Status
	To        models.Status
}

// Reconcile inspects a snapshot through the eyes of observerID and returns
// the transitions that observation implies. Only the receiving party's
// observation advances anything:
//
//   - viewing the conversation, a peer message not yet seen advances to seen
//   - merely receiving the snapshot (user list, conversation closed), a
//     peer message still at sent advances to delivered
//
// A sender never advances its own messages, in particular never to seen.
// Re-running on an unchanged snapshot yields nothing, and the conditional
// store update lets a concurrent seen win over delivered.
func Reconcile(observerID string, viewing bool, msgs []*models.Message) []Advance {
	var out []Advance
	for _, m := range msgs {
		if m.ID == "" || m.SenderID == observerID {
			continue
		}
		if viewing {
			if m.Status != models.StatusSeen {
				out = append(out, Advance{MessageID: m.ID, From: m.Status, To: models.StatusSeen})
			}
		} else if m.Status == models.StatusSent {
			out = append(out, Advance{MessageID: m.ID, From: models.StatusSent, To: models.StatusDelivered})
		}
	}
	return out
}

// Badges is the presentation rule layered on stored status: only the most
// recent own message carries a sent/delivered badge and only the most recent
// own seen message carries a seen badge. Indexes are -1 when absent.
type Badges struct {
	// SentIdx is the index of the latest message authored by self; its
	// stored status (sent or delivered) is the badge to show there.
	SentIdx int
	// SeenIdx is the index of the latest self-authored message whose
	// status is seen.
	SeenIdx int
}

// ComputeBadges scans a snapshot in display order and picks the badge
// positions for selfID.
func ComputeBadges(selfID string, msgs []*models.Message) Badges {
	b := Badges{SentIdx: -1, SeenIdx: -1}
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		if m.SenderID != selfID {
			continue
		}
		if b.SeenIdx == -1 && m.Status == models.StatusSeen {
			b.SeenIdx = i
		}
		if b.SentIdx == -1 && m.Status != models.StatusSeen {
			b.SentIdx = i
		}
		if b.SeenIdx != -1 && b.SentIdx != -1 {
			break
		}
	}
	return b
}
