package chatapp

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/realthdat/chat-app/backend"
	"github.com/realthdat/chat-app/chatkey"
	"github.com/realthdat/chat-app/models"
	"github.com/realthdat/chat-app/status"
	"github.com/realthdat/chat-app/unread"
)

// PeerEntry is one row of the user list: the peer with presence, the unread
// count for the shared conversation and its latest message.
type PeerEntry struct {
	User   models.User
	Unread int
	Last   *models.Message
}

// Roster is the live user list. It watches the user directory and, per
// peer, the shared conversation, recomputing unread counts and last
// messages from each snapshot.
type Roster struct {
	selfID string
	msgs   backend.MessageStore
	log    *zap.SugaredLogger

	userSub backend.UserSubscription

	mu      sync.RWMutex
	closed  bool
	peers   map[string]*peerState
	msgSubs map[string]backend.MessageSubscription

	closeOnce sync.Once
	wg        sync.WaitGroup
}

type peerState struct {
	user   models.User
	unread int
	last   *models.Message
}

// Roster opens the live user list for the signed-in user.
func (c *Client) Roster(ctx context.Context) (*Roster, error) {
	self, err := c.requireSelf()
	if err != nil {
		return nil, err
	}
	userSub, err := c.users.WatchUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("watch users: %w", err)
	}
	r := &Roster{
		selfID:  self.ID,
		msgs:    c.msgs,
		log:     c.log,
		userSub: userSub,
		peers:   make(map[string]*peerState),
		msgSubs: make(map[string]backend.MessageSubscription),
	}
	r.wg.Add(1)
	go r.userLoop()
	return r, nil
}

func (r *Roster) userLoop() {
	defer r.wg.Done()
	for snap := range r.userSub.Snapshots() {
		snap = drainLatest(r.userSub.Snapshots(), snap)

		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			return
		}
		seen := make(map[string]struct{}, len(snap))
		for _, u := range snap {
			if u.ID == r.selfID {
				continue
			}
			seen[u.ID] = struct{}{}
			st, ok := r.peers[u.ID]
			if !ok {
				st = &peerState{}
				r.peers[u.ID] = st
			}
			st.user = *u
			if !ok {
				r.watchPeerLocked(u.ID)
			}
		}
		// peers that vanished from the directory: drop their entry and
		// subscription
		for id := range r.peers {
			if _, ok := seen[id]; !ok {
				if sub := r.msgSubs[id]; sub != nil {
					_ = sub.Close()
					delete(r.msgSubs, id)
				}
				delete(r.peers, id)
			}
		}
		r.mu.Unlock()
	}
}

func (r *Roster) watchPeerLocked(peerID string) {
	key := chatkey.For(r.selfID, peerID)
	sub, err := r.msgs.WatchMessages(context.Background(), key)
	if err != nil {
		r.log.Warnw("watch conversation failed", "chat_id", key, "err", err)
		return
	}
	r.msgSubs[peerID] = sub
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for snap := range sub.Snapshots() {
			snap = drainLatest(sub.Snapshots(), snap)

			// The client observed the snapshot without viewing the
			// conversation: peer messages still at sent are now
			// delivered. A concurrent seen from an open conversation
			// view wins via the conditional update.
			for _, adv := range status.Reconcile(r.selfID, false, snap) {
				if err := r.msgs.AdvanceStatus(context.Background(), key, adv.MessageID, adv.From, adv.To); err != nil {
					r.log.Warnw("status advance failed",
						"chat_id", key, "message_id", adv.MessageID, "to", adv.To, "err", err)
				}
			}

			count := unread.Count(peerID, snap)
			last := unread.LastMessage(snap)

			r.mu.Lock()
			if st, ok := r.peers[peerID]; ok {
				st.unread = count
				st.last = last
			}
			r.mu.Unlock()
		}
	}()
}

// Peers returns the current user list: online users first, then by most
// recent conversation activity, peers without any messages last by name.
func (r *Roster) Peers() []PeerEntry {
	r.mu.RLock()
	out := make([]PeerEntry, 0, len(r.peers))
	for _, st := range r.peers {
		out = append(out, PeerEntry{User: st.user, Unread: st.unread, Last: st.last})
	}
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.User.Online != b.User.Online {
			return a.User.Online
		}
		switch {
		case a.Last == nil && b.Last == nil:
			return a.User.DisplayName < b.User.DisplayName
		case a.Last == nil:
			return false
		case b.Last == nil:
			return true
		}
		at, bt := a.Last.Timestamp, b.Last.Timestamp
		switch {
		case at == nil && bt == nil:
			return a.User.DisplayName < b.User.DisplayName
		case at == nil: // pending timestamp counts as newest
			return true
		case bt == nil:
			return false
		}
		return at.After(*bt)
	})
	return out
}

// Close tears down the user subscription and every per-peer conversation
// subscription.
func (r *Roster) Close() {
	r.closeOnce.Do(func() {
		_ = r.userSub.Close()
		r.mu.Lock()
		r.closed = true
		for id, sub := range r.msgSubs {
			_ = sub.Close()
			delete(r.msgSubs, id)
		}
		r.mu.Unlock()
		r.wg.Wait()
	})
}
