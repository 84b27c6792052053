// Package memstore is an in-memory backend.Store with the same push-snapshot
// behavior as the hosted implementations. It backs tests and single-process
// embedding.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/realthdat/chat-app/backend"
	"github.com/realthdat/chat-app/models"
)

const subBuffer = 16

type Store struct {
	mu     sync.Mutex
	users  map[string]*models.User
	msgs   map[string][]*models.Message
	typing map[string]map[string]bool

	userSubs   map[*userSub]struct{}
	msgSubs    map[string]map[*msgSub]struct{}
	typingSubs map[string]map[*typingSub]struct{}

	now func() time.Time
}

var _ backend.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		users:      make(map[string]*models.User),
		msgs:       make(map[string][]*models.Message),
		typing:     make(map[string]map[string]bool),
		userSubs:   make(map[*userSub]struct{}),
		msgSubs:    make(map[string]map[*msgSub]struct{}),
		typingSubs: make(map[string]map[*typingSub]struct{}),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) UpsertUser(ctx context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.users[u.ID]
	if !ok {
		cp := *u
		s.users[u.ID] = &cp
	} else {
		if u.DisplayName != "" {
			cur.DisplayName = u.DisplayName
		}
		if u.Email != "" {
			cur.Email = u.Email
		}
		if u.PhotoURL != "" {
			cur.PhotoURL = u.PhotoURL
		}
		if !u.LastLogin.IsZero() {
			cur.LastLogin = u.LastLogin
		}
	}
	s.pushUsersLocked()
	return nil
}

func (s *Store) SetPresence(ctx context.Context, userID string, online bool, lastSeen time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return backend.ErrNotFound
	}
	u.Online = online
	if online {
		u.LastSeen = nil
	} else {
		ls := lastSeen
		u.LastSeen = &ls
	}
	s.pushUsersLocked()
	return nil
}

func (s *Store) AppendMessage(ctx context.Context, chatID string, m *models.Message) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *m
	cp.ID = uuid.NewString()
	cp.ChatID = chatID
	ts := s.now()
	cp.Timestamp = &ts
	s.msgs[chatID] = append(s.msgs[chatID], &cp)
	s.pushMessagesLocked(chatID)
	return cp.ID, nil
}

func (s *Store) AdvanceStatus(ctx context.Context, chatID, messageID string, from, to models.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.msgs[chatID] {
		if m.ID != messageID {
			continue
		}
		// conditional: only the expected current status moves, and only
		// forward
		if m.Status == from && from.Before(to) {
			m.Status = to
			s.pushMessagesLocked(chatID)
		}
		return nil
	}
	return nil
}

func (s *Store) SetTyping(ctx context.Context, chatID, userID string, typing bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	flags, ok := s.typing[chatID]
	if !ok {
		flags = make(map[string]bool)
		s.typing[chatID] = flags
	}
	flags[userID] = typing
	s.pushTypingLocked(chatID)
	return nil
}

func (s *Store) WatchUsers(ctx context.Context) (backend.UserSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub := &userSub{store: s, ch: make(chan []*models.User, subBuffer)}
	s.userSubs[sub] = struct{}{}
	push(sub.ch, s.snapshotUsersLocked())
	return sub, nil
}

func (s *Store) WatchMessages(ctx context.Context, chatID string) (backend.MessageSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub := &msgSub{store: s, chatID: chatID, ch: make(chan []*models.Message, subBuffer)}
	if s.msgSubs[chatID] == nil {
		s.msgSubs[chatID] = make(map[*msgSub]struct{})
	}
	s.msgSubs[chatID][sub] = struct{}{}
	push(sub.ch, s.snapshotMessagesLocked(chatID))
	return sub, nil
}

func (s *Store) WatchTyping(ctx context.Context, chatID string) (backend.TypingSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub := &typingSub{store: s, chatID: chatID, ch: make(chan map[string]bool, subBuffer)}
	if s.typingSubs[chatID] == nil {
		s.typingSubs[chatID] = make(map[*typingSub]struct{})
	}
	s.typingSubs[chatID][sub] = struct{}{}
	push(sub.ch, s.snapshotTypingLocked(chatID))
	return sub, nil
}

func (s *Store) snapshotUsersLocked() []*models.User {
	out := make([]*models.User, 0, len(s.users))
	for _, u := range s.users {
		cp := *u
		if u.LastSeen != nil {
			ls := *u.LastSeen
			cp.LastSeen = &ls
		}
		out = append(out, &cp)
	}
	return out
}

func (s *Store) snapshotMessagesLocked(chatID string) []*models.Message {
	src := s.msgs[chatID]
	out := make([]*models.Message, 0, len(src))
	for _, m := range src {
		cp := *m
		if m.Timestamp != nil {
			ts := *m.Timestamp
			cp.Timestamp = &ts
		}
		out = append(out, &cp)
	}
	return out
}

func (s *Store) snapshotTypingLocked(chatID string) map[string]bool {
	out := make(map[string]bool, len(s.typing[chatID]))
	for k, v := range s.typing[chatID] {
		out[k] = v
	}
	return out
}

func (s *Store) pushUsersLocked() {
	for sub := range s.userSubs {
		push(sub.ch, s.snapshotUsersLocked())
	}
}

func (s *Store) pushMessagesLocked(chatID string) {
	for sub := range s.msgSubs[chatID] {
		push(sub.ch, s.snapshotMessagesLocked(chatID))
	}
}

func (s *Store) pushTypingLocked(chatID string) {
	for sub := range s.typingSubs[chatID] {
		push(sub.ch, s.snapshotTypingLocked(chatID))
	}
}

// push delivers a snapshot without ever blocking the store. When a slow
// consumer filled the buffer the oldest snapshot is dropped; the latest one
// always lands.
func push[T any](ch chan T, snap T) {
	for {
		select {
		case ch <- snap:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}

type userSub struct {
	store *Store
	ch    chan []*models.User
	once  sync.Once
}

func (s *userSub) Snapshots() <-chan []*models.User { return s.ch }

func (s *userSub) Close() error {
	s.once.Do(func() {
		s.store.mu.Lock()
		delete(s.store.userSubs, s)
		s.store.mu.Unlock()
		close(s.ch)
	})
	return nil
}

type msgSub struct {
	store  *Store
	chatID string
	ch     chan []*models.Message
	once   sync.Once
}

func (s *msgSub) Snapshots() <-chan []*models.Message { return s.ch }

func (s *msgSub) Close() error {
	s.once.Do(func() {
		s.store.mu.Lock()
		delete(s.store.msgSubs[s.chatID], s)
		s.store.mu.Unlock()
		close(s.ch)
	})
	return nil
}

type typingSub struct {
	store  *Store
	chatID string
	ch     chan map[string]bool
	once   sync.Once
}

func (s *typingSub) Snapshots() <-chan map[string]bool { return s.ch }

func (s *typingSub) Close() error {
	s.once.Do(func() {
		s.store.mu.Lock()
		delete(s.store.typingSubs[s.chatID], s)
		s.store.mu.Unlock()
		close(s.ch)
	})
	return nil
}
