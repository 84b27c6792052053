// Package chatapp is the client core of a two-party realtime messaging
// feature: sign-in lifecycle, a live roster with presence and unread counts,
// and per-pair conversation sessions with delivery/seen tracking and typing
// indicators. Persistence, push delivery and identity are delegated to the
// backend collaborators in package backend.
package chatapp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/realthdat/chat-app/auth"
	"github.com/realthdat/chat-app/backend"
	"github.com/realthdat/chat-app/events"
	"github.com/realthdat/chat-app/logger"
	"github.com/realthdat/chat-app/models"
	"github.com/realthdat/chat-app/presence"
	"github.com/realthdat/chat-app/typing"
)

var (
	ErrNotSignedIn = errors.New("not signed in")
	ErrNoIdentity  = errors.New("identity provider required")
	ErrNoBackend   = errors.New("backend stores required")
)

type Options struct {
	Users    backend.UserStore
	Messages backend.MessageStore
	Typing   backend.TypingStore

	Identity auth.Provider

	// PresenceMirror optionally duplicates presence writes, e.g. into
	// Redis via redisstore.
	PresenceMirror presence.Mirror

	// Events optionally publishes message activity; nil disables it.
	Events *events.Publisher

	Logger *zap.SugaredLogger

	// TypingIdle overrides the typing auto-clear window (default 2s).
	TypingIdle time.Duration
}

// UseStore wires all three collaborator roles to a single combined store.
func (o *Options) UseStore(s backend.Store) {
	o.Users = s
	o.Messages = s
	o.Typing = s
}

type Client struct {
	users       backend.UserStore
	msgs        backend.MessageStore
	typingStore backend.TypingStore
	provider    auth.Provider
	tracker     *presence.Tracker
	publisher   *events.Publisher
	log         *zap.SugaredLogger
	typingIdle  time.Duration

	mu   sync.Mutex
	self *models.User
}

func New(opts Options) (*Client, error) {
	if opts.Users == nil || opts.Messages == nil || opts.Typing == nil {
		return nil, ErrNoBackend
	}
	if opts.Identity == nil {
		return nil, ErrNoIdentity
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	idle := opts.TypingIdle
	if idle == 0 {
		idle = typing.DefaultIdleTimeout
	}
	return &Client{
		users:       opts.Users,
		msgs:        opts.Messages,
		typingStore: opts.Typing,
		provider:    opts.Identity,
		tracker:     presence.NewTracker(opts.Users, opts.PresenceMirror, log),
		publisher:   opts.Events,
		log:         log,
		typingIdle:  idle,
	}, nil
}

// SignIn runs the identity flow, upserts the user record (merge: profile
// fields and last-login are refreshed, nothing else is touched) and marks
// the user online.
func (c *Client) SignIn(ctx context.Context) (*models.User, error) {
	prof, err := c.provider.SignIn(ctx)
	if err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}
	u := &models.User{
		ID:          prof.ID,
		DisplayName: prof.DisplayName,
		Email:       prof.Email,
		PhotoURL:    prof.PhotoURL,
		LastLogin:   time.Now().UTC(),
	}
	if err := c.users.UpsertUser(ctx, u); err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	c.tracker.MarkOnline(ctx, u.ID)
	u.Online = true

	c.mu.Lock()
	c.self = u
	c.mu.Unlock()

	cp := *u
	return &cp, nil
}

// SyncAvatar re-upserts the user record when the provider-reported avatar
// URL drifted from the stored one. Historic messages keep the photo they
// were sent with.
func (c *Client) SyncAvatar(ctx context.Context, photoURL string) {
	c.mu.Lock()
	self := c.self
	if self == nil || self.PhotoURL == photoURL {
		c.mu.Unlock()
		return
	}
	self.PhotoURL = photoURL
	id := self.ID
	c.mu.Unlock()

	if err := c.users.UpsertUser(ctx, &models.User{ID: id, PhotoURL: photoURL}); err != nil {
		c.log.Warnw("avatar sync failed", "user_id", id, "err", err)
	}
}

// SignOut is the authoritative mark-offline path: presence is stamped, then
// the provider session is invalidated.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	self := c.self
	c.self = nil
	c.mu.Unlock()
	if self == nil {
		return ErrNotSignedIn
	}
	c.tracker.MarkOffline(ctx, self.ID)
	return c.provider.SignOut(ctx)
}

// Shutdown is the best-effort teardown path (page unload, app exit). The
// offline write is advisory only; the backend may never process it.
func (c *Client) Shutdown(ctx context.Context) {
	c.mu.Lock()
	self := c.self
	c.mu.Unlock()
	if self != nil {
		c.tracker.MarkOffline(ctx, self.ID)
	}
}

// Self returns a copy of the signed-in user, or nil.
func (c *Client) Self() *models.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.self == nil {
		return nil
	}
	cp := *c.self
	return &cp
}

func (c *Client) requireSelf() (models.User, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.self == nil {
		return models.User{}, ErrNotSignedIn
	}
	return *c.self, nil
}

// drainLatest discards buffered snapshots and keeps only the newest one:
// reconciliation always runs against the last received snapshot.
func drainLatest[T any](ch <-chan T, cur T) T {
	for {
		select {
		case v, ok := <-ch:
			if !ok {
				return cur
			}
			cur = v
		default:
			return cur
		}
	}
}
