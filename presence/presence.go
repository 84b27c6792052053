// Package presence maintains the online/offline flag and last-seen time of
// the signed-in user. Presence is a soft signal: writes are fire-and-forget,
// failures are logged and never retried or surfaced.
package presence

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/realthdat/chat-app/backend"
	"github.com/realthdat/chat-app/logger"
)

// Mirror is an optional secondary sink for presence, typically a Redis
// keyspace other instances read for routing.
type Mirror interface {
	SetPresence(ctx context.Context, userID string, online bool, lastSeen time.Time) error
}

type Tracker struct {
	store  backend.UserStore
	mirror Mirror
	log    *zap.SugaredLogger
}

func NewTracker(store backend.UserStore, mirror Mirror, log *zap.SugaredLogger) *Tracker {
	if log == nil {
		log = logger.Nop()
	}
	return &Tracker{store: store, mirror: mirror, log: log}
}

// MarkOnline idempotently sets online=true and clears lastSeen. Called on
// sign-in and on reconnect.
func (t *Tracker) MarkOnline(ctx context.Context, userID string) {
	t.set(ctx, userID, true, time.Time{})
}

// MarkOffline sets online=false and stamps lastSeen. Sign-out is the
// authoritative trigger; unload/teardown callers get best-effort semantics
// only.
func (t *Tracker) MarkOffline(ctx context.Context, userID string) {
	t.set(ctx, userID, false, time.Now().UTC())
}

func (t *Tracker) set(ctx context.Context, userID string, online bool, lastSeen time.Time) {
	if err := t.store.SetPresence(ctx, userID, online, lastSeen); err != nil {
		t.log.Warnw("presence write failed", "user_id", userID, "online", online, "err", err)
	}
	if t.mirror != nil {
		if err := t.mirror.SetPresence(ctx, userID, online, lastSeen); err != nil {
			t.log.Debugw("presence mirror write failed", "user_id", userID, "err", err)
		}
	}
}
