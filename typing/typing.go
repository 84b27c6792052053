// Package typing manages the ephemeral typing flag of one user in one
// conversation. Keystrokes coalesce into a single flag write; an inactivity
// timer clears the flag after two seconds without input, and a send clears
// it immediately. There is at most one pending auto-clear timer per
// signaler: every keystroke cancels and replaces it, so a stale timer can
// never wipe a flag a newer keystroke just re-set.
package typing

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/realthdat/chat-app/backend"
	"github.com/realthdat/chat-app/logger"
)

// DefaultIdleTimeout matches the observed client behavior: two seconds of
// no keystrokes clears the flag.
const DefaultIdleTimeout = 2 * time.Second

type Signaler struct {
	store  backend.TypingStore
	log    *zap.SugaredLogger
	chatID string
	userID string
	idle   time.Duration

	mu     sync.Mutex
	timer  *time.Timer
	gen    uint64 // invalidates callbacks of replaced timers
	active bool
	closed bool
}

type Option func(*Signaler)

// WithIdleTimeout overrides the inactivity window. Used by tests.
func WithIdleTimeout(d time.Duration) Option {
	return func(s *Signaler) { s.idle = d }
}

func NewSignaler(store backend.TypingStore, log *zap.SugaredLogger, chatID, userID string, opts ...Option) *Signaler {
	if log == nil {
		log = logger.Nop()
	}
	s := &Signaler{
		store:  store,
		log:    log,
		chatID: chatID,
		userID: userID,
		idle:   DefaultIdleTimeout,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Keystroke records input activity. The flag write is coalesced: only the
// first keystroke since the last clear hits the store. The auto-clear timer
// is reset on every call.
func (s *Signaler) Keystroke(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	write := !s.active
	s.active = true
	s.resetTimerLocked()
	s.mu.Unlock()

	if write {
		s.write(ctx, true)
	}
}

// Sent clears the flag immediately and cancels the pending timer. Called
// when a message send succeeds.
func (s *Signaler) Sent(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.stopTimerLocked()
	wasActive := s.active
	s.active = false
	s.mu.Unlock()

	if wasActive {
		s.write(ctx, false)
	}
}

// Close cancels the pending timer so it cannot fire into a conversation the
// user is no longer viewing. A still-set flag is cleared once, deliberately,
// before the signaler goes inert.
func (s *Signaler) Close(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.stopTimerLocked()
	wasActive := s.active
	s.active = false
	s.mu.Unlock()

	if wasActive {
		s.write(ctx, false)
	}
}

// resetTimerLocked cancels any pending timer and schedules a fresh one.
func (s *Signaler) resetTimerLocked() {
	s.stopTimerLocked()
	s.gen++
	gen := s.gen
	s.timer = time.AfterFunc(s.idle, func() { s.expire(gen) })
}

func (s *Signaler) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Signaler) expire(gen uint64) {
	s.mu.Lock()
	if s.closed || gen != s.gen || !s.active {
		s.mu.Unlock()
		return
	}
	s.active = false
	s.timer = nil
	s.mu.Unlock()

	s.write(context.Background(), false)
}

func (s *Signaler) write(ctx context.Context, typing bool) {
	if err := s.store.SetTyping(ctx, s.chatID, s.userID, typing); err != nil {
		s.log.Warnw("typing write failed", "chat_id", s.chatID, "typing", typing, "err", err)
	}
}
