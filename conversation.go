package chatapp

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/realthdat/chat-app/backend"
	"github.com/realthdat/chat-app/chatkey"
	"github.com/realthdat/chat-app/events"
	"github.com/realthdat/chat-app/models"
	"github.com/realthdat/chat-app/status"
	"github.com/realthdat/chat-app/typing"
	"github.com/realthdat/chat-app/unread"
)

// Conversation is a live session over one two-party thread. It owns its
// subscriptions and the typing signaler; Close tears all of them down.
type Conversation struct {
	key       string
	self      models.User
	peer      models.User
	msgs      backend.MessageStore
	signaler  *typing.Signaler
	publisher *events.Publisher
	log       *zap.SugaredLogger

	msgSub backend.MessageSubscription
	typSub backend.TypingSubscription

	mu         sync.RWMutex
	snapshot   []*models.Message
	peerTyping bool

	closeOnce sync.Once
	wg        sync.WaitGroup
}

// Open starts a conversation session with peer: subscribes to the message
// log and the typing flags and begins reconciling statuses as snapshots
// arrive.
func (c *Client) Open(ctx context.Context, peer *models.User) (*Conversation, error) {
	self, err := c.requireSelf()
	if err != nil {
		return nil, err
	}
	key := chatkey.For(self.ID, peer.ID)

	msgSub, err := c.msgs.WatchMessages(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("watch messages: %w", err)
	}
	typSub, err := c.typingStore.WatchTyping(ctx, key)
	if err != nil {
		_ = msgSub.Close()
		return nil, fmt.Errorf("watch typing: %w", err)
	}

	conv := &Conversation{
		key:       key,
		self:      self,
		peer:      *peer,
		msgs:      c.msgs,
		signaler:  typing.NewSignaler(c.typingStore, c.log, key, self.ID, typing.WithIdleTimeout(c.typingIdle)),
		publisher: c.publisher,
		log:       c.log,
		msgSub:    msgSub,
		typSub:    typSub,
	}
	conv.wg.Add(2)
	go conv.messageLoop()
	go conv.typingLoop()
	return conv, nil
}

func (c *Conversation) messageLoop() {
	defer c.wg.Done()
	for snap := range c.msgSub.Snapshots() {
		// last-snapshot-wins: anything still buffered is stale
		snap = drainLatest(c.msgSub.Snapshots(), snap)

		c.mu.Lock()
		c.snapshot = snap
		c.mu.Unlock()

		for _, adv := range status.Reconcile(c.self.ID, true, snap) {
			if err := c.msgs.AdvanceStatus(context.Background(), c.key, adv.MessageID, adv.From, adv.To); err != nil {
				c.log.Warnw("status advance failed",
					"chat_id", c.key, "message_id", adv.MessageID, "to", adv.To, "err", err)
			}
		}
	}
}

func (c *Conversation) typingLoop() {
	defer c.wg.Done()
	for flags := range c.typSub.Snapshots() {
		flags = drainLatest(c.typSub.Snapshots(), flags)
		c.mu.Lock()
		c.peerTyping = flags[c.peer.ID]
		c.mu.Unlock()
	}
}

// Send appends a message with status sent and the sender identity captured
// now. Empty or whitespace-only input is a silent no-op: no record is
// created and no backend write is issued. A successful send clears the
// typing flag and cancels its timer.
func (c *Conversation) Send(ctx context.Context, text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	m := &models.Message{
		SenderID:    c.self.ID,
		SenderName:  c.self.DisplayName,
		SenderPhoto: c.self.PhotoURL,
		Text:        trimmed,
		Status:      models.StatusSent,
	}
	id, err := c.msgs.AppendMessage(ctx, c.key, m)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	c.signaler.Sent(ctx)
	c.publisher.MessageSent(ctx, events.MessageSentEvent{
		ChatID:    c.key,
		MessageID: id,
		SenderID:  c.self.ID,
		SentAt:    time.Now().UTC(),
	})
	return nil
}

// Keystroke reports input activity for the typing indicator.
func (c *Conversation) Keystroke(ctx context.Context) {
	c.signaler.Keystroke(ctx)
}

// Messages returns the latest snapshot in creation order.
func (c *Conversation) Messages() []*models.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*models.Message, len(c.snapshot))
	copy(out, c.snapshot)
	return out
}

// PeerTyping reports whether the peer is currently typing.
func (c *Conversation) PeerTyping() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.peerTyping
}

// Badges returns the badge positions for the current snapshot.
func (c *Conversation) Badges() status.Badges {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return status.ComputeBadges(c.self.ID, c.snapshot)
}

// Unread counts peer-authored messages not yet seen, recomputed from the
// current snapshot.
func (c *Conversation) Unread() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return unread.Count(c.peer.ID, c.snapshot)
}

// Key returns the canonical conversation key.
func (c *Conversation) Key() string { return c.key }

// Close tears down both subscriptions and the typing signaler. Mandatory on
// navigation away or sign-out; a closed conversation performs no further
// reconciliation.
func (c *Conversation) Close(ctx context.Context) {
	c.closeOnce.Do(func() {
		_ = c.msgSub.Close()
		_ = c.typSub.Close()
		c.signaler.Close(ctx)
		c.wg.Wait()
	})
}
