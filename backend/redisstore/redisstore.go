// Package redisstore keeps the ephemeral state in Redis: typing flags per
// conversation (hash + pub/sub push) and a presence mirror other instances
// can read for routing. Nothing here is durable; a lost key degrades an
// indicator, never a message.
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/realthdat/chat-app/backend"
	"github.com/realthdat/chat-app/logger"
	"github.com/realthdat/chat-app/models"
)

// typingTTL bounds how long a flag can outlive a crashed client.
const typingTTL = 30 * time.Second

const subBuffer = 16

type Store struct {
	cli    *redis.Client
	prefix string
	log    *zap.SugaredLogger
}

var _ backend.TypingStore = (*Store)(nil)

func New(cli *redis.Client, prefix string, log *zap.SugaredLogger) *Store {
	if log == nil {
		log = logger.Nop()
	}
	return &Store{cli: cli, prefix: prefix, log: log}
}

func (s *Store) typingKey(chatID string) string {
	return fmt.Sprintf("%s:typing:%s", s.prefix, chatID)
}

func (s *Store) typingChannel(chatID string) string {
	return fmt.Sprintf("%s:typing-events:%s", s.prefix, chatID)
}

func (s *Store) presenceKey(userID string) string {
	return fmt.Sprintf("%s:presence:%s", s.prefix, userID)
}

func (s *Store) SetTyping(ctx context.Context, chatID, userID string, typing bool) error {
	key := s.typingKey(chatID)
	val := "0"
	if typing {
		val = "1"
	}
	if err := s.cli.HSet(ctx, key, userID, val).Err(); err != nil {
		return err
	}
	_ = s.cli.Expire(ctx, key, typingTTL).Err()

	flag := models.TypingFlag{ChatID: chatID, UserID: userID, Typing: typing}
	b, _ := json.Marshal(flag)
	return s.cli.Publish(ctx, s.typingChannel(chatID), b).Err()
}

func (s *Store) WatchTyping(ctx context.Context, chatID string) (backend.TypingSubscription, error) {
	initial, err := s.readTyping(ctx, chatID)
	if err != nil {
		return nil, err
	}

	pubsub := s.cli.Subscribe(ctx, s.typingChannel(chatID))
	// confirm the subscription before reporting success
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	sub := &typingSub{pubsub: pubsub, ch: make(chan map[string]bool, subBuffer)}
	sub.push(copyFlags(initial))

	go func() {
		defer close(sub.ch)
		flags := initial
		for msg := range pubsub.Channel() {
			var f models.TypingFlag
			if err := json.Unmarshal([]byte(msg.Payload), &f); err != nil {
				s.log.Debugw("bad typing event", "chat_id", chatID, "err", err)
				continue
			}
			flags[f.UserID] = f.Typing
			sub.push(copyFlags(flags))
		}
	}()
	return sub, nil
}

func (s *Store) readTyping(ctx context.Context, chatID string) (map[string]bool, error) {
	raw, err := s.cli.HGetAll(ctx, s.typingKey(chatID)).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(raw))
	for userID, v := range raw {
		out[userID] = v == "1"
	}
	return out, nil
}

// SetPresence mirrors the document-store presence write so sibling
// instances can route without hitting the primary store.
func (s *Store) SetPresence(ctx context.Context, userID string, online bool, lastSeen time.Time) error {
	status := "offline"
	if online {
		status = "online"
	}
	payload := map[string]any{"status": status}
	if !online {
		payload["last_seen"] = lastSeen.Unix()
	}
	b, _ := json.Marshal(payload)
	return s.cli.Set(ctx, s.presenceKey(userID), b, 0).Err()
}

// GetPresence reads the mirrored presence entry. Missing key means offline.
func (s *Store) GetPresence(ctx context.Context, userID string) (online bool, err error) {
	b, err := s.cli.Get(ctx, s.presenceKey(userID)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	var payload map[string]any
	if err := json.Unmarshal(b, &payload); err != nil {
		return false, err
	}
	return payload["status"] == "online", nil
}

func copyFlags(in map[string]bool) map[string]bool {
	out := make(map[string]bool, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

type typingSub struct {
	pubsub *redis.PubSub
	ch     chan map[string]bool
}

func (s *typingSub) Snapshots() <-chan map[string]bool { return s.ch }

func (s *typingSub) Close() error {
	return s.pubsub.Close()
}

func (s *typingSub) push(snap map[string]bool) {
	for {
		select {
		case s.ch <- snap:
			return
		default:
			select {
			case <-s.ch:
			default:
			}
		}
	}
}
