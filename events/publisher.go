// Package events publishes message activity to Kafka for downstream
// consumers (notification fan-out, analytics). Publishing is optional and
// never on the critical path: a nil publisher is a no-op and failures are
// logged and dropped.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/realthdat/chat-app/logger"
)

type MessageSentEvent struct {
	ChatID    string    `json:"chat_id"`
	MessageID string    `json:"message_id"`
	SenderID  string    `json:"sender_id"`
	SentAt    time.Time `json:"sent_at"`
}

type Publisher struct {
	writer *kafka.Writer
	log    *zap.SugaredLogger
}

func NewPublisher(brokers []string, topic string, log *zap.SugaredLogger) *Publisher {
	if log == nil {
		log = logger.Nop()
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
	}
	return &Publisher{writer: w, log: log}
}

// MessageSent emits a message.sent event. Safe on a nil publisher.
func (p *Publisher) MessageSent(ctx context.Context, ev MessageSentEvent) {
	if p == nil || p.writer == nil {
		return
	}
	b, _ := json.Marshal(ev)
	msg := kafka.Message{Key: []byte(ev.ChatID), Value: b}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.log.Warnw("kafka publish failed", "chat_id", ev.ChatID, "err", err)
	}
}

func (p *Publisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
