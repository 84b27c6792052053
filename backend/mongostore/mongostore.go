// Package mongostore implements backend.Store on MongoDB. The subscribe
// operations are driven by change streams: every relevant change triggers a
// re-query, and the full result set is pushed as a snapshot, mirroring the
// hosted listener API this module was built against.
package mongostore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/realthdat/chat-app/backend"
	"github.com/realthdat/chat-app/logger"
	"github.com/realthdat/chat-app/models"
)

const (
	usersCollection    = "users"
	messagesCollection = "messages"
	typingCollection   = "typing_status"

	connectTimeout = 10 * time.Second
	subBuffer      = 16
)

type Store struct {
	client *mongo.Client
	db     *mongo.Database
	log    *zap.SugaredLogger
}

var _ backend.Store = (*Store)(nil)

// New connects to MongoDB and pings it before returning.
func New(ctx context.Context, uri, database string, log *zap.SugaredLogger) (*Store, error) {
	if log == nil {
		log = logger.Nop()
	}
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}
	return &Store{client: client, db: client.Database(database), log: log}, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) users() *mongo.Collection    { return s.db.Collection(usersCollection) }
func (s *Store) messages() *mongo.Collection { return s.db.Collection(messagesCollection) }
func (s *Store) typing() *mongo.Collection   { return s.db.Collection(typingCollection) }

func (s *Store) UpsertUser(ctx context.Context, u *models.User) error {
	set := bson.M{}
	if u.DisplayName != "" {
		set["display_name"] = u.DisplayName
	}
	if u.Email != "" {
		set["email"] = u.Email
	}
	if u.PhotoURL != "" {
		set["photo_url"] = u.PhotoURL
	}
	if !u.LastLogin.IsZero() {
		set["last_login"] = u.LastLogin
	}
	if len(set) == 0 {
		return nil
	}
	_, err := s.users().UpdateOne(ctx,
		bson.M{"_id": u.ID},
		bson.M{"$set": set},
		options.Update().SetUpsert(true),
	)
	return err
}

func (s *Store) SetPresence(ctx context.Context, userID string, online bool, lastSeen time.Time) error {
	var update bson.M
	if online {
		update = bson.M{
			"$set":   bson.M{"is_online": true},
			"$unset": bson.M{"last_seen": ""},
		}
	} else {
		update = bson.M{
			"$set": bson.M{"is_online": false, "last_seen": lastSeen},
		}
	}
	_, err := s.users().UpdateOne(ctx, bson.M{"_id": userID}, update)
	return err
}

func (s *Store) AppendMessage(ctx context.Context, chatID string, m *models.Message) (string, error) {
	id := primitive.NewObjectID().Hex()
	doc := bson.M{
		"_id":         id,
		"chat_id":     chatID,
		"sender_id":   m.SenderID,
		"sender_name": m.SenderName,
		"text":        m.Text,
		"status":      m.Status,
	}
	if m.SenderPhoto != "" {
		doc["sender_photo"] = m.SenderPhoto
	}
	if _, err := s.messages().InsertOne(ctx, doc); err != nil {
		return "", err
	}
	// The creation timestamp is stamped server-side in a follow-up write,
	// so a snapshot in between carries the message without one.
	if _, err := s.messages().UpdateByID(ctx, id,
		bson.M{"$currentDate": bson.M{"timestamp": true}}); err != nil {
		s.log.Warnw("timestamp stamp failed", "chat_id", chatID, "message_id", id, "err", err)
	}
	return id, nil
}

func (s *Store) AdvanceStatus(ctx context.Context, chatID, messageID string, from, to models.Status) error {
	if !from.Before(to) {
		return nil
	}
	// The status filter makes the update conditional: if a concurrent
	// observer already advanced further, this matches nothing and the more
	// advanced status stands.
	_, err := s.messages().UpdateOne(ctx,
		bson.M{"_id": messageID, "chat_id": chatID, "status": from},
		bson.M{"$set": bson.M{"status": to}},
	)
	return err
}

func (s *Store) SetTyping(ctx context.Context, chatID, userID string, typing bool) error {
	_, err := s.typing().UpdateOne(ctx,
		bson.M{"chat_id": chatID, "user_id": userID},
		bson.M{"$set": bson.M{"typing": typing}},
		options.Update().SetUpsert(true),
	)
	return err
}

func (s *Store) WatchUsers(ctx context.Context) (backend.UserSubscription, error) {
	query := func(ctx context.Context) ([]*models.User, error) {
		cur, err := s.users().Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
		if err != nil {
			return nil, err
		}
		var out []*models.User
		if err := cur.All(ctx, &out); err != nil {
			return nil, err
		}
		return out, nil
	}
	return watch[[]*models.User](ctx, s, s.users(), nil, query)
}

func (s *Store) WatchMessages(ctx context.Context, chatID string) (backend.MessageSubscription, error) {
	// _id is the server-assigned creation-order marker: ObjectID hex sorts
	// by insertion, and messages whose timestamp has not resolved yet land
	// last, where they provisionally belong.
	query := func(ctx context.Context) ([]*models.Message, error) {
		cur, err := s.messages().Find(ctx,
			bson.M{"chat_id": chatID},
			options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
		if err != nil {
			return nil, err
		}
		var out []*models.Message
		if err := cur.All(ctx, &out); err != nil {
			return nil, err
		}
		return out, nil
	}
	match := bson.M{"fullDocument.chat_id": chatID}
	return watch[[]*models.Message](ctx, s, s.messages(), match, query)
}

func (s *Store) WatchTyping(ctx context.Context, chatID string) (backend.TypingSubscription, error) {
	query := func(ctx context.Context) (map[string]bool, error) {
		cur, err := s.typing().Find(ctx, bson.M{"chat_id": chatID})
		if err != nil {
			return nil, err
		}
		var flags []models.TypingFlag
		if err := cur.All(ctx, &flags); err != nil {
			return nil, err
		}
		out := make(map[string]bool, len(flags))
		for _, f := range flags {
			out[f.UserID] = f.Typing
		}
		return out, nil
	}
	match := bson.M{"fullDocument.chat_id": chatID}
	return watch[map[string]bool](ctx, s, s.typing(), match, query)
}

// watch opens a change stream on coll and re-runs query on every matching
// change, pushing the full result set as a snapshot. The initial snapshot is
// delivered before any change arrives.
func watch[T any](ctx context.Context, s *Store, coll *mongo.Collection, match bson.M, query func(context.Context) (T, error)) (*subscription[T], error) {
	streamCtx, cancel := context.WithCancel(context.Background())

	pipeline := mongo.Pipeline{}
	if match != nil {
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: match}})
	}
	stream, err := coll.Watch(streamCtx, pipeline,
		options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		cancel()
		return nil, err
	}

	sub := &subscription[T]{ch: make(chan T, subBuffer), cancel: cancel}

	snap, err := query(ctx)
	if err != nil {
		cancel()
		_ = stream.Close(context.Background())
		return nil, err
	}
	sub.push(snap)

	go func() {
		defer close(sub.ch)
		defer stream.Close(context.Background())
		for stream.Next(streamCtx) {
			snap, err := query(streamCtx)
			if err != nil {
				if streamCtx.Err() == nil {
					s.log.Warnw("snapshot query failed", "collection", coll.Name(), "err", err)
				}
				continue
			}
			sub.push(snap)
		}
		if err := stream.Err(); err != nil && streamCtx.Err() == nil {
			s.log.Warnw("change stream ended", "collection", coll.Name(), "err", err)
		}
	}()
	return sub, nil
}

type subscription[T any] struct {
	ch     chan T
	cancel context.CancelFunc
}

func (s *subscription[T]) Snapshots() <-chan T { return s.ch }

func (s *subscription[T]) Close() error {
	s.cancel()
	return nil
}

// push never blocks the stream loop: when the consumer lags, the oldest
// buffered snapshot is dropped so the latest always gets through.
func (s *subscription[T]) push(snap T) {
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
