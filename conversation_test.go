package chatapp

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realthdat/chat-app/auth"
	"github.com/realthdat/chat-app/backend"
	"github.com/realthdat/chat-app/backend/memstore"
	"github.com/realthdat/chat-app/models"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func newTestClient(t *testing.T, store backend.Store, id, name string) *Client {
	t.Helper()
	var opts Options
	opts.UseStore(store)
	opts.Identity = &auth.StaticProvider{Profile: auth.Profile{ID: id, DisplayName: name}}
	opts.TypingIdle = 50 * time.Millisecond
	c, err := New(opts)
	require.NoError(t, err)
	return c
}

func signIn(t *testing.T, c *Client) *models.User {
	t.Helper()
	u, err := c.SignIn(context.Background())
	require.NoError(t, err)
	return u
}

func TestSendThenSeenSkipsDelivered(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()

	aliceClient := newTestClient(t, store, "alice", "Alice")
	bobClient := newTestClient(t, store, "bob", "Bob")
	alice := signIn(t, aliceClient)
	bob := signIn(t, bobClient)

	aliceConv, err := aliceClient.Open(ctx, bob)
	require.NoError(t, err)
	defer aliceConv.Close(ctx)

	require.NoError(t, aliceConv.Send(ctx, "hello"))

	// bob is not viewing: the message stays at sent and alice's own
	// observation must not advance it
	require.Eventually(t, func() bool {
		return len(aliceConv.Messages()) == 1
	}, waitFor, tick)
	time.Sleep(100 * time.Millisecond)
	msgs := aliceConv.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, models.StatusSent, msgs[0].Status)

	b := aliceConv.Badges()
	assert.Equal(t, 0, b.SentIdx, "latest own message shows the sent badge")
	assert.Equal(t, -1, b.SeenIdx)

	// bob opens the conversation: status jumps straight to seen
	bobConv, err := bobClient.Open(ctx, alice)
	require.NoError(t, err)
	defer bobConv.Close(ctx)

	require.Eventually(t, func() bool {
		msgs := aliceConv.Messages()
		return len(msgs) == 1 && msgs[0].Status == models.StatusSeen
	}, waitFor, tick, "receiver observation should advance to seen, not delivered")

	require.Eventually(t, func() bool {
		b := aliceConv.Badges()
		return b.SeenIdx == 0 && b.SentIdx == -1
	}, waitFor, tick)
}

func TestBackToBackSendsKeepCreationOrder(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()

	aliceClient := newTestClient(t, store, "alice", "Alice")
	signIn(t, aliceClient)
	bob := &models.User{ID: "bob", DisplayName: "Bob"}

	conv, err := aliceClient.Open(ctx, bob)
	require.NoError(t, err)
	defer conv.Close(ctx)

	require.NoError(t, conv.Send(ctx, "hi"))
	require.NoError(t, conv.Send(ctx, "there"))

	require.Eventually(t, func() bool {
		return len(conv.Messages()) == 2
	}, waitFor, tick)
	msgs := conv.Messages()
	assert.Equal(t, "hi", msgs[0].Text)
	assert.Equal(t, "there", msgs[1].Text)
}

// countingStore wraps a backend.Store and counts message appends.
type countingStore struct {
	backend.Store
	appends atomic.Int64
}

func (s *countingStore) AppendMessage(ctx context.Context, chatID string, m *models.Message) (string, error) {
	s.appends.Add(1)
	return s.Store.AppendMessage(ctx, chatID, m)
}

func TestEmptySendIsSilentNoOp(t *testing.T) {
	store := &countingStore{Store: memstore.New()}
	ctx := context.Background()

	aliceClient := newTestClient(t, store, "alice", "Alice")
	signIn(t, aliceClient)

	conv, err := aliceClient.Open(ctx, &models.User{ID: "bob"})
	require.NoError(t, err)
	defer conv.Close(ctx)

	require.NoError(t, conv.Send(ctx, ""))
	require.NoError(t, conv.Send(ctx, "   "))
	require.NoError(t, conv.Send(ctx, "\n\t "))

	assert.Equal(t, int64(0), store.appends.Load(), "no backend write for empty input")
	assert.Empty(t, conv.Messages())
}

func TestSendCapturesSenderIdentitySnapshot(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()

	aliceClient := newTestClient(t, store, "alice", "Alice")
	signIn(t, aliceClient)

	conv, err := aliceClient.Open(ctx, &models.User{ID: "bob"})
	require.NoError(t, err)
	defer conv.Close(ctx)

	require.NoError(t, conv.Send(ctx, "  hello  "))
	require.Eventually(t, func() bool {
		return len(conv.Messages()) == 1
	}, waitFor, tick)

	m := conv.Messages()[0]
	assert.Equal(t, "alice", m.SenderID)
	assert.Equal(t, "Alice", m.SenderName)
	assert.Equal(t, "hello", m.Text, "stored text is trimmed")
	assert.Equal(t, models.StatusSent, m.Status)
}

func TestTypingIndicatorRoundTrip(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()

	aliceClient := newTestClient(t, store, "alice", "Alice")
	bobClient := newTestClient(t, store, "bob", "Bob")
	alice := signIn(t, aliceClient)
	bob := signIn(t, bobClient)

	aliceConv, err := aliceClient.Open(ctx, bob)
	require.NoError(t, err)
	defer aliceConv.Close(ctx)
	bobConv, err := bobClient.Open(ctx, alice)
	require.NoError(t, err)
	defer bobConv.Close(ctx)

	bobConv.Keystroke(ctx)
	require.Eventually(t, aliceConv.PeerTyping, waitFor, tick, "alice should see bob typing")

	// bob goes idle: the flag auto-clears
	require.Eventually(t, func() bool { return !aliceConv.PeerTyping() }, waitFor, tick)

	// typing again and then sending clears immediately
	bobConv.Keystroke(ctx)
	require.Eventually(t, aliceConv.PeerTyping, waitFor, tick)
	require.NoError(t, bobConv.Send(ctx, "done"))
	require.Eventually(t, func() bool { return !aliceConv.PeerTyping() }, waitFor, tick)
}

func TestUnreadRecomputedFromSnapshot(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()

	aliceClient := newTestClient(t, store, "alice", "Alice")
	bobClient := newTestClient(t, store, "bob", "Bob")
	alice := signIn(t, aliceClient)
	bob := signIn(t, bobClient)

	aliceConv, err := aliceClient.Open(ctx, bob)
	require.NoError(t, err)
	require.NoError(t, aliceConv.Send(ctx, "one"))
	require.NoError(t, aliceConv.Send(ctx, "two"))
	aliceConv.Close(ctx)

	// from bob's side both messages are unread until his view reconciles
	// them to seen
	bobConv, err := bobClient.Open(ctx, alice)
	require.NoError(t, err)
	defer bobConv.Close(ctx)

	require.Eventually(t, func() bool {
		return len(bobConv.Messages()) == 2 && bobConv.Unread() == 0
	}, waitFor, tick, "viewing the conversation clears the unread count")
}

func TestCloseStopsReconciliation(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()

	aliceClient := newTestClient(t, store, "alice", "Alice")
	bobClient := newTestClient(t, store, "bob", "Bob")
	alice := signIn(t, aliceClient)
	bob := signIn(t, bobClient)

	bobConv, err := bobClient.Open(ctx, alice)
	require.NoError(t, err)
	bobConv.Close(ctx)

	aliceConv, err := aliceClient.Open(ctx, bob)
	require.NoError(t, err)
	defer aliceConv.Close(ctx)
	require.NoError(t, aliceConv.Send(ctx, "anyone there?"))

	// bob's closed session must not advance the message
	time.Sleep(150 * time.Millisecond)
	msgs := aliceConv.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, models.StatusSent, msgs[0].Status)
}
