package relay

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/wirechat-fanout/internal/core"
	"github.com/vovakirdan/wirechat-fanout/internal/proto"
	"github.com/vovakirdan/wirechat-fanout/internal/store"
)

type delivery struct {
	conversationID int64
	payload        string
	exclude        string
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func runRelay(t *testing.T, mr *miniredis.Miniredis, r *Relay, deliver DeliverFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	before := mr.PubSubNumSub(r.channel)[r.channel]
	go func() { done <- r.Run(ctx, deliver) }()

	require.Eventually(t, func() bool {
		return mr.PubSubNumSub(r.channel)[r.channel] > before
	}, 2*time.Second, 5*time.Millisecond)

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("relay did not stop")
		}
	})
}

func TestRelayDeliversRemoteEventsOnly(t *testing.T) {
	mr, rdb := newRedis(t)
	a := New(rdb, "", "instance-a", nil)
	b := New(rdb, "", "instance-b", nil)

	var (
		mu  sync.Mutex
		got = map[string][]delivery{}
	)
	collect := func(name string) DeliverFunc {
		return func(_ context.Context, conversationID int64, payload []byte, exclude string) (int, error) {
			mu.Lock()
			defer mu.Unlock()
			got[name] = append(got[name], delivery{conversationID, string(payload), exclude})
			return 1, nil
		}
	}
	runRelay(t, mr, a, collect("a"))
	runRelay(t, mr, b, collect("b"))

	require.NoError(t, a.Publish(context.Background(), 7, []byte(`{"type":"typing"}`), "conn-1"))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got["b"]) == 1
	}, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, delivery{7, `{"type":"typing"}`, "conn-1"}, got["b"][0])
	require.Empty(t, got["a"])
}

func TestRelayIgnoresMalformedEnvelopes(t *testing.T) {
	mr, rdb := newRedis(t)
	r := New(rdb, "custom", "instance-a", nil)

	calls := make(chan int64, 4)
	runRelay(t, mr, r, func(_ context.Context, conversationID int64, _ []byte, _ string) (int, error) {
		calls <- conversationID
		return 0, nil
	})

	mr.Publish("custom", "not json")
	other := New(rdb, "custom", "instance-b", nil)
	require.NoError(t, other.Publish(context.Background(), 3, []byte(`{}`), ""))

	select {
	case id := <-calls:
		require.Equal(t, int64(3), id)
	case <-time.After(2 * time.Second):
		t.Fatal("valid envelope not delivered after malformed one")
	}
}

func TestRelayPublishFailsWhenRedisIsDown(t *testing.T) {
	mr, rdb := newRedis(t)
	r := New(rdb, "", "instance-a", nil)
	mr.Close()

	err := r.Publish(context.Background(), 1, []byte(`{}`), "")
	require.Error(t, err)
}

// recordingConn captures payloads for the cross-instance test.
type recordingConn struct {
	id     string
	userID int64

	mu       sync.Mutex
	payloads []string
}

func (c *recordingConn) ID() string             { return c.id }
func (c *recordingConn) UserID() int64          { return c.userID }
func (c *recordingConn) ConnectedAt() time.Time { return time.Time{} }
func (c *recordingConn) Close() error           { return nil }

func (c *recordingConn) Send(_ context.Context, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.payloads = append(c.payloads, string(payload))
	return nil
}

func (c *recordingConn) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.payloads)
}

type fixedMembers map[int64][]int64

func (m fixedMembers) ActiveParticipants(_ context.Context, conversationID int64) ([]int64, error) {
	members, ok := m[conversationID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return members, nil
}

func TestRelayBridgesDispatchersAcrossInstances(t *testing.T) {
	req := require.New(t)
	mr, rdb := newRedis(t)
	members := fixedMembers{5: {1, 2}}
	codec := proto.NewJSONCodec()

	// Given user 1 connected to instance A and user 2 connected to instance B
	regA, regB := core.NewRegistry(), core.NewRegistry()
	relayA := New(rdb, "", "instance-a", nil)
	relayB := New(rdb, "", "instance-b", nil)
	dispA := core.NewDispatcher(regA, members, codec, nil, core.WithPeer(relayA))
	dispB := core.NewDispatcher(regB, members, codec, nil, core.WithPeer(relayB))
	runRelay(t, mr, relayA, dispA.DeliverEncoded)
	runRelay(t, mr, relayB, dispB.DeliverEncoded)

	u1 := &recordingConn{id: "u1", userID: 1}
	u2 := &recordingConn{id: "u2", userID: 2}
	regA.Register(1, u1)
	regB.Register(2, u2)

	// When instance A dispatches a message
	msg := &store.Message{ID: 1, ConversationID: 5, SenderID: 1, Content: "hello", CreatedAt: time.Now()}
	reached, err := dispA.Dispatch(context.Background(), 5, core.NewMessageEvent(msg, ""))
	req.NoError(err)
	req.Equal(1, reached)

	// Then user 2 on instance B receives it too, and user 1 only once
	req.Eventually(func() bool { return u2.count() == 1 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	req.Equal(1, u1.count())
	req.Equal(1, u2.count())
}
