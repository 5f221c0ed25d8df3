package observer

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"arena/engine"
	"arena/rating"
)

func TestBroadcasterSubscriptions(t *testing.T) {
	b := NewBroadcaster()
	require.Zero(t, b.SubscriberCount())

	sub1 := b.Subscribe()
	sub2 := b.Subscribe()
	require.Equal(t, 2, b.SubscriberCount())

	b.Unsubscribe(sub1)
	require.Equal(t, 1, b.SubscriberCount())

	// Unsubscribing twice must not close the channel twice
	b.Unsubscribe(sub1)
	b.Unsubscribe(sub2)
	require.Zero(t, b.SubscriberCount())
}

func TestBroadcasterDelivery(t *testing.T) {
	t.Run("subscribers receive match events", func(t *testing.T) {
		b := NewBroadcaster()
		sub := b.Subscribe()
		defer b.Unsubscribe(sub)

		b.MatchStart("m1", map[string]string{"north": "alice", "south": "bob"})

		select {
		case e := <-sub:
			require.Equal(t, "match_start", e.Type)
			require.Equal(t, "m1", e.MatchID)
			require.Equal(t, "alice", e.Payload["north"])
		case <-time.After(100 * time.Millisecond):
			t.Fatal("timeout waiting for broadcast event")
		}
	})

	t.Run("full subscriber buffer drops events instead of blocking", func(t *testing.T) {
		b := NewBroadcaster()
		sub := b.Subscribe()
		defer b.Unsubscribe(sub)

		done := make(chan struct{})
		go func() {
			defer close(done)
			for i := 0; i < subscriberBuffer+10; i++ {
				b.Turn("m1", engine.TurnRecord{Turn: i + 1}, nil)
			}
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("broadcast blocked on a slow subscriber")
		}
		require.Equal(t, subscriberBuffer, len(sub), "overflow beyond the buffer is dropped")
	})

	t.Run("leaderboard events carry the standings", func(t *testing.T) {
		b := NewBroadcaster()
		sub := b.Subscribe()
		defer b.Unsubscribe(sub)

		b.LeaderboardChanged([]rating.Standing{{Participant: "alice"}})

		e := <-sub
		require.Equal(t, "leaderboard", e.Type)
		require.NotNil(t, e.Payload["standings"])
	})
}

func TestSubscribeWithReplay(t *testing.T) {
	b := NewBroadcaster()
	b.MatchStart("m1", map[string]string{"north": "alice"})

	sub, replay := b.subscribeWithReplay()
	defer b.Unsubscribe(sub)
	b.MatchEnd("m1", engine.Result{Winner: "alice"})

	require.Len(t, replay, 1, "events before subscribing are replay only")
	require.Equal(t, "match_start", replay[0].Type)
	require.Len(t, sub, 1, "events after subscribing are delivered exactly once")
	require.Equal(t, "match_end", (<-sub).Type)
}

func TestBroadcasterRecentEvents(t *testing.T) {
	b := NewBroadcaster()

	for i := 0; i < recentEventsCount+20; i++ {
		b.MatchEnd("m1", engine.Result{Turns: i})
	}

	recent := b.RecentEvents(0)
	require.Len(t, recent, recentEventsCount, "history is capped")
	require.Equal(t, 20, recent[0].Payload["turns"], "oldest retained event")

	require.Len(t, b.RecentEvents(5), 5)
}

func TestBroadcasterServeHTTP(t *testing.T) {
	b := NewBroadcaster()
	server := httptest.NewServer(b)
	defer server.Close()

	// Events published before the client connects are replayed on connect
	b.MatchStart("m1", map[string]string{"north": "alice"})

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var replayed Event
	require.NoError(t, json.Unmarshal(data, &replayed))
	require.Equal(t, "match_start", replayed.Type)
	require.Equal(t, "m1", replayed.MatchID)

	// Wait for the server to register the live subscription
	require.Eventually(t, func() bool { return b.SubscriberCount() == 1 },
		time.Second, 10*time.Millisecond)

	b.MatchEnd("m1", engine.Result{Winner: "alice", Reason: engine.ReasonNormal})

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err = conn.ReadMessage()
	require.NoError(t, err)

	var live Event
	require.NoError(t, json.Unmarshal(data, &live))
	require.Equal(t, "match_end", live.Type)
	require.Equal(t, "alice", live.Payload["winner"])
}
