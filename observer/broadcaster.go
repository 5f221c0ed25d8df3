package observer

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"arena/engine"
	"arena/rating"
)

const (
	// Number of recent events replayed to a connecting client
	recentEventsCount = 50

	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = 54 * time.Second

	subscriberBuffer = 64
)

// Event is one dashboard message.
type Event struct {
	Type    string         `json:"type"`
	MatchID string         `json:"match_id,omitempty"`
	At      time.Time      `json:"at"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Subscriber receives the event stream.
type Subscriber chan Event

// Broadcaster fans match events out to live dashboard connections over
// WebSocket. Broadcasting never blocks: a slow subscriber with a full buffer
// simply misses events.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[Subscriber]struct{}
	recent      []Event
	upgrader    websocket.Upgrader
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[Subscriber]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Dashboard is served without auth, allow any origin
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Subscribe adds a new subscriber and returns its channel.
// The channel has a buffer to prevent blocking on slow clients.
func (b *Broadcaster) Subscribe() Subscriber {
	ch := make(Subscriber, subscriberBuffer)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// subscribeWithReplay registers a subscriber and snapshots the recent events
// under one lock, so an event broadcast around connection time is either in
// the replay or in the subscription buffer, never both.
func (b *Broadcaster) subscribeWithReplay() (Subscriber, []Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(Subscriber, subscriberBuffer)
	b.subscribers[ch] = struct{}{}
	replay := make([]Event, len(b.recent))
	copy(replay, b.recent)
	return ch, replay
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broadcaster) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	if _, ok := b.subscribers[sub]; ok {
		delete(b.subscribers, sub)
		close(sub)
	}
	b.mu.Unlock()
}

// SubscriberCount returns the current number of subscribers.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// RecentEvents returns up to n of the most recent events, oldest first.
func (b *Broadcaster) RecentEvents(n int) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if n <= 0 || n >= len(b.recent) {
		n = len(b.recent)
	}
	out := make([]Event, n)
	copy(out, b.recent[len(b.recent)-n:])
	return out
}

func (b *Broadcaster) broadcast(e Event) {
	b.mu.Lock()
	b.recent = append(b.recent, e)
	if len(b.recent) > recentEventsCount {
		b.recent = b.recent[len(b.recent)-recentEventsCount:]
	}
	for sub := range b.subscribers {
		select {
		case sub <- e:
		default:
			// Buffer full, drop event for this slow subscriber
		}
	}
	b.mu.Unlock()
}

// === tournament.Observer ===

func (b *Broadcaster) MatchStart(matchID string, sides map[string]string) {
	payload := make(map[string]any, len(sides))
	for side, participant := range sides {
		payload[side] = participant
	}
	b.broadcast(Event{Type: "match_start", MatchID: matchID, At: time.Now().UTC(), Payload: payload})
}

func (b *Broadcaster) Turn(matchID string, record engine.TurnRecord, snapshot map[string]any) {
	b.broadcast(Event{Type: "turn", MatchID: matchID, At: time.Now().UTC(), Payload: map[string]any{
		"record":   record,
		"snapshot": snapshot,
	}})
}

func (b *Broadcaster) MatchEnd(matchID string, result engine.Result) {
	b.broadcast(Event{Type: "match_end", MatchID: matchID, At: time.Now().UTC(), Payload: map[string]any{
		"winner": result.Winner,
		"reason": result.Reason,
		"turns":  result.Turns,
	}})
}

func (b *Broadcaster) LeaderboardChanged(standings []rating.Standing) {
	b.broadcast(Event{Type: "leaderboard", At: time.Now().UTC(), Payload: map[string]any{
		"standings": standings,
	}})
}

// ServeHTTP upgrades the request to a WebSocket connection, replays recent
// events, then streams live events until the client disconnects.
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}

	sub, replay := b.subscribeWithReplay()

	for _, e := range replay {
		if err := writeEvent(conn, e); err != nil {
			log.Warn().Err(err).Msg("ws write recent event failed")
			b.Unsubscribe(sub)
			conn.Close()
			return
		}
	}

	done := make(chan struct{})

	// Reader goroutine - handles pongs and close messages
	go func() {
		defer close(done)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(pongWait))
			return nil
		})
		for {
			_, _, err := conn.ReadMessage()
			if err != nil {
				return
			}
		}
	}()

	// Writer loop - sends events and pings
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			b.Unsubscribe(sub)
			conn.Close()
			return

		case e, ok := <-sub:
			if !ok {
				conn.Close()
				return
			}
			if err := writeEvent(conn, e); err != nil {
				log.Warn().Err(err).Msg("ws write event failed")
				b.Unsubscribe(sub)
				conn.Close()
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				b.Unsubscribe(sub)
				conn.Close()
				return
			}
		}
	}
}

func writeEvent(conn *websocket.Conn, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}
