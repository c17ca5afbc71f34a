// Package pubsub carries change notifications between clients of the shared
// store. A notification tells subscribers that something changed; it is not a
// diff, and subscribers are expected to re-fetch the state they mirror.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Notification is the wire format for a single pub/sub message. Data is
// optional; roster notifications carry none, the admin flag carries the new
// row.
type Notification struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type Broker struct {
	redis  redis.UniversalClient
	prefix string
}

func NewBroker(rc redis.UniversalClient, prefix string) *Broker {
	return &Broker{redis: rc, prefix: prefix}
}

// Changed publishes a change notification for a shared table. The row is
// marshaled into the notification when non-nil.
func (b *Broker) Changed(ctx context.Context, table, op string, row any) error {
	n := Notification{Event: op}

	if row != nil {
		data, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("pubsub: marshal %s row: %v", table, err)
		}
		n.Data = data
	}

	return b.publish(ctx, b.tableKey(table), n)
}

// Notify publishes a client-facing notification on the shared client channel.
// Used for navigation triggers and leaderboard fanout; fire-and-forget from
// the caller's point of view.
func (b *Broker) Notify(ctx context.Context, event string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("pubsub: marshal %s: %v", event, err)
	}

	return b.publish(ctx, b.clientsKey(), Notification{Event: event, Data: raw})
}

func (b *Broker) publish(ctx context.Context, channel string, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("pubsub: marshal notification: %v", err)
	}

	return b.redis.Publish(ctx, channel, body).Err()
}

// Watch subscribes to the change channel of a shared table. The handler runs
// on a dedicated goroutine, one notification at a time.
func (b *Broker) Watch(ctx context.Context, table string, h func(Notification)) *Subscription {
	return newSubscription(b.redis.Subscribe(ctx, b.tableKey(table)), h)
}

func (b *Broker) tableKey(table string) string {
	return fmt.Sprintf("%s:table:%s", b.prefix, table)
}

func (b *Broker) clientsKey() string {
	return fmt.Sprintf("%s:clients", b.prefix)
}

// Subscription is a live watch on one channel. Unsubscribe is idempotent and
// safe to call while a notification is in flight: once it returns, no new
// handler invocations start.
type Subscription struct {
	ps   *redis.PubSub
	done chan struct{}

	mu     sync.Mutex
	closed bool
}

func newSubscription(ps *redis.PubSub, h func(Notification)) *Subscription {
	s := &Subscription{
		ps:   ps,
		done: make(chan struct{}),
	}

	go s.receive(h)
	return s
}

func (s *Subscription) receive(h func(Notification)) {
	defer close(s.done)

	for msg := range s.ps.Channel() {
		if !s.alive() {
			return
		}

		var n Notification
		if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
			slog.Warn("pubsub: drop undecodable notification",
				"channel", msg.Channel,
				"error", err,
			)
			continue
		}

		h(n)
	}
}

func (s *Subscription) alive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

// Unsubscribe tears the subscription down and waits for the receive loop to
// drain.
func (s *Subscription) Unsubscribe() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	if err := s.ps.Close(); err != nil {
		slog.Warn("pubsub: close subscription", "error", err)
	}

	<-s.done
}
