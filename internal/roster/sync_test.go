package roster_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/owlhoot/owlhoot/internal/domain"
	"github.com/owlhoot/owlhoot/internal/errors"
	"github.com/owlhoot/owlhoot/internal/pubsub"
	"github.com/owlhoot/owlhoot/internal/roster"
)

func TestSync_Convergence(t *testing.T) {
	ctx := context.Background()
	broker := makeBroker(t)
	store := &fakeLister{players: []domain.Player{{ID: "1", Name: "Alice"}}}

	s := roster.NewSync(store, broker)
	require.NoError(t, s.Start(ctx))
	defer s.Stop()

	require.Len(t, s.Snapshot(), 1, "initial snapshot should be taken on start")

	store.set([]domain.Player{
		{ID: "1", Name: "Alice"},
		{ID: "2", Name: "Bob"},
	})

	// Notifications carry no payload; the mirror re-fetches until it reports
	// what the store reports.
	require.Eventually(t, func() bool {
		_ = broker.Changed(ctx, roster.Table, "insert", nil)
		return len(s.Snapshot()) == 2
	}, 3*time.Second, 20*time.Millisecond)

	assert.ElementsMatch(t, store.get(), s.Snapshot())
}

func TestSync_DoubleStart(t *testing.T) {
	ctx := context.Background()
	s := roster.NewSync(&fakeLister{}, makeBroker(t))

	require.NoError(t, s.Start(ctx))
	defer s.Stop()

	err := s.Start(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodeFailedPrecondition))
}

func TestSync_TeardownWithNotificationInFlight(t *testing.T) {
	ctx := context.Background()
	broker := makeBroker(t)
	store := &fakeLister{players: []domain.Player{{ID: "1", Name: "Alice"}}}

	s := roster.NewSync(store, broker)
	require.NoError(t, s.Start(ctx))

	before := s.Snapshot()

	// Block the re-fetch triggered by the next notification, then tear down
	// while it is in flight.
	entered := make(chan struct{})
	release := make(chan struct{})
	store.setBlock(entered, release)
	store.set([]domain.Player{
		{ID: "1", Name: "Alice"},
		{ID: "2", Name: "Bob"},
	})

	require.NoError(t, broker.Changed(ctx, roster.Table, "insert", nil))

	select {
	case <-entered:
	case <-time.After(3 * time.Second):
		t.Fatal("re-fetch was never triggered")
	}

	go func() {
		time.Sleep(100 * time.Millisecond)
		close(release)
	}()

	s.Stop()

	// The in-flight re-fetch completed after teardown; it must not have
	// touched the snapshot.
	assert.Equal(t, before, s.Snapshot())
}

func TestSync_DisplayDeduplicatesByLatestID(t *testing.T) {
	ctx := context.Background()
	store := &fakeLister{players: []domain.Player{
		{ID: "018f-aaaa", Name: "Alice", Points: 100},
		{ID: "018f-cccc", Name: "Alice", Points: 300},
		{ID: "018f-bbbb", Name: "Bob", Points: 200},
	}}

	s := roster.NewSync(store, makeBroker(t))
	require.NoError(t, s.Start(ctx))
	defer s.Stop()

	// Duplicate joins are store-level artifacts; the display view keeps the
	// newest row per name.
	assert.Equal(t, []domain.Player{
		{ID: "018f-cccc", Name: "Alice", Points: 300},
		{ID: "018f-bbbb", Name: "Bob", Points: 200},
	}, s.Display())

	// The raw snapshot never drops rows.
	assert.Len(t, s.Snapshot(), 3)
}

func makeBroker(t *testing.T) *pubsub.Broker {
	t.Helper()

	rs := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{rs.Addr()},
	})
	t.Cleanup(func() { _ = rc.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, rc.Ping(ctx).Err(), "should be able to ping redis")

	return pubsub.NewBroker(rc, "test")
}

type fakeLister struct {
	mu      sync.Mutex
	players []domain.Player

	entered chan struct{}
	release chan struct{}
}

func (f *fakeLister) ListPlayers(context.Context) ([]domain.Player, error) {
	f.mu.Lock()
	entered, release := f.entered, f.release
	f.entered, f.release = nil, nil
	f.mu.Unlock()

	if entered != nil {
		close(entered)
		<-release
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Player(nil), f.players...), nil
}

func (f *fakeLister) set(players []domain.Player) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.players = players
}

func (f *fakeLister) get() []domain.Player {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Player(nil), f.players...)
}

func (f *fakeLister) setBlock(entered, release chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entered = entered
	f.release = release
}
