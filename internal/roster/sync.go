package roster

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/owlhoot/owlhoot/internal/domain"
	"github.com/owlhoot/owlhoot/internal/errors"
	"github.com/owlhoot/owlhoot/internal/pubsub"
)

// Lister is the read side of the player store.
type Lister interface {
	ListPlayers(ctx context.Context) ([]domain.Player, error)
}

// Watcher subscribes to a table's change channel.
type Watcher interface {
	Watch(ctx context.Context, table string, h func(pubsub.Notification)) *pubsub.Subscription
}

// Sync maintains a local mirror of the player table. The mirror is eventually
// consistent: every change notification triggers a full re-fetch that
// replaces the snapshot wholesale, so out-of-order notifications cannot
// corrupt it. Whatever the store reports last wins.
type Sync struct {
	store   Lister
	watcher Watcher

	mu      sync.Mutex
	alive   bool
	players []domain.Player
	sub     *pubsub.Subscription
}

func NewSync(store Lister, watcher Watcher) *Sync {
	return &Sync{
		store:   store,
		watcher: watcher,
	}
}

// Start takes the initial snapshot and subscribes to change notifications.
// Starting an already-started sync is an error; Start after Stop attaches a
// fresh subscription.
func (s *Sync) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.alive {
		s.mu.Unlock()
		return errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("roster sync already started"))
	}
	s.alive = true
	s.mu.Unlock()

	players, err := s.store.ListPlayers(ctx)
	if err != nil {
		s.mu.Lock()
		s.alive = false
		s.mu.Unlock()
		return err
	}
	s.apply(players)

	sub := s.watcher.Watch(ctx, Table, func(pubsub.Notification) {
		s.refresh(ctx)
	})

	s.mu.Lock()
	if !s.alive {
		// Stopped while we were subscribing.
		s.mu.Unlock()
		sub.Unsubscribe()
		return nil
	}
	s.sub = sub
	s.mu.Unlock()

	return nil
}

// Stop tears down the subscription. Idempotent, and safe while a
// notification is in flight: a re-fetch racing with Stop checks liveness
// before touching the snapshot, so nothing mutates after Stop returns.
func (s *Sync) Stop() {
	s.mu.Lock()
	if !s.alive {
		s.mu.Unlock()
		return
	}
	s.alive = false
	sub := s.sub
	s.sub = nil
	s.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
}

func (s *Sync) refresh(ctx context.Context) {
	players, err := s.store.ListPlayers(ctx)
	if err != nil {
		// Stale snapshot until the next notification; the store stays the
		// source of truth.
		slog.WarnContext(ctx, "roster: re-fetch snapshot failed", "error", err)
		return
	}

	s.apply(players)
}

func (s *Sync) apply(players []domain.Player) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.alive {
		return
	}

	s.players = players
}

// Snapshot returns the roster as of the last processed notification.
func (s *Sync) Snapshot() []domain.Player {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Player, len(s.players))
	copy(out, s.players)
	return out
}

// Display returns the snapshot deduplicated for rendering: the store accepts
// duplicate joins as separate rows, so only the latest row per name is shown.
// Player ids are UUIDv7, so the lexically greatest id is the newest row.
func (s *Sync) Display() []domain.Player {
	latest := make(map[string]domain.Player)
	for _, p := range s.Snapshot() {
		if cur, ok := latest[p.Name]; ok && cur.ID >= p.ID {
			continue
		}
		latest[p.Name] = p
	}

	out := make([]domain.Player, 0, len(latest))
	for _, p := range latest {
		out = append(out, p)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
