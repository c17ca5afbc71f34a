// Package signal owns the shared game-start flag: a single row in the admin
// table that an administrator flips to true exactly once per game. The engine
// reads and watches it, it never resets it.
package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/owlhoot/owlhoot/internal/errors"
	"github.com/owlhoot/owlhoot/internal/pubsub"
)

// Table is the change-notification key for the admin flag.
const Table = "admin"

// row is the wire shape of the admin table's single row. Unlike roster
// notifications, flag notifications deliver the new row.
type row struct {
	StartGame bool `json:"start_game"`
}

type Config struct {
	DB     *pgxpool.Pool
	Broker *pubsub.Broker
}

// Flag is the durable side of the signal.
type Flag struct {
	db     *pgxpool.Pool
	broker *pubsub.Broker
}

func NewFlag(c Config) *Flag {
	return &Flag{
		db:     c.DB,
		broker: c.Broker,
	}
}

// Start flips the flag to true and publishes the new value. Administrator
// action only; flipping an already-started game publishes a duplicate true,
// which subscribers must treat as a no-op.
func (f *Flag) Start(ctx context.Context) error {
	const stmt = `UPDATE admin SET start_game = TRUE;`

	if _, err := f.db.Exec(ctx, stmt); err != nil {
		return errors.Unavailable(fmt.Errorf("set start flag: %w", err))
	}

	if err := f.broker.Changed(ctx, Table, "update", row{StartGame: true}); err != nil {
		// The flag is committed; a subscriber that misses this will still
		// see it on reconnect via Started.
		return errors.Unavailable(fmt.Errorf("publish start flag: %w", err))
	}

	return nil
}

// Started reads the current flag value.
func (f *Flag) Started(ctx context.Context) (bool, error) {
	const stmt = `SELECT start_game FROM admin LIMIT 1;`

	var started bool
	if err := f.db.QueryRow(ctx, stmt).Scan(&started); err != nil {
		return false, errors.Unavailable(fmt.Errorf("read start flag: %w", err))
	}

	return started, nil
}

// Watcher delivers flag changes to a handler, push-only. Duplicate
// deliveries of the same value are possible; at-least-once holds for
// subscribers connected at the time of the flip.
type Watcher struct {
	broker *pubsub.Broker
}

func NewWatcher(broker *pubsub.Broker) *Watcher {
	return &Watcher{broker: broker}
}

// Watch subscribes the handler to flag changes. The handler receives the new
// value. Teardown goes through the returned subscription.
func (w *Watcher) Watch(ctx context.Context, h func(started bool)) *pubsub.Subscription {
	return w.broker.Watch(ctx, Table, func(n pubsub.Notification) {
		var r row
		if err := json.Unmarshal(n.Data, &r); err != nil {
			slog.WarnContext(ctx, "signal: drop malformed flag notification", "error", err)
			return
		}

		h(r.StartGame)
	})
}
