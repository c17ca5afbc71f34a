// Package roster owns the shared player table: the durable source of truth
// for who is in the game, and the client-side mirror kept in sync with it.
package roster

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/owlhoot/owlhoot/internal/domain"
	"github.com/owlhoot/owlhoot/internal/errors"
)

// Table is the change-notification key for the player table.
const Table = "players"

// Notifier publishes a table-keyed change notification after a mutation.
// Subscribers re-fetch the full snapshot; the notification carries no diff.
type Notifier interface {
	Changed(ctx context.Context, table, op string, row any) error
}

type Config struct {
	DB       *pgxpool.Pool
	Notifier Notifier
}

type Store struct {
	db       *pgxpool.Pool
	notifier Notifier
}

func NewStore(c Config) *Store {
	return &Store{
		db:       c.DB,
		notifier: c.Notifier,
	}
}

// AddPlayer inserts a new player with zero points. The id is assigned here,
// not by the caller. Duplicate names are accepted as separate rows; display
// code is expected to deduplicate.
func (s *Store) AddPlayer(ctx context.Context, name, color string) (*domain.Player, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate player ID: %w", err)
	}

	const stmt = `INSERT INTO players (id, name, color, points) VALUES ($1, $2, $3, 0);`

	if _, err := s.db.Exec(ctx, stmt, id, name, color); err != nil {
		return nil, errors.Unavailable(fmt.Errorf("insert player: %w", err))
	}

	p := &domain.Player{
		ID:    id.String(),
		Name:  name,
		Color: color,
	}

	s.changed(ctx, "insert")
	return p, nil
}

// RemovePlayer deletes every row matching name. Removing a name that is not
// on the roster is a no-op, not an error.
func (s *Store) RemovePlayer(ctx context.Context, name string) error {
	const stmt = `DELETE FROM players WHERE name = $1;`

	tag, err := s.db.Exec(ctx, stmt, name)
	if err != nil {
		return errors.Unavailable(fmt.Errorf("delete player: %w", err))
	}

	if tag.RowsAffected() > 0 {
		s.changed(ctx, "delete")
	}

	return nil
}

// UpdatePoints adds delta to a player's point total and returns the updated
// row. The player may have been removed between read and write; that surfaces
// as a not-found error and the caller decides whether it blocks anything.
func (s *Store) UpdatePoints(ctx context.Context, playerID string, delta int64) (*domain.Player, error) {
	const stmt = `
UPDATE players SET points = points + $2
WHERE id = $1
RETURNING id, name, color, points;`

	var p domain.Player
	err := s.db.QueryRow(ctx, stmt, playerID, delta).Scan(&p.ID, &p.Name, &p.Color, &p.Points)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.New(errors.CodeNotFound,
			errors.WithMessagef("player not found: id=%s", playerID),
			errors.WithCause(err),
		)
	}
	if err != nil {
		return nil, errors.Unavailable(fmt.Errorf("update points: %w", err))
	}

	s.changed(ctx, "update")
	return &p, nil
}

// ListPlayers returns the full roster snapshot. Row order is not guaranteed.
func (s *Store) ListPlayers(ctx context.Context) ([]domain.Player, error) {
	const stmt = `SELECT id, name, color, points FROM players;`

	rows, err := s.db.Query(ctx, stmt)
	if err != nil {
		return nil, errors.Unavailable(fmt.Errorf("list players: %w", err))
	}

	players, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.Player, error) {
		var p domain.Player
		if err := r.Scan(&p.ID, &p.Name, &p.Color, &p.Points); err != nil {
			return domain.Player{}, err
		}
		return p, nil
	})
	if err != nil {
		return nil, errors.Unavailable(fmt.Errorf("collect players: %w", err))
	}

	return players, nil
}

// changed is best-effort: a lost notification delays convergence until the
// next one, it does not fail the mutation that was already committed.
func (s *Store) changed(ctx context.Context, op string) {
	if s.notifier == nil {
		return
	}

	if err := s.notifier.Changed(ctx, Table, op, nil); err != nil {
		slog.WarnContext(ctx, "roster: publish change notification failed",
			"op", op,
			"error", err,
		)
	}
}
