// Package leaderboard keeps the scoreboard view in sync with score updates.
// One sorted set backs the single active session.
package leaderboard

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/owlhoot/owlhoot/internal/domain"
	"github.com/owlhoot/owlhoot/internal/errors"
	"github.com/owlhoot/owlhoot/internal/event"
)

const (
	publishInterval = 200 * time.Millisecond
)

type Config struct {
	EventBus *event.Bus
	Redis    redis.UniversalClient
	Prefix   string
}

type Service struct {
	eb     *event.Bus
	redis  redis.UniversalClient
	prefix string
}

func NewService(c Config) *Service {
	s := &Service{
		eb:     c.EventBus,
		redis:  c.Redis,
		prefix: c.Prefix,
	}

	s.eb.Subscribe(domain.EventNameScoreUpdated, func(ctx context.Context, e event.Event) error {
		return s.UpdateLeaderboard(ctx, e.(domain.EventScoreUpdated))
	})

	return s
}

// GetLeaderboard returns all players and their point totals, highest first.
func (s *Service) GetLeaderboard(ctx context.Context) (*domain.Leaderboard, error) {
	res, err := s.redis.ZRevRangeWithScores(ctx, s.boardKey(), 0, -1).Result()
	if err != nil {
		return nil, errors.Unavailable(fmt.Errorf("get leaderboard: %w", err))
	}

	if len(res) == 0 {
		return nil, errors.New(errors.CodeNotFound,
			errors.WithMessagef("leaderboard is empty"))
	}

	entries := make([]domain.LeaderboardEntry, 0, len(res))
	for _, z := range res {
		entries = append(entries, domain.LeaderboardEntry{
			PlayerName: z.Member.(string),
			Points:     z.Score,
		})
	}

	return &domain.Leaderboard{Entries: entries}, nil
}

// UpdateLeaderboard overwrites the player's total in the sorted set. Entries
// are keyed by display name, matching what the scoreboard renders.
func (s *Service) UpdateLeaderboard(ctx context.Context, e domain.EventScoreUpdated) error {
	sc := e.Score

	if err := s.redis.ZAdd(ctx, s.boardKey(), redis.Z{
		Score:  float64(sc.Points),
		Member: sc.PlayerName,
	}).Err(); err != nil {
		return fmt.Errorf("update leaderboard: %w", err)
	}

	return s.schedulePublish(ctx, sc)
}

// schedulePublish debounces leaderboard fanout: a burst of score updates
// within the interval produces a single published event.
func (s *Service) schedulePublish(ctx context.Context, sc domain.Score) error {
	ok, err := s.redis.SetNX(ctx, s.timeKey(), sc.UpdateTime.UnixMilli(), publishInterval).Result()
	if err != nil {
		return fmt.Errorf("setnx: %w", err)
	}

	if !ok {
		return nil
	}

	return s.publish(ctx)
}

func (s *Service) publish(ctx context.Context) error {
	l, err := s.GetLeaderboard(ctx)
	if err != nil {
		return fmt.Errorf("publish leaderboard: %w", err)
	}

	s.eb.Publish(ctx, domain.EventLeaderboardUpdated{
		Leaderboard: *l,
	})

	return nil
}

func (s *Service) boardKey() string {
	return fmt.Sprintf("%s:leaderboard", s.prefix)
}

func (s *Service) timeKey() string {
	return fmt.Sprintf("%s:leaderboard:time", s.prefix)
}
