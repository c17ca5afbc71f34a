package leaderboard_test

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
	"github.com/owlhoot/owlhoot/internal/event"
	"github.com/owlhoot/owlhoot/internal/leaderboard"
)

func TestService_UpdateLeaderboard(t *testing.T) {
	s := makeService(t)

	err := s.UpdateLeaderboard(context.Background(), domain.EventScoreUpdated{
		Score: domain.Score{
			PlayerID:   "p1",
			PlayerName: "Bob",
			Points:     700,
			UpdateTime: time.Now(),
		},
	})
	require.NoError(t, err)

	resp, err := s.GetLeaderboard(context.Background())
	require.NoError(t, err)

	want := &domain.Leaderboard{
		Entries: []domain.LeaderboardEntry{
			{PlayerName: "Bob", Points: 700},
		},
	}
	require.Equal(t, want, resp)
}

func TestService_GetLeaderboardEmpty(t *testing.T) {
	s := makeService(t)

	_, err := s.GetLeaderboard(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodeNotFound))
}

func TestService_EntriesSortedByPointsDescending(t *testing.T) {
	s := makeService(t)

	for _, sc := range []domain.Score{
		{PlayerName: "Alice", Points: 300, UpdateTime: time.Now()},
		{PlayerName: "Bob", Points: 700, UpdateTime: time.Now()},
		{PlayerName: "Carol", Points: 500, UpdateTime: time.Now()},
	} {
		require.NoError(t, s.UpdateLeaderboard(context.Background(), domain.EventScoreUpdated{Score: sc}))
	}

	resp, err := s.GetLeaderboard(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []domain.LeaderboardEntry{
		{PlayerName: "Bob", Points: 700},
		{PlayerName: "Carol", Points: 500},
		{PlayerName: "Alice", Points: 300},
	}, resp.Entries)
}

func TestService_PublishLeaderboardUpdated(t *testing.T) {
	type (
		inputs struct {
			receivedEvents []domain.EventScoreUpdated
		}

		outputs struct {
			publishedEvents []domain.EventLeaderboardUpdated
		}
	)

	tests := map[string]struct {
		arrange func() inputs
		assert  func(t *testing.T, out outputs)
	}{
		"should publish leaderboard.updated after receiving score.updated": {
			arrange: func() inputs {
				return inputs{
					receivedEvents: []domain.EventScoreUpdated{
						{
							Score: domain.Score{
								PlayerName: "Bob",
								Points:     700,
								UpdateTime: time.Now(),
							},
						},
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				require.Len(t, out.publishedEvents, 1, "should receive 1 leaderboard updated event")
				require.Equal(t, domain.Leaderboard{
					Entries: []domain.LeaderboardEntry{
						{PlayerName: "Bob", Points: 700},
					},
				}, out.publishedEvents[0].Leaderboard)
			},
		},

		"should debounce score bursts into a single published event": {
			arrange: func() inputs {
				return inputs{
					receivedEvents: []domain.EventScoreUpdated{
						{
							Score: domain.Score{
								PlayerName: "Bob",
								Points:     700,
								UpdateTime: time.Now(),
							},
						},
						{
							Score: domain.Score{
								PlayerName: "Alice",
								Points:     500,
								UpdateTime: time.Now(),
							},
						},
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				require.Len(t, out.publishedEvents, 1, "should receive 1 leaderboard updated event")
			},
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			in, out := tt.arrange(), outputs{}

			eb := event.NewBus()

			var mu sync.Mutex
			eb.Subscribe(domain.EventNameLeaderboardUpdated, func(ctx context.Context, e event.Event) error {
				mu.Lock()
				out.publishedEvents = append(out.publishedEvents, e.(domain.EventLeaderboardUpdated))
				mu.Unlock()
				return nil
			})

			s := makeService(t,
				withEventBus(eb),
			)

			for _, e := range in.receivedEvents {
				err := s.UpdateLeaderboard(context.Background(), e)
				require.NoError(t, err)
			}

			eb.Stop()

			tt.assert(t, out)
		})
	}
}

func makeService(t *testing.T, opts ...options) *leaderboard.Service {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	rs := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{rs.Addr()},
	})
	require.NoError(t, rc.Ping(ctx).Err(), "should be able to ping redis")

	c := leaderboard.Config{
		EventBus: event.NewBus(),
		Redis:    rc,
		Prefix:   "test",
	}

	for _, opt := range opts {
		opt(&c)
	}

	return leaderboard.NewService(c)
}

type options func(c *leaderboard.Config)

func withEventBus(eb *event.Bus) options {
	return func(c *leaderboard.Config) {
		c.EventBus = eb
	}
}
