package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/owlhoot/owlhoot/internal/domain"
	"github.com/owlhoot/owlhoot/internal/pubsub"
)

const (
	notifyTimeout = 5 * time.Second

	eventNavigate = "navigate"
)

// Navigator pushes route changes to connected clients. Fire-and-forget: a
// failed push is logged, never propagated, so a transition cannot block on
// it.
type Navigator struct {
	broker *pubsub.Broker
}

func NewNavigator(broker *pubsub.Broker) *Navigator {
	return &Navigator{broker: broker}
}

func (n *Navigator) GoTo(route string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()

		if err := n.broker.Notify(ctx, eventNavigate, map[string]string{"route": route}); err != nil {
			slog.WarnContext(ctx, "api: push navigation failed",
				"route", route,
				"error", err,
			)
		}
	}()
}

// PublishLeaderboardUpdated fans a fresh leaderboard out to clients.
func (a *API) PublishLeaderboardUpdated(ctx context.Context, e domain.EventLeaderboardUpdated) error {
	l := e.Leaderboard

	entries := make([]leaderboardEntry, 0, len(l.Entries))
	for _, entry := range l.Entries {
		entries = append(entries, leaderboardEntry{
			Name:   entry.PlayerName,
			Points: int64(entry.Points),
		})
	}

	return a.broker.Notify(ctx, domain.EventNameLeaderboardUpdated, leaderboardResponse{Entries: entries})
}
