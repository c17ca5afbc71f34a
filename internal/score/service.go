package score

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/owlhoot/owlhoot/internal/domain"
	"github.com/owlhoot/owlhoot/internal/event"
)

var (
	answersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "owlhoot_answers_total",
		Help: "Answer submissions processed, by correctness.",
	}, []string{"correct"})

	writeBackFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "owlhoot_score_writeback_failures_total",
		Help: "Point updates that failed to persist.",
	})
)

// Roster is the write side of the player store.
type Roster interface {
	UpdatePoints(ctx context.Context, playerID string, delta int64) (*domain.Player, error)
}

type Config struct {
	EventBus *event.Bus
	Roster   Roster
}

type Service struct {
	eb     *event.Bus
	roster Roster
}

func NewService(c Config) *Service {
	return &Service{
		eb:     c.EventBus,
		roster: c.Roster,
	}
}

// Apply scores one answer event and writes the point delta back to the
// roster. The computed points are returned even when the write-back fails, so
// the caller can report what the player earned alongside the failure.
func (s *Service) Apply(ctx context.Context, ev domain.AnswerEvent) (int64, error) {
	pts := Points(ev.Correct, ev.ElapsedSeconds)
	answersTotal.WithLabelValues(boolLabel(ev.Correct)).Inc()

	p, err := s.roster.UpdatePoints(ctx, ev.PlayerID, pts)
	if err != nil {
		writeBackFailures.Inc()
		return pts, err
	}

	s.eb.Publish(ctx, domain.EventScoreUpdated{
		Score: domain.Score{
			PlayerID:   p.ID,
			PlayerName: p.Name,
			Points:     p.Points,
			UpdateTime: time.Now(),
		},
	})

	return pts, nil
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
