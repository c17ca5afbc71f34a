// Package session drives a single client through one game: waiting in the
// lobby, playing a question, submitting the score, done. All collaborators
// are injected so the state machine is constructible in isolation.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/owlhoot/owlhoot/internal/domain"
	"github.com/owlhoot/owlhoot/internal/errors"
	"github.com/owlhoot/owlhoot/internal/event"
)

type State int

const (
	StateLobby State = iota
	StatePlaying
	StateScoreSubmitted
	StateComplete
)

func (s State) String() string {
	switch s {
	case StateLobby:
		return "lobby"
	case StatePlaying:
		return "playing"
	case StateScoreSubmitted:
		return "score_submitted"
	case StateComplete:
		return "complete"
	}
	return "unknown"
}

// Routes pushed to clients on transitions.
const (
	RoutePlay       = "/questions"
	RouteScoreboard = "/scoreboard"
)

// Scorer converts an answer event into points and persists the effect.
type Scorer interface {
	Apply(ctx context.Context, ev domain.AnswerEvent) (int64, error)
}

// Signal delivers game-start flag changes until the returned subscription is
// torn down, and exposes the current flag value for sessions that attach
// after the flip.
type Signal interface {
	Watch(ctx context.Context, h func(started bool)) Teardown
	Started(ctx context.Context) (bool, error)
}

type Teardown interface {
	Unsubscribe()
}

// Navigator pushes a route change to the client. Fire-and-forget: transitions
// never wait on it.
type Navigator interface {
	GoTo(route string)
}

type Config struct {
	Scorer    Scorer
	Signal    Signal
	Cache     *Cache
	Navigator Navigator
	EventBus  *event.Bus
	// Clock defaults to the real clock; tests inject a fake one.
	Clock clockwork.Clock
}

type Controller struct {
	scorer Scorer
	signal Signal
	cache  *Cache
	nav    Navigator
	eb     *event.Bus
	clock  clockwork.Clock

	mu    sync.Mutex
	state State
	entry time.Time
	sub   Teardown
}

func NewController(c Config) *Controller {
	clock := c.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &Controller{
		scorer: c.Scorer,
		signal: c.Signal,
		cache:  c.Cache,
		nav:    c.Navigator,
		eb:     c.EventBus,
		clock:  clock,
	}
}

// Start attaches the controller to the game-start signal. The controller
// begins in the lobby. A change notification only reaches subscribers
// connected at the time of the flip, so after subscribing the current flag
// value is read back: a session attached to an already-started game leaves
// the lobby immediately.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	if c.sub != nil {
		c.mu.Unlock()
		return
	}

	c.sub = c.signal.Watch(ctx, func(started bool) {
		c.onSignal(ctx, started)
	})
	c.mu.Unlock()

	started, err := c.signal.Started(ctx)
	if err != nil {
		// The watch is live; the flip will still arrive as a notification.
		slog.WarnContext(ctx, "session: read start flag failed", "error", err)
		return
	}

	if started {
		c.onSignal(ctx, started)
	}
}

// Stop detaches from the signal. Idempotent.
func (c *Controller) Stop() {
	c.mu.Lock()
	sub := c.sub
	c.sub = nil
	c.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// onSignal handles a flag delivery. Only the first true leaves the lobby;
// the transport may deliver the same value again and that must be a no-op.
func (c *Controller) onSignal(ctx context.Context, started bool) {
	if !started {
		return
	}

	c.mu.Lock()
	if c.state != StateLobby {
		c.mu.Unlock()
		return
	}
	c.state = StatePlaying
	c.entry = c.clock.Now()
	c.mu.Unlock()

	slog.InfoContext(ctx, "session: game started", "state", StatePlaying.String())

	if c.eb != nil {
		c.eb.Publish(ctx, domain.EventGameStarted{})
	}
	c.nav.GoTo(RoutePlay)
}

// SubmitAnswer scores the player's answer to the current question. Elapsed
// time is measured here against the question-presentation timestamp, never
// taken from the client.
//
// An unresolved identity keeps the controller in Playing so the player can
// re-attempt. Once the answer is accepted the controller always reaches
// Complete: a failed point write-back is logged and returned, but it does not
// strand the player on the question screen.
func (c *Controller) SubmitAnswer(ctx context.Context, questionID int, correct bool) (int64, error) {
	c.mu.Lock()
	if c.state != StatePlaying {
		state := c.state
		c.mu.Unlock()
		return 0, errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("no question in play: state=%s", state))
	}

	playerID, ok := c.cache.PlayerID()
	if !ok {
		c.mu.Unlock()
		return 0, errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("player identity missing from session cache"))
	}

	elapsed := c.clock.Since(c.entry).Seconds()
	c.state = StateScoreSubmitted
	c.mu.Unlock()

	pts, err := c.scorer.Apply(ctx, domain.AnswerEvent{
		PlayerID:       playerID,
		QuestionID:     questionID,
		Correct:        correct,
		ElapsedSeconds: elapsed,
	})

	c.mu.Lock()
	c.state = StateComplete
	c.mu.Unlock()
	c.nav.GoTo(RouteScoreboard)

	if err != nil {
		slog.ErrorContext(ctx, "session: score write-back failed",
			"player", playerID,
			"question", questionID,
			"error", err,
		)
		return pts, err
	}

	slog.InfoContext(ctx, "session: answer scored",
		"player", playerID,
		"question", questionID,
		"points", pts,
		"elapsed_seconds", elapsed,
	)
	return pts, nil
}
