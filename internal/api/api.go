// Package api is the HTTP surface of the engine plus the push side of the
// client protocol: route pushes and leaderboard fanout over the shared
// client channel.
package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/owlhoot/owlhoot/internal/content"
	"github.com/owlhoot/owlhoot/internal/domain"
	"github.com/owlhoot/owlhoot/internal/errors"
	"github.com/owlhoot/owlhoot/internal/event"
	"github.com/owlhoot/owlhoot/internal/leaderboard"
	"github.com/owlhoot/owlhoot/internal/pubsub"
	"github.com/owlhoot/owlhoot/internal/roster"
	"github.com/owlhoot/owlhoot/internal/session"
	"github.com/owlhoot/owlhoot/internal/signal"
)

type Config struct {
	Engine      *gin.Engine
	EventBus    *event.Bus
	Roster      *roster.Store
	Sync        *roster.Sync
	Flag        *signal.Flag
	Session     *session.Controller
	Cache       *session.Cache
	Content     *content.Provider
	Leaderboard *leaderboard.Service
	Broker      *pubsub.Broker
}

type API struct {
	roster  *roster.Store
	sync    *roster.Sync
	flag    *signal.Flag
	session *session.Controller
	cache   *session.Cache
	content *content.Provider
	lb      *leaderboard.Service
	broker  *pubsub.Broker
}

func New(c Config) *API {
	a := &API{
		roster:  c.Roster,
		sync:    c.Sync,
		flag:    c.Flag,
		session: c.Session,
		cache:   c.Cache,
		content: c.Content,
		lb:      c.Leaderboard,
		broker:  c.Broker,
	}

	a.registerRoutes(c.Engine)

	c.EventBus.Subscribe(domain.EventNameLeaderboardUpdated, func(ctx context.Context, e event.Event) error {
		return a.PublishLeaderboardUpdated(ctx, e.(domain.EventLeaderboardUpdated))
	})

	return a
}

func (a *API) registerRoutes(e *gin.Engine) {
	g := e.Group("/api")

	g.POST("/players", a.joinPlayer)
	g.DELETE("/players/:name", a.removePlayer)
	g.GET("/players", a.listPlayers)

	g.POST("/admin/start", a.startGame)

	g.GET("/questions", a.listQuestions)
	g.POST("/answers", a.submitAnswer)
	g.GET("/leaderboard", a.getLeaderboard)
}

type joinRequest struct {
	Name  string `json:"name" binding:"required"`
	Color string `json:"color"`
}

func (a *API) joinPlayer(c *gin.Context) {
	var req joinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, errors.New(errors.CodeInvalidArgument, errors.WithCause(err)))
		return
	}

	p, err := a.roster.AddPlayer(c.Request.Context(), req.Name, req.Color)
	if err != nil {
		abort(c, err)
		return
	}

	// This process now plays as the joined player.
	a.cache.SetPlayerID(p.ID)

	c.JSON(http.StatusCreated, p)
}

func (a *API) removePlayer(c *gin.Context) {
	if err := a.roster.RemovePlayer(c.Request.Context(), c.Param("name")); err != nil {
		abort(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (a *API) listPlayers(c *gin.Context) {
	c.JSON(http.StatusOK, a.sync.Display())
}

func (a *API) startGame(c *gin.Context) {
	if err := a.flag.Start(c.Request.Context()); err != nil {
		abort(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (a *API) listQuestions(c *gin.Context) {
	questions, err := a.content.FetchQuestions(c.Request.Context())
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, questions)
}

type answerRequest struct {
	QuestionID int  `json:"question_id"`
	Correct    bool `json:"correct"`
}

type answerResponse struct {
	Points int64  `json:"points"`
	State  string `json:"state"`
	Notice string `json:"notice,omitempty"`
}

func (a *API) submitAnswer(c *gin.Context) {
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, errors.New(errors.CodeInvalidArgument, errors.WithCause(err)))
		return
	}

	pts, err := a.session.SubmitAnswer(c.Request.Context(), req.QuestionID, req.Correct)

	resp := answerResponse{
		Points: pts,
		State:  a.session.State().String(),
	}

	// A write-back failure after the answer was accepted is a notice, not a
	// request failure: the session has already advanced.
	if err != nil {
		if a.session.State() == session.StateComplete {
			resp.Notice = errors.Convert(err).Message
			c.JSON(http.StatusOK, resp)
			return
		}

		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (a *API) getLeaderboard(c *gin.Context) {
	l, err := a.lb.GetLeaderboard(c.Request.Context())
	if err != nil {
		abort(c, err)
		return
	}

	entries := make([]leaderboardEntry, 0, len(l.Entries))
	for _, e := range l.Entries {
		entries = append(entries, leaderboardEntry{
			Name:   e.PlayerName,
			Points: int64(e.Points),
		})
	}

	c.JSON(http.StatusOK, leaderboardResponse{Entries: entries})
}

type leaderboardResponse struct {
	Entries []leaderboardEntry `json:"entries"`
}

type leaderboardEntry struct {
	Name   string `json:"name"`
	Points int64  `json:"points"`
}

func abort(c *gin.Context, err error) {
	e := errors.Convert(err)
	c.AbortWithStatusJSON(e.HTTPStatusCode(), gin.H{
		"code":    e.Code,
		"message": e.Message,
	})
}
