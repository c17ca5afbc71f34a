package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/owlhoot/owlhoot/internal/api"
	"github.com/owlhoot/owlhoot/internal/content"
	"github.com/owlhoot/owlhoot/internal/event"
	"github.com/owlhoot/owlhoot/internal/leaderboard"
	"github.com/owlhoot/owlhoot/internal/pubsub"
	"github.com/owlhoot/owlhoot/internal/roster"
	"github.com/owlhoot/owlhoot/internal/score"
	"github.com/owlhoot/owlhoot/internal/session"
	"github.com/owlhoot/owlhoot/internal/signal"
	"github.com/owlhoot/owlhoot/internal/telemetry"
)

type Config struct {
	HTTP struct {
		Port int32
	}

	Redis struct {
		Addrs  []string
		Pass   string
		Prefix string
	}

	Postgres struct {
		Addr string
		User string
		Pass string
		Name string
	}

	Content struct {
		QuestionsURL string
	}
}

type Server struct {
	c Config

	eb *event.Bus

	infra struct {
		redis    redis.UniversalClient
		postgres *pgxpool.Pool
	}

	broker *pubsub.Broker

	service struct {
		roster      *roster.Store
		sync        *roster.Sync
		flag        *signal.Flag
		session     *session.Controller
		cache       *session.Cache
		score       *score.Service
		leaderboard *leaderboard.Service
		content     *content.Provider
	}

	http *http.Server
}

func Init(c Config) (*Server, error) {
	s := &Server{c: c}

	s.eb = event.NewBus()

	if err := s.initInfra(); err != nil {
		return nil, fmt.Errorf("server: init infra: %w", err)
	}

	s.broker = pubsub.NewBroker(s.infra.redis, c.Redis.Prefix)

	s.initService()
	s.initAPI()
	return s, nil
}

func (s *Server) initInfra() error {
	if err := s.initRedis(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	if err := s.initPostgres(); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}

	return nil
}

func (s *Server) initRedis() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	r := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    s.c.Redis.Addrs,
		Password: s.c.Redis.Pass,
	})

	if err := telemetry.MonitorRedis(r); err != nil {
		return err
	}

	if err := r.Ping(ctx).Err(); err != nil {
		return err
	}

	s.infra.redis = r
	return nil
}

func (s *Server) initPostgres() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cc, err := pgxpool.ParseConfig(fmt.Sprintf("postgres://%s:%s@%s/%s",
		s.c.Postgres.User, s.c.Postgres.Pass, s.c.Postgres.Addr, s.c.Postgres.Name))
	if err != nil {
		return err
	}

	db, err := pgxpool.NewWithConfig(ctx, cc)
	if err != nil {
		return err
	}

	if err := db.Ping(ctx); err != nil {
		return err
	}

	s.infra.postgres = db
	return nil
}

func (s *Server) initService() {
	s.service.roster = roster.NewStore(roster.Config{
		DB:       s.infra.postgres,
		Notifier: s.broker,
	})

	s.service.sync = roster.NewSync(s.service.roster, s.broker)

	s.service.flag = signal.NewFlag(signal.Config{
		DB:     s.infra.postgres,
		Broker: s.broker,
	})

	s.service.score = score.NewService(score.Config{
		EventBus: s.eb,
		Roster:   s.service.roster,
	})

	s.service.leaderboard = leaderboard.NewService(leaderboard.Config{
		EventBus: s.eb,
		Redis:    s.infra.redis,
		Prefix:   s.c.Redis.Prefix,
	})

	s.service.content = content.NewProvider(content.Config{
		BaseURL: s.c.Content.QuestionsURL,
	})

	s.service.cache = session.NewCache()

	s.service.session = session.NewController(session.Config{
		Scorer:    s.service.score,
		Signal:    signalAdapter{w: signal.NewWatcher(s.broker), f: s.service.flag},
		Cache:     s.service.cache,
		Navigator: api.NewNavigator(s.broker),
		EventBus:  s.eb,
	})
}

// signalAdapter combines the watcher and the durable flag into the
// controller's Signal dependency.
type signalAdapter struct {
	w *signal.Watcher
	f *signal.Flag
}

func (a signalAdapter) Watch(ctx context.Context, h func(started bool)) session.Teardown {
	return a.w.Watch(ctx, h)
}

func (a signalAdapter) Started(ctx context.Context) (bool, error) {
	return a.f.Started(ctx)
}

func (s *Server) initAPI() {
	e := gin.New()
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	pprof.Register(e, "/debug/pprof")
	e.Use(gin.Recovery())

	api.New(api.Config{
		Engine:      e,
		EventBus:    s.eb,
		Roster:      s.service.roster,
		Sync:        s.service.sync,
		Flag:        s.service.flag,
		Session:     s.service.session,
		Cache:       s.service.cache,
		Content:     s.service.content,
		Leaderboard: s.service.leaderboard,
		Broker:      s.broker,
	})

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}
}

func (s *Server) Start() {
	ctx := context.Background()

	if err := s.service.sync.Start(ctx); err != nil {
		slog.ErrorContext(ctx, "server: start roster sync failed", "error", err)
		panic(err)
	}

	s.service.session.Start(ctx)

	var eg errgroup.Group
	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: HTTP listening on port %d", s.c.HTTP.Port))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if err := eg.Wait(); err != nil {
		slog.ErrorContext(ctx, "server: shutdown with error", "error", err)
	}
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}

	s.service.session.Stop()
	s.service.sync.Stop()
	s.eb.Stop()

	s.infra.postgres.Close()
	if err := s.infra.redis.Close(); err != nil {
		slog.ErrorContext(ctx, "server: close redis failed", "error", err)
	}

	slog.InfoContext(ctx, "server: shutdown completed")
}
