package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/gokatarajesh/quiz-duel/internal/auth/jwt"
	"github.com/gokatarajesh/quiz-duel/internal/config"
	"github.com/gokatarajesh/quiz-duel/internal/db/queries"
	"github.com/gokatarajesh/quiz-duel/internal/db/repository"
	"github.com/gokatarajesh/quiz-duel/internal/grading"
	"github.com/gokatarajesh/quiz-duel/internal/grading/ai"
	"github.com/gokatarajesh/quiz-duel/internal/logging"
	"github.com/gokatarajesh/quiz-duel/internal/match"
	"github.com/gokatarajesh/quiz-duel/internal/match/queue"
	"github.com/gokatarajesh/quiz-duel/internal/match/scoring"
	"github.com/gokatarajesh/quiz-duel/internal/metrics"
	"github.com/gokatarajesh/quiz-duel/internal/question"
	"github.com/gokatarajesh/quiz-duel/internal/rating"
	"github.com/gokatarajesh/quiz-duel/internal/server"
	ws "github.com/gokatarajesh/quiz-duel/pkg/http/ws"
)

const warmTimeout = 10 * time.Second

// Application aggregates shared infrastructure (DB, cache, HTTP server) and
// the match orchestrator.
type Application struct {
	cfg    *config.App
	logger zerolog.Logger

	pool  *pgxpool.Pool
	redis *redis.Client
	http  *http.Server

	orch      *match.Orchestrator
	ratings   *rating.Store
	scheduler gocron.Scheduler
}

// New bootstraps configs, logger, Postgres, Redis, the orchestrator and HTTP server.
func New(ctx context.Context, cfg *config.App) (*Application, error) {
	logger := logging.New(cfg.Name, cfg.Env)
	logger.Info().Msg("starting application bootstrap")

	profile, err := config.LoadProfile(cfg.Match.ProfilePath)
	if err != nil {
		return nil, fmt.Errorf("load game profile: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.Postgres.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	poolCfg.MaxConns = cfg.Postgres.MaxConns
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})

	store := queries.NewStore(pool)
	questionRepo := repository.NewQuestionRepository(store)
	matchRepo := repository.NewMatchRepository(store)
	ratingRepo := repository.NewRatingRepository(store)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	observer := metrics.New(registry)

	clock := clockwork.NewRealClock()

	questionSvc := question.NewService(
		questionRepo,
		question.NewCache(redisClient, cfg.Match.CandidateTTL),
		question.ServiceOptions{},
		logger,
	)

	scorer := ai.NewScorer(ai.Config{
		ScorerURL: cfg.Grader.ScorerURL,
		ScorerKey: cfg.Grader.ScorerKey,
		Model:     cfg.Grader.Model,
		Timeout:   cfg.Grader.Timeout,
	}, logger)
	grader := grading.NewGrader(scorer, grading.Options{
		Timeout:    profile.GraderTimeout,
		TierPoints: profile.Points(),
		Observer:   observer,
	}, logger)

	ratingStore := rating.NewStore(redisClient, ratingRepo, rating.Options{
		KeyPrefix:     cfg.Leaderboard.KeyPrefix,
		TopN:          cfg.Leaderboard.TopN,
		InitialRating: profile.Rating.Initial,
	}, logger)

	wsHub := ws.NewHub(logger)
	observer.TrackConnections(registry, wsHub.Count)
	orch := match.NewOrchestrator(match.Deps{
		Queue:     queue.NewManager(clock, logger),
		Questions: questionSvc,
		Ratings:   ratingStore,
		Grader:    grader,
		Engine:    scoring.NewEngine(profile.Rating),
		Outbound:  wsHub,
		Recorders: []match.Recorder{
			match.NewRetryRecorder(matchRepo, match.RetryOptions{
				Attempts: cfg.Match.RecordRetries,
				Base:     cfg.Match.RecordBackoff,
			}, logger),
			ratingStore,
		},
		Observer: observer,
		Clock:    clock,
	}, profile.MatchSettings(cfg.Match), logger)

	tokens := jwt.NewManager(jwt.TokenConfig{
		AccessSecret: []byte(cfg.Security.JWTSecret),
		Issuer:       cfg.Security.JWTIssuer,
	})
	matchWSHandler := match.NewHandler(orch, wsHub, tokens, logger)
	lbHTTPHandler := rating.NewHTTPHandler(ratingStore, logger)

	checks := []server.Check{
		{Name: "postgres", Ping: pool.Ping},
		{Name: "redis", Ping: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }},
	}
	apiServer := server.NewHTTPServer(cfg.HTTPAddr, logger, registry, checks, server.Routes{
		MatchWS:     matchWSHandler.HandleWebSocket,
		Leaderboard: lbHTTPHandler.HandleGet,
	})

	a := &Application{
		cfg:     cfg,
		logger:  logger,
		pool:    pool,
		redis:   redisClient,
		http:    apiServer,
		orch:    orch,
		ratings: ratingStore,
	}

	a.scheduler, err = newScheduler(clock, logger,
		job{name: "match_tick", interval: cfg.Match.TickInterval, task: orch.Tick},
		job{name: "leaderboard_warm", interval: cfg.Leaderboard.WarmInterval, immediate: true, task: a.warmLeaderboard},
	)
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, err
	}

	logger.Info().
		Int("rounds", profile.MatchSettings(cfg.Match).Constraints.Total()).
		Dur("grader_timeout", profile.GraderTimeout).
		Msg("application ready")
	return a, nil
}

// Run starts the HTTP server and scheduler and waits for termination signals.
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.scheduler.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info().Str("addr", a.cfg.HTTPAddr).Msg("http server listening")
		if err := a.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info().Msg("shutdown signal received")
		return a.shutdown()
	})
	return g.Wait()
}

func (a *Application) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.GracefulShutdownTimeout)
	defer cancel()

	if err := a.scheduler.Shutdown(); err != nil {
		a.logger.Error().Err(err).Msg("scheduler shutdown error")
	}

	if err := a.orch.Shutdown(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("orchestrator shutdown error")
	}

	if err := a.http.Shutdown(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("http shutdown error")
	}

	a.pool.Close()
	if err := a.redis.Close(); err != nil {
		a.logger.Error().Err(err).Msg("redis shutdown error")
	}

	a.logger.Info().Msg("shutdown complete")
	return nil
}

func (a *Application) warmLeaderboard() {
	ctx, cancel := context.WithTimeout(context.Background(), warmTimeout)
	defer cancel()

	n, err := a.ratings.Warm(ctx)
	if err != nil {
		a.logger.Warn().Err(err).Msg("leaderboard warm failed")
		return
	}
	a.logger.Debug().Int("players", n).Msg("leaderboard warmed")
}
