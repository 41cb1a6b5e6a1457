package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/classrally/classrally/internal/archive"
	"github.com/classrally/classrally/internal/config"
	"github.com/classrally/classrally/internal/content"
	"github.com/classrally/classrally/internal/identity"
	"github.com/classrally/classrally/internal/logging"
	"github.com/classrally/classrally/internal/metrics"
	"github.com/classrally/classrally/internal/quiz"
	"github.com/classrally/classrally/internal/quizgen"
	"github.com/classrally/classrally/internal/rank"
	"github.com/classrally/classrally/internal/scoring"
	"github.com/classrally/classrally/internal/server"
	"github.com/classrally/classrally/internal/session"
	"github.com/classrally/classrally/internal/session/transport"
	ws "github.com/classrally/classrally/pkg/http/ws"
)

// Application aggregates shared infrastructure (store, DB, HTTP server).
type Application struct {
	cfg    *config.App
	logger zerolog.Logger

	pool  *pgxpool.Pool
	redis *redis.Client
	http  *http.Server
}

// New bootstraps config, logger, the session store and the HTTP server.
func New(ctx context.Context, cfg *config.App) (*Application, error) {
	logger := logging.New(cfg.Name, cfg.Env)
	logger.Info().Str("store", cfg.Session.StoreBackend).Msg("starting application bootstrap")

	var pool *pgxpool.Pool
	if cfg.Postgres.Enabled() {
		connString := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s pool_max_conns=10",
			cfg.Postgres.Host, cfg.Postgres.Port, cfg.Postgres.User, cfg.Postgres.Password, cfg.Postgres.Database, cfg.Postgres.SSLMode)

		var err error
		pool, err = pgxpool.New(ctx, connString)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
	} else {
		logger.Warn().Msg("postgres not configured; quiz library and result archive disabled")
	}

	var redisClient *redis.Client
	var store session.Store
	switch cfg.Session.StoreBackend {
	case config.StoreRedis:
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		store = session.NewRedisStore(redisClient, cfg.Session.TTL, logger)
	default:
		store = session.NewMemoryStore()
	}

	engineMetrics := metrics.New(prometheus.DefaultRegisterer)
	scorer := scoring.NewEngine(scoring.DefaultConfig())
	ranker := rank.New(scorer)

	tokens := identity.NewManager(identity.TokenConfig{
		Secret: []byte(cfg.Security.JWTSecret),
		TTL:    cfg.Security.TokenTTL,
		Issuer: cfg.Name,
	})

	var archiver *archive.Archiver
	var onFinished func(code string, doc *session.Document)
	if pool != nil {
		archiver = archive.New(pool, ranker, logger)
		onFinished = archiver.SessionFinished
	}

	sessionSvc := session.NewService(store, logger, session.ServiceOptions{
		Metrics:    engineMetrics,
		OnFinished: onFinished,
	})

	wsHub := ws.NewHub(logger)
	wsHandler := transport.NewHandler(sessionSvc, ranker, tokens, wsHub, engineMetrics, nil, cfg.Session.TickInterval, logger)
	sessionHandlers := transport.NewHTTPHandlers(sessionSvc, ranker, tokens, archiver, logger)

	var quizRepo *quiz.Repository
	if pool != nil {
		quizRepo = quiz.NewRepository(pool)
	}

	var generate quiz.GenerateFunc
	if cfg.Generator.URL != "" {
		genClient := quizgen.NewClient(quizgen.Config{
			BaseURL: cfg.Generator.URL,
			APIKey:  cfg.Generator.APIKey,
			Timeout: cfg.Generator.HTTPTimeout,
		}, logger)
		if redisClient != nil {
			genClient = genClient.WithCache(quizgen.NewCache(redisClient, 0))
		}
		generate = func(ctx context.Context, material, difficulty string, numQuestions int) ([]quiz.Question, error) {
			return genClient.Generate(ctx, quizgen.Request{
				Content:      material,
				Difficulty:   difficulty,
				NumQuestions: numQuestions,
			})
		}
	} else {
		logger.Warn().Msg("generator not configured; quiz generation disabled")
	}

	var contentClient *content.Client
	if cfg.Content.URL != "" {
		contentClient = content.NewClient(content.Config{
			BaseURL: cfg.Content.URL,
			APIKey:  cfg.Content.APIKey,
			Timeout: cfg.Content.HTTPTimeout,
		}, logger)
	}

	quizHandlers := quiz.NewHTTPHandlers(quizRepo, generate, contentClient, logger)

	sessionRoutes := server.SessionRoutes{
		Create:    sessionHandlers.CreateSession,
		Join:      sessionHandlers.JoinSession,
		Get:       sessionHandlers.GetSession,
		Rankings:  sessionHandlers.GetRankings,
		Results:   sessionHandlers.GetResults,
		WebSocket: wsHandler.HandleWebSocket,
	}
	quizRoutes := server.QuizRoutes{
		Save:     quizHandlers.SaveQuiz,
		List:     quizHandlers.ListQuizzes,
		Get:      quizHandlers.QuizByID,
		Generate: quizHandlers.GenerateQuiz,
		Extract:  quizHandlers.ExtractContent,
	}

	apiServer := server.NewHTTPServer(cfg, logger, pool, redisClient, sessionRoutes, quizRoutes)

	return &Application{
		cfg:    cfg,
		logger: logger,
		pool:   pool,
		redis:  redisClient,
		http:   apiServer,
	}, nil
}

// Run starts the HTTP server and waits for termination signals.
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		a.logger.Info().Str("addr", a.cfg.HTTPAddr).Msg("http server listening")
		if err := a.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.GracefulShutdownTimeout)
		defer cancel()

		if err := a.http.Shutdown(shutdownCtx); err != nil {
			a.logger.Error().Err(err).Msg("http shutdown error")
		}
		return nil
	})

	err := group.Wait()

	if a.pool != nil {
		a.pool.Close()
	}
	if a.redis != nil {
		if cerr := a.redis.Close(); cerr != nil {
			a.logger.Error().Err(cerr).Msg("redis shutdown error")
		}
	}

	a.logger.Info().Msg("shutdown complete")
	return err
}
