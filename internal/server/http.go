package server

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/classrally/classrally/internal/config"
)

// WSUpgrader handles WebSocket upgrades (configure CORS/security as needed).
var WSUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// TODO: implement proper origin checking for production
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// SessionRoutes groups the session REST and WebSocket handlers.
type SessionRoutes struct {
	Create    http.HandlerFunc
	Join      http.HandlerFunc
	Get       http.HandlerFunc
	Rankings  http.HandlerFunc
	Results   http.HandlerFunc
	WebSocket http.HandlerFunc
}

// QuizRoutes groups the quiz library handlers; any may be nil.
type QuizRoutes struct {
	Save     http.HandlerFunc
	List     http.HandlerFunc
	Get      http.HandlerFunc
	Generate http.HandlerFunc
	Extract  http.HandlerFunc
}

// NewHTTPServer wires base routes (health, metrics) plus the session and quiz
// surfaces. pool and redisClient may be nil and are only used for readiness.
func NewHTTPServer(cfg *config.App, logger zerolog.Logger, pool *pgxpool.Pool, redisClient *redis.Client, sessions SessionRoutes, quizzes QuizRoutes) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := pingDependencies(r.Context(), pool, redisClient); err != nil {
			logger.Error().Err(err).Msg("dependency ping failed")
			http.Error(w, "upstream error", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	})

	mux.Handle("/metrics", promhttp.Handler())

	// Session endpoints
	mux.HandleFunc("/v1/sessions", sessions.Create)
	mux.HandleFunc("/v1/sessions/{code}", sessions.Get)
	mux.HandleFunc("/v1/sessions/{code}/join", sessions.Join)
	mux.HandleFunc("/v1/sessions/{code}/rankings", sessions.Rankings)
	mux.HandleFunc("/v1/sessions/{code}/results", sessions.Results)

	// WebSocket endpoint
	mux.HandleFunc("/ws/sessions", sessions.WebSocket)

	// Quiz library endpoints
	if quizzes.Save != nil {
		mux.HandleFunc("/v1/quizzes", func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet {
				quizzes.List(w, r)
				return
			}
			quizzes.Save(w, r)
		})
		mux.HandleFunc("/v1/quizzes/{id}", quizzes.Get)
	}
	if quizzes.Generate != nil {
		mux.HandleFunc("/v1/quizzes/generate", quizzes.Generate)
	}
	if quizzes.Extract != nil {
		mux.HandleFunc("/v1/content/extract", quizzes.Extract)
	}

	return &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}
}

func pingDependencies(ctx context.Context, pool *pgxpool.Pool, redisClient *redis.Client) error {
	if pool != nil {
		if err := pool.Ping(ctx); err != nil {
			return err
		}
	}
	if redisClient != nil {
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return err
		}
	}
	return nil
}
