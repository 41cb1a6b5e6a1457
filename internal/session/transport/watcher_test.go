package transport

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/classrally/classrally/internal/identity"
	"github.com/classrally/classrally/internal/quiz"
	"github.com/classrally/classrally/internal/rank"
	"github.com/classrally/classrally/internal/scoring"
	"github.com/classrally/classrally/internal/session"
	ws "github.com/classrally/classrally/pkg/http/ws"
)

func newTestHandler(t *testing.T, store session.Store) (*Handler, *session.Service) {
	t.Helper()
	logger := zerolog.Nop()
	svc := session.NewService(store, logger, session.ServiceOptions{})
	ranker := rank.New(scoring.NewEngine(scoring.DefaultConfig()))
	tokens := identity.NewManager(identity.TokenConfig{Secret: []byte("test-secret")})
	hub := ws.NewHub(logger)
	return NewHandler(svc, ranker, tokens, hub, nil, nil, time.Millisecond, logger), svc
}

func watcherQuiz() quiz.Quiz {
	return quiz.Quiz{
		Title: "Geography",
		Questions: []quiz.Question{
			{Text: "Capital of France?", Options: []string{"Berlin", "Paris"}, Correct: 1},
		},
		DurationSeconds: 20,
	}
}

func TestWatcherDetachesWhenSessionFinishes(t *testing.T) {
	store := session.NewMemoryStore()
	h, svc := newTestHandler(t, store)
	ctx := context.Background()

	code, _, err := svc.Create(ctx, "host-1", "Ms. Lopez", watcherQuiz())
	require.NoError(t, err)
	_, err = svc.Join(ctx, code, "Foxes")
	require.NoError(t, err)

	require.NoError(t, h.watchers.ensure(ctx, code))

	_, err = svc.Start(ctx, code, "host-1")
	require.NoError(t, err)
	_, err = svc.End(ctx, code, "host-1")
	require.NoError(t, err)

	// The watcher releases its subscription after broadcasting the finished
	// document.
	require.Eventually(t, func() bool {
		h.watchers.mu.Lock()
		defer h.watchers.mu.Unlock()
		_, attached := h.watchers.watching[code]
		return !attached
	}, 2*time.Second, 5*time.Millisecond)

	// With the last subscriber gone the store collects the finished session.
	require.Eventually(t, func() bool {
		_, err := svc.Get(ctx, code)
		return errors.Is(err, session.ErrNotFound)
	}, 2*time.Second, 5*time.Millisecond)
}

func TestWatcherStaysAttachedWhilePlaying(t *testing.T) {
	store := session.NewMemoryStore()
	h, svc := newTestHandler(t, store)
	ctx := context.Background()

	code, _, err := svc.Create(ctx, "host-1", "Ms. Lopez", watcherQuiz())
	require.NoError(t, err)
	_, err = svc.Join(ctx, code, "Foxes")
	require.NoError(t, err)

	require.NoError(t, h.watchers.ensure(ctx, code))
	_, err = svc.Start(ctx, code, "host-1")
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	h.watchers.mu.Lock()
	_, attached := h.watchers.watching[code]
	h.watchers.mu.Unlock()
	require.True(t, attached, "watcher must follow a live session")
}
