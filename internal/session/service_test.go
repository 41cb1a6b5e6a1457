package session

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classrally/classrally/internal/quiz"
)

const hostID = "host-1"

// fakeClock hands out a controllable instant.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestService(t *testing.T) (*Service, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.UnixMilli(1_000_000)}
	svc := NewService(NewMemoryStore(), zerolog.Nop(), ServiceOptions{
		Clock: clock.Now,
		Rand:  rand.New(rand.NewSource(42)),
	})
	return svc, clock
}

func testQuiz() quiz.Quiz {
	return quiz.Quiz{
		Title: "Geography",
		Questions: []quiz.Question{
			{Text: "Capital of France?", Options: []string{"Berlin", "Paris"}, Correct: 1},
			{Text: "Largest ocean?", Options: []string{"Atlantic", "Pacific"}, Correct: 1},
		},
		DurationSeconds: 20,
	}
}

func TestCreate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	code, doc, err := svc.Create(ctx, hostID, "Ms. Lopez", testQuiz())
	require.NoError(t, err)
	assert.Len(t, code, 6)
	assert.Equal(t, StatusLobby, doc.Status)
	assert.Equal(t, -1, doc.CurrentQuestionIndex)
	assert.Equal(t, hostID, doc.HostID)
	assert.Equal(t, int64(1_000_000), doc.CreatedAt)
}

func TestCreateRejectsInvalidQuiz(t *testing.T) {
	svc, _ := newTestService(t)

	_, _, err := svc.Create(context.Background(), hostID, "Ms. Lopez", quiz.Quiz{})
	require.Error(t, err)
}

func TestCreateRetriesOnCodeCollision(t *testing.T) {
	clock := &fakeClock{now: time.UnixMilli(1_000_000)}
	store := NewMemoryStore()
	ctx := context.Background()

	// Occupy the first code the seeded generator will draw.
	colliding := NewService(store, zerolog.Nop(), ServiceOptions{
		Clock: clock.Now,
		Rand:  rand.New(rand.NewSource(7)),
	})
	first, _, err := colliding.Create(ctx, "other-host", "Other", testQuiz())
	require.NoError(t, err)

	svc := NewService(store, zerolog.Nop(), ServiceOptions{
		Clock: clock.Now,
		Rand:  rand.New(rand.NewSource(7)),
	})
	second, _, err := svc.Create(ctx, hostID, "Ms. Lopez", testQuiz())
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

// exhaustedStore reports every code as taken.
type exhaustedStore struct {
	Store
}

func (s exhaustedStore) Create(ctx context.Context, code string, doc *Document) error {
	return ErrAlreadyExists
}

func TestCreateCodeSpaceExhausted(t *testing.T) {
	svc := NewService(exhaustedStore{}, zerolog.Nop(), ServiceOptions{})

	_, _, err := svc.Create(context.Background(), hostID, "Ms. Lopez", testQuiz())
	assert.ErrorIs(t, err, ErrCodeSpaceExhausted)
}

func TestJoin(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	code, _, err := svc.Create(ctx, hostID, "Ms. Lopez", testQuiz())
	require.NoError(t, err)

	doc, err := svc.Join(ctx, code, "  Foxes  ")
	require.NoError(t, err)
	require.Contains(t, doc.Teams, "Foxes")
	assert.Equal(t, int64(1_000_000), doc.Teams["Foxes"].JoinedAt)

	_, err = svc.Join(ctx, code, "Foxes")
	assert.ErrorIs(t, err, ErrDuplicateTeam)

	_, err = svc.Join(ctx, code, "   ")
	assert.Error(t, err)

	_, err = svc.Join(ctx, "000000", "Wolves")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestJoinAfterStartRejected(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	code, _, _ := svc.Create(ctx, hostID, "Ms. Lopez", testQuiz())
	_, err := svc.Join(ctx, code, "Foxes")
	require.NoError(t, err)
	_, err = svc.Start(ctx, code, hostID)
	require.NoError(t, err)

	_, err = svc.Join(ctx, code, "Latecomers")
	assert.ErrorIs(t, err, ErrAlreadyStarted)
}

func TestStart(t *testing.T) {
	svc, clock := newTestService(t)
	ctx := context.Background()
	code, _, _ := svc.Create(ctx, hostID, "Ms. Lopez", testQuiz())

	_, err := svc.Start(ctx, code, hostID)
	assert.ErrorIs(t, err, ErrNoTeams)

	_, err = svc.Join(ctx, code, "Foxes")
	require.NoError(t, err)

	_, err = svc.Start(ctx, code, "someone-else")
	assert.ErrorIs(t, err, ErrNotHost)

	clock.Advance(5 * time.Second)
	doc, err := svc.Start(ctx, code, hostID)
	require.NoError(t, err)
	assert.Equal(t, StatusPlaying, doc.Status)
	assert.Equal(t, 0, doc.CurrentQuestionIndex)
	assert.Equal(t, int64(1_005_000), doc.QuestionStartTime)
	assert.Equal(t, int64(1_005_000), doc.StartTimeFor(0))

	_, err = svc.Start(ctx, code, hostID)
	assert.ErrorIs(t, err, ErrAlreadyStarted)
}

func TestAdvance(t *testing.T) {
	svc, clock := newTestService(t)
	ctx := context.Background()
	code := startedSession(t, svc)

	_, err := svc.Advance(ctx, code, "someone-else", 1)
	assert.ErrorIs(t, err, ErrNotHost)

	_, err = svc.Advance(ctx, code, hostID, 2)
	assert.ErrorIs(t, err, ErrOutOfOrder)

	_, err = svc.Advance(ctx, code, hostID, 0)
	assert.ErrorIs(t, err, ErrOutOfOrder)

	clock.Advance(10 * time.Second)
	doc, err := svc.Advance(ctx, code, hostID, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, doc.CurrentQuestionIndex)
	assert.Equal(t, clock.Now().UnixMilli(), doc.QuestionStartTime)

	// advancing past the last question finishes the session
	doc, err = svc.Advance(ctx, code, hostID, 2)
	require.NoError(t, err)
	assert.Equal(t, StatusFinished, doc.Status)

	_, err = svc.Advance(ctx, code, hostID, 3)
	assert.ErrorIs(t, err, ErrNotPlaying)
}

func TestAdvanceInLobbyRejected(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	code, _, _ := svc.Create(ctx, hostID, "Ms. Lopez", testQuiz())

	_, err := svc.Advance(ctx, code, hostID, 0)
	assert.ErrorIs(t, err, ErrNotPlaying)
}

func TestSubmitAnswer(t *testing.T) {
	svc, clock := newTestService(t)
	ctx := context.Background()
	code := startedSession(t, svc)

	clock.Advance(2 * time.Second)
	doc, err := svc.SubmitAnswer(ctx, code, "Foxes", 0, 1)
	require.NoError(t, err)
	ans := doc.Teams["Foxes"].Answers[0]
	assert.Equal(t, 1, ans.Option)
	assert.Equal(t, clock.Now().UnixMilli(), ans.SubmittedAt)

	_, err = svc.SubmitAnswer(ctx, code, "Foxes", 0, 0)
	assert.ErrorIs(t, err, ErrDuplicateAnswer)

	_, err = svc.SubmitAnswer(ctx, code, "Ghosts", 0, 1)
	assert.ErrorIs(t, err, ErrUnknownTeam)

	_, err = svc.SubmitAnswer(ctx, code, "Foxes", 1, 1)
	assert.ErrorIs(t, err, ErrStaleQuestion)
}

func TestSubmitAnswerAfterAdvanceIsStale(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	code := startedSession(t, svc)

	_, err := svc.Advance(ctx, code, hostID, 1)
	require.NoError(t, err)

	_, err = svc.SubmitAnswer(ctx, code, "Foxes", 0, 1)
	assert.ErrorIs(t, err, ErrStaleQuestion)

	_, err = svc.SubmitAnswer(ctx, code, "Foxes", 1, 1)
	assert.NoError(t, err)
}

func TestEndIsIdempotent(t *testing.T) {
	finished := 0
	clock := &fakeClock{now: time.UnixMilli(1_000_000)}
	svc := NewService(NewMemoryStore(), zerolog.Nop(), ServiceOptions{
		Clock: clock.Now,
		OnFinished: func(code string, doc *Document) {
			finished++
		},
	})
	ctx := context.Background()
	code := startedSession(t, svc)

	_, err := svc.End(ctx, code, "someone-else")
	assert.ErrorIs(t, err, ErrNotHost)

	doc, err := svc.End(ctx, code, hostID)
	require.NoError(t, err)
	assert.Equal(t, StatusFinished, doc.Status)
	assert.Equal(t, 1, finished)

	doc, err = svc.End(ctx, code, hostID)
	require.NoError(t, err)
	assert.Equal(t, StatusFinished, doc.Status)
	assert.Equal(t, 1, finished, "finish hook fires once")
}

func TestAdvancePastEndFiresFinishHook(t *testing.T) {
	finished := 0
	svc := NewService(NewMemoryStore(), zerolog.Nop(), ServiceOptions{
		OnFinished: func(code string, doc *Document) { finished++ },
	})
	ctx := context.Background()
	code := startedSession(t, svc)

	_, err := svc.Advance(ctx, code, hostID, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, finished)

	_, err = svc.Advance(ctx, code, hostID, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, finished)
}

func TestQuestionStampSurvivesAdvance(t *testing.T) {
	svc, clock := newTestService(t)
	ctx := context.Background()
	code := startedSession(t, svc)
	startedAt := clock.Now().UnixMilli()

	clock.Advance(30 * time.Second)
	doc, err := svc.Advance(ctx, code, hostID, 1)
	require.NoError(t, err)

	// question 0's original stamp is still available for score derivation
	assert.Equal(t, startedAt, doc.StartTimeFor(0))
	assert.Equal(t, clock.Now().UnixMilli(), doc.StartTimeFor(1))
}

// startedSession creates a session with one team and starts it.
func TestSubmitAnswerConcurrentDuplicates(t *testing.T) {
	svc, _ := newTestService(t)
	code := startedSession(t, svc)
	ctx := context.Background()

	const attempts = 16
	var wg sync.WaitGroup
	var accepted, duplicate atomic.Int32

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(option int) {
			defer wg.Done()
			_, err := svc.SubmitAnswer(ctx, code, "Foxes", 0, option%2)
			switch {
			case err == nil:
				accepted.Add(1)
			case errors.Is(err, ErrDuplicateAnswer):
				duplicate.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	// First committed wins; everyone else observes the duplicate error.
	assert.Equal(t, int32(1), accepted.Load())
	assert.Equal(t, int32(attempts-1), duplicate.Load())

	doc, err := svc.Get(ctx, code)
	require.NoError(t, err)
	assert.Len(t, doc.Teams["Foxes"].Answers, 1)
}

func startedSession(t *testing.T, svc *Service) string {
	t.Helper()
	ctx := context.Background()
	code, _, err := svc.Create(ctx, hostID, "Ms. Lopez", testQuiz())
	require.NoError(t, err)
	_, err = svc.Join(ctx, code, "Foxes")
	require.NoError(t, err)
	_, err = svc.Start(ctx, code, hostID)
	require.NoError(t, err)
	return code
}
