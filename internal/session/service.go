package session

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/classrally/classrally/internal/metrics"
	"github.com/classrally/classrally/internal/quiz"
)

const maxTeamNameLen = 40

// Service is the session state machine. Every operation is a single validated
// merge against the store, so a failed precondition can never leave a partial
// write behind, and the check is always made against the latest committed
// document.
type Service struct {
	store   Store
	clock   Clock
	logger  zerolog.Logger
	metrics *metrics.Engine

	// onFinished fires after a merge lands a session in the finished state.
	onFinished func(code string, doc *Document)

	rngMu sync.Mutex
	rng   *rand.Rand
}

// ServiceOptions configures the session service.
type ServiceOptions struct {
	Clock      Clock
	Rand       *rand.Rand
	Metrics    *metrics.Engine
	OnFinished func(code string, doc *Document)
}

// NewService creates the state machine over the given store.
func NewService(store Store, logger zerolog.Logger, opts ServiceOptions) *Service {
	clock := opts.Clock
	if clock == nil {
		clock = SystemClock
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.Nop()
	}
	return &Service{
		store:      store,
		clock:      clock,
		logger:     logger.With().Str("component", "session").Logger(),
		metrics:    m,
		onFinished: opts.OnFinished,
		rng:        rng,
	}
}

// Create opens a new session in the lobby state and returns its shareable
// code. Code generation retries on collision a bounded number of times before
// failing with ErrCodeSpaceExhausted.
func (s *Service) Create(ctx context.Context, hostID, hostName string, q quiz.Quiz) (string, *Document, error) {
	if hostID == "" {
		return "", nil, fmt.Errorf("host id required")
	}
	if err := q.Validate(); err != nil {
		return "", nil, fmt.Errorf("invalid quiz: %w", err)
	}

	doc := NewDocument(hostID, hostName, q, s.clock())
	for attempt := 0; attempt < codeAttempts; attempt++ {
		code := s.nextCode()
		err := s.store.Create(ctx, code, doc)
		if err == ErrAlreadyExists {
			continue
		}
		if err != nil {
			return "", nil, err
		}

		s.metrics.SessionsCreated.Inc()
		s.logger.Info().
			Str("code", code).
			Str("host_id", hostID).
			Int("questions", len(q.Questions)).
			Msg("session created")
		return code, doc.Clone(), nil
	}
	return "", nil, ErrCodeSpaceExhausted
}

// Join adds a team to a lobby. Team names are matched case-sensitively and
// must be unique within the session.
func (s *Service) Join(ctx context.Context, code, teamName string) (*Document, error) {
	teamName = strings.TrimSpace(teamName)
	if teamName == "" || len(teamName) > maxTeamNameLen {
		return nil, fmt.Errorf("invalid team name")
	}

	doc, err := s.store.Merge(ctx, code, JoinTeam{
		Name:     teamName,
		JoinedAt: s.clock.nowMillis(),
	})
	if err != nil {
		return nil, err
	}

	s.metrics.TeamsJoined.Inc()
	s.logger.Info().Str("code", code).Str("team", teamName).Msg("team joined")
	return doc, nil
}

// Start transitions the session to playing and stamps question 0's start
// time. Only the host may start, and only with at least one team joined.
func (s *Service) Start(ctx context.Context, code, requesterID string) (*Document, error) {
	doc, err := s.store.Merge(ctx, code, StartPlaying{
		RequesterID: requesterID,
		StartedAt:   s.clock.nowMillis(),
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("code", code).Msg("session started")
	return doc, nil
}

// Advance moves to targetIndex, which must be exactly the next question.
// Advancing past the last question finishes the session.
func (s *Service) Advance(ctx context.Context, code, requesterID string, targetIndex int) (*Document, error) {
	doc, err := s.store.Merge(ctx, code, AdvanceQuestion{
		RequesterID: requesterID,
		TargetIndex: targetIndex,
		StartedAt:   s.clock.nowMillis(),
	})
	if err != nil {
		return nil, err
	}

	if doc.Status == StatusFinished {
		s.finished(code, doc)
	} else {
		s.logger.Info().Str("code", code).Int("question", targetIndex).Msg("question advanced")
	}
	return doc, nil
}

// End finishes the session unconditionally. Ending twice is a no-op.
func (s *Service) End(ctx context.Context, code, requesterID string) (*Document, error) {
	before, err := s.store.Get(ctx, code)
	if err != nil {
		return nil, err
	}

	doc, err := s.store.Merge(ctx, code, Finish{RequesterID: requesterID})
	if err != nil {
		return nil, err
	}

	if before.Status != StatusFinished {
		s.finished(code, doc)
	}
	return doc, nil
}

// SubmitAnswer records a team's pick for the current question. No deadline is
// enforced here beyond the index match: the speed bonus decays to zero on its
// own, and the host's advance is what closes the window.
func (s *Service) SubmitAnswer(ctx context.Context, code, teamName string, questionIndex, option int) (*Document, error) {
	doc, err := s.store.Merge(ctx, code, RecordAnswer{
		TeamName:      teamName,
		QuestionIndex: questionIndex,
		Option:        option,
		SubmittedAt:   s.clock.nowMillis(),
	})
	if err != nil {
		if IsPrecondition(err) {
			s.metrics.AnswersRejected.WithLabelValues(rejectionReason(err)).Inc()
		}
		return nil, err
	}

	s.metrics.AnswersAccepted.Inc()
	s.logger.Info().
		Str("code", code).
		Str("team", teamName).
		Int("question", questionIndex).
		Msg("answer recorded")
	return doc, nil
}

// Get returns the current document snapshot.
func (s *Service) Get(ctx context.Context, code string) (*Document, error) {
	return s.store.Get(ctx, code)
}

// Subscribe attaches to the session's change stream.
func (s *Service) Subscribe(ctx context.Context, code string) (<-chan *Document, func(), error) {
	return s.store.Subscribe(ctx, code)
}

func (s *Service) finished(code string, doc *Document) {
	s.metrics.SessionsFinished.Inc()
	s.logger.Info().Str("code", code).Int("teams", len(doc.Teams)).Msg("session finished")
	if s.onFinished != nil {
		s.onFinished(code, doc)
	}
}

func (s *Service) nextCode() string {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return generateCode(s.rng)
}

func rejectionReason(err error) string {
	switch err {
	case ErrNotPlaying:
		return "not_playing"
	case ErrStaleQuestion:
		return "stale_question"
	case ErrDuplicateAnswer:
		return "duplicate"
	case ErrUnknownTeam:
		return "unknown_team"
	default:
		return "other"
	}
}
