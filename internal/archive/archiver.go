package archive

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/classrally/classrally/internal/rank"
	"github.com/classrally/classrally/internal/session"
)

// Archiver writes a summary row for each finished session so results survive
// the store's TTL. Inserts are keyed on the session code with conflicts
// ignored, making the finish hook safe to fire more than once.
type Archiver struct {
	pool    *pgxpool.Pool
	ranker  *rank.Ranker
	logger  zerolog.Logger
	timeout time.Duration
}

func New(pool *pgxpool.Pool, ranker *rank.Ranker, logger zerolog.Logger) *Archiver {
	return &Archiver{
		pool:    pool,
		ranker:  ranker,
		logger:  logger.With().Str("component", "archive").Logger(),
		timeout: 10 * time.Second,
	}
}

// Result is one archived summary.
type Result struct {
	SessionCode string       `json:"sessionCode"`
	HostID      string       `json:"hostId"`
	QuizTitle   string       `json:"quizTitle"`
	Standings   []rank.Entry `json:"standings"`
	FinishedAt  time.Time    `json:"finishedAt"`
}

// SessionFinished persists the final standings of a finished session. It is
// shaped to hang off the session service's finish hook, so failures are
// logged rather than propagated back into the state machine.
func (a *Archiver) SessionFinished(code string, doc *session.Document) {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	standings, err := json.Marshal(a.ranker.Compute(doc))
	if err != nil {
		a.logger.Error().Err(err).Str("code", code).Msg("encode standings")
		return
	}

	_, err = a.pool.Exec(ctx,
		`INSERT INTO session_results (session_code, host_id, quiz_title, standings)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (session_code) DO NOTHING`,
		code, doc.HostID, doc.Quiz.Title, standings)
	if err != nil {
		a.logger.Error().Err(err).Str("code", code).Msg("archive session result")
		return
	}

	a.logger.Info().Str("code", code).Int("teams", len(doc.Teams)).Msg("session archived")
}

// Get fetches an archived result by session code.
func (a *Archiver) Get(ctx context.Context, code string) (*Result, error) {
	var res Result
	var standings []byte
	err := a.pool.QueryRow(ctx,
		`SELECT session_code, host_id, quiz_title, standings, finished_at
		 FROM session_results WHERE session_code = $1`, code,
	).Scan(&res.SessionCode, &res.HostID, &res.QuizTitle, &standings, &res.FinishedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(standings, &res.Standings); err != nil {
		return nil, err
	}
	return &res, nil
}
