package scoring

import (
	"math"

	"github.com/classrally/classrally/internal/quiz"
	"github.com/classrally/classrally/internal/session"
)

// Config holds the scoring constants.
type Config struct {
	BaseScore     int // awarded for any correct answer
	MaxSpeedBonus int // awarded on top, decaying linearly to 0 at full duration
}

// DefaultConfig returns the production constants: 1000 base, up to 500 bonus.
func DefaultConfig() Config {
	return Config{BaseScore: 1000, MaxSpeedBonus: 500}
}

// Engine computes per-answer scores. It is a pure function of its inputs:
// scores are derived from recorded answers and question start stamps on every
// read, never stored, so they can never drift from the source data.
type Engine struct {
	cfg Config
}

// NewEngine creates an engine with the given constants.
func NewEngine(cfg Config) *Engine {
	if cfg.BaseScore == 0 && cfg.MaxSpeedBonus == 0 {
		cfg = DefaultConfig()
	}
	return &Engine{cfg: cfg}
}

// Score computes the points for a single answer. An incorrect answer is worth
// 0 regardless of timing. A correct answer is worth the base plus a speed
// bonus that decays linearly over the question's duration; a submission
// landing after the nominal duration (network delay, clock skew) keeps the
// base with the bonus clamped to zero.
func (e *Engine) Score(correct bool, elapsedMs, durationMs int64) int {
	if !correct {
		return 0
	}

	bonus := 0.0
	if durationMs > 0 {
		ratio := float64(elapsedMs) / float64(durationMs)
		if ratio < 0 {
			ratio = 0
		}
		if ratio < 1 {
			bonus = float64(e.cfg.MaxSpeedBonus) * (1 - ratio)
		}
	}
	return int(math.Round(float64(e.cfg.BaseScore) + bonus))
}

// AnswerScore scores one recorded answer against its question, using the
// start stamp for the question index the answer targeted.
func (e *Engine) AnswerScore(doc *session.Document, q quiz.Question, index int, ans session.Answer) int {
	start := doc.StartTimeFor(index)
	if start == 0 {
		return 0
	}
	elapsed := ans.SubmittedAt - start
	durationMs := int64(doc.Quiz.DurationSeconds) * 1000
	return e.Score(ans.Option == q.Correct, elapsed, durationMs)
}

// TeamTotal sums a team's per-question scores over all recorded answers.
// When excludeQuestion is >= 0, that question's answer is left out; the
// ranker uses this to withhold an open question's points from other teams
// until the host closes it.
func (e *Engine) TeamTotal(doc *session.Document, team session.Team, excludeQuestion int) int {
	total := 0
	for index, ans := range team.Answers {
		if index == excludeQuestion {
			continue
		}
		if index < 0 || index >= len(doc.Quiz.Questions) {
			continue
		}
		total += e.AnswerScore(doc, doc.Quiz.Questions[index], index, ans)
	}
	return total
}
