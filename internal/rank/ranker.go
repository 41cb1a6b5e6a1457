package rank

import (
	"sort"

	"github.com/classrally/classrally/internal/scoring"
	"github.com/classrally/classrally/internal/session"
)

// Entry is one row of the leaderboard. Entries are derived on demand from the
// session document and are never persisted, so recomputation from the raw
// answers always reproduces the same order.
type Entry struct {
	Team                  string `json:"team"`
	Score                 int    `json:"score"`
	CurrentQuestionPoints int    `json:"currentQuestionPoints"`
	HasAnswered           bool   `json:"hasAnswered"`
	Rank                  int    `json:"rank"`
}

// Ranker turns a session document into an ordered leaderboard.
type Ranker struct {
	engine *scoring.Engine
}

// New creates a ranker over the given scoring engine.
func New(engine *scoring.Engine) *Ranker {
	return &Ranker{engine: engine}
}

// Compute returns the full ranking: cumulative scores over every recorded
// answer, plus the current question's delta and answered flag. This is the
// host's view.
func (r *Ranker) Compute(doc *session.Document) []Entry {
	return r.rank(doc, false)
}

// ComputeVisible returns the ranking shown to teams. While a question is
// open, its points and correctness are withheld: cumulative scores stop at
// the previous question and the delta is zeroed, leaving only the answered
// flag. Once the session leaves the playing state, or the host advances, the
// closed question's points appear for everyone.
func (r *Ranker) ComputeVisible(doc *session.Document) []Entry {
	return r.rank(doc, doc.Status == session.StatusPlaying)
}

func (r *Ranker) rank(doc *session.Document, withholdCurrent bool) []Entry {
	current := doc.CurrentQuestionIndex

	entries := make([]Entry, 0, len(doc.Teams))
	for _, team := range doc.Teams {
		entry := Entry{Team: team.Name}

		exclude := -1
		if withholdCurrent {
			exclude = current
		}
		entry.Score = r.engine.TeamTotal(doc, team, exclude)

		if ans, ok := team.Answers[current]; ok && current >= 0 && current < len(doc.Quiz.Questions) {
			entry.HasAnswered = true
			if !withholdCurrent {
				entry.CurrentQuestionPoints = r.engine.AnswerScore(doc, doc.Quiz.Questions[current], current, ans)
			}
		}
		entries = append(entries, entry)
	}

	// Total order: score descending, team name ascending on ties. The
	// tie-break keys on the name so recomputation is reproducible no matter
	// the map iteration order.
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].Team < entries[j].Team
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

// Movement compares two ranking snapshots by team identity, not position, and
// returns each team's rank delta (positive = moved up). Teams absent from the
// previous snapshot report no movement.
func Movement(previous, current []Entry) map[string]int {
	prevRank := make(map[string]int, len(previous))
	for _, e := range previous {
		prevRank[e.Team] = e.Rank
	}

	moves := make(map[string]int, len(current))
	for _, e := range current {
		if before, ok := prevRank[e.Team]; ok {
			moves[e.Team] = before - e.Rank
		} else {
			moves[e.Team] = 0
		}
	}
	return moves
}
