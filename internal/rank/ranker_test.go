package rank

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classrally/classrally/internal/quiz"
	"github.com/classrally/classrally/internal/scoring"
	"github.com/classrally/classrally/internal/session"
)

func TestComputeOrdersByScore(t *testing.T) {
	doc := playingDoc()
	addAnswer(doc, "Foxes", 0, 1, 1_000_000+2000) // correct at 2s -> 1450
	addAnswer(doc, "Wolves", 0, 0, 1_000_000+500) // wrong -> 0

	entries := newRanker().Compute(doc)
	require.Len(t, entries, 2)

	assert.Equal(t, "Foxes", entries[0].Team)
	assert.Equal(t, 1450, entries[0].Score)
	assert.Equal(t, 1450, entries[0].CurrentQuestionPoints)
	assert.True(t, entries[0].HasAnswered)
	assert.Equal(t, 1, entries[0].Rank)

	assert.Equal(t, "Wolves", entries[1].Team)
	assert.Equal(t, 0, entries[1].Score)
	assert.Equal(t, 0, entries[1].CurrentQuestionPoints)
	assert.True(t, entries[1].HasAnswered)
	assert.Equal(t, 2, entries[1].Rank)
}

func TestComputeTieBreaksByName(t *testing.T) {
	doc := playingDoc()
	addTeam(doc, "Zebras")

	entries := newRanker().Compute(doc)
	require.Len(t, entries, 3)
	assert.Equal(t, []string{"Foxes", "Wolves", "Zebras"}, teamNames(entries))
}

func TestComputeVisibleWithholdsOpenQuestion(t *testing.T) {
	doc := playingDoc()
	addAnswer(doc, "Foxes", 0, 1, 1_000_000+2000)

	entries := newRanker().ComputeVisible(doc)
	byTeam := indexByTeam(entries)

	// answered flag is visible but the points are not
	assert.True(t, byTeam["Foxes"].HasAnswered)
	assert.Equal(t, 0, byTeam["Foxes"].Score)
	assert.Equal(t, 0, byTeam["Foxes"].CurrentQuestionPoints)
}

func TestComputeVisibleRevealsClosedQuestions(t *testing.T) {
	doc := playingDoc()
	addAnswer(doc, "Foxes", 0, 1, 1_000_000) // instant -> 1500

	// host advances, question 0 is now closed
	doc.CurrentQuestionIndex = 1
	doc.QuestionStartTime = 2_000_000
	doc.QuestionStartTimes[1] = 2_000_000

	entries := newRanker().ComputeVisible(doc)
	byTeam := indexByTeam(entries)
	assert.Equal(t, 1500, byTeam["Foxes"].Score)
}

func TestComputeVisibleFullAfterFinish(t *testing.T) {
	doc := playingDoc()
	addAnswer(doc, "Foxes", 0, 1, 1_000_000+2000)
	doc.Status = session.StatusFinished

	entries := newRanker().ComputeVisible(doc)
	byTeam := indexByTeam(entries)
	assert.Equal(t, 1450, byTeam["Foxes"].Score)
	assert.Equal(t, 1450, byTeam["Foxes"].CurrentQuestionPoints)
}

func TestMovementTracksTeamsByIdentity(t *testing.T) {
	previous := []Entry{
		{Team: "Wolves", Rank: 1},
		{Team: "Foxes", Rank: 2},
	}
	current := []Entry{
		{Team: "Foxes", Rank: 1},
		{Team: "Wolves", Rank: 2},
		{Team: "Bears", Rank: 3},
	}

	moves := Movement(previous, current)
	assert.Equal(t, 1, moves["Foxes"])
	assert.Equal(t, -1, moves["Wolves"])
	assert.Equal(t, 0, moves["Bears"])
}

func TestMovementNilPrevious(t *testing.T) {
	current := []Entry{{Team: "Foxes", Rank: 1}}
	moves := Movement(nil, current)
	assert.Equal(t, 0, moves["Foxes"])
}

func newRanker() *Ranker {
	return New(scoring.NewEngine(scoring.DefaultConfig()))
}

func playingDoc() *session.Document {
	q := quiz.Quiz{
		Title: "Geography",
		Questions: []quiz.Question{
			{Text: "Capital of France?", Options: []string{"Berlin", "Paris"}, Correct: 1},
			{Text: "Largest ocean?", Options: []string{"Atlantic", "Pacific"}, Correct: 1},
		},
		DurationSeconds: 20,
	}
	doc := session.NewDocument("host-1", "Ms. Lopez", q, time.UnixMilli(900_000))
	doc.Status = session.StatusPlaying
	doc.CurrentQuestionIndex = 0
	doc.QuestionStartTime = 1_000_000
	doc.QuestionStartTimes = map[int]int64{0: 1_000_000}
	doc.Teams = map[string]session.Team{}
	addTeam(doc, "Foxes")
	addTeam(doc, "Wolves")
	return doc
}

func addTeam(doc *session.Document, name string) {
	doc.Teams[name] = session.Team{Name: name, Answers: map[int]session.Answer{}, JoinedAt: 950_000}
}

func addAnswer(doc *session.Document, team string, index, option int, at int64) {
	t := doc.Teams[team]
	t.Answers[index] = session.Answer{Option: option, SubmittedAt: at}
	doc.Teams[team] = t
}

func teamNames(entries []Entry) []string {
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Team
	}
	return names
}

func indexByTeam(entries []Entry) map[string]Entry {
	out := make(map[string]Entry, len(entries))
	for _, e := range entries {
		out[e.Team] = e
	}
	return out
}
