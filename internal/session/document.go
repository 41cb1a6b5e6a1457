package session

import (
	"time"

	"github.com/classrally/classrally/internal/quiz"
)

// Session lifecycle states. Transitions only move forward:
// lobby -> playing -> finished.
const (
	StatusLobby    = "lobby"
	StatusPlaying  = "playing"
	StatusFinished = "finished"
)

// Answer records one team's pick for one question. Correctness and score are
// always derived from this plus the question's start stamp, never stored.
type Answer struct {
	Option      int   `json:"answer"`
	SubmittedAt int64 `json:"time"` // unix milliseconds
}

// Team is a participant unit. Answers is keyed by question index; at most one
// entry per index is ever recorded.
type Team struct {
	Name     string         `json:"name"`
	Answers  map[int]Answer `json:"answers,omitempty"`
	JoinedAt int64          `json:"joinedAt"`
}

// Document is the shared session state every client observes. It is the only
// shape the engine persists or transmits; everything else (scores, rankings)
// is recomputed from it on demand.
type Document struct {
	HostID               string         `json:"hostId"`
	HostName             string         `json:"hostName"`
	Status               string         `json:"status"`
	CurrentQuestionIndex int            `json:"currentQuestionIndex"` // -1 while in lobby
	QuestionStartTime    int64          `json:"questionStartTime,omitempty"`
	QuestionStartTimes   map[int]int64  `json:"questionStartTimes,omitempty"` // stamped once per index
	Quiz                 quiz.Quiz      `json:"quiz"`
	Teams                map[string]Team `json:"teams,omitempty"`
	CreatedAt            int64          `json:"createdAt"`
}

// NewDocument builds the initial lobby document written at session creation.
func NewDocument(hostID, hostName string, q quiz.Quiz, createdAt time.Time) *Document {
	return &Document{
		HostID:               hostID,
		HostName:             hostName,
		Status:               StatusLobby,
		CurrentQuestionIndex: -1,
		Quiz:                 q,
		CreatedAt:            createdAt.UnixMilli(),
	}
}

// Clone returns a deep copy. Stores hand out clones so subscribers can never
// observe a document mid-merge.
func (d *Document) Clone() *Document {
	out := *d

	if d.QuestionStartTimes != nil {
		out.QuestionStartTimes = make(map[int]int64, len(d.QuestionStartTimes))
		for k, v := range d.QuestionStartTimes {
			out.QuestionStartTimes[k] = v
		}
	}

	if d.Teams != nil {
		out.Teams = make(map[string]Team, len(d.Teams))
		for name, team := range d.Teams {
			t := team
			if team.Answers != nil {
				t.Answers = make(map[int]Answer, len(team.Answers))
				for idx, ans := range team.Answers {
					t.Answers[idx] = ans
				}
			}
			out.Teams[name] = t
		}
	}

	out.Quiz.Questions = append([]quiz.Question(nil), d.Quiz.Questions...)
	return &out
}

// StartTimeFor returns the stamped start of the given question index, or zero
// if that question never opened.
func (d *Document) StartTimeFor(index int) int64 {
	if d.QuestionStartTimes == nil {
		return 0
	}
	return d.QuestionStartTimes[index]
}

// Remaining computes the answer window left for the current question at the
// given local instant. Zero in lobby, after finish, and once the window has
// elapsed.
func (d *Document) Remaining(now time.Time) time.Duration {
	if d.Status != StatusPlaying || d.QuestionStartTime == 0 {
		return 0
	}
	duration := time.Duration(d.Quiz.DurationSeconds) * time.Second
	elapsed := time.Duration(now.UnixMilli()-d.QuestionStartTime) * time.Millisecond
	if elapsed >= duration {
		return 0
	}
	return duration - elapsed
}
