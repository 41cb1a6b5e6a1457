package session

// Patch is a field-scoped partial update applied atomically by a Store. Each
// patch validates its own preconditions against the latest committed document
// inside the store's atomic section, so check and write can never be split by
// a concurrent merge. A failed patch leaves the document untouched.
type Patch interface {
	apply(doc *Document) error
}

// JoinTeam appends a new team while the session is still in the lobby.
type JoinTeam struct {
	Name     string
	JoinedAt int64
}

func (p JoinTeam) apply(doc *Document) error {
	if doc.Status != StatusLobby {
		return ErrAlreadyStarted
	}
	if _, taken := doc.Teams[p.Name]; taken {
		return ErrDuplicateTeam
	}
	if doc.Teams == nil {
		doc.Teams = make(map[string]Team)
	}
	doc.Teams[p.Name] = Team{Name: p.Name, JoinedAt: p.JoinedAt}
	return nil
}

// StartPlaying transitions lobby -> playing and stamps question 0.
type StartPlaying struct {
	RequesterID string
	StartedAt   int64
}

func (p StartPlaying) apply(doc *Document) error {
	if p.RequesterID != doc.HostID {
		return ErrNotHost
	}
	if doc.Status != StatusLobby {
		return ErrAlreadyStarted
	}
	if len(doc.Teams) == 0 {
		return ErrNoTeams
	}
	doc.Status = StatusPlaying
	doc.CurrentQuestionIndex = 0
	stamp(doc, 0, p.StartedAt)
	return nil
}

// AdvanceQuestion moves to the next question, or to finished when the target
// index runs past the last question.
type AdvanceQuestion struct {
	RequesterID string
	TargetIndex int
	StartedAt   int64
}

func (p AdvanceQuestion) apply(doc *Document) error {
	if p.RequesterID != doc.HostID {
		return ErrNotHost
	}
	if doc.Status != StatusPlaying {
		return ErrNotPlaying
	}
	if p.TargetIndex != doc.CurrentQuestionIndex+1 {
		return ErrOutOfOrder
	}
	if p.TargetIndex >= len(doc.Quiz.Questions) {
		doc.Status = StatusFinished
		return nil
	}
	doc.CurrentQuestionIndex = p.TargetIndex
	stamp(doc, p.TargetIndex, p.StartedAt)
	return nil
}

// Finish ends the session unconditionally. Ending a finished session is a
// no-op, not an error.
type Finish struct {
	RequesterID string
}

func (p Finish) apply(doc *Document) error {
	if p.RequesterID != doc.HostID {
		return ErrNotHost
	}
	doc.Status = StatusFinished
	return nil
}

// RecordAnswer records one team's submission for the current question.
// First committed wins; a losing concurrent duplicate observes
// ErrDuplicateAnswer.
type RecordAnswer struct {
	TeamName      string
	QuestionIndex int
	Option        int
	SubmittedAt   int64
}

func (p RecordAnswer) apply(doc *Document) error {
	if doc.Status != StatusPlaying {
		return ErrNotPlaying
	}
	if p.QuestionIndex != doc.CurrentQuestionIndex {
		return ErrStaleQuestion
	}
	team, ok := doc.Teams[p.TeamName]
	if !ok {
		return ErrUnknownTeam
	}
	if _, dup := team.Answers[p.QuestionIndex]; dup {
		return ErrDuplicateAnswer
	}
	if team.Answers == nil {
		team.Answers = make(map[int]Answer)
	}
	team.Answers[p.QuestionIndex] = Answer{Option: p.Option, SubmittedAt: p.SubmittedAt}
	doc.Teams[p.TeamName] = team
	return nil
}

// stamp sets a question's start time exactly once. The stamp is never revised
// while that index is current.
func stamp(doc *Document, index int, at int64) {
	if doc.QuestionStartTimes == nil {
		doc.QuestionStartTimes = make(map[int]int64)
	}
	if _, stamped := doc.QuestionStartTimes[index]; !stamped {
		doc.QuestionStartTimes[index] = at
	}
	doc.QuestionStartTime = doc.QuestionStartTimes[index]
}
