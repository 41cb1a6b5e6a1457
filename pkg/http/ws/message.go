package ws

import "encoding/json"

// MessageType constants for the session WebSocket protocol.
const (
	// Client -> Server
	TypeJoinSession     = "join_session"
	TypeStartSession    = "start_session"
	TypeAdvanceQuestion = "advance_question"
	TypeEndSession      = "end_session"
	TypeSubmitAnswer    = "submit_answer"
	TypeRequestState    = "request_state"

	// Server -> Client
	TypeSessionState  = "session_state"
	TypeCountdownTick = "countdown_tick"
	TypeRankingUpdate = "ranking_update"
	TypeAnswerAck     = "answer_ack"
	TypeError         = "error"
	TypePing          = "ping"
	TypePong          = "pong"
)

// Message wraps all WebSocket payloads with type and optional request ID.
type Message struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	RequestID string          `json:"request_id,omitempty"`
}

// Client Messages (incoming)

type JoinSessionPayload struct {
	Token string `json:"token"`
}

type AdvanceQuestionPayload struct {
	TargetIndex int `json:"target_index"`
}

type SubmitAnswerPayload struct {
	QuestionIndex int `json:"question_index"`
	Answer        int `json:"answer"`
}

// Server Messages (outgoing)

// QuestionView is a question as shipped to clients. Correct is only populated
// on the host's copy; team clients never see the answer key.
type QuestionView struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Correct  *int     `json:"correct,omitempty"`
}

type TeamView struct {
	Name        string `json:"name"`
	HasAnswered bool   `json:"hasAnswered"`
}

type SessionStatePayload struct {
	Code                 string         `json:"code"`
	Status               string         `json:"status"`
	HostName             string         `json:"hostName"`
	CurrentQuestionIndex int            `json:"currentQuestionIndex"`
	QuestionStartTime    int64          `json:"questionStartTime,omitempty"`
	QuizTitle            string         `json:"quizTitle"`
	DurationSeconds      int            `json:"durationSeconds"`
	QuestionCount        int            `json:"questionCount"`
	Questions            []QuestionView `json:"questions"`
	Teams                []TeamView     `json:"teams"`
	ServerTime           int64          `json:"serverTime"`
}

type CountdownTickPayload struct {
	QuestionIndex int   `json:"questionIndex"`
	RemainingMs   int64 `json:"remainingMs"`
	ServerTime    int64 `json:"serverTime"`
}

type RankingEntry struct {
	Team                  string `json:"team"`
	Score                 int    `json:"score"`
	CurrentQuestionPoints int    `json:"currentQuestionPoints"`
	HasAnswered           bool   `json:"hasAnswered"`
	Rank                  int    `json:"rank"`
	Movement              int    `json:"movement"`
}

type RankingUpdatePayload struct {
	Entries []RankingEntry `json:"entries"`
}

type AnswerAckPayload struct {
	QuestionIndex    int   `json:"questionIndex"`
	Accepted         bool  `json:"accepted"`
	ServerReceivedAt int64 `json:"serverReceivedAt"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
