package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/classrally/classrally/internal/identity"
	"github.com/classrally/classrally/internal/metrics"
	"github.com/classrally/classrally/internal/rank"
	"github.com/classrally/classrally/internal/server"
	"github.com/classrally/classrally/internal/session"
	httperrors "github.com/classrally/classrally/pkg/http/errors"
	ws "github.com/classrally/classrally/pkg/http/ws"
)

// Handler manages WebSocket connections and routes session messages. One
// watcher goroutine per live session follows the store's change stream and
// fans state and rankings out to every connected participant, redacted per
// role.
type Handler struct {
	svc     *session.Service
	ranker  *rank.Ranker
	tokens  *identity.Manager
	hub     *ws.Hub
	metrics *metrics.Engine
	clock   session.Clock
	logger  zerolog.Logger

	watchers *watcherSet
}

// NewHandler creates a session WebSocket handler.
func NewHandler(svc *session.Service, ranker *rank.Ranker, tokens *identity.Manager, hub *ws.Hub, m *metrics.Engine, clock session.Clock, tickInterval time.Duration, logger zerolog.Logger) *Handler {
	if clock == nil {
		clock = session.SystemClock
	}
	if m == nil {
		m = metrics.Nop()
	}
	h := &Handler{
		svc:     svc,
		ranker:  ranker,
		tokens:  tokens,
		hub:     hub,
		metrics: m,
		clock:   clock,
		logger:  logger.With().Str("component", "session_ws").Logger(),
	}
	h.watchers = newWatcherSet(h, clock, tickInterval, logger)
	return h
}

// HandleWebSocket upgrades the HTTP connection and authenticates the
// participant from the token query parameter.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeInvalidToken, "Missing token")
		return
	}

	claims, err := h.tokens.Validate(token)
	if err != nil {
		h.logger.Warn().Err(err).Msg("WebSocket token validation failed")
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeInvalidToken, "Invalid token")
		return
	}

	conn, err := server.WSUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	h.HandleConnection(conn, claims)
}

// HandleConnection processes an authenticated WebSocket connection.
func (h *Handler) HandleConnection(conn *websocket.Conn, claims *identity.Claims) {
	wsConn := ws.NewConnection(conn, h.logger)
	h.hub.RegisterConnection(claims.ParticipantID, wsConn)
	h.hub.JoinSession(claims.SessionCode, claims.ParticipantID)
	h.metrics.WSConnections.Inc()

	go wsConn.WritePump()

	// Attach the session watcher and replay the current state so a
	// reconnecting client is immediately caught up.
	ctx := context.Background()
	if err := h.watchers.ensure(ctx, claims.SessionCode); err != nil {
		h.sendError(claims.ParticipantID, sessionErrorCode(err), err.Error())
	} else if err := h.sendSnapshot(ctx, claims); err != nil {
		h.logger.Warn().Err(err).Str("code", claims.SessionCode).Msg("initial snapshot failed")
	}

	wsConn.ReadPump(func(msg ws.Message) error {
		return h.handleMessage(context.Background(), claims, msg)
	})

	h.hub.UnregisterConnection(claims.ParticipantID, wsConn)
	h.metrics.WSConnections.Dec()
}

// handleMessage routes incoming WebSocket messages.
func (h *Handler) handleMessage(ctx context.Context, claims *identity.Claims, msg ws.Message) error {
	switch msg.Type {
	case ws.TypeJoinSession:
		return h.sendSnapshot(ctx, claims)
	case ws.TypeRequestState:
		return h.sendSnapshot(ctx, claims)
	case ws.TypeStartSession:
		return h.handleStart(ctx, claims)
	case ws.TypeAdvanceQuestion:
		return h.handleAdvance(ctx, claims, msg.Payload)
	case ws.TypeEndSession:
		return h.handleEnd(ctx, claims)
	case ws.TypeSubmitAnswer:
		return h.handleSubmitAnswer(ctx, claims, msg.Payload)
	case ws.TypePing:
		return h.hub.SendToParticipant(claims.ParticipantID, ws.Message{Type: ws.TypePong})
	default:
		return h.sendError(claims.ParticipantID, httperrors.ErrCodeUnknownMessageType, fmt.Sprintf("Unknown message type: %s", msg.Type))
	}
}

func (h *Handler) handleStart(ctx context.Context, claims *identity.Claims) error {
	if _, err := h.svc.Start(ctx, claims.SessionCode, claims.ParticipantID.String()); err != nil {
		return h.sendError(claims.ParticipantID, sessionErrorCode(err), err.Error())
	}
	return nil
}

func (h *Handler) handleAdvance(ctx context.Context, claims *identity.Claims, payload json.RawMessage) error {
	var req ws.AdvanceQuestionPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return h.sendError(claims.ParticipantID, httperrors.ErrCodeInvalidPayload, "Invalid advance_question payload")
	}

	if _, err := h.svc.Advance(ctx, claims.SessionCode, claims.ParticipantID.String(), req.TargetIndex); err != nil {
		return h.sendError(claims.ParticipantID, sessionErrorCode(err), err.Error())
	}
	return nil
}

func (h *Handler) handleEnd(ctx context.Context, claims *identity.Claims) error {
	if _, err := h.svc.End(ctx, claims.SessionCode, claims.ParticipantID.String()); err != nil {
		return h.sendError(claims.ParticipantID, sessionErrorCode(err), err.Error())
	}
	return nil
}

func (h *Handler) handleSubmitAnswer(ctx context.Context, claims *identity.Claims, payload json.RawMessage) error {
	var req ws.SubmitAnswerPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return h.sendError(claims.ParticipantID, httperrors.ErrCodeInvalidPayload, "Invalid submit_answer payload")
	}
	if claims.Role != identity.RoleTeam {
		return h.sendError(claims.ParticipantID, httperrors.ErrCodeForbidden, "Hosts do not answer questions")
	}

	receivedAt := h.clock().UnixMilli()
	_, err := h.svc.SubmitAnswer(ctx, claims.SessionCode, claims.DisplayName, req.QuestionIndex, req.Answer)

	ack := ws.AnswerAckPayload{
		QuestionIndex:    req.QuestionIndex,
		Accepted:         err == nil,
		ServerReceivedAt: receivedAt,
	}
	msg := ws.Message{Type: ws.TypeAnswerAck}
	msg.Payload, _ = json.Marshal(ack)
	if sendErr := h.hub.SendToParticipant(claims.ParticipantID, msg); sendErr != nil {
		return sendErr
	}

	if err != nil {
		return h.sendError(claims.ParticipantID, sessionErrorCode(err), err.Error())
	}
	return nil
}

// sendSnapshot replies with the participant's current view of the session.
func (h *Handler) sendSnapshot(ctx context.Context, claims *identity.Claims) error {
	doc, err := h.svc.Get(ctx, claims.SessionCode)
	if err != nil {
		return h.sendError(claims.ParticipantID, sessionErrorCode(err), err.Error())
	}

	state := h.statePayload(claims.SessionCode, doc, claims.Role == identity.RoleHost)
	msg := ws.Message{Type: ws.TypeSessionState}
	msg.Payload, _ = json.Marshal(state)
	if err := h.hub.SendToParticipant(claims.ParticipantID, msg); err != nil {
		return err
	}

	ranking := h.rankingPayload(doc, claims.Role == identity.RoleHost, nil)
	rmsg := ws.Message{Type: ws.TypeRankingUpdate}
	rmsg.Payload, _ = json.Marshal(ranking)
	return h.hub.SendToParticipant(claims.ParticipantID, rmsg)
}

// statePayload projects the document into the view for one role. Team clients
// never receive the answer key.
func (h *Handler) statePayload(code string, doc *session.Document, host bool) ws.SessionStatePayload {
	questions := make([]ws.QuestionView, len(doc.Quiz.Questions))
	for i, q := range doc.Quiz.Questions {
		view := ws.QuestionView{Question: q.Text, Options: q.Options}
		if host {
			correct := q.Correct
			view.Correct = &correct
		}
		questions[i] = view
	}

	teams := make([]ws.TeamView, 0, len(doc.Teams))
	for _, team := range doc.Teams {
		_, answered := team.Answers[doc.CurrentQuestionIndex]
		teams = append(teams, ws.TeamView{Name: team.Name, HasAnswered: answered})
	}

	return ws.SessionStatePayload{
		Code:                 code,
		Status:               doc.Status,
		HostName:             doc.HostName,
		CurrentQuestionIndex: doc.CurrentQuestionIndex,
		QuestionStartTime:    doc.QuestionStartTime,
		QuizTitle:            doc.Quiz.Title,
		DurationSeconds:      doc.Quiz.DurationSeconds,
		QuestionCount:        len(doc.Quiz.Questions),
		Questions:            questions,
		Teams:                teams,
		ServerTime:           h.clock().UnixMilli(),
	}
}

// rankingPayload computes the role-appropriate leaderboard, annotated with
// movement against the previous snapshot when available.
func (h *Handler) rankingPayload(doc *session.Document, host bool, previous []rank.Entry) ws.RankingUpdatePayload {
	var entries []rank.Entry
	if host {
		entries = h.ranker.Compute(doc)
	} else {
		entries = h.ranker.ComputeVisible(doc)
	}

	moves := rank.Movement(previous, entries)
	out := make([]ws.RankingEntry, len(entries))
	for i, e := range entries {
		out[i] = ws.RankingEntry{
			Team:                  e.Team,
			Score:                 e.Score,
			CurrentQuestionPoints: e.CurrentQuestionPoints,
			HasAnswered:           e.HasAnswered,
			Rank:                  e.Rank,
			Movement:              moves[e.Team],
		}
	}
	return ws.RankingUpdatePayload{Entries: out}
}

func (h *Handler) sendError(participantID uuid.UUID, code, message string) error {
	errPayload := ws.ErrorPayload{
		Code:    code,
		Message: message,
	}
	msg := ws.Message{Type: ws.TypeError}
	msg.Payload, _ = json.Marshal(errPayload)
	return h.hub.SendToParticipant(participantID, msg)
}

// sessionErrorCode maps engine errors onto wire error codes.
func sessionErrorCode(err error) string {
	switch err {
	case session.ErrNotFound:
		return httperrors.ErrCodeSessionNotFound
	case session.ErrAlreadyExists:
		return httperrors.ErrCodeSessionExists
	case session.ErrAlreadyStarted:
		return httperrors.ErrCodeSessionStarted
	case session.ErrNotHost:
		return httperrors.ErrCodeNotHost
	case session.ErrNoTeams:
		return httperrors.ErrCodeNoTeams
	case session.ErrDuplicateTeam:
		return httperrors.ErrCodeDuplicateTeam
	case session.ErrUnknownTeam:
		return httperrors.ErrCodeUnknownTeam
	case session.ErrNotPlaying:
		return httperrors.ErrCodeSessionNotPlaying
	case session.ErrStaleQuestion:
		return httperrors.ErrCodeStaleQuestion
	case session.ErrOutOfOrder:
		return httperrors.ErrCodeOutOfOrder
	case session.ErrDuplicateAnswer:
		return httperrors.ErrCodeDuplicateAnswer
	case session.ErrCodeSpaceExhausted:
		return httperrors.ErrCodeCodeSpaceExhausted
	case session.ErrStoreUnavailable:
		return httperrors.ErrCodeServiceUnavailable
	default:
		return httperrors.ErrCodeInternalError
	}
}
