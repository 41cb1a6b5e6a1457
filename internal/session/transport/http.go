package transport

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/classrally/classrally/internal/archive"
	"github.com/classrally/classrally/internal/identity"
	"github.com/classrally/classrally/internal/quiz"
	"github.com/classrally/classrally/internal/rank"
	"github.com/classrally/classrally/internal/session"
	httperrors "github.com/classrally/classrally/pkg/http/errors"
)

// HTTPHandlers provides REST endpoints for session operations. Creating and
// joining hand out the participant token the WebSocket endpoint expects.
type HTTPHandlers struct {
	svc      *session.Service
	ranker   *rank.Ranker
	tokens   *identity.Manager
	archiver *archive.Archiver
	logger   zerolog.Logger
}

// NewHTTPHandlers creates HTTP handlers for session endpoints. archiver may
// be nil when no database is configured.
func NewHTTPHandlers(svc *session.Service, ranker *rank.Ranker, tokens *identity.Manager, archiver *archive.Archiver, logger zerolog.Logger) *HTTPHandlers {
	return &HTTPHandlers{
		svc:      svc,
		ranker:   ranker,
		tokens:   tokens,
		archiver: archiver,
		logger:   logger.With().Str("component", "session_http").Logger(),
	}
}

// CreateSessionRequest is the POST /v1/sessions body.
type CreateSessionRequest struct {
	HostName string    `json:"hostName"`
	Quiz     quiz.Quiz `json:"quiz"`
}

// CreateSession handles POST /v1/sessions.
func (h *HTTPHandlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON payload")
		return
	}
	if strings.TrimSpace(req.HostName) == "" {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeMissingField, "hostName is required")
		return
	}

	hostID := uuid.New()
	code, doc, err := h.svc.Create(r.Context(), hostID.String(), req.HostName, req.Quiz)
	if err != nil {
		h.respondSessionError(w, err)
		return
	}

	token, err := h.tokens.Mint(identity.Participant{
		ID:          hostID,
		SessionCode: code,
		DisplayName: req.HostName,
		Role:        identity.RoleHost,
	})
	if err != nil {
		h.logger.Error().Err(err).Str("code", code).Msg("mint host token")
		httperrors.RespondInternalError(w, "Could not issue session token")
		return
	}

	h.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"code":          code,
		"token":         token,
		"participantId": hostID.String(),
		"status":        doc.Status,
		"quizTitle":     doc.Quiz.Title,
		"questionCount": len(doc.Quiz.Questions),
	})
}

// JoinSessionRequest is the POST /v1/sessions/{code}/join body.
type JoinSessionRequest struct {
	TeamName string `json:"teamName"`
}

// JoinSession handles POST /v1/sessions/{code}/join.
func (h *HTTPHandlers) JoinSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	code := r.PathValue("code")

	var req JoinSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON payload")
		return
	}

	doc, err := h.svc.Join(r.Context(), code, req.TeamName)
	if err != nil {
		h.respondSessionError(w, err)
		return
	}

	participantID := uuid.New()
	token, err := h.tokens.Mint(identity.Participant{
		ID:          participantID,
		SessionCode: code,
		DisplayName: strings.TrimSpace(req.TeamName),
		Role:        identity.RoleTeam,
	})
	if err != nil {
		h.logger.Error().Err(err).Str("code", code).Msg("mint team token")
		httperrors.RespondInternalError(w, "Could not issue session token")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"code":          code,
		"token":         token,
		"participantId": participantID.String(),
		"hostName":      doc.HostName,
		"quizTitle":     doc.Quiz.Title,
		"teams":         len(doc.Teams),
	})
}

// GetSession handles GET /v1/sessions/{code}. The answer key is included only
// when the caller presents the host's token.
func (h *HTTPHandlers) GetSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	code := r.PathValue("code")

	doc, err := h.svc.Get(r.Context(), code)
	if err != nil {
		h.respondSessionError(w, err)
		return
	}

	host := h.isHost(r, code, doc)
	state := stateView(code, doc, host)
	h.respondJSON(w, http.StatusOK, state)
}

// GetRankings handles GET /v1/sessions/{code}/rankings. Non-host callers see
// the redacted leaderboard while a question is open.
func (h *HTTPHandlers) GetRankings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	code := r.PathValue("code")

	doc, err := h.svc.Get(r.Context(), code)
	if err != nil {
		h.respondSessionError(w, err)
		return
	}

	var entries []rank.Entry
	if h.isHost(r, code, doc) {
		entries = h.ranker.Compute(doc)
	} else {
		entries = h.ranker.ComputeVisible(doc)
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"code":     code,
		"status":   doc.Status,
		"rankings": entries,
	})
}

// GetResults handles GET /v1/sessions/{code}/results, serving archived
// standings for sessions whose live document has expired.
func (h *HTTPHandlers) GetResults(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.archiver == nil {
		httperrors.RespondNotFound(w, httperrors.ErrCodeSessionNotFound, "Results are not archived")
		return
	}
	code := r.PathValue("code")

	result, err := h.archiver.Get(r.Context(), code)
	if err != nil {
		httperrors.RespondNotFound(w, httperrors.ErrCodeSessionNotFound, "No archived results for this session")
		return
	}
	h.respondJSON(w, http.StatusOK, result)
}

// isHost reports whether the request carries the host's bearer token for the
// given session.
func (h *HTTPHandlers) isHost(r *http.Request, code string, doc *session.Document) bool {
	header := r.Header.Get("Authorization")
	tokenString, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return false
	}
	claims, err := h.tokens.ValidateFor(tokenString, code)
	if err != nil {
		return false
	}
	return claims.Role == identity.RoleHost && claims.ParticipantID.String() == doc.HostID
}

// stateView is the REST projection of a session document.
func stateView(code string, doc *session.Document, host bool) map[string]interface{} {
	questions := make([]map[string]interface{}, len(doc.Quiz.Questions))
	for i, q := range doc.Quiz.Questions {
		view := map[string]interface{}{
			"question": q.Text,
			"options":  q.Options,
		}
		if host {
			view["correct"] = q.Correct
		}
		questions[i] = view
	}

	teams := make([]map[string]interface{}, 0, len(doc.Teams))
	for _, team := range doc.Teams {
		_, answered := team.Answers[doc.CurrentQuestionIndex]
		teams = append(teams, map[string]interface{}{
			"name":        team.Name,
			"hasAnswered": answered,
		})
	}

	return map[string]interface{}{
		"code":                 code,
		"status":               doc.Status,
		"hostName":             doc.HostName,
		"currentQuestionIndex": doc.CurrentQuestionIndex,
		"questionStartTime":    doc.QuestionStartTime,
		"quizTitle":            doc.Quiz.Title,
		"durationSeconds":      doc.Quiz.DurationSeconds,
		"questions":            questions,
		"teams":                teams,
	}
}

func (h *HTTPHandlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *HTTPHandlers) respondSessionError(w http.ResponseWriter, err error) {
	code := sessionErrorCode(err)
	switch err {
	case session.ErrNotFound:
		httperrors.RespondNotFound(w, code, err.Error())
	case session.ErrNotHost:
		httperrors.RespondForbidden(w, code, err.Error())
	case session.ErrAlreadyExists, session.ErrDuplicateTeam, session.ErrAlreadyStarted, session.ErrDuplicateAnswer:
		httperrors.RespondConflict(w, code, err.Error())
	case session.ErrStoreUnavailable, session.ErrCodeSpaceExhausted:
		httperrors.RespondServiceUnavailable(w, code, err.Error())
	default:
		if session.IsPrecondition(err) {
			httperrors.RespondConflict(w, code, err.Error())
			return
		}
		httperrors.RespondBadRequest(w, code, err.Error())
	}
}
