package quiz

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/classrally/classrally/internal/content"
	httperrors "github.com/classrally/classrally/pkg/http/errors"
)

// HTTPHandlers provides REST endpoints for the quiz library and generation.
type HTTPHandlers struct {
	repo          *Repository
	generate      GenerateFunc
	contentClient *content.Client
	logger        zerolog.Logger
}

// GenerateFunc is the generation call the handlers depend on; the quizgen
// client is adapted to it at wiring time.
type GenerateFunc func(ctx context.Context, content, difficulty string, numQuestions int) ([]Question, error)

// NewHTTPHandlers creates HTTP handlers for quiz endpoints. repo and
// contentClient may be nil when the corresponding backend is not configured.
func NewHTTPHandlers(repo *Repository, generate GenerateFunc, contentClient *content.Client, logger zerolog.Logger) *HTTPHandlers {
	return &HTTPHandlers{
		repo:          repo,
		generate:      generate,
		contentClient: contentClient,
		logger:        logger.With().Str("component", "quiz_http").Logger(),
	}
}

// SaveQuizRequest is the POST /v1/quizzes body.
type SaveQuizRequest struct {
	OwnerID string `json:"ownerId"`
	Quiz    Quiz   `json:"quiz"`
}

// SaveQuiz handles POST /v1/quizzes.
func (h *HTTPHandlers) SaveQuiz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.repo == nil {
		httperrors.RespondServiceUnavailable(w, httperrors.ErrCodeServiceUnavailable, "Quiz library is not configured")
		return
	}

	var req SaveQuizRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON payload")
		return
	}
	if strings.TrimSpace(req.OwnerID) == "" {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeMissingField, "ownerId is required")
		return
	}

	saved, err := h.repo.Save(r.Context(), req.OwnerID, req.Quiz)
	if err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeQuizSaveFailed, err.Error())
		return
	}
	h.respondJSON(w, http.StatusCreated, saved)
}

// ListQuizzes handles GET /v1/quizzes?owner=....
func (h *HTTPHandlers) ListQuizzes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.repo == nil {
		httperrors.RespondServiceUnavailable(w, httperrors.ErrCodeServiceUnavailable, "Quiz library is not configured")
		return
	}

	ownerID := r.URL.Query().Get("owner")
	if ownerID == "" {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeMissingField, "owner query parameter is required")
		return
	}

	quizzes, err := h.repo.ListByOwner(r.Context(), ownerID)
	if err != nil {
		h.logger.Error().Err(err).Msg("list quizzes")
		httperrors.RespondInternalError(w, "Could not list quizzes")
		return
	}
	if quizzes == nil {
		quizzes = []Saved{}
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{"quizzes": quizzes})
}

// QuizByID handles GET and DELETE on /v1/quizzes/{id}.
func (h *HTTPHandlers) QuizByID(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodDelete:
		h.deleteQuiz(w, r)
		return
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.repo == nil {
		httperrors.RespondServiceUnavailable(w, httperrors.ErrCodeServiceUnavailable, "Quiz library is not configured")
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid quiz id")
		return
	}

	saved, err := h.repo.Get(r.Context(), id)
	if errors.Is(err, ErrQuizNotFound) {
		httperrors.RespondNotFound(w, httperrors.ErrCodeQuizNotFound, "Quiz not found")
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("id", id.String()).Msg("get quiz")
		httperrors.RespondInternalError(w, "Could not load quiz")
		return
	}
	h.respondJSON(w, http.StatusOK, saved)
}

// deleteQuiz removes a quiz, scoped to the owner named in the owner query
// parameter so one principal cannot delete another's quizzes.
func (h *HTTPHandlers) deleteQuiz(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		httperrors.RespondServiceUnavailable(w, httperrors.ErrCodeServiceUnavailable, "Quiz library is not configured")
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid quiz id")
		return
	}
	ownerID := r.URL.Query().Get("owner")
	if ownerID == "" {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeMissingField, "owner query parameter is required")
		return
	}

	err = h.repo.Delete(r.Context(), id, ownerID)
	if errors.Is(err, ErrQuizNotFound) {
		httperrors.RespondNotFound(w, httperrors.ErrCodeQuizNotFound, "Quiz not found")
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("id", id.String()).Msg("delete quiz")
		httperrors.RespondInternalError(w, "Could not delete quiz")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GenerateQuizRequest is the POST /v1/quizzes/generate body.
type GenerateQuizRequest struct {
	Title           string `json:"title"`
	Content         string `json:"content"`
	Difficulty      string `json:"difficulty"`
	NumQuestions    int    `json:"numQuestions"`
	DurationSeconds int    `json:"durationSeconds"`
}

// GenerateQuiz handles POST /v1/quizzes/generate.
func (h *HTTPHandlers) GenerateQuiz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.generate == nil {
		httperrors.RespondServiceUnavailable(w, httperrors.ErrCodeServiceUnavailable, "Question generation is not configured")
		return
	}

	var req GenerateQuizRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON payload")
		return
	}
	if req.DurationSeconds <= 0 {
		req.DurationSeconds = DefaultDurationSeconds
	}

	questions, err := h.generate(r.Context(), req.Content, req.Difficulty, req.NumQuestions)
	if err != nil {
		h.logger.Warn().Err(err).Msg("quiz generation failed")
		httperrors.RespondError(w, http.StatusBadGateway, httperrors.ErrCodeGenerationFailed, err.Error())
		return
	}

	q := Quiz{
		Title:           req.Title,
		Questions:       questions,
		DurationSeconds: req.DurationSeconds,
	}
	h.respondJSON(w, http.StatusOK, q)
}

// ExtractContent handles POST /v1/content/extract with a multipart file.
func (h *HTTPHandlers) ExtractContent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.contentClient == nil {
		httperrors.RespondServiceUnavailable(w, httperrors.ErrCodeServiceUnavailable, "Content extraction is not configured")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeMissingField, "file upload is required")
		return
	}
	defer file.Close()

	chapters, err := h.contentClient.Extract(r.Context(), header.Filename, file)
	if err != nil {
		h.logger.Warn().Err(err).Str("filename", header.Filename).Msg("content extraction failed")
		httperrors.RespondError(w, http.StatusBadGateway, httperrors.ErrCodeExtractionFailed, err.Error())
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{"chapters": chapters})
}

func (h *HTTPHandlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
