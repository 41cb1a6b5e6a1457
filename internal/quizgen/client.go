package quizgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/classrally/classrally/internal/quiz"
)

// Config holds connection details for the question generator service.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client calls the external generator to turn raw study material into a
// multiple-choice question set.
type Client struct {
	httpClient  *http.Client
	config      Config
	logger      zerolog.Logger
	generateURL string
	cache       *Cache
}

func NewClient(cfg Config, logger zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	base := strings.TrimSuffix(cfg.BaseURL, "/")

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		config:      cfg,
		logger:      logger.With().Str("component", "quizgen").Logger(),
		generateURL: base + "/generate",
	}
}

// WithCache attaches a memoization layer consulted before each call.
func (c *Client) WithCache(cache *Cache) *Client {
	c.cache = cache
	return c
}

// Request describes one generation call.
type Request struct {
	Content      string
	Difficulty   string
	NumQuestions int
}

// Generate synchronously requests questions from the generator service.
func (c *Client) Generate(ctx context.Context, req Request) ([]quiz.Question, error) {
	if c.config.BaseURL == "" {
		return nil, fmt.Errorf("generator endpoint not configured")
	}
	if strings.TrimSpace(req.Content) == "" {
		return nil, fmt.Errorf("content required")
	}
	if !quiz.ValidDifficulty(req.Difficulty) {
		return nil, fmt.Errorf("unknown difficulty %q", req.Difficulty)
	}
	if req.NumQuestions < quiz.MinGeneratedQuestions || req.NumQuestions > quiz.MaxGeneratedQuestions {
		return nil, fmt.Errorf("question count must be between %d and %d", quiz.MinGeneratedQuestions, quiz.MaxGeneratedQuestions)
	}

	if c.cache != nil {
		if cached, err := c.cache.Get(ctx, req); err == nil && len(cached) > 0 {
			return cached, nil
		}
	}

	payload := generateRequest{
		Content:      req.Content,
		Difficulty:   req.Difficulty,
		NumQuestions: req.NumQuestions,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.generateURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("generator returned status %d", resp.StatusCode)
	}

	var genResp generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return nil, fmt.Errorf("decode generator payload: %w", err)
	}

	questions := make([]quiz.Question, 0, len(genResp.Questions))
	for _, q := range genResp.Questions {
		questions = append(questions, quiz.Question{
			Text:    q.Question,
			Options: q.Options,
			Correct: q.Correct,
		})
	}

	if len(questions) == 0 {
		return nil, fmt.Errorf("generator returned empty question set")
	}
	for i, q := range questions {
		if err := q.Validate(); err != nil {
			return nil, fmt.Errorf("generated question %d: %w", i, err)
		}
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, req, questions); err != nil {
			c.logger.Warn().Err(err).Msg("cache generated questions failed")
		}
	}

	c.logger.Debug().
		Int("questions", len(questions)).
		Str("difficulty", req.Difficulty).
		Msg("question set generated")
	return questions, nil
}

type generateRequest struct {
	Content      string `json:"content"`
	Difficulty   string `json:"difficulty"`
	NumQuestions int    `json:"num_questions"`
}

type generatedQuestion struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Correct  int      `json:"correct"`
}

type generateResponse struct {
	Questions  []generatedQuestion `json:"questions"`
	Difficulty string              `json:"difficulty"`
}
