package content

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config holds connection details for the content extraction service.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Chapter is one extracted section of an uploaded document.
type Chapter struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Client uploads study material and gets back its chapters, which the host
// can feed into the question generator.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
	extractURL string
}

func NewClient(cfg Config, logger zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	base := strings.TrimSuffix(cfg.BaseURL, "/")

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		config:     cfg,
		logger:     logger.With().Str("component", "content").Logger(),
		extractURL: base + "/extract",
	}
}

// Extract uploads a document and returns its chapters.
func (c *Client) Extract(ctx context.Context, filename string, file io.Reader) ([]Chapter, error) {
	if c.config.BaseURL == "" {
		return nil, fmt.Errorf("content endpoint not configured")
	}

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)
	go func() {
		part, err := writer.CreateFormFile("file", filename)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, file); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(writer.Close())
	}()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.extractURL, pr)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())
	if c.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("content service returned status %d", resp.StatusCode)
	}

	var extractResp extractResponse
	if err := json.NewDecoder(resp.Body).Decode(&extractResp); err != nil {
		return nil, fmt.Errorf("decode content payload: %w", err)
	}
	if len(extractResp.Chapters) == 0 {
		return nil, fmt.Errorf("no chapters extracted")
	}

	c.logger.Debug().
		Str("filename", filename).
		Int("chapters", len(extractResp.Chapters)).
		Msg("document extracted")
	return extractResp.Chapters, nil
}

type extractResponse struct {
	Chapters []Chapter `json:"chapters"`
}
