// Package genai talks to the remote question-generation workflow. The
// workflow is LLM-backed, so the client tolerates the usual formatting
// quirks (markdown code fences around the JSON payload) and validates
// every question before handing it to the engine.
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lumalearn/assess/internal/quiz"
)

const defaultTimeout = 60 * time.Second

type Config struct {
	WebhookURL     string
	APIKey         string // optional bearer token
	TimeoutSeconds int
}

type Client struct {
	cfg        Config
	httpClient *http.Client
}

type Option func(*Client)

// WithHTTPClient overrides the default HTTP client (used by tests).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type generateRequest struct {
	LectureID string `json:"lecture_id"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	Count     int    `json:"count"`
}

type wireQuestion struct {
	ID           string   `json:"id"`
	Prompt       string   `json:"prompt"`
	Choices      []string `json:"choices"`
	CorrectIndex int      `json:"correct_index"`
}

// GenerateQuestions implements quiz.Generator. It issues a single
// request; retry policy belongs to the caller (the session's generation
// gate forbids automatic retries).
func (c *Client) GenerateQuestions(ctx context.Context, src quiz.Source, count int) ([]quiz.Question, error) {
	if strings.TrimSpace(c.cfg.WebhookURL) == "" {
		return nil, errors.New("genai: webhook url not configured")
	}
	if strings.TrimSpace(src.Content) == "" {
		return nil, errors.New("genai: lecture content is empty")
	}

	body, err := json.Marshal(generateRequest{
		LectureID: src.LectureID,
		Title:     src.Title,
		Content:   src.Content,
		Count:     count,
	})
	if err != nil {
		return nil, fmt.Errorf("genai: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("genai: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("genai: request failed: %w", err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("genai: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("genai: webhook returned http %d: %s", resp.StatusCode, snippet(payload))
	}

	var wire []wireQuestion
	if err := decodeLoose(payload, &wire); err != nil {
		return nil, fmt.Errorf("genai: decode questions: %w", err)
	}

	questions := make([]quiz.Question, 0, len(wire))
	for _, w := range wire {
		q, ok := validate(w)
		if !ok {
			continue
		}
		questions = append(questions, q)
	}
	if len(questions) == 0 {
		return nil, errors.New("genai: webhook returned no usable questions")
	}
	return questions, nil
}

func validate(w wireQuestion) (quiz.Question, bool) {
	if strings.TrimSpace(w.Prompt) == "" {
		return quiz.Question{}, false
	}
	if len(w.Choices) < 2 || len(w.Choices) > 6 {
		return quiz.Question{}, false
	}
	if w.CorrectIndex < 0 || w.CorrectIndex >= len(w.Choices) {
		return quiz.Question{}, false
	}
	id := strings.TrimSpace(w.ID)
	if id == "" {
		id = uuid.NewString()
	}
	return quiz.Question{
		ID:           id,
		Prompt:       strings.TrimSpace(w.Prompt),
		Choices:      w.Choices,
		CorrectIndex: w.CorrectIndex,
	}, true
}

// decodeLoose unmarshals JSON that may be wrapped in a markdown code
// fence or in a {"questions": [...]} envelope.
func decodeLoose(payload []byte, out *[]wireQuestion) error {
	trimmed := strings.TrimSpace(string(payload))
	if trimmed == "" {
		return errors.New("empty payload")
	}
	trimmed = stripCodeFence(trimmed)

	if err := json.Unmarshal([]byte(trimmed), out); err == nil {
		return nil
	}
	var envelope struct {
		Questions []wireQuestion `json:"questions"`
	}
	if err := json.Unmarshal([]byte(trimmed), &envelope); err != nil {
		return fmt.Errorf("%w (payload snippet: %s)", err, snippet([]byte(trimmed)))
	}
	*out = envelope.Questions
	return nil
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	body := strings.TrimPrefix(s, "```")
	body = strings.TrimLeft(body, " \t\r\n")
	if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = strings.TrimLeft(body[4:], " \t\r\n")
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}

func snippet(b []byte) string {
	s := strings.Join(strings.Fields(string(b)), " ")
	const limit = 160
	if len(s) > limit {
		return s[:limit] + "..."
	}
	if s == "" {
		return "<empty>"
	}
	return s
}
