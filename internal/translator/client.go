package translator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultBaseURL   = "https://api.anthropic.com"
	DefaultModel     = "claude-sonnet-4-20250514"
	DefaultMaxTokens = 8192
	DefaultTimeout   = 300 * time.Second

	apiVersion = "2023-06-01"

	// The instruction sent per item. Source content is substituted verbatim.
	promptTemplate = "Translate the following to %s. Do not print any extra text and only give me the translated text.\n '%s'"
)

// Client talks to the translation model over HTTP. Exactly one request per
// attempt; RetryPolicy bounds how many attempts an item gets.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	maxTokens  int
	httpClient *http.Client
	retry      RetryPolicy
}

type Options struct {
	BaseURL   string
	APIKey    string
	Model     string
	MaxTokens int
	Timeout   time.Duration
	Retry     RetryPolicy
}

func New(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("API key is required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = DefaultModel
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		baseURL:    baseURL,
		apiKey:     opts.APIKey,
		model:      model,
		maxTokens:  maxTokens,
		httpClient: &http.Client{Timeout: timeout},
		retry:      opts.Retry,
	}, nil
}

type messageRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	Messages  []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messageResponse struct {
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Translate asks the model for content in targetLanguage. It returns the
// translated text and the raw response body of the successful attempt.
func (c *Client) Translate(ctx context.Context, content, targetLanguage string) (string, json.RawMessage, error) {
	if strings.TrimSpace(targetLanguage) == "" {
		return "", nil, fmt.Errorf("target language is required")
	}
	prompt := fmt.Sprintf(promptTemplate, targetLanguage, content)

	var text string
	var raw json.RawMessage
	err := c.retry.Do(ctx, func() error {
		t, r, err := c.sendMessage(ctx, prompt)
		if err != nil {
			return err
		}
		text, raw = t, r
		return nil
	}, func(attempt int, delay time.Duration, err error) {
		log.Printf("translate attempt %d failed, retrying in %s: %v", attempt, delay.Round(time.Millisecond), err)
	})
	if err != nil {
		return "", nil, fmt.Errorf("translate: %w", err)
	}
	return text, raw, nil
}

func (c *Client) sendMessage(ctx context.Context, prompt string) (string, json.RawMessage, error) {
	body, err := json.Marshal(messageRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages:  []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("content-type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", nil, fmt.Errorf("api status %d: %s", resp.StatusCode, truncateText(strings.TrimSpace(string(payload)), 300))
	}

	var msg messageResponse
	if err := json.Unmarshal(payload, &msg); err != nil {
		return "", nil, fmt.Errorf("parse response: %w", err)
	}
	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}
	if strings.TrimSpace(text) == "" {
		return "", nil, fmt.Errorf("empty completion in response")
	}
	return text, json.RawMessage(payload), nil
}

func truncateText(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
