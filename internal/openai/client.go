// Package openai derives clean transcripts, summaries, and keywords from
// raw VTT transcript artifacts using the chat-completions API.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"ytarchive/internal/retry"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4o-mini"
)

// Client calls the chat-completions API. It is stateless per call.
type Client struct {
	apiKey      string
	Model       string
	BaseURL     string
	HTTPClient  *http.Client
	RetryConfig retry.Config
}

// NewClient creates a derivation client. The API key is required.
func NewClient(apiKey string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("openai: api key required")
	}
	return &Client{
		apiKey:      apiKey,
		Model:       defaultModel,
		BaseURL:     defaultBaseURL,
		HTTPClient:  &http.Client{Timeout: 120 * time.Second},
		RetryConfig: retry.DefaultConfig(),
	}, nil
}

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("openai: http %d: %s", e.StatusCode, e.Message)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// chatCompletion sends one system+user exchange and returns the reply text.
func (c *Client) chatCompletion(ctx context.Context, system, user string, maxTokens int, temperature float64) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("openai: marshal request: %w", err)
	}

	var reply string
	err = retry.Do(ctx, c.RetryConfig, apiErrorClassifier, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.BaseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}

		var parsed chatResponse
		if err := json.Unmarshal(data, &parsed); err != nil && resp.StatusCode == http.StatusOK {
			return fmt.Errorf("openai: decode response: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			msg := http.StatusText(resp.StatusCode)
			if parsed.Error != nil {
				msg = parsed.Error.Message
			}
			return &APIError{StatusCode: resp.StatusCode, Message: msg}
		}
		if len(parsed.Choices) == 0 {
			return errors.New("openai: empty response")
		}
		reply = parsed.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return "", err
	}
	return reply, nil
}

// apiErrorClassifier retries rate limits and server errors; client errors
// (bad key, malformed request) are permanent.
func apiErrorClassifier(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}
	return retry.Transient(err)
}
