// Package llm implements the chat-completions client used for triage,
// synthesis, and draft generation calls.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/contentops/social-listening-bot/internal/retry"
	"github.com/go-resty/resty/v2"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Request describes one completion call.
type Request struct {
	Model       string
	System      string
	UserJSON    string // serialized user payload
	Temperature float64
	JSONOnly    bool // ask the endpoint to constrain output to a JSON object
	MaxTokens   int  // 0 means endpoint default
}

// Client calls the completion endpoint with bounded retries on transient
// failures. Non-2xx terminal responses and empty completions are hard errors.
type Client struct {
	client *resty.Client
	apiKey string
	policy retry.Policy
}

// Ensure Client implements CompletionInterface
var _ CompletionInterface = (*Client)(nil)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// apiError is a terminal HTTP response from the completion endpoint. Rate
// limits and server errors are retryable; everything else is not.
type apiError struct {
	StatusCode int
	Body       string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("completion endpoint returned status %d: %s", e.StatusCode, e.Body)
}

func (e *apiError) retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// NewClient creates a completion client for the given API key.
func NewClient(apiKey string) *Client {
	policy := retry.DefaultPolicy()
	policy.Retryable = func(err error) bool {
		var apiErr *apiError
		if errors.As(err, &apiErr) {
			return apiErr.retryable()
		}
		// Transport-level failures (timeouts, connection resets) are retryable.
		return true
	}
	return &Client{
		client: resty.New().
			SetBaseURL(defaultBaseURL).
			SetTimeout(120 * time.Second),
		apiKey: apiKey,
		policy: policy,
	}
}

// SetBaseURL overrides the endpoint base URL.
func (c *Client) SetBaseURL(url string) *Client {
	c.client.SetBaseURL(url)
	return c
}

// Complete sends the request and returns the raw completion text. The text is
// expected to be JSON but is not parsed here; contract enforcement lives with
// the caller.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	body := chatRequest{
		Model: req.Model,
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.UserJSON},
		},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.JSONOnly {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	var content string
	err := c.policy.Do(ctx, "completion call", func() error {
		var parsed chatResponse
		resp, err := c.client.R().
			SetContext(ctx).
			SetHeader("Authorization", "Bearer "+c.apiKey).
			SetHeader("Content-Type", "application/json").
			SetBody(body).
			SetResult(&parsed).
			Post("/chat/completions")
		if err != nil {
			return err
		}
		if resp.StatusCode() != http.StatusOK {
			return &apiError{StatusCode: resp.StatusCode(), Body: string(resp.Body())}
		}
		if len(parsed.Choices) == 0 {
			return fmt.Errorf("completion response contained no choices")
		}
		content = parsed.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return "", err
	}
	return content, nil
}
